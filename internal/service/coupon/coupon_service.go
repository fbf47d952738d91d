// internal/service/coupon/coupon_service.go
package coupon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coupon-service/internal/domain/coupon"
	xerrors "coupon-service/internal/pkg/errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Stores required by the service (interfaces to allow mocking).

type CouponStore interface {
	Create(ctx context.Context, c *coupon.Coupon) error
	FindByID(ctx context.Context, id uuid.UUID) (*coupon.Coupon, error)
	FindByCode(ctx context.Context, code string) (*coupon.Coupon, error)
	ExistsByCode(ctx context.Context, code string) (bool, error)
	Update(ctx context.Context, c *coupon.Coupon) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status coupon.Status) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filters *coupon.ListFilters) ([]coupon.Coupon, int64, error)
}

type UserCouponStore interface {
	CreateClaim(ctx context.Context, uc *coupon.UserCoupon) error
	FindByUserAndCoupon(ctx context.Context, userID, couponID uuid.UUID) (*coupon.UserCoupon, error)
	ListClaimedByUser(ctx context.Context, userID uuid.UUID) ([]coupon.ClaimedCoupon, error)
	DeleteUnused(ctx context.Context, ids []uuid.UUID, userID uuid.UUID) (int64, error)
}

type RedemptionStore interface {
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]coupon.Redemption, error)
}

// CodeCache is the read-through cache for coupon-by-code lookups. Only the
// read-only validation path consults it; apply always reads fresh state.
type CodeCache interface {
	Get(ctx context.Context, code string) (*coupon.Coupon, bool)
	Set(ctx context.Context, c *coupon.Coupon)
	Invalidate(ctx context.Context, code string)
}

type Service struct {
	couponRepo     CouponStore
	userCouponRepo UserCouponStore
	redemptionRepo RedemptionStore
	ledger         *Ledger
	cache          CodeCache
	logger         *zap.Logger
}

func NewService(couponRepo CouponStore, userCouponRepo UserCouponStore, redemptionRepo RedemptionStore, ledger *Ledger, cache CodeCache, logger *zap.Logger) *Service {
	return &Service{
		couponRepo:     couponRepo,
		userCouponRepo: userCouponRepo,
		redemptionRepo: redemptionRepo,
		ledger:         ledger,
		cache:          cache,
		logger:         logger,
	}
}

// ========== Apply / validate ==========

// ApplyCoupon validates the coupon against the order, consumes one unit of
// its usage limits through the ledger, and returns the computed discount.
// An unknown code or any failed rule comes back as valid=false, never as an
// error; only infrastructure faults are errors.
//
// A caller without a user identity gets the discount computed but consumes
// no usage; the order workflow always supplies a user.
func (s *Service) ApplyCoupon(ctx context.Context, code string, orderAmount decimal.Decimal, userID *uuid.UUID, isFirstTimeUser bool) (*coupon.ApplyCouponResult, error) {
	// Always a fresh read on the apply path; a cached row could hide a
	// concurrent redemption.
	c, err := s.couponRepo.FindByCode(ctx, code)
	if errors.Is(err, xerrors.ErrNotFound) {
		return rejectedApply(coupon.KindNotFound, "coupon not found", orderAmount), nil
	}
	if err != nil {
		return nil, err
	}

	record, err := s.userRecord(ctx, userID, c.ID)
	if err != nil {
		return nil, err
	}

	outcome := Validate(c, time.Now(), ValidateOptions{
		OrderAmount:     &orderAmount,
		Record:          record,
		IsFirstTimeUser: isFirstTimeUser,
	})
	if !outcome.Valid {
		return rejectedApply(outcome.Kind, outcome.Message, orderAmount), nil
	}

	discount := Calculate(c, orderAmount)

	result := &coupon.ApplyCouponResult{
		Valid:          true,
		Kind:           coupon.KindOK,
		Message:        "coupon applied",
		DiscountAmount: discount,
		FinalAmount:    orderAmount.Sub(discount),
		FreeShipping:   c.Type == coupon.TypeFreeShipping,
	}

	if userID == nil {
		return result, nil
	}

	receipt, err := s.ledger.Redeem(ctx, c, *userID, orderAmount, discount)
	if err != nil {
		// Losing the race for the last unit is an expected outcome, not a
		// bug: validation passed at read time, the ledger said no at write
		// time.
		switch {
		case errors.Is(err, coupon.ErrUsageLimitReached):
			return rejectedApply(coupon.KindUsageLimitReached,
				"this coupon has reached its usage limit", orderAmount), nil
		case errors.Is(err, coupon.ErrUserUsageLimitReached):
			return rejectedApply(coupon.KindUserLimitReached,
				"you have already used this coupon the maximum number of times", orderAmount), nil
		case errors.Is(err, xerrors.ErrStorageConflict):
			s.logger.Warn("redemption conflict not resolved by retries",
				zap.String("coupon_code", code), zap.Error(err))
			return rejectedApply(coupon.KindStorageConflict,
				"could not apply coupon, please try again", orderAmount), nil
		}
		return nil, err
	}

	s.logger.Info("coupon redeemed",
		zap.String("coupon_code", c.Code),
		zap.String("reference", receipt.Reference),
		zap.String("user_id", userID.String()),
		zap.Int32("global_count", receipt.NewGlobalCount),
		zap.Int32("user_count", receipt.NewUserCount),
	)

	result.Reference = receipt.Reference
	return result, nil
}

// ValidateCoupon is the read-only pre-check used by UI flows. It never
// touches the ledger, so a passing result is not a reservation: a subsequent
// ApplyCoupon can still fail if state changed in between.
func (s *Service) ValidateCoupon(ctx context.Context, code string, orderAmount decimal.Decimal, userID *uuid.UUID, isFirstTimeUser bool) (*coupon.ValidateCouponResult, error) {
	c, err := s.findByCodeCached(ctx, code)
	if errors.Is(err, xerrors.ErrNotFound) {
		return &coupon.ValidateCouponResult{
			Valid: false, Kind: coupon.KindNotFound, Message: "coupon not found",
		}, nil
	}
	if err != nil {
		return nil, err
	}

	record, err := s.userRecord(ctx, userID, c.ID)
	if err != nil {
		return nil, err
	}

	outcome := Validate(c, time.Now(), ValidateOptions{
		OrderAmount:     &orderAmount,
		Record:          record,
		IsFirstTimeUser: isFirstTimeUser,
	})

	return &coupon.ValidateCouponResult{
		Valid: outcome.Valid, Kind: outcome.Kind, Message: outcome.Message,
	}, nil
}

// ========== Claims ==========

// ClaimCoupon reserves a coupon for a user without consuming usage. The
// per-user usage rule is skipped (a claim is not a redemption); everything
// else must pass. At most one row ever exists per (user, coupon) pair.
func (s *Service) ClaimCoupon(ctx context.Context, couponID, userID uuid.UUID, isFirstTimeUser bool) (*coupon.ClaimedCoupon, coupon.Outcome, error) {
	c, err := s.couponRepo.FindByID(ctx, couponID)
	if errors.Is(err, xerrors.ErrNotFound) {
		return nil, coupon.Rejected(coupon.KindNotFound, "coupon not found"), nil
	}
	if err != nil {
		return nil, coupon.Outcome{}, err
	}

	if _, err := s.userCouponRepo.FindByUserAndCoupon(ctx, userID, couponID); err == nil {
		return nil, coupon.Rejected(coupon.KindAlreadyClaimed, "you have already claimed this coupon"), nil
	} else if !errors.Is(err, xerrors.ErrNotFound) {
		return nil, coupon.Outcome{}, err
	}

	outcome := Validate(c, time.Now(), ValidateOptions{
		IsFirstTimeUser: isFirstTimeUser,
		SkipPerUserRule: true,
	})
	if !outcome.Valid {
		return nil, outcome, nil
	}

	uc := &coupon.UserCoupon{
		ID:       uuid.New(),
		UserID:   userID,
		CouponID: couponID,
	}
	if err := s.userCouponRepo.CreateClaim(ctx, uc); err != nil {
		// Two concurrent claims for the same pair: the unique constraint
		// picks the winner.
		if errors.Is(err, xerrors.ErrConflict) {
			return nil, coupon.Rejected(coupon.KindAlreadyClaimed, "you have already claimed this coupon"), nil
		}
		return nil, coupon.Outcome{}, err
	}

	s.logger.Info("coupon claimed",
		zap.String("coupon_code", c.Code),
		zap.String("user_id", userID.String()),
	)

	return &coupon.ClaimedCoupon{
		ID:         uc.ID,
		CouponID:   c.ID,
		Code:       c.Code,
		Name:       c.Name,
		Type:       c.Type,
		Value:      c.Value,
		UsedCount:  0,
		ClaimedAt:  uc.CreatedAt,
		ValidUntil: c.EndDate,
	}, coupon.OK(), nil
}

// GetClaimedCoupons lists the user's claims that are still usable.
func (s *Service) GetClaimedCoupons(ctx context.Context, userID uuid.UUID) ([]coupon.ClaimedCoupon, error) {
	return s.userCouponRepo.ListClaimedByUser(ctx, userID)
}

// GetRedemptionHistory lists the user's redemptions, newest first.
func (s *Service) GetRedemptionHistory(ctx context.Context, userID uuid.UUID, limit int) ([]coupon.Redemption, error) {
	return s.redemptionRepo.ListByUser(ctx, userID, limit)
}

// UnclaimCoupons removes pure reservations (used_count = 0) owned by the
// user. Rows with redemption history are counted as skipped, never deleted:
// destroying usage history would corrupt the per-user limit accounting.
func (s *Service) UnclaimCoupons(ctx context.Context, ids []uuid.UUID, userID uuid.UUID) (*coupon.UnclaimResult, error) {
	if len(ids) == 0 {
		return &coupon.UnclaimResult{}, nil
	}

	removed, err := s.userCouponRepo.DeleteUnused(ctx, ids, userID)
	if err != nil {
		return nil, err
	}

	return &coupon.UnclaimResult{
		RemovedCount: int(removed),
		SkippedCount: len(ids) - int(removed),
	}, nil
}

// ========== Admin operations ==========

// CreateCoupon creates a new coupon (admin only).
func (s *Service) CreateCoupon(ctx context.Context, req *coupon.CreateCouponRequest) (*coupon.Coupon, error) {
	couponType, err := coupon.ParseType(req.Type)
	if err != nil {
		return nil, err
	}

	if err := validateCode(req.Code); err != nil {
		return nil, err
	}
	if err := validateTypeAndValue(couponType, req.Value); err != nil {
		return nil, err
	}
	if !req.EndDate.After(req.StartDate) {
		return nil, fmt.Errorf("end date must be after start date")
	}
	if req.MinOrderAmount.IsNegative() {
		return nil, fmt.Errorf("minimum order amount cannot be negative")
	}

	exists, err := s.couponRepo.ExistsByCode(ctx, req.Code)
	if err != nil {
		return nil, fmt.Errorf("failed to check coupon code: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("coupon code '%s' already exists", req.Code)
	}

	c := &coupon.Coupon{
		ID:                uuid.New(),
		Code:              req.Code,
		Name:              req.Name,
		Description:       req.Description,
		Type:              couponType,
		Value:             req.Value,
		MinOrderAmount:    req.MinOrderAmount,
		MaxDiscountAmount: req.MaxDiscountAmount,
		UsageLimit:        req.UsageLimit,
		UsageLimitPerUser: req.UsageLimitPerUser,
		StartDate:         req.StartDate,
		EndDate:           req.EndDate,
		Status:            coupon.StatusActive,
		FirstTimeUserOnly: req.FirstTimeUserOnly,
	}

	if err := s.couponRepo.Create(ctx, c); err != nil {
		if errors.Is(err, xerrors.ErrConflict) {
			return nil, fmt.Errorf("coupon code '%s' already exists", req.Code)
		}
		s.logger.Error("failed to create coupon", zap.Error(err))
		return nil, err
	}

	s.logger.Info("coupon created",
		zap.String("coupon_id", c.ID.String()),
		zap.String("code", c.Code),
		zap.String("type", string(c.Type)),
	)

	return c, nil
}

// UpdateCoupon updates administrative fields (admin only). The running
// used_count is never writable here; only the ledger mutates it.
func (s *Service) UpdateCoupon(ctx context.Context, id uuid.UUID, req *coupon.UpdateCouponRequest) (*coupon.Coupon, error) {
	c, err := s.couponRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		c.Name = *req.Name
	}
	if req.Description != nil {
		c.Description = *req.Description
	}
	if req.Value != nil {
		if err := validateTypeAndValue(c.Type, *req.Value); err != nil {
			return nil, err
		}
		c.Value = *req.Value
	}
	if req.MinOrderAmount != nil {
		c.MinOrderAmount = *req.MinOrderAmount
	}
	if req.MaxDiscountAmount != nil {
		c.MaxDiscountAmount = req.MaxDiscountAmount
	}
	if req.UsageLimit != nil {
		c.UsageLimit = req.UsageLimit
	}
	if req.UsageLimitPerUser != nil {
		c.UsageLimitPerUser = req.UsageLimitPerUser
	}
	if req.StartDate != nil {
		c.StartDate = *req.StartDate
	}
	if req.EndDate != nil {
		c.EndDate = *req.EndDate
	}
	if req.FirstTimeUserOnly != nil {
		c.FirstTimeUserOnly = *req.FirstTimeUserOnly
	}

	if !c.EndDate.After(c.StartDate) {
		return nil, fmt.Errorf("end date must be after start date")
	}

	if err := s.couponRepo.Update(ctx, c); err != nil {
		s.logger.Error("failed to update coupon", zap.Error(err))
		return nil, err
	}

	s.invalidate(ctx, c.Code)
	s.logger.Info("coupon updated", zap.String("coupon_id", id.String()))

	return s.couponRepo.FindByID(ctx, id)
}

// ActivateCoupon activates a coupon (admin only).
func (s *Service) ActivateCoupon(ctx context.Context, id uuid.UUID) error {
	return s.setStatus(ctx, id, coupon.StatusActive)
}

// DeactivateCoupon deactivates a coupon (admin only).
func (s *Service) DeactivateCoupon(ctx context.Context, id uuid.UUID) error {
	return s.setStatus(ctx, id, coupon.StatusInactive)
}

func (s *Service) setStatus(ctx context.Context, id uuid.UUID, status coupon.Status) error {
	c, err := s.couponRepo.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.couponRepo.UpdateStatus(ctx, id, status); err != nil {
		return fmt.Errorf("failed to update coupon status: %w", err)
	}

	s.invalidate(ctx, c.Code)
	s.logger.Info("coupon status changed",
		zap.String("coupon_id", id.String()),
		zap.String("status", string(status)),
	)
	return nil
}

// DeleteCoupon deletes a coupon that has never been redeemed (admin only).
func (s *Service) DeleteCoupon(ctx context.Context, id uuid.UUID) error {
	c, err := s.couponRepo.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if c.UsedCount > 0 {
		return fmt.Errorf("cannot delete coupon that has been redeemed %d times", c.UsedCount)
	}

	if err := s.couponRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, xerrors.ErrConflict) {
			return fmt.Errorf("cannot delete coupon: it was redeemed concurrently")
		}
		s.logger.Error("failed to delete coupon", zap.Error(err))
		return err
	}

	s.invalidate(ctx, c.Code)
	s.logger.Info("coupon deleted", zap.String("coupon_id", id.String()))
	return nil
}

// GetCoupon retrieves a coupon by ID.
func (s *Service) GetCoupon(ctx context.Context, id uuid.UUID) (*coupon.Coupon, error) {
	return s.couponRepo.FindByID(ctx, id)
}

// GetCouponByCode retrieves a coupon by code.
func (s *Service) GetCouponByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	return s.findByCodeCached(ctx, code)
}

// ListCoupons retrieves coupons with filters (admin only).
func (s *Service) ListCoupons(ctx context.Context, filters *coupon.ListFilters) (*coupon.ListResponse, error) {
	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.PageSize < 1 {
		filters.PageSize = 20
	}
	if filters.PageSize > 100 {
		filters.PageSize = 100
	}

	coupons, total, err := s.couponRepo.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list coupons: %w", err)
	}

	totalPages := int(total) / filters.PageSize
	if int(total)%filters.PageSize > 0 {
		totalPages++
	}

	return &coupon.ListResponse{
		Coupons:    coupons,
		Total:      total,
		Page:       filters.Page,
		PageSize:   filters.PageSize,
		TotalPages: totalPages,
	}, nil
}

// ========== Helpers ==========

func (s *Service) findByCodeCached(ctx context.Context, code string) (*coupon.Coupon, error) {
	if s.cache != nil {
		if c, ok := s.cache.Get(ctx, code); ok {
			return c, nil
		}
	}

	c, err := s.couponRepo.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Set(ctx, c)
	}
	return c, nil
}

func (s *Service) invalidate(ctx context.Context, code string) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, code)
	}
}

func (s *Service) userRecord(ctx context.Context, userID *uuid.UUID, couponID uuid.UUID) (*coupon.UserCoupon, error) {
	if userID == nil {
		return nil, nil
	}
	record, err := s.userCouponRepo.FindByUserAndCoupon(ctx, *userID, couponID)
	if errors.Is(err, xerrors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

func rejectedApply(kind coupon.Kind, message string, orderAmount decimal.Decimal) *coupon.ApplyCouponResult {
	return &coupon.ApplyCouponResult{
		Valid:          false,
		Kind:           kind,
		Message:        message,
		DiscountAmount: decimal.Zero,
		FinalAmount:    orderAmount,
	}
}

func validateTypeAndValue(t coupon.Type, value decimal.Decimal) error {
	switch t {
	case coupon.TypePercentage:
		if value.IsNegative() || value.GreaterThan(hundred) {
			return fmt.Errorf("percentage discount must be between 0 and 100")
		}
	case coupon.TypeFixedAmount:
		if value.IsNegative() {
			return fmt.Errorf("fixed amount discount cannot be negative")
		}
	case coupon.TypeFreeShipping:
		// Value is ignored for free shipping.
	default:
		return fmt.Errorf("invalid coupon type: %s", t)
	}
	return nil
}

func validateCode(code string) error {
	if len(code) < 3 || len(code) > 50 {
		return fmt.Errorf("coupon code must be between 3 and 50 characters")
	}
	for _, char := range code {
		if !((char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') ||
			(char >= '0' && char <= '9') || char == '-' || char == '_') {
			return fmt.Errorf("coupon code can only contain letters, numbers, hyphens, and underscores")
		}
	}
	return nil
}
