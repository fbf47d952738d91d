// internal/handlers/coupon/coupon_handler.go
package coupon

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"coupon-service/internal/domain/coupon"
	"coupon-service/internal/middleware"
	xerrors "coupon-service/internal/pkg/errors"
	"coupon-service/internal/pkg/response"
	service "coupon-service/internal/service/coupon"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type CouponHandler struct {
	couponService *service.Service
}

func NewCouponHandler(couponService *service.Service) *CouponHandler {
	return &CouponHandler{couponService: couponService}
}

// ========== User Endpoints ==========

// ApplyCoupon validates and redeems a coupon for the authenticated user.
// Business rejections come back 200 with valid=false; the order workflow
// inspects the kind, not the HTTP status.
func (h *CouponHandler) ApplyCoupon(c *gin.Context) {
	var req coupon.ApplyCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	userID := middleware.MustGetUserID(c)
	result, err := h.couponService.ApplyCoupon(
		c.Request.Context(), req.Code, req.OrderAmount, &userID, middleware.IsFirstTimeUser(c),
	)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to apply coupon", err)
		return
	}

	response.Success(c, http.StatusOK, result.Message, result)
}

// ValidateCoupon is the read-only pre-check. It is public: an anonymous
// caller gets everything except the per-user and first-time rules.
func (h *CouponHandler) ValidateCoupon(c *gin.Context) {
	var req coupon.ApplyCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	var userID *uuid.UUID
	if id, ok := middleware.GetUserID(c); ok {
		userID = &id
	}

	result, err := h.couponService.ValidateCoupon(
		c.Request.Context(), req.Code, req.OrderAmount, userID, middleware.IsFirstTimeUser(c),
	)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to validate coupon", err)
		return
	}

	response.Success(c, http.StatusOK, result.Message, result)
}

// ClaimCoupon reserves a coupon for the authenticated user.
func (h *CouponHandler) ClaimCoupon(c *gin.Context) {
	couponID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ValidationError(c, "invalid coupon ID", err)
		return
	}

	userID := middleware.MustGetUserID(c)
	claimed, outcome, err := h.couponService.ClaimCoupon(
		c.Request.Context(), couponID, userID, middleware.IsFirstTimeUser(c),
	)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to claim coupon", err)
		return
	}

	if !outcome.Valid {
		switch outcome.Kind {
		case coupon.KindNotFound:
			response.NotFound(c, outcome.Message)
		case coupon.KindAlreadyClaimed:
			response.Error(c, http.StatusConflict, outcome.Message, nil)
		default:
			response.Error(c, http.StatusBadRequest, outcome.Message, nil)
		}
		return
	}

	response.Success(c, http.StatusCreated, "coupon claimed", claimed)
}

// GetClaimedCoupons lists the user's currently usable claims.
func (h *CouponHandler) GetClaimedCoupons(c *gin.Context) {
	userID := middleware.MustGetUserID(c)

	claimed, err := h.couponService.GetClaimedCoupons(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to list claimed coupons", err)
		return
	}

	response.Success(c, http.StatusOK, "claimed coupons", claimed)
}

// UnclaimCoupons removes unused reservations owned by the user.
func (h *CouponHandler) UnclaimCoupons(c *gin.Context) {
	var req coupon.UnclaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	userID := middleware.MustGetUserID(c)
	result, err := h.couponService.UnclaimCoupons(c.Request.Context(), req.UserCouponIDs, userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to unclaim coupons", err)
		return
	}

	response.Success(c, http.StatusOK, "coupons unclaimed", result)
}

// GetRedemptionHistory lists the user's past redemptions, newest first.
func (h *CouponHandler) GetRedemptionHistory(c *gin.Context) {
	userID := middleware.MustGetUserID(c)
	limit, _ := strconv.Atoi(c.Query("limit"))

	history, err := h.couponService.GetRedemptionHistory(c.Request.Context(), userID, limit)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to list redemptions", err)
		return
	}

	response.Success(c, http.StatusOK, "redemption history", history)
}

// GetCouponByCode retrieves a coupon by its code.
func (h *CouponHandler) GetCouponByCode(c *gin.Context) {
	cp, err := h.couponService.GetCouponByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			response.NotFound(c, "coupon not found")
			return
		}
		response.Error(c, http.StatusInternalServerError, "failed to get coupon", err)
		return
	}

	response.Success(c, http.StatusOK, "coupon", cp)
}

// ========== Admin Endpoints ==========

// CreateCoupon creates a new coupon (admin only).
func (h *CouponHandler) CreateCoupon(c *gin.Context) {
	var req coupon.CreateCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	cp, err := h.couponService.CreateCoupon(c.Request.Context(), &req)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "failed to create coupon", err)
		return
	}

	response.Success(c, http.StatusCreated, "coupon created", cp)
}

// GetCoupon retrieves a coupon by ID (admin only).
func (h *CouponHandler) GetCoupon(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ValidationError(c, "invalid coupon ID", err)
		return
	}

	cp, err := h.couponService.GetCoupon(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			response.NotFound(c, "coupon not found")
			return
		}
		response.Error(c, http.StatusInternalServerError, "failed to get coupon", err)
		return
	}

	response.Success(c, http.StatusOK, "coupon", cp)
}

// ListCoupons lists coupons with filters (admin only).
func (h *CouponHandler) ListCoupons(c *gin.Context) {
	filters := &coupon.ListFilters{
		Code: c.Query("code"),
	}

	if s := c.Query("status"); s != "" {
		status := coupon.Status(s)
		filters.Status = &status
	}
	if page, err := strconv.Atoi(c.Query("page")); err == nil {
		filters.Page = page
	}
	if pageSize, err := strconv.Atoi(c.Query("page_size")); err == nil {
		filters.PageSize = pageSize
	}

	result, err := h.couponService.ListCoupons(c.Request.Context(), filters)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to list coupons", err)
		return
	}

	response.Success(c, http.StatusOK, "coupons", result)
}

// UpdateCoupon updates administrative fields (admin only).
func (h *CouponHandler) UpdateCoupon(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ValidationError(c, "invalid coupon ID", err)
		return
	}

	var req coupon.UpdateCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	cp, err := h.couponService.UpdateCoupon(c.Request.Context(), id, &req)
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			response.NotFound(c, "coupon not found")
			return
		}
		response.Error(c, http.StatusBadRequest, "failed to update coupon", err)
		return
	}

	response.Success(c, http.StatusOK, "coupon updated", cp)
}

// ActivateCoupon activates a coupon (admin only).
func (h *CouponHandler) ActivateCoupon(c *gin.Context) {
	h.setStatus(c, h.couponService.ActivateCoupon, "coupon activated")
}

// DeactivateCoupon deactivates a coupon (admin only).
func (h *CouponHandler) DeactivateCoupon(c *gin.Context) {
	h.setStatus(c, h.couponService.DeactivateCoupon, "coupon deactivated")
}

// DeleteCoupon deletes a never-redeemed coupon (admin only).
func (h *CouponHandler) DeleteCoupon(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ValidationError(c, "invalid coupon ID", err)
		return
	}

	if err := h.couponService.DeleteCoupon(c.Request.Context(), id); err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			response.NotFound(c, "coupon not found")
			return
		}
		response.Error(c, http.StatusBadRequest, "failed to delete coupon", err)
		return
	}

	response.Success(c, http.StatusOK, "coupon deleted", nil)
}

func (h *CouponHandler) setStatus(c *gin.Context, fn func(ctx context.Context, id uuid.UUID) error, message string) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ValidationError(c, "invalid coupon ID", err)
		return
	}

	if err := fn(c.Request.Context(), id); err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			response.NotFound(c, "coupon not found")
			return
		}
		response.Error(c, http.StatusInternalServerError, message+" failed", err)
		return
	}

	response.Success(c, http.StatusOK, message, nil)
}
