package coupon

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"coupon-service/internal/domain/coupon"
	xerrors "coupon-service/internal/pkg/errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ========== In-memory store fakes ==========

type fakeCouponStore struct {
	mu              sync.Mutex
	byID            map[uuid.UUID]*coupon.Coupon
	findByCodeCalls int
}

func newFakeCouponStore() *fakeCouponStore {
	return &fakeCouponStore{byID: make(map[uuid.UUID]*coupon.Coupon)}
}

func (s *fakeCouponStore) put(c *coupon.Coupon) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.byID[c.ID] = &cp
}

func (s *fakeCouponStore) Create(ctx context.Context, c *coupon.Coupon) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.byID {
		if existing.Code == c.Code {
			return xerrors.ErrConflict
		}
	}
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	cp := *c
	s.byID[c.ID] = &cp
	return nil
}

func (s *fakeCouponStore) FindByID(ctx context.Context, id uuid.UUID) (*coupon.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byID[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *fakeCouponStore) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.findByCodeCalls++
	for _, c := range s.byID {
		if c.Code == code {
			cp := *c
			return &cp, nil
		}
	}
	return nil, xerrors.ErrNotFound
}

func (s *fakeCouponStore) ExistsByCode(ctx context.Context, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.byID {
		if c.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeCouponStore) Update(ctx context.Context, c *coupon.Coupon) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.byID[c.ID]
	if !ok {
		return xerrors.ErrNotFound
	}
	cp := *c
	cp.UsedCount = stored.UsedCount // counters are not writable through Update
	cp.UpdatedAt = time.Now()
	s.byID[c.ID] = &cp
	return nil
}

func (s *fakeCouponStore) UpdateStatus(ctx context.Context, id uuid.UUID, status coupon.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byID[id]
	if !ok {
		return xerrors.ErrNotFound
	}
	c.Status = status
	return nil
}

func (s *fakeCouponStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byID[id]
	if !ok {
		return xerrors.ErrNotFound
	}
	if c.UsedCount > 0 {
		return xerrors.ErrConflict
	}
	delete(s.byID, id)
	return nil
}

func (s *fakeCouponStore) List(ctx context.Context, filters *coupon.ListFilters) ([]coupon.Coupon, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []coupon.Coupon
	for _, c := range s.byID {
		if filters.Status != nil && c.Status != *filters.Status {
			continue
		}
		if filters.Code != "" && !strings.Contains(c.Code, filters.Code) {
			continue
		}
		out = append(out, *c)
	}
	return out, int64(len(out)), nil
}

type fakeUserCouponStore struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*coupon.UserCoupon
}

func newFakeUserCouponStore() *fakeUserCouponStore {
	return &fakeUserCouponStore{rows: make(map[uuid.UUID]*coupon.UserCoupon)}
}

func (s *fakeUserCouponStore) CreateClaim(ctx context.Context, uc *coupon.UserCoupon) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		if row.UserID == uc.UserID && row.CouponID == uc.CouponID {
			return xerrors.ErrConflict
		}
	}
	uc.CreatedAt = time.Now()
	cp := *uc
	s.rows[uc.ID] = &cp
	return nil
}

func (s *fakeUserCouponStore) FindByUserAndCoupon(ctx context.Context, userID, couponID uuid.UUID) (*coupon.UserCoupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		if row.UserID == userID && row.CouponID == couponID {
			cp := *row
			return &cp, nil
		}
	}
	return nil, xerrors.ErrNotFound
}

func (s *fakeUserCouponStore) ListClaimedByUser(ctx context.Context, userID uuid.UUID) ([]coupon.ClaimedCoupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []coupon.ClaimedCoupon
	for _, row := range s.rows {
		if row.UserID == userID {
			out = append(out, coupon.ClaimedCoupon{
				ID:        row.ID,
				CouponID:  row.CouponID,
				UsedCount: row.UsedCount,
				ClaimedAt: row.CreatedAt,
			})
		}
	}
	return out, nil
}

func (s *fakeUserCouponStore) DeleteUnused(ctx context.Context, ids []uuid.UUID, userID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	for _, id := range ids {
		row, ok := s.rows[id]
		if !ok || row.UserID != userID || row.UsedCount > 0 {
			continue
		}
		delete(s.rows, id)
		removed++
	}
	return removed, nil
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[string]*coupon.Coupon
	hits    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]*coupon.Coupon)}
}

func (c *fakeCache) Get(ctx context.Context, code string) (*coupon.Coupon, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[code]
	if !ok {
		return nil, false
	}
	c.hits++
	cp := *entry
	return &cp, true
}

func (c *fakeCache) Set(ctx context.Context, cp *coupon.Coupon) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry := *cp
	c.entries[cp.Code] = &entry
}

func (c *fakeCache) Invalidate(ctx context.Context, code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, code)
}

// ========== Fixtures ==========

type serviceFixture struct {
	svc         *Service
	coupons     *fakeCouponStore
	userCoupons *fakeUserCouponStore
	ledgerStore *memLedgerStore
	cache       *fakeCache
}

func newServiceFixture() *serviceFixture {
	coupons := newFakeCouponStore()
	userCoupons := newFakeUserCouponStore()
	ledgerStore := newMemLedgerStore()
	cache := newFakeCache()
	ledger := newTestLedger(ledgerStore)
	svc := NewService(coupons, userCoupons, ledgerStore, ledger, cache, zap.NewNop())
	return &serviceFixture{
		svc:         svc,
		coupons:     coupons,
		userCoupons: userCoupons,
		ledgerStore: ledgerStore,
		cache:       cache,
	}
}

// welcomeCoupon mirrors a typical launch promotion: 10% off orders of at
// least 200,000, capped at 50,000, 100 total redemptions.
func welcomeCoupon() *coupon.Coupon {
	cap := decimal.NewFromInt(50000)
	return &coupon.Coupon{
		ID:                uuid.New(),
		Code:              "WELCOME10",
		Name:              "Welcome discount",
		Type:              coupon.TypePercentage,
		Value:             decimal.NewFromInt(10),
		MinOrderAmount:    decimal.NewFromInt(200000),
		MaxDiscountAmount: &cap,
		UsageLimit:        i32(100),
		StartDate:         time.Now().Add(-24 * time.Hour),
		EndDate:           time.Now().Add(24 * time.Hour),
		Status:            coupon.StatusActive,
	}
}

// ========== Apply ==========

func TestApplyCoupon(t *testing.T) {
	ctx := context.Background()

	t.Run("valid redemption computes discount and consumes usage", func(t *testing.T) {
		f := newServiceFixture()
		c := welcomeCoupon()
		f.coupons.put(c)
		userID := uuid.New()

		result, err := f.svc.ApplyCoupon(ctx, "WELCOME10", decimal.NewFromInt(300000), &userID, false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !result.Valid {
			t.Fatalf("expected valid, got %s: %s", result.Kind, result.Message)
		}
		if !result.DiscountAmount.Equal(decimal.NewFromInt(30000)) {
			t.Fatalf("expected discount 30000, got %s", result.DiscountAmount)
		}
		if !result.FinalAmount.Equal(decimal.NewFromInt(270000)) {
			t.Fatalf("expected final 270000, got %s", result.FinalAmount)
		}
		if result.Reference == "" {
			t.Fatal("expected a redemption reference")
		}
		if f.ledgerStore.global[c.ID] != 1 {
			t.Fatalf("expected usage consumed once, got %d", f.ledgerStore.global[c.ID])
		}
	})

	t.Run("unknown code rejects without error", func(t *testing.T) {
		f := newServiceFixture()
		userID := uuid.New()

		result, err := f.svc.ApplyCoupon(ctx, "NOPE", decimal.NewFromInt(300000), &userID, false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Valid || result.Kind != coupon.KindNotFound {
			t.Fatalf("expected not_found rejection, got %+v", result)
		}
		if !result.FinalAmount.Equal(decimal.NewFromInt(300000)) {
			t.Fatalf("rejection must leave the order amount untouched, got %s", result.FinalAmount)
		}
	})

	t.Run("order below minimum rejects", func(t *testing.T) {
		f := newServiceFixture()
		f.coupons.put(welcomeCoupon())
		userID := uuid.New()

		result, err := f.svc.ApplyCoupon(ctx, "WELCOME10", decimal.NewFromInt(150000), &userID, false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Kind != coupon.KindBelowMinOrder {
			t.Fatalf("expected below_min_order, got %s", result.Kind)
		}
	})

	t.Run("expired coupon rejects", func(t *testing.T) {
		f := newServiceFixture()
		c := welcomeCoupon()
		c.EndDate = time.Now().Add(-time.Hour)
		f.coupons.put(c)
		userID := uuid.New()

		result, err := f.svc.ApplyCoupon(ctx, "WELCOME10", decimal.NewFromInt(300000), &userID, false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Kind != coupon.KindExpired {
			t.Fatalf("expected expired, got %s", result.Kind)
		}
	})

	t.Run("losing the race for the last unit rejects at the ledger", func(t *testing.T) {
		f := newServiceFixture()
		c := welcomeCoupon()
		c.UsedCount = 99 // read-time state still has one unit left
		f.coupons.put(c)
		f.ledgerStore.global[c.ID] = 100 // write-time state does not
		userID := uuid.New()

		result, err := f.svc.ApplyCoupon(ctx, "WELCOME10", decimal.NewFromInt(300000), &userID, false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Valid || result.Kind != coupon.KindUsageLimitReached {
			t.Fatalf("expected usage_limit_reached, got %+v", result)
		}
		if f.ledgerStore.global[c.ID] != 100 {
			t.Fatalf("counter moved past the limit: %d", f.ledgerStore.global[c.ID])
		}
	})

	t.Run("per-user limit enforced at the ledger", func(t *testing.T) {
		f := newServiceFixture()
		c := welcomeCoupon()
		c.UsageLimitPerUser = i32(1)
		f.coupons.put(c)
		userID := uuid.New()
		amount := decimal.NewFromInt(300000)

		first, err := f.svc.ApplyCoupon(ctx, "WELCOME10", amount, &userID, false)
		if err != nil || !first.Valid {
			t.Fatalf("first redemption should succeed: %v %+v", err, first)
		}

		second, err := f.svc.ApplyCoupon(ctx, "WELCOME10", amount, &userID, false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if second.Valid || second.Kind != coupon.KindUserLimitReached {
			t.Fatalf("expected user_limit_reached, got %+v", second)
		}
		if f.ledgerStore.global[c.ID] != 1 {
			t.Fatalf("rejected retry must not consume usage, got %d", f.ledgerStore.global[c.ID])
		}
	})

	t.Run("anonymous caller gets the discount but consumes nothing", func(t *testing.T) {
		f := newServiceFixture()
		c := welcomeCoupon()
		f.coupons.put(c)

		result, err := f.svc.ApplyCoupon(ctx, "WELCOME10", decimal.NewFromInt(300000), nil, false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !result.Valid || result.Reference != "" {
			t.Fatalf("expected valid result without a reference, got %+v", result)
		}
		if f.ledgerStore.global[c.ID] != 0 {
			t.Fatalf("anonymous apply must not consume usage, got %d", f.ledgerStore.global[c.ID])
		}
	})

	t.Run("free shipping signals separately from the discount", func(t *testing.T) {
		f := newServiceFixture()
		c := welcomeCoupon()
		c.Code = "SHIPFREE"
		c.Type = coupon.TypeFreeShipping
		c.MaxDiscountAmount = nil
		f.coupons.put(c)
		userID := uuid.New()

		result, err := f.svc.ApplyCoupon(ctx, "SHIPFREE", decimal.NewFromInt(300000), &userID, false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !result.Valid || !result.FreeShipping {
			t.Fatalf("expected free shipping signal, got %+v", result)
		}
		if !result.DiscountAmount.IsZero() {
			t.Fatalf("free shipping must not discount the subtotal, got %s", result.DiscountAmount)
		}
	})

	t.Run("apply reads fresh state even when the cache is stale", func(t *testing.T) {
		f := newServiceFixture()
		c := welcomeCoupon()
		f.coupons.put(c)

		stale := *c
		stale.Status = coupon.StatusInactive
		f.cache.Set(ctx, &stale)

		userID := uuid.New()
		result, err := f.svc.ApplyCoupon(ctx, "WELCOME10", decimal.NewFromInt(300000), &userID, false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !result.Valid {
			t.Fatalf("apply must bypass the cache, got %s", result.Kind)
		}
	})
}

// ========== Validate ==========

func TestValidateCoupon(t *testing.T) {
	ctx := context.Background()

	t.Run("valid result consumes no usage", func(t *testing.T) {
		f := newServiceFixture()
		c := welcomeCoupon()
		f.coupons.put(c)

		result, err := f.svc.ValidateCoupon(ctx, "WELCOME10", decimal.NewFromInt(300000), nil, false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !result.Valid {
			t.Fatalf("expected valid, got %s", result.Kind)
		}
		if f.ledgerStore.global[c.ID] != 0 {
			t.Fatal("validation must never touch the ledger")
		}
	})

	t.Run("repeat lookups are served from cache", func(t *testing.T) {
		f := newServiceFixture()
		f.coupons.put(welcomeCoupon())

		for i := 0; i < 3; i++ {
			if _, err := f.svc.ValidateCoupon(ctx, "WELCOME10", decimal.NewFromInt(300000), nil, false); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if f.coupons.findByCodeCalls != 1 {
			t.Fatalf("expected 1 storage read, got %d", f.coupons.findByCodeCalls)
		}
		if f.cache.hits != 2 {
			t.Fatalf("expected 2 cache hits, got %d", f.cache.hits)
		}
	})

	t.Run("unknown code", func(t *testing.T) {
		f := newServiceFixture()
		result, err := f.svc.ValidateCoupon(ctx, "NOPE", decimal.NewFromInt(100), nil, false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Valid || result.Kind != coupon.KindNotFound {
			t.Fatalf("expected not_found, got %+v", result)
		}
	})
}

// ========== Claims ==========

func TestClaimCoupon(t *testing.T) {
	ctx := context.Background()

	t.Run("claim then duplicate claim", func(t *testing.T) {
		f := newServiceFixture()
		c := welcomeCoupon()
		f.coupons.put(c)
		userID := uuid.New()

		claimed, outcome, err := f.svc.ClaimCoupon(ctx, c.ID, userID, false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !outcome.Valid {
			t.Fatalf("expected claim to succeed, got %s", outcome.Kind)
		}
		if claimed.Code != "WELCOME10" || claimed.UsedCount != 0 {
			t.Fatalf("unexpected claim payload: %+v", claimed)
		}
		if f.ledgerStore.global[c.ID] != 0 {
			t.Fatal("claiming must not consume usage")
		}

		_, outcome, err = f.svc.ClaimCoupon(ctx, c.ID, userID, false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if outcome.Valid || outcome.Kind != coupon.KindAlreadyClaimed {
			t.Fatalf("expected already_claimed, got %+v", outcome)
		}
	})

	t.Run("claim skips the per-user usage rule", func(t *testing.T) {
		f := newServiceFixture()
		c := welcomeCoupon()
		c.UsageLimitPerUser = i32(1)
		f.coupons.put(c)

		_, outcome, err := f.svc.ClaimCoupon(ctx, c.ID, uuid.New(), false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !outcome.Valid {
			t.Fatalf("expected claim to succeed, got %s", outcome.Kind)
		}
	})

	t.Run("claim on unknown coupon", func(t *testing.T) {
		f := newServiceFixture()
		_, outcome, err := f.svc.ClaimCoupon(ctx, uuid.New(), uuid.New(), false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if outcome.Kind != coupon.KindNotFound {
			t.Fatalf("expected not_found, got %s", outcome.Kind)
		}
	})

	t.Run("claim on expired coupon", func(t *testing.T) {
		f := newServiceFixture()
		c := welcomeCoupon()
		c.EndDate = time.Now().Add(-time.Hour)
		f.coupons.put(c)

		_, outcome, err := f.svc.ClaimCoupon(ctx, c.ID, uuid.New(), false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if outcome.Kind != coupon.KindExpired {
			t.Fatalf("expected expired, got %s", outcome.Kind)
		}
	})
}

func TestUnclaimCoupons(t *testing.T) {
	ctx := context.Background()

	t.Run("removes reservations, keeps redemption history", func(t *testing.T) {
		f := newServiceFixture()
		userID := uuid.New()

		fresh := &coupon.UserCoupon{ID: uuid.New(), UserID: userID, CouponID: uuid.New()}
		used := &coupon.UserCoupon{ID: uuid.New(), UserID: userID, CouponID: uuid.New(), UsedCount: 2}
		f.userCoupons.rows[fresh.ID] = fresh
		f.userCoupons.rows[used.ID] = used

		result, err := f.svc.UnclaimCoupons(ctx, []uuid.UUID{fresh.ID, used.ID}, userID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.RemovedCount != 1 || result.SkippedCount != 1 {
			t.Fatalf("expected removed=1 skipped=1, got %+v", result)
		}
		if _, ok := f.userCoupons.rows[used.ID]; !ok {
			t.Fatal("row with redemption history must survive")
		}
	})

	t.Run("cannot remove another user's claim", func(t *testing.T) {
		f := newServiceFixture()
		other := &coupon.UserCoupon{ID: uuid.New(), UserID: uuid.New(), CouponID: uuid.New()}
		f.userCoupons.rows[other.ID] = other

		result, err := f.svc.UnclaimCoupons(ctx, []uuid.UUID{other.ID}, uuid.New())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.RemovedCount != 0 || result.SkippedCount != 1 {
			t.Fatalf("expected removed=0 skipped=1, got %+v", result)
		}
	})

	t.Run("empty request is a no-op", func(t *testing.T) {
		f := newServiceFixture()
		result, err := f.svc.UnclaimCoupons(ctx, nil, uuid.New())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.RemovedCount != 0 || result.SkippedCount != 0 {
			t.Fatalf("expected zero result, got %+v", result)
		}
	})
}

func TestGetRedemptionHistory(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()
	f.coupons.put(welcomeCoupon())
	userID := uuid.New()

	result, err := f.svc.ApplyCoupon(ctx, "WELCOME10", decimal.NewFromInt(300000), &userID, false)
	if err != nil || !result.Valid {
		t.Fatalf("redemption should succeed: %v %+v", err, result)
	}

	history, err := f.svc.GetRedemptionHistory(ctx, userID, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 redemption, got %d", len(history))
	}
	if history[0].Reference != result.Reference {
		t.Fatal("history reference does not match the apply receipt")
	}

	other, err := f.svc.GetRedemptionHistory(ctx, uuid.New(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("another user must not see this history, got %d rows", len(other))
	}
}

// ========== Admin ==========

func TestCreateCoupon(t *testing.T) {
	ctx := context.Background()

	validReq := func() *coupon.CreateCouponRequest {
		return &coupon.CreateCouponRequest{
			Code:           "SUMMER-25",
			Name:           "Summer sale",
			Type:           string(coupon.TypePercentage),
			Value:          decimal.NewFromInt(25),
			MinOrderAmount: decimal.NewFromInt(100000),
			StartDate:      time.Now(),
			EndDate:        time.Now().Add(30 * 24 * time.Hour),
		}
	}

	t.Run("creates active coupon", func(t *testing.T) {
		f := newServiceFixture()
		c, err := f.svc.CreateCoupon(ctx, validReq())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if c.Status != coupon.StatusActive {
			t.Fatalf("new coupons must start active, got %s", c.Status)
		}
		if c.UsedCount != 0 {
			t.Fatalf("new coupons must start unused, got %d", c.UsedCount)
		}
	})

	t.Run("duplicate code", func(t *testing.T) {
		f := newServiceFixture()
		if _, err := f.svc.CreateCoupon(ctx, validReq()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := f.svc.CreateCoupon(ctx, validReq()); err == nil {
			t.Fatal("expected duplicate code to fail")
		}
	})

	t.Run("rejects bad input", func(t *testing.T) {
		f := newServiceFixture()
		cases := map[string]func(*coupon.CreateCouponRequest){
			"unknown type":         func(r *coupon.CreateCouponRequest) { r.Type = "bogo" },
			"percentage over 100":  func(r *coupon.CreateCouponRequest) { r.Value = decimal.NewFromInt(150) },
			"negative fixed value": func(r *coupon.CreateCouponRequest) { r.Type = string(coupon.TypeFixedAmount); r.Value = decimal.NewFromInt(-1) },
			"end before start":     func(r *coupon.CreateCouponRequest) { r.EndDate = r.StartDate.Add(-time.Hour) },
			"code too short":       func(r *coupon.CreateCouponRequest) { r.Code = "AB" },
			"code with spaces":     func(r *coupon.CreateCouponRequest) { r.Code = "BAD CODE" },
		}
		for name, mutate := range cases {
			t.Run(name, func(t *testing.T) {
				req := validReq()
				mutate(req)
				if _, err := f.svc.CreateCoupon(ctx, req); err == nil {
					t.Fatal("expected validation error")
				}
			})
		}
	})
}

func TestUpdateCoupon(t *testing.T) {
	ctx := context.Background()

	t.Run("applies partial updates and invalidates cache", func(t *testing.T) {
		f := newServiceFixture()
		c := welcomeCoupon()
		f.coupons.put(c)
		f.cache.Set(ctx, c)

		newName := "Welcome back"
		newLimit := int32(500)
		updated, err := f.svc.UpdateCoupon(ctx, c.ID, &coupon.UpdateCouponRequest{
			Name:       &newName,
			UsageLimit: &newLimit,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if updated.Name != newName || updated.UsageLimit == nil || *updated.UsageLimit != newLimit {
			t.Fatalf("update not applied: %+v", updated)
		}
		if _, ok := f.cache.entries[c.Code]; ok {
			t.Fatal("stale cache entry must be invalidated")
		}
	})

	t.Run("rejects inverted date window", func(t *testing.T) {
		f := newServiceFixture()
		c := welcomeCoupon()
		f.coupons.put(c)

		bad := c.StartDate.Add(-time.Hour)
		if _, err := f.svc.UpdateCoupon(ctx, c.ID, &coupon.UpdateCouponRequest{EndDate: &bad}); err == nil {
			t.Fatal("expected date validation error")
		}
	})

	t.Run("unknown coupon", func(t *testing.T) {
		f := newServiceFixture()
		name := "x"
		_, err := f.svc.UpdateCoupon(ctx, uuid.New(), &coupon.UpdateCouponRequest{Name: &name})
		if !xerrors.Is(err, xerrors.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestDeleteCoupon(t *testing.T) {
	ctx := context.Background()

	t.Run("deletes never-redeemed coupon", func(t *testing.T) {
		f := newServiceFixture()
		c := welcomeCoupon()
		f.coupons.put(c)

		if err := f.svc.DeleteCoupon(ctx, c.ID); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := f.coupons.FindByID(ctx, c.ID); !xerrors.Is(err, xerrors.ErrNotFound) {
			t.Fatal("coupon should be gone")
		}
	})

	t.Run("refuses redeemed coupon", func(t *testing.T) {
		f := newServiceFixture()
		c := welcomeCoupon()
		c.UsedCount = 3
		f.coupons.put(c)

		if err := f.svc.DeleteCoupon(ctx, c.ID); err == nil {
			t.Fatal("expected deletion to be refused")
		}
	})
}

func TestListCoupons(t *testing.T) {
	ctx := context.Background()

	t.Run("clamps pagination", func(t *testing.T) {
		f := newServiceFixture()
		f.coupons.put(welcomeCoupon())

		result, err := f.svc.ListCoupons(ctx, &coupon.ListFilters{Page: -5, PageSize: 5000})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Page != 1 || result.PageSize != 100 {
			t.Fatalf("expected page=1 size=100, got page=%d size=%d", result.Page, result.PageSize)
		}
		if result.Total != 1 || result.TotalPages != 1 {
			t.Fatalf("unexpected totals: %+v", result)
		}
	})
}
