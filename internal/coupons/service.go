package coupons

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/foodorder-backend/pkg/db"
	"github.com/angelmondragon/foodorder-backend/pkg/db/models"
	"github.com/angelmondragon/foodorder-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/foodorder-backend/pkg/errors"
)

var hundred = decimal.NewFromInt(100)

type repository interface {
	FindRedeemable(ctx context.Context, code string, now time.Time) (*models.Coupon, error)
	List(ctx context.Context) ([]models.Coupon, error)
	Find(ctx context.Context, id uuid.UUID) (*models.Coupon, error)
	Create(ctx context.Context, coupon *models.Coupon) error
	Update(ctx context.Context, coupon *models.Coupon) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Service redeems coupon codes and backs the admin coupon screens.
type Service interface {
	Apply(ctx context.Context, code string, subtotal decimal.Decimal) (Discount, error)
	List(ctx context.Context) ([]CouponDTO, error)
	Create(ctx context.Context, req Request) (*CouponDTO, error)
	Update(ctx context.Context, id uuid.UUID, req Request) (*CouponDTO, error)
	Toggle(ctx context.Context, id uuid.UUID) (*CouponDTO, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo repository
	now  func() time.Time
}

func NewService(repo repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "coupon repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

// NormalizeCode trims and upper-cases a coupon code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Calculate returns the discount a coupon grants on subtotal, clamped to
// [0, subtotal] and rounded to cents.
func Calculate(coupon models.Coupon, subtotal decimal.Decimal) (decimal.Decimal, error) {
	if subtotal.LessThan(coupon.MinOrder) {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeCouponRejected, "order total is below the coupon minimum").
			WithDetails(map[string]any{"min_order": coupon.MinOrder.StringFixed(2)})
	}

	var amount decimal.Decimal
	switch coupon.DiscountType {
	case enums.DiscountTypePercentage:
		amount = subtotal.Mul(coupon.DiscountValue).Div(hundred)
	case enums.DiscountTypeFixed:
		amount = coupon.DiscountValue
	default:
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeCouponRejected, "coupon cannot be applied")
	}

	if amount.IsNegative() {
		amount = decimal.Zero
	}
	if amount.GreaterThan(subtotal) {
		amount = subtotal
	}
	return amount.Round(2), nil
}

func (s *service) Apply(ctx context.Context, code string, subtotal decimal.Decimal) (Discount, error) {
	code = NormalizeCode(code)
	if code == "" {
		return Discount{Amount: decimal.Zero}, nil
	}

	coupon, err := s.repo.FindRedeemable(ctx, code, s.now().UTC())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Discount{Amount: decimal.Zero}, pkgerrors.New(pkgerrors.CodeCouponRejected, "invalid or expired coupon").
				WithDetails(map[string]any{"code": code})
		}
		return Discount{Amount: decimal.Zero}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup coupon")
	}

	amount, err := Calculate(*coupon, subtotal)
	if err != nil {
		return Discount{Amount: decimal.Zero}, err
	}
	return Discount{Code: coupon.Code, Amount: amount}, nil
}

func (s *service) List(ctx context.Context) ([]CouponDTO, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list coupons")
	}
	out := make([]CouponDTO, 0, len(rows))
	for _, c := range rows {
		out = append(out, FromModel(c))
	}
	return out, nil
}

func (s *service) Create(ctx context.Context, req Request) (*CouponDTO, error) {
	coupon := &models.Coupon{IsActive: true}
	if err := apply(coupon, req); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, coupon); err != nil {
		return nil, mapWriteErr(err, "create coupon")
	}
	dto := FromModel(*coupon)
	return &dto, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, req Request) (*CouponDTO, error) {
	coupon, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := apply(coupon, req); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, coupon); err != nil {
		return nil, mapWriteErr(err, "update coupon")
	}
	dto := FromModel(*coupon)
	return &dto, nil
}

func (s *service) Toggle(ctx context.Context, id uuid.UUID) (*CouponDTO, error) {
	coupon, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	coupon.IsActive = !coupon.IsActive
	if err := s.repo.Update(ctx, coupon); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "toggle coupon")
	}
	dto := FromModel(*coupon)
	return &dto, nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete coupon")
	}
	return nil
}

func (s *service) find(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	coupon, err := s.repo.Find(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon")
	}
	return coupon, nil
}

func apply(coupon *models.Coupon, req Request) error {
	code := NormalizeCode(req.Code)
	if code == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "code is required")
	}
	kind, err := enums.ParseDiscountType(strings.ToLower(strings.TrimSpace(req.DiscountType)))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid discount type")
	}
	if !req.DiscountValue.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "discount value must be positive")
	}
	if kind == enums.DiscountTypePercentage && req.DiscountValue.GreaterThan(hundred) {
		return pkgerrors.New(pkgerrors.CodeValidation, "percentage cannot exceed 100")
	}
	if req.MinOrder.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "min order must not be negative")
	}

	coupon.Code = code
	coupon.DiscountType = kind
	coupon.DiscountValue = req.DiscountValue.Round(2)
	coupon.MinOrder = req.MinOrder.Round(2)
	coupon.ExpiresAt = req.ExpiresAt
	if req.IsActive != nil {
		coupon.IsActive = *req.IsActive
	}
	return nil
}

func mapWriteErr(err error, msg string) error {
	if db.IsUniqueViolation(err, "") {
		return pkgerrors.New(pkgerrors.CodeConflict, "coupon code already exists")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
