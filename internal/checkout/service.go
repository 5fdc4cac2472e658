// Package checkout turns a customer's session cart into a persisted order.
package checkout

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/foodorder-backend/internal/cart"
	"github.com/angelmondragon/foodorder-backend/internal/coupons"
	"github.com/angelmondragon/foodorder-backend/internal/orders"
	"github.com/angelmondragon/foodorder-backend/internal/profiles"
	pkgcheckout "github.com/angelmondragon/foodorder-backend/pkg/checkout"
	"github.com/angelmondragon/foodorder-backend/pkg/db/models"
	"github.com/angelmondragon/foodorder-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/foodorder-backend/pkg/errors"
	"github.com/angelmondragon/foodorder-backend/pkg/logger"
	"github.com/angelmondragon/foodorder-backend/pkg/metrics"
	"github.com/angelmondragon/foodorder-backend/pkg/outbox"
	"github.com/angelmondragon/foodorder-backend/pkg/outbox/payloads"
)

// Client routes attached to precondition failures.
const (
	RedirectAuth    = "/auth"
	RedirectProfile = "/profile"
	RedirectOrders  = "/orders"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type profileReader interface {
	Get(ctx context.Context, userID uuid.UUID) (*profiles.ProfileDTO, error)
}

type cartSession interface {
	Snapshot(ctx context.Context, userID uuid.UUID) ([]cart.Item, error)
	Clear(ctx context.Context, userID uuid.UUID) error
}

type menuLookup interface {
	FindItems(ctx context.Context, ids []uuid.UUID) ([]models.MenuItem, error)
}

type zoneResolver interface {
	Resolve(ctx context.Context, id uuid.UUID) (*models.DeliveryZone, error)
}

type couponApplier interface {
	Apply(ctx context.Context, code string, subtotal decimal.Decimal) (coupons.Discount, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service executes checkout orchestration.
type Service interface {
	Quote(ctx context.Context, userID uuid.UUID, req QuoteRequest) (*Quote, error)
	Submit(ctx context.Context, userID uuid.UUID, req SubmitRequest) (*Result, error)
}

// ServiceParams wires the checkout service. Publisher and Metrics may be nil.
type ServiceParams struct {
	Tx        txRunner
	Orders    orders.Repository
	Profiles  profileReader
	Cart      cartSession
	Menu      menuLookup
	Zones     zoneResolver
	Coupons   couponApplier
	Outbox    outboxPublisher
	Publisher orders.Publisher
	Metrics   *metrics.Metrics
	Logger    *logger.Logger
}

type service struct {
	ServiceParams
}

// NewService builds the checkout service.
func NewService(p ServiceParams) (Service, error) {
	switch {
	case p.Tx == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "tx runner required")
	case p.Orders == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "orders repository required")
	case p.Profiles == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "profile service required")
	case p.Cart == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "cart service required")
	case p.Menu == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "menu lookup required")
	case p.Zones == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "zone service required")
	case p.Coupons == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "coupon service required")
	case p.Outbox == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox publisher required")
	}
	return &service{ServiceParams: p}, nil
}

// Quote prices the cart at current menu prices for the given zone and coupon.
// A missing zone prices delivery at zero.
func (s *service) Quote(ctx context.Context, userID uuid.UUID, req QuoteRequest) (*Quote, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in to continue").WithRedirect(RedirectAuth)
	}
	lines, err := s.cartLines(ctx, userID)
	if err != nil {
		return nil, err
	}
	if lines, err = s.priceLines(ctx, userID, lines, false); err != nil {
		return nil, err
	}

	fee := decimal.Zero
	if req.ZoneID != nil && *req.ZoneID != uuid.Nil {
		zone, err := s.Zones.Resolve(ctx, *req.ZoneID)
		if err != nil {
			return nil, err
		}
		fee = zone.DeliveryFee
	}

	subtotal := pkgcheckout.Subtotal(lines)
	discount, err := s.Coupons.Apply(ctx, deref(req.CouponCode), subtotal)
	if err != nil {
		return nil, err
	}
	return &Quote{
		Totals:     pkgcheckout.ComputeTotals(subtotal, fee, discount.Amount),
		CouponCode: discount.Code,
		ItemCount:  itemCount(lines),
	}, nil
}

func (s *service) Submit(ctx context.Context, userID uuid.UUID, req SubmitRequest) (*Result, error) {
	result, err := s.submit(ctx, userID, req)
	if err != nil {
		outcome := string(pkgerrors.CodeInternal)
		if typed := pkgerrors.As(err); typed != nil {
			outcome = string(typed.Code())
		}
		s.Metrics.Checkout(outcome)
		return nil, err
	}
	s.Metrics.Checkout("ok")
	return result, nil
}

func (s *service) submit(ctx context.Context, userID uuid.UUID, req SubmitRequest) (*Result, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in to place an order").WithRedirect(RedirectAuth)
	}

	profile, err := s.Profiles.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !profile.Complete {
		return nil, pkgerrors.New(pkgerrors.CodeProfileIncomplete, "complete your profile before ordering").
			WithDetails(map[string]any{"missing": profile.Missing}).
			WithRedirect(RedirectProfile)
	}

	lines, err := s.cartLines(ctx, userID)
	if err != nil {
		return nil, err
	}
	if lines, err = s.priceLines(ctx, userID, lines, true); err != nil {
		return nil, err
	}

	zone, err := s.Zones.Resolve(ctx, req.ZoneID)
	if err != nil {
		return nil, err
	}
	method, err := enums.ParsePaymentMethod(strings.ToLower(strings.TrimSpace(req.PaymentMethod)))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method").
			WithDetails(map[string]any{"field": "payment_method"})
	}

	subtotal := pkgcheckout.Subtotal(lines)
	discount, err := s.Coupons.Apply(ctx, deref(req.CouponCode), subtotal)
	if err != nil {
		return nil, err
	}
	totals := pkgcheckout.ComputeTotals(subtotal, zone.DeliveryFee, discount.Amount)

	order := &models.Order{
		UserID:          userID,
		CustomerName:    profile.FullName,
		CustomerPhone:   strings.TrimSpace(deref(profile.Phone)),
		Subtotal:        totals.Subtotal,
		DeliveryFee:     totals.DeliveryFee,
		Discount:        totals.Discount,
		Total:           totals.Total,
		DeliveryAddress: strings.TrimSpace(deref(profile.Address)),
		LocationType:    enums.LocationType(deref(profile.LocationType)),
		DeliveryZoneID:  &zone.ID,
		DeliveryTime:    optional(req.DeliveryTime),
		PaymentMethod:   method,
		Notes:           optional(req.Notes),
		Status:          enums.OrderStatusPending,
	}
	if discount.Code != "" {
		code := discount.Code
		order.CouponCode = &code
	}

	err = s.Tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.Orders.WithTx(tx)
		if err := repo.CreateOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		items := make([]models.OrderItem, 0, len(lines))
		for _, line := range lines {
			items = append(items, models.OrderItem{
				OrderID:    order.ID,
				MenuItemID: uuid.MustParse(line.ID),
				Name:       line.Name,
				Quantity:   line.Quantity,
				UnitPrice:  line.UnitPrice,
			})
		}
		if err := repo.CreateItems(ctx, items); err != nil {
			s.compensate(ctx, repo, order.ID, err)
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order items")
		}
		order.Items = items
		return s.Outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: userID, Role: string(enums.UserRoleCustomer)},
			Data: payloads.OrderCreatedEvent{
				OrderID:   order.ID,
				UserID:    userID,
				Status:    order.Status,
				Total:     order.Total,
				ItemCount: itemCount(lines),
			},
		})
	})
	if err != nil {
		if pkgerrors.As(err) == nil {
			err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "place order")
		}
		return nil, err
	}
	order.Zone = zone

	if err := s.Cart.Clear(ctx, userID); err != nil {
		s.warn(ctx, order.ID, "cart clear after checkout failed", err)
	}
	if s.Publisher != nil {
		s.Publisher.Publish(ctx, orders.ChangeEvent{
			Type: orders.ChangeInsert, OrderID: order.ID, UserID: userID, Status: order.Status,
		})
	}
	if s.Logger != nil {
		logCtx := s.Logger.WithFields(s.Logger.WithOrderID(ctx, order.ID.String()), map[string]any{
			"total": order.Total.StringFixed(2),
			"items": len(order.Items),
		})
		s.Logger.Info(logCtx, "order placed")
	}
	return &Result{Order: orders.FromModel(*order), Redirect: RedirectOrders}, nil
}

// cartLines reads the session cart and fails with CART_EMPTY when nothing is
// in it.
func (s *service) cartLines(ctx context.Context, userID uuid.UUID) ([]pkgcheckout.Line, error) {
	items, err := s.Cart.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeCartEmpty, "your cart is empty")
	}
	lines := make([]pkgcheckout.Line, 0, len(items))
	for _, it := range items {
		lines = append(lines, pkgcheckout.Line{ID: it.ID, Name: it.Name, Quantity: it.Quantity, UnitPrice: it.Price})
	}
	return lines, nil
}

// priceLines re-reads every line from the menu, taking name and unit price
// from the stored item. Missing, malformed and unavailable lines fail with
// CART_INVALID. When void is set, a missing or malformed line also clears the
// whole cart; an unavailable dish leaves it for the customer to remove.
func (s *service) priceLines(ctx context.Context, userID uuid.UUID, lines []pkgcheckout.Line, void bool) ([]pkgcheckout.Line, error) {
	ids, err := pkgcheckout.ParseLineIDs(lines)
	if err != nil {
		if void {
			s.voidCart(ctx, userID)
		}
		return nil, err
	}

	found, err := s.Menu.FindItems(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "verify cart items")
	}
	byID := make(map[uuid.UUID]models.MenuItem, len(found))
	for _, item := range found {
		byID[item.ID] = item
	}

	priced := make([]pkgcheckout.Line, 0, len(lines))
	var invalid []pkgcheckout.InvalidLineDetail
	missing := false
	for i, id := range ids {
		item, ok := byID[id]
		switch {
		case !ok:
			missing = true
			invalid = append(invalid, pkgcheckout.InvalidLineDetail{ID: lines[i].ID, Name: lines[i].Name, Reason: "not_found"})
		case !item.IsAvailable:
			invalid = append(invalid, pkgcheckout.InvalidLineDetail{ID: lines[i].ID, Name: item.Name, Reason: "unavailable"})
		default:
			priced = append(priced, pkgcheckout.Line{ID: lines[i].ID, Name: item.Name, Quantity: lines[i].Quantity, UnitPrice: item.Price})
		}
	}
	if len(invalid) > 0 {
		if void && missing {
			s.voidCart(ctx, userID)
		}
		return nil, pkgcheckout.InvalidLines(invalid)
	}
	return priced, nil
}

func (s *service) voidCart(ctx context.Context, userID uuid.UUID) {
	if err := s.Cart.Clear(ctx, userID); err != nil {
		s.warn(ctx, uuid.Nil, "clearing invalid cart failed", err)
	}
}

// compensate removes a header whose items could not be written. Inside a
// real transaction the rollback already covers this.
func (s *service) compensate(ctx context.Context, repo orders.Repository, orderID uuid.UUID, cause error) {
	if err := repo.DeleteOrder(ctx, orderID); err != nil {
		s.warn(ctx, orderID, "order header compensation failed", err)
		return
	}
	s.warn(ctx, orderID, "order header removed after item write failure", cause)
}

func (s *service) warn(ctx context.Context, orderID uuid.UUID, msg string, err error) {
	if s.Logger == nil {
		return
	}
	if orderID != uuid.Nil {
		ctx = s.Logger.WithOrderID(ctx, orderID.String())
	}
	s.Logger.Warn(s.Logger.WithField(ctx, "reason", err.Error()), msg)
}

func itemCount(lines []pkgcheckout.Line) int {
	n := 0
	for _, line := range lines {
		n += line.Quantity
	}
	return n
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func optional(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}
