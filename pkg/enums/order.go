package enums

// OrderStatus tracks an order from checkout to hand-off.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusPreparing  OrderStatus = "preparing"
	OrderStatusDelivering OrderStatus = "delivering"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

var orderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusPreparing,
	OrderStatusDelivering,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// Delivered and cancelled have no successors.
var nextOrderStatuses = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:  {OrderStatusPreparing, OrderStatusCancelled},
	OrderStatusPreparing:  {OrderStatusDelivering},
	OrderStatusDelivering: {OrderStatusDelivered},
}

func (s OrderStatus) String() string { return string(s) }
func (s OrderStatus) IsValid() bool  { return oneOf(s, orderStatuses) }

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	return oneOf(next, nextOrderStatuses[s])
}

func ParseOrderStatus(value string) (OrderStatus, error) {
	return parse("order status", value, orderStatuses)
}

// PaymentMethod is how the customer settles on delivery.
type PaymentMethod string

const (
	PaymentMethodCard PaymentMethod = "card"
	PaymentMethodCash PaymentMethod = "cash"
)

var paymentMethods = []PaymentMethod{PaymentMethodCard, PaymentMethodCash}

func (p PaymentMethod) String() string { return string(p) }
func (p PaymentMethod) IsValid() bool  { return oneOf(p, paymentMethods) }

func ParsePaymentMethod(value string) (PaymentMethod, error) {
	return parse("payment method", value, paymentMethods)
}

// DiscountType selects how a coupon value is read: a percentage of the
// subtotal or a fixed amount.
type DiscountType string

const (
	DiscountTypePercentage DiscountType = "percentage"
	DiscountTypeFixed      DiscountType = "fixed"
)

var discountTypes = []DiscountType{DiscountTypePercentage, DiscountTypeFixed}

func (d DiscountType) String() string { return string(d) }
func (d DiscountType) IsValid() bool  { return oneOf(d, discountTypes) }

func ParseDiscountType(value string) (DiscountType, error) {
	return parse("discount type", value, discountTypes)
}
