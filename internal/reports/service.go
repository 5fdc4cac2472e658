package reports

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/foodorder-backend/pkg/db/models"
	"github.com/angelmondragon/foodorder-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/foodorder-backend/pkg/errors"
)

const topDishLimit = 5

type orderSource interface {
	ListSince(ctx context.Context, since *time.Time) ([]models.Order, error)
}

// Service builds admin reports.
type Service interface {
	Build(ctx context.Context, period Period, now time.Time) (*Summary, error)
}

type service struct {
	orders orderSource
	loc    *time.Location
}

// NewService builds the report service. Days and hours are bucketed in loc,
// or UTC when loc is nil.
func NewService(orders orderSource, loc *time.Location) (Service, error) {
	if orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "orders repository required")
	}
	if loc == nil {
		loc = time.UTC
	}
	return &service{orders: orders, loc: loc}, nil
}

func (s *service) Build(ctx context.Context, period Period, now time.Time) (*Summary, error) {
	if period == "" {
		period = Period7Days
	}
	if !period.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid period").
			WithDetails(map[string]any{"field": "period", "allowed": []Period{Period7Days, Period30Days, PeriodAll}})
	}

	now = now.In(s.loc)
	today := startOfDay(now)
	since := periodStart(period, today)

	rows, err := s.orders.ListSince(ctx, utcPtr(since))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load orders")
	}

	summary := &Summary{Period: period, TodayRevenue: decimal.Zero, TotalRevenue: decimal.Zero}
	days := map[string]*DayPoint{}
	hours := [24]int64{}
	zones := map[uuid.UUID]*ZoneStat{}
	dishes := map[string]int64{}

	for _, order := range rows {
		placed := order.CreatedAt.In(s.loc)
		revenue := orderRevenue(order)

		if !placed.Before(today) {
			summary.TodayOrders++
			summary.TodayRevenue = summary.TodayRevenue.Add(revenue)
		}
		summary.TotalOrders++
		summary.TotalRevenue = summary.TotalRevenue.Add(revenue)

		key := placed.Format(time.DateOnly)
		day, ok := days[key]
		if !ok {
			day = &DayPoint{Date: key, Revenue: decimal.Zero}
			days[key] = day
		}
		day.Orders++
		day.Revenue = day.Revenue.Add(revenue)

		hours[placed.Hour()]++

		if order.Zone != nil {
			zone, ok := zones[order.Zone.ID]
			if !ok {
				zone = &ZoneStat{Name: order.Zone.Name, Revenue: decimal.Zero}
				zones[order.Zone.ID] = zone
			}
			zone.Orders++
			zone.Revenue = zone.Revenue.Add(revenue)
		}

		if order.Status == enums.OrderStatusCancelled {
			continue
		}
		for _, item := range order.Items {
			dishes[item.Name] += int64(item.Quantity)
		}
	}

	summary.ByDay = sortedDays(days)
	summary.PeakHours = peakHours(hours)
	summary.Zones = sortedZones(zones)
	summary.TopDishes = topDishes(dishes, topDishLimit)
	return summary, nil
}

// orderRevenue is the order total, or zero for cancelled orders.
func orderRevenue(order models.Order) decimal.Decimal {
	if order.Status == enums.OrderStatusCancelled {
		return decimal.Zero
	}
	return order.Total
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// periodStart counts today as the last day of the period.
func periodStart(period Period, today time.Time) *time.Time {
	var start time.Time
	switch period {
	case Period7Days:
		start = today.AddDate(0, 0, -6)
	case Period30Days:
		start = today.AddDate(0, 0, -29)
	default:
		return nil
	}
	return &start
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func sortedDays(days map[string]*DayPoint) []DayPoint {
	out := make([]DayPoint, 0, len(days))
	for _, day := range days {
		out = append(out, *day)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

func peakHours(hours [24]int64) []HourPoint {
	out := []HourPoint{}
	for hour, count := range hours {
		if count == 0 {
			continue
		}
		out = append(out, HourPoint{Hour: fmt.Sprintf("%02d:00", hour), Orders: count})
	}
	return out
}

func sortedZones(zones map[uuid.UUID]*ZoneStat) []ZoneStat {
	out := make([]ZoneStat, 0, len(zones))
	for _, zone := range zones {
		if zone.Orders == 0 {
			continue
		}
		out = append(out, *zone)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Revenue.Cmp(out[j].Revenue); c != 0 {
			return c > 0
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func topDishes(dishes map[string]int64, limit int) []DishStat {
	out := make([]DishStat, 0, len(dishes))
	for name, qty := range dishes {
		out = append(out, DishStat{Name: name, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Quantity != out[j].Quantity {
			return out[i].Quantity > out[j].Quantity
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
