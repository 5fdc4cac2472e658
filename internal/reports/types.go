package reports

import "github.com/shopspring/decimal"

// Period selects how far back the totals reach.
type Period string

const (
	Period7Days  Period = "7d"
	Period30Days Period = "30d"
	PeriodAll    Period = "all"
)

func (p Period) IsValid() bool {
	switch p {
	case Period7Days, Period30Days, PeriodAll:
		return true
	}
	return false
}

// DayPoint aggregates a calendar day (YYYY-MM-DD).
type DayPoint struct {
	Date    string          `json:"date"`
	Orders  int64           `json:"orders"`
	Revenue decimal.Decimal `json:"revenue"`
}

// HourPoint counts orders placed within an hour of the day ("HH:00").
type HourPoint struct {
	Hour   string `json:"hour"`
	Orders int64  `json:"orders"`
}

type ZoneStat struct {
	Name    string          `json:"name"`
	Orders  int64           `json:"orders"`
	Revenue decimal.Decimal `json:"revenue"`
}

type DishStat struct {
	Name     string `json:"name"`
	Quantity int64  `json:"quantity"`
}

// Summary is the admin dashboard report.
type Summary struct {
	Period       Period          `json:"period"`
	TodayOrders  int64           `json:"today_orders"`
	TodayRevenue decimal.Decimal `json:"today_revenue"`
	TotalOrders  int64           `json:"total_orders"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
	ByDay        []DayPoint      `json:"by_day"`
	PeakHours    []HourPoint     `json:"peak_hours"`
	Zones        []ZoneStat      `json:"zones"`
	TopDishes    []DishStat      `json:"top_dishes"`
}
