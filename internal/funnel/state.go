package funnel

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/ecomgen/internal/model"
)

// Terminal is the state a customer's visit sequence ends in.
type Terminal int

const (
	// Exhausted means the next visit would fall past the horizon.
	Exhausted Terminal = iota
	// Churned means the customer went dormant and was not reactivated.
	Churned
)

// String returns the terminal state name used in logs.
func (t Terminal) String() string {
	if t == Churned {
		return "churned"
	}
	return "exhausted"
}

// Result is everything one customer's simulation produced.
type Result struct {
	CustomerID string
	Carts      []model.ShoppingCart
	CartItems  []model.CartItem
	Orders     []model.Order
	OrderItems []model.OrderItem

	// Spend is the cumulative net total of the customer's orders.
	Spend decimal.Decimal

	Terminal Terminal
}

// state is the running state of one customer.
type state struct {
	// day is midnight UTC of the day the next visit happens.
	day time.Time

	// last is the latest timestamp emitted for the customer.
	last time.Time

	visit       int
	spend       decimal.Decimal
	reactivated bool
}

// advance records t as emitted, keeping last non-decreasing.
func (s *state) advance(t time.Time) {
	if t.After(s.last) {
		s.last = t
	}
}

// MaxDelayDays returns the longest delay, in whole days after the day of
// last, that still schedules a visit before end. It is negative when no
// further visit fits.
func MaxDelayDays(last, end time.Time) int {
	return int(dayOf(end).Sub(dayOf(last))/(24*time.Hour)) - 1
}

// dayOf truncates t to midnight UTC.
func dayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
