package funnel

import (
	"strconv"

	"github.com/roach88/ecomgen/internal/generr"
)

// VisitQuota bounds the number of visits simulated for one customer.
//
// The horizon and the one-day minimum delay already bound a customer's
// visits; the quota turns a broken bound into an error instead of an
// unbounded loop.
type VisitQuota struct {
	customerID string
	max        int
	current    int
}

// NewVisitQuota creates a quota of max visits for a customer.
// max <= 0 disables the quota.
func NewVisitQuota(customerID string, max int) *VisitQuota {
	return &VisitQuota{customerID: customerID, max: max}
}

// Check counts one visit and fails once the quota is exceeded.
func (q *VisitQuota) Check() error {
	q.current++
	if q.max > 0 && q.current > q.max {
		return &generr.SimulationInvariantError{
			Invariant:  "visits per customer within quota",
			CustomerID: q.customerID,
			Details: map[string]string{
				"visits": strconv.Itoa(q.current),
				"limit":  strconv.Itoa(q.max),
			},
		}
	}
	return nil
}

// Current returns the number of visits counted so far.
func (q *VisitQuota) Current() int {
	return q.current
}
