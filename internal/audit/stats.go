package audit

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/roach88/ecomgen/internal/config"
	"github.com/roach88/ecomgen/internal/funnel"
	"github.com/roach88/ecomgen/internal/generr"
	"github.com/roach88/ecomgen/internal/model"
	"github.com/roach88/ecomgen/internal/orders"
	"github.com/roach88/ecomgen/internal/rules"
)

// rateCheck compares an observed proportion with its expectation.
type rateCheck struct {
	name     string
	unit     string
	n        int     // trials
	hits     int     // successes
	expected float64 // mean success probability
	variance float64 // Σ p(1-p) over the trials
	epsilon  float64
}

// evaluate records the check. The band is max(epsilon, z·σ) where σ is the
// standard deviation of the observed proportion; trials fewer than minN
// are reported as a skipped pass.
func (c rateCheck) evaluate(r *Report, z float64, minN int) {
	if c.n == 0 || c.n < minN {
		r.pass(Statistical, c.name, "skipped: %d %s (minimum %d)", c.n, c.unit, minN)
		return
	}
	observed := float64(c.hits) / float64(c.n)
	tol := math.Max(c.epsilon, z*math.Sqrt(c.variance)/float64(c.n))
	msg := fmt.Sprintf("observed %.4f expected %.4f ±%.4f over %d %s", observed, c.expected, tol, c.n, c.unit)
	if math.Abs(observed-c.expected) <= tol {
		r.pass(Statistical, c.name, "%s", msg)
		return
	}
	r.deviation(&generr.StatisticalWarning{
		Check:     c.name,
		Observed:  observed,
		Expected:  c.expected,
		Tolerance: tol,
	}, "%s", msg)
}

// customerIDs returns the IDs of customers with visits in sorted order so
// check output is stable.
func (ix *index) customerIDs() []string {
	ids := make([]string, 0, len(ix.cartsByCustomer))
	for id := range ix.cartsByCustomer {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// checkConversion compares converted carts with the conversion rate each
// cart was drawn against, first-cart boost included.
func checkConversion(r *Report, cfg *config.Config, ix *index) {
	p := &cfg.Parameters
	c := rateCheck{name: "conversion_rate", unit: "carts", epsilon: cfg.Validation.ConversionEpsilon}
	sum := 0.0
	for _, id := range ix.customerIDs() {
		cust := ix.customers[id]
		for i, cart := range ix.cartsByCustomer[id] {
			rate := p.ConversionRate
			if i == 0 && p.FirstPurchaseConversionBoost.Applies(cust.SignupChannel) {
				rate += p.FirstPurchaseConversionBoost.Boost
			}
			rate = rules.Clamp01(rate)
			c.n++
			sum += rate
			c.variance += rate * (1 - rate)
			if cart.Status == model.CartConverted {
				c.hits++
			}
		}
	}
	if c.n > 0 {
		c.expected = sum / float64(c.n)
	}
	c.evaluate(r, cfg.Validation.ZScore, cfg.Validation.MinSegmentSize)
}

// checkEmptied compares the emptied share of unconverted carts with
// abandoned_cart_emptied_prob.
func checkEmptied(r *Report, cfg *config.Config, ds *model.Dataset) {
	prob := rules.Clamp01(cfg.Parameters.AbandonedCartEmptiedProb)
	c := rateCheck{name: "emptied_share", unit: "unconverted carts", expected: prob, epsilon: cfg.Validation.EmptiedEpsilon}
	for _, cart := range ds.Carts {
		if cart.Status == model.CartConverted {
			continue
		}
		c.n++
		if cart.Status == model.CartEmptied {
			c.hits++
		}
	}
	c.variance = float64(c.n) * prob * (1 - prob)
	c.evaluate(r, cfg.Validation.ZScore, cfg.Validation.MinSegmentSize)
}

// checkRepeat compares, per (signup channel, initial tier) segment, the
// share of visits followed by another visit with the rate model.
func checkRepeat(r *Report, cfg *config.Config, ix *index, rm RateModel, end time.Time) {
	type acc struct {
		seg  Segment
		hits int
	}
	segs := map[string]*acc{}
	for _, id := range ix.customerIDs() {
		cust := ix.customers[id]
		key := cust.SignupChannel + "/" + tierLabel(cust.InitialLoyaltyTier)
		a, ok := segs[key]
		if !ok {
			a = &acc{seg: Segment{Channel: cust.SignupChannel, Tier: cust.InitialLoyaltyTier}}
			segs[key] = a
		}
		carts := ix.cartsByCustomer[id]
		for i, cart := range carts {
			a.seg.Horizons = append(a.seg.Horizons, funnel.MaxDelayDays(ix.lastEvent(cart), end))
			if i < len(carts)-1 {
				a.hits++
			}
		}
	}

	keys := make([]string, 0, len(segs))
	for k := range segs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		a := segs[k]
		n := len(a.seg.Horizons)
		c := rateCheck{
			name:     "repeat_rate/" + k,
			unit:     "visits",
			n:        n,
			hits:     a.hits,
			expected: rm.ExpectedRate(a.seg, n),
			epsilon:  cfg.Validation.RepeatEpsilon,
		}
		for i := range a.seg.Horizons {
			one := Segment{Channel: a.seg.Channel, Tier: a.seg.Tier, Horizons: a.seg.Horizons[i : i+1]}
			e := rm.ExpectedRate(one, 1)
			c.variance += e * (1 - e)
		}
		c.evaluate(r, cfg.Validation.ZScore, cfg.Validation.MinSegmentSize)
	}
}

func tierLabel(tier string) string {
	if tier == "" {
		return "none"
	}
	return tier
}

// checkReturnRate compares returned orders with the return probability each
// order was drawn against.
func checkReturnRate(r *Report, cfg *config.Config, ds *model.Dataset, ix *index) {
	returned := make(map[string]bool, len(ds.Returns))
	for _, ret := range ds.Returns {
		returned[ret.OrderID] = true
	}
	c := rateCheck{name: "return_rate", unit: "orders", epsilon: cfg.Validation.ReturnEpsilon}
	sum := 0.0
	for _, o := range ds.Orders {
		cust := ix.customers[o.CustomerID]
		prob := orders.ReturnProbability(&cfg.Parameters, cust.SignupChannel, ix.linesByOrder[o.OrderID])
		c.n++
		sum += prob
		c.variance += prob * (1 - prob)
		if returned[o.OrderID] {
			c.hits++
		}
	}
	if c.n > 0 {
		c.expected = sum / float64(c.n)
	}
	c.evaluate(r, cfg.Validation.ZScore, cfg.Validation.MinSegmentSize)
}
