package orders

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/ecomgen/internal/config"
	"github.com/roach88/ecomgen/internal/generr"
	"github.com/roach88/ecomgen/internal/lookup"
	"github.com/roach88/ecomgen/internal/model"
	"github.com/roach88/ecomgen/internal/rules"
)

// CustomerLookup resolves the customer who placed an order.
type CustomerLookup interface {
	Get(id string) (model.Customer, bool)
}

var _ CustomerLookup = (*lookup.CustomerIndex)(nil)

// ReturnsGenerator draws at most one return per order.
//
// Each order draws from its own stream keyed by order ID, so whether and
// how an order is returned never depends on the other orders.
type ReturnsGenerator struct {
	seed   uint64
	params *config.Parameters
	vocab  *config.Vocab
	end    time.Time
}

// NewReturnsGenerator validates the return tables once.
func NewReturnsGenerator(cfg *config.Config) (*ReturnsGenerator, error) {
	p := &cfg.Parameters
	if _, ok := p.RefundBehaviorByReason[config.DefaultKey]; !ok {
		return nil, generr.NewConfigurationError("parameters.refund_behavior_by_reason", "default entry is required")
	}
	if _, ok := p.BaselineReturnReasonWeights[config.DefaultKey]; !ok {
		return nil, generr.NewConfigurationError("parameters.baseline_return_reason_weights", "default entry is required")
	}
	if err := p.ReturnTimingDistribution.Check("parameters.return_timing_distribution"); err != nil {
		return nil, err
	}
	if len(cfg.Vocab.ReturnChannels) == 0 {
		return nil, generr.NewConfigurationError("vocab.return_channels", "at least one return channel is required")
	}
	return &ReturnsGenerator{seed: cfg.Seed, params: p, vocab: &cfg.Vocab, end: cfg.End()}, nil
}

// ReturnProbability is the probability that an order is returned:
// the signup channel's base rate times the largest category multiplier
// among the order's lines, clamped to [0, 1].
func ReturnProbability(p *config.Parameters, signupChannel string, lines []model.OrderItem) float64 {
	base, _ := config.Keyed(p.ReturnRateBySignupChannel, signupChannel)
	mult := 0.0
	for _, l := range lines {
		m, ok := config.Keyed(p.CategoryReturnRates, strings.ToLower(l.Category))
		if !ok {
			m = 1
		}
		if m > mult {
			mult = m
		}
	}
	return rules.Clamp01(base * mult)
}

// Generate draws returns for every order. Results follow the order of
// orders; lines must hold every order's items.
func (g *ReturnsGenerator) Generate(orders []model.Order, lines []model.OrderItem, customers CustomerLookup) ([]model.Return, []model.ReturnItem, error) {
	byOrder := make(map[string][]model.OrderItem, len(orders))
	for _, l := range lines {
		byOrder[l.OrderID] = append(byOrder[l.OrderID], l)
	}

	var (
		returns []model.Return
		items   []model.ReturnItem
	)
	for _, o := range orders {
		c, ok := customers.Get(o.CustomerID)
		if !ok {
			return nil, nil, fmt.Errorf("order %s: unknown customer %q", o.OrderID, o.CustomerID)
		}
		ret, retItems, err := g.ForOrder(o, byOrder[o.OrderID], c)
		if err != nil {
			return nil, nil, fmt.Errorf("order %s: %w", o.OrderID, err)
		}
		if ret == nil {
			continue
		}
		returns = append(returns, *ret)
		items = append(items, retItems...)
	}
	return returns, items, nil
}

// ForOrder decides whether order is returned and, if so, builds the return.
// It returns a nil Return when the order is kept.
func (g *ReturnsGenerator) ForOrder(order model.Order, lines []model.OrderItem, customer model.Customer) (*model.Return, []model.ReturnItem, error) {
	if len(lines) == 0 {
		return nil, nil, nil
	}
	p := g.params
	r := rules.Stream(g.seed, "return/"+order.OrderID)

	if !rules.Bernoulli(r, ReturnProbability(p, customer.SignupChannel, lines)) {
		return nil, nil, nil
	}

	primary := strings.ToLower(lines[0].Category)
	weights, _ := config.Keyed(p.BaselineReturnReasonWeights, primary)
	reason, err := rules.SampleWeighted(r, weights)
	if err != nil {
		return nil, nil, fmt.Errorf("return reason: %w", err)
	}
	behavior, _ := config.Keyed(p.RefundBehaviorByReason, reason)

	returnDate, err := g.returnDate(r, order.OrderDate)
	if err != nil {
		return nil, nil, err
	}

	channel := g.returnChannel(r, order.OrderChannel)
	agent, err := assignAgent(r, g.vocab.Agents, channel)
	if err != nil {
		return nil, nil, err
	}

	returnType := model.ReturnFull
	picked := lines
	qty := make([]int, len(lines))
	for i, l := range lines {
		qty[i] = l.Quantity
	}
	if !rules.Bernoulli(r, behavior.FullReturnProb) {
		returnType = model.ReturnPartial
		picked, qty = partialLines(r, lines, behavior.PartialQuantityProb)
	}

	id := model.ReturnID(order.OrderID)
	ret := &model.Return{
		ReturnID:      id,
		OrderID:       order.OrderID,
		CustomerID:    order.CustomerID,
		ReturnDate:    returnDate,
		Reason:        reason,
		ReturnType:    returnType,
		ReturnChannel: channel,
		AgentID:       agent,
		RefundMethod:  RefundMethod(order.PaymentMethod),
	}

	items := make([]model.ReturnItem, len(picked))
	total := decimal.Zero
	for i, l := range picked {
		refund := LineRefund(l, qty[i])
		items[i] = model.ReturnItem{
			ReturnItemID:     model.ReturnItemID(id, i+1),
			ReturnID:         id,
			OrderID:          order.OrderID,
			OrderItemID:      l.OrderItemID,
			ProductID:        l.ProductID,
			QuantityReturned: qty[i],
			UnitPrice:        l.UnitPrice,
			RefundedAmount:   refund,
		}
		total = total.Add(refund)
	}
	ret.RefundedAmount = total
	return ret, items, nil
}

// partialLines picks a non-empty proper subset of lines (the single line
// of a one-line order) and, with partialQtyProb, returns fewer units than
// were ordered on lines holding more than one.
func partialLines(r *rand.Rand, lines []model.OrderItem, partialQtyProb float64) ([]model.OrderItem, []int) {
	picked := lines
	if len(lines) > 1 {
		k := rules.UniformInt(r, 1, len(lines)-1)
		perm := r.Perm(len(lines))[:k]
		// Keep line order stable in the output.
		keep := make([]bool, len(lines))
		for _, i := range perm {
			keep[i] = true
		}
		picked = make([]model.OrderItem, 0, k)
		for i, l := range lines {
			if keep[i] {
				picked = append(picked, l)
			}
		}
	}

	qty := make([]int, len(picked))
	for i, l := range picked {
		qty[i] = l.Quantity
		if l.Quantity > 1 && rules.Bernoulli(r, partialQtyProb) {
			qty[i] = rules.UniformInt(r, 1, l.Quantity-1)
		}
	}
	return picked, qty
}

// LineRefund is the refund for returning qty units of a line: its net value
// pro rata, rounded to cents. Returning every unit refunds the net value
// exactly.
func LineRefund(l model.OrderItem, qty int) decimal.Decimal {
	if qty >= l.Quantity {
		return l.NetValue()
	}
	return model.Cents(l.NetValue().Mul(decimal.NewFromInt(int64(qty))).Div(decimal.NewFromInt(int64(l.Quantity))))
}

// returnDate draws a bucket from return_timing_distribution, then a day
// uniformly inside it. Dates past the horizon are pulled back to its last
// minute, never before the order.
func (g *ReturnsGenerator) returnDate(r *rand.Rand, ordered time.Time) (time.Time, error) {
	key, err := rules.SampleWeighted(r, g.params.ReturnTimingDistribution)
	if err != nil {
		return time.Time{}, fmt.Errorf("return timing: %w", err)
	}
	bucket, err := config.ReturnBucketFor(key)
	if err != nil {
		return time.Time{}, generr.NewConfigurationError("parameters.return_timing_distribution", "%v", err)
	}
	days := rules.UniformInt(r, bucket.Lo+1, bucket.Hi)
	d := Before(ordered.AddDate(0, 0, days), g.end)
	if d.Before(ordered) {
		d = ordered
	}
	return d, nil
}

// returnChannel follows the order channel's preference with
// return_channel_preference_prob, otherwise picks uniformly.
func (g *ReturnsGenerator) returnChannel(r *rand.Rand, orderChannel string) string {
	pref := g.params.ChannelRules[orderChannel].ReturnChannelPreference
	if pref != "" && rules.Bernoulli(r, g.params.ReturnChannelPreferenceProb) {
		return pref
	}
	return rules.Pick(r, g.vocab.ReturnChannels)
}

// RefundMethod maps the payment method of an order to the instrument its
// refund is paid to.
func RefundMethod(payment string) string {
	switch payment {
	case "PayPal":
		return "PayPal"
	case "Credit Card", "Apple Pay", "Google Pay":
		return "Credit Card"
	case "ACH":
		return "ACH"
	case "Cash":
		return "Cash"
	case "Ebay", "NewEgg":
		return payment
	default:
		return "Unknown"
	}
}
