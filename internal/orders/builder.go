// Package orders materializes converted carts into orders and draws the
// returns placed against them.
//
// All money arithmetic is done in decimal cents. The order identities
//
//	gross_total = Σ line_total
//	net_total   = gross_total − total_discount_amount
//	Σ line discount_amount = total_discount_amount
//
// hold exactly, so a full return refunds exactly net_total.
package orders

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/ecomgen/internal/config"
	"github.com/roach88/ecomgen/internal/generr"
	"github.com/roach88/ecomgen/internal/lookup"
	"github.com/roach88/ecomgen/internal/model"
	"github.com/roach88/ecomgen/internal/rules"
)

// maxPaymentRedraws bounds redraws of a payment method the order channel
// does not allow before falling back to the allowed subset.
const maxPaymentRedraws = 8

// Conversion is everything the builder needs to turn a cart into an order.
type Conversion struct {
	Customer    model.Customer
	Cart        model.ShoppingCart
	Items       []model.CartItem
	Visit       int
	Reactivated bool

	// End is the first instant after the simulated horizon.
	End time.Time
}

// Builder turns converted carts into orders.
type Builder struct {
	params   *config.Parameters
	agents   []config.Agent
	products *lookup.ProductIndex
}

// NewBuilder validates the order tables once so Build only fails on
// genuinely inconsistent input.
func NewBuilder(cfg *config.Config, products *lookup.ProductIndex) (*Builder, error) {
	p := &cfg.Parameters
	if err := p.OrderChannelDistribution.Check("parameters.order_channel_distribution"); err != nil {
		return nil, err
	}
	if err := p.GlobalPaymentMethodDistribution.Check("parameters.global_payment_method_distribution"); err != nil {
		return nil, err
	}
	if err := p.ShippingSpeedDistribution.Check("parameters.shipping_speed_distribution"); err != nil {
		return nil, err
	}
	if _, ok := p.ProcessingFees[config.DefaultKey]; !ok {
		return nil, generr.NewConfigurationError("parameters.processing_fees", "default entry is required")
	}
	return &Builder{params: p, agents: cfg.Vocab.Agents, products: products}, nil
}

// Build materializes the order for conv. Draws come from r, the owning
// customer's stream. The tier and CLV snapshot fields are left for the
// caller, which knows the customer's running spend.
func (b *Builder) Build(r *rand.Rand, conv Conversion) (model.Order, []model.OrderItem, error) {
	if len(conv.Items) == 0 {
		return model.Order{}, nil, &generr.SimulationInvariantError{
			Invariant:  "converted cart has items",
			CustomerID: conv.Customer.CustomerID,
			Details:    map[string]string{"cart_id": conv.Cart.CartID},
		}
	}
	p := b.params

	channel, err := rules.SampleWeighted(r, p.OrderChannelDistribution)
	if err != nil {
		return model.Order{}, nil, fmt.Errorf("order channel: %w", err)
	}
	payment, err := b.paymentMethod(r, channel)
	if err != nil {
		return model.Order{}, nil, err
	}
	speed, err := rules.SampleWeighted(r, p.ShippingSpeedDistribution)
	if err != nil {
		return model.Order{}, nil, fmt.Errorf("shipping speed: %w", err)
	}
	shipping := model.Cents(decimal.NewFromFloat(p.ShippingCosts[speed]))
	expedited := rules.Bernoulli(r, p.ExpeditedPct/100)

	agent, err := assignAgent(r, b.agents, channel)
	if err != nil {
		return model.Order{}, nil, err
	}

	orderID := model.OrderID(conv.Customer.CustomerID, conv.Visit)
	lines := make([]model.OrderItem, len(conv.Items))
	gross := decimal.Zero
	units := 0
	last := conv.Cart.CreatedAt
	for i, it := range conv.Items {
		prod, ok := b.products.Get(it.ProductID)
		if !ok {
			return model.Order{}, nil, fmt.Errorf("order %s: unknown product %q", orderID, it.ProductID)
		}
		total := it.LineTotal()
		lines[i] = model.OrderItem{
			OrderItemID: model.OrderItemID(orderID, i+1),
			OrderID:     orderID,
			LineNumber:  i + 1,
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Category:    it.Category,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			CostPrice:   prod.CostPrice,
			LineTotal:   total,
		}
		gross = gross.Add(total)
		units += it.Quantity
		if it.AddedAt.After(last) {
			last = it.AddedAt
		}
	}

	discount := decimal.Zero
	if rules.Bernoulli(r, p.DiscountSettings.Probability) {
		pct := rules.UniformFloat(r, p.DiscountSettings.PctRange.Lo(), p.DiscountSettings.PctRange.Hi())
		discount = model.Cents(gross.Mul(decimal.NewFromFloat(pct)))
	}
	AllocateDiscount(lines, discount)
	net := gross.Sub(discount)

	fee, _ := config.Keyed(p.ProcessingFees, payment)
	processing := model.Cents(net.Add(shipping).Mul(decimal.NewFromFloat(fee.Rate)).Add(decimal.NewFromFloat(fee.Fixed)))

	orderDate := Before(last.Add(time.Duration(rules.UniformInt(r, 1, 20))*time.Minute), conv.End)

	order := model.Order{
		OrderID:             orderID,
		CartID:              conv.Cart.CartID,
		CustomerID:          conv.Customer.CustomerID,
		OrderDate:           orderDate,
		OrderChannel:        channel,
		PaymentMethod:       payment,
		ShippingSpeed:       speed,
		IsExpedited:         expedited,
		AgentID:             agent,
		TotalItems:          units,
		GrossTotal:          gross,
		TotalDiscountAmount: discount,
		NetTotal:            net,
		ShippingCost:        shipping,
		ProcessingFee:       processing,
		IsReactivated:       conv.Reactivated,
	}
	return order, lines, nil
}

// paymentMethod draws from the global distribution, redrawing methods the
// channel does not allow. After maxPaymentRedraws misses it draws from the
// allowed subset directly, and from the allowed list uniformly when the
// global distribution gives that subset no weight.
func (b *Builder) paymentMethod(r *rand.Rand, channel string) (string, error) {
	rule := b.params.ChannelRules[channel]
	for i := 0; i < maxPaymentRedraws; i++ {
		m, err := rules.SampleWeighted(r, b.params.GlobalPaymentMethodDistribution)
		if err != nil {
			return "", fmt.Errorf("payment method: %w", err)
		}
		if rule.Allows(m) {
			return m, nil
		}
	}
	if m, ok := rules.SampleWeightedExcept(r, b.params.GlobalPaymentMethodDistribution, rule.Allows); ok {
		return m, nil
	}
	if len(rule.AllowedPaymentMethods) == 0 {
		return "", generr.NewConfigurationError("parameters.channel_rules."+channel, "no payment method available")
	}
	return rules.Pick(r, rule.AllowedPaymentMethods), nil
}

// assignAgent picks a human agent for Phone traffic and ONLINE otherwise.
func assignAgent(r *rand.Rand, agents []config.Agent, channel string) (string, error) {
	if channel != config.PhoneChannel {
		return model.OnlineAgent, nil
	}
	if len(agents) == 0 {
		return "", generr.NewConfigurationError("vocab.agent_pool", "agent pool is empty but channel is %s", channel)
	}
	return rules.Pick(r, agents).ID, nil
}

// AllocateDiscount spreads discount over the lines in proportion to their
// line totals. Every share is truncated to cents; the remainder goes to the
// largest line so no share exceeds its line and the shares sum exactly to
// discount.
func AllocateDiscount(lines []model.OrderItem, discount decimal.Decimal) {
	gross := decimal.Zero
	for _, l := range lines {
		gross = gross.Add(l.LineTotal)
	}
	for i := range lines {
		lines[i].DiscountAmount = decimal.Zero
	}
	if len(lines) == 0 || !discount.IsPositive() || !gross.IsPositive() {
		return
	}

	largest := 0
	allocated := decimal.Zero
	for i, l := range lines {
		if l.LineTotal.GreaterThan(lines[largest].LineTotal) {
			largest = i
		}
		share := discount.Mul(l.LineTotal).Div(gross).Truncate(2)
		lines[i].DiscountAmount = share
		allocated = allocated.Add(share)
	}
	lines[largest].DiscountAmount = lines[largest].DiscountAmount.Add(discount.Sub(allocated))
}

// Before returns t, pulled back to the last minute of the horizon when it
// falls at or after end.
func Before(t, end time.Time) time.Time {
	if end.IsZero() || t.Before(end) {
		return t
	}
	return end.Add(-time.Minute)
}
