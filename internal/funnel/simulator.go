package funnel

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/ecomgen/internal/config"
	"github.com/roach88/ecomgen/internal/generr"
	"github.com/roach88/ecomgen/internal/lookup"
	"github.com/roach88/ecomgen/internal/model"
	"github.com/roach88/ecomgen/internal/orders"
	"github.com/roach88/ecomgen/internal/rules"
)

// Session bounds: carts are created between 08:00 and 21:59 UTC.
const (
	sessionFirstHour = 8
	sessionLastHour  = 21
)

// Item timing: consecutive items are added 1 to 15 minutes apart.
const (
	itemGapMin = 1
	itemGapMax = 15
)

// Option configures a Simulator.
type Option func(*Simulator)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Simulator) {
		s.logger = logger
	}
}

// WithWorkers overrides simulation.workers.
func WithWorkers(n int) Option {
	return func(s *Simulator) {
		s.workers = n
	}
}

// Simulator runs the purchase funnel for every customer.
//
// Customers are independent: each draws from its own stream keyed by its
// ID, and workers share only the read-only lookup tables. Run merges the
// per-customer results in customer order, so the output does not depend
// on the number of workers.
type Simulator struct {
	cfg       *config.Config
	customers *lookup.CustomerIndex
	products  *lookup.ProductIndex
	builder   *orders.Builder
	tiers     *rules.Ladder
	clv       *rules.Ladder
	workers   int
	logger    *slog.Logger
}

// New prepares a simulator. Tables and ladders are validated here so a
// run fails before the first customer on bad configuration.
func New(cfg *config.Config, tables *lookup.Tables, opts ...Option) (*Simulator, error) {
	builder, err := orders.NewBuilder(cfg, tables.Products)
	if err != nil {
		return nil, err
	}
	tiers, err := cfg.TierLadder()
	if err != nil {
		return nil, err
	}
	clv, err := cfg.CLVLadder()
	if err != nil {
		return nil, err
	}
	if !cfg.Parameters.TimeToFirstCartDays.Valid() {
		return nil, generr.NewConfigurationError("parameters.time_to_first_cart_days", "expected [lo, hi] with lo <= hi")
	}

	s := &Simulator{
		cfg:       cfg,
		customers: tables.Customers,
		products:  tables.Products,
		builder:   builder,
		tiers:     tiers,
		clv:       clv,
		workers:   cfg.Simulation.Workers,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.workers < 1 {
		s.workers = 1
	}
	return s, nil
}

// Ladders returns the tier and CLV ladders the simulator snapshots with.
func (s *Simulator) Ladders() (tiers, clv *rules.Ladder) {
	return s.tiers, s.clv
}

// Run simulates every customer and returns the results in customer order.
// The first error cancels the remaining work.
func (s *Simulator) Run(ctx context.Context) ([]Result, error) {
	n := s.customers.Len()
	results := make([]Result, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := s.Customer(s.customers.At(i))
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	carts, ordersN := 0, 0
	for i := range results {
		carts += len(results[i].Carts)
		ordersN += len(results[i].Orders)
	}
	s.logger.Info("funnel simulated",
		"customers", n,
		"carts", carts,
		"orders", ordersN,
		"workers", s.workers,
	)
	return results, nil
}

// Customer simulates one customer's visits until the horizon is exhausted
// or the customer churns.
func (s *Simulator) Customer(c model.Customer) (Result, error) {
	p := &s.cfg.Parameters
	end := s.cfg.End()
	r := rules.Stream(s.cfg.Seed, "funnel/"+c.CustomerID)
	quota := NewVisitQuota(c.CustomerID, s.cfg.Simulation.MaxVisitsPerCustomer)

	res := Result{CustomerID: c.CustomerID}
	st := &state{
		day:   dayOf(c.SignupDate.AddDate(0, 0, p.TimeToFirstCartDays.Draw(r))),
		last:  c.SignupDate,
		spend: decimal.Zero,
	}

	behavior, err := p.CartBehaviorByTier.Resolve("cart_behavior_by_tier", c.SignupChannel, c.InitialLoyaltyTier)
	if err != nil {
		return Result{}, err
	}
	categories, err := p.CategoryPreferenceByChannel.Resolve("category_preference_by_channel", c.SignupChannel, c.InitialLoyaltyTier)
	if err != nil {
		return Result{}, err
	}
	propensity, err := p.PropensityByChannelAndTier.Resolve("propensity_by_channel_and_tier", c.SignupChannel, c.InitialLoyaltyTier)
	if err != nil {
		return Result{}, err
	}
	delay, err := p.TimeDelayByChannelAndTier.Resolve("time_delay_by_channel_and_tier", c.SignupChannel, c.InitialLoyaltyTier)
	if err != nil {
		return Result{}, err
	}

	for {
		if !st.day.Before(end) {
			res.Terminal = Exhausted
			break
		}
		created := st.day.Add(sessionTime(r))
		if !created.After(st.last) {
			created = st.last.Add(time.Duration(rules.UniformInt(r, 1, 30)) * time.Minute)
		}
		if !created.Before(end) {
			res.Terminal = Exhausted
			break
		}
		if err := quota.Check(); err != nil {
			return Result{}, err
		}
		st.visit++

		if err := s.visit(r, c, st, &res, created, behavior, categories); err != nil {
			return Result{}, fmt.Errorf("customer %s visit %d: %w", c.CustomerID, st.visit, err)
		}

		days, reactivated, ok := s.nextDelay(r, propensity, delay)
		if !ok {
			res.Terminal = Churned
			break
		}
		st.reactivated = reactivated
		st.day = dayOf(st.last).AddDate(0, 0, days)
	}

	res.Spend = st.spend
	return res, nil
}

// nextDelay schedules the next visit. A failed propensity draw leaves the
// customer dormant with one reactivation draw; ok is false when that fails
// too and the customer churns.
func (s *Simulator) nextDelay(r *rand.Rand, propensity float64, delay rules.DelayRule) (days int, reactivated, ok bool) {
	if rules.Bernoulli(r, propensity) {
		return rules.DelayDays(r, delay), false, true
	}
	react := s.cfg.Parameters.ReactivationSettings
	if rules.Bernoulli(r, react.Probability) {
		return rules.DelayDays(r, react.DelayRule()), true, true
	}
	return 0, false, false
}

// visit emits one cart and, when it converts, its order.
func (s *Simulator) visit(r *rand.Rand, c model.Customer, st *state, res *Result, created time.Time, behavior config.CartBehavior, categories rules.Distribution) error {
	p := &s.cfg.Parameters
	end := s.cfg.End()
	st.advance(created)

	cart := model.ShoppingCart{
		CartID:         model.CartID(c.CustomerID, st.visit),
		CustomerID:     c.CustomerID,
		CreatedAt:      created,
		IsReactivation: st.reactivated,
	}

	n := behavior.ItemCountRange.Draw(r)
	items := make([]model.CartItem, 0, n)
	added := created
	for i := 1; i <= n; i++ {
		category, err := rules.SampleWeighted(r, categories)
		if err != nil {
			return fmt.Errorf("category preference: %w", err)
		}
		count := s.products.InCategory(category)
		if count == 0 {
			return generr.NewConfigurationError("parameters.category_preference_by_channel", "category %q has no products", category)
		}
		prod := s.products.PickInCategory(category, r.IntN(count))
		added = orders.Before(added.Add(time.Duration(rules.UniformInt(r, itemGapMin, itemGapMax))*time.Minute), end)
		items = append(items, model.CartItem{
			CartItemID:  model.CartItemID(cart.CartID, i),
			CartID:      cart.CartID,
			ProductID:   prod.ProductID,
			ProductName: prod.ProductName,
			Category:    prod.Category,
			Quantity:    behavior.QuantityRange.Draw(r),
			UnitPrice:   prod.UnitPrice,
			AddedAt:     added,
		})
	}

	conversion := p.ConversionRate
	if st.visit == 1 && p.FirstPurchaseConversionBoost.Applies(c.SignupChannel) {
		conversion += p.FirstPurchaseConversionBoost.Boost
	}

	if len(items) > 0 && rules.Bernoulli(r, rules.Clamp01(conversion)) {
		cart.Status = model.CartConverted
		cart.CartTotal = cartTotal(items)
		order, lines, err := s.builder.Build(r, orders.Conversion{
			Customer:    c,
			Cart:        cart,
			Items:       items,
			Visit:       st.visit,
			Reactivated: st.reactivated,
			End:         end,
		})
		if err != nil {
			return err
		}

		st.spend = st.spend.Add(order.NetTotal)
		if st.spend.IsNegative() {
			return &generr.SimulationInvariantError{
				Invariant:  "non-negative cumulative spend",
				CustomerID: c.CustomerID,
				Details:    map[string]string{"order_id": order.OrderID, "spend": st.spend.String()},
			}
		}
		if !c.IsGuest {
			order.CustomerTier = s.tiers.Level(st.spend)
		}
		order.CLVBucket = s.clv.Level(st.spend)

		st.advance(added)
		st.advance(order.OrderDate)
		res.Carts = append(res.Carts, cart)
		res.CartItems = append(res.CartItems, items...)
		res.Orders = append(res.Orders, order)
		res.OrderItems = append(res.OrderItems, lines...)
		return nil
	}

	if rules.Bernoulli(r, p.AbandonedCartEmptiedProb) {
		cart.Status = model.CartEmptied
		cart.CartTotal = decimal.Zero
		res.Carts = append(res.Carts, cart)
		return nil
	}

	cart.Status = model.CartAbandoned
	cart.CartTotal = cartTotal(items)
	st.advance(added)
	res.Carts = append(res.Carts, cart)
	res.CartItems = append(res.CartItems, items...)
	return nil
}

// sessionTime draws the time of day a visit starts.
func sessionTime(r *rand.Rand) time.Duration {
	h := rules.UniformInt(r, sessionFirstHour, sessionLastHour)
	m := rules.UniformInt(r, 0, 59)
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute
}

func cartTotal(items []model.CartItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.LineTotal())
	}
	return total
}
