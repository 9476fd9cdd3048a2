package audit

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/ecomgen/internal/model"
	"github.com/roach88/ecomgen/internal/orders"
	"github.com/roach88/ecomgen/internal/rules"
)

// index groups the dataset's rows by their parents for the row-level checks.
type index struct {
	customers  map[string]model.Customer
	products   map[string]model.Product
	carts      map[string]model.ShoppingCart
	orders     map[string]model.Order
	orderItems map[string]model.OrderItem

	cartItems       map[string][]model.CartItem   // by cart_id
	linesByOrder    map[string][]model.OrderItem  // by order_id
	returnItemsByID map[string][]model.ReturnItem // by return_id
	ordersByCart    map[string][]model.Order      // by cart_id
	cartsByCustomer map[string][]model.ShoppingCart
}

func newIndex(ds *model.Dataset) *index {
	ix := &index{
		customers:       make(map[string]model.Customer, len(ds.Customers)),
		products:        make(map[string]model.Product, len(ds.Products)),
		carts:           make(map[string]model.ShoppingCart, len(ds.Carts)),
		orders:          make(map[string]model.Order, len(ds.Orders)),
		orderItems:      make(map[string]model.OrderItem, len(ds.OrderItems)),
		cartItems:       make(map[string][]model.CartItem),
		linesByOrder:    make(map[string][]model.OrderItem),
		returnItemsByID: make(map[string][]model.ReturnItem),
		ordersByCart:    make(map[string][]model.Order),
		cartsByCustomer: make(map[string][]model.ShoppingCart),
	}
	for _, c := range ds.Customers {
		ix.customers[c.CustomerID] = c
	}
	for _, p := range ds.Products {
		ix.products[p.ProductID] = p
	}
	for _, c := range ds.Carts {
		ix.carts[c.CartID] = c
		ix.cartsByCustomer[c.CustomerID] = append(ix.cartsByCustomer[c.CustomerID], c)
	}
	for _, it := range ds.CartItems {
		ix.cartItems[it.CartID] = append(ix.cartItems[it.CartID], it)
	}
	for _, o := range ds.Orders {
		ix.orders[o.OrderID] = o
		ix.ordersByCart[o.CartID] = append(ix.ordersByCart[o.CartID], o)
	}
	for _, l := range ds.OrderItems {
		ix.orderItems[l.OrderItemID] = l
		ix.linesByOrder[l.OrderID] = append(ix.linesByOrder[l.OrderID], l)
	}
	for _, it := range ds.ReturnItems {
		ix.returnItemsByID[it.ReturnID] = append(ix.returnItemsByID[it.ReturnID], it)
	}
	// Visits in time order; IDs break ties.
	for _, carts := range ix.cartsByCustomer {
		sort.SliceStable(carts, func(i, j int) bool {
			if !carts[i].CreatedAt.Equal(carts[j].CreatedAt) {
				return carts[i].CreatedAt.Before(carts[j].CreatedAt)
			}
			return carts[i].CartID < carts[j].CartID
		})
	}
	return ix
}

// lastEvent returns the latest timestamp a visit emitted: the order date
// of a converted cart, else its last item, else its creation.
func (ix *index) lastEvent(cart model.ShoppingCart) time.Time {
	last := cart.CreatedAt
	for _, it := range ix.cartItems[cart.CartID] {
		if it.AddedAt.After(last) {
			last = it.AddedAt
		}
	}
	for _, o := range ix.ordersByCart[cart.CartID] {
		if o.OrderDate.After(last) {
			last = o.OrderDate
		}
	}
	return last
}

func sumLines(items []model.CartItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.LineTotal())
	}
	return total
}

// checkProducts verifies cost_price <= unit_price.
func checkProducts(r *Report, ds *model.Dataset) {
	var v violations
	for _, p := range ds.Products {
		if p.CostPrice.GreaterThan(p.UnitPrice) {
			v.add("%s cost %s > unit %s", p.ProductID, p.CostPrice, p.UnitPrice)
		}
	}
	v.report(r, "product_costs", fmt.Sprintf("%d products priced at or above cost", len(ds.Products)))
}

// checkCarts verifies cart totals and the emptied-cart invariant.
func checkCarts(r *Report, ds *model.Dataset, ix *index) {
	var v violations
	for _, c := range ds.Carts {
		items := ix.cartItems[c.CartID]
		switch c.Status {
		case model.CartEmptied:
			if len(items) != 0 || !c.CartTotal.IsZero() {
				v.add("%s emptied with %d items and total %s", c.CartID, len(items), c.CartTotal)
			}
		default:
			if sum := sumLines(items); !sum.Equal(c.CartTotal) {
				v.add("%s total %s != items %s", c.CartID, c.CartTotal, sum)
			}
		}
		for _, it := range items {
			if p, ok := ix.products[it.ProductID]; ok && !p.UnitPrice.Equal(it.UnitPrice) {
				v.add("%s unit price %s != catalog %s", it.CartItemID, it.UnitPrice, p.UnitPrice)
			}
		}
	}
	v.report(r, "cart_totals", fmt.Sprintf("%d cart totals match their items", len(ds.Carts)))
}

// checkConversions verifies that exactly the converted carts have an order,
// and that each order copies its cart.
func checkConversions(r *Report, ds *model.Dataset, ix *index) {
	var v violations
	for _, c := range ds.Carts {
		n := len(ix.ordersByCart[c.CartID])
		switch {
		case c.Status == model.CartConverted && n != 1:
			v.add("converted %s has %d orders", c.CartID, n)
		case c.Status != model.CartConverted && n != 0:
			v.add("%s %s has %d orders", c.Status, c.CartID, n)
		}
	}
	for _, o := range ds.Orders {
		cart, ok := ix.carts[o.CartID]
		if !ok {
			continue
		}
		if cart.CustomerID != o.CustomerID {
			v.add("%s customer %s != cart customer %s", o.OrderID, o.CustomerID, cart.CustomerID)
		}
		if !o.GrossTotal.Equal(cart.CartTotal) {
			v.add("%s gross %s != cart total %s", o.OrderID, o.GrossTotal, cart.CartTotal)
		}
		if len(ix.linesByOrder[o.OrderID]) != len(ix.cartItems[o.CartID]) {
			v.add("%s has %d lines for %d cart items", o.OrderID, len(ix.linesByOrder[o.OrderID]), len(ix.cartItems[o.CartID]))
		}
	}
	v.report(r, "cart_conversion", fmt.Sprintf("%d converted carts map one-to-one onto orders", len(ds.Orders)))
}

// checkOrders verifies the order money identities.
func checkOrders(r *Report, ds *model.Dataset, ix *index) {
	var v violations
	for _, o := range ds.Orders {
		lines := ix.linesByOrder[o.OrderID]
		if len(lines) == 0 {
			v.add("%s has no lines", o.OrderID)
			continue
		}
		gross, discount := decimal.Zero, decimal.Zero
		units := 0
		for _, l := range lines {
			if want := l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))); !want.Equal(l.LineTotal) {
				v.add("%s line_total %s != %d x %s", l.OrderItemID, l.LineTotal, l.Quantity, l.UnitPrice)
			}
			if l.DiscountAmount.IsNegative() || l.DiscountAmount.GreaterThan(l.LineTotal) {
				v.add("%s discount %s outside [0, %s]", l.OrderItemID, l.DiscountAmount, l.LineTotal)
			}
			if l.CostPrice.GreaterThan(l.UnitPrice) {
				v.add("%s cost %s > unit %s", l.OrderItemID, l.CostPrice, l.UnitPrice)
			}
			gross = gross.Add(l.LineTotal)
			discount = discount.Add(l.DiscountAmount)
			units += l.Quantity
		}
		if !gross.Equal(o.GrossTotal) {
			v.add("%s gross %s != lines %s", o.OrderID, o.GrossTotal, gross)
		}
		if !discount.Equal(o.TotalDiscountAmount) {
			v.add("%s discount %s != line discounts %s", o.OrderID, o.TotalDiscountAmount, discount)
		}
		if !o.NetTotal.Equal(o.GrossTotal.Sub(o.TotalDiscountAmount)) {
			v.add("%s net %s != gross %s - discount %s", o.OrderID, o.NetTotal, o.GrossTotal, o.TotalDiscountAmount)
		}
		if o.NetTotal.IsNegative() {
			v.add("%s net %s < 0", o.OrderID, o.NetTotal)
		}
		if units != o.TotalItems {
			v.add("%s total_items %d != %d units", o.OrderID, o.TotalItems, units)
		}
	}
	v.report(r, "order_arithmetic", fmt.Sprintf("%d orders satisfy gross/discount/net identities", len(ds.Orders)))
}

// checkReturns verifies refund sums, per-line refund bounds and returned
// quantities against what was ordered.
func checkReturns(r *Report, ds *model.Dataset, ix *index) {
	var sums, quantities violations
	returned := make(map[string]int, len(ds.ReturnItems))

	for _, ret := range ds.Returns {
		items := ix.returnItemsByID[ret.ReturnID]
		total := decimal.Zero
		for _, it := range items {
			total = total.Add(it.RefundedAmount)
		}
		if len(items) == 0 {
			sums.add("%s has no items", ret.ReturnID)
		}
		if !total.Equal(ret.RefundedAmount) {
			sums.add("%s refunded %s != items %s", ret.ReturnID, ret.RefundedAmount, total)
		}
		if o, ok := ix.orders[ret.OrderID]; ok {
			if o.CustomerID != ret.CustomerID {
				sums.add("%s customer %s != order customer %s", ret.ReturnID, ret.CustomerID, o.CustomerID)
			}
			if ret.ReturnType == model.ReturnFull && !ret.RefundedAmount.Equal(o.NetTotal) {
				sums.add("full %s refunded %s != order net %s", ret.ReturnID, ret.RefundedAmount, o.NetTotal)
			}
		}
	}

	for _, it := range ds.ReturnItems {
		line, ok := ix.orderItems[it.OrderItemID]
		if !ok {
			continue
		}
		if line.OrderID != it.OrderID {
			quantities.add("%s line %s belongs to %s, not %s", it.ReturnItemID, it.OrderItemID, line.OrderID, it.OrderID)
		}
		returned[it.OrderItemID] += it.QuantityReturned
		if bound := orders.LineRefund(line, it.QuantityReturned); it.RefundedAmount.GreaterThan(bound) {
			sums.add("%s refunded %s > proportional %s", it.ReturnItemID, it.RefundedAmount, bound)
		}
	}
	for id, q := range returned {
		if line := ix.orderItems[id]; q > line.Quantity {
			quantities.add("%s returned %d of %d", id, q, line.Quantity)
		}
	}

	sums.report(r, "return_arithmetic", fmt.Sprintf("%d returns equal the sum of their items", len(ds.Returns)))
	quantities.report(r, "returned_quantities", fmt.Sprintf("%d returned lines within ordered quantity", len(returned)))
}

// checkTemporal verifies that time never runs backwards: signup, cart,
// items, order and return in that order, every visit after the previous
// one, and everything before the horizon.
func checkTemporal(r *Report, ds *model.Dataset, ix *index, end time.Time) {
	var rows, seq violations

	before := func(what string, a, b time.Time) {
		if b.Before(a) {
			rows.add("%s: %s after %s", what, model.FormatTime(a), model.FormatTime(b))
		}
	}
	inHorizon := func(what string, t time.Time) {
		if !end.IsZero() && !t.Before(end) {
			rows.add("%s at %s is past the horizon", what, model.FormatTime(t))
		}
	}

	for _, c := range ds.Carts {
		if cust, ok := ix.customers[c.CustomerID]; ok {
			before(c.CartID+" signup/created", cust.SignupDate, c.CreatedAt)
		}
		inHorizon(c.CartID, c.CreatedAt)
		for _, it := range ix.cartItems[c.CartID] {
			before(it.CartItemID+" created/added", c.CreatedAt, it.AddedAt)
			inHorizon(it.CartItemID, it.AddedAt)
		}
	}
	for _, o := range ds.Orders {
		if c, ok := ix.carts[o.CartID]; ok {
			before(o.OrderID+" created/ordered", c.CreatedAt, o.OrderDate)
			for _, it := range ix.cartItems[c.CartID] {
				before(o.OrderID+" added/ordered", it.AddedAt, o.OrderDate)
			}
		}
		inHorizon(o.OrderID, o.OrderDate)
	}
	for _, ret := range ds.Returns {
		if o, ok := ix.orders[ret.OrderID]; ok {
			before(ret.ReturnID+" ordered/returned", o.OrderDate, ret.ReturnDate)
		}
		inHorizon(ret.ReturnID, ret.ReturnDate)
	}
	rows.report(r, "temporal_order", "signup <= cart <= items <= order <= return, all before the horizon")

	for _, id := range ix.customerIDs() {
		carts := ix.cartsByCustomer[id]
		for i := 1; i < len(carts); i++ {
			prev := ix.lastEvent(carts[i-1])
			if !carts[i].CreatedAt.After(prev) {
				seq.add("%s %s starts at %s before previous visit ended %s", id, carts[i].CartID,
					model.FormatTime(carts[i].CreatedAt), model.FormatTime(prev))
			}
		}
	}
	seq.report(r, "customer_event_order", fmt.Sprintf("%d customers with strictly sequential visits", len(ix.cartsByCustomer)))
}

// checkEarnedStatus verifies that each customer's earned tier and CLV bucket
// are the ladder levels of their realized spend.
func checkEarnedStatus(r *Report, ds *model.Dataset, tiers, clv *rules.Ladder) {
	spend := make(map[string]decimal.Decimal, len(ds.Customers))
	for _, o := range ds.Orders {
		spend[o.CustomerID] = spend[o.CustomerID].Add(o.NetTotal)
	}

	var v violations
	for _, c := range ds.Customers {
		s := spend[c.CustomerID]
		wantTier := tiers.Level(s)
		if c.IsGuest {
			wantTier = ""
		}
		if c.LoyaltyTier != wantTier {
			v.add("%s tier %q, spend %s earns %q", c.CustomerID, c.LoyaltyTier, s, wantTier)
		}
		if want := clv.Level(s); c.CLVBucket != want {
			v.add("%s clv %q, spend %s earns %q", c.CustomerID, c.CLVBucket, s, want)
		}
	}
	v.report(r, "earned_status", fmt.Sprintf("%d customers hold the tier and CLV their spend earns", len(ds.Customers)))
}
