// Package model defines the eight tables of a generated dataset.
//
// Row types are plain values. Money is decimal.Decimal rounded to cents so
// every total in the dataset is an exact sum of its parts; timestamps are UTC
// at minute resolution. Struct tags carry the row schema constraints checked
// by the audit (go-playground/validator syntax, plus the custom "money" tag).
//
// Identifiers are built from the owning customer and visit number only, so
// they never depend on execution order:
//
//	CUST-00001, GUEST-00001, PROD-0001
//	CART-CUST-00001-003, CART-CUST-00001-003-I01
//	ORD-CUST-00001-003,  ORD-CUST-00001-003-L01
//	RET-CUST-00001-003,  RET-CUST-00001-003-R01
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Cart statuses.
const (
	CartConverted = "converted"
	CartAbandoned = "abandoned"
	CartEmptied   = "emptied"
)

// Return types.
const (
	ReturnFull    = "Full"
	ReturnPartial = "Partial"
)

// OnlineAgent is the agent_id of orders and returns not handled by a person.
const OnlineAgent = "ONLINE"

// Customer is a registered shopper or a guest.
type Customer struct {
	CustomerID            string    `validate:"required"`
	FirstName             string    `validate:"required"`
	LastName              string    `validate:"required"`
	Email                 string    `validate:"required,email"`
	PhoneNumber           string    `validate:"required"`
	Age                   int       `validate:"gte=0,lte=130"`
	Gender                string    `validate:"required"`
	MailingAddress        string    `validate:"required"`
	BillingAddress        string    `validate:"required"`
	SignupDate            time.Time `validate:"required"`
	SignupChannel         string    `validate:"required"`
	InitialLoyaltyTier    string    `validate:"excluded_if=IsGuest true"`
	LoyaltyTier           string    `validate:"excluded_if=IsGuest true"`
	CLVBucket             string
	CustomerStatus        string `validate:"required"`
	EmailVerified         bool
	MarketingOptIn        bool
	LoyaltyEnrollmentDate *time.Time
	IsGuest               bool
}

// Product is a catalog entry.
type Product struct {
	ProductID         string          `validate:"required"`
	ProductName       string          `validate:"required"`
	Category          string          `validate:"required"`
	UnitPrice         decimal.Decimal `validate:"money"`
	CostPrice         decimal.Decimal `validate:"money"`
	InventoryQuantity int             `validate:"gte=0"`
}

// ShoppingCart is one visit of a customer.
type ShoppingCart struct {
	CartID         string          `validate:"required"`
	CustomerID     string          `validate:"required"`
	CreatedAt      time.Time       `validate:"required"`
	Status         string          `validate:"oneof=converted abandoned emptied"`
	CartTotal      decimal.Decimal `validate:"money"`
	IsReactivation bool
}

// CartItem is a product placed in a cart.
type CartItem struct {
	CartItemID  string          `validate:"required"`
	CartID      string          `validate:"required"`
	ProductID   string          `validate:"required"`
	ProductName string          `validate:"required"`
	Category    string          `validate:"required"`
	Quantity    int             `validate:"gte=1"`
	UnitPrice   decimal.Decimal `validate:"money"`
	AddedAt     time.Time       `validate:"required"`
}

// LineTotal returns quantity × unit price.
func (i CartItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order is a converted cart.
type Order struct {
	OrderID             string    `validate:"required"`
	CartID              string    `validate:"required"`
	CustomerID          string    `validate:"required"`
	OrderDate           time.Time `validate:"required"`
	OrderChannel        string    `validate:"required"`
	PaymentMethod       string    `validate:"required"`
	ShippingSpeed       string    `validate:"required"`
	IsExpedited         bool
	AgentID             string `validate:"required"`
	CustomerTier        string
	CLVBucket           string
	TotalItems          int             `validate:"gte=1"`
	GrossTotal          decimal.Decimal `validate:"money"`
	TotalDiscountAmount decimal.Decimal `validate:"money"`
	NetTotal            decimal.Decimal `validate:"money"`
	ShippingCost        decimal.Decimal `validate:"money"`
	ProcessingFee       decimal.Decimal `validate:"money"`
	IsReactivated       bool
}

// OrderItem is one line of an order.
type OrderItem struct {
	OrderItemID    string          `validate:"required"`
	OrderID        string          `validate:"required"`
	LineNumber     int             `validate:"gte=1"`
	ProductID      string          `validate:"required"`
	ProductName    string          `validate:"required"`
	Category       string          `validate:"required"`
	Quantity       int             `validate:"gte=1"`
	UnitPrice      decimal.Decimal `validate:"money"`
	CostPrice      decimal.Decimal `validate:"money"`
	LineTotal      decimal.Decimal `validate:"money"`
	DiscountAmount decimal.Decimal `validate:"money"`
}

// NetValue returns the line total after its share of the order discount.
func (i OrderItem) NetValue() decimal.Decimal {
	return i.LineTotal.Sub(i.DiscountAmount)
}

// Return is a refund against one order.
type Return struct {
	ReturnID       string          `validate:"required"`
	OrderID        string          `validate:"required"`
	CustomerID     string          `validate:"required"`
	ReturnDate     time.Time       `validate:"required"`
	Reason         string          `validate:"required"`
	ReturnType     string          `validate:"oneof=Full Partial"`
	ReturnChannel  string          `validate:"required"`
	AgentID        string          `validate:"required"`
	RefundMethod   string          `validate:"required"`
	RefundedAmount decimal.Decimal `validate:"money"`
}

// ReturnItem is a returned quantity of one order line.
type ReturnItem struct {
	ReturnItemID     string          `validate:"required"`
	ReturnID         string          `validate:"required"`
	OrderID          string          `validate:"required"`
	OrderItemID      string          `validate:"required"`
	ProductID        string          `validate:"required"`
	QuantityReturned int             `validate:"gte=1"`
	UnitPrice        decimal.Decimal `validate:"money"`
	RefundedAmount   decimal.Decimal `validate:"money"`
}

// CustomerID formats a registered customer identifier.
func CustomerID(n int) string { return fmt.Sprintf("CUST-%05d", n) }

// GuestID formats a guest identifier.
func GuestID(n int) string { return fmt.Sprintf("GUEST-%05d", n) }

// ProductID formats a product identifier.
func ProductID(n int) string { return fmt.Sprintf("PROD-%04d", n) }

// CartID identifies the visit-th cart of a customer (visits count from 1).
func CartID(customerID string, visit int) string {
	return fmt.Sprintf("CART-%s-%03d", customerID, visit)
}

// CartItemID identifies the n-th item of a cart.
func CartItemID(cartID string, n int) string { return fmt.Sprintf("%s-I%02d", cartID, n) }

// OrderID identifies the order converted from a customer's visit-th cart.
func OrderID(customerID string, visit int) string {
	return fmt.Sprintf("ORD-%s-%03d", customerID, visit)
}

// OrderItemID identifies the line-th line of an order.
func OrderItemID(orderID string, line int) string { return fmt.Sprintf("%s-L%02d", orderID, line) }

// ReturnID identifies the return against an order. An order has at most one return.
func ReturnID(orderID string) string {
	return "RET-" + strings.TrimPrefix(orderID, "ORD-")
}

// ReturnItemID identifies the n-th item of a return.
func ReturnItemID(returnID string, n int) string { return fmt.Sprintf("%s-R%02d", returnID, n) }

// Cents rounds a decimal amount to two places.
func Cents(d decimal.Decimal) decimal.Decimal { return d.Round(2) }
