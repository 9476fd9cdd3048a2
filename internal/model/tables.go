package model

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// ColumnType is the storage class of a column in exported files.
type ColumnType string

const (
	TypeText      ColumnType = "TEXT"
	TypeInteger   ColumnType = "INTEGER"
	TypeMoney     ColumnType = "NUMERIC"
	TypeBool      ColumnType = "BOOLEAN"
	TypeTimestamp ColumnType = "TIMESTAMP"
)

// Column describes one column of a table.
type Column struct {
	Name     string
	Type     ColumnType
	Nullable bool

	// References is "table.column" for foreign keys.
	References string
}

// Schema describes one table: its columns in export order and its key.
type Schema struct {
	Name string

	// Key lists the columns of the primary key.
	Key []string

	// Unique lists further column sets that identify a row.
	Unique  [][]string
	Columns []Column
}

// ColumnNames returns the column names in export order.
func (s Schema) ColumnNames() []string {
	out := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = c.Name
	}
	return out
}

// Index returns the position of column name, or -1.
func (s Schema) Index(name string) int {
	for i, c := range s.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

func text(name string) Column { return Column{Name: name, Type: TypeText} }
func integer(name string) Column { return Column{Name: name, Type: TypeInteger} }
func money(name string) Column { return Column{Name: name, Type: TypeMoney} }
func boolean(name string) Column { return Column{Name: name, Type: TypeBool} }
func timestamp(name string) Column { return Column{Name: name, Type: TypeTimestamp} }
func ref(name, references string) Column { return Column{Name: name, Type: TypeText, References: references} }

// Table names.
const (
	TableCustomers   = "customers"
	TableProducts    = "products"
	TableCarts       = "shopping_carts"
	TableCartItems   = "cart_items"
	TableOrders      = "orders"
	TableOrderItems  = "order_items"
	TableReturns     = "returns"
	TableReturnItems = "return_items"
)

// Schemas lists every table in dependency order: a table only references
// tables listed before it.
var Schemas = []Schema{
	{
		Name: TableCustomers,
		Key:  []string{"customer_id"},
		Columns: []Column{
			text("customer_id"), text("first_name"), text("last_name"), text("email"),
			text("phone_number"), integer("age"), text("gender"),
			text("mailing_address"), text("billing_address"),
			timestamp("signup_date"), text("signup_channel"),
			text("initial_loyalty_tier"), text("loyalty_tier"), text("clv_bucket"),
			text("customer_status"), boolean("email_verified"), boolean("marketing_opt_in"),
			{Name: "loyalty_enrollment_date", Type: TypeTimestamp, Nullable: true},
			boolean("is_guest"),
		},
	},
	{
		Name: TableProducts,
		Key:  []string{"product_id"},
		Columns: []Column{
			text("product_id"), text("product_name"), text("category"),
			money("unit_price"), money("cost_price"), integer("inventory_quantity"),
		},
	},
	{
		Name: TableCarts,
		Key:  []string{"cart_id"},
		Columns: []Column{
			text("cart_id"), ref("customer_id", "customers.customer_id"),
			timestamp("created_at"), text("status"), money("cart_total"),
			boolean("is_reactivation"),
		},
	},
	{
		Name: TableCartItems,
		Key:  []string{"cart_item_id"},
		Columns: []Column{
			text("cart_item_id"), ref("cart_id", "shopping_carts.cart_id"),
			ref("product_id", "products.product_id"), text("product_name"), text("category"),
			integer("quantity"), money("unit_price"), timestamp("added_at"),
		},
	},
	{
		Name:   TableOrders,
		Key:    []string{"order_id"},
		Unique: [][]string{{"cart_id"}},
		Columns: []Column{
			text("order_id"), ref("cart_id", "shopping_carts.cart_id"),
			ref("customer_id", "customers.customer_id"), timestamp("order_date"),
			text("order_channel"), text("payment_method"), text("shipping_speed"),
			boolean("is_expedited"), text("agent_id"), text("customer_tier"), text("clv_bucket"),
			integer("total_items"), money("gross_total"), money("total_discount_amount"),
			money("net_total"), money("shipping_cost"), money("processing_fee"),
			boolean("is_reactivated"),
		},
	},
	{
		Name:   TableOrderItems,
		Key:    []string{"order_item_id"},
		Unique: [][]string{{"order_id", "line_number"}},
		Columns: []Column{
			text("order_item_id"), ref("order_id", "orders.order_id"), integer("line_number"),
			ref("product_id", "products.product_id"), text("product_name"), text("category"),
			integer("quantity"), money("unit_price"), money("cost_price"),
			money("line_total"), money("discount_amount"),
		},
	},
	{
		Name:   TableReturns,
		Key:    []string{"return_id"},
		Unique: [][]string{{"order_id"}},
		Columns: []Column{
			text("return_id"), ref("order_id", "orders.order_id"),
			ref("customer_id", "customers.customer_id"), timestamp("return_date"),
			text("reason"), text("return_type"), text("return_channel"), text("agent_id"),
			text("refund_method"), money("refunded_amount"),
		},
	},
	{
		Name:   TableReturnItems,
		Key:    []string{"return_item_id"},
		Unique: [][]string{{"return_id", "order_item_id"}},
		Columns: []Column{
			text("return_item_id"), ref("return_id", "returns.return_id"),
			ref("order_id", "orders.order_id"), ref("order_item_id", "order_items.order_item_id"),
			ref("product_id", "products.product_id"), integer("quantity_returned"),
			money("unit_price"), money("refunded_amount"),
		},
	},
}

// SchemaFor returns the schema of a table by name.
func SchemaFor(name string) (Schema, bool) {
	for _, s := range Schemas {
		if s.Name == name {
			return s, true
		}
	}
	return Schema{}, false
}

// Table is a tabular view of one dataset table: string cells in schema
// column order. Empty strings are nulls in nullable columns.
type Table struct {
	Schema
	Rows [][]string
}

// Dataset holds the eight tables of one run.
type Dataset struct {
	RunID string

	Customers   []Customer
	Products    []Product
	Carts       []ShoppingCart
	CartItems   []CartItem
	Orders      []Order
	OrderItems  []OrderItem
	Returns     []Return
	ReturnItems []ReturnItem
}

// Tables renders the dataset in schema order.
func (d *Dataset) Tables() []Table {
	rows := map[string][][]string{
		TableCustomers:   mapRows(d.Customers, Customer.row),
		TableProducts:    mapRows(d.Products, Product.row),
		TableCarts:       mapRows(d.Carts, ShoppingCart.row),
		TableCartItems:   mapRows(d.CartItems, CartItem.row),
		TableOrders:      mapRows(d.Orders, Order.row),
		TableOrderItems:  mapRows(d.OrderItems, OrderItem.row),
		TableReturns:     mapRows(d.Returns, Return.row),
		TableReturnItems: mapRows(d.ReturnItems, ReturnItem.row),
	}
	out := make([]Table, 0, len(Schemas))
	for _, s := range Schemas {
		out = append(out, Table{Schema: s, Rows: rows[s.Name]})
	}
	return out
}

// Counts returns the row count of every table, keyed by table name.
func (d *Dataset) Counts() map[string]int {
	return map[string]int{
		TableCustomers:   len(d.Customers),
		TableProducts:    len(d.Products),
		TableCarts:       len(d.Carts),
		TableCartItems:   len(d.CartItems),
		TableOrders:      len(d.Orders),
		TableOrderItems:  len(d.OrderItems),
		TableReturns:     len(d.Returns),
		TableReturnItems: len(d.ReturnItems),
	}
}

func mapRows[T any](items []T, fn func(T) []string) [][]string {
	out := make([][]string, len(items))
	for i, it := range items {
		out[i] = fn(it)
	}
	return out
}

// TimeLayout is the serialized form of every timestamp.
const TimeLayout = time.RFC3339

// FormatTime renders a timestamp in UTC.
func FormatTime(t time.Time) string { return t.UTC().Format(TimeLayout) }

// FormatMoney renders an amount with exactly two decimals.
func FormatMoney(d decimal.Decimal) string { return d.StringFixed(2) }

func formatBool(b bool) string { return strconv.FormatBool(b) }

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return FormatTime(*t)
}

func (c Customer) row() []string {
	return []string{
		c.CustomerID, c.FirstName, c.LastName, c.Email,
		c.PhoneNumber, strconv.Itoa(c.Age), c.Gender,
		c.MailingAddress, c.BillingAddress,
		FormatTime(c.SignupDate), c.SignupChannel,
		c.InitialLoyaltyTier, c.LoyaltyTier, c.CLVBucket,
		c.CustomerStatus, formatBool(c.EmailVerified), formatBool(c.MarketingOptIn),
		formatOptionalTime(c.LoyaltyEnrollmentDate),
		formatBool(c.IsGuest),
	}
}

func (p Product) row() []string {
	return []string{
		p.ProductID, p.ProductName, p.Category,
		FormatMoney(p.UnitPrice), FormatMoney(p.CostPrice), strconv.Itoa(p.InventoryQuantity),
	}
}

func (c ShoppingCart) row() []string {
	return []string{
		c.CartID, c.CustomerID,
		FormatTime(c.CreatedAt), c.Status, FormatMoney(c.CartTotal),
		formatBool(c.IsReactivation),
	}
}

func (i CartItem) row() []string {
	return []string{
		i.CartItemID, i.CartID,
		i.ProductID, i.ProductName, i.Category,
		strconv.Itoa(i.Quantity), FormatMoney(i.UnitPrice), FormatTime(i.AddedAt),
	}
}

func (o Order) row() []string {
	return []string{
		o.OrderID, o.CartID,
		o.CustomerID, FormatTime(o.OrderDate),
		o.OrderChannel, o.PaymentMethod, o.ShippingSpeed,
		formatBool(o.IsExpedited), o.AgentID, o.CustomerTier, o.CLVBucket,
		strconv.Itoa(o.TotalItems), FormatMoney(o.GrossTotal), FormatMoney(o.TotalDiscountAmount),
		FormatMoney(o.NetTotal), FormatMoney(o.ShippingCost), FormatMoney(o.ProcessingFee),
		formatBool(o.IsReactivated),
	}
}

func (i OrderItem) row() []string {
	return []string{
		i.OrderItemID, i.OrderID, strconv.Itoa(i.LineNumber),
		i.ProductID, i.ProductName, i.Category,
		strconv.Itoa(i.Quantity), FormatMoney(i.UnitPrice), FormatMoney(i.CostPrice),
		FormatMoney(i.LineTotal), FormatMoney(i.DiscountAmount),
	}
}

func (r Return) row() []string {
	return []string{
		r.ReturnID, r.OrderID,
		r.CustomerID, FormatTime(r.ReturnDate),
		r.Reason, r.ReturnType, r.ReturnChannel, r.AgentID,
		r.RefundMethod, FormatMoney(r.RefundedAmount),
	}
}

func (r ReturnItem) row() []string {
	return []string{
		r.ReturnItemID, r.ReturnID,
		r.OrderID, r.OrderItemID,
		r.ProductID, strconv.Itoa(r.QuantityReturned),
		FormatMoney(r.UnitPrice), FormatMoney(r.RefundedAmount),
	}
}
