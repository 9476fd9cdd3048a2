package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() *Dataset {
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	price := decimal.RequireFromString("19.99")
	return &Dataset{
		Customers: []Customer{{
			CustomerID: CustomerID(1), FirstName: "Ana", LastName: "Lima",
			Email: "ana.lima@example.com", PhoneNumber: "555-0100", Age: 31, Gender: "Female",
			MailingAddress: "1 Main St", BillingAddress: "1 Main St",
			SignupDate: at.AddDate(0, -2, 0), SignupChannel: "Website",
			InitialLoyaltyTier: "Bronze", LoyaltyTier: "Bronze", CLVBucket: "Low",
			CustomerStatus: "Active",
		}},
		Products: []Product{{
			ProductID: ProductID(1), ProductName: "Wireless Speaker", Category: "Electronics",
			UnitPrice: price, CostPrice: decimal.RequireFromString("9.50"), InventoryQuantity: 4,
		}},
		Carts: []ShoppingCart{{
			CartID: CartID(CustomerID(1), 1), CustomerID: CustomerID(1),
			CreatedAt: at, Status: CartAbandoned, CartTotal: price,
		}},
		CartItems: []CartItem{{
			CartItemID: CartItemID(CartID(CustomerID(1), 1), 1), CartID: CartID(CustomerID(1), 1),
			ProductID: ProductID(1), ProductName: "Wireless Speaker", Category: "Electronics",
			Quantity: 1, UnitPrice: price, AddedAt: at.Add(3 * time.Minute),
		}},
	}
}

func TestIdentifiers(t *testing.T) {
	cust := CustomerID(7)
	assert.Equal(t, "CUST-00007", cust)
	assert.Equal(t, "GUEST-00012", GuestID(12))
	assert.Equal(t, "PROD-0042", ProductID(42))

	cart := CartID(cust, 3)
	assert.Equal(t, "CART-CUST-00007-003", cart)
	assert.Equal(t, "CART-CUST-00007-003-I02", CartItemID(cart, 2))

	order := OrderID(cust, 3)
	assert.Equal(t, "ORD-CUST-00007-003", order)
	assert.Equal(t, "ORD-CUST-00007-003-L01", OrderItemID(order, 1))

	ret := ReturnID(order)
	assert.Equal(t, "RET-CUST-00007-003", ret)
	assert.Equal(t, "RET-CUST-00007-003-R04", ReturnItemID(ret, 4))
}

func TestTables_RowsMatchSchemas(t *testing.T) {
	tables := sampleDataset().Tables()
	require.Len(t, tables, 8)

	for i, table := range tables {
		assert.Equal(t, Schemas[i].Name, table.Name)
		for _, row := range table.Rows {
			assert.Len(t, row, len(table.Columns), table.Name)
		}
	}

	customers := tables[0]
	row := customers.Rows[0]
	assert.Equal(t, "2025-01-01T10:00:00Z", row[customers.Index("signup_date")])
	assert.Equal(t, "", row[customers.Index("loyalty_enrollment_date")])
	assert.Equal(t, "false", row[customers.Index("is_guest")])

	products := tables[1]
	assert.Equal(t, "9.50", products.Rows[0][products.Index("cost_price")])
}

func TestSchemas_ReferencesPointBackward(t *testing.T) {
	seen := map[string]Schema{}
	for _, s := range Schemas {
		for _, c := range s.Columns {
			if c.References == "" {
				continue
			}
			target, column, ok := splitRef(c.References)
			require.True(t, ok, c.References)
			ts, ok := seen[target]
			require.True(t, ok, "%s.%s references later table %s", s.Name, c.Name, target)
			assert.GreaterOrEqual(t, ts.Index(column), 0)
		}
		for _, k := range s.Key {
			assert.GreaterOrEqual(t, s.Index(k), 0, "%s key %s", s.Name, k)
		}
		seen[s.Name] = s
	}
}

func splitRef(ref string) (string, string, bool) {
	for i := range ref {
		if ref[i] == '.' {
			return ref[:i], ref[i+1:], true
		}
	}
	return "", "", false
}

func TestDigest_Deterministic(t *testing.T) {
	a, err := sampleDataset().Digest()
	require.NoError(t, err)
	b, err := sampleDataset().Digest()
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestDigest_SensitiveToContent(t *testing.T) {
	base, err := sampleDataset().Digest()
	require.NoError(t, err)

	ds := sampleDataset()
	ds.CartItems[0].Quantity = 2
	changed, err := ds.Digest()
	require.NoError(t, err)

	assert.NotEqual(t, base, changed)
}

func TestDigest_NormalizesUnicode(t *testing.T) {
	composed := sampleDataset()
	composed.Customers[0].LastName = "Jos\u00e9"
	decomposed := sampleDataset()
	decomposed.Customers[0].LastName = "Jose\u0301"

	a, err := composed.Digest()
	require.NoError(t, err)
	b, err := decomposed.Digest()
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestCanonicalTable_NoHTMLEscaping(t *testing.T) {
	table := Table{
		Schema: Schema{Name: "t", Columns: []Column{text("a")}},
		Rows:   [][]string{{"<a&b>"}},
	}
	data, err := CanonicalTable(table)
	require.NoError(t, err)
	assert.Equal(t, `["t",["a"],[["<a&b>"]]]`, string(data))
}

func TestCanonicalTable_RejectsRaggedRows(t *testing.T) {
	table := Table{
		Schema: Schema{Name: "t", Columns: []Column{text("a"), text("b")}},
		Rows:   [][]string{{"only-one"}},
	}
	_, err := CanonicalTable(table)
	assert.Error(t, err)
}

func TestRunID(t *testing.T) {
	id := RunID(42, ConfigDigest([]byte("seed: 42\n")))
	assert.Equal(t, id, RunID(42, ConfigDigest([]byte("seed: 42\n"))))
	assert.NotEqual(t, id, RunID(43, ConfigDigest([]byte("seed: 42\n"))))

	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(5), parsed.Version())
}

func TestOrderItem_NetValue(t *testing.T) {
	item := OrderItem{
		LineTotal:      decimal.RequireFromString("40.00"),
		DiscountAmount: decimal.RequireFromString("4.37"),
	}
	assert.True(t, item.NetValue().Equal(decimal.RequireFromString("35.63")))
}
