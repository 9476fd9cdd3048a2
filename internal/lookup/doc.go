// Package lookup generates the static tables a simulation draws from:
// customers (registered and guest) and the product catalog.
//
// Both tables are produced before any simulation starts and are shared
// read-only by all simulation workers. The only later write is the
// tier-earning pass, through CustomerIndex.AssignEarned.
//
// Identity fields (names, phone numbers, addresses) come from gofakeit
// seeded with a per-customer stream, so a customer's identity depends only
// on the run seed and the customer's ID.
package lookup

import (
	"fmt"

	"github.com/roach88/ecomgen/internal/config"
)

// Tables bundles the generated lookup tables.
type Tables struct {
	Customers *CustomerIndex
	Products  *ProductIndex
}

// Generate builds both lookup tables.
func Generate(cfg *config.Config) (*Tables, error) {
	customers, err := GenerateCustomers(cfg)
	if err != nil {
		return nil, fmt.Errorf("generate customers: %w", err)
	}
	products, err := GenerateProducts(cfg)
	if err != nil {
		return nil, fmt.Errorf("generate products: %w", err)
	}
	return &Tables{Customers: customers, Products: products}, nil
}
