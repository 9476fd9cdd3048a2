package lookup

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/roach88/ecomgen/internal/config"
	"github.com/roach88/ecomgen/internal/generr"
	"github.com/roach88/ecomgen/internal/model"
	"github.com/roach88/ecomgen/internal/rules"
)

// ProductIndex is the read-only product catalog.
type ProductIndex struct {
	products   []model.Product
	byID       map[string]int
	byCategory map[string][]int
}

// Len returns the number of products.
func (ix *ProductIndex) Len() int { return len(ix.products) }

// Get returns a product by ID.
func (ix *ProductIndex) Get(id string) (model.Product, bool) {
	i, ok := ix.byID[id]
	if !ok {
		return model.Product{}, false
	}
	return ix.products[i], true
}

// All returns a copy of the catalog in generation order.
func (ix *ProductIndex) All() []model.Product {
	out := make([]model.Product, len(ix.products))
	copy(out, ix.products)
	return out
}

// InCategory returns how many products a category holds.
func (ix *ProductIndex) InCategory(category string) int {
	return len(ix.byCategory[category])
}

// PickInCategory returns the i-th product of a category
// (0 <= i < InCategory(category)).
func (ix *ProductIndex) PickInCategory(category string, i int) model.Product {
	return ix.products[ix.byCategory[category][i]]
}

// GenerateProducts builds per_category products for every category.
// cost_price never exceeds unit_price.
func GenerateProducts(cfg *config.Config) (*ProductIndex, error) {
	ps := cfg.Lookup.Products
	if ps.PerCategory <= 0 {
		return nil, generr.NewConfigurationError("lookup.products.per_category", "must be positive, got %d", ps.PerCategory)
	}
	if !ps.CostRatioRange.Valid() || ps.CostRatioRange.Lo() <= 0 || ps.CostRatioRange.Hi() > 1 {
		return nil, generr.NewConfigurationError("lookup.products.cost_ratio_range", "expected [lo, hi] within (0, 1]")
	}

	title := cases.Title(language.English)
	total := ps.PerCategory * len(cfg.Vocab.Categories)
	ix := &ProductIndex{
		products:   make([]model.Product, 0, total),
		byID:       make(map[string]int, total),
		byCategory: make(map[string][]int, len(cfg.Vocab.Categories)),
	}

	n := 0
	for _, category := range cfg.Vocab.Categories {
		words, ok := cfg.Vocab.CategoryVocab[strings.ToLower(category)]
		if !ok || len(words.Adjectives) == 0 || len(words.Nouns) == 0 {
			return nil, generr.NewConfigurationError("vocab.category_vocab."+strings.ToLower(category), "adjectives and nouns are required")
		}
		for i := 0; i < ps.PerCategory; i++ {
			n++
			id := model.ProductID(n)
			r := rules.Stream(cfg.Seed, "product/"+id)

			name := title.String(rules.Pick(r, words.Adjectives) + " " + rules.Pick(r, words.Nouns))

			unit := rules.UniformMoney(r, ps.MinPrice, ps.MaxPrice)
			if unit.LessThan(cent) {
				unit = cent
			}
			ratio := rules.UniformFloat(r, ps.CostRatioRange.Lo(), ps.CostRatioRange.Hi())
			cost := model.Cents(unit.Mul(decimal.NewFromFloat(ratio)))
			if cost.GreaterThan(unit) {
				cost = unit
			}

			ix.byID[id] = len(ix.products)
			ix.byCategory[category] = append(ix.byCategory[category], len(ix.products))
			ix.products = append(ix.products, model.Product{
				ProductID:         id,
				ProductName:       name,
				Category:          category,
				UnitPrice:         unit,
				CostPrice:         cost,
				InventoryQuantity: rules.UniformInt(r, ps.MinInventory, ps.MaxInventory),
			})
		}
	}
	if len(ix.products) == 0 {
		return nil, fmt.Errorf("generate products: no categories configured")
	}
	return ix, nil
}

var cent = decimal.New(1, -2)
