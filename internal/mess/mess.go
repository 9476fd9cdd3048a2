// Package mess corrupts exported tables the way hand-entered retail data
// tends to be dirty: stray whitespace, inconsistent casing, missing values
// and, at higher levels, a month of inflated item counts.
//
// Corruption always works on a copy. The clean dataset is audited before
// any mess is applied and is never modified.
package mess

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/roach88/ecomgen/internal/model"
	"github.com/roach88/ecomgen/internal/rules"
)

// Levels.
const (
	None   = "none"
	Light  = "light_mess"
	Medium = "medium_mess"
	Heavy  = "heavy_mess"
)

// Profile holds the per-cell corruption probabilities of a level.
type Profile struct {
	Whitespace float64
	Casing     float64
	Null       float64

	// SpikeFactor multiplies orders.total_items in one month; zero disables
	// the spike.
	SpikeFactor float64
}

var profiles = map[string]Profile{
	None:   {},
	Light:  {Whitespace: 0.05, Casing: 0.05, Null: 0.02},
	Medium: {Whitespace: 0.08, Casing: 0.08, Null: 0.04, SpikeFactor: 1.5},
	Heavy:  {Whitespace: 0.15, Casing: 0.15, Null: 0.08, SpikeFactor: 2.0},
}

// ProfileFor returns the profile of a level.
func ProfileFor(level string) (Profile, error) {
	p, ok := profiles[level]
	if !ok {
		return Profile{}, fmt.Errorf("unknown messiness level %q", level)
	}
	return p, nil
}

// Stylistic columns get whitespace and casing noise.
var stylistic = map[string][]string{
	model.TableCustomers:  {"gender", "customer_status", "signup_channel", "loyalty_tier"},
	model.TableProducts:   {"product_name", "category"},
	model.TableOrders:     {"order_channel", "payment_method", "shipping_speed", "customer_tier", "clv_bucket"},
	model.TableOrderItems: {"product_name", "category"},
	model.TableReturns:    {"reason", "return_type", "return_channel"},
}

// Nullable columns may be blanked.
var nullable = map[string][]string{
	model.TableCustomers: {"email_verified", "marketing_opt_in"},
	model.TableOrders:    {"agent_id"},
	model.TableReturns:   {"agent_id"},
}

// Apply returns a corrupted copy of tables. Each table draws from its own
// stream of seed, so the result depends only on the seed, the level and
// the table contents.
func Apply(seed uint64, level string, tables []model.Table) ([]model.Table, error) {
	p, err := ProfileFor(level)
	if err != nil {
		return nil, err
	}
	out := make([]model.Table, len(tables))
	for i, t := range tables {
		out[i] = copyTable(t)
		if level == None {
			continue
		}
		r := rules.Stream(seed, "mess/"+t.Name)
		for _, col := range stylistic[t.Name] {
			if j := t.Index(col); j >= 0 {
				eachCell(out[i], j, func(s string) string {
					if s == "" {
						return s
					}
					if rules.Bernoulli(r, p.Whitespace) {
						s = pad(r) + strings.TrimSpace(s) + pad(r)
					}
					if rules.Bernoulli(r, p.Casing) {
						s = recase(r, s)
					}
					return s
				})
			}
		}
		for _, col := range nullable[t.Name] {
			if j := t.Index(col); j >= 0 {
				eachCell(out[i], j, func(s string) string {
					if s != "" && rules.Bernoulli(r, p.Null) {
						return ""
					}
					return s
				})
			}
		}
		if t.Name == model.TableOrders && p.SpikeFactor > 0 {
			spike(r, out[i], p.SpikeFactor)
		}
	}
	return out, nil
}

func copyTable(t model.Table) model.Table {
	rows := make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		rows[i] = append([]string(nil), row...)
	}
	return model.Table{Schema: t.Schema, Rows: rows}
}

func eachCell(t model.Table, col int, fn func(string) string) {
	for _, row := range t.Rows {
		row[col] = fn(row[col])
	}
}

func pad(r *rand.Rand) string {
	return rules.Pick(r, []string{" ", "  "})
}

func recase(r *rand.Rand, s string) string {
	switch r.IntN(3) {
	case 0:
		return strings.ToUpper(s)
	case 1:
		return strings.ToLower(s)
	default:
		return cases.Title(language.English).String(s)
	}
}

// spike multiplies total_items of every order placed in one randomly
// chosen calendar month of one year.
func spike(r *rand.Rand, t model.Table, factor float64) {
	dateCol, itemsCol := t.Index("order_date"), t.Index("total_items")
	if dateCol < 0 || itemsCol < 0 || len(t.Rows) == 0 {
		return
	}
	type yearMonth struct {
		year  int
		month time.Month
	}
	monthOf := func(row []string) (yearMonth, bool) {
		ts, err := time.Parse(model.TimeLayout, row[dateCol])
		if err != nil {
			return yearMonth{}, false
		}
		return yearMonth{ts.Year(), ts.Month()}, true
	}

	var months []yearMonth
	seen := map[yearMonth]bool{}
	for _, row := range t.Rows {
		if m, ok := monthOf(row); ok && !seen[m] {
			seen[m] = true
			months = append(months, m)
		}
	}
	if len(months) == 0 {
		return
	}
	target := rules.Pick(r, months)
	for _, row := range t.Rows {
		m, ok := monthOf(row)
		if !ok || m != target {
			continue
		}
		if n, err := strconv.Atoi(row[itemsCol]); err == nil {
			row[itemsCol] = strconv.Itoa(int(float64(n) * factor))
		}
	}
}
