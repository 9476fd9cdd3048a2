package funnel

import (
	"fmt"

	"github.com/roach88/ecomgen/internal/lookup"
	"github.com/roach88/ecomgen/internal/rules"
)

// EarnTiers writes every customer's earned loyalty tier and CLV bucket from
// the final cumulative spend. It must run once, after Run has returned, and
// is the only writer of earned status. Order snapshots taken during the
// simulation are copies and are not touched.
func EarnTiers(customers *lookup.CustomerIndex, results []Result, tiers, clv *rules.Ladder) error {
	if len(results) != customers.Len() {
		return fmt.Errorf("earn tiers: %d results for %d customers", len(results), customers.Len())
	}
	for i, res := range results {
		if id := customers.At(i).CustomerID; id != res.CustomerID {
			return fmt.Errorf("earn tiers: result %d belongs to %s, want %s", i, res.CustomerID, id)
		}
		if err := customers.AssignEarned(res.CustomerID, tiers.Level(res.Spend), clv.Level(res.Spend)); err != nil {
			return err
		}
	}
	return nil
}
