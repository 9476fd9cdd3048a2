package rules

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/roach88/ecomgen/internal/generr"
)

// Ladder maps cumulative spend onto an ordered set of levels
// (loyalty tiers or CLV buckets).
//
// Level returns the highest threshold met. When two levels share a
// threshold the one ranked higher in the level order wins.
type Ladder struct {
	steps []step // ascending by (threshold, rank)
}

type step struct {
	name      string
	rank      int
	threshold decimal.Decimal
}

// NewLadder builds a ladder from name→threshold and the level order
// (lowest first). Every threshold key must appear in order, thresholds must
// be non-negative and non-decreasing along order; otherwise a
// ConfigurationError is returned. field names the configuration table.
func NewLadder(field string, thresholds map[string]float64, order []string) (*Ladder, error) {
	if len(thresholds) == 0 {
		return nil, generr.NewConfigurationError(field, "threshold table is empty")
	}

	rank := make(map[string]int, len(order))
	for i, name := range order {
		rank[name] = i
	}

	steps := make([]step, 0, len(thresholds))
	for name, th := range thresholds {
		r, ok := rank[name]
		if !ok {
			return nil, generr.NewConfigurationError(field, "level %q is not in the level order %v", name, order)
		}
		if th < 0 {
			return nil, generr.NewConfigurationError(field, "threshold for %q must be non-negative, got %v", name, th)
		}
		steps = append(steps, step{name: name, rank: r, threshold: decimal.NewFromFloat(th)})
	}

	sort.Slice(steps, func(i, j int) bool {
		if c := steps[i].threshold.Cmp(steps[j].threshold); c != 0 {
			return c < 0
		}
		return steps[i].rank < steps[j].rank
	})

	for i := 1; i < len(steps); i++ {
		if steps[i].rank < steps[i-1].rank {
			return nil, generr.NewConfigurationError(field,
				"thresholds must not decrease with level order: %q (%s) ranks below %q (%s)",
				steps[i].name, steps[i].threshold, steps[i-1].name, steps[i-1].threshold)
		}
	}

	return &Ladder{steps: steps}, nil
}

// Level returns the level earned by spend, or "" if no threshold is met.
func (l *Ladder) Level(spend decimal.Decimal) string {
	level := ""
	for _, s := range l.steps {
		if spend.GreaterThanOrEqual(s.threshold) {
			level = s.name
			continue
		}
		break
	}
	return level
}

// Rank returns the position of level in the ladder order, -1 for unknown or "".
func (l *Ladder) Rank(level string) int {
	for _, s := range l.steps {
		if s.name == level {
			return s.rank
		}
	}
	return -1
}

// String renders the ladder for logs.
func (l *Ladder) String() string {
	out := "["
	for i, s := range l.steps {
		if i > 0 {
			out += " "
		}
		out += fmt.Sprintf("%s>=%s", s.name, s.threshold)
	}
	return out + "]"
}
