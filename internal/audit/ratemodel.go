package audit

import (
	"github.com/roach88/ecomgen/internal/config"
	"github.com/roach88/ecomgen/internal/rules"
)

// Segment is a group of customers sharing a signup channel and initial
// tier, with one exposure per visit they made.
type Segment struct {
	Channel string
	Tier    string

	// Horizons holds, for every visit, the longest delay in whole days that
	// still leaves room for another visit before the horizon.
	Horizons []int
}

// RateModel computes the expected repeat-visit rate of a segment: the
// probability that a visit is followed by another. observedN is the number
// of visits the observed rate was computed over.
type RateModel interface {
	ExpectedRate(seg Segment, observedN int) float64
}

// ZeroInflatedModel replicates the simulator's branching. After a visit the
// customer returns with the propensity p after a log-normal delay;
// otherwise they go dormant and return with the reactivation probability q
// after a longer delay. The remaining (1-p)(1-q) mass never returns. A
// return only counts when its delay fits before the horizon, so each
// exposure contributes
//
//	p·F_delay(h) + (1-p)·q·F_reactivation(h)
//
// where h is the exposure's horizon and F the clamped delay CDFs.
type ZeroInflatedModel struct {
	Params *config.Parameters
}

// ExpectedRate implements RateModel.
func (m ZeroInflatedModel) ExpectedRate(seg Segment, observedN int) float64 {
	n := min(observedN, len(seg.Horizons))
	if n <= 0 {
		return 0
	}
	p, _ := m.Params.PropensityByChannelAndTier.Lookup(seg.Channel, seg.Tier)
	delay, _ := m.Params.TimeDelayByChannelAndTier.Lookup(seg.Channel, seg.Tier)
	react := m.Params.ReactivationSettings
	p = rules.Clamp01(p)
	q := rules.Clamp01(react.Probability)

	sum := 0.0
	for _, h := range seg.Horizons[:n] {
		sum += p*rules.DelayDaysCDF(delay, h) + (1-p)*q*rules.DelayDaysCDF(react.DelayRule(), h)
	}
	return sum / float64(n)
}
