package rules

import (
	"github.com/roach88/ecomgen/internal/generr"
)

// Level identifies which fallback level satisfied a stratified lookup.
type Level int

const (
	// LevelNone means no level held a value.
	LevelNone Level = iota
	// LevelChannelTier is the exact (channel, tier) entry.
	LevelChannelTier
	// LevelChannel is the channel-level default.
	LevelChannel
	// LevelTier is the tier entry of the global level.
	LevelTier
	// LevelGlobal is the global default.
	LevelGlobal
)

// String returns the level name used in logs and audit messages.
func (l Level) String() string {
	switch l {
	case LevelChannelTier:
		return "channel+tier"
	case LevelChannel:
		return "channel"
	case LevelTier:
		return "tier"
	case LevelGlobal:
		return "global"
	default:
		return "none"
	}
}

// Stratified is a rule table keyed first by channel, then by tier.
//
// YAML shape:
//
//	default: 0.4
//	tiers: {Gold: 0.6}
//	channels:
//	  Website:
//	    default: 0.5
//	    tiers: {Gold: 0.7}
//
// Resolution order is fixed: (channel, tier) → channel default →
// global tier → global default. The first level holding a value wins.
// The global tier level sits below every channel entry; it is what a
// tier-only table such as cart_behavior_by_tier resolves through, and a
// table without tiers reduces to channel → global.
type Stratified[T any] struct {
	Default  *T                        `yaml:"default,omitempty"`
	Tiers    map[string]T              `yaml:"tiers,omitempty"`
	Channels map[string]ChannelRule[T] `yaml:"channels,omitempty"`
}

// ChannelRule holds the channel-level entries of a Stratified table.
type ChannelRule[T any] struct {
	Default *T           `yaml:"default,omitempty"`
	Tiers   map[string]T `yaml:"tiers,omitempty"`
}

// Lookup resolves the value for (channel, tier) and reports the level used.
func (s Stratified[T]) Lookup(channel, tier string) (T, Level) {
	if ch, ok := s.Channels[channel]; ok {
		if v, ok := ch.Tiers[tier]; ok {
			return v, LevelChannelTier
		}
		if ch.Default != nil {
			return *ch.Default, LevelChannel
		}
	}
	if v, ok := s.Tiers[tier]; ok {
		return v, LevelTier
	}
	if s.Default != nil {
		return *s.Default, LevelGlobal
	}
	var zero T
	return zero, LevelNone
}

// Resolve is Lookup that fails with a MissingRuleError when no level holds a value.
// rule names the table in the error.
func (s Stratified[T]) Resolve(rule, channel, tier string) (T, error) {
	v, level := s.Lookup(channel, tier)
	if level == LevelNone {
		var zero T
		return zero, &generr.MissingRuleError{Rule: rule, Channel: channel, Tier: tier}
	}
	return v, nil
}

// Values calls fn for every value stored in the table, in no particular order.
// Used by configuration validation to check each entry once.
func (s Stratified[T]) Values(fn func(path string, v T)) {
	if s.Default != nil {
		fn("default", *s.Default)
	}
	for tier, v := range s.Tiers {
		fn("tiers."+tier, v)
	}
	for name, ch := range s.Channels {
		if ch.Default != nil {
			fn("channels."+name+".default", *ch.Default)
		}
		for tier, v := range ch.Tiers {
			fn("channels."+name+".tiers."+tier, v)
		}
	}
}

// Uniform returns a table whose only entry is a global default.
func Uniform[T any](v T) Stratified[T] {
	return Stratified[T]{Default: &v}
}
