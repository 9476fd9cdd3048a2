package config

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/roach88/ecomgen/internal/rules"
)

// Validation error codes (C100-C199). Lint findings use W2xx.
const (
	ErrInvalidDate         = "C101" // end_date does not parse
	ErrInvalidRange        = "C102" // malformed or inverted range
	ErrInvalidDistribution = "C103" // empty, negative or all-zero weights
	ErrUnknownVocab        = "C104" // key outside its closed vocabulary
	ErrEmptyVocab          = "C105" // required vocabulary is empty
	ErrUnresolvableRule    = "C106" // stratified table misses a reachable key
	ErrInvalidLadder       = "C107" // thresholds not monotonic or unknown level
	ErrMissingDefault      = "C108" // keyed map without its default entry
	ErrMissingAgents       = "C109" // Phone traffic without an agent pool
	ErrInvalidBucket       = "C110" // return timing key not in {30, 90, 365}
	ErrInvalidPrice        = "C111" // price bounds inverted

	WarnUnnormalized = "W201" // distribution does not sum to 1
	WarnUnusedKey    = "W202" // table entry no lookup can reach
)

// PhoneChannel is the order and return channel served by human agents.
const PhoneChannel = "Phone"

// ValidationError is one semantic finding.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// checker accumulates findings; it does not fail fast.
type checker struct {
	errs []ValidationError
}

func (c *checker) add(code, field, format string, args ...any) {
	e := ValidationError{Field: field, Message: fmt.Sprintf(format, args...), Code: code}
	if slices.Contains(c.errs, e) {
		return
	}
	c.errs = append(c.errs, e)
}

// Check runs every semantic rule and returns all findings.
// An empty result means the configuration can drive a run.
func Check(cfg *Config) []ValidationError {
	c := &checker{}
	p := &cfg.Parameters

	if _, err := time.Parse(DateLayout, cfg.Dates.EndDate); err != nil {
		c.add(ErrInvalidDate, "date_settings.end_date", "expected YYYY-MM-DD, got %q", cfg.Dates.EndDate)
	}

	cust := cfg.Lookup.Customers
	if cust.MinAge > cust.MaxAge {
		c.add(ErrInvalidRange, "lookup.customers.min_age", "min_age %d exceeds max_age %d", cust.MinAge, cust.MaxAge)
	}
	c.distribution("lookup.customers.customer_status_distribution", cust.StatusDistribution)

	prod := cfg.Lookup.Products
	if prod.MinPrice > prod.MaxPrice {
		c.add(ErrInvalidPrice, "lookup.products.min_price", "min_price %v exceeds max_price %v", prod.MinPrice, prod.MaxPrice)
	}
	if !prod.CostRatioRange.Valid() {
		c.add(ErrInvalidRange, "lookup.products.cost_ratio_range", "expected [lo, hi] with lo <= hi")
	}
	if prod.MinInventory > prod.MaxInventory {
		c.add(ErrInvalidRange, "lookup.products.min_inventory", "min_inventory %d exceeds max_inventory %d", prod.MinInventory, prod.MaxInventory)
	}

	c.vocab(cfg)

	tiers := cfg.Vocab.LoyaltyTiers
	categories := cfg.Vocab.Categories

	c.distribution("parameters.signup_channel_distribution", p.SignupChannelDistribution)
	signupChannels := p.SignupChannelDistribution.Keys()

	p.LoyaltyDistributionByChannel.Values(func(path string, d rules.Distribution) {
		field := "parameters.loyalty_distribution_by_channel." + path
		c.distribution(field, d)
		c.subset(field, d.Keys(), tiers)
	})
	for _, ch := range signupChannels {
		if _, level := p.LoyaltyDistributionByChannel.Lookup(ch, ""); level == rules.LevelNone {
			c.add(ErrUnresolvableRule, "parameters.loyalty_distribution_by_channel", "no distribution for signup channel %q", ch)
		}
	}

	for tier, bucket := range p.CLVMap {
		if !slices.Contains(tiers, tier) {
			c.add(ErrUnknownVocab, "parameters.clv_map."+tier, "unknown loyalty tier")
		}
		if !slices.Contains(cfg.Vocab.CLVBuckets, bucket) {
			c.add(ErrUnknownVocab, "parameters.clv_map."+tier, "unknown CLV bucket %q", bucket)
		}
	}

	if !p.TimeToFirstCartDays.Valid() {
		c.add(ErrInvalidRange, "parameters.time_to_first_cart_days", "expected [lo, hi] with lo <= hi")
	}

	c.subset("parameters.first_purchase_conversion_boost.channels", p.FirstPurchaseConversionBoost.Channels, signupChannels)

	// Cart and propensity tables are reached with every initial tier,
	// including the empty tier of untiered customers and guests.
	reachableTiers := append([]string{""}, tiers...)

	p.CartBehaviorByTier.Values(func(path string, b CartBehavior) {
		field := "parameters.cart_behavior_by_tier." + path
		if !b.ItemCountRange.Valid() || b.ItemCountRange.Lo() < 1 {
			c.add(ErrInvalidRange, field+".item_count_range", "expected [lo, hi] with 1 <= lo <= hi")
		}
		if !b.QuantityRange.Valid() || b.QuantityRange.Lo() < 1 {
			c.add(ErrInvalidRange, field+".quantity_range", "expected [lo, hi] with 1 <= lo <= hi")
		}
	})

	p.CategoryPreferenceByChannel.Values(func(path string, d rules.Distribution) {
		field := "parameters.category_preference_by_channel." + path
		c.distribution(field, d)
		c.subset(field, d.Keys(), categories)
	})

	p.TimeDelayByChannelAndTier.Values(func(path string, d rules.DelayRule) {
		if !d.Valid() {
			c.add(ErrInvalidRange, "parameters.time_delay_by_channel_and_tier."+path, "expected range [lo, hi] with 0 < lo <= hi and sigma >= 0")
		}
	})

	for _, ch := range signupChannels {
		if _, level := p.CategoryPreferenceByChannel.Lookup(ch, ""); level == rules.LevelNone {
			c.add(ErrUnresolvableRule, "parameters.category_preference_by_channel", "no distribution for signup channel %q", ch)
		}
		for _, tier := range reachableTiers {
			if _, level := p.CartBehaviorByTier.Lookup(ch, tier); level == rules.LevelNone {
				c.add(ErrUnresolvableRule, "parameters.cart_behavior_by_tier", "no entry for tier %q", tier)
			}
			if _, level := p.PropensityByChannelAndTier.Lookup(ch, tier); level == rules.LevelNone {
				c.add(ErrUnresolvableRule, "parameters.propensity_by_channel_and_tier", "no entry for (%q, %q)", ch, tier)
			}
			if _, level := p.TimeDelayByChannelAndTier.Lookup(ch, tier); level == rules.LevelNone {
				c.add(ErrUnresolvableRule, "parameters.time_delay_by_channel_and_tier", "no entry for (%q, %q)", ch, tier)
			}
		}
	}

	if !p.ReactivationSettings.DelayRule().Valid() {
		c.add(ErrInvalidRange, "parameters.reactivation_settings", "expected delay_days_range [lo, hi] with 0 < lo <= hi and sigma >= 0")
	}

	c.distribution("parameters.order_channel_distribution", p.OrderChannelDistribution)
	c.distribution("parameters.global_payment_method_distribution", p.GlobalPaymentMethodDistribution)
	methods := p.GlobalPaymentMethodDistribution.Keys()
	for ch, rule := range p.ChannelRules {
		field := "parameters.channel_rules." + ch
		c.subset(field+".allowed_payment_methods", rule.AllowedPaymentMethods, methods)
		if rule.ReturnChannelPreference != "" && !slices.Contains(cfg.Vocab.ReturnChannels, rule.ReturnChannelPreference) {
			c.add(ErrUnknownVocab, field+".return_channel_preference", "unknown return channel %q", rule.ReturnChannelPreference)
		}
	}

	c.distribution("parameters.shipping_speed_distribution", p.ShippingSpeedDistribution)
	for _, speed := range p.ShippingSpeedDistribution.Keys() {
		if _, ok := p.ShippingCosts[speed]; !ok {
			c.add(ErrUnknownVocab, "parameters.shipping_costs", "no cost for shipping speed %q", speed)
		}
	}
	if _, ok := p.ProcessingFees[DefaultKey]; !ok {
		c.add(ErrMissingDefault, "parameters.processing_fees", "default entry is required")
	}
	if !p.DiscountSettings.PctRange.Valid() {
		c.add(ErrInvalidRange, "parameters.discount_settings.pct_range", "expected [lo, hi] with lo <= hi")
	}

	if _, err := cfg.TierLadder(); err != nil {
		c.add(ErrInvalidLadder, "parameters.tier_spend_thresholds", "%v", err)
	}
	if _, err := cfg.CLVLadder(); err != nil {
		c.add(ErrInvalidLadder, "parameters.clv_spend_thresholds", "%v", err)
	}

	c.requireDefault("parameters.return_rate_by_signup_channel", p.ReturnRateBySignupChannel)
	c.requireDefault("parameters.category_return_rates", p.CategoryReturnRates)
	c.requireDefault("parameters.refund_behavior_by_reason", p.RefundBehaviorByReason)
	c.requireDefault("parameters.baseline_return_reason_weights", p.BaselineReturnReasonWeights)
	for key, d := range p.BaselineReturnReasonWeights {
		field := "parameters.baseline_return_reason_weights." + key
		c.distribution(field, d)
		if key != DefaultKey && !slices.Contains(lower(categories), key) {
			c.add(ErrUnknownVocab, field, "unknown category %q (keys are lower-case)", key)
		}
	}
	for key := range p.CategoryReturnRates {
		if key != DefaultKey && !slices.Contains(lower(categories), key) {
			c.add(ErrUnknownVocab, "parameters.category_return_rates."+key, "unknown category %q (keys are lower-case)", key)
		}
	}

	c.distribution("parameters.return_timing_distribution", p.ReturnTimingDistribution)
	for _, key := range p.ReturnTimingDistribution.Keys() {
		if _, err := ReturnBucketFor(key); err != nil {
			c.add(ErrInvalidBucket, "parameters.return_timing_distribution."+key, "%v", err)
		}
	}

	if len(cfg.Vocab.Agents) == 0 && (p.OrderChannelDistribution.Probability(PhoneChannel) > 0 || slices.Contains(cfg.Vocab.ReturnChannels, PhoneChannel)) {
		c.add(ErrMissingAgents, "vocab.agent_pool", "Phone orders or returns require at least one agent")
	}

	return c.errs
}

func (c *checker) vocab(cfg *Config) {
	v := cfg.Vocab
	required := []struct {
		field string
		items []string
	}{
		{"vocab.categories", v.Categories},
		{"vocab.loyalty_tiers", v.LoyaltyTiers},
		{"vocab.clv_buckets", v.CLVBuckets},
		{"vocab.genders", v.Genders},
		{"vocab.email_domains", v.EmailDomains},
		{"vocab.return_channels", v.ReturnChannels},
	}
	for _, r := range required {
		if len(r.items) == 0 {
			c.add(ErrEmptyVocab, r.field, "at least one entry is required")
		}
	}
	for _, cat := range v.Categories {
		words, ok := v.CategoryVocab[strings.ToLower(cat)]
		if !ok || len(words.Adjectives) == 0 || len(words.Nouns) == 0 {
			c.add(ErrEmptyVocab, "vocab.category_vocab."+strings.ToLower(cat), "adjectives and nouns are required")
		}
	}
}

func (c *checker) distribution(field string, d rules.Distribution) {
	if err := d.Check(field); err != nil {
		c.add(ErrInvalidDistribution, field, "%v", err)
	}
}

func (c *checker) subset(field string, keys, vocab []string) {
	for _, k := range keys {
		if !slices.Contains(vocab, k) {
			c.add(ErrUnknownVocab, field, "unknown key %q", k)
		}
	}
}

func (c *checker) requireDefault(field string, keys any) {
	var ok bool
	switch m := keys.(type) {
	case map[string]float64:
		_, ok = m[DefaultKey]
	case map[string]RefundBehavior:
		_, ok = m[DefaultKey]
	case map[string]rules.Distribution:
		_, ok = m[DefaultKey]
	}
	if !ok {
		c.add(ErrMissingDefault, field, "default entry is required")
	}
}

// Lint reports findings that do not block a run but usually indicate a
// mistake, such as weights that do not sum to one.
func Lint(cfg *Config) []ValidationError {
	c := &checker{}
	p := &cfg.Parameters

	unnormalized := func(field string, d rules.Distribution) {
		if len(d) > 0 && math.Abs(d.Total()-1) > 1e-6 {
			c.add(WarnUnnormalized, field, "weights sum to %.4f, they will be normalized", d.Total())
		}
	}
	unnormalized("lookup.customers.customer_status_distribution", cfg.Lookup.Customers.StatusDistribution)
	unnormalized("parameters.signup_channel_distribution", p.SignupChannelDistribution)
	unnormalized("parameters.order_channel_distribution", p.OrderChannelDistribution)
	unnormalized("parameters.global_payment_method_distribution", p.GlobalPaymentMethodDistribution)
	unnormalized("parameters.shipping_speed_distribution", p.ShippingSpeedDistribution)
	unnormalized("parameters.return_timing_distribution", p.ReturnTimingDistribution)
	p.LoyaltyDistributionByChannel.Values(func(path string, d rules.Distribution) {
		unnormalized("parameters.loyalty_distribution_by_channel."+path, d)
	})
	p.CategoryPreferenceByChannel.Values(func(path string, d rules.Distribution) {
		unnormalized("parameters.category_preference_by_channel."+path, d)
	})

	signup := p.SignupChannelDistribution
	for ch := range p.PropensityByChannelAndTier.Channels {
		if signup.Probability(ch) == 0 {
			c.add(WarnUnusedKey, "parameters.propensity_by_channel_and_tier.channels."+ch, "no customer signs up through this channel")
		}
	}
	for ch := range p.ChannelRules {
		if p.OrderChannelDistribution.Probability(ch) == 0 {
			c.add(WarnUnusedKey, "parameters.channel_rules."+ch, "no order is placed through this channel")
		}
	}
	for _, tier := range cfg.Vocab.LoyaltyTiers {
		if _, ok := p.TierSpendThresholds[tier]; !ok {
			c.add(WarnUnusedKey, "parameters.tier_spend_thresholds", "tier %q has no threshold and can never be earned", tier)
		}
	}
	return c.errs
}

func lower(items []string) []string {
	out := make([]string, len(items))
	for i, s := range items {
		out[i] = strings.ToLower(s)
	}
	return out
}
