// Package config loads and validates the generator configuration.
//
// A configuration is a YAML document decoded into Config. Loading happens
// in three passes, each of which must succeed before generation starts:
//
//  1. The user file is merged over the embedded defaults (defaults.yaml).
//  2. The merged document is checked against the embedded CUE schema
//     (schema.cue), which rejects unknown keys and out-of-range scalars.
//  3. Check runs the semantic rules that CUE cannot express: vocabulary
//     consistency, resolvable stratified tables, monotonic ladders.
//
// Every failure is reported as a *generr.ConfigurationError.
package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/roach88/ecomgen/internal/rules"
)

// DateLayout is the layout of end_date.
const DateLayout = "2006-01-02"

// Config is the complete parameter set of one generation run.
type Config struct {
	Seed       uint64             `yaml:"seed"`
	Dates      DateSettings       `yaml:"date_settings"`
	Simulation SimulationSettings `yaml:"simulation"`
	Lookup     LookupSettings     `yaml:"lookup"`
	Vocab      Vocab              `yaml:"vocab"`
	Parameters Parameters         `yaml:"parameters"`
	Validation ValidationSettings `yaml:"validation"`
	Export     ExportSettings     `yaml:"export"`
}

// DateSettings bounds the simulated calendar.
type DateSettings struct {
	// EndDate is the last simulated day (YYYY-MM-DD, UTC).
	EndDate string `yaml:"end_date"`

	// SignupYears is how far before EndDate signups may fall.
	SignupYears int `yaml:"signup_years"`
}

// SimulationSettings controls execution of the funnel.
type SimulationSettings struct {
	Workers              int `yaml:"workers"`
	MaxVisitsPerCustomer int `yaml:"max_visits_per_customer"`
}

// LookupSettings sizes the customer and product tables.
type LookupSettings struct {
	Customers CustomerSettings `yaml:"customers"`
	Products  ProductSettings  `yaml:"products"`
}

// CustomerSettings parameterizes customer generation.
type CustomerSettings struct {
	Count                 int                `yaml:"count"`
	IDStart               int                `yaml:"id_start"`
	GuestShopperPct       float64            `yaml:"guest_shopper_pct"`
	MinAge                int                `yaml:"min_age"`
	MaxAge                int                `yaml:"max_age"`
	GenderUnknownProb     float64            `yaml:"gender_unknown_prob"`
	NoTierProbability     float64            `yaml:"no_tier_probability"`
	EmailVerifiedProb     float64            `yaml:"email_verified_prob"`
	MarketingOptInProb    float64            `yaml:"marketing_opt_in_prob"`
	StatusDistribution    rules.Distribution `yaml:"customer_status_distribution"`
	GuestContactPoolSize  int                `yaml:"guest_contact_pool_size"`
	GuestContactReuseProb float64            `yaml:"guest_contact_reuse_prob"`
}

// ProductSettings parameterizes catalog generation.
type ProductSettings struct {
	PerCategory    int         `yaml:"per_category"`
	MinPrice       float64     `yaml:"min_price"`
	MaxPrice       float64     `yaml:"max_price"`
	CostRatioRange rules.Range `yaml:"cost_ratio_range"`
	MinInventory   int         `yaml:"min_inventory"`
	MaxInventory   int         `yaml:"max_inventory"`
}

// Vocab holds the closed vocabularies of the dataset.
type Vocab struct {
	Categories     []string             `yaml:"categories"`
	CategoryVocab  map[string]NameVocab `yaml:"category_vocab"`
	LoyaltyTiers   []string             `yaml:"loyalty_tiers"`
	CLVBuckets     []string             `yaml:"clv_buckets"`
	Genders        []string             `yaml:"genders"`
	EmailDomains   []string             `yaml:"email_domains"`
	ReturnChannels []string             `yaml:"return_channels"`
	Agents         []Agent              `yaml:"agent_pool"`
}

// NameVocab supplies the words product names are built from.
// Keys of Vocab.CategoryVocab are lower-case category names.
type NameVocab struct {
	Adjectives []string `yaml:"adjectives"`
	Nouns      []string `yaml:"nouns"`
}

// Agent is a support agent assigned to Phone orders and returns.
type Agent struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// Parameters holds every behavioral table of the simulation.
type Parameters struct {
	SignupChannelDistribution    rules.Distribution                   `yaml:"signup_channel_distribution"`
	LoyaltyDistributionByChannel rules.Stratified[rules.Distribution] `yaml:"loyalty_distribution_by_channel"`
	CLVMap                       map[string]string                    `yaml:"clv_map"`
	TimeToFirstCartDays          rules.IntRange                       `yaml:"time_to_first_cart_days"`

	ConversionRate               float64         `yaml:"conversion_rate"`
	FirstPurchaseConversionBoost ConversionBoost `yaml:"first_purchase_conversion_boost"`
	AbandonedCartEmptiedProb     float64         `yaml:"abandoned_cart_emptied_prob"`

	CartBehaviorByTier          rules.Stratified[CartBehavior]       `yaml:"cart_behavior_by_tier"`
	CategoryPreferenceByChannel rules.Stratified[rules.Distribution] `yaml:"category_preference_by_channel"`
	PropensityByChannelAndTier  rules.Stratified[float64]            `yaml:"propensity_by_channel_and_tier"`
	TimeDelayByChannelAndTier   rules.Stratified[rules.DelayRule]    `yaml:"time_delay_by_channel_and_tier"`
	ReactivationSettings        Reactivation                         `yaml:"reactivation_settings"`

	OrderChannelDistribution        rules.Distribution     `yaml:"order_channel_distribution"`
	GlobalPaymentMethodDistribution rules.Distribution     `yaml:"global_payment_method_distribution"`
	ChannelRules                    map[string]ChannelRule `yaml:"channel_rules"`
	ShippingSpeedDistribution       rules.Distribution     `yaml:"shipping_speed_distribution"`
	ShippingCosts                   map[string]float64     `yaml:"shipping_costs"`
	ProcessingFees                  map[string]Fee         `yaml:"processing_fees"`
	ExpeditedPct                    float64                `yaml:"expedited_pct"`
	DiscountSettings                Discount               `yaml:"discount_settings"`

	TierSpendThresholds map[string]float64 `yaml:"tier_spend_thresholds"`
	CLVSpendThresholds  map[string]float64 `yaml:"clv_spend_thresholds"`

	ReturnRateBySignupChannel   map[string]float64            `yaml:"return_rate_by_signup_channel"`
	CategoryReturnRates         map[string]float64            `yaml:"category_return_rates"`
	BaselineReturnReasonWeights map[string]rules.Distribution `yaml:"baseline_return_reason_weights"`
	RefundBehaviorByReason      map[string]RefundBehavior     `yaml:"refund_behavior_by_reason"`
	ReturnTimingDistribution    rules.Distribution            `yaml:"return_timing_distribution"`
	ReturnChannelPreferenceProb float64                       `yaml:"return_channel_preference_prob"`
}

// ConversionBoost raises the conversion probability of a customer's first cart.
type ConversionBoost struct {
	Boost    float64  `yaml:"boost"`
	Channels []string `yaml:"channels"`
}

// Applies reports whether the boost applies to signupChannel.
func (b ConversionBoost) Applies(signupChannel string) bool {
	for _, c := range b.Channels {
		if c == signupChannel {
			return true
		}
	}
	return false
}

// CartBehavior bounds cart size.
type CartBehavior struct {
	ItemCountRange rules.IntRange `yaml:"item_count_range"`
	QuantityRange  rules.IntRange `yaml:"quantity_range"`
}

// Reactivation parameterizes the second chance a lapsed customer gets.
type Reactivation struct {
	Probability    float64     `yaml:"probability"`
	DelayDaysRange rules.Range `yaml:"delay_days_range"`
	Sigma          float64     `yaml:"sigma"`
}

// DelayRule returns the reactivation delay as a log-normal rule.
func (r Reactivation) DelayRule() rules.DelayRule {
	return rules.DelayRule{Range: r.DelayDaysRange, Sigma: r.Sigma}
}

// ChannelRule constrains orders placed through one order channel.
type ChannelRule struct {
	// AllowedPaymentMethods is empty when every method is allowed.
	AllowedPaymentMethods []string `yaml:"allowed_payment_methods"`

	// ReturnChannelPreference is the return channel most returns use.
	ReturnChannelPreference string `yaml:"return_channel_preference"`
}

// Allows reports whether method may be used on the channel.
func (c ChannelRule) Allows(method string) bool {
	if len(c.AllowedPaymentMethods) == 0 {
		return true
	}
	for _, m := range c.AllowedPaymentMethods {
		if m == method {
			return true
		}
	}
	return false
}

// Fee is a payment processing fee: Rate × charged amount + Fixed.
type Fee struct {
	Rate  float64 `yaml:"rate"`
	Fixed float64 `yaml:"fixed"`
}

// Discount parameterizes order-level discounts.
type Discount struct {
	Probability float64     `yaml:"probability"`
	PctRange    rules.Range `yaml:"pct_range"`
}

// RefundBehavior controls the shape of a return given its reason.
type RefundBehavior struct {
	FullReturnProb      float64 `yaml:"full_return_prob"`
	PartialQuantityProb float64 `yaml:"partial_quantity_prob"`
}

// ValidationSettings tunes the statistical audit.
type ValidationSettings struct {
	ConversionEpsilon float64 `yaml:"conversion_epsilon"`
	EmptiedEpsilon    float64 `yaml:"emptied_epsilon"`
	RepeatEpsilon     float64 `yaml:"repeat_epsilon"`
	ReturnEpsilon     float64 `yaml:"return_epsilon"`
	ZScore            float64 `yaml:"z_score"`
	MinSegmentSize    int     `yaml:"min_segment_size"`
	Strict            bool    `yaml:"strict"`
}

// ExportSettings selects the output sinks.
type ExportSettings struct {
	OutputDir  string   `yaml:"output_dir"`
	Formats    []string `yaml:"formats"`
	SQLitePath string   `yaml:"sqlite_path"`
	Messiness  string   `yaml:"messiness"`
}

// DefaultKey is the fallback key of keyed parameter maps.
const DefaultKey = "default"

// Keyed returns m[key], falling back to m["default"].
func Keyed[T any](m map[string]T, key string) (T, bool) {
	if v, ok := m[key]; ok {
		return v, true
	}
	v, ok := m[DefaultKey]
	return v, ok
}

// End returns the first instant after the simulated horizon (midnight UTC
// of the day after end_date). Every event is strictly before End.
func (c *Config) End() time.Time {
	d, err := time.Parse(DateLayout, c.Dates.EndDate)
	if err != nil {
		return time.Time{}
	}
	return d.UTC().AddDate(0, 0, 1)
}

// Start returns the earliest possible signup instant.
func (c *Config) Start() time.Time {
	d, err := time.Parse(DateLayout, c.Dates.EndDate)
	if err != nil {
		return time.Time{}
	}
	return d.UTC().AddDate(0, 0, -365*c.Dates.SignupYears)
}

// TierLadder compiles tier_spend_thresholds.
func (c *Config) TierLadder() (*rules.Ladder, error) {
	return rules.NewLadder("parameters.tier_spend_thresholds", c.Parameters.TierSpendThresholds, c.Vocab.LoyaltyTiers)
}

// CLVLadder compiles clv_spend_thresholds.
func (c *Config) CLVLadder() (*rules.Ladder, error) {
	return rules.NewLadder("parameters.clv_spend_thresholds", c.Parameters.CLVSpendThresholds, c.Vocab.CLVBuckets)
}

// ReturnBucket is one bucket of return_timing_distribution: a return falls
// uniformly in (Lo, Hi] days after its order.
type ReturnBucket struct {
	Lo, Hi int
}

// ReturnBucketBounds are the allowed keys of return_timing_distribution.
var ReturnBucketBounds = []int{30, 90, 365}

// ReturnBucketFor maps a return_timing_distribution key to its day interval.
func ReturnBucketFor(key string) (ReturnBucket, error) {
	hi, err := strconv.Atoi(key)
	if err != nil {
		return ReturnBucket{}, fmt.Errorf("return timing bucket %q is not a day count", key)
	}
	lo := 0
	for _, b := range ReturnBucketBounds {
		if b == hi {
			return ReturnBucket{Lo: lo, Hi: hi}, nil
		}
		lo = b
	}
	return ReturnBucket{}, fmt.Errorf("return timing bucket %q not in %v", key, ReturnBucketBounds)
}
