package lookup

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"
	"unicode"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/roach88/ecomgen/internal/config"
	"github.com/roach88/ecomgen/internal/generr"
	"github.com/roach88/ecomgen/internal/model"
	"github.com/roach88/ecomgen/internal/rules"
)

// GenderUnknown is recorded when the gender_unknown_prob draw hits.
const GenderUnknown = "Unknown"

// CustomerIndex is the read-only customer table. AssignEarned is its only
// mutator and is reserved for the tier-earning pass.
type CustomerIndex struct {
	customers []model.Customer
	byID      map[string]int
}

// Len returns the number of customers, guests included.
func (ix *CustomerIndex) Len() int { return len(ix.customers) }

// At returns the i-th customer in generation order.
func (ix *CustomerIndex) At(i int) model.Customer { return ix.customers[i] }

// Get returns a customer by ID.
func (ix *CustomerIndex) Get(id string) (model.Customer, bool) {
	i, ok := ix.byID[id]
	if !ok {
		return model.Customer{}, false
	}
	return ix.customers[i], true
}

// All returns a copy of every customer in generation order.
func (ix *CustomerIndex) All() []model.Customer {
	out := make([]model.Customer, len(ix.customers))
	copy(out, ix.customers)
	return out
}

// AssignEarned records the tier and CLV bucket a customer earned over the
// whole simulation. Guests never hold a loyalty tier, so tier is ignored
// for them.
func (ix *CustomerIndex) AssignEarned(id, tier, clv string) error {
	i, ok := ix.byID[id]
	if !ok {
		return fmt.Errorf("assign earned tier: unknown customer %q", id)
	}
	c := &ix.customers[i]
	if !c.IsGuest {
		c.LoyaltyTier = tier
	}
	c.CLVBucket = clv
	return nil
}

// contact is the identity a guest checks out with.
type contact struct {
	first, last, email, phone, address string
}

// GenerateCustomers builds the customer table: registered customers first,
// then guests. Each customer draws from its own stream keyed by its ID, so
// adding customers never changes the ones already generated.
func GenerateCustomers(cfg *config.Config) (*CustomerIndex, error) {
	cs := cfg.Lookup.Customers
	if cs.Count <= 0 {
		return nil, generr.NewConfigurationError("lookup.customers.count", "must be positive, got %d", cs.Count)
	}

	guests := int(math.Round(float64(cs.Count) * cs.GuestShopperPct))
	registered := cs.Count - guests

	start, end := cfg.Start(), cfg.End()
	window := int(end.Sub(start) / time.Minute)
	if window <= 0 {
		return nil, generr.NewConfigurationError("date_settings", "empty signup window")
	}

	ix := &CustomerIndex{
		customers: make([]model.Customer, 0, cs.Count),
		byID:      make(map[string]int, cs.Count),
	}

	pool := guestPool(cfg)

	for i := 0; i < cs.Count; i++ {
		guest := i >= registered
		var id string
		if guest {
			id = model.GuestID(i - registered + 1)
		} else {
			id = model.CustomerID(cs.IDStart + i)
		}

		c, err := newCustomer(cfg, id, guest, start, window, pool)
		if err != nil {
			return nil, fmt.Errorf("customer %s: %w", id, err)
		}
		ix.byID[id] = len(ix.customers)
		ix.customers = append(ix.customers, c)
	}
	return ix, nil
}

func newCustomer(cfg *config.Config, id string, guest bool, start time.Time, window int, pool []contact) (model.Customer, error) {
	cs := cfg.Lookup.Customers
	p := &cfg.Parameters
	r := rules.Stream(cfg.Seed, "customer/"+id)

	var who contact
	if guest && len(pool) > 0 && rules.Bernoulli(r, cs.GuestContactReuseProb) {
		who = rules.Pick(r, pool)
	} else {
		who = newContact(cfg, rules.Stream(cfg.Seed, "identity/"+id), id)
	}

	signup := start.Add(time.Duration(r.IntN(window)) * time.Minute)

	channel, err := rules.SampleWeighted(r, p.SignupChannelDistribution)
	if err != nil {
		return model.Customer{}, fmt.Errorf("signup channel: %w", err)
	}

	tier := ""
	if !guest && !rules.Bernoulli(r, cs.NoTierProbability) {
		dist, err := p.LoyaltyDistributionByChannel.Resolve("loyalty_distribution_by_channel", channel, "")
		if err != nil {
			return model.Customer{}, err
		}
		if tier, err = rules.SampleWeighted(r, dist); err != nil {
			return model.Customer{}, fmt.Errorf("loyalty tier: %w", err)
		}
	}

	clv := cfg.Vocab.CLVBuckets[0]
	if b, ok := p.CLVMap[tier]; ok {
		clv = b
	}

	status, err := rules.SampleWeighted(r, cs.StatusDistribution)
	if err != nil {
		return model.Customer{}, fmt.Errorf("customer status: %w", err)
	}

	gender := GenderUnknown
	if !rules.Bernoulli(r, cs.GenderUnknownProb) {
		gender = rules.Pick(r, cfg.Vocab.Genders)
	}

	billing := who.address
	if !rules.Bernoulli(r, 0.85) {
		billing = address(gofakeit.NewFaker(rules.Stream(cfg.Seed, "billing/"+id), false))
	}

	c := model.Customer{
		CustomerID:         id,
		FirstName:          who.first,
		LastName:           who.last,
		Email:              who.email,
		PhoneNumber:        who.phone,
		Age:                rules.UniformInt(r, cs.MinAge, cs.MaxAge),
		Gender:             gender,
		MailingAddress:     who.address,
		BillingAddress:     billing,
		SignupDate:         signup,
		SignupChannel:      channel,
		InitialLoyaltyTier: tier,
		LoyaltyTier:        tier,
		CLVBucket:          clv,
		CustomerStatus:     status,
		EmailVerified:      rules.Bernoulli(r, cs.EmailVerifiedProb),
		MarketingOptIn:     rules.Bernoulli(r, cs.MarketingOptInProb),
		IsGuest:            guest,
	}

	if tier != "" {
		enrolled := signup.Add(time.Duration(rules.UniformInt(r, 0, 14*24*60)) * time.Minute)
		if last := cfg.End().Add(-time.Minute); enrolled.After(last) {
			enrolled = last
		}
		c.LoyaltyEnrollmentDate = &enrolled
	}
	return c, nil
}

// guestPool builds the shared contacts repeat guests check out with.
func guestPool(cfg *config.Config) []contact {
	n := cfg.Lookup.Customers.GuestContactPoolSize
	if n <= 0 || cfg.Lookup.Customers.GuestShopperPct <= 0 {
		return nil
	}
	r := rules.Stream(cfg.Seed, "guest-pool")
	pool := make([]contact, n)
	for i := range pool {
		pool[i] = newContact(cfg, r, fmt.Sprintf("pool-%d", i+1))
	}
	return pool
}

func newContact(cfg *config.Config, r *rand.Rand, tag string) contact {
	f := gofakeit.NewFaker(r, false)
	first, last := f.FirstName(), f.LastName()
	domain := rules.Pick(r, cfg.Vocab.EmailDomains)
	return contact{
		first:   first,
		last:    last,
		email:   fmt.Sprintf("%s.%s.%s@%s", slug(first), slug(last), slug(tag), domain),
		phone:   f.Phone(),
		address: address(f),
	}
}

func address(f *gofakeit.Faker) string {
	return fmt.Sprintf("%s, %s, %s %s", f.Street(), f.City(), f.StateAbr(), f.Zip())
}

// slug lower-cases s and keeps only ASCII letters and digits.
func slug(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "x"
	}
	return b.String()
}
