package rewards

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zapstreak/zapstreak-sdk-go/pkg/model"
)

// SubscriptionLookup is the external collaborator reporting an identity's
// subscription tier. A nil tier with a nil error means the identity has no
// subscription; owed days are then reported but never paid.
type SubscriptionLookup interface {
	Tier(ctx context.Context, identity string) (*model.Tier, error)
}

// Params configures reward pricing and payout behavior.
type Params struct {
	// CapDays bounds how many streak days accrue rewards.
	CapDays int
	// BaseRateMsat is the per-day reward before the tier multiplier.
	BaseRateMsat int64
	// Multipliers maps tier names to their pricing multiplier.
	Multipliers map[string]decimal.Decimal
	// TopTier names the tier whose group size earns the per-member bonus.
	TopTier string
	// PerMemberBonusMsat is the extra per-day, per-member amount paid to
	// the top tier.
	PerMemberBonusMsat int64
	// PendingMaxAge bounds how long an in-flight payment stays reusable
	// before it is regenerated.
	PendingMaxAge time.Duration
	// Memo is attached to reward invoices.
	Memo string
}

// Default pricing values. The "member" multiplier matches the published
// reward schedule.
var defaultMultipliers = map[string]decimal.Decimal{
	"member": decimal.RequireFromString("2.85"),
	"legend": decimal.RequireFromString("4.20"),
}

// WithDefaults fills zero fields with default pricing.
func (p Params) WithDefaults() Params {
	if p.CapDays == 0 {
		p.CapDays = 7
	}
	if p.BaseRateMsat == 0 {
		p.BaseRateMsat = 100
	}
	if p.Multipliers == nil {
		p.Multipliers = defaultMultipliers
	}
	if p.TopTier == "" {
		p.TopTier = "legend"
	}
	if p.PendingMaxAge == 0 {
		p.PendingMaxAge = 24 * time.Hour
	}
	if p.Memo == "" {
		p.Memo = "streak reward"
	}
	return p
}

// amountMsat prices owed streak days for a tier. The per-day amount is
// floor(baseRate × multiplier); the top tier additionally earns the
// per-member bonus for each owed day. A nil or unknown tier prices to zero
// regardless of owed days.
func (p Params) amountMsat(tier *model.Tier, owed int) int64 {
	if tier == nil || owed <= 0 {
		return 0
	}
	mult, ok := p.Multipliers[tier.Name]
	if !ok {
		return 0
	}

	perDay := decimal.NewFromInt(p.BaseRateMsat).Mul(mult).Floor().IntPart()
	amount := int64(owed) * perDay

	if tier.Name == p.TopTier && tier.Members > 0 {
		amount += int64(owed) * int64(tier.Members) * p.PerMemberBonusMsat
	}
	return amount
}
