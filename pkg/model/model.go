package model

import "time"

// WalletInfo is the decoded result of a get_info call.
type WalletInfo struct {
	// BalanceMsat is the spendable balance in millisatoshis.
	BalanceMsat int64 `json:"balance"`
	// Alias is the wallet's human-readable name, if it reports one.
	Alias string `json:"alias"`
	// Methods lists the RPC method names the wallet claims to support.
	Methods []string `json:"methods"`
}

// Supports reports whether the wallet advertises the given RPC method.
func (w *WalletInfo) Supports(method string) bool {
	for _, m := range w.Methods {
		if m == method {
			return true
		}
	}
	return false
}

// Invoice is the decoded result of a make_invoice call.
type Invoice struct {
	// Bolt11 is the payable invoice string.
	Bolt11 string `json:"invoice"`
	// PaymentHash is set when the wallet returns one; it may be empty.
	PaymentHash string `json:"payment_hash"`
}

// Transaction is one entry from a list_transactions result.
type Transaction struct {
	Type        string `json:"type"`
	PaymentHash string `json:"payment_hash"`
	AmountMsat  int64  `json:"amount"`
	Settled     bool   `json:"settled"`
	// SettledAt is a unix timestamp; zero when the transaction is unsettled.
	SettledAt int64 `json:"settled_at"`
}

// StreakRecord tracks the consecutive-activity counter and reward bookkeeping
// for one identity. LastRewardedDay only ever advances, and only after a
// payout has durably succeeded; this is the invariant that prevents double
// payment when the accrual pipeline is re-invoked.
type StreakRecord struct {
	Identity string `json:"identity"`
	// CurrentStreakDays is the length of the trailing run of consecutive
	// UTC activity days. Reset to 1 on a gap.
	CurrentStreakDays int `json:"current_streak_days"`
	// LastRewardedDay is the highest streak-day index for which a payout
	// has been confirmed.
	LastRewardedDay int `json:"last_rewarded_day"`
	// LastActivityDay is the most recent activity date, truncated to a UTC
	// calendar day.
	LastActivityDay time.Time `json:"last_activity_day"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// PaymentAttempt records one payout attempt against a single destination.
type PaymentAttempt struct {
	Destination string    `json:"destination"`
	Error       string    `json:"error,omitempty"`
	Success     bool      `json:"success"`
	At          time.Time `json:"at"`
}

// PendingPayment is an in-flight reward payment. It is created when an
// invoice is generated for a reward and deleted on confirmed settlement.
// Records older than 24 hours are treated as expired and regenerated.
type PendingPayment struct {
	ID          string           `json:"id"`
	Identity    string           `json:"identity"`
	Invoice     string           `json:"invoice,omitempty"`
	PaymentHash string           `json:"payment_hash,omitempty"`
	Tier        string           `json:"tier"`
	AmountMsat  int64            `json:"amount_msat"`
	Attempts    []PaymentAttempt `json:"attempts,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

// Expired reports whether the pending payment has exceeded the given age
// bound at time now.
func (p *PendingPayment) Expired(now time.Time, maxAge time.Duration) bool {
	return now.Sub(p.CreatedAt) > maxAge
}

// Tier describes an identity's subscription level as reported by the
// subscription-tier collaborator.
type Tier struct {
	// Name is the tier label, e.g. "member" or "legend".
	Name string `json:"name"`
	// Members is the group size input used for the top tier's per-member
	// bonus. Ignored for lower tiers.
	Members int `json:"members"`
}

// ResolverEntry is a cached destination-resolution result for one identity.
// Empty Destinations is a valid cached answer: it records that the identity
// has no resolvable destination and suppresses repeated lookups.
type ResolverEntry struct {
	Identity     string    `json:"identity"`
	Destinations []string  `json:"destinations"`
	FetchedAt    time.Time `json:"fetched_at"`
}

// Stale reports whether the entry is older than ttl at time now.
func (e *ResolverEntry) Stale(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.FetchedAt) > ttl
}
