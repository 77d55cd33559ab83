package config

import (
	"errors"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all SDK settings required to initialize the wallet client,
// resolver, and reward engine. Use Validate to fill implicit defaults and to
// check for required fields.
type Config struct {
	// ConnectionURI is the wallet-connect URI for the controlling wallet
	// (required).
	ConnectionURI string `json:"connection_uri" env:"ZAPSTREAK_CONNECTION_URI"`
	// StorePath is the filesystem path of the local state database. When
	// empty, state is kept in memory and lost on exit.
	StorePath string `json:"store_path" env:"ZAPSTREAK_STORE_PATH"`
	// ReconcileSpec is the cron schedule of the reward reconciliation
	// pass. Empty disables the reconciler.
	ReconcileSpec string `json:"reconcile_spec" env:"ZAPSTREAK_RECONCILE_SPEC"`
	// Debug enables verbose logging.
	Debug bool `json:"debug" env:"ZAPSTREAK_DEBUG"`
	// Rewards configures reward pricing. See Rewards.
	Rewards Rewards `json:"rewards"`
	// Timeouts configures per-operation timeouts. See Timeouts.WithDefaults.
	Timeouts Timeouts `json:"timeouts"`
}

// Rewards configures the streak pricing schedule. Zero values fall back to
// the engine's defaults.
type Rewards struct {
	// CapDays bounds how many streak days accrue rewards.
	CapDays int `json:"cap_days" env:"ZAPSTREAK_CAP_DAYS"`
	// BaseRateMsat is the per-day reward before the tier multiplier.
	BaseRateMsat int64 `json:"base_rate_msat" env:"ZAPSTREAK_BASE_RATE_MSAT"`
	// Multipliers maps tier names to decimal multiplier strings.
	Multipliers map[string]string `json:"multipliers"`
	// TopTier names the tier earning the per-member bonus.
	TopTier string `json:"top_tier" env:"ZAPSTREAK_TOP_TIER"`
	// PerMemberBonusMsat is the top tier's extra per-day, per-member amount.
	PerMemberBonusMsat int64 `json:"per_member_bonus_msat" env:"ZAPSTREAK_PER_MEMBER_BONUS_MSAT"`
	// Memo is attached to reward payments.
	Memo string `json:"memo" env:"ZAPSTREAK_REWARD_MEMO"`
}

// Timeouts controls SDK operation deadlines.
// Zero values will be replaced by sane defaults in WithDefaults.
type Timeouts struct {
	Request time.Duration `env:"ZAPSTREAK_REQUEST_TIMEOUT"` // full RPC exchange
	Verify  time.Duration `env:"ZAPSTREAK_VERIFY_TIMEOUT"`  // per verification probe
	Resolve time.Duration `env:"ZAPSTREAK_RESOLVE_TIMEOUT"` // profile lookup
}

// Validate verifies that a connection URI is provided. Reward pricing and
// timeout defaults are applied later by their consumers.
func (c *Config) Validate() error {
	if c.ConnectionURI == "" {
		return errors.New("connection URI is required")
	}
	return nil
}

// WithDefaults returns a copy of t with zero values replaced by defaults:
//
//	Request: 30s
//	Verify:  10s
//	Resolve: 10s
func (t Timeouts) WithDefaults() Timeouts {
	tt := t
	if tt.Request == 0 {
		tt.Request = 30 * time.Second
	}
	if tt.Verify == 0 {
		tt.Verify = 10 * time.Second
	}
	if tt.Resolve == 0 {
		tt.Resolve = 10 * time.Second
	}
	return tt
}

// FromEnv builds a Config from ZAPSTREAK_* environment variables.
func FromEnv() (*Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return nil, err
	}
	return &c, nil
}
