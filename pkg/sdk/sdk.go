package sdk

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zapstreak/zapstreak-sdk-go/pkg/config"
	"github.com/zapstreak/zapstreak-sdk-go/pkg/nwc"
	"github.com/zapstreak/zapstreak-sdk-go/pkg/resolver"
	"github.com/zapstreak/zapstreak-sdk-go/pkg/rewards"
	"github.com/zapstreak/zapstreak-sdk-go/pkg/storage"
	"github.com/zapstreak/zapstreak-sdk-go/pkg/wallet"
	"go.uber.org/zap"
)

// SDK is the public interface for driving wallet operations and reward
// payouts, and for releasing resources.
type SDK interface {
	// Wallet returns the typed RPC dispatcher bound to the configured
	// wallet connection.
	Wallet() *wallet.Client

	// AccrueAndPay folds an activity event into the identity's streak and
	// pays any newly owed reward days. Idempotent; safe to call from both
	// activity events and periodic reconciliation.
	AccrueAndPay(ctx context.Context, identity string, activityDay time.Time) (*rewards.Outcome, error)

	// Reconciler returns the periodic reconciliation scheduler, or nil
	// when no schedule is configured.
	Reconciler() *rewards.Reconciler

	// Close releases the relay transport's resources and the local store.
	Close() error
}

// init configures a default global zap logger for the SDK. Applications may
// replace it with zap.ReplaceGlobals(...) if they need custom logging.
func init() {
	c := zap.Config{
		Level:            zap.NewAtomicLevelAt(zap.InfoLevel),
		Development:      false,
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := c.Build()
	if err != nil {
		panic(err)
	}
	zap.ReplaceGlobals(logger)
}

// Core is the concrete SDK implementation.
type Core struct {
	*config.Config

	desc       *nwc.ConnectionDescriptor
	store      storage.Store
	wallet     *wallet.Client
	engine     *rewards.Engine
	reconciler *rewards.Reconciler
}

// NewSDK initializes the SDK Core: it validates the configuration, parses the
// wallet connection URI, opens the local store, and assembles the wallet
// client, resolver, and reward engine. The profile and tier collaborators are
// supplied by the application.
func NewSDK(cfg *config.Config, profiles resolver.ProfileLookup, tiers rewards.SubscriptionLookup) (SDK, error) {
	if err := cfg.Validate(); err != nil {
		zap.L().Error("invalid config", zap.Error(err))
		return nil, err
	}
	cfg.Timeouts = cfg.Timeouts.WithDefaults()

	desc, err := nwc.ParseConnectionURI(cfg.ConnectionURI)
	if err != nil {
		return nil, err
	}

	var store storage.Store
	if cfg.StorePath != "" {
		store, err = storage.NewBoltStore(cfg.StorePath, nil)
		if err != nil {
			return nil, fmt.Errorf("open state store: %w", err)
		}
	} else {
		zap.L().Warn("no store path configured, streak state will not survive restarts")
		store = storage.NewMemoryStore()
	}

	transport := nwc.NewTransport(nwc.WithRequestTimeout(cfg.Timeouts.Request))
	walletClient := wallet.NewClient(desc,
		wallet.WithTransport(transport),
		wallet.WithVerifyTimeout(cfg.Timeouts.Verify),
	)

	res := resolver.New(store, profiles, resolver.WithLookupTimeout(cfg.Timeouts.Resolve))

	params, err := rewardParams(cfg.Rewards)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	engine := rewards.NewEngine(store, walletClient, res, tiers, rewards.WithParams(params))

	core := &Core{
		Config: cfg,
		desc:   desc,
		store:  store,
		wallet: walletClient,
		engine: engine,
	}

	if cfg.ReconcileSpec != "" {
		rec, err := rewards.NewReconciler(engine, cfg.ReconcileSpec)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("reconcile schedule: %w", err)
		}
		rec.Start()
		core.reconciler = rec
	}

	if cfg.Debug {
		zap.L().Debug("sdk initialized",
			zap.String("relay", desc.RelayURL),
			zap.String("wallet", desc.WalletPubKey))
	}

	return core, nil
}

// rewardParams translates the config's pricing section into engine params.
func rewardParams(r config.Rewards) (rewards.Params, error) {
	p := rewards.Params{
		CapDays:            r.CapDays,
		BaseRateMsat:       r.BaseRateMsat,
		TopTier:            r.TopTier,
		PerMemberBonusMsat: r.PerMemberBonusMsat,
		Memo:               r.Memo,
	}
	if len(r.Multipliers) > 0 {
		p.Multipliers = make(map[string]decimal.Decimal, len(r.Multipliers))
		for name, raw := range r.Multipliers {
			d, err := decimal.NewFromString(raw)
			if err != nil {
				return rewards.Params{}, fmt.Errorf("tier multiplier %s: %w", name, err)
			}
			p.Multipliers[name] = d
		}
	}
	return p, nil
}

// Wallet returns the typed RPC dispatcher.
func (c *Core) Wallet() *wallet.Client {
	return c.wallet
}

// AccrueAndPay drives one run of the reward pipeline for identity.
func (c *Core) AccrueAndPay(ctx context.Context, identity string, activityDay time.Time) (*rewards.Outcome, error) {
	outcome, err := c.engine.AccrueAndPay(ctx, identity, activityDay)
	if c.reconciler != nil {
		c.reconciler.Track(identity, activityDay)
	}
	return outcome, err
}

// Reconciler returns the periodic reconciliation scheduler, or nil.
func (c *Core) Reconciler() *rewards.Reconciler {
	return c.reconciler
}

// Close stops the reconciler and releases the local store.
func (c *Core) Close() error {
	if c.reconciler != nil {
		c.reconciler.Stop()
	}
	return c.store.Close()
}
