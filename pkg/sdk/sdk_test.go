package sdk

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/zapstreak/zapstreak-sdk-go/internal/testutil/relaybuf"
	"github.com/zapstreak/zapstreak-sdk-go/pkg/config"
	"github.com/zapstreak/zapstreak-sdk-go/pkg/model"
	"github.com/zapstreak/zapstreak-sdk-go/pkg/nwc"
)

type profileFunc func(ctx context.Context, identity string) ([]string, error)

func (f profileFunc) LookupDestinations(ctx context.Context, identity string) ([]string, error) {
	return f(ctx, identity)
}

type tierFunc func(ctx context.Context, identity string) (*model.Tier, error)

func (f tierFunc) Tier(ctx context.Context, identity string) (*model.Tier, error) {
	return f(ctx, identity)
}

func noProfiles(ctx context.Context, identity string) ([]string, error) {
	return nil, nil
}

func noTiers(ctx context.Context, identity string) (*model.Tier, error) {
	return nil, nil
}

// walletHandler answers the wallet RPCs the SDK tests exercise.
func walletHandler(method string, params json.RawMessage) (interface{}, *nwc.RemoteError) {
	switch method {
	case "get_info":
		return map[string]interface{}{
			"balance": int64(100000),
			"alias":   "relaybuf",
			"methods": []string{"get_info", "pay_invoice", "make_invoice"},
		}, nil
	case "pay_invoice":
		return map[string]string{"preimage": "00ff00ff"}, nil
	default:
		return nil, &nwc.RemoteError{Code: "NOT_IMPLEMENTED", Message: method}
	}
}

func startSDK(t *testing.T, cfg *config.Config) SDK {
	t.Helper()
	s, err := NewSDK(cfg, profileFunc(noProfiles), tierFunc(noTiers))
	if err != nil {
		t.Fatalf("new sdk: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNewSDK_RequiresConnectionURI(t *testing.T) {
	if _, err := NewSDK(&config.Config{}, profileFunc(noProfiles), tierFunc(noTiers)); err == nil {
		t.Fatal("empty config accepted")
	}
}

func TestNewSDK_RejectsBadMultiplier(t *testing.T) {
	relay, err := relaybuf.Start(walletHandler)
	if err != nil {
		t.Fatalf("start relay: %v", err)
	}
	defer relay.Close()

	cfg := &config.Config{
		ConnectionURI: relay.ConnectionURI(),
		Rewards: config.Rewards{
			Multipliers: map[string]string{"member": "not-a-number"},
		},
	}
	if _, err := NewSDK(cfg, profileFunc(noProfiles), tierFunc(noTiers)); err == nil {
		t.Fatal("malformed multiplier accepted")
	}
}

func TestNewSDK_RejectsBadReconcileSpec(t *testing.T) {
	relay, err := relaybuf.Start(walletHandler)
	if err != nil {
		t.Fatalf("start relay: %v", err)
	}
	defer relay.Close()

	cfg := &config.Config{
		ConnectionURI: relay.ConnectionURI(),
		ReconcileSpec: "not a cron spec",
	}
	if _, err := NewSDK(cfg, profileFunc(noProfiles), tierFunc(noTiers)); err == nil {
		t.Fatal("malformed reconcile spec accepted")
	}
}

func TestSDK_WalletThroughRelay(t *testing.T) {
	relay, err := relaybuf.Start(walletHandler)
	if err != nil {
		t.Fatalf("start relay: %v", err)
	}
	defer relay.Close()

	s := startSDK(t, &config.Config{ConnectionURI: relay.ConnectionURI()})

	info, err := s.Wallet().GetInfo(context.Background())
	if err != nil {
		t.Fatalf("get_info through relay: %v", err)
	}
	if info.BalanceMsat != 100000 || info.Alias != "relaybuf" {
		t.Errorf("info = %+v", info)
	}
}

func TestSDK_AccrueWithoutTier(t *testing.T) {
	relay, err := relaybuf.Start(walletHandler)
	if err != nil {
		t.Fatalf("start relay: %v", err)
	}
	defer relay.Close()

	s := startSDK(t, &config.Config{
		ConnectionURI: relay.ConnectionURI(),
		StorePath:     filepath.Join(t.TempDir(), "state.db"),
	})

	out, err := s.AccrueAndPay(context.Background(), "alice", time.Now())
	if err != nil {
		t.Fatalf("accrue: %v", err)
	}
	if out.StreakDays != 1 || out.OwedDays != 1 || out.Paid {
		t.Errorf("outcome = %+v, want accrued but unpaid without a tier", out)
	}
}

func TestSDK_ReconcilerLifecycle(t *testing.T) {
	relay, err := relaybuf.Start(walletHandler)
	if err != nil {
		t.Fatalf("start relay: %v", err)
	}
	defer relay.Close()

	s := startSDK(t, &config.Config{ConnectionURI: relay.ConnectionURI()})
	if s.Reconciler() != nil {
		t.Error("reconciler running without a schedule")
	}

	scheduled := startSDK(t, &config.Config{
		ConnectionURI: relay.ConnectionURI(),
		ReconcileSpec: "@every 1h",
	})
	if scheduled.Reconciler() == nil {
		t.Error("configured reconciler missing")
	}
}
