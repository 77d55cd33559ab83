package rewards

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zapstreak/zapstreak-sdk-go/pkg/model"
	"github.com/zapstreak/zapstreak-sdk-go/pkg/storage"
	"github.com/zapstreak/zapstreak-sdk-go/pkg/wallet"
	"go.uber.org/zap"
)

// AllAttemptsFailed is returned when every destination candidate failed
// payment. The reward stays owed and will be retried on the next triggering
// event.
type AllAttemptsFailed struct {
	Attempts []model.PaymentAttempt
}

func (e *AllAttemptsFailed) Error() string {
	return fmt.Sprintf("rewards: all %d payout attempts failed", len(e.Attempts))
}

// WalletClient is the dispatcher surface the engine needs. Satisfied by
// *wallet.Client.
type WalletClient interface {
	PayToDestination(ctx context.Context, destination string, amountMsat int64, memo string) (*wallet.PaymentReceipt, error)
	VerifyPayment(ctx context.Context, inv wallet.PendingInvoice) (wallet.VerifyOutcome, error)
}

// DestinationResolver is the resolver surface the engine needs. Satisfied by
// *resolver.Resolver.
type DestinationResolver interface {
	Resolve(ctx context.Context, identity string) ([]string, error)
	MarkFailed(identity, destination string)
	Invalidate(identity string)
}

// Outcome reports what one AccrueAndPay invocation did.
type Outcome struct {
	Identity      string
	StreakDays    int
	EffectiveDays int
	// OwedDays is reported even when no payout runs (no subscription
	// tier), so callers can surface upsell messaging.
	OwedDays   int
	Tier       string
	AmountMsat int64
	Paid       bool
	// VerifyTier records which verification rung confirmed the payment,
	// when verification ran.
	VerifyTier wallet.VerifyTier
	Attempts   []model.PaymentAttempt
}

// Engine drives the accrual and payout pipeline.
type Engine struct {
	store    storage.Store
	wallet   WalletClient
	resolver DestinationResolver
	tiers    SubscriptionLookup
	params   Params
	metrics  *Metrics
	now      func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// EngineOption customises the engine instance.
type EngineOption func(*Engine)

// WithMetrics overrides the default metrics registry.
func WithMetrics(m *Metrics) EngineOption {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithClock sets the function used to derive timestamps.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithParams overrides the pricing parameters.
func WithParams(p Params) EngineOption {
	return func(e *Engine) { e.params = p.WithDefaults() }
}

// NewEngine constructs the payout engine over its collaborators.
func NewEngine(store storage.Store, w WalletClient, r DestinationResolver, tiers SubscriptionLookup, opts ...EngineOption) *Engine {
	e := &Engine{
		store:    store,
		wallet:   w,
		resolver: r,
		tiers:    tiers,
		params:   Params{}.WithDefaults(),
		now:      time.Now,
		locks:    make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = NewMetrics(nil)
	}
	return e
}

// lockIdentity serializes pipeline runs per identity. Distinct identities
// proceed independently.
func (e *Engine) lockIdentity(identity string) func() {
	e.mu.Lock()
	l, ok := e.locks[identity]
	if !ok {
		l = &sync.Mutex{}
		e.locks[identity] = l
	}
	e.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// AccrueAndPay folds one activity event into the identity's streak and pays
// out any newly owed reward days. It is idempotent: invoking it again with no
// new activity computes zero owed days, and a failed payout leaves the streak
// bookkeeping untouched so the same days are retried later. LastRewardedDay
// advances only in the finalization branch after a payment succeeds.
func (e *Engine) AccrueAndPay(ctx context.Context, identity string, activityDay time.Time) (*Outcome, error) {
	unlock := e.lockIdentity(identity)
	defer unlock()

	now := e.now()

	rec, err := e.store.GetStreak(identity)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("rewards: load streak for %s: %w", identity, err)
		}
		rec = &model.StreakRecord{Identity: identity}
	}

	if accrue(rec, activityDay, now) {
		if err := e.store.PutStreak(rec); err != nil {
			return nil, fmt.Errorf("rewards: persist streak for %s: %w", identity, err)
		}
	}

	effective := effectiveDays(rec.CurrentStreakDays, e.params.CapDays)
	owed := owedDays(effective, rec.LastRewardedDay)

	outcome := &Outcome{
		Identity:      identity,
		StreakDays:    rec.CurrentStreakDays,
		EffectiveDays: effective,
		OwedDays:      owed,
	}
	if owed == 0 {
		e.metrics.recordPayout("noop")
		return outcome, nil
	}

	tier, err := e.tiers.Tier(ctx, identity)
	if err != nil {
		return outcome, fmt.Errorf("rewards: tier lookup for %s: %w", identity, err)
	}
	if tier != nil {
		outcome.Tier = tier.Name
	}

	amount := e.params.amountMsat(tier, owed)
	outcome.AmountMsat = amount
	if amount == 0 {
		// Owed days stay informational: nothing is paid without a tier,
		// and LastRewardedDay must not move.
		e.metrics.recordPayout("unpriced")
		return outcome, nil
	}

	if done, err := e.recoverPending(ctx, rec, effective, outcome, now); done || err != nil {
		return outcome, err
	}

	return outcome, e.payout(ctx, rec, effective, amount, outcome, now)
}

// recoverPending consults an existing in-flight payment before generating a
// new one. A verified-paid pending payment finalizes immediately; an expired
// one is dropped and regenerated; a conclusively unpaid one is dropped.
func (e *Engine) recoverPending(ctx context.Context, rec *model.StreakRecord, effective int, outcome *Outcome, now time.Time) (bool, error) {
	pend, err := e.store.GetPending(rec.Identity)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("rewards: load pending payment: %w", err)
	}

	if pend.Expired(now, e.params.PendingMaxAge) {
		zap.L().Info("rewards: pending payment expired, regenerating",
			zap.String("identity", rec.Identity), zap.String("payment", pend.ID))
		if err := e.store.DeletePending(rec.Identity); err != nil {
			return false, fmt.Errorf("rewards: drop expired pending payment: %w", err)
		}
		return false, nil
	}
	if pend.PaymentHash == "" {
		return false, nil
	}

	vo, err := e.wallet.VerifyPayment(ctx, wallet.PendingInvoice{
		Invoice:     pend.Invoice,
		PaymentHash: pend.PaymentHash,
		IssuedAt:    pend.CreatedAt,
	})
	if err != nil {
		// The wallet is unreachable; a fresh payout attempt would fail
		// the same way, and paying blind risks a duplicate.
		return false, fmt.Errorf("rewards: verify pending payment for %s: %w", rec.Identity, err)
	}
	if vo.Paid {
		outcome.Paid = true
		outcome.VerifyTier = vo.Tier
		outcome.Attempts = pend.Attempts
		return true, e.finalize(rec, effective, now)
	}
	if vo.Tier == wallet.TierDirect {
		// Conclusively unpaid: the old attempt never settled.
		if err := e.store.DeletePending(rec.Identity); err != nil {
			return false, fmt.Errorf("rewards: drop unpaid pending payment: %w", err)
		}
	}
	return false, nil
}

// payout tries each resolved destination in order, stopping at the first
// success. Candidates are never attempted in parallel and never retried
// within one call.
func (e *Engine) payout(ctx context.Context, rec *model.StreakRecord, effective int, amount int64, outcome *Outcome, now time.Time) error {
	start := e.now()

	candidates, err := e.resolver.Resolve(ctx, rec.Identity)
	if err != nil {
		e.metrics.recordPayout("unresolved")
		return err
	}

	pend := &model.PendingPayment{
		ID:         uuid.NewString(),
		Identity:   rec.Identity,
		Tier:       outcome.Tier,
		AmountMsat: amount,
		CreatedAt:  now,
	}
	if err := e.store.PutPending(pend); err != nil {
		return fmt.Errorf("rewards: persist pending payment: %w", err)
	}

	for _, dest := range candidates {
		receipt, payErr := e.wallet.PayToDestination(ctx, dest, amount, e.params.Memo)

		attempt := model.PaymentAttempt{
			Destination: dest,
			Success:     payErr == nil,
			At:          e.now(),
		}
		if payErr != nil {
			attempt.Error = payErr.Error()
		}
		pend.Attempts = append(pend.Attempts, attempt)
		if err := e.store.PutPending(pend); err != nil {
			return fmt.Errorf("rewards: persist attempt log: %w", err)
		}
		e.metrics.recordAttempt(payErr == nil)

		if payErr != nil {
			zap.L().Warn("rewards: payout attempt failed",
				zap.String("identity", rec.Identity),
				zap.String("destination", dest),
				zap.Error(payErr))
			e.resolver.MarkFailed(rec.Identity, dest)
			continue
		}

		pend.Invoice = receipt.Invoice
		pend.PaymentHash = receipt.PaymentHash
		if err := e.store.PutPending(pend); err != nil {
			return fmt.Errorf("rewards: persist payment receipt: %w", err)
		}

		e.confirm(ctx, pend, outcome)
		outcome.Paid = true
		outcome.Attempts = pend.Attempts

		if err := e.finalize(rec, effective, now); err != nil {
			return err
		}
		e.metrics.recordPayout("paid")
		e.metrics.observeLatency(e.now().Sub(start))
		return nil
	}

	// Exhausted every candidate. LastRewardedDay stays put so the same owed
	// days are retried on the next triggering event, against a freshly
	// resolved destination list.
	outcome.Attempts = pend.Attempts
	e.resolver.Invalidate(rec.Identity)
	e.metrics.recordPayout("failed")
	return &AllAttemptsFailed{Attempts: pend.Attempts}
}

// confirm runs the verification chain over a just-paid invoice so the
// settlement tier lands in the outcome and the audit log. The dispatcher's
// pay success already decided the payout; verification here only classifies
// how strong the settlement evidence is.
func (e *Engine) confirm(ctx context.Context, pend *model.PendingPayment, outcome *Outcome) {
	if pend.PaymentHash == "" {
		return
	}
	vo, err := e.wallet.VerifyPayment(ctx, wallet.PendingInvoice{
		Invoice:     pend.Invoice,
		PaymentHash: pend.PaymentHash,
		IssuedAt:    pend.CreatedAt,
	})
	if err != nil {
		zap.L().Warn("rewards: settlement verification unavailable",
			zap.String("identity", pend.Identity), zap.Error(err))
		return
	}
	outcome.VerifyTier = vo.Tier
	if vo.Tier == wallet.TierOptimistic {
		zap.L().Warn("rewards: payout confirmed optimistically, flag for audit",
			zap.String("identity", pend.Identity), zap.String("payment", pend.ID))
	}
}

// finalize is the single mutation that makes a reward non-repeatable: it
// advances LastRewardedDay to the effective streak day and removes the
// pending payment.
func (e *Engine) finalize(rec *model.StreakRecord, effective int, now time.Time) error {
	rec.LastRewardedDay = effective
	rec.UpdatedAt = now
	if err := e.store.PutStreak(rec); err != nil {
		// The payment went out but the bookkeeping write failed; surface
		// loudly since a retry would double-pay.
		zap.L().Error("rewards: reward paid but streak record not persisted",
			zap.String("identity", rec.Identity), zap.Error(err))
		return fmt.Errorf("rewards: persist rewarded streak for %s: %w", rec.Identity, err)
	}
	if err := e.store.DeletePending(rec.Identity); err != nil {
		zap.L().Warn("rewards: pending payment cleanup failed",
			zap.String("identity", rec.Identity), zap.Error(err))
	}
	return nil
}
