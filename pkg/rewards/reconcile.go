package rewards

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Reconciler periodically re-drives the accrual pipeline for tracked
// identities, picking up rewards left owed-but-unpaid by transient wallet or
// network failures. Because AccrueAndPay is idempotent, a reconciliation pass
// for an identity with nothing owed is a cheap no-op.
type Reconciler struct {
	engine  *Engine
	cron    *cron.Cron
	timeout time.Duration

	mu         sync.Mutex
	identities map[string]time.Time
}

// DefaultReconcileSpec runs a pass every 30 minutes.
const DefaultReconcileSpec = "*/30 * * * *"

// NewReconciler schedules reconciliation passes with the given cron spec
// (DefaultReconcileSpec when empty).
func NewReconciler(engine *Engine, spec string) (*Reconciler, error) {
	if spec == "" {
		spec = DefaultReconcileSpec
	}
	r := &Reconciler{
		engine:     engine,
		cron:       cron.New(),
		timeout:    5 * time.Minute,
		identities: make(map[string]time.Time),
	}
	if _, err := r.cron.AddFunc(spec, r.RunOnce); err != nil {
		return nil, err
	}
	return r, nil
}

// Track registers an identity and its latest activity day for future passes.
// Re-tracking updates the activity day.
func (r *Reconciler) Track(identity string, activityDay time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.identities[identity] = dayOf(activityDay)
}

// Untrack removes an identity from reconciliation.
func (r *Reconciler) Untrack(identity string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.identities, identity)
}

// Start begins the cron schedule.
func (r *Reconciler) Start() { r.cron.Start() }

// Stop halts the schedule and waits for a running pass to finish.
func (r *Reconciler) Stop() {
	<-r.cron.Stop().Done()
}

// RunOnce executes one reconciliation pass over all tracked identities.
func (r *Reconciler) RunOnce() {
	r.mu.Lock()
	snapshot := make(map[string]time.Time, len(r.identities))
	for id, day := range r.identities {
		snapshot[id] = day
	}
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	for identity, day := range snapshot {
		outcome, err := r.engine.AccrueAndPay(ctx, identity, day)
		if err != nil {
			var failed *AllAttemptsFailed
			if errors.As(err, &failed) {
				zap.L().Info("rewards: reconciliation payout still failing",
					zap.String("identity", identity),
					zap.Int("attempts", len(failed.Attempts)))
			} else {
				zap.L().Warn("rewards: reconciliation pass error",
					zap.String("identity", identity), zap.Error(err))
			}
			continue
		}
		if outcome.Paid {
			zap.L().Info("rewards: reconciliation settled owed reward",
				zap.String("identity", identity),
				zap.Int64("amount_msat", outcome.AmountMsat))
		}
	}
}
