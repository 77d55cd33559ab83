// Package resolver turns a user identity into an ordered list of payable
// destinations. Directly payable identities short-circuit; opaque identities
// go through a profile-lookup collaborator behind a persisted, age-bounded
// positive cache. A separate failure set records destinations that previously
// failed payment. The set feeds diagnostics and cache invalidation, not
// exclusion, since a wallet that failed once may only have been transiently
// unreachable.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zapstreak/zapstreak-sdk-go/pkg/model"
	"github.com/zapstreak/zapstreak-sdk-go/pkg/storage"
	"go.uber.org/zap"
)

// ErrNoDestination is returned when an identity resolves to nothing payable.
var ErrNoDestination = errors.New("resolver: no payable destination")

// DefaultCacheTTL bounds the age of positive cache entries.
const DefaultCacheTTL = 6 * time.Hour

// ProfileLookup is the external collaborator that maps an opaque identity to
// zero or more candidate payment destinations. Its transport is not specified
// here; implementations typically read a user profile from a social or
// directory service.
type ProfileLookup interface {
	LookupDestinations(ctx context.Context, identity string) ([]string, error)
}

// Resolver resolves identities to destination candidate lists.
type Resolver struct {
	store   storage.Store
	lookup  ProfileLookup
	ttl     time.Duration
	timeout time.Duration
	now     func() time.Time
}

// Option customises a Resolver.
type Option func(*Resolver)

// WithCacheTTL overrides the positive cache TTL.
func WithCacheTTL(ttl time.Duration) Option {
	return func(r *Resolver) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithLookupTimeout bounds each profile lookup call.
func WithLookupTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithClock sets the time source used for cache aging.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

// New constructs a Resolver over the given store and profile collaborator.
func New(store storage.Store, lookup ProfileLookup, opts ...Option) *Resolver {
	r := &Resolver{
		store:   store,
		lookup:  lookup,
		ttl:     DefaultCacheTTL,
		timeout: 10 * time.Second,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the ordered destination candidates for identity.
//
// An identity that is already payable (Lightning address, bolt11, lnurl) is
// returned as a single-element list without any lookup or caching. Otherwise
// the positive cache is consulted; on miss or staleness the profile
// collaborator is queried and its answer cached, including an empty answer so
// unresolvable identities do not trigger repeated lookups. An empty candidate
// list yields ErrNoDestination.
func (r *Resolver) Resolve(ctx context.Context, identity string) ([]string, error) {
	if model.IsPayableDestination(identity) {
		return []string{identity}, nil
	}

	if entry, err := r.store.GetResolverEntry(identity); err == nil && !entry.Stale(r.now(), r.ttl) {
		if len(entry.Destinations) == 0 {
			return nil, ErrNoDestination
		}
		return entry.Destinations, nil
	}

	lookupCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	candidates, err := r.lookup.LookupDestinations(lookupCtx, identity)
	if err != nil {
		return nil, fmt.Errorf("resolver: profile lookup for %s: %w", identity, err)
	}

	payable := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if model.IsPayableDestination(c) {
			payable = append(payable, c)
		} else {
			zap.L().Debug("resolver: dropping unpayable candidate",
				zap.String("identity", identity), zap.String("candidate", c))
		}
	}

	if err := r.store.PutResolverEntry(&model.ResolverEntry{
		Identity:     identity,
		Destinations: payable,
		FetchedAt:    r.now(),
	}); err != nil {
		return nil, fmt.Errorf("resolver: cache write for %s: %w", identity, err)
	}

	if len(payable) == 0 {
		return nil, ErrNoDestination
	}
	return payable, nil
}

// MarkFailed records that a destination failed payment for an identity. The
// destination stays in future candidate lists; the mark only feeds
// diagnostics and invalidation decisions.
func (r *Resolver) MarkFailed(identity, destination string) {
	if err := r.store.MarkFailed(identity, destination); err != nil {
		zap.L().Warn("resolver: failure mark not persisted",
			zap.String("identity", identity), zap.Error(err))
	}
}

// FailedDestinations lists the destinations recorded as failed for identity.
func (r *Resolver) FailedDestinations(identity string) []string {
	failed, err := r.store.FailedDestinations(identity)
	if err != nil {
		zap.L().Warn("resolver: failure set read failed",
			zap.String("identity", identity), zap.Error(err))
		return nil
	}
	return failed
}

// Invalidate drops the positive cache entry and the failure marks for
// identity, forcing the next Resolve to re-run the profile lookup.
func (r *Resolver) Invalidate(identity string) {
	if err := r.store.DeleteResolverEntry(identity); err != nil {
		zap.L().Warn("resolver: cache invalidation failed",
			zap.String("identity", identity), zap.Error(err))
	}
	if err := r.store.ClearFailed(identity); err != nil {
		zap.L().Warn("resolver: failure set clear failed",
			zap.String("identity", identity), zap.Error(err))
	}
}
