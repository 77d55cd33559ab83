package storage

import (
	"errors"

	"github.com/zapstreak/zapstreak-sdk-go/pkg/model"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("storage: record not found")

// Store is the local persistence surface consumed by the reward engine and
// the destination resolver. Writes replace whole records; partial updates are
// never persisted.
type Store interface {
	// GetStreak loads the streak record for an identity, or ErrNotFound.
	GetStreak(identity string) (*model.StreakRecord, error)
	// PutStreak atomically replaces the streak record for its identity.
	PutStreak(rec *model.StreakRecord) error

	// GetPending loads the in-flight payment for an identity, or ErrNotFound.
	GetPending(identity string) (*model.PendingPayment, error)
	// PutPending atomically replaces the pending payment for its identity.
	PutPending(p *model.PendingPayment) error
	// DeletePending removes the pending payment for an identity. Deleting a
	// missing record is not an error.
	DeletePending(identity string) error

	// GetResolverEntry loads the cached destination list for an identity,
	// or ErrNotFound.
	GetResolverEntry(identity string) (*model.ResolverEntry, error)
	// PutResolverEntry atomically replaces the cache entry for its identity.
	PutResolverEntry(e *model.ResolverEntry) error
	// DeleteResolverEntry removes the cache entry for an identity.
	DeleteResolverEntry(identity string) error

	// FailedDestinations lists destinations recorded as having failed
	// payment for an identity.
	FailedDestinations(identity string) ([]string, error)
	// MarkFailed records a destination as having failed payment for an
	// identity. Marking twice is a no-op.
	MarkFailed(identity, destination string) error
	// ClearFailed drops all failure marks for an identity.
	ClearFailed(identity string) error

	// Close releases the backend.
	Close() error
}
