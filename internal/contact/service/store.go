package service

import (
	"context"
	"time"

	"linkage/internal/contact/models"
)

// Store is the query/mutation contract the engine needs, scoped to one transaction.
// Implementations return sentinel errors (ErrNotFound, ErrRetryable, ...) wrapped
// with context; the service owns translation into domain errors.
type Store interface {
	// FindCandidates returns every non-deleted member of every chain matching the
	// supplied email or phone number, ordered by (created_at, id).
	FindCandidates(ctx context.Context, ids models.Identifiers) (models.Candidates, error)
	// FindByID returns a non-deleted contact or ErrNotFound.
	FindByID(ctx context.Context, id int64) (*models.Contact, error)
	// Create inserts contact and fills in its assigned ID.
	Create(ctx context.Context, contact *models.Contact) error
	// Relink demotes every primary in demoted and re-points their members at
	// survivorID in one set-based statement. Returns the number of rows changed.
	Relink(ctx context.Context, survivorID int64, demoted []int64, now time.Time) (int64, error)
	// FindChain returns the primary and all of its secondaries, ordered by (created_at, id).
	FindChain(ctx context.Context, primaryID int64) ([]models.Contact, error)
}

// StoreTx provides the transactional boundary around a reconciliation.
// Implementations may wrap a database transaction or, in-memory, a coarse lock.
// A returned error means nothing written inside fn is visible.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(store Store) error) error
	// RunLocked is RunInTx for a transaction that begins only once every key is
	// held, so it observes everything committed by earlier holders of those keys.
	// Keys are released after commit or rollback.
	RunLocked(ctx context.Context, keys []string, fn func(store Store) error) error
}

// IdentifierLocker serializes requests that share an identifier before they
// reach the store. Release must be called exactly once.
type IdentifierLocker interface {
	Lock(ctx context.Context, keys []string) (release func(), err error)
}

// EventPublisher delivers committed link events.
type EventPublisher interface {
	Publish(ctx context.Context, events []models.LinkEvent) error
}
