package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"linkage/internal/contact/models"
	"linkage/internal/contact/service"
	"linkage/pkg/platform/sentinel"
)

const defaultTxTimeout = 5 * time.Second

// InMemoryStore keeps contacts in process memory. Transactions hold a single
// coarse lock and work on a private copy that replaces the committed state only
// when fn succeeds, so a failed reconciliation leaves nothing behind.
type InMemoryStore struct {
	mu       sync.Mutex
	contacts []models.Contact
	nextID   int64
	timeout  time.Duration
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{timeout: defaultTxTimeout}
}

func (s *InMemoryStore) RunInTx(ctx context.Context, fn func(store service.Store) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("transaction aborted: %w", err)
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("transaction aborted: %w", err)
	}

	tx := &memoryTx{contacts: slices.Clone(s.contacts), nextID: s.nextID}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("transaction aborted before commit: %w", err)
	}
	s.contacts = tx.contacts
	s.nextID = tx.nextID
	return nil
}

// RunLocked is RunInTx: the store lock already serializes every transaction.
func (s *InMemoryStore) RunLocked(ctx context.Context, _ []string, fn func(store service.Store) error) error {
	return s.RunInTx(ctx, fn)
}

// memoryTx is the transaction-scoped view handed to the service.
type memoryTx struct {
	contacts []models.Contact
	nextID   int64
}

func (t *memoryTx) FindCandidates(_ context.Context, ids models.Identifiers) (models.Candidates, error) {
	roots := make(map[int64]struct{})
	for _, c := range t.contacts {
		if c.IsDeleted() {
			continue
		}
		if matches(c.Email, ids.Email) || matches(c.PhoneNumber, ids.PhoneNumber) {
			roots[c.ChainID()] = struct{}{}
		}
	}
	if len(roots) == 0 {
		return models.Candidates{}, nil
	}
	return t.members(roots), nil
}

func (t *memoryTx) FindByID(_ context.Context, id int64) (*models.Contact, error) {
	for _, c := range t.contacts {
		if c.ID == id && !c.IsDeleted() {
			found := c
			return &found, nil
		}
	}
	return nil, fmt.Errorf("contact %d: %w", id, sentinel.ErrNotFound)
}

func (t *memoryTx) Create(_ context.Context, contact *models.Contact) error {
	if contact == nil {
		return fmt.Errorf("contact is required")
	}
	if contact.LinkedID != nil {
		if _, err := t.FindByID(context.Background(), *contact.LinkedID); err != nil {
			return fmt.Errorf("linked contact %d: %w", *contact.LinkedID, sentinel.ErrConflict)
		}
	}
	t.nextID++
	contact.ID = t.nextID
	t.contacts = append(t.contacts, *contact)
	return nil
}

func (t *memoryTx) Relink(_ context.Context, survivorID int64, demoted []int64, now time.Time) (int64, error) {
	if len(demoted) == 0 {
		return 0, nil
	}
	var changed int64
	for i := range t.contacts {
		c := &t.contacts[i]
		if c.IsDeleted() {
			continue
		}
		linkedToDemoted := c.LinkedID != nil && slices.Contains(demoted, *c.LinkedID)
		if !slices.Contains(demoted, c.ID) && !linkedToDemoted {
			continue
		}
		survivor := survivorID
		c.LinkPrecedence = models.LinkPrecedenceSecondary
		c.LinkedID = &survivor
		c.UpdatedAt = now
		changed++
	}
	return changed, nil
}

func (t *memoryTx) FindChain(_ context.Context, primaryID int64) ([]models.Contact, error) {
	return t.members(map[int64]struct{}{primaryID: {}}), nil
}

// members returns every live contact that is, or links to, one of roots.
func (t *memoryTx) members(roots map[int64]struct{}) models.Candidates {
	out := make(models.Candidates, 0, len(roots))
	for _, c := range t.contacts {
		if c.IsDeleted() {
			continue
		}
		_, isRoot := roots[c.ID]
		linkedToRoot := false
		if c.LinkedID != nil {
			_, linkedToRoot = roots[*c.LinkedID]
		}
		if isRoot || linkedToRoot {
			out = append(out, c)
		}
	}
	models.SortOldestFirst(out)
	return out
}

func matches(stored, wanted *string) bool {
	return stored != nil && wanted != nil && *stored == *wanted
}
