package store

import (
	"slices"
	"time"

	"linkage/internal/contact/models"
)

// Seed stores contacts verbatim, assigning ids to those without one. It skips
// every invariant check and exists for fixtures that need specific timestamps,
// soft-deleted rows, or deliberately broken links.
func (s *InMemoryStore) Seed(contacts ...models.Contact) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int64, 0, len(contacts))
	for _, c := range contacts {
		if c.ID == 0 {
			s.nextID++
			c.ID = s.nextID
		} else if c.ID > s.nextID {
			s.nextID = c.ID
		}
		if c.UpdatedAt.IsZero() {
			c.UpdatedAt = c.CreatedAt
		}
		s.contacts = append(s.contacts, c)
		ids = append(ids, c.ID)
	}
	return ids
}

// SoftDelete marks a contact deleted.
func (s *InMemoryStore) SoftDelete(id int64, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.contacts {
		if s.contacts[i].ID == id {
			deletedAt := at
			s.contacts[i].DeletedAt = &deletedAt
		}
	}
}

// Snapshot returns every stored contact, deleted ones included, in id order.
func (s *InMemoryStore) Snapshot() []models.Contact {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := slices.Clone(s.contacts)
	slices.SortFunc(out, func(a, b models.Contact) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		default:
			return 0
		}
	})
	return out
}
