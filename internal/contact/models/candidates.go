package models

import "time"

// Candidates is the expanded set of contacts touched by a request: every
// member of every chain that matched on email or phone number, oldest first.
type Candidates []Contact

// NeedsNewContact reports whether the request carries an identifier not yet
// present anywhere in the candidate set. An empty set always needs a contact.
func (c Candidates) NeedsNewContact(ids Identifiers) bool {
	if len(c) == 0 {
		return true
	}
	emailKnown := ids.Email == nil
	phoneKnown := ids.PhoneNumber == nil
	for _, contact := range c {
		if !emailKnown && contact.Email != nil && *contact.Email == *ids.Email {
			emailKnown = true
		}
		if !phoneKnown && contact.PhoneNumber != nil && *contact.PhoneNumber == *ids.PhoneNumber {
			phoneKnown = true
		}
		if emailKnown && phoneKnown {
			return false
		}
	}
	return true
}

// Oldest returns the first contact by (CreatedAt, ID).
func (c Candidates) Oldest() (Contact, bool) {
	if len(c) == 0 {
		return Contact{}, false
	}
	oldest := c[0]
	for _, contact := range c[1:] {
		if contact.OlderThan(oldest) {
			oldest = contact
		}
	}
	return oldest, true
}

// Primaries returns the distinct primary contacts in the set, oldest first.
func (c Candidates) Primaries() []Contact {
	seen := make(map[int64]struct{})
	primaries := make([]Contact, 0, 1)
	for _, contact := range c {
		if !contact.IsPrimary() {
			continue
		}
		if _, ok := seen[contact.ID]; ok {
			continue
		}
		seen[contact.ID] = struct{}{}
		primaries = append(primaries, contact)
	}
	SortOldestFirst(primaries)
	return primaries
}

// MergePlan collapses several chains onto the oldest primary.
type MergePlan struct {
	Survivor Contact
	Demoted  []int64
}

// PlanMerge returns the merge needed to leave a single primary in the set, or
// false when the set already spans at most one chain.
func (c Candidates) PlanMerge() (MergePlan, bool) {
	primaries := c.Primaries()
	if len(primaries) <= 1 {
		return MergePlan{}, false
	}
	plan := MergePlan{Survivor: primaries[0], Demoted: make([]int64, 0, len(primaries)-1)}
	for _, p := range primaries[1:] {
		plan.Demoted = append(plan.Demoted, p.ID)
	}
	return plan, true
}

// Apply returns a copy of the set as it looks after the merge: demoted
// primaries and their members all point directly at the survivor.
func (p MergePlan) Apply(c Candidates) Candidates {
	demoted := make(map[int64]struct{}, len(p.Demoted))
	for _, id := range p.Demoted {
		demoted[id] = struct{}{}
	}
	out := make(Candidates, len(c))
	survivorID := p.Survivor.ID
	for i, contact := range c {
		_, wasPrimary := demoted[contact.ID]
		linkedToDemoted := false
		if contact.LinkedID != nil {
			_, linkedToDemoted = demoted[*contact.LinkedID]
		}
		if wasPrimary || linkedToDemoted {
			contact.LinkPrecedence = LinkPrecedenceSecondary
			contact.LinkedID = &survivorID
		}
		out[i] = contact
	}
	return out
}

// NotBefore returns now, or the latest timestamp recorded on any candidate when
// that is later. Rows written for the request are stamped with it so a contact
// never predates the chain it joins.
func (c Candidates) NotBefore(now time.Time) time.Time {
	for _, contact := range c {
		if contact.CreatedAt.After(now) {
			now = contact.CreatedAt
		}
		if contact.UpdatedAt.After(now) {
			now = contact.UpdatedAt
		}
	}
	return now
}
