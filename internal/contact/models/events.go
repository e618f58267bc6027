package models

import (
	"time"

	"github.com/google/uuid"
)

// LinkEventType names a change to the contact graph.
type LinkEventType string

const (
	LinkEventPrimaryCreated   LinkEventType = "contact.created.primary"
	LinkEventSecondaryCreated LinkEventType = "contact.created.secondary"
	LinkEventChainsMerged     LinkEventType = "contact.chains.merged"
)

// LinkEvent is emitted after a reconciliation commits.
type LinkEvent struct {
	ID                uuid.UUID     `json:"id"`
	Type              LinkEventType `json:"type"`
	ContactID         int64         `json:"contact_id"`
	PrimaryContactID  int64         `json:"primary_contact_id"`
	DemotedPrimaryIDs []int64       `json:"demoted_primary_ids,omitempty"`
	RelinkedCount     int64         `json:"relinked_count,omitempty"`
	OccurredAt        time.Time     `json:"occurred_at"`
}

// NewLinkEvent stamps an event with a fresh id.
func NewLinkEvent(eventType LinkEventType, contactID, primaryID int64, now time.Time) LinkEvent {
	return LinkEvent{
		ID:               uuid.New(),
		Type:             eventType,
		ContactID:        contactID,
		PrimaryContactID: primaryID,
		OccurredAt:       now,
	}
}
