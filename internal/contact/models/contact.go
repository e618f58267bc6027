package models

import (
	"slices"
	"time"

	dErrors "linkage/pkg/domain-errors"
)

// LinkPrecedence marks a contact as the anchor of its chain or a member of it.
type LinkPrecedence string

const (
	LinkPrecedencePrimary   LinkPrecedence = "primary"
	LinkPrecedenceSecondary LinkPrecedence = "secondary"
)

func (p LinkPrecedence) IsValid() bool {
	return p == LinkPrecedencePrimary || p == LinkPrecedenceSecondary
}

func (p LinkPrecedence) String() string {
	return string(p)
}

// Contact is one observation of an identity.
//
// Invariants:
//   - ID and CreatedAt are immutable once assigned
//   - a primary has LinkedID == nil
//   - a secondary has LinkedID pointing at its chain's primary, never at another secondary
//   - soft-deleted contacts (DeletedAt != nil) take no part in reconciliation
type Contact struct {
	ID             int64
	Email          *string
	PhoneNumber    *string
	LinkedID       *int64
	LinkPrecedence LinkPrecedence
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      *time.Time
}

// NewPrimaryContact builds an unsaved primary carrying the given identifiers.
func NewPrimaryContact(ids Identifiers, now time.Time) (*Contact, error) {
	if ids.Empty() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "contact requires an email or phone number")
	}
	return &Contact{
		Email:          ids.Email,
		PhoneNumber:    ids.PhoneNumber,
		LinkPrecedence: LinkPrecedencePrimary,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// NewSecondaryContact builds an unsaved secondary linked to primary.
func NewSecondaryContact(ids Identifiers, primary Contact, now time.Time) (*Contact, error) {
	if ids.Empty() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "contact requires an email or phone number")
	}
	if !primary.IsPrimary() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "secondary must link to a primary contact")
	}
	linkedID := primary.ID
	return &Contact{
		Email:          ids.Email,
		PhoneNumber:    ids.PhoneNumber,
		LinkedID:       &linkedID,
		LinkPrecedence: LinkPrecedenceSecondary,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func (c Contact) IsPrimary() bool {
	return c.LinkPrecedence == LinkPrecedencePrimary
}

func (c Contact) IsDeleted() bool {
	return c.DeletedAt != nil
}

// ChainID is the id of the primary anchoring this contact's chain.
func (c Contact) ChainID() int64 {
	if c.IsPrimary() || c.LinkedID == nil {
		return c.ID
	}
	return *c.LinkedID
}

// EmailValue returns the email or "" when absent.
func (c Contact) EmailValue() string {
	if c.Email == nil {
		return ""
	}
	return *c.Email
}

// PhoneNumberValue returns the phone number or "" when absent.
func (c Contact) PhoneNumberValue() string {
	if c.PhoneNumber == nil {
		return ""
	}
	return *c.PhoneNumber
}

// OlderThan orders contacts by creation time, breaking ties on id.
func (c Contact) OlderThan(other Contact) bool {
	if !c.CreatedAt.Equal(other.CreatedAt) {
		return c.CreatedAt.Before(other.CreatedAt)
	}
	return c.ID < other.ID
}

// SortOldestFirst orders contacts by (CreatedAt, ID) ascending in place.
func SortOldestFirst(contacts []Contact) {
	slices.SortStableFunc(contacts, func(a, b Contact) int {
		switch {
		case a.OlderThan(b):
			return -1
		case b.OlderThan(a):
			return 1
		default:
			return 0
		}
	})
}
