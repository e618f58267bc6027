package models

import (
	dErrors "linkage/pkg/domain-errors"
	"linkage/pkg/platform/strings"
)

// Chain is the consolidated view of one identity.
type Chain struct {
	PrimaryContactID    int64
	Emails              []string
	PhoneNumbers        []string
	SecondaryContactIDs []int64
}

// BuildChain assembles the consolidated view from the primary and every chain
// member ordered oldest first. The primary's own email and phone lead their lists.
func BuildChain(primary Contact, members []Contact) (*Chain, error) {
	if len(members) == 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "consolidated chain is empty")
	}
	emails := make([]string, 0, len(members))
	phones := make([]string, 0, len(members))
	secondaries := make([]int64, 0, len(members))
	for _, m := range members {
		emails = append(emails, m.EmailValue())
		phones = append(phones, m.PhoneNumberValue())
		if m.ID != primary.ID {
			secondaries = append(secondaries, m.ID)
		}
	}
	return &Chain{
		PrimaryContactID:    primary.ID,
		Emails:              strings.DedupeWithLead(primary.EmailValue(), emails),
		PhoneNumbers:        strings.DedupeWithLead(primary.PhoneNumberValue(), phones),
		SecondaryContactIDs: secondaries,
	}, nil
}
