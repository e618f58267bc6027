package handler

import "linkage/internal/contact/models"

// ContactResponse is the envelope returned by /identify and /contacts/{id}.
type ContactResponse struct {
	Contact ConsolidatedContact `json:"contact"`
}

// ConsolidatedContact is the wire form of a contact chain.
type ConsolidatedContact struct {
	PrimaryContactID    int64    `json:"primaryContactId"`
	Emails              []string `json:"emails"`
	PhoneNumbers        []string `json:"phoneNumbers"`
	SecondaryContactIDs []int64  `json:"secondaryContactIds"`
}

// NewContactResponse maps a chain onto the response envelope. Lists are never null.
func NewContactResponse(chain *models.Chain) ContactResponse {
	resp := ConsolidatedContact{
		PrimaryContactID:    chain.PrimaryContactID,
		Emails:              chain.Emails,
		PhoneNumbers:        chain.PhoneNumbers,
		SecondaryContactIDs: chain.SecondaryContactIDs,
	}
	if resp.Emails == nil {
		resp.Emails = []string{}
	}
	if resp.PhoneNumbers == nil {
		resp.PhoneNumbers = []string{}
	}
	if resp.SecondaryContactIDs == nil {
		resp.SecondaryContactIDs = []int64{}
	}
	return ContactResponse{Contact: resp}
}
