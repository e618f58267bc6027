package models

import (
	"sort"

	dErrors "linkage/pkg/domain-errors"
	"linkage/pkg/platform/strings"
)

// Identifiers is a normalized identify request. Blank values count as absent.
type Identifiers struct {
	Email       *string
	PhoneNumber *string
}

// NewIdentifiers trims both values and rejects a request carrying neither.
func NewIdentifiers(email, phoneNumber *string) (Identifiers, error) {
	ids := Identifiers{
		Email:       strings.TrimToNil(email),
		PhoneNumber: strings.TrimToNil(phoneNumber),
	}
	if ids.Empty() {
		return Identifiers{}, dErrors.New(dErrors.CodeValidation, "either email or phoneNumber must be provided")
	}
	return ids, nil
}

func (i Identifiers) Empty() bool {
	return i.Email == nil && i.PhoneNumber == nil
}

// LockKeys returns the serialization keys for this request in a stable order.
// Two requests sharing any identifier share at least one key.
func (i Identifiers) LockKeys() []string {
	keys := make([]string, 0, 2)
	if i.Email != nil {
		keys = append(keys, "email:"+*i.Email)
	}
	if i.PhoneNumber != nil {
		keys = append(keys, "phone:"+*i.PhoneNumber)
	}
	sort.Strings(keys)
	return keys
}
