package handler

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"linkage/internal/contact/models"
	dErrors "linkage/pkg/domain-errors"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// IdentifyRequest is the POST /identify body. Either field may be null or omitted.
type IdentifyRequest struct {
	Email       *string `json:"email" validate:"omitempty,max=255"`
	PhoneNumber *string `json:"phoneNumber" validate:"omitempty,max=255"`
}

// Identifiers validates the request and returns its normalized identifiers.
func (r IdentifyRequest) Identifiers() (models.Identifiers, error) {
	if err := validate.Struct(r); err != nil {
		return models.Identifiers{}, validationError(err)
	}
	return models.NewIdentifiers(r.Email, r.PhoneNumber)
}

func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return dErrors.Wrap(err, dErrors.CodeValidation, "invalid request")
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "max":
			msgs = append(msgs, jsonName(fe.Field())+" must be at most "+fe.Param()+" characters")
		default:
			msgs = append(msgs, jsonName(fe.Field())+" is invalid")
		}
	}
	return dErrors.New(dErrors.CodeValidation, strings.Join(msgs, "; "))
}

func jsonName(field string) string {
	switch field {
	case "Email":
		return "email"
	case "PhoneNumber":
		return "phoneNumber"
	default:
		return field
	}
}
