// Package normalize turns decoded roster rows into validated participant records.
//
// Normalization is pure: it performs no I/O and the same row always yields the same
// record or the same ValidationError.
package normalize

import (
	"errors"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jnst/certificate-issuance/internal/model"
)

// Canonical field names used in validation errors.
const (
	FieldFullName  = "fullName"
	FieldEventName = "eventName"
	FieldEmail     = "email"
	FieldEventDate = "eventDate"
)

// Reasons attached to field errors.
const (
	ReasonMissing     = "missing"
	ReasonEmpty       = "empty"
	ReasonInvalid     = "invalid"
	ReasonUnparseable = "unparseable"
	ReasonAmbiguous   = "ambiguous"
	ReasonDuplicate   = "duplicate"
)

// headerAliases maps each field to the header spellings accepted in a roster.
// Keys are compared after lower-casing and dropping spaces, dashes and underscores.
var headerAliases = map[string][]string{
	FieldFullName:  {"name", "fullname", "participant", "participantname"},
	FieldEventName: {"event", "eventname"},
	FieldEmail:     {"email", "emailaddress", "mail"},
	FieldEventDate: {"date", "eventdate"},
}

var fieldOrder = []string{FieldFullName, FieldEventName, FieldEmail, FieldEventDate}

type candidate struct {
	FullName  string `field:"fullName"  validate:"required"`
	EventName string `field:"eventName" validate:"required"`
	Email     string `field:"email"     validate:"required,email"`
}

// Normalizer validates and coerces roster rows.
type Normalizer struct {
	validate *validator.Validate
}

// New creates a Normalizer.
func New() *Normalizer {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("field")
	})

	return &Normalizer{validate: v}
}

// Normalize validates row and returns the typed record, or a *model.ValidationError
// naming every offending field.
func (n *Normalizer) Normalize(row model.RawRow) (model.ParticipantRecord, error) {
	values, failures := lookupFields(row.Fields)

	c := candidate{
		FullName:  collapseSpaces(values[FieldFullName]),
		EventName: collapseSpaces(values[FieldEventName]),
		Email:     strings.TrimSpace(values[FieldEmail]),
	}

	if err := n.validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return model.ParticipantRecord{}, err
		}

		for _, fe := range verrs {
			if _, seen := failures[fe.Field()]; seen {
				continue
			}

			failures[fe.Field()] = reasonForTag(fe.Tag())
		}
	}

	var eventDate time.Time
	if _, seen := failures[FieldEventDate]; !seen {
		var reason string
		if eventDate, reason = ParseEventDate(values[FieldEventDate]); reason != "" {
			failures[FieldEventDate] = reason
		}
	}

	if len(failures) > 0 {
		verr := &model.ValidationError{}
		for _, field := range fieldOrder {
			if reason, ok := failures[field]; ok {
				verr.Fields = append(verr.Fields, model.FieldError{Field: field, Reason: reason})
			}
		}

		return model.ParticipantRecord{}, verr
	}

	return model.ParticipantRecord{
		FullName:  c.FullName,
		EventName: c.EventName,
		Email:     c.Email,
		EventDate: eventDate,
	}, nil
}

func reasonForTag(tag string) string {
	switch tag {
	case "required":
		return ReasonEmpty
	default:
		return ReasonInvalid
	}
}

// lookupFields resolves each field from the row's headers. A field supplied by more
// than one header with different values is reported as a duplicate.
func lookupFields(fields map[string]string) (map[string]string, map[string]string) {
	values := make(map[string]string, len(fieldOrder))
	failures := map[string]string{}

	for _, field := range fieldOrder {
		found := false

		for header, value := range fields {
			if !slices.Contains(headerAliases[field], headerKey(header)) {
				continue
			}

			if !found {
				values[field] = value
				found = true

				continue
			}

			if collapseSpaces(value) != collapseSpaces(values[field]) {
				failures[field] = ReasonDuplicate
			}
		}

		if !found {
			failures[field] = ReasonMissing
		}
	}

	return values, failures
}

func headerKey(header string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '_', '\t':
			return -1
		}

		return r
	}, strings.ToLower(strings.TrimSpace(header)))
}

// collapseSpaces trims s and folds internal whitespace runs to one space.
func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
