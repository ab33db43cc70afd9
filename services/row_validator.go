package services

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"nuam-exchange-api/utils"
)

// ErrorKind is the closed set of reasons an import row can be reported.
type ErrorKind string

const (
	ErrKindMissingField   ErrorKind = "MISSING_FIELD"
	ErrKindInvalidEmail   ErrorKind = "INVALID_EMAIL"
	ErrKindInvalidAge     ErrorKind = "INVALID_AGE"
	ErrKindInvalidDate    ErrorKind = "INVALID_DATE"
	ErrKindInvalidPhone   ErrorKind = "INVALID_PHONE"
	ErrKindDuplicatePhone ErrorKind = "DUPLICATE_PHONE"
	ErrKindPersistence    ErrorKind = "PERSISTENCE_FAILURE"
)

type FieldError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (e FieldError) Error() string { return fmt.Sprintf("%s: %s", e.Kind, e.Message) }

// RowError collects everything reported against one spreadsheet row. Row is
// the 1-based row number as the user sees it in the file (header included).
type RowError struct {
	Row    int          `json:"row"`
	Errors []FieldError `json:"errors"`
}

// CanonicalRecord is a validated, normalized usuario row ready for
// persistence. Email is lowercase and trimmed.
type CanonicalRecord struct {
	FirstName       string
	LastName        string
	Email           string
	Edad            *int
	Telefono        *string
	FechaNacimiento *time.Time
}

// RowOutcome is the validator verdict for one row. Record is non-nil exactly
// when Hard is empty. Soft errors (unparseable or future birth dates) are
// reported but do not block persistence; the offending field is nulled.
type RowOutcome struct {
	Record *CanonicalRecord
	Hard   []FieldError
	Soft   []FieldError
}

// Rejected reports whether the row must be skipped.
func (o *RowOutcome) Rejected() bool { return len(o.Hard) > 0 }

// AllErrors returns hard then soft errors, for run reporting.
func (o *RowOutcome) AllErrors() []FieldError {
	return append(append([]FieldError{}, o.Hard...), o.Soft...)
}

// Phone numbers must look like an international number with the Chilean
// country prefix, e.g. +56912345678.
var phonePattern = regexp.MustCompile(`^\+?\d{9,15}$`)

var birthDateLayouts = []string{
	"2006-01-02", // ISO first
	"02/01/2006",
	"02-01-2006",
	"2006/01/02",
}

// placeholder cell values that spreadsheet tools emit for empty fields
func isPlaceholder(v string) bool {
	switch strings.ToLower(v) {
	case "", "nan", "none":
		return true
	}
	return false
}

// ValidateRow turns one raw row (column name → raw cell value) into a
// canonical record or field errors. Rule order follows the registry policy:
// required fields short-circuit, email shape rejects the row, an invalid age
// rejects the row, phone placeholders are dropped, and date parse failures
// are soft.
func ValidateRow(raw map[string]string) *RowOutcome {
	out := &RowOutcome{}

	firstName := strings.TrimSpace(raw["first_name"])
	lastName := strings.TrimSpace(raw["last_name"])
	email := utils.NormalizeEmail(raw["email"])

	// Required fields: one aggregate error, no further checks.
	if firstName == "" || lastName == "" || email == "" {
		out.Hard = append(out.Hard, FieldError{
			Kind:    ErrKindMissingField,
			Message: "campos obligatorios vacíos (first_name, last_name, email)",
		})
		return out
	}

	if !utils.ValidateEmail(email) {
		out.Hard = append(out.Hard, FieldError{
			Kind:    ErrKindInvalidEmail,
			Message: fmt.Sprintf("email inválido: %q", email),
		})
	}

	edad := parseEdad(raw["edad"], out)
	telefono := parseTelefono(raw["telefono"], out)
	fechaNacimiento := parseFechaNacimiento(raw["fecha_nacimiento"], out)

	// Derive age from the birth date when the file left it blank.
	if edad == nil && fechaNacimiento != nil {
		derived := ageAt(*fechaNacimiento, time.Now())
		edad = &derived
	}

	if out.Rejected() {
		return out
	}

	out.Record = &CanonicalRecord{
		FirstName:       firstName,
		LastName:        lastName,
		Email:           email,
		Edad:            edad,
		Telefono:        telefono,
		FechaNacimiento: fechaNacimiento,
	}
	return out
}

func parseEdad(raw string, out *RowOutcome) *int {
	v := strings.TrimSpace(raw)
	if isPlaceholder(v) {
		return nil
	}

	// Spreadsheet numeric cells may carry a float representation ("25.0").
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		out.Hard = append(out.Hard, FieldError{
			Kind:    ErrKindInvalidAge,
			Message: fmt.Sprintf("edad inválida: %q", v),
		})
		return nil
	}

	edad := int(f)
	if edad < 0 || edad > 150 {
		out.Hard = append(out.Hard, FieldError{
			Kind:    ErrKindInvalidAge,
			Message: "la edad debe estar entre 0 y 150",
		})
		return nil
	}
	return &edad
}

func parseTelefono(raw string, out *RowOutcome) *string {
	v := strings.TrimSpace(raw)
	if isPlaceholder(v) {
		return nil
	}

	if !phonePattern.MatchString(v) || !(strings.HasPrefix(v, "+56") || strings.HasPrefix(v, "56")) {
		out.Hard = append(out.Hard, FieldError{
			Kind:    ErrKindInvalidPhone,
			Message: fmt.Sprintf("teléfono inválido: %q (use formato +56912345678)", v),
		})
		return nil
	}
	return &v
}

func parseFechaNacimiento(raw string, out *RowOutcome) *time.Time {
	v := strings.TrimSpace(raw)
	if isPlaceholder(v) {
		return nil
	}

	var parsed *time.Time
	for _, layout := range birthDateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			parsed = &t
			break
		}
	}
	if parsed == nil {
		// generic fallback for timestamp-style cells
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			parsed = &t
		}
	}

	if parsed == nil {
		out.Soft = append(out.Soft, FieldError{
			Kind:    ErrKindInvalidDate,
			Message: fmt.Sprintf("fecha de nacimiento inválida: %q", v),
		})
		return nil
	}

	if parsed.After(time.Now()) {
		out.Soft = append(out.Soft, FieldError{
			Kind:    ErrKindInvalidDate,
			Message: "la fecha de nacimiento no puede ser futura",
		})
		return nil
	}

	return parsed
}

// ageAt computes full years elapsed between birth and now.
func ageAt(birth, now time.Time) int {
	years := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		years--
	}
	if years < 0 {
		years = 0
	}
	return years
}
