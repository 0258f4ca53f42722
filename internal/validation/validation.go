// Package validation checks user input and turns binding failures into
// field-level errors.
package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/miskyy7507/vibezone/internal/apperr"
)

const (
	MaxContentLength     = 150
	MaxDisplayNameLength = 32
	MaxAboutLength       = 150
	MinPasswordLength    = 8
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{3,32}$`)

// Content trims and checks post and comment bodies.
func Content(field, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", apperr.Invalid(field, "Content cannot be empty.")
	}
	if utf8.RuneCountInString(value) > MaxContentLength {
		return "", apperr.Invalid(field, fmt.Sprintf("Content cannot be more than %d characters in length.", MaxContentLength))
	}
	return value, nil
}

func Username(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", apperr.Invalid("username", "Username is required.")
	}
	if !usernamePattern.MatchString(value) {
		return "", apperr.Invalid("username", "Username must be 3-32 characters long and contain only letters, digits, dots, underscores or hyphens.")
	}
	return value, nil
}

// Password enforces the registration policy: length, a capital letter, a
// digit and a special character.
func Password(value string) error {
	var problems []string
	if utf8.RuneCountInString(value) < MinPasswordLength {
		problems = append(problems, fmt.Sprintf("Password must contain at least %d characters.", MinPasswordLength))
	}
	var upper, digit, special bool
	for _, r := range value {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case !unicode.IsLetter(r):
			special = true
		}
	}
	if !upper {
		problems = append(problems, "Password must contain at least one capital letter.")
	}
	if !digit {
		problems = append(problems, "Password must contain at least one digit.")
	}
	if !special {
		problems = append(problems, "Password must contain at least one special character.")
	}
	if len(problems) > 0 {
		return apperr.Invalid("password", strings.Join(problems, "\n"))
	}
	return nil
}

// OptionalText trims value and checks its length. Blank input becomes nil so
// callers can unset the field.
func OptionalText(field string, value *string, max int) (*string, error) {
	if value == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(trimmed) > max {
		return nil, apperr.Invalid(field, fmt.Sprintf("Field cannot be more than %d characters in length.", max))
	}
	return &trimmed, nil
}

// FromBinding converts a gin/validator binding error into a FieldError. The
// json tag names the field, matching what the client sent.
func FromBinding(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return apperr.Invalid(lowerFirst(fe.Field()), bindingMessage(fe))
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return apperr.Invalid(typeErr.Field, fmt.Sprintf("Expected %s.", typeErr.Type.String()))
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return apperr.Invalid("body", "Malformed JSON body.")
	}

	return apperr.Invalid("body", "Invalid request body.")
}

func bindingMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("Field %s is required.", lowerFirst(fe.Field()))
	case "max":
		return fmt.Sprintf("Field %s cannot be longer than %s characters.", lowerFirst(fe.Field()), fe.Param())
	case "min":
		return fmt.Sprintf("Field %s must be at least %s characters.", lowerFirst(fe.Field()), fe.Param())
	default:
		return fmt.Sprintf("Field %s is invalid.", lowerFirst(fe.Field()))
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToLower(r)) + s[size:]
}
