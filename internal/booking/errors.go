package booking

import (
	"errors"
	"fmt"

	"reserva/internal/model"
)

// Kind classifies why a booking was refused.
type Kind string

const (
	KindValidation       Kind = "validation"
	KindSpecialGroup     Kind = "special_group"
	KindAvailability     Kind = "availability"
	KindTableUnavailable Kind = "table_unavailable"
	KindRateLimit        Kind = "rate_limit"
	KindVerification     Kind = "verification"
	KindUnexpected       Kind = "unexpected"
)

// Contact tells a special group how to reach the restaurant.
type Contact struct {
	Method   model.ContactMethod `json:"method"`
	WhatsApp string              `json:"whatsapp,omitempty"`
	Phone    string              `json:"phone,omitempty"`
}

// Error is the typed failure returned by Service.Book.
type Error struct {
	Kind    Kind
	Message string
	Contact *Contact
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrRateLimited) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == ""
}

var (
	ErrValidation       = &Error{Kind: KindValidation}
	ErrSpecialGroup     = &Error{Kind: KindSpecialGroup}
	ErrUnavailable      = &Error{Kind: KindAvailability}
	ErrTableUnavailable = &Error{Kind: KindTableUnavailable}
	ErrRateLimited      = &Error{Kind: KindRateLimit}
	ErrVerification     = &Error{Kind: KindVerification}
	ErrUnexpected       = &Error{Kind: KindUnexpected}
)

// KindOf extracts the kind of err. Errors outside the taxonomy are unexpected.
func KindOf(err error) Kind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return KindUnexpected
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func unexpected(op string, err error) *Error {
	return &Error{Kind: KindUnexpected, Message: op, Err: err}
}
