// Package apperr defines the error taxonomy surfaced to API clients.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind groups errors by who has to act on them.
type Kind string

const (
	KindValidation Kind = "validation"
	KindBusiness   Kind = "business"
	KindNotFound   Kind = "not_found"
	KindUpstream   Kind = "upstream"
	KindInternal   Kind = "internal"
)

// Error carries a stable code alongside a human message.
type Error struct {
	Kind    Kind   `json:"kind"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on code so that WithMessage/WithError copies still match their sentinel.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code && t.Kind == e.Kind
}

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func (e *Error) WithMessage(message string) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: message, Err: e.Err}
}

func (e *Error) WithError(err error) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: e.Message, Err: err}
}

func Validation(message string) *Error {
	return New(KindValidation, "invalid_request", message)
}

func Business(code, message string) *Error {
	return New(KindBusiness, code, message)
}

func Upstream(service string, err error) *Error {
	return &Error{Kind: KindUpstream, Code: service + "_unavailable", Message: service + " request failed", Err: err}
}

func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Code: "internal", Message: "internal error", Err: err}
}

var (
	ErrNotAvailable        = New(KindBusiness, "not_available", "requested dates are not available")
	ErrAlreadyCancelled    = New(KindBusiness, "already_cancelled", "reservation is already cancelled")
	ErrInvalidTransition   = New(KindBusiness, "invalid_transition", "reservation cannot change to the requested status")
	ErrInvalidCoupon       = New(KindValidation, "invalid_coupon", "coupon code is not valid")
	ErrGuestLimit          = New(KindValidation, "guest_limit", "meal count exceeds guests assigned to the unit")
	ErrDateNotSellable     = New(KindValidation, "date_not_sellable", "date is outside the sellable range")
	ErrReservationNotFound = New(KindNotFound, "reservation_not_found", "reservation not found")
	ErrAffiliateNotFound   = New(KindNotFound, "affiliate_not_found", "affiliate not found")
	ErrAffiliateExists     = New(KindBusiness, "affiliate_exists", "affiliate code or coupon already registered")
	ErrCalendarUnavailable = New(KindUpstream, "calendar_unavailable", "availability could not be loaded, retry later")
	ErrPaymentIncomplete   = New(KindBusiness, "payment_incomplete", "payment has not completed yet")
)

// As extracts an *Error, wrapping unknown errors as internal.
func As(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}

// HTTPStatus maps an error to a response status code.
func HTTPStatus(err error) int {
	switch As(err).Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindBusiness:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindUpstream:
		if errors.Is(err, ErrCalendarUnavailable) {
			return http.StatusServiceUnavailable
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
