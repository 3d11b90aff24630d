package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every error returned by the service layer that the caller can act on
// wraps exactly one of these, so errors.Is(err, ErrNotFound) works across layers.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidState = errors.New("invalid state")
)

// Error carries a stable, user-facing message together with its kind.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func newError(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func BadRequest(format string, args ...any) error {
	return newError(ErrBadRequest, format, args...)
}

func NotFound(format string, args ...any) error {
	return newError(ErrNotFound, format, args...)
}

func Forbidden(format string, args ...any) error {
	return newError(ErrForbidden, format, args...)
}

func InvalidState(format string, args ...any) error {
	return newError(ErrInvalidState, format, args...)
}

// UnavailableItem describes a cart line that can no longer be purchased.
type UnavailableItem struct {
	ItemID      string `json:"item_id"`
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Reason      string `json:"reason"`
}

// UnavailableItemsError is returned when checkout validation finds lines that
// cannot be bought any more.
type UnavailableItemsError struct {
	Items []UnavailableItem
}

func (e *UnavailableItemsError) Error() string {
	names := make([]string, 0, len(e.Items))
	for _, item := range e.Items {
		names = append(names, item.ProductName)
	}
	return fmt.Sprintf("some items are no longer available: %s", strings.Join(names, ", "))
}

func (e *UnavailableItemsError) Unwrap() error {
	return ErrInvalidState
}
