// Package apperr defines the structured error outcomes returned by the ledger core.
//
// Every failure carries a Kind that callers match with errors.Is, a human readable
// message and the ids of the records involved:
//
//	if errors.Is(err, apperr.InsufficientStock) {
//		var e *apperr.Error
//		errors.As(err, &e)
//		log.Printf("short by %d", e.Shortfall)
//	}
package apperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind classifies an error. A Kind is itself an error so it can be used as a
// sentinel target for errors.Is.
type Kind string

const (
	// InsufficientStock is returned when a product's batches cannot cover a request.
	InsufficientStock Kind = "insufficient_stock"
	// MissingExchangeRate is returned for foreign-currency amounts without a positive rate.
	MissingExchangeRate Kind = "missing_exchange_rate"
	// NonZeroBalance is returned when deleting a party that still owes or is owed money.
	NonZeroBalance Kind = "non_zero_balance"
	// NotFound is returned when an invoice, party, product or batch id does not exist.
	NotFound Kind = "not_found"
	// PersistenceFailure is returned when the gateway fails; nothing was committed.
	PersistenceFailure Kind = "persistence_failure"
	// Validation is returned for malformed commands, detected before any write.
	Validation Kind = "validation"
	// Conflict is returned when a command is valid but the current state forbids it.
	Conflict Kind = "conflict"
)

func (k Kind) Error() string { return string(k) }

// Error is the structured outcome of a failed command.
type Error struct {
	Kind      Kind              `json:"kind"`
	Message   string            `json:"message"`
	IDs       map[string]string `json:"ids,omitempty"`
	Shortfall int               `json:"shortfall,omitempty"`
	Err       error             `json:"-"`
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.IDs) > 0 {
		keys := make([]string, 0, len(e.IDs))
		for k := range e.IDs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s=%s", k, e.IDs[k])
		}
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches a Kind sentinel.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// WithID attaches an identifier of a record involved in the failure.
func (e *Error) WithID(key string, value string) *Error {
	if e.IDs == nil {
		e.IDs = make(map[string]string, 2)
	}
	e.IDs[key] = value
	return e
}

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validationf(format string, args ...any) *Error {
	return New(Validation, format, args...)
}

func Conflictf(format string, args ...any) *Error {
	return New(Conflict, format, args...)
}

func NotFoundf(entity string, id string) *Error {
	return New(NotFound, "%s not found", entity).WithID(entity+"_id", id)
}

// Stock reports a shortfall for a product.
func Stock(productID string, requested int, available int) *Error {
	e := New(InsufficientStock, "requested %d, available %d", requested, available).WithID("product_id", productID)
	e.Shortfall = requested - available
	return e
}

// Persistence wraps a gateway failure. Errors that already carry a Kind are
// returned unchanged so a domain outcome raised inside a write unit survives
// the gateway's rollback path.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: PersistenceFailure, Message: op, Err: err}
}

// KindOf returns the Kind of err, or the empty Kind for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var k Kind
	if errors.As(err, &k) {
		return k
	}
	return ""
}
