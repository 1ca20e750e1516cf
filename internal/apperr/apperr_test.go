package apperr

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestKindMatchesThroughWrapping(t *testing.T) {
	err := fmt.Errorf("create sale: %w", Stock("prd-a", 5, 2))
	if !errors.Is(err, InsufficientStock) {
		t.Fatalf("expected InsufficientStock, got %v", err)
	}
	if errors.Is(err, NotFound) {
		t.Fatalf("did not expect NotFound to match")
	}

	var e *Error
	if !errors.As(err, &e) || e.Shortfall != 3 || e.IDs["product_id"] != "prd-a" {
		t.Fatalf("unexpected details: %+v", e)
	}
}

func TestPersistenceKeepsDomainErrors(t *testing.T) {
	domainErr := NotFoundf("invoice", "inv-1")
	if got := Persistence("load", domainErr); got != domainErr {
		t.Fatalf("expected domain error unchanged, got %v", got)
	}

	joined := errors.Join(Stock("prd-a", 2, 1), Stock("prd-b", 3, 0))
	if got := Persistence("commit", joined); got != joined {
		t.Fatalf("expected joined shortfalls unchanged, got %v", got)
	}

	cause := errors.New("connection reset")
	wrapped := Persistence("commit", cause)
	if !errors.Is(wrapped, PersistenceFailure) || !errors.Is(wrapped, cause) {
		t.Fatalf("expected persistence failure wrapping cause, got %v", wrapped)
	}
	if Persistence("noop", nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
}

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{Validationf("bad"), Validation},
		{fmt.Errorf("wrap: %w", Conflictf("edited")), Conflict},
		{MissingExchangeRate, MissingExchangeRate},
		{errors.New("plain"), ""},
	}
	for _, tc := range cases {
		if got := KindOf(tc.err); got != tc.want {
			t.Fatalf("KindOf(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestErrorMessageListsIDsInOrder(t *testing.T) {
	msg := NotFoundf("party", "cus-1").WithID("kind", "customer").Error()
	if !strings.HasPrefix(msg, "not_found: party not found") || !strings.HasSuffix(msg, "(kind=customer, party_id=cus-1)") {
		t.Fatalf("unexpected message %q", msg)
	}
}
