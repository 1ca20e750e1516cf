package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"shopledger/backend/internal/store/storetest"
)

func TestGatewayContractAgainstPostgres(t *testing.T) {
	databaseURL := os.Getenv("SHOPLEDGER_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set SHOPLEDGER_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	storetest.Run(t, s)
}

func TestIsSerializationFailure(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{&pgconn.PgError{Code: "40001"}, true},
		{fmt.Errorf("commit: %w", &pgconn.PgError{Code: "40P01"}), true},
		{&pgconn.PgError{Code: "23505"}, false},
		{errors.New("connection reset"), false},
	}
	for _, tc := range cases {
		if got := isSerializationFailure(tc.err); got != tc.want {
			t.Fatalf("isSerializationFailure(%v) = %t, want %t", tc.err, got, tc.want)
		}
	}
}
