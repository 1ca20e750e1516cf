package memory

import (
	"context"
	"errors"
	"testing"

	"shopledger/backend/internal/store"
	"shopledger/backend/internal/store/storetest"
)

func TestGatewayContract(t *testing.T) {
	storetest.Run(t, New())
}

func TestViewRejectsWrites(t *testing.T) {
	s := New()
	err := s.View(context.Background(), func(tx store.Tx) error {
		return tx.Put(store.Products, "p1", []byte(`{}`))
	})
	if !errors.Is(err, store.ErrReadOnly) {
		t.Fatalf("expected ErrReadOnly, got %v", err)
	}
}

func TestCancelledContextDiscardsStagedWrites(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	err := s.Update(ctx, func(tx store.Tx) error {
		cancel()
		return tx.Put(store.Products, "p1", []byte(`{"id":"p1"}`))
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	_ = s.View(context.Background(), func(tx store.Tx) error {
		if _, err := tx.Get(store.Products, "p1"); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected write to be discarded, got %v", err)
		}
		return nil
	})
}
