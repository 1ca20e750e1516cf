package storetest

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"testing"

	"shopledger/backend/internal/store"
)

// ErrInjected is returned by the Put a FailingGateway is told to fail.
var ErrInjected = errors.New("storetest: injected write failure")

// FailingGateway wraps a gateway so that inside every Update the FailAt-th
// Put to Collection fails with ErrInjected. An empty Collection counts every
// Put. Reads and View pass through.
type FailingGateway struct {
	store.Gateway
	Collection string
	FailAt     int
}

func (g *FailingGateway) Update(ctx context.Context, fn func(store.Tx) error) error {
	return g.Gateway.Update(ctx, func(tx store.Tx) error {
		return fn(&failingTx{Tx: tx, collection: g.Collection, failAt: g.FailAt})
	})
}

type failingTx struct {
	store.Tx
	collection string
	failAt     int
	puts       int
}

func (t *failingTx) Put(collection string, id string, doc json.RawMessage) error {
	if t.collection == "" || t.collection == collection {
		t.puts++
		if t.puts == t.failAt {
			return ErrInjected
		}
	}
	return t.Tx.Put(collection, id, doc)
}

// Dump returns the raw documents of every collection, so a test can check
// that a failed command left storage byte-for-byte unchanged.
func Dump(t testing.TB, gw store.Gateway) map[string][]string {
	t.Helper()
	out := make(map[string][]string, len(store.Collections))
	err := gw.View(context.Background(), func(tx store.Tx) error {
		for _, c := range store.Collections {
			docs, err := tx.GetAll(c)
			if err != nil {
				return err
			}
			raw := make([]string, 0, len(docs))
			for _, d := range docs {
				raw = append(raw, string(d))
			}
			sort.Strings(raw)
			out[c] = raw
		}
		return nil
	})
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	return out
}
