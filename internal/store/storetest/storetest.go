// Package storetest holds the behaviour every store.Gateway implementation
// must share. Each gateway package runs it from its own tests.
package storetest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"shopledger/backend/internal/store"
)

type doc struct {
	ID    string `json:"id"`
	Value int    `json:"value"`
}

// Run exercises gw. Collections are cleared first, so gw must point at
// scratch storage.
func Run(t *testing.T, gw store.Gateway) {
	t.Helper()
	ctx := context.Background()

	reset := func(t *testing.T) {
		t.Helper()
		err := gw.Update(ctx, func(tx store.Tx) error {
			for _, c := range store.Collections {
				if err := tx.Clear(c); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			t.Fatalf("reset: %v", err)
		}
	}

	t.Run("put get and list", func(t *testing.T) {
		reset(t)
		err := gw.Update(ctx, func(tx store.Tx) error {
			for _, id := range []string{"b", "a", "c"} {
				if err := store.Save(tx, store.Products, id, doc{ID: id, Value: len(id)}); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			t.Fatalf("update: %v", err)
		}

		err = gw.View(ctx, func(tx store.Tx) error {
			got, err := store.Load[doc](tx, store.Products, "a")
			if err != nil {
				return err
			}
			if got.ID != "a" {
				return fmt.Errorf("expected a, got %+v", got)
			}
			all, err := store.LoadAll[doc](tx, store.Products)
			if err != nil {
				return err
			}
			if len(all) != 3 {
				return fmt.Errorf("expected 3 docs, got %d", len(all))
			}
			return nil
		})
		if err != nil {
			t.Fatalf("view: %v", err)
		}
	})

	t.Run("missing id is ErrNotFound", func(t *testing.T) {
		reset(t)
		err := gw.View(ctx, func(tx store.Tx) error {
			_, err := tx.Get(store.Customers, "nope")
			return err
		})
		if !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("failed update keeps nothing", func(t *testing.T) {
		reset(t)
		boom := errors.New("boom")
		err := gw.Update(ctx, func(tx store.Tx) error {
			if err := store.Save(tx, store.Products, "p1", doc{ID: "p1"}); err != nil {
				return err
			}
			if err := store.Save(tx, store.Customers, "c1", doc{ID: "c1"}); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}
		err = gw.View(ctx, func(tx store.Tx) error {
			for _, c := range []string{store.Products, store.Customers} {
				docs, err := tx.GetAll(c)
				if err != nil {
					return err
				}
				if len(docs) != 0 {
					return fmt.Errorf("%s: expected no docs after rollback, got %d", c, len(docs))
				}
			}
			return nil
		})
		if err != nil {
			t.Fatalf("view: %v", err)
		}
	})

	t.Run("writes are visible inside the same update", func(t *testing.T) {
		reset(t)
		err := gw.Update(ctx, func(tx store.Tx) error {
			if err := store.Save(tx, store.Settings, "seq-F", doc{ID: "seq-F", Value: 1}); err != nil {
				return err
			}
			got, err := store.Load[doc](tx, store.Settings, "seq-F")
			if err != nil {
				return err
			}
			if got.Value != 1 {
				return fmt.Errorf("expected staged value 1, got %d", got.Value)
			}
			if err := tx.Delete(store.Settings, "seq-F"); err != nil {
				return err
			}
			if _, err := tx.Get(store.Settings, "seq-F"); !errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("expected deleted doc to be gone, got %v", err)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("update: %v", err)
		}
	})

	t.Run("clear then put", func(t *testing.T) {
		reset(t)
		seed := func(tx store.Tx) error {
			return store.Save(tx, store.Expenses, "old", doc{ID: "old"})
		}
		if err := gw.Update(ctx, seed); err != nil {
			t.Fatalf("seed: %v", err)
		}
		err := gw.Update(ctx, func(tx store.Tx) error {
			if err := tx.Clear(store.Expenses); err != nil {
				return err
			}
			return store.Save(tx, store.Expenses, "new", doc{ID: "new"})
		})
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		err = gw.View(ctx, func(tx store.Tx) error {
			all, err := store.LoadAll[doc](tx, store.Expenses)
			if err != nil {
				return err
			}
			if len(all) != 1 || all[0].ID != "new" {
				return fmt.Errorf("expected only new doc, got %+v", all)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("view: %v", err)
		}
	})

	t.Run("concurrent increments do not lose updates", func(t *testing.T) {
		reset(t)
		const workers = 8
		var wg sync.WaitGroup
		errs := make(chan error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- gw.Update(ctx, func(tx store.Tx) error {
					cur, err := store.Load[doc](tx, store.Settings, "counter")
					if err != nil && !errors.Is(err, store.ErrNotFound) {
						return err
					}
					cur.ID = "counter"
					cur.Value++
					return store.Save(tx, store.Settings, "counter", cur)
				})
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			if err != nil {
				t.Fatalf("increment: %v", err)
			}
		}

		var got doc
		err := gw.View(ctx, func(tx store.Tx) error {
			var err error
			got, err = store.Load[doc](tx, store.Settings, "counter")
			return err
		})
		if err != nil {
			t.Fatalf("view: %v", err)
		}
		if got.Value != workers {
			t.Fatalf("expected counter %d, got %d", workers, got.Value)
		}
	})

	t.Run("raw documents round trip", func(t *testing.T) {
		reset(t)
		raw := json.RawMessage(`{"id":"x","nested":{"a":[1,2,3]}}`)
		if err := gw.Update(ctx, func(tx store.Tx) error { return tx.Put(store.ActivityLog, "x", raw) }); err != nil {
			t.Fatalf("put: %v", err)
		}
		err := gw.View(ctx, func(tx store.Tx) error {
			got, err := tx.Get(store.ActivityLog, "x")
			if err != nil {
				return err
			}
			var a, b any
			if err := json.Unmarshal(raw, &a); err != nil {
				return err
			}
			if err := json.Unmarshal(got, &b); err != nil {
				return err
			}
			if fmt.Sprint(a) != fmt.Sprint(b) {
				return fmt.Errorf("expected %s, got %s", raw, got)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("view: %v", err)
		}
	})
}
