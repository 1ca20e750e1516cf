package memory

import (
	"context"
	"encoding/json"
	"slices"
	"sort"
	"sync"

	"shopledger/backend/internal/store"
)

// Store keeps every collection in process memory. Update holds the writer
// lock for the whole function and stages writes until it returns nil.
type Store struct {
	mu   sync.RWMutex
	data map[string]map[string]json.RawMessage
}

func New() *Store {
	return &Store{data: make(map[string]map[string]json.RawMessage)}
}

func (s *Store) Close() error {
	return nil
}

func (s *Store) View(ctx context.Context, fn func(store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	return fn(&tx{base: s.data, readOnly: true})
}

func (s *Store) Update(ctx context.Context, fn func(store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &tx{
		base:    s.data,
		staged:  make(map[string]map[string]json.RawMessage),
		cleared: make(map[string]bool),
	}
	if err := fn(t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	t.apply()
	return nil
}

type tx struct {
	base     map[string]map[string]json.RawMessage
	staged   map[string]map[string]json.RawMessage // nil value marks a delete
	cleared  map[string]bool
	readOnly bool
}

func (t *tx) lookup(collection, id string) (json.RawMessage, bool) {
	if docs, ok := t.staged[collection]; ok {
		if doc, ok := docs[id]; ok {
			return doc, doc != nil
		}
	}
	if t.cleared[collection] {
		return nil, false
	}
	doc, ok := t.base[collection][id]
	return doc, ok
}

func (t *tx) Get(collection, id string) (json.RawMessage, error) {
	doc, ok := t.lookup(collection, id)
	if !ok {
		return nil, store.ErrNotFound
	}
	return slices.Clone(doc), nil
}

func (t *tx) GetAll(collection string) ([]json.RawMessage, error) {
	ids := make(map[string]struct{})
	if !t.cleared[collection] {
		for id := range t.base[collection] {
			ids[id] = struct{}{}
		}
	}
	for id := range t.staged[collection] {
		ids[id] = struct{}{}
	}

	sorted := make([]string, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	sort.Strings(sorted)

	out := make([]json.RawMessage, 0, len(sorted))
	for _, id := range sorted {
		if doc, ok := t.lookup(collection, id); ok {
			out = append(out, slices.Clone(doc))
		}
	}
	return out, nil
}

func (t *tx) Put(collection, id string, doc json.RawMessage) error {
	if t.readOnly {
		return store.ErrReadOnly
	}
	t.stage(collection)[id] = slices.Clone(doc)
	return nil
}

func (t *tx) Delete(collection, id string) error {
	if t.readOnly {
		return store.ErrReadOnly
	}
	t.stage(collection)[id] = nil
	return nil
}

func (t *tx) Clear(collection string) error {
	if t.readOnly {
		return store.ErrReadOnly
	}
	t.cleared[collection] = true
	delete(t.staged, collection)
	return nil
}

func (t *tx) stage(collection string) map[string]json.RawMessage {
	docs, ok := t.staged[collection]
	if !ok {
		docs = make(map[string]json.RawMessage)
		t.staged[collection] = docs
	}
	return docs
}

func (t *tx) apply() {
	for collection := range t.cleared {
		delete(t.base, collection)
	}
	for collection, docs := range t.staged {
		target, ok := t.base[collection]
		if !ok {
			target = make(map[string]json.RawMessage, len(docs))
			t.base[collection] = target
		}
		for id, doc := range docs {
			if doc == nil {
				delete(target, id)
				continue
			}
			target[id] = doc
		}
	}
}
