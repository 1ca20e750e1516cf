// Package backup exports every collection as one JSON document and restores
// such a document verbatim. Restore is destructive: it clears every
// collection first and does not merge.
package backup

import (
	"bytes"
	"encoding/json"
	"io"
	"time"

	"shopledger/backend/internal/apperr"
	"shopledger/backend/internal/store"
)

const SchemaVersion = 1

type Document struct {
	SchemaVersion int                          `json:"schema_version"`
	ExportedAt    time.Time                    `json:"exported_at"`
	Collections   map[string][]json.RawMessage `json:"collections"`
}

func Export(tx store.Tx, at time.Time) (Document, error) {
	doc := Document{
		SchemaVersion: SchemaVersion,
		ExportedAt:    at,
		Collections:   make(map[string][]json.RawMessage, len(store.Collections)),
	}
	for _, c := range store.Collections {
		records, err := tx.GetAll(c)
		if err != nil {
			return Document{}, apperr.Persistence("export "+c, err)
		}
		doc.Collections[c] = records
	}
	return doc, nil
}

// Restore replaces the contents of every collection with doc and returns the
// number of records written per collection.
func Restore(tx store.Tx, doc Document) (map[string]int, error) {
	if doc.SchemaVersion != SchemaVersion {
		return nil, apperr.Validationf("unsupported backup schema version %d", doc.SchemaVersion)
	}

	type keyed struct {
		id  string
		raw json.RawMessage
	}
	staged := make(map[string][]keyed, len(doc.Collections))
	for name, records := range doc.Collections {
		if !store.IsCollection(name) {
			return nil, apperr.Validationf("unknown collection %q in backup", name)
		}
		for i, raw := range records {
			var head struct {
				ID string `json:"id"`
			}
			if err := json.Unmarshal(raw, &head); err != nil || head.ID == "" {
				return nil, apperr.Validationf("%s record %d has no id", name, i)
			}
			var compact bytes.Buffer
			if err := json.Compact(&compact, raw); err != nil {
				return nil, apperr.Validationf("%s record %d: %v", name, i, err)
			}
			staged[name] = append(staged[name], keyed{id: head.ID, raw: compact.Bytes()})
		}
	}

	counts := make(map[string]int, len(store.Collections))
	for _, c := range store.Collections {
		if err := tx.Clear(c); err != nil {
			return nil, apperr.Persistence("clear "+c, err)
		}
		for _, rec := range staged[c] {
			if err := tx.Put(c, rec.id, rec.raw); err != nil {
				return nil, apperr.Persistence("restore "+c, err)
			}
		}
		counts[c] = len(staged[c])
	}
	return counts, nil
}

func Write(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func Read(r io.Reader) (Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return Document{}, apperr.Validationf("decode backup: %v", err)
	}
	return doc, nil
}
