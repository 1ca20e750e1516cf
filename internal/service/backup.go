package service

import (
	"context"

	"shopledger/backend/internal/apperr"
	"shopledger/backend/internal/backup"
	"shopledger/backend/internal/store"
)

func (s *Service) Export(ctx context.Context) (backup.Document, error) {
	var out backup.Document
	err := s.view(ctx, func(tx store.Tx) error {
		doc, err := backup.Export(tx, s.now())
		out = doc
		return err
	})
	return out, err
}

// Restore replaces every collection with doc. It refuses to run unless
// confirmed is true.
func (s *Service) Restore(ctx context.Context, doc backup.Document, confirmed bool) (map[string]int, error) {
	if !confirmed {
		return nil, apperr.Validationf("restore replaces all data and must be confirmed")
	}
	s.log.Warn().
		Int("schema_version", doc.SchemaVersion).
		Time("exported_at", doc.ExportedAt).
		Msg("restoring backup, existing data will be replaced")

	var counts map[string]int
	err := s.update(ctx, func(tx store.Tx) error {
		c, err := backup.Restore(tx, doc)
		counts = c
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Interface("records", counts).Msg("backup restored")
	return counts, nil
}
