package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"

	"shopledger/backend/internal/logger"
	"shopledger/backend/internal/store"
)

const schema = `
	CREATE TABLE IF NOT EXISTS ledger_records (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		doc JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (collection, id)
	)
`

const maxAttempts = 5

type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, log: logger.WithComponent("postgres")}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) View(ctx context.Context, fn func(store.Tx) error) error {
	return s.run(ctx, true, fn)
}

// Update retries serialization failures; fn may therefore run more than once
// and must not keep state outside the transaction between attempts.
func (s *Store) Update(ctx context.Context, fn func(store.Tx) error) error {
	backoff := 20 * time.Millisecond
	for attempt := 1; ; attempt++ {
		err := s.run(ctx, false, fn)
		if err == nil || !isSerializationFailure(err) || attempt >= maxAttempts {
			return err
		}
		s.log.Warn().Int("attempt", attempt).Err(err).Msg("serialization failure, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

func (s *Store) run(ctx context.Context, readOnly bool, fn func(store.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable, ReadOnly: readOnly})
	if err != nil {
		return err
	}
	defer func() { _ = sqlTx.Rollback() }()

	if err := fn(&tx{ctx: ctx, sqlTx: sqlTx, readOnly: readOnly}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

type tx struct {
	ctx      context.Context
	sqlTx    *sql.Tx
	readOnly bool
}

func (t *tx) Get(collection, id string) (json.RawMessage, error) {
	query := `SELECT doc FROM ledger_records WHERE collection = $1 AND id = $2`
	if !t.readOnly {
		query += ` FOR UPDATE`
	}

	var doc []byte
	err := t.sqlTx.QueryRowContext(t.ctx, query, collection, id).Scan(&doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return doc, nil
}

func (t *tx) GetAll(collection string) ([]json.RawMessage, error) {
	rows, err := t.sqlTx.QueryContext(t.ctx, `
		SELECT doc
		FROM ledger_records
		WHERE collection = $1
		ORDER BY id
	`, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := make([]json.RawMessage, 0, 64)
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

func (t *tx) Put(collection, id string, doc json.RawMessage) error {
	if t.readOnly {
		return store.ErrReadOnly
	}
	_, err := t.sqlTx.ExecContext(t.ctx, `
		INSERT INTO ledger_records (collection, id, doc, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (collection, id)
		DO UPDATE SET doc = EXCLUDED.doc, updated_at = now()
	`, collection, id, []byte(doc))
	return err
}

func (t *tx) Delete(collection, id string) error {
	if t.readOnly {
		return store.ErrReadOnly
	}
	_, err := t.sqlTx.ExecContext(t.ctx, `DELETE FROM ledger_records WHERE collection = $1 AND id = $2`, collection, id)
	return err
}

func (t *tx) Clear(collection string) error {
	if t.readOnly {
		return store.ErrReadOnly
	}
	_, err := t.sqlTx.ExecContext(t.ctx, `DELETE FROM ledger_records WHERE collection = $1`, collection)
	return err
}

// isSerializationFailure matches SQLSTATE 40001 and deadlocks (40P01).
func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}
