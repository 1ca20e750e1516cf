package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"shopledger/backend/internal/store"
)

type record struct {
	Collection string         `gorm:"primaryKey;size:64"`
	ID         string         `gorm:"primaryKey;size:128"`
	Doc        datatypes.JSON `gorm:"not null"`
	UpdatedAt  time.Time
}

func (record) TableName() string { return "ledger_records" }

// Store is an embedded single-file gateway. It runs on one connection, so
// transactions are serialized by the driver.
type Store struct {
	db *gorm.DB
}

func New(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&record{}); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) View(ctx context.Context, fn func(store.Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		return fn(&tx{db: db, readOnly: true})
	})
}

func (s *Store) Update(ctx context.Context, fn func(store.Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		return fn(&tx{db: db})
	})
}

type tx struct {
	db       *gorm.DB
	readOnly bool
}

func (t *tx) Get(collection, id string) (json.RawMessage, error) {
	var rec record
	err := t.db.Where("collection = ? AND id = ?", collection, id).Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return json.RawMessage(rec.Doc), nil
}

func (t *tx) GetAll(collection string) ([]json.RawMessage, error) {
	var recs []record
	if err := t.db.Where("collection = ?", collection).Order("id").Find(&recs).Error; err != nil {
		return nil, err
	}
	docs := make([]json.RawMessage, 0, len(recs))
	for _, rec := range recs {
		docs = append(docs, json.RawMessage(rec.Doc))
	}
	return docs, nil
}

func (t *tx) Put(collection, id string, doc json.RawMessage) error {
	if t.readOnly {
		return store.ErrReadOnly
	}
	rec := record{Collection: collection, ID: id, Doc: datatypes.JSON(doc), UpdatedAt: time.Now().UTC()}
	return t.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "collection"}, {Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"doc", "updated_at"}),
	}).Create(&rec).Error
}

func (t *tx) Delete(collection, id string) error {
	if t.readOnly {
		return store.ErrReadOnly
	}
	return t.db.Where("collection = ? AND id = ?", collection, id).Delete(&record{}).Error
}

func (t *tx) Clear(collection string) error {
	if t.readOnly {
		return store.ErrReadOnly
	}
	return t.db.Where("collection = ?", collection).Delete(&record{}).Error
}
