package storage

import (
	"context"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// KVEntry is one persisted key of the headline state.
type KVEntry struct {
	Key       string         `gorm:"primaryKey;size:64" json:"key"`
	Value     datatypes.JSON `gorm:"type:jsonb" json:"value"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

func (KVEntry) TableName() string {
	return "kv_entries"
}

// GormKV keeps the headline state in a Postgres table.
type GormKV struct {
	db *gorm.DB
}

func NewGormKV(db *gorm.DB) *GormKV {
	return &GormKV{db: db}
}

func (g *GormKV) Get(ctx context.Context, keys ...string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	var rows []KVEntry
	if err := g.db.WithContext(ctx).Where("key IN ?", keys).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("kv get: %w", err)
	}
	for _, r := range rows {
		out[r.Key] = []byte(r.Value)
	}
	return out, nil
}

// SetMany upserts all values in one transaction.
func (g *GormKV) SetMany(ctx context.Context, values map[string][]byte) error {
	if len(values) == 0 {
		return nil
	}
	now := time.Now()
	rows := make([]KVEntry, 0, len(values))
	for k, v := range values {
		rows = append(rows, KVEntry{Key: k, Value: datatypes.JSON(v), UpdatedAt: now})
	}
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).Create(&rows).Error
	})
}

func (g *GormKV) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
