// Package store is the client's durable state: conversations, the current
// conversation pointer, settings and in-flight generation PollStates, all
// kept as JSON values in a key-value store.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"clarvis-be/pkg/database"

	"github.com/patrickmn/go-cache"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// KV stores JSON encodable values by key.
type KV interface {
	// Get decodes the value of key into v and reports whether it existed.
	Get(ctx context.Context, key string, v any) (bool, error)
	Set(ctx context.Context, key string, v any) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}

type kvEntry struct {
	Key       string         `gorm:"primaryKey;type:varchar(255)"`
	Value     datatypes.JSON `gorm:"type:json;not null"`
	UpdatedAt time.Time
}

func (kvEntry) TableName() string {
	return "client_kv"
}

// GormKV keeps entries in one table.
type GormKV struct {
	db *gorm.DB
}

func NewGormKV(db *gorm.DB) (*GormKV, error) {
	if err := db.AutoMigrate(&kvEntry{}); err != nil {
		return nil, err
	}
	return &GormKV{db: db}, nil
}

// OpenFile opens (or creates) the sqlite file at path.
func OpenFile(path string) (*GormKV, error) {
	db, err := database.NewSQLiteDB(path)
	if err != nil {
		return nil, err
	}
	return NewGormKV(db)
}

func (s *GormKV) Get(ctx context.Context, key string, v any) (bool, error) {
	var entry kvEntry
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(entry.Value, v)
}

func (s *GormKV) Set(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	entry := kvEntry{Key: key, Value: data, UpdatedAt: time.Now().UTC()}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
}

func (s *GormKV) Delete(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Where("key = ?", key).Delete(&kvEntry{}).Error
}

func (s *GormKV) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := s.db.WithContext(ctx).Model(&kvEntry{}).
		Where("key LIKE ? ESCAPE '\\'", escapeLike(prefix)+"%").
		Order("key").
		Pluck("key", &keys).Error
	return keys, err
}

func escapeLike(s string) string {
	return strings.NewReplacer("%", `\%`, "_", `\_`).Replace(s)
}

// MemoryKV is a process-local KV, used by tests and --ephemeral sessions.
type MemoryKV struct {
	cache *cache.Cache
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{cache: cache.New(cache.NoExpiration, 0)}
}

func (m *MemoryKV) Get(_ context.Context, key string, v any) (bool, error) {
	x, found := m.cache.Get(key)
	if !found {
		return false, nil
	}
	return true, json.Unmarshal(x.([]byte), v)
}

func (m *MemoryKV) Set(_ context.Context, key string, v any) error {
	// values are stored encoded so callers never share memory with the store
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.cache.Set(key, data, cache.NoExpiration)
	return nil
}

func (m *MemoryKV) Delete(_ context.Context, key string) error {
	m.cache.Delete(key)
	return nil
}

func (m *MemoryKV) Keys(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	for k := range m.cache.Items() {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
