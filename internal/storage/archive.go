package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/LJTian/TheNews/internal/news"
	"gorm.io/datatypes"
)

// ErrNoArchive is returned when no database is configured.
var ErrNoArchive = errors.New("storage: archive requires postgres")

const archiveListCacheTTL = 5 * time.Minute

// StoryRecord is one archived story. Rows are keyed by URL.
type StoryRecord struct {
	ID        string            `gorm:"primaryKey;size:40" json:"id"`
	Title     string            `gorm:"size:512" json:"title"`
	URL       string            `gorm:"size:1024;uniqueIndex" json:"url"`
	Source    string            `gorm:"size:255;index" json:"source"`
	Abstract  string            `gorm:"size:600" json:"abstract"`
	FetchedAt time.Time         `gorm:"index" json:"fetchedAt"`
	ExtraData datatypes.JSONMap `gorm:"type:jsonb" json:"extraData"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// toValidUTF8 replaces invalid byte sequences Postgres would reject.
func toValidUTF8(s string) string {
	return strings.ToValidUTF8(s, "�")
}

// truncateRunesDB keeps a value within its column size.
func truncateRunesDB(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	s = strings.TrimSpace(s)
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit])
}

// ArchiveStories upserts a freshly fetched result set. idFor maps a URL to
// the record id.
func (s *Store) ArchiveStories(ctx context.Context, stories []news.Story, fetchedAt time.Time, idFor func(string) string, extra map[string]any) error {
	if s.DB == nil {
		return ErrNoArchive
	}
	db := s.DB.WithContext(ctx)
	for _, st := range stories {
		title := truncateRunesDB(toValidUTF8(st.Title), 512)
		abstract := truncateRunesDB(toValidUTF8(st.Abstract), 600)
		rec := &StoryRecord{
			ID:        idFor(st.URL),
			Title:     title,
			URL:       st.URL,
			Source:    st.Source,
			Abstract:  abstract,
			FetchedAt: fetchedAt,
			ExtraData: datatypes.JSONMap(extra),
		}
		if err := db.Where("url = ?", st.URL).FirstOrCreate(rec).Error; err != nil {
			return fmt.Errorf("archiving %s: %w", st.URL, err)
		}
		if err := db.Model(rec).Updates(map[string]any{
			"title":      title,
			"abstract":   abstract,
			"fetched_at": fetchedAt,
		}).Error; err != nil {
			return fmt.Errorf("archiving %s: %w", st.URL, err)
		}
	}
	return nil
}

// ListArchive returns the most recently fetched stories, optionally for one
// source, memoised in Redis when available.
func (s *Store) ListArchive(ctx context.Context, source string, limit int) ([]StoryRecord, error) {
	if s.DB == nil {
		return nil, ErrNoArchive
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	cacheKey := fmt.Sprintf("news:archive:%s:%d", source, limit)
	if s.Redis != nil {
		if bs, err := s.Redis.Get(ctx, cacheKey).Bytes(); err == nil {
			var cached []StoryRecord
			if err := json.Unmarshal(bs, &cached); err == nil {
				return cached, nil
			}
		}
	}

	var list []StoryRecord
	q := s.DB.WithContext(ctx).Model(&StoryRecord{})
	if source != "" {
		q = q.Where("source = ?", source)
	}
	if err := q.Order("fetched_at DESC").Limit(limit).Find(&list).Error; err != nil {
		return nil, err
	}

	if s.Redis != nil && len(list) > 0 {
		if bs, err := json.Marshal(list); err == nil {
			_ = s.Redis.Set(ctx, cacheKey, bs, archiveListCacheTTL).Err()
		}
	}
	return list, nil
}
