package api

import (
	"context"
	"sync"
	"time"

	"github.com/LJTian/TheNews/internal/config"
	"github.com/LJTian/TheNews/internal/news"
)

// Board is the page renderer: it remembers the story most recently shown so
// the new-tab page and its poller can read it back.
type Board struct {
	mu      sync.RWMutex
	story   news.Story
	shownAt time.Time
	ok      bool
}

func NewBoard() *Board {
	return &Board{}
}

func (b *Board) Render(_ context.Context, story news.Story) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.story = story
	b.shownAt = config.Now()
	b.ok = true
	return nil
}

// Current returns the displayed story and when it was shown. ok is false
// until something has been rendered.
func (b *Board) Current() (story news.Story, shownAt time.Time, ok bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.story, b.shownAt, b.ok
}
