package collector

import (
	"context"

	"github.com/LJTian/TheNews/internal/config"
)

// Article is a headline as returned by a source, before decoding.
type Article struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
}

// Fetcher abstracts one upstream provider of articles.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context, opts config.Options) ([]Article, error)
}
