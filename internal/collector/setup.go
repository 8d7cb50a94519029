package collector

import (
	"github.com/LJTian/TheNews/internal/config"
	"github.com/LJTian/TheNews/internal/logger"
)

// FromConfig builds the enabled fetchers. newsapi needs an API key; the feed
// fetcher runs only when feeds are configured.
func FromConfig(cfg *config.Config) []Fetcher {
	client := NewClient(ClientOptions{
		Timeout:           cfg.FetchTimeout,
		UserAgent:         cfg.UserAgent,
		RetryMax:          cfg.FetchRetryMax,
		RequestsPerSecond: cfg.RequestsPerSecond,
	})

	var fetchers []Fetcher
	if cfg.NewsAPIKey != "" {
		fetchers = append(fetchers, NewNewsAPIFetcher(client, cfg.NewsAPIKey, cfg.SourcesEndpoint, cfg.ArticlesEndpoint))
	} else {
		logger.S().Warn("NEWSAPI_KEY not set, newsapi fetcher disabled")
	}
	if len(cfg.Feeds) > 0 {
		fetchers = append(fetchers, &FeedFetcher{URLs: cfg.Feeds, Timeout: cfg.FetchTimeout, UserAgent: cfg.UserAgent})
	}
	return fetchers
}

// EnricherFromConfig returns nil unless abstract enrichment is enabled.
func EnricherFromConfig(cfg *config.Config) *Enricher {
	if !cfg.EnrichAbstracts {
		return nil
	}
	return &Enricher{Timeout: cfg.FetchTimeout, UserAgent: cfg.UserAgent}
}
