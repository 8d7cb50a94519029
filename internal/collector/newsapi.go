package collector

import (
	"context"
	"fmt"
	"net/url"

	"github.com/LJTian/TheNews/internal/config"
	"github.com/LJTian/TheNews/internal/logger"
	"golang.org/x/sync/errgroup"
)

// NewsAPIFetcher resolves the configured categories to newsapi.org sources
// and then collects the articles of every source.
type NewsAPIFetcher struct {
	Client      *Client
	APIKey      string
	SourcesURL  string
	ArticlesURL string
}

func NewNewsAPIFetcher(c *Client, apiKey, sourcesURL, articlesURL string) *NewsAPIFetcher {
	return &NewsAPIFetcher{
		Client:      c,
		APIKey:      apiKey,
		SourcesURL:  sourcesURL,
		ArticlesURL: articlesURL,
	}
}

func (n *NewsAPIFetcher) Name() string {
	return "newsapi"
}

type sourcesResponse struct {
	Sources []struct {
		ID string `json:"id"`
	} `json:"sources"`
}

type articlesResponse struct {
	Articles []Article `json:"articles"`
}

func (n *NewsAPIFetcher) Fetch(ctx context.Context, opts config.Options) ([]Article, error) {
	categories := opts.CategoryList()
	logger.S().Infof("fetch newsapi sources for %d categories (language=%s)...", len(categories), opts.Language)

	ids, err := n.Sources(ctx, categories, opts.Language)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		logger.S().Infof("newsapi: no sources for categories %q", opts.Categories)
		return nil, nil
	}
	return n.Articles(ctx, ids)
}

// Sources queries every category concurrently. Any failure fails the batch.
// Ids are flattened in category order with duplicates removed.
func (n *NewsAPIFetcher) Sources(ctx context.Context, categories []string, language string) ([]string, error) {
	perCategory := make([][]string, len(categories))
	g, ctx := errgroup.WithContext(ctx)
	for i, category := range categories {
		g.Go(func() error {
			q := url.Values{}
			if category != "" {
				q.Set("category", category)
			}
			if language != "" {
				q.Set("language", language)
			}
			q.Set("apiKey", n.APIKey)
			u, err := withQuery(n.SourcesURL, q)
			if err != nil {
				return err
			}
			ids, err := Fetch(ctx, n.Client, u, func(r sourcesResponse) []string {
				out := make([]string, 0, len(r.Sources))
				for _, s := range r.Sources {
					if s.ID != "" {
						out = append(out, s.ID)
					}
				}
				return out
			})
			if err != nil {
				return fmt.Errorf("newsapi: sources for category %q: %w", category, err)
			}
			perCategory[i] = ids
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var ids []string
	for _, list := range perCategory {
		for _, id := range list {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Articles fetches every source concurrently and flattens the results in
// source order. Any failure fails the batch.
func (n *NewsAPIFetcher) Articles(ctx context.Context, sourceIDs []string) ([]Article, error) {
	perSource := make([][]Article, len(sourceIDs))
	g, ctx := errgroup.WithContext(ctx)
	for i, id := range sourceIDs {
		g.Go(func() error {
			q := url.Values{}
			q.Set("source", id)
			q.Set("apiKey", n.APIKey)
			u, err := withQuery(n.ArticlesURL, q)
			if err != nil {
				return err
			}
			articles, err := Fetch(ctx, n.Client, u, func(r articlesResponse) []Article {
				return r.Articles
			})
			if err != nil {
				return fmt.Errorf("newsapi: articles for source %q: %w", id, err)
			}
			perSource[i] = articles
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []Article
	for _, list := range perSource {
		out = append(out, list...)
	}
	logger.S().Infof("newsapi done, sources=%d articles=%d", len(sourceIDs), len(out))
	return out, nil
}

func withQuery(base string, q url.Values) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("newsapi: invalid endpoint %q: %w", base, err)
	}
	merged := u.Query()
	for k, vs := range q {
		merged[k] = vs
	}
	u.RawQuery = merged.Encode()
	return u.String(), nil
}

// redact hides the api key in urls that end up in errors and logs.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	if q.Get("apiKey") == "" {
		return raw
	}
	q.Set("apiKey", "REDACTED")
	u.RawQuery = q.Encode()
	return u.String()
}
