package collector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/LJTian/TheNews/internal/config"
	"github.com/LJTian/TheNews/internal/logger"
	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"
)

// FeedFetcher reads plain RSS/Atom feeds. It ignores categories and
// language; every configured feed is read on every cycle.
type FeedFetcher struct {
	URLs      []string
	Timeout   time.Duration
	UserAgent string
}

func (f *FeedFetcher) Name() string {
	return "feeds"
}

func (f *FeedFetcher) Fetch(ctx context.Context, _ config.Options) ([]Article, error) {
	logger.S().Infof("fetch %d feeds...", len(f.URLs))

	perFeed := make([][]Article, len(f.URLs))
	g, ctx := errgroup.WithContext(ctx)
	for i, feedURL := range f.URLs {
		g.Go(func() error {
			articles, err := f.fetchOne(ctx, feedURL)
			if err != nil {
				return err
			}
			perFeed[i] = articles
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []Article
	for _, list := range perFeed {
		out = append(out, list...)
	}
	return out, nil
}

func (f *FeedFetcher) fetchOne(ctx context.Context, feedURL string) ([]Article, error) {
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = defaultClientTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	parser := gofeed.NewParser()
	if f.UserAgent != "" {
		parser.UserAgent = f.UserAgent
	}
	feed, err := parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		if isTimeout(err) || isTimeout(ctx.Err()) {
			err = fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		var httpErr gofeed.HTTPError
		if errors.As(err, &httpErr) {
			return nil, &FetchError{URL: feedURL, StatusCode: httpErr.StatusCode, Err: statusCause(httpErr.StatusCode)}
		}
		return nil, &FetchError{URL: feedURL, Err: err}
	}

	articles := make([]Article, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item.Link == "" || strings.TrimSpace(item.Title) == "" {
			continue
		}
		articles = append(articles, Article{
			Title:       strings.TrimSpace(item.Title),
			Description: stripHTML(item.Description),
			URL:         item.Link,
		})
	}
	return articles, nil
}

func statusCause(code int) error {
	if code == 502 {
		return ErrServiceUnavailable
	}
	return ErrHTTPStatus
}

// stripHTML returns the text of an HTML fragment with entities decoded and
// whitespace folded.
func stripHTML(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.Join(strings.Fields(s), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
