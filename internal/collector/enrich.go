package collector

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/LJTian/TheNews/internal/logger"
	"github.com/LJTian/TheNews/internal/news"
	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/gocolly/colly/v2"
)

const (
	enrichParallelism = 4
	enrichMaxRunes    = 300
)

// Enricher fills in missing abstracts from the article page's description
// meta tags, falling back to a readability excerpt of the body. It is best
// effort: pages that fail to load keep an empty abstract.
type Enricher struct {
	Timeout   time.Duration
	UserAgent string
}

func (en *Enricher) Enrich(ctx context.Context, stories []news.Story) []news.Story {
	out := make([]news.Story, len(stories))
	copy(out, stories)

	var targets []int
	for i, s := range out {
		if s.Abstract == "" && strings.HasPrefix(s.URL, "http") {
			targets = append(targets, i)
		}
	}
	if len(targets) == 0 || ctx.Err() != nil {
		return out
	}

	c := colly.NewCollector(
		colly.Async(true),
		colly.UserAgent(en.userAgent()),
	)
	timeout := en.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	c.SetRequestTimeout(timeout)
	c.WithTransport(ctxTransport{ctx: ctx, base: http.DefaultTransport})
	_ = c.Limit(&colly.LimitRule{DomainGlob: "*", Parallelism: enrichParallelism})

	var mu sync.Mutex
	found := make(map[string]string)

	c.OnHTML("head", func(e *colly.HTMLElement) {
		desc := MetaDescription(e.DOM)
		if desc == "" {
			return
		}
		key := e.Request.Ctx.Get("story_url")
		mu.Lock()
		found[key] = desc
		mu.Unlock()
	})
	c.OnScraped(func(r *colly.Response) {
		key := r.Request.Ctx.Get("story_url")
		mu.Lock()
		_, ok := found[key]
		mu.Unlock()
		if ok {
			return
		}
		if desc := Excerpt(r.Body, r.Request.URL); desc != "" {
			mu.Lock()
			found[key] = desc
			mu.Unlock()
		}
	})
	c.OnError(func(r *colly.Response, err error) {
		logger.S().Debugf("enrich %s: %v", r.Request.URL, err)
	})

	for _, i := range targets {
		if ctx.Err() != nil {
			break
		}
		reqCtx := colly.NewContext()
		reqCtx.Put("story_url", out[i].URL)
		if err := c.Request("GET", out[i].URL, nil, reqCtx, nil); err != nil {
			logger.S().Debugf("enrich %s: %v", out[i].URL, err)
		}
	}
	c.Wait()

	filled := 0
	for _, i := range targets {
		if desc, ok := found[out[i].URL]; ok {
			out[i].Abstract = desc
			filled++
		}
	}
	logger.S().Infof("enrich done, missing=%d filled=%d", len(targets), filled)
	return out
}

// ctxTransport ties every request of one Enrich call to its ctx, so both
// in-flight and queued requests stop when the caller gives up.
type ctxTransport struct {
	ctx  context.Context
	base http.RoundTripper
}

func (t ctxTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.ctx.Err(); err != nil {
		return nil, err
	}
	return t.base.RoundTrip(req.WithContext(t.ctx))
}

func (en *Enricher) userAgent() string {
	if en.UserAgent != "" {
		return en.UserAgent
	}
	return "TheNewsBot/1.0"
}

// MetaDescription prefers og:description, then twitter:description, then the
// plain description meta tag.
func MetaDescription(head *goquery.Selection) string {
	selectors := []string{
		`meta[property="og:description"]`,
		`meta[name="twitter:description"]`,
		`meta[name="description"]`,
	}
	for _, sel := range selectors {
		if v, ok := head.Find(sel).First().Attr("content"); ok {
			if v = strings.Join(strings.Fields(v), " "); v != "" {
				return truncateRunes(v, enrichMaxRunes)
			}
		}
	}
	return ""
}

// Excerpt extracts a short summary from an article body.
func Excerpt(body []byte, pageURL *url.URL) string {
	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil {
		return ""
	}
	v := strings.Join(strings.Fields(article.Excerpt), " ")
	if v == "" {
		return ""
	}
	return truncateRunes(v, enrichMaxRunes)
}

func truncateRunes(s string, limit int) string {
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit]) + "…"
}
