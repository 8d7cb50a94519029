package processor

import (
	"crypto/sha1"
	"encoding/hex"
	"net/url"
	"strings"

	"github.com/LJTian/TheNews/internal/collector"
	"github.com/LJTian/TheNews/internal/news"
	"github.com/LJTian/TheNews/internal/selector"
)

// Decoder turns raw articles into a ResultSet of at most news.MaxStories
// randomly chosen stories.
type Decoder struct {
	Rand selector.Rand
}

func NewDecoder() *Decoder {
	return &Decoder{Rand: selector.Default}
}

func (d *Decoder) Decode(items []collector.Article) news.ResultSet {
	unique := make([]collector.Article, 0, len(items))
	seen := make(map[string]struct{})
	for _, it := range items {
		title := strings.TrimSpace(it.Title)
		if title == "" || it.URL == "" {
			continue
		}
		id := hashURL(it.URL)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, it)
	}

	picked := selector.PickRandom(news.MaxStories, unique, d.Rand)
	stories := make([]news.Story, 0, len(picked))
	for _, it := range picked {
		stories = append(stories, news.Story{
			Title:    strings.TrimSpace(it.Title),
			Abstract: strings.TrimSpace(it.Description),
			URL:      it.URL,
			Source:   Domain(it.URL),
		})
	}
	return news.ResultSet{Stories: stories}
}

// Domain returns the host of an http(s) URL without port, or "" when the URL
// is not http(s).
func Domain(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return ""
	}
	return u.Hostname()
}

// StoryID is a stable identifier derived from the story URL.
func StoryID(rawURL string) string {
	return hashURL(rawURL)
}

func hashURL(url string) string {
	h := sha1.New()
	h.Write([]byte(url))
	return hex.EncodeToString(h.Sum(nil))
}
