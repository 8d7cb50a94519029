package processor

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/LJTian/TheNews/internal/collector"
	"github.com/LJTian/TheNews/internal/news"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashURLDeterministicAndDistinct(t *testing.T) {
	h1a := hashURL("https://example.com/a")
	h1b := hashURL("https://example.com/a")
	h2 := hashURL("https://example.com/b")

	assert.Equal(t, h1a, h1b)
	assert.NotEqual(t, h1a, h2)
	assert.Equal(t, h1a, StoryID("https://example.com/a"))
}

func TestDomain(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://nyt.com/a/b", "nyt.com"},
		{"http://www.bbc.co.uk:8080/news?id=1", "www.bbc.co.uk"},
		{"HTTPS://Example.com#frag", "Example.com"},
		{"ftp://files.example.com/x", ""},
		{"not a url", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Domain(tt.in), tt.in)
	}
}

func articles(n int) []collector.Article {
	out := make([]collector.Article, n)
	for i := range out {
		out[i] = collector.Article{
			Title:       fmt.Sprintf("Story %d", i),
			Description: fmt.Sprintf("About %d", i),
			URL:         fmt.Sprintf("https://site%d.com/a/b", i%4),
		}
		out[i].URL += fmt.Sprintf("/%d", i)
	}
	return out
}

func TestDecodeCapsAtMaxStories(t *testing.T) {
	d := &Decoder{Rand: rand.New(rand.NewPCG(1, 2))}
	rs := d.Decode(articles(45))

	require.Len(t, rs.Stories, news.MaxStories)
	seen := make(map[string]bool)
	for _, s := range rs.Stories {
		assert.False(t, seen[s.URL], "duplicate %s", s.URL)
		seen[s.URL] = true
		assert.Equal(t, Domain(s.URL), s.Source)
		assert.Regexp(t, `^site[0-3]\.com$`, s.Source)
	}
}

func TestDecodeFewerThanMax(t *testing.T) {
	rs := NewDecoder().Decode(articles(5))
	assert.Len(t, rs.Stories, 5)
}

func TestDecodeDeduplicatesAndSkipsEmpty(t *testing.T) {
	items := []collector.Article{
		{Title: "Title 1", URL: "https://example.com/1", Description: "desc 1"},
		{Title: "Title 1 duplicate by URL", URL: "https://example.com/1"},
		{Title: "  ", URL: "https://example.com/blank"},
		{Title: "No URL"},
		{Title: " Title 2 ", URL: "https://example.com/2"},
	}
	rs := NewDecoder().Decode(items)
	require.Len(t, rs.Stories, 2)

	byURL := map[string]news.Story{}
	for _, s := range rs.Stories {
		byURL[s.URL] = s
	}
	assert.Equal(t, "Title 1", byURL["https://example.com/1"].Title)
	assert.Equal(t, "desc 1", byURL["https://example.com/1"].Abstract)
	assert.Equal(t, "Title 2", byURL["https://example.com/2"].Title)
	assert.Equal(t, "", byURL["https://example.com/2"].Abstract)
}

func TestDecodeEmpty(t *testing.T) {
	rs := NewDecoder().Decode(nil)
	assert.True(t, rs.Empty())
}
