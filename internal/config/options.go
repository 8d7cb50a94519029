package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Options are the user-facing settings persisted next to the result cache.
// The JSON names match the storage keys.
type Options struct {
	Interval    Seconds `json:"interval" binding:"gte=1"`
	Categories  string  `json:"categories"`
	Cycle       bool    `json:"cycle"`
	Language    string  `json:"language" binding:"omitempty,len=2"`
	CacheExpiry Seconds `json:"cache_expiry" binding:"gte=0"`
}

// DefaultOptions applies when nothing has been saved yet.
func DefaultOptions() Options {
	return Options{
		Interval:    10,
		Categories:  "",
		Cycle:       true,
		Language:    "en",
		CacheExpiry: 60,
	}
}

// CategoryList splits the semicolon-joined categories. An empty string
// yields a single empty category, meaning "no category filter".
func (o Options) CategoryList() []string {
	var out []string
	seen := make(map[string]struct{})
	for _, c := range strings.Split(o.Categories, ";") {
		c = strings.TrimSpace(c)
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	if len(out) > 1 {
		// drop the empty entry left by a trailing ';'
		filtered := out[:0]
		for _, c := range out {
			if c != "" {
				filtered = append(filtered, c)
			}
		}
		out = filtered
	}
	return out
}

func (o Options) CycleInterval() time.Duration {
	return o.Interval.Duration()
}

func (o Options) CacheExpiryDuration() time.Duration {
	return o.CacheExpiry.Duration()
}

// Seconds is a whole number of seconds. It decodes from a JSON number or a
// numeric string because form values are often saved as strings.
type Seconds int

func (s Seconds) Duration() time.Duration {
	return time.Duration(s) * time.Second
}

func (s *Seconds) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		str = strings.TrimSpace(str)
		if str == "" {
			return nil
		}
		n, err := strconv.Atoi(str)
		if err != nil {
			return fmt.Errorf("seconds: invalid value %q", str)
		}
		*s = Seconds(n)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("seconds: %w", err)
	}
	*s = Seconds(int(f))
	return nil
}
