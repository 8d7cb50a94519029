package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the process-level configuration read from the environment.
type Config struct {
	AppPort string
	Env     string

	// BasicAuthUser and BasicAuthPass enable a site-wide password when both
	// are set.
	BasicAuthUser string
	BasicAuthPass string

	// StorageBackend selects the key-value store: redis, postgres or memory.
	StorageBackend string
	PostgresDSN    string
	RedisAddr      string
	KeyPrefix      string

	NewsAPIKey        string
	SourcesEndpoint   string
	ArticlesEndpoint  string
	FetchTimeout      time.Duration
	FetchRetryMax     int
	RequestsPerSecond float64
	UserAgent         string

	Feeds           []string
	EnrichAbstracts bool

	CronSpec string
}

func Load() *Config {
	cfg := &Config{
		AppPort:           getEnv("APP_PORT", "9000"),
		Env:               getEnv("APP_ENV", "development"),
		BasicAuthUser:     getEnv("APP_BASIC_USER", ""),
		BasicAuthPass:     getEnv("APP_BASIC_PASS", ""),
		StorageBackend:    getEnv("STORAGE_BACKEND", "redis"),
		PostgresDSN:       getEnv("POSTGRES_DSN", ""),
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		KeyPrefix:         getEnv("KEY_PREFIX", "thenews:"),
		NewsAPIKey:        getEnv("NEWSAPI_KEY", ""),
		SourcesEndpoint:   getEnv("NEWSAPI_SOURCES_URL", "https://newsapi.org/v1/sources"),
		ArticlesEndpoint:  getEnv("NEWSAPI_ARTICLES_URL", "https://newsapi.org/v1/articles"),
		FetchTimeout:      getEnvDuration("FETCH_TIMEOUT", 10*time.Second),
		FetchRetryMax:     getEnvInt("FETCH_RETRY_MAX", 0),
		RequestsPerSecond: getEnvFloat("FETCH_RPS", 10),
		UserAgent:         getEnv("USER_AGENT", "TheNewsBot/1.0"),
		Feeds:             splitList(getEnv("THENEWS_FEEDS", "")),
		EnrichAbstracts:   getEnvBool("ENRICH_ABSTRACTS", false),
		CronSpec:          getEnv("CRON_SPEC", "*/30 * * * *"),
	}
	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	f, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return def
	}
	return f
}

func getEnvBool(key string, def bool) bool {
	b, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return def
	}
	return b
}

// getEnvDuration accepts Go durations ("15s") or a bare number of seconds.
func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' }) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Now returns the current time; swapped out in tests.
var Now = time.Now
