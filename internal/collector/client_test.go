package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient() *Client {
	return NewClient(ClientOptions{Timeout: 2 * time.Second, UserAgent: "test-agent"})
}

func TestGetJSONDecodesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		fmt.Fprint(w, `{"sources":[{"id":"bbc-news"},{"id":"cnn"}]}`)
	}))
	defer srv.Close()

	ids, err := Fetch(context.Background(), newTestClient(), srv.URL, func(r sourcesResponse) []string {
		var out []string
		for _, s := range r.Sources {
			out = append(out, s.ID)
		}
		return out
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"bbc-news", "cnn"}, ids)
}

func TestGetJSONBadGatewayIsServiceUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, "upstream down")
	}))
	defer srv.Close()

	var v map[string]any
	err := newTestClient().GetJSON(context.Background(), srv.URL, &v)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrServiceUnavailable)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusBadGateway, fe.StatusCode)
	assert.Equal(t, "upstream down", fe.Body)
}

func TestGetJSONOtherStatusIsGenericError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"status":"error","code":"apiKeyInvalid"}`)
	}))
	defer srv.Close()

	var v map[string]any
	err := newTestClient().GetJSON(context.Background(), srv.URL+"?apiKey=secret", &v)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHTTPStatus)
	assert.False(t, errors.Is(err, ErrServiceUnavailable))
	assert.NotContains(t, err.Error(), "secret")
}

func TestGetJSONMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"sources": [`)
	}))
	defer srv.Close()

	var v sourcesResponse
	err := newTestClient().GetJSON(context.Background(), srv.URL, &v)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestGetJSONTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	c := NewClient(ClientOptions{Timeout: 50 * time.Millisecond})
	var v map[string]any
	err := c.GetJSON(context.Background(), srv.URL, &v)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestGetJSONDoesNotRetryByDefault(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	var v map[string]any
	_ = newTestClient().GetJSON(context.Background(), srv.URL, &v)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRedact(t *testing.T) {
	got := redact("https://newsapi.org/v1/articles?source=cnn&apiKey=abc123")
	assert.NotContains(t, got, "abc123")
	assert.Contains(t, got, "source=cnn")

	assert.Equal(t, "https://example.com/x", redact("https://example.com/x"))
}
