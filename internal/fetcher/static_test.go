package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aleister1102/postwatch/internal/common/errorwrapper"
	"github.com/aleister1102/postwatch/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStaticFetcher() *StaticFetcher {
	cfg := config.NewDefaultFetchConfig()
	cfg.UserAgent = "postwatch-test"
	cfg.StaticTimeoutSecs = 2
	return NewStaticFetcher(cfg, zerolog.Nop())
}

func TestStaticFetcher_OK(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "postwatch-test", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(postPage))
	}))
	defer server.Close()

	raw, err := newTestStaticFetcher().Fetch(context.Background(), server.URL+"/board")

	require.NoError(t, err)
	assert.Equal(t, "static", raw.Phase)
	assert.Equal(t, server.URL+"/board", raw.FinalURL)
	assert.Contains(t, string(raw.Body), "Hello")
}

func TestStaticFetcher_FollowsRedirect(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/old" {
			http.Redirect(w, r, "/new/", http.StatusMovedPermanently)
			return
		}
		_, _ = w.Write([]byte(postPage))
	}))
	defer server.Close()

	raw, err := newTestStaticFetcher().Fetch(context.Background(), server.URL+"/old")

	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(raw.FinalURL, "/new/"))
}

func TestStaticFetcher_StatusErrors(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
	}{
		{status: http.StatusNonAuthoritativeInfo, retryable: true},
		{status: http.StatusNoContent, retryable: true},
		{status: http.StatusPartialContent, retryable: true},
		{status: http.StatusNotFound, retryable: false},
		{status: http.StatusForbidden, retryable: false},
		{status: http.StatusTooManyRequests, retryable: true},
		{status: http.StatusServiceUnavailable, retryable: true},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			_, err := newTestStaticFetcher().Fetch(context.Background(), server.URL)

			var httpErr *errorwrapper.HTTPError
			require.ErrorAs(t, err, &httpErr)
			assert.Equal(t, tt.status, httpErr.StatusCode)
			assert.Equal(t, tt.retryable, errorwrapper.IsRetryable(err))
		})
	}
}

func TestStaticFetcher_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(3 * time.Second):
		}
	}))
	defer server.Close()

	cfg := config.NewDefaultFetchConfig()
	cfg.StaticTimeoutSecs = 1
	f := NewStaticFetcher(cfg, zerolog.Nop())

	start := time.Now()
	_, err := f.Fetch(context.Background(), server.URL)

	require.Error(t, err)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestStaticFetcher_RepeatedFetchesOfSameURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(postPage))
	}))
	defer server.Close()

	f := newTestStaticFetcher()
	for i := 0; i < 3; i++ {
		_, err := f.Fetch(context.Background(), server.URL)
		require.NoError(t, err)
	}
}
