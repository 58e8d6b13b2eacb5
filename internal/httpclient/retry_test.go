package httpclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(max int) RetryHandlerConfig {
	return RetryHandlerConfig{
		MaxRetries:       max,
		BaseDelay:        time.Millisecond,
		MaxDelay:         10 * time.Millisecond,
		RetryStatusCodes: []int{http.StatusTooManyRequests},
	}
}

func TestRetryHandler_RecoversAfterRateLimit(t *testing.T) {
	var requestCount int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&requestCount, 1) <= 2 {
			w.Header().Set("Retry-After", "0.001")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewHTTPClientBuilder(zerolog.Nop()).WithRetry(fastRetry(3)).Build()

	resp, err := client.Do(context.Background(), &Request{URL: server.URL, Method: http.MethodGet})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), atomic.LoadInt32(&requestCount))
}

func TestRetryHandler_Exhausted(t *testing.T) {
	var requestCount int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requestCount, 1)
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"retry_after": 0.001}`))
	}))
	defer server.Close()

	client := NewHTTPClientBuilder(zerolog.Nop()).WithRetry(fastRetry(2)).Build()

	_, err := client.Do(context.Background(), &Request{URL: server.URL, Method: http.MethodGet})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all retry attempts failed")
	assert.Equal(t, int32(3), atomic.LoadInt32(&requestCount))
}

func TestRetryHandler_DoesNotRetryOtherStatus(t *testing.T) {
	var requestCount int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requestCount, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewHTTPClientBuilder(zerolog.Nop()).WithRetry(fastRetry(3)).Build()

	resp, err := client.Do(context.Background(), &Request{URL: server.URL, Method: http.MethodGet})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&requestCount))
}

func TestRetryHandler_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "5")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	cfg := fastRetry(3)
	cfg.MaxDelay = time.Minute
	client := NewHTTPClientBuilder(zerolog.Nop()).WithRetry(cfg).Build()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Do(ctx, &Request{URL: server.URL, Method: http.MethodGet})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCalculateDelay(t *testing.T) {
	rh := NewRetryHandler(RetryHandlerConfig{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second}, zerolog.Nop())

	assert.Equal(t, 100*time.Millisecond, rh.CalculateDelay(0))
	assert.Equal(t, 200*time.Millisecond, rh.CalculateDelay(1))
	assert.Equal(t, 800*time.Millisecond, rh.CalculateDelay(3))
	assert.Equal(t, time.Second, rh.CalculateDelay(10))
}

func TestRetryHandler_DoesNotRepeatPostAfterDroppedConnection(t *testing.T) {
	var requestCount int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requestCount, 1)
		_, _ = io.ReadAll(r.Body)
		conn, _, err := w.(http.Hijacker).Hijack()
		if err == nil {
			_ = conn.Close()
		}
	}))
	defer server.Close()

	client := NewHTTPClientBuilder(zerolog.Nop()).WithRetry(fastRetry(3)).Build()

	_, err := client.PostJSON(context.Background(), server.URL, map[string]string{"content": "changed"})
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&requestCount))
}

func TestRetryHandler_RepeatsGetAfterDroppedConnection(t *testing.T) {
	var requestCount int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&requestCount, 1) == 1 {
			conn, _, err := w.(http.Hijacker).Hijack()
			if err == nil {
				_ = conn.Close()
			}
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewHTTPClientBuilder(zerolog.Nop()).WithRetry(fastRetry(3)).Build()

	resp, err := client.Do(context.Background(), &Request{URL: server.URL, Method: http.MethodGet})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(2), atomic.LoadInt32(&requestCount))
}

func TestCanRepeat_RefusedPostIsRepeatable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := server.URL
	server.Close()

	client := NewHTTPClientBuilder(zerolog.Nop()).Build()
	_, err := client.PostJSON(context.Background(), addr, map[string]string{"content": "changed"})
	require.Error(t, err)

	assert.True(t, neverSent(err))
	assert.True(t, canRepeat(http.MethodPost, err))
	assert.False(t, canRepeat(http.MethodPost, errors.New("connection reset")))
}
