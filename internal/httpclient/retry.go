package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/aleister1102/postwatch/internal/common/errorwrapper"
	"github.com/rs/zerolog"
)

// RetryHandler retries rate-limited or failing requests with exponential backoff
type RetryHandler struct {
	maxRetries       int
	baseDelay        time.Duration
	maxDelay         time.Duration
	enableJitter     bool
	retryStatusCodes map[int]bool
	logger           zerolog.Logger
}

// RetryHandlerConfig configuration for retry handler
type RetryHandlerConfig struct {
	MaxRetries       int
	BaseDelay        time.Duration
	MaxDelay         time.Duration
	EnableJitter     bool
	RetryStatusCodes []int
}

// NewRetryHandler creates a new retry handler
func NewRetryHandler(config RetryHandlerConfig, logger zerolog.Logger) *RetryHandler {
	codes := make(map[int]bool, len(config.RetryStatusCodes))
	for _, code := range config.RetryStatusCodes {
		codes[code] = true
	}

	return &RetryHandler{
		maxRetries:       config.MaxRetries,
		baseDelay:        config.BaseDelay,
		maxDelay:         config.MaxDelay,
		enableJitter:     config.EnableJitter,
		retryStatusCodes: codes,
		logger:           logger.With().Str("component", "RetryHandler").Logger(),
	}
}

// CalculateDelay returns baseDelay * 2^attempt capped at maxDelay, plus up to 10% jitter
func (rh *RetryHandler) CalculateDelay(attempt int) time.Duration {
	delay := rh.baseDelay
	for i := 0; i < attempt && delay < rh.maxDelay; i++ {
		delay *= 2
	}
	if rh.maxDelay > 0 && delay > rh.maxDelay {
		delay = rh.maxDelay
	}

	if rh.enableJitter && delay >= 10*time.Millisecond {
		delay += time.Duration(rand.Int63n(int64(delay / 10)))
	}
	return delay
}

// serverDelay reads the server's requested wait from Retry-After or a Discord style body
func serverDelay(resp *Response) (time.Duration, bool) {
	if v := resp.Headers.Get("Retry-After"); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil && secs >= 0 {
			return time.Duration(secs * float64(time.Second)), true
		}
	}
	var body struct {
		RetryAfter float64 `json:"retry_after"`
	}
	if json.Unmarshal(resp.Body, &body) == nil && body.RetryAfter > 0 {
		return time.Duration(body.RetryAfter * float64(time.Second)), true
	}
	return 0, false
}

func (rh *RetryHandler) wait(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// canRepeat reports whether a failed request may be sent again. A request
// that is not idempotent is repeated only when it never reached the server,
// since the server may have acted on it before the connection broke.
func canRepeat(method string, err error) bool {
	if !errorwrapper.IsRetryable(err) {
		return false
	}
	switch method {
	case "", http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return neverSent(err)
}

// neverSent reports whether err happened while dialing, before any byte was written.
func neverSent(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

// DoWithRetry executes a request with retry logic. The server's requested wait
// is honored but never exceeds maxDelay.
func (rh *RetryHandler) DoWithRetry(ctx context.Context, doFunc func(context.Context, *Request) (*Response, error), req *Request) (*Response, error) {
	var lastResp *Response
	var lastErr error

	for attempt := 0; attempt <= rh.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := doFunc(ctx, req)
		if err != nil {
			lastErr, lastResp = err, nil
			if attempt < rh.maxRetries && canRepeat(req.Method, err) {
				if werr := rh.wait(ctx, rh.CalculateDelay(attempt)); werr != nil {
					return nil, werr
				}
				continue
			}
			break
		}

		lastErr, lastResp = nil, resp
		if !rh.retryStatusCodes[resp.StatusCode] || attempt == rh.maxRetries {
			break
		}

		delay := rh.CalculateDelay(attempt)
		if d, ok := serverDelay(resp); ok {
			delay = d
			if rh.maxDelay > 0 && delay > rh.maxDelay {
				delay = rh.maxDelay
			}
		}
		rh.logger.Warn().
			Str("url", req.URL).
			Int("status_code", resp.StatusCode).
			Int("attempt", attempt+1).
			Int("max_retries", rh.maxRetries).
			Dur("delay", delay).
			Msg("Rate limited, waiting before retry")
		if err := rh.wait(ctx, delay); err != nil {
			return nil, err
		}
	}

	if lastErr != nil {
		return nil, errorwrapper.WrapError(lastErr, "all retry attempts failed")
	}
	if lastResp != nil && rh.retryStatusCodes[lastResp.StatusCode] {
		err := errorwrapper.NewHTTPErrorWithURL(lastResp.StatusCode, truncate(lastResp.Body, 512), req.URL)
		return lastResp, errorwrapper.WrapError(err, "all retry attempts failed")
	}
	return lastResp, nil
}
