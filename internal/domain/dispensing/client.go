package dispensing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/clinio/clinio/internal/platform/metrics"
)

// Client talks to external pharmacy APIs. Each pharmacy gets its own
// circuit breaker, so an unreachable pharmacy cannot tie up the request
// path or trip calls to the healthy ones. Failed sends are retried a
// bounded number of times with backoff; retrying is safe because the
// pharmacy dedupes on client_order_id.
type Client struct {
	http    *http.Client
	retries int
	metrics *metrics.Metrics
	logger  zerolog.Logger

	mu       sync.Mutex
	breakers map[uuid.UUID]*gobreaker.CircuitBreaker
}

func NewClient(timeout time.Duration, retries int, m *metrics.Metrics, logger zerolog.Logger) *Client {
	return &Client{
		http:     &http.Client{Timeout: timeout},
		retries:  retries,
		metrics:  m,
		logger:   logger,
		breakers: make(map[uuid.UUID]*gobreaker.CircuitBreaker),
	}
}

func (c *Client) breakerFor(pharmacy *ExternalPharmacy) *gobreaker.CircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.breakers[pharmacy.ID]; ok {
		return b
	}
	b := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    pharmacy.Name,
		Timeout: 60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn().Str("breaker", name).
				Str("from", from.String()).Str("to", to.String()).
				Msg("circuit breaker state changed")
			if c.metrics != nil {
				c.metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
			}
		},
	})
	c.breakers[pharmacy.ID] = b
	return b
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return 0
	}
}

// SendOrder POSTs the payload to {endpoint}/orders and returns the raw
// response body on HTTP 200. Any other status or transport failure is an
// error; 5xx and transport errors are retried, 4xx are not.
func (c *Client) SendOrder(ctx context.Context, pharmacy *ExternalPharmacy, payload OrderPayload) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal order payload: %w", err)
	}
	url := strings.TrimRight(pharmacy.APIEndpoint, "/") + "/orders"

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * 500 * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
			c.logger.Info().Str("url", url).Int("attempt", attempt).
				Msg("retrying pharmacy order send")
		}

		resp, retryable, err := c.post(ctx, c.breakerFor(pharmacy), url, pharmacy.APIKey, body)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}
	return "", lastErr
}

func (c *Client) post(ctx context.Context, breaker *gobreaker.CircuitBreaker, url, apiKey string, body []byte) (response string, retryable bool, err error) {
	result, err := breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+apiKey)

		start := time.Now()
		resp, err := c.http.Do(req)
		if c.metrics != nil {
			c.metrics.PharmacyRequestSecs.Observe(time.Since(start).Seconds())
		}
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, &httpStatusError{status: resp.StatusCode, body: string(data)}
		}
		return string(data), nil
	})
	if err != nil {
		var se *httpStatusError
		if errors.As(err, &se) {
			return "", se.status >= 500, err
		}
		// An open breaker stays open for its whole timeout window, so
		// backing off and retrying against it only burns time.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", false, err
		}
		return "", true, err
	}
	return result.(string), false, nil
}

type httpStatusError struct {
	status int
	body   string
}

func (e *httpStatusError) Error() string {
	msg := e.body
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return fmt.Sprintf("pharmacy returned HTTP %d: %s", e.status, msg)
}
