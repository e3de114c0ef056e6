// Shelfgate - Virtual Library Reverse Proxy for Media Servers
// Copyright 2026 Shelfgate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfgate/shelfgate

package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/shelfgate/shelfgate/internal/logging"
	"github.com/shelfgate/shelfgate/internal/metrics"
	"github.com/shelfgate/shelfgate/internal/models"
)

// CircuitBreakerClient wraps a Client with a circuit breaker so that a
// failing upstream server sheds load quickly instead of letting every
// hydration chunk ride out its full timeout.
//
// The breaker uses real time for its interval and timeout calculations.
// Tests exercise the wrapped client directly or drive the breaker through
// repeated failures rather than mocking the clock.
type CircuitBreakerClient struct {
	client Client
	cb     *gobreaker.CircuitBreaker[interface{}]
	name   string
}

// Ensure CircuitBreakerClient implements Client.
var _ Client = (*CircuitBreakerClient)(nil)

// NewCircuitBreakerClient wraps client with a circuit breaker.
//
// Configuration:
//   - max 3 concurrent requests in half-open state
//   - 1 minute measurement window
//   - 30 second timeout before attempting recovery
//   - opens after 60% failure rate with minimum 10 requests
func NewCircuitBreakerClient(client Client) *CircuitBreakerClient {
	const cbName = "upstream-api"

	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0) // 0 = closed

	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			if failureRatio >= 0.6 {
				logging.Warn().
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("opening upstream circuit")
				return true
			}
			return false
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("from", stateToString(from)).
				Str("to", stateToString(to)).
				Msg("upstream circuit state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})

	return &CircuitBreakerClient{client: client, cb: cb, name: cbName}
}

// execute wraps an upstream call with circuit breaker protection.
func (c *CircuitBreakerClient) execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := c.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(c.name, "rejected").Inc()
			return nil, fmt.Errorf("%w: circuit open: %v", ErrUnavailable, err)
		}
		metrics.CircuitBreakerRequests.WithLabelValues(c.name, "failure").Inc()
		return nil, err
	}
	metrics.CircuitBreakerRequests.WithLabelValues(c.name, "success").Inc()
	return result, nil
}

// castResult type-casts a breaker result with error checking. A nil
// result is a valid nil slice or pointer, not a type mismatch.
func castResult[T any](result interface{}, err error) (T, error) {
	var zero T
	if err != nil || result == nil {
		return zero, err
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

// Ping verifies connectivity through the breaker.
func (c *CircuitBreakerClient) Ping(ctx context.Context) error {
	_, err := c.execute(func() (interface{}, error) {
		return nil, c.client.Ping(ctx)
	})
	return err
}

// GetViews fetches native views through the breaker.
func (c *CircuitBreakerClient) GetViews(ctx context.Context) ([]models.View, error) {
	result, err := c.execute(func() (interface{}, error) {
		return c.client.GetViews(ctx)
	})
	return castResult[[]models.View](result, err)
}

// GetItemsByIDs fetches an item batch through the breaker.
func (c *CircuitBreakerClient) GetItemsByIDs(ctx context.Context, ids []string) ([]models.Item, error) {
	result, err := c.execute(func() (interface{}, error) {
		return c.client.GetItemsByIDs(ctx, ids)
	})
	return castResult[[]models.Item](result, err)
}

// GetViewItems lists a native view through the breaker.
func (c *CircuitBreakerClient) GetViewItems(ctx context.Context, viewID string, query models.ItemQuery) (*models.ItemsResult, error) {
	result, err := c.execute(func() (interface{}, error) {
		return c.client.GetViewItems(ctx, viewID, query)
	})
	return castResult[*models.ItemsResult](result, err)
}

// Forward passes through without breaker accounting: the reverse proxy
// already degrades to 502 on failure, and streamed responses cannot be
// retried anyway.
func (c *CircuitBreakerClient) Forward(w http.ResponseWriter, r *http.Request, endpoint string) {
	c.client.Forward(w, r, endpoint)
}

// stateToString converts a gobreaker state to a readable label.
func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// stateToFloat converts a gobreaker state to the metric encoding.
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
