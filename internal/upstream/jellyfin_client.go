// Shelfgate - Virtual Library Reverse Proxy for Media Servers
// Copyright 2026 Shelfgate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfgate/shelfgate

/*
jellyfin_client.go - Jellyfin/Emby REST API client

Implements the Client interface against the Jellyfin REST API. Emby accepts
the same authentication header and item endpoints, so the one adapter covers
both server families.

API reference: https://api.jellyfin.org/
*/

package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/shelfgate/shelfgate/internal/config"
	"github.com/shelfgate/shelfgate/internal/logging"
	"github.com/shelfgate/shelfgate/internal/metrics"
	"github.com/shelfgate/shelfgate/internal/models"
)

// itemFields is the Fields parameter requested on every item fetch. It
// covers everything the sort engine and clients need for list rendering.
const itemFields = "DateCreated,SortName,Overview,ProviderIds"

// Ensure JellyfinClient implements Client.
var _ Client = (*JellyfinClient)(nil)

// JellyfinClient provides access to the Jellyfin REST API.
type JellyfinClient struct {
	baseURL    string
	apiKey     string
	userID     string
	httpClient *http.Client

	// limiter caps request rate to the upstream server. Nil when the
	// configured rate is zero (unlimited).
	limiter *rate.Limiter
}

// NewJellyfinClient creates a new Jellyfin API client from configuration.
func NewJellyfinClient(cfg *config.UpstreamConfig) *JellyfinClient {
	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &JellyfinClient{
		baseURL:    strings.TrimSuffix(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		userID:     cfg.UserID,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
	}
}

// Ping tests connectivity to the upstream server.
func (c *JellyfinClient) Ping(ctx context.Context) error {
	resp, err := c.doRequest(ctx, "ping", "/System/Ping", nil)
	if err != nil {
		return fmt.Errorf("%w: ping failed: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: ping returned status %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}

// GetViews retrieves the user's top-level libraries.
func (c *JellyfinClient) GetViews(ctx context.Context) ([]models.View, error) {
	endpoint := fmt.Sprintf("/Users/%s/Views", url.PathEscape(c.userID))

	resp, err := c.doRequest(ctx, "views", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: views request failed: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("views", resp)
	}

	var result models.ViewsResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: failed to decode views: %v", ErrUnavailable, err)
	}
	return result.Items, nil
}

// GetItemsByIDs fetches full records for a batch of native item ids.
// The batch is fetched in one call; order of the result is whatever the
// server returns and carries no meaning.
func (c *JellyfinClient) GetItemsByIDs(ctx context.Context, ids []string) ([]models.Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := url.Values{}
	query.Set("Ids", strings.Join(ids, ","))
	query.Set("Fields", itemFields)

	resp, err := c.doRequest(ctx, "items_by_ids", "/Items", query)
	if err != nil {
		return nil, fmt.Errorf("%w: item batch request failed: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("items_by_ids", resp)
	}

	var result models.ItemsResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: failed to decode item batch: %v", ErrUnavailable, err)
	}
	return result.Items, nil
}

// GetViewItems lists a native view's members with server-side sort/paging.
func (c *JellyfinClient) GetViewItems(ctx context.Context, viewID string, q models.ItemQuery) (*models.ItemsResult, error) {
	q = q.Normalize()

	query := url.Values{}
	query.Set("ParentId", viewID)
	query.Set("Fields", itemFields)
	query.Set("SortBy", q.SortBy)
	query.Set("SortOrder", q.SortOrder)
	query.Set("StartIndex", strconv.Itoa(q.StartIndex))
	if q.Limit > 0 {
		query.Set("Limit", strconv.Itoa(q.Limit))
	}
	if q.Filter != "" {
		query.Set("Filters", q.Filter)
	}

	endpoint := fmt.Sprintf("/Users/%s/Items", url.PathEscape(c.userID))

	resp, err := c.doRequest(ctx, "view_items", endpoint, query)
	if err != nil {
		return nil, fmt.Errorf("%w: view items request failed: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("view_items", resp)
	}

	var result models.ItemsResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: failed to decode view items: %v", ErrUnavailable, err)
	}
	return &result, nil
}

// Forward relays the inbound request to the given upstream endpoint and
// streams the response back unmodified. The inbound query string is
// preserved; only the authentication headers are added.
func (c *JellyfinClient) Forward(w http.ResponseWriter, r *http.Request, endpoint string) {
	target, err := url.Parse(c.baseURL)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("invalid upstream base URL")
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
		return
	}

	proxy := &httputil.ReverseProxy{
		Director: func(req *http.Request) {
			req.URL.Scheme = target.Scheme
			req.URL.Host = target.Host
			req.URL.Path = endpoint
			req.URL.RawQuery = r.URL.RawQuery
			req.Host = target.Host
			c.setAuthHeaders(req)
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logging.Ctx(r.Context()).Warn().Err(err).Str("endpoint", endpoint).Msg("passthrough to upstream failed")
			metrics.UpstreamRequestErrors.WithLabelValues("forward", "0").Inc()
			w.WriteHeader(http.StatusBadGateway)
		},
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(r.Context()); err != nil {
			http.Error(w, "upstream unavailable", http.StatusBadGateway)
			return
		}
	}

	proxy.ServeHTTP(w, r)
}

// doRequest performs a GET against the upstream API, honoring the rate
// limiter and recording metrics.
func (c *JellyfinClient) doRequest(ctx context.Context, operation, endpoint string, query url.Values) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	fullURL := c.baseURL + endpoint
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setAuthHeaders(req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	metrics.ObserveUpstreamRequest(operation, start, status, err)

	return resp, err
}

// setAuthHeaders attaches the Jellyfin/Emby authentication headers.
func (c *JellyfinClient) setAuthHeaders(req *http.Request) {
	req.Header.Set("X-Emby-Token", c.apiKey)
	req.Header.Set("X-Emby-Client", "Shelfgate")
	req.Header.Set("X-Emby-Device-Name", "Shelfgate")
	req.Header.Set("X-Emby-Device-Id", "shelfgate")
	req.Header.Set("X-Emby-Client-Version", "1.0.0")
	req.Header.Set("Accept", "application/json")
}

// statusError drains the response body into an upstream error.
func statusError(operation string, resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return fmt.Errorf("%w: %s returned status %d (failed to read body)", ErrUnavailable, operation, resp.StatusCode)
	}
	return fmt.Errorf("%w: %s returned status %d: %s", ErrUnavailable, operation, resp.StatusCode, string(body))
}
