// Package api implements the HTTP client for the school-management server:
// delta pulls, pending-operation replay, record pushes, and the auth
// boundary calls.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/satchel-app/satchel/internal/models"
)

const (
	// DefaultRateLimit is requests per minute against the server.
	DefaultRateLimit = 60

	// requestTimeout bounds a single request; a timeout is treated as an
	// ordinary transient failure subject to retry on the next pass.
	requestTimeout = 30 * time.Second
)

// Sentinel errors the sync engine branches on.
var (
	// ErrNetworkUnavailable wraps connection-level failures.
	ErrNetworkUnavailable = errors.New("network unavailable")

	// ErrUnauthorized marks stale or missing credentials (401/403).
	ErrUnauthorized = errors.New("unauthorized")
)

// ConflictError carries the server's canonical record from a 409 response.
type ConflictError struct {
	Server json.RawMessage
}

func (e *ConflictError) Error() string {
	return "server rejected write as stale"
}

// Client talks to the school-management REST API with bearer auth and
// client-side rate limiting.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter

	mu           sync.Mutex
	requestCount int
}

// NewClient creates an API client. An empty token produces an
// unauthenticated client usable only for login.
func NewClient(baseURL, token string, rateLimit int) *Client {
	httpClient := &http.Client{Timeout: requestTimeout}
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(context.Background(), ts)
		httpClient.Timeout = requestTimeout
	}

	if rateLimit <= 0 {
		rateLimit = DefaultRateLimit
	}
	limiter := rate.NewLimiter(rate.Every(time.Minute/time.Duration(rateLimit)), rateLimit)

	return &Client{
		baseURL: baseURL,
		http:    httpClient,
		limiter: limiter,
	}
}

// RequestCount returns how many requests this client has issued.
func (c *Client) RequestCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requestCount
}

// DeltaMeta is the opaque state block the delta endpoint returns under
// "_meta". SyncState is persisted and echoed on the next call.
type DeltaMeta struct {
	SyncState        string    `json:"sync_state"`
	MinClientVersion string    `json:"min_client_version"`
	ServerTime       time.Time `json:"server_time"`
}

// DeltaResponse maps entity kinds to the records changed since last_sync.
type DeltaResponse struct {
	Changes map[models.EntityKind][]json.RawMessage
	Meta    DeltaMeta
}

// PullChanges fetches records changed since lastSync. schoolID scopes the
// pull to one tenant; pass 0 to omit the filter (super-admin context).
// syncState echoes the blob from the previous pull.
func (c *Client) PullChanges(ctx context.Context, lastSync time.Time, schoolID int64, syncState string) (*DeltaResponse, error) {
	params := url.Values{}
	params.Set("last_sync", lastSync.UTC().Format(time.RFC3339))
	if schoolID != 0 {
		params.Set("school_id", strconv.FormatInt(schoolID, 10))
	}
	if syncState != "" {
		params.Set("state", syncState)
	}

	body, err := c.do(ctx, http.MethodGet, "/api/sync/?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse delta response: %w", err)
	}

	resp := &DeltaResponse{Changes: make(map[models.EntityKind][]json.RawMessage)}
	for key, value := range raw {
		if key == "_meta" {
			if err := json.Unmarshal(value, &resp.Meta); err != nil {
				return nil, fmt.Errorf("parse delta meta: %w", err)
			}
			continue
		}
		kind := models.EntityKind(key)
		if !kind.Valid() {
			continue
		}
		var records []json.RawMessage
		if err := json.Unmarshal(value, &records); err != nil {
			return nil, fmt.Errorf("parse %s delta: %w", key, err)
		}
		resp.Changes[kind] = records
	}
	return resp, nil
}

// ExecuteResult is the outcome of a successfully replayed operation.
type ExecuteResult struct {
	// Record is the entity document echoed by the server, when the
	// response carried one.
	Record json.RawMessage
}

// Execute replays one pending operation against its recorded endpoint.
// A 409 returns a *ConflictError carrying the server snapshot; 401/403
// return ErrUnauthorized; everything else non-2xx is a transient failure.
func (c *Client) Execute(ctx context.Context, op *models.PendingOperation) (*ExecuteResult, error) {
	body, err := c.do(ctx, op.Method, op.Endpoint, op.Payload)
	if err != nil {
		return nil, err
	}

	result := &ExecuteResult{}
	if looksLikeRecord(body) {
		result.Record = body
	}
	return result, nil
}

// UpdateRecord pushes a record document to its canonical endpoint. Used by
// keep-local and merge conflict resolutions.
func (c *Client) UpdateRecord(ctx context.Context, kind models.EntityKind, id string, payload json.RawMessage) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPatch, kind.RecordEndpoint(id), payload)
}

// Login exchanges credentials for a bearer token and the user's claims.
func (c *Client) Login(ctx context.Context, username, password string, schoolID int64) (*models.UserContext, error) {
	creds := map[string]any{"username": username, "password": password}
	if schoolID != 0 {
		creds["school"] = schoolID
	}
	payload, err := json.Marshal(creds)
	if err != nil {
		return nil, err
	}

	body, err := c.do(ctx, http.MethodPost, "/auth/api/token/", payload)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Access   string `json:"access"`
		UserID   int64  `json:"user_id"`
		SchoolID int64  `json:"school_id"`
		Role     string `json:"role"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse token response: %w", err)
	}
	if resp.Access == "" {
		return nil, fmt.Errorf("token response missing access token")
	}
	return &models.UserContext{
		UserID:   resp.UserID,
		SchoolID: resp.SchoolID,
		Role:     resp.Role,
		Token:    resp.Access,
	}, nil
}

// Logout asks the server to end the session. Local state must only be
// wiped after this returns nil; a failed or unreachable logout leaves
// everything in place.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/auth/logout/", nil)
	return err
}

// do issues one rate-limited request and normalizes the error taxonomy.
func (c *Client) do(ctx context.Context, method, path string, payload json.RawMessage) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	var reqBody io.Reader
	if len(payload) > 0 {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if len(payload) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}

	c.mu.Lock()
	c.requestCount++
	c.mu.Unlock()

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: %s %s returned %d", ErrUnauthorized, method, path, resp.StatusCode)
	case resp.StatusCode == http.StatusConflict:
		return nil, parseConflict(body)
	default:
		return nil, fmt.Errorf("%s %s returned %d: %s", method, path, resp.StatusCode, truncate(body, 200))
	}
}

// parseConflict extracts the canonical server record from a 409 body.
func parseConflict(body []byte) error {
	var payload struct {
		Server json.RawMessage `json:"server"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Server) == 0 {
		// A 409 without a usable snapshot still surfaces as a conflict;
		// the resolver just has nothing server-side to offer.
		return &ConflictError{}
	}
	return &ConflictError{Server: payload.Server}
}

// looksLikeRecord reports whether a response body is a JSON object with an
// id field, i.e. an entity document worth caching.
func looksLikeRecord(body []byte) bool {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return false
	}
	_, ok := doc["id"]
	return ok
}

// truncate limits response bodies quoted in errors.
func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
