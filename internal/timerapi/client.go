package timerapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client calls the focus timer API on behalf of one owner and device.
type Client struct {
	baseURL    *url.URL
	token      string
	deviceID   string
	httpClient *http.Client
	userAgent  string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithDeviceID sets the device identifier sent with every request.
func WithDeviceID(deviceID string) ClientOption {
	return func(c *Client) { c.deviceID = deviceID }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(userAgent string) ClientOption {
	return func(c *Client) { c.userAgent = userAgent }
}

// NewClient builds a client for the API rooted at baseURL, authenticating
// with token ("<key_id>.<secret>").
func NewClient(baseURL, token string, opts ...ClientOption) (*Client, error) {
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http or https: %q", baseURL)
	}

	c := &Client{
		baseURL:    parsed,
		token:      token,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		userAgent:  "focusctl",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// StartOrSync posts a session snapshot.
func (c *Client) StartOrSync(ctx context.Context, req StartOrSyncRequest) (Session, error) {
	if req.DeviceID == "" {
		req.DeviceID = c.deviceID
	}
	var resp SessionResponse
	if err := c.do(ctx, http.MethodPost, "/timer/sessions", nil, req, &resp); err != nil {
		return Session{}, err
	}
	return resp.Session, nil
}

// Pause pauses a session.
func (c *Client) Pause(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodPost, sessionPath(sessionID, "pause"), nil, nil, nil)
}

// Resume resumes a paused session.
func (c *Client) Resume(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodPost, sessionPath(sessionID, "resume"), nil, nil, nil)
}

// Complete finalizes a session. observedSeconds may be nil to keep the last
// synced value.
func (c *Client) Complete(ctx context.Context, sessionID string, observedSeconds *int) error {
	return c.do(ctx, http.MethodPost, sessionPath(sessionID, "complete"), nil, CompleteRequest{ObservedDurationSeconds: observedSeconds}, nil)
}

// GetActive returns the owner's active session or nil.
func (c *Client) GetActive(ctx context.Context) (*Session, error) {
	var resp ActiveSessionResponse
	if err := c.do(ctx, http.MethodGet, "/timer/sessions/active", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Session, nil
}

// GetSession returns a session in any status.
func (c *Client) GetSession(ctx context.Context, sessionID string) (Session, error) {
	var resp SessionResponse
	if err := c.do(ctx, http.MethodGet, sessionPath(sessionID, ""), nil, nil, &resp); err != nil {
		return Session{}, err
	}
	return resp.Session, nil
}

// ListEvents returns a session's journal.
func (c *Client) ListEvents(ctx context.Context, sessionID string) ([]Event, error) {
	var resp EventsResponse
	if err := c.do(ctx, http.MethodGet, sessionPath(sessionID, "events"), nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

// ListActivity returns archival entries between two inclusive local dates
// (YYYY-MM-DD). Empty bounds are open.
func (c *Client) ListActivity(ctx context.Context, from, to string) ([]ActivityEntry, error) {
	query := url.Values{}
	if from != "" {
		query.Set("from", from)
	}
	if to != "" {
		query.Set("to", to)
	}
	var resp ActivityResponse
	if err := c.do(ctx, http.MethodGet, "/activity", query, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

func sessionPath(sessionID, action string) string {
	path := "/timer/sessions/" + url.PathEscape(sessionID)
	if action != "" {
		path += "/" + action
	}
	return path
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := *c.baseURL
	endpoint.Path = strings.TrimRight(endpoint.Path, "/") + path
	if len(query) > 0 {
		endpoint.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.deviceID != "" {
		req.Header.Set(DeviceIDHeader, c.deviceID)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var payload ErrorResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(raw, &payload); err == nil {
		apiErr.Code = payload.ErrorCode
		apiErr.Message = payload.Message
		apiErr.FieldErrors = payload.Errors
	} else {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	return apiErr
}
