// Package remote is the client for the livestream backend's REST surface.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"livestream-console/internal/overlay"
	"livestream-console/internal/stream"

	"github.com/google/uuid"
)

// RequestIDHeader carries a per-call id so backend logs can be correlated.
const RequestIDHeader = "X-Request-ID"

// APIError is a call the backend answered with success:false, or with a body
// that is not an envelope at all.
type APIError struct {
	Op      string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s (status %d)", e.Op, e.Message, e.Status)
}

// envelope is the uniform response shape. The stream endpoint puts its
// fields next to success instead of under data.
type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	Type      stream.Kind     `json:"type,omitempty"`
	StreamURL string          `json:"stream_url,omitempty"`
}

// Settings is the persisted application configuration.
type Settings struct {
	SourceURL string `json:"rtsp_url"`
}

// Client calls the backend. It is safe for concurrent use.
type Client struct {
	base *url.URL
	http *http.Client
	log  *slog.Logger
}

var (
	_ overlay.Remote    = (*Client)(nil)
	_ stream.Negotiator = (*Client)(nil)
)

// New returns a client for the backend at baseURL. httpClient may be nil.
func New(baseURL string, httpClient *http.Client, log *slog.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{base: u, http: httpClient, log: log}, nil
}

// GetSettings implements GET /api/settings.
func (c *Client) GetSettings(ctx context.Context) (Settings, error) {
	var s Settings
	_, err := c.do(ctx, "get settings", http.MethodGet, "/api/settings", nil, &s)
	return s, err
}

// SaveSettings implements POST /api/settings.
func (c *Client) SaveSettings(ctx context.Context, s Settings) error {
	_, err := c.do(ctx, "save settings", http.MethodPost, "/api/settings", s, nil)
	return err
}

// ListOverlays implements GET /api/overlays.
func (c *Client) ListOverlays(ctx context.Context) ([]overlay.Overlay, error) {
	var items []overlay.Overlay
	if _, err := c.do(ctx, "list overlays", http.MethodGet, "/api/overlays", nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// CreateOverlay implements POST /api/overlays.
func (c *Client) CreateOverlay(ctx context.Context, d overlay.Draft) (overlay.Overlay, error) {
	var o overlay.Overlay
	_, err := c.do(ctx, "create overlay", http.MethodPost, "/api/overlays", d, &o)
	return o, err
}

// UpdateOverlay implements PUT /api/overlays/{id}. Only the patch's set fields are sent.
func (c *Client) UpdateOverlay(ctx context.Context, id overlay.ID, p overlay.Patch) (overlay.Overlay, error) {
	var o overlay.Overlay
	_, err := c.do(ctx, "update overlay", http.MethodPut, "/api/overlays/"+url.PathEscape(string(id)), p, &o)
	return o, err
}

// DeleteOverlay implements DELETE /api/overlays/{id}.
func (c *Client) DeleteOverlay(ctx context.Context, id overlay.ID) error {
	_, err := c.do(ctx, "delete overlay", http.MethodDelete, "/api/overlays/"+url.PathEscape(string(id)), nil, nil)
	return err
}

// NegotiateStream implements POST /api/stream.
func (c *Client) NegotiateStream(ctx context.Context, sourceURL string) (stream.Negotiation, error) {
	env, err := c.do(ctx, "negotiate stream", http.MethodPost, "/api/stream", map[string]string{"url": sourceURL}, nil)
	if err != nil {
		return stream.Negotiation{}, err
	}
	if env.StreamURL == "" {
		return stream.Negotiation{}, &APIError{Op: "negotiate stream", Status: http.StatusOK, Message: "response has no stream_url"}
	}
	return stream.Negotiation{Kind: env.Type, URL: c.absolute(env.StreamURL)}, nil
}

// absolute resolves backend-relative URLs such as /static/streams/stream.m3u8.
func (c *Client) absolute(ref string) string {
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return c.base.ResolveReference(r).String()
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out any) (envelope, error) {
	var env envelope

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return env, fmt.Errorf("%s: encode body: %w", op, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, reader)
	if err != nil {
		return env, fmt.Errorf("%s: %w", op, err)
	}
	reqID := uuid.NewString()
	req.Header.Set(RequestIDHeader, reqID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return env, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return env, &APIError{Op: op, Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	if !env.Success {
		msg := env.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return env, &APIError{Op: op, Status: resp.StatusCode, Message: msg}
	}

	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return env, fmt.Errorf("%s: decode data: %w", op, err)
		}
	}

	c.log.Debug("backend call",
		slog.String("op", op),
		slog.String("request_id", reqID),
		slog.Int("status", resp.StatusCode))
	return env, nil
}
