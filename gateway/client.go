package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"overlay-server/core"
	"overlay-server/stream"
	"strings"
	"time"

	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Client talks to the overlay service's REST API and change feed.
type Client struct {
	baseURL    string
	httpClient *http.Client
	dialer     *websocket.Dialer
	token      string
	origin     string
}

type Option func(*Client)

// WithToken sends a bearer token on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithOrigin overrides the random id this client tags its writes with.
func WithOrigin(origin string) Option {
	return func(c *Client) { c.origin = origin }
}

// NewClient returns a client for the API rooted at baseURL, e.g.
// http://localhost:5000/api.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		dialer:     websocket.DefaultDialer,
		origin:     uuid.NewString(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Origin is the id carried on this client's writes and echoed in change events.
func (c *Client) Origin() string {
	return c.origin
}

type errorResponse struct {
	Error  string `json:"error"`
	Field  string `json:"field,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func (c *Client) do(ctx context.Context, op, method, path, id string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &core.TransportError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set(core.OriginHeader, c.origin)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &core.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	log := logrus.WithFields(logrus.Fields{
		"op":     op,
		"status": resp.StatusCode,
	})

	if resp.StatusCode >= 300 {
		var apiErr errorResponse
		if err := render.DecodeJSON(resp.Body, &apiErr); err != nil || apiErr.Error == "" {
			apiErr.Error = http.StatusText(resp.StatusCode)
		}
		log.WithField("error", apiErr.Error).Debug("Request rejected")

		switch resp.StatusCode {
		case http.StatusBadRequest:
			if apiErr.Field != "" {
				return &core.ValidationError{Field: apiErr.Field, Reason: apiErr.Reason}
			}
			return &core.ValidationError{Field: "request", Reason: apiErr.Error}
		case http.StatusNotFound:
			if id != "" {
				return &core.NotFoundError{ID: id}
			}
		}
		return &core.TransportError{
			Op:  op,
			Err: fmt.Errorf("unexpected status %d: %s", resp.StatusCode, apiErr.Error),
		}
	}

	if out == nil {
		return nil
	}
	if err := render.DecodeJSON(resp.Body, out); err != nil {
		return &core.TransportError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	log.Debug("Request completed")
	return nil
}

type overlayEnvelope struct {
	Overlay *core.Overlay `json:"overlay"`
}

func (c *Client) CreateOverlay(ctx context.Context, draft core.Draft) (*core.Overlay, error) {
	var out overlayEnvelope
	if err := c.do(ctx, "create overlay", http.MethodPost, "/overlays", "", draft, &out); err != nil {
		return nil, err
	}
	if out.Overlay == nil {
		return nil, &core.TransportError{Op: "create overlay", Err: errors.New("response has no overlay")}
	}
	return out.Overlay, nil
}

func (c *Client) ListOverlays(ctx context.Context) ([]core.Overlay, error) {
	var out struct {
		Overlays []core.Overlay `json:"overlays"`
	}
	if err := c.do(ctx, "list overlays", http.MethodGet, "/overlays", "", nil, &out); err != nil {
		return nil, err
	}
	if out.Overlays == nil {
		out.Overlays = []core.Overlay{}
	}
	return out.Overlays, nil
}

func (c *Client) GetOverlay(ctx context.Context, id string) (*core.Overlay, error) {
	var out overlayEnvelope
	if err := c.do(ctx, "get overlay", http.MethodGet, "/overlays/"+url.PathEscape(id), id, nil, &out); err != nil {
		return nil, err
	}
	if out.Overlay == nil {
		return nil, &core.TransportError{Op: "get overlay", Err: errors.New("response has no overlay")}
	}
	return out.Overlay, nil
}

func (c *Client) UpdateOverlay(ctx context.Context, id string, patch core.Patch) error {
	return c.do(ctx, "update overlay", http.MethodPut, "/overlays/"+url.PathEscape(id), id, patch, nil)
}

func (c *Client) DeleteOverlay(ctx context.Context, id string) error {
	return c.do(ctx, "delete overlay", http.MethodDelete, "/overlays/"+url.PathEscape(id), id, nil, nil)
}

// StreamSettings is the configured stream URL and what the player should load.
type StreamSettings struct {
	StreamURL string        `json:"streamUrl"`
	Stream    stream.Stream `json:"stream"`
}

func (c *Client) GetStreamSettings(ctx context.Context) (*StreamSettings, error) {
	var out struct {
		Settings StreamSettings `json:"settings"`
	}
	if err := c.do(ctx, "get stream settings", http.MethodGet, "/settings/stream-url", "", nil, &out); err != nil {
		return nil, err
	}
	return &out.Settings, nil
}

func (c *Client) SetStreamURL(ctx context.Context, streamURL string) (*StreamSettings, error) {
	var out struct {
		Settings StreamSettings `json:"settings"`
	}
	body := map[string]string{"streamUrl": streamURL}
	if err := c.do(ctx, "set stream url", http.MethodPost, "/settings/stream-url", "", body, &out); err != nil {
		return nil, err
	}
	return &out.Settings, nil
}

func (c *Client) eventsURL() (string, error) {
	u, err := url.Parse(c.baseURL + "/overlays/events")
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return u.String(), nil
}

// Subscribe opens the change feed. The channel closes when ctx ends or the
// connection drops.
func (c *Client) Subscribe(ctx context.Context) (<-chan core.ChangeEvent, error) {
	target, err := c.eventsURL()
	if err != nil {
		return nil, &core.TransportError{Op: "subscribe", Err: err}
	}

	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	header.Set(core.OriginHeader, c.origin)

	conn, _, err := c.dialer.DialContext(ctx, target, header)
	if err != nil {
		return nil, &core.TransportError{Op: "subscribe", Err: err}
	}
	logrus.WithField("url", target).Debug("Change feed connected")

	events := make(chan core.ChangeEvent)
	go func() {
		<-ctx.Done()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	}()

	go func() {
		defer close(events)
		for {
			var event core.ChangeEvent
			if err := conn.ReadJSON(&event); err != nil {
				if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logrus.WithError(err).Warn("Change feed closed")
				}
				return
			}
			select {
			case events <- event:
			case <-ctx.Done():
				return
			}
		}
	}()

	return events, nil
}
