// Package chatapi is a client for the chat room service: room listing,
// lookup and creation over HTTP, and live room connections over WebSocket.
//
// Every HTTP operation sends exactly one request and decodes the JSON body
// without looking at the status first. There are no retries, timeouts or
// reconnection; callers own those through the context and the *http.Client
// they supply.
package chatapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/devaloi/chatrooms/internal/domain"
)

// APIPrefix is appended to the origin to form the HTTP base.
const APIPrefix = "/api/v1"

// Client talks to one chat service origin.
type Client struct {
	httpBase   string
	wsBase     string
	httpClient *http.Client
	dialer     *websocket.Dialer
	log        zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the client used for HTTP operations.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithDialer sets the dialer used by ConnectRoomSocket.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) {
		if d != nil {
			c.dialer = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

// New returns a client for the service at origin, e.g. "https://chat.example.com".
//
// The HTTP base is origin+"/api/v1". The WebSocket base is the same URL with
// the scheme switched to ws or wss.
func New(origin string, opts ...Option) (*Client, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return nil, errors.Wrapf(err, "parse origin %q", origin)
	}

	var wsScheme string
	switch strings.ToLower(u.Scheme) {
	case "http":
		wsScheme = "ws"
	case "https":
		wsScheme = "wss"
	default:
		return nil, errors.Errorf("origin %q: scheme must be http or https", origin)
	}
	if u.Host == "" {
		return nil, errors.Errorf("origin %q: missing host", origin)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Path = strings.TrimSuffix(u.Path, "/") + APIPrefix
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	httpBase := u.String()

	u.Scheme = wsScheme
	wsBase := u.String()

	c := &Client{
		httpBase:   httpBase,
		wsBase:     wsBase,
		httpClient: http.DefaultClient,
		dialer:     websocket.DefaultDialer,
		log:        log.With().Str("component", "chatapi").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// HTTPBase returns the base URL of HTTP operations.
func (c *Client) HTTPBase() string { return c.httpBase }

// WSBase returns the base URL of room sockets.
func (c *Client) WSBase() string { return c.wsBase }

// StatusError reports a response that decoded as JSON but did not carry a
// 2xx status. The decoded value is still returned alongside it.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: %d %s: %s", e.Method, e.URL, e.StatusCode,
		http.StatusText(e.StatusCode), strings.TrimSpace(string(e.Body)))
}

// ListRooms fetches every room known to the service.
func (c *Client) ListRooms(ctx context.Context) (*domain.RoomList, error) {
	var out domain.RoomList
	err := c.do(ctx, http.MethodGet, "/chat/rooms", nil, &out)
	return result(&out, err)
}

// GetRoom fetches one room.
func (c *Client) GetRoom(ctx context.Context, roomID string) (*domain.ChatRoom, error) {
	var out domain.ChatRoom
	err := c.do(ctx, http.MethodGet, "/chat/rooms/"+url.PathEscape(roomID), nil, &out)
	return result(&out, err)
}

// CreateRoom asks the service for a new room called name.
func (c *Client) CreateRoom(ctx context.Context, name string) (*domain.ChatRoom, error) {
	var out domain.ChatRoom
	err := c.do(ctx, http.MethodPost, "/chat/rooms/new", domain.CreateRoomRequest{Name: name}, &out)
	return result(&out, err)
}

// RoomHistory fetches up to limit recent messages of a room. A limit of
// zero lets the service pick.
func (c *Client) RoomHistory(ctx context.Context, roomID string, limit int) (*domain.History, error) {
	path := "/chat/history/" + url.PathEscape(roomID)
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out domain.History
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return result(&out, err)
}

// ConnectRoomSocket opens a live connection to a room as username. It
// returns at once; the handshake runs in the background and its outcome is
// observed through the returned socket.
func (c *Client) ConnectRoomSocket(roomID, username string) *RoomSocket {
	target := c.wsBase + "/chat/" + url.PathEscape(roomID) + "/connect/" + url.PathEscape(username)
	return newRoomSocket(target, c.dialer, c.log.With().Str("room_id", roomID).Str("user", username).Logger())
}

// result keeps the decoded value for status errors and drops it otherwise.
func result[T any](v *T, err error) (*T, error) {
	if err == nil {
		return v, nil
	}
	var se *StatusError
	if errors.As(err, &se) {
		return v, err
	}
	return nil, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	target := c.httpBase + path

	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encode request body")
		}
		rdr = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, rdr)
	if err != nil {
		return errors.Wrapf(err, "build %s %s", method, target)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, target)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(err, "read %s %s response", method, target)
	}
	c.log.Debug().Str("method", method).Str("url", target).Int("status", resp.StatusCode).Int("bytes", len(raw)).Msg("response")

	if err := json.Unmarshal(raw, out); err != nil {
		return errors.Wrapf(err, "decode %s %s response (status %d)", method, target, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Method: method, URL: target, StatusCode: resp.StatusCode, Body: raw}
	}
	return nil
}
