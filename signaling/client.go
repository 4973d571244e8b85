package signaling

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/coder/websocket"
	"github.com/pairlink/pairlink"
	"github.com/pairlink/pairlink/internal"
)

// WebsocketScheme is the websocket scheme (ws or wss)
type WebsocketScheme string

const (
	// Websocket (non-secure)
	SchemeWs WebsocketScheme = "ws"
	// Websocket secure
	SchemeWss WebsocketScheme = "wss"
)

// Client is the Go counterpart of the browser clients: it binds one role
// slot in a session and exchanges opaque negotiation payloads with whoever
// holds the other slot.
type Client struct {
	conn *websocket.Conn
	log  *slog.Logger
}

// NewSessionID returns a fresh random session identifier for callers
// starting a session rather than joining an existing one.
func NewSessionID() pairlink.SessionID {
	return internal.RandomSessionID()
}

// Dial connects to the relay's websocket endpoint on host
// (e.g. "localhost:8080").
//
// A nil log will use slog.Default().
func Dial(ctx context.Context, host string, scheme WebsocketScheme, log *slog.Logger, opts websocket.DialOptions) (*Client, error) {
	if log == nil {
		log = slog.Default()
	}
	u := url.URL{
		Host:   host,
		Scheme: string(scheme),
		Path:   "ws",
	}
	conn, _, err := websocket.Dial(ctx, u.String(), &opts)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %v %v", u.String(), err)
	}
	return &Client{conn: conn, log: log}, nil
}

// Join binds this connection to the role slot of the named session.
func (c *Client) Join(sessionID pairlink.SessionID, role pairlink.Role, timeout time.Duration) error {
	return WriteEnvelope(c.conn, Envelope{Kind: KindJoin, SessionID: sessionID, Role: role}, timeout)
}

// SendOffer relays an opaque session description to the peer, if present.
func (c *Client) SendOffer(sdp json.RawMessage, timeout time.Duration) error {
	return WriteEnvelope(c.conn, Envelope{Kind: KindOffer, SDP: sdp}, timeout)
}

// SendAnswer relays an opaque session description to the peer, if present.
func (c *Client) SendAnswer(sdp json.RawMessage, timeout time.Duration) error {
	return WriteEnvelope(c.conn, Envelope{Kind: KindAnswer, SDP: sdp}, timeout)
}

// SendCandidate relays an opaque connectivity candidate to the peer, if
// present.
func (c *Client) SendCandidate(candidate json.RawMessage, timeout time.Duration) error {
	return WriteEnvelope(c.conn, Envelope{Kind: KindCandidate, Candidate: candidate}, timeout)
}

// Next blocks until the next envelope from the relay arrives.
func (c *Client) Next(ctx context.Context) (Envelope, error) {
	return ReadEnvelope(ctx, c.conn)
}

// Close closes the websocket connection.
func (c *Client) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "disconnecting")
}

// FetchStatus polls the relay's status endpoint, the request/response side
// channel clients use before attempting a join. ok is false when the session
// is unknown to the relay.
func FetchStatus(ctx context.Context, baseURL string, id pairlink.SessionID) (status Status, ok bool, err error) {
	u := fmt.Sprintf("%s/session/%s/status", baseURL, url.PathEscape(string(id)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Status{}, false, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Status{}, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Status{}, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return Status{}, false, fmt.Errorf("status query failed: %s", resp.Status)
	}
	var st Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return Status{}, false, err
	}
	return st, true, nil
}
