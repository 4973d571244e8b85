package signaling

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/coder/websocket"
	"github.com/pairlink/pairlink"
)

// Kind tags one envelope on the wire.
type Kind string

const (
	// Client -> Server Envelope{Kind: join, SessionID, Role}
	//
	// Binds the connection to the role slot of the named session, creating
	// the session if it does not exist. Last join wins a contested slot.
	KindJoin Kind = "join"
	// Client -> Server -> Peer Envelope{Kind: offer, SDP}
	//
	// Opaque session description, forwarded untouched to the opposite slot.
	KindOffer Kind = "offer"
	// Client -> Server -> Peer Envelope{Kind: answer, SDP}
	//
	// Opaque session description, forwarded untouched to the opposite slot.
	KindAnswer Kind = "answer"
	// Client -> Server -> Peer Envelope{Kind: candidate, Candidate}
	//
	// Opaque connectivity candidate, forwarded untouched to the opposite slot.
	KindCandidate Kind = "candidate"
	// Server -> Client Envelope{Kind: peer-connected, Message}
	//
	// Sent to both sides once both slots of the session are occupied.
	KindPeerConnected Kind = "peer-connected"
	// Server -> Client Envelope{Kind: peer-left, Message}
	//
	// Sent to the remaining side when the opposite slot vacates.
	KindPeerLeft Kind = "peer-left"
)

// Envelope is one discrete signaling message: exactly one JSON object per
// websocket text frame. SDP and Candidate are never interpreted by the relay.
type Envelope struct {
	Kind      Kind               `json:"kind"`
	SessionID pairlink.SessionID `json:"sessionId,omitempty"`
	Role      pairlink.Role      `json:"role,omitempty"`
	SDP       json.RawMessage    `json:"sdp,omitempty"`
	Candidate json.RawMessage    `json:"candidate,omitempty"`
	Message   string             `json:"message,omitempty"`
}

// parseEnvelope decodes an inbound frame into the closed envelope set.
// Frames that are not valid JSON or carry an unknown kind yield an error and
// are dropped by the caller.
func parseEnvelope(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("signaling: malformed envelope: %v", err)
	}
	switch env.Kind {
	case KindJoin, KindOffer, KindAnswer, KindCandidate, KindPeerConnected, KindPeerLeft:
		return env, nil
	}
	return Envelope{}, fmt.Errorf("signaling: unknown envelope kind %q", env.Kind)
}

// Notification texts match what the web clients display.
func peerConnectedFrame(to pairlink.Role) []byte {
	msg := "Connected to initiator"
	if to == pairlink.RoleInitiator {
		msg = "Responder connected"
	}
	b, _ := json.Marshal(Envelope{Kind: KindPeerConnected, Message: msg})
	return b
}

func peerLeftFrame() []byte {
	b, _ := json.Marshal(Envelope{Kind: KindPeerLeft, Message: "Peer disconnected"})
	return b
}

// Marshal env and write it as one text frame.
// Error if marshal or write fails.
func WriteEnvelope(conn *websocket.Conn, env Envelope, timeout time.Duration) error {
	b, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("signaling: failed to marshal %s envelope: %v", env.Kind, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := conn.Write(ctx, websocket.MessageText, b); err != nil {
		return fmt.Errorf("signaling: failed to write %s envelope: %v", env.Kind, err)
	}
	return nil
}

// ReadEnvelope reads one text frame and decodes it.
// Error if the read fails or the frame is not a JSON envelope.
func ReadEnvelope(ctx context.Context, conn *websocket.Conn) (Envelope, error) {
	t, b, err := conn.Read(ctx)
	if err != nil {
		return Envelope{}, fmt.Errorf("signaling: read failed: %v", err)
	}
	if t != websocket.MessageText {
		return Envelope{}, fmt.Errorf("signaling: expected a text frame, got %v", t)
	}
	return parseEnvelope(b)
}
