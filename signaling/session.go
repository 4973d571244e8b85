package signaling

import (
	"sync"

	"github.com/google/uuid"
	"github.com/pairlink/pairlink"
)

// Endpoint is the send side of one bound participant. Send must not block;
// frames that cannot be queued for delivery are dropped.
type Endpoint interface {
	ID() uuid.UUID
	Send(frame []byte)
}

// Session is a named two-role rendezvous point. One mutex serializes every
// slot mutation and relay for the session, so notifications always reflect
// the state the triggering mutation produced. Sessions never block each
// other.
type Session struct {
	id pairlink.SessionID

	mu        sync.Mutex
	initiator Endpoint
	responder Endpoint
	// Set when both slots empty out and the registry entry is condemned.
	// A bind that observes it must retry through the registry.
	defunct bool
}

func newSession(id pairlink.SessionID) *Session {
	return &Session{id: id}
}

// ID returns the caller-supplied session identifier.
func (s *Session) ID() pairlink.SessionID { return s.id }

// bind places ep in the slot for role, displacing any previous occupant
// (last join wins). A displaced endpoint is not closed; it simply no longer
// occupies a slot, so its later messages fail the identity check in relay.
// Reports false if the session has already been deleted. Filling the second
// slot notifies both sides while the lock is held.
func (s *Session) bind(role pairlink.Role, ep Endpoint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.defunct {
		return false
	}
	if role == pairlink.RoleInitiator {
		s.initiator = ep
	} else {
		s.responder = ep
	}
	if s.initiator != nil && s.responder != nil {
		s.initiator.Send(peerConnectedFrame(pairlink.RoleInitiator))
		s.responder.Send(peerConnectedFrame(pairlink.RoleResponder))
	}
	return true
}

// vacate removes ep from whichever slot it occupies and tells the survivor,
// if any, that its peer left. Idempotent: a second call for the same
// endpoint, or a call for a displaced endpoint, changes nothing. Reports
// whether the session is now empty, in which case it is condemned and must
// be removed from the registry.
func (s *Session) vacate(ep Endpoint) (empty bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.initiator != nil && s.initiator.ID() == ep.ID():
		s.initiator = nil
		if s.responder != nil {
			s.responder.Send(peerLeftFrame())
		}
	case s.responder != nil && s.responder.ID() == ep.ID():
		s.responder = nil
		if s.initiator != nil {
			s.initiator.Send(peerLeftFrame())
		}
	default:
		return false
	}
	if s.initiator == nil && s.responder == nil {
		s.defunct = true
		return true
	}
	return false
}

// relay forwards frame, byte for byte, to the slot opposite the one from
// occupies. Frames from an endpoint that occupies neither slot are dropped,
// as are frames with no peer to receive them.
func (s *Session) relay(from Endpoint, frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var peer Endpoint
	switch {
	case s.initiator != nil && s.initiator.ID() == from.ID():
		peer = s.responder
	case s.responder != nil && s.responder.ID() == from.ID():
		peer = s.initiator
	default:
		return
	}
	if peer != nil {
		peer.Send(frame)
	}
}

// presence reports current slot occupancy.
func (s *Session) presence() (initiator, responder bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initiator != nil, s.responder != nil
}
