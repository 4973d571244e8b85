package signaling

import (
	"log/slog"

	"github.com/go4org/hashtriemap"
	"github.com/pairlink/pairlink"
)

// Status is the occupancy snapshot served by the status endpoint.
type Status struct {
	InitiatorPresent bool `json:"initiatorPresent"`
	ResponderPresent bool `json:"responderPresent"`
}

// Registry owns every live Session. All session creation, lookup and
// deletion goes through it; nothing else touches the table.
type Registry struct {
	sessions hashtriemap.HashTrieMap[pairlink.SessionID, *Session]
	log      *slog.Logger
}

// Uses Default logger if log is nil.
func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{log: log}
}

// Join binds ep to the role slot of the named session, creating the session
// if it does not exist. Get-or-create plus the bind are atomic as a unit:
// two connections joining a brand-new id concurrently land on the same
// instance, and a join racing a delete is never lost. Only one Session ever
// exists per id at any instant.
func (r *Registry) Join(id pairlink.SessionID, role pairlink.Role, ep Endpoint) *Session {
	for {
		s, _ := r.sessions.LoadOrStore(id, newSession(id))
		if s.bind(role, ep) {
			return s
		}
		// Lost the race against a concurrent delete. Drop the condemned
		// instance and start over with a fresh one.
		r.sessions.CompareAndDelete(id, s)
	}
}

// Leave vacates ep's slot in s and removes the session from the table once
// both slots are empty. Safe to call for an endpoint that was displaced or
// never bound, and safe to call twice.
func (r *Registry) Leave(s *Session, ep Endpoint) {
	if s.vacate(ep) {
		r.sessions.CompareAndDelete(s.ID(), s)
		r.log.Debug("session cleaned up", "sessionId", s.ID())
	}
}

// Status reports slot occupancy for the named session. ok is false if the
// session is unknown or already condemned.
func (r *Registry) Status(id pairlink.SessionID) (status Status, ok bool) {
	s, ok := r.sessions.Load(id)
	if !ok {
		return Status{}, false
	}
	initiator, responder := s.presence()
	if !initiator && !responder {
		return Status{}, false
	}
	return Status{InitiatorPresent: initiator, ResponderPresent: responder}, true
}
