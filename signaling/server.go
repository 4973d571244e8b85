package signaling

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/pairlink/pairlink"
	"golang.org/x/time/rate"
)

const writeTimeout = time.Second * 2 // Close if writes take longer than this

// outboundDepth is the per-connection send buffer. The relay is best effort:
// a peer that cannot drain its buffer loses frames rather than stalling the
// sender's processing loop.
const outboundDepth = 32

// Serverside implementation of the websocket signaling relay.
//
// One goroutine per connection reads envelopes and dispatches them; a writer
// goroutine per connection drains the outbound buffer. All shared state lives
// in the injected Registry.
type RelayServer struct {
	opts     websocket.AcceptOptions
	registry *Registry
	monitor  *Monitor
	Mux      *http.ServeMux
	log      *slog.Logger
}

// Uses Default logger if log is nil.
func NewRelayServer(log *slog.Logger, registry *Registry, monitor *Monitor, opts websocket.AcceptOptions) *RelayServer {
	if log == nil {
		log = slog.Default()
	}
	s := &RelayServer{
		opts:     opts,
		registry: registry,
		monitor:  monitor,
		log:      log,
	}
	s.Mux = new(http.ServeMux)
	s.Mux.HandleFunc("GET /ws", s.relay)
	s.Mux.HandleFunc("GET /session/{sessionId}/status", s.status)
	return s
}

// Handler wraps the mux with the allow-all CORS policy the browser clients
// expect.
func (s *RelayServer) Handler() http.Handler {
	return allowAllCORS(s.Mux)
}

func allowAllCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// peer wraps one accepted websocket connection. It is the Endpoint bound
// into a Session: Send queues a frame for the writer goroutine and never
// blocks the caller.
type peer struct {
	id   uuid.UUID
	conn *websocket.Conn
	out  chan []byte
	log  *slog.Logger
}

func newPeer(conn *websocket.Conn, log *slog.Logger) *peer {
	return &peer{
		id:   uuid.New(),
		conn: conn,
		out:  make(chan []byte, outboundDepth),
		log:  log,
	}
}

func (p *peer) ID() uuid.UUID { return p.id }

// Send queues frame for delivery, dropping it if the buffer is full.
func (p *peer) Send(frame []byte) {
	select {
	case p.out <- frame:
	default:
		p.log.Debug("outbound buffer full, dropping frame", "id", p.id)
	}
}

// writeLoop drains the outbound buffer onto the socket. A failed write
// force-closes the connection, which unwinds the read loop into its normal
// cleanup.
func (p *peer) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-p.out:
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := p.conn.Write(writeCtx, websocket.MessageText, frame)
			cancel()
			if err != nil {
				p.log.Debug("peer write failed", "id", p.id, "error", err)
				p.conn.CloseNow()
				return
			}
		}
	}
}

// GET /ws
func (s *RelayServer) relay(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &s.opts)
	if err != nil {
		s.log.Debug("failed to accept connection", "error", err)
		return
	}
	// incase it leaks somehow
	defer conn.CloseNow()

	p := newPeer(conn, s.log)
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go p.writeLoop(ctx)

	s.monitor.Track(p.id, conn.Ping, func() { conn.CloseNow() })

	// The connection's one bound session, touched only by this loop.
	var sess *Session
	defer func() {
		s.monitor.Forget(p.id)
		if sess != nil {
			s.registry.Leave(sess, p)
		}
	}()

	lim := rate.NewLimiter(50, 100)
	for {
		t, frame, err := conn.Read(ctx)
		if err != nil {
			s.log.Debug("connection closed", "id", p.id, "error", err)
			return
		}
		s.monitor.Activity(p.id)
		if t != websocket.MessageText {
			s.log.Debug("dropping non-text frame", "id", p.id)
			continue
		}
		if !lim.Allow() {
			conn.Close(websocket.StatusPolicyViolation, "rate limit")
			s.log.Debug("connection closed for rate limit hit", "id", p.id)
			return
		}

		env, err := parseEnvelope(frame)
		if err != nil {
			s.log.Debug("dropping envelope", "id", p.id, "error", err)
			continue
		}
		switch env.Kind {
		case KindJoin:
			if env.SessionID == "" || !env.Role.Valid() {
				s.log.Debug("dropping join with bad session or role",
					"id", p.id, "sessionId", env.SessionID, "role", env.Role)
				continue
			}
			// A connection occupies at most one slot in one session,
			// so a re-join moves it rather than duplicating it.
			if sess != nil {
				s.registry.Leave(sess, p)
			}
			sess = s.registry.Join(env.SessionID, env.Role, p)
			s.log.Debug("peer joined", "id", p.id, "sessionId", env.SessionID, "role", env.Role)
		case KindOffer, KindAnswer, KindCandidate:
			if sess == nil {
				s.log.Debug("dropping unbound negotiation envelope", "id", p.id, "kind", env.Kind)
				continue
			}
			sess.relay(p, frame)
		default:
			// Server-to-client kinds are not valid inbound.
			s.log.Debug("dropping inbound server envelope", "id", p.id, "kind", env.Kind)
		}
	}
}

// GET /session/{sessionId}/status
func (s *RelayServer) status(w http.ResponseWriter, r *http.Request) {
	requestLogger := s.log.WithGroup("request").With(
		"requestUUID", uuid.New().String(),
	)
	id := pairlink.SessionID(r.PathValue("sessionId"))
	w.Header().Set("Content-Type", "application/json")

	st, ok := s.registry.Status(id)
	if !ok {
		requestLogger.Debug("status query for unknown session", "sessionId", id)
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "session not found"})
		return
	}
	requestLogger.Debug("status query", "sessionId", id,
		"initiatorPresent", st.InitiatorPresent, "responderPresent", st.ResponderPresent)
	json.NewEncoder(w).Encode(st)
}
