package signaling

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pairlink/pairlink"
)

// fakeEndpoint records every frame Send delivers to it.
type fakeEndpoint struct {
	id     uuid.UUID
	frames chan []byte
}

func newFakeEndpoint() *fakeEndpoint {
	return &fakeEndpoint{id: uuid.New(), frames: make(chan []byte, 16)}
}

func (f *fakeEndpoint) ID() uuid.UUID { return f.id }

func (f *fakeEndpoint) Send(frame []byte) {
	select {
	case f.frames <- frame:
	default:
	}
}

func (f *fakeEndpoint) next(t *testing.T) Envelope {
	t.Helper()
	select {
	case frame := <-f.frames:
		env, err := parseEnvelope(frame)
		if err != nil {
			t.Fatalf("received unparseable frame: %v", err)
		}
		return env
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a frame")
	}
	return Envelope{}
}

func (f *fakeEndpoint) expectNothing(t *testing.T) {
	t.Helper()
	select {
	case frame := <-f.frames:
		t.Fatalf("expected no frame, got %s", frame)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBindSecondSlotNotifiesBothSides(t *testing.T) {
	s := newSession("room1")
	initiator := newFakeEndpoint()
	responder := newFakeEndpoint()

	if !s.bind(pairlink.RoleInitiator, initiator) {
		t.Fatal("bind initiator failed")
	}
	initiator.expectNothing(t)

	if !s.bind(pairlink.RoleResponder, responder) {
		t.Fatal("bind responder failed")
	}
	if env := initiator.next(t); env.Kind != KindPeerConnected || env.Message != "Responder connected" {
		t.Fatalf("initiator notification = %+v", env)
	}
	if env := responder.next(t); env.Kind != KindPeerConnected || env.Message != "Connected to initiator" {
		t.Fatalf("responder notification = %+v", env)
	}
}

func TestRelayDeliversPayloadUnchanged(t *testing.T) {
	s := newSession("room1")
	initiator := newFakeEndpoint()
	responder := newFakeEndpoint()
	s.bind(pairlink.RoleInitiator, initiator)
	s.bind(pairlink.RoleResponder, responder)
	initiator.next(t)
	responder.next(t)

	frame := []byte(`{"kind":"offer","sdp":{"type":"offer","sdp":"v=0\r\n"}}`)
	s.relay(initiator, frame)
	select {
	case got := <-responder.frames:
		if !bytes.Equal(got, frame) {
			t.Fatalf("frame mutated in transit:\n got %s\nwant %s", got, frame)
		}
	case <-time.After(time.Second):
		t.Fatal("responder never received the offer")
	}

	answer := []byte(`{"kind":"answer","sdp":{"type":"answer"}}`)
	s.relay(responder, answer)
	if got := initiator.next(t); got.Kind != KindAnswer {
		t.Fatalf("initiator received %+v", got)
	}
}

func TestRelayWithEmptyOppositeSlotDrops(t *testing.T) {
	s := newSession("room1")
	initiator := newFakeEndpoint()
	s.bind(pairlink.RoleInitiator, initiator)

	s.relay(initiator, []byte(`{"kind":"offer","sdp":{}}`))
	initiator.expectNothing(t)
}

func TestLastJoinWinsAndDisplacedIsOrphaned(t *testing.T) {
	s := newSession("room1")
	first := newFakeEndpoint()
	second := newFakeEndpoint()
	responder := newFakeEndpoint()

	s.bind(pairlink.RoleInitiator, first)
	s.bind(pairlink.RoleResponder, responder)
	first.next(t)
	responder.next(t)

	// Second initiator displaces the first and refills both slots.
	s.bind(pairlink.RoleInitiator, second)
	second.next(t)
	responder.next(t)

	// The displaced connection no longer occupies a slot: dropped.
	s.relay(first, []byte(`{"kind":"offer","sdp":{"from":"first"}}`))
	responder.expectNothing(t)

	s.relay(second, []byte(`{"kind":"offer","sdp":{"from":"second"}}`))
	if env := responder.next(t); env.Kind != KindOffer {
		t.Fatalf("responder received %+v", env)
	}
}

func TestVacateNotifiesSurvivorAndIsIdempotent(t *testing.T) {
	s := newSession("room1")
	initiator := newFakeEndpoint()
	responder := newFakeEndpoint()
	s.bind(pairlink.RoleInitiator, initiator)
	s.bind(pairlink.RoleResponder, responder)
	initiator.next(t)
	responder.next(t)

	if empty := s.vacate(initiator); empty {
		t.Fatal("session reported empty with responder still bound")
	}
	if env := responder.next(t); env.Kind != KindPeerLeft {
		t.Fatalf("responder received %+v, want peer-left", env)
	}

	// Second vacate for the same endpoint is a no-op.
	if empty := s.vacate(initiator); empty {
		t.Fatal("repeated vacate reported empty")
	}
	responder.expectNothing(t)

	if empty := s.vacate(responder); !empty {
		t.Fatal("session not reported empty after both sides left")
	}

	// A condemned session refuses new binds.
	if s.bind(pairlink.RoleInitiator, newFakeEndpoint()) {
		t.Fatal("bind succeeded on a condemned session")
	}
}

func TestPresence(t *testing.T) {
	s := newSession("room1")
	if i, r := s.presence(); i || r {
		t.Fatalf("fresh session presence = %v, %v", i, r)
	}
	s.bind(pairlink.RoleResponder, newFakeEndpoint())
	if i, r := s.presence(); i || !r {
		t.Fatalf("presence = %v, %v, want false, true", i, r)
	}
}
