package internal

import (
	"crypto/rand"

	"github.com/pairlink/pairlink"
)

// RandomSessionID returns an 8 character session id, the same length the web
// client generates.
func RandomSessionID() pairlink.SessionID {
	return pairlink.SessionID(rand.Text()[:8])
}
