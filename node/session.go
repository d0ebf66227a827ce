package node

import (
	"time"
)

// Session is connection and handshake state of the node.
// Written by Supervisor and Dispatch(MAC_ACK), read by Publisher.
type Session struct {
	Connected             bool
	LastConnectAttempt    time.Time
	HandshakeAcknowledged bool

	attempted bool
	// set on tick when connection was established, publisher keeps quiet
	justConnected bool
	lastAnnounce  time.Time
}

// CanPublishTelemetry is the handshake gate.
func (s *Session) CanPublishTelemetry() bool {
	return s.Connected && s.HandshakeAcknowledged
}

func (s *Session) resetHandshake() {
	s.HandshakeAcknowledged = false
	s.lastAnnounce = time.Time{}
}
