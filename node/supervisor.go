package node

import (
	"context"
	"time"

	"github.com/temoto/growbox/link"
	"github.com/temoto/growbox/log2"
	"github.com/temoto/growbox/protocol"
)

// Supervisor owns transport lifecycle. Reconnect cadence is constant, no backoff.
type Supervisor struct {
	session   *Session
	transport link.Transport
	assembler *protocol.Assembler
	out       *sender
	log       *log2.Log
	metrics   *Metrics
	interval  time.Duration
	timeout   time.Duration
}

// Tick repairs the link when allowed by reconnect interval.
// Blocks at most connect timeout. Returns true when connection was established in this tick.
func (s *Supervisor) Tick(ctx context.Context, now time.Time) bool {
	session := s.session
	session.justConnected = false
	connected := s.transport.Connected()
	if session.Connected && !connected {
		session.resetHandshake()
		s.metrics.Disconnects.Inc()
		s.log.Infof("link lost")
	}
	session.Connected = connected
	if connected {
		return false
	}
	if session.attempted && now.Sub(session.LastConnectAttempt) < s.interval {
		return false
	}

	session.attempted = true
	session.LastConnectAttempt = now
	session.resetHandshake()
	s.assembler.Discard()
	s.metrics.ConnectAttempts.Inc()
	s.log.Debugf("link connect attempt")

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	err := s.transport.Connect(cctx)
	cancel()
	if err != nil {
		s.metrics.ConnectFailures.Inc()
		s.log.Errorf("link connect failed, next attempt in %v err=%v", s.interval, err)
		return false
	}
	session.Connected = true
	session.justConnected = true
	s.log.Infof("link connected")
	s.out.send(KindAnnounce, protocol.ConnectAnnounce)
	return true
}
