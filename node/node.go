// Package node is growbox control loop: connection supervisor, line assembler,
// command interpreter, handshake gate and telemetry publisher sharing one tick.
//
// Tick order: repair link, drain received bytes into commands, publish.
// Bytes received before the session died are drained first, ahead of the
// reconnect that would discard them. Their acks are best-effort.
// All node state is touched only from the goroutine calling Tick.
//
// Worst case Tick duration is connect timeout plus a link write timeout
// for each send in the tick: announcement or identity or reading, and one ack
// per command line.
package node

import (
	"context"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
	"github.com/temoto/growbox/hardware/relay"
	"github.com/temoto/growbox/link"
	"github.com/temoto/growbox/log2"
	"github.com/temoto/growbox/protocol"
	"github.com/temoto/growbox/sensor"
)

const (
	DefaultReconnectInterval = 10 * time.Second
	DefaultConnectTimeout    = link.DefaultConnectTimeout
	DefaultTick              = 200 * time.Millisecond
)

type Options struct {
	Identity          string // XX:XX:XX:XX:XX:XX
	ReconnectInterval time.Duration
	ConnectTimeout    time.Duration
	Tick              time.Duration
	AnnounceInterval  time.Duration
	MaxLine           int
	Log               *log2.Log
	Metrics           *Metrics
	Now               func() time.Time
}

type Node struct {
	Session   Session
	Actuators *ActuatorState

	assembler  *protocol.Assembler
	log        *log2.Log
	metrics    *Metrics
	opt        Options
	out        sender
	overflows  uint32
	publisher  Publisher
	supervisor Supervisor
	transport  link.Transport
}

// New reads actuator power-on state. Sensor may be nil, then node only handles commands.
func New(opt Options, transport link.Transport, s sensor.Sensor, io Actuators) (*Node, error) {
	if opt.Identity == "" {
		return nil, errors.NotValidf("empty identity")
	}
	if opt.ReconnectInterval == 0 {
		opt.ReconnectInterval = DefaultReconnectInterval
	}
	if opt.ConnectTimeout == 0 {
		opt.ConnectTimeout = DefaultConnectTimeout
	}
	if opt.Tick == 0 {
		opt.Tick = DefaultTick
	}
	if opt.MaxLine == 0 {
		opt.MaxLine = protocol.DefaultMaxLine
	}
	if opt.Metrics == nil {
		opt.Metrics = NewMetrics(nil)
	}
	if opt.Now == nil {
		opt.Now = time.Now
	}

	actuators, err := NewActuatorState(io)
	if err != nil {
		return nil, err
	}
	n := &Node{
		Actuators: actuators,
		assembler: protocol.NewAssembler(opt.MaxLine),
		log:       opt.Log,
		metrics:   opt.Metrics,
		opt:       opt,
		transport: transport,
	}
	n.out = sender{transport: transport, log: opt.Log, metrics: opt.Metrics}
	n.supervisor = Supervisor{
		session:   &n.Session,
		transport: transport,
		assembler: n.assembler,
		out:       &n.out,
		log:       opt.Log,
		metrics:   opt.Metrics,
		interval:  opt.ReconnectInterval,
		timeout:   opt.ConnectTimeout,
	}
	n.publisher = Publisher{
		session:          &n.Session,
		actuators:        actuators,
		sensor:           s,
		identity:         opt.Identity,
		out:              &n.out,
		log:              opt.Log,
		metrics:          opt.Metrics,
		announceInterval: opt.AnnounceInterval,
	}
	for id := relay.ID(0); id < relay.Count; id++ {
		level := actuators.Get(id)
		n.metrics.Actuator.WithLabelValues(id.String()).Set(b2f(level))
		n.log.Debugf("actuator %s power-on=%t", id, level)
	}
	return n, nil
}

// Tick is one pass of control loop. Blocks at most connect timeout plus write timeouts.
func (n *Node) Tick(ctx context.Context, now time.Time) {
	if !n.transport.Connected() {
		n.drain()
	}
	n.supervisor.Tick(ctx, now)
	n.drain()
	n.publisher.Tick(now)

	n.metrics.Connected.Set(b2f(n.Session.Connected))
	n.metrics.HandshakeAcked.Set(b2f(n.Session.HandshakeAcknowledged))
}

// Run calls Tick periodically until ctx is done or a is stopped.
func (n *Node) Run(ctx context.Context, a *alive.Alive) error {
	var stopch <-chan struct{}
	if a != nil {
		stopch = a.StopChan()
	}
	tmr := time.NewTicker(n.opt.Tick)
	defer tmr.Stop()
	n.log.Infof("node identity=%s tick=%v reconnect=%v", n.opt.Identity, n.opt.Tick, n.opt.ReconnectInterval)
	for {
		n.Tick(ctx, n.opt.Now())
		select {
		case <-ctx.Done():
			return n.Close()
		case <-stopch:
			return n.Close()
		case <-tmr.C:
		}
	}
}

func (n *Node) Close() error {
	return errors.Annotate(n.transport.Close(), "node close")
}

// drain consumes bytes received so far, never waits for more.
func (n *Node) drain() {
	for avail := n.transport.Available(); avail > 0; avail-- {
		b, err := n.transport.ReadByte()
		if err != nil {
			break
		}
		if line, ok := n.assembler.WriteByte(b); ok {
			n.Dispatch(line)
		}
	}
	if o := n.assembler.Overflows(); o != n.overflows {
		n.metrics.LineOverflows.Add(float64(o - n.overflows))
		n.log.Errorf("inbound line longer than max=%d dropped", n.opt.MaxLine)
		n.overflows = o
	}
}

type sender struct {
	transport link.Transport
	log       *log2.Log
	metrics   *Metrics
}

// send failure kills link session, supervisor repairs it on next tick.
func (s *sender) send(kind, msg string) bool {
	if err := s.transport.Write([]byte(msg)); err != nil {
		s.metrics.SendErrors.Inc()
		s.log.Errorf("send kind=%s err=%v", kind, err)
		return false
	}
	s.metrics.Sent.WithLabelValues(kind).Inc()
	return true
}
