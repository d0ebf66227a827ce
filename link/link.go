// Package link is transport layer of growbox: one persistent byte stream
// to the remote peer over TCP or serial port.
//
// Unlike usual net.Conn it never blocks the caller on read:
// Available reports bytes already received, ReadByte consumes them.
// Connect may block up to ConnectTimeout.
// Any I/O error kills current session; Connected then reports false
// and owner decides when to Connect again.
package link

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/growbox/log2"
)

const (
	DefaultConnectTimeout = 3 * time.Second
	DefaultWriteTimeout   = 5 * time.Second
	DefaultReadLimit      = 4 << 10
)

var (
	ErrClosing      = fmt.Errorf("closing")
	ErrNotConnected = fmt.Errorf("not connected")
)

// Transport is byte stream as seen by the node control loop.
type Transport interface {
	Connect(ctx context.Context) error
	Connected() bool
	Available() int
	ReadByte() (byte, error)
	Write(b []byte) error
	Close() error
}

type Options struct {
	URL            string
	Log            *log2.Log
	ConnectTimeout time.Duration
	WriteTimeout   time.Duration
	ReadLimit      int
	Dial           DialFunc // default Dial, override in tests
}

type Client struct {
	sync.Mutex // protects current
	current    *session
	endpoint   Endpoint
	opt        Options
	stat       Stat
}

var _ Transport = &Client{}

func NewClient(opt Options) (*Client, error) {
	e, err := ParseURL(opt.URL)
	if err != nil {
		return nil, err
	}
	if opt.ConnectTimeout == 0 {
		opt.ConnectTimeout = DefaultConnectTimeout
	}
	if opt.WriteTimeout == 0 {
		opt.WriteTimeout = DefaultWriteTimeout
	}
	if opt.ReadLimit == 0 {
		opt.ReadLimit = DefaultReadLimit
	}
	if opt.Dial == nil {
		opt.Dial = Dial
	}
	return &Client{endpoint: e, opt: opt}, nil
}

// Connect discards previous session, even half-open, and dials new one.
func (c *Client) Connect(ctx context.Context) error {
	c.Lock()
	defer c.Unlock()
	if c.current != nil {
		_ = c.current.close()
		c.current = nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.opt.ConnectTimeout)
	defer cancel()
	rw, err := c.opt.Dial(ctx, c.endpoint, c.opt.ConnectTimeout)
	if err != nil {
		return errors.Annotatef(err, "connect %s", c.endpoint)
	}
	c.current = newSession(rw, &c.opt, &c.stat)
	c.stat.Sessions.Add(1)
	c.opt.Log.Debugf("link session=%s connected %s", c.current.id, c.endpoint)
	return nil
}

func (c *Client) Connected() bool {
	s := c.get()
	return s != nil && !s.closed()
}

// Available includes bytes received before session died.
func (c *Client) Available() int {
	if s := c.get(); s != nil {
		return s.available()
	}
	return 0
}

// ReadByte returns io.EOF when nothing is buffered.
func (c *Client) ReadByte() (byte, error) {
	if s := c.get(); s != nil {
		return s.readByte()
	}
	return 0, io.EOF
}

func (c *Client) Write(b []byte) error {
	s := c.get()
	if s == nil {
		return ErrNotConnected
	}
	return s.write(b)
}

func (c *Client) Close() error {
	c.Lock()
	defer c.Unlock()
	if c.current == nil {
		return nil
	}
	err := c.current.close()
	c.current = nil
	if err == ErrClosing {
		err = nil
	}
	return err
}

func (c *Client) Endpoint() Endpoint { return c.endpoint }
func (c *Client) Stat() *Stat        { return &c.stat }

// SessionID is empty when never connected.
func (c *Client) SessionID() string {
	if s := c.get(); s != nil {
		return s.id
	}
	return ""
}

func (c *Client) get() *session {
	c.Lock()
	defer c.Unlock()
	return c.current
}
