package link

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/juju/errors"
	"go.bug.st/serial"
)

const DefaultBaudRate = 115200

// Endpoint is parsed link URL:
//   tcp://host:port
//   serial:///dev/ttyUSB0?baud=115200
type Endpoint struct {
	Scheme string
	Target string // host:port or device path
	Baud   int
}

func (e Endpoint) String() string {
	if e.Scheme == "serial" {
		return fmt.Sprintf("serial:%s@%d", e.Target, e.Baud)
	}
	return e.Scheme + "://" + e.Target
}

func ParseURL(s string) (Endpoint, error) {
	u, err := url.Parse(s)
	if err != nil {
		return Endpoint{}, errors.Annotatef(err, "link url=%s", s)
	}
	e := Endpoint{Scheme: u.Scheme}
	switch u.Scheme {
	case "tcp":
		if _, _, err = net.SplitHostPort(u.Host); err != nil {
			return e, errors.Annotatef(err, "link url=%s", s)
		}
		e.Target = u.Host
	case "serial":
		if u.Path == "" {
			return e, errors.NotValidf("link url=%s device path", s)
		}
		e.Target = u.Path
		e.Baud = DefaultBaudRate
		if b := u.Query().Get("baud"); b != "" {
			if e.Baud, err = strconv.Atoi(b); err != nil || e.Baud <= 0 {
				return e, errors.NotValidf("link url=%s baud=%s", s, b)
			}
		}
	default:
		return e, errors.NotSupportedf("link url=%s scheme=%s", s, u.Scheme)
	}
	return e, nil
}

// DialFunc opens byte stream. Serial port Read must return (0,nil) after serialReadTimeout.
type DialFunc func(ctx context.Context, e Endpoint, timeout time.Duration) (io.ReadWriteCloser, error)

const serialReadTimeout = 100 * time.Millisecond

func Dial(ctx context.Context, e Endpoint, timeout time.Duration) (io.ReadWriteCloser, error) {
	switch e.Scheme {
	case "tcp":
		dialer := net.Dialer{Timeout: timeout}
		if deadline, ok := ctx.Deadline(); ok {
			left := time.Until(deadline)
			if left <= 0 {
				return nil, context.DeadlineExceeded
			}
			if timeout == 0 || left < timeout {
				dialer.Timeout = left
			}
		}
		conn, err := dialer.DialContext(ctx, "tcp", e.Target)
		if err != nil {
			return nil, err
		}
		if tcp, ok := conn.(*net.TCPConn); ok {
			_ = tcp.SetNoDelay(true)
			_ = tcp.SetLinger(0)
		}
		return conn, nil

	case "serial":
		port, err := serial.Open(e.Target, &serial.Mode{
			BaudRate: e.Baud,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		})
		if err != nil {
			return nil, errors.Annotatef(err, "serial open device=%s", e.Target)
		}
		if err = port.SetReadTimeout(serialReadTimeout); err != nil {
			_ = port.Close()
			return nil, errors.Annotate(err, "serial SetReadTimeout")
		}
		return port, nil
	}
	return nil, errors.NotSupportedf("link scheme=%s", e.Scheme)
}
