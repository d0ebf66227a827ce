package node

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/temoto/growbox/link"
)

// fakeTransport is in-memory link.Transport driven by test.
type fakeTransport struct {
	sync.Mutex
	up          bool
	connectErr  error
	connects    int
	hadDeadline bool
	in          []byte
	sent        []string
	writeErr    error
}

var _ link.Transport = &fakeTransport{}

func (f *fakeTransport) Connect(ctx context.Context) error {
	f.Lock()
	defer f.Unlock()
	f.connects++
	_, f.hadDeadline = ctx.Deadline()
	f.up = false
	f.in = nil
	if f.connectErr != nil {
		return f.connectErr
	}
	f.up = true
	return nil
}

func (f *fakeTransport) Connected() bool {
	f.Lock()
	defer f.Unlock()
	return f.up
}

func (f *fakeTransport) Available() int {
	f.Lock()
	defer f.Unlock()
	return len(f.in)
}

func (f *fakeTransport) ReadByte() (byte, error) {
	f.Lock()
	defer f.Unlock()
	if len(f.in) == 0 {
		return 0, io.EOF
	}
	b := f.in[0]
	f.in = f.in[1:]
	return b, nil
}

func (f *fakeTransport) Write(b []byte) error {
	f.Lock()
	defer f.Unlock()
	if !f.up {
		return link.ErrNotConnected
	}
	if f.writeErr != nil {
		f.up = false
		return f.writeErr
	}
	f.sent = append(f.sent, string(b))
	return nil
}

func (f *fakeTransport) Close() error {
	f.Lock()
	defer f.Unlock()
	f.up = false
	return nil
}

func (f *fakeTransport) receive(s string) {
	f.Lock()
	defer f.Unlock()
	f.in = append(f.in, s...)
}

func (f *fakeTransport) drop() {
	f.Lock()
	defer f.Unlock()
	f.up = false
}

// take returns and forgets messages sent so far. Never nil, for cmp.Diff.
func (f *fakeTransport) take() []string {
	f.Lock()
	defer f.Unlock()
	out := f.sent
	f.sent = nil
	if out == nil {
		out = []string{}
	}
	return out
}

func (f *fakeTransport) connectCount() int {
	f.Lock()
	defer f.Unlock()
	return f.connects
}

func (f *fakeTransport) String() string {
	f.Lock()
	defer f.Unlock()
	return fmt.Sprintf("fake(up=%t connects=%d in=%d sent=%d)", f.up, f.connects, len(f.in), len(f.sent))
}
