package protocol

import (
	"bytes"
)

const (
	Terminator     byte = '\n'
	DefaultMaxLine      = 256
)

// Assembler accumulates raw inbound bytes into lines.
// Buffer persists between Feed calls, so message split across reads is still assembled.
// Buffer never holds Terminator.
// When a line grows beyond max, partial text is dropped and bytes are ignored
// up to next Terminator (drop-and-resync).
type Assembler struct {
	buf       []byte
	max       int
	dropping  bool
	overflows uint32
}

func NewAssembler(max int) *Assembler {
	if max <= 0 {
		max = DefaultMaxLine
	}
	return &Assembler{
		buf: make([]byte, 0, max),
		max: max,
	}
}

// WriteByte consumes one byte; returns completed message when c is Terminator
// and trimmed buffer is not empty.
func (a *Assembler) WriteByte(c byte) (string, bool) {
	if c == Terminator {
		if a.dropping {
			a.dropping = false
			a.Reset()
			return "", false
		}
		line := bytes.TrimSpace(a.buf)
		msg := string(line)
		a.Reset()
		return msg, len(msg) != 0
	}
	if a.dropping {
		return "", false
	}
	if len(a.buf) >= a.max {
		a.overflows++
		a.dropping = true
		a.Reset()
		return "", false
	}
	a.buf = append(a.buf, c)
	return "", false
}

// Feed consumes p, returns messages in order of completion.
func (a *Assembler) Feed(p []byte) []string {
	var out []string
	for _, c := range p {
		if msg, ok := a.WriteByte(c); ok {
			out = append(out, msg)
		}
	}
	return out
}

// Reset clears partial message. Capacity is kept, no allocation on next line.
func (a *Assembler) Reset() {
	for i := range a.buf {
		a.buf[i] = 0
	}
	a.buf = a.buf[:0]
}

// Discard forgets partial message and overflow state, used when session restarts.
func (a *Assembler) Discard() {
	a.dropping = false
	a.Reset()
}

func (a *Assembler) Buffered() int     { return len(a.buf) }
func (a *Assembler) Overflows() uint32 { return a.overflows }
