package peer

import (
	"io"
	"strings"
	"sync"

	"github.com/juju/errors"
	"github.com/temoto/growbox/helpers"
	"github.com/temoto/growbox/link"
	"github.com/temoto/growbox/log2"
	"github.com/temoto/growbox/protocol"
)

// Peer is server side of growbox protocol for one device at a time.
type Peer struct {
	sync.Mutex
	AutoAck bool
	log     *log2.Log
	rw      io.ReadWriteCloser
	stat    link.Stat

	identity string
	acks     []string
	reading  *protocol.ReadingMessage
}

func New(log *log2.Log, autoAck bool) *Peer {
	return &Peer{AutoAck: autoAck, log: log}
}

// Serve reads device lines until rw fails. Previous device connection is closed.
func (p *Peer) Serve(rw io.ReadWriteCloser) error {
	p.Lock()
	if p.rw != nil {
		_ = p.rw.Close()
	}
	p.rw = rw
	p.identity = ""
	p.Unlock()
	p.stat.Sessions.Add(1)

	asm := protocol.NewAssembler(protocol.DefaultMaxLine)
	r := helpers.NewStatReader(rw, &p.stat.Recv.Size)
	var buf [512]byte
	for {
		n, err := r.Read(buf[:])
		for _, line := range asm.Feed(buf[:n]) {
			p.stat.Recv.Count.Add(1)
			p.handle(line)
		}
		if err != nil {
			p.Lock()
			if p.rw == rw {
				p.rw = nil
			}
			p.Unlock()
			if err == io.EOF {
				return nil
			}
			return errors.Annotate(err, "peer receive")
		}
	}
}

// Send writes one command line to connected device.
func (p *Peer) Send(line string) error {
	p.Lock()
	defer p.Unlock()
	return p.send(line)
}

func (p *Peer) send(line string) error {
	if p.rw == nil {
		return link.ErrNotConnected
	}
	line = strings.TrimSpace(line) + "\n"
	if err := helpers.WriteAll(p.rw, []byte(line)); err != nil {
		return errors.Annotate(err, "peer send")
	}
	p.stat.Send.Count.Add(1)
	p.stat.Send.Size.Add(int64(len(line)))
	return nil
}

func (p *Peer) Close() error {
	p.Lock()
	defer p.Unlock()
	if p.rw == nil {
		return nil
	}
	err := p.rw.Close()
	p.rw = nil
	return err
}

func (p *Peer) Identity() string {
	p.Lock()
	defer p.Unlock()
	return p.identity
}

func (p *Peer) LastReading() *protocol.ReadingMessage {
	p.Lock()
	defer p.Unlock()
	return p.reading
}

// Acks returns command acknowledgements received so far.
func (p *Peer) Acks() []string {
	p.Lock()
	defer p.Unlock()
	return append([]string(nil), p.acks...)
}

func (p *Peer) Stat() *link.Stat { return &p.stat }

func (p *Peer) handle(line string) {
	// connect announcement has no terminator, arrives glued to next line
	if strings.HasPrefix(line, protocol.ConnectAnnounce) {
		p.log.Infof("device connected")
		line = strings.TrimSpace(line[len(protocol.ConnectAnnounce):])
		if line == "" {
			return
		}
	}

	p.Lock()
	defer p.Unlock()
	if mac, ok := protocol.ParseIdentity(line); ok {
		if mac != p.identity {
			p.log.Infof("device identity=%s", mac)
		}
		p.identity = mac
		if p.AutoAck {
			if err := p.send(protocol.CommandMacAck.String()); err != nil {
				p.log.Errorf("auto ack err=%v", err)
			}
		}
		return
	}
	if strings.HasPrefix(line, protocol.ReadingTag+";") {
		r, err := protocol.ParseReading(line)
		if err != nil {
			p.log.Errorf("device reading line=%q err=%v", line, err)
			return
		}
		p.reading = &r
		p.log.Infof("device %s", r.String())
		return
	}
	if strings.HasPrefix(line, "Received: ") {
		p.acks = append(p.acks, line)
		p.log.Infof("device ack %s", line)
		return
	}
	p.log.Infof("device unknown line=%q", line)
}
