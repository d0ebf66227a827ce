package link

import (
	"bytes"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
	"github.com/temoto/growbox/helpers"
	"github.com/temoto/growbox/log2"
)

// session is one established byte stream.
// Reader goroutine moves bytes into inbuf, like NIC receive buffer,
// so control loop only consumes what already arrived.
type session struct {
	sync.Mutex // protects inbuf
	id         string
	alive      *alive.Alive
	err        helpers.AtomicError
	inbuf      bytes.Buffer
	limit      int
	log        *log2.Log
	rw         io.ReadWriteCloser
	stat       *Stat
	w          io.Writer
	writeLimit time.Duration
}

func newSession(rw io.ReadWriteCloser, opt *Options, stat *Stat) *session {
	s := &session{
		id:         uuid.NewString(),
		alive:      alive.NewAlive(),
		limit:      opt.ReadLimit,
		log:        opt.Log,
		rw:         rw,
		stat:       stat,
		writeLimit: opt.WriteTimeout,
	}
	s.w = helpers.NewStatWriter(rw, &stat.Send.Size)
	s.inbuf.Grow(s.limit)
	if s.alive.Add(1) {
		go s.reader()
	}
	return s
}

func (s *session) reader() {
	defer s.alive.Done()
	r := helpers.NewStatReader(s.rw, &s.stat.Recv.Size)
	var buf [512]byte
	for s.alive.IsRunning() {
		n, err := r.Read(buf[:])
		if n > 0 {
			s.stat.Recv.Count.Add(1)
			s.push(buf[:n])
		}
		if err != nil {
			_ = s.die(errors.Annotate(err, "receive"))
			return
		}
	}
}

func (s *session) push(b []byte) {
	s.Lock()
	defer s.Unlock()
	if free := s.limit - s.inbuf.Len(); len(b) > free {
		s.stat.Dropped.Add(int64(len(b) - free))
		s.log.Errorf("link session=%s receive buffer full, dropped=%d", s.id, len(b)-free)
		b = b[:free]
	}
	s.inbuf.Write(b)
}

func (s *session) available() int {
	s.Lock()
	defer s.Unlock()
	return s.inbuf.Len()
}

func (s *session) readByte() (byte, error) {
	s.Lock()
	defer s.Unlock()
	return s.inbuf.ReadByte()
}

func (s *session) write(b []byte) error {
	if err, closed := s.err.Load(); closed {
		return err
	}
	if nc, ok := s.rw.(net.Conn); ok && s.writeLimit != 0 {
		if err := nc.SetWriteDeadline(time.Now().Add(s.writeLimit)); err != nil {
			return s.die(errors.Annotate(err, "SetWriteDeadline"))
		}
	}
	if err := helpers.WriteAll(s.w, b); err != nil {
		return s.die(errors.Annotate(err, "send"))
	}
	s.stat.Send.Count.Add(1)
	return nil
}

func (s *session) closed() bool {
	_, ok := s.err.Load()
	return ok
}

// close stops reader and waits for it. Must not be called from reader.
func (s *session) close() error {
	err := s.die(ErrClosing)
	s.alive.Wait()
	return err
}

func (s *session) die(e error) error {
	if err, found := s.err.StoreOnce(e); found {
		return err
	}
	s.alive.Stop()
	_ = s.rw.Close()

	// reformat some well known errors for easier log reading
	estr := e.Error()
	if neterr, ok := errors.Cause(e).(net.Error); ok && neterr.Timeout() {
		estr = "timeout"
	} else if strings.HasSuffix(estr, "i/o timeout") {
		estr = "timeout"
	} else if strings.HasSuffix(estr, "connection reset by peer") {
		estr = "closed by remote"
	} else if errors.Cause(e) == io.EOF {
		estr = "closed by remote"
	}
	s.log.Debugf("link session=%s die e=%s", s.id, estr)
	return e
}
