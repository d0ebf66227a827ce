package link

// Values are read and modified atomically, but not consistently,
// i.e. it is possible to read .Count=1 .Size=0 because Size has not updated yet.

import (
	"expvar"
	"fmt"
)

type Stat struct {
	Sessions expvar.Int
	Dropped  expvar.Int // inbound bytes over ReadLimit
	Recv     CountSizePair
	Send     CountSizePair
}

func (s *Stat) String() string {
	return fmt.Sprintf(`{"sessions":%d,"dropped":%d,"recv":%s,"send":%s}`,
		s.Sessions.Value(), s.Dropped.Value(), s.Recv.String(), s.Send.String())
}

// Publish exposes stat in expvar under name, served at /debug/vars.
// Like expvar.Publish, panics when name is taken.
func (s *Stat) Publish(name string) { expvar.Publish(name, s) }

type CountSizePair struct {
	Count expvar.Int
	Size  expvar.Int
}

func (csp *CountSizePair) String() string {
	return fmt.Sprintf(`{"count":%d,"size":%d}`, csp.Count.Value(), csp.Size.Value())
}
