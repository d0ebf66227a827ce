package node

import (
	"github.com/juju/errors"
	"github.com/temoto/growbox/hardware/relay"
)

// Actuators is binary output I/O, implemented by relay.GPIO and relay.Mock.
type Actuators interface {
	Write(id relay.ID, on bool) error
	Read(id relay.ID) (bool, error)
}

// ActuatorState caches actuator levels as last read back from hardware.
// Initial value is power-on state, not assumed off.
type ActuatorState struct {
	io    Actuators
	level [relay.Count]bool
}

func NewActuatorState(io Actuators) (*ActuatorState, error) {
	a := &ActuatorState{io: io}
	for id := relay.ID(0); id < relay.Count; id++ {
		on, err := io.Read(id)
		if err != nil {
			return nil, errors.Annotatef(err, "actuator initial %s", id)
		}
		a.level[id] = on
	}
	return a, nil
}

func (a *ActuatorState) Get(id relay.ID) bool {
	if id >= relay.Count {
		return false
	}
	return a.level[id]
}

// Set writes requested level and returns level read back after write.
// Readback disagreeing with request is not an error.
func (a *ActuatorState) Set(id relay.ID, on bool) (bool, error) {
	if id >= relay.Count {
		return false, errors.NotValidf("actuator id=%d", id)
	}
	if err := a.io.Write(id, on); err != nil {
		return a.level[id], err
	}
	level, err := a.io.Read(id)
	if err != nil {
		return a.level[id], errors.Annotatef(err, "actuator readback %s", id)
	}
	a.level[id] = level
	return level, nil
}
