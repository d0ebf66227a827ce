// Package relay drives binary outputs: light, humidifier relay, fan relay.
// Polarity is hardware wiring detail, handled by ActiveLow line flag.
package relay

import (
	"fmt"
	"io"
	"sync"

	"github.com/juju/errors"
	gpio "github.com/temoto/gpio-cdev-go"
	"github.com/temoto/growbox/helpers"
)

type ID uint8

const (
	Light ID = iota
	Humidifier
	Fan
	Count
)

var idNames = [Count]string{"LIGHT", "HUMIDIFIER", "FAN"}

func (id ID) String() string {
	if id < Count {
		return idNames[id]
	}
	return fmt.Sprintf("relay(%d)", uint8(id))
}

// Bank is actuator I/O as seen by the node.
type Bank interface {
	Write(id ID, on bool) error
	Read(id ID) (bool, error)
}

type Pins struct {
	Light      int  `hcl:"light"`
	Humidifier int  `hcl:"humidifier"`
	Fan        int  `hcl:"fan"`
	ActiveLow  bool `hcl:"active_low"`
}

const consumerLabel = "growbox"

// GPIO is Bank backed by Linux gpio character device.
// All three lines are requested in one handle, so Flush applies them together.
type GPIO struct {
	sync.Mutex
	chip  gpio.Chiper
	lines gpio.Lineser
	set   [Count]gpio.LineSetFunc
}

var _ Bank = &GPIO{}

func Open(chipPath string, pins Pins) (*GPIO, error) {
	chip, err := gpio.Open(chipPath, consumerLabel)
	if err != nil {
		return nil, errors.Annotatef(err, "gpio open chip=%s", chipPath)
	}
	g, err := New(chip, pins)
	if err != nil {
		_ = chip.Close()
		return nil, err
	}
	return g, nil
}

// New requests output lines and keeps their current (power-on) levels.
func New(chip gpio.Chiper, pins Pins) (*GPIO, error) {
	flag := gpio.GPIOHANDLE_REQUEST_OUTPUT
	if pins.ActiveLow {
		flag |= gpio.GPIOHANDLE_REQUEST_ACTIVE_LOW
	}
	if pins.Light < 0 || pins.Humidifier < 0 || pins.Fan < 0 {
		return nil, errors.NotValidf("gpio negative line %v", pins)
	}
	offsets := [Count]uint32{uint32(pins.Light), uint32(pins.Humidifier), uint32(pins.Fan)}
	lines, err := chip.OpenLines(flag, consumerLabel, offsets[:]...)
	if err != nil {
		return nil, errors.Annotatef(err, "gpio open lines=%v", offsets)
	}
	g := &GPIO{chip: chip, lines: lines}
	for id := ID(0); id < Count; id++ {
		g.set[id] = lines.SetFunc(offsets[id])
	}
	// sync internal buffer with hardware, otherwise first Flush would reset other lines
	data, err := lines.Read()
	if err != nil {
		_ = lines.Close()
		return nil, errors.Annotate(err, "gpio read initial")
	}
	lines.SetBulk(data.Values[:Count]...)
	return g, nil
}

func (g *GPIO) Write(id ID, on bool) error {
	if id >= Count {
		return errors.NotValidf("relay id=%d", id)
	}
	var v byte
	if on {
		v = 1
	}
	g.Lock()
	defer g.Unlock()
	g.set[id](v)
	return errors.Annotatef(g.lines.Flush(), "gpio write %s=%d", id, v)
}

func (g *GPIO) Read(id ID) (bool, error) {
	if id >= Count {
		return false, errors.NotValidf("relay id=%d", id)
	}
	g.Lock()
	defer g.Unlock()
	data, err := g.lines.Read()
	if err != nil {
		return false, errors.Annotatef(err, "gpio read %s", id)
	}
	return data.Values[id] != 0, nil
}

func (g *GPIO) Close() error {
	closers := []io.Closer{g.lines, g.chip}
	errs := make([]error, len(closers))
	for i, c := range closers {
		if c != nil {
			errs[i] = c.Close()
		}
	}
	return helpers.FoldErrors(errs)
}

// Mock is in-memory Bank. Readback may be forced to disagree with writes.
type Mock struct {
	sync.Mutex
	Level    [Count]bool
	Stuck    [Count]bool // writes ignored
	WriteErr error
	Writes   int
}

var _ Bank = &Mock{}

func (m *Mock) Write(id ID, on bool) error {
	m.Lock()
	defer m.Unlock()
	if id >= Count {
		return errors.NotValidf("relay id=%d", id)
	}
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.Writes++
	if !m.Stuck[id] {
		m.Level[id] = on
	}
	return nil
}

func (m *Mock) Read(id ID) (bool, error) {
	m.Lock()
	defer m.Unlock()
	if id >= Count {
		return false, errors.NotValidf("relay id=%d", id)
	}
	return m.Level[id], nil
}
