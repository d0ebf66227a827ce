// Package sensor describes environmental sensor as seen by the node.
package sensor

import (
	"fmt"
	"sync"
)

// Reading is produced fresh on every tick and never retained.
type Reading struct {
	CO2              uint16
	TemperatureC     float32
	RelativeHumidity float32
	Valid            bool
}

func (r Reading) String() string {
	return fmt.Sprintf("co2=%d temp=%.2f humid=%.2f valid=%t", r.CO2, r.TemperatureC, r.RelativeHumidity, r.Valid)
}

type Sensor interface {
	DataReady() (bool, error)
	ReadMeasurement() (Reading, error)
}

// Mock replays configured values, safe for concurrent use by test and node.
type Mock struct {
	mu       sync.Mutex
	Ready    bool
	ReadyErr error
	Value    Reading
	ReadErr  error
	Reads    int
}

var _ Sensor = &Mock{}

func (m *Mock) DataReady() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Ready, m.ReadyErr
}

func (m *Mock) ReadMeasurement() (Reading, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Reads++
	return m.Value, m.ReadErr
}

func (m *Mock) Set(ready bool, r Reading) {
	m.mu.Lock()
	m.Ready, m.Value = ready, r
	m.mu.Unlock()
}

func (m *Mock) SetErr(readyErr, readErr error) {
	m.mu.Lock()
	m.ReadyErr, m.ReadErr = readyErr, readErr
	m.mu.Unlock()
}
