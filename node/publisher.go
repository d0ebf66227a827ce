package node

import (
	"time"

	"github.com/temoto/growbox/hardware/relay"
	"github.com/temoto/growbox/log2"
	"github.com/temoto/growbox/protocol"
	"github.com/temoto/growbox/sensor"
)

// Publisher sends at most one message per tick.
// Identity takes precedence over telemetry until peer replies MAC_ACK.
type Publisher struct {
	session   *Session
	actuators *ActuatorState
	sensor    sensor.Sensor // nil = no telemetry
	identity  string
	out       *sender
	log       *log2.Log
	metrics   *Metrics
	// 0 = announce identity every tick
	announceInterval time.Duration
}

func (p *Publisher) Tick(now time.Time) {
	s := p.session
	if !s.Connected || s.justConnected {
		return
	}
	if !s.CanPublishTelemetry() {
		p.announce(now)
		return
	}
	if p.sensor == nil {
		return
	}

	ready, err := p.sensor.DataReady()
	if err != nil {
		p.metrics.SensorErrors.Inc()
		p.log.Errorf("sensor data ready err=%v", err)
		return
	}
	if !ready {
		return
	}
	r, err := p.sensor.ReadMeasurement()
	if err != nil {
		p.metrics.SensorErrors.Inc()
		p.log.Errorf("sensor read err=%v", err)
		return
	}
	if !r.Valid {
		p.log.Debugf("sensor invalid %s", r.String())
		return
	}
	p.metrics.CO2.Set(float64(r.CO2))
	p.metrics.Temperature.Set(float64(r.TemperatureC))
	p.metrics.RelativeHumidity.Set(float64(r.RelativeHumidity))
	msg := protocol.FormatReading(r.CO2, r.TemperatureC, r.RelativeHumidity,
		p.actuators.Get(relay.Humidifier), p.actuators.Get(relay.Fan))
	if p.out.send(KindReading, msg) {
		p.log.Debugf("reading sent %s", r.String())
	}
}

func (p *Publisher) announce(now time.Time) {
	s := p.session
	if p.announceInterval > 0 && !s.lastAnnounce.IsZero() && now.Sub(s.lastAnnounce) < p.announceInterval {
		return
	}
	s.lastAnnounce = now
	if p.out.send(KindIdentity, protocol.FormatIdentity(p.identity)) {
		p.log.Debugf("identity sent MAC=%s", p.identity)
	}
}
