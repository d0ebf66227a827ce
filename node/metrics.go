package node

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	KindAnnounce = "announce"
	KindIdentity = "identity"
	KindReading  = "reading"
	KindAck      = "ack"
)

type Metrics struct {
	ConnectAttempts  prometheus.Counter
	ConnectFailures  prometheus.Counter
	Disconnects      prometheus.Counter
	Sent             *prometheus.CounterVec
	SendErrors       prometheus.Counter
	Commands         *prometheus.CounterVec
	SensorErrors     prometheus.Counter
	LineOverflows    prometheus.Counter
	Errors           prometheus.Counter
	Connected        prometheus.Gauge
	HandshakeAcked   prometheus.Gauge
	Actuator         *prometheus.GaugeVec
	CO2              prometheus.Gauge
	Temperature      prometheus.Gauge
	RelativeHumidity prometheus.Gauge
}

// NewMetrics registers collectors in reg. Nil reg is allowed, then metrics are only kept in memory.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ConnectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "growbox_connect_attempts_total",
			Help: "Transport connect attempts.",
		}),
		ConnectFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "growbox_connect_failures_total",
			Help: "Transport connect attempts that failed.",
		}),
		Disconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "growbox_disconnects_total",
			Help: "Established sessions lost.",
		}),
		Sent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "growbox_messages_sent_total",
			Help: "Outbound protocol messages by kind.",
		}, []string{"kind"}),
		SendErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "growbox_send_errors_total",
			Help: "Outbound writes that failed.",
		}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "growbox_commands_total",
			Help: "Inbound messages by command, unknown ones as invalid.",
		}, []string{"command"}),
		SensorErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "growbox_sensor_errors_total",
			Help: "Sensor read errors, tick telemetry skipped.",
		}),
		LineOverflows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "growbox_line_overflows_total",
			Help: "Inbound lines dropped for exceeding max length.",
		}),
		Errors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "growbox_errors_total",
			Help: "Errors logged by any component.",
		}),
		Connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "growbox_connected",
			Help: "1 when transport session is up.",
		}),
		HandshakeAcked: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "growbox_handshake_acknowledged",
			Help: "1 when peer acknowledged identity in current session.",
		}),
		Actuator: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "growbox_actuator_level",
			Help: "Actuator level read back from hardware.",
		}, []string{"actuator"}),
		CO2: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "growbox_co2_ppm",
			Help: "Last valid CO2 reading.",
		}),
		Temperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "growbox_temperature_celsius",
			Help: "Last valid temperature reading.",
		}),
		RelativeHumidity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "growbox_relative_humidity_percent",
			Help: "Last valid relative humidity reading.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.ConnectAttempts, m.ConnectFailures, m.Disconnects, m.Sent, m.SendErrors,
			m.Commands, m.SensorErrors, m.LineOverflows, m.Errors, m.Connected, m.HandshakeAcked,
			m.Actuator, m.CO2, m.Temperature, m.RelativeHumidity)
	}
	return m
}
