// Package run is the device service: sensor, actuators and server session.
package run

import (
	"context"
	"expvar"
	"io"
	"net/http"
	"time"

	"github.com/coreos/go-systemd/daemon"
	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/temoto/growbox/cmd/growbox/subcmd"
	"github.com/temoto/growbox/config"
	"github.com/temoto/growbox/hardware/ident"
	"github.com/temoto/growbox/hardware/relay"
	"github.com/temoto/growbox/hardware/scd4x"
	"github.com/temoto/growbox/link"
	"github.com/temoto/growbox/log2"
	"github.com/temoto/growbox/node"
	"github.com/temoto/growbox/sensor"
)

var Mod = subcmd.Mod{Name: "run", Usage: "device service (default)", Main: Main}

func Main(ctx context.Context, config *config.Config) error {
	log := subcmd.GetLog(ctx)
	a := subcmd.GetAlive(ctx)
	log.Debugf("config=%+v", config)

	identity, err := ident.Resolve(config.Identity.MAC, config.Identity.Interface)
	if err != nil {
		return errors.Annotate(err, "identity")
	}

	closers := make([]io.Closer, 0, 4)
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].Close(); err != nil {
				log.Errorf("close err=%v", err)
			}
		}
	}()

	var sens sensor.Sensor
	if hc := config.Hardware.SCD4x; hc.Enable {
		dev, bus, err := scd4x.Open(hc.Bus, log)
		if err != nil {
			return errors.Annotate(err, "sensor")
		}
		closers = append(closers, bus)
		serial, err := dev.Init(hc.LowPower)
		if err != nil {
			return errors.Annotate(err, "sensor init")
		}
		log.Infof("scd4x serial=%012x", serial)
		sens = dev
	} else {
		log.Infof("scd4x disabled, telemetry off")
	}

	relays, err := relay.Open(config.Hardware.GPIO.Chip, config.Hardware.GPIO.Pins)
	if err != nil {
		return errors.Annotate(err, "actuators")
	}
	closers = append(closers, relays)

	linkLog := log.Clone(log2.LInfo)
	if config.Link.LogDebug {
		linkLog.SetLevel(log2.LDebug)
	}
	client, err := link.NewClient(link.Options{
		URL:            config.Link.URL,
		Log:            linkLog,
		ConnectTimeout: config.ConnectTimeout(),
		WriteTimeout:   config.WriteTimeout(),
	})
	if err != nil {
		return errors.Annotate(err, "link")
	}
	client.Stat().Publish("link")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := node.NewMetrics(reg)
	log.SetErrorFunc(func(error) { metrics.Errors.Inc() })

	n, err := node.New(node.Options{
		Identity:          identity,
		ReconnectInterval: config.ReconnectInterval(),
		ConnectTimeout:    config.ConnectTimeout(),
		Tick:              config.Tick(),
		AnnounceInterval:  config.AnnounceInterval(),
		MaxLine:           config.Node.MaxLine,
		Log:               log,
		Metrics:           metrics,
	}, client, sens, relays)
	if err != nil {
		return err
	}

	if config.Metrics.Listen != "" {
		srv := serveMetrics(log, config.Metrics.Listen, reg)
		closers = append(closers, srv)
	}

	subcmd.SdNotify(daemon.SdNotifyReady)
	log.Infof("growbox identity=%s link=%s", identity, client.Endpoint())
	return n.Run(ctx, a)
}

func serveMetrics(log *log2.Log, addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.Handle("/debug/vars", expvar.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Infof("metrics listen=%s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("metrics err=%v", err)
		}
	}()
	return srv
}
