// Package sensortest prints SCD4x serial number and readings, for wiring checks.
package sensortest

import (
	"context"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/growbox/cmd/growbox/subcmd"
	"github.com/temoto/growbox/config"
	"github.com/temoto/growbox/hardware/scd4x"
	"github.com/temoto/growbox/sensor"
)

var Mod = subcmd.Mod{Name: "sensor-test", Usage: "print SCD4x readings", Main: Main}

const pollInterval = time.Second

func Main(ctx context.Context, config *config.Config) error {
	log := subcmd.GetLog(ctx)
	hc := config.Hardware.SCD4x
	dev, bus, err := scd4x.Open(hc.Bus, log)
	if err != nil {
		return err
	}
	defer bus.Close()
	defer func() {
		if err := dev.Stop(); err != nil {
			log.Errorf("scd4x stop err=%v", err)
		}
	}()

	serial, err := dev.Init(hc.LowPower)
	if err != nil {
		return errors.Annotate(err, "sensor init")
	}
	log.Infof("scd4x serial=%012x low_power=%t", serial, hc.LowPower)

	ctx, cancel := subcmd.StopContext(ctx)
	defer cancel()
	return Poll(ctx, dev, pollInterval, func(r sensor.Reading) {
		log.Infof("%s", r.String())
	})
}

// Poll reports every valid reading until ctx is done.
func Poll(ctx context.Context, s sensor.Sensor, interval time.Duration, report func(sensor.Reading)) error {
	tmr := time.NewTicker(interval)
	defer tmr.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tmr.C:
		}
		ready, err := s.DataReady()
		if err != nil {
			return errors.Annotate(err, "data ready")
		}
		if !ready {
			continue
		}
		r, err := s.ReadMeasurement()
		if err != nil {
			return errors.Annotate(err, "read measurement")
		}
		if r.Valid {
			report(r)
		}
	}
}
