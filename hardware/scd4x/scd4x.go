// Package scd4x talks to Sensirion SCD40/SCD41 CO2 sensor over I2C.
// Commands are 16 bit big endian, every response word is followed by CRC-8.
// Sensor needs a pause between command write and response read,
// so each command is two separate I2C transactions.
package scd4x

import (
	"time"

	"github.com/juju/errors"
	"github.com/temoto/growbox/crc"
	"github.com/temoto/growbox/log2"
	"github.com/temoto/growbox/sensor"
	"periph.io/x/periph/conn/i2c"
	"periph.io/x/periph/conn/i2c/i2creg"
	"periph.io/x/periph/host"
)

const DefaultAddr uint16 = 0x62

type command uint16

const (
	cmdStartPeriodic   command = 0x21b1
	cmdStartLowPower   command = 0x21ac
	cmdStopPeriodic    command = 0x3f86
	cmdReadMeasurement command = 0xec05
	cmdGetDataReady    command = 0xe4b8
	cmdGetSerialNumber command = 0x3682
	cmdReinit          command = 0x3646
	cmdWakeUp          command = 0x36f6
)

const (
	delayStopPeriodic = 500 * time.Millisecond
	delayReinit       = 20 * time.Millisecond
	delayWakeUp       = 30 * time.Millisecond
	delayRead         = 1 * time.Millisecond
)

const (
	dataReadyMask uint16 = 0x07ff
	wordSize             = 3 // 2 data + crc
)

type Device struct {
	dev   i2c.Dev
	log   *log2.Log
	sleep func(time.Duration)
}

var _ sensor.Sensor = &Device{}

func New(bus i2c.Bus, addr uint16, log *log2.Log) *Device {
	if addr == 0 {
		addr = DefaultAddr
	}
	return &Device{
		dev:   i2c.Dev{Bus: bus, Addr: addr},
		log:   log,
		sleep: time.Sleep,
	}
}

// Open initializes host drivers and opens named I2C bus, e.g. "/dev/i2c-1" or "" for first available.
// Caller must Close returned bus.
func Open(busName string, log *log2.Log) (*Device, i2c.BusCloser, error) {
	if _, err := host.Init(); err != nil {
		return nil, nil, errors.Annotate(err, "periph/init")
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, nil, errors.Annotatef(err, "i2c open bus=%s", busName)
	}
	return New(bus, DefaultAddr, log), bus, nil
}

// Init brings sensor into known state and starts periodic measurement.
// Low power mode produces reading every 30s, normal every 5s.
func (d *Device) Init(lowPower bool) (uint64, error) {
	// sensor does not ACK wake up, error is expected
	if err := d.send(cmdWakeUp); err != nil {
		d.log.Debugf("scd4x wake up err=%v", err)
	}
	d.sleep(delayWakeUp)
	if err := d.send(cmdStopPeriodic); err != nil {
		return 0, errors.Annotate(err, "scd4x stop periodic")
	}
	d.sleep(delayStopPeriodic)
	if err := d.send(cmdReinit); err != nil {
		return 0, errors.Annotate(err, "scd4x reinit")
	}
	d.sleep(delayReinit)

	serial, err := d.SerialNumber()
	if err != nil {
		return 0, err
	}

	start := cmdStartPeriodic
	if lowPower {
		start = cmdStartLowPower
	}
	if err := d.send(start); err != nil {
		return serial, errors.Annotate(err, "scd4x start periodic")
	}
	d.log.Debugf("scd4x serial=%012x low_power=%t started", serial, lowPower)
	return serial, nil
}

// SerialNumber is 48 bit unique id.
func (d *Device) SerialNumber() (uint64, error) {
	words, err := d.read(cmdGetSerialNumber, 3)
	if err != nil {
		return 0, errors.Annotate(err, "scd4x serial number")
	}
	return uint64(words[0])<<32 | uint64(words[1])<<16 | uint64(words[2]), nil
}

func (d *Device) DataReady() (bool, error) {
	words, err := d.read(cmdGetDataReady, 1)
	if err != nil {
		return false, errors.Annotate(err, "scd4x data ready")
	}
	return words[0]&dataReadyMask != 0, nil
}

// ReadMeasurement returns latest reading. Sensor reports CO2=0 right after
// start or reinit, such reading is not Valid.
func (d *Device) ReadMeasurement() (sensor.Reading, error) {
	words, err := d.read(cmdReadMeasurement, 3)
	if err != nil {
		return sensor.Reading{}, errors.Annotate(err, "scd4x read measurement")
	}
	r := sensor.Reading{
		CO2:              words[0],
		TemperatureC:     ConvertTemperature(words[1]),
		RelativeHumidity: ConvertHumidity(words[2]),
	}
	r.Valid = r.CO2 != 0
	return r, nil
}

func (d *Device) Stop() error {
	return errors.Annotate(d.send(cmdStopPeriodic), "scd4x stop periodic")
}

func ConvertTemperature(raw uint16) float32 {
	return -45 + 175*float32(raw)/65535
}

func ConvertHumidity(raw uint16) float32 {
	return 100 * float32(raw) / 65535
}

func (d *Device) send(cmd command) error {
	w := [2]byte{byte(cmd >> 8), byte(cmd)}
	return d.dev.Tx(w[:], nil)
}

func (d *Device) read(cmd command, nwords int) ([]uint16, error) {
	if err := d.send(cmd); err != nil {
		return nil, errors.Annotatef(err, "cmd=%04x", uint16(cmd))
	}
	d.sleep(delayRead)
	buf := make([]byte, nwords*wordSize)
	if err := d.dev.Tx(nil, buf); err != nil {
		return nil, errors.Annotatef(err, "cmd=%04x response", uint16(cmd))
	}
	words := make([]uint16, nwords)
	for i := range words {
		b := buf[i*wordSize : (i+1)*wordSize]
		w := uint16(b[0])<<8 | uint16(b[1])
		if expect := crc.CRC8_p31_n(crc.CRC_INIT_FF, b[:2]); b[2] != expect {
			return nil, errors.NotValidf("cmd=%04x word=%d crc=%02x expected=%02x", uint16(cmd), i, b[2], expect)
		}
		words[i] = w
	}
	return words, nil
}
