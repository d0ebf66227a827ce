package protocol

import (
	"strconv"
	"strings"

	"github.com/juju/errors"
)

// ReadingMessage is decoded SCD4X line, peer side.
type ReadingMessage struct {
	CO2          uint16
	TemperatureC float32
	Humidity     float32
	Humidifier   bool
	Fan          bool
}

func (r ReadingMessage) String() string {
	return "co2=" + strconv.FormatUint(uint64(r.CO2), 10) +
		" temp=" + FormatDecimal(r.TemperatureC) +
		" humid=" + FormatDecimal(r.Humidity) +
		" humidifier=" + FormatBool(r.Humidifier) +
		" fan=" + FormatBool(r.Fan)
}

// ParseReading decodes line produced by FormatReading, terminator optional.
func ParseReading(line string) (ReadingMessage, error) {
	r := ReadingMessage{}
	parts := strings.Split(strings.TrimSpace(line), ";")
	if len(parts) != 6 {
		return r, errors.NotValidf("reading fields=%d line=%q", len(parts), line)
	}
	if parts[0] != ReadingTag {
		return r, errors.NotValidf("reading tag=%q", parts[0])
	}
	co2, err := strconv.ParseUint(parts[1], 10, 16)
	if err != nil {
		return r, errors.Annotate(err, "co2")
	}
	r.CO2 = uint16(co2)
	t, err := strconv.ParseFloat(parts[2], 32)
	if err != nil {
		return r, errors.Annotate(err, "temperature")
	}
	r.TemperatureC = float32(t)
	h, err := strconv.ParseFloat(parts[3], 32)
	if err != nil {
		return r, errors.Annotate(err, "humidity")
	}
	r.Humidity = float32(h)
	if r.Humidifier, err = parseBool(parts[4]); err != nil {
		return r, errors.Annotate(err, "humidifier")
	}
	if r.Fan, err = parseBool(parts[5]); err != nil {
		return r, errors.Annotate(err, "fan")
	}
	return r, nil
}

// ParseIdentity returns MAC from "MAC;..." line.
func ParseIdentity(line string) (string, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, IdentityTag+";") {
		return "", false
	}
	mac := line[len(IdentityTag)+1:]
	return mac, mac != ""
}

func parseBool(s string) (bool, error) {
	switch s {
	case "True":
		return true, nil
	case "False":
		return false, nil
	}
	return false, errors.NotValidf("bool=%q", s)
}
