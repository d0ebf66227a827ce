// Package protocol is the growbox line protocol: ASCII lines terminated by '\n'
// over any byte stream (TCP, serial).
//
// Device to peer:
//   Arduino connected!                       once after connect, no terminator
//   MAC;AA:BB:CC:DD:EE:FF                    identity, repeated until MAC_ACK
//   Received: LIGHT_ON | LIGHT_OFF           light command ack
//   Received: RELAY_ON;<0|1>                 humidifier/fan ack with readback level
//   Received: RELAY_OFF;<0|1>
//   SCD4X;<co2>;<temp>;<humid>;<hum>;<fan>   reading, relay states as True/False
//
// Peer to device: LIGHT_ON LIGHT_OFF HUM_ON HUM_OFF FAN_ON FAN_OFF MAC_ACK.
// Unknown input is ignored without reply.
package protocol

import (
	"strconv"
	"strings"
)

const (
	ConnectAnnounce = "Arduino connected!"
	ReadingTag      = "SCD4X"
	IdentityTag     = "MAC"
	ackPrefix       = "Received: "
)

type Command uint8

const (
	CommandInvalid Command = iota
	CommandLightOn
	CommandLightOff
	CommandHumOn
	CommandHumOff
	CommandFanOn
	CommandFanOff
	CommandMacAck
)

var commandNames = [...]string{
	CommandInvalid:  "",
	CommandLightOn:  "LIGHT_ON",
	CommandLightOff: "LIGHT_OFF",
	CommandHumOn:    "HUM_ON",
	CommandHumOff:   "HUM_OFF",
	CommandFanOn:    "FAN_ON",
	CommandFanOff:   "FAN_OFF",
	CommandMacAck:   "MAC_ACK",
}

func (c Command) String() string {
	if int(c) < len(commandNames) && c != CommandInvalid {
		return commandNames[c]
	}
	return "invalid"
}

// ParseCommand is exact case-sensitive match, surrounding whitespace ignored.
// No prefixes, no arguments.
func ParseCommand(s string) Command {
	s = strings.TrimSpace(s)
	for i := CommandLightOn; int(i) < len(commandNames); i++ {
		if commandNames[i] == s {
			return i
		}
	}
	return CommandInvalid
}

func FormatIdentity(mac string) string {
	return IdentityTag + ";" + mac + "\n"
}

func FormatLightAck(on bool) string {
	if on {
		return ackPrefix + "LIGHT_ON\n"
	}
	return ackPrefix + "LIGHT_OFF\n"
}

// FormatRelayAck reports requested state and level read back from hardware.
// Humidifier and fan share RELAY_ prefix.
func FormatRelayAck(on bool, level bool) string {
	s := ackPrefix + "RELAY_OFF;"
	if on {
		s = ackPrefix + "RELAY_ON;"
	}
	if level {
		return s + "1\n"
	}
	return s + "0\n"
}

// FormatReading renders sensor values and relay states.
// Temperature and humidity use fixed 2 decimals.
func FormatReading(co2 uint16, temperatureC, humidity float32, hum, fan bool) string {
	var b strings.Builder
	b.Grow(48)
	b.WriteString(ReadingTag)
	b.WriteByte(';')
	b.WriteString(strconv.FormatUint(uint64(co2), 10))
	b.WriteByte(';')
	b.WriteString(FormatDecimal(temperatureC))
	b.WriteByte(';')
	b.WriteString(FormatDecimal(humidity))
	b.WriteByte(';')
	b.WriteString(FormatBool(hum))
	b.WriteByte(';')
	b.WriteString(FormatBool(fan))
	b.WriteByte('\n')
	return b.String()
}

func FormatDecimal(f float32) string {
	return strconv.FormatFloat(float64(f), 'f', 2, 32)
}

func FormatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}
