// Package ident computes device identity from network hardware address.
package ident

import (
	"fmt"
	"net"
	"strings"

	"github.com/juju/errors"
)

// Format renders 6 byte address as colon separated uppercase hex.
func Format(mac net.HardwareAddr) string {
	var b strings.Builder
	for i, x := range mac {
		if i > 0 {
			b.WriteByte(':')
		}
		fmt.Fprintf(&b, "%02X", x)
	}
	return b.String()
}

// Parse accepts config override in any case and common separators.
func Parse(s string) (net.HardwareAddr, error) {
	mac, err := net.ParseMAC(s)
	if err != nil {
		return nil, errors.Annotatef(err, "identity mac=%s", s)
	}
	if len(mac) != 6 {
		return nil, errors.NotValidf("identity mac=%s length=%d", s, len(mac))
	}
	return mac, nil
}

// HardwareAddr returns address of named interface,
// or of first up non-loopback interface with 6 byte address when name is empty.
func HardwareAddr(name string) (net.HardwareAddr, error) {
	if name != "" {
		iface, err := net.InterfaceByName(name)
		if err != nil {
			return nil, errors.Annotatef(err, "identity interface=%s", name)
		}
		if len(iface.HardwareAddr) != 6 {
			return nil, errors.NotValidf("identity interface=%s hwaddr=%s", name, iface.HardwareAddr)
		}
		return iface.HardwareAddr, nil
	}
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, errors.Annotate(err, "identity list interfaces")
	}
	return pick(ifaces)
}

func pick(ifaces []net.Interface) (net.HardwareAddr, error) {
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		if len(iface.HardwareAddr) == 6 {
			return iface.HardwareAddr, nil
		}
	}
	return nil, errors.NotFoundf("identity interface with hardware address")
}

// Resolve picks configured override or interface address, returns formatted identity.
func Resolve(override, ifname string) (string, error) {
	if override != "" {
		mac, err := Parse(override)
		if err != nil {
			return "", err
		}
		return Format(mac), nil
	}
	mac, err := HardwareAddr(ifname)
	if err != nil {
		return "", err
	}
	return Format(mac), nil
}
