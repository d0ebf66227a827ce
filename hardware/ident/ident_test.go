package ident

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "AA:BB:CC:DD:EE:FF", Format(net.HardwareAddr{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff}))
	assert.Equal(t, "00:01:0A:B0:FF:10", Format(net.HardwareAddr{0, 1, 0x0a, 0xb0, 0xff, 0x10}))
}

func TestResolveOverride(t *testing.T) {
	t.Parallel()

	cases := []struct {
		input  string
		expect string
		err    string
	}{
		{"aa:bb:cc:dd:ee:ff", "AA:BB:CC:DD:EE:FF", ""},
		{"aa-bb-cc-dd-ee-01", "AA:BB:CC:DD:EE:01", ""},
		{"zz:bb:cc:dd:ee:ff", "", "invalid MAC"},
		{"00:00:00:00:fe:80:00:00:00:00:00:00:02:00:5e:10:00:00:00:01", "", "length=20"},
	}
	for _, c := range cases {
		s, err := Resolve(c.input, "")
		if c.err != "" {
			require.Error(t, err, c.input)
			assert.Contains(t, err.Error(), c.err)
			continue
		}
		require.NoError(t, err, c.input)
		assert.Equal(t, c.expect, s)
	}
}

func TestPick(t *testing.T) {
	t.Parallel()

	mac := net.HardwareAddr{2, 0, 0, 0, 0, 1}
	ifaces := []net.Interface{
		{Name: "lo", Flags: net.FlagUp | net.FlagLoopback},
		{Name: "eth0", Flags: 0, HardwareAddr: net.HardwareAddr{2, 0, 0, 0, 0, 9}},
		{Name: "wlan0", Flags: net.FlagUp, HardwareAddr: mac},
	}
	got, err := pick(ifaces)
	require.NoError(t, err)
	assert.Equal(t, mac, got)

	_, err = pick(ifaces[:2])
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
