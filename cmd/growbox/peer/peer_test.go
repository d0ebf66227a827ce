package peer

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/growbox/hardware/relay"
	"github.com/temoto/growbox/link"
	"github.com/temoto/growbox/log2"
	"github.com/temoto/growbox/node"
	"github.com/temoto/growbox/sensor"
)

// servePeer accepts one connection into p. Returned channel yields Serve result.
func servePeer(t testing.TB, p *Peer) (string, <-chan error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() {
		defer ln.Close()
		conn, err := ln.Accept()
		if err != nil {
			done <- err
			return
		}
		done <- p.Serve(conn)
	}()
	return ln.Addr().String(), done
}

func TestPeerHandshakeAndCommands(t *testing.T) {
	t.Parallel()

	p := New(log2.NewTest(t, log2.LDebug), true)
	addr, done := servePeer(t, p)
	dev, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	r := bufio.NewReader(dev)

	_, err = dev.Write([]byte("Arduino connected!MAC;AA:BB:CC:DD:EE:FF\n"))
	require.NoError(t, err)
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "MAC_ACK\n", line)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", p.Identity())

	_, err = dev.Write([]byte("SCD4X;612;23.50;41.25;True;False\nReceived: RELAY_ON;1\nhello\nSCD4X;bad\n"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(p.Acks()) == 1 }, time.Second, time.Millisecond)
	reading := p.LastReading()
	require.NotNil(t, reading)
	assert.Equal(t, uint16(612), reading.CO2)
	assert.InDelta(t, 23.5, reading.TemperatureC, 0.001)
	assert.True(t, reading.Humidifier)
	assert.False(t, reading.Fan)
	assert.Equal(t, []string{"Received: RELAY_ON;1"}, p.Acks())

	require.NoError(t, p.Send(" FAN_ON "))
	line, err = r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "FAN_ON\n", line)

	require.NoError(t, dev.Close())
	require.NoError(t, <-done)
	assert.Equal(t, link.ErrNotConnected, p.Send("FAN_OFF"))
	assert.Equal(t, int64(1), p.Stat().Sessions.Value())
}

func TestPeerManualAck(t *testing.T) {
	t.Parallel()

	p := New(log2.NewTest(t, log2.LDebug), false)
	addr, done := servePeer(t, p)
	dev, err := net.Dial("tcp", addr)
	require.NoError(t, err)

	_, err = dev.Write([]byte("MAC;02:00:00:00:00:01\n"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return p.Identity() != "" }, time.Second, time.Millisecond)
	require.NoError(t, dev.SetReadDeadline(time.Now().Add(50*time.Millisecond)))
	_, err = dev.Read(make([]byte, 1))
	require.Error(t, err, "unexpected auto ack")

	require.NoError(t, p.Close())
	<-done
	dev.Close()
}

// Device node and peer over loopback TCP.
func TestNodeWithPeer(t *testing.T) {
	t.Parallel()

	log := log2.NewTest(t, log2.LDebug)
	p := New(log, true)
	addr, done := servePeer(t, p)

	client, err := link.NewClient(link.Options{URL: "tcp://" + addr, Log: log})
	require.NoError(t, err)
	sens := &sensor.Mock{}
	sens.Set(true, sensor.Reading{CO2: 951, TemperatureC: 24.25, RelativeHumidity: 55.5, Valid: true})
	relays := &relay.Mock{}
	n, err := node.New(node.Options{Identity: "AA:BB:CC:DD:EE:FF", Log: log}, client, sens, relays)
	require.NoError(t, err)

	ctx := context.Background()
	tickUntil := func(cond func() bool) bool {
		deadline := time.Now().Add(3 * time.Second)
		for time.Now().Before(deadline) {
			n.Tick(ctx, time.Now())
			if cond() {
				return true
			}
			time.Sleep(2 * time.Millisecond)
		}
		return false
	}

	require.True(t, tickUntil(func() bool { return p.LastReading() != nil }), "no reading")
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", p.Identity())
	assert.True(t, n.Session.HandshakeAcknowledged)
	assert.Equal(t, uint16(951), p.LastReading().CO2)
	assert.False(t, p.LastReading().Humidifier)

	require.NoError(t, p.Send("HUM_ON"))
	require.True(t, tickUntil(func() bool {
		r := p.LastReading()
		return len(p.Acks()) == 1 && r.Humidifier
	}), "humidifier not reported")
	assert.Equal(t, []string{"Received: RELAY_ON;1"}, p.Acks())
	assert.True(t, relays.Level[relay.Humidifier])

	require.NoError(t, n.Close())
	// client closes with linger=0, peer may see reset instead of EOF
	<-done
}

// Server sends a command and hangs up before the next tick.
func TestNodeCommandBeforeHangup(t *testing.T) {
	t.Parallel()

	log := log2.NewTest(t, log2.LDebug)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	hungup := make(chan struct{})
	go func() {
		defer close(hungup)
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		_, _ = conn.Write([]byte("LIGHT_ON\n"))
		_ = conn.Close()
	}()

	client, err := link.NewClient(link.Options{URL: "tcp://" + ln.Addr().String(), Log: log})
	require.NoError(t, err)
	relays := &relay.Mock{}
	n, err := node.New(node.Options{Identity: "AA:BB:CC:DD:EE:FF", Log: log, ReconnectInterval: time.Hour}, client, nil, relays)
	require.NoError(t, err)
	defer n.Close()

	ctx := context.Background()
	n.Tick(ctx, time.Now())
	require.True(t, n.Session.Connected)
	<-hungup
	require.Eventually(t, func() bool { return !client.Connected() && client.Available() == len("LIGHT_ON\n") },
		2*time.Second, 5*time.Millisecond)

	n.Tick(ctx, time.Now())
	relays.Lock()
	defer relays.Unlock()
	assert.True(t, relays.Level[relay.Light])
}
