package link_test

import (
	"bufio"
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/growbox/link"
	"github.com/temoto/growbox/log2"
)

func listen(t testing.TB) (net.Listener, string) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	return ln, "tcp://" + ln.Addr().String()
}

func accept(t testing.TB, ln net.Listener) <-chan net.Conn {
	ch := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			close(ch)
			return
		}
		ch <- conn
	}()
	return ch
}

func drain(c *link.Client) string {
	b := make([]byte, 0, c.Available())
	for c.Available() > 0 {
		x, err := c.ReadByte()
		if err != nil {
			break
		}
		b = append(b, x)
	}
	return string(b)
}

func TestClientExchange(t *testing.T) {
	t.Parallel()

	ln, url := listen(t)
	accepted := accept(t, ln)
	c, err := link.NewClient(link.Options{URL: url, Log: log2.NewTest(t, log2.LDebug)})
	require.NoError(t, err)
	defer c.Close()

	assert.False(t, c.Connected())
	assert.Equal(t, 0, c.Available())
	require.Equal(t, link.ErrNotConnected, c.Write([]byte("x")))

	require.NoError(t, c.Connect(context.Background()))
	assert.True(t, c.Connected())
	assert.NotEmpty(t, c.SessionID())
	server := <-accepted
	require.NotNil(t, server)
	defer server.Close()

	require.NoError(t, c.Write([]byte("MAC;AA:BB:CC:DD:EE:FF\n")))
	line, err := bufio.NewReader(server).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "MAC;AA:BB:CC:DD:EE:FF\n", line)

	_, err = server.Write([]byte("MAC_ACK\nLIGHT_ON\n"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return c.Available() == 17 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "MAC_ACK\nLIGHT_ON\n", drain(c))
	_, err = c.ReadByte()
	assert.Equal(t, io.EOF, err)

	assert.Equal(t, int64(1), c.Stat().Sessions.Value())
	assert.Equal(t, int64(22), c.Stat().Send.Size.Value())
	assert.Equal(t, int64(17), c.Stat().Recv.Size.Value())
}

func TestClientRemoteClose(t *testing.T) {
	t.Parallel()

	ln, url := listen(t)
	accepted := accept(t, ln)
	c, err := link.NewClient(link.Options{URL: url, Log: log2.NewTest(t, log2.LDebug)})
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Connect(context.Background()))
	server := <-accepted
	require.NotNil(t, server)
	_, err = server.Write([]byte("FAN_ON\n"))
	require.NoError(t, err)
	require.NoError(t, server.Close())

	require.Eventually(t, func() bool { return !c.Connected() }, 2*time.Second, 5*time.Millisecond)
	// bytes received before close are still readable
	assert.Equal(t, "FAN_ON\n", drain(c))
	assert.Error(t, c.Write([]byte("x")))
}

func TestClientReconnectDiscardsSession(t *testing.T) {
	t.Parallel()

	ln, url := listen(t)
	c, err := link.NewClient(link.Options{URL: url, Log: log2.NewTest(t, log2.LDebug)})
	require.NoError(t, err)
	defer c.Close()

	first := accept(t, ln)
	require.NoError(t, c.Connect(context.Background()))
	s1 := <-first
	require.NotNil(t, s1)
	defer s1.Close()
	_, err = s1.Write([]byte("HUM_"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return c.Available() == 4 }, 2*time.Second, 5*time.Millisecond)
	id1 := c.SessionID()

	second := accept(t, ln)
	require.NoError(t, c.Connect(context.Background()))
	s2 := <-second
	require.NotNil(t, s2)
	defer s2.Close()
	assert.NotEqual(t, id1, c.SessionID())
	assert.Equal(t, 0, c.Available())
	assert.True(t, c.Connected())
	assert.Equal(t, int64(2), c.Stat().Sessions.Value())

	// old session was closed by client
	s1.SetReadDeadline(time.Now().Add(time.Second))
	_, err = s1.Read(make([]byte, 1))
	assert.Error(t, err)
}

func TestClientConnectError(t *testing.T) {
	t.Parallel()

	ln, url := listen(t)
	require.NoError(t, ln.Close())
	c, err := link.NewClient(link.Options{URL: url, Log: log2.NewTest(t, log2.LDebug)})
	require.NoError(t, err)
	err = c.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect tcp://")
	assert.False(t, c.Connected())
}

func TestClientReadLimit(t *testing.T) {
	t.Parallel()

	ln, url := listen(t)
	accepted := accept(t, ln)
	c, err := link.NewClient(link.Options{URL: url, Log: log2.NewTest(t, log2.LDebug), ReadLimit: 8})
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.Connect(context.Background()))
	server := <-accepted
	require.NotNil(t, server)
	defer server.Close()

	_, err = server.Write([]byte("0123456789ABCDEF"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return c.Stat().Recv.Size.Value() == 16 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 8, c.Available())
	assert.Equal(t, int64(8), c.Stat().Dropped.Value())
	assert.Equal(t, "01234567", drain(c))
}

func TestParseURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		input  string
		expect link.Endpoint
		err    string
	}{
		{"tcp://192.168.12.188:8080", link.Endpoint{Scheme: "tcp", Target: "192.168.12.188:8080"}, ""},
		{"serial:///dev/ttyUSB0", link.Endpoint{Scheme: "serial", Target: "/dev/ttyUSB0", Baud: 115200}, ""},
		{"serial:///dev/ttyAMA0?baud=9600", link.Endpoint{Scheme: "serial", Target: "/dev/ttyAMA0", Baud: 9600}, ""},
		{"tcp://nohost", link.Endpoint{}, "missing port"},
		{"serial:///dev/tty?baud=fast", link.Endpoint{}, "baud=fast"},
		{"serial://", link.Endpoint{}, "device path"},
		{"udp://1.2.3.4:5", link.Endpoint{}, "scheme=udp"},
	}
	for _, c := range cases {
		e, err := link.ParseURL(c.input)
		if c.err != "" {
			require.Error(t, err, c.input)
			assert.Contains(t, err.Error(), c.err)
			continue
		}
		require.NoError(t, err, c.input)
		assert.Equal(t, c.expect, e)
	}
}
