package conn

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beanstalkd-core/beanstalkd/internal/registry"
)

func newTestSession(t *testing.T) (*bufio.Reader, net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	reg := registry.New(65536, time.Second, nil)
	log := logrus.NewEntry(logrus.New())
	go New(server, reg, log).Serve()
	return bufio.NewReader(client), client
}

func send(t *testing.T, client net.Conn, s string) {
	t.Helper()
	_, err := client.Write([]byte(s))
	require.NoError(t, err)
}

func readLine(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	return line
}

func TestPutAndReserveRoundTrip(t *testing.T) {
	r, client := newTestSession(t)
	defer client.Close()

	send(t, client, "put 0 0 60 5\r\nhello\r\n")
	assert.Equal(t, "INSERTED 1\r\n", readLine(t, r))

	send(t, client, "reserve\r\n")
	assert.Equal(t, "RESERVED 1 5\r\n", readLine(t, r))
	assert.Equal(t, "hello\r\n", readLine(t, r))

	send(t, client, "delete 1\r\n")
	assert.Equal(t, "DELETED\r\n", readLine(t, r))
}

func TestUseAndWatch(t *testing.T) {
	r, client := newTestSession(t)
	defer client.Close()

	send(t, client, "use jobs\r\n")
	assert.Equal(t, "USING jobs\r\n", readLine(t, r))

	send(t, client, "watch jobs\r\n")
	assert.Equal(t, "WATCHING 2\r\n", readLine(t, r))

	send(t, client, "ignore default\r\n")
	assert.Equal(t, "WATCHING 1\r\n", readLine(t, r))

	send(t, client, "ignore jobs\r\n")
	assert.Equal(t, "NOT_IGNORED\r\n", readLine(t, r))
}

func TestUnknownCommand(t *testing.T) {
	r, client := newTestSession(t)
	defer client.Close()

	send(t, client, "frobnicate\r\n")
	assert.Equal(t, "UNKNOWN_COMMAND\r\n", readLine(t, r))
}

func TestDeleteMissingJobNotFound(t *testing.T) {
	r, client := newTestSession(t)
	defer client.Close()

	send(t, client, "delete 42\r\n")
	assert.Equal(t, "NOT_FOUND\r\n", readLine(t, r))
}

func newTestTCPSession(t *testing.T) (*bufio.Reader, *net.TCPConn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	reg := registry.New(65536, time.Second, nil)
	log := logrus.NewEntry(logrus.New())
	go func() {
		server, err := ln.Accept()
		if err != nil {
			return
		}
		New(server, reg, log).Serve()
	}()

	client, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	tcpConn, ok := client.(*net.TCPConn)
	require.True(t, ok)
	return bufio.NewReader(tcpConn), tcpConn
}

func TestHalfCloseWhileReservingYieldsTimedOut(t *testing.T) {
	r, client := newTestTCPSession(t)
	defer client.Close()

	send(t, client, "reserve\r\n")
	require.NoError(t, client.CloseWrite())

	client.SetReadDeadline(time.Now().Add(3 * time.Second))
	assert.Equal(t, "TIMED_OUT\r\n", readLine(t, r))
}

func TestQuitClosesConnection(t *testing.T) {
	r, client := newTestSession(t)
	defer client.Close()

	send(t, client, "quit\r\n")
	client.SetReadDeadline(time.Now().Add(time.Second))
	_, err := r.ReadByte()
	assert.Error(t, err)
}
