package transport

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietDriver(addr string) *Driver {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return &Driver{Addr: addr, Logger: log}
}

func TestRoleString(t *testing.T) {
	assert.Equal(t, "sender", RoleSender.String())
	assert.Equal(t, "receiver", RoleReceiver.String())
	assert.Equal(t, "role(9)", Role(9).String())
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "connect", ModeConnect.String())
	assert.Equal(t, "listen", ModeListen.String())
	assert.Equal(t, "mode(9)", Mode(9).String())
}

func TestListenThenConnect(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Bind a real listener first so the connecting side has a target
	// address.
	probe, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := probe.Addr().String()
	probe.Close()

	listenDriver := quietDriver(addr)
	type accepted struct {
		conn net.Conn
		err  error
	}
	done := make(chan accepted, 1)
	go func() {
		conn, err := listenDriver.Open(ctx, RoleReceiver, ModeListen)
		done <- accepted{conn, err}
	}()

	// The goroutine may not have bound yet, so connect as a sender and
	// lean on its retry budget.
	connectDriver := quietDriver(addr)
	connectDriver.RetryDelay = 10 * time.Millisecond
	sendConn, err := connectDriver.Open(ctx, RoleSender, ModeConnect)
	require.NoError(t, err)
	defer sendConn.Close()

	got := <-done
	require.NoError(t, got.err)
	defer got.conn.Close()

	_, err = sendConn.Write([]byte("ping"))
	require.NoError(t, err)

	buf := make([]byte, 4)
	_, err = io.ReadFull(got.conn, buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf))
}

func TestListenAcceptsExactlyOne(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	probe, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := probe.Addr().String()
	probe.Close()

	done := make(chan net.Conn, 1)
	go func() {
		conn, err := quietDriver(addr).Open(ctx, RoleReceiver, ModeListen)
		if err != nil {
			done <- nil
			return
		}
		done <- conn
	}()

	d := quietDriver(addr)
	d.RetryDelay = 10 * time.Millisecond
	first, err := d.Open(ctx, RoleSender, ModeConnect)
	require.NoError(t, err)
	defer first.Close()

	conn := <-done
	require.NotNil(t, conn)
	defer conn.Close()

	// The listener is closed after the first accept, so a second dial
	// must be refused.
	_, err = (&net.Dialer{Timeout: time.Second}).Dial("tcp", addr)
	assert.Error(t, err)
}

func TestReceiverConnectDoesNotRetry(t *testing.T) {
	// Grab a port and close it so the dial target refuses connections.
	probe, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := probe.Addr().String()
	probe.Close()

	d := quietDriver(addr)
	d.RetryDelay = time.Hour

	start := time.Now()
	_, err = d.Open(context.Background(), RoleReceiver, ModeConnect)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRetriesExhausted)
	assert.Less(t, time.Since(start), 5*time.Second, "a single attempt must not sleep the retry delay")
}

func TestSenderConnectExhaustsRetries(t *testing.T) {
	probe, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := probe.Addr().String()
	probe.Close()

	d := quietDriver(addr)
	d.Retries = 3
	d.RetryDelay = 10 * time.Millisecond

	_, err = d.Open(context.Background(), RoleSender, ModeConnect)
	require.ErrorIs(t, err, ErrRetriesExhausted)
	assert.Contains(t, err.Error(), "3 attempts")
}

func TestConnectHonorsCancellation(t *testing.T) {
	probe, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := probe.Addr().String()
	probe.Close()

	ctx, cancel := context.WithCancel(context.Background())
	d := quietDriver(addr)
	d.Retries = 1000
	d.RetryDelay = 50 * time.Millisecond

	done := make(chan error, 1)
	go func() {
		_, err := d.Open(ctx, RoleSender, ModeConnect)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled connect did not return")
	}
}

func TestListenHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := quietDriver("127.0.0.1:0").Open(ctx, RoleReceiver, ModeListen)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled listen did not return")
	}
}

func TestDriverDefaults(t *testing.T) {
	d := &Driver{Addr: "127.0.0.1:0"}
	assert.Equal(t, DefaultRetries, d.retries())
	assert.Equal(t, DefaultRetryDelay, d.retryDelay())
	assert.NotNil(t, d.logger())
}

func TestOpenUnknownMode(t *testing.T) {
	_, err := quietDriver("127.0.0.1:0").Open(context.Background(), RoleSender, Mode(42))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
