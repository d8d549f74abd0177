package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"
)

// Role identifies which end of the transfer this process is. Only the
// sending end retries failed connection attempts; the receiving end
// fails fast so a typo'd address surfaces immediately.
type Role int

const (
	RoleSender Role = iota
	RoleReceiver
)

// String returns a human-readable role name.
func (r Role) String() string {
	switch r {
	case RoleSender:
		return "sender"
	case RoleReceiver:
		return "receiver"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// Mode selects how the connection is established. Either end may
// listen; the other connects.
type Mode int

const (
	ModeConnect Mode = iota
	ModeListen
)

// String returns a human-readable mode name.
func (m Mode) String() string {
	switch m {
	case ModeConnect:
		return "connect"
	case ModeListen:
		return "listen"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

const (
	// DefaultRetries is the sender's connection attempt budget.
	DefaultRetries = 30

	// DefaultRetryDelay is the fixed pause between sender connection
	// attempts.
	DefaultRetryDelay = 1 * time.Second
)

// ErrRetriesExhausted indicates every connection attempt in the
// sender's budget failed.
var ErrRetriesExhausted = errors.New("connection retries exhausted")

// Driver establishes the single TCP connection a transfer session runs
// over.
type Driver struct {
	// Addr is the host:port to connect to, or the bind address when
	// listening.
	Addr string

	// Retries caps sender connection attempts. Zero selects
	// DefaultRetries. Receiver connects are always a single attempt.
	Retries int

	// RetryDelay is the pause between sender connection attempts. Zero
	// selects DefaultRetryDelay.
	RetryDelay time.Duration

	// Logger receives connection progress. Nil selects the standard
	// logger.
	Logger *logrus.Logger
}

func (d *Driver) retries() int {
	if d.Retries <= 0 {
		return DefaultRetries
	}
	return d.Retries
}

func (d *Driver) retryDelay() time.Duration {
	if d.RetryDelay <= 0 {
		return DefaultRetryDelay
	}
	return d.RetryDelay
}

func (d *Driver) logger() *logrus.Logger {
	if d.Logger == nil {
		return logrus.StandardLogger()
	}
	return d.Logger
}

// Open establishes the session connection according to role and mode.
// The context bounds the whole establishment, including retry sleeps
// and the listening wait.
func (d *Driver) Open(ctx context.Context, role Role, mode Mode) (net.Conn, error) {
	d.logger().WithFields(logrus.Fields{
		"function": "Open",
		"addr":     d.Addr,
		"role":     role.String(),
		"mode":     mode.String(),
	}).Debug("Establishing connection")

	switch mode {
	case ModeConnect:
		return d.connect(ctx, role)
	case ModeListen:
		return d.listen(ctx)
	default:
		return nil, fmt.Errorf("unknown mode %d", int(mode))
	}
}

// connect dials the peer. The sender keeps trying within its budget so
// it can be started before the listening receiver; anyone else gets one
// attempt.
func (d *Driver) connect(ctx context.Context, role Role) (net.Conn, error) {
	attempts := 1
	if role == RoleSender {
		attempts = d.retries()
	}

	dialer := &net.Dialer{}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		conn, err := dialer.DialContext(ctx, "tcp", d.Addr)
		if err == nil {
			d.logger().WithFields(logrus.Fields{
				"addr":    d.Addr,
				"attempt": attempt,
			}).Info("Connected")
			return conn, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt == attempts {
			break
		}

		d.logger().WithFields(logrus.Fields{
			"addr":    d.Addr,
			"attempt": attempt,
			"retries": attempts,
			"error":   err,
		}).Warn("Connection attempt failed, retrying")

		select {
		case <-time.After(d.retryDelay()):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if attempts > 1 {
		return nil, fmt.Errorf("%w: %d attempts to %s, last error: %v",
			ErrRetriesExhausted, attempts, d.Addr, lastErr)
	}
	return nil, fmt.Errorf("connect to %s: %w", d.Addr, lastErr)
}

// listen binds Addr, accepts exactly one connection, and closes the
// listener. The transfer protocol is strictly two-party.
func (d *Driver) listen(ctx context.Context) (net.Conn, error) {
	lc := &net.ListenConfig{}
	listener, err := lc.Listen(ctx, "tcp", d.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", d.Addr, err)
	}

	d.logger().WithField("addr", listener.Addr().String()).Info("Listening for peer")

	// Unblock Accept when the context is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			listener.Close()
		case <-done:
		}
	}()

	conn, err := listener.Accept()
	listener.Close()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("accept on %s: %w", d.Addr, err)
	}

	d.logger().WithField("peer", conn.RemoteAddr().String()).Info("Peer connected")
	return conn, nil
}
