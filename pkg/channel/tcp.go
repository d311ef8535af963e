package channel

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"
)

// acceptPollInterval bounds how long Accept waits before re-checking ctx
const acceptPollInterval = 1 * time.Second

// TCPListener implements Listener for plain TCP
type TCPListener struct {
	listener *net.TCPListener
	stats    *Statistics
	closed   atomic.Bool
}

// ListenTCP binds address ("host:port"; port 0 picks a free port)
func ListenTCP(address string) (*TCPListener, error) {
	addr, err := net.ResolveTCPAddr("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", address, err)
	}

	listener, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	return &TCPListener{
		listener: listener,
		stats:    NewStatistics(),
	}, nil
}

// Accept implements Listener.Accept
func (l *TCPListener) Accept(ctx context.Context) (net.Conn, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if l.closed.Load() {
			return nil, ErrListenerClosed
		}

		// Set accept deadline to allow periodic context checks
		l.listener.SetDeadline(time.Now().Add(acceptPollInterval))

		conn, err := l.listener.Accept()
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				// Timeout is expected, continue loop
				continue
			}
			if l.closed.Load() || errors.Is(err, net.ErrClosed) {
				return nil, ErrListenerClosed
			}
			return nil, err
		}

		return l.stats.Track(conn), nil
	}
}

// Addr implements Listener.Addr
func (l *TCPListener) Addr() net.Addr {
	return l.listener.Addr()
}

// Port returns the bound TCP port
func (l *TCPListener) Port() int {
	return l.listener.Addr().(*net.TCPAddr).Port
}

// Close implements Listener.Close
func (l *TCPListener) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil // Already closed
	}
	return l.listener.Close()
}

// Statistics implements Listener.Statistics
func (l *TCPListener) Statistics() TransportStats {
	return l.stats.Snapshot()
}

// TCPDialer implements Dialer for plain TCP
type TCPDialer struct {
	Timeout time.Duration // Connect timeout (0 = no timeout)
}

// Dial implements Dialer.Dial
func (d TCPDialer) Dial(ctx context.Context, address string) (net.Conn, error) {
	nd := net.Dialer{Timeout: d.Timeout}
	conn, err := nd.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", address, err)
	}
	return conn, nil
}
