package channel

import (
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
)

// Statistics tracks byte and connection counters for a transport
type Statistics struct {
	bytesSent     atomic.Uint64
	bytesReceived atomic.Uint64
	writeErrors   atomic.Uint64
	readErrors    atomic.Uint64
	connects      atomic.Uint64
	disconnects   atomic.Uint64
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	return &Statistics{}
}

// Snapshot returns the current counters
func (s *Statistics) Snapshot() TransportStats {
	return TransportStats{
		BytesSent:     s.bytesSent.Load(),
		BytesReceived: s.bytesReceived.Load(),
		WriteErrors:   s.writeErrors.Load(),
		ReadErrors:    s.readErrors.Load(),
		Connects:      s.connects.Load(),
		Disconnects:   s.disconnects.Load(),
	}
}

// Reset resets all statistics
func (s *Statistics) Reset() {
	s.bytesSent.Store(0)
	s.bytesReceived.Store(0)
	s.writeErrors.Store(0)
	s.readErrors.Store(0)
	s.connects.Store(0)
	s.disconnects.Store(0)
}

// Track wraps conn so its traffic is counted in s
func (s *Statistics) Track(conn net.Conn) net.Conn {
	s.connects.Add(1)
	return &countingConn{Conn: conn, stats: s}
}

// countingConn counts bytes and errors flowing through a net.Conn
type countingConn struct {
	net.Conn
	stats *Statistics
	once  sync.Once
}

func (c *countingConn) Read(b []byte) (int, error) {
	n, err := c.Conn.Read(b)
	c.stats.bytesReceived.Add(uint64(n))
	if err != nil && !expectedError(err) {
		c.stats.readErrors.Add(1)
	}
	return n, err
}

func (c *countingConn) Write(b []byte) (int, error) {
	n, err := c.Conn.Write(b)
	c.stats.bytesSent.Add(uint64(n))
	if err != nil && !expectedError(err) {
		c.stats.writeErrors.Add(1)
	}
	return n, err
}

func (c *countingConn) Close() error {
	c.once.Do(func() {
		c.stats.disconnects.Add(1)
	})
	return c.Conn.Close()
}

// expectedError filters out errors caused by normal shutdown
func expectedError(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
