package channel

import (
	"context"
	"errors"
	"net"
)

var (
	ErrListenerClosed = errors.New("listener is closed")
)

// ConnectionStateListener receives notifications about connection state changes
type ConnectionStateListener interface {
	// OnConnectionEstablished is called when a new connection is established
	OnConnectionEstablished()

	// OnConnectionLost is called when a connection is lost
	OnConnectionLost()
}

// Listener is a pluggable source of inbound NUT connections.
// Each accepted net.Conn carries one line-oriented session.
type Listener interface {
	// Accept blocks until a connection arrives, ctx is cancelled or the
	// listener is closed. A closed listener returns ErrListenerClosed.
	Accept(ctx context.Context) (net.Conn, error)

	// Addr returns the bound address
	Addr() net.Addr

	// Close stops accepting. Connections already returned stay open.
	Close() error

	// Statistics returns transport-level statistics
	Statistics() TransportStats
}

// Dialer opens outbound NUT connections
type Dialer interface {
	Dial(ctx context.Context, address string) (net.Conn, error)
}

// TransportStats provides transport-level statistics
type TransportStats struct {
	BytesSent     uint64 // Total bytes sent
	BytesReceived uint64 // Total bytes received
	WriteErrors   uint64 // Number of write errors
	ReadErrors    uint64 // Number of read errors
	Connects      uint64 // Number of connections accepted or dialed
	Disconnects   uint64 // Number of connections closed
}

// ChannelState represents the state of a connection
type ChannelState int

const (
	ChannelStateOpen ChannelState = iota
	ChannelStateClosed
)

// String returns string representation of ChannelState
func (s ChannelState) String() string {
	switch s {
	case ChannelStateOpen:
		return "Open"
	case ChannelStateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}
