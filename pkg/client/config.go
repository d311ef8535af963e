package client

import (
	"net"
	"strconv"
	"time"

	"avaneesh/nut-go/pkg/cache"
	"avaneesh/nut-go/pkg/channel"
	"avaneesh/nut-go/pkg/protocol"
)

// ClientConfig configures a NUT client
type ClientConfig struct {
	// Identity used in log lines
	ID string

	// Server "host:port". A bare host uses the default NUT port.
	Address string

	// Timeouts
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration // per query (0 = ctx only)

	// Dialer opens the transport. nil dials TCP.
	Dialer channel.Dialer

	// Cache holds list responses until a forced refresh. nil uses an
	// in-memory LRU owned by the client.
	Cache cache.Store

	// StateListener is told when the connection comes up or is lost
	StateListener channel.ConnectionStateListener
}

// DefaultClientConfig returns a config for a server on localhost
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		ID:             "upsc",
		Address:        net.JoinHostPort("127.0.0.1", strconv.Itoa(protocol.DefaultPort)),
		ConnectTimeout: 5 * time.Second,
		ReadTimeout:    10 * time.Second,
	}
}

func (c *ClientConfig) applyDefaults() {
	if c.ID == "" {
		c.ID = "upsc"
	}
	if _, _, err := net.SplitHostPort(c.Address); err != nil {
		c.Address = net.JoinHostPort(c.Address, strconv.Itoa(protocol.DefaultPort))
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 5 * time.Second
	}
	if c.Dialer == nil {
		c.Dialer = channel.TCPDialer{Timeout: c.ConnectTimeout}
	}
}
