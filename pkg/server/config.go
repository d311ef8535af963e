package server

import (
	"time"

	"avaneesh/nut-go/pkg/protocol"
	"avaneesh/nut-go/pkg/types"
)

// DefaultVersion is the VER response when none is configured
const DefaultVersion = "Network UPS Tools upsd (nut-go) 1.0.0"

// ServerConfig configures a NUT server
type ServerConfig struct {
	// Identity used in log lines
	ID string

	// Network
	ListenAddress string // empty listens on all interfaces
	Port          int    // 0 picks a free port

	// Access control. Entries are IP addresses or CIDR blocks; an empty
	// list authorizes every client.
	AuthorizedAddresses []string

	// Timeouts
	ClientTimeout     time.Duration // idle eviction threshold (<= 0 disables)
	IdleCheckInterval time.Duration // idle monitor tick

	// Behavior
	SingleQuery bool   // close each connection after one response
	Version     string // VER response

	// InstantCommandHandler runs INSTCMD requests. nil accepts every
	// known command without doing anything.
	InstantCommandHandler InstantCommandHandler
}

// InstantCommandHandler executes an instant command. A returned error is
// reported to the client as INSTCMD-FAILED.
type InstantCommandHandler func(ups *types.UPS, command, value string) error

// DefaultServerConfig returns the standard upsd settings
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ID:                "upsd",
		Port:              protocol.DefaultPort,
		ClientTimeout:     60 * time.Second,
		IdleCheckInterval: 1 * time.Second,
		Version:           DefaultVersion,
	}
}

func (c *ServerConfig) applyDefaults() {
	if c.ID == "" {
		c.ID = "upsd"
	}
	if c.IdleCheckInterval <= 0 {
		c.IdleCheckInterval = 1 * time.Second
	}
	if c.Version == "" {
		c.Version = DefaultVersion
	}
}
