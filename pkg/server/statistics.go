package server

import (
	"sync/atomic"

	"avaneesh/nut-go/pkg/channel"
)

// Statistics is a snapshot of server counters
type Statistics struct {
	ConnectionsAccepted uint64
	ActiveSessions      uint64
	Queries             uint64
	ErrorResponses      uint64
	Logins              uint64
	Evictions           uint64
	Transport           channel.TransportStats
}

// counters tracks server statistics
type counters struct {
	accepted       atomic.Uint64
	active         atomic.Int64
	queries        atomic.Uint64
	errorResponses atomic.Uint64
	logins         atomic.Uint64
	evictions      atomic.Uint64
}

func (c *counters) snapshot() Statistics {
	active := c.active.Load()
	if active < 0 {
		active = 0
	}
	return Statistics{
		ConnectionsAccepted: c.accepted.Load(),
		ActiveSessions:      uint64(active),
		Queries:             c.queries.Load(),
		ErrorResponses:      c.errorResponses.Load(),
		Logins:              c.logins.Load(),
		Evictions:           c.evictions.Load(),
	}
}
