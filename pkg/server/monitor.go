package server

import "time"

// idleMonitor evicts connections that have been silent longer than the client timeout
func (s *Server) idleMonitor() {
	ticker := time.NewTicker(s.config.IdleCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case now := <-ticker.C:
			s.evictIdle(now)
		}
	}
}

// evictIdle closes every connection whose last activity predates now - timeout.
// The socket is closed without a final message.
func (s *Server) evictIdle(now time.Time) int {
	timeout := s.ClientTimeout()
	if timeout <= 0 {
		return 0
	}
	cutoff := now.Add(-timeout)

	var stale []*clientConn
	s.clientsMu.Lock()
	for _, c := range s.clients {
		if !c.evicted && c.lastSeen.Before(cutoff) {
			c.evicted = true
			stale = append(stale, c)
		}
	}
	s.clientsMu.Unlock()

	for _, c := range stale {
		s.logger.Info("Server %s: evicting idle client %s", s.config.ID, c.addr)
		c.conn.Close()
		s.stats.evictions.Add(1)
	}
	return len(stale)
}
