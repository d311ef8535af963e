package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"avaneesh/nut-go/pkg/channel"
	"avaneesh/nut-go/pkg/internal/logger"
	"avaneesh/nut-go/pkg/types"

	"github.com/google/uuid"
)

var (
	ErrAlreadyListening = errors.New("server is already listening")
	ErrInvalidAddress   = errors.New("invalid authorized address")
)

// Server answers NUT queries for the UPS entries in its registry
type Server struct {
	config   ServerConfig
	logger   logger.Logger
	registry *Registry

	// Access control and eviction, adjustable while running
	authMu        sync.RWMutex
	authorized    []*net.IPNet
	clientTimeout atomic.Int64

	// Listener
	listener   channel.Listener
	listenerMu sync.RWMutex
	listening  atomic.Bool

	// Live connections keyed by remote "host:port"
	clients   map[string]*clientConn
	clientsMu sync.Mutex

	stats counters

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// clientConn is one entry of the connection table
type clientConn struct {
	id        string
	conn      net.Conn
	addr      string
	connected time.Time
	lastSeen  time.Time
	evicted   bool
}

// host returns the IP part of the remote address. Logins are tracked per
// host, so every connection from one machine shares them.
func (c *clientConn) host() string {
	if h, _, err := net.SplitHostPort(c.addr); err == nil {
		return h
	}
	return c.addr
}

// ClientInfo describes a connected client
type ClientInfo struct {
	ID        string
	Address   string
	Connected time.Time
	LastSeen  time.Time
}

// New creates a server. UPS entries are added with AddUPS before or after Start.
func New(config ServerConfig, log logger.Logger) (*Server, error) {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	config.applyDefaults()

	s := &Server{
		config:   config,
		logger:   log,
		registry: NewRegistry(),
		clients:  make(map[string]*clientConn),
	}
	if err := s.SetAuthorizedAddresses(config.AuthorizedAddresses); err != nil {
		return nil, err
	}
	s.SetClientTimeout(config.ClientTimeout)

	s.logger.Info("Server %s created: port=%d, timeout=%v", config.ID, config.Port, config.ClientTimeout)
	return s, nil
}

// Registry returns the UPS registry
func (s *Server) Registry() *Registry {
	return s.registry
}

// AddUPS registers a UPS
func (s *Server) AddUPS(u *types.UPS) error {
	if err := s.registry.Add(u); err != nil {
		return err
	}
	s.logger.Debug("Server %s: added UPS %s", s.config.ID, u.Name())
	return nil
}

// RemoveUPS unregisters a UPS
func (s *Server) RemoveUPS(name string) bool {
	return s.registry.Remove(name)
}

// UPS looks up a registered UPS
func (s *Server) UPS(name string) (*types.UPS, error) {
	return s.registry.Get(name)
}

// Start listens on TCP ListenAddress:Port and begins accepting sessions
func (s *Server) Start() error {
	if s.listening.Load() {
		return ErrAlreadyListening
	}
	address := net.JoinHostPort(s.config.ListenAddress, strconv.Itoa(s.config.Port))
	l, err := channel.ListenTCP(address)
	if err != nil {
		return err
	}
	if err := s.StartListener(l); err != nil {
		l.Close()
		return err
	}
	return nil
}

// StartListener serves sessions from any transport, e.g. QUIC
func (s *Server) StartListener(l channel.Listener) error {
	if !s.listening.CompareAndSwap(false, true) {
		return ErrAlreadyListening
	}

	s.listenerMu.Lock()
	s.listener = l
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.listenerMu.Unlock()

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.acceptLoop(l)
	}()
	go func() {
		defer s.wg.Done()
		s.idleMonitor()
	}()

	s.logger.Info("Server %s listening on %s", s.config.ID, l.Addr())
	return nil
}

// Stop closes the listener and every live session, then waits for them
func (s *Server) Stop() error {
	if !s.listening.CompareAndSwap(true, false) {
		return nil
	}
	s.logger.Info("Server %s shutting down", s.config.ID)

	s.listenerMu.RLock()
	l := s.listener
	s.listenerMu.RUnlock()

	s.cancel()
	err := l.Close()
	s.wg.Wait()

	s.logger.Info("Server %s shutdown complete", s.config.ID)
	return err
}

// IsListening returns true between Start and Stop
func (s *Server) IsListening() bool {
	return s.listening.Load()
}

// Addr returns the bound address, or nil before Start
func (s *Server) Addr() net.Addr {
	s.listenerMu.RLock()
	defer s.listenerMu.RUnlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// ListenPort returns the bound port. With Port 0 this is the port the
// system picked; before Start it is the configured port.
func (s *Server) ListenPort() int {
	addr := s.Addr()
	if addr == nil {
		return s.config.Port
	}
	_, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return s.config.Port
	}
	p, _ := strconv.Atoi(port)
	return p
}

// SetAuthorizedAddresses replaces the allow-list. Sessions already
// connected keep the decision made when they were accepted.
func (s *Server) SetAuthorizedAddresses(addresses []string) error {
	nets := make([]*net.IPNet, 0, len(addresses))
	for _, a := range addresses {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if strings.Contains(a, "/") {
			_, n, err := net.ParseCIDR(a)
			if err != nil {
				return fmt.Errorf("%w: %s", ErrInvalidAddress, a)
			}
			nets = append(nets, n)
			continue
		}
		ip := net.ParseIP(a)
		if ip == nil {
			return fmt.Errorf("%w: %s", ErrInvalidAddress, a)
		}
		bits := 8 * net.IPv6len
		if ip4 := ip.To4(); ip4 != nil {
			ip, bits = ip4, 8*net.IPv4len
		}
		nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
	}

	s.authMu.Lock()
	s.authorized = nets
	s.authMu.Unlock()
	return nil
}

// IsAuthorized reports whether a remote "host:port" may issue commands
func (s *Server) IsAuthorized(remoteAddr string) bool {
	s.authMu.RLock()
	defer s.authMu.RUnlock()

	// Authorization is disabled when the list is empty
	if len(s.authorized) == 0 {
		return true
	}

	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	for _, n := range s.authorized {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// SetClientTimeout changes the idle eviction threshold (<= 0 disables)
func (s *Server) SetClientTimeout(d time.Duration) {
	s.clientTimeout.Store(int64(d))
}

// ClientTimeout returns the idle eviction threshold
func (s *Server) ClientTimeout() time.Duration {
	return time.Duration(s.clientTimeout.Load())
}

// Clients returns the connected clients
func (s *Server) Clients() []ClientInfo {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()

	infos := make([]ClientInfo, 0, len(s.clients))
	for _, c := range s.clients {
		infos = append(infos, ClientInfo{
			ID:        c.id,
			Address:   c.addr,
			Connected: c.connected,
			LastSeen:  c.lastSeen,
		})
	}
	return infos
}

// DisconnectClient closes connections matching addr, given either as
// "host:port" or as a bare host. It reports whether any were closed.
func (s *Server) DisconnectClient(addr string) bool {
	var victims []*clientConn

	s.clientsMu.Lock()
	for key, c := range s.clients {
		host, _, _ := net.SplitHostPort(key)
		if key == addr || host == addr {
			victims = append(victims, c)
		}
	}
	s.clientsMu.Unlock()

	for _, c := range victims {
		s.logger.Info("Server %s: disconnecting client %s", s.config.ID, c.addr)
		c.conn.Close()
	}
	return len(victims) > 0
}

// Statistics returns a snapshot of the server counters
func (s *Server) Statistics() Statistics {
	stats := s.stats.snapshot()
	s.listenerMu.RLock()
	if s.listener != nil {
		stats.Transport = s.listener.Statistics()
	}
	s.listenerMu.RUnlock()
	return stats
}

// acceptLoop accepts incoming connections until shutdown
func (s *Server) acceptLoop(l channel.Listener) {
	for {
		conn, err := l.Accept(s.ctx)
		if err != nil {
			if s.ctx.Err() != nil || errors.Is(err, channel.ErrListenerClosed) {
				return
			}
			// Log error but continue accepting
			s.logger.Error("Server %s: accept failed: %v", s.config.ID, err)
			select {
			case <-s.ctx.Done():
				return
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}

		s.stats.accepted.Add(1)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serve(conn)
		}()
	}
}

// serve runs one session to completion
func (s *Server) serve(conn net.Conn) {
	now := time.Now()
	c := &clientConn{
		id:        uuid.NewString(),
		conn:      conn,
		addr:      conn.RemoteAddr().String(),
		connected: now,
		lastSeen:  now,
	}

	s.clientsMu.Lock()
	if old, exists := s.clients[c.addr]; exists {
		old.conn.Close()
	}
	s.clients[c.addr] = c
	s.clientsMu.Unlock()

	// Shutdown unblocks the session read by closing its socket
	stop := context.AfterFunc(s.ctx, func() { conn.Close() })

	s.stats.active.Add(1)
	s.logger.Info("Server %s: client %s connected (session %s)", s.config.ID, c.addr, c.id)

	sess := newSession(s, c)
	sess.run()

	stop()
	conn.Close()
	s.stats.active.Add(-1)

	s.clientsMu.Lock()
	if s.clients[c.addr] == c {
		delete(s.clients, c.addr)
	}
	s.clientsMu.Unlock()

	if sess.loggedIn {
		if ups := s.registry.LogoutEverywhere(c.host()); len(ups) > 0 {
			s.logger.Debug("Server %s: dropped logins of %s from %v", s.config.ID, c.host(), ups)
		}
	}
	s.logger.Info("Server %s: client %s disconnected", s.config.ID, c.addr)
}

// touch refreshes the last activity time of a connection
func (s *Server) touch(c *clientConn) {
	s.clientsMu.Lock()
	c.lastSeen = time.Now()
	s.clientsMu.Unlock()
}
