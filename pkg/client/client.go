// Package client implements a NUT network client: the VER/NETVER
// handshake, validated single-line and framed list queries, and per-UPS
// accessors that serve cached list responses until a refresh is forced.
package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"avaneesh/nut-go/pkg/cache"
	"avaneesh/nut-go/pkg/cache/memory"
	"avaneesh/nut-go/pkg/channel"
	"avaneesh/nut-go/pkg/internal/logger"
	"avaneesh/nut-go/pkg/protocol"
)

var (
	ErrNotConnected       = errors.New("client is not connected")
	ErrAlreadyConnected   = errors.New("client is already connected")
	ErrAccessDenied       = errors.New("access denied: this host may not be allowed to query the server")
	ErrUsernameAlreadySet = errors.New("username already set; reconnect to change it")
	ErrPasswordAlreadySet = errors.New("password already set; reconnect to change it")
	ErrUnknownUPS         = errors.New("unknown UPS")
)

// Client is one connection to a NUT server. Queries are serialized: each
// request is answered before the next one is written.
type Client struct {
	config    ClientConfig
	logger    logger.Logger
	cache     cache.Store
	ownsCache bool

	// Connection, guarded by mu for the whole of each exchange
	mu      sync.Mutex
	conn    net.Conn
	scanner *bufio.Scanner
	stats   *channel.Statistics

	// Handshake results and credentials
	stateMu         sync.RWMutex
	serverVersion   string
	protocolVersion string
	username        string
	password        string

	// UPS entries seen in the last LIST UPS
	upsMu sync.Mutex
	upses map[string]*UPS
}

// New creates a client. Connect must be called before issuing queries.
func New(config ClientConfig, log logger.Logger) (*Client, error) {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	config.applyDefaults()

	c := &Client{
		config: config,
		logger: log,
		cache:  config.Cache,
		stats:  channel.NewStatistics(),
		upses:  make(map[string]*UPS),
	}
	if c.cache == nil {
		store, err := memory.New(memory.DefaultMaxEntries)
		if err != nil {
			return nil, err
		}
		c.cache = store
		c.ownsCache = true
	}

	c.logger.Info("Client %s created: server=%s", config.ID, config.Address)
	return c, nil
}

// Address returns the server address
func (c *Client) Address() string {
	return c.config.Address
}

// Connect opens the transport and performs the VER/NETVER handshake. An
// ACCESS-DENIED answer yields ErrAccessDenied and leaves the client closed.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}

	conn, err := c.config.Dialer.Dial(ctx, c.config.Address)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	conn = c.stats.Track(conn)
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 512), protocol.MaxLineLength)
	c.conn = conn
	c.scanner = scanner
	c.mu.Unlock()

	if err := c.handshake(ctx); err != nil {
		c.closeConn()
		var pe *protocol.Error
		if errors.As(err, &pe) && pe.Code == protocol.ErrorCodeAccessDenied {
			return fmt.Errorf("%w: %w", ErrAccessDenied, err)
		}
		return err
	}

	c.logger.Info("Client %s connected to %s (%s, protocol %s)", c.config.ID, c.config.Address, c.ServerVersion(), c.ProtocolVersion())
	if c.config.StateListener != nil {
		c.config.StateListener.OnConnectionEstablished()
	}
	return nil
}

func (c *Client) handshake(ctx context.Context) error {
	ver, err := c.rawQuery(ctx, protocol.CommandVer)
	if err != nil {
		return err
	}
	netVer, err := c.rawQuery(ctx, protocol.CommandNetVer)
	if err != nil {
		return err
	}

	c.stateMu.Lock()
	c.serverVersion = ver
	c.protocolVersion = netVer
	c.stateMu.Unlock()
	return nil
}

// Disconnect closes the connection without LOGOUT. Credentials are
// forgotten since the server forgets them too.
func (c *Client) Disconnect() error {
	if !c.closeConn() {
		return ErrNotConnected
	}
	c.logger.Info("Client %s disconnected from %s", c.config.ID, c.config.Address)
	return nil
}

// Logout sends LOGOUT, which drops every login of this connection, and
// closes the connection after the server's goodbye.
func (c *Client) Logout(ctx context.Context) error {
	if _, err := c.SimpleQuery(ctx, protocol.CommandLogout); err != nil {
		return err
	}
	c.closeConn()

	c.upsMu.Lock()
	for _, u := range c.upses {
		u.loggedIn.Store(false)
	}
	c.upsMu.Unlock()

	c.logger.Info("Client %s logged out of %s", c.config.ID, c.config.Address)
	return nil
}

// Close disconnects and releases a cache created by New
func (c *Client) Close() error {
	c.closeConn()
	if c.ownsCache {
		return c.cache.Close()
	}
	return nil
}

// IsConnected returns true between a successful Connect and the end of the connection
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// State returns ChannelStateOpen while connected
func (c *Client) State() channel.ChannelState {
	if c.IsConnected() {
		return channel.ChannelStateOpen
	}
	return channel.ChannelStateClosed
}

// Statistics returns traffic counters for every connection this client made
func (c *Client) Statistics() channel.TransportStats {
	return c.stats.Snapshot()
}

// ResetStatistics zeroes the traffic counters
func (c *Client) ResetStatistics() {
	c.stats.Reset()
}

// ServerVersion returns the VER answer of the handshake
func (c *Client) ServerVersion() string {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.serverVersion
}

// ProtocolVersion returns the NETVER answer of the handshake
func (c *Client) ProtocolVersion() string {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.protocolVersion
}

// Username returns the username accepted by the server, if any
func (c *Client) Username() string {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.username
}

// SetUsername sends USERNAME. It can succeed once per connection.
func (c *Client) SetUsername(ctx context.Context, username string) error {
	if c.Username() != "" {
		return ErrUsernameAlreadySet
	}
	if _, err := c.SimpleQuery(ctx, protocol.Render(protocol.CommandUsername, username)); err != nil {
		return err
	}
	c.stateMu.Lock()
	c.username = username
	c.stateMu.Unlock()
	return nil
}

// SetPassword sends PASSWORD. It can succeed once per connection.
func (c *Client) SetPassword(ctx context.Context, password string) error {
	c.stateMu.RLock()
	set := c.password != ""
	c.stateMu.RUnlock()
	if set {
		return ErrPasswordAlreadySet
	}
	if _, err := c.SimpleQuery(ctx, protocol.Render(protocol.CommandPassword, password)); err != nil {
		return err
	}
	c.stateMu.Lock()
	c.password = password
	c.stateMu.Unlock()
	return nil
}

// GetUPSes returns the UPS entries served, from cache unless force is set
// or nothing is cached. Entries keep their identity across refreshes.
func (c *Client) GetUPSes(ctx context.Context, force bool) ([]*UPS, error) {
	rows, err := c.cachedList(ctx, cache.Key{Server: c.config.Address, Kind: cache.KindUPS}, protocol.SubjectUPS, "", "", force)
	if err != nil {
		return nil, err
	}

	c.upsMu.Lock()
	defer c.upsMu.Unlock()

	list := make([]*UPS, 0, len(rows))
	seen := make(map[string]bool, len(rows))
	for _, row := range rows {
		if len(row) != 3 {
			return nil, malformedRow(row)
		}
		name, desc := row[1], row[2]
		u, exists := c.upses[name]
		if !exists {
			u = newUPS(c, name)
			c.upses[name] = u
		}
		u.setDescription(desc)
		seen[name] = true
		list = append(list, u)
	}
	for name := range c.upses {
		if !seen[name] {
			delete(c.upses, name)
		}
	}
	return list, nil
}

// UPS returns the named entry, fetching the UPS list if it is not known yet
func (c *Client) UPS(ctx context.Context, name string) (*UPS, error) {
	c.upsMu.Lock()
	u, ok := c.upses[name]
	c.upsMu.Unlock()
	if ok {
		return u, nil
	}

	list, err := c.GetUPSes(ctx, false)
	if err != nil {
		return nil, err
	}
	for _, u := range list {
		if u.Name() == name {
			return u, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownUPS, name)
}

// cachedList serves rows for key from the cache, or runs the LIST query
// and stores its rows. Cache failures are logged and bypassed.
func (c *Client) cachedList(ctx context.Context, key cache.Key, subject, ups, param string, force bool) (cache.Rows, error) {
	if !force {
		rows, ok, err := c.cache.Get(ctx, key)
		if err != nil {
			c.logger.Warn("Client %s: cache read %s failed: %v", c.config.ID, key, err)
		} else if ok && len(rows) > 0 {
			return rows, nil
		}
	}

	fresh, err := c.ListQuery(ctx, subject, ups, param)
	if err != nil {
		return nil, err
	}
	rows := cache.Rows(fresh)
	if err := c.cache.Set(ctx, key, rows); err != nil {
		c.logger.Warn("Client %s: cache write %s failed: %v", c.config.ID, key, err)
	}
	return rows, nil
}

// invalidate drops a cache entry
func (c *Client) invalidate(ctx context.Context, key cache.Key) {
	if err := c.cache.Delete(ctx, key); err != nil {
		c.logger.Warn("Client %s: cache delete %s failed: %v", c.config.ID, key, err)
	}
}

// closeConn closes the transport and forgets credentials. It reports
// whether a connection was open.
func (c *Client) closeConn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

func (c *Client) closeLocked() bool {
	if c.conn == nil {
		return false
	}
	c.conn.Close()
	c.conn = nil
	c.scanner = nil

	c.stateMu.Lock()
	c.username = ""
	c.password = ""
	c.stateMu.Unlock()
	return true
}

// drop closes the connection after a transport or framing failure. It is
// called with mu held and reports whether a connection was open.
func (c *Client) drop(err error) bool {
	if !c.closeLocked() {
		return false
	}
	c.logger.Warn("Client %s: connection to %s lost: %v", c.config.ID, c.config.Address, err)
	return true
}

// notifyLost tells the state listener. mu must not be held, so the
// listener may call back into the client.
func (c *Client) notifyLost() {
	if c.config.StateListener != nil {
		c.config.StateListener.OnConnectionLost()
	}
}

// arm bounds the next exchange by ReadTimeout and ctx. Cancelling ctx
// interrupts blocked I/O by expiring the deadline.
func (c *Client) arm(ctx context.Context) (disarm func() bool) {
	var deadline time.Time
	if c.config.ReadTimeout > 0 {
		deadline = time.Now().Add(c.config.ReadTimeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	c.conn.SetDeadline(deadline)

	conn := c.conn
	return context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Now())
	})
}
