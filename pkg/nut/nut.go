// Package nut is the entry point for running a NUT server or client. It
// builds servers and cache stores from a config.Config and applies config
// reloads to a running server.
package nut

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"avaneesh/nut-go/pkg/cache"
	"avaneesh/nut-go/pkg/cache/memory"
	cacheredis "avaneesh/nut-go/pkg/cache/redis"
	"avaneesh/nut-go/pkg/channel"
	"avaneesh/nut-go/pkg/client"
	"avaneesh/nut-go/pkg/config"
	"avaneesh/nut-go/pkg/server"

	"github.com/redis/go-redis/v9"
)

// NewServer creates a server from cfg and registers its UPS entries. The
// server is not started.
func NewServer(cfg *config.Config, log Logger) (*server.Server, error) {
	upses, err := cfg.BuildUPSes()
	if err != nil {
		return nil, err
	}

	srv, err := server.New(cfg.ServerConfig(), log)
	if err != nil {
		return nil, fmt.Errorf("failed to create server: %w", err)
	}
	for _, u := range upses {
		if err := srv.AddUPS(u); err != nil {
			return nil, err
		}
	}
	return srv, nil
}

// Start begins serving on the transport named in cfg
func Start(srv *server.Server, cfg *config.Config) error {
	if cfg.TransportName() != config.TransportQUIC {
		return srv.Start()
	}

	address := net.JoinHostPort(cfg.Server.Listen, strconv.Itoa(cfg.Server.Port))
	l, err := channel.ListenQUIC(address, nil)
	if err != nil {
		return err
	}
	if err := srv.StartListener(l); err != nil {
		l.Close()
		return err
	}
	return nil
}

// ReloadResult lists what Reload changed in the registry
type ReloadResult struct {
	Added   []string
	Removed []string
}

// Reload applies a new config to a running server. UPS entries are synced
// by name: entries present in both configs keep their logins and take the
// new variables, commands and description. The
// listener itself is not touched; a changed port or transport needs a
// restart.
func Reload(srv *server.Server, cfg *config.Config) (ReloadResult, error) {
	upses, err := cfg.BuildUPSes()
	if err != nil {
		return ReloadResult{}, err
	}
	if err := srv.SetAuthorizedAddresses(cfg.Server.Authorized); err != nil {
		return ReloadResult{}, err
	}
	srv.SetClientTimeout(cfg.Server.ClientTimeout)
	EnableWireDebug(cfg.Log.WireDebug)

	added, removed := srv.Registry().Sync(upses)
	return ReloadResult{Added: added, Removed: removed}, nil
}

// NewCache returns the client cache store selected by cfg: Redis when an
// address is set, otherwise an in-memory LRU.
func NewCache(cfg config.CacheSection) (cache.Store, error) {
	if cfg.RedisAddr == "" {
		store, err := memory.New(cfg.MaxEntries)
		if err != nil {
			return nil, err
		}
		return store, nil
	}

	store, err := cacheredis.New(cacheredis.Config{
		Client:    redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}),
		KeyPrefix: cfg.KeyPrefix,
		TTL:       cfg.TTL,
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}

// Dial creates a client and connects it
func Dial(ctx context.Context, cc client.ClientConfig, log Logger) (*client.Client, error) {
	c, err := client.New(cc, log)
	if err != nil {
		return nil, err
	}
	if err := c.Connect(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}
