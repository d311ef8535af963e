package nut

import (
	"context"
	"fmt"
	"slices"
	"testing"
	"time"

	"avaneesh/nut-go/pkg/cache/memory"
	cacheredis "avaneesh/nut-go/pkg/cache/redis"
	"avaneesh/nut-go/pkg/channel"
	"avaneesh/nut-go/pkg/client"
	"avaneesh/nut-go/pkg/config"
	"avaneesh/nut-go/pkg/server"
)

func testConfig(transport string, upsNames ...string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Server.Listen = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Server.Transport = transport
	for _, name := range upsNames {
		cfg.UPS = append(cfg.UPS, config.UPSConfig{
			Name:        name,
			Description: "UPS " + name,
			Variables: []config.VariableConfig{
				{Name: "ups.status", Value: "OL", Flags: []string{"STRING"}},
			},
		})
	}
	return cfg
}

func startServer(t *testing.T, cfg *config.Config) *server.Server {
	t.Helper()
	srv, err := NewServer(cfg, nil)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	if err := Start(srv, cfg); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { srv.Stop() })
	return srv
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func upsNames(t *testing.T, c *client.Client) []string {
	t.Helper()
	upses, err := c.GetUPSes(testContext(t), true)
	if err != nil {
		t.Fatalf("GetUPSes() error = %v", err)
	}
	var names []string
	for _, u := range upses {
		names = append(names, u.Name())
	}
	slices.Sort(names)
	return names
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    LogLevel
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"error", LevelError, false},
		{"loud", LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLogLevel(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestNewServer_InvalidConfig(t *testing.T) {
	cfg := testConfig(config.TransportTCP, "a", "a")
	if _, err := NewServer(cfg, nil); err == nil {
		t.Error("NewServer() accepted duplicate UPS names")
	}
}

func TestStart_TCP(t *testing.T) {
	srv := startServer(t, testConfig(config.TransportTCP, "ups1", "ups2"))

	c, err := Dial(testContext(t), client.ClientConfig{Address: fmt.Sprintf("127.0.0.1:%d", srv.ListenPort())}, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer c.Close()

	if got := upsNames(t, c); !slices.Equal(got, []string{"ups1", "ups2"}) {
		t.Errorf("UPS names = %v", got)
	}
}

func TestStart_QUIC(t *testing.T) {
	srv := startServer(t, testConfig(config.TransportQUIC, "ups1"))

	c, err := Dial(testContext(t), client.ClientConfig{
		Address: fmt.Sprintf("127.0.0.1:%d", srv.ListenPort()),
		Dialer:  channel.QUICDialer{Timeout: 5 * time.Second},
	}, nil)
	if err != nil {
		t.Fatalf("Dial() over QUIC error = %v", err)
	}
	defer c.Close()

	if got := upsNames(t, c); !slices.Equal(got, []string{"ups1"}) {
		t.Errorf("UPS names = %v", got)
	}
}

func TestDial_Refused(t *testing.T) {
	srv := startServer(t, testConfig(config.TransportTCP))
	address := fmt.Sprintf("127.0.0.1:%d", srv.ListenPort())
	srv.Stop()

	if _, err := Dial(testContext(t), client.ClientConfig{Address: address}, nil); err == nil {
		t.Error("Dial() to a stopped server succeeded")
	}
}

func TestReload(t *testing.T) {
	srv := startServer(t, testConfig(config.TransportTCP, "ups1", "ups2"))
	kept, _ := srv.UPS("ups2")

	next := testConfig(config.TransportTCP, "ups2", "ups3")
	next.Server.Authorized = []string{"10.0.0.0/8"}
	next.Server.ClientTimeout = 5 * time.Second

	result, err := Reload(srv, next)
	if err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if !slices.Equal(result.Added, []string{"ups3"}) || !slices.Equal(result.Removed, []string{"ups1"}) {
		t.Errorf("Reload() = %+v", result)
	}
	if got, _ := srv.UPS("ups2"); got != kept {
		t.Error("Reload() replaced an unchanged UPS entry")
	}
	if srv.ClientTimeout() != 5*time.Second {
		t.Errorf("ClientTimeout() = %v", srv.ClientTimeout())
	}
	if srv.IsAuthorized("127.0.0.1:4000") || !srv.IsAuthorized("10.1.2.3:4000") {
		t.Error("authorized addresses not applied")
	}

	bad := testConfig(config.TransportTCP, "ups9")
	bad.Server.Authorized = []string{"not-an-address"}
	if _, err := Reload(srv, bad); err == nil {
		t.Fatal("Reload() accepted an invalid address")
	}
	if _, err := srv.UPS("ups9"); err == nil {
		t.Error("failed Reload() changed the registry")
	}
}

func TestNewCache(t *testing.T) {
	store, err := NewCache(config.CacheSection{MaxEntries: 8})
	if err != nil {
		t.Fatalf("NewCache() error = %v", err)
	}
	if _, ok := store.(*memory.Store); !ok {
		t.Errorf("NewCache() without redis = %T", store)
	}
	store.Close()

	// The Redis client connects lazily, so no server is needed here
	store, err = NewCache(config.CacheSection{RedisAddr: "127.0.0.1:1", KeyPrefix: "test:"})
	if err != nil {
		t.Fatalf("NewCache() with redis error = %v", err)
	}
	if _, ok := store.(*cacheredis.Store); !ok {
		t.Errorf("NewCache() with redis = %T", store)
	}
	store.Close()
}
