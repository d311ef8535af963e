package channel

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quic-go/quic-go"
)

// QUICProtocol is the ALPN identifier negotiated for NUT over QUIC
const QUICProtocol = "nut-quic"

// quicConfig keeps idle NUT sessions alive; eviction is the server's job
var quicConfig = &quic.Config{
	KeepAlivePeriod: 15 * time.Second,
	MaxIdleTimeout:  5 * time.Minute,
}

// QUICListener implements Listener over QUIC. Every QUIC connection carries
// one bidirectional stream which becomes the session's net.Conn.
type QUICListener struct {
	udpConn  *net.UDPConn
	listener *quic.Listener
	stats    *Statistics

	conns chan net.Conn

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool
}

// ListenQUIC binds a UDP socket on address. A nil tlsConfig generates a
// self-signed certificate.
func ListenQUIC(address string, tlsConfig *tls.Config) (*QUICListener, error) {
	if tlsConfig == nil {
		var err error
		tlsConfig, err = GenerateTLSConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to generate TLS config: %w", err)
		}
	}

	udpAddr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve UDP address %s: %w", address, err)
	}

	udpConn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	listener, err := quic.Listen(udpConn, tlsConfig, quicConfig)
	if err != nil {
		udpConn.Close()
		return nil, fmt.Errorf("failed to create QUIC listener: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	ql := &QUICListener{
		udpConn:  udpConn,
		listener: listener,
		stats:    NewStatistics(),
		conns:    make(chan net.Conn),
		ctx:      ctx,
		cancel:   cancel,
	}

	// Accept connections in background
	ql.wg.Add(1)
	go ql.acceptLoop()

	return ql, nil
}

// GenerateTLSConfig generates a self-signed certificate for QUIC
func GenerateTLSConfig() (*tls.Config, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return nil, err
	}

	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})

	tlsCert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, err
	}

	return &tls.Config{
		Certificates: []tls.Certificate{tlsCert},
		NextProtos:   []string{QUICProtocol},
	}, nil
}

// InsecureClientTLSConfig accepts any server certificate. Use only with
// self-signed test servers.
func InsecureClientTLSConfig() *tls.Config {
	return &tls.Config{
		NextProtos:         []string{QUICProtocol},
		InsecureSkipVerify: true,
	}
}

// acceptLoop accepts incoming QUIC connections
func (ql *QUICListener) acceptLoop() {
	defer ql.wg.Done()

	for {
		conn, err := ql.listener.Accept(ql.ctx)
		if err != nil {
			if ql.closed.Load() || ql.ctx.Err() != nil {
				return
			}
			continue
		}

		// A stream only becomes visible once the peer writes to it, so
		// wait for it without blocking other connections.
		ql.wg.Add(1)
		go ql.acceptStream(conn)
	}
}

// acceptStream waits for the session stream of conn and hands it to Accept
func (ql *QUICListener) acceptStream(conn *quic.Conn) {
	defer ql.wg.Done()

	stream, err := conn.AcceptStream(ql.ctx)
	if err != nil {
		conn.CloseWithError(0, "no stream")
		return
	}

	sc := ql.stats.Track(&streamConn{Stream: stream, conn: conn})
	select {
	case ql.conns <- sc:
	case <-ql.ctx.Done():
		sc.Close()
	}
}

// Accept implements Listener.Accept
func (ql *QUICListener) Accept(ctx context.Context) (net.Conn, error) {
	select {
	case conn := <-ql.conns:
		return conn, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-ql.ctx.Done():
		return nil, ErrListenerClosed
	}
}

// Addr implements Listener.Addr
func (ql *QUICListener) Addr() net.Addr {
	return ql.listener.Addr()
}

// Port returns the bound UDP port
func (ql *QUICListener) Port() int {
	return ql.udpConn.LocalAddr().(*net.UDPAddr).Port
}

// Close implements Listener.Close
func (ql *QUICListener) Close() error {
	if !ql.closed.CompareAndSwap(false, true) {
		return nil // Already closed
	}

	ql.cancel()
	err := ql.listener.Close()
	ql.wg.Wait()
	ql.udpConn.Close()
	return err
}

// Statistics implements Listener.Statistics
func (ql *QUICListener) Statistics() TransportStats {
	return ql.stats.Snapshot()
}

// QUICDialer implements Dialer over QUIC
type QUICDialer struct {
	TLSConfig *tls.Config   // nil uses InsecureClientTLSConfig
	Timeout   time.Duration // Handshake timeout (0 = ctx only)
}

// Dial implements Dialer.Dial
func (d QUICDialer) Dial(ctx context.Context, address string) (net.Conn, error) {
	tlsConfig := d.TLSConfig
	if tlsConfig == nil {
		tlsConfig = InsecureClientTLSConfig()
	}
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	conn, err := quic.DialAddr(ctx, address, tlsConfig, quicConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", address, err)
	}

	// Open a stream
	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		conn.CloseWithError(0, "failed to open stream")
		return nil, fmt.Errorf("failed to open stream: %w", err)
	}

	return &streamConn{Stream: stream, conn: conn}, nil
}

// streamConn adapts a QUIC stream and its connection to net.Conn
type streamConn struct {
	*quic.Stream
	conn *quic.Conn
}

func (s *streamConn) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

func (s *streamConn) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}

func (s *streamConn) Close() error {
	s.Stream.Close()
	return s.conn.CloseWithError(0, "session closed")
}
