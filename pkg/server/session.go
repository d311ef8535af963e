package server

import (
	"bufio"
	"errors"
	"io"
	"net"

	"avaneesh/nut-go/pkg/internal/logger"
	"avaneesh/nut-go/pkg/protocol"
)

// session is the per-connection protocol state
type session struct {
	server *Server
	client *clientConn
	logger logger.Logger

	// Fixed at accept time from the allow-list
	authorized bool

	// Credentials, each settable once
	username string
	password string

	// Set by a successful LOGIN, cleared by LOGOUT
	loggedIn bool

	scanner *bufio.Scanner
	writer  *bufio.Writer
}

func newSession(s *Server, c *clientConn) *session {
	scanner := bufio.NewScanner(c.conn)
	scanner.Buffer(make([]byte, 0, 512), protocol.MaxLineLength)

	return &session{
		server:     s,
		client:     c,
		logger:     s.logger,
		authorized: s.IsAuthorized(c.addr),
		scanner:    scanner,
		writer:     bufio.NewWriter(c.conn),
	}
}

// run reads and answers lines until the peer leaves, LOGOUT, eviction or shutdown
func (sess *session) run() {
	if !sess.authorized {
		sess.logger.Warn("Server %s: client %s is not authorized", sess.server.config.ID, sess.client.addr)
	}

	for sess.scanner.Scan() {
		line := sess.scanner.Text()
		sess.server.touch(sess.client)
		sess.server.stats.queries.Add(1)

		if logger.WireDebug() {
			sess.logger.Debug("%s -> %q", sess.client.addr, line)
		}

		response, closeAfter := sess.handle(line)
		if err := sess.write(response); err != nil {
			sess.logger.Debug("Server %s: write to %s failed: %v", sess.server.config.ID, sess.client.addr, err)
			return
		}
		if closeAfter || sess.server.config.SingleQuery {
			return
		}
	}

	if err := sess.scanner.Err(); err != nil && !closedError(err) {
		sess.logger.Debug("Server %s: read from %s failed: %v", sess.server.config.ID, sess.client.addr, err)
	}
}

func (sess *session) write(response string) error {
	if logger.WireDebug() {
		sess.logger.Debug("%s <- %q", sess.client.addr, response)
	}
	if _, err := sess.writer.WriteString(response); err != nil {
		return err
	}
	return sess.writer.Flush()
}

func closedError(err error) bool {
	return errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF)
}
