package client

import (
	"context"
	"fmt"
	"io"
	"strings"

	"avaneesh/nut-go/pkg/internal/logger"
	"avaneesh/nut-go/pkg/protocol"
)

// SimpleQuery sends one line and reads the single-line answer. An ERR
// answer is returned as *protocol.Error; anything else is tokenized with
// quotes removed.
func (c *Client) SimpleQuery(ctx context.Context, text string) ([]string, error) {
	line, err := c.rawQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	tokens, err := protocol.Tokenize(line)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", protocol.ErrMalformedResponse, line, err)
	}
	return tokens, nil
}

// ListQuery sends LIST <subject> [ups] [param] and returns the tokenized
// rows between BEGIN and END. The BEGIN and END lines must echo the query
// and every row must start with subject; any violation means the stream
// is out of step, so the connection is closed.
func (c *Client) ListQuery(ctx context.Context, subject, ups, param string) ([][]string, error) {
	query := protocol.ListQuery(subject, ups, param)

	var rows [][]string
	err := c.exchange(ctx, query, func(read func() (string, error)) error {
		line, err := read()
		if err != nil {
			return err
		}
		if protocol.IsErrorLine(line) {
			return protocolError(line, query)
		}
		if line != protocol.BeginLine(query) {
			return fatal(fmt.Errorf("%w: expected %q, got %q", protocol.ErrMalformedResponse, protocol.BeginLine(query), line))
		}

		for {
			line, err := read()
			if err != nil {
				return err
			}
			if protocol.IsEndLine(line) {
				if line != protocol.EndLine(query) {
					return fatal(fmt.Errorf("%w: expected %q, got %q", protocol.ErrMalformedResponse, protocol.EndLine(query), line))
				}
				return nil
			}

			row, err := protocol.Tokenize(line)
			if err != nil || len(row) < 2 || row[0] != subject || (ups != "" && row[1] != ups) {
				return fatal(fmt.Errorf("%w: unexpected row %q in %s", protocol.ErrMalformedResponse, line, query))
			}
			rows = append(rows, row)
		}
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// rawQuery sends text and returns the single answer line
func (c *Client) rawQuery(ctx context.Context, text string) (string, error) {
	var answer string
	err := c.exchange(ctx, text, func(read func() (string, error)) error {
		line, err := read()
		if err != nil {
			return err
		}
		if line == "" {
			return fatal(fmt.Errorf("%w: empty answer to %s", protocol.ErrMalformedResponse, text))
		}
		if protocol.IsErrorLine(line) {
			return protocolError(line, text)
		}
		answer = line
		return nil
	})
	return answer, err
}

// fatalError marks a failure after which the stream cannot be trusted
type fatalError struct{ err error }

func (e *fatalError) Error() string { return e.err.Error() }
func (e *fatalError) Unwrap() error { return e.err }

func fatal(err error) error {
	return &fatalError{err: err}
}

// protocolError converts an ERR line. An unrecognized token is returned
// as a parse failure; the stream itself is still in step.
func protocolError(line, query string) error {
	pe, err := protocol.ParseError(line, query)
	if err != nil {
		return fmt.Errorf("%s: %w", query, err)
	}
	return pe
}

// exchange writes text and lets handle read the answer lines, holding the
// connection for the whole exchange. Transport failures and fatal errors
// close the connection; the state listener hears about it once the
// connection lock is released.
func (c *Client) exchange(ctx context.Context, text string, handle func(read func() (string, error)) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dropped, err := c.exchangeLocked(ctx, text, handle)
	if dropped {
		c.notifyLost()
	}
	return err
}

func (c *Client) exchangeLocked(ctx context.Context, text string, handle func(read func() (string, error)) error) (dropped bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return false, ErrNotConnected
	}

	disarm := c.arm(ctx)
	defer disarm()

	if logger.WireDebug() {
		c.logger.Debug("%s <- %q", c.config.Address, text)
	}
	if _, err := io.WriteString(c.conn, text+protocol.NewLine); err != nil {
		err = c.transportError(ctx, "write", err)
		return c.drop(err), err
	}

	scanner := c.scanner
	read := func() (string, error) {
		if !scanner.Scan() {
			err := scanner.Err()
			if err == nil {
				err = io.EOF
			}
			return "", fatal(c.transportError(ctx, "read", err))
		}
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if logger.WireDebug() {
			c.logger.Debug("%s -> %q", c.config.Address, line)
		}
		return line, nil
	}

	err = handle(read)
	if fe, ok := err.(*fatalError); ok {
		return c.drop(fe.err), fe.err
	}
	return false, err
}

func (c *Client) transportError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s %s: %w", op, c.config.Address, ctxErr)
	}
	return fmt.Errorf("%s %s: %w", op, c.config.Address, err)
}
