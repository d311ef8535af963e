package client

import (
	"bufio"
	"context"
	"errors"
	"net"
	"slices"
	"strings"
	"testing"

	"avaneesh/nut-go/pkg/protocol"
)

// scriptedDialer connects to an in-memory peer that answers each query
// line with the scripted text, or closes the connection when the query is
// not in the script or is hangUpAfter.
type scriptedDialer struct {
	script      map[string]string
	hangUpAfter string
}

func (d scriptedDialer) Dial(ctx context.Context, address string) (net.Conn, error) {
	client, peer := net.Pipe()
	go func() {
		defer peer.Close()
		scanner := bufio.NewScanner(peer)
		for scanner.Scan() {
			query := scanner.Text()
			answer, ok := d.script[query]
			if !ok {
				return
			}
			if _, err := peer.Write([]byte(answer)); err != nil || query == d.hangUpAfter {
				return
			}
		}
	}()
	return client, nil
}

func scriptedClient(t *testing.T, script map[string]string) (*Client, *stateRecorder) {
	t.Helper()
	return hangUpClient(t, script, "")
}

func hangUpClient(t *testing.T, script map[string]string, hangUpAfter string) (*Client, *stateRecorder) {
	t.Helper()
	full := map[string]string{
		"VER":    "fake upsd\n",
		"NETVER": "1.2\n",
	}
	for k, v := range script {
		full[k] = v
	}

	rec := &stateRecorder{}
	c, err := New(ClientConfig{Address: "fake", Dialer: scriptedDialer{script: full, hangUpAfter: hangUpAfter}, StateListener: rec}, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := c.Connect(testContext(t)); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c, rec
}

func TestSimpleQuery(t *testing.T) {
	c, _ := scriptedClient(t, map[string]string{
		"GET VAR ups1 ups.status": "VAR ups1 ups.status \"OL CHRG\"\n",
		"GET VAR ups1 missing":    "ERR VAR-NOT-SUPPORTED\n",
		"GET VAR ups1 odd":        "ERR SOMETHING-NEW\n",
	})
	ctx := testContext(t)

	tokens, err := c.SimpleQuery(ctx, "GET VAR ups1 ups.status")
	if err != nil {
		t.Fatalf("SimpleQuery() error = %v", err)
	}
	if !slices.Equal(tokens, []string{"VAR", "ups1", "ups.status", "OL CHRG"}) {
		t.Errorf("SimpleQuery() = %q", tokens)
	}

	_, err = c.SimpleQuery(ctx, "GET VAR ups1 missing")
	var pe *protocol.Error
	if !errors.As(err, &pe) {
		t.Fatalf("SimpleQuery() error = %v, want *protocol.Error", err)
	}
	if pe.Code != protocol.ErrorCodeVarNotSupported || pe.Query != "GET VAR ups1 missing" || pe.Raw != "ERR VAR-NOT-SUPPORTED" {
		t.Errorf("protocol error = %+v", pe)
	}

	_, err = c.SimpleQuery(ctx, "GET VAR ups1 odd")
	if !errors.Is(err, protocol.ErrUnknownErrorToken) {
		t.Errorf("unknown token error = %v", err)
	}

	// ERR answers leave the connection usable
	if !c.IsConnected() {
		t.Fatal("connection closed after ERR answer")
	}
	if _, err := c.SimpleQuery(ctx, "VER"); err != nil {
		t.Errorf("VER after ERR answer error = %v", err)
	}
}

func TestListQuery(t *testing.T) {
	c, _ := scriptedClient(t, map[string]string{
		"LIST VAR ups1": "BEGIN LIST VAR ups1\n" +
			"VAR ups1 battery.charge \"100\"\n" +
			"VAR ups1 ups.status \"OL\"\n" +
			"END LIST VAR ups1\n",
		"LIST UPS":           "BEGIN LIST UPS\nEND LIST UPS\n",
		"LIST VAR nope":      "ERR UNKNOWN-UPS\n",
		"LIST ENUM ups1 x.y": "BEGIN LIST ENUM ups1 x.y\nENUM ups1 x.y \"a b\"\nEND LIST ENUM ups1 x.y\n",
	})
	ctx := testContext(t)

	rows, err := c.ListQuery(ctx, protocol.SubjectVar, "ups1", "")
	if err != nil {
		t.Fatalf("ListQuery() error = %v", err)
	}
	want := [][]string{
		{"VAR", "ups1", "battery.charge", "100"},
		{"VAR", "ups1", "ups.status", "OL"},
	}
	if len(rows) != len(want) {
		t.Fatalf("ListQuery() = %q", rows)
	}
	for i := range want {
		if !slices.Equal(rows[i], want[i]) {
			t.Errorf("row %d = %q, want %q", i, rows[i], want[i])
		}
	}

	rows, err = c.ListQuery(ctx, protocol.SubjectUPS, "", "")
	if err != nil || len(rows) != 0 {
		t.Errorf("empty LIST UPS = %q, %v", rows, err)
	}

	rows, err = c.ListQuery(ctx, protocol.SubjectEnum, "ups1", "x.y")
	if err != nil || len(rows) != 1 || rows[0][3] != "a b" {
		t.Errorf("LIST ENUM = %q, %v", rows, err)
	}

	_, err = c.ListQuery(ctx, protocol.SubjectVar, "nope", "")
	if code, _ := protocol.CodeOf(err); code != protocol.ErrorCodeUnknownUPS {
		t.Errorf("LIST VAR nope error = %v", err)
	}
	if !c.IsConnected() {
		t.Error("connection closed after ERR answer to LIST")
	}
}

func TestListQuery_FramingViolations(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		hangUp bool
	}{
		{"wrong begin", "BEGIN LIST VAR other\nEND LIST VAR other\n", false},
		{"missing begin", "VAR ups1 a \"1\"\nEND LIST VAR ups1\n", false},
		{"wrong end", "BEGIN LIST VAR ups1\nEND LIST RW ups1\n", false},
		{"wrong row subject", "BEGIN LIST VAR ups1\nRW ups1 a \"1\"\nEND LIST VAR ups1\n", false},
		{"wrong row ups", "BEGIN LIST VAR ups1\nVAR ups2 a \"1\"\nEND LIST VAR ups1\n", false},
		{"unbalanced quotes", "BEGIN LIST VAR ups1\nVAR ups1 a \"1\nEND LIST VAR ups1\n", false},
		{"truncated", "BEGIN LIST VAR ups1\nVAR ups1 a \"1\"\n", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hangUpAfter := ""
			if tt.hangUp {
				hangUpAfter = "LIST VAR ups1"
			}
			c, rec := hangUpClient(t, map[string]string{"LIST VAR ups1": tt.answer}, hangUpAfter)

			_, err := c.ListQuery(testContext(t), protocol.SubjectVar, "ups1", "")
			if err == nil {
				t.Fatal("ListQuery() accepted a bad frame")
			}
			if !tt.hangUp && !errors.Is(err, protocol.ErrMalformedResponse) {
				t.Errorf("ListQuery() error = %v, want ErrMalformedResponse", err)
			}
			if c.IsConnected() {
				t.Error("connection left open after framing violation")
			}
			if rec.lost.Load() != 1 {
				t.Errorf("OnConnectionLost calls = %d, want 1", rec.lost.Load())
			}
		})
	}
}

func TestSimpleQuery_TransportFailure(t *testing.T) {
	c, rec := scriptedClient(t, nil)

	// The scripted peer hangs up on unknown queries
	_, err := c.SimpleQuery(testContext(t), "GET VAR ups1 x")
	if err == nil {
		t.Fatal("SimpleQuery() succeeded on a closed stream")
	}
	var pe *protocol.Error
	if errors.As(err, &pe) {
		t.Errorf("transport failure reported as protocol error: %v", err)
	}
	if c.IsConnected() || rec.lost.Load() != 1 {
		t.Errorf("connected=%v lost=%d after transport failure", c.IsConnected(), rec.lost.Load())
	}
}

func TestQuery_ContextCancelled(t *testing.T) {
	c, _ := scriptedClient(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.SimpleQuery(ctx, "VER")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("SimpleQuery() with cancelled ctx error = %v", err)
	}
	if !c.IsConnected() {
		t.Error("query that never started closed the connection")
	}
}

func TestUPS_MalformedRows(t *testing.T) {
	c, _ := scriptedClient(t, map[string]string{
		"LIST UPS":                "BEGIN LIST UPS\nUPS ups1 \"desc\"\nEND LIST UPS\n",
		"LIST RANGE ups1 v":       "BEGIN LIST RANGE ups1 v\nRANGE ups1 v \"low\" \"10\"\nEND LIST RANGE ups1 v\n",
		"GET NUMLOGINS ups1":      "NUMLOGINS ups1 many\n",
		"GET TYPE ups1 v":         "TYPE ups1 v BLOB\n",
		"GET VAR ups1 v":          "VAR ups2 v \"1\"\n",
		"GET CMDDESC ups1 beeper": "CMDDESC ups1 beeper \"" + strings.Repeat("x", 8) + "\"\n",
	})
	ctx := testContext(t)

	ups, err := c.UPS(ctx, "ups1")
	if err != nil {
		t.Fatalf("UPS() error = %v", err)
	}

	if _, err := ups.GetRanges(ctx, "v", false); !errors.Is(err, protocol.ErrMalformedResponse) {
		t.Errorf("GetRanges() error = %v", err)
	}
	if _, err := ups.NumLogins(ctx); !errors.Is(err, protocol.ErrMalformedResponse) {
		t.Errorf("NumLogins() error = %v", err)
	}
	if _, err := ups.GetVariableType(ctx, "v"); !errors.Is(err, protocol.ErrMalformedResponse) {
		t.Errorf("GetVariableType() error = %v", err)
	}
	if _, err := ups.GetVariable(ctx, "v", true); !errors.Is(err, protocol.ErrMalformedResponse) {
		t.Errorf("GetVariable() error = %v", err)
	}
	if desc, err := ups.GetCommandDescription(ctx, "beeper"); err != nil || desc != "xxxxxxxx" {
		t.Errorf("GetCommandDescription() = %q, %v", desc, err)
	}
}
