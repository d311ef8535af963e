package protocol

import (
	"errors"
	"slices"
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		command string
		args    []string
		wantErr error
	}{
		{"bare command", "VER\n", "VER", nil, nil},
		{"crlf", "NETVER\r\n", "NETVER", nil, nil},
		{"args", "GET VAR ups1 battery.charge", "GET", []string{"VAR", "ups1", "battery.charge"}, nil},
		{"quoted arg", `SET VAR ups1 ups.id "Server Room"`, "SET", []string{"VAR", "ups1", "ups.id", "Server Room"}, nil},
		{"empty quoted arg", `SET VAR ups1 ups.id ""`, "SET", []string{"VAR", "ups1", "ups.id", ""}, nil},
		{"escaped quote", `SET VAR u v "say \"hi\""`, "SET", []string{"VAR", "u", "v", `say "hi"`}, nil},
		{"repeated spaces", "LIST  UPS", "LIST", []string{"UPS"}, nil},
		{"unknown command", "STARTTLS", "STARTTLS", nil, nil},
		{"empty line", "\n", "", nil, ErrEmptyQuery},
		{"spaces only", "   ", "", nil, ErrEmptyQuery},
		{"unbalanced", `USERNAME "bob`, "", nil, ErrUnbalancedQuotes},
		{"too long", strings.Repeat("A", MaxLineLength+1), "", nil, ErrLineTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := Parse(tt.line)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Parse(%q) error = %v, want %v", tt.line, err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if q.Command != tt.command {
				t.Errorf("Command = %q, want %q", q.Command, tt.command)
			}
			if !slices.Equal(q.Args, tt.args) && !(len(q.Args) == 0 && len(tt.args) == 0) {
				t.Errorf("Args = %q, want %q", q.Args, tt.args)
			}
		})
	}
}

func TestQuery_Known(t *testing.T) {
	for _, cmd := range []string{"VER", "NETVER", "USERNAME", "PASSWORD", "LOGIN", "LOGOUT", "GET", "LIST", "SET", "INSTCMD"} {
		if !NewQuery(cmd).Known() {
			t.Errorf("%s should be known", cmd)
		}
	}
	for _, cmd := range []string{"ver", "STARTTLS", "FSD", "HELP"} {
		if NewQuery(cmd).Known() {
			t.Errorf("%s should be unknown", cmd)
		}
	}
}

func TestRenderRoundTrip(t *testing.T) {
	lines := []string{
		"VER",
		"LIST UPS",
		"GET VAR TestUPS1 battery.charge",
		"LIST ENUM TestUPS1 input.transfer.low",
		"INSTCMD TestUPS1 test.battery.start",
	}

	for _, line := range lines {
		q, err := Parse(line)
		if err != nil {
			t.Fatalf("Parse(%q) error = %v", line, err)
		}
		if got := q.String(); got != line {
			t.Errorf("Render(Parse(%q)) = %q", line, got)
		}
	}
}

func TestRenderQuoting(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"VAR", "u", "v", "a b"}, `SET VAR u v "a b"`},
		{[]string{"VAR", "u", "v", ""}, `SET VAR u v ""`},
		{[]string{"VAR", "u", "v", `q"t`}, `SET VAR u v "q\"t"`},
		{[]string{"VAR", "u", "v", `c:\x`}, `SET VAR u v "c:\\x"`},
	}

	for _, tt := range tests {
		got := Render(CommandSet, tt.args...)
		if got != tt.want {
			t.Errorf("Render() = %s, want %s", got, tt.want)
		}
		q, err := Parse(got)
		if err != nil {
			t.Fatalf("Parse(%q) error = %v", got, err)
		}
		if q.String() != got {
			t.Errorf("re-render of %q = %q", got, q.String())
		}
		if q.Arg(3) != tt.args[3] {
			t.Errorf("Arg(3) = %q, want %q", q.Arg(3), tt.args[3])
		}
	}
}

func TestQuery_Arg(t *testing.T) {
	q := NewQuery("GET", "VAR", "ups")
	if q.Arg(0) != "VAR" || q.Arg(1) != "ups" || q.Arg(2) != "" || q.Arg(-1) != "" {
		t.Errorf("Arg() returned unexpected values for %v", q)
	}
}
