package protocol

import (
	"errors"
	"strings"
)

var (
	ErrEmptyQuery       = errors.New("empty query")
	ErrUnbalancedQuotes = errors.New("unbalanced quotes")
	ErrLineTooLong      = errors.New("line too long")
)

// Query is one tokenized protocol line
type Query struct {
	Command string
	Args    []string
}

// NewQuery builds a query from a command and its arguments
func NewQuery(command string, args ...string) Query {
	return Query{Command: command, Args: args}
}

// Parse tokenizes a line. Tokens are separated by spaces; a double-quoted
// substring is one token with the quotes removed and \" or \\ unescaped.
// Unknown commands parse successfully.
func Parse(line string) (Query, error) {
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	if len(line) > MaxLineLength {
		return Query{}, ErrLineTooLong
	}

	tokens, err := Tokenize(line)
	if err != nil {
		return Query{}, err
	}
	if len(tokens) == 0 {
		return Query{}, ErrEmptyQuery
	}
	return Query{Command: tokens[0], Args: tokens[1:]}, nil
}

// Tokenize splits a line into tokens following the quoting rules of Parse
func Tokenize(line string) ([]string, error) {
	var (
		tokens  []string
		current strings.Builder
		inQuote bool
		quoted  bool
		escaped bool
	)

	flush := func() {
		if current.Len() > 0 || quoted {
			tokens = append(tokens, current.String())
		}
		current.Reset()
		quoted = false
	}

	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case escaped:
			current.WriteByte(c)
			escaped = false
		case inQuote && c == '\\':
			escaped = true
		case c == '"':
			inQuote = !inQuote
			quoted = true
		case !inQuote && (c == ' ' || c == '\t'):
			flush()
		default:
			current.WriteByte(c)
		}
	}

	if inQuote || escaped {
		return nil, ErrUnbalancedQuotes
	}
	flush()
	return tokens, nil
}

// Known returns true if the command is in the protocol vocabulary
func (q Query) Known() bool {
	return IsCommand(q.Command)
}

// Arg returns the i-th argument or "" if absent
func (q Query) Arg(i int) string {
	if i < 0 || i >= len(q.Args) {
		return ""
	}
	return q.Args[i]
}

// String renders the query as it is sent on the wire, without the newline
func (q Query) String() string {
	return Render(q.Command, q.Args...)
}

// Render joins a command and its arguments, quoting arguments that need it
func Render(command string, args ...string) string {
	var b strings.Builder
	b.WriteString(command)
	for _, a := range args {
		b.WriteByte(' ')
		if needsQuoting(a) {
			b.WriteString(Quote(a))
		} else {
			b.WriteString(a)
		}
	}
	return b.String()
}

// Quote wraps s in double quotes, escaping quotes and backslashes
func Quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		if s[i] == '"' || s[i] == '\\' {
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	b.WriteByte('"')
	return b.String()
}

func needsQuoting(s string) bool {
	if s == "" {
		return true
	}
	return strings.ContainsAny(s, " \t\"\\")
}
