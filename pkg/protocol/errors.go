package protocol

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownErrorToken = errors.New("unknown error token")
	ErrMalformedResponse = errors.New("malformed response")
)

// ErrorCode enumerates the ERR tokens of the protocol
type ErrorCode int

const (
	ErrorCodeAccessDenied ErrorCode = iota
	ErrorCodeUnknownUPS
	ErrorCodeVarNotSupported
	ErrorCodeCmdNotSupported
	ErrorCodeInvalidArgument
	ErrorCodeInstCmdFailed
	ErrorCodeSetFailed
	ErrorCodeReadOnly
	ErrorCodeTooLong
	ErrorCodeFeatureNotSupported
	ErrorCodeFeatureNotConfigured
	ErrorCodeAlreadySSLMode
	ErrorCodeDriverNotConnected
	ErrorCodeDataStale
	ErrorCodeAlreadyLoggedIn
	ErrorCodeInvalidPassword
	ErrorCodeAlreadySetPassword
	ErrorCodeInvalidUsername
	ErrorCodeAlreadySetUsername
	ErrorCodeUsernameRequired
	ErrorCodePasswordRequired
	ErrorCodeUnknownCommand
	ErrorCodeInvalidValue
)

var errorTokens = [...]string{
	ErrorCodeAccessDenied:         "ACCESS-DENIED",
	ErrorCodeUnknownUPS:           "UNKNOWN-UPS",
	ErrorCodeVarNotSupported:      "VAR-NOT-SUPPORTED",
	ErrorCodeCmdNotSupported:      "CMD-NOT-SUPPORTED",
	ErrorCodeInvalidArgument:      "INVALID-ARGUMENT",
	ErrorCodeInstCmdFailed:        "INSTCMD-FAILED",
	ErrorCodeSetFailed:            "SET-FAILED",
	ErrorCodeReadOnly:             "READ-ONLY",
	ErrorCodeTooLong:              "TOO-LONG",
	ErrorCodeFeatureNotSupported:  "FEATURE-NOT-SUPPORTED",
	ErrorCodeFeatureNotConfigured: "FEATURE-NOT-CONFIGURED",
	ErrorCodeAlreadySSLMode:       "ALREADY-SSL-MODE",
	ErrorCodeDriverNotConnected:   "DRIVER-NOT-CONNECTED",
	ErrorCodeDataStale:            "DATA-STALE",
	ErrorCodeAlreadyLoggedIn:      "ALREADY-LOGGED-IN",
	ErrorCodeInvalidPassword:      "INVALID-PASSWORD",
	ErrorCodeAlreadySetPassword:   "ALREADY-SET-PASSWORD",
	ErrorCodeInvalidUsername:      "INVALID-USERNAME",
	ErrorCodeAlreadySetUsername:   "ALREADY-SET-USERNAME",
	ErrorCodeUsernameRequired:     "USERNAME-REQUIRED",
	ErrorCodePasswordRequired:     "PASSWORD-REQUIRED",
	ErrorCodeUnknownCommand:       "UNKNOWN-COMMAND",
	ErrorCodeInvalidValue:         "INVALID-VALUE",
}

// codesByName maps the hyphen-free token onto its code
var codesByName = func() map[string]ErrorCode {
	m := make(map[string]ErrorCode, len(errorTokens))
	for code, token := range errorTokens {
		m[strings.ReplaceAll(token, "-", "")] = ErrorCode(code)
	}
	return m
}()

// String returns the wire token, e.g. "UNKNOWN-UPS"
func (c ErrorCode) String() string {
	if c < 0 || int(c) >= len(errorTokens) {
		return "UNKNOWN"
	}
	return errorTokens[c]
}

// Line renders the full error response line without the newline
func (c ErrorCode) Line() string {
	return ErrorPrefix + c.String()
}

// ParseErrorCode maps a token such as "ALREADY-LOGGED-IN" onto its code.
// Hyphens are ignored and matching is case-sensitive.
func ParseErrorCode(token string) (ErrorCode, error) {
	code, ok := codesByName[strings.ReplaceAll(token, "-", "")]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownErrorToken, token)
	}
	return code, nil
}

// Error is an ERR response received for a query
type Error struct {
	Code  ErrorCode
	Raw   string // full response line
	Extra string // text following the token, if any
	Query string // query that produced the error
}

// ParseError decodes an "ERR <TOKEN> [extra]" line
func ParseError(line, query string) (*Error, error) {
	if !IsErrorLine(line) {
		return nil, fmt.Errorf("%w: not an error line: %q", ErrMalformedResponse, line)
	}
	rest := strings.TrimPrefix(line, ErrorPrefix)
	token, extra, _ := strings.Cut(rest, " ")
	code, err := ParseErrorCode(token)
	if err != nil {
		return nil, err
	}
	return &Error{Code: code, Raw: line, Extra: extra, Query: query}, nil
}

// IsErrorLine returns true if line is an ERR response
func IsErrorLine(line string) bool {
	return strings.HasPrefix(line, ErrorPrefix)
}

func (e *Error) Error() string {
	if e.Query == "" {
		return "nut: " + e.Code.String()
	}
	return fmt.Sprintf("nut: %s: %s", e.Query, e.Code)
}

// Is matches another *Error with the same code
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewError returns an *Error usable as an errors.Is target
func NewError(code ErrorCode) *Error {
	return &Error{Code: code, Raw: code.Line()}
}

// CodeOf extracts the protocol error code from err
func CodeOf(err error) (ErrorCode, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code, true
	}
	return 0, false
}
