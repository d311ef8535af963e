// Package protocol implements the line codec of the NUT network protocol:
// query tokenization and rendering, framed list responses and the ERR
// token taxonomy shared by server and client.
package protocol

const (
	// DefaultPort is the IANA-registered NUT port
	DefaultPort = 3493

	// NetworkVersion is the protocol revision reported by NETVER
	NetworkVersion = "1.2"

	// NewLine terminates every line in both directions
	NewLine = "\n"

	// ErrorPrefix starts every error response
	ErrorPrefix = "ERR "

	// MaxLineLength bounds a single received line
	MaxLineLength = 4096
)

// Commands understood by the server
const (
	CommandVer      = "VER"
	CommandNetVer   = "NETVER"
	CommandUsername = "USERNAME"
	CommandPassword = "PASSWORD"
	CommandLogin    = "LOGIN"
	CommandLogout   = "LOGOUT"
	CommandGet      = "GET"
	CommandList     = "LIST"
	CommandSet      = "SET"
	CommandInstCmd  = "INSTCMD"
)

// Subjects of GET, LIST and SET queries
const (
	SubjectNumLogins = "NUMLOGINS"
	SubjectUPSDesc   = "UPSDESC"
	SubjectVar       = "VAR"
	SubjectType      = "TYPE"
	SubjectDesc      = "DESC"
	SubjectCmdDesc   = "CMDDESC"
	SubjectUPS       = "UPS"
	SubjectRW        = "RW"
	SubjectCmd       = "CMD"
	SubjectClient    = "CLIENT"
	SubjectEnum      = "ENUM"
	SubjectRange     = "RANGE"
)

// Fixed response texts
const (
	ResponseOK      = "OK"
	ResponseGoodbye = "OK Goodbye"
	listBegin       = "BEGIN "
	listEnd         = "END "
)

// Type tokens reported by GET TYPE
const (
	TypeRW     = "RW"
	TypeEnum   = "ENUM"
	TypeRange  = "RANGE"
	TypeString = "STRING"
	TypeNumber = "NUMBER"
)

var commands = map[string]bool{
	CommandVer:      true,
	CommandNetVer:   true,
	CommandUsername: true,
	CommandPassword: true,
	CommandLogin:    true,
	CommandLogout:   true,
	CommandGet:      true,
	CommandList:     true,
	CommandSet:      true,
	CommandInstCmd:  true,
}

// IsCommand returns true if name is in the command vocabulary
func IsCommand(name string) bool {
	return commands[name]
}

// IsGetSubject returns true if s is a valid GET subject
func IsGetSubject(s string) bool {
	switch s {
	case SubjectNumLogins, SubjectUPSDesc, SubjectVar, SubjectType, SubjectDesc, SubjectCmdDesc:
		return true
	}
	return false
}

// IsListSubject returns true if s is a valid LIST subject
func IsListSubject(s string) bool {
	switch s {
	case SubjectUPS, SubjectVar, SubjectRW, SubjectCmd, SubjectClient, SubjectEnum, SubjectRange:
		return true
	}
	return false
}
