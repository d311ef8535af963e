package client

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"avaneesh/nut-go/pkg/cache"
	"avaneesh/nut-go/pkg/protocol"
	"avaneesh/nut-go/pkg/types"
)

// UPS is a server-side UPS as seen through a client
type UPS struct {
	client *Client
	name   string

	mu          sync.RWMutex
	description string

	loggedIn atomic.Bool
}

// VariableType is the decoded answer to GET TYPE
type VariableType struct {
	Flags      types.VarFlags
	MaxLength  int // STRING:<n>, 0 for numbers
	Enumerated bool
	Ranged     bool
}

func newUPS(c *Client, name string) *UPS {
	return &UPS{client: c, name: name}
}

// Name returns the UPS name
func (u *UPS) Name() string {
	return u.name
}

// Description returns the description from the last LIST UPS
func (u *UPS) Description() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.description
}

func (u *UPS) setDescription(desc string) {
	u.mu.Lock()
	u.description = desc
	u.mu.Unlock()
}

// IsLoggedIn returns true after a successful Login on this connection
func (u *UPS) IsLoggedIn() bool {
	return u.loggedIn.Load()
}

func (u *UPS) key(kind cache.Kind, param string) cache.Key {
	return cache.Key{Server: u.client.config.Address, UPS: u.name, Kind: kind, Param: param}
}

func (u *UPS) list(ctx context.Context, kind cache.Kind, subject, param string, force bool) (cache.Rows, error) {
	return u.client.cachedList(ctx, u.key(kind, param), subject, u.name, param, force)
}

// get sends GET <subject> <ups> [item] and checks the echoed prefix
func (u *UPS) get(ctx context.Context, subject, item string, want int) ([]string, error) {
	args := []string{subject, u.name}
	if item != "" {
		args = append(args, item)
	}
	tokens, err := u.client.SimpleQuery(ctx, protocol.Render(protocol.CommandGet, args...))
	if err != nil {
		return nil, err
	}
	if len(tokens) < want || tokens[0] != subject || tokens[1] != u.name || (item != "" && tokens[2] != item) {
		return nil, malformedRow(tokens)
	}
	return tokens, nil
}

// Login registers this connection as dependent on the UPS. The server
// requires USERNAME and PASSWORD first.
func (u *UPS) Login(ctx context.Context) error {
	if _, err := u.client.SimpleQuery(ctx, protocol.Render(protocol.CommandLogin, u.name)); err != nil {
		return err
	}
	u.loggedIn.Store(true)
	return nil
}

// NumLogins returns the number of clients logged in to the UPS
func (u *UPS) NumLogins(ctx context.Context) (int, error) {
	tokens, err := u.get(ctx, protocol.SubjectNumLogins, "", 3)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(tokens[2])
	if err != nil {
		return 0, malformedRow(tokens)
	}
	return n, nil
}

// GetVariable returns one variable. A cached value is served unless force is set.
func (u *UPS) GetVariable(ctx context.Context, name string, force bool) (*types.Variable, error) {
	key := u.key(cache.KindVar, name)
	if !force {
		rows, ok, err := u.client.cache.Get(ctx, key)
		if err == nil && ok && len(rows) == 1 {
			return variableFromRow(rows[0], types.FlagNone)
		}
	}

	tokens, err := u.get(ctx, protocol.SubjectVar, name, 4)
	if err != nil {
		return nil, err
	}
	if err := u.client.cache.Set(ctx, key, cache.Rows{tokens}); err != nil {
		u.client.logger.Warn("Client %s: cache write %s failed: %v", u.client.config.ID, key, err)
	}
	return variableFromRow(tokens, types.FlagNone)
}

// GetVariables returns every variable of the UPS. Flags are not part of
// the listing; use GetVariableType for them.
func (u *UPS) GetVariables(ctx context.Context, force bool) ([]*types.Variable, error) {
	rows, err := u.list(ctx, cache.KindVar, protocol.SubjectVar, "", force)
	if err != nil {
		return nil, err
	}
	return variablesFromRows(rows, types.FlagNone)
}

// GetRewritables returns the variables flagged RW
func (u *UPS) GetRewritables(ctx context.Context, force bool) ([]*types.Variable, error) {
	rows, err := u.list(ctx, cache.KindRW, protocol.SubjectRW, "", force)
	if err != nil {
		return nil, err
	}
	return variablesFromRows(rows, types.FlagRW)
}

// GetCommands returns the instant command names
func (u *UPS) GetCommands(ctx context.Context, force bool) ([]string, error) {
	rows, err := u.list(ctx, cache.KindCmd, protocol.SubjectCmd, "", force)
	if err != nil {
		return nil, err
	}
	return column(rows, 2, 3)
}

// GetCommandDescription returns the description of an instant command
func (u *UPS) GetCommandDescription(ctx context.Context, command string) (string, error) {
	tokens, err := u.get(ctx, protocol.SubjectCmdDesc, command, 4)
	if err != nil {
		return "", err
	}
	return tokens[3], nil
}

// GetEnumerations returns the allowed values of a variable
func (u *UPS) GetEnumerations(ctx context.Context, name string, force bool) ([]string, error) {
	rows, err := u.list(ctx, cache.KindEnum, protocol.SubjectEnum, name, force)
	if err != nil {
		return nil, err
	}
	return column(rows, 3, 4)
}

// GetRanges returns the allowed numeric ranges of a variable
func (u *UPS) GetRanges(ctx context.Context, name string, force bool) ([]types.Range, error) {
	rows, err := u.list(ctx, cache.KindRange, protocol.SubjectRange, name, force)
	if err != nil {
		return nil, err
	}

	ranges := make([]types.Range, 0, len(rows))
	for _, row := range rows {
		if len(row) != 5 {
			return nil, malformedRow(row)
		}
		lo, err1 := strconv.Atoi(row[3])
		hi, err2 := strconv.Atoi(row[4])
		if err1 != nil || err2 != nil {
			return nil, malformedRow(row)
		}
		ranges = append(ranges, types.Range{Min: lo, Max: hi})
	}
	return ranges, nil
}

// GetClients returns the addresses logged in to the UPS
func (u *UPS) GetClients(ctx context.Context, force bool) ([]string, error) {
	rows, err := u.list(ctx, cache.KindClient, protocol.SubjectClient, "", force)
	if err != nil {
		return nil, err
	}
	return column(rows, 2, 3)
}

// GetVariableType decodes GET TYPE
func (u *UPS) GetVariableType(ctx context.Context, name string) (VariableType, error) {
	tokens, err := u.get(ctx, protocol.SubjectType, name, 4)
	if err != nil {
		return VariableType{}, err
	}

	var vt VariableType
	for _, tok := range tokens[3:] {
		switch {
		case tok == protocol.TypeRW:
			vt.Flags |= types.FlagRW
		case tok == protocol.TypeEnum:
			vt.Enumerated = true
		case tok == protocol.TypeRange:
			vt.Ranged = true
		case tok == protocol.TypeNumber:
			vt.Flags |= types.FlagNumber
		case tok == protocol.TypeString || strings.HasPrefix(tok, protocol.TypeString+":"):
			vt.Flags |= types.FlagString
			if _, n, ok := strings.Cut(tok, ":"); ok {
				if vt.MaxLength, err = strconv.Atoi(n); err != nil {
					return VariableType{}, malformedRow(tokens)
				}
			}
		default:
			return VariableType{}, fmt.Errorf("%w: unknown type %q", protocol.ErrMalformedResponse, tok)
		}
	}
	return vt, nil
}

// GetVariableDescription returns the description of a variable
func (u *UPS) GetVariableDescription(ctx context.Context, name string) (string, error) {
	tokens, err := u.get(ctx, protocol.SubjectDesc, name, 4)
	if err != nil {
		return "", err
	}
	return tokens[3], nil
}

// SetVariable writes a variable, then refreshes the cached RW list since
// the server holds the authoritative value.
func (u *UPS) SetVariable(ctx context.Context, name, value string) error {
	query := protocol.Render(protocol.CommandSet, protocol.SubjectVar, u.name, name, value)
	if _, err := u.client.SimpleQuery(ctx, query); err != nil {
		return err
	}

	u.client.invalidate(ctx, u.key(cache.KindVar, name))
	u.client.invalidate(ctx, u.key(cache.KindVar, ""))
	if _, err := u.GetRewritables(ctx, true); err != nil {
		return fmt.Errorf("refresh after SET %s: %w", name, err)
	}
	return nil
}

// DoInstantCommand runs an instant command
func (u *UPS) DoInstantCommand(ctx context.Context, command string) error {
	_, err := u.client.SimpleQuery(ctx, protocol.Render(protocol.CommandInstCmd, u.name, command))
	return err
}

// DoInstantCommandValue runs an instant command that takes a parameter
func (u *UPS) DoInstantCommandValue(ctx context.Context, command, value string) error {
	_, err := u.client.SimpleQuery(ctx, protocol.Render(protocol.CommandInstCmd, u.name, command, value))
	return err
}

func (u *UPS) String() string {
	return fmt.Sprintf("%s %q", u.name, u.Description())
}

func malformedRow(row []string) error {
	return fmt.Errorf("%w: %q", protocol.ErrMalformedResponse, row)
}

// variableFromRow builds a variable from "<KIND> <ups> <name> <value>"
func variableFromRow(row []string, flags types.VarFlags) (*types.Variable, error) {
	if len(row) != 4 {
		return nil, malformedRow(row)
	}
	v, err := types.NewVariable(row[2], flags)
	if err != nil {
		return nil, err
	}
	if err := v.SetValue(row[3]); err != nil {
		return nil, err
	}
	return v, nil
}

func variablesFromRows(rows cache.Rows, flags types.VarFlags) ([]*types.Variable, error) {
	vars := make([]*types.Variable, 0, len(rows))
	for _, row := range rows {
		v, err := variableFromRow(row, flags)
		if err != nil {
			return nil, err
		}
		vars = append(vars, v)
	}
	return vars, nil
}

// column picks field i from rows that must have exactly width fields
func column(rows cache.Rows, i, width int) ([]string, error) {
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		if len(row) != width {
			return nil, malformedRow(row)
		}
		out = append(out, row[i])
	}
	return out, nil
}
