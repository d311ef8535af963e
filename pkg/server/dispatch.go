package server

import (
	"errors"
	"strconv"
	"strings"

	"avaneesh/nut-go/pkg/protocol"
	"avaneesh/nut-go/pkg/types"
)

// handle answers one received line. The response includes its trailing
// newline(s); closeAfter ends the session once it has been written.
func (sess *session) handle(line string) (response string, closeAfter bool) {
	q, err := protocol.Parse(line)
	if err != nil {
		if !sess.authorized {
			return sess.fail(protocol.ErrorCodeAccessDenied), false
		}
		if errors.Is(err, protocol.ErrEmptyQuery) {
			return sess.fail(protocol.ErrorCodeUnknownCommand), false
		}
		return sess.fail(protocol.ErrorCodeInvalidArgument), false
	}

	if !sess.authorized && q.Command != protocol.CommandLogout {
		return sess.fail(protocol.ErrorCodeAccessDenied), false
	}
	if !q.Known() {
		sess.logger.Debug("Server %s: unknown command %q from %s", sess.server.config.ID, q.Command, sess.client.addr)
		return sess.fail(protocol.ErrorCodeUnknownCommand), false
	}

	switch q.Command {
	case protocol.CommandVer:
		return ok(sess.server.config.Version), false
	case protocol.CommandNetVer:
		return ok(protocol.NetworkVersion), false
	case protocol.CommandUsername:
		return sess.setUsername(q.Args), false
	case protocol.CommandPassword:
		return sess.setPassword(q.Args), false
	case protocol.CommandLogin:
		return sess.login(q.Args), false
	case protocol.CommandLogout:
		return sess.logout(q.Args)
	case protocol.CommandGet:
		return sess.get(q.Args), false
	case protocol.CommandList:
		return sess.list(q.Args), false
	case protocol.CommandSet:
		return sess.set(q.Args), false
	case protocol.CommandInstCmd:
		return sess.instCmd(q.Args), false
	default:
		return sess.fail(protocol.ErrorCodeUnknownCommand), false
	}
}

func ok(line string) string {
	return line + protocol.NewLine
}

func (sess *session) fail(code protocol.ErrorCode) string {
	sess.server.stats.errorResponses.Add(1)
	return code.Line() + protocol.NewLine
}

// singleArg returns the only argument, or false if there is not exactly one non-blank
func singleArg(args []string) (string, bool) {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		return "", false
	}
	return args[0], true
}

func (sess *session) setUsername(args []string) string {
	name, valid := singleArg(args)
	if !valid {
		return sess.fail(protocol.ErrorCodeInvalidArgument)
	}
	if sess.username != "" {
		return sess.fail(protocol.ErrorCodeAlreadySetUsername)
	}
	sess.username = name
	return ok(protocol.ResponseOK)
}

func (sess *session) setPassword(args []string) string {
	pass, valid := singleArg(args)
	if !valid {
		return sess.fail(protocol.ErrorCodeInvalidArgument)
	}
	if sess.password != "" {
		return sess.fail(protocol.ErrorCodeAlreadySetPassword)
	}
	sess.password = pass
	return ok(protocol.ResponseOK)
}

func (sess *session) login(args []string) string {
	name, valid := singleArg(args)
	if !valid {
		return sess.fail(protocol.ErrorCodeInvalidArgument)
	}
	if sess.username == "" || sess.password == "" {
		return sess.fail(protocol.ErrorCodeAccessDenied)
	}
	ups, err := sess.server.registry.Get(name)
	if err != nil {
		return sess.fail(protocol.ErrorCodeUnknownUPS)
	}
	if err := ups.Login(sess.client.host()); err != nil {
		return sess.fail(protocol.ErrorCodeAlreadyLoggedIn)
	}
	sess.loggedIn = true

	sess.server.stats.logins.Add(1)
	sess.logger.Info("Server %s: %s logged into UPS %s as %s", sess.server.config.ID, sess.client.addr, name, sess.username)
	return ok(protocol.ResponseOK)
}

func (sess *session) logout(args []string) (string, bool) {
	if len(args) > 0 {
		return sess.fail(protocol.ErrorCodeInvalidArgument), false
	}
	for _, name := range sess.server.registry.LogoutEverywhere(sess.client.host()) {
		sess.logger.Info("Server %s: %s logged out of UPS %s", sess.server.config.ID, sess.client.addr, name)
	}
	sess.loggedIn = false
	return ok(protocol.ResponseGoodbye), true
}

// get answers GET <subject> <ups> [item]
func (sess *session) get(args []string) string {
	if len(args) < 2 || !protocol.IsGetSubject(args[0]) {
		return sess.fail(protocol.ErrorCodeInvalidArgument)
	}
	subject, upsName := args[0], args[1]

	switch subject {
	case protocol.SubjectNumLogins, protocol.SubjectUPSDesc:
		if len(args) != 2 {
			return sess.fail(protocol.ErrorCodeInvalidArgument)
		}
	default:
		if len(args) != 3 {
			return sess.fail(protocol.ErrorCodeInvalidArgument)
		}
	}

	ups, err := sess.server.registry.Get(upsName)
	if err != nil {
		return sess.fail(protocol.ErrorCodeUnknownUPS)
	}

	switch subject {
	case protocol.SubjectNumLogins:
		return ok(protocol.Render(subject, upsName, strconv.Itoa(ups.NumLogins())))
	case protocol.SubjectUPSDesc:
		return ok(protocol.ValueRow(subject, upsName, "", ups.Description()))
	case protocol.SubjectCmdDesc:
		desc, err := ups.Command(args[2])
		if err != nil || desc == "" {
			desc = types.NullText
		}
		return ok(protocol.ValueRow(subject, upsName, args[2], desc))
	}

	v, err := ups.Variable(args[2])
	if err != nil {
		return sess.fail(protocol.ErrorCodeVarNotSupported)
	}

	switch subject {
	case protocol.SubjectVar:
		return ok(protocol.ValueRow(subject, upsName, v.Name(), v.Value()))
	case protocol.SubjectType:
		return ok(protocol.Render(subject, append([]string{upsName, v.Name()}, typeTokens(v)...)...))
	default: // DESC
		desc := v.Description()
		if strings.TrimSpace(desc) == "" {
			desc = types.NullText
		}
		return ok(protocol.ValueRow(subject, upsName, v.Name(), desc))
	}
}

// typeTokens builds the GET TYPE flag list. Anything that is not a
// string is reported as NUMBER.
func typeTokens(v *types.Variable) []string {
	var tokens []string
	flags := v.Flags()
	if flags.IsRW() {
		tokens = append(tokens, protocol.TypeRW)
	}
	if len(v.Enumerations()) > 0 {
		tokens = append(tokens, protocol.TypeEnum)
	}
	if len(v.Ranges()) > 0 {
		tokens = append(tokens, protocol.TypeRange)
	}
	if flags.IsString() {
		length := v.MaxLength()
		if length == 0 {
			length = len(v.Value())
		}
		return append(tokens, protocol.TypeString+":"+strconv.Itoa(length))
	}
	return append(tokens, protocol.TypeNumber)
}

// list answers LIST <subject> [ups] [item] with a framed block
func (sess *session) list(args []string) string {
	if len(args) == 0 || !protocol.IsListSubject(args[0]) {
		return sess.fail(protocol.ErrorCodeInvalidArgument)
	}
	subject := args[0]

	if subject == protocol.SubjectUPS {
		if len(args) != 1 {
			return sess.fail(protocol.ErrorCodeInvalidArgument)
		}
		var rows []string
		for _, u := range sess.server.registry.List() {
			rows = append(rows, protocol.ValueRow(subject, u.Name(), "", u.Description()))
		}
		return protocol.Frame(protocol.ListQuery(subject, "", ""), rows)
	}

	switch subject {
	case protocol.SubjectEnum, protocol.SubjectRange:
		if len(args) != 3 {
			return sess.fail(protocol.ErrorCodeInvalidArgument)
		}
	default:
		if len(args) != 2 {
			return sess.fail(protocol.ErrorCodeInvalidArgument)
		}
	}

	upsName := args[1]
	ups, err := sess.server.registry.Get(upsName)
	if err != nil {
		return sess.fail(protocol.ErrorCodeUnknownUPS)
	}

	var rows []string
	switch subject {
	case protocol.SubjectVar:
		for _, v := range ups.Variables() {
			rows = append(rows, protocol.ValueRow(subject, upsName, v.Name(), v.Value()))
		}
	case protocol.SubjectRW:
		for _, v := range ups.Rewritables() {
			rows = append(rows, protocol.ValueRow(subject, upsName, v.Name(), v.Value()))
		}
	case protocol.SubjectCmd:
		for _, cmd := range ups.Commands() {
			rows = append(rows, protocol.Render(subject, upsName, cmd))
		}
	case protocol.SubjectClient:
		for _, addr := range ups.Clients() {
			rows = append(rows, protocol.Render(subject, upsName, addr))
		}
	case protocol.SubjectEnum:
		if v, err := ups.Variable(args[2]); err == nil {
			for _, e := range v.Enumerations() {
				rows = append(rows, protocol.ValueRow(subject, upsName, v.Name(), e))
			}
		}
	case protocol.SubjectRange:
		if v, err := ups.Variable(args[2]); err == nil {
			for _, r := range v.Ranges() {
				rows = append(rows, protocol.Render(subject, upsName, v.Name())+" "+
					protocol.Quote(strconv.Itoa(r.Min))+" "+protocol.Quote(strconv.Itoa(r.Max)))
			}
		}
	}

	param := ""
	if len(args) == 3 {
		param = args[2]
	}
	return protocol.Frame(protocol.ListQuery(subject, upsName, param), rows)
}

// set answers SET VAR <ups> <var> <value>. The RW flag is deliberately
// not checked: any existing variable can be written.
func (sess *session) set(args []string) string {
	if len(args) != 4 || args[0] != protocol.SubjectVar {
		return sess.fail(protocol.ErrorCodeInvalidArgument)
	}

	ups, err := sess.server.registry.Get(args[1])
	if err != nil {
		return sess.fail(protocol.ErrorCodeVarNotSupported)
	}
	v, err := ups.Variable(args[2])
	if err != nil {
		return sess.fail(protocol.ErrorCodeVarNotSupported)
	}
	if err := v.SetValue(args[3]); err != nil {
		return sess.fail(protocol.ErrorCodeTooLong)
	}

	sess.logger.Debug("Server %s: %s set %s.%s = %q", sess.server.config.ID, sess.client.addr, args[1], args[2], args[3])
	return ok(protocol.ResponseOK)
}

// instCmd answers INSTCMD <ups> <cmd> [value]
func (sess *session) instCmd(args []string) string {
	if len(args) < 2 || len(args) > 3 {
		return sess.fail(protocol.ErrorCodeInvalidArgument)
	}

	ups, err := sess.server.registry.Get(args[0])
	if err != nil {
		return sess.fail(protocol.ErrorCodeUnknownUPS)
	}
	if _, err := ups.Command(args[1]); err != nil {
		return sess.fail(protocol.ErrorCodeCmdNotSupported)
	}

	value := ""
	if len(args) == 3 {
		value = args[2]
	}
	if handler := sess.server.config.InstantCommandHandler; handler != nil {
		if err := handler(ups, args[1], value); err != nil {
			sess.logger.Warn("Server %s: INSTCMD %s on %s failed: %v", sess.server.config.ID, args[1], args[0], err)
			return sess.fail(protocol.ErrorCodeInstCmdFailed)
		}
	}

	sess.logger.Info("Server %s: %s ran %s on UPS %s", sess.server.config.ID, sess.client.addr, args[1], args[0])
	return ok(protocol.ResponseOK)
}
