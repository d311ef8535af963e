package protocol

import (
	"fmt"
	"strings"
)

// BeginLine returns the opening line of a framed list response
func BeginLine(query string) string {
	return listBegin + query
}

// EndLine returns the closing line of a framed list response
func EndLine(query string) string {
	return listEnd + query
}

// IsEndLine returns true if line closes a framed list
func IsEndLine(line string) bool {
	return strings.HasPrefix(line, listEnd)
}

// ListQuery renders "LIST <subject> [ups] [param]" skipping empty parts
func ListQuery(subject, ups, param string) string {
	parts := []string{subject}
	if ups != "" {
		parts = append(parts, ups)
		if param != "" {
			parts = append(parts, param)
		}
	}
	return Render(CommandList, parts...)
}

// Frame wraps rows in BEGIN/END lines for query. Each line gets a trailing newline.
func Frame(query string, rows []string) string {
	var b strings.Builder
	b.WriteString(BeginLine(query))
	b.WriteString(NewLine)
	for _, r := range rows {
		b.WriteString(r)
		b.WriteString(NewLine)
	}
	b.WriteString(EndLine(query))
	b.WriteString(NewLine)
	return b.String()
}

// ValueRow renders "<subject> <ups> <name> "<value>"" as used by VAR, RW, UPSDESC and friends
func ValueRow(subject, ups, name, value string) string {
	if name == "" {
		return fmt.Sprintf("%s %s %s", subject, ups, Quote(value))
	}
	return fmt.Sprintf("%s %s %s %s", subject, ups, name, Quote(value))
}
