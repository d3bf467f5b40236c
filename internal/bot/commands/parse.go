package commands

import (
	"strings"
	"unicode"
)

// ParseTextCommand reports whether content invokes command name with the
// given prefix and, if so, returns its arguments. Arguments are separated by
// whitespace; a double-quoted argument may contain spaces. An unterminated
// quote runs to the end of the input.
func ParseTextCommand(content, prefix, name string) ([]string, bool) {
	content = strings.TrimSpace(content)
	head := prefix + name
	if !strings.HasPrefix(content, head) {
		return nil, false
	}
	rest := content[len(head):]
	if rest != "" && !unicode.IsSpace([]rune(rest)[0]) {
		return nil, false
	}
	return splitArgs(rest), true
}

func splitArgs(s string) []string {
	var (
		args    []string
		cur     strings.Builder
		inQuote bool
		started bool
	)
	flush := func() {
		if started {
			args = append(args, cur.String())
		}
		cur.Reset()
		started = false
	}

	for _, r := range s {
		switch {
		case r == '"':
			inQuote = !inQuote
			started = true
		case unicode.IsSpace(r) && !inQuote:
			flush()
		default:
			cur.WriteRune(r)
			started = true
		}
	}
	flush()
	return args
}
