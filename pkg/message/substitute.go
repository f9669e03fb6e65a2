package message

import (
	"strings"
)

const (
	placeholder = "{}"
	escape      = '\\'
)

// Substitute replaces the placeholders of template with args, left to right.
//
// Placeholders without a matching argument are left as literal "{}" and
// surplus arguments are ignored. A run of backslashes directly in front of a
// placeholder is halved; an odd run escapes the placeholder, which is then
// emitted literally without consuming an argument. Other backslashes are
// copied as-is.
func Substitute(template string, args []any) string {
	s, _ := substitute(template, args)
	return s
}

// CountPlaceholders returns the number of unescaped placeholders in template.
func CountPlaceholders(template string) int {
	n := 0
	for i := 0; i < len(template); {
		switch {
		case template[i] == escape:
			run := backslashRun(template, i)
			if strings.HasPrefix(template[i+run:], placeholder) {
				if run%2 == 0 {
					n++
				}
				i += run + len(placeholder)
				continue
			}
			i += run
		case strings.HasPrefix(template[i:], placeholder):
			n++
			i += len(placeholder)
		default:
			i++
		}
	}
	return n
}

// substitute returns the rendered text and the number of args consumed.
func substitute(template string, args []any) (string, int) {
	if !strings.Contains(template, placeholder) {
		return template, 0
	}

	var b strings.Builder
	b.Grow(len(template) + 8*len(args))
	used := 0
	put := func() {
		if used < len(args) {
			b.WriteString(stringify(args[used]))
			used++
			return
		}
		b.WriteString(placeholder)
	}

	for i := 0; i < len(template); {
		c := template[i]
		switch {
		case c == escape:
			run := backslashRun(template, i)
			if !strings.HasPrefix(template[i+run:], placeholder) {
				b.WriteString(template[i : i+run])
				i += run
				continue
			}
			b.WriteString(strings.Repeat(string(escape), run/2))
			if run%2 == 1 {
				b.WriteString(placeholder)
			} else {
				put()
			}
			i += run + len(placeholder)
		case c == '{' && strings.HasPrefix(template[i:], placeholder):
			put()
			i += len(placeholder)
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String(), used
}

func backslashRun(s string, i int) int {
	j := i
	for j < len(s) && s[j] == escape {
		j++
	}
	return j - i
}
