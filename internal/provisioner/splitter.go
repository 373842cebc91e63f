package provisioner

import (
	"strings"
)

// SplitStatements splits a SQL script into statements on top-level ';'.
// Semicolons inside parentheses, quoted strings, quoted identifiers,
// dollar-quoted bodies and comments do not split. E'...' strings honor
// backslash escapes. Comments are dropped and
// empty statements are skipped.
func SplitStatements(script string) []string {
	var (
		stmts     []string
		cur       strings.Builder
		depth     int
		inSingle  bool
		escapes   bool
		inDouble  bool
		lineCmt   bool
		blockCmt  int
		dollarTag string
	)

	flush := func() {
		s := strings.TrimSpace(cur.String())
		if s != "" {
			stmts = append(stmts, s)
		}
		cur.Reset()
	}

	for i := 0; i < len(script); i++ {
		c := script[i]
		next := byte(0)
		if i+1 < len(script) {
			next = script[i+1]
		}

		switch {
		case lineCmt:
			if c == '\n' {
				lineCmt = false
				cur.WriteByte(c)
			}
			continue

		case blockCmt > 0:
			if c == '*' && next == '/' {
				blockCmt--
				i++
				if blockCmt == 0 {
					cur.WriteByte(' ')
				}
			} else if c == '/' && next == '*' {
				blockCmt++
				i++
			}
			continue

		case dollarTag != "":
			if c == '$' && strings.HasPrefix(script[i:], dollarTag) {
				cur.WriteString(dollarTag)
				i += len(dollarTag) - 1
				dollarTag = ""
				continue
			}
			cur.WriteByte(c)
			continue

		case inSingle:
			cur.WriteByte(c)
			if escapes && c == '\\' && next != 0 {
				cur.WriteByte(next)
				i++
				continue
			}
			if c == '\'' {
				if next == '\'' {
					cur.WriteByte(next)
					i++
				} else {
					inSingle = false
				}
			}
			continue

		case inDouble:
			cur.WriteByte(c)
			if c == '"' {
				if next == '"' {
					cur.WriteByte(next)
					i++
				} else {
					inDouble = false
				}
			}
			continue
		}

		switch c {
		case '-':
			if next == '-' {
				lineCmt = true
				i++
				continue
			}
		case '/':
			if next == '*' {
				blockCmt = 1
				i++
				continue
			}
		case '\'':
			inSingle = true
			escapes = escapeStringAt(script, i)
		case '"':
			inDouble = true
		case '$':
			if tag, ok := dollarQuoteAt(script, i); ok {
				dollarTag = tag
				cur.WriteString(tag)
				i += len(tag) - 1
				continue
			}
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case ';':
			if depth == 0 {
				flush()
				continue
			}
		}
		cur.WriteByte(c)
	}
	flush()
	return stmts
}

// dollarQuoteAt reports whether a dollar-quote opening tag ($$ or $tag$)
// starts at script[i] and returns it.
func dollarQuoteAt(script string, i int) (string, bool) {
	if i > 0 && isIdentChar(script[i-1]) {
		return "", false
	}
	j := i + 1
	for j < len(script) && script[j] != '$' {
		c := script[j]
		if !(isIdentStart(c) || (j > i+1 && c >= '0' && c <= '9')) {
			return "", false
		}
		j++
	}
	if j >= len(script) {
		return "", false
	}
	return script[i : j+1], true
}

// escapeStringAt reports whether the quote at script[i] opens an E'...' string
func escapeStringAt(script string, i int) bool {
	if i == 0 || (script[i-1] != 'E' && script[i-1] != 'e') {
		return false
	}
	return i == 1 || !isIdentChar(script[i-2])
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9') || c == '$'
}
