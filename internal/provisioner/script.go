package provisioner

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// EmbeddedScriptVersion identifies the tenant table set shipped with the binary
const EmbeddedScriptVersion = "1"

//go:embed sql/tenant_tables.sql
var embeddedScript string

var createTableRe = regexp.MustCompile(
	`(?is)^\s*create\s+(?:(?:global\s+|local\s+)?(?:temp|temporary|unlogged)\s+)?table\s+(?:if\s+not\s+exists\s+)?((?:"(?:[^"]|"")+"|[a-z_][a-z0-9_$]*)(?:\s*\.\s*(?:"(?:[^"]|"")+"|[a-z_][a-z0-9_$]*))?)`,
)

// Script is a parsed tenant DDL script
type Script struct {
	Version    string
	Source     string
	Statements []string
	// Tables lists the tables the script creates, in order. Verification
	// requires every one of them.
	Tables []string
}

// LoadScript reads the DDL script at path, or the embedded script when path is empty.
func LoadScript(path string) (*Script, error) {
	if path == "" {
		return ParseScript(EmbeddedScriptVersion, "embedded", embeddedScript)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tenant DDL script: %w", err)
	}
	return ParseScript("file", path, string(data))
}

// ParseScript splits sql into statements and collects the tables it creates.
// Schema-qualified table names are rejected: every table must land in the
// schema the script runs against.
func ParseScript(version, source, sql string) (*Script, error) {
	stmts := SplitStatements(sql)
	if len(stmts) == 0 {
		return nil, errors.New("tenant DDL script has no statements")
	}

	s := &Script{Version: version, Source: source, Statements: stmts}
	seen := map[string]bool{}
	for i, stmt := range stmts {
		m := createTableRe.FindStringSubmatch(stmt)
		if m == nil {
			continue
		}
		name := m[1]
		if strings.Contains(unquotedDots(name), ".") {
			return nil, fmt.Errorf("statement %d: table %s must not be schema-qualified", i+1, name)
		}
		table := normalizeIdent(name)
		if !seen[table] {
			seen[table] = true
			s.Tables = append(s.Tables, table)
		}
	}
	if !seen["users"] {
		return nil, errors.New("tenant DDL script must create a users table")
	}
	return s, nil
}

// unquotedDots blanks out quoted identifier content so only separating dots remain
func unquotedDots(name string) string {
	var b strings.Builder
	quoted := false
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c == '"' {
			quoted = !quoted
			continue
		}
		if quoted {
			b.WriteByte('_')
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// normalizeIdent folds an unquoted identifier to lower case and strips quotes from a quoted one
func normalizeIdent(name string) string {
	if strings.HasPrefix(name, `"`) && strings.HasSuffix(name, `"`) && len(name) >= 2 {
		return strings.ReplaceAll(name[1:len(name)-1], `""`, `"`)
	}
	return strings.ToLower(name)
}
