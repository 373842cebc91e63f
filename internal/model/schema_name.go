package model

import "strings"

// DeriveSchemaName maps a subdomain to its schema name: every character other
// than an ASCII letter or digit becomes '_' and the result is lowercased.
// The function is idempotent: DeriveSchemaName(DeriveSchemaName(s)) == DeriveSchemaName(s).
func DeriveSchemaName(subdomain string) string {
	var b strings.Builder
	b.Grow(len(subdomain))
	for _, r := range subdomain {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
