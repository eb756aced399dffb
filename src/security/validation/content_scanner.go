// backend/src/security/validation/content_scanner.go
package validation

import (
	"regexp"
	"strings"
)

// Spreadsheet tools evaluate cells starting with these characters as formulas.
var formulaPrefixRegex = regexp.MustCompile(`^[=+\-@\t\r]+`)

// HasFormulaPrefix reports whether s would be read as a formula when exported.
func HasFormulaPrefix(s string) bool {
	return formulaPrefixRegex.MatchString(strings.TrimSpace(s))
}

// StripFormulaPrefix removes leading formula triggers from text recovered off a
// receipt, since merchant names end up in batch exports and audit rows.
func StripFormulaPrefix(s string) string {
	s = strings.TrimSpace(s)
	for HasFormulaPrefix(s) {
		s = strings.TrimSpace(formulaPrefixRegex.ReplaceAllString(s, ""))
	}
	return s
}
