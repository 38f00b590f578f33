// Package validation provides sanitization of user-supplied content.
package validation

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// strict strips all markup; banter is plain text, never HTML.
var strict = bluemonday.StrictPolicy()

// SanitizeContent removes any markup from user-supplied text and trims
// surrounding whitespace.
func SanitizeContent(s string) string {
	return strings.TrimSpace(strict.Sanitize(s))
}
