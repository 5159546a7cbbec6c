package export

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Label turns an enum value such as SEMI_ANNUAL into "Semi Annual"
func Label[T ~string](v T) string {
	// Casers keep state, so each call gets its own
	return cases.Title(language.English).String(strings.ToLower(strings.ReplaceAll(string(v), "_", " ")))
}
