package export

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// disallowed matches anything outside letters, marks, digits, hyphen and underscore.
var disallowed = regexp.MustCompile(`[^\p{L}\p{M}\p{N}_-]+`)

var multiUnderscore = regexp.MustCompile(`_{2,}`)

// SanitizeFilename replaces disallowed characters with _, collapses runs of
// underscores and truncates to 100 runes.
func SanitizeFilename(name string) string {
	s := disallowed.ReplaceAllString(name, "_")
	s = multiUnderscore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if r := []rune(s); len(r) > 100 {
		s = string(r[:100])
	}
	if s == "" {
		return "documents"
	}
	return s
}

// BuildFilename returns {name}_{YYYY-MM-DD}.{ext}.
func BuildFilename(name, ext string, now time.Time) string {
	return fmt.Sprintf("%s_%s.%s", SanitizeFilename(name), now.Format("2006-01-02"), strings.TrimPrefix(ext, "."))
}
