package textutil

import (
	"fmt"
	"hash/fnv"
	"strings"
	"unicode"
)

// FileToken converts an identifier into a filesystem-safe name component.
// Letters, digits, '-', '_' and '.' are kept; anything else becomes '_'.
// When characters had to be replaced a short hash of the original is
// appended so distinct identifiers never share a token. Returns "unknown"
// for blank input.
func FileToken(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	var b strings.Builder
	changed := false
	for _, r := range value {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '_':
			b.WriteRune(r)
		case r == '.' && b.Len() > 0:
			b.WriteRune(r)
		default:
			b.WriteByte('_')
			changed = true
		}
	}
	out := b.String()
	if !changed {
		return out
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(value))
	return fmt.Sprintf("%s-%08x", out, h.Sum32())
}
