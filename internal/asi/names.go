package asi

import (
	"strings"
	"unicode"
)

// SnakeCase converts an SDK control name to the property name clients see.
// "HighSpeedMode" becomes "high_speed_mode" and "AutoExpMaxExpMS" becomes
// "auto_exp_max_exp_ms".
func SnakeCase(name string) string {
	runes := []rune(strings.TrimSpace(name))
	var b strings.Builder
	b.Grow(len(runes) + 4)

	lastUnderscore := true
	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
			continue
		}
		if unicode.IsUpper(r) && i > 0 && !lastUnderscore {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				b.WriteByte('_')
			}
		}
		b.WriteRune(unicode.ToLower(r))
		lastUnderscore = false
	}
	return strings.TrimSuffix(b.String(), "_")
}

// CString returns the text of a NUL-terminated byte array.
func CString(raw []byte) string {
	if i := indexNUL(raw); i >= 0 {
		raw = raw[:i]
	}
	return strings.TrimSpace(string(raw))
}

func indexNUL(raw []byte) int {
	for i, c := range raw {
		if c == 0 {
			return i
		}
	}
	return -1
}
