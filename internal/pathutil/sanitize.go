package pathutil

import "strings"

// SanitizeName keeps only [A-Za-z0-9._-] from the final path element of s,
// collapses dot runs so the result never contains "..", trims leading dots
// and truncates to max bytes. The result may be empty.
func SanitizeName(s string, max int) string {
	if i := strings.LastIndexAny(s, `/\`); i >= 0 {
		s = s[i+1:]
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '_', c == '-':
		case c == '.':
			if b.Len() == 0 || strings.HasSuffix(b.String(), ".") {
				continue
			}
		default:
			continue
		}
		b.WriteByte(c)
	}

	out := b.String()
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out
}
