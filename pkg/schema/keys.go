package schema

import "strings"

// NormalizeKey derives the stable registry key for an entity name: lowercase,
// trimmed, with every run of non-alphanumeric characters collapsed to a
// single underscore. This is the only normalization rule in the codebase;
// every boundary that turns a name into a key goes through here.
func NormalizeKey(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	var b strings.Builder
	b.Grow(len(name))
	pendingSep := false
	for _, r := range name {
		alnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !alnum {
			if b.Len() > 0 {
				pendingSep = true
			}
			continue
		}
		if pendingSep {
			b.WriteByte('_')
			pendingSep = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
