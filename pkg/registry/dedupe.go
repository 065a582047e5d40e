package registry

import (
	"slices"
	"strings"

	"storywoven/pkg/schema"
)

// Modifier words ignored when comparing prop names, so "red ball" and "ball"
// collapse to one entity.
var propModifiers = map[string]struct{}{
	"red": {}, "blue": {}, "green": {}, "yellow": {}, "purple": {}, "pink": {},
	"orange": {}, "brown": {}, "black": {}, "white": {}, "gray": {}, "grey": {},
	"golden": {}, "silver": {},
	"big": {}, "little": {}, "small": {}, "large": {}, "tiny": {}, "huge": {},
	"giant": {}, "mini": {},
	"old": {}, "new": {}, "young": {}, "ancient": {},
	"shiny": {}, "sparkly": {}, "favorite": {}, "favourite": {}, "special": {},
	"magic": {}, "magical": {},
}

var propArticles = []string{"the ", "a ", "an "}

// DedupeProps collapses near-synonym prop entries into one survivor per
// equivalence class. Equivalence is transitive within a single pass; from
// each class the entry with a reference image wins, otherwise the longest
// name. The survivor keeps its original key. Applying the result a second
// time is a no-op.
func DedupeProps(props map[string]schema.Prop) map[string]schema.Prop {
	if len(props) <= 1 {
		return props
	}

	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	parent := make(map[string]string, len(keys))
	for _, k := range keys {
		parent[k] = k
	}
	var find func(string) string
	find = func(k string) string {
		if parent[k] != k {
			parent[k] = find(parent[k])
		}
		return parent[k]
	}
	union := func(a, b string) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[rb] = ra
		}
	}

	for i := 0; i < len(keys); i++ {
		for j := i + 1; j < len(keys); j++ {
			if EquivalentPropNames(props[keys[i]].Name, props[keys[j]].Name) {
				union(keys[i], keys[j])
			}
		}
	}

	classes := make(map[string][]string)
	for _, k := range keys {
		root := find(k)
		classes[root] = append(classes[root], k)
	}

	out := make(map[string]schema.Prop, len(classes))
	for _, members := range classes {
		survivor := members[0]
		for _, k := range members[1:] {
			if better(props[k], props[survivor]) {
				survivor = k
			}
		}
		out[survivor] = props[survivor]
	}
	return out
}

func better(a, b schema.Prop) bool {
	aRef, bRef := a.RefImageURL != "", b.RefImageURL != ""
	if aRef != bRef {
		return aRef
	}
	return len(a.Name) > len(b.Name)
}

// EquivalentPropNames reports whether two prop names describe the same
// object: exact match, substring containment, equality after stripping
// articles and common modifiers, or matching naive singular forms.
func EquivalentPropNames(a, b string) bool {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return true
	}
	sa, sb := stripQualifiers(a), stripQualifiers(b)
	if sa != "" && sb != "" {
		if sa == sb || strings.Contains(sa, sb) || strings.Contains(sb, sa) {
			return true
		}
	}
	return singularize(a) == singularize(b)
}

func stripQualifiers(s string) string {
	for _, art := range propArticles {
		if strings.HasPrefix(s, art) {
			s = s[len(art):]
			break
		}
	}
	words := strings.Fields(s)
	kept := words[:0]
	for _, w := range words {
		if _, ok := propModifiers[w]; ok {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}

func singularize(s string) string {
	switch {
	case strings.HasSuffix(s, "ies"):
		return s[:len(s)-3] + "y"
	case strings.HasSuffix(s, "es"):
		return s[:len(s)-2]
	case strings.HasSuffix(s, "s"):
		return s[:len(s)-1]
	default:
		return s
	}
}
