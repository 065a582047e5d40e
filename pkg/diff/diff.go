// Package diff compares two story registries field by field. Finalization
// reports the result so the client can show what re-extraction changed, and
// the lock invariant check rides on it.
package diff

import (
	"cmp"
	"slices"
	"strings"

	"github.com/aryann/difflib"

	"storywoven/pkg/schema"
	"storywoven/pkg/utils"
)

type ChangeType int

const (
	Unchanged ChangeType = iota
	Added
	Removed
	Modified
)

type Op int

const (
	Equal Op = iota
	Insert
	Delete
)

type WordDelta struct {
	Op   Op     `json:"op"`
	Text string `json:"text"`
}

type StringDiff struct {
	Old    string      `json:"old"`
	New    string      `json:"new"`
	Deltas []WordDelta `json:"deltas,omitempty"`
}

type FieldDiff struct {
	Path string     `json:"path"`
	Str  StringDiff `json:"diff"`
}

type CharacterDiff struct {
	Key        string      `json:"key"`
	State      ChangeType  `json:"state"`
	FieldDiffs []FieldDiff `json:"fields,omitempty"`
	TraitsAdd  []string    `json:"traits_added,omitempty"`
	TraitsDel  []string    `json:"traits_removed,omitempty"`
}

type EntityChange struct {
	Key        string      `json:"key"`
	State      ChangeType  `json:"state"`
	FieldDiffs []FieldDiff `json:"fields,omitempty"`
}

type RegistryDiff struct {
	Characters   []CharacterDiff `json:"characters,omitempty"`
	Props        []EntityChange  `json:"props,omitempty"`
	Environments []EntityChange  `json:"environments,omitempty"`
}

// CharacterState returns the recorded change state for a character key;
// absent keys report Unchanged.
func (d RegistryDiff) CharacterState(key string) ChangeType {
	for _, c := range d.Characters {
		if c.Key == key {
			return c.State
		}
	}
	return Unchanged
}

func Registries(oldR, newR *schema.Registry) RegistryDiff {
	if oldR == nil {
		oldR = schema.NewRegistry()
	}
	if newR == nil {
		newR = schema.NewRegistry()
	}
	return RegistryDiff{
		Characters:   characters(oldR.Characters, newR.Characters),
		Props:        props(oldR.Props, newR.Props),
		Environments: environments(oldR.Environments, newR.Environments),
	}
}

func characters(oldC, newC map[string]schema.Character) []CharacterDiff {
	keys := make(map[string]struct{}, len(oldC)+len(newC))
	for k := range oldC {
		keys[k] = struct{}{}
	}
	for k := range newC {
		keys[k] = struct{}{}
	}

	out := make([]CharacterDiff, 0, len(keys))
	for k := range keys {
		o, okO := oldC[k]
		n, okN := newC[k]
		switch {
		case okO && !okN:
			out = append(out, CharacterDiff{Key: k, State: Removed})
		case !okO && okN:
			out = append(out, CharacterDiff{Key: k, State: Added, TraitsAdd: append([]string(nil), n.Traits...)})
		default:
			fd := characterFields(o, n)
			adds, dels := diffStringSets(o.Traits, n.Traits)
			state := Unchanged
			if len(fd) > 0 || len(adds) > 0 || len(dels) > 0 {
				state = Modified
			}
			out = append(out, CharacterDiff{Key: k, State: state, FieldDiffs: fd, TraitsAdd: adds, TraitsDel: dels})
		}
	}
	slices.SortFunc(out, func(a, b CharacterDiff) int { return cmp.Compare(a.Key, b.Key) })
	return out
}

func characterFields(o, n schema.Character) []FieldDiff {
	var fd []FieldDiff
	add := func(path, a, b string) {
		if a == b {
			return
		}
		fd = append(fd, FieldDiff{Path: path, Str: strDiff(a, b)})
	}
	add("Name", o.Name, n.Name)
	add("Role", string(o.Role), string(n.Role))
	add("Type", o.Type, n.Type)
	add("Breed", o.Breed, n.Breed)
	add("Gender", o.Gender, n.Gender)
	add("Relationship", o.Relationship, n.Relationship)
	add("ModelURL", o.ModelURL, n.ModelURL)

	ov, nv := o.Visual, n.Visual
	if ov == nil {
		ov = &schema.Visual{}
	}
	if nv == nil {
		nv = &schema.Visual{}
	}
	add("Visual.AgeRange", ov.AgeRange, nv.AgeRange)
	add("Visual.Hair", ov.Hair, nv.Hair)
	add("Visual.SkinTone", ov.SkinTone, nv.SkinTone)
	add("Visual.Build", ov.Build, nv.Build)
	add("Visual.Size", ov.Size, nv.Size)
	add("Visual.Colors", strings.Join(ov.Colors, ", "), strings.Join(nv.Colors, ", "))
	add("Visual.DistinctiveFeatures", ov.DistinctiveFeatures, nv.DistinctiveFeatures)
	add("Visual.TypicalClothing", ov.TypicalClothing, nv.TypicalClothing)
	return fd
}

func props(oldP, newP map[string]schema.Prop) []EntityChange {
	return entities(oldP, newP, func(o, n schema.Prop) []FieldDiff {
		var fd []FieldDiff
		if o.Name != n.Name {
			fd = append(fd, FieldDiff{Path: "Name", Str: strDiff(o.Name, n.Name)})
		}
		if o.Description != n.Description {
			fd = append(fd, FieldDiff{Path: "Description", Str: strDiff(o.Description, n.Description)})
		}
		if o.Visual != n.Visual {
			fd = append(fd, FieldDiff{Path: "Visual", Str: strDiff(o.Visual, n.Visual)})
		}
		return fd
	})
}

func environments(oldE, newE map[string]schema.Environment) []EntityChange {
	return entities(oldE, newE, func(o, n schema.Environment) []FieldDiff {
		var fd []FieldDiff
		if o.Name != n.Name {
			fd = append(fd, FieldDiff{Path: "Name", Str: strDiff(o.Name, n.Name)})
		}
		if o.Description != n.Description {
			fd = append(fd, FieldDiff{Path: "Description", Str: strDiff(o.Description, n.Description)})
		}
		if o.Style != n.Style {
			fd = append(fd, FieldDiff{Path: "Style", Str: strDiff(o.Style, n.Style)})
		}
		return fd
	})
}

func entities[T any](oldM, newM map[string]T, fields func(o, n T) []FieldDiff) []EntityChange {
	keys := make(map[string]struct{}, len(oldM)+len(newM))
	for k := range oldM {
		keys[k] = struct{}{}
	}
	for k := range newM {
		keys[k] = struct{}{}
	}
	out := make([]EntityChange, 0, len(keys))
	for k := range keys {
		o, okO := oldM[k]
		n, okN := newM[k]
		switch {
		case okO && !okN:
			out = append(out, EntityChange{Key: k, State: Removed})
		case !okO && okN:
			out = append(out, EntityChange{Key: k, State: Added})
		default:
			fd := fields(o, n)
			state := Unchanged
			if len(fd) > 0 {
				state = Modified
			}
			out = append(out, EntityChange{Key: k, State: state, FieldDiffs: fd})
		}
	}
	slices.SortFunc(out, func(a, b EntityChange) int { return cmp.Compare(a.Key, b.Key) })
	return out
}

func strDiff(a, b string) StringDiff {
	if a == b {
		return StringDiff{Old: a, New: b, Deltas: []WordDelta{{Op: Equal, Text: a}}}
	}
	at := utils.TokenizeWords(a)
	bt := utils.TokenizeWords(b)
	recs := difflib.Diff(at, bt)
	deltas := make([]WordDelta, 0, len(recs))
	for _, r := range recs {
		switch r.Delta {
		case difflib.Common:
			deltas = append(deltas, WordDelta{Op: Equal, Text: r.Payload})
		case difflib.LeftOnly:
			deltas = append(deltas, WordDelta{Op: Delete, Text: r.Payload})
		case difflib.RightOnly:
			deltas = append(deltas, WordDelta{Op: Insert, Text: r.Payload})
		}
	}
	return StringDiff{Old: a, New: b, Deltas: coalesceSpaces(deltas)}
}

func coalesceSpaces(in []WordDelta) []WordDelta {
	out := make([]WordDelta, 0, len(in))
	flush := func(op Op, buf *strings.Builder) {
		if buf.Len() == 0 {
			return
		}
		out = append(out, WordDelta{Op: op, Text: buf.String()})
		buf.Reset()
	}
	var curOp Op = -1
	var buf strings.Builder
	for _, d := range in {
		if strings.TrimSpace(d.Text) == "" && d.Op == Equal {
			buf.WriteString(d.Text)
			continue
		}
		if curOp != d.Op && curOp != -1 {
			flush(curOp, &buf)
		}
		if curOp != d.Op {
			curOp = d.Op
		}
		buf.WriteString(d.Text)
	}
	flush(curOp, &buf)
	return out
}

func diffStringSets(a, b []string) (adds, dels []string) {
	usedB := make([]bool, len(b))
	for _, as := range a {
		bestJ, best := -1, 0.0
		for j, bs := range b {
			if usedB[j] {
				continue
			}
			s := utils.Similarity(as, bs)
			if s > best {
				bestJ, best = j, s
			}
		}
		if bestJ >= 0 && best >= 0.70 {
			usedB[bestJ] = true
		} else {
			dels = append(dels, as)
		}
	}
	for j, bs := range b {
		if !usedB[j] {
			adds = append(adds, bs)
		}
	}
	return
}
