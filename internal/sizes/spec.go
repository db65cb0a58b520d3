// Package sizes turns the raw image_sizes configuration into a canonical,
// ordered table of size specs and derives srcset variants from it.
package sizes

import (
	"sort"
	"strings"

	"github.com/spf13/cast"
)

// Visibility controls whether a size is offered in editor pickers.
type Visibility int

const (
	Hidden Visibility = iota
	Visible
	Labeled
)

// Spec is one normalized size entry.
type Spec struct {
	Name   string
	Width  int
	Height int
	Crop   bool

	// Srcset holds the positive multipliers in configured order.
	Srcset []float64

	Visibility Visibility
	Label      string

	// PostTypes is only meaningful when PostTypesSet is true. An empty set
	// means the size is generated for no post type; an unset key means all.
	PostTypes    []string
	PostTypesSet bool
}

// Shown reports whether the size appears in pickers.
func (s Spec) Shown() bool {
	return s.Visibility != Hidden
}

// HasMultiplier reports whether m is one of the configured srcset factors.
func (s Spec) HasMultiplier(m float64) bool {
	for _, f := range s.Srcset {
		if f == m {
			return true
		}
	}
	return false
}

// Table is an ordered, read-only view over normalized specs.
type Table struct {
	order []string
	specs map[string]Spec
}

// Names returns size names in table order.
func (t *Table) Names() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

func (t *Table) Len() int { return len(t.order) }

// Get returns the spec configured under name, without variant resolution.
func (t *Table) Get(name string) (Spec, bool) {
	s, ok := t.specs[name]
	return s, ok
}

// Normalize coerces a raw configuration map into a Table. Entries with a
// non-map value are dropped, as are hard crops with a zero dimension. It
// never fails.
func Normalize(raw map[string]any) *Table {
	t := &Table{specs: make(map[string]Spec, len(raw))}
	for name, entry := range raw {
		if strings.TrimSpace(name) == "" {
			continue
		}
		m, ok := asMap(entry)
		if !ok {
			continue
		}
		spec := normalizeEntry(m)
		if spec.Crop && (spec.Width == 0 || spec.Height == 0) {
			continue
		}
		spec.Name = name
		t.specs[name] = spec
		t.order = append(t.order, name)
	}
	sortNames(t.order)
	return t
}

// sortNames puts the required sizes first in their canonical order and the
// rest alphabetically. Configuration maps carry no order of their own.
func sortNames(names []string) {
	rank := make(map[string]int, len(RequiredSizes))
	for i, n := range RequiredSizes {
		rank[n] = i
	}
	sort.SliceStable(names, func(i, j int) bool {
		ri, iReq := rank[names[i]]
		rj, jReq := rank[names[j]]
		switch {
		case iReq && jReq:
			return ri < rj
		case iReq != jReq:
			return iReq
		default:
			return names[i] < names[j]
		}
	})
}

func normalizeEntry(m map[string]any) Spec {
	s := Spec{
		Width:  nonNegativeInt(m["width"]),
		Height: nonNegativeInt(m["height"]),
		Crop:   truthy(m["crop"]),
	}

	if list, ok := asSlice(m["srcset"]); ok {
		for _, v := range list {
			f, ok := numeric(v)
			if ok && f > 0 {
				s.Srcset = append(s.Srcset, f)
			}
		}
	}

	if v, present := m["show_in_ui"]; present {
		switch t := v.(type) {
		case bool:
			if t {
				s.Visibility = Visible
			}
		case string:
			if label := strings.TrimSpace(t); label != "" {
				s.Visibility = Labeled
				s.Label = label
			}
		}
	}

	if v, present := m["post_types"]; present {
		if list, ok := asSlice(v); ok {
			seen := make(map[string]struct{}, len(list))
			for _, item := range list {
				str, ok := item.(string)
				if !ok {
					continue
				}
				str = strings.TrimSpace(str)
				if str == "" {
					continue
				}
				if _, dup := seen[str]; dup {
					continue
				}
				seen[str] = struct{}{}
				s.PostTypes = append(s.PostTypes, str)
			}
			// Only an explicitly empty list restricts to nothing. A list of
			// blanks collapses to "key absent".
			if len(s.PostTypes) > 0 || len(list) == 0 {
				s.PostTypesSet = true
			}
		}
	}

	return s
}

func asMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			ks, ok := k.(string)
			if !ok {
				continue
			}
			out[ks] = val
		}
		return out, true
	}
	return nil, false
}

func asSlice(v any) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out, true
	case []float64:
		out := make([]any, len(t))
		for i, f := range t {
			out[i] = f
		}
		return out, true
	case []int:
		out := make([]any, len(t))
		for i, n := range t {
			out[i] = n
		}
		return out, true
	}
	return nil, false
}

func numeric(v any) (float64, bool) {
	switch v.(type) {
	case nil, bool:
		return 0, false
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, false
	}
	return f, true
}

func nonNegativeInt(v any) int {
	f, ok := numeric(v)
	if !ok || f < 0 {
		return 0
	}
	return int(f)
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		if b, err := cast.ToBoolE(t); err == nil {
			return b
		}
		return t != ""
	}
	if f, ok := numeric(v); ok {
		return f != 0
	}
	return true
}
