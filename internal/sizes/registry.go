package sizes

import (
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// RequiredSizes must be present in every configuration.
var RequiredSizes = []string{"thumbnail", "medium", "medium_large", "large"}

// MissingRequired lists required names with no entry in raw, in canonical
// order. Presence is checked on the raw map, so a malformed entry still
// counts as present.
func MissingRequired(raw map[string]any) []string {
	var missing []string
	for _, name := range RequiredSizes {
		if v, ok := raw[name]; !ok || v == nil {
			missing = append(missing, name)
		}
	}
	return missing
}

// Registration is one renderable size: a configured base or one of its
// srcset variants.
type Registration struct {
	Name       string  `json:"name"`
	Base       string  `json:"base"`
	Multiplier float64 `json:"multiplier"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Crop       bool    `json:"crop"`
}

// Registered expands the table into every size that gets generated.
func (t *Table) Registered() []Registration {
	var out []Registration
	for _, name := range t.order {
		s := t.specs[name]
		out = append(out, Registration{
			Name: name, Base: name, Multiplier: 1,
			Width: s.Width, Height: s.Height, Crop: s.Crop,
		})
		for _, m := range s.Srcset {
			out = append(out, Registration{
				Name:       VariantName(name, m),
				Base:       name,
				Multiplier: m,
				Width:      Scale(s.Width, m),
				Height:     Scale(s.Height, m),
				Crop:       s.Crop,
			})
		}
	}
	return out
}

// AllowedForPostType decides whether a size (base or variant) is generated
// for an asset attached to postType. An empty postType means unattached.
func (t *Table) AllowedForPostType(name, postType string) bool {
	s, ok := t.specs[BaseName(name)]
	if !ok {
		return true
	}
	if s.Shown() {
		return true
	}
	if !s.PostTypesSet {
		return true
	}
	if len(s.PostTypes) == 0 {
		return false
	}
	return postType != "" && slices.Contains(s.PostTypes, postType)
}

// FilterForPostType keeps the names AllowedForPostType accepts, preserving
// order.
func (t *Table) FilterForPostType(names []string, postType string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if t.AllowedForPostType(n, postType) {
			out = append(out, n)
		}
	}
	return out
}

// UILabel pairs a size name with its picker label.
type UILabel struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

// UILabels lists the sizes offered in pickers, followed by "full".
// existing supplies labels already known to the host; a generated label
// is used otherwise.
func (t *Table) UILabels(existing map[string]string) []UILabel {
	var out []UILabel
	for _, name := range t.order {
		s := t.specs[name]
		switch s.Visibility {
		case Visible:
			label, ok := existing[name]
			if !ok {
				label = GenerateLabel(name)
			}
			out = append(out, UILabel{Name: name, Label: label})
		case Labeled:
			out = append(out, UILabel{Name: name, Label: s.Label})
		}
	}
	full, ok := existing["full"]
	if !ok {
		full = "Full Size"
	}
	return append(out, UILabel{Name: "full", Label: full})
}

// GenerateLabel turns "medium_large" or "hero-wide" into "Medium Large" /
// "Hero Wide".
func GenerateLabel(name string) string {
	spaced := strings.NewReplacer("-", " ", "_", " ").Replace(name)
	// Casers carry state; one per call keeps this safe for concurrent use.
	return cases.Title(language.English, cases.NoLower).String(spaced)
}
