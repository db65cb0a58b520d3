package sizes

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
)

var variantPattern = regexp.MustCompile(`^(.+)@([\d.]+)x$`)

// VariantKey identifies a base size and a multiplier. Multiplier 1 is the
// base itself.
type VariantKey struct {
	Base       string
	Multiplier float64
}

func (k VariantKey) String() string {
	if k.Multiplier == 1 || k.Multiplier == 0 {
		return k.Base
	}
	return VariantName(k.Base, k.Multiplier)
}

// VariantName formats "{base}@{m}x" with the shortest decimal form of m.
func VariantName(base string, m float64) string {
	return fmt.Sprintf("%s@%sx", base, strconv.FormatFloat(m, 'f', -1, 64))
}

// ParseVariant splits a size name into its key. Names without a
// multiplier suffix parse as base variants.
func ParseVariant(name string) VariantKey {
	match := variantPattern.FindStringSubmatch(name)
	if match == nil {
		return VariantKey{Base: name, Multiplier: 1}
	}
	m, err := strconv.ParseFloat(match[2], 64)
	if err != nil || m <= 0 {
		return VariantKey{Base: name, Multiplier: 1}
	}
	return VariantKey{Base: match[1], Multiplier: m}
}

// BaseName strips any "@{m}x" suffix.
func BaseName(name string) string {
	return ParseVariant(name).Base
}

// Scale multiplies a dimension, keeping zero ("auto") as zero.
func Scale(dim int, m float64) int {
	if dim <= 0 {
		return 0
	}
	return int(math.Round(float64(dim) * m))
}

// Effective resolves name to the spec to render. Configured names are
// returned as-is. "{base}@{m}x" is synthesized from the base when m is one
// of its srcset multipliers.
func (t *Table) Effective(name string) (Spec, bool) {
	if s, ok := t.specs[name]; ok {
		return s, true
	}

	key := ParseVariant(name)
	if key.Multiplier == 1 {
		return Spec{}, false
	}
	base, ok := t.specs[key.Base]
	if !ok || !base.HasMultiplier(key.Multiplier) {
		return Spec{}, false
	}
	return Spec{
		Name:         name,
		Width:        Scale(base.Width, key.Multiplier),
		Height:       Scale(base.Height, key.Multiplier),
		Crop:         base.Crop,
		Visibility:   Hidden,
		PostTypes:    base.PostTypes,
		PostTypesSet: base.PostTypesSet,
	}, true
}

// Effective is a shorthand for n.All().Effective(name).
func (n *Normalizer) Effective(name string) (Spec, bool) {
	return n.All().Effective(name)
}
