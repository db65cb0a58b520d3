// Package focal stores per-asset focal points and re-crops hard-cropped
// sizes around them.
package focal

import (
	"strings"

	"github.com/spf13/cast"

	"sprout/internal/media"
)

const (
	DefaultPercent = 50.0
	MinPercent     = 0.0
	MaxPercent     = 100.0
)

// Point is a focal coordinate in percent of the image width and height.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

var Default = Point{X: DefaultPercent, Y: DefaultPercent}

// Clamp bounds v to [0,100].
func Clamp(v float64) float64 {
	return max(MinPercent, min(MaxPercent, v))
}

// FromMetadata reads the stored point, falling back to the center per axis.
func FromMetadata(m media.Metadata) Point {
	p := Default
	if m.FocalX != nil {
		p.X = Clamp(*m.FocalX)
	}
	if m.FocalY != nil {
		p.Y = Clamp(*m.FocalY)
	}
	return p
}

// Update is a sanitized editor change. A nil axis is left untouched.
type Update struct {
	X *float64
	Y *float64
}

func (u Update) Empty() bool { return u.X == nil && u.Y == nil }

// ApplyTo writes the changed axes into m.
func (u Update) ApplyTo(m *media.Metadata) {
	if u.X != nil {
		x := *u.X
		m.FocalX = &x
	}
	if u.Y != nil {
		y := *u.Y
		m.FocalY = &y
	}
}

// Sanitize interprets raw editor input for the "x" and "y" keys. An empty
// string resets the axis to the center, numbers are clamped, and anything
// else is ignored.
func Sanitize(raw map[string]any) Update {
	return Update{X: sanitizeAxis(raw, "x"), Y: sanitizeAxis(raw, "y")}
}

func sanitizeAxis(raw map[string]any, key string) *float64 {
	v, ok := raw[key]
	if !ok || v == nil {
		return nil
	}
	switch t := v.(type) {
	case bool:
		return nil
	case string:
		if strings.TrimSpace(t) == "" {
			d := DefaultPercent
			return &d
		}
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return nil
	}
	f = Clamp(f)
	return &f
}
