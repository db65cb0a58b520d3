package focal

import (
	"strings"
	"time"

	"github.com/spf13/cast"
)

// Strategy decides when re-cropping runs after an upload or focal edit.
type Strategy string

const (
	Immediate Strategy = "immediate"
	Deferred  Strategy = "cron"

	DefaultDelay = 30 * time.Second
)

// Mode is the normalized focal_point_cropping setting: Disabled or
// Enabled.
type Mode interface {
	isMode()
}

type Disabled struct{}

type Enabled struct {
	Strategy Strategy
	Delay    time.Duration
}

func (Disabled) isMode() {}
func (Enabled) isMode()  {}

// IsEnabled unwraps m.
func IsEnabled(m Mode) (Enabled, bool) {
	e, ok := m.(Enabled)
	return e, ok
}

// ParseMode accepts false, true, or a map with optional "strategy" and
// "delay_seconds". Any map, even an empty one, enables cropping.
func ParseMode(raw any) Mode {
	switch t := raw.(type) {
	case nil:
		return Disabled{}
	case bool:
		if t {
			return Enabled{Strategy: Immediate, Delay: DefaultDelay}
		}
		return Disabled{}
	case string:
		if b, err := cast.ToBoolE(t); err == nil && b {
			return Enabled{Strategy: Immediate, Delay: DefaultDelay}
		}
		return Disabled{}
	}

	m, err := cast.ToStringMapE(raw)
	if err != nil {
		return Disabled{}
	}

	e := Enabled{Strategy: Immediate, Delay: DefaultDelay}
	if s, ok := m["strategy"].(string); ok {
		switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
		case Deferred:
			e.Strategy = Deferred
		case Immediate:
			e.Strategy = Immediate
		}
	}
	if v, ok := m["delay_seconds"]; ok {
		if _, isBool := v.(bool); !isBool {
			if secs, err := cast.ToIntE(v); err == nil && secs >= 0 {
				e.Delay = time.Duration(secs) * time.Second
			}
		}
	}
	return e
}
