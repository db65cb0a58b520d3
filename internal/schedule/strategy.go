// Package schedule decides when synchronization and optimization work runs:
// inline, on a periodic job, or as a deferred one-shot job.
package schedule

import (
	"errors"
	"fmt"
	"strings"
)

// Strategy is the image size synchronization policy.
type Strategy string

const (
	Request      Strategy = "request"
	AdminRequest Strategy = "admin_request"
	Cron         Strategy = "cron"
	Manual       Strategy = "manual"

	DefaultStrategy = AdminRequest

	// EnvStrategy overrides the configured strategy.
	EnvStrategy = "SPROUT_IMAGE_SIZE_SYNC_STRATEGY"
)

var ErrUnknownStrategy = errors.New("schedule: unknown sync strategy")

// ParseStrategy accepts a strategy name in any case.
func ParseStrategy(s string) (Strategy, error) {
	switch v := Strategy(strings.ToLower(strings.TrimSpace(s))); v {
	case Request, AdminRequest, Cron, Manual:
		return v, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
}

// Sources feed Resolve, highest priority first.
type Sources struct {
	// Override is set by commands that must not trigger automatic
	// synchronization.
	Override   Strategy
	Env        func(key string) (string, bool)
	Configured string
	// Hook may replace the strategy chosen so far when neither the override
	// nor the environment decided it.
	Hook func(current Strategy) Strategy
}

// Resolve picks the strategy: process override, environment variable,
// configured value, hook, then DefaultStrategy. Invalid values at any level
// are skipped.
func Resolve(src Sources) Strategy {
	if s, err := ParseStrategy(string(src.Override)); err == nil {
		return s
	}
	if src.Env != nil {
		if v, ok := src.Env(EnvStrategy); ok {
			if s, err := ParseStrategy(v); err == nil {
				return s
			}
		}
	}
	if s, err := ParseStrategy(src.Configured); err == nil {
		return s
	}
	if src.Hook != nil {
		if s, err := ParseStrategy(string(src.Hook(DefaultStrategy))); err == nil {
			return s
		}
	}
	return DefaultStrategy
}

// Plan is what a process should do at startup for a strategy.
type Plan struct {
	// RunNow runs synchronization during this bootstrap.
	RunNow bool
	// Periodic keeps a periodic job installed; false removes any existing one.
	Periodic bool
}

// Decide maps a strategy and the process classification to a plan.
// privileged is true for admin, worker, CLI and async contexts.
func Decide(s Strategy, privileged bool) Plan {
	switch s {
	case Request:
		return Plan{RunNow: true}
	case AdminRequest:
		return Plan{RunNow: privileged}
	case Cron:
		return Plan{Periodic: true}
	}
	return Plan{}
}
