package schedule

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"
)

// IntervalSpec turns a cron_interval setting into a cron spec. Named
// intervals map to descriptors; anything else must parse as a cron
// expression.
func IntervalSpec(interval string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(interval)) {
	case "", "daily":
		return "@daily", nil
	case "hourly":
		return "@hourly", nil
	case "twicedaily":
		return "@every 12h", nil
	case "weekly":
		return "@weekly", nil
	}
	if _, err := parser.Parse(interval); err != nil {
		return "", fmt.Errorf("invalid cron interval %q: %w", interval, err)
	}
	return interval, nil
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Periodic owns the process cron. Each named job is installed at most once.
type Periodic struct {
	cron *cron.Cron

	mu      sync.Mutex
	entries map[string]cron.EntryID
	started bool
}

func NewPeriodic() *Periodic {
	return &Periodic{
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
		),
		entries: make(map[string]cron.EntryID),
	}
}

// Install adds fn under name. It reports false when a job with that name
// is already installed.
func (p *Periodic) Install(name, spec string, fn func()) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.entries[name]; ok {
		return false, nil
	}
	id, err := p.cron.AddFunc(spec, fn)
	if err != nil {
		return false, fmt.Errorf("install %s: %w", name, err)
	}
	p.entries[name] = id
	return true, nil
}

// Remove uninstalls name. It reports whether a job was removed.
func (p *Periodic) Remove(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	id, ok := p.entries[name]
	if !ok {
		return false
	}
	p.cron.Remove(id)
	delete(p.entries, name)
	return true
}

func (p *Periodic) Installed(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.entries[name]
	return ok
}

// Start runs the cron until ctx is done.
func (p *Periodic) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	p.cron.Start()
	go func() {
		<-ctx.Done()
		<-p.cron.Stop().Done()
	}()
}
