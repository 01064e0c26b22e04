package hotplug

import (
	"context"
	"slices"
	"time"
)

// DefaultPollInterval is used by the polling source when none is set.
const DefaultPollInterval = 2 * time.Second

// Poller detects changes by comparing successive path snapshots. It serves
// platforms without a kernel event feed.
type Poller struct {
	snapshot func() ([]string, error)
	interval time.Duration
}

// NewPoller polls snapshot every interval.
func NewPoller(snapshot func() ([]string, error), interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{snapshot: snapshot, interval: interval}
}

func (p *Poller) Name() string { return "poll" }

// Run implements Source. A failed snapshot is treated as unchanged.
func (p *Poller) Run(ctx context.Context, changed func()) error {
	last, _ := p.take()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			current, err := p.take()
			if err != nil {
				continue
			}
			if !slices.Equal(last, current) {
				last = current
				changed()
			}
		}
	}
}

func (p *Poller) take() ([]string, error) {
	paths, err := p.snapshot()
	if err != nil {
		return nil, err
	}
	paths = slices.Clone(paths)
	slices.Sort(paths)
	return paths, nil
}
