// Package guidance manages the operator's forbidden and encouraged work items
// for a running loop. Every mutation is a fresh load, change and save through
// a config.Store; nothing is cached between calls.
package guidance

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/terrylica/ralph-universal/internal/config"
)

// ErrEmptyItem is returned when a blank item is added.
var ErrEmptyItem = errors.New("guidance: item is empty")

// Kind selects one of the two lists.
type Kind string

const (
	Forbidden  Kind = "forbidden"
	Encouraged Kind = "encouraged"
)

// Registry mutates the guidance block of the loop config.
type Registry struct {
	store config.Store
	clock func() time.Time
}

// New creates a registry backed by store.
func New(store config.Store) *Registry {
	return &Registry{store: store, clock: func() time.Time { return time.Now().UTC() }}
}

// WithClock overrides the timestamp source.
func (r *Registry) WithClock(clock func() time.Time) *Registry {
	if clock != nil {
		r.clock = clock
	}
	return r
}

// AddForbidden appends item to the forbidden list.
func (r *Registry) AddForbidden(item string) error {
	return r.add(Forbidden, item)
}

// AddEncouraged appends item to the encouraged list.
func (r *Registry) AddEncouraged(item string) error {
	return r.add(Encouraged, item)
}

// ClearForbidden empties the forbidden list.
func (r *Registry) ClearForbidden() error {
	return r.clear(Forbidden)
}

// ClearEncouraged empties the encouraged list.
func (r *Registry) ClearEncouraged() error {
	return r.clear(Encouraged)
}

// Add appends item to the list named by kind.
func (r *Registry) Add(kind Kind, item string) error {
	return r.add(kind, item)
}

// Clear empties the list named by kind.
func (r *Registry) Clear(kind Kind) error {
	return r.clear(kind)
}

// List returns the current guidance in insertion order. A degraded load still
// returns the defaults it substituted.
func (r *Registry) List() config.Guidance {
	g := r.store.Load().Config.Guidance
	return config.Guidance{
		Forbidden:  append(config.StringList{}, g.Forbidden...),
		Encouraged: append(config.StringList{}, g.Encouraged...),
		Timestamp:  g.Timestamp,
	}
}

// Items returns one list in insertion order.
func (r *Registry) Items(kind Kind) []string {
	g := r.List()
	if kind == Forbidden {
		return []string(g.Forbidden)
	}
	return []string(g.Encouraged)
}

func (r *Registry) add(kind Kind, item string) error {
	item = strings.TrimSpace(item)
	if item == "" {
		return ErrEmptyItem
	}
	return r.mutate(func(g *config.Guidance) {
		switch kind {
		case Forbidden:
			g.Forbidden = append(g.Forbidden, item)
		default:
			g.Encouraged = append(g.Encouraged, item)
		}
	})
}

func (r *Registry) clear(kind Kind) error {
	return r.mutate(func(g *config.Guidance) {
		switch kind {
		case Forbidden:
			g.Forbidden = config.StringList{}
		default:
			g.Encouraged = config.StringList{}
		}
	})
}

// mutate refuses to write over a config that failed to load; saving defaults
// there would silently discard the operator's file.
func (r *Registry) mutate(fn func(*config.Guidance)) error {
	loaded := r.store.Load()
	if loaded.Err != nil {
		return fmt.Errorf("guidance: %w", loaded.Err)
	}
	cfg := loaded.Config
	fn(&cfg.Guidance)
	cfg.Guidance.Timestamp = r.clock().UTC().Format(time.RFC3339)
	if err := r.store.Save(cfg); err != nil {
		return fmt.Errorf("guidance: %w", err)
	}
	return nil
}

// Latest returns the list most-recent-first, the order prompt builders apply
// guidance in.
func Latest(items []string) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[len(items)-1-i] = item
	}
	return out
}
