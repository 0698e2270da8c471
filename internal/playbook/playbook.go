package playbook

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vigilstack/vigil-rca/internal/models"
)

// Action is one ordered step in a playbook.
type Action struct {
	Name        string            `json:"name" yaml:"name"`
	Description string            `json:"description" yaml:"description"`
	Kind        models.ActionKind `json:"kind" yaml:"kind"`
	Params      map[string]any    `json:"params,omitempty" yaml:"params,omitempty"`
}

// Playbook pairs trigger conditions (OR semantics) with an ordered action
// list. ID and CreatedAt are assigned on registration; RunCount and LastRun
// are maintained by the registry.
type Playbook struct {
	ID            string
	Name          string
	Description   string
	Triggers      []Trigger
	Actions       []Action
	AutoRemediate bool
	Tags          []string

	RunCount  int
	LastRun   time.Time
	CreatedAt time.Time

	// source marks where the playbook came from: "" for code-registered
	// playbooks, the pack path for file-loaded ones. Reload swaps all
	// playbooks sharing a source in one step.
	source string
}

// MatchesEvent reports whether any trigger matches the event.
func (p *Playbook) MatchesEvent(e models.Event) bool {
	for _, t := range p.Triggers {
		if t.Matches(e) {
			return true
		}
	}
	return false
}

// Registry is the append-only set of registered playbooks. Registration order
// is preserved, which fixes the order matched playbooks execute in.
type Registry struct {
	logger *slog.Logger

	mu        sync.RWMutex
	playbooks []*Playbook
}

// NewRegistry constructs an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds a playbook, assigning its id and creation time.
func (r *Registry) Register(p *Playbook) {
	p.ID = uuid.NewString()[:8]
	p.CreatedAt = time.Now().UTC()

	r.mu.Lock()
	r.playbooks = append(r.playbooks, p)
	r.mu.Unlock()

	r.logger.Info("registered playbook",
		slog.String("id", p.ID),
		slog.String("name", p.Name),
		slog.Int("triggers", len(p.Triggers)),
		slog.Int("actions", len(p.Actions)))
}

// ReplaceSource atomically swaps every playbook from the given source for the
// replacements, preserving the position of untouched playbooks. Used by the
// pack loader on reload; code-registered playbooks are never displaced.
func (r *Registry) ReplaceSource(source string, replacements []*Playbook) {
	now := time.Now().UTC()
	for _, p := range replacements {
		p.ID = uuid.NewString()[:8]
		p.CreatedAt = now
		p.source = source
	}

	r.mu.Lock()
	kept := r.playbooks[:0]
	for _, p := range r.playbooks {
		if p.source != source {
			kept = append(kept, p)
		}
	}
	r.playbooks = append(kept, replacements...)
	r.mu.Unlock()

	r.logger.Info("replaced playbook source",
		slog.String("source", source),
		slog.Int("playbooks", len(replacements)))
}

// Match returns the playbooks whose triggers match the event, in
// registration order.
func (r *Registry) Match(e models.Event) []*Playbook {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*Playbook
	for _, p := range r.playbooks {
		if p.MatchesEvent(e) {
			matched = append(matched, p)
		}
	}
	return matched
}

// RecordRun bumps a playbook's run counter and last-run timestamp.
func (r *Registry) RecordRun(id string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.playbooks {
		if p.ID == id {
			p.RunCount++
			p.LastRun = at
			return
		}
	}
}

// Len reports the number of registered playbooks.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.playbooks)
}

// List returns serializable metadata for every registered playbook.
func (r *Registry) List() []models.PlaybookInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]models.PlaybookInfo, 0, len(r.playbooks))
	for _, p := range r.playbooks {
		triggers := make([]string, 0, len(p.Triggers))
		for _, t := range p.Triggers {
			triggers = append(triggers, t.Name)
		}
		actions := make([]models.ActionInfo, 0, len(p.Actions))
		for _, a := range p.Actions {
			actions = append(actions, models.ActionInfo{Name: a.Name, Kind: a.Kind})
		}
		infos = append(infos, models.PlaybookInfo{
			ID:            p.ID,
			Name:          p.Name,
			Description:   p.Description,
			Triggers:      triggers,
			Actions:       actions,
			AutoRemediate: p.AutoRemediate,
			Tags:          p.Tags,
			RunCount:      p.RunCount,
			LastRun:       p.LastRun,
			CreatedAt:     p.CreatedAt,
		})
	}
	return infos
}
