package playbook

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/vigilstack/vigil-rca/internal/models"
	"github.com/vigilstack/vigil-rca/internal/utils"
)

// packFile is the on-disk shape of a playbook pack.
type packFile struct {
	Playbooks []packPlaybook `yaml:"playbooks"`
}

type packPlaybook struct {
	Name          string    `yaml:"name"`
	Description   string    `yaml:"description"`
	Triggers      []Trigger `yaml:"triggers"`
	Actions       []Action  `yaml:"actions"`
	AutoRemediate bool      `yaml:"auto_remediate"`
	Tags          []string  `yaml:"tags"`
}

// Loader reads playbook packs from YAML files and keeps the registry in sync
// with the file when watching is enabled.
type Loader struct {
	registry *Registry
	logger   *slog.Logger
}

// NewLoader constructs a Loader for the registry.
func NewLoader(registry *Registry, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{registry: registry, logger: logger}
}

// Load parses the pack at path and installs its playbooks, replacing any
// previously loaded from the same path.
func (l *Loader) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &utils.AppError{Op: "playbook.Load", Msg: "read playbook pack", Err: err}
	}

	var pack packFile
	if err := yaml.Unmarshal(data, &pack); err != nil {
		return &utils.AppError{Op: "playbook.Load", Msg: "parse playbook pack", Err: err}
	}

	playbooks := make([]*Playbook, 0, len(pack.Playbooks))
	for i, spec := range pack.Playbooks {
		pb, err := spec.toPlaybook()
		if err != nil {
			return &utils.AppError{Op: "playbook.Load",
				Msg: fmt.Sprintf("playbook %d (%s)", i, spec.Name), Err: err}
		}
		playbooks = append(playbooks, pb)
	}

	l.registry.ReplaceSource(path, playbooks)
	l.logger.Info("loaded playbook pack",
		slog.String("path", path),
		slog.Int("playbooks", len(playbooks)))
	return nil
}

func (p packPlaybook) toPlaybook() (*Playbook, error) {
	if p.Name == "" {
		return nil, fmt.Errorf("playbook name is required")
	}
	if len(p.Triggers) == 0 {
		return nil, fmt.Errorf("at least one trigger is required")
	}
	if len(p.Actions) == 0 {
		return nil, fmt.Errorf("at least one action is required")
	}
	for _, t := range p.Triggers {
		if err := validateTrigger(t); err != nil {
			return nil, err
		}
	}
	for _, a := range p.Actions {
		switch a.Kind {
		case models.ActionInvestigate, models.ActionQuery, models.ActionNotify,
			models.ActionRecommend, models.ActionCorrelate, models.ActionGeneric:
		default:
			return nil, fmt.Errorf("action %q: unknown kind %q", a.Name, a.Kind)
		}
	}
	return &Playbook{
		Name:          p.Name,
		Description:   p.Description,
		Triggers:      p.Triggers,
		Actions:       p.Actions,
		AutoRemediate: p.AutoRemediate,
		Tags:          p.Tags,
	}, nil
}

func validateTrigger(t Trigger) error {
	switch t.Kind {
	case TriggerFieldIn:
		if len(t.Fields) == 0 || len(t.Values) == 0 {
			return fmt.Errorf("trigger %q: field_in requires fields and values", t.Name)
		}
	case TriggerFieldContains:
		if t.Field == "" || t.Substring == "" {
			return fmt.Errorf("trigger %q: field_contains requires field and substring", t.Name)
		}
	case TriggerThreshold:
		if t.ValueField == "" {
			return fmt.Errorf("trigger %q: threshold requires value_field", t.Name)
		}
	case TriggerAnyOf:
		if len(t.AnyOf) == 0 {
			return fmt.Errorf("trigger %q: any_of requires nested triggers", t.Name)
		}
		for _, nested := range t.AnyOf {
			if err := validateTrigger(nested); err != nil {
				return err
			}
		}
	case TriggerCustom:
		return fmt.Errorf("trigger %q: custom triggers cannot be loaded from a pack", t.Name)
	default:
		return fmt.Errorf("trigger %q: unknown kind %q", t.Name, t.Kind)
	}
	return nil
}

// Watch reloads the pack whenever the file changes, until ctx is done.
// Editors replace files rather than writing in place, so the watch is on the
// parent directory and filtered by name.
func (l *Loader) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return &utils.AppError{Op: "playbook.Watch", Msg: "create watcher", Err: err}
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return &utils.AppError{Op: "playbook.Watch", Msg: "watch " + dir, Err: err}
	}

	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			debounce = time.After(200 * time.Millisecond)

		case <-debounce:
			debounce = nil
			if err := l.Load(path); err != nil {
				l.logger.Error("playbook pack reload failed",
					slog.String("path", path), slog.Any("error", err))
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			l.logger.Error("playbook pack watcher error", slog.Any("error", err))
		}
	}
}
