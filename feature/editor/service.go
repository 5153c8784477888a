package editor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"asset-bank/core/asset"
	"asset-bank/core/filebank"
	"asset-bank/core/project"

	"go.uber.org/zap"
)

// ErrInvalidKind is returned for an unknown kind filter.
var ErrInvalidKind = errors.New("invalid asset kind")

// Status is a snapshot of the project state.
type Status struct {
	Root              string   `json:"root"`
	Entries           int      `json:"entries"`
	Loaded            int      `json:"loaded"`
	PendingMarks      int      `json:"pending_marks"`
	Watching          bool     `json:"watching"`
	WaitingForSync    bool     `json:"waiting_for_sync"`
	WaitingForRebuild bool     `json:"waiting_for_rebuild"`
	Building          bool     `json:"building"`
	Module            string   `json:"module,omitempty"`
	ModuleVersion     uint64   `json:"module_version"`
	Errors            []string `json:"errors,omitempty"`
}

// Asset describes one tracked entry.
type Asset struct {
	Guid   string `json:"guid"`
	Kind   string `json:"kind"`
	Name   string `json:"name"`
	Path   string `json:"path"`
	Loaded bool   `json:"loaded"`
	// Details holds what processors derived for the entry.
	Details   any    `json:"details,omitempty"`
	LoadError string `json:"load_error,omitempty"`
}

// Service reads and drives the project on its main loop.
type Service struct {
	loop   *project.Loop
	logger *zap.Logger
}

// NewService creates a new editor service.
func NewService(loop *project.Loop, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{loop: loop, logger: logger}
}

// Status returns the current project state.
func (s *Service) Status(ctx context.Context) (Status, error) {
	var st Status
	err := s.loop.Do(ctx, func(p *project.Project) error {
		bank := p.Bank()
		st = Status{
			Root:              bank.Root(),
			Entries:           bank.Len(),
			PendingMarks:      bank.PendingMarks(),
			Watching:          p.IsWatching(),
			WaitingForSync:    p.IsWaitingForSync(),
			WaitingForRebuild: p.IsWaitingForRebuild(),
			Building:          p.IsBuilding(),
			Errors:            p.Errors(),
		}
		for _, e := range bank.Entries() {
			if e.IsLoaded() {
				st.Loaded++
			}
		}
		if m := p.Host().Current(); m != nil {
			st.Module = m.Name()
			st.ModuleVersion = m.Version()
		}
		return nil
	})
	return st, err
}

// List returns the tracked entries of kind (all kinds when empty) whose name
// starts with prefix, ordered by path.
func (s *Service) List(ctx context.Context, kind, prefix string) ([]Asset, error) {
	want := asset.KindUnknown
	if kind != "" {
		k, ok := asset.ParseKind(kind)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
		}
		want = k
	}
	prefix = asset.PrefixKey(prefix)

	out := []Asset{}
	err := s.loop.Do(ctx, func(p *project.Project) error {
		bank := p.Bank()
		for _, t := range bank.Tracked() {
			if want != asset.KindUnknown && t.Kind != want {
				continue
			}
			if !strings.HasPrefix(asset.PathKey(t.Name), prefix) {
				continue
			}
			out = append(out, describe(t, bank.Entry(t.Guid)))
		}
		return nil
	})
	return out, err
}

// Get returns one entry. With load set the instance is materialized first and a
// load failure is reported in the result rather than as an error.
func (s *Service) Get(ctx context.Context, guid string, load bool) (Asset, error) {
	id, err := asset.ParseGuid(guid)
	if err != nil {
		return Asset{}, err
	}

	var out Asset
	err = s.loop.Do(ctx, func(p *project.Project) error {
		bank := p.Bank()
		e := bank.Entry(id)
		path, tracked := bank.PathOf(id)
		if e == nil || !tracked {
			return fmt.Errorf("%w: %s", asset.ErrNotFound, guid)
		}
		var loadErr error
		if load {
			_, loadErr = bank.Load(id)
		}
		out = describe(filebank.Tracked{Guid: id, Kind: e.Kind(), Name: e.Name(), Path: path}, e)
		if loadErr != nil {
			out.LoadError = loadErr.Error()
		}
		return nil
	})
	return out, err
}

// Reload runs one reload on the loop.
func (s *Service) Reload(ctx context.Context, full bool) (project.ReloadResult, error) {
	var res project.ReloadResult
	err := s.loop.Do(ctx, func(p *project.Project) error {
		var err error
		res, err = p.Reload(ctx, full)
		return err
	})
	return res, err
}

// SetWatching starts or stops watching.
func (s *Service) SetWatching(ctx context.Context, on bool) error {
	return s.loop.Do(ctx, func(p *project.Project) error {
		if !on {
			p.StopWatching()
			return nil
		}
		return p.StartWatching()
	})
}

func describe(t filebank.Tracked, e *asset.Entry) Asset {
	a := Asset{
		Guid: t.Guid.String(),
		Kind: t.Kind.String(),
		Name: t.Name,
		Path: t.Path,
	}
	if e != nil {
		a.Loaded = e.IsLoaded()
		a.Details = e.UserData
	}
	return a
}
