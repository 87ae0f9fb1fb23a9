package energymodel

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	ErrProjectNotFound    = errors.New("project not found")
	ErrDatacenterNotFound = errors.New("datacenter not found")
)

// SaveHook runs after a project's records were persisted. kinds lists the
// records written in that transaction.
type SaveHook func(ctx context.Context, projectID string, kinds []Kind) error

// DeleteHook runs after a project and everything attached to it was removed,
// including projects removed with their datacenter.
type DeleteHook func(ctx context.Context, projectID string) error

// Store persists datacenters, projects and everything attached to a project.
//
// Update is the transaction boundary: fn receives a private copy of the
// project's records, and the copy is written back only if fn changed it.
// Concurrent updates of one project are serialized. Save hooks fire after the
// write, outside any lock, so a hook may itself call Update.
type Store interface {
	CreateDatacenter(ctx context.Context, name, location string) (Datacenter, error)
	// FindDatacenter returns the first datacenter created with name.
	FindDatacenter(ctx context.Context, name string) (Datacenter, error)
	DeleteDatacenter(ctx context.Context, id string) error
	// CreateProject also creates the project's zero-valued EnergyResult.
	CreateProject(ctx context.Context, datacenterID, name string) (Project, error)
	// DeleteProject removes the project with its aggregate and every config.
	DeleteProject(ctx context.Context, id string) error
	ListProjects(ctx context.Context, datacenterID string) ([]Project, error)
	Load(ctx context.Context, projectID string) (*Records, error)
	Update(ctx context.Context, projectID string, fn func(*Records) error) error
	OnSave(hook SaveHook)
	OnDelete(hook DeleteHook)
}

// SaveConfig attaches or replaces a subsystem configuration.
func SaveConfig(ctx context.Context, s Store, projectID string, cfg Config) error {
	return s.Update(ctx, projectID, func(r *Records) error {
		return r.PutConfig(cfg)
	})
}

// RemoveConfig detaches a subsystem configuration, if present.
func RemoveConfig(ctx context.Context, s Store, projectID string, kind Kind) error {
	return s.Update(ctx, projectID, func(r *Records) error {
		r.RemoveConfig(kind)
		return nil
	})
}

// SetEnergyInputs stores the measured annual IT and facility energy.
func SetEnergyInputs(ctx context.Context, s Store, projectID string, itKWh, dcKWh float64) error {
	return s.Update(ctx, projectID, func(r *Records) error {
		return r.SetEnergyInputs(itKWh, dcKWh)
	})
}

type hookList struct {
	mu      sync.RWMutex
	hooks   []SaveHook
	deletes []DeleteHook
}

func (h *hookList) add(hook SaveHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, hook)
}

func (h *hookList) addDelete(hook DeleteHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.deletes = append(h.deletes, hook)
}

// fireDelete runs every delete hook for each removed project and joins the
// failures; one failing hook does not stop the others.
func (h *hookList) fireDelete(ctx context.Context, projectIDs ...string) error {
	h.mu.RLock()
	hooks := make([]DeleteHook, len(h.deletes))
	copy(hooks, h.deletes)
	h.mu.RUnlock()

	var errs []error
	for _, id := range projectIDs {
		for _, hook := range hooks {
			if err := hook(ctx, id); err != nil {
				errs = append(errs, fmt.Errorf("delete hook for project %s: %w", id, err))
			}
		}
	}
	return errors.Join(errs...)
}

func (h *hookList) fire(ctx context.Context, projectID string, kinds []Kind) error {
	if len(kinds) == 0 {
		return nil
	}

	h.mu.RLock()
	hooks := make([]SaveHook, len(h.hooks))
	copy(hooks, h.hooks)
	h.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook(ctx, projectID, kinds); err != nil {
			return fmt.Errorf("save hook for project %s: %w", projectID, err)
		}
	}
	return nil
}

// ProjectLocks hands out one mutex per project ID.
type ProjectLocks struct {
	mu    sync.Mutex
	locks map[string]*projectLock
}

type projectLock struct {
	mu   sync.Mutex
	refs int
}

// NewProjectLocks constructs an empty lock set.
func NewProjectLocks() *ProjectLocks {
	return &ProjectLocks{locks: make(map[string]*projectLock)}
}

// Lock blocks until the project's mutex is held and returns its release func.
func (l *ProjectLocks) Lock(projectID string) func() {
	l.mu.Lock()
	pl, ok := l.locks[projectID]
	if !ok {
		pl = &projectLock{}
		l.locks[projectID] = pl
	}
	pl.refs++
	l.mu.Unlock()

	pl.mu.Lock()
	return func() {
		pl.mu.Unlock()
		l.mu.Lock()
		pl.refs--
		if pl.refs == 0 {
			delete(l.locks, projectID)
		}
		l.mu.Unlock()
	}
}
