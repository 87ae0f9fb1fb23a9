package energymodel

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps every record in process memory.
type MemoryStore struct {
	mu          sync.RWMutex
	datacenters map[string]Datacenter
	byName      map[string]string
	projects    map[string]*Records

	locks  *ProjectLocks
	hooks  hookList
	logger *zap.Logger
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	return &MemoryStore{
		datacenters: make(map[string]Datacenter),
		byName:      make(map[string]string),
		projects:    make(map[string]*Records),
		locks:       NewProjectLocks(),
		logger:      logger,
	}
}

// OnSave registers a hook fired after every persisted project update.
func (s *MemoryStore) OnSave(hook SaveHook) {
	s.hooks.add(hook)
}

// OnDelete registers a hook fired for every deleted project.
func (s *MemoryStore) OnDelete(hook DeleteHook) {
	s.hooks.addDelete(hook)
}

func (s *MemoryStore) CreateDatacenter(ctx context.Context, name, location string) (Datacenter, error) {
	if err := ctx.Err(); err != nil {
		return Datacenter{}, err
	}

	dc := Datacenter{ID: uuid.NewString(), Name: name, Location: location}
	s.mu.Lock()
	s.datacenters[dc.ID] = dc
	if _, ok := s.byName[name]; !ok {
		s.byName[name] = dc.ID
	}
	s.mu.Unlock()

	s.logger.Debug("Created datacenter", zap.String("datacenter", dc.ID), zap.String("name", name))
	return dc, nil
}

func (s *MemoryStore) FindDatacenter(ctx context.Context, name string) (Datacenter, error) {
	if err := ctx.Err(); err != nil {
		return Datacenter{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byName[name]
	if !ok {
		return Datacenter{}, fmt.Errorf("datacenter %q: %w", name, ErrDatacenterNotFound)
	}
	return s.datacenters[id], nil
}

func (s *MemoryStore) DeleteDatacenter(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	dc, ok := s.datacenters[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("datacenter %s: %w", id, ErrDatacenterNotFound)
	}
	delete(s.datacenters, id)
	if s.byName[dc.Name] == id {
		delete(s.byName, dc.Name)
	}

	var removed []string
	for pid, rec := range s.projects {
		if rec.Project.DatacenterID == id {
			delete(s.projects, pid)
			removed = append(removed, pid)
		}
	}
	s.mu.Unlock()

	s.logger.Debug("Deleted datacenter", zap.String("datacenter", id), zap.Int("projects", len(removed)))
	return s.hooks.fireDelete(ctx, removed...)
}

func (s *MemoryStore) CreateProject(ctx context.Context, datacenterID, name string) (Project, error) {
	if err := ctx.Err(); err != nil {
		return Project{}, err
	}

	p := Project{ID: uuid.NewString(), DatacenterID: datacenterID, Name: name}
	s.mu.Lock()
	if _, ok := s.datacenters[datacenterID]; !ok {
		s.mu.Unlock()
		return Project{}, fmt.Errorf("datacenter %s: %w", datacenterID, ErrDatacenterNotFound)
	}
	s.projects[p.ID] = newRecords(p)
	s.mu.Unlock()

	s.logger.Debug("Created project", zap.String("project", p.ID), zap.String("name", name))
	return p, s.hooks.fire(ctx, p.ID, []Kind{KindResult})
}

func (s *MemoryStore) DeleteProject(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.deleteProject(id); err != nil {
		return err
	}
	return s.hooks.fireDelete(ctx, id)
}

func (s *MemoryStore) deleteProject(id string) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[id]; !ok {
		return fmt.Errorf("project %s: %w", id, ErrProjectNotFound)
	}
	delete(s.projects, id)
	return nil
}

func (s *MemoryStore) ListProjects(ctx context.Context, datacenterID string) ([]Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.datacenters[datacenterID]; !ok {
		return nil, fmt.Errorf("datacenter %s: %w", datacenterID, ErrDatacenterNotFound)
	}

	var out []Project
	for _, rec := range s.projects {
		if rec.Project.DatacenterID == datacenterID {
			out = append(out, rec.Project)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) Load(ctx context.Context, projectID string) (*Records, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.projects[projectID]
	if !ok {
		return nil, fmt.Errorf("project %s: %w", projectID, ErrProjectNotFound)
	}
	return rec.Clone(), nil
}

func (s *MemoryStore) Update(ctx context.Context, projectID string, fn func(*Records) error) error {
	changed, err := s.update(ctx, projectID, fn)
	if err != nil {
		return err
	}
	return s.hooks.fire(ctx, projectID, changed)
}

func (s *MemoryStore) update(ctx context.Context, projectID string, fn func(*Records) error) ([]Kind, error) {
	unlock := s.locks.Lock(projectID)
	defer unlock()

	rec, err := s.Load(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := fn(rec); err != nil {
		return nil, err
	}

	changed := rec.Changed()
	if len(changed) == 0 {
		return nil, nil
	}
	rec.resetChanges()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[projectID]; !ok {
		return nil, fmt.Errorf("project %s: %w", projectID, ErrProjectNotFound)
	}
	s.projects[projectID] = rec
	return changed, nil
}
