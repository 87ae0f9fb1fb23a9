package energymodel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultKeyPrefix = "dcenergy:"
	maxTxRetries     = 10
)

var _ Store = (*RedisStore)(nil)

// RedisStore keeps each project's records as one JSON document. Updates use
// WATCH/MULTI so concurrent writers from any process serialize per project;
// writers inside one process also queue on a local lock to avoid retries.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	locks     *ProjectLocks
	hooks     hookList
	logger    *zap.Logger
}

// NewRedisStore constructs a store on an existing client.
func NewRedisStore(client *redis.Client, keyPrefix string, logger *zap.Logger) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix,
		locks:     NewProjectLocks(),
		logger:    logger,
	}
}

func (s *RedisStore) projectKey(id string) string {
	return s.keyPrefix + "project:" + id
}

func (s *RedisStore) datacenterKey(id string) string {
	return s.keyPrefix + "datacenter:" + id
}

func (s *RedisStore) datacenterProjectsKey(id string) string {
	return s.keyPrefix + "datacenter:" + id + ":projects"
}

// datacenterNamesKey is a hash from datacenter name to the first ID created
// with that name.
func (s *RedisStore) datacenterNamesKey() string {
	return s.keyPrefix + "datacenter:by-name"
}

// OnSave registers a hook fired after every persisted project update.
func (s *RedisStore) OnSave(hook SaveHook) {
	s.hooks.add(hook)
}

// OnDelete registers a hook fired for every deleted project.
func (s *RedisStore) OnDelete(hook DeleteHook) {
	s.hooks.addDelete(hook)
}

func (s *RedisStore) CreateDatacenter(ctx context.Context, name, location string) (Datacenter, error) {
	dc := Datacenter{ID: uuid.NewString(), Name: name, Location: location}
	data, err := json.Marshal(dc)
	if err != nil {
		return Datacenter{}, err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.datacenterKey(dc.ID), data, 0)
		pipe.HSetNX(ctx, s.datacenterNamesKey(), name, dc.ID)
		return nil
	})
	if err != nil {
		return Datacenter{}, fmt.Errorf("storing datacenter: %w", err)
	}

	s.logger.Debug("Created datacenter", zap.String("datacenter", dc.ID), zap.String("name", name))
	return dc, nil
}

func (s *RedisStore) loadDatacenter(ctx context.Context, id string) (Datacenter, error) {
	data, err := s.client.Get(ctx, s.datacenterKey(id)).Bytes()
	if err == redis.Nil {
		return Datacenter{}, fmt.Errorf("datacenter %s: %w", id, ErrDatacenterNotFound)
	}
	if err != nil {
		return Datacenter{}, fmt.Errorf("reading datacenter: %w", err)
	}

	var dc Datacenter
	if err := json.Unmarshal(data, &dc); err != nil {
		return Datacenter{}, fmt.Errorf("decoding datacenter %s: %w", id, err)
	}
	return dc, nil
}

func (s *RedisStore) FindDatacenter(ctx context.Context, name string) (Datacenter, error) {
	id, err := s.client.HGet(ctx, s.datacenterNamesKey(), name).Result()
	if err == redis.Nil {
		return Datacenter{}, fmt.Errorf("datacenter %q: %w", name, ErrDatacenterNotFound)
	}
	if err != nil {
		return Datacenter{}, fmt.Errorf("reading datacenter index: %w", err)
	}
	return s.loadDatacenter(ctx, id)
}

func (s *RedisStore) DeleteDatacenter(ctx context.Context, id string) error {
	dc, err := s.loadDatacenter(ctx, id)
	if err != nil {
		return err
	}

	projectIDs, err := s.client.SMembers(ctx, s.datacenterProjectsKey(id)).Result()
	if err != nil {
		return fmt.Errorf("listing datacenter projects: %w", err)
	}

	keys := []string{s.datacenterKey(id), s.datacenterProjectsKey(id)}
	for _, pid := range projectIDs {
		keys = append(keys, s.projectKey(pid))
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("deleting datacenter: %w", err)
	}
	indexed, err := s.client.HGet(ctx, s.datacenterNamesKey(), dc.Name).Result()
	if err == nil && indexed == id {
		err = s.client.HDel(ctx, s.datacenterNamesKey(), dc.Name).Err()
	}
	if err != nil && err != redis.Nil {
		return fmt.Errorf("updating datacenter index: %w", err)
	}

	s.logger.Debug("Deleted datacenter", zap.String("datacenter", id), zap.Int("projects", len(projectIDs)))
	return s.hooks.fireDelete(ctx, projectIDs...)
}

func (s *RedisStore) CreateProject(ctx context.Context, datacenterID, name string) (Project, error) {
	n, err := s.client.Exists(ctx, s.datacenterKey(datacenterID)).Result()
	if err != nil {
		return Project{}, fmt.Errorf("reading datacenter: %w", err)
	}
	if n == 0 {
		return Project{}, fmt.Errorf("datacenter %s: %w", datacenterID, ErrDatacenterNotFound)
	}

	p := Project{ID: uuid.NewString(), DatacenterID: datacenterID, Name: name}
	data, err := json.Marshal(newRecords(p))
	if err != nil {
		return Project{}, err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.projectKey(p.ID), data, 0)
		pipe.SAdd(ctx, s.datacenterProjectsKey(datacenterID), p.ID)
		return nil
	})
	if err != nil {
		return Project{}, fmt.Errorf("storing project: %w", err)
	}

	s.logger.Debug("Created project", zap.String("project", p.ID), zap.String("name", name))
	return p, s.hooks.fire(ctx, p.ID, []Kind{KindResult})
}

func (s *RedisStore) DeleteProject(ctx context.Context, id string) error {
	rec, err := s.Load(ctx, id)
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.projectKey(id))
		pipe.SRem(ctx, s.datacenterProjectsKey(rec.Project.DatacenterID), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("deleting project: %w", err)
	}
	return s.hooks.fireDelete(ctx, id)
}

func (s *RedisStore) ListProjects(ctx context.Context, datacenterID string) ([]Project, error) {
	n, err := s.client.Exists(ctx, s.datacenterKey(datacenterID)).Result()
	if err != nil {
		return nil, fmt.Errorf("reading datacenter: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("datacenter %s: %w", datacenterID, ErrDatacenterNotFound)
	}

	ids, err := s.client.SMembers(ctx, s.datacenterProjectsKey(datacenterID)).Result()
	if err != nil {
		return nil, fmt.Errorf("listing datacenter projects: %w", err)
	}

	var out []Project
	for _, id := range ids {
		rec, err := s.Load(ctx, id)
		if errors.Is(err, ErrProjectNotFound) {
			s.logger.Warn("Dangling project index entry", zap.String("datacenter", datacenterID), zap.String("project", id))
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec.Project)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *RedisStore) Load(ctx context.Context, projectID string) (*Records, error) {
	data, err := s.client.Get(ctx, s.projectKey(projectID)).Bytes()
	return s.decode(projectID, data, err)
}

func (s *RedisStore) decode(projectID string, data []byte, err error) (*Records, error) {
	if err == redis.Nil {
		return nil, fmt.Errorf("project %s: %w", projectID, ErrProjectNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading project %s: %w", projectID, err)
	}

	var rec Records
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decoding project %s: %w", projectID, err)
	}
	return &rec, nil
}

func (s *RedisStore) Update(ctx context.Context, projectID string, fn func(*Records) error) error {
	changed, err := s.update(ctx, projectID, fn)
	if err != nil {
		return err
	}
	return s.hooks.fire(ctx, projectID, changed)
}

func (s *RedisStore) update(ctx context.Context, projectID string, fn func(*Records) error) ([]Kind, error) {
	unlock := s.locks.Lock(projectID)
	defer unlock()

	key := s.projectKey(projectID)

	var changed []Kind
	txf := func(tx *redis.Tx) error {
		changed = nil
		data, err := tx.Get(ctx, key).Bytes()
		rec, err := s.decode(projectID, data, err)
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}

		kinds := rec.Changed()
		if len(kinds) == 0 {
			return nil
		}
		rec.resetChanges()
		data, err = json.Marshal(rec)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		if err == nil {
			changed = kinds
		}
		return err
	}

	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if err == redis.TxFailedErr {
			s.logger.Debug("Project update conflicted, retrying",
				zap.String("project", projectID),
				zap.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			return nil, err
		}
		return changed, nil
	}
	return nil, fmt.Errorf("updating project %s: %w", projectID, redis.TxFailedErr)
}
