package energymodel

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newMemoryTestStore(t *testing.T) Store {
	return NewMemoryStore(zaptest.NewLogger(t))
}

func newRedisTestStore(t *testing.T) Store {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, "test:", zaptest.NewLogger(t))
}

func TestStores(t *testing.T) {
	backends := map[string]func(*testing.T) Store{
		"memory": newMemoryTestStore,
		"redis":  newRedisTestStore,
	}
	for name, newStore := range backends {
		newStore := newStore
		t.Run(name, func(t *testing.T) {
			t.Run("CreateProjectCreatesResult", func(t *testing.T) { testCreateProjectCreatesResult(t, newStore(t)) })
			t.Run("CreateProjectUnknownDatacenter", func(t *testing.T) { testCreateProjectUnknownDatacenter(t, newStore(t)) })
			t.Run("UpdateKeepsCalculatedFields", func(t *testing.T) { testUpdateKeepsCalculatedFields(t, newStore(t)) })
			t.Run("UpdateWithoutChangesSkipsHooks", func(t *testing.T) { testUpdateWithoutChangesSkipsHooks(t, newStore(t)) })
			t.Run("HookMayUpdate", func(t *testing.T) { testHookMayUpdate(t, newStore(t)) })
			t.Run("DeleteProjectCascades", func(t *testing.T) { testDeleteProjectCascades(t, newStore(t)) })
			t.Run("DeleteDatacenterCascades", func(t *testing.T) { testDeleteDatacenterCascades(t, newStore(t)) })
			t.Run("ConcurrentUpdatesSerialize", func(t *testing.T) { testConcurrentUpdatesSerialize(t, newStore(t)) })
			t.Run("FindDatacenterByName", func(t *testing.T) { testFindDatacenterByName(t, newStore(t)) })
			t.Run("DeleteHooksSeeEveryProject", func(t *testing.T) { testDeleteHooksSeeEveryProject(t, newStore(t)) })
		})
	}
}

func seedProject(t *testing.T, s Store) Project {
	t.Helper()
	ctx := context.Background()
	dc, err := s.CreateDatacenter(ctx, "DC1", "Dublin")
	require.NoError(t, err)
	p, err := s.CreateProject(ctx, dc.ID, "Baseline")
	require.NoError(t, err)
	return p
}

func testCreateProjectCreatesResult(t *testing.T, s Store) {
	p := seedProject(t, s)

	rec, err := s.Load(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, p, rec.Project)
	assert.Zero(t, rec.Result.EITInputKWh)
	assert.Zero(t, rec.Result.EDCInputKWh)
	assert.Nil(t, rec.Result.Calculated.PUEInput)
	assert.Nil(t, rec.Lighting)
	assert.Empty(t, rec.Changed())
}

func testCreateProjectUnknownDatacenter(t *testing.T, s Store) {
	_, err := s.CreateProject(context.Background(), "missing", "Orphan")
	assert.ErrorIs(t, err, ErrDatacenterNotFound)
}

func testUpdateKeepsCalculatedFields(t *testing.T, s Store) {
	ctx := context.Background()
	p := seedProject(t, s)

	load := 7.0
	require.NoError(t, s.Update(ctx, p.ID, func(r *Records) error {
		if err := r.PutConfig(Lighting{LightingType: "LED"}); err != nil {
			return err
		}
		r.Lighting.Calculated.LightingLoadWm2 = &load
		return nil
	}))

	// A user save never carries calculated values through.
	forged := 99.0
	require.NoError(t, SaveConfig(ctx, s, p.ID, Lighting{
		LightingType: "LED High Bay",
		Calculated:   LightingCalculated{LightingLoadWm2: &forged},
	}))

	rec, err := s.Load(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, rec.Lighting)
	assert.Equal(t, "LED High Bay", rec.Lighting.LightingType)
	require.NotNil(t, rec.Lighting.Calculated.LightingLoadWm2)
	assert.Equal(t, 7.0, *rec.Lighting.Calculated.LightingLoadWm2)
}

func testUpdateWithoutChangesSkipsHooks(t *testing.T, s Store) {
	ctx := context.Background()
	p := seedProject(t, s)

	var calls int
	s.OnSave(func(context.Context, string, []Kind) error {
		calls++
		return nil
	})

	require.NoError(t, SetEnergyInputs(ctx, s, p.ID, 1000, 1500))
	require.NoError(t, SetEnergyInputs(ctx, s, p.ID, 1000, 1500))
	assert.Equal(t, 1, calls)

	require.NoError(t, RemoveConfig(ctx, s, p.ID, KindChiller))
	assert.Equal(t, 1, calls, "removing an absent config writes nothing")
}

func testHookMayUpdate(t *testing.T, s Store) {
	ctx := context.Background()
	p := seedProject(t, s)

	var seen [][]Kind
	s.OnSave(func(ctx context.Context, id string, kinds []Kind) error {
		seen = append(seen, kinds)
		return s.Update(ctx, id, func(r *Records) error {
			if r.Result.Calculated.EDCKWh != r.Result.EITInputKWh {
				r.Result.Calculated.EDCKWh = r.Result.EITInputKWh
				r.MarkChanged(KindResult)
			}
			return nil
		})
	})

	require.NoError(t, SaveConfig(ctx, s, p.ID, UPS{InstalledCapacityKW: 500, EfficiencyPercent: 95}))
	require.NoError(t, SetEnergyInputs(ctx, s, p.ID, 10, 20))

	rec, err := s.Load(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 10.0, rec.Result.Calculated.EDCKWh)
	require.NotEmpty(t, seen)
	assert.Equal(t, []Kind{KindUPS}, seen[0])
}

func testDeleteProjectCascades(t *testing.T, s Store) {
	ctx := context.Background()
	p := seedProject(t, s)
	require.NoError(t, SaveConfig(ctx, s, p.ID, Datahall{AreaM2: 1000}))

	require.NoError(t, s.DeleteProject(ctx, p.ID))

	_, err := s.Load(ctx, p.ID)
	assert.ErrorIs(t, err, ErrProjectNotFound)
	assert.ErrorIs(t, s.DeleteProject(ctx, p.ID), ErrProjectNotFound)

	projects, err := s.ListProjects(ctx, p.DatacenterID)
	require.NoError(t, err)
	assert.Empty(t, projects)
}

func testDeleteDatacenterCascades(t *testing.T, s Store) {
	ctx := context.Background()
	p := seedProject(t, s)
	other, err := s.CreateProject(ctx, p.DatacenterID, "Alternative")
	require.NoError(t, err)

	projects, err := s.ListProjects(ctx, p.DatacenterID)
	require.NoError(t, err)
	assert.Equal(t, []Project{other, p}, projects)

	require.NoError(t, s.DeleteDatacenter(ctx, p.DatacenterID))

	_, err = s.Load(ctx, p.ID)
	assert.ErrorIs(t, err, ErrProjectNotFound)
	_, err = s.Load(ctx, other.ID)
	assert.ErrorIs(t, err, ErrProjectNotFound)
	_, err = s.ListProjects(ctx, p.DatacenterID)
	assert.ErrorIs(t, err, ErrDatacenterNotFound)
}

func testConcurrentUpdatesSerialize(t *testing.T, s Store) {
	ctx := context.Background()
	p := seedProject(t, s)

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Update(ctx, p.ID, func(r *Records) error {
				return r.SetEnergyInputs(r.Result.EITInputKWh+1, 0)
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	rec, err := s.Load(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(writers), rec.Result.EITInputKWh)
}

func testFindDatacenterByName(t *testing.T, s Store) {
	ctx := context.Background()

	_, err := s.FindDatacenter(ctx, "DC1")
	assert.ErrorIs(t, err, ErrDatacenterNotFound)

	first, err := s.CreateDatacenter(ctx, "DC1", "Dublin")
	require.NoError(t, err)
	_, err = s.CreateDatacenter(ctx, "DC1", "Cork")
	require.NoError(t, err)

	found, err := s.FindDatacenter(ctx, "DC1")
	require.NoError(t, err)
	assert.Equal(t, first, found, "the first datacenter with a name wins")

	require.NoError(t, s.DeleteDatacenter(ctx, first.ID))
	_, err = s.FindDatacenter(ctx, "DC1")
	assert.ErrorIs(t, err, ErrDatacenterNotFound)
}

func testDeleteHooksSeeEveryProject(t *testing.T, s Store) {
	ctx := context.Background()
	p := seedProject(t, s)
	other, err := s.CreateProject(ctx, p.DatacenterID, "Alternative")
	require.NoError(t, err)
	kept := seedProject(t, s)

	var deleted []string
	s.OnDelete(func(_ context.Context, id string) error {
		deleted = append(deleted, id)
		return nil
	})

	require.NoError(t, s.DeleteProject(ctx, p.ID))
	assert.Equal(t, []string{p.ID}, deleted)

	assert.ErrorIs(t, s.DeleteProject(ctx, p.ID), ErrProjectNotFound)
	assert.Len(t, deleted, 1, "a failed delete fires no hook")

	require.NoError(t, s.DeleteDatacenter(ctx, p.DatacenterID))
	assert.Equal(t, []string{p.ID, other.ID}, deleted)
	assert.NotContains(t, deleted, kept.ID)
}
