package history

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/example/dc-energy/pkg/energymodel"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func snapshot(project string, ts time.Time, pue float64) Snapshot {
	return Snapshot{ProjectID: project, Timestamp: ts, ITKWh: 1000, DCKWh: 1000 * pue, PUEInput: &pue}
}

func TestHistoryStores(t *testing.T) {
	backends := map[string]func(*testing.T) Store{
		"memory": func(*testing.T) Store { return NewMemoryStore(48 * time.Hour) },
		"redis": func(t *testing.T) Store {
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { client.Close() })
			return NewRedisStore(client, "test:", 48*time.Hour, zaptest.NewLogger(t))
		},
	}

	for name, newStore := range backends {
		newStore := newStore
		t.Run(name, func(t *testing.T) {
			t.Run("CurrentIsLatest", func(t *testing.T) {
				ctx := context.Background()
				s := newStore(t)

				_, err := s.Current(ctx, "p1")
				assert.ErrorIs(t, err, ErrNoHistory)

				require.NoError(t, s.Record(ctx, snapshot("p1", t0, 1.4)))
				require.NoError(t, s.Record(ctx, snapshot("p1", t0.Add(time.Hour), 1.3)))
				require.NoError(t, s.Record(ctx, snapshot("p2", t0, 2.0)))

				cur, err := s.Current(ctx, "p1")
				require.NoError(t, err)
				assert.True(t, cur.Timestamp.Equal(t0.Add(time.Hour)))
				assert.Equal(t, 1.3, *cur.PUEInput)
			})

			t.Run("SinceIsOrderedAndBounded", func(t *testing.T) {
				ctx := context.Background()
				s := newStore(t)
				for i, pue := range []float64{1.5, 1.4, 1.3} {
					require.NoError(t, s.Record(ctx, snapshot("p1", t0.Add(time.Duration(i)*time.Hour), pue)))
				}

				all, err := s.Since(ctx, "p1", t0)
				require.NoError(t, err)
				require.Len(t, all, 3)
				assert.Equal(t, 1.5, *all[0].PUEInput)
				assert.Equal(t, 1.3, *all[2].PUEInput)

				recent, err := s.Since(ctx, "p1", t0.Add(90*time.Minute))
				require.NoError(t, err)
				require.Len(t, recent, 1)
				assert.Equal(t, 1.3, *recent[0].PUEInput)

				none, err := s.Since(ctx, "unknown", t0)
				require.NoError(t, err)
				assert.Empty(t, none)
			})

			t.Run("DeleteForgetsProject", func(t *testing.T) {
				ctx := context.Background()
				s := newStore(t)
				require.NoError(t, s.Record(ctx, snapshot("p1", t0, 1.5)))
				require.NoError(t, s.Record(ctx, snapshot("p2", t0, 1.2)))

				require.NoError(t, s.Delete(ctx, "p1"))
				require.NoError(t, s.Delete(ctx, "unknown"))

				_, err := s.Current(ctx, "p1")
				assert.ErrorIs(t, err, ErrNoHistory)
				left, err := s.Since(ctx, "p1", time.Time{})
				require.NoError(t, err)
				assert.Empty(t, left)

				other, err := s.Since(ctx, "p2", time.Time{})
				require.NoError(t, err)
				assert.Len(t, other, 1)
			})

			t.Run("RetentionDropsOldSnapshots", func(t *testing.T) {
				ctx := context.Background()
				s := newStore(t)
				require.NoError(t, s.Record(ctx, snapshot("p1", t0, 1.5)))
				require.NoError(t, s.Record(ctx, snapshot("p1", t0.Add(72*time.Hour), 1.2)))

				all, err := s.Since(ctx, "p1", time.Time{})
				require.NoError(t, err)
				require.Len(t, all, 1)
				assert.Equal(t, 1.2, *all[0].PUEInput)
			})
		})
	}
}

func TestNewSnapshotCopiesResult(t *testing.T) {
	pue := 1.25
	r := energymodel.EnergyResult{
		EITInputKWh: 1000,
		EDCInputKWh: 1250,
		Calculated: energymodel.ResultValues{
			PUEInput:       &pue,
			EDCKWh:         1100,
			UnaccountedKWh: 150,
		},
	}

	s := NewSnapshot("p1", r, t0)
	pue = 9

	assert.Equal(t, "p1", s.ProjectID)
	assert.Equal(t, 1100.0, s.EDCCalcKWh)
	assert.Equal(t, 1.25, *s.PUEInput)
	assert.Nil(t, s.PUE)
}
