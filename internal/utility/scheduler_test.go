package utility

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/recalld/internal/episode"
	"github.com/fyrsmithlabs/recalld/internal/store"
)

func TestScheduler_StartStop(t *testing.T) {
	l, err := NewLearner(store.NewMemoryStore(), nil, DefaultParams(), nil)
	require.NoError(t, err)

	s, err := NewScheduler(l, nil, WithInterval(time.Hour))
	require.NoError(t, err)

	require.NoError(t, s.Start())
	assert.Error(t, s.Start(), "double start must be rejected")

	s.Stop()
	s.Stop() // idempotent

	// The scheduler can be restarted after a stop.
	require.NoError(t, s.Start())
	s.Stop()
}

func TestScheduler_RunsCycles(t *testing.T) {
	ms := store.NewMemoryStore()
	ctx := context.Background()

	// Seed an episode so the cycle has something to report against.
	old := episode.New("proj", "stale task")
	old.TimestampStart = time.Now().UTC().AddDate(0, 0, -100)
	old.TimestampEnd = old.TimestampStart
	old.Utility.SetScore(0.8)
	require.NoError(t, ms.Save(ctx, old))

	l, err := NewLearner(ms, nil, DefaultParams(), nil)
	require.NoError(t, err)

	s, err := NewScheduler(l, nil, WithInterval(20*time.Millisecond))
	require.NoError(t, err)

	require.NoError(t, s.Start())
	defer s.Stop()

	// Wait for at least one cycle to land a decay write.
	require.Eventually(t, func() bool {
		loaded, err := ms.Load(ctx, old.ID)
		if err != nil || loaded.Utility.Score == nil {
			return false
		}
		return *loaded.Utility.Score < 0.8
	}, 2*time.Second, 10*time.Millisecond)
}

func TestNewScheduler_RequiresLearner(t *testing.T) {
	_, err := NewScheduler(nil, nil)
	assert.Error(t, err)
}
