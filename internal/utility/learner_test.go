package utility

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/recalld/internal/episode"
	"github.com/fyrsmithlabs/recalld/internal/oracle"
	"github.com/fyrsmithlabs/recalld/internal/store"
)

func TestLearner_EmptyCollection(t *testing.T) {
	l, err := NewLearner(store.NewMemoryStore(), nil, DefaultParams(), nil)
	require.NoError(t, err)

	report, err := l.Run(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, 0, report.Processed)
	assert.Equal(t, 0, report.Decayed)
	assert.Empty(t, report.PropagationMode)
}

func TestLearner_FullCycle(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	// An old helpful episode: decays, and later earns temporal credit
	// for preceding the success below.
	helper := episode.New("billing", "auth token handling groundwork")
	helper.TimestampStart = base.Add(-30 * time.Minute)
	helper.TimestampEnd = base.Add(-20 * time.Minute)
	helper.Utility.SetScore(0.8)
	require.NoError(t, s.Save(ctx, helper))

	success := episode.New("billing", "ship token rotation")
	success.TimestampStart = base
	success.TimestampEnd = base.Add(10 * time.Minute)
	success.Outcome.Status = episode.OutcomeSuccess
	require.NoError(t, s.Save(ctx, success))

	l, err := NewLearner(s, nil, DefaultParams(), nil)
	require.NoError(t, err)

	report, err := l.Run(ctx, "")
	require.NoError(t, err)

	assert.Equal(t, 2, report.Processed)
	// No oracle wired: propagation takes the degraded path.
	assert.Equal(t, ModeTagGroups, report.PropagationMode)
	assert.Equal(t, 1, report.Credited)
	assert.GreaterOrEqual(t, report.Duration, time.Duration(0))

	loaded, err := s.Load(ctx, helper.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.Utility.Score)
	// Credit raised the cached score above its starting point.
	assert.Greater(t, *loaded.Utility.Score, 0.8)
}

func TestLearner_SyncsIndexerOracle(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	ep := episode.New("proj", "task")
	require.NoError(t, s.Save(ctx, ep))

	o := &indexingOracle{}
	l, err := NewLearner(s, o, DefaultParams(), nil)
	require.NoError(t, err)

	_, err = l.Run(ctx, "")
	require.NoError(t, err)

	// The cycle finishes by pushing fresh metadata into the index.
	assert.Equal(t, 1, o.indexed)
}

// indexingOracle is an unavailable oracle that still accepts index
// refreshes, like a cold vector store being warmed.
type indexingOracle struct {
	indexed int
}

func (o *indexingOracle) Search(ctx context.Context, query string, k int, project string) ([]oracle.Match, error) {
	return nil, nil
}

func (o *indexingOracle) Available(ctx context.Context) bool { return false }

func (o *indexingOracle) Index(ctx context.Context, episodes []*episode.Episode) error {
	o.indexed += len(episodes)
	return nil
}
