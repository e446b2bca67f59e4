package utility

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/recalld/internal/episode"
	"github.com/fyrsmithlabs/recalld/internal/oracle"
	"github.com/fyrsmithlabs/recalld/internal/store"
)

// stubOracle returns canned matches keyed by source episode ID.
type stubOracle struct {
	matchesFor map[string][]oracle.Match
	searchText map[string]string // query text -> source ID
	available  bool
	err        error
}

func (o *stubOracle) Search(ctx context.Context, query string, k int, project string) ([]oracle.Match, error) {
	if o.err != nil {
		return nil, o.err
	}
	if id, ok := o.searchText[query]; ok {
		return o.matchesFor[id], nil
	}
	return nil, nil
}

func (o *stubOracle) Available(ctx context.Context) bool { return o.available }

func TestPropagationEngine_SpreadsUtilityToNeighbor(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	// Proven source: majority helpful over four retrievals, cached 0.8.
	source := episode.New("proj", "fix login timeout")
	source.Utility.RetrievalCount = 4
	source.Utility.HelpfulCount = 3
	source.Utility.SetScore(0.8)
	require.NoError(t, s.Save(ctx, source))

	// Never-retrieved neighbor at similarity 0.9.
	target := episode.New("proj", "login session expiry bug")
	require.NoError(t, s.Save(ctx, target))

	o := &stubOracle{
		available:  true,
		searchText: map[string]string{source.SearchText(): source.ID},
		matchesFor: map[string][]oracle.Match{
			source.ID: {{ID: target.ID, Similarity: 0.9}},
		},
	}

	e, err := NewPropagationEngine(s, o, DefaultParams(), nil)
	require.NoError(t, err)

	report, err := e.Run(ctx, "")
	require.NoError(t, err)

	assert.Equal(t, ModeVector, report.Mode)
	assert.Equal(t, 1, report.Propagated)

	loaded, err := s.Load(ctx, target.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.Utility.Score)
	// 0.5 + 0.1*(0.9*0.8*0.9 - 0.5)
	assert.InDelta(t, 0.5148, *loaded.Utility.Score, 0.001)
}

func TestPropagationEngine_ConvergesToNoUpdates(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	source := episode.New("proj", "fix login timeout")
	source.Utility.RetrievalCount = 4
	source.Utility.HelpfulCount = 3
	source.Utility.SetScore(0.8)
	require.NoError(t, s.Save(ctx, source))

	target := episode.New("proj", "login session expiry bug")
	require.NoError(t, s.Save(ctx, target))

	o := &stubOracle{
		available:  true,
		searchText: map[string]string{source.SearchText(): source.ID},
		matchesFor: map[string][]oracle.Match{
			source.ID: {{ID: target.ID, Similarity: 0.9}},
		},
	}
	e, err := NewPropagationEngine(s, o, DefaultParams(), nil)
	require.NoError(t, err)

	// The target converges toward gamma*source*similarity; once per-pass
	// movement falls under the write threshold, passes become no-ops.
	for i := 0; i < 100; i++ {
		_, err := e.Run(ctx, "")
		require.NoError(t, err)
	}
	report, err := e.Run(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 0, report.Propagated)

	loaded, err := s.Load(ctx, target.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.9*0.8*0.9, *loaded.Utility.Score, 0.15)
	assert.GreaterOrEqual(t, *loaded.Utility.Score, 0.0)
	assert.LessOrEqual(t, *loaded.Utility.Score, 1.0)
}

func TestPropagationEngine_SourceSelection(t *testing.T) {
	mk := func(retrievals, helpful int) *episode.Episode {
		ep := episode.New("proj", "task")
		ep.Utility.RetrievalCount = retrievals
		ep.Utility.HelpfulCount = helpful
		return ep
	}

	episodes := []*episode.Episode{
		mk(4, 3),  // majority helpful: source
		mk(1, 1),  // too few retrievals
		mk(4, 2),  // exactly half, not a majority
		mk(10, 0), // unhelpful
	}

	sources := selectSources(episodes)
	require.Len(t, sources, 1)
	assert.Equal(t, episodes[0].ID, sources[0].ID)
}

func TestPropagationEngine_SkipsBelowThresholdAndSelf(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	source := episode.New("proj", "fix login timeout")
	source.Utility.RetrievalCount = 4
	source.Utility.HelpfulCount = 3
	source.Utility.SetScore(0.8)
	require.NoError(t, s.Save(ctx, source))

	weak := episode.New("proj", "unrelated refactor")
	require.NoError(t, s.Save(ctx, weak))

	o := &stubOracle{
		available:  true,
		searchText: map[string]string{source.SearchText(): source.ID},
		matchesFor: map[string][]oracle.Match{
			source.ID: {
				{ID: source.ID, Similarity: 1.0}, // self, excluded
				{ID: weak.ID, Similarity: 0.3},   // below threshold 0.5
			},
		},
	}
	e, err := NewPropagationEngine(s, o, DefaultParams(), nil)
	require.NoError(t, err)

	report, err := e.Run(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 0, report.Propagated)
}

func TestPropagationEngine_OracleFailureDegrades(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	source := episode.New("proj", "fix login timeout")
	source.Utility.RetrievalCount = 4
	source.Utility.HelpfulCount = 3
	require.NoError(t, s.Save(ctx, source))

	// Available but failing mid-pass: the pass completes without error.
	o := &stubOracle{available: true, err: errors.New("index corrupted")}
	e, err := NewPropagationEngine(s, o, DefaultParams(), nil)
	require.NoError(t, err)

	report, err := e.Run(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, ModeVector, report.Mode)
	assert.Equal(t, 0, report.Propagated)
}

func TestPropagationEngine_TagGroupFallback(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	// Strong and weak members of the "auth" tag group.
	strong := episode.New("proj", "fix login")
	strong.Intent.Domain = []string{"auth"}
	strong.Utility.RetrievalCount = 10
	strong.Utility.HelpfulCount = 9

	weak := episode.New("proj", "session bug")
	weak.Intent.Domain = []string{"auth"}
	weak.Utility.RetrievalCount = 10
	weak.Utility.HelpfulCount = 0

	require.NoError(t, s.Save(ctx, strong))
	require.NoError(t, s.Save(ctx, weak))

	// No oracle at all forces the tag-group path.
	e, err := NewPropagationEngine(s, nil, DefaultParams(), nil)
	require.NoError(t, err)

	report, err := e.Run(ctx, "")
	require.NoError(t, err)

	assert.Equal(t, ModeTagGroups, report.Mode)
	assert.Equal(t, 1, report.Propagated)

	loaded, err := s.Load(ctx, weak.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.Utility.Score)
	// Pulled above its own Wilson score, toward the group average.
	assert.Greater(t, *loaded.Utility.Score, weak.Utility.CalculateScore())
}

func TestPropagationEngine_ProjectFilter(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	inside := episode.New("billing", "fix login")
	inside.Utility.RetrievalCount = 4
	inside.Utility.HelpfulCount = 3
	outside := episode.New("frontend", "fix login")
	outside.Utility.RetrievalCount = 4
	outside.Utility.HelpfulCount = 3
	require.NoError(t, s.Save(ctx, inside))
	require.NoError(t, s.Save(ctx, outside))

	filtered := filterByProject([]*episode.Episode{inside, outside}, "BILL")
	require.Len(t, filtered, 1)
	assert.Equal(t, inside.ID, filtered[0].ID)
}
