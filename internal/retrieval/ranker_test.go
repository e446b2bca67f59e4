package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/recalld/internal/episode"
	"github.com/fyrsmithlabs/recalld/internal/store"
)

func newTestRanker(t *testing.T, s store.Store) *Ranker {
	t.Helper()
	r, err := NewRanker(s, nil, DefaultConfig(), nil)
	require.NoError(t, err)
	return r
}

func TestRanker_RetrieveRanksByCombinedScore(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	// Same text, so identical similarity; utility decides the order.
	proven := episode.New("billing", "fix login timeout")
	proven.Utility.SetScore(0.9)
	doubtful := episode.New("billing", "fix login timeout")
	doubtful.Utility.SetScore(0.1)
	require.NoError(t, s.Save(ctx, proven))
	require.NoError(t, s.Save(ctx, doubtful))

	r := newTestRanker(t, s)
	results, err := r.Retrieve(ctx, Request{Query: "fix login timeout", RequestingProject: "billing"})
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, proven.ID, results[0].Episode.ID)
	assert.Greater(t, results[0].CombinedScore, results[1].CombinedScore)
	assert.InDelta(t, results[0].SimilarityScore, results[1].SimilarityScore, 0.0001)
}

func TestRanker_RetrieveRecordsHistory(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	ep := episode.New("billing", "fix login timeout")
	require.NoError(t, s.Save(ctx, ep))

	r := newTestRanker(t, s)
	for i := 0; i < 3; i++ {
		results, err := r.Retrieve(ctx, Request{
			Query:             "login timeout",
			RequestingProject: "caller-project",
		})
		require.NoError(t, err)
		require.Len(t, results, 1)
	}

	// History length and retrieval count stay in lockstep across calls.
	loaded, err := s.Load(ctx, ep.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.Utility.RetrievalCount)
	require.Len(t, loaded.RetrievalHistory, 3)
	assert.Equal(t, "caller-project", loaded.RetrievalHistory[2].Project)
	assert.Equal(t, "login timeout", loaded.RetrievalHistory[2].Query)
	assert.Nil(t, loaded.RetrievalHistory[2].WasHelpful)
}

func TestRanker_RetrieveDropsWeakSimilarity(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	// One token out of a twelve-word query: overlap lands under the
	// 0.1 floor.
	weak := episode.New("svc", "alpha misc notes")
	strong := episode.New("svc", "alpha beta gamma delta epsilon zeta")
	require.NoError(t, s.Save(ctx, weak))
	require.NoError(t, s.Save(ctx, strong))

	r := newTestRanker(t, s)
	results, err := r.Retrieve(ctx, Request{
		Query: "alpha beta gamma delta epsilon zeta theta iota kappa lambda sigma omega",
	})
	require.NoError(t, err)

	for _, res := range results {
		assert.NotEqual(t, weak.ID, res.Episode.ID)
		assert.GreaterOrEqual(t, res.SimilarityScore, DefaultMinSimilarity)
	}
}

func TestRanker_RetrieveEmptyQuery(t *testing.T) {
	r := newTestRanker(t, store.NewMemoryStore())

	_, err := r.Retrieve(context.Background(), Request{Query: ""})
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestRanker_RetrieveLimit(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		ep := episode.New("proj", "fix login timeout variant")
		require.NoError(t, s.Save(ctx, ep))
	}

	r := newTestRanker(t, s)
	results, err := r.Retrieve(ctx, Request{Query: "login timeout", Limit: 3})
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestRanker_FeedbackRoundTrip(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	ep := episode.New("billing", "fix login timeout")
	require.NoError(t, s.Save(ctx, ep))

	r := newTestRanker(t, s)
	results, err := r.Retrieve(ctx, Request{Query: "login timeout", RequestingProject: "billing"})
	require.NoError(t, err)
	require.Len(t, results, 1)

	helpful := true
	fb, err := r.ApplyFeedback(ctx, []string{ep.ID[:8]}, &helpful)
	require.NoError(t, err)
	require.Len(t, fb, 1)
	assert.True(t, fb[0].Applied)

	loaded, err := s.Load(ctx, ep.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Utility.HelpfulCount)
	require.Len(t, loaded.RetrievalHistory, 1)
	require.NotNil(t, loaded.RetrievalHistory[0].WasHelpful)
	assert.True(t, *loaded.RetrievalHistory[0].WasHelpful)
	require.NotNil(t, loaded.Utility.Score)
}

func TestRanker_FeedbackUnknownID(t *testing.T) {
	r := newTestRanker(t, store.NewMemoryStore())

	helpful := true
	fb, err := r.ApplyFeedback(context.Background(), []string{"deadbeef"}, &helpful)
	require.NoError(t, err)
	require.Len(t, fb, 1)
	assert.True(t, fb[0].NotFound)
	assert.False(t, fb[0].Applied)
}

func TestRanker_ConfigValidation(t *testing.T) {
	s := store.NewMemoryStore()

	bad := DefaultConfig()
	bad.UtilityWeight = 1.5
	_, err := NewRanker(s, nil, bad, nil)
	assert.Error(t, err)

	bad = DefaultConfig()
	bad.DefaultLimit = 0
	_, err = NewRanker(s, nil, bad, nil)
	assert.Error(t, err)
}
