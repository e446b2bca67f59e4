package oracle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/recalld/internal/episode"
)

func newTestChromemOracle(t *testing.T) *ChromemOracle {
	t.Helper()
	o, err := NewChromemOracle(ChromemConfig{}, NewHashingEmbedder(0), nil)
	require.NoError(t, err)
	return o
}

func TestNewChromemOracle_RequiresEmbedder(t *testing.T) {
	_, err := NewChromemOracle(ChromemConfig{}, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestChromemOracle_AvailableOnlyWithVectors(t *testing.T) {
	o := newTestChromemOracle(t)
	ctx := context.Background()

	// An empty index must not be preferred over the text fallback.
	assert.False(t, o.Available(ctx))

	ep := episode.New("proj", "fix login timeout")
	require.NoError(t, o.Index(ctx, []*episode.Episode{ep}))
	assert.True(t, o.Available(ctx))
}

func TestChromemOracle_SearchRanksExactMatchFirst(t *testing.T) {
	o := newTestChromemOracle(t)
	ctx := context.Background()

	target := episode.New("billing", "fix login timeout against replica lag")
	other := episode.New("billing", "css flexbox layout regression on checkout")
	require.NoError(t, o.Index(ctx, []*episode.Episode{target, other}))

	matches, err := o.Search(ctx, target.SearchText(), 2, "")
	require.NoError(t, err)

	require.NotEmpty(t, matches)
	assert.Equal(t, target.ID, matches[0].ID)
	assert.Greater(t, matches[0].Similarity, 0.9)
	for _, m := range matches {
		assert.GreaterOrEqual(t, m.Similarity, 0.0)
		assert.LessOrEqual(t, m.Similarity, 1.0)
	}
}

func TestChromemOracle_SearchProjectFilter(t *testing.T) {
	o := newTestChromemOracle(t)
	ctx := context.Background()

	billing := episode.New("billing", "fix login timeout")
	frontend := episode.New("frontend", "fix login timeout")
	require.NoError(t, o.Index(ctx, []*episode.Episode{billing, frontend}))

	matches, err := o.Search(ctx, "login timeout", 10, "billing")
	require.NoError(t, err)

	require.Len(t, matches, 1)
	assert.Equal(t, billing.ID, matches[0].ID)
}

func TestChromemOracle_SearchCapsKAtIndexSize(t *testing.T) {
	o := newTestChromemOracle(t)
	ctx := context.Background()

	ep := episode.New("proj", "fix login timeout")
	require.NoError(t, o.Index(ctx, []*episode.Episode{ep}))

	// Asking for more results than documents must not error.
	matches, err := o.Search(ctx, "login", 50, "")
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestChromemOracle_SearchEmptyIndex(t *testing.T) {
	o := newTestChromemOracle(t)

	matches, err := o.Search(context.Background(), "anything", 5, "")
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestChromemOracle_Remove(t *testing.T) {
	o := newTestChromemOracle(t)
	ctx := context.Background()

	ep := episode.New("proj", "fix login timeout")
	require.NoError(t, o.Index(ctx, []*episode.Episode{ep}))
	require.NoError(t, o.Remove(ctx, []string{ep.ID}))

	assert.False(t, o.Available(ctx))
}
