package episode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUtility_CalculateScore_NoRetrievals(t *testing.T) {
	// No observations means an uninformative 0.5 prior, never 0.
	u := Utility{}
	assert.InDelta(t, 0.5, u.CalculateScore(), 0.001)
}

func TestUtility_CalculateScore_AllHelpful(t *testing.T) {
	u := Utility{RetrievalCount: 10, HelpfulCount: 10}
	score := u.CalculateScore()

	// Ten-for-ten is strong but not certain under the Wilson bound.
	assert.Greater(t, score, 0.7)
	assert.Less(t, score, 1.0)
}

func TestUtility_CalculateScore_NoneHelpful(t *testing.T) {
	u := Utility{RetrievalCount: 10, HelpfulCount: 0}
	score := u.CalculateScore()

	assert.GreaterOrEqual(t, score, 0.0)
	assert.Less(t, score, 0.3)
}

func TestUtility_CalculateScore_OrderedByEvidence(t *testing.T) {
	// More evidence at the same helpful rate tightens the lower bound.
	few := Utility{RetrievalCount: 4, HelpfulCount: 3}
	many := Utility{RetrievalCount: 40, HelpfulCount: 30}

	assert.Greater(t, many.CalculateScore(), few.CalculateScore())
}

func TestUtility_CalculateScore_SingleRetrieval(t *testing.T) {
	// One helpful retrieval is weak evidence: the bound stays modest.
	u := Utility{RetrievalCount: 1, HelpfulCount: 1}
	score := u.CalculateScore()

	assert.Greater(t, score, 0.0)
	assert.Less(t, score, 0.5)
}

func TestUtility_CalculateScore_Convergence(t *testing.T) {
	// At a fixed helpful rate the bound approaches the rate from below.
	u := Utility{RetrievalCount: 10000, HelpfulCount: 7500}
	score := u.CalculateScore()

	assert.InDelta(t, 0.75, score, 0.01)
	assert.Less(t, score, 0.75)
}

func TestUtility_EffectiveScore(t *testing.T) {
	u := Utility{RetrievalCount: 10, HelpfulCount: 10}

	// Without a cached score the live calculation applies.
	assert.InDelta(t, u.CalculateScore(), u.EffectiveScore(), 0.0001)

	// A cached score wins over the live calculation.
	cached := 0.42
	u.Score = &cached
	assert.InDelta(t, 0.42, u.EffectiveScore(), 0.0001)
}

func TestUtility_SetScore_Clamps(t *testing.T) {
	var u Utility

	u.SetScore(1.5)
	assert.InDelta(t, 1.0, *u.Score, 0.0001)

	u.SetScore(-0.2)
	assert.InDelta(t, 0.0, *u.Score, 0.0001)

	u.SetScore(0.37)
	assert.InDelta(t, 0.37, *u.Score, 0.0001)
}
