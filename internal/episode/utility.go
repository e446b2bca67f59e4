package episode

import "math"

// wilsonZ is the z-value for a 95% confidence interval.
const wilsonZ = 1.96

// Utility tracks how trustworthy an episode currently is.
//
// The counters are raw observations; Score is a memoized derived value
// written by the learning passes (decay, propagation, credit, feedback),
// never by CalculateScore itself. A nil Score means "never scored" and
// callers fall back to the live computation.
type Utility struct {
	// Score is the cached utility in [0,1], nil until first scored.
	Score *float64 `json:"score,omitempty"`

	// RetrievalCount is how many times this episode was returned.
	RetrievalCount int `json:"retrieval_count"`

	// HelpfulCount is how many times it was marked helpful.
	HelpfulCount int `json:"helpful_count"`
}

// CalculateScore derives a utility score from the raw counters using the
// lower bound of the Wilson score confidence interval at 95% confidence.
//
// With no observations it returns 0.5: an uninformative prior that
// neither penalizes nor rewards unused records. With few observations
// the bound discounts the raw helpful ratio toward 0.5, protecting
// against noisy single-sample praise; as the sample grows the score
// converges toward the raw ratio from below.
func (u Utility) CalculateScore() float64 {
	n := float64(u.RetrievalCount)
	if n == 0 {
		return 0.5
	}

	p := float64(u.HelpfulCount) / n
	z := wilsonZ

	return (p + z*z/(2*n) - z*math.Sqrt((p*(1-p)+z*z/(4*n))/n)) / (1 + z*z/n)
}

// EffectiveScore returns the cached score when present, otherwise the
// live Wilson computation.
func (u Utility) EffectiveScore() float64 {
	if u.Score != nil {
		return *u.Score
	}
	return u.CalculateScore()
}

// SetScore caches a score, clamped to [0,1].
func (u *Utility) SetScore(score float64) {
	score = math.Min(math.Max(score, 0.0), 1.0)
	u.Score = &score
}
