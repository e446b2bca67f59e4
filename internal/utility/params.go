// Package utility implements the learning passes that revise episode
// utility over time: time-based decay, Bellman-style propagation across
// semantic neighbors, temporal credit assignment for episodes preceding
// a success, and retention pruning.
//
// Each pass loads the episode set, mutates a working copy and writes
// back record by record through the store's compare-and-swap update, so
// a run interrupted between writes leaves every record in a complete,
// valid state and the next cycle simply picks up the rest.
package utility

import (
	"errors"
	"fmt"
)

// Default learning parameters.
const (
	// DefaultDecayRate is the per-day fractional utility decay.
	DefaultDecayRate = 0.01

	// DefaultDiscountFactor is the Bellman discount (gamma).
	DefaultDiscountFactor = 0.9

	// DefaultLearningRate is the fraction of the TD error applied (alpha).
	DefaultLearningRate = 0.1

	// DefaultPropagationThreshold is the minimum similarity for value to
	// flow between two episodes.
	DefaultPropagationThreshold = 0.5

	// DefaultMaxPropagationDepth bounds propagation hops. The current
	// algorithm is single-hop; the bound exists for a multi-hop
	// extension.
	DefaultMaxPropagationDepth = 2

	// minScoreChange is the smallest score delta worth persisting.
	// Anything smaller is an oscillatory no-op write.
	minScoreChange = 0.01

	// propagationNeighbors is how many nearest neighbors each source
	// queries during propagation.
	propagationNeighbors = 10
)

// ErrInvalidParams indicates out-of-range learning parameters.
var ErrInvalidParams = errors.New("invalid utility parameters")

// Params are the immutable per-run learning parameters.
type Params struct {
	// DecayRate is the per-day fractional decay in [0,1).
	DecayRate float64 `koanf:"decay_rate"`

	// DiscountFactor is gamma in (0,1].
	DiscountFactor float64 `koanf:"discount_factor"`

	// LearningRate is alpha in (0,1].
	LearningRate float64 `koanf:"learning_rate"`

	// PropagationThreshold is the minimum similarity in [0,1].
	PropagationThreshold float64 `koanf:"propagation_threshold"`

	// MaxPropagationDepth bounds propagation hops.
	MaxPropagationDepth int `koanf:"max_propagation_depth"`
}

// DefaultParams returns the standard learning parameters.
func DefaultParams() Params {
	return Params{
		DecayRate:            DefaultDecayRate,
		DiscountFactor:       DefaultDiscountFactor,
		LearningRate:         DefaultLearningRate,
		PropagationThreshold: DefaultPropagationThreshold,
		MaxPropagationDepth:  DefaultMaxPropagationDepth,
	}
}

// Validate rejects out-of-range parameters.
func (p Params) Validate() error {
	if p.DecayRate < 0 || p.DecayRate >= 1 {
		return fmt.Errorf("%w: decay rate %v must be in [0,1)", ErrInvalidParams, p.DecayRate)
	}
	if p.DiscountFactor <= 0 || p.DiscountFactor > 1 {
		return fmt.Errorf("%w: discount factor %v must be in (0,1]", ErrInvalidParams, p.DiscountFactor)
	}
	if p.LearningRate <= 0 || p.LearningRate > 1 {
		return fmt.Errorf("%w: learning rate %v must be in (0,1]", ErrInvalidParams, p.LearningRate)
	}
	if p.PropagationThreshold < 0 || p.PropagationThreshold > 1 {
		return fmt.Errorf("%w: propagation threshold %v must be in [0,1]", ErrInvalidParams, p.PropagationThreshold)
	}
	if p.MaxPropagationDepth < 1 {
		return fmt.Errorf("%w: max propagation depth %d must be at least 1", ErrInvalidParams, p.MaxPropagationDepth)
	}
	return nil
}
