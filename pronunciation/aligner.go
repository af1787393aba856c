package pronunciation

import (
	"errors"
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-pronounce/algorithms/stats"
	"github.com/RyanBlaney/sonido-pronounce/pronunciation/config"
)

// Aligner measures DTW distance between feature matrices, choosing the exact
// or approximate strategy by sequence length
type Aligner struct {
	exactMaxFrames int
	exact          stats.Aligner
	approximate    stats.Aligner
}

// NewAligner creates a new aligner
func NewAligner(cfg config.AlignmentConfig) (*Aligner, error) {
	metric, err := stats.ParseDistanceMetric(cfg.Metric)
	if err != nil {
		return nil, err
	}

	return &Aligner{
		exactMaxFrames: cfg.ExactMaxFrames,
		exact:          stats.NewDTWAlignmentWithParams(metric, false),
		approximate:    stats.NewFastDTWWithParams(cfg.Radius, metric, false),
	}, nil
}

// Resolve turns the auto strategy into a concrete one for sequences of n and m frames
func (a *Aligner) Resolve(strategy stats.Strategy, n, m int) stats.Strategy {
	if strategy != stats.StrategyAuto {
		return strategy
	}
	if max(n, m) <= a.exactMaxFrames {
		return stats.StrategyExact
	}
	return stats.StrategyApproximate
}

// Align returns the unnormalized cumulative DTW cost between x and y
func (a *Aligner) Align(x, y FeatureMatrix, strategy stats.Strategy) (*stats.DTWResult, error) {
	if x.Frames() == 0 || y.Frames() == 0 {
		return nil, NewError(KindInput, "cannot align an empty feature matrix", nil)
	}
	if x.Dim() != y.Dim() {
		return nil, NewError(KindMismatch,
			fmt.Sprintf("feature dimensions differ: %d vs %d", x.Dim(), y.Dim()), nil)
	}

	var aligner stats.Aligner
	switch a.Resolve(strategy, x.Frames(), y.Frames()) {
	case stats.StrategyExact:
		aligner = a.exact
	case stats.StrategyApproximate:
		aligner = a.approximate
	default:
		return nil, NewError(KindInternal, fmt.Sprintf("unknown alignment strategy %q", strategy), nil)
	}

	result, err := aligner.Align(x, y)
	switch {
	case errors.Is(err, stats.ErrDimensionMismatch):
		return nil, NewError(KindMismatch, "feature dimensions differ", err)
	case errors.Is(err, stats.ErrEmptySequence):
		return nil, NewError(KindInput, "cannot align an empty feature matrix", err)
	case err != nil:
		return nil, NewError(KindInternal, "alignment failed", err)
	}

	if math.IsNaN(result.Distance) || math.IsInf(result.Distance, 0) || result.Distance < 0 {
		return nil, NewError(KindInternal, fmt.Sprintf("invalid alignment distance %v", result.Distance), nil)
	}

	return result, nil
}
