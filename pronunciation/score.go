package pronunciation

import (
	"math"

	"github.com/RyanBlaney/sonido-pronounce/algorithms/common"
)

// ScoreMapper converts an alignment distance into a 0-100 score:
// round2(clamp(100*exp(-distance/K), 0, 100))
type ScoreMapper struct {
	calibration float64
}

// NewScoreMapper creates a mapper with calibration constant K
func NewScoreMapper(calibration float64) *ScoreMapper {
	return &ScoreMapper{calibration: calibration}
}

// Score maps a distance to a score. Smaller distances never score lower.
func (m *ScoreMapper) Score(distance float64) float64 {
	return common.RoundTo(common.Clamp(100*math.Exp(-distance/m.calibration), 0, 100), 2)
}

// MeanScore averages scores with 2-decimal rounding
func MeanScore(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	return common.RoundTo(common.Mean(scores), 2)
}
