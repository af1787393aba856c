package stats

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrEmptySequence is returned when either sequence has no frames
	ErrEmptySequence = errors.New("empty sequence")
	// ErrDimensionMismatch is returned when frames differ in dimension
	ErrDimensionMismatch = errors.New("feature dimension mismatch")
)

// Strategy names how an alignment was computed
type Strategy string

const (
	StrategyExact       Strategy = "exact"
	StrategyApproximate Strategy = "approximate"
	StrategyAuto        Strategy = "auto"
)

// ParseStrategy maps a strategy name to a Strategy
func ParseStrategy(name string) (Strategy, error) {
	switch s := Strategy(name); s {
	case StrategyExact, StrategyApproximate, StrategyAuto:
		return s, nil
	case "":
		return StrategyAuto, nil
	default:
		return StrategyAuto, fmt.Errorf("unknown alignment strategy: %s", name)
	}
}

// DTWResult contains DTW alignment results
type DTWResult struct {
	Distance    float64      `json:"distance"`       // Cumulative cost of the optimal path, not normalized
	Path        []AlignPoint `json:"path,omitempty"` // Optimal alignment path, when requested
	QueryLength int          `json:"query_length"`   // Length of query sequence
	RefLength   int          `json:"ref_length"`     // Length of reference sequence
	Strategy    Strategy     `json:"strategy"`       // How the distance was computed
}

// AlignPoint represents a point in the alignment path
type AlignPoint struct {
	QueryIndex int     `json:"query_index"` // Index in query sequence
	RefIndex   int     `json:"ref_index"`   // Index in reference sequence
	Cost       float64 `json:"cost"`        // Local cost at this point
}

// Aligner computes the warping distance between two frame sequences
type Aligner interface {
	Align(query, reference [][]float64) (*DTWResult, error)
}

// DTWAlignment computes exact Dynamic Time Warping over the full cost table
type DTWAlignment struct {
	distanceMetric DistanceMetric
	keepPath       bool
}

// NewDTWAlignment creates a new exact DTW with Euclidean local cost
func NewDTWAlignment() *DTWAlignment {
	return &DTWAlignment{
		distanceMetric: EuclideanDistance,
	}
}

// NewDTWAlignmentWithParams creates exact DTW with custom parameters
func NewDTWAlignmentWithParams(metric DistanceMetric, keepPath bool) *DTWAlignment {
	return &DTWAlignment{
		distanceMetric: metric,
		keepPath:       keepPath,
	}
}

// Align performs DTW alignment between two sequences of equal-dimension frames.
// D[i][j] = cost(i,j) + min(D[i-1][j], D[i][j-1], D[i-1][j-1]).
func (dtw *DTWAlignment) Align(query, reference [][]float64) (*DTWResult, error) {
	if err := validateSequences(query, reference); err != nil {
		return nil, err
	}

	table := fillCostTable(query, reference, fullWindow(len(query), len(reference)),
		GetDistanceFunction(dtw.distanceMetric))

	result := &DTWResult{
		Distance:    table.distance(),
		QueryLength: len(query),
		RefLength:   len(reference),
		Strategy:    StrategyExact,
	}
	if dtw.keepPath {
		result.Path = table.backtrack()
	}

	return result, nil
}

// validateSequences rejects empty input and frames of differing dimension
func validateSequences(query, reference [][]float64) error {
	if len(query) == 0 || len(reference) == 0 {
		return ErrEmptySequence
	}

	dim := len(query[0])
	for i, frame := range query {
		if len(frame) != dim {
			return fmt.Errorf("%w: query frame %d has %d values, expected %d", ErrDimensionMismatch, i, len(frame), dim)
		}
	}
	for j, frame := range reference {
		if len(frame) != dim {
			return fmt.Errorf("%w: reference frame %d has %d values, expected %d", ErrDimensionMismatch, j, len(frame), dim)
		}
	}

	return nil
}

// window holds the admissible column range [lo[i], hi[i]] of each row i
type window struct {
	lo, hi []int
}

func fullWindow(n, m int) window {
	w := window{lo: make([]int, n), hi: make([]int, n)}
	for i := range w.hi {
		w.hi[i] = m - 1
	}
	return w
}

// costTable stores cumulative costs for the cells inside a window only, so
// memory is proportional to the window area
type costTable struct {
	win  window
	rows [][]float64
}

func (t *costTable) at(i, j int) float64 {
	if i < 0 || j < 0 || i >= len(t.rows) {
		return math.Inf(1)
	}
	if j < t.win.lo[i] || j > t.win.hi[i] {
		return math.Inf(1)
	}
	return t.rows[i][j-t.win.lo[i]]
}

func (t *costTable) distance() float64 {
	last := len(t.rows) - 1
	return t.at(last, t.win.hi[last])
}

func fillCostTable(x, y [][]float64, win window, dist DistanceFunction) *costTable {
	t := &costTable{win: win, rows: make([][]float64, len(x))}

	for i := range x {
		lo, hi := win.lo[i], win.hi[i]
		t.rows[i] = make([]float64, hi-lo+1)

		for j := lo; j <= hi; j++ {
			localDist := dist(x[i], y[j])
			if i == 0 && j == 0 {
				t.rows[i][0] = localDist
				continue
			}

			minCost := math.Min(math.Min(t.at(i-1, j), t.at(i, j-1)), t.at(i-1, j-1))
			t.rows[i][j-lo] = localDist + minCost
		}
	}

	return t
}

// backtrack walks from the last cell to (0,0). Ties prefer the diagonal step.
func (t *costTable) backtrack() []AlignPoint {
	i := len(t.rows) - 1
	j := t.win.hi[i]

	var reversed []AlignPoint
	for {
		current := t.at(i, j)
		if i == 0 && j == 0 {
			reversed = append(reversed, AlignPoint{QueryIndex: 0, RefIndex: 0, Cost: current})
			break
		}

		prevI, prevJ := i-1, j-1
		best := t.at(prevI, prevJ)
		if c := t.at(i-1, j); c < best {
			prevI, prevJ, best = i-1, j, c
		}
		if c := t.at(i, j-1); c < best {
			prevI, prevJ, best = i, j-1, c
		}

		reversed = append(reversed, AlignPoint{QueryIndex: i, RefIndex: j, Cost: current - best})
		i, j = prevI, prevJ
	}

	path := make([]AlignPoint, len(reversed))
	for k, p := range reversed {
		path[len(reversed)-1-k] = p
	}
	return path
}
