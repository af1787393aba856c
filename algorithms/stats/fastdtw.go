package stats

// FastDTW approximates DTW in time and memory linear in the sequence length.
// The sequences are halved recursively, the coarse path is projected to the
// next resolution and widened by radius, and DTW is solved inside that window
// only (Salvador & Chan, 2007). The result is never below the exact distance.
type FastDTW struct {
	radius         int
	distanceMetric DistanceMetric
	keepPath       bool
}

// NewFastDTW creates an approximate DTW with Euclidean local cost
func NewFastDTW(radius int) *FastDTW {
	return NewFastDTWWithParams(radius, EuclideanDistance, false)
}

// NewFastDTWWithParams creates an approximate DTW with custom parameters
func NewFastDTWWithParams(radius int, metric DistanceMetric, keepPath bool) *FastDTW {
	return &FastDTW{
		radius:         max(radius, 0),
		distanceMetric: metric,
		keepPath:       keepPath,
	}
}

// Align performs approximate DTW alignment. Inputs are put in a canonical
// order first, so Align(a, b) and Align(b, a) give the same distance.
func (f *FastDTW) Align(query, reference [][]float64) (*DTWResult, error) {
	if err := validateSequences(query, reference); err != nil {
		return nil, err
	}

	x, y := query, reference
	swapped := compareSequences(query, reference) > 0
	if swapped {
		x, y = reference, query
	}

	dist, path := f.align(x, y, GetDistanceFunction(f.distanceMetric))

	result := &DTWResult{
		Distance:    dist,
		QueryLength: len(query),
		RefLength:   len(reference),
		Strategy:    StrategyApproximate,
	}
	if f.keepPath {
		if swapped {
			for k := range path {
				path[k].QueryIndex, path[k].RefIndex = path[k].RefIndex, path[k].QueryIndex
			}
		}
		result.Path = path
	}

	return result, nil
}

func (f *FastDTW) align(x, y [][]float64, dist DistanceFunction) (float64, []AlignPoint) {
	minSize := f.radius + 2
	if len(x) < minSize || len(y) < minSize {
		table := fillCostTable(x, y, fullWindow(len(x), len(y)), dist)
		return table.distance(), table.backtrack()
	}

	_, coarsePath := f.align(reduceByHalf(x), reduceByHalf(y), dist)
	win := expandWindow(coarsePath, len(x), len(y), f.radius)

	table := fillCostTable(x, y, win, dist)
	return table.distance(), table.backtrack()
}

// reduceByHalf averages consecutive frame pairs; an odd trailing frame is dropped
func reduceByHalf(seq [][]float64) [][]float64 {
	half := make([][]float64, len(seq)/2)
	for k := range half {
		a, b := seq[2*k], seq[2*k+1]
		frame := make([]float64, len(a))
		for d := range frame {
			frame[d] = (a[d] + b[d]) / 2
		}
		half[k] = frame
	}
	return half
}

// expandWindow projects a coarse path onto an n x m grid. Each coarse cell,
// widened by radius, covers a 2x2 block at the finer resolution. Rows are then
// repaired so a monotone path from (0,0) to (n-1,m-1) always exists.
func expandWindow(path []AlignPoint, n, m, radius int) window {
	w := window{lo: make([]int, n), hi: make([]int, n)}
	for i := range w.lo {
		w.lo[i] = m
		w.hi[i] = -1
	}

	for _, p := range path {
		for a := -radius; a <= radius; a++ {
			for b := -radius; b <= radius; b++ {
				ci, cj := p.QueryIndex+a, p.RefIndex+b
				colLo, colHi := max(2*cj, 0), min(2*cj+1, m-1)
				if colLo > colHi {
					continue
				}
				for row := max(2*ci, 0); row <= min(2*ci+1, n-1); row++ {
					w.lo[row] = min(w.lo[row], colLo)
					w.hi[row] = max(w.hi[row], colHi)
				}
			}
		}
	}

	// Rows the projection never reached (an odd trailing row) inherit the previous range
	for i := range w.lo {
		if w.hi[i] >= 0 {
			continue
		}
		if i == 0 {
			w.lo[i], w.hi[i] = 0, 0
			continue
		}
		w.lo[i], w.hi[i] = w.lo[i-1], w.hi[i-1]
	}

	w.lo[0] = 0
	w.hi[n-1] = m - 1
	for i := 1; i < n; i++ {
		// Each row must overlap or touch the previous one
		w.lo[i] = min(w.lo[i], w.hi[i-1]+1)
		w.hi[i] = max(w.hi[i], w.lo[i-1])
	}

	return w
}

// compareSequences orders sequences by length, then lexicographically by value
func compareSequences(a, b [][]float64) int {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	for i := range a {
		for d := range a[i] {
			switch {
			case a[i][d] < b[i][d]:
				return -1
			case a[i][d] > b[i][d]:
				return 1
			}
		}
	}
	return 0
}
