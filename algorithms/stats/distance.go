package stats

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// DistanceMetric represents the local cost between two feature frames
type DistanceMetric int

const (
	EuclideanDistance DistanceMetric = iota
	ManhattanDistance
)

// DistanceFunction is a function type for computing distance between two vectors
type DistanceFunction func(a, b []float64) float64

// GetDistanceFunction returns the appropriate distance function for the given metric
func GetDistanceFunction(metric DistanceMetric) DistanceFunction {
	switch metric {
	case ManhattanDistance:
		return ManhattanDistanceFunc
	default:
		return EuclideanDistanceFunc
	}
}

// EuclideanDistanceFunc calculates Euclidean distance between two points.
// gonum accumulates with math.Hypot, so the result is exactly symmetric.
func EuclideanDistanceFunc(a, b []float64) float64 {
	return floats.Distance(a, b, 2)
}

// ManhattanDistanceFunc calculates Manhattan (L1) distance between two points
func ManhattanDistanceFunc(a, b []float64) float64 {
	return floats.Distance(a, b, 1)
}

// ParseDistanceMetric maps a metric name to a DistanceMetric
func ParseDistanceMetric(name string) (DistanceMetric, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "euclidean", "":
		return EuclideanDistance, nil
	case "manhattan", "cityblock":
		return ManhattanDistance, nil
	default:
		return EuclideanDistance, fmt.Errorf("unknown distance metric: %s", name)
	}
}

// GetDistanceMetricName returns human-readable name for distance metric
func GetDistanceMetricName(metric DistanceMetric) string {
	switch metric {
	case EuclideanDistance:
		return "euclidean"
	case ManhattanDistance:
		return "manhattan"
	default:
		return "unknown"
	}
}
