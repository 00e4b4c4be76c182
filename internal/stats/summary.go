package stats

import (
	"math"
	"sort"
)

// Distribution summarizes a sample of values
type Distribution struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Min    float64 `json:"min"`
	Median float64 `json:"median"`
	P90    float64 `json:"p90"`
	Max    float64 `json:"max"`
}

// Describe computes the distribution of values. NaN values are ignored.
func Describe(values []float64) Distribution {
	sorted := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			sorted = append(sorted, v)
		}
	}
	if len(sorted) == 0 {
		return Distribution{}
	}
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}

	return Distribution{
		Count:  len(sorted),
		Mean:   sum / float64(len(sorted)),
		Min:    sorted[0],
		Median: quantile(sorted, 0.5),
		P90:    quantile(sorted, 0.9),
		Max:    sorted[len(sorted)-1],
	}
}

// quantile interpolates linearly between the closest ranks of sorted values
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}

	pos := q * float64(len(sorted)-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		return sorted[lower]
	}

	frac := pos - float64(lower)
	return sorted[lower]*(1-frac) + sorted[upper]*frac
}
