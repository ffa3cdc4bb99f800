package metrics

import "math"

// Welford holds running statistics using Welford's online algorithm, so the
// mean and standard deviation are updated in O(1) without keeping samples.
type Welford struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	M2    float64 `json:"-"` // sum of squared differences from the mean
	Max   float64 `json:"max"`
}

// NewWelford resumes from saved statistics.
func NewWelford(mean, stddev float64, count int) *Welford {
	if count == 0 {
		return &Welford{}
	}
	// stddev = sqrt(M2 / n)
	return &Welford{Count: count, Mean: mean, M2: stddev * stddev * float64(count), Max: mean}
}

// Add records one observation.
func (w *Welford) Add(x float64) {
	w.Count++
	delta := x - w.Mean
	w.Mean += delta / float64(w.Count)
	w.M2 += delta * (x - w.Mean)
	if w.Count == 1 || x > w.Max {
		w.Max = x
	}
}

// StdDev returns the population standard deviation, 0 below two observations.
func (w *Welford) StdDev() float64 {
	if w.Count < 2 {
		return 0
	}
	return math.Sqrt(w.M2 / float64(w.Count))
}

// ZScore returns how many standard deviations x lies from the mean, 0 when
// the spread is not yet known.
func (w *Welford) ZScore(x float64) float64 {
	sd := w.StdDev()
	if sd == 0 {
		return 0
	}
	return (x - w.Mean) / sd
}
