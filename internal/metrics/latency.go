package metrics

import (
	"sort"
	"sync"
	"time"
)

// Outlier thresholds for Observe
const (
	MinSamplesForOutlier = 10
	OutlierZScore        = 3.0
)

// LatencyRecorder keeps running render statistics per key (a chart ID).
// It is safe for concurrent use.
type LatencyRecorder struct {
	mu    sync.Mutex
	stats map[string]*Welford
}

// NewLatencyRecorder creates an empty recorder.
func NewLatencyRecorder() *LatencyRecorder {
	return &LatencyRecorder{stats: map[string]*Welford{}}
}

// Observe records d under key and reports whether it is an outlier against
// the samples seen before it.
func (r *LatencyRecorder) Observe(key string, d time.Duration) (outlier bool) {
	ms := float64(d) / float64(time.Millisecond)

	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.stats[key]
	if !ok {
		w = &Welford{}
		r.stats[key] = w
	}
	outlier = w.Count >= MinSamplesForOutlier && w.ZScore(ms) > OutlierZScore
	w.Add(ms)
	return outlier
}

// Latency is a snapshot of one key's statistics in milliseconds.
type Latency struct {
	Key      string  `json:"key"`
	Count    int     `json:"count"`
	MeanMs   float64 `json:"meanMs"`
	StdDevMs float64 `json:"stdDevMs"`
	MaxMs    float64 `json:"maxMs"`
}

// Snapshot returns every key's statistics sorted by key.
func (r *LatencyRecorder) Snapshot() []Latency {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Latency, 0, len(r.stats))
	for key, w := range r.stats {
		out = append(out, Latency{Key: key, Count: w.Count, MeanMs: w.Mean, StdDevMs: w.StdDev(), MaxMs: w.Max})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
