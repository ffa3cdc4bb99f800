package aggregate

import "github.com/aclements/go-moremath/stats"

// MeanOf returns the mean of a measure across buckets, zero for an empty table.
func MeanOf(buckets []Bucket, measure string) float64 {
	if len(buckets) == 0 {
		return 0
	}
	return stats.Mean(Column(buckets, measure))
}

// BoundsOf returns the minimum and maximum of a measure across buckets.
func BoundsOf(buckets []Bucket, measure string) (lo, hi float64) {
	if len(buckets) == 0 {
		return 0, 0
	}
	return stats.Bounds(Column(buckets, measure))
}
