package aggregate

import "sort"

// Ranked is a bucket with its rank inside its partition (1 is the largest).
type Ranked struct {
	Bucket
	Rank int
}

// Rank orders buckets by measure descending within each partition and numbers
// them 1, 2, 3... Rank is strict: ties keep the input order. Buckets whose
// measure is zero are not ranked, so an all-zero partition has no peak.
func Rank(buckets []Bucket, partition []Dimension, measure string) []Ranked {
	type entry struct {
		b     Bucket
		group int
		pos   int
	}

	groupIdx := map[string]int{}
	entries := make([]entry, 0, len(buckets))
	for i, b := range buckets {
		if b.values[measure] == 0 {
			continue
		}
		id := partitionID(b, partition)
		g, ok := groupIdx[id]
		if !ok {
			g = len(groupIdx)
			groupIdx[id] = g
		}
		entries = append(entries, entry{b: b, group: g, pos: i})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.group != b.group {
			return a.group < b.group
		}
		return a.b.values[measure] > b.b.values[measure]
	})

	out := make([]Ranked, len(entries))
	rank, group := 0, -1
	for i, e := range entries {
		if e.group != group {
			group, rank = e.group, 0
		}
		rank++
		out[i] = Ranked{Bucket: e.b, Rank: rank}
	}
	return out
}

// TopPerGroup returns the rank-1 bucket of every partition.
func TopPerGroup(buckets []Bucket, partition []Dimension, measure string) []Bucket {
	var out []Bucket
	for _, r := range Rank(buckets, partition, measure) {
		if r.Rank == 1 {
			out = append(out, r.Bucket)
		}
	}
	return out
}

// Top returns the n largest buckets by measure over the whole table.
func Top(buckets []Bucket, measure string, n int) []Bucket {
	var out []Bucket
	for _, r := range Rank(buckets, nil, measure) {
		if r.Rank > n {
			break
		}
		out = append(out, r.Bucket)
	}
	return out
}

// TopByRatio returns the n largest buckets by a defined ratio.
func TopByRatio(buckets []Bucket, ratio string, n int) []Bucket {
	defined := DefinedOnly(buckets, ratio)
	sort.SliceStable(defined, func(i, j int) bool {
		return defined[i].ratios[ratio].value > defined[j].ratios[ratio].value
	})
	if len(defined) > n {
		defined = defined[:n]
	}
	return defined
}
