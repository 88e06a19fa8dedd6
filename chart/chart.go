// Package chart renders metric-versus-cutoff series as standalone SVG line
// charts, the usual "metric@k" figures in API-recommendation papers.
package chart

import "github.com/doujins-org/apireckit/metrics"

// Point is one (cutoff, score) sample.
type Point struct {
	K     int
	Value float64
}

// Series is one named metric line.
type Series struct {
	Name   string
	Points []Point
}

// SeriesFromMultiK converts a batch metrics bundle into chart series, one per
// cutoff-dependent metric, points in the bundle's cutoff order (duplicates
// collapsed to their first occurrence).
func SeriesFromMultiK(mk *metrics.MultiK) []Series {
	ks := dedupe(mk.Ks)

	build := func(name string, values map[int]float64) Series {
		s := Series{Name: name, Points: make([]Point, 0, len(ks))}
		for _, k := range ks {
			s.Points = append(s.Points, Point{K: k, Value: values[k]})
		}
		return s
	}

	return []Series{
		build("SuccessRate@k", mk.Success),
		build("Precision@k", mk.Precision),
		build("Recall@k", mk.Recall),
		build("NDCG@k", mk.NDCG),
	}
}

func dedupe(ks []int) []int {
	seen := make(map[int]struct{}, len(ks))
	out := make([]int, 0, len(ks))
	for _, k := range ks {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
