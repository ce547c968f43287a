// Package cluster groups similar failures into pattern candidates, either
// by density clustering over feature vectors or by a deterministic
// service/error-type heuristic.
package cluster

import (
	"math"
	"sort"
)

// DBSCAN is a density-based clusterer over cosine distance. Rows within eps
// of each other form dense neighborhoods; rows in no neighborhood of at
// least minPoints members are noise and belong to no cluster.
type DBSCAN struct {
	eps       float64
	minPoints int
}

// DBSCANOption configures a DBSCAN.
type DBSCANOption func(*DBSCAN)

// WithEps sets the maximum cosine distance between neighbors.
func WithEps(eps float64) DBSCANOption {
	return func(d *DBSCAN) {
		d.eps = eps
	}
}

// WithMinPoints sets the minimum neighborhood size, counting the point
// itself, required to seed a cluster.
func WithMinPoints(n int) DBSCANOption {
	return func(d *DBSCAN) {
		d.minPoints = n
	}
}

// NewDBSCAN creates a clusterer tuned for tight textual similarity.
func NewDBSCAN(opts ...DBSCANOption) *DBSCAN {
	d := &DBSCAN{
		eps:       0.3,
		minPoints: 2,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Cluster assigns rows to density clusters and returns the member index
// groups. The scan order is fixed, so identical input always yields
// identical groups; member indices are ascending within each group.
func (d *DBSCAN) Cluster(rows [][]float64) [][]int {
	n := len(rows)
	if n == 0 {
		return nil
	}

	const (
		unclassified = -2
		noise        = -1
	)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = unclassified
	}

	var groups [][]int
	for i := 0; i < n; i++ {
		if labels[i] != unclassified {
			continue
		}

		neighbors := d.regionQuery(rows, i)
		if len(neighbors) < d.minPoints {
			labels[i] = noise
			continue
		}

		id := len(groups)
		labels[i] = id
		members := []int{i}

		queue := append([]int(nil), neighbors...)
		for qi := 0; qi < len(queue); qi++ {
			j := queue[qi]
			if labels[j] == noise {
				// Border point: joins the cluster but does not expand it.
				labels[j] = id
				members = append(members, j)
				continue
			}
			if labels[j] != unclassified {
				continue
			}
			labels[j] = id
			members = append(members, j)
			if jn := d.regionQuery(rows, j); len(jn) >= d.minPoints {
				queue = append(queue, jn...)
			}
		}

		sort.Ints(members)
		groups = append(groups, members)
	}

	return groups
}

// regionQuery returns every row within eps of row i, including i itself.
func (d *DBSCAN) regionQuery(rows [][]float64, i int) []int {
	var neighbors []int
	for j := range rows {
		if cosineDistance(rows[i], rows[j]) <= d.eps {
			neighbors = append(neighbors, j)
		}
	}
	return neighbors
}

// cosineDistance is 1 minus the cosine similarity. Zero vectors carry no
// signal and are maximally distant from everything, themselves included.
func cosineDistance(a, b []float64) float64 {
	var dot, na, nb float64
	for k := range a {
		dot += a[k] * b[k]
		na += a[k] * a[k]
		nb += b[k] * b[k]
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/math.Sqrt(na*nb)
}
