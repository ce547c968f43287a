package cluster

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDBSCAN(t *testing.T) {
	d := NewDBSCAN()
	assert.Equal(t, 0.3, d.eps)
	assert.Equal(t, 2, d.minPoints)

	d = NewDBSCAN(WithEps(0.1), WithMinPoints(3))
	assert.Equal(t, 0.1, d.eps)
	assert.Equal(t, 3, d.minPoints)
}

func TestClusterSeparatesTightGroups(t *testing.T) {
	rows := [][]float64{
		{1, 0, 0},
		{1, 0, 0},
		{0, 1, 0},
		{0, 1, 0},
		{0, 0, 1}, // noise
	}

	groups := NewDBSCAN().Cluster(rows)

	require.Len(t, groups, 2)
	assert.Equal(t, []int{0, 1}, groups[0])
	assert.Equal(t, []int{2, 3}, groups[1])
}

func TestClusterNoiseOnly(t *testing.T) {
	rows := [][]float64{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
	}

	assert.Empty(t, NewDBSCAN().Cluster(rows))
}

func TestClusterExpandsChains(t *testing.T) {
	angle := func(deg float64) []float64 {
		rad := deg * math.Pi / 180
		return []float64{math.Cos(rad), math.Sin(rad)}
	}

	// Adjacent points are within eps, the endpoints are not: density
	// expansion must still pull all three into one cluster.
	rows := [][]float64{angle(0), angle(15), angle(30)}
	d := NewDBSCAN(WithEps(0.05))

	require.LessOrEqual(t, 1-math.Cos(15*math.Pi/180), 0.05)
	require.Greater(t, 1-math.Cos(30*math.Pi/180), 0.05)

	groups := d.Cluster(rows)
	require.Len(t, groups, 1)
	assert.Equal(t, []int{0, 1, 2}, groups[0])
}

func TestClusterMinPoints(t *testing.T) {
	rows := [][]float64{
		{1, 0},
		{1, 0},
	}

	assert.Len(t, NewDBSCAN(WithMinPoints(2)).Cluster(rows), 1)
	assert.Empty(t, NewDBSCAN(WithMinPoints(3)).Cluster(rows))
}

func TestClusterZeroVectorsAreNoise(t *testing.T) {
	rows := [][]float64{
		{0, 0},
		{0, 0},
		{1, 0},
		{1, 0},
	}

	groups := NewDBSCAN().Cluster(rows)
	require.Len(t, groups, 1)
	assert.Equal(t, []int{2, 3}, groups[0])
}

func TestClusterDeterministic(t *testing.T) {
	rows := [][]float64{
		{1, 0, 0},
		{0.97, 0.24, 0},
		{0, 1, 0},
		{0, 0.97, 0.24},
		{1, 0, 0},
	}

	d := NewDBSCAN()
	first := d.Cluster(rows)
	second := d.Cluster(rows)
	assert.Equal(t, first, second)
}

func TestClusterEmpty(t *testing.T) {
	assert.Nil(t, NewDBSCAN().Cluster(nil))
}

func TestCosineDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{name: "identical", a: []float64{1, 0}, b: []float64{1, 0}, want: 0},
		{name: "orthogonal", a: []float64{1, 0}, b: []float64{0, 1}, want: 1},
		{name: "scale invariant", a: []float64{2, 0}, b: []float64{5, 0}, want: 0},
		{name: "zero vector", a: []float64{0, 0}, b: []float64{1, 0}, want: 1},
		{name: "both zero", a: []float64{0, 0}, b: []float64{0, 0}, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, cosineDistance(tt.a, tt.b), 1e-9)
		})
	}
}

func BenchmarkCluster(b *testing.B) {
	rows := make([][]float64, 300)
	for i := range rows {
		rad := float64(i%30) * math.Pi / 60
		rows[i] = []float64{math.Cos(rad), math.Sin(rad), float64(i % 3)}
	}

	d := NewDBSCAN()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		d.Cluster(rows)
	}
}
