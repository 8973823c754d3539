package kmeans

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"
)

// blobs returns n points around each center with a fixed generator.
func blobs(centers [][]float64, n int, spread float64) [][]float64 {
	rng := rand.New(rand.NewPCG(7, 7))
	var data [][]float64
	for _, c := range centers {
		for range n {
			p := make([]float64, len(c))
			for d := range c {
				p[d] = c[d] + spread*(rng.Float64()-0.5)
			}
			data = append(data, p)
		}
	}
	return data
}

func TestFitErrors(t *testing.T) {
	tests := []struct {
		name string
		data [][]float64
		k    int
		want error
	}{
		{"empty", nil, 2, ErrInsufficientData},
		{"fewer samples than k", [][]float64{{1}, {2}}, 3, ErrInsufficientData},
		{"zero k", [][]float64{{1}}, 0, ErrInvalidK},
		{"ragged", [][]float64{{1, 2}, {3}}, 1, ErrDimension},
		{"zero-length rows", [][]float64{{}, {}}, 1, ErrDimension},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Fit(tt.data, tt.k, Options{})
			if !errors.Is(err, tt.want) {
				t.Errorf("Fit() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestFitSeparatesBlobs(t *testing.T) {
	centers := [][]float64{{0, 0}, {10, 10}, {-10, 10}}
	data := blobs(centers, 20, 1)

	m, err := Fit(data, 3, Options{})
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if m.K() != 3 || m.Dim() != 2 {
		t.Fatalf("K=%d Dim=%d", m.K(), m.Dim())
	}
	if !m.Converged() {
		t.Error("expected convergence on well separated blobs")
	}

	labels := m.Labels()
	for b := range centers {
		first := labels[b*20]
		for i := b * 20; i < (b+1)*20; i++ {
			if labels[i] != first {
				t.Fatalf("blob %d split across clusters: %v", b, labels[b*20:(b+1)*20])
			}
		}
	}
	if labels[0] == labels[20] || labels[20] == labels[40] || labels[0] == labels[40] {
		t.Errorf("blobs share a cluster: %d %d %d", labels[0], labels[20], labels[40])
	}
	if math.Abs(m.SSE(data)-m.Inertia()) > 1e-9 {
		t.Errorf("SSE %f != Inertia %f", m.SSE(data), m.Inertia())
	}
}

func TestFitDeterministic(t *testing.T) {
	data := blobs([][]float64{{0, 0, 0}, {5, 5, 5}, {9, 0, 3}, {2, 8, 1}}, 15, 4)
	a, err := Fit(data, 4, Options{})
	if err != nil {
		t.Fatal(err)
	}
	b, err := Fit(data, 4, Options{Seed: DefaultSeed})
	if err != nil {
		t.Fatal(err)
	}
	ca, cb := a.Centroids(), b.Centroids()
	for i := range ca {
		for d := range ca[i] {
			if ca[i][d] != cb[i][d] {
				t.Fatalf("centroid %d differs between identical fits", i)
			}
		}
	}
	la, lb := a.Labels(), b.Labels()
	for i := range la {
		if la[i] != lb[i] {
			t.Fatalf("label %d differs between identical fits", i)
		}
	}
}

func TestLabelsMatchAssign(t *testing.T) {
	data := blobs([][]float64{{0, 0}, {3, 3}, {6, 0}}, 30, 5)
	// A tiny iteration cap exercises the post-loop reassignment.
	for _, maxIter := range []int{1, 2, DefaultMaxIter} {
		m, err := Fit(data, 5, Options{MaxIter: maxIter})
		if err != nil {
			t.Fatal(err)
		}
		for i, l := range m.Labels() {
			if got := m.Assign(data[i]); got != l {
				t.Fatalf("maxIter=%d: label[%d]=%d but Assign=%d", maxIter, i, l, got)
			}
		}
	}
}

func TestAssignAtCentroid(t *testing.T) {
	m, err := New([][]float64{{0, 0}, {1, 0}, {0, 1}, {5, 5}})
	if err != nil {
		t.Fatal(err)
	}
	for i, c := range m.Centroids() {
		if got := m.Assign(c); got != i {
			t.Errorf("Assign(centroid %d) = %d", i, got)
		}
	}
}

func TestAssignMinimisesDistance(t *testing.T) {
	m, err := New([][]float64{{0, 0}, {4, 0}, {0, 4}})
	if err != nil {
		t.Fatal(err)
	}
	rng := rand.New(rand.NewPCG(1, 2))
	for range 200 {
		v := []float64{rng.Float64()*8 - 2, rng.Float64()*8 - 2}
		id := m.Assign(v)
		dists := m.Distances(v)
		for j, d := range dists {
			if d < dists[id] {
				t.Fatalf("Assign(%v) = %d but centroid %d is closer", v, id, j)
			}
		}
	}
}

func TestAssignTieLowestIndex(t *testing.T) {
	m, err := New([][]float64{{-1, 0}, {1, 0}, {-1, 0}})
	if err != nil {
		t.Fatal(err)
	}
	if got := m.Assign([]float64{0, 0}); got != 0 {
		t.Errorf("equidistant point assigned to %d, want 0", got)
	}
	if got := m.Assign([]float64{-1, 0}); got != 0 {
		t.Errorf("duplicate centroid tie assigned to %d, want 0", got)
	}
}

func TestAssignChecked(t *testing.T) {
	m, _ := New([][]float64{{0, 0}})
	if _, err := m.AssignChecked([]float64{1}); !errors.Is(err, ErrDimension) {
		t.Errorf("expected ErrDimension, got %v", err)
	}
	if id, err := m.AssignChecked([]float64{1, 1}); err != nil || id != 0 {
		t.Errorf("AssignChecked = %d, %v", id, err)
	}
}

func TestNewValidates(t *testing.T) {
	if _, err := New(nil); !errors.Is(err, ErrInvalidK) {
		t.Errorf("New(nil) error = %v", err)
	}
	if _, err := New([][]float64{{1, 2}, {1}}); !errors.Is(err, ErrDimension) {
		t.Errorf("New(ragged) error = %v", err)
	}
	src := [][]float64{{1, 2}}
	m, _ := New(src)
	src[0][0] = 99
	if m.Centroids()[0][0] != 1 {
		t.Error("New should copy centroids")
	}
	if m.Labels() != nil {
		t.Error("loaded model should have no labels")
	}
}

func TestUpdateReseedsEmptyCluster(t *testing.T) {
	data := [][]float64{{0}, {1}, {10}}
	centroids := [][]float64{{0.5}, {100}, {200}}
	labels := []int{0, 0, 0}

	update(data, centroids, labels)

	// Cluster 0 keeps the mean of all three points; clusters 1 and 2 were
	// empty and get reseeded to the farthest points from surviving centroids.
	if got := centroids[0][0]; math.Abs(got-11.0/3) > 1e-12 {
		t.Errorf("centroid 0 = %f", got)
	}
	if centroids[1][0] != 10 {
		t.Errorf("centroid 1 = %f, want 10 (farthest from 3.67)", centroids[1][0])
	}
	// 10 now survives, so the farthest remaining point is 0.
	if centroids[2][0] != 0 {
		t.Errorf("centroid 2 = %f, want 0", centroids[2][0])
	}
}

func TestFitNoEmptyClusters(t *testing.T) {
	// Exactly k distinct points: every cluster must own one.
	data := [][]float64{{0}, {1}, {2}, {3}}
	m, err := Fit(data, 4, Options{})
	if err != nil {
		t.Fatal(err)
	}
	seen := map[int]bool{}
	for _, l := range m.Labels() {
		seen[l] = true
	}
	if len(seen) != 4 {
		t.Errorf("expected 4 populated clusters, got labels %v", m.Labels())
	}
	if m.Inertia() != 0 {
		t.Errorf("Inertia = %f, want 0", m.Inertia())
	}
}

func TestFitSingleCluster(t *testing.T) {
	m, err := Fit([][]float64{{1, 1}, {3, 3}}, 1, Options{})
	if err != nil {
		t.Fatal(err)
	}
	c := m.Centroids()[0]
	if c[0] != 2 || c[1] != 2 {
		t.Errorf("centroid = %v, want [2 2]", c)
	}
}
