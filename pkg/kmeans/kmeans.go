// Package kmeans implements seeded Lloyd's k-means clustering over dense
// float64 vectors.
//
// Initialisation is k-means++ driven by a PCG generator. Each of
// Options.Restarts runs uses the stream rand.NewPCG(Seed, restart), so the
// same data, k and options always produce the same centroids in the same
// order. The run with the lowest inertia wins; ties keep the earliest run.
//
// Distances are Euclidean. In every nearest-centroid search, including
// Model.Assign, ties go to the lowest centroid index.
package kmeans

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
)

const (
	// DefaultSeed is the base seed used when Options.Seed is zero.
	DefaultSeed = 42
	// DefaultMaxIter caps Lloyd iterations per run.
	DefaultMaxIter = 300
	// DefaultRestarts is the number of independently initialised runs.
	DefaultRestarts = 10
)

var (
	ErrInsufficientData = errors.New("kmeans: insufficient data")
	ErrInvalidK         = errors.New("kmeans: invalid number of clusters")
	ErrDimension        = errors.New("kmeans: dimension mismatch")
)

// Options tunes Fit. Zero values select the defaults.
type Options struct {
	Seed     uint64
	MaxIter  int
	Restarts int
}

func (o Options) withDefaults() Options {
	if o.Seed == 0 {
		o.Seed = DefaultSeed
	}
	if o.MaxIter <= 0 {
		o.MaxIter = DefaultMaxIter
	}
	if o.Restarts <= 0 {
		o.Restarts = DefaultRestarts
	}
	return o
}

// Model is a fitted (or loaded) set of centroids. It is immutable and safe
// for concurrent use.
type Model struct {
	centroids  [][]float64
	labels     []int
	inertia    float64
	iterations int
	converged  bool
}

// New builds a Model from existing centroids, e.g. a persisted artifact.
// The centroids are copied.
func New(centroids [][]float64) (*Model, error) {
	if len(centroids) == 0 {
		return nil, fmt.Errorf("%w: no centroids", ErrInvalidK)
	}
	dim, err := dimensionOf(centroids)
	if err != nil {
		return nil, err
	}
	if dim == 0 {
		return nil, fmt.Errorf("%w: zero-length centroids", ErrDimension)
	}
	return &Model{centroids: copyMatrix(centroids)}, nil
}

// Fit partitions data into k clusters.
func Fit(data [][]float64, k int, opts Options) (*Model, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: k=%d", ErrInvalidK, k)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty feature matrix", ErrInsufficientData)
	}
	if len(data) < k {
		return nil, fmt.Errorf("%w: %d samples for %d clusters", ErrInsufficientData, len(data), k)
	}
	dim, err := dimensionOf(data)
	if err != nil {
		return nil, err
	}
	if dim == 0 {
		return nil, fmt.Errorf("%w: zero-length rows", ErrDimension)
	}

	opts = opts.withDefaults()
	var best *Model
	for r := 0; r < opts.Restarts; r++ {
		rng := rand.New(rand.NewPCG(opts.Seed, uint64(r)))
		m := lloyd(data, k, opts.MaxIter, rng)
		if best == nil || m.inertia < best.inertia {
			best = m
		}
	}
	return best, nil
}

// K returns the number of centroids.
func (m *Model) K() int { return len(m.centroids) }

// Dim returns the centroid dimensionality.
func (m *Model) Dim() int { return len(m.centroids[0]) }

// Centroids returns a deep copy of the centroids.
func (m *Model) Centroids() [][]float64 { return copyMatrix(m.centroids) }

// Labels returns the training assignment of each row passed to Fit, or nil
// for a Model built with New.
func (m *Model) Labels() []int {
	if m.labels == nil {
		return nil
	}
	return append([]int(nil), m.labels...)
}

// Inertia returns the training within-cluster sum of squared distances.
func (m *Model) Inertia() float64 { return m.inertia }

// Iterations returns the Lloyd iterations of the winning run.
func (m *Model) Iterations() int { return m.iterations }

// Converged reports whether the winning run stopped because assignments
// stopped changing rather than at the iteration cap.
func (m *Model) Converged() bool { return m.converged }

// Assign returns the index of the nearest centroid. v must have Dim()
// elements; use AssignChecked for untrusted input.
func (m *Model) Assign(v []float64) int {
	id, _ := nearest(m.centroids, v)
	return id
}

// AssignChecked is Assign with a length check.
func (m *Model) AssignChecked(v []float64) (int, error) {
	if len(v) != m.Dim() {
		return 0, fmt.Errorf("%w: vector has %d elements, model expects %d", ErrDimension, len(v), m.Dim())
	}
	return m.Assign(v), nil
}

// Distances returns the Euclidean distance from v to every centroid.
func (m *Model) Distances(v []float64) []float64 {
	out := make([]float64, len(m.centroids))
	for i, c := range m.centroids {
		out[i] = floats.Distance(c, v, 2)
	}
	return out
}

// SSE returns the sum of squared distances from each row to its nearest
// centroid.
func (m *Model) SSE(data [][]float64) float64 {
	var sum float64
	for _, row := range data {
		_, d := nearest(m.centroids, row)
		sum += d * d
	}
	return sum
}

// lloyd runs one seeded k-means++ initialisation followed by Lloyd
// iterations. The returned labels always equal nearest(centroids, row).
func lloyd(data [][]float64, k, maxIter int, rng *rand.Rand) *Model {
	centroids := initPlusPlus(data, k, rng)
	labels := make([]int, len(data))
	for i := range labels {
		labels[i] = -1
	}

	m := &Model{}
	for iter := 0; iter < maxIter; iter++ {
		m.iterations = iter + 1
		if assignAll(data, centroids, labels) == 0 {
			m.converged = true
			break
		}
		update(data, centroids, labels)
	}
	if !m.converged {
		assignAll(data, centroids, labels)
	}

	for i, row := range data {
		d := floats.Distance(centroids[labels[i]], row, 2)
		m.inertia += d * d
	}
	m.centroids = centroids
	m.labels = labels
	return m
}

// initPlusPlus picks k initial centroids: the first uniformly, each next one
// with probability proportional to its squared distance to the nearest
// centroid chosen so far.
func initPlusPlus(data [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(data)
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, append([]float64(nil), data[rng.IntN(n)]...))

	weights := make([]float64, n)
	for len(centroids) < k {
		var total float64
		for i, row := range data {
			_, d := nearest(centroids, row)
			weights[i] = d * d
			total += weights[i]
		}

		pick := -1
		if total > 0 {
			target := rng.Float64() * total
			var cum float64
			for i, w := range weights {
				if w == 0 {
					continue
				}
				cum += w
				pick = i
				if cum > target {
					break
				}
			}
		}
		if pick < 0 {
			// Every point coincides with a centroid.
			pick = rng.IntN(n)
		}
		centroids = append(centroids, append([]float64(nil), data[pick]...))
	}
	return centroids
}

// assignAll sets labels[i] to the nearest centroid of data[i] and returns how
// many labels changed.
func assignAll(data, centroids [][]float64, labels []int) int {
	changed := 0
	for i, row := range data {
		id, _ := nearest(centroids, row)
		if labels[i] != id {
			labels[i] = id
			changed++
		}
	}
	return changed
}

// update recomputes each centroid as the mean of its members and reseeds
// empty clusters.
func update(data, centroids [][]float64, labels []int) {
	k := len(centroids)
	dim := len(centroids[0])
	counts := make([]int, k)
	sums := make([][]float64, k)
	for j := range sums {
		sums[j] = make([]float64, dim)
	}
	for i, row := range data {
		floats.Add(sums[labels[i]], row)
		counts[labels[i]]++
	}

	var empty []int
	for j := range centroids {
		if counts[j] == 0 {
			empty = append(empty, j)
			continue
		}
		floats.Scale(1/float64(counts[j]), sums[j])
		centroids[j] = sums[j]
	}
	if len(empty) == 0 {
		return
	}

	// Reseed each empty cluster, in index order, to the point farthest from
	// its nearest surviving centroid. A reseeded centroid survives for the
	// clusters after it.
	surviving := make([][]float64, 0, k)
	for j := range centroids {
		if counts[j] > 0 {
			surviving = append(surviving, centroids[j])
		}
	}
	for _, j := range empty {
		far, farDist := 0, -1.0
		for i, row := range data {
			_, d := nearest(surviving, row)
			if d > farDist {
				far, farDist = i, d
			}
		}
		centroids[j] = append([]float64(nil), data[far]...)
		surviving = append(surviving, centroids[j])
	}
}

// nearest returns the index of and distance to the closest centroid. Ties
// keep the lowest index. An empty centroid list yields (0, +Inf).
func nearest(centroids [][]float64, v []float64) (int, float64) {
	best, bestDist := 0, math.Inf(1)
	for i, c := range centroids {
		if d := floats.Distance(c, v, 2); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, bestDist
}

func dimensionOf(rows [][]float64) (int, error) {
	dim := len(rows[0])
	for i, row := range rows {
		if len(row) != dim {
			return 0, fmt.Errorf("%w: row %d has %d elements, want %d", ErrDimension, i, len(row), dim)
		}
	}
	return dim, nil
}

func copyMatrix(m [][]float64) [][]float64 {
	out := make([][]float64, len(m))
	for i, row := range m {
		out[i] = append([]float64(nil), row...)
	}
	return out
}
