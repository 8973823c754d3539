// Package artifact persists a trained cluster model together with its
// reference table.
//
// The model file is a msgpack container:
//
//	magic        "ACCM"
//	version      format version (CurrentVersion)
//	run_id       uuid shared with the reference table mirror
//	created_at   training time
//	k            number of centroids
//	sample_rate  waveform rate the features were computed at
//	feature_dim  length of every centroid
//	seed         k-means base seed
//	num_samples  training rows, equal to the reference table length
//	inertia      training within-cluster sum of squares
//	centroids    k rows of feature_dim floats
//	checksum     xxhash64 of the little-endian centroid bytes
//	reference_checksum  xxhash64 of the encoded reference table
//
// The reference table is a "filename,cluster" CSV. The two files form a
// matched pair; Load rejects a table whose bytes, cluster ids or row count
// disagree with the model.
package artifact

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/haivivi/accent/pkg/kmeans"
)

const (
	// Magic identifies model files.
	Magic = "ACCM"

	// CurrentVersion is the model file format version. Increment it for
	// breaking changes to the container.
	CurrentVersion = 1
)

var (
	// ErrModelNotFound is returned when the model or reference table is
	// missing or cannot be parsed.
	ErrModelNotFound = errors.New("artifact: model not found")

	// ErrUnsupportedVersion is returned for model files of another format
	// version.
	ErrUnsupportedVersion = errors.New("artifact: unsupported model version")

	// ErrDimensionMismatch is returned when the model does not match the
	// running feature extractor, or the reference table does not match the
	// model.
	ErrDimensionMismatch = errors.New("artifact: dimension mismatch")
)

// Model is the persisted form of a trained kmeans.Model.
type Model struct {
	Magic      string      `msgpack:"magic" json:"-"`
	Version    int         `msgpack:"version" json:"version"`
	RunID      string      `msgpack:"run_id" json:"run_id"`
	CreatedAt  time.Time   `msgpack:"created_at" json:"created_at"`
	K          int         `msgpack:"k" json:"k"`
	SampleRate int         `msgpack:"sample_rate" json:"sample_rate"`
	FeatureDim int         `msgpack:"feature_dim" json:"feature_dim"`
	Seed       uint64      `msgpack:"seed" json:"seed"`
	NumSamples int         `msgpack:"num_samples" json:"num_samples"`
	Inertia    float64     `msgpack:"inertia" json:"inertia"`
	Iterations int         `msgpack:"iterations" json:"iterations"`
	Centroids  [][]float64 `msgpack:"centroids" json:"-"`
	Checksum   uint64      `msgpack:"checksum" json:"checksum"`

	// ReferenceChecksum is set by Save from the table written alongside.
	ReferenceChecksum uint64 `msgpack:"reference_checksum" json:"reference_checksum"`
}

// Spec is what the running pipeline expects a model to have been trained
// with.
type Spec struct {
	SampleRate int
	FeatureDim int
}

// NewModel wraps a fitted model for persistence with a fresh run id.
func NewModel(m *kmeans.Model, spec Spec, seed uint64, numSamples int) *Model {
	centroids := m.Centroids()
	return &Model{
		Magic:      Magic,
		Version:    CurrentVersion,
		RunID:      uuid.NewString(),
		CreatedAt:  time.Now().UTC(),
		K:          m.K(),
		SampleRate: spec.SampleRate,
		FeatureDim: m.Dim(),
		Seed:       seed,
		NumSamples: numSamples,
		Inertia:    m.Inertia(),
		Iterations: m.Iterations(),
		Centroids:  centroids,
		Checksum:   checksum(centroids),
	}
}

// KMeans rebuilds the assignable model from the stored centroids.
func (a *Model) KMeans() (*kmeans.Model, error) {
	return kmeans.New(a.Centroids)
}

// Validate checks the container and its compatibility with spec.
func (a *Model) Validate(spec Spec) error {
	if a.Magic != Magic {
		return fmt.Errorf("%w: bad magic %q", ErrModelNotFound, a.Magic)
	}
	if a.Version != CurrentVersion {
		return fmt.Errorf("%w: got %d, want %d (retrain the model)", ErrUnsupportedVersion, a.Version, CurrentVersion)
	}
	if a.K < 1 || len(a.Centroids) != a.K {
		return fmt.Errorf("%w: k=%d but %d centroids", ErrDimensionMismatch, a.K, len(a.Centroids))
	}
	for i, c := range a.Centroids {
		if len(c) != a.FeatureDim {
			return fmt.Errorf("%w: centroid %d has %d values, feature_dim=%d", ErrDimensionMismatch, i, len(c), a.FeatureDim)
		}
	}
	if sum := checksum(a.Centroids); sum != a.Checksum {
		return fmt.Errorf("%w: checksum %016x, stored %016x", ErrModelNotFound, sum, a.Checksum)
	}
	if spec.SampleRate != 0 && a.SampleRate != spec.SampleRate {
		return fmt.Errorf("%w: model trained at %d Hz, extractor runs at %d Hz", ErrDimensionMismatch, a.SampleRate, spec.SampleRate)
	}
	if spec.FeatureDim != 0 && a.FeatureDim != spec.FeatureDim {
		return fmt.Errorf("%w: model has %d features, extractor produces %d", ErrDimensionMismatch, a.FeatureDim, spec.FeatureDim)
	}
	return nil
}

// WriteModel encodes a to w.
func WriteModel(w io.Writer, a *Model) error {
	enc := msgpack.NewEncoder(w)
	enc.UseCompactInts(true)
	return enc.Encode(a)
}

// ReadModel decodes a model without validating it.
func ReadModel(r io.Reader) (*Model, error) {
	var a Model
	if err := msgpack.NewDecoder(r).Decode(&a); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", ErrModelNotFound, err)
	}
	return &a, nil
}

func checksum(centroids [][]float64) uint64 {
	h := xxhash.New()
	var buf [8]byte
	for _, row := range centroids {
		for _, v := range row {
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
			h.Write(buf[:])
		}
	}
	return h.Sum64()
}
