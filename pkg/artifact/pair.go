package artifact

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/cespare/xxhash/v2"

	"github.com/haivivi/accent/pkg/refindex"
	"github.com/haivivi/accent/pkg/storage"
)

// Default artifact file names.
const (
	DefaultModelPath     = "accent_kmeans_model.msgpack"
	DefaultReferencePath = "accent_cluster_reference.csv"
)

// Paths locates the two files of a pair inside a FileStore.
type Paths struct {
	Model     string `json:"model" yaml:"model"`
	Reference string `json:"reference" yaml:"reference"`
}

// DefaultPaths returns the default file names.
func DefaultPaths() Paths {
	return Paths{Model: DefaultModelPath, Reference: DefaultReferencePath}
}

// WithDefaults fills empty paths.
func (p Paths) WithDefaults() Paths {
	if p.Model == "" {
		p.Model = DefaultModelPath
	}
	if p.Reference == "" {
		p.Reference = DefaultReferencePath
	}
	return p
}

// Pair is a model and the reference table produced by the same run.
type Pair struct {
	Model *Model
	Index *refindex.Index
}

// Check verifies that the reference table belongs to the model.
func (p Pair) Check() error {
	if p.Index.Len() != p.Model.NumSamples {
		return fmt.Errorf("%w: reference table has %d rows, model was trained on %d samples",
			ErrDimensionMismatch, p.Index.Len(), p.Model.NumSamples)
	}
	if err := p.Index.Validate(p.Model.K); err != nil {
		return fmt.Errorf("%w: %w", ErrDimensionMismatch, err)
	}
	return nil
}

// Save writes the reference table, then the model. The model records the
// checksum of the table bytes, so a table left behind by a failed model
// write is rejected by Load. Both are encoded before anything is written.
func Save(ctx context.Context, store storage.FileStore, paths Paths, pair Pair) error {
	if err := pair.Check(); err != nil {
		return err
	}
	paths = paths.WithDefaults()

	var model, ref bytes.Buffer
	if err := pair.Index.WriteCSV(&ref); err != nil {
		return fmt.Errorf("encode reference table: %w", err)
	}
	pair.Model.ReferenceChecksum = xxhash.Sum64(ref.Bytes())
	if err := WriteModel(&model, pair.Model); err != nil {
		return fmt.Errorf("encode model: %w", err)
	}
	if err := storage.WriteFile(ctx, store, paths.Reference, ref.Bytes()); err != nil {
		return fmt.Errorf("write %s: %w", paths.Reference, err)
	}
	if err := storage.WriteFile(ctx, store, paths.Model, model.Bytes()); err != nil {
		return fmt.Errorf("write %s: %w", paths.Model, err)
	}
	return nil
}

// LoadModel reads and validates only the model file.
func LoadModel(ctx context.Context, store storage.FileStore, path string, spec Spec) (*Model, error) {
	data, err := readArtifact(ctx, store, path)
	if err != nil {
		return nil, err
	}
	m, err := ReadModel(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := m.Validate(spec); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Load reads both files and validates them as a matched pair.
func Load(ctx context.Context, store storage.FileStore, paths Paths, spec Spec) (Pair, error) {
	paths = paths.WithDefaults()
	m, err := LoadModel(ctx, store, paths.Model, spec)
	if err != nil {
		return Pair{}, err
	}
	data, err := readArtifact(ctx, store, paths.Reference)
	if err != nil {
		return Pair{}, err
	}
	if sum := xxhash.Sum64(data); sum != m.ReferenceChecksum {
		return Pair{}, fmt.Errorf("%w: %s has checksum %016x, model %s expects %016x",
			ErrDimensionMismatch, paths.Reference, sum, m.RunID, m.ReferenceChecksum)
	}
	idx, err := refindex.ReadCSV(bytes.NewReader(data))
	if err != nil {
		return Pair{}, fmt.Errorf("%w: %s: %w", ErrModelNotFound, paths.Reference, err)
	}
	pair := Pair{Model: m, Index: idx}
	if err := pair.Check(); err != nil {
		return Pair{}, fmt.Errorf("%s: %w", paths.Reference, err)
	}
	return pair, nil
}

func readArtifact(ctx context.Context, store storage.FileStore, path string) ([]byte, error) {
	data, err := storage.ReadFile(ctx, store, path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrModelNotFound, path, err)
	}
	return data, nil
}
