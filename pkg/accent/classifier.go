package accent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/haivivi/accent/pkg/artifact"
	"github.com/haivivi/accent/pkg/audio/decode"
	"github.com/haivivi/accent/pkg/kmeans"
	"github.com/haivivi/accent/pkg/metrics"
	"github.com/haivivi/accent/pkg/refindex"
	"github.com/haivivi/accent/pkg/storage"
)

// Decoder turns encoded audio into a 16 kHz mono waveform.
// *decode.Decoder implements it.
type Decoder interface {
	Decode(ctx context.Context, data []byte) (Waveform, error)
	DecodeFile(ctx context.Context, path string) (Waveform, error)
}

// Result is the outcome of one classification.
type Result struct {
	Cluster int `json:"cluster" yaml:"cluster"`
	// Similar lists training samples of the same cluster in training order.
	Similar []string `json:"similar" yaml:"similar"`
	// Distance is the Euclidean distance to the cluster centroid.
	Distance float64 `json:"distance" yaml:"distance"`
}

// Options configures a Classifier.
type Options struct {
	// Limit caps Result.Similar. Zero means DefaultLimit; negative means
	// no limit.
	Limit int
	// Decoder is used by ClassifyBytes and ClassifyFile. Nil means
	// decode.New().
	Decoder Decoder
	Metrics *metrics.Metrics
}

// Classifier is a loaded model and reference table. It is read-only and
// safe for concurrent use.
type Classifier struct {
	extractor *Extractor
	model     *kmeans.Model
	index     *refindex.Index
	info      *artifact.Model
	decoder   Decoder
	metrics   *metrics.Metrics
	limit     int
}

// NewClassifier builds a Classifier from a validated pair.
func NewClassifier(pair artifact.Pair, opts Options) (*Classifier, error) {
	if err := pair.Model.Validate(Spec()); err != nil {
		return nil, err
	}
	if err := pair.Check(); err != nil {
		return nil, err
	}
	m, err := pair.Model.KMeans()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", artifact.ErrDimensionMismatch, err)
	}
	limit := opts.Limit
	if limit == 0 {
		limit = DefaultLimit
	}
	dec := opts.Decoder
	if dec == nil {
		dec = decode.New()
	}
	return &Classifier{
		extractor: NewExtractor(opts.Metrics),
		model:     m,
		index:     pair.Index,
		info:      pair.Model,
		decoder:   dec,
		metrics:   opts.Metrics,
		limit:     limit,
	}, nil
}

// Load reads the artifact pair from store and builds a Classifier. Missing
// files yield artifact.ErrModelNotFound; a reference table that does not
// match the model yields artifact.ErrDimensionMismatch.
func Load(ctx context.Context, store storage.FileStore, paths artifact.Paths, opts Options) (*Classifier, error) {
	pair, err := artifact.Load(ctx, store, paths, Spec())
	if err != nil {
		return nil, err
	}
	return NewClassifier(pair, opts)
}

// Info returns the loaded model metadata.
func (c *Classifier) Info() *artifact.Model { return c.info }

// Index returns the reference table.
func (c *Classifier) Index() *refindex.Index { return c.index }

// K returns the number of clusters.
func (c *Classifier) K() int { return c.model.K() }

// Assign returns the nearest cluster of a feature vector.
func (c *Classifier) Assign(v FeatureVector) (int, error) {
	return c.model.AssignChecked(v)
}

// Classify extracts the fingerprint of w and returns its cluster together
// with up to Limit training samples of the same cluster.
func (c *Classifier) Classify(w Waveform) (Result, error) {
	start := time.Now()
	v, err := c.extractor.Extract(w)
	if err != nil {
		return Result{}, err
	}
	id, err := c.model.AssignChecked(v)
	if err != nil {
		return Result{}, err
	}
	res := Result{
		Cluster:  id,
		Similar:  c.index.Lookup(id, c.limit),
		Distance: c.model.Distances(v)[id],
	}
	c.metrics.ObserveClassification(id, time.Since(start))
	return res, nil
}

// ClassifyBytes decodes encoded audio and classifies it.
func (c *Classifier) ClassifyBytes(ctx context.Context, data []byte) (Result, error) {
	w, err := c.decoder.Decode(ctx, data)
	if err != nil {
		c.countDecodeFailure(err)
		return Result{}, err
	}
	return c.Classify(w)
}

// ClassifyFile decodes the file at path and classifies it.
func (c *Classifier) ClassifyFile(ctx context.Context, path string) (Result, error) {
	w, err := c.decoder.DecodeFile(ctx, path)
	if err != nil {
		c.countDecodeFailure(err)
		return Result{}, err
	}
	return c.Classify(w)
}

func (c *Classifier) countDecodeFailure(err error) {
	if errors.Is(err, decode.ErrDecode) {
		c.metrics.DecodeFailed()
	}
}
