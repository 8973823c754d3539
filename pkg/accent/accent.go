// Package accent is the feature-to-cluster pipeline: it turns a 16 kHz mono
// waveform into a 13-coefficient MFCC fingerprint and assigns it to the
// nearest accent cluster of a trained model.
//
// A Classifier is built once from a persisted artifact pair and passed
// explicitly to whatever serves requests; there is no package-level state.
package accent

import (
	"errors"
	"fmt"
	"time"

	"github.com/haivivi/accent/pkg/artifact"
	"github.com/haivivi/accent/pkg/audio/mfcc"
	"github.com/haivivi/accent/pkg/audio/pcm"
	"github.com/haivivi/accent/pkg/metrics"
)

const (
	// SampleRate is the only waveform rate the extractor accepts.
	SampleRate = 16000
	// FeatureDim is the length of every FeatureVector.
	FeatureDim = 13
	// DefaultClusters is the default number of accent clusters.
	DefaultClusters = 8
	// DefaultLimit is the default number of similar samples returned.
	DefaultLimit = 10
)

var (
	ErrEmptyWaveform = errors.New("accent: empty waveform")
	ErrSampleRate    = errors.New("accent: waveform must be 16 kHz")
)

// Waveform is mono audio in [-1, 1].
type Waveform = pcm.Waveform

// FeatureVector is the time-averaged MFCC fingerprint of a waveform.
type FeatureVector []float64

// Spec describes the features this package produces, for artifact
// validation.
func Spec() artifact.Spec {
	return artifact.Spec{SampleRate: SampleRate, FeatureDim: FeatureDim}
}

// Extractor computes FeatureVectors. It holds only read-only tables and is
// safe for concurrent use.
type Extractor struct {
	mfcc    *mfcc.Extractor
	metrics *metrics.Metrics
}

// NewExtractor returns an extractor using the fixed analysis parameters:
// 2048-point FFT, 512-sample hop, 128 Slaney mel bands, 13 coefficients.
// m may be nil.
func NewExtractor(m *metrics.Metrics) *Extractor {
	cfg := mfcc.DefaultConfig()
	cfg.Fbank.SampleRate = SampleRate
	cfg.NumCoeffs = FeatureDim
	return &Extractor{mfcc: mfcc.New(cfg), metrics: m}
}

// Extract returns the mean of each MFCC over all frames of w. The vector
// length does not depend on the clip duration. Silent clips are valid.
func (e *Extractor) Extract(w Waveform) (FeatureVector, error) {
	if w.Empty() {
		return nil, ErrEmptyWaveform
	}
	if w.SampleRate != SampleRate {
		return nil, fmt.Errorf("%w: got %d Hz", ErrSampleRate, w.SampleRate)
	}
	start := time.Now()
	v := e.mfcc.Mean(w.Samples)
	e.metrics.ObserveExtract(time.Since(start))
	return FeatureVector(v), nil
}
