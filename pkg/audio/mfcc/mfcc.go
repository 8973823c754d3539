// Package mfcc computes mel-frequency cepstral coefficients on top of the
// fbank mel spectrogram.
//
// For each frame the mel power is converted to decibels (floor 1e-10,
// clamped to TopDB below the spectrogram maximum), then projected with an
// orthonormal DCT-II, keeping the first NumCoeffs coefficients.
package mfcc

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/haivivi/accent/pkg/audio/fbank"
)

// Config controls MFCC extraction.
type Config struct {
	Fbank     fbank.Config
	NumCoeffs int     // number of cepstral coefficients (default 13)
	TopDB     float64 // dynamic range kept below the peak, in dB (default 80; <0 disables)
	AminPower float64 // power floor before the log (default 1e-10)
}

// DefaultConfig returns 13 coefficients over the default fbank front-end.
func DefaultConfig() Config {
	return Config{
		Fbank:     fbank.DefaultConfig(),
		NumCoeffs: 13,
		TopDB:     80,
		AminPower: 1e-10,
	}
}

// Extractor computes MFCC frames and their time average.
// It is safe for concurrent use.
type Extractor struct {
	cfg   Config
	fbank *fbank.Extractor
	dct   [][]float64 // [NumCoeffs][NumMels]
}

// New creates an Extractor. Zero fields are filled from DefaultConfig.
func New(cfg Config) *Extractor {
	def := DefaultConfig()
	if cfg.NumCoeffs <= 0 {
		cfg.NumCoeffs = def.NumCoeffs
	}
	if cfg.TopDB == 0 {
		cfg.TopDB = def.TopDB
	}
	if cfg.AminPower <= 0 {
		cfg.AminPower = def.AminPower
	}
	fb := fbank.New(cfg.Fbank)
	cfg.Fbank = fb.Config()
	return &Extractor{
		cfg:   cfg,
		fbank: fb,
		dct:   dctMatrix(cfg.NumCoeffs, cfg.Fbank.NumMels),
	}
}

// Config returns the effective configuration.
func (e *Extractor) Config() Config { return e.cfg }

// NumCoeffs returns the number of coefficients per frame.
func (e *Extractor) NumCoeffs() int { return e.cfg.NumCoeffs }

// Frames returns one NumCoeffs-long vector per analysis frame, or nil when
// the signal yields no frames.
func (e *Extractor) Frames(pcm []float32) [][]float64 {
	mel := e.fbank.Extract(pcm)
	if len(mel) == 0 {
		return nil
	}

	// Power to dB in place, tracking the global peak for the TopDB clamp.
	peak := math.Inf(-1)
	for _, frame := range mel {
		for m, p := range frame {
			db := 10 * math.Log10(math.Max(p, e.cfg.AminPower))
			frame[m] = db
			if db > peak {
				peak = db
			}
		}
	}
	if e.cfg.TopDB > 0 {
		floor := peak - e.cfg.TopDB
		for _, frame := range mel {
			for m, db := range frame {
				if db < floor {
					frame[m] = floor
				}
			}
		}
	}

	out := make([][]float64, len(mel))
	for t, frame := range mel {
		coeffs := make([]float64, e.cfg.NumCoeffs)
		for k, basis := range e.dct {
			coeffs[k] = floats.Dot(basis, frame)
		}
		out[t] = coeffs
	}
	return out
}

// Mean returns the per-coefficient arithmetic mean over all frames. The
// result always has NumCoeffs elements; it is nil only when pcm is empty.
func (e *Extractor) Mean(pcm []float32) []float64 {
	frames := e.Frames(pcm)
	if len(frames) == 0 {
		return nil
	}
	mean := make([]float64, e.cfg.NumCoeffs)
	for _, f := range frames {
		floats.Add(mean, f)
	}
	floats.Scale(1/float64(len(frames)), mean)
	return mean
}

// dctMatrix builds the orthonormal DCT-II basis restricted to the first
// numCoeffs rows.
func dctMatrix(numCoeffs, n int) [][]float64 {
	m := make([][]float64, numCoeffs)
	for k := range m {
		scale := math.Sqrt(2 / float64(n))
		if k == 0 {
			scale = math.Sqrt(1 / float64(n))
		}
		row := make([]float64, n)
		for i := range row {
			row[i] = scale * math.Cos(math.Pi*float64(k)*(2*float64(i)+1)/(2*float64(n)))
		}
		m[k] = row
	}
	return m
}
