// Package fbank computes mel power spectrograms from PCM audio.
//
// The front-end follows the librosa convention that the accent clustering
// models were first trained with:
//
//	SampleRate: 16000
//	FFTSize:    2048
//	HopSize:     512
//	NumMels:     128 (Slaney scale, Slaney area normalisation)
//	LowFreq:       0
//	HighFreq:   8000 (Nyquist)
//	Center:     true (zero padding of FFTSize/2 on both sides)
//
// The output is a [T][NumMels] float64 matrix of mel-band power. The number
// of frames is 1 + len(pcm)/HopSize when Center is set.
package fbank

import (
	"gonum.org/v1/gonum/dsp/fourier"
)

// Config controls mel spectrogram extraction parameters.
type Config struct {
	SampleRate int     // audio sample rate in Hz (default 16000)
	FFTSize    int     // FFT and window length in samples (default 2048)
	HopSize    int     // hop length in samples (default 512)
	NumMels    int     // number of mel bands (default 128)
	LowFreq    float64 // lowest filter edge in Hz (default 0)
	HighFreq   float64 // highest filter edge in Hz (default SampleRate/2)
	Center     bool    // pad the signal so frame t is centred at t*HopSize
}

// DefaultConfig returns the librosa-compatible configuration for 16 kHz audio.
func DefaultConfig() Config {
	return Config{
		SampleRate: 16000,
		FFTSize:    2048,
		HopSize:    512,
		NumMels:    128,
		LowFreq:    0,
		HighFreq:   8000,
		Center:     true,
	}
}

// Extractor computes mel power spectrograms.
//
// An Extractor only holds read-only tables (window and filter bank), so it is
// safe for concurrent use. Every Extract call allocates its own FFT plan and
// working buffers.
type Extractor struct {
	cfg     Config
	window  []float64
	melBank [][]float64
}

// New creates a new Extractor with the given config. Zero fields are filled
// from DefaultConfig.
func New(cfg Config) *Extractor {
	def := DefaultConfig()
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = def.SampleRate
	}
	if cfg.FFTSize <= 0 {
		cfg.FFTSize = def.FFTSize
	}
	if cfg.HopSize <= 0 {
		cfg.HopSize = def.HopSize
	}
	if cfg.NumMels <= 0 {
		cfg.NumMels = def.NumMels
	}
	if cfg.HighFreq <= 0 {
		cfg.HighFreq = float64(cfg.SampleRate) / 2
	}
	return &Extractor{
		cfg:     cfg,
		window:  hannWindow(cfg.FFTSize),
		melBank: melFilterBank(cfg.NumMels, cfg.FFTSize, cfg.SampleRate, cfg.LowFreq, cfg.HighFreq),
	}
}

// Config returns the effective configuration.
func (e *Extractor) Config() Config { return e.cfg }

// NumFrames returns the number of frames Extract yields for n samples.
func (e *Extractor) NumFrames(n int) int {
	cfg := e.cfg
	if cfg.Center {
		return 1 + n/cfg.HopSize
	}
	if n < cfg.FFTSize {
		return 0
	}
	return 1 + (n-cfg.FFTSize)/cfg.HopSize
}

// Extract computes the mel power spectrogram of pcm (normalised samples in
// [-1, 1]). Returns nil when pcm is empty, or shorter than one window
// without centring.
func (e *Extractor) Extract(pcm []float32) [][]float64 {
	if len(pcm) == 0 {
		return nil
	}
	cfg := e.cfg
	numFrames := e.NumFrames(len(pcm))
	if numFrames <= 0 {
		return nil
	}

	nfft := cfg.FFTSize
	offset := 0
	if cfg.Center {
		offset = nfft / 2
	}

	fft := fourier.NewFFT(nfft)
	frame := make([]float64, nfft)
	coeffs := make([]complex128, nfft/2+1)
	power := make([]float64, nfft/2+1)

	features := make([][]float64, numFrames)
	for t := 0; t < numFrames; t++ {
		// Sample index of frame[0] in the unpadded signal.
		start := t*cfg.HopSize - offset
		for i := 0; i < nfft; i++ {
			j := start + i
			if j < 0 || j >= len(pcm) {
				frame[i] = 0
				continue
			}
			frame[i] = float64(pcm[j]) * e.window[i]
		}

		coeffs = fft.Coefficients(coeffs, frame)
		for k, c := range coeffs {
			power[k] = real(c)*real(c) + imag(c)*imag(c)
		}

		mel := make([]float64, cfg.NumMels)
		for m, filter := range e.melBank {
			var sum float64
			for k, w := range filter {
				if w != 0 {
					sum += w * power[k]
				}
			}
			mel[m] = sum
		}
		features[t] = mel
	}
	return features
}
