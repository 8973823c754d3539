package fbank

import "math"

// hannWindow generates a periodic Hann window of the given length.
func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}

// Slaney mel scale: linear below 1 kHz, logarithmic above.
const (
	melLinearStep = 200.0 / 3
	melBreakHz    = 1000.0
	melBreakMel   = melBreakHz / melLinearStep
)

var melLogStep = math.Log(6.4) / 27.0

// hzToMel converts frequency in Hz to the Slaney mel scale.
func hzToMel(hz float64) float64 {
	if hz < melBreakHz {
		return hz / melLinearStep
	}
	return melBreakMel + math.Log(hz/melBreakHz)/melLogStep
}

// melToHz converts a Slaney mel value back to Hz.
func melToHz(mel float64) float64 {
	if mel < melBreakMel {
		return mel * melLinearStep
	}
	return melBreakHz * math.Exp(melLogStep*(mel-melBreakMel))
}

// melFilterBank creates triangular filters with Slaney area normalisation.
// Returns [numMels][fftSize/2+1].
func melFilterBank(numMels, fftSize, sampleRate int, lowFreq, highFreq float64) [][]float64 {
	halfFFT := fftSize/2 + 1

	// Centre frequencies of the FFT bins.
	fftFreqs := make([]float64, halfFFT)
	for k := range fftFreqs {
		fftFreqs[k] = float64(k) * float64(sampleRate) / float64(fftSize)
	}

	// numMels + 2 points equally spaced on the mel scale, in Hz.
	lowMel := hzToMel(lowFreq)
	highMel := hzToMel(highFreq)
	edges := make([]float64, numMels+2)
	for i := range edges {
		edges[i] = melToHz(lowMel + (highMel-lowMel)*float64(i)/float64(numMels+1))
	}

	bank := make([][]float64, numMels)
	for m := 0; m < numMels; m++ {
		left, center, right := edges[m], edges[m+1], edges[m+2]
		norm := 2.0 / (right - left)
		filter := make([]float64, halfFFT)
		for k, f := range fftFreqs {
			lower := (f - left) / (center - left)
			upper := (right - f) / (right - center)
			w := math.Min(lower, upper)
			if w > 0 {
				filter[k] = w * norm
			}
		}
		bank[m] = filter
	}
	return bank
}
