package resampler

import (
	"errors"
	"fmt"

	resampling "github.com/tphakala/go-audio-resampling"
)

// ErrInvalidRate is returned when either sample rate is not positive.
var ErrInvalidRate = errors.New("resampler: invalid sample rate")

// tailPad is the amount of trailing silence, in seconds of input, pushed
// through the filter so its delay line drains into the output.
const tailPad = 0.1

// Resample converts mono samples from srcRate to dstRate. The output length
// is at most ceil(len(samples) * dstRate / srcRate). Equal rates return the
// input slice unchanged.
func Resample(samples []float32, srcRate, dstRate int) ([]float32, error) {
	if srcRate <= 0 || dstRate <= 0 {
		return nil, fmt.Errorf("%w: %d -> %d", ErrInvalidRate, srcRate, dstRate)
	}
	if srcRate == dstRate || len(samples) == 0 {
		return samples, nil
	}

	rs, err := resampling.New(&resampling.Config{
		InputRate:  float64(srcRate),
		OutputRate: float64(dstRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create resampler: %w", err)
	}

	pad := int(float64(srcRate) * tailPad)
	input := make([]float64, len(samples)+pad)
	for i, s := range samples {
		input[i] = float64(s)
	}

	output, err := rs.Process(input)
	if err != nil {
		return nil, fmt.Errorf("resample error: %w", err)
	}

	want := OutputLen(len(samples), srcRate, dstRate)
	if len(output) > want {
		output = output[:want]
	}
	out := make([]float32, len(output))
	for i, s := range output {
		out[i] = float32(s)
	}
	return out, nil
}

// OutputLen returns the number of samples n input samples map to at dstRate.
func OutputLen(n, srcRate, dstRate int) int {
	return int((int64(n)*int64(dstRate) + int64(srcRate) - 1) / int64(srcRate))
}
