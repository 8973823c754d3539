// Package resampler converts mono float32 audio between sample rates using a
// pure Go polyphase resampler (no CGO/FFI dependencies).
//
// Example usage:
//
//	out, err := resampler.Resample(samples, 44100, 16000)
//	if err != nil {
//	    return err
//	}
package resampler
