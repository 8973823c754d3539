// Package pcm provides the in-memory waveform type shared by the decoding and
// feature extraction stages.
//
// A Waveform holds mono float32 samples normalised to [-1, 1] together with
// their sample rate. Helpers convert interleaved integer PCM into that form.
//
// Example usage:
//
//	// 16-bit little-endian stereo from an MP3 decoder
//	samples := pcm.FromInt16LE(raw, 2)
//	w := pcm.Waveform{Samples: samples, SampleRate: 44100}
//	fmt.Println(w.Duration())
package pcm
