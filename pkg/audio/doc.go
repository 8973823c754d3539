// Package audio groups the signal path from encoded files to MFCC
// fingerprints:
//
//   - decode: WAV/MP3 (and optional ffmpeg) decoding to 16 kHz mono
//   - resampler: sample rate conversion
//   - pcm: waveform type and sample format conversion
//   - fbank: framed power spectra and mel filterbank energies
//   - mfcc: cepstral coefficients from mel energies
package audio
