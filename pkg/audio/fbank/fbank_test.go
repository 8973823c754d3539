package fbank

import (
	"math"
	"testing"
)

func TestHannWindow(t *testing.T) {
	w := hannWindow(2048)
	if len(w) != 2048 {
		t.Fatalf("expected 2048, got %d", len(w))
	}
	// Periodic Hann: starts at zero, peaks at n/2.
	if w[0] != 0 {
		t.Errorf("w[0] = %f, want 0", w[0])
	}
	if math.Abs(w[1024]-1.0) > 1e-12 {
		t.Errorf("w[1024] = %f, want 1", w[1024])
	}
	if math.Abs(w[1]-w[2047]) > 1e-12 {
		t.Errorf("window should be symmetric around n/2: %f vs %f", w[1], w[2047])
	}
}

func TestMelConversion(t *testing.T) {
	// Below the break the Slaney scale is linear: 600 Hz = 9 mel.
	if got := hzToMel(600); math.Abs(got-9) > 1e-9 {
		t.Errorf("hzToMel(600) = %f, want 9", got)
	}
	if got := hzToMel(1000); math.Abs(got-15) > 1e-9 {
		t.Errorf("hzToMel(1000) = %f, want 15", got)
	}
	for _, hz := range []float64{0, 250, 999, 1000, 4000, 8000} {
		if back := melToHz(hzToMel(hz)); math.Abs(back-hz) > 1e-6 {
			t.Errorf("melToHz(hzToMel(%f)) = %f", hz, back)
		}
	}
}

func TestMelFilterBank(t *testing.T) {
	bank := melFilterBank(128, 2048, 16000, 0, 8000)
	if len(bank) != 128 {
		t.Fatalf("expected 128 filters, got %d", len(bank))
	}
	for i, f := range bank {
		if len(f) != 1025 {
			t.Fatalf("filter %d: expected 1025 bins, got %d", i, len(f))
		}
		for _, v := range f {
			if v < 0 {
				t.Fatalf("filter %d has negative weight %f", i, v)
			}
		}
	}
	// Upper filters are wide enough to cover several FFT bins.
	nonZero := 0
	for _, v := range bank[127] {
		if v > 0 {
			nonZero++
		}
	}
	if nonZero == 0 {
		t.Error("highest filter is all zeros")
	}
}

func TestExtractFrameCount(t *testing.T) {
	e := New(DefaultConfig())
	tests := []struct {
		samples int
		frames  int
	}{
		{1, 1},
		{511, 1},
		{512, 2},
		{16000, 32},
		{80000, 157},
	}
	for _, tt := range tests {
		got := e.Extract(make([]float32, tt.samples))
		if len(got) != tt.frames {
			t.Errorf("Extract(%d samples): %d frames, want %d", tt.samples, len(got), tt.frames)
		}
	}
	if got := e.Extract(nil); got != nil {
		t.Errorf("Extract(nil) = %v, want nil", got)
	}
}

func TestExtractToneEnergy(t *testing.T) {
	e := New(DefaultConfig())
	pcm := make([]float32, 16000)
	for i := range pcm {
		pcm[i] = float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/16000))
	}
	features := e.Extract(pcm)
	mid := features[len(features)/2]

	// The band holding 440 Hz should dominate the top of the spectrum.
	low, high := 0.0, 0.0
	for m := 0; m < 20; m++ {
		low += mid[m]
	}
	for m := 100; m < 128; m++ {
		high += mid[m]
	}
	if low <= high {
		t.Errorf("expected 440 Hz energy in low bands: low=%g high=%g", low, high)
	}
}

func TestExtractDeterministic(t *testing.T) {
	e := New(DefaultConfig())
	pcm := make([]float32, 4000)
	for i := range pcm {
		pcm[i] = float32(math.Sin(float64(i) * 0.01))
	}
	a := e.Extract(pcm)
	b := e.Extract(pcm)
	for i := range a {
		for j := range a[i] {
			if a[i][j] != b[i][j] {
				t.Fatalf("frame %d band %d differs: %g vs %g", i, j, a[i][j], b[i][j])
			}
		}
	}
}
