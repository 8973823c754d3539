package mfcc

import (
	"math"
	"testing"
)

func sine(freq float64, n int) []float32 {
	pcm := make([]float32, n)
	for i := range pcm {
		pcm[i] = float32(0.3 * math.Sin(2*math.Pi*freq*float64(i)/16000))
	}
	return pcm
}

func TestDCTMatrixOrthonormal(t *testing.T) {
	m := dctMatrix(13, 128)
	for a := range m {
		for b := range m {
			var dot float64
			for i := range m[a] {
				dot += m[a][i] * m[b][i]
			}
			want := 0.0
			if a == b {
				want = 1
			}
			if math.Abs(dot-want) > 1e-9 {
				t.Fatalf("row %d . row %d = %g, want %g", a, b, dot, want)
			}
		}
	}
}

func TestFramesShape(t *testing.T) {
	e := New(DefaultConfig())
	frames := e.Frames(sine(300, 16000))
	if len(frames) != 32 {
		t.Fatalf("expected 32 frames, got %d", len(frames))
	}
	for i, f := range frames {
		if len(f) != 13 {
			t.Fatalf("frame %d has %d coefficients", i, len(f))
		}
	}
}

func TestMeanFixedLength(t *testing.T) {
	e := New(DefaultConfig())
	for _, n := range []int{1, 800, 8000, 80000} {
		mean := e.Mean(sine(200, n))
		if len(mean) != 13 {
			t.Errorf("Mean(%d samples) has %d coefficients", n, len(mean))
		}
		for i, v := range mean {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				t.Errorf("Mean(%d samples)[%d] = %g", n, i, v)
			}
		}
	}
	if e.Mean(nil) != nil {
		t.Error("Mean(nil) should be nil")
	}
}

func TestSilenceIsFinite(t *testing.T) {
	e := New(DefaultConfig())
	mean := e.Mean(make([]float32, 16000))
	// All bands sit on the amin floor: -100 dB everywhere, so only c0 is non-zero.
	want0 := -100 * math.Sqrt(128)
	if math.Abs(mean[0]-want0) > 1e-6 {
		t.Errorf("c0 = %g, want %g", mean[0], want0)
	}
	for k := 1; k < 13; k++ {
		if math.Abs(mean[k]) > 1e-6 {
			t.Errorf("c%d = %g, want 0", k, mean[k])
		}
	}
}

func TestDifferentTimbreDiffers(t *testing.T) {
	e := New(DefaultConfig())
	a := e.Mean(sine(200, 16000))
	b := e.Mean(sine(3000, 16000))
	var dist float64
	for i := range a {
		d := a[i] - b[i]
		dist += d * d
	}
	if dist < 1 {
		t.Errorf("expected distinct fingerprints for 200 Hz and 3 kHz tones, dist=%g", dist)
	}
}
