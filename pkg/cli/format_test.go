package cli

import (
	"testing"
	"time"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0ms"},
		{999 * time.Microsecond, "0ms"},
		{1 * time.Millisecond, "1ms"},
		{100 * time.Millisecond, "100ms"},
		{999 * time.Millisecond, "999ms"},
		{1000 * time.Millisecond, "1.0s"},
		{1500 * time.Millisecond, "1.5s"},
		{5000 * time.Millisecond, "5.0s"},
		{59000 * time.Millisecond, "59.0s"},
		{60000 * time.Millisecond, "1m0.0s"},
		{61000 * time.Millisecond, "1m1.0s"},
		{90000 * time.Millisecond, "1m30.0s"},
		{120000 * time.Millisecond, "2m0.0s"},
		{125500 * time.Millisecond, "2m5.5s"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got := FormatDuration(tt.d)
			if got != tt.want {
				t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.want)
			}
		})
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1 KiB"},
		{1536, "1.5 KiB"},
		{32 << 20, "32 MiB"},
		{3 << 29, "1.5 GiB"},
		{5 << 40, "5 TiB"},
		{2048 << 40, "2048 TiB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.n); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}
