package analysis

import (
	"errors"
	"math"
	"testing"
)

func TestSpectrumDominantFrequency(t *testing.T) {
	const (
		dt   = 0.05
		n    = 400
		freq = 0.5
	)
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = 3 + 2*math.Sin(2*math.Pi*freq*float64(i)*dt)
	}

	s, err := NewSpectrum(samples, dt)
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Freq) != n/2+1 {
		t.Fatalf("bins: got %d, want %d", len(s.Freq), n/2+1)
	}

	f, amp := s.Dominant()
	if math.Abs(f-freq) > 1e-9 {
		t.Errorf("dominant: got %v Hz, want %v", f, freq)
	}
	if amp <= 0 {
		t.Errorf("amplitude: got %v", amp)
	}
	// the offset is removed before transforming
	if s.Amplitude[0] >= amp/10 {
		t.Errorf("DC bin %v not small against peak %v", s.Amplitude[0], amp)
	}
}

func TestSpectrumDoesNotMutateInput(t *testing.T) {
	samples := []float64{1, 2, 3, 4, 5, 6}
	if _, err := NewSpectrum(samples, 0.1); err != nil {
		t.Fatal(err)
	}
	for i, v := range samples {
		if v != float64(i+1) {
			t.Fatalf("input modified: %v", samples)
		}
	}
}

func TestSpectrumErrors(t *testing.T) {
	if _, err := NewSpectrum([]float64{1, 2}, 0.1); !errors.Is(err, ErrTooShort) {
		t.Errorf("expected ErrTooShort, got %v", err)
	}
	if _, err := NewSpectrum([]float64{1, 2, 3, 4}, 0); !errors.Is(err, ErrInvalidStep) {
		t.Errorf("expected ErrInvalidStep, got %v", err)
	}
}

func TestTrackingError(t *testing.T) {
	e, err := TrackingError([]float64{20, 45, 52}, []float64{50, 50, 50})
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{30, 5, -2}
	for i := range want {
		if e[i] != want[i] {
			t.Errorf("e[%d] = %v, want %v", i, e[i], want[i])
		}
	}

	if _, err := TrackingError([]float64{1}, nil); !errors.Is(err, ErrLength) {
		t.Errorf("expected ErrLength, got %v", err)
	}
}

func TestSettlingTime(t *testing.T) {
	times := []float64{0, 1, 2, 3, 4}
	sp := []float64{10, 10, 10, 10, 10}

	tests := []struct {
		name string
		pv   []float64
		want float64
	}{
		{"settles", []float64{0, 5, 9, 10.5, 10.1}, 2},
		{"leaves band again", []float64{0, 9.5, 12, 10.5, 10.1}, 3},
		{"never settles", []float64{0, 5, 9, 10.5, 12}, math.NaN()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SettlingTime(times, tt.pv, sp, 1)
			if err != nil {
				t.Fatal(err)
			}
			if math.IsNaN(tt.want) {
				if !math.IsNaN(got) {
					t.Errorf("got %v, want NaN", got)
				}
				return
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}

	if _, err := SettlingTime(times, []float64{1}, sp, 1); !errors.Is(err, ErrLength) {
		t.Errorf("expected ErrLength, got %v", err)
	}
}

func TestBand(t *testing.T) {
	if got := Band([]float64{0, 3}, []float64{10, 10}, 0.02); math.Abs(got-0.2) > 1e-12 {
		t.Errorf("got %v, want 0.2", got)
	}
	if Band(nil, nil, 0.02) != 0 {
		t.Error("expected 0 for empty series")
	}
}
