package analysis

import (
	"errors"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

var (
	ErrTooShort    = errors.New("analysis: too few samples")
	ErrInvalidStep = errors.New("analysis: sample interval must be positive")
	ErrLength      = errors.New("analysis: series lengths differ")
)

const minSamples = 4

// Spectrum is the one-sided amplitude spectrum of a uniformly sampled
// signal. Freq is in Hz.
type Spectrum struct {
	Freq      []float64
	Amplitude []float64
}

// NewSpectrum removes the mean, applies a Hann window and transforms.
func NewSpectrum(samples []float64, dt float64) (*Spectrum, error) {
	n := len(samples)
	if n < minSamples {
		return nil, ErrTooShort
	}
	if dt <= 0 {
		return nil, ErrInvalidStep
	}

	x := make([]float64, n)
	copy(x, samples)
	floats.AddConst(-stat.Mean(x, nil), x)
	window.Apply(x, window.Hann)

	coeffs := fft.FFTReal(x)

	half := n/2 + 1
	s := &Spectrum{
		Freq:      make([]float64, half),
		Amplitude: make([]float64, half),
	}
	for k := 0; k < half; k++ {
		s.Freq[k] = float64(k) / (float64(n) * dt)
		s.Amplitude[k] = 2 * cmplx.Abs(coeffs[k]) / float64(n)
	}
	return s, nil
}

// Dominant returns the strongest non-DC component.
func (s *Spectrum) Dominant() (freq, amplitude float64) {
	if len(s.Amplitude) < 2 {
		return 0, 0
	}
	i := floats.MaxIdx(s.Amplitude[1:]) + 1
	return s.Freq[i], s.Amplitude[i]
}

// TrackingError returns setpoint - pv per sample.
func TrackingError(pv, setpoint []float64) ([]float64, error) {
	if len(pv) != len(setpoint) {
		return nil, ErrLength
	}
	out := make([]float64, len(pv))
	floats.SubTo(out, setpoint, pv)
	return out, nil
}
