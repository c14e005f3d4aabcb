package analysis

import "math"

// SettlingTime is the first time after which |setpoint - pv| stays within
// band for the rest of the record. It is NaN when the last sample is still
// outside the band.
func SettlingTime(times, pv, setpoint []float64, band float64) (float64, error) {
	if len(times) != len(pv) || len(pv) != len(setpoint) {
		return 0, ErrLength
	}
	if len(times) == 0 {
		return 0, ErrTooShort
	}

	settled := math.NaN()
	for i := len(times) - 1; i >= 0; i-- {
		if math.Abs(setpoint[i]-pv[i]) > band {
			break
		}
		settled = times[i]
	}
	return settled, nil
}

// Band is frac of the initial step size |setpoint - pv| at the first sample,
// the usual 2% or 5% settling criterion.
func Band(pv, setpoint []float64, frac float64) float64 {
	if len(pv) == 0 || len(setpoint) == 0 {
		return 0
	}
	return frac * math.Abs(setpoint[0]-pv[0])
}
