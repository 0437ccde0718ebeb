package analysis

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// PowerSpectrum returns the one-sided magnitude spectrum of data with its
// mean removed, so bin 0 carries no offset. Any length is accepted.
func PowerSpectrum(data []float64) []float64 {
	if len(data) < 2 {
		return nil
	}

	mean := 0.0
	for _, v := range data {
		mean += v
	}
	mean /= float64(len(data))

	centered := make([]float64, len(data))
	for i, v := range data {
		centered[i] = v - mean
	}

	spectrum := fft.FFTReal(centered)
	ps := make([]float64, len(spectrum)/2)
	for i := range ps {
		ps[i] = cmplx.Abs(spectrum[i])
	}
	return ps
}

// DominantPeriod returns the period of the strongest non-constant component
// of a series sampled every dt. ok is false for a flat or too-short series.
func DominantPeriod(data []float64, dt float64) (period float64, power float64, ok bool) {
	ps := PowerSpectrum(data)
	if len(ps) < 2 {
		return 0, 0, false
	}

	peak := 0
	for i := 1; i < len(ps); i++ {
		if ps[i] > ps[peak] {
			peak = i
		}
	}
	if peak == 0 || ps[peak] < 1e-12 {
		return 0, 0, false
	}

	return float64(len(data)) * dt / float64(peak), ps[peak], true
}
