package transit

import (
	"math"
)

// Ephemeris is a linear transit ephemeris T(n) = T0 + n*Period.
type Ephemeris struct {
	T0     float64 `json:"t0"`
	Period float64 `json:"period"`
}

// At returns the predicted time of transit epoch n.
func (e Ephemeris) At(n int) float64 {
	return e.T0 + float64(n)*e.Period
}

// LinearEphemeris fits T(n) = T0 + n*Period to consecutive transit times by
// least squares, numbering them 0, 1, 2, ...
func LinearEphemeris(times []float64) (Ephemeris, error) {
	epochs := make([]int, len(times))
	for i := range epochs {
		epochs[i] = i
	}
	return FitEphemeris(epochs, times)
}

// FitEphemeris fits a linear ephemeris to transit times with explicit epoch
// numbers, which lets gaps from missed transits be modelled.
func FitEphemeris(epochs []int, times []float64) (Ephemeris, error) {
	if len(epochs) != len(times) {
		return Ephemeris{}, newError(ErrorClassPrecondition, CodeInsufficientData,
			"%d epochs for %d transit times", len(epochs), len(times))
	}
	if len(times) < 2 {
		return Ephemeris{}, newError(ErrorClassPrecondition, CodeInsufficientData,
			"need at least 2 transits to fit an ephemeris, got %d", len(times))
	}

	// Centre both variables before accumulating to keep the sums well
	// conditioned for long baselines.
	n := float64(len(times))
	var mn, mt float64
	for i, t := range times {
		mn += float64(epochs[i])
		mt += t
	}
	mn /= n
	mt /= n

	var snn, snt float64
	for i, t := range times {
		dn := float64(epochs[i]) - mn
		snn += dn * dn
		snt += dn * (t - mt)
	}
	if snn == 0 {
		return Ephemeris{}, newError(ErrorClassPrecondition, CodeInsufficientData,
			"all transits share one epoch")
	}

	period := snt / snn
	return Ephemeris{T0: mt - period*mn, Period: period}, nil
}

// TTVs returns the residuals of consecutive transit times from their
// best-fit linear ephemeris, in days. Fewer than two transits yield nil.
func TTVs(times []float64) []float64 {
	eph, err := LinearEphemeris(times)
	if err != nil {
		return nil
	}
	out := make([]float64, len(times))
	for i, t := range times {
		out[i] = t - eph.At(i)
	}
	return out
}

// Epochs numbers transit times by rounding their offset from the first
// transit to whole periods. Missed transits show up as gaps in the numbering.
func Epochs(times []float64, period float64) []int {
	if len(times) == 0 || period <= 0 {
		return nil
	}
	out := make([]int, len(times))
	for i, t := range times {
		out[i] = int(math.Round((t - times[0]) / period))
	}
	return out
}

// TTVs returns the body's timing residuals. See the package-level TTVs.
func (b *Body) TTVs() []float64 {
	return TTVs(b.TransitTimes)
}

// Ephemeris fits a linear ephemeris to the body's transits.
func (b *Body) Ephemeris() (Ephemeris, error) {
	return LinearEphemeris(b.TransitTimes)
}
