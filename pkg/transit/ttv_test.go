package transit

import (
	"errors"
	"math"
	"testing"
)

func TestLinearEphemeris(t *testing.T) {
	times := make([]float64, 50)
	for i := range times {
		times[i] = 54.627 + float64(i)*10.95
	}

	eph, err := LinearEphemeris(times)
	if err != nil {
		t.Fatalf("LinearEphemeris() error = %v", err)
	}
	if math.Abs(eph.T0-54.627) > 1e-9 || math.Abs(eph.Period-10.95) > 1e-12 {
		t.Errorf("ephemeris = %+v, want T0=54.627 P=10.95", eph)
	}
	if got := eph.At(10); math.Abs(got-(54.627+109.5)) > 1e-9 {
		t.Errorf("At(10) = %g", got)
	}
}

func TestTTVsRecoverSinusoid(t *testing.T) {
	const amp = 0.01
	times := make([]float64, 40)
	want := make([]float64, 40)
	for i := range times {
		want[i] = amp * math.Cos(2*math.Pi*float64(i)/10)
		times[i] = 3 + 7.5*float64(i) + want[i]
	}

	got := TTVs(times)
	if len(got) != len(times) {
		t.Fatalf("got %d residuals, want %d", len(got), len(times))
	}

	var sum float64
	for i := range got {
		sum += got[i]
		if math.Abs(got[i]-want[i]) > 1e-3 {
			t.Errorf("ttv[%d] = %g, want about %g", i, got[i], want[i])
		}
	}
	if math.Abs(sum) > 1e-9 {
		t.Errorf("residuals should sum to zero, got %g", sum)
	}
}

func TestTTVsTooFewTransits(t *testing.T) {
	if got := TTVs([]float64{1.5}); got != nil {
		t.Errorf("TTVs of one transit = %v, want nil", got)
	}
	if _, err := LinearEphemeris(nil); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("LinearEphemeris(nil) error = %v, want ErrInsufficientData", err)
	}
	if _, err := FitEphemeris([]int{3, 3}, []float64{1, 2}); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("FitEphemeris with a single epoch error = %v", err)
	}
	if _, err := FitEphemeris([]int{0}, []float64{1, 2}); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("FitEphemeris with mismatched lengths error = %v", err)
	}
}

func TestEpochsWithMissedTransit(t *testing.T) {
	times := []float64{1.0, 5.01, 13.02, 16.99}
	got := Epochs(times, 4)
	want := []int{0, 1, 3, 4}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Epochs() = %v, want %v", got, want)
		}
	}

	eph, err := FitEphemeris(got, times)
	if err != nil {
		t.Fatalf("FitEphemeris() error = %v", err)
	}
	if math.Abs(eph.Period-4) > 0.01 {
		t.Errorf("period = %g, want about 4", eph.Period)
	}

	if Epochs(nil, 4) != nil || Epochs(times, 0) != nil {
		t.Error("Epochs should return nil for empty input or a non-positive period")
	}
}

func TestBodyTTVsAfterScan(t *testing.T) {
	bodies, period := twoBody(1e-3, 0.05)
	bodies[1].TransitTimes = []float64{period / 4, 5 * period / 4, 9 * period / 4}

	eph, err := bodies[1].Ephemeris()
	if err != nil {
		t.Fatalf("Ephemeris() error = %v", err)
	}
	if math.Abs(eph.Period-period) > 1e-12 {
		t.Errorf("period = %g, want %g", eph.Period, period)
	}
	for i, v := range bodies[1].TTVs() {
		if math.Abs(v) > 1e-12 {
			t.Errorf("ttv[%d] = %g, want 0 for a strictly periodic orbit", i, v)
		}
	}
}
