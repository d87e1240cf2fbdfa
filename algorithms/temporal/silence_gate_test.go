package temporal

import (
	"math"
	"testing"
)

func constant(level float64) []float64 {
	frame := make([]float64, 256)
	for i := range frame {
		frame[i] = level
	}
	return frame
}

func TestSilenceGateHysteresis(t *testing.T) {
	g := NewSilenceGate(-40, 6)

	steps := []struct {
		level float64
		open  bool
	}{
		{0, false},
		{0.005, false}, // -46 dB, below the opening threshold
		{0.02, true},   // -34 dB
		{0.006, true},  // -44.4 dB, inside the hysteresis band
		{0.004, false}, // -48 dB
		{0.009, false}, // -41 dB, still below the opening threshold
	}
	for i, st := range steps {
		if got := g.Update(constant(st.level)); got != st.open {
			t.Errorf("step %d level %v: open = %v, want %v", i, st.level, got, st.open)
		}
	}
}

func TestSilenceGateLevel(t *testing.T) {
	g := NewSilenceGate(-60, 3)
	g.Update(constant(0.1))
	if math.Abs(g.Level()+20) > 1e-9 {
		t.Errorf("level = %v dB, want -20", g.Level())
	}
	g.Reset()
	if g.Open() {
		t.Error("gate open after reset")
	}
}
