package temporal

import (
	"math"

	"github.com/RyanBlaney/sonido-arp/algorithms/common"
)

// SilenceGate decides frame by frame whether the input carries signal. It
// opens at the threshold and closes a hysteresis below it, so a note
// decaying around the threshold does not flap.
type SilenceGate struct {
	openAt  float64 // linear RMS
	closeAt float64
	open    bool
	rms     float64
}

// NewSilenceGate takes the opening threshold and the hysteresis in dB
// relative to full scale
func NewSilenceGate(thresholdDB, hysteresisDB float64) *SilenceGate {
	return &SilenceGate{
		openAt:  math.Pow(10, thresholdDB/20),
		closeAt: math.Pow(10, (thresholdDB-math.Abs(hysteresisDB))/20),
	}
}

// Update measures frame and reports whether the gate is open afterwards
func (g *SilenceGate) Update(frame []float64) bool {
	g.rms = common.RMS(frame)
	switch {
	case g.rms >= g.openAt:
		g.open = true
	case g.rms < g.closeAt:
		g.open = false
	}
	return g.open
}

func (g *SilenceGate) Open() bool {
	return g.open
}

// Level is the RMS of the last frame in dBFS
func (g *SilenceGate) Level() float64 {
	return common.LinearToDB(g.rms)
}

func (g *SilenceGate) Reset() {
	g.open = false
	g.rms = 0
}
