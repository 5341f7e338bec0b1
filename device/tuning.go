package device

import "github.com/CK6170/spectrad-go/models"

// Tuning holds the auto-integration and scan-averaging control constants.
//
// The threshold fractions and the stability tolerance are hardware-tuning
// values; the defaults below come from bench traces of the 288-pixel board
// and can be overridden per config (models.TUNING) until they are validated
// against more units.
type Tuning struct {
	// SeedIntegrationMs is the starting exposure when automatic integration
	// is selected.
	SeedIntegrationMs int
	// LowSignalFrac: peak counts below this fraction of full scale increase
	// the exposure.
	LowSignalFrac float64
	// SaturationFrac: peak counts above this fraction of full scale decrease
	// the exposure; exceeding it at a bound flags the result saturated.
	SaturationFrac float64
	// StabilityTol is the relative change of the running mean between
	// successive scans below which averaging stops (once MinScans is met).
	StabilityTol float64
	// MaxAutoIterations caps the adjustment loop so it terminates even on
	// pathological signals.
	MaxAutoIterations int
	// MaxAdjustFactor bounds the geometric exposure change per iteration.
	MaxAdjustFactor float64
}

// DefaultTuning returns the documented defaults.
func DefaultTuning() Tuning {
	return Tuning{
		SeedIntegrationMs: 100,
		LowSignalFrac:     0.30,
		SaturationFrac:    0.90,
		StabilityTol:      0.005,
		MaxAutoIterations: 8,
		MaxAdjustFactor:   8,
	}
}

// targetFrac is the middle of the acceptance band the adjustment aims for.
func (t Tuning) targetFrac() float64 {
	return (t.LowSignalFrac + t.SaturationFrac) / 2
}

// Merge applies non-zero config overrides onto t.
func (t Tuning) Merge(o *models.TUNING) Tuning {
	if o == nil {
		return t
	}
	if o.SEEDMS > 0 {
		t.SeedIntegrationMs = o.SEEDMS
	}
	if o.LOWFRAC > 0 {
		t.LowSignalFrac = o.LOWFRAC
	}
	if o.SATFRAC > 0 {
		t.SaturationFrac = o.SATFRAC
	}
	if o.TOL > 0 {
		t.StabilityTol = o.TOL
	}
	return t
}
