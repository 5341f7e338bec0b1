// Package calibration loads per-unit calibration profiles for the
// spectroradiometer board and derives the wavelength axis, bin widths and
// photopic response curve used by the measurement pipeline.
//
// A profile is a pure function of its raw coefficients: derivation happens
// once at load time and the Store memoizes the result per hardware unit.
package calibration

import (
	"fmt"

	"gonum.org/v1/gonum/interp"

	"github.com/CK6170/spectrad-go/models"
)

// Expected record sizes in the calibration file.
const (
	numWavelengthCoeffs = 6
	numLinearityCoeffs  = 2
)

// Profile holds one hardware unit's calibration coefficients plus the arrays
// derived from them. All per-pixel slices have models.PixelCount entries.
// Profiles are owned by the Store and must be treated as read-only by callers.
type Profile struct {
	UnitID int

	// Raw records, exactly as read from the calibration file.
	WavelengthCoeffs []float64 // polynomial in pixel index, 6 entries
	RadianceSens     []float64
	IrradianceSens   []float64
	LinearityCoeffs  []float64 // 2 entries

	// Derived on load.
	Wavelengths []float64 // strictly increasing
	BinWidths   []float64 // positive
	Photopic    []float64 // CIE Y-bar resampled onto Wavelengths

	// PhotopicWeights[i] = Photopic[i] * BinWidths[i], precomputed so the
	// photometric integral is a single dot product per measurement.
	PhotopicWeights []float64
}

// derive computes the wavelength axis, bin widths and photopic response from
// the raw coefficients. Any violation of the documented invariants is a
// load-time ErrMalformed.
func (p *Profile) derive() error {
	n := models.PixelCount

	// wavelengths[i] = sum_k coeff[k] * i^k, evaluated via Horner.
	p.Wavelengths = make([]float64, n)
	for i := 0; i < n; i++ {
		x := float64(i)
		v := 0.0
		for k := len(p.WavelengthCoeffs) - 1; k >= 0; k-- {
			v = v*x + p.WavelengthCoeffs[k]
		}
		p.Wavelengths[i] = v
	}
	for i := 1; i < n; i++ {
		if p.Wavelengths[i] <= p.Wavelengths[i-1] {
			return fmt.Errorf("%w: unit %d: wavelength axis not strictly increasing at pixel %d",
				ErrMalformed, p.UnitID, i)
		}
	}

	// Central difference for interior pixels, one-sided at the two edges.
	p.BinWidths = make([]float64, n)
	p.BinWidths[0] = p.Wavelengths[1] - p.Wavelengths[0]
	p.BinWidths[n-1] = p.Wavelengths[n-1] - p.Wavelengths[n-2]
	for i := 1; i < n-1; i++ {
		p.BinWidths[i] = (p.Wavelengths[i+1] - p.Wavelengths[i-1]) / 2
	}

	var pl interp.PiecewiseLinear
	if err := pl.Fit(cieWavelengths(), cieYBar); err != nil {
		return fmt.Errorf("fit photopic reference: %w", err)
	}
	p.Photopic = make([]float64, n)
	p.PhotopicWeights = make([]float64, n)
	for i, wl := range p.Wavelengths {
		if wl < cieStartNm || wl > cieEndNm {
			continue // zero outside the reference domain
		}
		p.Photopic[i] = pl.Predict(wl)
		p.PhotopicWeights[i] = p.Photopic[i] * p.BinWidths[i]
	}
	return nil
}

// Linearize applies the two-coefficient linearity correction to one raw
// count: corrected = raw + c0*raw + c1*raw^2. With both coefficients zero the
// correction is the identity.
func (p *Profile) Linearize(raw float64) float64 {
	return raw + p.LinearityCoeffs[0]*raw + p.LinearityCoeffs[1]*raw*raw
}

// Sensitivity returns the per-pixel sensitivity curve for the given
// measurement type.
func (p *Profile) Sensitivity(t models.MeasurementType) []float64 {
	if t == models.Irradiance {
		return p.IrradianceSens
	}
	return p.RadianceSens
}
