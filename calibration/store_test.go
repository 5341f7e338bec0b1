package calibration

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gonum.org/v1/gonum/floats"

	"github.com/CK6170/spectrad-go/models"
)

// calText builds a complete calibration record set for one unit. Overrides
// replace whole tagged lines; an empty override drops the line entirely.
func calText(unitID int, overrides map[string]string) string {
	lines := map[string]string{
		tagWavCoef:  fmt.Sprintf("%d,wavCoef,340,1.6,-0.0002,0,0,0", unitID),
		tagRadSens:  fmt.Sprintf("%d,radSens,%s", unitID, repeatVals("0.05", models.PixelCount)),
		tagIrrSens:  fmt.Sprintf("%d,irrSens,%s", unitID, repeatVals("0.02", models.PixelCount)),
		tagLinCoefs: fmt.Sprintf("%d,linCoefs,0.001,-0.0000001", unitID),
	}
	for tag, line := range overrides {
		lines[tag] = line
	}
	var sb strings.Builder
	for _, tag := range []string{tagLinCoefs, tagRadSens, tagWavCoef, tagIrrSens} {
		if lines[tag] == "" {
			continue
		}
		sb.WriteString(lines[tag])
		sb.WriteString("\n")
	}
	return sb.String()
}

func repeatVals(v string, n int) string {
	vals := make([]string, n)
	for i := range vals {
		vals[i] = v
	}
	return strings.Join(vals, ",")
}

func TestParseForUnitDerivation(t *testing.T) {
	p, err := ParseForUnit(strings.NewReader(calText(7, nil)), 7)
	if err != nil {
		t.Fatalf("ParseForUnit: %v", err)
	}
	if len(p.Wavelengths) != models.PixelCount || len(p.BinWidths) != models.PixelCount ||
		len(p.Photopic) != models.PixelCount {
		t.Fatalf("derived array lengths: %d/%d/%d",
			len(p.Wavelengths), len(p.BinWidths), len(p.Photopic))
	}
	for i := 1; i < len(p.Wavelengths); i++ {
		if p.Wavelengths[i] <= p.Wavelengths[i-1] {
			t.Fatalf("wavelengths not strictly increasing at %d", i)
		}
	}
	for i, bw := range p.BinWidths {
		if bw <= 0 {
			t.Fatalf("bin width %d not positive: %v", i, bw)
		}
	}
	// Below the 380nm reference domain the photopic response must be zero.
	if p.Wavelengths[0] >= cieStartNm {
		t.Fatalf("test axis should start below the CIE domain, got %v", p.Wavelengths[0])
	}
	if p.Photopic[0] != 0 {
		t.Fatalf("photopic response outside reference domain = %v, want 0", p.Photopic[0])
	}
}

func TestParseForUnitErrorKinds(t *testing.T) {
	tests := []struct {
		name     string
		override map[string]string
		want     error
	}{
		{"missing radSens", map[string]string{tagRadSens: ""}, ErrNotFound},
		{"missing linCoefs", map[string]string{tagLinCoefs: ""}, ErrNotFound},
		{"short wavCoef", map[string]string{tagWavCoef: "7,wavCoef,340,1.6,0"}, ErrMalformed},
		{"non-numeric", map[string]string{tagLinCoefs: "7,linCoefs,abc,0"}, ErrMalformed},
		{"short radSens", map[string]string{tagRadSens: "7,radSens,1,2,3"}, ErrMalformed},
		{"decreasing axis", map[string]string{tagWavCoef: "7,wavCoef,800,-1.6,0,0,0,0"}, ErrMalformed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseForUnit(strings.NewReader(calText(7, tc.override)), 7)
			if !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestParseForUnitIgnoresOtherUnits(t *testing.T) {
	text := calText(7, nil) + calText(9, map[string]string{
		tagLinCoefs: "9,linCoefs,bogus,values,here,extra",
	})
	// Unit 9's malformed line must not affect loading unit 7.
	if _, err := ParseForUnit(strings.NewReader(text), 7); err != nil {
		t.Fatalf("unit 7 load: %v", err)
	}
	if _, err := ParseForUnit(strings.NewReader(text), 9); !errors.Is(err, ErrMalformed) {
		t.Fatalf("unit 9 load: got %v, want ErrMalformed", err)
	}
}

func TestStoreCachesPerUnit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cal.csv")
	if err := os.WriteFile(path, []byte(calText(3, nil)), 0o644); err != nil {
		t.Fatal(err)
	}
	s := NewStore(path)
	p1, err := s.LoadForUnit(3)
	if err != nil {
		t.Fatalf("first load: %v", err)
	}
	// Removing the file proves the second lookup is served from the cache.
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	p2, err := s.LoadForUnit(3)
	if err != nil {
		t.Fatalf("cached load: %v", err)
	}
	if p1 != p2 {
		t.Fatal("cached lookup returned a different profile")
	}
}

func TestLinearizeIdentityAtZero(t *testing.T) {
	p, err := ParseForUnit(strings.NewReader(calText(7, map[string]string{
		tagLinCoefs: "7,linCoefs,0,0",
	})), 7)
	if err != nil {
		t.Fatal(err)
	}
	for _, raw := range []float64{0, 1, 1000, 65535} {
		if got := p.Linearize(raw); got != raw {
			t.Fatalf("Linearize(%v) = %v with zero coefficients", raw, got)
		}
	}
}

// The integral of the CIE Y-bar curve over wavelength, in nm. Summing the
// resampled curve against the profile's own bin widths must land near it.
const ybarIntegralNm = 106.857

func TestPhotopicWeightsIntegral(t *testing.T) {
	// 380 + 1.4*i spans 380..781.8nm, covering the whole reference domain.
	p, err := ParseForUnit(strings.NewReader(calText(7, map[string]string{
		tagWavCoef: "7,wavCoef,380,1.4,0,0,0,0",
	})), 7)
	if err != nil {
		t.Fatal(err)
	}
	got := floats.Sum(p.PhotopicWeights)
	if math.Abs(got-ybarIntegralNm) > 1.5 {
		t.Fatalf("sum(photopic*binWidth) = %v, want %v within 1.5", got, ybarIntegralNm)
	}
}
