package device

import (
	"math"
	"sync"
	"time"

	"github.com/CK6170/spectrad-go/models"
)

// Mock is a hardware-free Contract implementation. It produces a synthetic
// daylight-ish spectrum so the web UI and CLI can run without a board
// attached, and serves as the substitutable test double the presentation
// layers are written against.
type Mock struct {
	mu        sync.Mutex
	connected bool
	settings  models.Settings
	lastErr   error

	// Peak sets the synthetic spectral level at the curve maximum.
	Peak float64
}

var _ Contract = (*Mock)(nil)

// NewMock returns a connected-on-demand mock device.
func NewMock() *Mock {
	return &Mock{settings: models.DefaultSettings(), Peak: 0.05}
}

func (m *Mock) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = true
	return nil
}

func (m *Mock) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
}

func (m *Mock) Configure(s models.Settings) error {
	if err := validateSettings(s); err != nil {
		m.mu.Lock()
		m.lastErr = err
		m.mu.Unlock()
		return err
	}
	m.mu.Lock()
	m.settings = s
	m.mu.Unlock()
	return nil
}

func (m *Mock) Measure(mt models.MeasurementType) (*models.Result, error) {
	if !mt.Valid() {
		return nil, ErrInvalidSettings
	}
	m.mu.Lock()
	connected := m.connected
	settings := m.settings
	peak := m.Peak
	m.mu.Unlock()
	if !connected {
		m.mu.Lock()
		m.lastErr = ErrNotConnected
		m.mu.Unlock()
		return nil, ErrNotConnected
	}

	tMs := settings.IntegrationTimeMs
	if tMs == 0 {
		tMs = 250
	}

	wavelengths := make([]float64, models.PixelCount)
	spectral := make([]float64, models.PixelCount)
	photometric := 0.0
	span := (nominalWavelengthMax - nominalWavelengthMin) / float64(models.PixelCount-1)
	for i := range wavelengths {
		wl := nominalWavelengthMin + span*float64(i)
		wavelengths[i] = wl
		// Broad bell centered in the visible range.
		spectral[i] = peak * math.Exp(-math.Pow((wl-560)/120, 2))
		// Gaussian stand-in for the photopic curve; close enough for a demo.
		ybar := math.Exp(-math.Pow((wl-555)/52, 2))
		photometric += luminousEfficacy * spectral[i] * ybar * span
	}

	return &models.Result{
		Type:              mt,
		Wavelengths:       wavelengths,
		SpectralData:      spectral,
		IntegrationTimeMs: tMs,
		NumScans:          settings.MinScans,
		Photometric:       photometric,
		Saturated:         false,
		Timestamp:         time.Now(),
	}, nil
}

func (m *Mock) Capabilities() models.Capabilities {
	return models.Capabilities{
		DeviceName:     "MOCK-288",
		WavelengthMin:  nominalWavelengthMin,
		WavelengthMax:  nominalWavelengthMax,
		PixelCount:     models.PixelCount,
		SupportedTypes: []models.MeasurementType{models.Radiance, models.Irradiance},
		Schema: models.SettingsSchema{
			IntegrationTimeMaxMs: models.MaxIntegrationTimeMs,
			MaxScansLimit:        models.MaxScansLimit,
		},
	}
}

func (m *Mock) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}
