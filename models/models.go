// Package models defines the JSON-serialized configuration structures and the
// measurement data model shared between the spectrad core and its frontends.
//
// These types mirror the shape of `config.json` and the payloads exchanged
// with the web UI and CSV exporters.
package models

import "time"

// PixelCount is the number of detector elements on the sensor array. Every
// per-pixel slice in this package has exactly this length.
const PixelCount = 288

// MeasurementType selects which sensitivity curve a measurement is converted
// with, and therefore which photometric quantity the result carries.
type MeasurementType string

const (
	// Radiance measurements yield spectral radiance and luminance (cd/m2).
	Radiance MeasurementType = "radiance"
	// Irradiance measurements yield spectral irradiance and illuminance (lux).
	Irradiance MeasurementType = "irradiance"
)

// Valid reports whether t is one of the two supported measurement types.
func (t MeasurementType) Valid() bool {
	return t == Radiance || t == Irradiance
}

// Settings holds the per-session measurement configuration. Values persist
// across measurements until reconfigured through Contract.Configure.
type Settings struct {
	// IntegrationTimeMs is the exposure per scan in milliseconds.
	// 0 selects automatic integration-time adjustment.
	IntegrationTimeMs int `json:"integrationTimeMs"`
	// MinScans is the minimum number of scans averaged into a result.
	MinScans int `json:"minScans"`
	// MaxScans caps the number of scans averaged into a result.
	MaxScans int `json:"maxScans"`
}

// Settings bounds enforced by Configure.
const (
	MaxIntegrationTimeMs = 10000
	MaxScansLimit        = 50
)

// DefaultSettings returns the configuration used until the first Configure.
func DefaultSettings() Settings {
	return Settings{IntegrationTimeMs: 0, MinScans: 3, MaxScans: 10}
}

// Result is one completed measurement. It is immutable once produced; a
// failed measurement never yields a partial Result.
type Result struct {
	Type MeasurementType `json:"type"`
	// Wavelengths and SpectralData share the profile's pixel indexing.
	Wavelengths  []float64 `json:"wavelengths"`
	SpectralData []float64 `json:"spectralData"`
	// IntegrationTimeMs is the actual exposure used, after auto-adjustment.
	IntegrationTimeMs int `json:"integrationTimeMs"`
	// NumScans is the actual number of scans averaged.
	NumScans int `json:"numScans"`
	// Photometric is luminance (cd/m2) for radiance measurements and
	// illuminance (lux) for irradiance measurements.
	Photometric float64   `json:"luminanceOrIlluminance"`
	Saturated   bool      `json:"saturated"`
	Timestamp   time.Time `json:"timestamp"`
}

// Capabilities describes a concrete device to presentation code so it never
// needs to depend on device internals.
type Capabilities struct {
	DeviceName     string            `json:"deviceName"`
	WavelengthMin  float64           `json:"wavelengthMin"`
	WavelengthMax  float64           `json:"wavelengthMax"`
	PixelCount     int               `json:"pixelCount"`
	SupportedTypes []MeasurementType `json:"supportedTypes"`
	Schema         SettingsSchema    `json:"settingsSchema"`
}

// SettingsSchema publishes the documented settings bounds so a UI can build
// its input validation without hard-coding them.
type SettingsSchema struct {
	IntegrationTimeMaxMs int `json:"integrationTimeMaxMs"`
	MaxScansLimit        int `json:"maxScansLimit"`
}

// PARAMETERS is the primary configuration model (the typical `config.json`).
type PARAMETERS struct {
	SERIAL  *SERIAL `json:"SERIAL"`
	CALFILE string  `json:"CALFILE"`
	DEBUG   bool    `json:"DEBUG"`
	TUNING  *TUNING `json:"TUNING,omitempty"`
}

// SERIAL contains the serial-port connection settings used to communicate
// with the spectroradiometer board.
type SERIAL struct {
	PORT     string `json:"PORT"`
	BAUDRATE int    `json:"BAUDRATE"`
}

// TUNING optionally overrides the auto-integration tuning defaults. Zero
// fields keep their documented default values.
type TUNING struct {
	SEEDMS  int     `json:"SEEDMS,omitempty"`
	LOWFRAC float64 `json:"LOWFRAC,omitempty"`
	SATFRAC float64 `json:"SATFRAC,omitempty"`
	TOL     float64 `json:"TOL,omitempty"`
}
