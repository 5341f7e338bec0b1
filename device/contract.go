// Package device owns the measurement session: the connection state machine,
// the adaptive integration-time and scan-averaging control loop, and the
// conversion from raw sensor counts to calibrated spectra and photometric
// quantities.
//
// Presentation layers (web server, CLI) depend only on the Contract
// interface, never on concrete device internals.
package device

import (
	"errors"
	"fmt"

	"github.com/CK6170/spectrad-go/models"
)

var (
	// ErrNotConnected means an operation requires an active session.
	ErrNotConnected = errors.New("device not connected")
	// ErrBusy means a measurement was requested while one is running.
	ErrBusy = errors.New("device busy")
	// ErrInvalidSettings means a configuration value is outside its
	// documented bounds.
	ErrInvalidSettings = errors.New("invalid settings")
	// ErrCalibrationMissing means no calibration profile could be resolved
	// for the hardware-reported unit id.
	ErrCalibrationMissing = errors.New("calibration missing")
)

// Contract is the abstract capability surface every concrete device exposes.
// Concrete variants: the serial spectroradiometer (Spectrometer) and the
// hardware-free Mock.
type Contract interface {
	// Connect establishes the device session. It is a no-op error if the
	// session already exists.
	Connect() error
	// Disconnect tears the session down. Idempotent; it also aborts an
	// in-flight measurement by closing the underlying link.
	Disconnect()
	// Configure replaces the measurement settings. Values persist across
	// measurements until reconfigured.
	Configure(models.Settings) error
	// Measure runs one full measurement cycle and returns the immutable
	// result. It never returns a partial result.
	Measure(models.MeasurementType) (*models.Result, error)
	// Capabilities describes the device to presentation code.
	Capabilities() models.Capabilities
	// LastError returns the most recent recorded failure, or nil.
	LastError() error
}

// validateSettings enforces the documented bounds shared by all devices.
func validateSettings(s models.Settings) error {
	if s.IntegrationTimeMs < 0 || s.IntegrationTimeMs > models.MaxIntegrationTimeMs {
		return fmt.Errorf("%w: integrationTimeMs %d outside 0..%d",
			ErrInvalidSettings, s.IntegrationTimeMs, models.MaxIntegrationTimeMs)
	}
	if s.MinScans < 1 {
		return fmt.Errorf("%w: minScans %d < 1", ErrInvalidSettings, s.MinScans)
	}
	if s.MaxScans < s.MinScans || s.MaxScans > models.MaxScansLimit {
		return fmt.Errorf("%w: maxScans %d outside %d..%d",
			ErrInvalidSettings, s.MaxScans, s.MinScans, models.MaxScansLimit)
	}
	return nil
}
