package device

import (
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/CK6170/spectrad-go/calibration"
	"github.com/CK6170/spectrad-go/models"
	serialpkg "github.com/CK6170/spectrad-go/serial"
)

// luminousEfficacy is the CIE maximum spectral luminous efficacy constant
// (683 lm/W) scaling the photopic integral into luminance or illuminance.
const luminousEfficacy = 683.0

// Nominal sensor coverage, used for capabilities until the unit's own
// wavelength axis has been resolved.
const (
	nominalWavelengthMin = 340.0
	nominalWavelengthMax = 850.0
)

// State is the session state machine position.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
	Measuring
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Measuring:
		return "measuring"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// scanner is the slice of the serial command layer the controller drives.
// *serialpkg.Spectro satisfies it; tests substitute a synthetic one.
type scanner interface {
	Identify() (string, error)
	UnitID() (int, error)
	SetIntegrationTime(ms int) error
	Scan(timeoutMS int) ([]float64, error)
	Close() error
}

// Spectrometer is the serial spectroradiometer: the concrete Contract
// implementation owning the device session and the measurement control loop.
type Spectrometer struct {
	store    *calibration.Store
	portHint string
	baud     int
	tuning   Tuning
	dial     func() (scanner, error)

	state     atomic.Int32
	measuring atomic.Bool

	mu         sync.Mutex // guards the session fields below
	link       scanner
	profile    *calibration.Profile
	settings   models.Settings
	deviceName string
	lastErr    error
}

var _ Contract = (*Spectrometer)(nil)

// Option configures a Spectrometer at construction.
type Option func(*Spectrometer)

// WithTuning overrides the default control-loop tuning.
func WithTuning(t Tuning) Option {
	return func(d *Spectrometer) { d.tuning = t }
}

// WithBaud overrides the default baud rate.
func WithBaud(baud int) Option {
	return func(d *Spectrometer) { d.baud = baud }
}

// NewSpectrometer builds a device reading calibration from store and talking
// to the board on portHint (empty selects auto-discovery).
func NewSpectrometer(store *calibration.Store, portHint string, opts ...Option) *Spectrometer {
	d := &Spectrometer{
		store:    store,
		portHint: portHint,
		baud:     serialpkg.Baud,
		tuning:   DefaultTuning(),
		settings: models.DefaultSettings(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.dial == nil {
		d.dial = func() (scanner, error) {
			link, err := serialpkg.OpenLink(d.portHint, d.baud)
			if err != nil {
				return nil, err
			}
			return serialpkg.NewSpectro(link), nil
		}
	}
	return d
}

// State returns the current session state.
func (d *Spectrometer) State() State {
	return State(d.state.Load())
}

// PortName returns the resolved port once connected, else the hint.
func (d *Spectrometer) PortName() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if sp, ok := d.link.(*serialpkg.Spectro); ok && sp != nil {
		return sp.Link.PortName()
	}
	return d.portHint
}

// Connect opens the link, runs the identification probe and establishes the
// session. Connecting an already connected device is a no-op.
func (d *Spectrometer) Connect() error {
	if !d.state.CompareAndSwap(int32(Disconnected), int32(Connecting)) {
		if d.State() == Connecting {
			return fmt.Errorf("connect already in progress")
		}
		return nil
	}
	link, err := d.dial()
	if err != nil {
		d.recordErr(err)
		d.state.Store(int32(Disconnected))
		return err
	}
	ident, err := link.Identify()
	if err != nil {
		_ = link.Close()
		err = errors.Wrap(err, "identification probe")
		d.recordErr(err)
		d.state.Store(int32(Disconnected))
		return err
	}
	d.mu.Lock()
	d.link = link
	d.deviceName = strings.TrimSpace(ident)
	d.mu.Unlock()
	d.state.Store(int32(Connected))
	return nil
}

// Disconnect destroys the session. It is idempotent and aborts an in-flight
// measurement: closing the link makes the pending scan fail with a link
// error, which the measurement path surfaces to its caller.
func (d *Spectrometer) Disconnect() {
	d.teardown()
}

func (d *Spectrometer) teardown() {
	d.mu.Lock()
	link := d.link
	d.link = nil
	d.profile = nil
	d.mu.Unlock()
	if link != nil {
		_ = link.Close()
	}
	d.state.Store(int32(Disconnected))
}

// Configure validates and replaces the measurement settings.
func (d *Spectrometer) Configure(s models.Settings) error {
	if err := validateSettings(s); err != nil {
		d.recordErr(err)
		return err
	}
	d.mu.Lock()
	d.settings = s
	d.mu.Unlock()
	return nil
}

// Capabilities describes this device. The wavelength range reflects the
// resolved calibration profile when one is loaded.
func (d *Spectrometer) Capabilities() models.Capabilities {
	d.mu.Lock()
	defer d.mu.Unlock()
	caps := models.Capabilities{
		DeviceName:     d.deviceName,
		WavelengthMin:  nominalWavelengthMin,
		WavelengthMax:  nominalWavelengthMax,
		PixelCount:     models.PixelCount,
		SupportedTypes: []models.MeasurementType{models.Radiance, models.Irradiance},
		Schema: models.SettingsSchema{
			IntegrationTimeMaxMs: models.MaxIntegrationTimeMs,
			MaxScansLimit:        models.MaxScansLimit,
		},
	}
	if caps.DeviceName == "" {
		caps.DeviceName = serialpkg.IdentPrefix + "-288"
	}
	if d.profile != nil {
		caps.WavelengthMin = d.profile.Wavelengths[0]
		caps.WavelengthMax = d.profile.Wavelengths[len(d.profile.Wavelengths)-1]
	}
	return caps
}

// LastError returns the most recent recorded failure, or nil.
func (d *Spectrometer) LastError() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastErr
}

func (d *Spectrometer) recordErr(err error) {
	d.mu.Lock()
	d.lastErr = err
	d.mu.Unlock()
}

// Measure runs one full measurement cycle. It is non-reentrant: a second
// request while one runs fails with ErrBusy and never starts a second
// control loop. Any link failure aborts the whole measurement; partial scans
// are discarded, never averaged into a result.
func (d *Spectrometer) Measure(mt models.MeasurementType) (*models.Result, error) {
	if !mt.Valid() {
		return nil, fmt.Errorf("%w: unknown measurement type %q", ErrInvalidSettings, mt)
	}
	if !d.measuring.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer d.measuring.Store(false)

	if !d.state.CompareAndSwap(int32(Connected), int32(Measuring)) {
		return nil, ErrNotConnected
	}

	res, err := d.runMeasurement(mt)
	if err != nil {
		d.recordErr(err)
		if stderrors.Is(err, serialpkg.ErrIO) {
			// Unrecoverable link failure: destroy the session.
			d.teardown()
		} else {
			d.state.CompareAndSwap(int32(Measuring), int32(Connected))
		}
		return nil, err
	}
	d.state.CompareAndSwap(int32(Measuring), int32(Connected))
	return res, nil
}

func (d *Spectrometer) runMeasurement(mt models.MeasurementType) (*models.Result, error) {
	d.mu.Lock()
	link := d.link
	settings := d.settings
	tuning := d.tuning
	d.mu.Unlock()
	if link == nil {
		return nil, ErrNotConnected
	}

	profile, err := d.resolveProfile(link)
	if err != nil {
		return nil, err
	}

	tMs := settings.IntegrationTimeMs
	saturated := false
	if tMs == 0 {
		tMs, saturated, err = autoIntegrate(link, tuning)
		if err != nil {
			return nil, err
		}
	} else if err := link.SetIntegrationTime(tMs); err != nil {
		return nil, errors.Wrap(err, "set integration time")
	}

	mean, numScans, err := averageScans(link, tMs, settings, tuning)
	if err != nil {
		return nil, err
	}
	if floats.Max(mean) >= tuning.SaturationFrac*serialpkg.FullScale {
		saturated = true
	}

	sens := profile.Sensitivity(mt)
	tSec := float64(tMs) / 1000.0
	spectral := make([]float64, models.PixelCount)
	for i := range spectral {
		spectral[i] = profile.Linearize(mean[i]) * sens[i] / tSec
	}
	photometric := luminousEfficacy * floats.Dot(spectral, profile.PhotopicWeights)

	wavelengths := make([]float64, models.PixelCount)
	copy(wavelengths, profile.Wavelengths)

	return &models.Result{
		Type:              mt,
		Wavelengths:       wavelengths,
		SpectralData:      spectral,
		IntegrationTimeMs: tMs,
		NumScans:          numScans,
		Photometric:       photometric,
		Saturated:         saturated,
		Timestamp:         time.Now(),
	}, nil
}

// resolveProfile queries the hardware unit id once per session and memoizes
// the loaded profile. A unit swap requires a fresh session.
func (d *Spectrometer) resolveProfile(link scanner) (*calibration.Profile, error) {
	d.mu.Lock()
	cached := d.profile
	d.mu.Unlock()
	if cached != nil {
		return cached, nil
	}
	id, err := link.UnitID()
	if err != nil {
		return nil, errors.Wrap(err, "query unit id")
	}
	p, err := d.store.LoadForUnit(id)
	if err != nil {
		return nil, fmt.Errorf("%w: unit %d: %v", ErrCalibrationMissing, id, err)
	}
	d.mu.Lock()
	d.profile = p
	d.mu.Unlock()
	return p, nil
}

// autoIntegrate resolves the integration time by bounded geometric
// adjustment: one scan per iteration, peak inspected against the acceptance
// band. It always terminates; when the band cannot be reached it proceeds
// with the best time found and reports whether the band was exceeded from
// above.
func autoIntegrate(link scanner, tuning Tuning) (int, bool, error) {
	tMs := tuning.SeedIntegrationMs
	for iter := 0; iter < tuning.MaxAutoIterations; iter++ {
		if err := link.SetIntegrationTime(tMs); err != nil {
			return 0, false, errors.Wrap(err, "set integration time")
		}
		raw, err := link.Scan(serialpkg.ScanTimeoutMS(tMs))
		if err != nil {
			return 0, false, errors.Wrap(err, "auto-integration scan")
		}
		peak := floats.Max(raw)
		frac := peak / serialpkg.FullScale
		if frac >= tuning.LowSignalFrac && frac <= tuning.SaturationFrac {
			return tMs, false, nil
		}
		if iter == tuning.MaxAutoIterations-1 {
			break
		}
		scale := tuning.MaxAdjustFactor
		if peak > 0 {
			scale = tuning.targetFrac() * serialpkg.FullScale / peak
		}
		if scale > tuning.MaxAdjustFactor {
			scale = tuning.MaxAdjustFactor
		} else if scale < 1/tuning.MaxAdjustFactor {
			scale = 1 / tuning.MaxAdjustFactor
		}
		next := int(float64(tMs)*scale + 0.5)
		if next < 1 {
			next = 1
		} else if next > models.MaxIntegrationTimeMs {
			next = models.MaxIntegrationTimeMs
		}
		if next == tMs {
			// Bound reached; proceed with the best time found.
			return tMs, frac > tuning.SaturationFrac, nil
		}
		tMs = next
	}
	// Iteration cap hit without settling.
	return tMs, true, nil
}

// averageScans accumulates a running per-pixel mean until the relative change
// between successive means falls under the stability tolerance (and MinScans
// is met), or MaxScans is reached.
func averageScans(link scanner, tMs int, settings models.Settings, tuning Tuning) ([]float64, int, error) {
	mean := make([]float64, models.PixelCount)
	prev := make([]float64, models.PixelCount)
	n := 0
	for n < settings.MaxScans {
		raw, err := link.Scan(serialpkg.ScanTimeoutMS(tMs))
		if err != nil {
			return nil, 0, errors.Wrapf(err, "scan %d", n+1)
		}
		n++
		for i := range mean {
			mean[i] += (raw[i] - mean[i]) / float64(n)
		}
		if n > 1 && n >= settings.MinScans {
			// Relative L1 change of the running mean. Counts are
			// non-negative, so the mean's L1 norm is its sum.
			change := floats.Distance(mean, prev, 1) / (floats.Sum(mean) + 1e-12)
			if change < tuning.StabilityTol {
				break
			}
		}
		copy(prev, mean)
	}
	return mean, n, nil
}
