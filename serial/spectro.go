package serial

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/CK6170/spectrad-go/models"
)

// FullScale is the sensor's full-scale count (16-bit ADC).
const FullScale = 65535

// Firmware command set. Exact framing is handled by BuildCommand; these are
// the documented payload verbs.
const (
	cmdIdentify    = "I"
	cmdUnitID      = "U"
	cmdIntegration = "T" // followed by the time in ms
	cmdScan        = "S"
)

// IdentPrefix is the fixed prefix of the identification response; discovery
// probes check for it.
const IdentPrefix = "SPECTRAD"

// Default command timeouts in ms. Scan timeouts are derived from the
// integration time instead (see ScanTimeoutMS).
const (
	identTimeoutMS   = 350
	controlTimeoutMS = 500
)

// Spectro is the typed command layer over a Link. It mirrors the firmware's
// documented command set one method per command.
type Spectro struct {
	Link *Link
}

// NewSpectro wraps an open link.
func NewSpectro(link *Link) *Spectro {
	return &Spectro{Link: link}
}

// Identify asks the board for its identification string (e.g.
// "SPECTRAD-288 2.1").
func (s *Spectro) Identify() (string, error) {
	return s.Link.Send([]byte(cmdIdentify), identTimeoutMS)
}

// UnitID queries the hardware unit id the calibration records are keyed by.
func (s *Spectro) UnitID() (int, error) {
	data, err := s.Link.Send([]byte(cmdUnitID), controlTimeoutMS)
	if err != nil {
		return 0, err
	}
	id, err := strconv.Atoi(strings.TrimSpace(data))
	if err != nil {
		return 0, fmt.Errorf("%w: bad unit id payload %q", ErrIO, data)
	}
	return id, nil
}

// SetIntegrationTime configures the exposure per scan in milliseconds.
func (s *Spectro) SetIntegrationTime(ms int) error {
	data, err := s.Link.Send([]byte(cmdIntegration+strconv.Itoa(ms)), controlTimeoutMS)
	if err != nil {
		return err
	}
	if !strings.Contains(data, "OK") {
		return fmt.Errorf("%w: integration time not acknowledged: %q", ErrIO, data)
	}
	return nil
}

// Scan triggers one exposure and reads the raw per-pixel counts. The payload
// is 288 pipe-separated decimal counts.
func (s *Spectro) Scan(timeoutMS int) ([]float64, error) {
	data, err := s.Link.Send([]byte(cmdScan), timeoutMS)
	if err != nil {
		return nil, err
	}
	return parseCounts(data)
}

func parseCounts(data string) ([]float64, error) {
	parts := strings.Split(data, "|")
	if len(parts) != models.PixelCount {
		return nil, fmt.Errorf("%w: scan payload has %d values, want %d",
			ErrIO, len(parts), models.PixelCount)
	}
	counts := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(p), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: bad count %q at pixel %d", ErrIO, p, i)
		}
		counts[i] = float64(v)
	}
	return counts, nil
}

// Close releases the underlying link.
func (s *Spectro) Close() error { return s.Link.Close() }

// ScanTimeoutMS returns the Send timeout for a scan at the given integration
// time: the exposure itself plus transfer/processing margin.
func ScanTimeoutMS(integrationMS int) int {
	return 2*integrationMS + 1000
}
