package calibration

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/CK6170/spectrad-go/models"
)

var (
	// ErrNotFound means the calibration source has no complete record set for
	// the requested unit.
	ErrNotFound = errors.New("calibration not found")
	// ErrMalformed means a record exists but fails validation (wrong array
	// length, non-numeric value, non-increasing wavelength axis).
	ErrMalformed = errors.New("calibration malformed")
)

// Record tags used in the calibration file.
const (
	tagWavCoef  = "wavCoef"
	tagRadSens  = "radSens"
	tagIrrSens  = "irrSens"
	tagLinCoefs = "linCoefs"
)

// Store loads and caches calibration profiles from a delimited text file.
//
// The cache is keyed by unit id and lives for the process lifetime; a profile
// is a pure function of its immutable records, so repeated lookups return the
// same derivation. Invalidation happens only on process restart.
type Store struct {
	path string

	mu    sync.Mutex
	cache map[int]*Profile
}

// NewStore returns a store reading from the calibration file at path.
func NewStore(path string) *Store {
	return &Store{path: path, cache: make(map[int]*Profile)}
}

// LoadForUnit returns the calibration profile for unitID, loading and
// deriving it on first use.
func (s *Store) LoadForUnit(unitID int) (*Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.cache[unitID]; ok {
		return p, nil
	}
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open calibration file: %w", err)
	}
	defer func() { _ = f.Close() }()

	p, err := ParseForUnit(f, unitID)
	if err != nil {
		return nil, err
	}
	s.cache[unitID] = p
	return p, nil
}

// ParseForUnit scans r for the four records tagged with unitID and builds a
// derived profile. Records may appear in any order; lines for other units and
// blank lines are skipped.
func ParseForUnit(r io.Reader, unitID int) (*Profile, error) {
	p := &Profile{UnitID: unitID}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) < 3 {
			return nil, fmt.Errorf("%w: line %d: too few fields", ErrMalformed, lineNo)
		}
		id, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: bad unit id %q", ErrMalformed, lineNo, fields[0])
		}
		if id != unitID {
			continue
		}
		tag := strings.TrimSpace(fields[1])
		values, err := parseFloats(fields[2:])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d (%s): %v", ErrMalformed, lineNo, tag, err)
		}
		switch tag {
		case tagWavCoef:
			if len(values) != numWavelengthCoeffs {
				return nil, lengthErr(lineNo, tag, len(values), numWavelengthCoeffs)
			}
			p.WavelengthCoeffs = values
		case tagRadSens:
			if len(values) != models.PixelCount {
				return nil, lengthErr(lineNo, tag, len(values), models.PixelCount)
			}
			p.RadianceSens = values
		case tagIrrSens:
			if len(values) != models.PixelCount {
				return nil, lengthErr(lineNo, tag, len(values), models.PixelCount)
			}
			p.IrradianceSens = values
		case tagLinCoefs:
			if len(values) != numLinearityCoeffs {
				return nil, lengthErr(lineNo, tag, len(values), numLinearityCoeffs)
			}
			p.LinearityCoeffs = values
		default:
			// Unknown tags are tolerated so the file format can grow.
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read calibration source: %w", err)
	}

	var missing []string
	if p.WavelengthCoeffs == nil {
		missing = append(missing, tagWavCoef)
	}
	if p.RadianceSens == nil {
		missing = append(missing, tagRadSens)
	}
	if p.IrradianceSens == nil {
		missing = append(missing, tagIrrSens)
	}
	if p.LinearityCoeffs == nil {
		missing = append(missing, tagLinCoefs)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: unit %d: missing record(s) %s",
			ErrNotFound, unitID, strings.Join(missing, ", "))
	}

	if err := p.derive(); err != nil {
		return nil, err
	}
	return p, nil
}

func parseFloats(fields []string) ([]float64, error) {
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, fmt.Errorf("non-numeric value %q at index %d", f, i)
		}
		out[i] = v
	}
	return out, nil
}

func lengthErr(lineNo int, tag string, got, want int) error {
	return fmt.Errorf("%w: line %d: %s has %d values, want %d", ErrMalformed, lineNo, tag, got, want)
}
