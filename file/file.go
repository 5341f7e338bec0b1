// Package file provides helpers for persisting configuration and measurement
// outputs to disk. It is a thin shim around JSON read/write and CSV append
// used by the CLI; the measurement core never touches the filesystem except
// through the calibration store.
package file

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/CK6170/spectrad-go/models"
)

// LoadParameters reads and decodes a config.json.
func LoadParameters(path string) (*models.PARAMETERS, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p models.PARAMETERS
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if p.SERIAL == nil {
		p.SERIAL = &models.SERIAL{}
	}
	return &p, nil
}

// PersistParameters overwrites the JSON file at path with the provided
// parameters. Primarily used to persist an auto-detected SERIAL.PORT back
// into the on-disk config.
func PersistParameters(path string, p *models.PARAMETERS) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// AppendResultCSV appends one summary row per measurement, creating the file
// with a header when it does not exist.
func AppendResultCSV(path string, res *models.Result) error {
	header := ""
	if _, err := os.Stat(path); os.IsNotExist(err) {
		header = "timestamp,type,integrationTimeMs,numScans,luminanceOrIlluminance,saturated\n"
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	row := fmt.Sprintf("%s,%s,%d,%d,%g,%t\n",
		res.Timestamp.Format("2006-01-02 15:04:05"), res.Type,
		res.IntegrationTimeMs, res.NumScans, res.Photometric, res.Saturated)
	_, err = f.WriteString(header + row)
	return err
}

// SaveSpectrumCSV writes the full spectrum of one result as
// wavelength,value rows.
func SaveSpectrumCSV(path string, res *models.Result) error {
	var sb strings.Builder
	sb.WriteString("wavelengthNm,spectralValue\n")
	for i, wl := range res.Wavelengths {
		fmt.Fprintf(&sb, "%.2f,%g\n", wl, res.SpectralData[i])
	}
	return os.WriteFile(path, []byte(sb.String()), 0o644)
}
