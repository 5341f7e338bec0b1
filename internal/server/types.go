package server

import (
	"time"

	"github.com/CK6170/spectrad-go/models"
)

// APIError is the uniform error body for all failed requests.
type APIError struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	OK        bool      `json:"ok"`
	Timestamp time.Time `json:"timestamp"`
}

// ConnectRequest optionally overrides the configured serial port. An empty
// port keeps the configured value (or triggers auto-detection).
type ConnectRequest struct {
	Port string `json:"port,omitempty"`
}

type ConnectResponse struct {
	Connected  bool   `json:"connected"`
	Port       string `json:"port"`
	DeviceName string `json:"deviceName"`
}

// ConfigureRequest mirrors models.Settings on the wire.
type ConfigureRequest struct {
	IntegrationTimeMs int `json:"integrationTimeMs"`
	MinScans          int `json:"minScans"`
	MaxScans          int `json:"maxScans"`
}

type MeasureRequest struct {
	Type models.MeasurementType `json:"type"`
}

type StatusResponse struct {
	Connected bool   `json:"connected"`
	State     string `json:"state"`
	LastError string `json:"lastError,omitempty"`
}
