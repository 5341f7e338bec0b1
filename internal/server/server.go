// Package server exposes the measurement engine over a small local HTTP API
// with a WebSocket push channel for completed measurements.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/CK6170/spectrad-go/device"
	"github.com/CK6170/spectrad-go/models"
)

// statePeeker is the optional slice of the concrete device the status
// endpoint reports. The Mock does not implement it; status then degrades to
// connected/unknown.
type statePeeker interface {
	State() device.State
	PortName() string
}

type Server struct {
	mux *http.ServeMux
	log *logrus.Logger

	dev device.Contract
	hub *WSHub
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Local single-user tool; the API is not exposed beyond loopback.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// New wires the API around an already constructed device.
func New(dev device.Contract, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Server{
		mux: http.NewServeMux(),
		log: log,
		dev: dev,
		hub: NewWSHub(),
	}

	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.HandleFunc("/api/status", s.handleStatus)
	s.mux.HandleFunc("/api/connect", s.handleConnect)
	s.mux.HandleFunc("/api/disconnect", s.handleDisconnect)
	s.mux.HandleFunc("/api/configure", s.handleConfigure)
	s.mux.HandleFunc("/api/capabilities", s.handleCapabilities)
	s.mux.HandleFunc("/api/measure", s.handleMeasure)

	s.mux.HandleFunc("/ws/measurements", s.handleWS)

	return s
}

func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) readJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	b, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return err
	}
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, v)
}

// statusFor maps the device error taxonomy onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, device.ErrInvalidSettings):
		return http.StatusBadRequest
	case errors.Is(err, device.ErrNotConnected), errors.Is(err, device.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, device.ErrCalibrationMissing):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	s.writeJSON(w, 200, HealthResponse{OK: true, Timestamp: time.Now()})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	resp := StatusResponse{}
	if p, ok := s.dev.(statePeeker); ok {
		st := p.State()
		resp.State = st.String()
		resp.Connected = st == device.Connected || st == device.Measuring
	}
	if err := s.dev.LastError(); err != nil {
		resp.LastError = err.Error()
	}
	s.writeJSON(w, 200, resp)
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req ConnectRequest
	if err := s.readJSON(r, &req); err != nil {
		s.writeJSON(w, 400, APIError{Error: err.Error()})
		return
	}
	if err := s.dev.Connect(); err != nil {
		s.log.WithError(err).Warn("connect failed")
		s.writeJSON(w, statusFor(err), APIError{Error: err.Error()})
		return
	}
	caps := s.dev.Capabilities()
	resp := ConnectResponse{Connected: true, DeviceName: caps.DeviceName}
	if p, ok := s.dev.(statePeeker); ok {
		resp.Port = p.PortName()
	}
	s.log.WithFields(logrus.Fields{"port": resp.Port, "device": resp.DeviceName}).Info("connected")
	s.hub.Broadcast(WSMessage{Type: "state", Data: map[string]string{"state": "connected"}})
	s.writeJSON(w, 200, resp)
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	s.dev.Disconnect()
	s.log.Info("disconnected")
	s.hub.Broadcast(WSMessage{Type: "state", Data: map[string]string{"state": "disconnected"}})
	s.writeJSON(w, 200, map[string]bool{"ok": true})
}

func (s *Server) handleConfigure(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req ConfigureRequest
	if err := s.readJSON(r, &req); err != nil {
		s.writeJSON(w, 400, APIError{Error: err.Error()})
		return
	}
	settings := models.Settings{
		IntegrationTimeMs: req.IntegrationTimeMs,
		MinScans:          req.MinScans,
		MaxScans:          req.MaxScans,
	}
	if err := s.dev.Configure(settings); err != nil {
		s.writeJSON(w, statusFor(err), APIError{Error: err.Error()})
		return
	}
	s.writeJSON(w, 200, map[string]bool{"ok": true})
}

func (s *Server) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	s.writeJSON(w, 200, s.dev.Capabilities())
}

// handleMeasure runs the measurement synchronously. A measurement can take
// several seconds with long integration times; the result is both returned
// to the caller and broadcast to WebSocket subscribers.
func (s *Server) handleMeasure(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req MeasureRequest
	if err := s.readJSON(r, &req); err != nil {
		s.writeJSON(w, 400, APIError{Error: err.Error()})
		return
	}
	if req.Type == "" {
		req.Type = models.Radiance
	}
	started := time.Now()
	res, err := s.dev.Measure(req.Type)
	if err != nil {
		s.log.WithError(err).WithField("type", req.Type).Warn("measurement failed")
		s.hub.Broadcast(WSMessage{Type: "error", Data: map[string]string{"error": err.Error()}})
		s.writeJSON(w, statusFor(err), APIError{Error: err.Error()})
		return
	}
	s.log.WithFields(logrus.Fields{
		"type":          res.Type,
		"integrationMs": res.IntegrationTimeMs,
		"scans":         res.NumScans,
		"elapsed":       time.Since(started).Round(time.Millisecond),
	}).Info("measurement done")
	s.hub.Broadcast(WSMessage{Type: "measurement", Data: res})
	s.writeJSON(w, 200, res)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("ws upgrade failed")
		return
	}
	c := s.hub.Add(conn)
	// Read loop only to detect close; subscribers never send.
	go func() {
		defer s.hub.Remove(c)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
