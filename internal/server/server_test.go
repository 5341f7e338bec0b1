package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/CK6170/spectrad-go/device"
	"github.com/CK6170/spectrad-go/models"
)

func newTestServer(t *testing.T) (*httptest.Server, *device.Mock) {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	dev := device.NewMock()
	ts := httptest.NewServer(New(dev, log).Handler())
	t.Cleanup(ts.Close)
	return ts, dev
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatal(err)
	}
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatal(err)
	}
	var h HealthResponse
	decode(t, resp, &h)
	if !h.OK {
		t.Fatal("health not ok")
	}
}

func TestMeasureRequiresConnect(t *testing.T) {
	ts, _ := newTestServer(t)
	resp := postJSON(t, ts.URL+"/api/measure", MeasureRequest{Type: models.Radiance})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
}

func TestConnectMeasureFlow(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/connect", ConnectRequest{})
	var cr ConnectResponse
	decode(t, resp, &cr)
	if !cr.Connected || cr.DeviceName != "MOCK-288" {
		t.Fatalf("connect response = %+v", cr)
	}

	resp = postJSON(t, ts.URL+"/api/configure", ConfigureRequest{MinScans: 2, MaxScans: 5})
	resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("configure status = %d", resp.StatusCode)
	}

	resp = postJSON(t, ts.URL+"/api/measure", MeasureRequest{Type: models.Irradiance})
	if resp.StatusCode != 200 {
		t.Fatalf("measure status = %d", resp.StatusCode)
	}
	var res models.Result
	decode(t, resp, &res)
	if res.Type != models.Irradiance {
		t.Fatalf("type = %q", res.Type)
	}
	if len(res.SpectralData) != models.PixelCount {
		t.Fatalf("pixels = %d", len(res.SpectralData))
	}
	if res.NumScans != 2 {
		t.Fatalf("numScans = %d, want configured MinScans", res.NumScans)
	}
}

func TestConfigureRejectsBadBounds(t *testing.T) {
	ts, _ := newTestServer(t)
	resp := postJSON(t, ts.URL+"/api/configure", ConfigureRequest{
		IntegrationTimeMs: models.MaxIntegrationTimeMs + 1,
		MinScans:          1,
		MaxScans:          1,
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	var apiErr APIError
	decode(t, resp, &apiErr)
	if apiErr.Error == "" {
		t.Fatal("expected error body")
	}
}

func TestCapabilities(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/api/capabilities")
	if err != nil {
		t.Fatal(err)
	}
	var caps models.Capabilities
	decode(t, resp, &caps)
	if caps.PixelCount != models.PixelCount {
		t.Fatalf("pixelCount = %d", caps.PixelCount)
	}
	if caps.Schema.MaxScansLimit != models.MaxScansLimit {
		t.Fatalf("schema = %+v", caps.Schema)
	}
}

func TestMeasurementBroadcastOverWS(t *testing.T) {
	ts, _ := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/measurements"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	postJSON(t, ts.URL+"/api/connect", ConnectRequest{}).Body.Close()

	// Skip the "state" event emitted by connect.
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg WSMessage
	for {
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatal(err)
		}
		if msg.Type == "state" {
			break
		}
	}

	postJSON(t, ts.URL+"/api/measure", MeasureRequest{Type: models.Radiance}).Body.Close()
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatal(err)
	}
	if msg.Type != "measurement" {
		t.Fatalf("type = %q, want measurement", msg.Type)
	}
}
