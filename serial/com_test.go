package serial

import (
	"errors"
	"strings"
	"testing"

	"github.com/CK6170/spectrad-go/models"
)

// buildResponse frames a payload the way the firmware does: echo byte,
// separator, payload, CRC16, CRLF.
func buildResponse(cmdByte byte, payload string) []byte {
	frame := append([]byte{cmdByte, '|'}, payload...)
	frame = append(frame, crc16(frame)...)
	return append(frame, '\r', '\n')
}

func TestBuildCommandFrame(t *testing.T) {
	cmd := BuildCommand([]byte("T250"))
	if cmd[len(cmd)-1] != '\r' {
		t.Fatalf("frame not CR-terminated: % X", cmd)
	}
	if got := string(cmd[:4]); got != "T250" {
		t.Fatalf("payload = %q", got)
	}
	// Trailing CRC must match a recomputation over the payload.
	want := crc16(cmd[:4])
	if cmd[4] != want[0] || cmd[5] != want[1] {
		t.Fatalf("crc = %02X%02X, want %02X%02X", cmd[4], cmd[5], want[0], want[1])
	}
}

func TestParseResponseRoundTrip(t *testing.T) {
	cmd := BuildCommand([]byte(cmdUnitID))
	data, err := parseResponse(buildResponse('U', "17"), cmd)
	if err != nil {
		t.Fatalf("parseResponse: %v", err)
	}
	if data != "17" {
		t.Fatalf("payload = %q, want %q", data, "17")
	}
}

func TestParseResponseRejectsBadFrames(t *testing.T) {
	cmd := BuildCommand([]byte(cmdUnitID))

	tests := []struct {
		name string
		raw  []byte
	}{
		{"short", []byte("U|\r\n")},
		{"wrong echo", buildResponse('S', "17")},
		{"no terminator", append([]byte{'U', '|'}, "17xx"...)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := parseResponse(tc.raw, cmd); err == nil {
				t.Fatal("expected an error")
			}
		})
	}

	// Flipping one payload byte after framing must fail the checksum.
	raw := buildResponse('U', "17")
	raw[2] ^= 0x01
	if _, err := parseResponse(raw, cmd); err == nil || !strings.Contains(err.Error(), "checksum") {
		t.Fatalf("corrupted frame: got %v, want checksum error", err)
	}
}

func TestParseCounts(t *testing.T) {
	vals := make([]string, models.PixelCount)
	for i := range vals {
		vals[i] = "1000"
	}
	counts, err := parseCounts(strings.Join(vals, "|"))
	if err != nil {
		t.Fatalf("parseCounts: %v", err)
	}
	if len(counts) != models.PixelCount || counts[0] != 1000 || counts[models.PixelCount-1] != 1000 {
		t.Fatalf("bad counts: len=%d first=%v", len(counts), counts[0])
	}

	if _, err := parseCounts("1|2|3"); !errors.Is(err, ErrIO) {
		t.Fatalf("short payload: got %v, want ErrIO", err)
	}
	vals[17] = "x"
	if _, err := parseCounts(strings.Join(vals, "|")); !errors.Is(err, ErrIO) {
		t.Fatalf("non-numeric count: got %v, want ErrIO", err)
	}
}

func TestScanTimeoutScalesWithIntegration(t *testing.T) {
	if got := ScanTimeoutMS(100); got != 1200 {
		t.Fatalf("ScanTimeoutMS(100) = %d", got)
	}
	if ScanTimeoutMS(models.MaxIntegrationTimeMs) <= models.MaxIntegrationTimeMs {
		t.Fatal("scan timeout must exceed the integration time")
	}
}
