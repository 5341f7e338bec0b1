// Package serial implements the framed request/response link to the
// spectroradiometer board: command framing, checksums, port discovery and the
// typed command set the measurement controller drives.
package serial

import (
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	goserial "github.com/tarm/serial"
)

// BuildCommand frames a command payload for the wire: payload + CRC16 + CR.
func BuildCommand(payload []byte) []byte {
	cmd := make([]byte, 0, len(payload)+3)
	cmd = append(cmd, payload...)
	cmd = append(cmd, crc16(cmd)...)
	cmd = append(cmd, '\r')
	return cmd
}

func crc16(data []byte) []byte {
	cs := uint16(0)
	for _, b := range data {
		cs ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			carry := cs & 0x8000
			if carry != 0 {
				cs ^= 0x8810
			}
			cs = (cs << 1) + (carry >> 15)
		}
	}
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, cs)
	return buf
}

// parseResponse validates a raw response frame against the command that
// produced it and returns the payload between the echo byte and the CRC.
//
// Frame layout: <cmd echo byte> '|' <payload> <crc16> CRLF.
func parseResponse(input, cmd []byte) (string, error) {
	s := string(input)
	if len(s) < 5 {
		return "", fmt.Errorf("short response (%d bytes)", len(input))
	}
	if s[0] != cmd[0] || s[1] != '|' {
		return "", fmt.Errorf("wrong command echo or missing separator")
	}
	end := strings.Index(s, "\r\n")
	if end == -1 {
		end = strings.Index(s, "\n")
	}
	if end < 4 {
		return "", fmt.Errorf("missing frame terminator")
	}
	received := input[end-2 : end]
	calculated := crc16(input[:end-2])
	if received[0] != calculated[0] || received[1] != calculated[1] {
		return "", fmt.Errorf("checksum mismatch: want %02X%02X got %02X%02X",
			calculated[0], calculated[1], received[0], received[1])
	}
	return s[2 : end-2], nil
}

// readUntil accumulates bytes from the port until a newline arrives or the
// deadline elapses. On timeout it returns what was read plus a hex dump for
// diagnostics.
func readUntil(sp *goserial.Port, timeoutMS int) ([]byte, error) {
	deadline := time.Now().Add(time.Millisecond * time.Duration(timeoutMS))
	buf := make([]byte, 0, 4096)
	tmp := make([]byte, 512)
	for time.Now().Before(deadline) {
		n, err := sp.Read(tmp)
		if n > 0 {
			buf = append(buf, tmp[:n]...)
			if containsNewline(buf) {
				return buf, nil
			}
		}
		if err != nil {
			return buf, err
		}
		time.Sleep(10 * time.Millisecond)
	}
	return buf, fmt.Errorf("%w after %dms; got %d bytes; raw_hex=%s",
		ErrTimeout, timeoutMS, len(buf), hexDump(buf))
}

func containsNewline(b []byte) bool {
	for _, c := range b {
		if c == '\n' {
			return true
		}
	}
	return false
}

func hexDump(b []byte) string {
	parts := make([]string, 0, len(b))
	for _, c := range b {
		parts = append(parts, fmt.Sprintf("%02X", c))
	}
	return strings.Join(parts, " ")
}
