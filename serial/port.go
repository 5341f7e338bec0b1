package serial

import (
	"fmt"
	"strings"
	"time"
)

// Transient open/probe failures are retried this many times per candidate
// port during discovery. Timeouts on an active measurement command are never
// retried here.
const probeAttempts = 2

// AutoDetectPort enumerates candidate serial ports and probes each for the
// identification response. It returns the first port that answers, plus a
// trace of what was tried so frontends can surface discovery diagnostics.
func AutoDetectPort(baud int) (string, []string) {
	if baud <= 0 {
		baud = Baud
	}
	ports := ListPorts()
	trace := make([]string, 0, len(ports)+2)
	trace = append(trace, fmt.Sprintf("[serial] AutoDetectPort: %d candidate port(s): %v (baud=%d)",
		len(ports), ports, baud))
	for _, name := range ports {
		trace = append(trace, fmt.Sprintf("[serial] AutoDetectPort: probing %s", name))
		if TestPort(name, baud) {
			trace = append(trace, fmt.Sprintf("[serial] AutoDetectPort: FOUND device on %s", name))
			return name, trace
		}
	}
	trace = append(trace, "[serial] AutoDetectPort: no port answered the identification probe")
	return "", trace
}

// TestPort opens the port and issues the identification command, retrying a
// bounded number of times. Some adapters lose the first response right after
// open due to driver buffering, so a short settle delay precedes the probe.
func TestPort(name string, baud int) bool {
	sp, err := openPort(name, baud)
	if err != nil {
		return false
	}
	defer func() { _ = sp.Close() }()

	time.Sleep(40 * time.Millisecond)

	cmd := BuildCommand([]byte(cmdIdentify))
	for attempt := 0; attempt < probeAttempts; attempt++ {
		if _, err := sp.Write(cmd); err != nil {
			return false
		}
		raw, err := readUntil(sp, identTimeoutMS)
		if err == nil {
			if data, perr := parseResponse(raw, cmd); perr == nil && strings.Contains(data, IdentPrefix) {
				return true
			}
		}
		time.Sleep(80 * time.Millisecond)
	}
	return false
}
