package serial

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"go.bug.st/serial/enumerator"
)

// ListPorts returns a best-effort list of available serial port device names,
// sorted and de-duplicated. Discovery probes only these candidates instead of
// brute-force scanning.
func ListPorts() []string {
	if ports, err := enumerator.GetDetailedPortsList(); err == nil && len(ports) > 0 {
		out := make([]string, 0, len(ports))
		seen := make(map[string]struct{}, len(ports))
		for _, p := range ports {
			if p == nil || p.Name == "" {
				continue
			}
			if _, ok := seen[p.Name]; ok {
				continue
			}
			seen[p.Name] = struct{}{}
			out = append(out, p.Name)
		}
		sort.Strings(out)
		return out
	}

	// Fallbacks when the enumerator returns nothing.
	switch runtime.GOOS {
	case "windows":
		out := make([]string, 0, 32)
		for i := 1; i <= 32; i++ {
			out = append(out, fmt.Sprintf("COM%d", i))
		}
		return out
	case "darwin":
		return listByGlob("/dev/cu.usbserial*", "/dev/cu.usbmodem*", "/dev/cu.*")
	default:
		return listByGlob("/dev/ttyUSB*", "/dev/ttyACM*")
	}
}

// listByGlob expands filesystem glob patterns into a stable, de-duplicated
// list of existing device nodes.
func listByGlob(patterns ...string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, 16)
	for _, pat := range patterns {
		matches, _ := filepath.Glob(pat)
		for _, m := range matches {
			if m == "" {
				continue
			}
			if _, err := os.Stat(m); err != nil {
				continue
			}
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}
	sort.Strings(out)
	return out
}
