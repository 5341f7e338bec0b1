package ui

import "fmt"

// Key codes returned by NextMeasureKey.
const (
	KeyMeasure    = 'M'
	KeyRadiance   = 'R'
	KeyIrradiance = 'I'
	KeySave       = 'S'
	KeyEsc        = 27
)

// NextMeasureKey shows the measurement prompt and waits for a single key:
// M to measure, R/I to select radiance/irradiance, S to save the last
// spectrum, ESC to exit.
func NextMeasureKey() rune {
	fmt.Printf("\033[32m\n'M' measure | 'R' radiance | 'I' irradiance | 'S' save spectrum | <ESC> exit\033[0m\n")
	DrainKeys()
	keyEvents := StartKeyEvents()
	for {
		k := <-keyEvents
		switch k {
		case 'M', 'm':
			return KeyMeasure
		case 'R', 'r':
			return KeyRadiance
		case 'I', 'i':
			return KeyIrradiance
		case 'S', 's':
			return KeySave
		case 27:
			return KeyEsc
		}
	}
}

// NextYN shows a green prompt and waits for single-key Y/N
// (case-insensitive). ESC returns 27.
func NextYN(message string) rune {
	fmt.Printf("\033[32m%s\033[0m\n", message)
	DrainKeys()
	keyEvents := StartKeyEvents()
	for {
		k := <-keyEvents
		switch k {
		case 'Y', 'y':
			return 'Y'
		case 'N', 'n':
			return 'N'
		case 27:
			return 27
		}
	}
}
