package ui

import (
	"fmt"

	"github.com/CK6170/spectrad-go/models"
)

// PrintResult prints a one-measurement summary block.
func PrintResult(res *models.Result) {
	unit := "cd/m2"
	label := "Luminance"
	if res.Type == models.Irradiance {
		unit = "lux"
		label = "Illuminance"
	}
	fmt.Println("------------------------------------------------------------------")
	fmt.Printf("%-12s %s\n", "Type:", res.Type)
	fmt.Printf("%-12s %d ms\n", "Exposure:", res.IntegrationTimeMs)
	fmt.Printf("%-12s %d\n", "Scans:", res.NumScans)
	Greenf("%-12s %.4g %s\n", label+":", res.Photometric, unit)
	if res.Saturated {
		Warningf("%-12s sensor saturated, values clipped\n", "Warning:")
	}
	fmt.Println("------------------------------------------------------------------")
}

// PrintMeasuringLine prints the in-place progress line while a measurement
// runs.
func PrintMeasuringLine(mt models.MeasurementType) {
	fmt.Printf("\r\033[96m[MEAS] %s measurement running...\033[0m", mt)
}
