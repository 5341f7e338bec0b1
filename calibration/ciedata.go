package calibration

// CIE 1931 2-degree photopic luminosity function (Y-bar), tabulated at 5 nm
// steps from 380 nm to 780 nm. Profiles resample this table onto their own
// wavelength axis; outside the tabulated domain the response is zero.
const (
	cieStartNm = 380.0
	cieEndNm   = 780.0
	cieStepNm  = 5.0
)

var cieYBar = []float64{
	0.0000390, 0.0000640, 0.0001200, 0.0002170, 0.0003960,
	0.0006400, 0.0012100, 0.0021800, 0.0040000, 0.0073000,
	0.0116000, 0.0168400, 0.0230000, 0.0298000, 0.0380000,
	0.0480000, 0.0600000, 0.0739000, 0.0909800, 0.1126000,
	0.1390200, 0.1693000, 0.2080200, 0.2586000, 0.3230000,
	0.4073000, 0.5030000, 0.6082000, 0.7100000, 0.7932000,
	0.8620000, 0.9148500, 0.9540000, 0.9803000, 0.9949500,
	1.0000000, 0.9950000, 0.9786000, 0.9520000, 0.9154000,
	0.8700000, 0.8163000, 0.7570000, 0.6949000, 0.6310000,
	0.5668000, 0.5030000, 0.4412000, 0.3810000, 0.3210000,
	0.2650000, 0.2170000, 0.1750000, 0.1382000, 0.1070000,
	0.0816000, 0.0610000, 0.0445800, 0.0320000, 0.0232000,
	0.0170000, 0.0119200, 0.0082100, 0.0057230, 0.0041020,
	0.0029290, 0.0020910, 0.0014840, 0.0010470, 0.0007400,
	0.0005200, 0.0003610, 0.0002490, 0.0001720, 0.0001200,
	0.0000850, 0.0000600, 0.0000425, 0.0000300, 0.0000212,
	0.0000150,
}

// cieWavelengths returns the wavelength axis matching cieYBar.
func cieWavelengths() []float64 {
	xs := make([]float64, len(cieYBar))
	for i := range xs {
		xs[i] = cieStartNm + float64(i)*cieStepNm
	}
	return xs
}
