// Command `spectrad-server` exposes the measurement engine over a local HTTP
// API plus a WebSocket stream of completed measurements.
//
// Flags:
//
//	-addr:   TCP address to listen on (default 127.0.0.1:8080)
//	-config: path to config.json (serial port, calibration file, tuning)
//	-mock:   serve a synthetic device instead of serial hardware
package main

import (
	"flag"
	"net"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/CK6170/spectrad-go/calibration"
	"github.com/CK6170/spectrad-go/device"
	"github.com/CK6170/spectrad-go/file"
	"github.com/CK6170/spectrad-go/internal/server"
)

func main() {
	var (
		addr       = flag.String("addr", "127.0.0.1:8080", "http listen address")
		configPath = flag.String("config", "config.json", "path to config.json")
		mock       = flag.Bool("mock", false, "serve a synthetic device (no hardware)")
	)
	flag.Parse()

	logrus.SetFormatter(&logrus.TextFormatter{
		TimestampFormat: "2006-01-02 15:04:05.000",
		FullTimestamp:   true,
	})

	var dev device.Contract
	if *mock {
		dev = device.NewMock()
		logrus.Info("serving synthetic device")
	} else {
		params, err := file.LoadParameters(*configPath)
		if err != nil {
			logrus.WithError(err).Fatalf("cannot load %s", *configPath)
		}
		calFile := params.CALFILE
		if calFile == "" {
			calFile = "calibration.csv"
		}
		tuning := device.DefaultTuning().Merge(params.TUNING)
		opts := []device.Option{device.WithTuning(tuning)}
		if params.SERIAL.BAUDRATE > 0 {
			opts = append(opts, device.WithBaud(params.SERIAL.BAUDRATE))
		}
		dev = device.NewSpectrometer(calibration.NewStore(calFile), params.SERIAL.PORT, opts...)
	}

	s := server.New(dev, logrus.StandardLogger())

	// Bind early so a port conflict fails fast.
	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		logrus.WithError(err).Fatalf("cannot listen on %s", *addr)
	}
	logrus.Infof("serving on http://%s", *addr)
	if err := http.Serve(ln, s.Handler()); err != nil {
		logrus.Error(err)
	}
}
