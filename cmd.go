package main

import (
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/CK6170/spectrad-go/calibration"
	"github.com/CK6170/spectrad-go/device"
	"github.com/CK6170/spectrad-go/file"
	"github.com/CK6170/spectrad-go/internal/server"
	"github.com/CK6170/spectrad-go/models"
	serialpkg "github.com/CK6170/spectrad-go/serial"
	"github.com/CK6170/spectrad-go/ui"
)

const version = "1.0.0"

var (
	configPath = "config.json"
	logLevel   = "info"
	useMock    = false
)

// NewCommand .
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spectrad",
		Short: "spectrad measures spectral radiance and irradiance with a serial spectroradiometer",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogger()
		},
	}

	globalFlags := cmd.PersistentFlags()
	globalFlags.StringVarP(&configPath, "config", "c", "config.json", "path to config.json")
	globalFlags.StringVarP(&logLevel, "log-level", "l", "info", "log level (trace, debug, info, warn, error, fatal, panic)")

	cmd.AddCommand(
		NewMeasureCommand(),
		NewServeCommand(),
		NewPortsCommand(),
		NewVersionCommand(),
	)

	return cmd
}

func setupLogger() error {
	lvl, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return err
	}
	logrus.SetLevel(lvl)
	logrus.SetFormatter(&logrus.TextFormatter{
		TimestampFormat: "2006-01-02 15:04:05.000",
		FullTimestamp:   true,
	})
	return nil
}

// NewVersionCommand .
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("%s\n", version)
		},
	}
}

// NewServeCommand .
func NewServeCommand() *cobra.Command {
	addr := "127.0.0.1:8080"
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Expose the device over a local HTTP API with a measurement WebSocket stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := file.LoadParameters(configPath)
			if err != nil && !useMock {
				return fmt.Errorf("load %s: %w", configPath, err)
			}
			dev, err := buildDevice(params)
			if err != nil {
				return err
			}
			s := server.New(dev, logrus.StandardLogger())
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("listen on %s: %w", addr, err)
			}
			logrus.Infof("serving on http://%s", addr)
			return http.Serve(ln, s.Handler())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", addr, "http listen address")
	cmd.Flags().BoolVar(&useMock, "mock", false, "use a synthetic device instead of serial hardware")
	return cmd
}

// NewPortsCommand .
func NewPortsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List serial port candidates",
		Run: func(cmd *cobra.Command, args []string) {
			for _, p := range serialpkg.ListPorts() {
				cmd.Printf("%s\n", p)
			}
		},
	}
}

// NewMeasureCommand .
func NewMeasureCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "measure",
		Short: "Connect to the device and run the interactive measurement loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMeasure()
		},
	}
	cmd.Flags().BoolVar(&useMock, "mock", false, "use a synthetic device instead of serial hardware")
	return cmd
}

func runMeasure() error {
	// Errors through the standard logger come out red in the terminal.
	log.SetOutput(ui.NewRedWriter(os.Stderr))

	params, err := file.LoadParameters(configPath)
	if err != nil {
		if !useMock {
			return fmt.Errorf("load %s: %w", configPath, err)
		}
		params = &models.PARAMETERS{SERIAL: &models.SERIAL{}}
	}

	dev, err := buildDevice(params)
	if err != nil {
		return err
	}

	logrus.Info("connecting...")
	if err := dev.Connect(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer dev.Disconnect()

	caps := dev.Capabilities()
	ui.Greenf("Connected: %s (%d pixels, %.0f-%.0f nm)\n",
		caps.DeviceName, caps.PixelCount, caps.WavelengthMin, caps.WavelengthMax)

	persistResolvedPort(params, dev)

	mt := models.Radiance
	var last *models.Result
	for {
		switch ui.NextMeasureKey() {
		case ui.KeyMeasure:
			ui.PrintMeasuringLine(mt)
			res, err := dev.Measure(mt)
			fmt.Println()
			if err != nil {
				logrus.WithError(err).Error("measurement failed")
				continue
			}
			last = res
			ui.PrintResult(res)
			if err := file.AppendResultCSV("measurements.csv", res); err != nil {
				logrus.WithError(err).Warn("could not append measurements.csv")
			}
		case ui.KeyRadiance:
			mt = models.Radiance
			ui.Greenf("Measurement type: %s\n", mt)
		case ui.KeyIrradiance:
			mt = models.Irradiance
			ui.Greenf("Measurement type: %s\n", mt)
		case ui.KeySave:
			if last == nil {
				ui.Warningf("Nothing to save yet.\n")
				continue
			}
			name := fmt.Sprintf("spectrum_%s_%s.csv", last.Type, last.Timestamp.Format("20060102_150405"))
			if err := file.SaveSpectrumCSV(name, last); err != nil {
				logrus.WithError(err).Error("could not save spectrum")
				continue
			}
			ui.Greenf("Saved %s\n", name)
		case ui.KeyEsc:
			logrus.Info("disconnecting")
			return nil
		}
	}
}

func buildDevice(params *models.PARAMETERS) (device.Contract, error) {
	if useMock {
		return device.NewMock(), nil
	}
	calFile := params.CALFILE
	if calFile == "" {
		calFile = "calibration.csv"
	}
	store := calibration.NewStore(calFile)

	tuning := device.DefaultTuning().Merge(params.TUNING)
	opts := []device.Option{device.WithTuning(tuning)}
	if params.SERIAL.BAUDRATE > 0 {
		opts = append(opts, device.WithBaud(params.SERIAL.BAUDRATE))
	}
	return device.NewSpectrometer(store, params.SERIAL.PORT, opts...), nil
}

// persistResolvedPort writes an auto-detected port back into config.json so
// the next run connects directly.
func persistResolvedPort(params *models.PARAMETERS, dev device.Contract) {
	sp, ok := dev.(*device.Spectrometer)
	if !ok {
		return
	}
	port := sp.PortName()
	if port == "" || port == params.SERIAL.PORT {
		return
	}
	params.SERIAL.PORT = port
	if err := file.PersistParameters(configPath, params); err != nil {
		logrus.WithError(err).Warn("could not persist detected port")
		return
	}
	logrus.WithField("port", port).Info("saved detected port to config")
	// Give the user a moment to notice before the prompt redraws.
	time.Sleep(150 * time.Millisecond)
}
