package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/lid.report/internal/api"
	"github.com/banshee-data/lid.report/internal/config"
	"github.com/banshee-data/lid.report/internal/lid"
	"github.com/banshee-data/lid.report/internal/network"
	"github.com/banshee-data/lid.report/internal/report"
	"github.com/banshee-data/lid.report/internal/serialangle"
	"github.com/banshee-data/lid.report/internal/timeutil"
	"github.com/banshee-data/lid.report/internal/version"
)

// calibrationSamples is how many readings `-calibrate` collects before
// printing noise statistics.
const calibrationSamples = 100

var (
	host        = flag.String("host", "localhost", "Host receiving OSC angle messages")
	port        = flag.Int("port", 8000, "UDP port receiving OSC angle messages")
	message     = flag.String("message", "/lid", "OSC address pattern for angle messages")
	heartbeat   = flag.Duration("heartbeat", 500*time.Millisecond, "Resend the current angle this often even when unchanged (0 disables)")
	epsilon     = flag.Float64("epsilon", 0, "Minimum change in degrees before a new angle is sent (0 sends on any difference)")
	sensorName  = flag.String("sensor", "auto", "Sensor backend: auto, iio, serial or sim")
	serialPort  = flag.String("serial-port", "/dev/ttyACM0", "Serial port of the accelerometer bridge")
	baud        = flag.Int("baud", 0, "Serial baud rate (0 uses the config file value or 115200)")
	devMode     = flag.Bool("dev", false, "Run in dev mode, replaying recorded angles on a loop")
	fixtures    = flag.String("fixtures", "fixtures/angles.csv", "Angle recording replayed in dev mode")
	configFile  = flag.String("config", "", "Path to a tuning config JSON file")
	listen      = flag.String("listen", "", "Listen address for the status API, e.g. localhost:8080 (empty disables)")
	calibrate   = flag.Bool("calibrate", false, "Sample the sensor, print noise statistics as JSON and exit")
	verbose     = flag.Bool("v", false, "Log every poll decision")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	log.Printf("lid.report %s", version.String())

	if *heartbeat < 0 {
		log.Fatal("heartbeat must be zero or positive")
	}
	if *epsilon < 0 {
		log.Fatal("epsilon must be zero or positive")
	}

	cfg := config.EmptyTuningConfig()
	if *configFile != "" {
		loaded, err := config.LoadTuningConfig(*configFile)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		cfg = loaded
		log.Printf("loaded tuning config from %s", *configFile)
	}

	// Flags set on the command line override the config file.
	flagsSet := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { flagsSet[f.Name] = true })

	eps := cfg.GetEpsilon()
	if flagsSet["epsilon"] {
		eps = *epsilon
	}
	baudRate := cfg.GetSerialBaudRate()
	if flagsSet["baud"] {
		baudRate = *baud
	}

	clock := timeutil.RealClock{}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup

	var (
		sensor lid.Sensor
		bridge *serialangle.Bridge
	)
	if *devMode {
		replay, err := lid.NewReplaySensor(clock, *fixtures, true)
		if err != nil {
			log.Fatalf("failed to load fixtures: %v", err)
		}
		log.Printf("dev mode: replaying %s on a loop", *fixtures)
		sensor = replay
	} else {
		var err error
		sensor, bridge, err = openSensor(clock, cfg, baudRate)
		if err != nil {
			log.Fatalf("failed to open sensor: %v", err)
		}
	}

	if bridge != nil {
		defer bridge.Close()

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := bridge.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("serial monitor stopped: %v", err)
			}
			log.Print("serial monitor routine terminated")
		}()

		if err := bridge.Initialize(); err != nil {
			log.Fatalf("failed to initialise accelerometer bridge: %v", err)
		}
	}

	if *calibrate {
		result, err := lid.Calibrate(ctx, clock, sensor, calibrationSamples, cfg.GetPollInterval())
		if err != nil {
			log.Fatalf("calibration failed: %v", err)
		}
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			log.Fatalf("failed to encode calibration result: %v", err)
		}
		fmt.Println(string(out))
		return
	}

	sender, err := network.NewSender(*host, *port, *message)
	if err != nil {
		log.Fatalf("failed to create OSC sender: %v", err)
	}

	reporter := report.NewReporter(sensor, sender, clock, report.Options{
		PollInterval: cfg.GetPollInterval(),
		Heartbeat:    *heartbeat,
		Epsilon:      eps,
		Debug:        *verbose,
	})

	log.Printf("reporting %s to osc://%s%s every %s (heartbeat %s, epsilon %.2f, session %s)",
		sensor.Name(), sender.Target(), sender.Address(), cfg.GetPollInterval(), *heartbeat, eps, reporter.Session())

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := reporter.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Fatalf("reporter stopped: %v", err)
		}
		log.Print("reporter routine terminated")
	}()

	if *listen != "" {
		statusServer := api.NewServer(reporter, sender, bridge)
		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(statusServer.ServeMux()),
		}

		wg.Add(1)
		go func() {
			defer wg.Done()

			go func() {
				log.Printf("status API listening on http://%s", *listen)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatalf("failed to start status API: %v", err)
				}
			}()

			<-ctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Printf("status API shutdown error: %v", err)
				if err := server.Close(); err != nil {
					log.Printf("status API force close error: %v", err)
				}
			}
			log.Print("status API routine terminated")
		}()
	}

	<-ctx.Done()
	log.Print("shutdown signal received")

	wg.Wait()
	log.Print("graceful shutdown complete")
}

// openSensor builds the sensor selected by the -sensor flag. When the
// backend is the serial bridge the bridge is returned as well so the
// caller can run its monitor loop and close the port.
func openSensor(clock timeutil.Clock, cfg *config.TuningConfig, baudRate int) (lid.Sensor, *serialangle.Bridge, error) {
	switch *sensorName {
	case "iio":
		sensor, err := lid.NewIIOSensor("")
		return sensor, nil, err
	case "serial":
		bridge, err := openBridge(clock, cfg, baudRate)
		if err != nil {
			return nil, nil, err
		}
		return bridge, bridge, nil
	case "sim":
		sensor, err := lid.NewSimSensor(clock, simOptionsFromConfig(cfg))
		return sensor, nil, err
	case "auto":
		if sensor, err := lid.NewIIOSensor(""); err == nil {
			log.Printf("auto-detected IIO sensor %s", sensor.Name())
			return sensor, nil, nil
		}
		if bridge, err := openBridge(clock, cfg, baudRate); err == nil {
			log.Printf("auto-detected accelerometer bridge on %s", *serialPort)
			return bridge, bridge, nil
		}
		return nil, nil, fmt.Errorf("no lid angle hardware found (tried IIO and %s); use -sensor sim to run without hardware", *serialPort)
	default:
		return nil, nil, fmt.Errorf("unknown sensor backend %q", *sensorName)
	}
}

func openBridge(clock timeutil.Clock, cfg *config.TuningConfig, baudRate int) (*serialangle.Bridge, error) {
	return serialangle.Open(*serialPort, portOptionsFromConfig(cfg, baudRate), clock, cfg.GetStaleAfter())
}

func portOptionsFromConfig(cfg *config.TuningConfig, baudRate int) serialangle.PortOptions {
	return serialangle.PortOptions{
		BaudRate: baudRate,
		DataBits: cfg.GetSerialDataBits(),
		StopBits: cfg.GetSerialStopBits(),
		Parity:   cfg.GetSerialParity(),
	}
}

func simOptionsFromConfig(cfg *config.TuningConfig) lid.SimOptions {
	return lid.SimOptions{
		Profile:  cfg.GetSimProfile(),
		MinAngle: cfg.GetSimMinAngle(),
		MaxAngle: cfg.GetSimMaxAngle(),
		Period:   cfg.GetSimPeriod(),
		Angle:    cfg.GetSimAngle(),
		Jitter:   cfg.GetSimJitter(),
	}
}
