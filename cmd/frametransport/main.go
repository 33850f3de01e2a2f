// frametransport bridges a terminal to a device over the frame transport.
//
// Each line read from stdin is decoded as hex and sent as one frame. Every
// transport event is printed to stdout, one per line:
//
//	OPEN
//	READY
//	MESSAGE 010203
//	ERROR error: board connection failed. (2)
//	CLOSE
//
// With --simulate an embedded broker and an echoing device are started, so
// the tool runs without external infrastructure.
package main

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/nerrad567/frame-transport/internal/infrastructure/config"
	"github.com/nerrad567/frame-transport/internal/infrastructure/influxdb"
	"github.com/nerrad567/frame-transport/internal/infrastructure/logging"
	"github.com/nerrad567/frame-transport/internal/simulator"
	"github.com/nerrad567/frame-transport/internal/transport"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	defaultConfigPath = "configs/config.yaml"

	// shutdownTimeout bounds the wait for EventClose after Close.
	shutdownTimeout = 5 * time.Second
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// options holds the parsed command line.
type options struct {
	configPath string
	simulate   bool
}

// parseFlags reads the command line. The config path falls back to
// FRAMETRANSPORT_CONFIG, then to the default path.
func parseFlags(args []string) (options, error) {
	var opts options

	flags := pflag.NewFlagSet("frametransport", pflag.ContinueOnError)
	flags.StringVarP(&opts.configPath, "config", "c", "", "path to the YAML configuration file")
	flags.BoolVar(&opts.simulate, "simulate", false, "start an embedded broker with a simulated device")

	if err := flags.Parse(args); err != nil {
		return options{}, err
	}

	if opts.configPath == "" {
		opts.configPath = getConfigPath()
	}
	return opts, nil
}

// getConfigPath returns the configuration file path.
// Uses FRAMETRANSPORT_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("FRAMETRANSPORT_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// run is the application logic, separated from main for testability.
//
// It returns when ctx is cancelled or the transport session ends.
func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}

	log := logging.Default()
	log.Info("starting frametransport",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", opts.configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	var metrics transport.Metrics
	if cfg.InfluxDB.Enabled {
		influxClient, connErr := influxdb.Connect(cfg.InfluxDB)
		if connErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", connErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		metrics = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	if opts.simulate || cfg.Simulator.Enabled {
		broker, simErr := startSimulator(cfg, log)
		if simErr != nil {
			return fmt.Errorf("starting simulator: %w", simErr)
		}
		defer func() {
			if closeErr := broker.Close(); closeErr != nil {
				log.Error("error stopping simulator", "error", closeErr)
			}
		}()
		cfg.Transport.URL = broker.URL()
	}

	fns := []transport.Option{transport.WithLogger(log)}
	if metrics != nil {
		fns = append(fns, transport.WithMetrics(metrics))
	}

	tr, err := transport.Open(cfg.Transport.Kind, transport.FromConfig(cfg.Transport), fns...)
	if err != nil {
		return fmt.Errorf("opening %s transport: %w", cfg.Transport.Kind, err)
	}
	log.Info("transport opened",
		"kind", cfg.Transport.Kind,
		"url", cfg.Transport.URL,
		"device", cfg.Transport.Device,
	)

	opened := make(chan struct{})
	closed := make(chan struct{})
	var openOnce, closeOnce sync.Once
	tr.Subscribe(func(ev transport.Event) {
		printEvent(stdout, ev)
		switch ev.Type {
		case transport.EventOpen:
			openOnce.Do(func() { close(opened) })
		case transport.EventClose:
			closeOnce.Do(func() { close(closed) })
		}
	})

	// Frames are only read once the broker has accepted the session;
	// publications made while connecting would be dropped.
	go func() {
		select {
		case <-opened:
			readFrames(stdin, tr, log)
		case <-closed:
		case <-ctx.Done():
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, closing transport")
		tr.Close()
		select {
		case <-closed:
		case <-time.After(shutdownTimeout):
			log.Warn("transport did not close in time", "timeout", shutdownTimeout)
		}
	case <-closed:
		log.Info("transport session ended")
	}

	log.Info("frametransport stopped")
	return nil
}

// startSimulator starts the embedded broker and attaches the configured
// device to it.
func startSimulator(cfg *config.Config, log *logging.Logger) (*simulator.Broker, error) {
	broker, err := simulator.Start(cfg.Simulator, log.With("component", "simulator").Logger)
	if err != nil {
		return nil, err
	}

	device, err := broker.AttachDevice(cfg.Transport.Device)
	if err != nil {
		_ = broker.Close()
		return nil, err
	}
	if cfg.Simulator.Status != "" {
		if err := device.SetStatus(cfg.Simulator.Status); err != nil {
			_ = broker.Close()
			return nil, fmt.Errorf("publishing device status: %w", err)
		}
	}

	log.Info("simulator started",
		"url", broker.URL(),
		"device", device.Name(),
		"status", cfg.Simulator.Status,
	)
	return broker, nil
}

// readFrames sends one frame per hex line until r is exhausted.
// Blank lines are skipped; malformed lines are logged and skipped.
func readFrames(r io.Reader, tr transport.Transport, log *logging.Logger) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		frame, err := decodeFrame(scanner.Text())
		if err != nil {
			log.Warn("skipping malformed frame", "error", err)
			continue
		}
		if len(frame) == 0 {
			continue
		}
		tr.Send(frame)
	}
	if err := scanner.Err(); err != nil {
		log.Error("reading frames", "error", err)
	}
}

// decodeFrame parses one line of hex. Whitespace between bytes is allowed.
func decodeFrame(line string) ([]byte, error) {
	compact := strings.Join(strings.Fields(line), "")
	frame, err := hex.DecodeString(compact)
	if err != nil {
		return nil, fmt.Errorf("decoding %q: %w", line, err)
	}
	return frame, nil
}

// printEvent writes ev as a single line.
func printEvent(w io.Writer, ev transport.Event) {
	switch ev.Type {
	case transport.EventMessage:
		fmt.Fprintf(w, "%s %s\n", ev.Type, hex.EncodeToString(ev.Payload))
	case transport.EventError:
		fmt.Fprintf(w, "%s %v\n", ev.Type, ev.Err)
	default:
		fmt.Fprintln(w, ev.Type)
	}
}
