// internal/cli/run.go
package cli

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tamzrod/heliotrack/internal/command"
	"github.com/tamzrod/heliotrack/internal/controller"
	"github.com/tamzrod/heliotrack/internal/field"
	fieldmodbus "github.com/tamzrod/heliotrack/internal/field/modbus"
	"github.com/tamzrod/heliotrack/internal/hal"
	"github.com/tamzrod/heliotrack/internal/nvstore"
	"github.com/tamzrod/heliotrack/internal/safety"
	"github.com/tamzrod/heliotrack/internal/sensor"
	"github.com/tamzrod/heliotrack/internal/servo"
	"github.com/tamzrod/heliotrack/internal/telemetry"
	"github.com/tamzrod/heliotrack/internal/tracking"
	"github.com/tamzrod/heliotrack/internal/writer"
)

func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run <config.yaml>",
		Short: "Run the control loop",
		Long: `Boot the safety kernel from storage, connect to the field device and
run the control loop until interrupted.

Telemetry frames go to stdout, logs to stderr. Operator commands
(MANUAL, AUTO, HOME, DEMO, HELP) are read from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runTracker(ctx, args[0], cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
}

func runTracker(ctx context.Context, path string, in io.Reader, out, errOut io.Writer) error {
	// --------------------
	// Load + validate config
	// --------------------
	cfg, err := loadConfig(path)
	if err != nil {
		return err
	}

	log, err := newLogger(cfg.Log, errOut)
	if err != nil {
		return err
	}

	// --------------------
	// Field device
	// --------------------
	fieldCli, err := dialField(cfg)
	if err != nil {
		return err
	}
	defer fieldCli.Close()

	mem, closeMem, err := openStorage(cfg, fieldCli)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeMem(); err != nil {
			log.Error().Err(err).Msg("storage close failed")
		}
	}()

	// --------------------
	// Safety kernel + safe boot
	// --------------------
	store, err := nvstore.New(mem, storeOptions(cfg, log)...)
	if err != nil {
		return err
	}
	kernel, err := safety.NewKernel(store,
		safety.WithFaultThreshold(cfg.Controller.FaultThreshold),
		safety.WithLogger(log),
	)
	if err != nil {
		return err
	}
	boot := kernel.Init()
	if boot.RestoreErr != nil {
		log.Warn().Err(boot.RestoreErr).Msg("primary not restored; backup remains authoritative")
	}

	// --------------------
	// Collaborators
	// --------------------
	clock := hal.NewSystemClock()
	limits := cfg.Tracking.ServoLimits()
	fm := fieldMap(cfg)

	analog, err := field.NewAnalog(fieldCli, fm)
	if err != nil {
		return err
	}
	actuator, err := field.NewServos(fieldCli, fm)
	if err != nil {
		return err
	}

	sensors, err := sensor.New(sensor.Config{
		Min:          cfg.Sensor.Min,
		Max:          cfg.Sensor.Max,
		SunThreshold: cfg.Sensor.SunThreshold,
	}, analog, clock)
	if err != nil {
		return err
	}

	tracker, err := tracking.New(tracking.Config{
		Deadband:       cfg.Tracking.Deadband,
		Gain:           cfg.Tracking.Gain,
		SunLossTimeout: cfg.Tracking.SunLossTimeoutMs,
		HomeAzimuth:    *cfg.Tracking.HomeAzimuth,
		HomeElevation:  *cfg.Tracking.HomeElevation,
		Limits:         limits,
	}, clock)
	if err != nil {
		return err
	}

	servos, err := servo.New(limits, actuator, log)
	if err != nil {
		return err
	}

	cmds, err := command.New(command.Config{
		Limits:        limits,
		HomeAzimuth:   *cfg.Tracking.HomeAzimuth,
		HomeElevation: *cfg.Tracking.HomeElevation,
		DemoDuration:  cfg.Tracking.DemoDurationMs,
	}, clock, errOut)
	if err != nil {
		return err
	}

	reporter, err := telemetry.NewReporter(out)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := telemetry.NewMetrics(reg)

	var statusWriter writer.StatusWriter
	if sc := cfg.Status; sc != nil {
		statusCli, err := fieldmodbus.New(fieldmodbus.Config{
			Endpoint: sc.Endpoint,
			UnitID:   sc.UnitID,
			Timeout:  time.Duration(sc.TimeoutMs) * time.Millisecond,
		})
		if err != nil {
			return err
		}
		defer statusCli.Close()

		sw, err := writer.NewDeviceStatusWriter(writer.StatusPlan{
			BaseSlot:   sc.Slot,
			DeviceName: sc.DeviceName,
		}, statusCli)
		if err != nil {
			return err
		}
		statusWriter = sw
	}

	// --------------------
	// Operator input
	// --------------------
	input := make(chan []byte, 16)
	go readInput(ctx, in, input)

	// --------------------
	// Control loop
	// --------------------
	ctl, err := controller.New(controller.Deps{
		Clock:    clock,
		Watchdog: hal.NopWatchdog{},
		Kernel:   kernel,
		Sensors:  sensors,
		Tracker:  tracker,
		Servos:   servos,
		Commands: cmds,
		Input:    input,
		Reporter: reporter,
		Metrics:  metrics,
		Status:   statusWriter,
		Log:      log,
	}, controller.Config{
		Period:        uint32(cfg.Controller.LoopMs),
		Scrub:         uint32(cfg.Controller.ScrubMs),
		Telemetry:     uint32(cfg.Controller.TelemetryMs),
		Persist:       uint32(cfg.Controller.PersistMs),
		Recovery:      uint32(cfg.Controller.RecoveryMs),
		HomeAzimuth:   *cfg.Tracking.HomeAzimuth,
		HomeElevation: *cfg.Tracking.HomeElevation,
	})
	if err != nil {
		return err
	}

	log.Info().
		Stringer("boot", boot.Source).
		Str("field", cfg.Field.Endpoint).
		Str("storage", cfg.Storage.Backend).
		Msg("system ready")

	// The loop and the metrics endpoint share one lifetime. A metrics
	// failure is logged and never stops the loop.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ctl.Run(gctx)
		return nil
	})
	if cfg.Metrics.Listen != "" {
		srv := &http.Server{
			Addr:              cfg.Metrics.Listen,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			serveMetrics(srv, log)
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownMetrics(srv, log)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// Final persist so the session's fault history survives a clean stop.
	if err := kernel.PersistConfig(); err != nil {
		log.Error().Err(err).Msg("final persist failed")
	}
	return nil
}

// readInput forwards operator bytes until in is exhausted or ctx is done.
// readInput stays blocked in Read after ctx is done; the process exits around it.
func readInput(ctx context.Context, in io.Reader, out chan<- []byte) {
	buf := make([]byte, command.BufferSize)
	for {
		n, err := in.Read(buf)
		if n > 0 {
			p := append([]byte(nil), buf[:n]...)
			select {
			case out <- p:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			return
		}
	}
}

func serveMetrics(srv *http.Server, log zerolog.Logger) {
	log.Info().Str("listen", srv.Addr).Msg("metrics endpoint up")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("metrics endpoint failed")
	}
}

func shutdownMetrics(srv *http.Server, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("metrics shutdown")
	}
}
