package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/audiolibrelab/pcmcapture/internal/audio"
	"github.com/audiolibrelab/pcmcapture/internal/metrics"
	"github.com/audiolibrelab/pcmcapture/internal/recorder"
	"github.com/audiolibrelab/pcmcapture/internal/wav"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var recordCmd = &cobra.Command{
	Use:   "record [name]",
	Short: "Record audio into a raw file and a WAV container",
	Long: `Record from the configured source until Ctrl+C or --duration elapses.
The raw payload is written to <name><raw_extension> and wrapped into
<name><container_extension> once the session is released.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		duration, _ := cmd.Flags().GetDuration("duration")
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
		appendMode, _ := cmd.Flags().GetBool("append")
		output, _ := cmd.Flags().GetString("output")

		if output != "" {
			cfg.Output.Directory = output
		}
		if metricsAddr == "" {
			metricsAddr = cfg.Metrics.Address
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if duration > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, duration)
			defer cancel()
		}

		return runRecord(ctx, args[0], recordOptions{
			metricsAddr: metricsAddr,
			appendMode:  appendMode || cfg.AppendMode(),
		})
	},
}

type recordOptions struct {
	metricsAddr string
	appendMode  bool
}

func addRecordFlags(c *cobra.Command) {
	c.Flags().Duration("duration", 0, "stop automatically after this long (default: until Ctrl+C)")
	c.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address while recording (overrides config)")
	c.Flags().Bool("append", false, "append to an existing container instead of replacing it")
	c.Flags().StringP("output", "o", "", "output directory (overrides config)")
}

func init() {
	addRecordFlags(recordCmd)
}

func runRecord(ctx context.Context, name string, opts recordOptions) error {
	capture, err := cfg.CaptureConfig()
	if err != nil {
		return fmt.Errorf("invalid recorder configuration: %w", err)
	}

	checkPipeWireTarget()

	device, err := audio.NewDevice(cfg.Recorder.Backend, audio.DeviceOptions{
		Target: cfg.Recorder.Target,
		Logger: slog.Default(),
	})
	if err != nil {
		return err
	}

	m := metrics.New()
	layout := cfg.Layout()
	ctrl := recorder.New(device, layout,
		recorder.WithLogger(slog.Default()),
		recorder.WithMetrics(m),
		recorder.WithAppend(opts.appendMode),
	)
	defer ctrl.Close()

	progress := newProgressObserver(os.Stderr, name, capture.Format())
	ctrl.SetObserver(progress)

	if err := ctrl.Configure(capture); err != nil {
		return fmt.Errorf("failed to configure recorder: %w", err)
	}
	if err := ctrl.Start(name); err != nil {
		ctrl.Cancel()
		return fmt.Errorf("failed to start recording: %w", err)
	}
	slog.Info("Recording - Press Ctrl+C to stop", "name", name, "backend", cfg.Recorder.Backend)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case msg := <-progress.failures:
			return fmt.Errorf("capture failed: %s", msg)
		}
	})
	if opts.metricsAddr != "" {
		serveMetrics(g, gctx, opts.metricsAddr, m)
	}
	runErr := g.Wait()

	if err := ctrl.Stop(); err != nil && !errors.Is(err, recorder.ErrIllegalState) {
		slog.Warn("Failed to stop recording", "error", err)
	}
	ctrl.Release()
	if err := ctrl.Close(); err != nil {
		return err
	}
	progress.finish()

	containerPath := layout.ContainerPath(name)
	if runErr != nil {
		return runErr
	}
	info, err := wav.Inspect(containerPath)
	if err != nil {
		return fmt.Errorf("recording finished but container is unreadable: %w", err)
	}
	fmt.Printf("Saved %s (%s, %d bytes of audio)\n", containerPath, info.Duration.Round(10*time.Millisecond), info.Header.DataSize())
	return nil
}

// serveMetrics exposes m on addr until ctx is done
func serveMetrics(g *errgroup.Group, ctx context.Context, addr string, m *metrics.Metrics) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	g.Go(func() error {
		slog.Info("Metrics server listening", "address", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// checkPipeWireTarget warns early when a configured pipewire port is missing
// or claimed twice
func checkPipeWireTarget() {
	target := cfg.Recorder.Target
	if !strings.EqualFold(cfg.Recorder.Backend, string(audio.BackendTypePipeWire)) || target == "" || strings.HasPrefix(target, "@") {
		return
	}
	if err := audio.NewPipeWire().ValidatePort(target); err != nil {
		slog.Warn("PipeWire target may not be usable", "target", target, "error", err)
	}
}
