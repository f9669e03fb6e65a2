// Command logmark runs the log annotation gateway: it ingests log lines over
// TCP and UDP, runs them through the processor chain, which prefixes the
// configured marker, and writes them to the configured outputs.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	apexlog "github.com/apex/log"
	apexjson "github.com/apex/log/handlers/json"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"logmark/pkg/config"
	"logmark/pkg/control"
	"logmark/pkg/engine"
	"logmark/pkg/ingest"
	"logmark/pkg/logging"
	"logmark/pkg/metrics"
	"logmark/pkg/output"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "logmark: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}

	level, _ := logging.ParseLevel(cfg.Log.Level)
	logging.Setup(os.Stderr, level)
	annotator := cfg.Annotation.Annotator()
	log := logging.New(logging.Component("main"), annotator)

	// Code written against apex/log gets the same markers.
	apexlog.SetHandler(logging.NewApexHandler(annotator, apexjson.New(os.Stderr)))
	if lvl, err := apexlog.ParseLevel(cfg.Log.Level); err == nil {
		apexlog.SetLevel(lvl)
	}

	log.Info("initializing logmark, marker {}", describeMarker(cfg.Annotation))

	buffer, err := engine.NewRingBuffer(cfg.Pipeline.BufferSize)
	if err != nil {
		return fmt.Errorf("creating buffer: %w", err)
	}

	m := metrics.New()
	m.RegisterBuffer(buffer.Usage, buffer.Capacity, buffer.DroppedCount)

	// The chain starts with annotation only; the watcher replaces it when a
	// manifest is published.
	defaults := control.Defaults{
		Annotation: cfg.Annotation,
		BatchSize:  cfg.Pipeline.BatchSize,
		Metrics:    m,
	}
	chain := engine.NewProcessorChain(
		engine.NewAnnotateProcessor("annotate", annotator,
			engine.WithMessageField(cfg.Annotation.MessageField),
			engine.WithAnnotatedCounter(m.Annotated),
		),
	)

	pipeline := engine.NewPipeline(buffer, chain, output.NewConsoleOutput(), engine.Options{
		BatchSize:     cfg.Pipeline.BatchSize,
		FlushInterval: cfg.Pipeline.FlushInterval,
		Metrics:       m,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start Pipeline (Consumer)
	pipeline.Start(ctx)

	g, gctx := errgroup.WithContext(ctx)

	// Start Ingestors (Producers)
	if cfg.Server.TCPPort > 0 {
		tcp := ingest.NewTCPIngestor(fmt.Sprintf(":%d", cfg.Server.TCPPort), buffer)
		g.Go(func() error {
			if err := tcp.Start(gctx); err != nil {
				return fmt.Errorf("tcp ingestor: %w", err)
			}
			return nil
		})
	}
	if cfg.Server.UDPPort > 0 {
		udp := ingest.NewUDPIngestor(fmt.Sprintf(":%d", cfg.Server.UDPPort), buffer)
		g.Go(func() error {
			if err := udp.Start(gctx); err != nil {
				return fmt.Errorf("udp ingestor: %w", err)
			}
			return nil
		})
	}
	if cfg.Server.HTTPPort > 0 {
		g.Go(func() error {
			return m.Serve(gctx, fmt.Sprintf(":%d", cfg.Server.HTTPPort), logging.Component("metrics"))
		})
	}
	if cfg.Redis.Address != "" {
		watcher := control.NewWatcher(cfg.Redis, pipeline, defaults)
		g.Go(func() error {
			return watcher.Start(gctx)
		})
	}

	log.Info("logmark running, press Ctrl+C to stop")
	err = g.Wait()

	// A failing component stops the others; the pipeline drains either way.
	stop()
	log.Info("shutting down, flushing {} buffered entries", buffer.Usage())
	pipeline.Wait()
	log.Info("bye")

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// describeMarker names the marker for the startup log. Message id markers
// differ per entry, so no sample is resolved for them.
func describeMarker(a config.AnnotationConfig) string {
	switch {
	case a.MessageIDs:
		return "per-message id (message_ids enabled)"
	case a.Marker == "":
		return "disabled"
	default:
		return strconv.Quote(a.Marker)
	}
}

// loadConfig reads the config file named by --config and applies the flags
// that were set on top of it.
func loadConfig(args []string) (*config.Config, error) {
	fs := pflag.NewFlagSet("logmark", pflag.ContinueOnError)
	path := fs.StringP("config", "c", "", "path to the YAML config file")
	marker := fs.String("marker", "", "marker prefixed onto every message (empty disables annotation)")
	messageIDs := fs.Bool("message-ids", false, "use a per-message id marker instead of the static one")
	level := fs.String("log-level", "", "log level: debug, info, warn or error")
	tcpPort := fs.Int("tcp-port", 0, "TCP ingest port (0 disables)")
	udpPort := fs.Int("udp-port", 0, "UDP ingest port (0 disables)")
	httpPort := fs.Int("http-port", 0, "metrics port (0 disables)")
	redisAddr := fs.String("redis-addr", "", "Redis address of the control plane (empty disables)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg, err := config.Load(*path)
	if err != nil {
		return nil, err
	}

	if fs.Changed("marker") {
		cfg.Annotation.Marker = *marker
	}
	if fs.Changed("message-ids") {
		cfg.Annotation.MessageIDs = *messageIDs
	}
	if fs.Changed("log-level") {
		cfg.Log.Level = *level
	}
	if fs.Changed("tcp-port") {
		cfg.Server.TCPPort = *tcpPort
	}
	if fs.Changed("udp-port") {
		cfg.Server.UDPPort = *udpPort
	}
	if fs.Changed("http-port") {
		cfg.Server.HTTPPort = *httpPort
	}
	if fs.Changed("redis-addr") {
		cfg.Redis.Address = *redisAddr
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
