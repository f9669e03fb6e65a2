// Package metrics holds the Prometheus collectors of the gateway and serves
// them over HTTP.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const namespace = "logmark"

// Metrics groups the gateway collectors on a dedicated registry.
type Metrics struct {
	Registry *prometheus.Registry

	Processed    prometheus.Counter
	Dropped      prometheus.Counter
	Annotated    prometheus.Counter
	Bypassed     prometheus.Counter
	ProcessErrs  prometheus.Counter
	OutputErrs   prometheus.Counter
	ChainReloads prometheus.Counter
}

// New creates and registers the collectors.
func New() *Metrics {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		})
	}

	m := &Metrics{
		Registry:     prometheus.NewRegistry(),
		Processed:    counter("entries_processed_total", "Entries that went through the processor chain."),
		Dropped:      counter("entries_dropped_total", "Entries dropped by a processor."),
		Annotated:    counter("entries_annotated_total", "Entries annotated with the marker."),
		Bypassed:     counter("entries_bypassed_total", "Entries forwarded unprocessed while the buffer was nearly full."),
		ProcessErrs:  counter("process_errors_total", "Entries rejected by a processor error."),
		OutputErrs:   counter("output_errors_total", "Batches an output failed to write."),
		ChainReloads: counter("chain_reloads_total", "Processor chain hot swaps."),
	}
	m.Registry.MustRegister(
		m.Processed, m.Dropped, m.Annotated, m.Bypassed,
		m.ProcessErrs, m.OutputErrs, m.ChainReloads,
	)
	return m
}

// RegisterBuffer exposes the ingest buffer state through the given readers.
func (m *Metrics) RegisterBuffer(usage, capacity, dropped func() uint64) {
	m.Registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "buffer_usage",
			Help:      "Entries waiting in the ingest buffer.",
		}, func() float64 { return float64(usage()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "buffer_capacity",
			Help:      "Size of the ingest buffer.",
		}, func() float64 { return float64(capacity()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "buffer_dropped_total",
			Help:      "Entries dropped because the ingest buffer was full.",
		}, func() float64 { return float64(dropped()) }),
	)
}

// Handler returns the /metrics handler for the registry.
func (m *Metrics) Handler(logger zerolog.Logger) http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{
		ErrorLog:      errorLog{logger},
		ErrorHandling: promhttp.ContinueOnError,
	})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, logger zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler(logger))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("metrics endpoint listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics server shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

// errorLog implements promhttp.Logger.
type errorLog struct {
	logger zerolog.Logger
}

func (l errorLog) Println(v ...any) {
	l.logger.Error().Msg(fmt.Sprint(v...))
}
