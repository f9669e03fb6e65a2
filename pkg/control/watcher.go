// Package control applies pipeline manifests published through Redis to a
// running pipeline.
package control

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"logmark/pkg/config"
	"logmark/pkg/engine"
	"logmark/pkg/logging"
	"logmark/pkg/output"
)

// Target receives rebuilt pipeline parts. *engine.Pipeline implements it.
type Target interface {
	UpdateChain(chain *engine.ProcessorChain)
	UpdateOutput(out output.Output)
	UpdateBatchSize(n int64)
}

// Watcher loads the manifest from Redis at start and again on every update
// signal.
type Watcher struct {
	redisClient *redis.Client
	cfg         config.RedisConfig
	target      Target
	defaults    Defaults
	logger      zerolog.Logger
}

func NewWatcher(cfg config.RedisConfig, target Target, defaults Defaults) *Watcher {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &Watcher{
		redisClient: rdb,
		cfg:         cfg,
		target:      target,
		defaults:    defaults,
		logger:      logging.Component("control"),
	}
}

// Start loads the current manifest and then follows the update channel until
// ctx is done. Blocking call. A failed load keeps the running pipeline.
func (w *Watcher) Start(ctx context.Context) error {
	defer w.redisClient.Close()
	w.logger.Info().
		Str("key", w.cfg.ConfigKey).
		Str("channel", w.cfg.UpdateChannel).
		Msg("starting config watcher")

	if err := w.Reload(ctx); err != nil {
		w.logger.Warn().Err(err).Msg("initial config load failed")
	}

	pubsub := w.redisClient.Subscribe(ctx, w.cfg.UpdateChannel)
	defer pubsub.Close()
	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			w.logger.Info().Str("payload", msg.Payload).Msg("received update signal")
			if err := w.Reload(ctx); err != nil {
				w.logger.Warn().Err(err).Msg("config reload failed")
			}
		}
	}
}

// Reload fetches the manifest and applies it. A missing key is not an error.
func (w *Watcher) Reload(ctx context.Context) error {
	val, err := w.redisClient.Get(ctx, w.cfg.ConfigKey).Bytes()
	if errors.Is(err, redis.Nil) {
		w.logger.Info().Msg("no config found in Redis, keeping current state")
		return nil
	}
	if err != nil {
		return fmt.Errorf("fetching config: %w", err)
	}

	manifest, err := ParseManifest(val)
	if err != nil {
		return err
	}
	return Apply(manifest, w.defaults, w.target)
}

// Apply builds the manifest and swaps the result into target.
func Apply(m *Manifest, d Defaults, target Target) error {
	build, err := BuildPipeline(m, d)
	if err != nil {
		return err
	}
	target.UpdateChain(build.Chain)
	target.UpdateOutput(build.Output)
	target.UpdateBatchSize(build.BatchSize)
	return nil
}
