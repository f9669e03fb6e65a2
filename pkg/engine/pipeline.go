package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"logmark/pkg/logging"
	"logmark/pkg/metrics"
	"logmark/pkg/output"
)

const (
	defaultBatchSize       = 100
	defaultFlushInterval   = 100 * time.Millisecond
	defaultBypassThreshold = 0.80
)

// Options tune a Pipeline. Zero values select the defaults.
type Options struct {
	BatchSize     int
	FlushInterval time.Duration

	// BypassThreshold is the buffer usage ratio above which entries skip the
	// chain, except its bypass processors such as annotation, to drain the
	// buffer faster. Negative disables the bypass.
	BypassThreshold float64

	Metrics *metrics.Metrics
}

// Pipeline connects the Ingest Buffer -> ProcessorChain -> Output.
type Pipeline struct {
	buffer *RingBuffer
	chain  atomic.Pointer[ProcessorChain]      // Hot-swappable chain
	output atomic.Pointer[output.FanOutOutput] // Hot-swappable output

	batchSize     atomic.Int64
	flushInterval time.Duration
	bypass        float64

	metrics *metrics.Metrics
	logger  zerolog.Logger
	wg      sync.WaitGroup
}

func NewPipeline(buf *RingBuffer, chain *ProcessorChain, out output.Output, opts Options) *Pipeline {
	p := &Pipeline{
		buffer:        buf,
		flushInterval: opts.FlushInterval,
		bypass:        opts.BypassThreshold,
		metrics:       opts.Metrics,
		logger:        logging.Component("pipeline"),
	}
	if p.flushInterval <= 0 {
		p.flushInterval = defaultFlushInterval
	}
	if p.bypass == 0 {
		p.bypass = defaultBypassThreshold
	}
	if p.metrics == nil {
		p.metrics = metrics.New()
	}
	if chain == nil {
		chain = NewProcessorChain()
	}

	p.chain.Store(chain)
	p.output.Store(output.NewFanOutOutput(out))
	p.UpdateBatchSize(int64(opts.BatchSize))
	return p
}

// Metrics returns the collectors the pipeline reports to.
func (p *Pipeline) Metrics() *metrics.Metrics {
	return p.metrics
}

// Chain returns the active processor chain.
func (p *Pipeline) Chain() *ProcessorChain {
	return p.chain.Load()
}

// UpdateChain hot-swaps the processor chain safely.
func (p *Pipeline) UpdateChain(chain *ProcessorChain) {
	p.chain.Store(chain)
	p.metrics.ChainReloads.Inc()
	p.logger.Info().Strs("processors", chain.Names()).Msg("processor chain hot-swapped")
}

// UpdateOutput hot-swaps the output provider safely.
func (p *Pipeline) UpdateOutput(out output.Output) {
	fan, ok := out.(*output.FanOutOutput)
	if !ok {
		fan = output.NewFanOutOutput(out)
	}
	p.output.Store(fan)
	p.logger.Info().Int("outputs", fan.Len()).Msg("output provider hot-swapped")
}

// UpdateBatchSize changes the batch size; values below 1 select the default.
func (p *Pipeline) UpdateBatchSize(n int64) {
	if n < 1 {
		n = defaultBatchSize
	}
	p.batchSize.Store(n)
}

// Start launches the worker. It returns immediately; Wait blocks until the
// worker has flushed and exited after ctx is done.
func (p *Pipeline) Start(ctx context.Context) {
	p.logger.Info().
		Int64("batch_size", p.batchSize.Load()).
		Dur("flush_interval", p.flushInterval).
		Msg("starting processing pipeline")
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.worker(ctx)
	}()
}

// Wait blocks until the worker has exited.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

func (p *Pipeline) worker(ctx context.Context) {
	batch := make([][]byte, 0, p.batchSize.Load())
	// Processing runs detached from ctx so the final drain still completes.
	pCtx := NewProcessingContext(context.WithoutCancel(ctx))

	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := p.output.Load().WriteBatch(batch); err != nil {
			p.metrics.OutputErrs.Inc()
			p.logger.Error().Err(err).Int("entries", len(batch)).Msg("output error")
		}
		batch = batch[:0]
	}

	for {
		item := p.buffer.Pop()
		if item == nil {
			select {
			case <-ctx.Done():
				p.drain(pCtx, &batch, flush)
				flush()
				return
			case <-ticker.C:
				flush()
			case <-p.buffer.Ready():
			}
			continue
		}

		if out, ok := p.process(pCtx, item); ok {
			batch = append(batch, out)
		}
		if int64(len(batch)) >= p.batchSize.Load() {
			flush()
		}

		select {
		case <-ticker.C:
			flush()
		default:
		}
	}
}

// drain processes what is left in the buffer at shutdown.
func (p *Pipeline) drain(pCtx *ProcessingContext, batch *[][]byte, flush func()) {
	for item := p.buffer.Pop(); item != nil; item = p.buffer.Pop() {
		if out, ok := p.process(pCtx, item); ok {
			*batch = append(*batch, out)
		}
		if int64(len(*batch)) >= p.batchSize.Load() {
			flush()
		}
	}
}

// process runs one entry through the chain. ok is false when the entry is
// dropped or rejected.
func (p *Pipeline) process(pCtx *ProcessingContext, item []byte) ([]byte, bool) {
	pCtx.Reset()

	// Fail-Open Check (Circuit Breaker): only bypass processors run.
	if p.bypass > 0 {
		usage, capacity := p.buffer.Usage(), p.buffer.Capacity()
		if float64(usage) > float64(capacity)*p.bypass {
			p.metrics.Bypassed.Inc()
			out, err := p.chain.Load().ProcessBypass(pCtx, item)
			if err != nil {
				p.metrics.ProcessErrs.Inc()
				p.logger.Warn().Err(err).Msg("bypass process error, forwarding entry as received")
				return item, true
			}
			return out, true
		}
	}

	processed, drop, err := p.chain.Load().Process(pCtx, item)
	p.metrics.Processed.Inc()
	if err != nil {
		p.metrics.ProcessErrs.Inc()
		p.logger.Warn().Err(err).Str("message_id", pCtx.MessageID).Msg("process error")
		return nil, false
	}
	if drop {
		p.metrics.Dropped.Inc()
		return nil, false
	}
	return processed, true
}
