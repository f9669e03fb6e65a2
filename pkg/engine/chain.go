package engine

// ProcessorChain manages a sequential list of processors.
// A chain is immutable once built; the pipeline swaps whole chains.
type ProcessorChain struct {
	processors []Processor
	bypass     []Processor // subset run by ProcessBypass, in order
}

// NewProcessorChain creates a chain with the given list of processors.
func NewProcessorChain(processors ...Processor) *ProcessorChain {
	c := &ProcessorChain{
		processors: processors,
	}
	for _, p := range processors {
		if bp, ok := p.(BypassProcessor); ok && bp.RunOnBypass() {
			c.bypass = append(c.bypass, p)
		}
	}
	return c
}

// Names lists the processors in order.
func (c *ProcessorChain) Names() []string {
	names := make([]string, len(c.processors))
	for i, p := range c.processors {
		names[i] = p.Name()
	}
	return names
}

// Len returns the number of processors.
func (c *ProcessorChain) Len() int {
	return len(c.processors)
}

// Process runs the entry through all processors in the chain.
// It stops if a processor returns drop=true or an error.
func (c *ProcessorChain) Process(ctx *ProcessingContext, entry []byte) ([]byte, bool, error) {
	var drop bool
	var err error

	for _, p := range c.processors {
		entry, drop, err = p.Process(ctx, entry)
		if err != nil {
			return entry, false, &ProcessError{Processor: p.Name(), Err: err}
		}
		if drop {
			return entry, true, nil
		}
	}

	return entry, false, nil
}

// ProcessBypass runs only the bypass processors. Drop results are ignored.
func (c *ProcessorChain) ProcessBypass(ctx *ProcessingContext, entry []byte) ([]byte, error) {
	var err error
	for _, p := range c.bypass {
		entry, _, err = p.Process(ctx, entry)
		if err != nil {
			return entry, &ProcessError{Processor: p.Name(), Err: err}
		}
	}
	return entry, nil
}
