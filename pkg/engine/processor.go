package engine

// Processor transforms, annotates or filters log entries.
type Processor interface {
	// Process applies logic to the entry.
	// It returns the (potentially modified) entry, a bool indicating if the
	// entry should be DROPPED, and any error. If drop is true, the chain stops
	// processing this entry.
	// The returned slice may alias entry; implementations must not modify
	// entry in place when the result length differs.
	Process(ctx *ProcessingContext, entry []byte) ([]byte, bool, error)

	// Name returns the identifier of the processor (for metrics/logging).
	Name() string
}

// BypassProcessor is a Processor that still runs when the pipeline skips the
// chain under load. Bypass processors must not drop entries.
type BypassProcessor interface {
	Processor
	RunOnBypass() bool
}
