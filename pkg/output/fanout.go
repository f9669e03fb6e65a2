package output

import (
	"errors"
	"sync"
)

// FanOutOutput writes to multiple outputs in parallel.
type FanOutOutput struct {
	outputs []Output
}

func NewFanOutOutput(outputs ...Output) *FanOutOutput {
	return &FanOutOutput{
		outputs: outputs,
	}
}

// Len returns the number of outputs.
func (f *FanOutOutput) Len() int {
	return len(f.outputs)
}

// WriteBatch returns the joined errors of every failed output.
func (f *FanOutOutput) WriteBatch(entries [][]byte) error {
	if len(f.outputs) == 1 {
		return f.outputs[0].WriteBatch(entries)
	}

	var wg sync.WaitGroup
	errs := make([]error, len(f.outputs))

	for i, out := range f.outputs {
		wg.Add(1)
		go func(idx int, o Output) {
			defer wg.Done()
			errs[idx] = o.WriteBatch(entries)
		}(i, out)
	}
	wg.Wait()

	return errors.Join(errs...)
}
