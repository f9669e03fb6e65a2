package engine

import (
	"bytes"
)

// FilterProcessor drops entries containing any of its block words.
type FilterProcessor struct {
	name       string
	blockBytes [][]byte // Pre-converted to bytes for zero-alloc comparison
}

func NewFilterProcessor(name string, blockWords []string) *FilterProcessor {
	bb := make([][]byte, 0, len(blockWords))
	for _, w := range blockWords {
		// An empty word would match every entry.
		if w == "" {
			continue
		}
		bb = append(bb, []byte(w))
	}
	return &FilterProcessor{
		name:       name,
		blockBytes: bb,
	}
}

func (f *FilterProcessor) Name() string {
	return f.name
}

func (f *FilterProcessor) Process(_ *ProcessingContext, entry []byte) ([]byte, bool, error) {
	for _, word := range f.blockBytes {
		if bytes.Contains(entry, word) {
			return entry, true, nil // DROP
		}
	}
	return entry, false, nil
}
