package engine

import (
	"bytes"
	"errors"
)

// RedactionProcessor replaces occurrences of a target string with a mask.
type RedactionProcessor struct {
	name   string
	target []byte
	mask   []byte
}

func NewRedactionProcessor(name string, target string, mask string) (*RedactionProcessor, error) {
	if target == "" {
		return nil, errors.New("redaction target must not be empty")
	}
	return &RedactionProcessor{
		name:   name,
		target: []byte(target),
		mask:   []byte(mask),
	}, nil
}

func (r *RedactionProcessor) Name() string {
	return r.name
}

func (r *RedactionProcessor) Process(_ *ProcessingContext, entry []byte) ([]byte, bool, error) {
	if !bytes.Contains(entry, r.target) {
		return entry, false, nil
	}
	// Same-length masks are written in place; otherwise ReplaceAll allocates.
	if len(r.target) == len(r.mask) {
		for i := bytes.Index(entry, r.target); i >= 0; {
			copy(entry[i:], r.mask)
			next := bytes.Index(entry[i+len(r.target):], r.target)
			if next < 0 {
				break
			}
			i += len(r.target) + next
		}
		return entry, false, nil
	}
	return bytes.ReplaceAll(entry, r.target, r.mask), false, nil
}
