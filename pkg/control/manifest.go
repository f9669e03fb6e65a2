package control

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/jsonc"

	"logmark/pkg/config"
	"logmark/pkg/engine"
	"logmark/pkg/metrics"
	"logmark/pkg/output"
)

var ErrNoPipelines = errors.New("manifest has no pipelines")

// Manifest is the pipeline definition stored in Redis.
type Manifest struct {
	Version    string           `json:"version"`
	Annotation *AnnotationRule  `json:"annotation,omitempty"`
	Pipelines  []PipelineConfig `json:"pipelines"`
}

// AnnotationRule overrides the configured annotation. A nil Marker keeps the
// configured marker mode; a set Marker replaces it, message ids included,
// and an empty one disables annotation.
type AnnotationRule struct {
	Marker       *string `json:"marker,omitempty"`
	MessageField string  `json:"message_field,omitempty"`
	MessageIDs   bool    `json:"message_ids,omitempty"`
}

type PipelineConfig struct {
	Name       string          `json:"name"`
	Processors []ProcessorRule `json:"processors"`
	Outputs    []OutputTarget  `json:"outputs"`
	BatchSize  int             `json:"batch_size"`
}

type ProcessorRule struct {
	ID     string            `json:"id"`
	Type   string            `json:"type"`
	Params map[string]string `json:"params"`
}

type OutputTarget struct {
	Type        string            `json:"type"`
	URL         string            `json:"url"`
	Headers     map[string]string `json:"headers"`
	Compression string            `json:"compression"` // http only: none, gzip or zstd
}

// ParseManifest decodes a manifest. Comments and trailing commas are
// accepted.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(jsonc.ToJSON(data), &m); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	return &m, nil
}

// Defaults are the local settings a manifest is applied over.
type Defaults struct {
	Annotation config.AnnotationConfig
	BatchSize  int

	// Metrics, when set, receives the annotated entry count.
	Metrics *metrics.Metrics
}

// Build is a pipeline setup ready to be swapped in.
type Build struct {
	Chain     *engine.ProcessorChain
	Output    *output.FanOutOutput
	BatchSize int64
}

// BuildPipeline turns the first pipeline of m into processors and outputs.
// Any invalid rule fails the whole build so a bad manifest never replaces a
// working chain. When m has no annotate rule, an annotate processor is
// appended so every entry leaving the chain is annotated.
func BuildPipeline(m *Manifest, d Defaults) (*Build, error) {
	if m == nil || len(m.Pipelines) == 0 {
		return nil, ErrNoPipelines
	}
	// Only the first pipeline is served; one gateway runs one pipeline.
	cfg := m.Pipelines[0]

	annotation := d.Annotation
	if r := m.Annotation; r != nil {
		// An explicit marker replaces the local marker mode entirely.
		if r.Marker != nil {
			annotation.Marker = *r.Marker
			annotation.MessageIDs = r.MessageIDs
		} else if r.MessageIDs {
			annotation.MessageIDs = true
		}
		if r.MessageField != "" {
			annotation.MessageField = r.MessageField
		}
	}

	var errs []error
	var processors []engine.Processor
	annotated := false
	for i, rule := range cfg.Processors {
		if rule.ID == "" {
			rule.ID = fmt.Sprintf("%s_%d", rule.Type, i)
		}
		proc, err := buildProcessor(rule, annotation, d.Metrics)
		if err != nil {
			errs = append(errs, fmt.Errorf("processor %s: %w", rule.ID, err))
			continue
		}
		if rule.Type == "annotate" {
			annotated = true
		}
		processors = append(processors, proc)
	}
	if !annotated {
		processors = append(processors, newAnnotate("annotate", annotation, d.Metrics))
	}

	// Default to Console if none specified
	var outputs []output.Output
	if len(cfg.Outputs) == 0 {
		outputs = append(outputs, output.NewConsoleOutput())
	}
	for i, target := range cfg.Outputs {
		out, err := buildOutput(target)
		if err != nil {
			errs = append(errs, fmt.Errorf("output %d: %w", i, err))
			continue
		}
		outputs = append(outputs, out)
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	batch := int64(cfg.BatchSize)
	if batch < 1 {
		batch = int64(d.BatchSize)
	}
	return &Build{
		Chain:     engine.NewProcessorChain(processors...),
		Output:    output.NewFanOutOutput(outputs...),
		BatchSize: batch,
	}, nil
}

func buildProcessor(rule ProcessorRule, annotation config.AnnotationConfig, m *metrics.Metrics) (engine.Processor, error) {
	switch rule.Type {
	case "filter":
		// Params: value, or values as a comma separated list.
		words := strings.Split(rule.Params["values"], ",")
		words = append(words, rule.Params["value"])
		return engine.NewFilterProcessor(rule.ID, words), nil
	case "redact":
		// Params: pattern, replacement
		return engine.NewRedactionProcessor(rule.ID, rule.Params["pattern"], rule.Params["replacement"])
	case "attribute_filter":
		// Params: attribute OR path, operator, value
		return engine.NewAttributeFilterProcessor(engine.AttributeFilterConfig{
			Name:      rule.ID,
			Attribute: rule.Params["attribute"],
			Path:      rule.Params["path"],
			Operator:  engine.Operator(rule.Params["operator"]),
			Value:     rule.Params["value"],
		})
	case "annotate":
		// Params: marker, message_field; both default to the annotation block.
		if marker, ok := rule.Params["marker"]; ok {
			annotation.Marker = marker
			annotation.MessageIDs = false
		}
		if field := rule.Params["message_field"]; field != "" {
			annotation.MessageField = field
		}
		return newAnnotate(rule.ID, annotation, m), nil
	default:
		return nil, fmt.Errorf("unknown processor type %q", rule.Type)
	}
}

func newAnnotate(name string, annotation config.AnnotationConfig, m *metrics.Metrics) *engine.AnnotateProcessor {
	opts := []engine.AnnotateOption{engine.WithMessageField(annotation.MessageField)}
	if m != nil {
		opts = append(opts, engine.WithAnnotatedCounter(m.Annotated))
	}
	return engine.NewAnnotateProcessor(name, annotation.Annotator(), opts...)
}

func buildOutput(target OutputTarget) (output.Output, error) {
	switch target.Type {
	case "console":
		return output.NewConsoleOutput(), nil
	case "http":
		if target.URL == "" {
			return nil, errors.New("http output requires a url")
		}
		c, err := output.ParseCompression(target.Compression)
		if err != nil {
			return nil, err
		}
		return output.NewHTTPOutput(target.URL, target.Headers, output.WithCompression(c)), nil
	default:
		return nil, fmt.Errorf("unknown output type %q", target.Type)
	}
}
