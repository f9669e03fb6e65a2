package engine

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"logmark/pkg/model"
)

// Operator defines the comparison operation for attribute filtering
type Operator string

const (
	OpEquals   Operator = "equals"
	OpContains Operator = "contains"
	OpRegex    Operator = "regex"
)

// wellKnownPaths lists where common OTel attributes are found, in lookup
// order. Attributes not listed here go through genericPaths.
var wellKnownPaths = map[string][]string{
	"service.name":           {"service.name", `resource.attributes.service\.name`, `resourceAttributes.service\.name`, `resource.service\.name`},
	"service.namespace":      {"service.namespace", `resource.attributes.service\.namespace`, `resourceAttributes.service\.namespace`},
	"service.version":        {"service.version", `resource.attributes.service\.version`, `resourceAttributes.service\.version`},
	"deployment.environment": {"deployment.environment", `resource.attributes.deployment\.environment`, `resourceAttributes.deployment\.environment`},
	"http.status_code":       {"http.status_code", `attributes.http\.status_code`, `http\.status_code`},
	"http.method":            {"http.method", `attributes.http\.method`, `http\.method`},
	"http.url":               {"http.url", `attributes.http\.url`, `http\.url`},
	"http.target":            {"http.target", `attributes.http\.target`, `http\.target`},
	"log.level":              {"log.level", "severity", "severityText", "level"},
}

// genericPaths are prefixes tried for any attribute, with the escaped
// attribute name appended.
var genericPaths = []string{
	"",                     // top-level as-is
	"attributes.",          // OTel log attributes
	"resource.attributes.", // OTel resource attributes
	"resourceAttributes.",  // flattened resource attributes
	"body.",                // inside body
}

// AttributeFilterConfig holds configuration for creating an AttributeFilterProcessor
type AttributeFilterConfig struct {
	Name      string
	Attribute string // well-known or custom attribute, searched in the usual places
	Path      string // explicit path using / as separator
	Operator  Operator
	Value     string
}

// AttributeFilterProcessor drops JSON entries whose attribute matches.
// Entries that are not JSON or lack the attribute pass through.
type AttributeFilterProcessor struct {
	name     string
	paths    []string
	operator Operator
	value    string
	regex    *regexp.Regexp
}

// NewAttributeFilterProcessor creates a new attribute filter processor.
// Either Attribute or Path must be specified, not both.
func NewAttributeFilterProcessor(cfg AttributeFilterConfig) (*AttributeFilterProcessor, error) {
	if cfg.Attribute == "" && cfg.Path == "" {
		return nil, fmt.Errorf("either attribute or path must be specified")
	}
	if cfg.Attribute != "" && cfg.Path != "" {
		return nil, fmt.Errorf("cannot specify both attribute and path")
	}

	p := &AttributeFilterProcessor{
		name:     cfg.Name,
		operator: cfg.Operator,
		value:    cfg.Value,
	}
	if p.operator == "" {
		p.operator = OpEquals
	}

	switch p.operator {
	case OpEquals, OpContains:
	case OpRegex:
		re, err := regexp.Compile(cfg.Value)
		if err != nil {
			return nil, fmt.Errorf("invalid regex pattern: %w", err)
		}
		p.regex = re
	default:
		return nil, fmt.Errorf("unknown operator %q", cfg.Operator)
	}

	if cfg.Path != "" {
		p.paths = []string{convertToGjsonPath(cfg.Path)}
	} else {
		p.paths = searchPaths(cfg.Attribute)
	}
	return p, nil
}

func searchPaths(attr string) []string {
	paths := append([]string(nil), wellKnownPaths[attr]...)
	escaped := model.EscapeKey(attr)
	for _, prefix := range genericPaths {
		paths = append(paths, prefix+escaped)
	}
	return paths
}

func (p *AttributeFilterProcessor) Name() string {
	return p.name
}

// Process reports drop=true when the attribute is found and matches.
func (p *AttributeFilterProcessor) Process(_ *ProcessingContext, entry []byte) ([]byte, bool, error) {
	if !gjson.ValidBytes(entry) {
		return entry, false, nil
	}
	for _, path := range p.paths {
		if value := gjson.GetBytes(entry, path); value.Exists() {
			return entry, p.matchValue(value.String()), nil
		}
	}
	return entry, false, nil
}

func (p *AttributeFilterProcessor) matchValue(v string) bool {
	switch p.operator {
	case OpEquals:
		return v == p.value
	case OpContains:
		return strings.Contains(v, p.value)
	case OpRegex:
		return p.regex.MatchString(v)
	default:
		return false
	}
}

// convertToGjsonPath converts a path using / separators into a gjson path.
// Example: "resource/attributes/service.name" -> "resource.attributes.service\.name"
func convertToGjsonPath(userPath string) string {
	parts := strings.Split(userPath, "/")
	for i, part := range parts {
		parts[i] = model.EscapeKey(part)
	}
	return strings.Join(parts, ".")
}
