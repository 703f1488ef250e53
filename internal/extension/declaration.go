package extension

import (
	"fmt"
	"strings"
)

// AttachPoint names the parent extension and the input slot on that parent a
// declaration wants to be attached to.
type AttachPoint struct {
	ID    string `json:"id" yaml:"id"`
	Input string `json:"input" yaml:"input"`
}

// IsZero reports whether the attach point is unset.
func (p AttachPoint) IsZero() bool {
	return p.ID == "" && p.Input == ""
}

func (p AttachPoint) String() string {
	if p.IsZero() {
		return ""
	}
	return p.ID + "/" + p.Input
}

func (p AttachPoint) normalized() AttachPoint {
	return AttachPoint{
		ID:    strings.TrimSpace(p.ID),
		Input: strings.TrimSpace(p.Input),
	}
}

// Declaration is a single extension record as handed to the graph resolver.
//
// Only ID and AttachTo are structural. Disabled, Output and Config are carried
// through as data, and Source records where the declaration was loaded from.
type Declaration struct {
	ID       string         `json:"id" yaml:"id"`
	AttachTo AttachPoint    `json:"attachTo" yaml:"attach_to"`
	Disabled bool           `json:"disabled,omitempty" yaml:"disabled,omitempty"`
	Output   []string       `json:"output,omitempty" yaml:"output,omitempty"`
	Config   map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
	Source   string         `json:"-" yaml:"-"`
}

// Clone returns a copy that shares no slices or maps with the receiver.
func (d Declaration) Clone() Declaration {
	clone := d
	if len(d.Output) > 0 {
		clone.Output = make([]string, len(d.Output))
		copy(clone.Output, d.Output)
	}
	if len(d.Config) > 0 {
		clone.Config = make(map[string]any, len(d.Config))
		for key, value := range d.Config {
			clone.Config[key] = value
		}
	}
	return clone
}

// Normalized returns a trimmed, copy-on-write variant of the declaration.
func (d Declaration) Normalized() Declaration {
	clone := Declaration{
		ID:       strings.TrimSpace(d.ID),
		AttachTo: d.AttachTo.normalized(),
		Disabled: d.Disabled,
		Source:   d.Source,
	}
	if len(d.Output) > 0 {
		clone.Output = make([]string, 0, len(d.Output))
		for _, name := range d.Output {
			clone.Output = append(clone.Output, strings.TrimSpace(name))
		}
	}
	if len(d.Config) > 0 {
		clone.Config = make(map[string]any, len(d.Config))
		for key, value := range d.Config {
			trimmed := strings.TrimSpace(key)
			if trimmed == "" {
				continue
			}
			clone.Config[trimmed] = value
		}
	}
	return clone
}

// Validate ensures the declaration has a usable identity and attach point.
func (d Declaration) Validate() error {
	normalized := d.Normalized()
	if normalized.ID == "" {
		return fmt.Errorf("extension: id is required")
	}
	if err := validateID(normalized.ID); err != nil {
		return fmt.Errorf("extension %s: %w", normalized.ID, err)
	}
	attach := normalized.AttachTo
	switch {
	case attach.ID == "" && attach.Input != "":
		return fmt.Errorf("extension %s: attach_to.id is required when input is set", normalized.ID)
	case attach.ID != "" && attach.Input == "":
		return fmt.Errorf("extension %s: attach_to.input is required when id is set", normalized.ID)
	}
	seen := make(map[string]struct{}, len(normalized.Output))
	for idx, name := range normalized.Output {
		if name == "" {
			return fmt.Errorf("extension %s: output[%d]: name is required", normalized.ID, idx)
		}
		if _, exists := seen[name]; exists {
			return fmt.Errorf("extension %s: output[%d]: duplicate output %s", normalized.ID, idx, name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

func validateID(id string) error {
	if strings.ContainsAny(id, " \t\r\n") {
		return fmt.Errorf("id %q contains whitespace", id)
	}
	if strings.ContainsAny(id, "<>/") {
		return fmt.Errorf("id %q contains one of the reserved characters <>/", id)
	}
	return nil
}
