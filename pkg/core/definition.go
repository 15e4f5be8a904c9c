package core

import (
	"encoding/json"
	"fmt"
	"slices"
)

// InputKind identifies how an input of a block is edited and stored.
type InputKind string

// InputKind constants.
const (
	InputText   InputKind = "text"   // free text, used verbatim
	InputChoice InputKind = "choice" // one of InputSpec.Choices
	InputSlot   InputKind = "slot"   // literal text or one nested block
)

// ParseInputKind maps a configuration string to an InputKind.
// Unknown kinds are treated as text.
func ParseInputKind(s string) InputKind {
	switch InputKind(s) {
	case InputChoice:
		return InputChoice
	case InputSlot:
		return InputSlot
	default:
		return InputText
	}
}

// QuoteMode controls how a literal input value is quoted during generation.
type QuoteMode string

// QuoteMode constants.
const (
	QuoteNone   QuoteMode = ""
	QuoteString QuoteMode = "string" // wrap in double quotes unless quoted or a variable name
)

// ParseQuoteMode maps a configuration string to a QuoteMode. Unknown modes,
// including "none", disable quoting.
func ParseQuoteMode(s string) QuoteMode {
	if QuoteMode(s) == QuoteString {
		return QuoteString
	}
	return QuoteNone
}

// InputSpec describes one named input of a block definition.
type InputSpec struct {
	Name         string    `json:"name"`
	Kind         InputKind `json:"kind"`
	DefaultValue string    `json:"default_value,omitempty"`
	Choices      []string  `json:"choices,omitempty"`
	Quote        QuoteMode `json:"quote,omitempty"`
}

// inputSpecJSON accepts both the current field names and the ones used by
// older definition files (type, default, options).
type inputSpecJSON struct {
	Name         string   `json:"name"`
	Kind         string   `json:"kind"`
	Type         string   `json:"type"`
	DefaultValue *string  `json:"default_value"`
	Default      *string  `json:"default"`
	Choices      []string `json:"choices"`
	Options      []string `json:"options"`
	Quote        *string  `json:"quote"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *InputSpec) UnmarshalJSON(data []byte) error {
	var raw inputSpecJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Name == "" {
		return fmt.Errorf("input spec has no name")
	}

	kind := raw.Kind
	if kind == "" {
		kind = raw.Type
	}

	*s = InputSpec{
		Name:    raw.Name,
		Kind:    ParseInputKind(kind),
		Choices: raw.Choices,
	}
	if len(s.Choices) == 0 {
		s.Choices = raw.Options
	}
	if raw.Quote != nil {
		s.Quote = ParseQuoteMode(*raw.Quote)
	}
	switch {
	case raw.DefaultValue != nil:
		s.DefaultValue = *raw.DefaultValue
	case raw.Default != nil:
		s.DefaultValue = *raw.Default
	}
	return nil
}

// AllowsValue reports whether v is acceptable for this input.
// Only choice inputs with a non-empty choice list restrict values.
func (s InputSpec) AllowsValue(v string) bool {
	if s.Kind != InputChoice || len(s.Choices) == 0 {
		return true
	}
	return slices.Contains(s.Choices, v)
}

// Color is an RGB triple carried through from configuration for display.
type Color [3]uint8

// DefaultElseTemplate is used when a definition has an else body but no else template.
const DefaultElseTemplate = "else:"

// BlockDefinition is the immutable schema shared by all instances of a block type.
type BlockDefinition struct {
	BlockType         string      `json:"-"`
	Category          string      `json:"category,omitempty"`
	Color             *Color      `json:"color,omitempty"`
	Inputs            []InputSpec `json:"inputs"`
	CodeTemplate      string      `json:"code_template,omitempty"`
	ElseTemplate      string      `json:"else_template,omitempty"`
	HasChildren       bool        `json:"has_children,omitempty"`
	HasElseChildren   bool        `json:"has_else_children,omitempty"`
	OutputEnabled     bool        `json:"output_enabled,omitempty"`
	OutputValue       string      `json:"output_value,omitempty"`
	DirectCodeEnabled bool        `json:"direct_code_enabled,omitempty"`
}

// Input returns the spec for the named input.
func (d *BlockDefinition) Input(name string) (InputSpec, bool) {
	for _, in := range d.Inputs {
		if in.Name == name {
			return in, true
		}
	}
	return InputSpec{}, false
}

// ExpressionTemplate returns the template used when the block is consumed as
// a value: OutputValue, or CodeTemplate when no output value is defined.
func (d *BlockDefinition) ExpressionTemplate() string {
	if d.OutputValue != "" {
		return d.OutputValue
	}
	return d.CodeTemplate
}

// ElseLine returns the else template, falling back to DefaultElseTemplate.
func (d *BlockDefinition) ElseLine() string {
	if d.ElseTemplate != "" {
		return d.ElseTemplate
	}
	return DefaultElseTemplate
}

// IsContainer reports whether the block owns at least one body.
func (d *BlockDefinition) IsContainer() bool {
	return d.HasChildren || d.HasElseChildren
}

// Validate checks structural rules of a definition.
func (d *BlockDefinition) Validate() error {
	if d.BlockType == "" {
		return fmt.Errorf("block definition has no block type")
	}
	seen := make(map[string]struct{}, len(d.Inputs))
	for _, in := range d.Inputs {
		if _, dup := seen[in.Name]; dup {
			return fmt.Errorf("block %q: duplicate input %q", d.BlockType, in.Name)
		}
		seen[in.Name] = struct{}{}
	}
	if d.HasElseChildren && !d.HasChildren {
		return fmt.Errorf("block %q: has_else_children requires has_children", d.BlockType)
	}
	return nil
}
