// Package nesting decides which block types may be placed into a given
// input slot of another block type.
//
// Rules come from the capabilities document:
//
//	{"nesting_rules": {"Print": {"message": {"allowed": [], "denied": ["If"]}}}}
//
// A denied type is always rejected. An empty allowed list means any type is
// accepted. Block types and inputs without an entry are unrestricted.
package nesting

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sort"
)

// Rule is the allow/deny pair for one (parent type, input) slot.
type Rule struct {
	Allowed []string `json:"allowed"`
	Denied  []string `json:"denied"`
}

// Permits reports whether childType may occupy a slot governed by r.
func (r Rule) Permits(childType string) bool {
	if slices.Contains(r.Denied, childType) {
		return false
	}
	return len(r.Allowed) == 0 || slices.Contains(r.Allowed, childType)
}

// Rules is an immutable nesting rules table. The zero value and a nil *Rules
// permit everything.
type Rules struct {
	byParent map[string]map[string]Rule
}

// New builds a rules table from a parent type -> input -> Rule mapping.
// The mapping is copied.
func New(m map[string]map[string]Rule) *Rules {
	r := &Rules{byParent: make(map[string]map[string]Rule, len(m))}
	for parent, inputs := range m {
		cp := make(map[string]Rule, len(inputs))
		for input, rule := range inputs {
			cp[input] = Rule{
				Allowed: slices.Clone(rule.Allowed),
				Denied:  slices.Clone(rule.Denied),
			}
		}
		r.byParent[parent] = cp
	}
	return r
}

// capabilitiesDocument is the on-disk shape of the capabilities file.
type capabilitiesDocument struct {
	NestingRules map[string]map[string]json.RawMessage `json:"nesting_rules"`
}

// Parse decodes a capabilities document. Entries that do not decode as a
// Rule are logged and treated as unrestricted; only a document that is not a
// JSON object is an error.
func Parse(data []byte, logger *slog.Logger) (*Rules, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var doc capabilitiesDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse capabilities: %w", err)
	}

	m := make(map[string]map[string]Rule, len(doc.NestingRules))
	for parent, inputs := range doc.NestingRules {
		rules := make(map[string]Rule, len(inputs))
		for input, raw := range inputs {
			var rule Rule
			if err := json.Unmarshal(raw, &rule); err != nil {
				logger.Warn("ignoring malformed nesting rule",
					slog.String("block_type", parent),
					slog.String("input", input),
					slog.String("error", err.Error()))
				continue
			}
			rules[input] = rule
		}
		m[parent] = rules
	}
	return &Rules{byParent: m}, nil
}

// MarshalJSON encodes the table back into the capabilities document shape.
func (r *Rules) MarshalJSON() ([]byte, error) {
	out := struct {
		NestingRules map[string]map[string]Rule `json:"nesting_rules"`
	}{NestingRules: map[string]map[string]Rule{}}
	if r != nil {
		for parent, inputs := range r.byParent {
			out.NestingRules[parent] = inputs
		}
	}
	return json.Marshal(out)
}

// For returns the rule for the (parent, input) slot. Missing entries yield
// an empty, unrestricted rule.
func (r *Rules) For(parentType, inputName string) Rule {
	if r == nil {
		return Rule{}
	}
	return r.byParent[parentType][inputName]
}

// IsAllowed reports whether childType may be nested in the inputName slot of
// a parentType block. It never fails: unknown types are unrestricted.
func (r *Rules) IsAllowed(parentType, inputName, childType string) bool {
	return r.For(parentType, inputName).Permits(childType)
}

// Candidates filters types down to those permitted in the slot, sorted.
func (r *Rules) Candidates(parentType, inputName string, types []string) []string {
	rule := r.For(parentType, inputName)
	out := make([]string, 0, len(types))
	for _, t := range types {
		if rule.Permits(t) {
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}

// Len returns the number of parent types that carry rules.
func (r *Rules) Len() int {
	if r == nil {
		return 0
	}
	return len(r.byParent)
}
