package definitions

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/pyblocks/internal/template"
	"github.com/leapstack-labs/pyblocks/pkg/core"
)

// ParseDefinitions decodes a block definitions document, keeping the order
// in which block types appear. Entries that fail to decode or validate are
// logged and skipped; only a document that is not a JSON object is an error.
func ParseDefinitions(data []byte, logger *slog.Logger) ([]*core.BlockDefinition, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to parse definitions: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("failed to parse definitions: expected a JSON object")
	}

	var defs []*core.BlockDefinition
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("failed to parse definitions: %w", err)
		}
		blockType, _ := keyTok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("failed to parse definitions: %w", err)
		}

		def, err := decodeDefinition(blockType, raw)
		if err != nil {
			logger.Warn("skipping block definition",
				slog.String("block_type", blockType),
				slog.String("error", err.Error()))
			continue
		}
		for _, msg := range TemplateProblems(def) {
			logger.Warn("block definition template problem",
				slog.String("block_type", blockType),
				slog.String("problem", msg))
		}
		defs = append(defs, def)
	}

	return defs, nil
}

func decodeDefinition(blockType string, raw json.RawMessage) (*core.BlockDefinition, error) {
	var def core.BlockDefinition
	if err := json.Unmarshal(raw, &def); err != nil {
		return nil, err
	}
	def.BlockType = blockType
	if err := def.Validate(); err != nil {
		return nil, err
	}
	if err := applyLegacyQuoting(&def, raw); err != nil {
		return nil, err
	}
	return &def, nil
}

// legacyQuoted lists the inputs that older definition files relied on being
// quoted implicitly: a print message and an input prompt.
var legacyQuoted = map[string]string{
	"Print": "message",
	"Input": "prompt",
}

// applyLegacyQuoting turns on string quoting for the legacy inputs when the
// definition does not say otherwise.
func applyLegacyQuoting(def *core.BlockDefinition, raw json.RawMessage) error {
	name, ok := legacyQuoted[def.BlockType]
	if !ok {
		return nil
	}
	var declared struct {
		Inputs []struct {
			Name  string  `json:"name"`
			Quote *string `json:"quote"`
		} `json:"inputs"`
	}
	if err := json.Unmarshal(raw, &declared); err != nil {
		return err
	}
	for i, in := range declared.Inputs {
		if in.Name == name && in.Quote == nil && i < len(def.Inputs) {
			def.Inputs[i].Quote = core.QuoteString
		}
	}
	return nil
}

// TemplateProblems lists issues that do not disqualify a definition but will
// surface during generation: malformed templates and placeholders that name
// no input.
func TemplateProblems(def *core.BlockDefinition) []string {
	var problems []string
	check := func(field, src string) {
		if src == "" {
			return
		}
		tmpl, err := template.Lookup(src, def.BlockType)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", field, err))
			return
		}
		for _, name := range tmpl.Placeholders() {
			if _, ok := def.Input(name); !ok {
				problems = append(problems, fmt.Sprintf("%s references unknown input %q", field, name))
			}
		}
	}
	check("code_template", def.CodeTemplate)
	check("output_value", def.OutputValue)
	check("else_template", def.ElseTemplate)
	return problems
}
