package definitions

import (
	_ "embed"
)

//go:embed builtin/block_definitions.json
var builtinDefinitions []byte

//go:embed builtin/block_capabilities.json
var builtinCapabilities []byte

// BuiltinDefinitionsJSON returns the embedded block definitions document.
func BuiltinDefinitionsJSON() []byte {
	return append([]byte(nil), builtinDefinitions...)
}

// BuiltinCapabilitiesJSON returns the embedded capabilities document.
func BuiltinCapabilitiesJSON() []byte {
	return append([]byte(nil), builtinCapabilities...)
}
