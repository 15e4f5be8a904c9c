// Package core defines the shared language of the pyblocks system.
//
// This package contains:
//   - Block definitions (BlockDefinition, InputSpec, InputKind)
//   - Presentation data carried through from configuration (Color)
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
