// Package ir provides the canonical intermediate representation for Fabula.
//
// This package contains type definitions and their serialization only. All
// other internal packages import ir; ir imports nothing internal. This keeps
// the IR as the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Rules are immutable once compiled; nothing mutates a Rule after the
//     compiler returns it.
//   - Attribute values are constrained to the sealed Value tree (null, string,
//     number, bool, list, map). Marshaling is canonical: map keys are emitted
//     in sorted order so equal values always produce equal bytes.
//   - Unknown condition and effect types are preserved, not dropped: the Raw
//     payload keeps the original data so the "unknown passes" policy loses
//     nothing.
//   - Timesteps are logical clocks (int64), never wall-clock timestamps.
package ir
