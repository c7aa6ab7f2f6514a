// Package compiler turns rule source text into canonical ir.Rule values.
//
// Four source syntaxes are supported, selected by an explicit format tag:
//
//   - insimul: bespoke block syntax (rule name { when { ... } then { ... } })
//   - ensemble: JSON with conditions/effects arrays, schema-validated and
//     mapped onto the canonical form with defaulting
//   - kismet: Prolog-style clauses (effect head :- condition body.)
//   - tott: Talk-of-the-Town-style Python class source, extracted
//     heuristically (best-effort and documented as lossy)
//
// Compilation is batch-tolerant: a malformed rule produces a CompileError
// naming the rule and source line, and the remaining rules in the batch
// still compile. Compile returns both the compiled rules and the per-rule
// errors; only an unusable document (unknown format, undecodable JSON)
// fails outright.
package compiler
