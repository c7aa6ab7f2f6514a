// Package store provides durable SQLite storage for worlds, rule sets,
// characters, grammars, and truths.
//
// The engine itself never touches the store; callers load rules, characters,
// and grammars at run start, hand them to the engine, and persist the truths
// the engine produced after stepping. Rules and grammars are either
// world-scoped or base (global, shared by every world); base records use the
// empty world ID.
package store
