// Package seed loads CUE-authored world seeds.
//
// A seed declares a world, its characters, zones, and grammars in CUE; the
// loader validates the value and converts it into store-ready records. The
// embedded default seed provides a small demonstration world and the stock
// name grammar.
package seed
