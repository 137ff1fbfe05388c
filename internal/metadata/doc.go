// Package metadata provides read-only navigation over a parsed column
// metadata document.
//
// The document is tokenized once into a flat pre-order sequence of
// nodes, each addressed by its byte range in the original text. All
// lookups return absent results rather than errors: absence of a
// property is a normal, frequently-tested outcome. Components above
// this package never touch the raw token sequence directly.
package metadata
