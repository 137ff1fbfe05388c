// Package compile turns declarative column metadata into resolved
// column descriptors and raw cell text into typed values.
//
// The compiler runs strictly per column: resolve the storage type and
// display format, compile the missing-range table, compile value
// labels, then encode every cell of that column. The missing-range
// table built for a column is read only by that column's label
// compilation and cell encoding, and is complete before either runs.
// Every failure is returned as an error wrapping one of the dtaforge
// sentinel errors; nothing here terminates the process.
package compile
