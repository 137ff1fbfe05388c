package dtaforge

import "context"

// Sink receives the compiled output of a conversion run. The binary file
// writers for DTA/SAV and friends sit behind this interface; so do the
// inspection and relational sinks shipped with dtaforge.
//
// Call order is guaranteed by the converter: Begin once, then for each
// column WriteColumn followed by that column's WriteLabel calls, then
// WriteValue for every (row, column) cell, then Close. A column's labels
// are written only after its missing ranges are complete, so sinks may
// rely on Column.MissingRanges being final when labels arrive.
//
// No partial-output guarantee is made when the conversion aborts; sinks
// must tolerate Close after an incomplete run.
type Sink interface {
	// Begin starts a dataset. Implementations allocate whatever output
	// state they need (open files, create tables).
	Begin(ctx context.Context, info DatasetInfo) error

	// WriteColumn emits a resolved column descriptor.
	WriteColumn(ctx context.Context, col *Column) error

	// WriteLabel emits one value label for the named column.
	WriteLabel(ctx context.Context, label Label) error

	// WriteValue emits one encoded cell. rowIndex is the zero-based row
	// position supplied by the caller driving the conversion.
	WriteValue(ctx context.Context, rowIndex int, col *Column, value Value) error

	// Close flushes and releases the sink. Safe to call after a failed
	// run.
	Close(ctx context.Context) error
}
