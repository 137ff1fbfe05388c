// Package checksum provides input-file hashing for run manifests.
//
// Two digests are computed per input:
//
//   - Raw checksum: hash of the exact file bytes (detects all changes)
//   - Normalized checksum: hash after stripping a UTF-8 byte-order mark
//     and normalizing line endings to LF (identifies the same logical
//     input across platforms and editors)
//
// A conversion run records both digests for the metadata document and
// the data file, so downstream consumers can tell whether two runs saw
// the same inputs.
//
// # Thread Safety
//
// SHA256 is safe for concurrent use by multiple goroutines.
package checksum
