// Package filesystem abstracts file access for conversion inputs and
// project scaffolding.
//
// Two implementations are provided:
//   - OSFileSystem: the real filesystem
//   - MemoryFileSystem: an in-memory map for tests
package filesystem
