// Package files groups file-related functionality.
//
// The filesystem sub-package provides the abstraction the conversion
// service reads its metadata document and CSV data through, with an OS
// implementation for the CLI and an in-memory implementation for tests.
package files
