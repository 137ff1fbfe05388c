// Package sourcemap resolves byte offsets in an input document to
// line/column positions for diagnostics. Metadata navigation works on
// byte-offset spans; this package translates those offsets back into
// the coordinates an editor shows.
package sourcemap

import (
	"fmt"
	"sort"
)

// SourceMap indexes the line starts of one document. Build it once per
// document; Resolve is then a binary search.
type SourceMap struct {
	lineStarts []int
	size       int
}

// New builds a SourceMap over the document text.
func New(src []byte) *SourceMap {
	starts := []int{0}
	for i, b := range src {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &SourceMap{lineStarts: starts, size: len(src)}
}

// Len returns the number of lines in the document.
func (m *SourceMap) Len() int {
	return len(m.lineStarts)
}

// Resolve maps a byte offset to a 1-based line and column. Offsets past
// the end of the document resolve to the position just after the last
// byte, so error offsets from truncated input stay printable.
func (m *SourceMap) Resolve(offset int) (line, col int) {
	if offset < 0 {
		offset = 0
	}
	if offset > m.size {
		offset = m.size
	}
	idx := sort.Search(len(m.lineStarts), func(i int) bool {
		return m.lineStarts[i] > offset
	}) - 1
	return idx + 1, offset - m.lineStarts[idx] + 1
}

// Describe formats an offset as "line L, column C".
func (m *SourceMap) Describe(offset int) string {
	line, col := m.Resolve(offset)
	return fmt.Sprintf("line %d, column %d", line, col)
}
