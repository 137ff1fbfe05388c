package compile

import (
	"fmt"

	"github.com/dstolpe/dtaforge/internal/metadata"
	"github.com/dstolpe/dtaforge/pkg/dtaforge"
)

// FormatFamily is a column's declared display format family.
type FormatFamily uint8

const (
	FormatUnspecified FormatFamily = iota
	FormatNumber
	FormatPercent
	FormatCurrency
	FormatDate
	FormatTime
	FormatDateTime
)

// String returns the metadata literal for the format family.
func (f FormatFamily) String() string {
	switch f {
	case FormatNumber:
		return "NUMBER"
	case FormatPercent:
		return "PERCENT"
	case FormatCurrency:
		return "CURRENCY"
	case FormatDate:
		return "DATE"
	case FormatTime:
		return "TIME"
	case FormatDateTime:
		return "DATE_TIME"
	default:
		return "UNSPECIFIED"
	}
}

// Compiler compiles one metadata document's columns. It borrows the
// document for its whole lifetime and holds no per-column state; the
// Column handle returned by ResolveColumn is threaded through the
// subsequent phases explicitly.
type Compiler struct {
	doc  *metadata.Document
	root metadata.NodeRef
}

// New creates a Compiler over a parsed metadata document.
func New(doc *metadata.Document) *Compiler {
	if doc == nil {
		panic("metadata document cannot be nil")
	}
	return &Compiler{doc: doc, root: doc.Root()}
}

// ResolveColumn decides a column's storage type and display format from
// its declared logical type and format family. The mapping has no error
// paths: unknown format families fall back to the NUMBER rule, and a
// column not declared numeric is stored as a string.
func (c *Compiler) ResolveColumn(name string, index int) *dtaforge.Column {
	col := &dtaforge.Column{Name: name, Index: index}

	typeNode, ok := c.doc.ColumnProperty(c.root, name, "type")
	if !ok || !c.doc.TextEquals(typeNode, "numeric") {
		col.Type = dtaforge.StorageString
		return col
	}

	switch c.columnFormat(name) {
	case FormatDate:
		col.Type = dtaforge.StorageInt32
		col.Format = "%td"
		col.IsDate = true
	case FormatTime, FormatDateTime:
		col.Type = dtaforge.StorageDouble
		// %tC renders milliseconds since the epoch in coordinated
		// universal time (UTC).
		col.Format = "%tC"
		col.IsDateTime = true
	default:
		// NUMBER, PERCENT, CURRENCY, and anything unrecognized.
		col.Type = dtaforge.StorageDouble
		col.Format = fmt.Sprintf("%%9.%df", c.columnDecimals(name))
	}
	return col
}

// columnFormat reads the column's declared format family.
func (c *Compiler) columnFormat(name string) FormatFamily {
	node, ok := c.doc.ColumnProperty(c.root, name, "format")
	if !ok {
		return FormatUnspecified
	}
	for _, f := range []FormatFamily{
		FormatNumber, FormatPercent, FormatCurrency,
		FormatDate, FormatTime, FormatDateTime,
	} {
		if c.doc.TextEquals(node, f.String()) {
			return f
		}
	}
	return FormatUnspecified
}

// columnDecimals reads the column's decimals count; absent means 0.
func (c *Compiler) columnDecimals(name string) int {
	node, ok := c.doc.ColumnProperty(c.root, name, "decimals")
	if !ok {
		return 0
	}
	n, ok := c.doc.Int(node)
	if !ok {
		return 0
	}
	return n
}
