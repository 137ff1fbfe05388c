package compile

import (
	"fmt"

	"github.com/dstolpe/dtaforge/internal/calendar"
	"github.com/dstolpe/dtaforge/pkg/dtaforge"
)

// CompileLabels emits one Label per declared category, re-testing each
// decoded code against the column's compiled missing ranges. The column's
// missing-range table must be complete before this runs. Labels are
// pushed through emit immediately; no label is withheld when a range
// match fails, the match only decides the implied tag.
func (c *Compiler) CompileLabels(col *dtaforge.Column, emit func(dtaforge.Label) error) error {
	categories, ok := c.doc.ColumnProperty(c.root, col.Name, "categories")
	if !ok {
		return nil
	}
	cur := c.doc.Children(categories)
	for {
		elem, ok := cur.Next()
		if !ok {
			return nil
		}
		code, okCode := c.doc.Property(elem, "code")
		labelNode, okLabel := c.doc.Property(elem, "label")
		if !okCode || !okLabel {
			return fmt.Errorf("column %q: category needs both code and label: %w",
				col.Name, dtaforge.ErrMalformedMetadata)
		}
		text := c.doc.Text(labelNode)

		var v dtaforge.Value
		switch {
		case col.IsDate:
			days, err := calendar.DayCount(c.doc.Text(code))
			if err != nil {
				return fmt.Errorf("column %q: %w", col.Name, err)
			}
			v = labelValue(col, dtaforge.Int32Value(days))
		case col.Type == dtaforge.StorageDouble:
			f, ok := c.doc.Float(code)
			if !ok {
				return fmt.Errorf("column %q: not a number: %q: %w",
					col.Name, c.doc.Text(code), dtaforge.ErrBadLiteral)
			}
			v = labelValue(col, dtaforge.DoubleValue(f))
		case col.Type == dtaforge.StorageString:
			// String categories are labeled but never tag-annotated.
			v = dtaforge.StringValue(c.doc.Text(code))
		default:
			return fmt.Errorf("column %q: unsupported column type %s for value label: %w",
				col.Name, col.Type, dtaforge.ErrTypeMismatch)
		}

		if err := emit(dtaforge.Label{Column: col.Name, Code: v, Text: text}); err != nil {
			return err
		}
	}
}

// labelValue scans the column's missing ranges for the decoded code and
// attaches the first matching range's tag. Ranges of a different type
// than the code are skipped rather than rejected; the label keeps its
// payload either way.
func labelValue(col *dtaforge.Column, v dtaforge.Value) dtaforge.Value {
	for _, r := range col.MissingRanges() {
		if r.Lo.Type != v.Type {
			continue
		}
		if inRange(v, r.Lo, r.Hi) {
			return v.Tagged(r.Tag)
		}
	}
	return v
}
