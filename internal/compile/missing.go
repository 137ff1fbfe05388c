package compile

import (
	"fmt"

	"github.com/dstolpe/dtaforge/internal/calendar"
	"github.com/dstolpe/dtaforge/internal/metadata"
	"github.com/dstolpe/dtaforge/pkg/dtaforge"
)

// CompileMissing builds the column's tagged missing-range table from its
// declarative missing specification. A column without a missing property
// ends with zero ranges. The table must be complete before labels are
// compiled or cells are encoded for the column.
func (c *Compiler) CompileMissing(col *dtaforge.Column) error {
	missing, ok := c.doc.ColumnProperty(c.root, col.Name, "missing")
	if !ok {
		return nil
	}
	typ, ok := c.doc.Property(missing, "type")
	if !ok {
		return fmt.Errorf("column %q: missing.type not specified: %w",
			col.Name, dtaforge.ErrMalformedMetadata)
	}
	switch {
	case c.doc.TextEquals(typ, "DISCRETE"):
		return c.compileDiscrete(col, missing)
	case c.doc.TextEquals(typ, "RANGE"):
		return c.compileRange(col, missing)
	default:
		return fmt.Errorf("column %q: unknown missing type %q: %w",
			col.Name, c.doc.Text(typ), dtaforge.ErrMalformedMetadata)
	}
}

// compileDiscrete turns each entry of the values array into a one-point
// range. String columns carry no missing tags, so their entries are
// accepted and skipped.
func (c *Compiler) compileDiscrete(col *dtaforge.Column, missing metadata.NodeRef) error {
	values, ok := c.doc.Property(missing, "values")
	if !ok {
		return fmt.Errorf("column %q: missing.values not specified: %w",
			col.Name, dtaforge.ErrMalformedMetadata)
	}
	cur := c.doc.Children(values)
	for {
		ref, ok := cur.Next()
		if !ok {
			return nil
		}
		switch {
		case col.IsDate:
			days, err := calendar.DayCount(c.doc.Text(ref))
			if err != nil {
				return fmt.Errorf("column %q: %w", col.Name, err)
			}
			v := dtaforge.Int32Value(days)
			if _, err := col.AddMissingRange(v, v); err != nil {
				return err
			}
		case col.Type == dtaforge.StorageDouble:
			f, ok := c.doc.Float(ref)
			if !ok {
				return fmt.Errorf("column %q: not a number: %q: %w",
					col.Name, c.doc.Text(ref), dtaforge.ErrBadLiteral)
			}
			v := dtaforge.DoubleValue(f)
			if _, err := col.AddMissingRange(v, v); err != nil {
				return err
			}
		case col.Type == dtaforge.StorageString:
			// Accepted, not tag-annotated.
		default:
			return fmt.Errorf("column %q: unsupported column type %s: %w",
				col.Name, col.Type, dtaforge.ErrTypeMismatch)
		}
	}
}

// compileRange tags the category codes that fall inside the declared
// [low, high] interval or equal the discrete-value bound. The interval
// is a filter over the declared categories, never a stored range: every
// addition is a one-point range at the category's own code, so each
// matching category receives its own tag.
func (c *Compiler) compileRange(col *dtaforge.Column, missing metadata.NodeRef) error {
	low, hasLow := c.doc.Property(missing, "low")
	high, hasHigh := c.doc.Property(missing, "high")
	discrete, hasDiscrete := c.doc.Property(missing, "discrete-value")

	categories, ok := c.doc.ColumnProperty(c.root, col.Name, "categories")
	if !ok {
		if hasLow || hasHigh || hasDiscrete {
			return fmt.Errorf("column %q: range missingness requires categories: %w",
				col.Name, dtaforge.ErrMalformedMetadata)
		}
		return nil
	}
	if hasLow != hasHigh {
		return fmt.Errorf("column %q: missing.low and missing.high must be specified together: %w",
			col.Name, dtaforge.ErrMalformedMetadata)
	}
	if col.Type == dtaforge.StorageString {
		return fmt.Errorf("column %q: range missingness is not defined for string columns: %w",
			col.Name, dtaforge.ErrTypeMismatch)
	}

	var lo, hi, disc dtaforge.Value
	var err error
	if hasLow {
		if lo, err = c.decodeBound(col, low); err != nil {
			return err
		}
		if hi, err = c.decodeBound(col, high); err != nil {
			return err
		}
	}
	if hasDiscrete {
		if disc, err = c.decodeBound(col, discrete); err != nil {
			return err
		}
	}

	cur := c.doc.Children(categories)
	for {
		elem, ok := cur.Next()
		if !ok {
			return nil
		}
		code, okCode := c.doc.Property(elem, "code")
		_, okLabel := c.doc.Property(elem, "label")
		if !okCode || !okLabel {
			return fmt.Errorf("column %q: category needs both code and label: %w",
				col.Name, dtaforge.ErrMalformedMetadata)
		}
		cod, err := c.decodeBound(col, code)
		if err != nil {
			return err
		}
		add := false
		if hasLow && inRange(cod, lo, hi) {
			add = true
		} else if hasDiscrete && cod.Equal(disc) {
			add = true
		}
		if add {
			if _, err := col.AddMissingRange(cod, cod); err != nil {
				return err
			}
		}
	}
}

// decodeBound decodes a category code or range bound under the column's
// date/non-date rule.
func (c *Compiler) decodeBound(col *dtaforge.Column, ref metadata.NodeRef) (dtaforge.Value, error) {
	if col.IsDate {
		days, err := calendar.DayCount(c.doc.Text(ref))
		if err != nil {
			return dtaforge.Value{}, fmt.Errorf("column %q: %w", col.Name, err)
		}
		return dtaforge.Int32Value(days), nil
	}
	f, ok := c.doc.Float(ref)
	if !ok {
		return dtaforge.Value{}, fmt.Errorf("column %q: not a number: %q: %w",
			col.Name, c.doc.Text(ref), dtaforge.ErrBadLiteral)
	}
	return dtaforge.DoubleValue(f), nil
}

// inRange reports lo <= v <= hi over same-typed values.
func inRange(v, lo, hi dtaforge.Value) bool {
	switch v.Type {
	case dtaforge.StorageInt32:
		return v.I32 >= lo.I32 && v.I32 <= hi.I32
	case dtaforge.StorageDouble:
		return v.F64 >= lo.F64 && v.F64 <= hi.F64
	default:
		return false
	}
}
