package metadata

import "strconv"

// Absent is the NodeRef returned by failed lookups. It resolves to a
// KindInvalid node, so chained lookups stay safe without nil checks.
const Absent NodeRef = -1

// Property looks up the named property on an object node. It returns
// Absent (not an error) when ref is not an object or the name is not
// present; absence is a normal outcome for optional metadata.
func (d *Document) Property(ref NodeRef, name string) (NodeRef, bool) {
	obj := d.Node(ref)
	if obj.Kind != KindObject {
		return Absent, false
	}
	child := ref + 1
	for i := 0; i < obj.Size; i++ {
		key := child
		value := key + 1
		if d.TextEquals(key, name) {
			return value, true
		}
		child += NodeRef(d.Skip(key))
	}
	return Absent, false
}

// ColumnProperty locates the named column's descriptor object and then
// looks up a property on it. Two document shapes are recognized: a root
// object keyed by column name, and a root array of descriptor objects
// each carrying a "name" property (optionally nested under a
// "variables" property on the root object).
func (d *Document) ColumnProperty(root NodeRef, column, property string) (NodeRef, bool) {
	desc, ok := d.ColumnDescriptor(root, column)
	if !ok {
		return Absent, false
	}
	return d.Property(desc, property)
}

// ColumnDescriptor locates the object node describing the named column.
func (d *Document) ColumnDescriptor(root NodeRef, column string) (NodeRef, bool) {
	n := d.Node(root)
	if n.Kind == KindObject {
		if desc, ok := d.Property(root, column); ok {
			return desc, true
		}
		// Fall through to a "variables" array if the root carries one.
		vars, ok := d.Property(root, "variables")
		if !ok {
			return Absent, false
		}
		return d.descriptorInArray(vars, column)
	}
	if n.Kind == KindArray {
		return d.descriptorInArray(root, column)
	}
	return Absent, false
}

func (d *Document) descriptorInArray(arr NodeRef, column string) (NodeRef, bool) {
	cur := d.Children(arr)
	for {
		elem, ok := cur.Next()
		if !ok {
			return Absent, false
		}
		name, ok := d.Property(elem, "name")
		if ok && d.TextEquals(name, column) {
			return elem, true
		}
	}
}

// TextEquals reports whether the node's raw text span equals the
// literal, case-sensitively. String escapes are not processed.
func (d *Document) TextEquals(ref NodeRef, literal string) bool {
	n := d.Node(ref)
	if n.Kind == KindInvalid {
		return false
	}
	span := d.src[n.Start:n.End]
	if len(span) != len(literal) {
		return false
	}
	return string(span) == literal
}

// Float parses a number or numeric string node as a float64.
func (d *Document) Float(ref NodeRef) (float64, bool) {
	n := d.Node(ref)
	if n.Kind != KindNumber && n.Kind != KindString {
		return 0, false
	}
	v, err := strconv.ParseFloat(d.Text(ref), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Int parses a number node as an int.
func (d *Document) Int(ref NodeRef) (int, bool) {
	n := d.Node(ref)
	if n.Kind != KindNumber && n.Kind != KindString {
		return 0, false
	}
	v, err := strconv.Atoi(d.Text(ref))
	if err != nil {
		return 0, false
	}
	return v, true
}

// Cursor iterates the direct children of an array or object node.
// It replaces hand-computed slot arithmetic at call sites: sibling
// nodes are stored as a flat pre-order sequence, and the cursor
// advances by whole subtrees.
type Cursor struct {
	doc       *Document
	next      NodeRef
	remaining int
}

// Children returns a cursor over the direct children of ref. For object
// nodes the cursor yields key nodes; use Property for value access.
// For any other kind the cursor is empty.
func (d *Document) Children(ref NodeRef) *Cursor {
	n := d.Node(ref)
	if n.Kind != KindObject && n.Kind != KindArray {
		return &Cursor{doc: d}
	}
	return &Cursor{doc: d, next: ref + 1, remaining: n.Size}
}

// Next returns the next child node reference, or false when exhausted.
func (c *Cursor) Next() (NodeRef, bool) {
	if c.remaining == 0 {
		return Absent, false
	}
	ref := c.next
	c.next += NodeRef(c.doc.Skip(ref))
	c.remaining--
	return ref, true
}

// Len returns the number of children not yet consumed.
func (c *Cursor) Len() int {
	return c.remaining
}
