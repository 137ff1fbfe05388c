package metadata

import (
	"fmt"

	"github.com/dstolpe/dtaforge/pkg/dtaforge"
)

// Kind identifies the syntactic kind of a node in the metadata tree.
type Kind uint8

const (
	// KindInvalid represents an out-of-range node reference.
	KindInvalid Kind = iota
	// KindObject represents a JSON object.
	KindObject
	// KindArray represents a JSON array.
	KindArray
	// KindString represents a JSON string.
	KindString
	// KindNumber represents a JSON number.
	KindNumber
	// KindBool represents true or false.
	KindBool
	// KindNull represents null.
	KindNull
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindNull:
		return "null"
	default:
		return "invalid"
	}
}

// Node is one immutable node of the parsed tree. Start and End delimit
// the node's raw text in the document; for strings the span excludes
// the surrounding quotes. Size is the number of direct children: for
// objects the number of key/value pairs, for arrays the number of
// elements, for object keys always 1 (the value).
type Node struct {
	Kind  Kind
	Start int
	End   int
	Size  int
}

// NodeRef addresses a node within its owning Document. The zero value
// is not a valid reference; use Document.Root.
type NodeRef int

// Document owns the original metadata text and its flat pre-order node
// sequence. A Document is immutable after Parse and safe for concurrent
// reads; every NodeRef handed out borrows from it.
type Document struct {
	src   []byte
	nodes []Node
}

// Parse tokenizes a metadata document. Syntax errors carry the byte
// offset of the failure and wrap ErrMalformedMetadata.
func Parse(src []byte) (*Document, error) {
	p := &parser{src: src}
	p.skipSpace()
	if _, err := p.parseValue(); err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, p.errorf(p.pos, "trailing data after document root")
	}
	return &Document{src: src, nodes: p.nodes}, nil
}

// Root returns the document's root node reference.
func (d *Document) Root() NodeRef {
	return 0
}

// Len returns the total number of nodes in the document.
func (d *Document) Len() int {
	return len(d.nodes)
}

// Node returns the node addressed by ref. Out-of-range references yield
// a KindInvalid node rather than a panic so absent lookups compose.
func (d *Document) Node(ref NodeRef) Node {
	if ref < 0 || int(ref) >= len(d.nodes) {
		return Node{Kind: KindInvalid}
	}
	return d.nodes[ref]
}

// Text returns the raw text span of the node. String escapes are not
// processed; property names and literal values in column metadata are
// compared and parsed on their raw bytes.
func (d *Document) Text(ref NodeRef) string {
	n := d.Node(ref)
	if n.Kind == KindInvalid {
		return ""
	}
	return string(d.src[n.Start:n.End])
}

// Skip returns the number of node slots the subtree rooted at ref
// occupies in the flat sequence, including ref itself. Advancing a
// positional cursor by Skip steps past the whole value.
func (d *Document) Skip(ref NodeRef) int {
	n := d.Node(ref)
	if n.Kind == KindInvalid {
		return 0
	}
	slots := 1
	child := ref + 1
	for i := 0; i < n.Size; i++ {
		w := d.Skip(child)
		slots += w
		child += NodeRef(w)
	}
	return slots
}

// parser is a minimal tokenizer producing the flat pre-order node
// sequence. It exists because the navigator needs byte-offset-stable
// spans, which encoding/json's decoder does not expose.
type parser struct {
	src   []byte
	pos   int
	nodes []Node
}

// SyntaxError reports a tokenizer failure at a byte offset. It wraps
// ErrMalformedMetadata; callers that want line/column diagnostics can
// errors.As for the offset and resolve it against the document text.
type SyntaxError struct {
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("metadata syntax error at byte %d: %s", e.Offset, e.Msg)
}

func (e *SyntaxError) Unwrap() error {
	return dtaforge.ErrMalformedMetadata
}

func (p *parser) errorf(offset int, format string, args ...interface{}) error {
	return &SyntaxError{Offset: offset, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ' ', '\t', '\r', '\n':
			p.pos++
		default:
			return
		}
	}
}

// parseValue parses one value and returns its node index.
func (p *parser) parseValue() (int, error) {
	if p.pos >= len(p.src) {
		return 0, p.errorf(p.pos, "unexpected end of document")
	}
	switch c := p.src[p.pos]; {
	case c == '{':
		return p.parseObject()
	case c == '[':
		return p.parseArray()
	case c == '"':
		return p.parseString()
	case c == 't':
		return p.parseLiteral("true", KindBool)
	case c == 'f':
		return p.parseLiteral("false", KindBool)
	case c == 'n':
		return p.parseLiteral("null", KindNull)
	case c == '-' || (c >= '0' && c <= '9'):
		return p.parseNumber()
	default:
		return 0, p.errorf(p.pos, "unexpected character %q", c)
	}
}

func (p *parser) parseObject() (int, error) {
	idx := len(p.nodes)
	start := p.pos
	p.nodes = append(p.nodes, Node{Kind: KindObject, Start: start})
	p.pos++ // consume '{'
	p.skipSpace()
	if p.pos < len(p.src) && p.src[p.pos] == '}' {
		p.pos++
		p.nodes[idx].End = p.pos
		return idx, nil
	}
	for {
		p.skipSpace()
		if p.pos >= len(p.src) || p.src[p.pos] != '"' {
			return 0, p.errorf(p.pos, "expected object key")
		}
		keyIdx, err := p.parseString()
		if err != nil {
			return 0, err
		}
		p.nodes[keyIdx].Size = 1
		p.skipSpace()
		if p.pos >= len(p.src) || p.src[p.pos] != ':' {
			return 0, p.errorf(p.pos, "expected ':' after object key")
		}
		p.pos++
		p.skipSpace()
		if _, err := p.parseValue(); err != nil {
			return 0, err
		}
		p.nodes[idx].Size++
		p.skipSpace()
		if p.pos >= len(p.src) {
			return 0, p.errorf(p.pos, "unterminated object")
		}
		switch p.src[p.pos] {
		case ',':
			p.pos++
		case '}':
			p.pos++
			p.nodes[idx].End = p.pos
			return idx, nil
		default:
			return 0, p.errorf(p.pos, "expected ',' or '}' in object")
		}
	}
}

func (p *parser) parseArray() (int, error) {
	idx := len(p.nodes)
	start := p.pos
	p.nodes = append(p.nodes, Node{Kind: KindArray, Start: start})
	p.pos++ // consume '['
	p.skipSpace()
	if p.pos < len(p.src) && p.src[p.pos] == ']' {
		p.pos++
		p.nodes[idx].End = p.pos
		return idx, nil
	}
	for {
		p.skipSpace()
		if _, err := p.parseValue(); err != nil {
			return 0, err
		}
		p.nodes[idx].Size++
		p.skipSpace()
		if p.pos >= len(p.src) {
			return 0, p.errorf(p.pos, "unterminated array")
		}
		switch p.src[p.pos] {
		case ',':
			p.pos++
		case ']':
			p.pos++
			p.nodes[idx].End = p.pos
			return idx, nil
		default:
			return 0, p.errorf(p.pos, "expected ',' or ']' in array")
		}
	}
}

func (p *parser) parseString() (int, error) {
	p.pos++ // consume opening quote
	start := p.pos
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case '\\':
			p.pos += 2
		case '"':
			idx := len(p.nodes)
			p.nodes = append(p.nodes, Node{Kind: KindString, Start: start, End: p.pos})
			p.pos++
			return idx, nil
		default:
			p.pos++
		}
	}
	return 0, p.errorf(start-1, "unterminated string")
}

func (p *parser) parseNumber() (int, error) {
	start := p.pos
	if p.src[p.pos] == '-' {
		p.pos++
	}
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if (c >= '0' && c <= '9') || c == '.' || c == 'e' || c == 'E' || c == '+' || c == '-' {
			p.pos++
			continue
		}
		break
	}
	if p.pos == start || (p.pos == start+1 && p.src[start] == '-') {
		return 0, p.errorf(start, "malformed number")
	}
	idx := len(p.nodes)
	p.nodes = append(p.nodes, Node{Kind: KindNumber, Start: start, End: p.pos})
	return idx, nil
}

func (p *parser) parseLiteral(lit string, kind Kind) (int, error) {
	start := p.pos
	if start+len(lit) > len(p.src) || string(p.src[start:start+len(lit)]) != lit {
		return 0, p.errorf(start, "malformed literal")
	}
	p.pos += len(lit)
	idx := len(p.nodes)
	p.nodes = append(p.nodes, Node{Kind: kind, Start: start, End: p.pos})
	return idx, nil
}
