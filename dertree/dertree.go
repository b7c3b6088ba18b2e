// Package dertree provides a generic tag/length/value tree over DER-encoded
// ASN.1 data: tag inspection, indexed and tag-checked child access, typed leaf
// conversions, and byte-exact re-serialization of any subtree.
package dertree

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/cryptobyte"
	cryptobyte_asn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// Identifier octets for the universal types and context-specific class bits
// callers match against. Tags carry the full identifier byte, so constructed
// context-specific tags like 0xA0 compare directly.
const (
	TagBoolean         byte = 0x01
	TagInteger         byte = 0x02
	TagBitString       byte = 0x03
	TagOctetString     byte = 0x04
	TagNull            byte = 0x05
	TagOID             byte = 0x06
	TagUTCTime         byte = 0x17
	TagGeneralizedTime byte = 0x18
	TagSequence        byte = 0x30
	TagSet             byte = 0x31

	ClassContextSpecific byte = 0x80
	flagConstructed      byte = 0x20
)

var (
	// ErrTagMismatch is returned by tag-checked lookups when the element at
	// the requested position carries a different identifier octet.
	ErrTagMismatch = errors.New("dertree: unexpected tag")
	// ErrNoChild is returned when a child index is out of range.
	ErrNoChild = errors.New("dertree: no child at index")
)

// Node is one decoded DER element. Constructed nodes hold their children,
// decoded eagerly at parse time; primitive nodes hold their content octets.
// Nodes are immutable after Parse.
type Node struct {
	tag      byte
	value    []byte
	children []*Node
}

// Parse decodes a single DER element and, recursively, all elements nested
// inside it. The input must hold exactly one element with definite,
// minimally-encoded lengths; trailing bytes are an error.
func Parse(der []byte) (*Node, error) {
	s := cryptobyte.String(der)
	n, err := readNode(&s)
	if err != nil {
		return nil, err
	}
	if !s.Empty() {
		return nil, fmt.Errorf("dertree: %d trailing bytes after element", len(s))
	}
	return n, nil
}

func readNode(s *cryptobyte.String) (*Node, error) {
	var value cryptobyte.String
	var tag cryptobyte_asn1.Tag
	if !s.ReadAnyASN1(&value, &tag) {
		return nil, errors.New("dertree: truncated or non-DER element")
	}
	n := &Node{tag: byte(tag), value: value}
	if n.Constructed() {
		content := cryptobyte.String(n.value)
		for !content.Empty() {
			child, err := readNode(&content)
			if err != nil {
				return nil, err
			}
			n.children = append(n.children, child)
		}
	}
	return n, nil
}

// Tag returns the element's identifier octet (class, constructed bit, and tag
// number combined).
func (n *Node) Tag() byte { return n.tag }

// Class returns the class bits of the identifier octet.
func (n *Node) Class() byte { return n.tag & 0xC0 }

// Constructed reports whether the element encodes nested elements.
func (n *Node) Constructed() bool { return n.tag&flagConstructed != 0 }

// Len returns the number of direct children. Primitive nodes have none.
func (n *Node) Len() int { return len(n.children) }

// Child returns the i-th direct child.
func (n *Node) Child(i int) (*Node, error) {
	if i < 0 || i >= len(n.children) {
		return nil, fmt.Errorf("%w: %d (have %d)", ErrNoChild, i, len(n.children))
	}
	return n.children[i], nil
}

// ChildWithTag returns the i-th direct child after checking that it carries
// the expected identifier octet.
func (n *Node) ChildWithTag(i int, tag byte) (*Node, error) {
	c, err := n.Child(i)
	if err != nil {
		return nil, err
	}
	if c.tag != tag {
		return nil, fmt.Errorf("%w: child %d has tag 0x%02X, want 0x%02X", ErrTagMismatch, i, c.tag, tag)
	}
	return c, nil
}

// Value returns the element's content octets. The slice aliases the parsed
// input and must not be modified.
func (n *Node) Value() []byte { return n.value }

// Encode re-serializes the subtree rooted at n. Constructed nodes are rebuilt
// from their children rather than copied, so the output proves the decoded
// tree still carries the exact bytes that were signed; for valid DER input
// the result is byte-identical to the original encoding.
func (n *Node) Encode() []byte {
	content := n.value
	if n.Constructed() {
		content = nil
		for _, c := range n.children {
			content = append(content, c.Encode()...)
		}
	}
	return append(encodeHeader(n.tag, len(content)), content...)
}

// encodeHeader emits a DER identifier octet and a minimally-encoded definite
// length.
func encodeHeader(tag byte, length int) []byte {
	if length < 0x80 {
		return []byte{tag, byte(length)}
	}
	var lenBytes []byte
	for l := length; l > 0; l >>= 8 {
		lenBytes = append([]byte{byte(l)}, lenBytes...)
	}
	out := []byte{tag, 0x80 | byte(len(lenBytes))}
	return append(out, lenBytes...)
}

// Integer returns the content octets of an INTEGER element, two's-complement
// big-endian as stored. Sign-padding bytes are preserved.
func (n *Node) Integer() ([]byte, error) {
	if n.tag != TagInteger {
		return nil, fmt.Errorf("%w: tag 0x%02X, want INTEGER", ErrTagMismatch, n.tag)
	}
	if len(n.value) == 0 {
		return nil, errors.New("dertree: empty INTEGER")
	}
	return n.value, nil
}

// BitString returns the payload of a BIT STRING element with the leading
// unused-bits octet stripped. The octet must be present and in range.
func (n *Node) BitString() ([]byte, error) {
	if n.tag != TagBitString {
		return nil, fmt.Errorf("%w: tag 0x%02X, want BIT STRING", ErrTagMismatch, n.tag)
	}
	if len(n.value) == 0 {
		return nil, errors.New("dertree: BIT STRING missing unused-bits octet")
	}
	if n.value[0] > 7 {
		return nil, fmt.Errorf("dertree: BIT STRING unused-bits count %d out of range", n.value[0])
	}
	return n.value[1:], nil
}

// OID returns the dotted-decimal form of an OBJECT IDENTIFIER element.
func (n *Node) OID() (string, error) {
	if n.tag != TagOID {
		return "", fmt.Errorf("%w: tag 0x%02X, want OBJECT IDENTIFIER", ErrTagMismatch, n.tag)
	}
	v := n.value
	if len(v) == 0 {
		return "", errors.New("dertree: empty OBJECT IDENTIFIER")
	}

	var sb strings.Builder
	arc := 0
	first := true
	for i := 0; i < len(v); i++ {
		if arc > 1<<48 {
			return "", errors.New("dertree: OBJECT IDENTIFIER arc overflow")
		}
		arc = arc<<7 | int(v[i]&0x7F)
		if v[i]&0x80 != 0 {
			if i == len(v)-1 {
				return "", errors.New("dertree: truncated OBJECT IDENTIFIER arc")
			}
			continue
		}
		if first {
			// The first subidentifier packs the first two arcs as 40*X+Y,
			// except that arcs under 2 are open-ended. It is base-128 like
			// the rest, so values past 127 still belong to arc 2.
			first = false
			a, b := arc/40, arc%40
			if arc >= 80 {
				a, b = 2, arc-80
			}
			sb.WriteString(strconv.Itoa(a))
			sb.WriteByte('.')
			sb.WriteString(strconv.Itoa(b))
		} else {
			sb.WriteByte('.')
			sb.WriteString(strconv.Itoa(arc))
		}
		arc = 0
	}
	return sb.String(), nil
}

// utcTimeLayouts and generalizedTimeLayouts follow RFC 5280 4.1.2.5; the
// trailing Z0700 layout element also accepts a literal Z for UTC.
var (
	utcTimeLayouts         = []string{"060102150405Z0700", "0601021504Z0700"}
	generalizedTimeLayouts = []string{"20060102150405Z0700", "200601021504Z0700"}
)

// Time converts a UTCTime or GeneralizedTime element to a time.Time.
// Two-digit UTCTime years are pivoted per RFC 5280: 50-99 map to 19xx,
// 00-49 to 20xx.
func (n *Node) Time() (time.Time, error) {
	var layouts []string
	switch n.tag {
	case TagUTCTime:
		layouts = utcTimeLayouts
	case TagGeneralizedTime:
		layouts = generalizedTimeLayouts
	default:
		return time.Time{}, fmt.Errorf("%w: tag 0x%02X, want UTCTime or GeneralizedTime", ErrTagMismatch, n.tag)
	}

	s := string(n.value)
	for _, layout := range layouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		// time.Parse pivots two-digit years at 69; RFC 5280 pivots at 50.
		if n.tag == TagUTCTime && t.Year() >= 2050 {
			t = t.AddDate(-100, 0, 0)
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("dertree: cannot parse time %q", s)
}
