// Package derkit decodes raw DER-encoded X.509 certificates into structured
// values and verifies their signatures against RSA and DSA issuer keys. The
// decoder follows the RFC 3280 Certificate/TBSCertificate grammar directly
// over a dertree TLV tree instead of delegating to crypto/x509, which keeps
// every structural rule (optional context-tagged fields, DEFAULT values,
// INTEGER sign padding, BIT STRING unused-bits stripping) explicit and
// inspectable.
package derkit

import (
	"bytes"
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"fmt"
	"time"

	"github.com/derkit/derkit/dertree"
)

var (
	// ErrMalformedCertificate covers every structural DER violation found
	// during decoding: wrong tags, truncated buffers, missing mandatory
	// fields. Decoding is atomic; no partial certificate ever escapes.
	ErrMalformedCertificate = errors.New("derkit: malformed certificate")

	// ErrUnsupportedSignatureAlgorithm is returned by signature-related
	// accessors when the certificate's signature OID is not in the supported
	// table. It is never raised at decode time: such certificates still
	// decode and expose their plain fields.
	ErrUnsupportedSignatureAlgorithm = errors.New("derkit: unsupported signature algorithm")

	// ErrUnsupportedKeyType is returned when verification is requested
	// against a key that is neither *rsa.PublicKey nor *dsa.PublicKey, or
	// whose kind does not match the signature algorithm.
	ErrUnsupportedKeyType = errors.New("derkit: unsupported key type")
)

// Context-specific tags of the optional TBSCertificate fields. 0xA0 is the
// version wrapper; the tail fields may only follow the six mandatory fields
// in this fixed order.
const (
	tagVersion         = dertree.ClassContextSpecific | 0x20 | 0 // 0xA0
	tagIssuerUniqueID  = dertree.ClassContextSpecific | 0x20 | 1 // 0xA1
	tagSubjectUniqueID = dertree.ClassContextSpecific | 0x20 | 2 // 0xA2
	tagExtensions      = dertree.ClassContextSpecific | 0x20 | 3 // 0xA3
)

// Certificate is a decoded X.509 certificate. It is immutable after
// ParseCertificate returns and safe for unrestricted concurrent reads.
type Certificate struct {
	// Raw is a defensive copy of the exact encoded input.
	Raw []byte

	// Version is 1, 2, or 3; 1 when the optional version field is absent.
	// Out-of-range encoded values are preserved, not rejected.
	Version int

	// SerialNumber holds the INTEGER content octets in natural big-endian
	// order, sign padding included as stored.
	SerialNumber []byte

	// Issuer and Subject are the stringified distinguished names.
	Issuer  string
	Subject string

	// NotBefore and NotAfter bound the validity window. The decoder
	// preserves whatever the certificate says; it does not require
	// NotBefore < NotAfter.
	NotBefore time.Time
	NotAfter  time.Time

	// KeyAlgorithm is the subject public key algorithm OID; KeyParameters
	// holds the re-encoded DER of the optional algorithm parameters, nil
	// when absent.
	KeyAlgorithm  string
	KeyParameters []byte

	// PublicKey is the subjectPublicKey BIT STRING payload with the
	// unused-bits octet stripped.
	PublicKey []byte

	// SignatureAlgorithm is the outer signature algorithm OID (the
	// authoritative one at Certificate level); SignatureParameters holds
	// its re-encoded optional parameters, nil when absent.
	SignatureAlgorithm  string
	SignatureParameters []byte

	// Signature is the outer signature BIT STRING payload with the
	// unused-bits octet stripped, exactly as encoded by the issuer.
	Signature []byte

	// IssuerUniqueID and SubjectUniqueID are the optional v2+ unique
	// identifier blobs, nil when absent.
	IssuerUniqueID  []byte
	SubjectUniqueID []byte

	// Extensions holds the v3 extension list, parsed opaquely; empty when
	// the extensions field is absent.
	Extensions []pkix.Extension

	// tbs is the decoded TBSCertificate subtree, retained so signature
	// digests are computed over its byte-exact re-serialization.
	tbs *dertree.Node
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedCertificate, fmt.Sprintf(format, args...))
}

// ParseCertificate decodes a single DER-encoded certificate. Decoding either
// yields a fully-populated certificate or fails with ErrMalformedCertificate;
// unsupported algorithms are not a decode error.
func ParseCertificate(der []byte) (*Certificate, error) {
	if len(der) == 0 {
		return nil, malformed("empty input")
	}
	root, err := dertree.Parse(der)
	if err != nil {
		return nil, malformed("%v", err)
	}
	if root.Tag() != dertree.TagSequence {
		return nil, malformed("Certificate has tag 0x%02X, want SEQUENCE", root.Tag())
	}
	if root.Len() != 3 {
		return nil, malformed("Certificate has %d elements, want 3", root.Len())
	}

	tbs, err := root.ChildWithTag(0, dertree.TagSequence)
	if err != nil {
		return nil, malformed("TBSCertificate: %v", err)
	}

	cert := &Certificate{tbs: tbs}
	if err := cert.parseTBS(tbs); err != nil {
		return nil, err
	}

	sigAlg, err := root.Child(1)
	if err != nil {
		return nil, malformed("signatureAlgorithm: %v", err)
	}
	cert.SignatureAlgorithm, cert.SignatureParameters, err = parseAlgorithmIdentifier(sigAlg)
	if err != nil {
		return nil, malformed("signatureAlgorithm: %v", err)
	}

	sigValue, err := root.ChildWithTag(2, dertree.TagBitString)
	if err != nil {
		return nil, malformed("signatureValue: %v", err)
	}
	if cert.Signature, err = bitStringCopy(sigValue); err != nil {
		return nil, malformed("signatureValue: %v", err)
	}

	cert.Raw = bytes.Clone(der)
	return cert, nil
}

// parseTBS walks the TBSCertificate fields with an explicit cursor. Each
// optional field either matches its expected tag and consumes a position or
// is confirmed absent without advancing; the walk never backtracks.
func (c *Certificate) parseTBS(tbs *dertree.Node) error {
	idx := 0

	// version: [0] EXPLICIT INTEGER, DEFAULT v1 (encoded zero-based).
	c.Version = 1
	if n, err := tbs.Child(idx); err == nil && n.Tag() == tagVersion {
		inner, err := n.ChildWithTag(0, dertree.TagInteger)
		if err != nil {
			return malformed("version: %v", err)
		}
		raw, err := inner.Integer()
		if err != nil {
			return malformed("version: %v", err)
		}
		c.Version = int(raw[len(raw)-1]) + 1
		idx++
	}

	serial, err := tbs.ChildWithTag(idx, dertree.TagInteger)
	if err != nil {
		return malformed("serialNumber: %v", err)
	}
	raw, err := serial.Integer()
	if err != nil {
		return malformed("serialNumber: %v", err)
	}
	c.SerialNumber = bytes.Clone(raw)
	idx++

	// The inner signature AlgorithmIdentifier is structurally required but
	// not retained; the outer Certificate-level identifier is authoritative.
	if _, err := tbs.ChildWithTag(idx, dertree.TagSequence); err != nil {
		return malformed("signature: %v", err)
	}
	idx++

	issuer, err := tbs.ChildWithTag(idx, dertree.TagSequence)
	if err != nil {
		return malformed("issuer: %v", err)
	}
	if c.Issuer, err = nameString(issuer.Encode()); err != nil {
		return malformed("issuer: %v", err)
	}
	idx++

	validity, err := tbs.ChildWithTag(idx, dertree.TagSequence)
	if err != nil {
		return malformed("validity: %v", err)
	}
	if validity.Len() != 2 {
		return malformed("validity has %d elements, want 2", validity.Len())
	}
	notBefore, _ := validity.Child(0)
	notAfter, _ := validity.Child(1)
	if c.NotBefore, err = notBefore.Time(); err != nil {
		return malformed("notBefore: %v", err)
	}
	if c.NotAfter, err = notAfter.Time(); err != nil {
		return malformed("notAfter: %v", err)
	}
	idx++

	subject, err := tbs.ChildWithTag(idx, dertree.TagSequence)
	if err != nil {
		return malformed("subject: %v", err)
	}
	if c.Subject, err = nameString(subject.Encode()); err != nil {
		return malformed("subject: %v", err)
	}
	idx++

	spki, err := tbs.ChildWithTag(idx, dertree.TagSequence)
	if err != nil {
		return malformed("subjectPublicKeyInfo: %v", err)
	}
	if spki.Len() != 2 {
		return malformed("subjectPublicKeyInfo has %d elements, want 2", spki.Len())
	}
	keyAlg, _ := spki.Child(0)
	if c.KeyAlgorithm, c.KeyParameters, err = parseAlgorithmIdentifier(keyAlg); err != nil {
		return malformed("subjectPublicKeyInfo algorithm: %v", err)
	}
	keyBits, err := spki.ChildWithTag(1, dertree.TagBitString)
	if err != nil {
		return malformed("subjectPublicKey: %v", err)
	}
	if c.PublicKey, err = bitStringCopy(keyBits); err != nil {
		return malformed("subjectPublicKey: %v", err)
	}
	idx++

	// Optional tail fields, fixed order. A non-matching tag means the field
	// is absent, never an error.
	if n, err := tbs.Child(idx); err == nil && n.Tag() == tagIssuerUniqueID {
		c.IssuerUniqueID = bytes.Clone(n.Value())
		idx++
	}
	if n, err := tbs.Child(idx); err == nil && n.Tag() == tagSubjectUniqueID {
		c.SubjectUniqueID = bytes.Clone(n.Value())
		idx++
	}
	if n, err := tbs.Child(idx); err == nil && n.Tag() == tagExtensions {
		// The wrapper only counts when its single child SEQUENCE is present;
		// a childless wrapper leaves the extension list empty.
		if list, err := n.ChildWithTag(0, dertree.TagSequence); err == nil {
			if c.Extensions, err = parseExtensions(list); err != nil {
				return err
			}
		}
	}

	return nil
}

// parseAlgorithmIdentifier decodes SEQUENCE{ OID, parameters OPTIONAL },
// returning the dotted OID and the re-encoded raw DER of the parameters
// (nil when absent). Parameters are never interpreted here; key-material
// extraction decodes them on demand.
func parseAlgorithmIdentifier(n *dertree.Node) (string, []byte, error) {
	if n.Tag() != dertree.TagSequence {
		return "", nil, fmt.Errorf("AlgorithmIdentifier has tag 0x%02X, want SEQUENCE", n.Tag())
	}
	if n.Len() < 1 || n.Len() > 2 {
		return "", nil, fmt.Errorf("AlgorithmIdentifier has %d elements, want 1 or 2", n.Len())
	}
	oidNode, err := n.ChildWithTag(0, dertree.TagOID)
	if err != nil {
		return "", nil, err
	}
	oid, err := oidNode.OID()
	if err != nil {
		return "", nil, err
	}
	var params []byte
	if n.Len() == 2 {
		p, _ := n.Child(1)
		params = p.Encode()
	}
	return oid, params, nil
}

// parseExtensions decodes the extension list opaquely: each entry keeps its
// OID, criticality, and raw value without any per-extension semantics.
func parseExtensions(list *dertree.Node) ([]pkix.Extension, error) {
	exts := make([]pkix.Extension, 0, list.Len())
	for i := 0; i < list.Len(); i++ {
		child, _ := list.Child(i)
		var ext pkix.Extension
		if _, err := asn1.Unmarshal(child.Encode(), &ext); err != nil {
			return nil, malformed("extension %d: %v", i, err)
		}
		exts = append(exts, ext)
	}
	return exts, nil
}

// nameString renders a DER-encoded distinguished name.
func nameString(der []byte) (string, error) {
	var rdns pkix.RDNSequence
	if _, err := asn1.Unmarshal(der, &rdns); err != nil {
		return "", err
	}
	return rdns.String(), nil
}

// bitStringCopy extracts a BIT STRING payload as an owned slice.
func bitStringCopy(n *dertree.Node) ([]byte, error) {
	b, err := n.BitString()
	if err != nil {
		return nil, err
	}
	return bytes.Clone(b), nil
}

// WasCurrentAt reports whether the certificate's validity window covered t.
// The lower bound is strict and the upper bound inclusive.
func (c *Certificate) WasCurrentAt(t time.Time) bool {
	return t.After(c.NotBefore) && !t.After(c.NotAfter)
}
