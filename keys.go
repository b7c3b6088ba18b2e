package derkit

import (
	"crypto/dsa" //nolint:staticcheck // DSA is part of the RFC 3279 certificate profile this package implements
	"crypto/rsa"
	"math/big"

	"github.com/derkit/derkit/dertree"
)

// Key-material extraction is pure and stateless: the accessors below decode
// the already-parsed key bytes on every call and never mutate the
// certificate. They use comma-ok results because probing "is this an RSA
// key?" is a legitimate caller pattern, not a failure.

// stripSignPadding removes the single leading 0x00 octet DER prepends to keep
// a positive INTEGER's sign bit clear, exposing the unsigned magnitude.
func stripSignPadding(b []byte) []byte {
	if len(b) > 1 && b[0] == 0x00 {
		return b[1:]
	}
	return b
}

// RSAPublicKey interprets the subject public key as RSAPublicKey ::=
// SEQUENCE{ modulus INTEGER, publicExponent INTEGER } and returns the
// normalized key. ok is false when the encoding is not an RSA key.
func (c *Certificate) RSAPublicKey() (*rsa.PublicKey, bool) {
	n, err := dertree.Parse(c.PublicKey)
	if err != nil || n.Tag() != dertree.TagSequence || n.Len() != 2 {
		return nil, false
	}
	modNode, err := n.ChildWithTag(0, dertree.TagInteger)
	if err != nil {
		return nil, false
	}
	expNode, err := n.ChildWithTag(1, dertree.TagInteger)
	if err != nil {
		return nil, false
	}
	modBytes, err := modNode.Integer()
	if err != nil {
		return nil, false
	}
	expBytes, err := expNode.Integer()
	if err != nil {
		return nil, false
	}

	exponent := new(big.Int).SetBytes(expBytes)
	if !exponent.IsInt64() || exponent.Int64() <= 0 || exponent.Int64() > int64(^uint32(0)) {
		return nil, false
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(stripSignPadding(modBytes)),
		E: int(exponent.Int64()),
	}, true
}

// DSAPublicKey interprets the subject public key as a single INTEGER Y and
// the key algorithm parameters as Dss-Parms ::= SEQUENCE{ p, q, g INTEGER }.
// ok is false when either encoding is malformed or a parameter is missing.
func (c *Certificate) DSAPublicKey() (*dsa.PublicKey, bool) {
	yNode, err := dertree.Parse(c.PublicKey)
	if err != nil {
		return nil, false
	}
	yBytes, err := yNode.Integer()
	if err != nil {
		return nil, false
	}

	if len(c.KeyParameters) == 0 {
		return nil, false
	}
	params, err := dertree.Parse(c.KeyParameters)
	if err != nil || params.Tag() != dertree.TagSequence || params.Len() < 3 {
		return nil, false
	}
	var pqg [3]*big.Int
	for i := range pqg {
		intNode, err := params.ChildWithTag(i, dertree.TagInteger)
		if err != nil {
			return nil, false
		}
		b, err := intNode.Integer()
		if err != nil {
			return nil, false
		}
		pqg[i] = new(big.Int).SetBytes(stripSignPadding(b))
	}

	return &dsa.PublicKey{
		Parameters: dsa.Parameters{P: pqg[0], Q: pqg[1], G: pqg[2]},
		Y:          new(big.Int).SetBytes(stripSignPadding(yBytes)),
	}, true
}
