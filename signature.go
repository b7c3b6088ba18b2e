package derkit

import (
	"bytes"
	"crypto"
	"crypto/dsa" //nolint:staticcheck // DSA is part of the RFC 3279 certificate profile this package implements
	"crypto/rsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/derkit/derkit/dertree"

	_ "crypto/md5"  // registers MD5 for crypto.Hash.New
	_ "crypto/sha1" // registers SHA-1 for crypto.Hash.New
)

// ErrVerification is returned by CheckSignature when the signature is
// structurally sound but cryptographically invalid.
var ErrVerification = errors.New("derkit: signature verification failure")

// dsaComponentSize is the fixed width each DSA signature component is packed
// into; DER strips leading zero octets, the verification math wants them back.
const dsaComponentSize = 20

func (c *Certificate) scheme() (signatureScheme, error) {
	s, ok := signatureSchemes[c.SignatureAlgorithm]
	if !ok {
		return signatureScheme{}, fmt.Errorf("%w: %s", ErrUnsupportedSignatureAlgorithm, c.SignatureAlgorithm)
	}
	return s, nil
}

// Digest hashes the byte-exact re-serialization of the decoded TBSCertificate
// subtree, the signed bytes, with the hash the signature OID selects.
// Hashing the retained subtree rather than re-slicing Raw proves the decoded
// structure still carries exactly what the issuer signed.
func (c *Certificate) Digest() ([]byte, error) {
	s, err := c.scheme()
	if err != nil {
		return nil, err
	}
	if !s.hash.Available() {
		// crypto.MD2 has no implementation in the standard library or
		// x/crypto; MD2 certificates decode but cannot be verified.
		return nil, fmt.Errorf("%w: %s digest is not implemented", ErrUnsupportedSignatureAlgorithm, s.hash)
	}
	h := s.hash.New()
	h.Write(c.tbs.Encode())
	return h.Sum(nil), nil
}

// SignatureBytes returns the signature in the layout the verification
// primitive expects. RSA signatures pass through unchanged. DSA signatures
// are re-read as Dss-Sig-Value ::= SEQUENCE{ r, s INTEGER } and each
// component repacked right-aligned into a fixed 20-byte field, 40 bytes
// total, restoring the leading zeros DER stripped.
func (c *Certificate) SignatureBytes() ([]byte, error) {
	s, err := c.scheme()
	if err != nil {
		return nil, err
	}
	if s.key == keyKindRSA {
		return bytes.Clone(c.Signature), nil
	}

	sig, err := dertree.Parse(c.Signature)
	if err != nil {
		return nil, malformed("DSA signature: %v", err)
	}
	if sig.Tag() != dertree.TagSequence || sig.Len() != 2 {
		return nil, malformed("DSA signature must be a SEQUENCE of two INTEGERs")
	}
	out := make([]byte, 2*dsaComponentSize)
	for i := 0; i < 2; i++ {
		intNode, err := sig.ChildWithTag(i, dertree.TagInteger)
		if err != nil {
			return nil, malformed("DSA signature: %v", err)
		}
		raw, err := intNode.Integer()
		if err != nil {
			return nil, malformed("DSA signature: %v", err)
		}
		component := stripSignPadding(raw)
		if len(component) > dsaComponentSize {
			return nil, malformed("DSA signature component is %d bytes, max %d", len(component), dsaComponentSize)
		}
		copy(out[dsaComponentSize*(i+1)-len(component):], component)
	}
	return out, nil
}

// CheckSignature verifies the certificate's own signature against the given
// issuer public key. It returns nil only when the cryptographic primitive
// reports validity; every decode failure, algorithm mismatch, and key of an
// unsupported type yields a distinct error, never a silent success.
func (c *Certificate) CheckSignature(issuerKey crypto.PublicKey) error {
	digest, err := c.Digest()
	if err != nil {
		return err
	}
	sig, err := c.SignatureBytes()
	if err != nil {
		return err
	}
	s, err := c.scheme()
	if err != nil {
		return err
	}

	switch key := issuerKey.(type) {
	case *rsa.PublicKey:
		if s.key != keyKindRSA {
			return fmt.Errorf("%w: %s signature cannot be checked with an RSA key",
				ErrUnsupportedKeyType, AlgorithmName(c.SignatureAlgorithm))
		}
		if err := rsa.VerifyPKCS1v15(key, s.hash, digest, sig); err != nil {
			return fmt.Errorf("%w: %v", ErrVerification, err)
		}
		return nil
	case *dsa.PublicKey:
		if s.key != keyKindDSA {
			return fmt.Errorf("%w: %s signature cannot be checked with a DSA key",
				ErrUnsupportedKeyType, AlgorithmName(c.SignatureAlgorithm))
		}
		r := new(big.Int).SetBytes(sig[:dsaComponentSize])
		ss := new(big.Int).SetBytes(sig[dsaComponentSize:])
		if !dsa.Verify(key, digest, r, ss) {
			return ErrVerification
		}
		return nil
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedKeyType, issuerKey)
	}
}

// IsSelfSigned reports whether the issuer and subject names are equal and the
// certificate verifies under its own public key. The key algorithm is taken
// from the certificate's own key OID rather than assuming RSA, so self-signed
// DSA certificates are recognized too.
func (c *Certificate) IsSelfSigned() bool {
	if c.Issuer != c.Subject {
		return false
	}
	switch c.KeyAlgorithm {
	case OIDKeyRSA:
		if key, ok := c.RSAPublicKey(); ok {
			return c.CheckSignature(key) == nil
		}
	case OIDKeyDSA:
		if key, ok := c.DSAPublicKey(); ok {
			return c.CheckSignature(key) == nil
		}
	}
	return false
}
