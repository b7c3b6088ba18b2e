package derkit

import "crypto"

// Object identifiers from RFC 3279 for the key and signature algorithms this
// package understands, in dotted-decimal form as produced by dertree.
const (
	OIDKeyRSA = "1.2.840.113549.1.1.1"
	OIDKeyDSA = "1.2.840.10040.4.1"

	OIDSignatureMD2WithRSA  = "1.2.840.113549.1.1.2"
	OIDSignatureMD5WithRSA  = "1.2.840.113549.1.1.4"
	OIDSignatureSHA1WithRSA = "1.2.840.113549.1.1.5"
	OIDSignatureDSAWithSHA1 = "1.2.840.10040.4.3"
)

// publicKeyKind selects the verification primitive for a signature scheme.
type publicKeyKind int

const (
	keyKindUnknown publicKeyKind = iota
	keyKindRSA
	keyKindDSA
)

// signatureScheme pairs the digest algorithm with the key kind a signature
// OID demands.
type signatureScheme struct {
	hash crypto.Hash
	key  publicKeyKind
}

// signatureSchemes maps supported signature OIDs to their scheme. An OID
// missing here is a first-class unsupported algorithm, never a silent no-op.
var signatureSchemes = map[string]signatureScheme{
	// The standard library defines no MD2 hash; crypto.Hash(0) is never
	// Available, so MD2 certificates decode but cannot be verified.
	OIDSignatureMD2WithRSA:  {crypto.Hash(0), keyKindRSA},
	OIDSignatureMD5WithRSA:  {crypto.MD5, keyKindRSA},
	OIDSignatureSHA1WithRSA: {crypto.SHA1, keyKindRSA},
	OIDSignatureDSAWithSHA1: {crypto.SHA1, keyKindDSA},
}

// algorithmNames provides display names for known algorithm OIDs, following
// the RFC module identifiers.
var algorithmNames = map[string]string{
	OIDKeyRSA:               "rsaEncryption",
	OIDKeyDSA:               "id-dsa",
	OIDSignatureMD2WithRSA:  "md2WithRSAEncryption",
	OIDSignatureMD5WithRSA:  "md5WithRSAEncryption",
	OIDSignatureSHA1WithRSA: "sha1WithRSAEncryption",
	OIDSignatureDSAWithSHA1: "dsaWithSHA1",
}

// AlgorithmName returns a human-readable name for a known algorithm OID, or
// the OID itself when unknown.
func AlgorithmName(oid string) string {
	if name, ok := algorithmNames[oid]; ok {
		return name
	}
	return oid
}
