package derkit

import (
	"bytes"
	"crypto"
	"crypto/dsa" //nolint:staticcheck // DSA fixtures exercise the DSA verification path
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"math/big"
	"testing"
	"time"
)

// The fixture builders below assemble certificate DER with encoding/asn1 and
// sign with crypto/rsa and crypto/dsa directly, rather than going through
// x509.CreateCertificate (which refuses to produce the MD5/SHA-1 signatures
// this package exists to verify). Using an independent encoder also means the
// hand-rolled decoder is never tested against its own output.

var (
	oidMD5WithRSA    = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 4}
	oidSHA1WithRSA   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 5}
	oidSHA256WithRSA = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 11}
	oidDSAWithSHA1   = asn1.ObjectIdentifier{1, 2, 840, 10040, 4, 3}
	oidRSAKey        = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 1}
	oidDSAKey        = asn1.ObjectIdentifier{1, 2, 840, 10040, 4, 1}
)

type algorithmIdentifier struct {
	Algorithm  asn1.ObjectIdentifier
	Parameters asn1.RawValue `asn1:"optional"`
}

type validityFields struct {
	NotBefore, NotAfter time.Time
}

type publicKeyInfo struct {
	Algorithm algorithmIdentifier
	PublicKey asn1.BitString
}

type tbsCertificate struct {
	Version         int `asn1:"optional,explicit,default:0,tag:0"`
	SerialNumber    *big.Int
	Signature       algorithmIdentifier
	Issuer          asn1.RawValue
	Validity        validityFields
	Subject         asn1.RawValue
	PublicKey       publicKeyInfo
	IssuerUniqueID  asn1.BitString   `asn1:"optional,tag:1"`
	SubjectUniqueID asn1.BitString   `asn1:"optional,tag:2"`
	Extensions      []pkix.Extension `asn1:"optional,explicit,tag:3"`
}

type certificateFields struct {
	TBS                asn1.RawValue
	SignatureAlgorithm algorithmIdentifier
	SignatureValue     asn1.BitString
}

type dsaSignature struct {
	R, S *big.Int
}

// certSpec describes a test certificate to build.
type certSpec struct {
	version    int // encoded zero-based value; -1 omits the field (v1)
	serial     *big.Int
	issuerCN   string
	subjectCN  string
	notBefore  time.Time
	notAfter   time.Time
	sigOID     asn1.ObjectIdentifier
	extensions []pkix.Extension
}

func defaultCertSpec() certSpec {
	return certSpec{
		version:   2, // v3
		serial:    big.NewInt(0x1001),
		issuerCN:  "Fixture Root",
		subjectCN: "Fixture Root",
		notBefore: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		notAfter:  time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		sigOID:    oidSHA1WithRSA,
	}
}

func marshalName(t *testing.T, cn string) asn1.RawValue {
	t.Helper()
	name := pkix.Name{CommonName: cn, Organization: []string{"Fixture Org"}}
	der, err := asn1.Marshal(name.ToRDNSequence())
	if err != nil {
		t.Fatal(err)
	}
	return asn1.RawValue{FullBytes: der}
}

func hashForOID(t *testing.T, oid asn1.ObjectIdentifier) crypto.Hash {
	t.Helper()
	switch {
	case oid.Equal(oidMD5WithRSA):
		return crypto.MD5
	case oid.Equal(oidSHA1WithRSA), oid.Equal(oidDSAWithSHA1):
		return crypto.SHA1
	case oid.Equal(oidSHA256WithRSA):
		return crypto.SHA256
	}
	t.Fatalf("no hash known for OID %v", oid)
	return 0
}

func marshalTBS(t *testing.T, spec certSpec, spki publicKeyInfo) []byte {
	t.Helper()
	tbs := tbsCertificate{
		SerialNumber: spec.serial,
		Signature:    algorithmIdentifier{Algorithm: spec.sigOID, Parameters: asn1.NullRawValue},
		Issuer:       marshalName(t, spec.issuerCN),
		Validity:     validityFields{NotBefore: spec.notBefore, NotAfter: spec.notAfter},
		Subject:      marshalName(t, spec.subjectCN),
		PublicKey:    spki,
		Extensions:   spec.extensions,
	}
	if spec.version >= 0 {
		tbs.Version = spec.version
	}
	der, err := asn1.Marshal(tbs)
	if err != nil {
		t.Fatal(err)
	}
	return der
}

func assembleCertificate(t *testing.T, tbsDER []byte, sigAlg algorithmIdentifier, signature []byte) []byte {
	t.Helper()
	der, err := asn1.Marshal(certificateFields{
		TBS:                asn1.RawValue{FullBytes: tbsDER},
		SignatureAlgorithm: sigAlg,
		SignatureValue:     asn1.BitString{Bytes: signature, BitLength: len(signature) * 8},
	})
	if err != nil {
		t.Fatal(err)
	}
	return der
}

// newRSATestCert builds a self-signed RSA certificate per spec and returns
// its DER encoding and the signing key.
func newRSATestCert(t *testing.T, spec certSpec) ([]byte, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 1024)
	if err != nil {
		t.Fatal(err)
	}
	der := newRSATestCertWithKey(t, spec, key)
	return der, key
}

// newRSATestCertWithKey builds a certificate carrying key's public half and
// signed by key itself.
func newRSATestCertWithKey(t *testing.T, spec certSpec, key *rsa.PrivateKey) []byte {
	t.Helper()
	spki := publicKeyInfo{
		Algorithm: algorithmIdentifier{Algorithm: oidRSAKey, Parameters: asn1.NullRawValue},
		PublicKey: asn1.BitString{
			Bytes:     x509.MarshalPKCS1PublicKey(&key.PublicKey),
			BitLength: len(x509.MarshalPKCS1PublicKey(&key.PublicKey)) * 8,
		},
	}
	tbsDER := marshalTBS(t, spec, spki)

	hash := hashForOID(t, spec.sigOID)
	h := hash.New()
	h.Write(tbsDER)
	signature, err := rsa.SignPKCS1v15(rand.Reader, key, hash, h.Sum(nil))
	if err != nil {
		t.Fatal(err)
	}
	return assembleCertificate(t, tbsDER,
		algorithmIdentifier{Algorithm: spec.sigOID, Parameters: asn1.NullRawValue}, signature)
}

// newRSATestCertWithTail builds a self-signed RSA certificate whose
// TBSCertificate carries the given raw DER elements appended after
// subjectPublicKeyInfo. encoding/asn1 cannot emit the constructed 0xA1/0xA2
// unique-identifier wrappers, so the tail is spliced in by hand and the
// SEQUENCE re-wrapped before signing.
func newRSATestCertWithTail(t *testing.T, spec certSpec, tail ...[]byte) []byte {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 1024)
	if err != nil {
		t.Fatal(err)
	}
	spki := publicKeyInfo{
		Algorithm: algorithmIdentifier{Algorithm: oidRSAKey, Parameters: asn1.NullRawValue},
		PublicKey: asn1.BitString{
			Bytes:     x509.MarshalPKCS1PublicKey(&key.PublicKey),
			BitLength: len(x509.MarshalPKCS1PublicKey(&key.PublicKey)) * 8,
		},
	}
	base := marshalTBS(t, spec, spki)

	var raw asn1.RawValue
	if _, err := asn1.Unmarshal(base, &raw); err != nil {
		t.Fatal(err)
	}
	body := bytes.Clone(raw.Bytes)
	for _, el := range tail {
		body = append(body, el...)
	}
	tbsDER, err := asn1.Marshal(asn1.RawValue{
		Class:      asn1.ClassUniversal,
		Tag:        asn1.TagSequence,
		IsCompound: true,
		Bytes:      body,
	})
	if err != nil {
		t.Fatal(err)
	}

	hash := hashForOID(t, spec.sigOID)
	h := hash.New()
	h.Write(tbsDER)
	signature, err := rsa.SignPKCS1v15(rand.Reader, key, hash, h.Sum(nil))
	if err != nil {
		t.Fatal(err)
	}
	return assembleCertificate(t, tbsDER,
		algorithmIdentifier{Algorithm: spec.sigOID, Parameters: asn1.NullRawValue}, signature)
}

// RFC 6979 appendix A.2.1 DSA-1024 domain parameters: a known-good (p, q, g)
// set so tests never pay the cost of parameter generation.
const (
	dsaTestP = "86F5CA03DCFEB225063FF830A0C769B9DD9D6153AD91D7CE27F787C43278B447" +
		"E6533B86B18BED6E8A48B784A14C252C5BE0DBF60B86D6385BD2F12FB763ED88" +
		"73ABFD3F5BA2E0A8C0A59082EAC056935E529DAF7C610467899C77ADEDFC846C" +
		"881870B7B19B2B58F9BE0521A17002E3BDD6B86685EE90B3D9A1B02B782B1779"
	dsaTestQ = "996F967F6C8E388D9E28D01E205FBA957A5698B1"
	dsaTestG = "07B0F92546150B62514BB771E2A0C0CE387F03BDA6C56B505209FF25FD3C133D" +
		"89BBCD97E904E09114D9A7DEFDEADFC9078EA544D2E401AEECC40BB9FBBF78FD" +
		"87995A10A1C27CB7789B594BA7EFB5C4326A9FE59A070E136DB77175464ADCA4" +
		"17BE5DCE2F40D10A46A3A3943F26AB7FD9C0398FF8C76EE0A56826A8A88F1DBD"
)

func mustHexInt(t *testing.T, s string) *big.Int {
	t.Helper()
	n, ok := new(big.Int).SetString(s, 16)
	if !ok {
		t.Fatalf("bad hex integer %q", s)
	}
	return n
}

func newDSATestKey(t *testing.T) *dsa.PrivateKey {
	t.Helper()
	key := &dsa.PrivateKey{}
	key.Parameters = dsa.Parameters{
		P: mustHexInt(t, dsaTestP),
		Q: mustHexInt(t, dsaTestQ),
		G: mustHexInt(t, dsaTestG),
	}
	if err := dsa.GenerateKey(key, rand.Reader); err != nil {
		t.Fatal(err)
	}
	return key
}

// newDSATestCert builds a self-signed dsaWithSHA1 certificate and returns its
// DER encoding and the signing key.
func newDSATestCert(t *testing.T, spec certSpec) ([]byte, *dsa.PrivateKey) {
	t.Helper()
	key := newDSATestKey(t)

	paramsDER, err := asn1.Marshal(struct{ P, Q, G *big.Int }{key.P, key.Q, key.G})
	if err != nil {
		t.Fatal(err)
	}
	yDER, err := asn1.Marshal(key.Y)
	if err != nil {
		t.Fatal(err)
	}
	spki := publicKeyInfo{
		Algorithm: algorithmIdentifier{Algorithm: oidDSAKey, Parameters: asn1.RawValue{FullBytes: paramsDER}},
		PublicKey: asn1.BitString{Bytes: yDER, BitLength: len(yDER) * 8},
	}

	spec.sigOID = oidDSAWithSHA1
	tbsDER := marshalTBS(t, spec, spki)

	h := crypto.SHA1.New()
	h.Write(tbsDER)
	r, s, err := dsa.Sign(rand.Reader, key, h.Sum(nil))
	if err != nil {
		t.Fatal(err)
	}
	sigDER, err := asn1.Marshal(dsaSignature{R: r, S: s})
	if err != nil {
		t.Fatal(err)
	}
	der := assembleCertificate(t, tbsDER,
		algorithmIdentifier{Algorithm: oidDSAWithSHA1}, sigDER)
	return der, key
}

func mustParse(t *testing.T, der []byte) *Certificate {
	t.Helper()
	cert, err := ParseCertificate(der)
	if err != nil {
		t.Fatalf("ParseCertificate: %v", err)
	}
	return cert
}
