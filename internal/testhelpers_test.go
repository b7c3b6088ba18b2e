package internal

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"math/big"
	"testing"
	"time"

	"github.com/derkit/derkit"
)

// Fixture certificates are assembled by hand with encoding/asn1 because
// x509.CreateCertificate refuses the SHA-1 signatures the decoder under test
// must verify.

var (
	oidSHA1WithRSAFixture = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 5}
	oidRSAKeyFixture      = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 1}
)

type fixtureAlgID struct {
	Algorithm  asn1.ObjectIdentifier
	Parameters asn1.RawValue `asn1:"optional"`
}

type fixtureTBS struct {
	Version      int `asn1:"optional,explicit,default:0,tag:0"`
	SerialNumber *big.Int
	Signature    fixtureAlgID
	Issuer       asn1.RawValue
	Validity     struct{ NotBefore, NotAfter time.Time }
	Subject      asn1.RawValue
	PublicKey    struct {
		Algorithm fixtureAlgID
		PublicKey asn1.BitString
	}
}

type fixtureCert struct {
	TBS                asn1.RawValue
	SignatureAlgorithm fixtureAlgID
	SignatureValue     asn1.BitString
}

// newFixtureCertDER builds a self-signed sha1WithRSA certificate with the
// given common name and validity window, returning its DER encoding.
func newFixtureCertDER(t *testing.T, cn string, notBefore, notAfter time.Time) []byte {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 1024)
	if err != nil {
		t.Fatal(err)
	}

	name := pkix.Name{CommonName: cn, Organization: []string{"Fixture Org"}}
	nameDER, err := asn1.Marshal(name.ToRDNSequence())
	if err != nil {
		t.Fatal(err)
	}

	tbs := fixtureTBS{
		Version:      2,
		SerialNumber: big.NewInt(0x2002),
		Signature:    fixtureAlgID{Algorithm: oidSHA1WithRSAFixture, Parameters: asn1.NullRawValue},
		Issuer:       asn1.RawValue{FullBytes: nameDER},
		Subject:      asn1.RawValue{FullBytes: nameDER},
	}
	tbs.Validity.NotBefore = notBefore
	tbs.Validity.NotAfter = notAfter
	spkiBytes := x509.MarshalPKCS1PublicKey(&key.PublicKey)
	tbs.PublicKey.Algorithm = fixtureAlgID{Algorithm: oidRSAKeyFixture, Parameters: asn1.NullRawValue}
	tbs.PublicKey.PublicKey = asn1.BitString{Bytes: spkiBytes, BitLength: len(spkiBytes) * 8}

	tbsDER, err := asn1.Marshal(tbs)
	if err != nil {
		t.Fatal(err)
	}

	h := crypto.SHA1.New()
	h.Write(tbsDER)
	signature, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA1, h.Sum(nil))
	if err != nil {
		t.Fatal(err)
	}

	der, err := asn1.Marshal(fixtureCert{
		TBS:                asn1.RawValue{FullBytes: tbsDER},
		SignatureAlgorithm: fixtureAlgID{Algorithm: oidSHA1WithRSAFixture, Parameters: asn1.NullRawValue},
		SignatureValue:     asn1.BitString{Bytes: signature, BitLength: len(signature) * 8},
	})
	if err != nil {
		t.Fatal(err)
	}
	return der
}

// newStdlibCertInternal builds a modern self-signed certificate with
// crypto/x509 for container and lenient-path fixtures.
func newStdlibCertInternal(t *testing.T) (*x509.Certificate, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(7),
		Subject:               pkix.Name{CommonName: "Internal Fixture", Organization: []string{"Fixture Org"}},
		NotBefore:             time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		NotAfter:              time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatal(err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatal(err)
	}
	return cert, key
}

func mustParseFixture(t *testing.T, der []byte) *derkit.Certificate {
	t.Helper()
	cert, err := derkit.ParseCertificate(der)
	if err != nil {
		t.Fatalf("ParseCertificate: %v", err)
	}
	return cert
}

func defaultFixtureWindow() (time.Time, time.Time) {
	return time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
}
