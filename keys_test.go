package derkit

import (
	"encoding/asn1"
	"math/big"
	"testing"
)

func TestRSAPublicKey_ReproducesModulusAndExponent(t *testing.T) {
	// WHY: The extractor must hand the verification primitive the exact
	// unsigned modulus magnitude, with DER sign padding stripped, and the
	// exponent as encoded.
	t.Parallel()
	der, key := newRSATestCert(t, defaultCertSpec())
	cert := mustParse(t, der)

	pub, ok := cert.RSAPublicKey()
	if !ok {
		t.Fatal("RSAPublicKey() not ok for an RSA certificate")
	}
	if pub.N.Cmp(key.N) != 0 {
		t.Error("modulus does not match the signing key")
	}
	if pub.E != key.E {
		t.Errorf("exponent = %d, want %d", pub.E, key.E)
	}
	// A 1024-bit modulus always has its top bit set, so DER added a 0x00
	// sign byte the extractor must have removed.
	if pub.N.BitLen() != 1024 {
		t.Errorf("modulus bit length = %d, want 1024", pub.N.BitLen())
	}
}

func TestDSAPublicKey_ReproducesParameters(t *testing.T) {
	// WHY: Y comes from the public key bits, P/Q/G from the key algorithm
	// parameters; all four need the same sign-padding normalization.
	t.Parallel()
	der, key := newDSATestCert(t, defaultCertSpec())
	cert := mustParse(t, der)

	pub, ok := cert.DSAPublicKey()
	if !ok {
		t.Fatal("DSAPublicKey() not ok for a DSA certificate")
	}
	if pub.P.Cmp(key.P) != 0 || pub.Q.Cmp(key.Q) != 0 || pub.G.Cmp(key.G) != 0 {
		t.Error("P/Q/G do not match the signing parameters")
	}
	if pub.Y.Cmp(key.Y) != 0 {
		t.Error("Y does not match the signing key")
	}
}

func TestKeyExtraction_ProbesWithoutError(t *testing.T) {
	// WHY: Callers probe key types by calling the accessor and checking ok;
	// a DSA certificate must make RSAPublicKey return not-ok, never panic
	// or reject the certificate.
	t.Parallel()
	dsaDER, _ := newDSATestCert(t, defaultCertSpec())
	rsaDER, _ := newRSATestCert(t, defaultCertSpec())

	dsaCert := mustParse(t, dsaDER)
	if _, ok := dsaCert.RSAPublicKey(); ok {
		t.Error("RSAPublicKey() ok for a DSA certificate")
	}

	rsaCert := mustParse(t, rsaDER)
	if _, ok := rsaCert.DSAPublicKey(); ok {
		t.Error("DSAPublicKey() ok for an RSA certificate")
	}
}

func TestDSAPublicKey_RejectsShortParameters(t *testing.T) {
	// WHY: A parameter SEQUENCE with fewer than three INTEGERs must fail the
	// probe, not index out of range.
	t.Parallel()
	der, _ := newDSATestCert(t, defaultCertSpec())
	cert := mustParse(t, der)

	// Swap in parameters holding only SEQUENCE{P, Q}.
	twoParams, err := asn1.Marshal(struct{ P, Q *big.Int }{big.NewInt(7), big.NewInt(11)})
	if err != nil {
		t.Fatal(err)
	}
	cert.KeyParameters = twoParams
	if _, ok := cert.DSAPublicKey(); ok {
		t.Error("DSAPublicKey() ok with only two parameters")
	}

	// And entirely absent parameters.
	cert.KeyParameters = nil
	if _, ok := cert.DSAPublicKey(); ok {
		t.Error("DSAPublicKey() ok with no parameters")
	}
}

func TestStripSignPadding(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   []byte
		want []byte
	}{
		{"sign-padded", []byte{0x00, 0xFF, 0xFF}, []byte{0xFF, 0xFF}},
		{"no padding", []byte{0x7F, 0x00}, []byte{0x7F, 0x00}},
		{"lone zero", []byte{0x00}, []byte{0x00}},
		{"only first removed", []byte{0x00, 0x00, 0x80}, []byte{0x00, 0x80}},
	}
	for _, tt := range tests {
		got := stripSignPadding(tt.in)
		if len(got) != len(tt.want) {
			t.Errorf("%s: got %x, want %x", tt.name, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("%s: got %x, want %x", tt.name, got, tt.want)
				break
			}
		}
	}
}
