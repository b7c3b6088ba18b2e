package derkit

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/pavlo-v-chernykh/keystore-go/v4"
	"github.com/smallstep/pkcs7"
	gopkcs12 "software.sslmate.com/src/go-pkcs12"
)

// Certificates travel inside binary container formats as often as they do
// bare. The extractors below unwrap PKCS#7, PKCS#12, and JKS containers down
// to the raw per-certificate DER blobs ParseCertificate consumes; the
// containers' own certificate interpretation is discarded.

// jksMagic is the Java KeyStore file signature.
var jksMagic = []byte{0xFE, 0xED, 0xFE, 0xED}

// IsJKS reports whether the data starts with the Java KeyStore magic.
func IsJKS(data []byte) bool {
	return bytes.HasPrefix(data, jksMagic)
}

// ExtractPKCS7 returns the DER encoding of every certificate in a
// DER-encoded PKCS#7 bundle (typically a certs-only P7B/P7C).
func ExtractPKCS7(der []byte) ([][]byte, error) {
	p7, err := pkcs7.Parse(der)
	if err != nil {
		return nil, fmt.Errorf("parsing PKCS#7: %w", err)
	}
	if len(p7.Certificates) == 0 {
		return nil, errors.New("PKCS#7 bundle contains no certificates")
	}
	out := make([][]byte, 0, len(p7.Certificates))
	for _, cert := range p7.Certificates {
		out = append(out, cert.Raw)
	}
	return out, nil
}

// ExtractPKCS12 returns the DER encoding of the leaf and CA certificates in
// a PKCS#12/PFX bundle. The private key, if any, is discarded.
func ExtractPKCS12(pfxData []byte, password string) ([][]byte, error) {
	_, leaf, caCerts, err := gopkcs12.DecodeChain(pfxData, password)
	if err != nil {
		return nil, fmt.Errorf("decoding PKCS#12: %w", err)
	}
	var out [][]byte
	if leaf != nil {
		out = append(out, leaf.Raw)
	}
	for _, ca := range caCerts {
		out = append(out, ca.Raw)
	}
	if len(out) == 0 {
		return nil, errors.New("PKCS#12 bundle contains no certificates")
	}
	return out, nil
}

// ExtractJKS returns the DER encoding of every certificate in a Java
// KeyStore: trusted-certificate entries plus the chains of private-key
// entries. The same password unlocks the store and its entries (standard
// Java convention). Individual entry errors are skipped; an error is
// returned only if the store cannot be loaded or holds no certificates.
func ExtractJKS(data []byte, password string) ([][]byte, error) {
	ks := keystore.New()
	if err := ks.Load(bytes.NewReader(data), []byte(password)); err != nil {
		return nil, fmt.Errorf("loading JKS: %w", err)
	}

	var out [][]byte
	for _, alias := range ks.Aliases() {
		if ks.IsTrustedCertificateEntry(alias) {
			entry, err := ks.GetTrustedCertificateEntry(alias)
			if err != nil {
				continue
			}
			out = append(out, entry.Certificate.Content)
		}
		if ks.IsPrivateKeyEntry(alias) {
			entry, err := ks.GetPrivateKeyEntry(alias, []byte(password))
			if err != nil {
				continue
			}
			for _, certEntry := range entry.CertificateChain {
				out = append(out, certEntry.Content)
			}
		}
	}

	if len(out) == 0 {
		return nil, errors.New("JKS contains no certificates")
	}
	return out, nil
}

// ExtractContainer unwraps data that is not a bare DER certificate: PKCS#7
// first (the common AIA response format), then JKS when the magic matches,
// then PKCS#12 with each candidate password. Returns the contained
// certificate DER blobs, or an error when no container format matches.
func ExtractContainer(data []byte, passwords []string) ([][]byte, error) {
	if blobs, err := ExtractPKCS7(data); err == nil {
		return blobs, nil
	}

	if IsJKS(data) {
		for _, password := range passwords {
			if blobs, err := ExtractJKS(data, password); err == nil {
				return blobs, nil
			}
		}
		return nil, errors.New("JKS did not open with any provided password")
	}

	for _, password := range passwords {
		if blobs, err := ExtractPKCS12(data, password); err == nil {
			return blobs, nil
		}
	}

	return nil, errors.New("data is not a PKCS#7, PKCS#12, or JKS container")
}

// DefaultPasswords returns the passwords tried by default when opening
// password-protected containers. Returns a fresh copy each call.
func DefaultPasswords() []string {
	return []string{"", "password", "changeit", "keypassword"}
}
