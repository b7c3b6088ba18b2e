package internal

import (
	"crypto"
	"fmt"
	"strings"
	"time"

	"github.com/derkit/derkit"
)

// VerifyInput holds the certificate under test and verification options.
type VerifyInput struct {
	Cert *derkit.Certificate
	// Issuer is the certificate carrying the signing key. Nil means
	// self-verification: the certificate is checked under its own key.
	Issuer *derkit.Certificate
	// At is the instant validity is judged against; zero means now.
	At time.Time
}

// VerifyResult holds the results of the verification checks.
type VerifyResult struct {
	Subject            string   `json:"subject"`
	Issuer             string   `json:"issuer"`
	NotBefore          string   `json:"not_before"`
	NotAfter           string   `json:"not_after"`
	SignatureAlgorithm string   `json:"signature_algorithm"`
	SignatureValid     *bool    `json:"signature_valid,omitempty"`
	SignatureErr       string   `json:"signature_error,omitempty"`
	Current            bool     `json:"currently_valid"`
	SelfSigned         bool     `json:"self_signed"`
	Errors             []string `json:"errors,omitempty"`
}

// issuerPublicKey extracts the verification key from the issuer certificate,
// dispatching on its key algorithm OID.
func issuerPublicKey(issuer *derkit.Certificate) (crypto.PublicKey, error) {
	switch issuer.KeyAlgorithm {
	case derkit.OIDKeyRSA:
		if key, ok := issuer.RSAPublicKey(); ok {
			return key, nil
		}
		return nil, fmt.Errorf("issuer carries an RSA OID but its key does not decode")
	case derkit.OIDKeyDSA:
		if key, ok := issuer.DSAPublicKey(); ok {
			return key, nil
		}
		return nil, fmt.Errorf("issuer carries a DSA OID but its key does not decode")
	default:
		return nil, fmt.Errorf("%w: issuer key algorithm %s",
			derkit.ErrUnsupportedKeyType, derkit.AlgorithmName(issuer.KeyAlgorithm))
	}
}

// VerifyCert checks a certificate's signature against its issuer's key and
// reports whether the validity window covers the reference instant.
func VerifyCert(input *VerifyInput) *VerifyResult {
	cert := input.Cert
	at := input.At
	if at.IsZero() {
		at = time.Now()
	}

	result := &VerifyResult{
		Subject:            cert.Subject,
		Issuer:             cert.Issuer,
		NotBefore:          cert.NotBefore.UTC().Format(time.RFC3339),
		NotAfter:           cert.NotAfter.UTC().Format(time.RFC3339),
		SignatureAlgorithm: derkit.AlgorithmName(cert.SignatureAlgorithm),
		Current:            cert.WasCurrentAt(at),
		SelfSigned:         cert.IsSelfSigned(),
	}
	if !result.Current {
		result.Errors = append(result.Errors, fmt.Sprintf("not valid at %s", at.UTC().Format(time.RFC3339)))
	}

	issuer := input.Issuer
	if issuer == nil {
		issuer = cert
	}
	key, err := issuerPublicKey(issuer)
	if err != nil {
		result.SignatureErr = err.Error()
		result.Errors = append(result.Errors, result.SignatureErr)
		return result
	}

	valid := false
	if err := cert.CheckSignature(key); err != nil {
		result.SignatureErr = err.Error()
		result.Errors = append(result.Errors, fmt.Sprintf("signature: %s", err.Error()))
	} else {
		valid = true
	}
	result.SignatureValid = &valid

	return result
}

// FormatVerifyResult formats a verify result as human-readable text.
func FormatVerifyResult(r *VerifyResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Certificate: %s\n", r.Subject)
	fmt.Fprintf(&sb, "     Issuer: %s\n", r.Issuer)
	fmt.Fprintf(&sb, " Not Before: %s\n", r.NotBefore)
	fmt.Fprintf(&sb, "  Not After: %s\n", r.NotAfter)
	fmt.Fprintf(&sb, "  Algorithm: %s\n", r.SignatureAlgorithm)

	if r.SignatureValid != nil {
		if *r.SignatureValid {
			sb.WriteString("  Signature: VALID\n")
		} else {
			fmt.Fprintf(&sb, "  Signature: INVALID (%s)\n", r.SignatureErr)
		}
	} else if r.SignatureErr != "" {
		fmt.Fprintf(&sb, "  Signature: ERROR (%s)\n", r.SignatureErr)
	}

	if r.Current {
		sb.WriteString("   Validity: current\n")
	} else {
		sb.WriteString("   Validity: NOT current\n")
	}
	if r.SelfSigned {
		sb.WriteString("Self-Signed: yes\n")
	}

	if len(r.Errors) > 0 {
		fmt.Fprintf(&sb, "\nVerification FAILED (%d error(s))\n", len(r.Errors))
	} else {
		sb.WriteString("\nVerification OK\n")
	}
	return sb.String()
}
