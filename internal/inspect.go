package internal

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"gopkg.in/yaml.v3"

	"github.com/derkit/derkit"
)

// InspectResult holds the inspection details for one certificate.
type InspectResult struct {
	Subject            string   `json:"subject" yaml:"subject"`
	Issuer             string   `json:"issuer" yaml:"issuer"`
	Serial             string   `json:"serial" yaml:"serial"`
	Version            int      `json:"version" yaml:"version"`
	NotBefore          string   `json:"not_before" yaml:"not_before"`
	NotAfter           string   `json:"not_after" yaml:"not_after"`
	KeyAlgorithm       string   `json:"key_algorithm" yaml:"key_algorithm"`
	KeySize            string   `json:"key_size,omitempty" yaml:"key_size,omitempty"`
	SignatureAlgorithm string   `json:"signature_algorithm" yaml:"signature_algorithm"`
	SHA256             string   `json:"sha256_fingerprint" yaml:"sha256_fingerprint"`
	SelfSigned         bool     `json:"self_signed" yaml:"self_signed"`
	Current            bool     `json:"currently_valid" yaml:"currently_valid"`
	Extensions         []string `json:"extensions,omitempty" yaml:"extensions,omitempty"`
}

// InspectCertificate summarizes a decoded certificate.
func InspectCertificate(cert *derkit.Certificate) InspectResult {
	fingerprint := sha256.Sum256(cert.Raw)

	exts := make([]string, 0, len(cert.Extensions))
	for _, ext := range cert.Extensions {
		s := ext.Id.String()
		if ext.Critical {
			s += " (critical)"
		}
		exts = append(exts, s)
	}

	return InspectResult{
		Subject:            cert.Subject,
		Issuer:             cert.Issuer,
		Serial:             hex.EncodeToString(cert.SerialNumber),
		Version:            cert.Version,
		NotBefore:          cert.NotBefore.UTC().Format(time.RFC3339),
		NotAfter:           cert.NotAfter.UTC().Format(time.RFC3339),
		KeyAlgorithm:       derkit.AlgorithmName(cert.KeyAlgorithm),
		KeySize:            keySize(cert),
		SignatureAlgorithm: derkit.AlgorithmName(cert.SignatureAlgorithm),
		SHA256:             colonHex(fingerprint[:]),
		SelfSigned:         cert.IsSelfSigned(),
		Current:            cert.WasCurrentAt(time.Now()),
		Extensions:         exts,
	}
}

func keySize(cert *derkit.Certificate) string {
	if key, ok := cert.RSAPublicKey(); ok {
		return fmt.Sprintf("%d", key.N.BitLen())
	}
	if key, ok := cert.DSAPublicKey(); ok {
		return fmt.Sprintf("%d", key.P.BitLen())
	}
	return ""
}

func colonHex(b []byte) string {
	parts := make([]string, len(b))
	for i, octet := range b {
		parts[i] = fmt.Sprintf("%02X", octet)
	}
	return strings.Join(parts, ":")
}

// InspectFile reads a file and returns inspection results for every
// certificate in it, unwrapping containers as needed.
func InspectFile(path string, passwords []string) ([]InspectResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return InspectData(data, passwords)
}

// InspectData inspects an already-read blob: a bare DER certificate, or a
// PKCS#7, PKCS#12, or JKS container.
func InspectData(data []byte, passwords []string) ([]InspectResult, error) {
	if cert, err := derkit.ParseCertificate(data); err == nil {
		return []InspectResult{InspectCertificate(cert)}, nil
	}

	blobs, err := derkit.ExtractContainer(data, passwords)
	if err != nil {
		return nil, fmt.Errorf("data is not a certificate or a supported container: %w", err)
	}

	var results []InspectResult
	for _, blob := range blobs {
		cert, err := derkit.ParseCertificate(blob)
		if err != nil {
			continue
		}
		results = append(results, InspectCertificate(cert))
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("container holds no decodable certificates")
	}
	return results, nil
}

// DefaultFormat picks the output format for the attached terminal: text when
// stdout is a TTY, JSON when output is piped or redirected.
func DefaultFormat() string {
	if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return "text"
	}
	return "json"
}

// FormatInspectResults renders inspection results as text, JSON, or YAML.
func FormatInspectResults(results []InspectResult, format string) (string, error) {
	switch format {
	case "text":
		return formatInspectText(results), nil
	case "json":
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshaling JSON: %w", err)
		}
		return string(data) + "\n", nil
	case "yaml":
		data, err := yaml.Marshal(results)
		if err != nil {
			return "", fmt.Errorf("marshaling YAML: %w", err)
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("unsupported output format %q (use text, json, or yaml)", format)
	}
}

func formatInspectText(results []InspectResult) string {
	var sb strings.Builder
	for i, r := range results {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "Certificate:\n")
		fmt.Fprintf(&sb, "  Subject:     %s\n", r.Subject)
		fmt.Fprintf(&sb, "  Issuer:      %s\n", r.Issuer)
		fmt.Fprintf(&sb, "  Serial:      %s\n", r.Serial)
		fmt.Fprintf(&sb, "  Version:     %d\n", r.Version)
		fmt.Fprintf(&sb, "  Not Before:  %s\n", r.NotBefore)
		fmt.Fprintf(&sb, "  Not After:   %s\n", r.NotAfter)
		if r.KeySize != "" {
			fmt.Fprintf(&sb, "  Key:         %s %s\n", r.KeyAlgorithm, r.KeySize)
		} else {
			fmt.Fprintf(&sb, "  Key:         %s\n", r.KeyAlgorithm)
		}
		fmt.Fprintf(&sb, "  Signature:   %s\n", r.SignatureAlgorithm)
		fmt.Fprintf(&sb, "  SHA-256:     %s\n", r.SHA256)
		fmt.Fprintf(&sb, "  Self-Signed: %t\n", r.SelfSigned)
		fmt.Fprintf(&sb, "  Current:     %t\n", r.Current)
		if len(r.Extensions) > 0 {
			fmt.Fprintf(&sb, "  Extensions:  %s\n", strings.Join(r.Extensions, ", "))
		}
	}
	return sb.String()
}
