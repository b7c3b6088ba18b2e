package internal

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/derkit/derkit"
	ctx509 "github.com/google/certificate-transparency-go/x509"
	"github.com/jmoiron/sqlx/types"
)

// extensionJSON is the catalog serialization of one extension. Value is
// base64 in the JSON output (encoding/json's []byte convention).
type extensionJSON struct {
	OID      string `json:"oid"`
	Critical bool   `json:"critical,omitempty"`
	Value    []byte `json:"value"`
}

// RecordFromCertificate builds a catalog record from a strictly decoded
// certificate.
func RecordFromCertificate(cert *derkit.Certificate, sourcePath string) (CertificateRecord, error) {
	exts := make([]extensionJSON, 0, len(cert.Extensions))
	for _, ext := range cert.Extensions {
		exts = append(exts, extensionJSON{OID: ext.Id.String(), Critical: ext.Critical, Value: ext.Value})
	}
	extJSON, err := json.Marshal(exts)
	if err != nil {
		return CertificateRecord{}, fmt.Errorf("marshaling extensions: %w", err)
	}

	fingerprint := sha256.Sum256(cert.Raw)
	return CertificateRecord{
		Fingerprint:        hex.EncodeToString(fingerprint[:]),
		SerialNumber:       hex.EncodeToString(cert.SerialNumber),
		Subject:            cert.Subject,
		Issuer:             cert.Issuer,
		Version:            cert.Version,
		NotBefore:          cert.NotBefore,
		NotAfter:           cert.NotAfter,
		KeyAlgorithm:       derkit.AlgorithmName(cert.KeyAlgorithm),
		SignatureAlgorithm: derkit.AlgorithmName(cert.SignatureAlgorithm),
		SelfSigned:         cert.IsSelfSigned(),
		ExtensionsJSON:     types.JSONText(extJSON),
		DER:                cert.Raw,
		SourcePath:         sourcePath,
	}, nil
}

// RecordFromLenientCertificate builds a catalog record from a certificate the
// strict decoder rejected but the lenient parser accepted. The record is
// flagged so consumers know the DER had structural defects.
func RecordFromLenientCertificate(cert *ctx509.Certificate, sourcePath string) (CertificateRecord, error) {
	exts := make([]extensionJSON, 0, len(cert.Extensions))
	for _, ext := range cert.Extensions {
		exts = append(exts, extensionJSON{OID: ext.Id.String(), Critical: ext.Critical, Value: ext.Value})
	}
	extJSON, err := json.Marshal(exts)
	if err != nil {
		return CertificateRecord{}, fmt.Errorf("marshaling extensions: %w", err)
	}

	fingerprint := sha256.Sum256(cert.Raw)
	return CertificateRecord{
		Fingerprint:        hex.EncodeToString(fingerprint[:]),
		SerialNumber:       hex.EncodeToString(cert.SerialNumber.Bytes()),
		Subject:            cert.Subject.String(),
		Issuer:             cert.Issuer.String(),
		Version:            cert.Version,
		NotBefore:          cert.NotBefore,
		NotAfter:           cert.NotAfter,
		KeyAlgorithm:       cert.PublicKeyAlgorithm.String(),
		SignatureAlgorithm: cert.SignatureAlgorithm.String(),
		SelfSigned:         cert.CheckSignatureFrom(cert) == nil,
		Lenient:            true,
		ExtensionsJSON:     types.JSONText(extJSON),
		DER:                cert.Raw,
		SourcePath:         sourcePath,
	}, nil
}

// CatalogDER decodes one DER certificate and inserts it into the catalog.
// The strict decoder runs first; when it rejects the bytes, the lenient
// parser gets a chance and the resulting record is flagged. Parse errors the
// lenient parser also considers fatal are returned.
func CatalogDER(catalog *Catalog, der []byte, sourcePath string) (CertificateRecord, error) {
	var rec CertificateRecord

	cert, err := derkit.ParseCertificate(der)
	if err == nil {
		rec, err = RecordFromCertificate(cert, sourcePath)
		if err != nil {
			return CertificateRecord{}, err
		}
		return rec, catalog.InsertCertificate(rec)
	}
	strictErr := err

	lenientCert, err := ctx509.ParseCertificate(der)
	if err != nil && ctx509.IsFatal(err) {
		return CertificateRecord{}, fmt.Errorf("decoding certificate from %s: %w", sourcePath, strictErr)
	}
	slog.Debug("strict decode failed, lenient parser accepted", "path", sourcePath, "error", strictErr)

	rec, err = RecordFromLenientCertificate(lenientCert, sourcePath)
	if err != nil {
		return CertificateRecord{}, err
	}
	return rec, catalog.InsertCertificate(rec)
}

// ProcessFile reads one file and catalogs every certificate in it: a bare
// DER certificate directly, or the contents of a PKCS#7, PKCS#12, or JKS
// container. Returns the number of certificates cataloged.
func ProcessFile(catalog *Catalog, path string, passwords []string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", path, err)
	}
	return ProcessData(catalog, data, path, passwords)
}

// ProcessData catalogs every certificate in an already-read blob. sourcePath
// is recorded for provenance only.
func ProcessData(catalog *Catalog, data []byte, sourcePath string, passwords []string) (int, error) {
	// Bare certificate first: the common case, and cheap to probe.
	if _, err := derkit.ParseCertificate(data); err == nil {
		if _, err := CatalogDER(catalog, data, sourcePath); err != nil {
			return 0, err
		}
		return 1, nil
	}

	blobs, err := derkit.ExtractContainer(data, passwords)
	if err != nil {
		// Not a container either; the lenient path gets the last word on
		// whether this is a certificate at all.
		if _, err := CatalogDER(catalog, data, sourcePath); err != nil {
			return 0, err
		}
		return 1, nil
	}

	count := 0
	for _, blob := range blobs {
		if _, err := CatalogDER(catalog, blob, sourcePath); err != nil {
			slog.Warn("skipping certificate in container", "path", sourcePath, "error", err)
			continue
		}
		count++
	}
	if count == 0 {
		return 0, fmt.Errorf("no decodable certificates in %s", sourcePath)
	}
	return count, nil
}
