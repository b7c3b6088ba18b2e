package internal

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// CertificateRecord is the catalog row for one decoded certificate.
// Fingerprint is the hex SHA-256 of the DER encoding and acts as the
// identity; scanning the same certificate twice inserts one row.
type CertificateRecord struct {
	Fingerprint        string         `db:"sha256_fingerprint"`
	SerialNumber       string         `db:"serial_number"`
	Subject            string         `db:"subject"`
	Issuer             string         `db:"issuer"`
	Version            int            `db:"version"`
	NotBefore          time.Time      `db:"not_before"`
	NotAfter           time.Time      `db:"not_after"`
	KeyAlgorithm       string         `db:"key_algorithm"`
	SignatureAlgorithm string         `db:"signature_algorithm"`
	SelfSigned         bool           `db:"self_signed"`
	Lenient            bool           `db:"lenient"`
	ExtensionsJSON     types.JSONText `db:"extensions"`
	DER                []byte         `db:"der"`
	SourcePath         string         `db:"source_path"`
}
