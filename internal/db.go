package internal

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Catalog is the certificate catalog database.
type Catalog struct {
	*sqlx.DB
}

// NewCatalog creates and initializes a new in-memory catalog. All operations
// run in-memory for performance; use SaveToDisk/LoadFromDisk to persist or
// restore between runs.
func NewCatalog() (*Catalog, error) {
	// Pin to a single connection: each :memory: connection is a separate
	// database, so connection pooling must be disabled. PRAGMAs travel in
	// the DSN so they survive reconnection.
	dsn := "file::memory:?_pragma=temp_store(2)&_pragma=journal_mode(off)&_pragma=synchronous(off)"
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	c := &Catalog{DB: db}
	if err := c.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	slog.Debug("catalog initialized")
	return c, nil
}

func (c *Catalog) initSchema() error {
	_, err := c.Exec(`
		CREATE TABLE IF NOT EXISTS certificates (
			sha256_fingerprint   text PRIMARY KEY,
			serial_number        text NOT NULL,
			subject              text NOT NULL,
			issuer               text NOT NULL,
			version              integer NOT NULL,
			not_before           timestamp NOT NULL,
			not_after            timestamp NOT NULL,
			key_algorithm        text NOT NULL,
			signature_algorithm  text NOT NULL,
			self_signed          boolean NOT NULL,
			lenient              boolean NOT NULL,
			extensions           text,
			der                  blob NOT NULL,
			source_path          text NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("creating certificates table: %w", err)
	}

	_, err = c.Exec(`
		CREATE INDEX IF NOT EXISTS idx_certificates_subject ON certificates (subject);
	`)
	if err != nil {
		return fmt.Errorf("creating subject index on certificates table: %w", err)
	}
	return nil
}

// SaveToDisk writes the in-memory catalog to a file at the given path.
// VACUUM INTO produces a clean, compact copy in a single operation.
func (c *Catalog) SaveToDisk(path string) error {
	if _, err := c.Exec("VACUUM INTO ?", path); err != nil {
		return fmt.Errorf("saving catalog to %s: %w", path, err)
	}
	slog.Info("catalog saved to disk", "path", path)
	return nil
}

// LoadFromDisk merges an on-disk catalog into the in-memory one. The file is
// read once and then detached.
func (c *Catalog) LoadFromDisk(path string) error {
	if _, err := c.Exec("ATTACH DATABASE ? AS diskdb", path); err != nil {
		return fmt.Errorf("attaching catalog %s: %w", path, err)
	}
	defer func() {
		if _, err := c.Exec("DETACH DATABASE diskdb"); err != nil {
			slog.Warn("detaching catalog", "path", path, "error", err)
		}
	}()

	if _, err := c.Exec("INSERT OR IGNORE INTO certificates SELECT * FROM diskdb.certificates"); err != nil {
		return fmt.Errorf("loading certificates from %s: %w", path, err)
	}

	slog.Info("catalog loaded from disk", "path", path)
	return nil
}

// InsertCertificate inserts a certificate record, ignoring duplicates by
// fingerprint.
func (c *Catalog) InsertCertificate(rec CertificateRecord) error {
	_, err := c.NamedExec(`
		INSERT OR IGNORE INTO certificates
			(sha256_fingerprint, serial_number, subject, issuer, version,
			 not_before, not_after, key_algorithm, signature_algorithm,
			 self_signed, lenient, extensions, der, source_path)
		VALUES
			(:sha256_fingerprint, :serial_number, :subject, :issuer, :version,
			 :not_before, :not_after, :key_algorithm, :signature_algorithm,
			 :self_signed, :lenient, :extensions, :der, :source_path)
	`, rec)
	if err != nil {
		return fmt.Errorf("inserting certificate: %w", err)
	}
	return nil
}

// GetAllCerts returns all certificate records.
func (c *Catalog) GetAllCerts() ([]CertificateRecord, error) {
	var certs []CertificateRecord
	if err := c.Select(&certs, "SELECT * FROM certificates ORDER BY subject"); err != nil {
		return nil, fmt.Errorf("getting all certificates: %w", err)
	}
	return certs, nil
}

// GetCertByFingerprint returns the record with the given hex SHA-256
// fingerprint, or nil when absent.
func (c *Catalog) GetCertByFingerprint(fingerprint string) (*CertificateRecord, error) {
	var cert CertificateRecord
	err := c.Get(&cert, "SELECT * FROM certificates WHERE sha256_fingerprint = ?", fingerprint)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting certificate by fingerprint: %w", err)
	}
	return &cert, nil
}

// GetCertsBySubject returns all records whose subject matches exactly.
// Multiple certificates can share a subject (re-issues, cross-signs).
func (c *Catalog) GetCertsBySubject(subject string) ([]CertificateRecord, error) {
	var certs []CertificateRecord
	if err := c.Select(&certs, "SELECT * FROM certificates WHERE subject = ?", subject); err != nil {
		return nil, fmt.Errorf("getting certificates by subject: %w", err)
	}
	return certs, nil
}

// ScanSummary holds aggregate counts from a scan operation.
type ScanSummary struct {
	Total         int            `json:"total"`
	SelfSigned    int            `json:"self_signed"`
	Lenient       int            `json:"lenient"`
	Expired       int            `json:"expired"`
	KeyAlgorithms map[string]int `json:"key_algorithms,omitempty"`
}

// GetScanSummary queries the catalog for aggregate counts. Expiry is judged
// against now.
func (c *Catalog) GetScanSummary(now time.Time) (*ScanSummary, error) {
	s := &ScanSummary{}

	if err := c.Get(&s.Total, "SELECT COUNT(*) FROM certificates"); err != nil {
		return nil, fmt.Errorf("counting certificates: %w", err)
	}
	if err := c.Get(&s.SelfSigned, "SELECT COUNT(*) FROM certificates WHERE self_signed"); err != nil {
		return nil, fmt.Errorf("counting self-signed: %w", err)
	}
	if err := c.Get(&s.Lenient, "SELECT COUNT(*) FROM certificates WHERE lenient"); err != nil {
		return nil, fmt.Errorf("counting lenient: %w", err)
	}
	if err := c.Get(&s.Expired, "SELECT COUNT(*) FROM certificates WHERE not_after < ?", now); err != nil {
		return nil, fmt.Errorf("counting expired: %w", err)
	}

	rows, err := c.Queryx("SELECT key_algorithm, COUNT(*) FROM certificates GROUP BY key_algorithm")
	if err != nil {
		return nil, fmt.Errorf("counting key algorithms: %w", err)
	}
	defer rows.Close()
	s.KeyAlgorithms = make(map[string]int)
	for rows.Next() {
		var alg string
		var count int
		if err := rows.Scan(&alg, &count); err != nil {
			return nil, fmt.Errorf("scanning key algorithm count: %w", err)
		}
		s.KeyAlgorithms[alg] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating key algorithm counts: %w", err)
	}

	return s, nil
}

// DumpCatalog logs every certificate record at debug level.
func (c *Catalog) DumpCatalog() error {
	rows, err := c.Queryx("SELECT * FROM certificates")
	if err != nil {
		return fmt.Errorf("querying certificates: %w", err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var rec CertificateRecord
		if err := rows.StructScan(&rec); err != nil {
			return fmt.Errorf("scanning certificate: %w", err)
		}
		slog.Debug("certificate record",
			"fingerprint", rec.Fingerprint,
			"subject", rec.Subject,
			"issuer", rec.Issuer,
			"serial", rec.SerialNumber,
			"key_algorithm", rec.KeyAlgorithm,
			"signature_algorithm", rec.SignatureAlgorithm,
			"self_signed", rec.SelfSigned,
			"lenient", rec.Lenient,
			"not_before", rec.NotBefore,
			"not_after", rec.NotAfter,
			"source", rec.SourcePath)
		count++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating certificates: %w", err)
	}
	slog.Debug("total certificates", "count", count)
	return nil
}
