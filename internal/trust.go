package internal

import (
	"encoding/pem"
	"fmt"
	"log/slog"
	"sync"

	"github.com/breml/rootcerts/embedded"

	"github.com/derkit/derkit"
)

var (
	mozillaOnce  sync.Once
	mozillaRoots map[string][]*derkit.Certificate
)

// loadMozillaRoots decodes the embedded Mozilla trust store once and indexes
// it by subject name. Roots the decoder cannot handle are skipped; the store
// carries ECDSA roots whose keys this package does not extract, but their
// names and validity still resolve.
func loadMozillaRoots() {
	mozillaRoots = make(map[string][]*derkit.Certificate)
	data := []byte(embedded.MozillaCACertificatesPEM())
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := derkit.ParseCertificate(block.Bytes)
		if err != nil {
			slog.Debug("skipping embedded root", "error", err)
			continue
		}
		mozillaRoots[cert.Subject] = append(mozillaRoots[cert.Subject], cert)
	}
}

// FindIssuerInMozillaRoots returns the embedded Mozilla root certificates
// whose subject matches the given issuer name exactly.
func FindIssuerInMozillaRoots(issuer string) ([]*derkit.Certificate, error) {
	mozillaOnce.Do(loadMozillaRoots)
	roots, ok := mozillaRoots[issuer]
	if !ok {
		return nil, fmt.Errorf("no Mozilla root with subject %q", issuer)
	}
	return roots, nil
}
