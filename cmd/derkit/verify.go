package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/derkit/derkit"
	"github.com/derkit/derkit/internal"
)

var (
	verifyIssuerPath string
	verifySelfSigned bool
)

var verifyCmd = &cobra.Command{
	Use:   "verify <file>",
	Short: "Verify a certificate's signature and validity window",
	Long: "Verify a DER certificate's signature against its issuer. The issuer comes from --issuer, " +
		"from the certificate itself with --self-signed, or from the embedded Mozilla root store by issuer name.",
	Example: `  derkit verify cert.der --issuer ca.der
  derkit verify root.der --self-signed
  derkit verify cert.der`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().StringVar(&verifyIssuerPath, "issuer", "", "DER file holding the issuing certificate")
	verifyCmd.Flags().BoolVar(&verifySelfSigned, "self-signed", false, "Verify the certificate under its own key")
	verifyCmd.MarkFlagsMutuallyExclusive("issuer", "self-signed")
	registerCompletion(verifyCmd, completionInput{
		flagName:     "issuer",
		completeFunc: fileCompletion,
	})
}

func loadCertificate(path string) (*derkit.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	cert, err := derkit.ParseCertificate(data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return cert, nil
}

// resolveIssuer picks the issuer certificate: the --issuer file, the
// certificate itself for --self-signed, or a Mozilla root matched by name.
func resolveIssuer(cert *derkit.Certificate) (*derkit.Certificate, error) {
	if verifySelfSigned {
		return cert, nil
	}
	if verifyIssuerPath != "" {
		issuer, err := loadCertificate(verifyIssuerPath)
		if err != nil {
			return nil, err
		}
		if issuer.Subject != cert.Issuer {
			return nil, fmt.Errorf("issuer file subject %q does not match certificate issuer %q",
				issuer.Subject, cert.Issuer)
		}
		return issuer, nil
	}

	roots, err := internal.FindIssuerInMozillaRoots(cert.Issuer)
	if err != nil {
		return nil, fmt.Errorf("no issuer given and %w", err)
	}
	// Multiple roots can share a subject; the first whose key checks the
	// signature wins. Fall back to the first for error reporting.
	for _, root := range roots {
		result := internal.VerifyCert(&internal.VerifyInput{Cert: cert, Issuer: root})
		if result.SignatureValid != nil && *result.SignatureValid {
			return root, nil
		}
	}
	return roots[0], nil
}

func runVerify(cmd *cobra.Command, args []string) error {
	cert, err := loadCertificate(args[0])
	if err != nil {
		return err
	}

	issuer, err := resolveIssuer(cert)
	if err != nil {
		return err
	}

	result := internal.VerifyCert(&internal.VerifyInput{Cert: cert, Issuer: issuer})
	fmt.Print(internal.FormatVerifyResult(result))

	if len(result.Errors) > 0 {
		return errors.New("verification failed")
	}
	return nil
}
