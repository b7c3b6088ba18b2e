package main

import (
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/derkit/derkit/internal"
)

var scanCmd = &cobra.Command{
	Use:   "scan <path>",
	Short: "Scan and catalog certificates",
	Long: "Scan a file or directory for DER certificates and containers, catalog every certificate " +
		"found, and print a summary. With --db the catalog is persisted to disk and merged on the next run.",
	Example: `  derkit scan ./certs
  derkit scan bundle.p12 --db catalog.sqlite
  cat cert.der | derkit scan -`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	inputPath := args[0]

	catalog, err := internal.NewCatalog()
	if err != nil {
		return fmt.Errorf("initializing catalog: %w", err)
	}
	defer catalog.Close()

	if dbPath != "" {
		if _, err := os.Stat(dbPath); err == nil {
			if err := catalog.LoadFromDisk(dbPath); err != nil {
				return err
			}
		}
	}

	passwords, err := internal.ProcessPasswords(passwordList, passwordFile)
	if err != nil {
		return fmt.Errorf("loading passwords: %w", err)
	}

	if inputPath == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
		if _, err := internal.ProcessData(catalog, data, "-", passwords); err != nil {
			return fmt.Errorf("processing stdin: %w", err)
		}
	} else {
		if _, err := os.Stat(inputPath); err != nil {
			return fmt.Errorf("input path %s: %w", inputPath, err)
		}
		err := filepath.WalkDir(inputPath, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				if _, err := internal.ProcessFile(catalog, path, passwords); err != nil {
					slog.Warn("skipping file", "path", path, "error", err)
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("walking input path: %w", err)
		}
	}

	if err := catalog.DumpCatalog(); err != nil {
		return err
	}

	summary, err := catalog.GetScanSummary(time.Now())
	if err != nil {
		return fmt.Errorf("generating summary: %w", err)
	}
	fmt.Printf("\nCataloged %d certificate(s)\n", summary.Total)
	if summary.Total > 0 {
		fmt.Printf("  Self-signed: %d\n", summary.SelfSigned)
		fmt.Printf("  Lenient:     %d\n", summary.Lenient)
		fmt.Printf("  Expired:     %d\n", summary.Expired)
		for alg, count := range summary.KeyAlgorithms {
			fmt.Printf("  %s: %d\n", alg, count)
		}
	}

	if dbPath != "" {
		if _, err := os.Stat(dbPath); err == nil {
			if err := os.Remove(dbPath); err != nil {
				return fmt.Errorf("replacing catalog %s: %w", dbPath, err)
			}
		}
		if err := catalog.SaveToDisk(dbPath); err != nil {
			return err
		}
	}
	return nil
}
