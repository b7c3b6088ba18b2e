package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/derkit/derkit/internal"
)

var inspectFormat string

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Display certificate information",
	Long:  "Decode a DER certificate (or a PKCS#7, PKCS#12, or JKS container) and show its fields. Use - to read from stdin.",
	Example: `  derkit inspect cert.der
  derkit inspect bundle.p7b --format json
  cat cert.der | derkit inspect -`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().StringVar(&inspectFormat, "format", "", "Output format: text, json, or yaml (default: text on a terminal, json otherwise)")
	registerCompletion(inspectCmd, completionInput{
		flagName:     "format",
		completeFunc: fixedCompletion("text", "json", "yaml"),
	})
}

func runInspect(cmd *cobra.Command, args []string) error {
	passwords, err := internal.ProcessPasswords(passwordList, passwordFile)
	if err != nil {
		return fmt.Errorf("loading passwords: %w", err)
	}

	var results []internal.InspectResult
	if args[0] == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
		results, err = internal.InspectData(data, passwords)
		if err != nil {
			return err
		}
	} else {
		results, err = internal.InspectFile(args[0], passwords)
		if err != nil {
			return err
		}
	}

	format := inspectFormat
	if format == "" {
		format = internal.DefaultFormat()
	}
	output, err := internal.FormatInspectResults(results, format)
	if err != nil {
		return err
	}

	fmt.Print(output)
	return nil
}
