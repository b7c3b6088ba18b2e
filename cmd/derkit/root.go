package main

import (
	"github.com/spf13/cobra"

	"github.com/derkit/derkit/internal"
)

var (
	logLevel     string
	dbPath       string
	passwordList []string
	passwordFile string
)

var rootCmd = &cobra.Command{
	Use:   "derkit",
	Short: "DER certificate decoder and verifier",
	Long:  "Decode DER-encoded X.509 certificates, verify their signatures, and catalog them in SQLite. Handles bare certificates and PKCS#7, PKCS#12, and JKS containers.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		internal.SetupLogger(logLevel)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "SQLite catalog path (default: in-memory only)")
	rootCmd.PersistentFlags().StringSliceVarP(&passwordList, "passwords", "p", nil, "Comma-separated passwords for encrypted containers")
	rootCmd.PersistentFlags().StringVar(&passwordFile, "password-file", "", "File containing passwords, one per line")

	registerCompletion(rootCmd, completionInput{
		flagName:     "log-level",
		completeFunc: fixedCompletion("debug", "info", "warn", "error"),
	})
	registerCompletion(rootCmd, completionInput{
		flagName:     "password-file",
		completeFunc: fileCompletion,
	})

	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(scanCmd)
}
