package main

import (
	"fmt"
	"os"
)

// version is stamped by the release build; "dev" for local builds.
var version = "dev"

func main() {
	rootCmd.Version = version
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
