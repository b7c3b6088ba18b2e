package internal

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/derkit/derkit"
)

// LoadPasswordsFromFile loads container passwords from a file, one per line.
// Blank lines are skipped.
func LoadPasswordsFromFile(filename string) ([]string, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var passwords []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if pwd := strings.TrimSpace(scanner.Text()); pwd != "" {
			passwords = append(passwords, pwd)
		}
	}
	return passwords, scanner.Err()
}

// ProcessPasswords assembles the container password candidate list: the
// built-in defaults, then any command-line passwords, then any password-file
// entries, deduplicated in order.
func ProcessPasswords(passwordList []string, passwordFile string) ([]string, error) {
	passwords := derkit.DefaultPasswords()
	passwords = append(passwords, passwordList...)

	if passwordFile != "" {
		filePasswords, err := LoadPasswordsFromFile(passwordFile)
		if err != nil {
			return nil, fmt.Errorf("loading passwords from file: %w", err)
		}
		passwords = append(passwords, filePasswords...)
	}

	seen := make(map[string]bool)
	var unique []string
	for _, pwd := range passwords {
		if !seen[pwd] {
			seen[pwd] = true
			unique = append(unique, pwd)
		}
	}
	return unique, nil
}
