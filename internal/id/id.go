// Package id generates prefixed identifiers for archived comparison runs.
package id

import (
	"fmt"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Prefixes used for identifiers.
const (
	PrefixRun = "run"
)

// Generate creates a prefixed unique ID using NanoID,
// e.g. "run-V1StGXR8_Z5jdHi6B-myT".
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// NewRunID returns an identifier for a comparison run.
func NewRunID() (string, error) {
	return Generate(PrefixRun)
}

// HasPrefix reports whether id was generated with prefix.
func HasPrefix(id, prefix string) bool {
	rest, ok := strings.CutPrefix(id, prefix+"-")
	return ok && len(rest) == 21
}
