// Package domain holds the configuration registry's entities, errors and the
// catalog contract. It has no knowledge of storage or presentation.
package domain

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	// MaxIdentifier is the largest identifier a six-digit filename can carry.
	MaxIdentifier = 999999

	// FileExtension is appended to the zero-padded identifier.
	FileExtension = ".json"
)

// Identifier is the permanent number of a configuration. It names the file
// and is never handed out twice, even after the record is deleted.
type Identifier int

// String returns the six-digit zero-padded form ("000042").
func (id Identifier) String() string {
	return fmt.Sprintf("%06d", int(id))
}

// Filename returns the on-disk name ("000042.json").
func (id Identifier) Filename() string {
	return id.String() + FileExtension
}

// Valid reports whether id is within 1..MaxIdentifier.
func (id Identifier) Valid() bool {
	return id >= 1 && id <= MaxIdentifier
}

// ParseIdentifier accepts "42", "000042" or "000042.json".
func ParseIdentifier(s string) (Identifier, error) {
	trimmed := strings.TrimSuffix(strings.TrimSpace(s), FileExtension)
	if trimmed == "" {
		return 0, fmt.Errorf("invalid identifier %q: empty", s)
	}
	for _, r := range trimmed {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("invalid identifier %q: not a decimal number", s)
		}
	}
	n, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("invalid identifier %q: %w", s, err)
	}
	id := Identifier(n)
	if !id.Valid() {
		return 0, fmt.Errorf("invalid identifier %q: must be between 1 and %d", s, MaxIdentifier)
	}
	return id, nil
}

// IdentifierFromFilename recognises registry-managed files: exactly six
// digits followed by .json. Anything else returns false.
func IdentifierFromFilename(name string) (Identifier, bool) {
	base := filepath.Base(name)
	stem, ok := strings.CutSuffix(base, FileExtension)
	if !ok || len(stem) != 6 {
		return 0, false
	}
	id, err := ParseIdentifier(stem)
	if err != nil {
		return 0, false
	}
	return id, true
}

// NextIdentifier returns the identifier that follows allocatedMax, the
// highest identifier ever handed out (0 when none has been). Running past
// MaxIdentifier is an *AllocationExhaustedError; the space never wraps.
func NextIdentifier(allocatedMax int) (Identifier, error) {
	if allocatedMax < 0 {
		return 0, fmt.Errorf("allocated maximum %d is negative", allocatedMax)
	}
	if allocatedMax >= MaxIdentifier {
		return 0, &AllocationExhaustedError{AllocatedMax: allocatedMax}
	}
	return Identifier(allocatedMax + 1), nil
}
