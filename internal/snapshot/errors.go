package snapshot

import (
	"fmt"

	"github.com/unbound-ml/unbound/errors"
)

// Sentinels for errors.Is checks.
var (
	ErrInvalidMagic       = errors.New("invalid magic bytes")
	ErrUnsupportedVersion = errors.New("unsupported format version")
	ErrHeaderTooLarge     = errors.New("header exceeds maximum size")
	ErrChecksumMismatch   = errors.New("checksum mismatch: file may be corrupted")
)

// ValidationError reports a malformed header entry.
type ValidationError struct {
	Kind    string // e.g. "offset_overlap", "out_of_bounds"
	Array   string // Primary array name involved
	Array2  string // Secondary array name (for overlap errors)
	Details string
}

func (e *ValidationError) Error() string {
	if e.Array2 != "" {
		return fmt.Sprintf("%s: arrays %q and %q: %s", e.Kind, e.Array, e.Array2, e.Details)
	}
	if e.Array != "" {
		return fmt.Sprintf("%s: array %q: %s", e.Kind, e.Array, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Details)
}
