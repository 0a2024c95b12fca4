// Package snapshot provides reading and writing of array snapshots in
// the .ubd binary format.
//
// This package wraps the internal snapshot implementation and exports a
// clean public API for persisting named dense arrays with integrity
// checking.
//
// Example usage:
//
//	import (
//	    "github.com/unbound-ml/unbound/backend/dense"
//	    "github.com/unbound-ml/unbound/snapshot"
//	)
//
//	// Save arrays to a file
//	err := snapshot.Save("weights.ubd", map[string]*dense.Storage{
//	    "weight": w,
//	    "bias":   b,
//	}, map[string]string{"run": "baseline"})
//
//	// Read them back
//	r, err := snapshot.Open("weights.ubd")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Close()
//
//	w2, err := r.LoadArray("weight")
package snapshot

import (
	"io"

	"github.com/unbound-ml/unbound/backend/dense"
	internalsnapshot "github.com/unbound-ml/unbound/internal/snapshot"
)

// FormatVersion is the .ubd format version this build reads and writes.
const FormatVersion = internalsnapshot.FormatVersion

// Operation names for saving and loading through the dispatch layer.
const (
	OpSave = internalsnapshot.OpSave
	OpLoad = internalsnapshot.OpLoad
)

// Header describes the contents of a snapshot file.
type Header = internalsnapshot.Header

// ArrayMeta describes a single named array inside a snapshot.
type ArrayMeta = internalsnapshot.ArrayMeta

// Reader reads a snapshot file.
//
// Note: this is a type alias because LoadArray returns the internal
// dense storage type; backend/dense re-exports it as dense.Storage.
type Reader = internalsnapshot.Reader

// Writer writes a snapshot file.
type Writer = internalsnapshot.Writer

// Options controls how a snapshot is opened.
type Options = internalsnapshot.Options

// ValidationError describes a structural problem in a snapshot header.
type ValidationError = internalsnapshot.ValidationError

// Sentinel errors for errors.Is checks.
var (
	ErrInvalidMagic       = internalsnapshot.ErrInvalidMagic
	ErrUnsupportedVersion = internalsnapshot.ErrUnsupportedVersion
	ErrHeaderTooLarge     = internalsnapshot.ErrHeaderTooLarge
	ErrChecksumMismatch   = internalsnapshot.ErrChecksumMismatch
)

// Create creates a new snapshot file writer at path.
func Create(path string) (*Writer, error) {
	return internalsnapshot.Create(path)
}

// Save writes the named arrays and optional metadata to path in one
// call. Arrays are laid out in sorted name order, so the same inputs
// always produce the same bytes.
func Save(path string, arrays map[string]*dense.Storage, metadata map[string]string) error {
	return internalsnapshot.Save(path, arrays, metadata)
}

// Open opens a snapshot file and verifies its checksum.
func Open(path string) (*Reader, error) {
	return internalsnapshot.Open(path)
}

// OpenWithOptions opens a snapshot file with explicit options, for
// example to skip checksum verification on very large files.
func OpenWithOptions(path string, opts Options) (*Reader, error) {
	return internalsnapshot.OpenWithOptions(path, opts)
}

// WriteTo writes the named arrays to an arbitrary writer instead of a
// file.
func WriteTo(w io.Writer, arrays map[string]*dense.Storage, metadata map[string]string) error {
	return internalsnapshot.WriteTo(w, arrays, metadata)
}

// ReadFrom reads an entire snapshot from an arbitrary reader, returning
// all array data and the header.
func ReadFrom(r io.Reader) (map[string]*dense.Storage, Header, error) {
	return internalsnapshot.ReadFrom(r)
}
