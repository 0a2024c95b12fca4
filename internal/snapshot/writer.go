package snapshot

import (
	"encoding/binary"
	"encoding/json"
	"io"
	"os"
	"sort"
	"time"

	"github.com/unbound-ml/unbound/errors"
	"github.com/unbound-ml/unbound/internal/backend/dense"
)

// Writer writes arrays in .ubd format.
type Writer struct {
	file   *os.File
	closed bool
}

// Create creates a new .ubd file writer at path.
func Create(path string) (*Writer, error) {
	//nolint:gosec // G304: the path comes from the caller, which is expected for saving
	file, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create file")
	}
	return &Writer{file: file}, nil
}

// WriteArrays writes the named arrays and optional metadata to the file.
// Arrays are laid out in sorted name order so the same inputs always
// produce the same bytes.
func (w *Writer) WriteArrays(arrays map[string]*dense.Storage, metadata map[string]string) error {
	if w.closed {
		return errors.ErrClosed
	}
	return WriteTo(w.file, arrays, metadata)
}

// Close closes the writer and the underlying file.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.file.Close()
}

// Save writes the named arrays to path in one call.
func Save(path string, arrays map[string]*dense.Storage, metadata map[string]string) error {
	w, err := Create(path)
	if err != nil {
		return err
	}
	if err := w.WriteArrays(arrays, metadata); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

// WriteTo writes the named arrays to an io.Writer. This is useful for
// writing to buffers or network connections.
func WriteTo(wr io.Writer, arrays map[string]*dense.Storage, metadata map[string]string) error {
	if metadata == nil {
		metadata = make(map[string]string)
	}

	header := Header{
		FormatVersion: FormatVersion,
		CreatedAt:     time.Now().UTC(),
		Arrays:        make([]ArrayMeta, 0, len(arrays)),
		Metadata:      metadata,
	}

	names := make([]string, 0, len(arrays))
	for name := range arrays {
		names = append(names, name)
	}
	sort.Strings(names)

	// Lay out the data section and collect it for the checksum.
	var data []byte
	var offset int64
	for _, name := range names {
		if err := ValidateArrayName(name); err != nil {
			return err
		}
		s := arrays[name]
		size := int64(s.ByteSize())

		header.Arrays = append(header.Arrays, ArrayMeta{
			Name:   name,
			DType:  s.DType().String(),
			Shape:  []int(s.Shape()),
			Offset: offset,
			Size:   size,
		})

		data = append(data, s.Data()[:size]...)
		offset += size
	}

	checksum := ComputeChecksum(data)

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return errors.Wrap(err, "failed to marshal header")
	}

	// Assemble the 64-byte fixed header.
	fixed := make([]byte, FixedHeaderSize)
	copy(fixed[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(fixed[4:8], uint32(FormatVersion))

	flags := uint32(0)
	if len(metadata) > 0 {
		flags |= FlagHasMetadata
	}
	binary.LittleEndian.PutUint32(fixed[8:12], flags)
	// fixed[12:16] reserved, zero from make()
	binary.LittleEndian.PutUint64(fixed[16:24], uint64(len(headerJSON)))
	binary.LittleEndian.PutUint64(fixed[24:32], uint64(len(data)))
	copy(fixed[ChecksumOffset:ChecksumOffset+ChecksumSize], checksum[:])

	if _, err := wr.Write(fixed); err != nil {
		return errors.Wrap(err, "failed to write fixed header")
	}
	if _, err := wr.Write(headerJSON); err != nil {
		return errors.Wrap(err, "failed to write header JSON")
	}

	// Pad so the data section starts on an alignment boundary.
	pos := int64(FixedHeaderSize) + int64(len(headerJSON))
	padding := (DataAlignment - (pos % DataAlignment)) % DataAlignment
	if padding > 0 {
		if _, err := wr.Write(make([]byte, padding)); err != nil {
			return errors.Wrap(err, "failed to write padding")
		}
	}

	if _, err := wr.Write(data); err != nil {
		return errors.Wrap(err, "failed to write array data")
	}

	return nil
}
