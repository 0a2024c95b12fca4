package snapshot

import (
	"encoding/binary"
	"encoding/json"
	"io"
	"os"

	"github.com/unbound-ml/unbound/errors"
	"github.com/unbound-ml/unbound/internal/array"
	"github.com/unbound-ml/unbound/internal/backend/dense"
)

// Reader reads arrays from a .ubd file.
type Reader struct {
	file       *os.File
	header     Header
	flags      uint32
	dataOffset int64
	dataSize   int64
	checksum   [32]byte
	closed     bool
}

// Options configures Reader behavior.
type Options struct {
	SkipChecksum bool // Skip checksum verification (faster, unsafe on untrusted files)
}

// Open opens a .ubd file with checksum verification enabled.
func Open(path string) (*Reader, error) {
	return OpenWithOptions(path, Options{})
}

// OpenWithOptions opens a .ubd file with the given options. The header is
// parsed and validated before the reader is returned.
func OpenWithOptions(path string, opts Options) (*Reader, error) {
	//nolint:gosec // G304: the path comes from the caller, which is expected for loading
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open file")
	}

	r := &Reader{file: file}
	if err := r.parseHeader(); err != nil {
		_ = file.Close()
		return nil, errors.Wrap(err, "failed to parse header")
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, errors.Wrap(err, "failed to stat file")
	}
	if r.dataOffset+r.dataSize > info.Size() {
		_ = file.Close()
		return nil, errors.Newf("truncated file: header claims %d data bytes at offset %d, file has %d",
			r.dataSize, r.dataOffset, info.Size())
	}

	if err := ValidateHeader(&r.header, r.dataSize); err != nil {
		_ = file.Close()
		return nil, errors.Wrap(err, "validation failed")
	}

	if !opts.SkipChecksum {
		if err := r.verifyChecksum(); err != nil {
			_ = file.Close()
			return nil, err
		}
	}

	return r, nil
}

func (r *Reader) parseHeader() error {
	fixed := make([]byte, FixedHeaderSize)
	if _, err := io.ReadFull(r.file, fixed); err != nil {
		return errors.Wrap(err, "failed to read fixed header")
	}

	if string(fixed[0:4]) != MagicBytes {
		return ErrInvalidMagic
	}

	version := binary.LittleEndian.Uint32(fixed[4:8])
	if version != FormatVersion {
		return errors.Wrapf(ErrUnsupportedVersion, "got %d, expected %d", version, FormatVersion)
	}

	r.flags = binary.LittleEndian.Uint32(fixed[8:12])
	headerSize := binary.LittleEndian.Uint64(fixed[16:24])
	r.dataSize = int64(binary.LittleEndian.Uint64(fixed[24:32]))
	copy(r.checksum[:], fixed[ChecksumOffset:ChecksumOffset+ChecksumSize])

	if headerSize > MaxHeaderSize {
		return ErrHeaderTooLarge
	}

	headerBytes := make([]byte, headerSize)
	if _, err := io.ReadFull(r.file, headerBytes); err != nil {
		return errors.Wrap(err, "failed to read header JSON")
	}
	if err := json.Unmarshal(headerBytes, &r.header); err != nil {
		return errors.Wrap(err, "failed to parse header JSON")
	}

	pos := int64(FixedHeaderSize) + int64(headerSize)
	padding := (DataAlignment - (pos % DataAlignment)) % DataAlignment
	r.dataOffset = pos + padding

	return nil
}

func (r *Reader) verifyChecksum() error {
	if _, err := r.file.Seek(r.dataOffset, io.SeekStart); err != nil {
		return errors.Wrap(err, "failed to seek to data section")
	}
	computed, err := ComputeChecksumReader(io.LimitReader(r.file, r.dataSize))
	if err != nil {
		return errors.Wrap(err, "failed to read data for checksum")
	}
	return ValidateChecksum(computed, r.checksum)
}

// Header returns the parsed file header.
func (r *Reader) Header() Header {
	return r.header
}

// Metadata returns the metadata map from the header.
func (r *Reader) Metadata() map[string]string {
	return r.header.Metadata
}

// ArrayNames returns the names of all arrays in the file, in header order.
func (r *Reader) ArrayNames() []string {
	names := make([]string, len(r.header.Arrays))
	for i, meta := range r.header.Arrays {
		names[i] = meta.Name
	}
	return names
}

// ArrayInfo returns the metadata for a named array.
func (r *Reader) ArrayInfo(name string) (*ArrayMeta, error) {
	for _, meta := range r.header.Arrays {
		if meta.Name == name {
			return &meta, nil
		}
	}
	return nil, errors.Wrapf(errors.ErrNotFound, "array %q", name)
}

// ReadArrayData reads the raw bytes of a named array.
func (r *Reader) ReadArrayData(name string) ([]byte, error) {
	if r.closed {
		return nil, errors.ErrClosed
	}

	meta, err := r.ArrayInfo(name)
	if err != nil {
		return nil, err
	}

	if _, err := r.file.Seek(r.dataOffset+meta.Offset, io.SeekStart); err != nil {
		return nil, errors.Wrap(err, "failed to seek to array data")
	}

	data := make([]byte, meta.Size)
	if _, err := io.ReadFull(r.file, data); err != nil {
		return nil, errors.Wrapf(err, "failed to read array %q", name)
	}
	return data, nil
}

// LoadArray reads a named array into a fresh dense storage.
func (r *Reader) LoadArray(name string) (*dense.Storage, error) {
	if r.closed {
		return nil, errors.ErrClosed
	}

	meta, err := r.ArrayInfo(name)
	if err != nil {
		return nil, err
	}

	s, err := storageFromMeta(meta)
	if err != nil {
		return nil, err
	}

	data, err := r.ReadArrayData(name)
	if err != nil {
		return nil, err
	}
	copy(s.Data()[:len(data)], data)

	return s, nil
}

// ReadAll loads every array in the file.
func (r *Reader) ReadAll() (map[string]*dense.Storage, error) {
	if r.closed {
		return nil, errors.ErrClosed
	}

	arrays := make(map[string]*dense.Storage, len(r.header.Arrays))
	for _, meta := range r.header.Arrays {
		s, err := r.LoadArray(meta.Name)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to load array %q", meta.Name)
		}
		arrays[meta.Name] = s
	}
	return arrays, nil
}

// Close closes the reader and the underlying file.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.file.Close()
}

// storageFromMeta allocates a dense storage matching an array's metadata.
func storageFromMeta(meta *ArrayMeta) (*dense.Storage, error) {
	dtype, err := array.ParseDataType(meta.DType)
	if err != nil {
		return nil, errors.Wrapf(err, "array %q", meta.Name)
	}

	shape := array.Shape(meta.Shape)
	if err := shape.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid shape for array %q", meta.Name)
	}

	want := int64(shape.NumElements() * dtype.Size())
	if meta.Size != want {
		return nil, errors.Newf("array %q: size %d does not match shape %v of %s (want %d)",
			meta.Name, meta.Size, meta.Shape, meta.DType, want)
	}

	return dense.New(shape, dtype)
}

// ReadFrom reads a full snapshot from an io.Reader. This is the streaming
// counterpart of WriteTo; the checksum is always verified.
func ReadFrom(rd io.Reader) (map[string]*dense.Storage, Header, error) {
	fixed := make([]byte, FixedHeaderSize)
	if _, err := io.ReadFull(rd, fixed); err != nil {
		return nil, Header{}, errors.Wrap(err, "failed to read fixed header")
	}

	if string(fixed[0:4]) != MagicBytes {
		return nil, Header{}, ErrInvalidMagic
	}
	version := binary.LittleEndian.Uint32(fixed[4:8])
	if version != FormatVersion {
		return nil, Header{}, errors.Wrapf(ErrUnsupportedVersion, "got %d, expected %d", version, FormatVersion)
	}

	headerSize := binary.LittleEndian.Uint64(fixed[16:24])
	dataSize := int64(binary.LittleEndian.Uint64(fixed[24:32]))
	var stored [32]byte
	copy(stored[:], fixed[ChecksumOffset:ChecksumOffset+ChecksumSize])

	if headerSize > MaxHeaderSize {
		return nil, Header{}, ErrHeaderTooLarge
	}

	headerBytes := make([]byte, headerSize)
	if _, err := io.ReadFull(rd, headerBytes); err != nil {
		return nil, Header{}, errors.Wrap(err, "failed to read header JSON")
	}
	var header Header
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return nil, Header{}, errors.Wrap(err, "failed to parse header JSON")
	}

	pos := int64(FixedHeaderSize) + int64(headerSize)
	padding := (DataAlignment - (pos % DataAlignment)) % DataAlignment
	if padding > 0 {
		if _, err := io.CopyN(io.Discard, rd, padding); err != nil {
			return nil, Header{}, errors.Wrap(err, "failed to skip padding")
		}
	}

	if err := ValidateHeader(&header, dataSize); err != nil {
		return nil, Header{}, errors.Wrap(err, "validation failed")
	}

	data := make([]byte, dataSize)
	if _, err := io.ReadFull(rd, data); err != nil {
		return nil, Header{}, errors.Wrap(err, "failed to read data section")
	}
	if err := ValidateChecksum(ComputeChecksum(data), stored); err != nil {
		return nil, Header{}, err
	}

	arrays := make(map[string]*dense.Storage, len(header.Arrays))
	for i := range header.Arrays {
		meta := &header.Arrays[i]
		s, err := storageFromMeta(meta)
		if err != nil {
			return nil, Header{}, err
		}
		copy(s.Data()[:meta.Size], data[meta.Offset:meta.Offset+meta.Size])
		arrays[meta.Name] = s
	}

	return arrays, header, nil
}
