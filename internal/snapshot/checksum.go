package snapshot

import (
	"crypto/sha256"
	"io"
)

// ComputeChecksum computes the SHA-256 checksum of data.
func ComputeChecksum(data []byte) [32]byte {
	return sha256.Sum256(data)
}

// ComputeChecksumReader computes the SHA-256 checksum of everything in r
// without loading it into memory at once.
func ComputeChecksumReader(r io.Reader) ([32]byte, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return [32]byte{}, err
	}
	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	return sum, nil
}

// ValidateChecksum compares a computed checksum against the stored one.
func ValidateChecksum(computed, stored [32]byte) error {
	if computed != stored {
		return ErrChecksumMismatch
	}
	return nil
}
