package snapshot

import "time"

// Format constants.
const (
	MagicBytes      = "UNBD"
	FormatVersion   = 1
	FixedHeaderSize = 64   // Fixed header size (0x40 bytes)
	DataAlignment   = 64   // Align array data to 64 bytes
	ChecksumSize    = 32   // SHA-256 checksum size
	ChecksumOffset  = 0x20 // Checksum offset in the fixed header
)

// Flags for the .ubd format.
const (
	FlagHasMetadata uint32 = 1 << 0 // bit 0: custom metadata included
)

// Validation limits for resource protection.
const (
	MaxHeaderSize   = 100 * 1024 * 1024 // Maximum JSON header size
	MaxArrayCount   = 100_000           // Maximum number of arrays in a file
	MaxArrayNameLen = 4096              // Maximum array name length
)

// Header is the JSON header in a .ubd file.
type Header struct {
	FormatVersion int               `json:"format_version"`
	CreatedAt     time.Time         `json:"created_at"`
	Arrays        []ArrayMeta       `json:"arrays"`
	Metadata      map[string]string `json:"metadata"`
}

// ArrayMeta describes one array in the .ubd file.
type ArrayMeta struct {
	Name   string `json:"name"`
	DType  string `json:"dtype"`  // e.g. "float32", "int64"
	Shape  []int  `json:"shape"`
	Offset int64  `json:"offset"` // Bytes from the start of the data section
	Size   int64  `json:"size"`   // Size in bytes
}
