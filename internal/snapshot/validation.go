package snapshot

import (
	"fmt"
	"sort"
	"strings"
)

// ValidateArrayOffsets checks for overlapping regions and out-of-bounds
// access. A malformed file must never read outside its own data section.
func ValidateArrayOffsets(arrays []ArrayMeta, dataSize int64) error {
	if len(arrays) > MaxArrayCount {
		return &ValidationError{
			Kind:    "too_many_arrays",
			Details: fmt.Sprintf("got %d, max %d", len(arrays), MaxArrayCount),
		}
	}

	sorted := make([]ArrayMeta, len(arrays))
	copy(sorted, arrays)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Offset < sorted[j].Offset
	})

	for i, a := range sorted {
		if a.Offset < 0 || a.Size < 0 {
			return &ValidationError{
				Kind:    "negative_offset",
				Array:   a.Name,
				Details: fmt.Sprintf("offset=%d, size=%d", a.Offset, a.Size),
			}
		}

		if a.Offset+a.Size > dataSize {
			return &ValidationError{
				Kind:    "out_of_bounds",
				Array:   a.Name,
				Details: fmt.Sprintf("offset %d + size %d > data_size %d", a.Offset, a.Size, dataSize),
			}
		}

		if i < len(sorted)-1 {
			next := sorted[i+1]
			if a.Offset+a.Size > next.Offset {
				return &ValidationError{
					Kind:   "offset_overlap",
					Array:  a.Name,
					Array2: next.Name,
					Details: fmt.Sprintf("regions [%d-%d] and [%d-%d] overlap",
						a.Offset, a.Offset+a.Size, next.Offset, next.Offset+next.Size),
				}
			}
		}
	}

	return nil
}

// ValidateArrayName rejects names that could smuggle paths or null bytes.
func ValidateArrayName(name string) error {
	if len(name) > MaxArrayNameLen {
		return &ValidationError{
			Kind:    "name_too_long",
			Array:   name,
			Details: fmt.Sprintf("length %d > max %d", len(name), MaxArrayNameLen),
		}
	}

	if strings.Contains(name, "..") {
		return &ValidationError{
			Kind:    "invalid_name",
			Array:   name,
			Details: "contains '..'",
		}
	}

	if strings.ContainsAny(name, "/\\") {
		return &ValidationError{
			Kind:    "invalid_name",
			Array:   name,
			Details: "contains path separator",
		}
	}

	if strings.Contains(name, "\x00") {
		return &ValidationError{
			Kind:    "invalid_name",
			Array:   name,
			Details: "contains null byte",
		}
	}

	return nil
}

// ValidateHeader checks the array list against the actual data section size.
func ValidateHeader(h *Header, dataSize int64) error {
	if len(h.Arrays) > MaxArrayCount {
		return &ValidationError{
			Kind:    "too_many_arrays",
			Details: fmt.Sprintf("got %d, max %d", len(h.Arrays), MaxArrayCount),
		}
	}

	for _, a := range h.Arrays {
		if err := ValidateArrayName(a.Name); err != nil {
			return err
		}
	}

	return ValidateArrayOffsets(h.Arrays, dataSize)
}
