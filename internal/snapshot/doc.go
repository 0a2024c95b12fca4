// Package snapshot provides the native .ubd format for saving and loading
// Unbound arrays.
//
// The .ubd format is a simple binary container for one or more named arrays:
//
//	Format Structure:
//	  [4 bytes:  Magic "UNBD"]
//	  [4 bytes:  Version (uint32 LE)]
//	  [4 bytes:  Flags (uint32 LE)]
//	  [4 bytes:  Reserved]
//	  [8 bytes:  Header Size (uint64 LE)]
//	  [8 bytes:  Data Size (uint64 LE)]
//	  [32 bytes: SHA-256 checksum of the data section]
//	  [Header: JSON metadata]
//	  [Array data: raw bytes, 64-byte aligned]
//
// The fixed header is exactly 64 bytes. The JSON header lists every array
// with its name, dtype, shape, offset and size; the data section holds the
// raw element bytes back to back in header order.
//
// Readers verify the checksum and validate array offsets against the data
// section before handing out any bytes, so a truncated or tampered file is
// rejected up front.
//
// Example usage:
//
//	// Save two arrays
//	w, err := snapshot.Create("state.ubd")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = w.WriteArrays(map[string]*dense.Storage{"a": sa, "b": sb}, nil)
//	w.Close()
//
//	// Load them back
//	r, err := snapshot.Open("state.ubd")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	arrays, err := r.ReadAll()
//	r.Close()
package snapshot
