// Package serialization saves and loads views and COO sets in safetensors format.
//
// A file is the standard safetensors layout written by
// github.com/nlpodyssey/safetensors:
//
//	[8 bytes: header size (uint64 LE)]
//	[header: JSON tensor table + string metadata]
//	[tensor data: raw little-endian bytes, row-major]
//
// Save adds a "checksum" metadata entry holding the hex SHA-256 of every
// tensor's data, taken in name order. Load verifies it when present, so files
// written by other tools still load.
//
// COO sets are stored as two tensors, "indices" [nnz, rank] and
// "values" [nnz], with the dense shape as JSON in the "dense_shape" metadata
// entry.
//
// Example usage:
//
//	// Save a sorted set
//	f, _ := os.Create("set.safetensors")
//	if err := serialization.SaveCOO(f, set, nil); err != nil {
//	    log.Fatal(err)
//	}
//	f.Close()
//
//	// Load it back
//	f, _ = os.Open("set.safetensors")
//	set, err := serialization.LoadCOO(f, serialization.MaxHeaderSize)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer set.Release()
package serialization
