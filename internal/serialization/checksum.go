package serialization

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// checksumKey is the metadata entry holding the data checksum.
const checksumKey = "checksum"

// Digest returns the hex SHA-256 of everything read from r. The CLI uses it
// to fingerprint whole files; the data checksum in the metadata covers tensor
// bytes only.
func Digest(r io.Reader) (string, error) {
	sum, err := readerChecksum(r)
	if err != nil {
		return "", err
	}
	return formatChecksum(sum), nil
}

// readerChecksum hashes r without holding it in memory.
func readerChecksum(r io.Reader) ([32]byte, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return [32]byte{}, err
	}
	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	return sum, nil
}

// ValidateChecksum compares computed checksum against stored checksum.
// Returns ErrChecksumMismatch if they don't match.
func ValidateChecksum(computed, stored [32]byte) error {
	if computed != stored {
		return ErrChecksumMismatch
	}
	return nil
}

// chunksChecksum hashes the concatenation of chunks.
func chunksChecksum(chunks [][]byte) [32]byte {
	readers := make([]io.Reader, len(chunks))
	for i, c := range chunks {
		readers[i] = bytes.NewReader(c)
	}
	// Reads from bytes.Reader never fail.
	sum, _ := readerChecksum(io.MultiReader(readers...))
	return sum
}

// formatChecksum encodes sum for the metadata table.
func formatChecksum(sum [32]byte) string {
	return hex.EncodeToString(sum[:])
}

// parseChecksum decodes a metadata checksum entry.
func parseChecksum(s string) ([32]byte, error) {
	var sum [32]byte
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != len(sum) {
		return sum, &ValidationError{
			Type:    "invalid_checksum",
			Details: fmt.Sprintf("%q is not a hex SHA-256 digest", s),
			Err:     ErrChecksumMismatch,
		}
	}
	copy(sum[:], raw)
	return sum, nil
}
