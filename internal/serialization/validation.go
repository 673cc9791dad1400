package serialization

import (
	"fmt"
	"strings"
)

// Validation limits for security and resource protection.
const (
	MaxHeaderSize    = 100 * 1024 * 1024 // 100MB - maximum header size
	MaxTensorCount   = 100_000           // Maximum number of tensors in a file
	MaxTensorNameLen = 4096              // Maximum tensor name length
)

// ValidateTensorName checks tensor names for path traversal attacks and malicious patterns.
func ValidateTensorName(name string) error {
	if name == "" {
		return &ValidationError{
			Type:    "invalid_name",
			Details: "empty name",
			Err:     ErrInvalidTensorName,
		}
	}
	if len(name) > MaxTensorNameLen {
		return &ValidationError{
			Type:    "name_too_long",
			Tensor:  name[:32] + "...",
			Details: fmt.Sprintf("length %d > max %d", len(name), MaxTensorNameLen),
			Err:     ErrTensorNameTooLong,
		}
	}

	// Path traversal prevention.
	if strings.Contains(name, "..") {
		return &ValidationError{
			Type:    "invalid_name",
			Tensor:  name,
			Details: "contains '..' (path traversal attempt)",
			Err:     ErrInvalidTensorName,
		}
	}
	if strings.ContainsAny(name, "/\\") {
		return &ValidationError{
			Type:    "invalid_name",
			Tensor:  name,
			Details: "contains path separator (/ or \\)",
			Err:     ErrInvalidTensorName,
		}
	}
	if strings.Contains(name, "\x00") {
		return &ValidationError{
			Type:    "invalid_name",
			Tensor:  name,
			Details: "contains null byte",
			Err:     ErrInvalidTensorName,
		}
	}

	return nil
}

// validateEntries checks the tensor count, every name, and name uniqueness.
func validateEntries(entries []Entry) error {
	if len(entries) > MaxTensorCount {
		return &ValidationError{
			Type:    "too_many_tensors",
			Details: fmt.Sprintf("got %d, max %d", len(entries), MaxTensorCount),
			Err:     ErrTooManyTensors,
		}
	}
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if err := ValidateTensorName(e.Name); err != nil {
			return err
		}
		if _, dup := seen[e.Name]; dup {
			return &ValidationError{
				Type:    "duplicate_name",
				Tensor:  e.Name,
				Details: "name used by more than one tensor",
				Err:     ErrInvalidTensorName,
			}
		}
		seen[e.Name] = struct{}{}
	}
	return nil
}
