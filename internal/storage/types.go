package storage

import (
	"fmt"
	"math"
	"strings"
)

// Format is the on-disk representation of a virtual disk. It is decided
// once at creation and recorded in the disk's metadata.
type Format string

const (
	FormatVHD Format = "vhd" // Dynamic VHD managed by the image tool
	FormatRaw Format = "raw" // Sparse flat file
)

// FormatKey is the reserved sm_config key carrying the disk's format.
const FormatKey = "type"

// Size bounds enforced by the backends.
const (
	// MaxImageSize is the largest virtual size the image tool backend
	// accepts, derived from the image format's addressing limit.
	MaxImageSize int64 = 9223372036854774784
	// MaxSparseSize is the largest size a sparse file can be truncated to.
	MaxSparseSize int64 = math.MaxInt64
)

// Formats lists the supported formats.
func Formats() []Format {
	return []Format{FormatVHD, FormatRaw}
}

// ParseFormat parses a format name case-insensitively.
func ParseFormat(s string) (Format, error) {
	want := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, f := range Formats() {
		if f == want {
			return f, nil
		}
	}
	return "", &FormatError{Value: s}
}

// FormatFromConfig reads the format tag out of a disk's sm_config.
func FormatFromConfig(smConfig map[string]string) (Format, error) {
	v, ok := smConfig[FormatKey]
	if !ok {
		return "", &FormatError{Missing: true}
	}
	return ParseFormat(v)
}

// FormatError is returned when a format tag is missing or not recognized.
// A disk in this state cannot be operated on until its metadata is repaired.
type FormatError struct {
	Value   string
	Missing bool
}

func (e *FormatError) Error() string {
	if e.Missing {
		return fmt.Sprintf("format tag %q is missing", FormatKey)
	}
	names := make([]string, 0, len(Formats()))
	for _, f := range Formats() {
		names = append(names, string(f))
	}
	return fmt.Sprintf("unrecognized format %q (supported: %s)", e.Value, strings.Join(names, ", "))
}

// SizeRangeError is returned when a requested size is outside the range a
// backend supports.
type SizeRangeError struct {
	Size int64
	Min  int64
	Max  int64
}

func (e *SizeRangeError) Error() string {
	return fmt.Sprintf("size %d is outside the supported range [%d, %d]", e.Size, e.Min, e.Max)
}

// BackendError wraps a failure of an external backend operation.
type BackendError struct {
	Op     string
	Target string
	Err    error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend %s %s failed: %v", e.Op, e.Target, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

func checkSize(size, minSize, maxSize int64) error {
	if size < minSize || size > maxSize {
		return &SizeRangeError{Size: size, Min: minSize, Max: maxSize}
	}
	return nil
}
