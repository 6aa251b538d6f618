package qemuimg

import (
	"bufio"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Keys read from the "qemu-img info" report.
const (
	KeyFormat      = "file format"
	KeyVirtualSize = "virtual size"
	KeyDiskSize    = "disk size"
	KeyClusterSize = "cluster_size"
	KeyBackingFile = "backing file"
)

// ImageInfo describes a disk image as reported by the image tool.
type ImageInfo struct {
	Format      string `json:"format" yaml:"format"`
	VirtualSize int64  `json:"virtual_size" yaml:"virtual_size"`
	ActualSize  int64  `json:"actual_size" yaml:"actual_size"`
	ClusterSize int64  `json:"cluster_size" yaml:"cluster_size"`
	BackingFile string `json:"backing_file,omitempty" yaml:"backing_file,omitempty"`
}

// MissingKeyError is returned when a required key is absent from an info report.
type MissingKeyError struct {
	Key string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("image info is missing required key %q", e.Key)
}

var (
	exactBytesPattern = regexp.MustCompile(`^[0-9]+(?:\.[0-9]+)?\s*(?:[KMGT](?:iB)?|B)?\s*\((\d+) bytes\)$`)
	suffixedPattern   = regexp.MustCompile(`^([0-9]+(?:\.[0-9]+)?)\s*([KMGT])(?:iB)?$`)

	suffixMultiplier = map[string]float64{
		"K": 1024,
		"M": 1024 * 1024,
		"G": 1024 * 1024 * 1024,
		"T": 1024 * 1024 * 1024 * 1024,
	}
)

// ParseInfo parses the line-oriented "key: value" report printed by
// "qemu-img info". Lines without a value, such as the section headers,
// are ignored. When a key repeats the last value wins.
func ParseInfo(report string) (*ImageInfo, error) {
	fields := make(map[string]string)

	scanner := bufio.NewScanner(strings.NewReader(report))
	for scanner.Scan() {
		line := scanner.Text()
		idx := strings.Index(line, ": ")
		if idx < 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		fields[key] = strings.TrimSpace(line[idx+2:])
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read image info")
	}

	required := func(key string) (string, error) {
		v, ok := fields[key]
		if !ok {
			return "", &MissingKeyError{Key: key}
		}
		return v, nil
	}

	format, err := required(KeyFormat)
	if err != nil {
		return nil, err
	}

	rawVirtual, err := required(KeyVirtualSize)
	if err != nil {
		return nil, err
	}
	virtual, err := ParseSize(rawVirtual)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid %s", KeyVirtualSize)
	}

	rawCluster, err := required(KeyClusterSize)
	if err != nil {
		return nil, err
	}
	cluster, err := strconv.ParseInt(rawCluster, 10, 64)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid %s %q", KeyClusterSize, rawCluster)
	}

	info := &ImageInfo{
		Format:      format,
		VirtualSize: virtual,
		ClusterSize: cluster,
		BackingFile: fields[KeyBackingFile],
	}

	// Older qemu-img releases omit the allocation for some protocols, and an
	// empty image reports a bare "0" or "0 B".
	if rawDisk, ok := fields[KeyDiskSize]; ok {
		actual, err := ParseSize(rawDisk)
		if err != nil {
			n, convErr := strconv.ParseInt(strings.TrimSuffix(rawDisk, " B"), 10, 64)
			if convErr != nil {
				return nil, errors.Wrapf(err, "invalid %s", KeyDiskSize)
			}
			actual = n
		}
		info.ActualSize = actual
	}

	return info, nil
}

// ParseSize converts a size as printed by qemu-img into bytes.
//
// Accepted forms:
//   - "1.4M": number with a K, M, G or T suffix, each a factor of 1024.
//     The result is truncated to a whole byte count.
//   - "8.0G (8589934592 bytes)": the exact count in parentheses always
//     wins over the rounded prefix.
//
// Newer qemu-img releases print IEC suffixes ("8 GiB"); those map onto the
// same multipliers.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)

	if m := exactBytesPattern.FindStringSubmatch(s); m != nil {
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return 0, errors.Wrapf(err, "invalid byte count in size %q", s)
		}
		return n, nil
	}

	m := suffixedPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, errors.Errorf("unrecognized size %q", s)
	}

	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid number in size %q", s)
	}

	size := value * suffixMultiplier[m[2]]
	if math.IsNaN(size) || math.IsInf(size, 0) || size >= math.MaxInt64 {
		return 0, errors.Errorf("size %q overflows a 64-bit byte count", s)
	}
	return int64(size), nil
}
