// Package output provides formatters for displaying disks, repositories and
// image properties in various formats (table, YAML, JSON).
package output

import (
	"fmt"

	"github.com/jbweber/vdisk/internal/metadata"
	"github.com/jbweber/vdisk/internal/qemuimg"
	"github.com/jbweber/vdisk/internal/registry"
)

// Format represents an output format type.
type Format string

const (
	// FormatTable is a human-readable table format.
	FormatTable Format = "table"
	// FormatYAML is a YAML format.
	FormatYAML Format = "yaml"
	// FormatJSON is a JSON format for machine consumption.
	FormatJSON Format = "json"
)

// Formatter formats vdisk records for output.
type Formatter interface {
	// FormatDisk formats a single disk record.
	FormatDisk(disk *metadata.Disk) (string, error)

	// FormatDiskList formats the disks of a repository.
	FormatDiskList(disks []*metadata.Disk) (string, error)

	// FormatRepositoryList formats attached repositories.
	FormatRepositoryList(repos []registry.Repository) (string, error)

	// FormatImageInfo formats image properties reported by the image tool.
	FormatImageInfo(info *qemuimg.ImageInfo) (string, error)
}

// Options contains options for formatting output.
type Options struct {
	// Format specifies the output format.
	Format Format
	// NoHeaders omits headers in table format.
	NoHeaders bool
}

// NewFormatter creates a new Formatter based on the specified format.
func NewFormatter(opts Options) (Formatter, error) {
	switch opts.Format {
	case FormatTable:
		return &TableFormatter{NoHeaders: opts.NoHeaders}, nil
	case FormatYAML:
		return &YAMLFormatter{}, nil
	case FormatJSON:
		return &JSONFormatter{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s (supported: table, yaml, json)", opts.Format)
	}
}

// ValidateFormat checks if a format string is valid.
func ValidateFormat(format string) error {
	f := Format(format)
	switch f {
	case FormatTable, FormatYAML, FormatJSON:
		return nil
	default:
		return fmt.Errorf("invalid format: %s (valid formats: table, yaml, json)", format)
	}
}
