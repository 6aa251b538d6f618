package output

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/jbweber/vdisk/internal/metadata"
	"github.com/jbweber/vdisk/internal/qemuimg"
	"github.com/jbweber/vdisk/internal/registry"
)

// YAMLFormatter formats records as YAML.
type YAMLFormatter struct{}

// FormatDisk formats a single disk as YAML.
func (f *YAMLFormatter) FormatDisk(disk *metadata.Disk) (string, error) {
	data, err := yaml.Marshal(disk)
	if err != nil {
		return "", fmt.Errorf("failed to marshal disk to YAML: %w", err)
	}
	return string(data), nil
}

// FormatDiskList formats disks as a YAML stream (multiple documents
// separated by ---).
func (f *YAMLFormatter) FormatDiskList(disks []*metadata.Disk) (string, error) {
	if len(disks) == 0 {
		return "", nil
	}

	var buf bytes.Buffer

	for i, disk := range disks {
		data, err := yaml.Marshal(disk)
		if err != nil {
			return "", fmt.Errorf("failed to marshal disk %s to YAML: %w", disk.VDI, err)
		}

		if i > 0 {
			buf.WriteString("---\n")
		}

		buf.Write(data)
	}

	return buf.String(), nil
}

// FormatRepositoryList formats repositories as a YAML sequence.
func (f *YAMLFormatter) FormatRepositoryList(repos []registry.Repository) (string, error) {
	if len(repos) == 0 {
		return "", nil
	}

	data, err := yaml.Marshal(repos)
	if err != nil {
		return "", fmt.Errorf("failed to marshal repositories to YAML: %w", err)
	}
	return string(data), nil
}

// FormatImageInfo formats image properties as YAML.
func (f *YAMLFormatter) FormatImageInfo(info *qemuimg.ImageInfo) (string, error) {
	data, err := yaml.Marshal(info)
	if err != nil {
		return "", fmt.Errorf("failed to marshal image info to YAML: %w", err)
	}
	return string(data), nil
}
