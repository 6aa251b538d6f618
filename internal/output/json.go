package output

import (
	"encoding/json"
	"fmt"

	"github.com/jbweber/vdisk/internal/metadata"
	"github.com/jbweber/vdisk/internal/qemuimg"
	"github.com/jbweber/vdisk/internal/registry"
)

// JSONFormatter formats records as JSON.
type JSONFormatter struct{}

// FormatDisk formats a single disk as a JSON object, in the same shape as
// its metadata sidecar.
func (f *JSONFormatter) FormatDisk(disk *metadata.Disk) (string, error) {
	return marshalJSON(disk, "disk")
}

// FormatDiskList formats disks as a JSON array.
func (f *JSONFormatter) FormatDiskList(disks []*metadata.Disk) (string, error) {
	if len(disks) == 0 {
		return "[]\n", nil
	}
	return marshalJSON(disks, "disks")
}

// FormatRepositoryList formats repositories as a JSON array.
func (f *JSONFormatter) FormatRepositoryList(repos []registry.Repository) (string, error) {
	if len(repos) == 0 {
		return "[]\n", nil
	}
	return marshalJSON(repos, "repositories")
}

// FormatImageInfo formats image properties as a JSON object.
func (f *JSONFormatter) FormatImageInfo(info *qemuimg.ImageInfo) (string, error) {
	return marshalJSON(info, "image info")
}

func marshalJSON(v interface{}, what string) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s to JSON: %w", what, err)
	}
	return string(data) + "\n", nil
}
