// Package metadata stores per-disk descriptive metadata in JSON sidecar
// files next to the disk's data file.
//
// The sidecar for "/srv/sr1/report" is "/srv/sr1/report.json". It carries
// everything that cannot be derived from the image itself: labels, snapshot
// lineage and the format-specific sm_config, which includes the format tag.
package metadata

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// SidecarSuffix is appended to a data file path to form its sidecar path.
const SidecarSuffix = ".json"

// Placeholder defaults.
const (
	// TypeUser is the disk type assumed for files without a sidecar.
	TypeUser = "user"
	// EpochSnapshotTime is the snapshot time of a disk that was never snapshotted.
	EpochSnapshotTime = "19700101T00:00:00Z"
)

// Disk is the metadata record of one virtual disk.
type Disk struct {
	VDI                 string            `json:"vdi" yaml:"vdi"`
	ContentID           string            `json:"content_id" yaml:"content_id"`
	NameLabel           string            `json:"name_label" yaml:"name_label"`
	NameDescription     string            `json:"name_description" yaml:"name_description"`
	Type                string            `json:"ty" yaml:"ty"`
	MetadataOfPool      string            `json:"metadata_of_pool" yaml:"metadata_of_pool"`
	IsASnapshot         bool              `json:"is_a_snapshot" yaml:"is_a_snapshot"`
	SnapshotTime        string            `json:"snapshot_time" yaml:"snapshot_time"`
	SnapshotOf          string            `json:"snapshot_of" yaml:"snapshot_of"`
	ReadOnly            bool              `json:"read_only" yaml:"read_only"`
	VirtualSize         int64             `json:"virtual_size" yaml:"virtual_size"`
	PhysicalUtilisation int64             `json:"physical_utilisation" yaml:"physical_utilisation"`
	SMConfig            map[string]string `json:"sm_config" yaml:"sm_config"`
	Persistent          bool              `json:"persistent" yaml:"persistent"`
}

// SidecarPath returns the sidecar path for a data file.
func SidecarPath(dataPath string) string {
	return dataPath + SidecarSuffix
}

// IsSidecar reports whether name is a sidecar file name.
func IsSidecar(name string) bool {
	return strings.HasSuffix(name, SidecarSuffix)
}

// Placeholder synthesizes metadata for a data file that has no sidecar.
// It assumes a persistent user disk whose virtual size is the file size.
// The record carries no format tag, so it is only fit for inventory.
func Placeholder(name string, size int64) *Disk {
	return &Disk{
		VDI:                 name,
		NameLabel:           name,
		Type:                TypeUser,
		SnapshotTime:        EpochSnapshotTime,
		VirtualSize:         size,
		PhysicalUtilisation: size,
		SMConfig:            map[string]string{},
		Persistent:          true,
	}
}

// Read returns the metadata for the disk whose data file is dataPath.
//
// The sidecar wins when present. Otherwise, if dataPath is a regular file,
// a Placeholder is returned. If neither exists Read returns nil and no
// error.
func Read(dataPath string) (*Disk, error) {
	data, err := os.ReadFile(SidecarPath(dataPath))
	if err == nil {
		var disk Disk
		if err := json.Unmarshal(data, &disk); err != nil {
			return nil, errors.Wrapf(err, "failed to parse metadata %s", SidecarPath(dataPath))
		}
		if disk.SMConfig == nil {
			disk.SMConfig = map[string]string{}
		}
		return &disk, nil
	}
	if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "failed to read metadata %s", SidecarPath(dataPath))
	}

	info, err := os.Stat(dataPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to stat %s", dataPath)
	}
	if !info.Mode().IsRegular() {
		return nil, nil
	}

	return Placeholder(info.Name(), info.Size()), nil
}

// Write stores disk as the sidecar of dataPath, replacing any previous one.
func Write(dataPath string, disk *Disk) error {
	data, err := json.MarshalIndent(disk, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal metadata")
	}

	if err := os.WriteFile(SidecarPath(dataPath), data, 0644); err != nil {
		return errors.Wrapf(err, "failed to write metadata %s", SidecarPath(dataPath))
	}
	return nil
}

// Remove deletes the sidecar of dataPath. A missing sidecar is not an error.
func Remove(dataPath string) error {
	if err := os.Remove(SidecarPath(dataPath)); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "failed to remove metadata %s", SidecarPath(dataPath))
	}
	return nil
}

// Exists reports whether the sidecar of dataPath exists.
func Exists(dataPath string) bool {
	_, err := os.Stat(SidecarPath(dataPath))
	return err == nil
}
