package output

import (
	"bytes"
	"fmt"
	"text/tabwriter"

	"github.com/jbweber/vdisk/internal/metadata"
	"github.com/jbweber/vdisk/internal/qemuimg"
	"github.com/jbweber/vdisk/internal/registry"
	"github.com/jbweber/vdisk/internal/storage"
)

// TableFormatter formats records as human-readable tables.
type TableFormatter struct {
	// NoHeaders omits the header row.
	NoHeaders bool
}

// FormatDisk formats a single disk as a table row.
func (f *TableFormatter) FormatDisk(disk *metadata.Disk) (string, error) {
	return f.FormatDiskList([]*metadata.Disk{disk})
}

// FormatDiskList formats disks as a table.
func (f *TableFormatter) FormatDiskList(disks []*metadata.Disk) (string, error) {
	if len(disks) == 0 {
		return "No disks found\n", nil
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	if !f.NoHeaders {
		_, _ = fmt.Fprintln(w, "VDI\tLABEL\tFORMAT\tSIZE\tUSED\tMODE")
	}

	for _, disk := range disks {
		format := disk.SMConfig[storage.FormatKey]
		if format == "" {
			format = "-"
		}

		label := disk.NameLabel
		if label == "" {
			label = "-"
		}

		mode := "rw"
		if disk.ReadOnly {
			mode = "ro"
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			disk.VDI, label, format,
			formatSize(disk.VirtualSize), formatSize(disk.PhysicalUtilisation), mode)
	}

	_ = w.Flush()
	return buf.String(), nil
}

// FormatRepositoryList formats repositories as a table.
func (f *TableFormatter) FormatRepositoryList(repos []registry.Repository) (string, error) {
	if len(repos) == 0 {
		return "No repositories attached\n", nil
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	if !f.NoHeaders {
		_, _ = fmt.Fprintln(w, "ID\tFORMAT\tPATH")
	}

	for _, repo := range repos {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", repo.ID, repo.Format, repo.Path)
	}

	_ = w.Flush()
	return buf.String(), nil
}

// FormatImageInfo formats image properties as a two-column table.
func (f *TableFormatter) FormatImageInfo(info *qemuimg.ImageInfo) (string, error) {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	backing := info.BackingFile
	if backing == "" {
		backing = "-"
	}

	_, _ = fmt.Fprintf(w, "FORMAT:\t%s\n", info.Format)
	_, _ = fmt.Fprintf(w, "VIRTUAL SIZE:\t%s (%d bytes)\n", formatSize(info.VirtualSize), info.VirtualSize)
	_, _ = fmt.Fprintf(w, "DISK SIZE:\t%s\n", formatSize(info.ActualSize))
	_, _ = fmt.Fprintf(w, "CLUSTER SIZE:\t%d\n", info.ClusterSize)
	_, _ = fmt.Fprintf(w, "BACKING FILE:\t%s\n", backing)

	_ = w.Flush()
	return buf.String(), nil
}

// formatSize formats a byte count using binary units.
// Examples: "512B", "1.0KiB", "1.5GiB"
func formatSize(size int64) string {
	if size < 0 {
		return "unknown"
	}

	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%dB", size)
	}

	div, exp := int64(unit), 0
	for n := size / unit; n >= unit && exp < 5; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f%ciB", float64(size)/float64(div), "KMGTPE"[exp])
}
