package libvirt

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"libvirt.org/go/libvirtxml"

	"github.com/jbweber/vdisk/internal/storage"
)

// DefaultBus is the disk bus used when DiskSpec.Bus is empty.
const DefaultBus = "virtio"

var targetPattern = regexp.MustCompile(`^(vd|sd|hd|xvd)[a-z]+$`)

// DiskSpec describes an attached disk to be plugged into a domain.
type DiskSpec struct {
	// Device is the handle returned when the disk was attached: a block
	// device node for raw disks, an image path for vhd disks.
	Device string
	// Target is the guest device name, e.g. "vdb".
	Target   string
	Bus      string
	Format   storage.Format
	ReadOnly bool
}

// DiskXML renders the <disk> element for spec.
func DiskXML(spec DiskSpec) (string, error) {
	disk, err := domainDisk(spec)
	if err != nil {
		return "", err
	}

	xml, err := disk.Marshal()
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal disk XML")
	}
	return xml, nil
}

func domainDisk(spec DiskSpec) (*libvirtxml.DomainDisk, error) {
	if spec.Device == "" {
		return nil, errors.New("device is required")
	}
	if !targetPattern.MatchString(spec.Target) {
		return nil, errors.Errorf("invalid target device %q", spec.Target)
	}

	bus := spec.Bus
	if bus == "" {
		bus = DefaultBus
	}

	disk := &libvirtxml.DomainDisk{
		Device: "disk",
		Driver: &libvirtxml.DomainDiskDriver{
			Name:  "qemu",
			Cache: "none",
		},
		Target: &libvirtxml.DomainDiskTarget{
			Dev: spec.Target,
			Bus: bus,
		},
	}

	if strings.HasPrefix(spec.Device, "/dev/") {
		// Block devices are presented to the guest as-is.
		disk.Driver.Type = "raw"
		disk.Source = &libvirtxml.DomainDiskSource{
			Block: &libvirtxml.DomainDiskSourceBlock{Dev: spec.Device},
		}
	} else {
		driverType, err := driverType(spec.Format)
		if err != nil {
			return nil, err
		}
		disk.Driver.Type = driverType
		disk.Source = &libvirtxml.DomainDiskSource{
			File: &libvirtxml.DomainDiskSourceFile{File: spec.Device},
		}
	}

	if spec.ReadOnly {
		disk.ReadOnly = &libvirtxml.DomainDiskReadOnly{}
	}

	return disk, nil
}

// driverType maps a disk format to the qemu driver name for image files.
func driverType(format storage.Format) (string, error) {
	switch format {
	case storage.FormatVHD:
		return "vpc", nil
	case storage.FormatRaw:
		return "raw", nil
	default:
		return "", &storage.FormatError{Value: string(format), Missing: format == ""}
	}
}
