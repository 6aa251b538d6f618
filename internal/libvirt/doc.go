// Package libvirt plugs attached disks into libvirt domains.
//
// After a disk has been attached, its device handle can be handed to a
// running domain as a <disk> device:
//
//	client, err := libvirt.Connect("", 0)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	spec := libvirt.DiskSpec{Device: "/dev/loop0", Target: "vdb", Format: storage.FormatRaw}
//	if err := client.Hotplug(log).Attach(ctx, "guest", spec, false); err != nil {
//	    return err
//	}
//
// Block device handles (loop devices for raw disks) become block sources,
// image paths (vhd disks) become file sources opened with the vpc driver.
//
// Hotplug depends on a consumer-side interface satisfied by *libvirt.Libvirt
// so it can be tested without a daemon.
package libvirt
