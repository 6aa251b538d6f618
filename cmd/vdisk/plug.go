package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jbweber/vdisk/internal/libvirt"
	"github.com/jbweber/vdisk/internal/metadata"
	"github.com/jbweber/vdisk/internal/storage"
)

func init() {
	for _, cmd := range []*cobra.Command{vdiPlugCmd, vdiUnplugCmd} {
		f := cmd.Flags()
		f.String("target", "vdb", "Guest device name")
		f.String("bus", libvirt.DefaultBus, "Guest disk bus")
		f.Bool("persistent", false, "Also update the domain's stored definition")
		f.String("socket", libvirt.DefaultSocket, "libvirt daemon socket")
		f.Duration("timeout", libvirt.DefaultTimeout, "libvirt connection timeout")
	}
	vdiPlugCmd.Flags().Bool("read-only", false, "Present the disk read-only to the guest")
}

var vdiPlugCmd = &cobra.Command{
	Use:   "plug <sr> <vdi> <domain>",
	Short: "Hot-plug an attached disk into a libvirt domain",
	Long: `Hand the device of an attached disk to a running libvirt domain.

The disk must have been attached with "vdisk vdi attach" first.

Example:
  vdisk vdi attach local data
  vdisk vdi plug local data guest --target vdb`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHotplug(cmd, args, true)
	},
}

var vdiUnplugCmd = &cobra.Command{
	Use:   "unplug <sr> <vdi> <domain>",
	Short: "Hot-unplug a disk from a libvirt domain",
	Long: `Remove an attached disk's device from a running libvirt domain.

The disk stays attached; run "vdisk vdi detach" afterwards to release it.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHotplug(cmd, args, false)
	},
}

func runHotplug(cmd *cobra.Command, args []string, plug bool) error {
	repoID, vdiName, domain := args[0], args[1], args[2]

	a, err := setup()
	if err != nil {
		return err
	}

	spec, err := diskSpec(a, cmd, repoID, vdiName)
	if err != nil {
		return err
	}

	socket, _ := cmd.Flags().GetString("socket")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	persistent, _ := cmd.Flags().GetBool("persistent")

	client, err := libvirt.ConnectWithContext(cmd.Context(), socket, timeout)
	if err != nil {
		return fmt.Errorf("failed to connect to libvirt: %w", err)
	}
	defer func() {
		if closeErr := client.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close libvirt connection: %v\n", closeErr)
		}
	}()

	hotplug := client.Hotplug(a.log)
	if plug {
		if err := hotplug.Attach(cmd.Context(), domain, spec, persistent); err != nil {
			return err
		}
		fmt.Printf("✓ Disk %s plugged into %s as %s\n", vdiName, domain, spec.Target)
		return nil
	}

	if err := hotplug.Detach(cmd.Context(), domain, spec, persistent); err != nil {
		return err
	}
	fmt.Printf("✓ Disk %s unplugged from %s\n", vdiName, domain)
	return nil
}

// diskSpec builds the hot-plug description of an attached disk from its
// device binding and recorded format.
func diskSpec(a *app, cmd *cobra.Command, repoID, vdiName string) (libvirt.DiskSpec, error) {
	device, err := a.service.Device(repoID, vdiName)
	if err != nil {
		return libvirt.DiskSpec{}, err
	}

	repo, err := a.registry.Get(repoID)
	if err != nil {
		return libvirt.DiskSpec{}, err
	}

	disk, err := metadata.Read(filepath.Join(repo.Path, vdiName))
	if err != nil {
		return libvirt.DiskSpec{}, err
	}

	var format storage.Format
	if disk != nil {
		// Block devices do not need a format; image paths fail in DiskXML.
		format, _ = storage.FormatFromConfig(disk.SMConfig)
	}

	target, _ := cmd.Flags().GetString("target")
	bus, _ := cmd.Flags().GetString("bus")
	readOnly := false
	if cmd.Flags().Lookup("read-only") != nil {
		readOnly, _ = cmd.Flags().GetBool("read-only")
	}
	if disk != nil && disk.ReadOnly {
		readOnly = true
	}

	return libvirt.DiskSpec{
		Device:   device,
		Target:   target,
		Bus:      bus,
		Format:   format,
		ReadOnly: readOnly,
	}, nil
}
