package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jbweber/vdisk/internal/metadata"
	"github.com/jbweber/vdisk/internal/storage"
)

// Disk commands
var vdiCmd = &cobra.Command{
	Use:   "vdi",
	Short: "Manage disks in a storage repository",
	Long: `Create, destroy, list and attach disks inside an attached repository.

Each disk is a data file plus a JSON metadata file next to it. The format
recorded in the metadata (sm_config type) selects how the disk is handled:

  vhd   dynamic VHD image managed by qemu-img, attached as its file path
  raw   sparse file, attached through a loop device`,
}

func init() {
	vdiCmd.AddCommand(vdiCreateCmd)
	vdiCmd.AddCommand(vdiDestroyCmd)
	vdiCmd.AddCommand(vdiScanCmd)
	vdiCmd.AddCommand(vdiStatCmd)
	vdiCmd.AddCommand(vdiAttachCmd)
	vdiCmd.AddCommand(vdiDetachCmd)
	vdiCmd.AddCommand(vdiActivateCmd)
	vdiCmd.AddCommand(vdiDeactivateCmd)
	vdiCmd.AddCommand(vdiResizeCmd)
	vdiCmd.AddCommand(vdiInfoCmd)
	vdiCmd.AddCommand(vdiDeviceCmd)
	vdiCmd.AddCommand(vdiPlugCmd)
	vdiCmd.AddCommand(vdiUnplugCmd)

	f := vdiCreateCmd.Flags()
	f.String("size", "0", "Virtual size, in bytes or with a K/M/G/T suffix")
	f.String("format", "", "Disk format (vhd or raw); defaults to the repository format")
	f.String("description", "", "Disk description")
	f.Bool("read-only", false, "Mark the disk read-only")
	f.StringSlice("sm-config", nil, "Additional sm_config entries as key=value")

	vdiAttachCmd.Flags().Bool("read-only", false, "Attach the disk read-only")
}

var vdiCreateCmd = &cobra.Command{
	Use:   "create <sr> <label>",
	Short: "Create a disk",
	Long: `Create a disk in a repository.

The file name is derived from the label. Characters outside letters, digits,
'-', '_' and '+' are replaced, and a numeric suffix is added when the name
is taken.

Example:
  vdisk vdi create local "boot disk" --size 20G --format vhd`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup()
		if err != nil {
			return err
		}

		flags := cmd.Flags()
		rawSize, _ := flags.GetString("size")
		format, _ := flags.GetString("format")
		description, _ := flags.GetString("description")
		readOnly, _ := flags.GetBool("read-only")
		extra, _ := flags.GetStringSlice("sm-config")

		size, err := parseSize(rawSize)
		if err != nil {
			return err
		}

		smConfig, err := parseKeyValues(extra)
		if err != nil {
			return err
		}
		if format != "" {
			smConfig[storage.FormatKey] = format
		}

		disk, err := a.service.Create(cmd.Context(), args[0], metadata.Disk{
			NameLabel:       args[1],
			NameDescription: description,
			ReadOnly:        readOnly,
			VirtualSize:     size,
			SMConfig:        smConfig,
			Persistent:      true,
		})
		if err != nil {
			return fmt.Errorf("failed to create disk: %w", err)
		}

		result, err := a.formatter.FormatDisk(disk)
		if err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}

		fmt.Print(result)
		return nil
	},
}

var vdiDestroyCmd = &cobra.Command{
	Use:   "destroy <sr> <vdi>",
	Short: "Destroy a disk",
	Long: `Delete a disk's data file and metadata.

Warning: This permanently deletes the disk contents.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup()
		if err != nil {
			return err
		}

		if err := a.service.Destroy(cmd.Context(), args[0], args[1]); err != nil {
			return fmt.Errorf("failed to destroy disk: %w", err)
		}

		fmt.Printf("✓ Disk %s destroyed\n", args[1])
		return nil
	},
}

var vdiScanCmd = &cobra.Command{
	Use:   "scan <sr>",
	Short: "List the disks in a repository",
	Long: `List every disk in a repository with its metadata.

Data files without metadata are listed with placeholder values.

Output formats:
  -o table  Human-readable table (default)
  -o yaml   Disk records as a YAML stream
  -o json   Disk records as a JSON array`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup()
		if err != nil {
			return err
		}

		disks, err := a.service.Scan(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to scan repository: %w", err)
		}

		result, err := a.formatter.FormatDiskList(disks)
		if err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}

		fmt.Print(result)
		return nil
	},
}

var vdiStatCmd = &cobra.Command{
	Use:   "stat <sr> <vdi>",
	Short: "Show a single disk (not implemented)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup()
		if err != nil {
			return err
		}

		disk, err := a.service.Stat(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}

		result, err := a.formatter.FormatDisk(disk)
		if err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}

		fmt.Print(result)
		return nil
	},
}

var vdiAttachCmd = &cobra.Command{
	Use:   "attach <sr> <vdi>",
	Short: "Attach a disk and print its device",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup()
		if err != nil {
			return err
		}

		readOnly, _ := cmd.Flags().GetBool("read-only")

		device, err := a.service.Attach(cmd.Context(), args[0], args[1], !readOnly)
		if err != nil {
			return fmt.Errorf("failed to attach disk: %w", err)
		}

		fmt.Println(device)
		return nil
	},
}

var vdiDetachCmd = &cobra.Command{
	Use:   "detach <sr> <vdi>",
	Short: "Detach a disk",
	Long: `Release a disk's device.

A busy device is retried according to the detach_retry configuration; by
default until it is released.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup()
		if err != nil {
			return err
		}

		if err := a.service.Detach(cmd.Context(), args[0], args[1]); err != nil {
			return fmt.Errorf("failed to detach disk: %w", err)
		}

		fmt.Printf("✓ Disk %s detached\n", args[1])
		return nil
	},
}

var vdiActivateCmd = &cobra.Command{
	Use:   "activate <sr> <vdi>",
	Short: "Activate an attached disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup()
		if err != nil {
			return err
		}

		if err := a.service.Activate(cmd.Context(), args[0], args[1]); err != nil {
			return fmt.Errorf("failed to activate disk: %w", err)
		}

		fmt.Printf("✓ Disk %s activated\n", args[1])
		return nil
	},
}

var vdiDeactivateCmd = &cobra.Command{
	Use:   "deactivate <sr> <vdi>",
	Short: "Deactivate an attached disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup()
		if err != nil {
			return err
		}

		if err := a.service.Deactivate(cmd.Context(), args[0], args[1]); err != nil {
			return fmt.Errorf("failed to deactivate disk: %w", err)
		}

		fmt.Printf("✓ Disk %s deactivated\n", args[1])
		return nil
	},
}

var vdiResizeCmd = &cobra.Command{
	Use:   "resize <sr> <vdi> <size>",
	Short: "Grow a disk",
	Long: `Grow a disk to a new virtual size. Disks cannot be shrunk.

Example:
  vdisk vdi resize local boot_disk 40G`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup()
		if err != nil {
			return err
		}

		size, err := parseSize(args[2])
		if err != nil {
			return err
		}

		disk, err := a.service.Resize(cmd.Context(), args[0], args[1], size)
		if err != nil {
			return fmt.Errorf("failed to resize disk: %w", err)
		}

		result, err := a.formatter.FormatDisk(disk)
		if err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}

		fmt.Print(result)
		return nil
	},
}

var vdiInfoCmd = &cobra.Command{
	Use:   "info <sr> <vdi>",
	Short: "Show image properties of a vhd disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup()
		if err != nil {
			return err
		}

		info, err := a.service.Describe(cmd.Context(), args[0], args[1])
		if err != nil {
			return fmt.Errorf("failed to describe disk: %w", err)
		}

		result, err := a.formatter.FormatImageInfo(info)
		if err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}

		fmt.Print(result)
		return nil
	},
}

var vdiDeviceCmd = &cobra.Command{
	Use:   "device <sr> <vdi>",
	Short: "Print the device of an attached disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup()
		if err != nil {
			return err
		}

		device, err := a.service.Device(args[0], args[1])
		if err != nil {
			return err
		}

		fmt.Println(device)
		return nil
	},
}
