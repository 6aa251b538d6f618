package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Storage repository commands
var srCmd = &cobra.Command{
	Use:   "sr",
	Short: "Manage storage repositories",
	Long: `Attach, detach and list storage repositories.

A storage repository is a host directory holding disk data files and their
metadata. It is attached with a device configuration of key=value pairs:

  path=<dir>     directory holding the disks (required)
  format=<fmt>   default disk format, vhd or raw (optional, default vhd)`,
}

func init() {
	srCmd.AddCommand(srAttachCmd)
	srCmd.AddCommand(srDetachCmd)
	srCmd.AddCommand(srCreateCmd)
	srCmd.AddCommand(srListCmd)

	srCreateCmd.Flags().String("size", "0", "Physical size of the repository (recorded, not enforced)")
}

var srAttachCmd = &cobra.Command{
	Use:   "attach <sr> key=value...",
	Short: "Attach a storage repository",
	Long: `Attach a directory as a storage repository.

Attaching an already attached repository replaces its configuration.

Example:
  vdisk sr attach local path=/srv/disks format=raw`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup()
		if err != nil {
			return err
		}

		deviceConfig, err := parseKeyValues(args[1:])
		if err != nil {
			return err
		}

		repo, err := a.registry.Attach(args[0], deviceConfig)
		if err != nil {
			return fmt.Errorf("failed to attach repository: %w", err)
		}

		fmt.Printf("✓ Repository %s attached at %s (default format %s)\n", repo.ID, repo.Path, repo.Format)
		return nil
	},
}

var srDetachCmd = &cobra.Command{
	Use:   "detach <sr>",
	Short: "Detach a storage repository",
	Long: `Forget an attached storage repository.

The directory and its disks are left untouched.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup()
		if err != nil {
			return err
		}

		if err := a.registry.Detach(args[0]); err != nil {
			return fmt.Errorf("failed to detach repository: %w", err)
		}

		fmt.Printf("✓ Repository %s detached\n", args[0])
		return nil
	},
}

var srCreateCmd = &cobra.Command{
	Use:   "create <sr> key=value...",
	Short: "Validate a storage repository configuration",
	Long: `Validate a repository configuration without leaving it attached.

The repository is attached and immediately detached again. Nothing is
written to the directory.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup()
		if err != nil {
			return err
		}

		deviceConfig, err := parseKeyValues(args[1:])
		if err != nil {
			return err
		}

		rawSize, _ := cmd.Flags().GetString("size")
		size, err := parseSize(rawSize)
		if err != nil {
			return err
		}

		if err := a.registry.Create(args[0], deviceConfig, size); err != nil {
			return fmt.Errorf("failed to create repository: %w", err)
		}

		fmt.Printf("✓ Repository configuration for %s is valid\n", args[0])
		return nil
	},
}

var srListCmd = &cobra.Command{
	Use:   "list",
	Short: "List attached storage repositories",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup()
		if err != nil {
			return err
		}

		result, err := a.formatter.FormatRepositoryList(a.registry.List())
		if err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}

		fmt.Print(result)
		return nil
	},
}
