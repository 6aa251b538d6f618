package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "unknown"
)

// Global flags.
var (
	configPath   string
	runtimeDir   string
	logLevel     string
	outputFormat string
	noHeaders    bool
)

func main() {
	// Interrupting a detach that is waiting for a busy device stops the retry.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "vdisk",
	Short: "vdisk - file-based virtual disk management",
	Long: `vdisk manages virtual disks stored as files in host directories.

Directories are attached as storage repositories. Disks inside a repository
are either sparse VHD images (handled by qemu-img) or raw sparse files
exposed through loop devices. Attached disks can be hot-plugged into
libvirt domains.`,
	Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Path to YAML configuration file")
	flags.StringVar(&runtimeDir, "runtime-dir", "", "Override the runtime state directory")
	flags.StringVar(&logLevel, "log-level", "", "Override the log level (debug, info, warn, error)")
	flags.StringVarP(&outputFormat, "output", "o", "table", "Output format: table, yaml, json")
	flags.BoolVar(&noHeaders, "no-headers", false, "Omit table headers")

	rootCmd.AddCommand(srCmd)
	rootCmd.AddCommand(vdiCmd)
}
