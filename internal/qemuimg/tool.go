// Package qemuimg wraps the qemu-img command used to create and inspect
// copy-on-write disk images, and parses its textual info report.
//
// Only the invocation surface the repository manager needs is exposed:
// create, resize and info. The Tool interface is the seam used by the
// storage backends; Exec is the production implementation.
package qemuimg

import (
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DefaultBinary is the qemu-img executable looked up on PATH.
const DefaultBinary = "qemu-img"

// Tool is the image tool invocation surface.
type Tool interface {
	// Create creates a new image of the given format and size in bytes.
	// options are passed through as "-o" key=value pairs.
	Create(ctx context.Context, path, format string, size int64, options map[string]string) error

	// Resize sets the virtual size of an existing image.
	Resize(ctx context.Context, path, format string, size int64) error

	// Info returns the human-readable info report for an image.
	Info(ctx context.Context, path, format string) (string, error)
}

// ToolError is returned when qemu-img exits non-zero.
type ToolError struct {
	Args   []string
	Output string
	Err    error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("qemu-img %s: %v\nOutput: %s", strings.Join(e.Args, " "), e.Err, e.Output)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// Exec runs the qemu-img binary.
type Exec struct {
	binary string
	log    logrus.FieldLogger
}

// NewExec creates an Exec for the given binary. An empty binary uses DefaultBinary.
func NewExec(binary string, log logrus.FieldLogger) *Exec {
	if binary == "" {
		binary = DefaultBinary
	}
	return &Exec{binary: binary, log: log}
}

// Create runs "qemu-img create".
func (e *Exec) Create(ctx context.Context, path, format string, size int64, options map[string]string) error {
	args := []string{"create", "-f", format}
	if opts := joinOptions(options); opts != "" {
		args = append(args, "-o", opts)
	}
	args = append(args, path, strconv.FormatInt(size, 10))

	_, err := e.run(ctx, args...)
	return err
}

// Resize runs "qemu-img resize".
func (e *Exec) Resize(ctx context.Context, path, format string, size int64) error {
	_, err := e.run(ctx, "resize", "-f", format, path, strconv.FormatInt(size, 10))
	return err
}

// Info runs "qemu-img info" and returns its report.
func (e *Exec) Info(ctx context.Context, path, format string) (string, error) {
	return e.run(ctx, "info", "-f", format, path)
}

// Describe runs Info and parses the report.
func Describe(ctx context.Context, tool Tool, path, format string) (*ImageInfo, error) {
	report, err := tool.Info(ctx, path, format)
	if err != nil {
		return nil, err
	}

	info, err := ParseInfo(report)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse image info for %s", path)
	}
	return info, nil
}

func (e *Exec) run(ctx context.Context, args ...string) (string, error) {
	e.log.WithField("args", args).Debug("Running qemu-img")

	cmd := exec.CommandContext(ctx, e.binary, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", &ToolError{Args: args, Output: string(output), Err: err}
	}
	return string(output), nil
}

// joinOptions renders options as a stable comma separated key=value list.
func joinOptions(options map[string]string) string {
	if len(options) == 0 {
		return ""
	}

	keys := make([]string, 0, len(options))
	for k := range options {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+options[k])
	}
	return strings.Join(parts, ",")
}
