package storage

import (
	"context"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DefaultLosetup is the losetup executable looked up on PATH.
const DefaultLosetup = "losetup"

// LoopDevices binds files to loop block devices.
type LoopDevices interface {
	// Attach binds path to a free loop device and returns the device path.
	Attach(ctx context.Context, path string, readOnly bool) (string, error)
	// Detach releases a loop device.
	Detach(ctx context.Context, device string) error
}

// Losetup implements LoopDevices with the losetup command.
type Losetup struct {
	binary string
	log    logrus.FieldLogger
}

// NewLosetup creates a Losetup. An empty binary uses DefaultLosetup.
func NewLosetup(binary string, log logrus.FieldLogger) *Losetup {
	if binary == "" {
		binary = DefaultLosetup
	}
	return &Losetup{binary: binary, log: log}
}

// Attach runs "losetup --find --show".
func (l *Losetup) Attach(ctx context.Context, path string, readOnly bool) (string, error) {
	args := []string{"--find", "--show"}
	if readOnly {
		args = append(args, "--read-only")
	}
	args = append(args, path)

	output, err := l.run(ctx, args...)
	if err != nil {
		return "", err
	}

	device := strings.TrimSpace(output)
	if device == "" {
		return "", errors.Errorf("losetup returned no device for %s", path)
	}
	return device, nil
}

// Detach runs "losetup --detach".
func (l *Losetup) Detach(ctx context.Context, device string) error {
	_, err := l.run(ctx, "--detach", device)
	return err
}

func (l *Losetup) run(ctx context.Context, args ...string) (string, error) {
	l.log.WithField("args", args).Debug("Running losetup")

	cmd := exec.CommandContext(ctx, l.binary, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", errors.Wrapf(err, "losetup %s: %s", strings.Join(args, " "), strings.TrimSpace(string(output)))
	}
	return string(output), nil
}
