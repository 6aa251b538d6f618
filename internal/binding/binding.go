// Package binding records which disks are attached.
//
// An attached disk has a symlink at <runtime-dir>/<repository>/<vdi>.device
// whose target is the device handle the format backend returned. The link
// exists only while the disk is attached.
package binding

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Suffix is the file name suffix of binding symlinks.
const Suffix = ".device"

// NotBoundError is returned when a disk has no binding.
type NotBoundError struct {
	Path string
}

func (e *NotBoundError) Error() string {
	return fmt.Sprintf("no device binding at %s", e.Path)
}

// Tracker manages binding symlinks under a runtime directory.
type Tracker struct {
	runtimeDir string
}

// NewTracker creates a Tracker rooted at runtimeDir.
func NewTracker(runtimeDir string) *Tracker {
	return &Tracker{runtimeDir: runtimeDir}
}

// Path returns the binding path for a disk.
func (t *Tracker) Path(repo, vdi string) string {
	return filepath.Join(t.runtimeDir, repo, vdi+Suffix)
}

// Bind records device as the handle of an attached disk. Binding a disk
// that is already bound fails.
func (t *Tracker) Bind(repo, vdi, device string) error {
	path := t.Path(repo, vdi)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrapf(err, "failed to create binding directory for %s", path)
	}

	if err := os.Symlink(device, path); err != nil {
		return errors.Wrapf(err, "failed to bind %s to %s", path, device)
	}
	return nil
}

// Resolve returns the device handle a disk is bound to.
func (t *Tracker) Resolve(repo, vdi string) (string, error) {
	path := t.Path(repo, vdi)

	device, err := os.Readlink(path)
	if os.IsNotExist(err) {
		return "", &NotBoundError{Path: path}
	}
	if err != nil {
		return "", errors.Wrapf(err, "failed to read binding %s", path)
	}
	return device, nil
}

// Unbind removes a disk's binding. A missing binding is not an error.
func (t *Tracker) Unbind(repo, vdi string) error {
	path := t.Path(repo, vdi)

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "failed to remove binding %s", path)
	}
	return nil
}

// IsBound reports whether a disk currently has a binding.
func (t *Tracker) IsBound(repo, vdi string) bool {
	_, err := os.Lstat(t.Path(repo, vdi))
	return err == nil
}
