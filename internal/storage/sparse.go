package storage

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"
)

// FilePermissions are the permissions for disk data files.
const FilePermissions = 0644

// SparseFileBackend manages raw disks stored as sparse files. Attaching
// binds the file to a loop device.
type SparseFileBackend struct {
	loops LoopDevices
	log   logrus.FieldLogger
}

// NewSparseFileBackend creates a SparseFileBackend.
func NewSparseFileBackend(loops LoopDevices, log logrus.FieldLogger) *SparseFileBackend {
	return &SparseFileBackend{loops: loops, log: log}
}

// Create creates a new sparse file of size bytes. An existing file is an error.
func (b *SparseFileBackend) Create(ctx context.Context, path string, size int64) error {
	if err := checkSize(size, 0, MaxSparseSize); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, FilePermissions)
	if err != nil {
		return &BackendError{Op: "create", Target: path, Err: err}
	}

	if err := f.Truncate(size); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return &BackendError{Op: "create", Target: path, Err: err}
	}

	if err := f.Close(); err != nil {
		return &BackendError{Op: "create", Target: path, Err: err}
	}

	b.log.WithFields(logrus.Fields{"path": path, "size": size}).Info("Created sparse file")
	return nil
}

// Destroy removes the file. A missing file is not an error.
func (b *SparseFileBackend) Destroy(ctx context.Context, path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return &BackendError{Op: "destroy", Target: path, Err: err}
	}
	return nil
}

// Attach binds the file to a free loop device and returns the device path.
func (b *SparseFileBackend) Attach(ctx context.Context, path string, readWrite bool) (string, error) {
	device, err := b.loops.Attach(ctx, path, !readWrite)
	if err != nil {
		return "", &BackendError{Op: "attach", Target: path, Err: err}
	}

	b.log.WithFields(logrus.Fields{"path": path, "device": device}).Info("Attached loop device")
	return device, nil
}

// Detach releases the loop device. The loop driver reports busy while the
// device is still open, so callers retry.
func (b *SparseFileBackend) Detach(ctx context.Context, device string) error {
	if err := b.loops.Detach(ctx, device); err != nil {
		return &BackendError{Op: "detach", Target: device, Err: err}
	}
	return nil
}

// Activate is a no-op: a bound loop device is immediately usable.
func (b *SparseFileBackend) Activate(ctx context.Context, device, path string) error {
	return nil
}

// Deactivate is a no-op.
func (b *SparseFileBackend) Deactivate(ctx context.Context, device string) error {
	return nil
}

// Resize truncates the file to size bytes.
func (b *SparseFileBackend) Resize(ctx context.Context, path string, size int64) error {
	if err := checkSize(size, 0, MaxSparseSize); err != nil {
		return err
	}

	if err := os.Truncate(path, size); err != nil {
		return &BackendError{Op: "resize", Target: path, Err: err}
	}
	return nil
}
