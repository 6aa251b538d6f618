package storage

import (
	"context"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/jbweber/vdisk/internal/qemuimg"
)

// vhdToolFormat is the qemu-img driver name for VHD images.
const vhdToolFormat = "vpc"

// vhdCreateOptions make qemu-img honour the exact requested size instead of
// rounding it to the VHD CHS geometry.
var vhdCreateOptions = map[string]string{
	"subformat":  "dynamic",
	"force_size": "on",
}

// ImageToolBackend manages VHD images through qemu-img. The device handle
// handed out on attach is the image path, consumed by the hypervisor's
// image driver.
type ImageToolBackend struct {
	tool qemuimg.Tool
	log  logrus.FieldLogger
}

// NewImageToolBackend creates an ImageToolBackend.
func NewImageToolBackend(tool qemuimg.Tool, log logrus.FieldLogger) *ImageToolBackend {
	return &ImageToolBackend{tool: tool, log: log}
}

// Create creates a new dynamic VHD. The size is validated before qemu-img is run.
func (b *ImageToolBackend) Create(ctx context.Context, path string, size int64) error {
	if err := checkSize(size, 0, MaxImageSize); err != nil {
		return err
	}

	if err := b.tool.Create(ctx, path, vhdToolFormat, size, vhdCreateOptions); err != nil {
		return &BackendError{Op: "create", Target: path, Err: err}
	}

	b.log.WithFields(logrus.Fields{"path": path, "size": size}).Info("Created image")
	return nil
}

// Destroy removes the image file. A missing file is not an error.
func (b *ImageToolBackend) Destroy(ctx context.Context, path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return &BackendError{Op: "destroy", Target: path, Err: err}
	}
	return nil
}

// Attach validates that the image is readable by qemu-img and returns its path.
func (b *ImageToolBackend) Attach(ctx context.Context, path string, readWrite bool) (string, error) {
	if _, err := b.Describe(ctx, path); err != nil {
		return "", &BackendError{Op: "attach", Target: path, Err: err}
	}
	return path, nil
}

// Detach releases nothing: the image path stays valid after attach.
func (b *ImageToolBackend) Detach(ctx context.Context, device string) error {
	return nil
}

// Activate is a no-op for images consumed by path.
func (b *ImageToolBackend) Activate(ctx context.Context, device, path string) error {
	b.log.WithField("device", device).Debug("Activate is a no-op for image files")
	return nil
}

// Deactivate is a no-op for images consumed by path.
func (b *ImageToolBackend) Deactivate(ctx context.Context, device string) error {
	b.log.WithField("device", device).Debug("Deactivate is a no-op for image files")
	return nil
}

// Resize sets the virtual size of the image.
func (b *ImageToolBackend) Resize(ctx context.Context, path string, size int64) error {
	if err := checkSize(size, 0, MaxImageSize); err != nil {
		return err
	}

	if err := b.tool.Resize(ctx, path, vhdToolFormat, size); err != nil {
		return &BackendError{Op: "resize", Target: path, Err: err}
	}
	return nil
}

// Describe reports the image's properties parsed from qemu-img info.
func (b *ImageToolBackend) Describe(ctx context.Context, path string) (*qemuimg.ImageInfo, error) {
	info, err := qemuimg.Describe(ctx, b.tool, path, vhdToolFormat)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to describe %s", path)
	}
	return info, nil
}
