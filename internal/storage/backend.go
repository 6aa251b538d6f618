package storage

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/jbweber/vdisk/internal/qemuimg"
)

// Backend implements the disk lifecycle for one on-disk format.
//
// path is the data file of the disk inside its repository. device is the
// handle returned by Attach; it is what the device binding points at.
type Backend interface {
	Create(ctx context.Context, path string, size int64) error
	Destroy(ctx context.Context, path string) error
	Attach(ctx context.Context, path string, readWrite bool) (device string, err error)
	Detach(ctx context.Context, device string) error
	Activate(ctx context.Context, device, path string) error
	Deactivate(ctx context.Context, device string) error
	Resize(ctx context.Context, path string, size int64) error
}

// Describer is implemented by backends that can report image properties.
type Describer interface {
	Describe(ctx context.Context, path string) (*qemuimg.ImageInfo, error)
}

// Dispatcher selects the backend for a format.
//
// It holds no per-disk state: callers re-derive the format from metadata on
// every call, so an out-of-band metadata edit takes effect immediately.
type Dispatcher struct {
	backends map[Format]Backend
}

// NewDispatcher creates a Dispatcher with the vhd and raw backends.
func NewDispatcher(tool qemuimg.Tool, loops LoopDevices, log logrus.FieldLogger) *Dispatcher {
	return &Dispatcher{
		backends: map[Format]Backend{
			FormatVHD: NewImageToolBackend(tool, log.WithField("format", FormatVHD)),
			FormatRaw: NewSparseFileBackend(loops, log.WithField("format", FormatRaw)),
		},
	}
}

// NewDispatcherWith creates a Dispatcher from an explicit backend table.
func NewDispatcherWith(backends map[Format]Backend) *Dispatcher {
	return &Dispatcher{backends: backends}
}

// For returns the backend for format.
func (d *Dispatcher) For(format Format) (Backend, error) {
	b, ok := d.backends[format]
	if !ok {
		return nil, &FormatError{Value: string(format)}
	}
	return b, nil
}
