package vdi

import (
	"context"

	"github.com/pkg/errors"

	"github.com/jbweber/vdisk/internal/binding"
	"github.com/jbweber/vdisk/internal/retry"
	"github.com/jbweber/vdisk/internal/storage"
)

// Attach makes a disk available as a device and records the binding.
// Attaching a disk that is already attached fails when the binding is
// created; the device the backend handed out for the failed attempt is
// released again.
func (s *Service) Attach(ctx context.Context, repoID, vdi string, readWrite bool) (string, error) {
	t, err := s.locate(repoID, vdi)
	if err != nil {
		return "", err
	}

	backend, _, err := s.resolveBackend(t)
	if err != nil {
		return "", err
	}

	device, err := backend.Attach(ctx, t.path, readWrite)
	if err != nil {
		return "", errors.Wrapf(err, "failed to attach disk %s", vdi)
	}

	log := t.logger(s.log).WithField("device", device)

	if err := s.bindings.Bind(t.repo.ID, vdi, device); err != nil {
		if detachErr := backend.Detach(ctx, device); detachErr != nil {
			log.WithError(detachErr).Warn("Failed to release device after binding failure")
		}
		return "", err
	}

	log.WithField("read_write", readWrite).Info("Attached disk")
	return device, nil
}

// Detach releases a disk's device and removes its binding.
//
// The backend call is retried until it succeeds (or the configured
// attempts run out): the binding is only removed once the backend has
// released the device. Removing the binding itself is best effort.
func (s *Service) Detach(ctx context.Context, repoID, vdi string) error {
	t, err := s.locate(repoID, vdi)
	if err != nil {
		return err
	}

	device, err := s.resolveDevice(t)
	if err != nil {
		return err
	}

	backend, _, err := s.resolveBackend(t)
	if err != nil {
		return err
	}

	log := t.logger(s.log).WithField("device", device)

	err = retry.Do(ctx, s.retry, log, func(ctx context.Context) error {
		return backend.Detach(ctx, device)
	})
	if err != nil {
		return errors.Wrapf(err, "failed to detach disk %s", vdi)
	}

	if err := s.bindings.Unbind(t.repo.ID, vdi); err != nil {
		log.WithError(err).Warn("Failed to remove device binding")
	}

	log.Info("Detached disk")
	return nil
}

// Activate prepares an attached disk's device for I/O.
func (s *Service) Activate(ctx context.Context, repoID, vdi string) error {
	t, backend, device, err := s.resolveAttached(repoID, vdi)
	if err != nil {
		return err
	}

	if err := backend.Activate(ctx, device, t.path); err != nil {
		return errors.Wrapf(err, "failed to activate disk %s", vdi)
	}

	t.logger(s.log).WithField("device", device).Info("Activated disk")
	return nil
}

// Deactivate quiesces an attached disk's device.
func (s *Service) Deactivate(ctx context.Context, repoID, vdi string) error {
	t, backend, device, err := s.resolveAttached(repoID, vdi)
	if err != nil {
		return err
	}

	if err := backend.Deactivate(ctx, device); err != nil {
		return errors.Wrapf(err, "failed to deactivate disk %s", vdi)
	}

	t.logger(s.log).WithField("device", device).Info("Deactivated disk")
	return nil
}

// Device returns the device handle of an attached disk.
func (s *Service) Device(repoID, vdi string) (string, error) {
	t, err := s.locate(repoID, vdi)
	if err != nil {
		return "", err
	}
	return s.resolveDevice(t)
}

func (s *Service) resolveAttached(repoID, vdi string) (target, storage.Backend, string, error) {
	t, err := s.locate(repoID, vdi)
	if err != nil {
		return target{}, nil, "", err
	}

	device, err := s.resolveDevice(t)
	if err != nil {
		return target{}, nil, "", err
	}

	backend, _, err := s.resolveBackend(t)
	if err != nil {
		return target{}, nil, "", err
	}
	return t, backend, device, nil
}

func (s *Service) resolveDevice(t target) (string, error) {
	device, err := s.bindings.Resolve(t.repo.ID, t.vdi)
	if err != nil {
		var nbErr *binding.NotBoundError
		if errors.As(err, &nbErr) {
			return "", &NotFoundError{Repository: t.repo.ID, VDI: t.vdi, What: "device binding for"}
		}
		return "", err
	}
	return device, nil
}
