// Package vdi implements the disk operation surface consumed by the
// storage-management layer: create, destroy, scan, attach, detach, activate
// and deactivate disks inside attached repositories.
//
// Every operation resolves the repository from the registry, reads the
// disk's metadata from its sidecar and selects the format backend from the
// format tag found there. Nothing is cached between calls.
//
// Calls targeting the same repository must be serialized by the caller;
// filename allocation is not safe against concurrent creates.
package vdi

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/jbweber/vdisk/internal/binding"
	"github.com/jbweber/vdisk/internal/metadata"
	"github.com/jbweber/vdisk/internal/registry"
	"github.com/jbweber/vdisk/internal/retry"
	"github.com/jbweber/vdisk/internal/storage"
)

// ErrNotImplemented is returned by operations that have no implementation.
var ErrNotImplemented = errors.New("operation not implemented")

// NotFoundError is returned when a disk has neither data file nor metadata,
// or has no device binding when one is required.
type NotFoundError struct {
	Repository string
	VDI        string
	What       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found in repository %s", e.What, e.VDI, e.Repository)
}

// Service performs disk operations.
type Service struct {
	repos    repositoryResolver
	backends backendResolver
	bindings *binding.Tracker
	retry    retry.Options
	log      logrus.FieldLogger
}

// NewService creates a Service.
func NewService(repos *registry.Registry, backends *storage.Dispatcher, bindings *binding.Tracker, detachRetry retry.Options, log logrus.FieldLogger) *Service {
	return newService(repos, backends, bindings, detachRetry, log)
}

func newService(repos repositoryResolver, backends backendResolver, bindings *binding.Tracker, detachRetry retry.Options, log logrus.FieldLogger) *Service {
	return &Service{
		repos:    repos,
		backends: backends,
		bindings: bindings,
		retry:    detachRetry,
		log:      log,
	}
}

// target is a resolved disk location.
type target struct {
	repo registry.Repository
	vdi  string
	path string
}

func (s *Service) locate(repoID, vdi string) (target, error) {
	repo, err := s.repos.Get(repoID)
	if err != nil {
		return target{}, err
	}
	return target{repo: repo, vdi: vdi, path: filepath.Join(repo.Path, vdi)}, nil
}

func (t target) logger(log logrus.FieldLogger) logrus.FieldLogger {
	return log.WithFields(logrus.Fields{"repository": t.repo.ID, "vdi": t.vdi})
}

// exists reports whether either the data file or the sidecar exists.
func (t target) exists() bool {
	if _, err := os.Lstat(t.path); err == nil {
		return true
	}
	return metadata.Exists(t.path)
}

// resolveBackend reads the disk's sidecar and returns its backend and
// metadata. Placeholder metadata is never used here: a disk without a
// sidecar has no format tag.
func (s *Service) resolveBackend(t target) (storage.Backend, *metadata.Disk, error) {
	if !t.exists() {
		return nil, nil, &NotFoundError{Repository: t.repo.ID, VDI: t.vdi, What: "disk"}
	}

	if !metadata.Exists(t.path) {
		return nil, nil, errors.Wrapf(&storage.FormatError{Missing: true}, "disk %s has no metadata", t.vdi)
	}

	disk, err := metadata.Read(t.path)
	if err != nil {
		return nil, nil, err
	}

	format, err := storage.FormatFromConfig(disk.SMConfig)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "disk %s", t.vdi)
	}

	backend, err := s.backends.For(format)
	if err != nil {
		return nil, nil, err
	}
	return backend, disk, nil
}
