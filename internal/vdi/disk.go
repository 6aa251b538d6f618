package vdi

import (
	"context"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/jbweber/vdisk/internal/metadata"
	"github.com/jbweber/vdisk/internal/naming"
	"github.com/jbweber/vdisk/internal/qemuimg"
	"github.com/jbweber/vdisk/internal/storage"
)

// Create creates a disk in repository repoID described by disk.
//
// The effective format is the one tagged in disk.SMConfig, or the
// repository's default. The filename is allocated from disk.NameLabel and
// the requested size is disk.VirtualSize. The finalized record is returned.
func (s *Service) Create(ctx context.Context, repoID string, disk metadata.Disk) (*metadata.Disk, error) {
	repo, err := s.repos.Get(repoID)
	if err != nil {
		return nil, err
	}

	format := repo.Format
	if raw, ok := disk.SMConfig[storage.FormatKey]; ok {
		format, err = storage.ParseFormat(raw)
		if err != nil {
			return nil, err
		}
	}

	backend, err := s.backends.For(format)
	if err != nil {
		return nil, err
	}

	smConfig := make(map[string]string, len(disk.SMConfig)+1)
	for k, v := range disk.SMConfig {
		smConfig[k] = v
	}
	smConfig[storage.FormatKey] = string(format)
	disk.SMConfig = smConfig

	existing, err := listNames(repo.Path)
	if err != nil {
		return nil, err
	}
	name := naming.Allocate(disk.NameLabel, existing)
	path := filepath.Join(repo.Path, name)

	log := s.log.WithFields(logrus.Fields{"repository": repo.ID, "vdi": name, "format": format})

	if err := backend.Create(ctx, path, disk.VirtualSize); err != nil {
		return nil, errors.Wrapf(err, "failed to create disk %s", name)
	}

	if describer, ok := backend.(storage.Describer); ok {
		info, err := describer.Describe(ctx, path)
		if err != nil {
			log.WithError(err).Warn("Could not read back image properties, keeping requested size")
		} else {
			disk.VirtualSize = info.VirtualSize
			disk.PhysicalUtilisation = info.ActualSize
		}
	}

	disk.VDI = name
	if disk.ContentID == "" {
		disk.ContentID = uuid.NewString()
	}
	if disk.Type == "" {
		disk.Type = metadata.TypeUser
	}
	if disk.SnapshotTime == "" {
		disk.SnapshotTime = metadata.EpochSnapshotTime
	}

	if err := metadata.Write(path, &disk); err != nil {
		if destroyErr := backend.Destroy(ctx, path); destroyErr != nil {
			log.WithError(destroyErr).Warn("Failed to clean up data file after metadata write failure")
		}
		return nil, err
	}

	log.WithField("size", disk.VirtualSize).Info("Created disk")
	return &disk, nil
}

// Destroy removes a disk's data and metadata. It fails with *NotFoundError
// when neither exists and with *storage.FormatError when the metadata has
// no usable format tag.
func (s *Service) Destroy(ctx context.Context, repoID, vdi string) error {
	t, err := s.locate(repoID, vdi)
	if err != nil {
		return err
	}

	backend, _, err := s.resolveBackend(t)
	if err != nil {
		return err
	}

	if err := backend.Destroy(ctx, t.path); err != nil {
		return errors.Wrapf(err, "failed to destroy disk %s", vdi)
	}

	if err := metadata.Remove(t.path); err != nil {
		return err
	}

	t.logger(s.log).Info("Destroyed disk")
	return nil
}

// Scan returns the metadata of every disk in a repository, in directory
// order. Files without a sidecar are reported with placeholder metadata.
// Entries whose metadata cannot be read are skipped.
func (s *Service) Scan(ctx context.Context, repoID string) ([]*metadata.Disk, error) {
	repo, err := s.repos.Get(repoID)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(repo.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list repository %s", repo.ID)
	}

	var disks []*metadata.Disk
	for _, entry := range entries {
		if entry.IsDir() || metadata.IsSidecar(entry.Name()) {
			continue
		}

		disk, err := metadata.Read(filepath.Join(repo.Path, entry.Name()))
		if err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{
				"repository": repo.ID,
				"vdi":        entry.Name(),
			}).Warn("Skipping disk with unreadable metadata")
			continue
		}
		if disk == nil {
			continue
		}
		disks = append(disks, disk)
	}

	return disks, nil
}

// Stat is not implemented.
func (s *Service) Stat(ctx context.Context, repoID, vdi string) (*metadata.Disk, error) {
	return nil, errors.Wrap(ErrNotImplemented, "stat")
}

// Resize grows a disk to size bytes and records the new size.
func (s *Service) Resize(ctx context.Context, repoID, vdi string, size int64) (*metadata.Disk, error) {
	t, err := s.locate(repoID, vdi)
	if err != nil {
		return nil, err
	}

	backend, disk, err := s.resolveBackend(t)
	if err != nil {
		return nil, err
	}

	if size < disk.VirtualSize {
		return nil, errors.Errorf("cannot shrink disk %s from %d to %d bytes", vdi, disk.VirtualSize, size)
	}

	if err := backend.Resize(ctx, t.path, size); err != nil {
		return nil, errors.Wrapf(err, "failed to resize disk %s", vdi)
	}

	disk.VirtualSize = size
	if describer, ok := backend.(storage.Describer); ok {
		if info, err := describer.Describe(ctx, t.path); err == nil {
			disk.VirtualSize = info.VirtualSize
			disk.PhysicalUtilisation = info.ActualSize
		}
	}

	if err := metadata.Write(t.path, disk); err != nil {
		return nil, err
	}

	t.logger(s.log).WithField("size", disk.VirtualSize).Info("Resized disk")
	return disk, nil
}

// Describe reports image properties for disks whose backend supports it.
func (s *Service) Describe(ctx context.Context, repoID, vdi string) (*qemuimg.ImageInfo, error) {
	t, err := s.locate(repoID, vdi)
	if err != nil {
		return nil, err
	}

	backend, disk, err := s.resolveBackend(t)
	if err != nil {
		return nil, err
	}

	describer, ok := backend.(storage.Describer)
	if !ok {
		return nil, errors.Errorf("disk %s has format %s which cannot be described", vdi, disk.SMConfig[storage.FormatKey])
	}
	return describer.Describe(ctx, t.path)
}

func listNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list %s", dir)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names, nil
}
