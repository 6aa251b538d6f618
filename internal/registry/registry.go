// Package registry keeps track of attached repositories.
//
// The registry is a map of repository id to Repository, mirrored to a JSON
// file that is rewritten in full on every mutation and reloaded when the
// process starts. The file lives under a non-persistent runtime directory,
// so a host reboot forgets every attachment.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/jbweber/vdisk/internal/storage"
)

// Attach configuration keys.
const (
	ConfigPath   = "path"
	ConfigFormat = "format"
)

// Repository is an attached directory of disk images.
type Repository struct {
	ID     string         `json:"id" yaml:"id"`
	Path   string         `json:"path" yaml:"path"`
	Format storage.Format `json:"format" yaml:"format"`
}

// ConfigError is returned when an attach configuration is unusable.
type ConfigError struct {
	ID  string
	Key string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("repository %s: missing required configuration key %q", e.ID, e.Key)
}

// NotAttachedError is returned for operations on an unknown repository.
type NotAttachedError struct {
	ID string
}

func (e *NotAttachedError) Error() string {
	return fmt.Sprintf("repository %s is not attached", e.ID)
}

// Registry is the set of attached repositories and its on-disk mirror.
type Registry struct {
	mu            sync.Mutex
	file          string
	defaultFormat storage.Format
	repos         map[string]Repository
	log           logrus.FieldLogger
}

// Open loads the registry persisted at file. A missing file yields an empty
// registry. defaultFormat is used for repositories attached without a
// format.
func Open(file string, defaultFormat storage.Format, log logrus.FieldLogger) (*Registry, error) {
	r := &Registry{
		file:          file,
		defaultFormat: defaultFormat,
		repos:         make(map[string]Repository),
		log:           log,
	}

	data, err := os.ReadFile(file)
	if os.IsNotExist(err) {
		log.WithField("file", file).Debug("No persisted registry, starting empty")
		return r, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read registry %s", file)
	}

	if err := json.Unmarshal(data, &r.repos); err != nil {
		return nil, errors.Wrapf(err, "failed to parse registry %s", file)
	}
	if r.repos == nil {
		r.repos = make(map[string]Repository)
	}

	log.WithFields(logrus.Fields{"file": file, "repositories": len(r.repos)}).Debug("Loaded registry")
	return r, nil
}

// Attach records repository id with the given configuration. The "path"
// key is required; "format" is optional and falls back to the default
// format. An existing entry for id is replaced, even when its
// configuration differs.
func (r *Registry) Attach(id string, config map[string]string) (Repository, error) {
	repo, err := r.resolve(id, config)
	if err != nil {
		return Repository{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.repos[id]; ok && prev != repo {
		r.log.WithFields(logrus.Fields{
			"repository": id,
			"old_path":   prev.Path,
			"new_path":   repo.Path,
		}).Warn("Re-attaching repository with different configuration")
	}

	next := r.copyRepos()
	next[id] = repo
	if err := r.save(next); err != nil {
		return Repository{}, err
	}
	r.repos = next

	r.log.WithFields(logrus.Fields{"repository": id, "path": repo.Path, "format": repo.Format}).Info("Attached repository")
	return repo, nil
}

// Detach forgets repository id. Detaching an unknown id is not an error.
func (r *Registry) Detach(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := r.copyRepos()
	delete(next, id)
	if err := r.save(next); err != nil {
		return err
	}
	r.repos = next

	r.log.WithField("repository", id).Info("Detached repository")
	return nil
}

// Get returns repository id.
func (r *Registry) Get(id string) (Repository, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	repo, ok := r.repos[id]
	if !ok {
		return Repository{}, &NotAttachedError{ID: id}
	}
	return repo, nil
}

// List returns all attached repositories sorted by id.
func (r *Registry) List() []Repository {
	r.mu.Lock()
	defer r.mu.Unlock()

	repos := make([]Repository, 0, len(r.repos))
	for _, repo := range r.repos {
		repos = append(repos, repo)
	}
	sort.Slice(repos, func(i, j int) bool { return repos[i].ID < repos[j].ID })
	return repos
}

// Create validates a repository configuration by attaching and then
// detaching it. size is accepted for interface compatibility and ignored.
func (r *Registry) Create(id string, config map[string]string, size int64) error {
	if _, err := r.Attach(id, config); err != nil {
		return err
	}
	return r.Detach(id)
}

func (r *Registry) resolve(id string, config map[string]string) (Repository, error) {
	path, ok := config[ConfigPath]
	if !ok {
		return Repository{}, &ConfigError{ID: id, Key: ConfigPath}
	}

	format := r.defaultFormat
	if raw, ok := config[ConfigFormat]; ok {
		parsed, err := storage.ParseFormat(raw)
		if err != nil {
			r.log.WithFields(logrus.Fields{
				"repository": id,
				"format":     raw,
				"default":    r.defaultFormat,
			}).Warn("Unrecognized repository format, using default")
		} else {
			format = parsed
		}
	}

	return Repository{ID: id, Path: strings.TrimSpace(path), Format: format}, nil
}

// copyRepos returns a copy of the attached set. Callers hold r.mu.
func (r *Registry) copyRepos() map[string]Repository {
	next := make(map[string]Repository, len(r.repos)+1)
	for id, repo := range r.repos {
		next[id] = repo
	}
	return next
}

// save writes repos as the whole registry. The caller must hold r.mu.
func (r *Registry) save(repos map[string]Repository) error {
	data, err := json.MarshalIndent(repos, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal registry")
	}

	dir := filepath.Dir(r.file)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "failed to create registry directory %s", dir)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(r.file)+".tmp-*")
	if err != nil {
		return errors.Wrap(err, "failed to create temporary registry file")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "failed to write registry")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "failed to write registry")
	}

	if err := os.Rename(tmp.Name(), r.file); err != nil {
		return errors.Wrapf(err, "failed to replace registry %s", r.file)
	}
	return nil
}
