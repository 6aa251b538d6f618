package vdi

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/jbweber/vdisk/internal/qemuimg"
	"github.com/jbweber/vdisk/internal/registry"
	"github.com/jbweber/vdisk/internal/storage"
)

// mockRepos is a mock implementation of repositoryResolver for testing.
type mockRepos struct {
	repos map[string]registry.Repository
}

func newMockRepos() *mockRepos {
	return &mockRepos{repos: make(map[string]registry.Repository)}
}

func (m *mockRepos) Get(id string) (registry.Repository, error) {
	repo, ok := m.repos[id]
	if !ok {
		return registry.Repository{}, &registry.NotAttachedError{ID: id}
	}
	return repo, nil
}

// mockBackend is a mock implementation of storage.Backend for testing.
// Data files are real (empty, truncated to size) so that directory scans
// and existence checks behave as in production.
type mockBackend struct {
	name        string
	nextDevice  int
	attached    map[string]string // device -> path
	active      map[string]bool
	detachBusy  int // number of Detach calls that fail before succeeding
	detachCalls int
	createErr   error
	calls       []string
}

func newMockBackend(name string) *mockBackend {
	return &mockBackend{
		name:     name,
		attached: make(map[string]string),
		active:   make(map[string]bool),
	}
}

func (m *mockBackend) Create(ctx context.Context, path string, size int64) error {
	m.calls = append(m.calls, "create")
	if m.createErr != nil {
		return m.createErr
	}
	if size < 0 {
		return &storage.SizeRangeError{Size: size, Min: 0, Max: storage.MaxImageSize}
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return f.Truncate(size)
}

func (m *mockBackend) Destroy(ctx context.Context, path string) error {
	m.calls = append(m.calls, "destroy")
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (m *mockBackend) Attach(ctx context.Context, path string, readWrite bool) (string, error) {
	m.calls = append(m.calls, "attach")
	device := fmt.Sprintf("/dev/%s%d", m.name, m.nextDevice)
	m.nextDevice++
	m.attached[device] = path
	return device, nil
}

func (m *mockBackend) Detach(ctx context.Context, device string) error {
	m.calls = append(m.calls, "detach")
	m.detachCalls++
	if m.detachBusy > 0 {
		m.detachBusy--
		return fmt.Errorf("%s: device or resource busy", device)
	}
	delete(m.attached, device)
	return nil
}

func (m *mockBackend) Activate(ctx context.Context, device, path string) error {
	m.calls = append(m.calls, "activate")
	m.active[device] = true
	return nil
}

func (m *mockBackend) Deactivate(ctx context.Context, device string) error {
	m.calls = append(m.calls, "deactivate")
	delete(m.active, device)
	return nil
}

func (m *mockBackend) Resize(ctx context.Context, path string, size int64) error {
	m.calls = append(m.calls, "resize")
	return os.Truncate(path, size)
}

// mockDescribingBackend adds storage.Describer to mockBackend.
type mockDescribingBackend struct {
	*mockBackend
	actualSize int64
}

func (m *mockDescribingBackend) Describe(ctx context.Context, path string) (*qemuimg.ImageInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	return &qemuimg.ImageInfo{
		Format:      "vpc",
		VirtualSize: info.Size(),
		ActualSize:  m.actualSize,
		ClusterSize: 2097152,
	}, nil
}

func testLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
