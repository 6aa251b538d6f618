package storage

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// mockTool is a mock implementation of qemuimg.Tool for testing.
// Created images are written as empty files so that Destroy has something
// to remove.
type mockTool struct {
	createCalls int
	resizeCalls int
	sizes       map[string]int64
	createErr   error
	infoErr     error
}

func newMockTool() *mockTool {
	return &mockTool{sizes: make(map[string]int64)}
}

func (m *mockTool) Create(ctx context.Context, path, format string, size int64, options map[string]string) error {
	m.createCalls++
	if m.createErr != nil {
		return m.createErr
	}
	if err := os.WriteFile(path, nil, 0644); err != nil {
		return err
	}
	m.sizes[path] = size
	return nil
}

func (m *mockTool) Resize(ctx context.Context, path, format string, size int64) error {
	m.resizeCalls++
	if _, ok := m.sizes[path]; !ok {
		return fmt.Errorf("no such image: %s", path)
	}
	m.sizes[path] = size
	return nil
}

func (m *mockTool) Info(ctx context.Context, path, format string) (string, error) {
	if m.infoErr != nil {
		return "", m.infoErr
	}
	size, ok := m.sizes[path]
	if !ok {
		return "", fmt.Errorf("could not open '%s': No such file or directory", path)
	}
	return fmt.Sprintf(`image: %s
file format: %s
virtual size: %d (%d bytes)
disk size: 4K
cluster_size: 2097152
`, path, format, size, size), nil
}

// mockLoops is a mock implementation of LoopDevices for testing.
type mockLoops struct {
	next      int
	attached  map[string]string // device -> path
	readOnly  map[string]bool
	busyFor   int // number of Detach calls that fail before succeeding
	attachErr error
}

func newMockLoops() *mockLoops {
	return &mockLoops{
		attached: make(map[string]string),
		readOnly: make(map[string]bool),
	}
}

func (m *mockLoops) Attach(ctx context.Context, path string, readOnly bool) (string, error) {
	if m.attachErr != nil {
		return "", m.attachErr
	}
	device := fmt.Sprintf("/dev/loop%d", m.next)
	m.next++
	m.attached[device] = path
	m.readOnly[device] = readOnly
	return device, nil
}

func (m *mockLoops) Detach(ctx context.Context, device string) error {
	if m.busyFor > 0 {
		m.busyFor--
		return fmt.Errorf("losetup: %s: detach failed: Device or resource busy", device)
	}
	if _, ok := m.attached[device]; !ok {
		return fmt.Errorf("losetup: %s: no such device", device)
	}
	delete(m.attached, device)
	delete(m.readOnly, device)
	return nil
}

func testLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
