package registry

import (
	"io"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/jbweber/vdisk/internal/storage"
)

func testLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func openTestRegistry(t *testing.T) (*Registry, string) {
	t.Helper()
	file := filepath.Join(t.TempDir(), "run", "vdisk", "attached.json")
	r, err := Open(file, storage.FormatVHD, testLogger())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	return r, file
}

func TestOpen_Missing(t *testing.T) {
	r, file := openTestRegistry(t)
	if got := r.List(); len(got) != 0 {
		t.Errorf("List() = %v, want empty", got)
	}
	if _, err := os.Stat(file); !os.IsNotExist(err) {
		t.Errorf("Open() created registry file before any mutation")
	}
}

func TestOpen_Corrupt(t *testing.T) {
	file := filepath.Join(t.TempDir(), "attached.json")
	if err := os.WriteFile(file, []byte("{not json"), 0644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	if _, err := Open(file, storage.FormatVHD, testLogger()); err == nil {
		t.Fatal("expected error opening corrupt registry, got nil")
	}
}

func TestAttach(t *testing.T) {
	tests := []struct {
		name    string
		config  map[string]string
		want    Repository
		wantErr bool
	}{
		{
			name:   "default format",
			config: map[string]string{"path": "/srv/sr1"},
			want:   Repository{ID: "sr1", Path: "/srv/sr1", Format: storage.FormatVHD},
		},
		{
			name:   "explicit raw",
			config: map[string]string{"path": "/srv/sr1", "format": "raw"},
			want:   Repository{ID: "sr1", Path: "/srv/sr1", Format: storage.FormatRaw},
		},
		{
			name:   "case insensitive format",
			config: map[string]string{"path": "/srv/sr1", "format": "RAW"},
			want:   Repository{ID: "sr1", Path: "/srv/sr1", Format: storage.FormatRaw},
		},
		{
			name:   "unrecognized format falls back",
			config: map[string]string{"path": "/srv/sr1", "format": "qcow2"},
			want:   Repository{ID: "sr1", Path: "/srv/sr1", Format: storage.FormatVHD},
		},
		{
			name:    "missing path",
			config:  map[string]string{"format": "raw"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := openTestRegistry(t)

			got, err := r.Attach("sr1", tt.config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Attach() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				var cfgErr *ConfigError
				if !errors.As(err, &cfgErr) {
					t.Fatalf("error = %v, want *ConfigError", err)
				}
				if cfgErr.Key != ConfigPath {
					t.Errorf("ConfigError.Key = %q, want %q", cfgErr.Key, ConfigPath)
				}
				if _, err := r.Get("sr1"); err == nil {
					t.Error("failed Attach left an entry behind")
				}
				return
			}

			if got != tt.want {
				t.Errorf("Attach() = %+v, want %+v", got, tt.want)
			}

			fetched, err := r.Get("sr1")
			if err != nil {
				t.Fatalf("Get() error: %v", err)
			}
			if fetched != tt.want {
				t.Errorf("Get() = %+v, want %+v", fetched, tt.want)
			}
		})
	}
}

func TestAttach_Overwrites(t *testing.T) {
	r, _ := openTestRegistry(t)

	if _, err := r.Attach("sr1", map[string]string{"path": "/srv/a"}); err != nil {
		t.Fatalf("Attach() error: %v", err)
	}
	if _, err := r.Attach("sr1", map[string]string{"path": "/srv/b", "format": "raw"}); err != nil {
		t.Fatalf("re-Attach() error: %v", err)
	}

	got, err := r.Get("sr1")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	want := Repository{ID: "sr1", Path: "/srv/b", Format: storage.FormatRaw}
	if got != want {
		t.Errorf("Get() = %+v, want %+v", got, want)
	}
	if n := len(r.List()); n != 1 {
		t.Errorf("List() has %d entries, want 1", n)
	}
}

func TestDetach(t *testing.T) {
	r, _ := openTestRegistry(t)

	if _, err := r.Attach("sr1", map[string]string{"path": "/srv/sr1"}); err != nil {
		t.Fatalf("Attach() error: %v", err)
	}
	if err := r.Detach("sr1"); err != nil {
		t.Fatalf("Detach() error: %v", err)
	}

	_, err := r.Get("sr1")
	var naErr *NotAttachedError
	if !errors.As(err, &naErr) {
		t.Fatalf("Get() after Detach error = %v, want *NotAttachedError", err)
	}
	if naErr.ID != "sr1" {
		t.Errorf("NotAttachedError.ID = %q, want %q", naErr.ID, "sr1")
	}

	// Detaching again is not an error.
	if err := r.Detach("sr1"); err != nil {
		t.Errorf("second Detach() error: %v", err)
	}
}

func TestAttach_SaveFailureLeavesRegistryUnchanged(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, nil, 0644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	r, err := Open(filepath.Join(blocker, "attached.json"), storage.FormatVHD, testLogger())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}

	if _, err := r.Attach("sr1", map[string]string{"path": "/srv/sr1"}); err == nil {
		t.Fatal("expected error when the registry cannot be written, got nil")
	}

	_, err = r.Get("sr1")
	var naErr *NotAttachedError
	if !errors.As(err, &naErr) {
		t.Errorf("Get() after failed Attach error = %v, want *NotAttachedError", err)
	}
	if got := r.List(); len(got) != 0 {
		t.Errorf("List() = %v, want empty", got)
	}
}

func TestDetach_SaveFailureKeepsRepository(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run")
	r, err := Open(filepath.Join(dir, "attached.json"), storage.FormatVHD, testLogger())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	want, err := r.Attach("sr1", map[string]string{"path": "/srv/sr1"})
	if err != nil {
		t.Fatalf("Attach() error: %v", err)
	}

	// Replace the registry directory with a regular file.
	if err := os.RemoveAll(dir); err != nil {
		t.Fatalf("RemoveAll() error: %v", err)
	}
	if err := os.WriteFile(dir, nil, 0644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}

	if err := r.Detach("sr1"); err == nil {
		t.Fatal("expected error when the registry cannot be written, got nil")
	}

	got, err := r.Get("sr1")
	if err != nil {
		t.Fatalf("Get() after failed Detach error: %v", err)
	}
	if got != want {
		t.Errorf("Get() = %+v, want %+v", got, want)
	}
}

func TestCreate(t *testing.T) {
	r, _ := openTestRegistry(t)

	if err := r.Create("sr1", map[string]string{"path": "/srv/sr1"}, 1<<30); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if _, err := r.Get("sr1"); err == nil {
		t.Error("Create() left repository attached")
	}

	err := r.Create("sr1", map[string]string{}, 0)
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Errorf("Create() without path error = %v, want *ConfigError", err)
	}
}

func TestPersistence_RoundTrip(t *testing.T) {
	r, file := openTestRegistry(t)

	configs := map[string]map[string]string{
		"sr1": {"path": "/srv/sr1"},
		"sr2": {"path": "/srv/sr2", "format": "raw"},
		"sr3": {"path": "/srv/sr3", "format": "vhd"},
	}
	for id, cfg := range configs {
		if _, err := r.Attach(id, cfg); err != nil {
			t.Fatalf("Attach(%s) error: %v", id, err)
		}
	}
	if err := r.Detach("sr3"); err != nil {
		t.Fatalf("Detach() error: %v", err)
	}

	reloaded, err := Open(file, storage.FormatRaw, testLogger())
	if err != nil {
		t.Fatalf("Open() reload error: %v", err)
	}

	if !reflect.DeepEqual(reloaded.List(), r.List()) {
		t.Errorf("reloaded registry = %+v, want %+v", reloaded.List(), r.List())
	}

	// The reload must not re-resolve formats with the new default.
	sr1, err := reloaded.Get("sr1")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if sr1.Format != storage.FormatVHD {
		t.Errorf("sr1 format = %q, want %q", sr1.Format, storage.FormatVHD)
	}

	entries, err := os.ReadDir(filepath.Dir(file))
	if err != nil {
		t.Fatalf("ReadDir() error: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("registry directory has %d entries, want only the registry file", len(entries))
	}
}
