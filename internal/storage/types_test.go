package storage

import (
	"strings"
	"testing"

	"github.com/pkg/errors"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Format
		wantErr bool
	}{
		{name: "vhd", input: "vhd", want: FormatVHD},
		{name: "raw", input: "raw", want: FormatRaw},
		{name: "upper case", input: "VHD", want: FormatVHD},
		{name: "mixed case with space", input: " Raw ", want: FormatRaw},
		{name: "qcow2 unsupported", input: "qcow2", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if tt.wantErr {
				var fmtErr *FormatError
				if !errors.As(err, &fmtErr) {
					t.Errorf("error = %v, want *FormatError", err)
				}
				return
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestFormatFromConfig(t *testing.T) {
	tests := []struct {
		name        string
		smConfig    map[string]string
		want        Format
		wantMissing bool
		wantErr     bool
	}{
		{
			name:     "vhd tag",
			smConfig: map[string]string{FormatKey: "vhd"},
			want:     FormatVHD,
		},
		{
			name:        "nil config",
			smConfig:    nil,
			wantErr:     true,
			wantMissing: true,
		},
		{
			name:        "tag absent",
			smConfig:    map[string]string{"other": "x"},
			wantErr:     true,
			wantMissing: true,
		},
		{
			name:     "tag unrecognized",
			smConfig: map[string]string{FormatKey: "vmdk"},
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FormatFromConfig(tt.smConfig)
			if (err != nil) != tt.wantErr {
				t.Fatalf("FormatFromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				var fmtErr *FormatError
				if !errors.As(err, &fmtErr) {
					t.Fatalf("error = %v, want *FormatError", err)
				}
				if fmtErr.Missing != tt.wantMissing {
					t.Errorf("Missing = %v, want %v", fmtErr.Missing, tt.wantMissing)
				}
				return
			}
			if got != tt.want {
				t.Errorf("FormatFromConfig() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSizeRangeError(t *testing.T) {
	err := checkSize(-1, 0, MaxImageSize)
	if err == nil {
		t.Fatal("expected error for negative size, got nil")
	}

	var sizeErr *SizeRangeError
	if !errors.As(err, &sizeErr) {
		t.Fatalf("error = %v, want *SizeRangeError", err)
	}
	if sizeErr.Size != -1 || sizeErr.Min != 0 || sizeErr.Max != MaxImageSize {
		t.Errorf("SizeRangeError = %+v, want {-1 0 %d}", sizeErr, MaxImageSize)
	}
	for _, want := range []string{"-1", "0", "9223372036854774784"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error message %q does not contain %q", err.Error(), want)
		}
	}
}

func TestFormatError_ListsSupportedFormats(t *testing.T) {
	_, err := ParseFormat("qcow2")
	if err == nil {
		t.Fatal("expected error for qcow2, got nil")
	}
	if want := `unrecognized format "qcow2" (supported: vhd, raw)`; err.Error() != want {
		t.Errorf("error = %q, want %q", err.Error(), want)
	}

	for _, f := range Formats() {
		got, err := ParseFormat(strings.ToUpper(string(f)))
		if err != nil {
			t.Errorf("ParseFormat(%q) error: %v", f, err)
			continue
		}
		if got != f {
			t.Errorf("ParseFormat(%q) = %q, want %q", f, got, f)
		}
	}
}
