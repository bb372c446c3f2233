package validate

import (
	"errors"
	"testing"
)

func TestMIMEType(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr error
	}{
		{"image/jpeg", "image/jpeg", nil},
		{" Image/PNG ", "image/png", nil},
		{"image/webp", "image/webp", nil},
		{"audio/mpeg", "", ErrInvalidMIMEType},
		{"application/pdf", "", ErrInvalidMIMEType},
		{"", "", ErrEmpty},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := MIMEType(tt.input, AllowedImageTypes)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("MIMEType(%q) error = %v, want %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("MIMEType(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestFileSize(t *testing.T) {
	c := FileConstraints{MinSizeBytes: 10, MaxSizeBytes: 100}
	tests := []struct {
		name    string
		size    int64
		wantErr error
	}{
		{"within bounds", 50, nil},
		{"at max", 100, nil},
		{"zero", 0, ErrFileTooSmall},
		{"negative", -1, ErrFileTooSmall},
		{"below min", 9, ErrFileTooSmall},
		{"above max", 101, ErrFileTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := FileSize(tt.size, c); !errors.Is(err, tt.wantErr) {
				t.Errorf("FileSize(%d) error = %v, want %v", tt.size, err, tt.wantErr)
			}
		})
	}
}

func TestImageFile(t *testing.T) {
	if _, err := ImageFile("image/png", MaxImageBytes, 0); err != nil {
		t.Errorf("default max should accept %d bytes: %v", MaxImageBytes, err)
	}
	if _, err := ImageFile("image/png", MaxImageBytes+1, 0); !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("expected ErrFileTooLarge, got %v", err)
	}
	if _, err := ImageFile("image/png", 2048, 1024); !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("explicit max not applied: %v", err)
	}
	if _, err := ImageFile("video/mp4", 10, 0); !errors.Is(err, ErrInvalidMIMEType) {
		t.Errorf("expected ErrInvalidMIMEType, got %v", err)
	}
}

func TestImageExtensionsCoverAllowedTypes(t *testing.T) {
	for _, mt := range AllowedImageTypes {
		if ImageExtensions[mt] == "" {
			t.Errorf("no extension for %s", mt)
		}
	}
}
