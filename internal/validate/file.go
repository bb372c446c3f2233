package validate

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidMIMEType = errors.New("invalid MIME type")
	ErrFileTooLarge    = errors.New("file too large")
	ErrFileTooSmall    = errors.New("file too small")
)

const (
	MIMEImageJPEG = "image/jpeg"
	MIMEImagePNG  = "image/png"
	MIMEImageGIF  = "image/gif"
	MIMEImageWebP = "image/webp"
)

// MaxImageBytes is the largest image ImageFile accepts.
const MaxImageBytes int64 = 10 * 1024 * 1024

// AllowedImageTypes lists the image types accepted for avatars, covers and
// post media.
var AllowedImageTypes = []string{
	MIMEImageJPEG,
	MIMEImagePNG,
	MIMEImageGIF,
	MIMEImageWebP,
}

// ImageExtensions maps each allowed image type to its object key extension.
var ImageExtensions = map[string]string{
	MIMEImageJPEG: ".jpg",
	MIMEImagePNG:  ".png",
	MIMEImageGIF:  ".gif",
	MIMEImageWebP: ".webp",
}

// FileConstraints bounds an upload. Zero sizes mean no bound.
type FileConstraints struct {
	AllowedTypes []string
	MaxSizeBytes int64
	MinSizeBytes int64
}

// MIMEType returns the lowercased type when it is one of allowed.
func MIMEType(mimeType string, allowed []string) (string, error) {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if mimeType == "" {
		return "", ErrEmpty
	}
	for _, a := range allowed {
		if mimeType == strings.ToLower(a) {
			return mimeType, nil
		}
	}
	return "", fmt.Errorf("%w: %q not in allowed types", ErrInvalidMIMEType, mimeType)
}

// FileSize checks sizeBytes against c.
func FileSize(sizeBytes int64, c FileConstraints) error {
	if sizeBytes <= 0 {
		return fmt.Errorf("%w: size must be positive", ErrFileTooSmall)
	}
	if c.MinSizeBytes > 0 && sizeBytes < c.MinSizeBytes {
		return fmt.Errorf("%w: got %d bytes, minimum is %d", ErrFileTooSmall, sizeBytes, c.MinSizeBytes)
	}
	if c.MaxSizeBytes > 0 && sizeBytes > c.MaxSizeBytes {
		return fmt.Errorf("%w: got %d bytes, maximum is %d", ErrFileTooLarge, sizeBytes, c.MaxSizeBytes)
	}
	return nil
}

// File checks both type and size and returns the normalized type.
func File(mimeType string, sizeBytes int64, c FileConstraints) (string, error) {
	t, err := MIMEType(mimeType, c.AllowedTypes)
	if err != nil {
		return "", err
	}
	if err := FileSize(sizeBytes, c); err != nil {
		return "", err
	}
	return t, nil
}

// ImageFile checks an image upload against AllowedImageTypes and maxBytes.
// A non-positive maxBytes means MaxImageBytes.
func ImageFile(mimeType string, sizeBytes, maxBytes int64) (string, error) {
	if maxBytes <= 0 {
		maxBytes = MaxImageBytes
	}
	return File(mimeType, sizeBytes, FileConstraints{
		AllowedTypes: AllowedImageTypes,
		MaxSizeBytes: maxBytes,
	})
}
