// Package media handles avatar intake. Avatars are stored inline in the
// profile document as base64 text, so intake is validate + limit + encode
// rather than a blob-store upload.
package media

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

var (
	ErrInvalidImage  = errors.New("invalid image file")
	ErrImageTooLarge = errors.New("image exceeds size limit")
)

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// EncodeAvatar validates the filename extension, reads at most maxBytes from r
// and returns the base64 payload stored in the profile document.
func EncodeAvatar(filename string, r io.Reader, maxBytes int64) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		return "", fmt.Errorf("%w: extension %q not allowed", ErrInvalidImage, ext)
	}
	if maxBytes <= 0 {
		return "", fmt.Errorf("%w: non-positive size limit", ErrImageTooLarge)
	}

	// Read one byte past the limit to distinguish "at limit" from "over".
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty file", ErrInvalidImage)
	}
	if int64(len(data)) > maxBytes {
		return "", fmt.Errorf("%w: limit %d bytes", ErrImageTooLarge, maxBytes)
	}

	return base64.StdEncoding.EncodeToString(data), nil
}

// DecodeAvatar reverses EncodeAvatar.
func DecodeAvatar(encoded string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return data, nil
}

// DataURI renders the inline payload as a data URI for clients that display
// the avatar directly.
func DataURI(encoded string) string {
	if encoded == "" {
		return ""
	}
	return "data:image/jpeg;base64," + encoded
}
