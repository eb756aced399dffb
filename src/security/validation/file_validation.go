package validation

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/username/merchantguard/backend/src/logger"
)

// ErrUnsupportedImage is returned for receipt files that are not a decodable image.
var ErrUnsupportedImage = errors.New("unsupported or corrupt receipt image")

// ErrPathNotAllowed is returned when a receipt path escapes the configured root.
var ErrPathNotAllowed = errors.New("receipt path not allowed")

// AllowedImageContentTypes lists the detected MIME types accepted as receipts.
var AllowedImageContentTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/webp": true,
	"image/bmp":  true,
	"image/tiff": true,
}

var (
	tiffLittleEndian = []byte("II*\x00")
	tiffBigEndian    = []byte("MM\x00*")
)

// ImageInfo is what header inspection learns about a receipt image.
type ImageInfo struct {
	ContentType string
	Format      string
	Width       int
	Height      int
}

// detectImageType sniffs the content type from the leading bytes.
// http.DetectContentType does not know TIFF, so its magic numbers are checked first.
func detectImageType(buf []byte) string {
	if bytes.HasPrefix(buf, tiffLittleEndian) || bytes.HasPrefix(buf, tiffBigEndian) {
		return "image/tiff"
	}
	head := buf
	if len(head) > 512 {
		head = head[:512]
	}
	return strings.ToLower(strings.Split(http.DetectContentType(head), ";")[0])
}

// ValidateImageContent checks the magic bytes and image header of a receipt.
// maxPixels bounds width*height to refuse decompression bombs; zero disables the check.
func ValidateImageContent(data []byte, maxPixels int) (ImageInfo, error) {
	if len(data) == 0 {
		return ImageInfo{}, fmt.Errorf("%w: file is empty", ErrUnsupportedImage)
	}

	contentType := detectImageType(data)
	if !AllowedImageContentTypes[contentType] {
		logger.L.Debug("Receipt rejected by content sniffing", "detectedContentType", contentType)
		return ImageInfo{ContentType: contentType}, fmt.Errorf("%w: detected content type '%s'", ErrUnsupportedImage, contentType)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return ImageInfo{ContentType: contentType}, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return ImageInfo{ContentType: contentType}, fmt.Errorf("%w: zero-sized image", ErrUnsupportedImage)
	}
	if maxPixels > 0 && cfg.Width*cfg.Height > maxPixels {
		return ImageInfo{ContentType: contentType}, fmt.Errorf("%w: %dx%d exceeds pixel limit", ErrUnsupportedImage, cfg.Width, cfg.Height)
	}

	return ImageInfo{ContentType: contentType, Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}

// ValidateReceiptPath cleans a receipt path and, when root is set, ensures it stays inside root.
func ValidateReceiptPath(path, root string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("%w: empty path", ErrPathNotAllowed)
	}
	if strings.ContainsRune(path, 0) {
		return "", fmt.Errorf("%w: path contains NUL byte", ErrPathNotAllowed)
	}

	cleaned := filepath.Clean(path)
	if root == "" {
		return cleaned, nil
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("%w: resolve root: %v", ErrPathNotAllowed, err)
	}
	candidate := cleaned
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(absRoot, candidate)
	}
	rel, err := filepath.Rel(absRoot, candidate)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s is outside %s", ErrPathNotAllowed, path, absRoot)
	}
	return candidate, nil
}
