package ocr

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/username/merchantguard/backend/src/security/validation"
)

// ErrReceiptUnreadable is returned when the receipt file cannot be read.
var ErrReceiptUnreadable = errors.New("receipt file unreadable")

// ImageLoader reads receipt images from disk and checks they are real images
// before any engine sees them.
type ImageLoader struct {
	root      string
	maxBytes  int64
	maxPixels int
}

func NewImageLoader(root string, maxBytes int64, maxPixels int) *ImageLoader {
	return &ImageLoader{root: root, maxBytes: maxBytes, maxPixels: maxPixels}
}

// Load resolves path against the receipt root, reads at most maxBytes and
// validates the image header.
func (l *ImageLoader) Load(path string) ([]byte, validation.ImageInfo, error) {
	resolved, err := validation.ValidateReceiptPath(path, l.root)
	if err != nil {
		return nil, validation.ImageInfo{}, err
	}

	f, err := os.Open(resolved)
	if err != nil {
		return nil, validation.ImageInfo{}, fmt.Errorf("%w: %v", ErrReceiptUnreadable, err)
	}
	defer f.Close()

	if st, err := f.Stat(); err == nil && st.IsDir() {
		return nil, validation.ImageInfo{}, fmt.Errorf("%w: %s is a directory", ErrReceiptUnreadable, resolved)
	}

	data, err := io.ReadAll(io.LimitReader(f, l.maxBytes+1))
	if err != nil {
		return nil, validation.ImageInfo{}, fmt.Errorf("%w: %v", ErrReceiptUnreadable, err)
	}
	if int64(len(data)) > l.maxBytes {
		return nil, validation.ImageInfo{}, fmt.Errorf("%w: file exceeds %d bytes", validation.ErrUnsupportedImage, l.maxBytes)
	}

	info, err := validation.ValidateImageContent(data, l.maxPixels)
	if err != nil {
		return nil, info, err
	}
	return data, info, nil
}
