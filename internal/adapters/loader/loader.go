// Package loader provides attachment loading adapters.
package loader

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"

	"github.com/0xcro3dile/searchchat-go/internal/domain/entities"
)

// ErrNotImage is returned for files whose content is not an image.
var ErrNotImage = errors.New("not an image")

// ImageLoader loads image files from disk (.png, .jpg, ...).
// The content type is sniffed from the bytes, not trusted from the extension.
type ImageLoader struct {
	extensions []string
}

// NewImageLoader creates a new image loader.
func NewImageLoader(extensions []string) *ImageLoader {
	if len(extensions) == 0 {
		extensions = []string{".png", ".jpg", ".jpeg", ".gif", ".webp", ".bmp"}
	}
	return &ImageLoader{extensions: extensions}
}

// Load reads an image from the given path. The extension must be supported
// and the bytes must sniff as an image.
func (l *ImageLoader) Load(ctx context.Context, path string) (*entities.Attachment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path = expandHome(path)
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, errors.Errorf("%s is a directory", path)
	}
	if !l.Supports(path) {
		return nil, errors.Wrapf(ErrNotImage, "%s has an unsupported extension", filepath.Base(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading image")
	}
	return FromBytes(filepath.Base(path), data)
}

// FromBytes builds an attachment from uploaded or read bytes.
// It fails unless the bytes sniff as an image.
func FromBytes(name string, data []byte) (*entities.Attachment, error) {
	if len(data) == 0 {
		return nil, errors.Errorf("%s is empty", name)
	}
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return nil, errors.Wrapf(ErrNotImage, "%s (detected %s)", name, mt.String())
	}
	return entities.NewAttachment(name, contentType(mt), data), nil
}

// SupportedExtensions returns file extensions this loader handles.
func (l *ImageLoader) SupportedExtensions() []string {
	return l.extensions
}

// Supports reports whether path has one of the loader's extensions.
func (l *ImageLoader) Supports(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range l.extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// contentType drops parameters such as charset from the detected MIME type.
func contentType(mt *mimetype.MIME) string {
	s := mt.String()
	if i := strings.Index(s, ";"); i >= 0 {
		s = s[:i]
	}
	return s
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
