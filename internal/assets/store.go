// Package assets owns the assets directory: it names new files, resolves
// names to paths under the root, saves uploaded images as thumbnails and
// removes them again.
package assets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mahirjain10/go-assets/internal/observability"
	"github.com/mahirjain10/go-assets/internal/payload"
	"github.com/mahirjain10/go-assets/internal/thumbnail"
)

var (
	ErrNotFound    = errors.New("image not found")
	ErrIO          = errors.New("error deleting image")
	ErrInvalidName = errors.New("asset name escapes the assets folder")
)

// IOError is returned by Remove for any failure other than a missing file.
type IOError struct {
	Name string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", ErrIO, e.Name, e.Err)
}

func (e *IOError) Unwrap() []error {
	return []error{ErrIO, e.Err}
}

type Store struct {
	root    string
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// NewStore makes sure root exists. metrics may be nil.
func NewStore(root string, logger zerolog.Logger, metrics *observability.Metrics) (*Store, error) {
	if root == "" {
		return nil, errors.New("assets folder is not configured")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve assets folder %q: %w", root, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create assets folder %q: %w", abs, err)
	}
	return &Store{root: abs, logger: logger, metrics: metrics}, nil
}

func (s *Store) Root() string {
	return s.root
}

// GenerateFilename returns a random name with the given extension.
func GenerateFilename(ext string) string {
	return uuid.NewString() + "." + strings.TrimPrefix(ext, ".")
}

// Path resolves name under the assets root.
func (s *Store) Path(name string) (string, error) {
	if name == "" || filepath.IsAbs(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	p := filepath.Join(s.root, name)
	rel, err := filepath.Rel(s.root, p)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return p, nil
}

// Remove deletes the named asset.
func (s *Store) Remove(name string) error {
	p, err := s.Path(name)
	if err != nil {
		s.metrics.RecordRemoval("invalid")
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.metrics.RecordRemoval("not_found")
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		s.metrics.RecordRemoval("error")
		return &IOError{Name: name, Err: err}
	}
	s.metrics.RecordRemoval("success")
	s.logger.Debug().Str("file", name).Msg("asset removed")
	return nil
}

// SaveImage decodes a base64 or data URI image, checks it is PNG, JPEG or
// WebP and stores it as a thumbnail of the given size under a new name.
func (s *Store) SaveImage(data string, size thumbnail.Size) (string, error) {
	content, err := payload.Decode(data)
	if err != nil {
		return "", err
	}
	return s.SaveBytes(content, size)
}

// SaveBytes is SaveImage for content that is already raw bytes.
func (s *Store) SaveBytes(content []byte, size thumbnail.Size) (string, error) {
	format, err := payload.SniffFormat(content)
	if err != nil {
		return "", err
	}
	name := GenerateFilename(format.Extension())
	p, err := s.Path(name)
	if err != nil {
		return "", err
	}

	if md, err := thumbnail.Inspect(content); err == nil && md.HasEXIF {
		s.logger.Debug().Str("file", name).Msg("EXIF metadata dropped on re-encode")
	}

	start := time.Now()
	err = thumbnail.Generate(content, p, size)
	s.metrics.RecordThumbnail(size.PassThrough(), resultLabel(err), time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("save image: %w", err)
	}
	s.logger.Info().Str("file", name).Str("size", size.String()).Msg("image saved")
	return name, nil
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, thumbnail.ErrDecode):
		return "decode_error"
	case errors.Is(err, thumbnail.ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, thumbnail.ErrWrite):
		return "write_error"
	}
	return "error"
}
