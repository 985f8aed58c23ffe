package handlers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/mahirjain10/go-assets/internal/assets"
	"github.com/mahirjain10/go-assets/internal/thumbnail"
	"github.com/mahirjain10/go-assets/internal/types"
)

var (
	ErrNoImage = errors.New("job carries neither image nor url")
	ErrUpload  = errors.New("asset upload failed")
)

type Fetcher interface {
	Download(ctx context.Context, url string) (string, error)
}

// Mirror copies assets to remote storage.
type Mirror interface {
	UploadAsset(ctx context.Context, name, filePath string) (string, error)
	DeleteAsset(ctx context.Context, name string) error
}

type ThumbnailHandler struct {
	store   *assets.Store
	fetcher Fetcher
	mirror  Mirror
	size    thumbnail.Size
	logger  zerolog.Logger

	uploadAttempts int
	retryDelay     time.Duration
}

// NewThumbnailHandler wires the handler. mirror may be nil.
func NewThumbnailHandler(store *assets.Store, fetcher Fetcher, mirror Mirror, size thumbnail.Size, logger zerolog.Logger) *ThumbnailHandler {
	return &ThumbnailHandler{
		store:          store,
		fetcher:        fetcher,
		mirror:         mirror,
		size:           size,
		logger:         logger,
		uploadAttempts: 3,
		retryDelay:     2 * time.Second,
	}
}

// WithRetry overrides the mirror upload attempts and the delay between them.
func (h *ThumbnailHandler) WithRetry(attempts int, delay time.Duration) *ThumbnailHandler {
	if attempts < 1 {
		attempts = 1
	}
	h.uploadAttempts = attempts
	h.retryDelay = delay
	return h
}

func (h *ThumbnailHandler) sizeFor(job types.CreateThumbnail) thumbnail.Size {
	if job.Width == nil {
		return h.size
	}
	size := thumbnail.Size{Width: *job.Width}
	if job.Height != nil {
		size.Height = *job.Height
	}
	return size
}

// CreateThumbnail stores the job's image and returns the asset name and,
// when a mirror is configured, its public URL.
func (h *ThumbnailHandler) CreateThumbnail(ctx context.Context, job types.CreateThumbnail) (string, string, error) {
	size := h.sizeFor(job)

	var name string
	var err error
	switch {
	case job.URL != "":
		name, err = h.saveRemote(ctx, job.URL, size)
	case job.Image != "":
		name, err = h.store.SaveImage(job.Image, size)
	default:
		err = ErrNoImage
	}
	if err != nil {
		return "", "", err
	}

	if h.mirror == nil {
		return name, "", nil
	}
	publicUrl, err := h.upload(ctx, name)
	if err != nil {
		if rmErr := h.store.Remove(name); rmErr != nil {
			h.logger.Warn().Err(rmErr).Str("file", name).Msg("error while removing local asset after failed upload")
		}
		return "", "", err
	}
	return name, publicUrl, nil
}

func (h *ThumbnailHandler) saveRemote(ctx context.Context, url string, size thumbnail.Size) (string, error) {
	tmp, err := h.fetcher.Download(ctx, url)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := os.Remove(tmp); err != nil {
			h.logger.Warn().Err(err).Str("path", tmp).Msg("error while removing downloaded file")
		}
	}()

	content, err := os.ReadFile(tmp)
	if err != nil {
		return "", fmt.Errorf("error while reading downloaded file: %w", err)
	}
	return h.store.SaveBytes(content, size)
}

func (h *ThumbnailHandler) upload(ctx context.Context, name string) (string, error) {
	filePath, err := h.store.Path(name)
	if err != nil {
		return "", err
	}
	var publicUrl string
	var uploadErr error
	for i := 0; i < h.uploadAttempts; i++ {
		publicUrl, uploadErr = h.mirror.UploadAsset(ctx, name, filePath)
		if uploadErr == nil {
			return publicUrl, nil
		}
		h.logger.Warn().Err(uploadErr).Int("attempt", i+1).Str("file", name).Msg("error while uploading asset")
		if i < h.uploadAttempts-1 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(h.retryDelay):
			}
		}
	}
	return "", fmt.Errorf("%w for %s: %w", ErrUpload, name, uploadErr)
}

// RemoveAsset deletes the asset locally and from the mirror. A missing local
// file is reported after the mirror copy is removed.
func (h *ThumbnailHandler) RemoveAsset(ctx context.Context, job types.RemoveAsset) error {
	localErr := h.store.Remove(job.Filename)
	if localErr != nil && !errors.Is(localErr, assets.ErrNotFound) {
		return localErr
	}
	if h.mirror != nil {
		if err := h.mirror.DeleteAsset(ctx, job.Filename); err != nil {
			return err
		}
	}
	return localErr
}
