// Package errors maps processing failures to the messages published on the
// status queue.
package errors

import (
	goerrors "errors"

	"github.com/mahirjain10/go-assets/internal/assets"
	"github.com/mahirjain10/go-assets/internal/fetch"
	"github.com/mahirjain10/go-assets/internal/payload"
	"github.com/mahirjain10/go-assets/internal/thumbnail"
)

const (
	ErrMessage     = "Message could not be parsed"
	ErrNoImage     = "No image provided"
	ErrPayload     = "Image payload is not valid base64"
	ErrFormat      = "Image format not supported. Allowed: PNG, JPG, WEBP"
	ErrCorrupted   = "Image cannot be read, most likely corrupted"
	ErrSize        = "Invalid thumbnail size"
	ErrWrite       = "Image could not be saved"
	ErrDownload    = "Failed to download file"
	ErrDownloadIO  = "Unexpected error during file download"
	ErrNotFound    = "Image not found"
	ErrDelete      = "Error deleting image"
	ErrInvalidName = "Invalid image name"
	ErrUpload      = "Failed to upload image"
	ErrInternal    = "Internal error"
)

// Message returns the user-facing text for err.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case goerrors.Is(err, payload.ErrInvalidBase64), goerrors.Is(err, payload.ErrEmptyPayload):
		return ErrPayload
	case goerrors.Is(err, payload.ErrUnsupportedFormat):
		return ErrFormat
	case goerrors.Is(err, thumbnail.ErrDecode):
		return ErrCorrupted
	case goerrors.Is(err, thumbnail.ErrInvalidArgument):
		return ErrSize
	case goerrors.Is(err, thumbnail.ErrWrite):
		return ErrWrite
	case goerrors.Is(err, fetch.ErrClient):
		return ErrDownload
	case goerrors.Is(err, fetch.ErrServer):
		return ErrDownloadIO
	case goerrors.Is(err, assets.ErrNotFound):
		return ErrNotFound
	case goerrors.Is(err, assets.ErrIO):
		return ErrDelete
	case goerrors.Is(err, assets.ErrInvalidName):
		return ErrInvalidName
	}
	return ErrInternal
}
