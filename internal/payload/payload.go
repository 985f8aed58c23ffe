// Package payload turns caller-supplied image strings into raw bytes and
// identifies which of the accepted upload formats they are in.
package payload

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

const dataURIPrefix = "data:image/"

var (
	ErrInvalidBase64     = errors.New("payload is not valid base64")
	ErrEmptyPayload      = errors.New("payload is empty")
	ErrUnsupportedFormat = errors.New("image format not supported, allowed: PNG, JPG, WEBP")
)

// Decode accepts either raw base64 or a data:image/...;base64,... URI. For a
// data URI everything up to and including the first comma is dropped.
func Decode(data string) ([]byte, error) {
	if strings.HasPrefix(data, dataURIPrefix) {
		i := strings.IndexByte(data, ',')
		if i < 0 {
			return nil, fmt.Errorf("%w: data URI without a comma", ErrInvalidBase64)
		}
		data = data[i+1:]
	}
	b, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBase64, err)
	}
	if len(b) == 0 {
		return nil, ErrEmptyPayload
	}
	return b, nil
}

// Format is an accepted upload format.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatWebP Format = "webp"
)

// Extension is the file extension used for stored assets, without the dot.
func (f Format) Extension() string {
	return string(f)
}

var (
	pngMagic  = []byte("\x89PNG")
	jpegMagic = []byte("\xff\xd8")
	riffMagic = []byte("RIFF")
	webpMagic = []byte("WEBP")
)

// SniffFormat checks the leading magic bytes of b.
func SniffFormat(b []byte) (Format, error) {
	switch {
	case bytes.HasPrefix(b, pngMagic):
		return FormatPNG, nil
	case bytes.HasPrefix(b, jpegMagic):
		return FormatJPEG, nil
	case bytes.HasPrefix(b, riffMagic) && len(b) >= 12 && bytes.Equal(b[8:12], webpMagic):
		return FormatWebP, nil
	}
	return "", ErrUnsupportedFormat
}
