package thumbnail

import (
	"bytes"
	"image"
	"io"

	// Decoders register themselves with the standard image package.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

const webpQuality = 90

// Image is a decoded raster together with the name of the codec it came
// from, which is also the codec used to write it back out.
type Image struct {
	image.Image
	Format string
}

// Decode decodes content without retaining or modifying it.
func Decode(content []byte) (*Image, error) {
	if len(content) == 0 {
		return nil, &Error{Kind: ErrDecode, Err: errors.New("empty content")}
	}
	img, format, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, decodeError(err, "decode image")
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, &Error{Kind: ErrDecode, Err: errors.Errorf("degenerate %dx%d %s image", b.Dx(), b.Dy(), format)}
	}
	if _, err := encoderFor(format); err != nil {
		return nil, &Error{Kind: ErrDecode, Err: err}
	}
	return &Image{Image: img, Format: format}, nil
}

type encodeFunc func(w io.Writer, img image.Image) error

// encoderFor maps the name reported by image.Decode to an encoder for the
// same format.
func encoderFor(format string) (encodeFunc, error) {
	var f imaging.Format
	switch format {
	case "jpeg":
		f = imaging.JPEG
	case "png":
		f = imaging.PNG
	case "gif":
		f = imaging.GIF
	case "bmp":
		f = imaging.BMP
	case "tiff":
		f = imaging.TIFF
	case "webp":
		return func(w io.Writer, img image.Image) error {
			return webp.Encode(w, img, &webp.Options{Quality: webpQuality})
		}, nil
	default:
		return nil, errors.Errorf("unsupported format for re-encoding: %s", format)
	}
	return func(w io.Writer, img image.Image) error {
		return imaging.Encode(w, img, f)
	}, nil
}

// Encode serializes img in its original format.
func (img *Image) Encode(w io.Writer) error {
	enc, err := encoderFor(img.Format)
	if err != nil {
		return err
	}
	return enc(w, img.Image)
}
