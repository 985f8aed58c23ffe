// Package thumbnail turns encoded image bytes into a fixed-size, centred
// thumbnail (or a re-encoded copy in pass-through mode) written atomically
// to disk.
//
// Every call works only on its own input buffer and destination path, so
// Generate is safe to call from any number of goroutines. Concurrent calls
// targeting the same destination race at the filesystem level.
package thumbnail

import (
	"bufio"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
)

// Generate decodes content, scales it to cover size, crops the centre to
// exactly size and writes it to destination in the format it was decoded
// from. With size.Width == 0 the image is re-encoded at its native
// dimensions.
//
// The destination's parent directory must exist. On failure nothing is left
// at destination; an existing file there is replaced only on success.
func Generate(content []byte, destination string, size Size) error {
	if err := size.Validate(); err != nil {
		return err
	}
	img, err := Decode(content)
	if err != nil {
		return err
	}
	out, err := Transform(img, size)
	if err != nil {
		return err
	}
	return writeFile(out, destination)
}

// Transform applies the resize-then-crop step to a decoded image. The
// returned image keeps the source format.
func Transform(img *Image, size Size) (*Image, error) {
	if err := size.Validate(); err != nil {
		return nil, err
	}
	if size.PassThrough() {
		return img, nil
	}
	b := img.Bounds()
	g, err := Plan(b.Dx(), b.Dy(), size)
	if err != nil {
		return nil, err
	}
	resized := imaging.Resize(img.Image, g.Resized.X, g.Resized.Y, imaging.Lanczos)
	cropped := imaging.Crop(resized, g.Crop)
	return &Image{Image: cropped, Format: img.Format}, nil
}

// writeFile encodes img into a temporary file next to destination and
// renames it into place.
func writeFile(img *Image, destination string) (err error) {
	dir, base := filepath.Split(destination)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, "."+base+".*.tmp")
	if err != nil {
		return writeError(err, "create temporary file")
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	w := bufio.NewWriter(tmp)
	if err := img.Encode(w); err != nil {
		return writeError(err, "encode "+img.Format)
	}
	if err := w.Flush(); err != nil {
		return writeError(err, "write temporary file")
	}
	if err := tmp.Sync(); err != nil {
		return writeError(err, "sync temporary file")
	}
	if err := tmp.Close(); err != nil {
		return writeError(err, "close temporary file")
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return writeError(err, "chmod temporary file")
	}
	if err := os.Rename(tmp.Name(), destination); err != nil {
		return writeError(err, "rename into place")
	}
	return nil
}
