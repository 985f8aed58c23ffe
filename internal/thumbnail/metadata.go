package thumbnail

import (
	"bytes"
	"encoding/binary"
	"image"
)

// Metadata describes encoded image bytes without decoding the pixels.
type Metadata struct {
	Format string
	Width  int
	Height int
	// HasEXIF is set when a JPEG input carries an APP1 Exif segment.
	// Generate always re-encodes, so EXIF never survives into the output.
	HasEXIF bool
}

var exifHeader = []byte("Exif\x00\x00")

// Inspect reads the header of content. EXIF tags are never parsed, only
// the presence of the segment is reported.
func Inspect(content []byte) (Metadata, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(content))
	if err != nil {
		return Metadata{}, decodeError(err, "decode image header")
	}
	md := Metadata{Format: format, Width: cfg.Width, Height: cfg.Height}
	if format == "jpeg" {
		md.HasEXIF = hasJPEGExif(content)
	}
	return md, nil
}

// hasJPEGExif walks the marker segments up to the start of scan looking for
// an APP1 segment that begins with the Exif identifier.
func hasJPEGExif(b []byte) bool {
	if len(b) < 2 || b[0] != 0xff || b[1] != 0xd8 {
		return false
	}
	for i := 2; i+4 <= len(b); {
		if b[i] != 0xff {
			return false
		}
		marker := b[i+1]
		switch {
		case marker == 0xff:
			// fill byte
			i++
			continue
		case marker == 0xda || marker == 0xd9:
			return false
		case marker == 0x01 || (marker >= 0xd0 && marker <= 0xd7):
			i += 2
			continue
		}
		n := int(binary.BigEndian.Uint16(b[i+2:]))
		if n < 2 {
			return false
		}
		if marker == 0xe1 && bytes.HasPrefix(b[i+4:min(i+2+n, len(b))], exifHeader) {
			return true
		}
		i += 2 + n
	}
	return false
}
