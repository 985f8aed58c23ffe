package thumbnail

import (
	"fmt"
	"image"

	"github.com/pkg/errors"
)

// Size is the target box of a thumbnail. A zero Width selects pass-through
// mode: the image keeps its native dimensions.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

var (
	DefaultSize = Size{Width: 128, Height: 128}
	// AssetSize is used for user-uploaded images.
	AssetSize = Size{Width: 400, Height: 400}
)

// PassThrough reports whether s skips resizing and cropping.
func (s Size) PassThrough() bool {
	return s.Width == 0
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Validate rejects sizes that cannot describe a target box.
func (s Size) Validate() error {
	if s.Width < 0 {
		return invalidArgument("negative target width %d", s.Width)
	}
	if s.Width > 0 && s.Height <= 0 {
		return invalidArgument("target height must be positive when width is %d, got %d", s.Width, s.Height)
	}
	return nil
}

// Geometry is the scale-to-cover plan for one image: the intermediate size
// the source is resized to, and the centred crop taken from it.
type Geometry struct {
	Resized image.Point
	Crop    image.Rectangle
}

// Plan computes the resize and crop for a srcWidth x srcHeight image so that
// the result is exactly size. The resized image covers size on both axes;
// the crop offsets use floor division so the odd pixel goes to the right or
// bottom margin.
func Plan(srcWidth, srcHeight int, size Size) (Geometry, error) {
	if err := size.Validate(); err != nil {
		return Geometry{}, err
	}
	if size.PassThrough() {
		return Geometry{}, invalidArgument("pass-through size %s has no geometry", size)
	}
	if srcWidth <= 0 || srcHeight <= 0 {
		return Geometry{}, &Error{Kind: ErrDecode, Err: errors.Errorf("degenerate %dx%d image", srcWidth, srcHeight)}
	}

	imRatio := float64(srcWidth) / float64(srcHeight)
	targetRatio := float64(size.Width) / float64(size.Height)

	var newWidth, newHeight int
	if imRatio > targetRatio {
		newHeight = size.Height
		newWidth = int(float64(newHeight) * imRatio)
	} else {
		newWidth = size.Width
		newHeight = int(float64(newWidth) / imRatio)
	}
	// float truncation may land one pixel short when the ratios are equal
	if newWidth < size.Width {
		newWidth = size.Width
	}
	if newHeight < size.Height {
		newHeight = size.Height
	}

	left := (newWidth - size.Width) / 2
	top := (newHeight - size.Height) / 2
	return Geometry{
		Resized: image.Pt(newWidth, newHeight),
		Crop:    image.Rect(left, top, left+size.Width, top+size.Height),
	}, nil
}
