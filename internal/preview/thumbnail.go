package preview

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

const DefaultSize = 320

// ErrNoPreview is returned for files that have no visual preview, such as a
// PDF floor plan.
var ErrNoPreview = errors.New("no preview available for this file type")

// Thumbnail decodes an uploaded image and returns a JPEG that fits within a
// size x size box. EXIF orientation is applied first so phone photos are not
// shown sideways.
func Thumbnail(ctx context.Context, data []byte, size int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if size <= 0 {
		size = DefaultSize
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return encodeJPEG(fit(img, size))
}

func fit(img image.Image, size int) image.Image {
	b := img.Bounds()
	if b.Dx() <= size && b.Dy() <= size {
		return img
	}
	return imaging.Fit(img, size, size, imaging.Lanczos)
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
