// Package thumbnail scales downloaded album photos for grid views.
package thumbnail

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Size limits for requested thumbnails, in pixels of the longer side.
const (
	MinSize     = 16
	MaxSize     = 1024
	DefaultSize = 240
)

// ErrUndecodable means the payload is not an image format we can read.
var ErrUndecodable = errors.New("payload is not a decodable image")

// ClampSize maps a requested size into [MinSize, MaxSize]; zero means DefaultSize.
func ClampSize(size int) int {
	switch {
	case size == 0:
		return DefaultSize
	case size < MinSize:
		return MinSize
	case size > MaxSize:
		return MaxSize
	}
	return size
}

// Make scales the image so its longer side is at most maxSide and returns JPEG bytes.
// Images already within bounds are returned unchanged.
func Make(data []byte, maxSide int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= maxSide && height <= maxSide {
		return data, nil
	}

	w, h := fit(width, height, maxSide)
	scaled := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

// fit keeps the aspect ratio; neither side drops below one pixel.
func fit(width, height, maxSide int) (int, int) {
	if width >= height {
		return maxSide, max(1, height*maxSide/width)
	}
	return max(1, width*maxSide/height), maxSide
}
