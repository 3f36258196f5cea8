package extractor

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// PreparedImage is an image normalized for the embedding server.
type PreparedImage struct {
	// JPEG holds the re-encoded image.
	JPEG []byte
	// Scale maps coordinates in the prepared image back to the source image.
	Scale float64
}

// Decode parses any supported image format.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidImage, err)
	}
	return img, nil
}

// Resize fits img within maxSize (width or height) while keeping aspect ratio.
func Resize(img image.Image, maxSize int) image.Image {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	var newWidth, newHeight int
	if width > height {
		if width <= maxSize {
			return img
		}
		newWidth = maxSize
		newHeight = max(1, height*maxSize/width)
	} else {
		if height <= maxSize {
			return img
		}
		newHeight = maxSize
		newWidth = max(1, width*maxSize/height)
	}

	dst := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

// EncodeJPEG encodes img as JPEG with the given quality.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// Prepare decodes data, shrinks it to maxSize and re-encodes it as JPEG.
func Prepare(data []byte, maxSize, quality int) (*PreparedImage, error) {
	img, err := Decode(data)
	if err != nil {
		return nil, err
	}

	resized := Resize(img, maxSize)
	scale := 1.0
	if w := resized.Bounds().Dx(); w > 0 && w != img.Bounds().Dx() {
		scale = float64(img.Bounds().Dx()) / float64(w)
	}

	encoded, err := EncodeJPEG(resized, quality)
	if err != nil {
		return nil, err
	}
	return &PreparedImage{JPEG: encoded, Scale: scale}, nil
}
