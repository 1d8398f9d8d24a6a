package media

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif" // Register GIF decoder
	"image/jpeg"
	_ "image/png" // Register PNG decoder

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder

	"github.com/esquie-bot/esquie/pkg/providers"
)

// MaxDimension bounds the longest side of an image sent to the vision model.
const MaxDimension = 1024

// ToJPEG decodes a GIF, JPEG, PNG or WebP image, scales it down so neither
// side exceeds MaxDimension and re-encodes it as JPEG.
func ToJPEG(data []byte) (providers.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return providers.Image{}, fmt.Errorf("failed to decode image: %w", err)
	}

	img = downscale(img, MaxDimension)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return providers.Image{}, fmt.Errorf("failed to encode as jpeg: %w", err)
	}
	return providers.Image{MIMEType: "image/jpeg", Data: buf.Bytes()}, nil
}

func downscale(img image.Image, maxDim int) image.Image {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= maxDim && height <= maxDim {
		return img
	}

	var newW, newH int
	if width > height {
		newW = maxDim
		newH = height * maxDim / width
	} else {
		newH = maxDim
		newW = width * maxDim / height
	}
	newW = max(newW, 1)
	newH = max(newH, 1)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}
