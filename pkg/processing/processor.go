package processing

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "github.com/gen2brain/avif"
	_ "golang.org/x/image/webp"
)

// ErrEmptyImage is returned when there are no bytes to decode
var ErrEmptyImage = errors.New("image: empty input")

// Processor prepares images for vision models
type Processor struct{}

// NewProcessor creates a new image processor
func NewProcessor() *Processor {
	return &Processor{}
}

// DecodeBytes decodes an image in any registered format, with an explicit WebP fallback
func (p *Processor) DecodeBytes(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err == nil {
		return img, nil
	}

	if img, werr := webp.Decode(bytes.NewReader(data)); werr == nil {
		return img, nil
	}

	return nil, fmt.Errorf("image: unknown or unsupported format: %w", err)
}

// ToRGB composites an image onto a white canvas so every pixel is opaque
func (p *Processor) ToRGB(img image.Image) *image.NRGBA {
	b := img.Bounds()
	canvas := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(canvas, img, image.Pt(0, 0), 1.0)
}

// PrepareForModel flattens, bounds the long side to maxDim and encodes JPEG
func (p *Processor) PrepareForModel(img image.Image, maxDim int, quality int) ([]byte, error) {
	var out image.Image = p.ToRGB(img)
	if maxDim > 0 {
		b := out.Bounds()
		w, h := b.Dx(), b.Dy()
		if w > maxDim || h > maxDim {
			if w >= h {
				out = imaging.Resize(out, maxDim, 0, imaging.Lanczos)
			} else {
				out = imaging.Resize(out, 0, maxDim, imaging.Lanczos)
			}
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
