package pdfrender

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"os"

	// Decoders for the photo formats field crews deliver.
	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"golang.org/x/image/draw"
)

const (
	maxImageWidth = 1400
	jpegQuality   = 65
)

// prepareImage decodes the file at path, scales it down to maxImageWidth
// and re-encodes it as JPEG so large photos do not bloat the report.
func prepareImage(path string) (*bytes.Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	var dst image.Image = src
	b := src.Bounds()
	if b.Dx() > maxImageWidth {
		h := b.Dy() * maxImageWidth / b.Dx()
		if h < 1 {
			h = 1
		}
		scaled := image.NewRGBA(image.Rect(0, 0, maxImageWidth, h))
		draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), src, b, draw.Src, nil)
		dst = scaled
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, flatten(dst), &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode %s: %w", path, err)
	}
	return &buf, nil
}

// flatten paints img over white so transparent pixels do not turn black
// in the JPEG.
func flatten(img image.Image) image.Image {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Over)
	return out
}

// fit scales a w×h box to fit inside maxW×maxH, preserving the aspect ratio.
func fit(w, h, maxW, maxH float64) (float64, float64) {
	if w <= 0 || h <= 0 {
		return maxW, maxH
	}
	scale := min(maxW/w, maxH/h)
	return w * scale, h * scale
}
