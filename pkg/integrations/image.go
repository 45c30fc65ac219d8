package integrations

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"math"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// ImageProcessor prepares page images for a display
type ImageProcessor struct {
	settings ImageSettings
}

// NewImageProcessor creates a new image processor with the given settings
func NewImageProcessor(settings ImageSettings) *ImageProcessor {
	if settings.Format == "" {
		settings.Format = "jpeg"
	}
	if settings.Quality <= 0 {
		settings.Quality = 85
	}
	return &ImageProcessor{
		settings: settings,
	}
}

// ContentType is the MIME type of processed images
func (p *ImageProcessor) ContentType() string {
	if p.settings.Format == "png" {
		return "image/png"
	}
	return "image/jpeg"
}

// ProcessImage decodes a JPEG, PNG, GIF or WebP page, fits it to the display
// and re-encodes it
func (p *ImageProcessor) ProcessImage(input io.Reader) ([]byte, error) {
	img, _, err := image.Decode(input)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	origWidth := bounds.Dx()
	origHeight := bounds.Dy()

	newWidth, newHeight := p.calculateDimensions(origWidth, origHeight)

	processed := img
	if newWidth != origWidth || newHeight != origHeight {
		processed = p.resize(img, newWidth, newHeight)
	}

	if p.settings.Grayscale {
		if _, isGray := processed.(*image.Gray); !isGray {
			processed = p.toGrayscale(processed)
		}
	}

	if p.settings.Contrast != 0 && p.settings.Contrast != 1.0 {
		processed = p.adjustContrast(processed, p.settings.Contrast)
	}

	if p.settings.Gamma != 0 && p.settings.Gamma != 1.0 {
		processed = p.adjustGamma(processed, p.settings.Gamma)
	}

	if p.settings.Sharpen {
		processed = p.sharpen(processed)
	}

	return p.encode(processed)
}

// ProcessImageData is a convenience method that works with byte slices
func (p *ImageProcessor) ProcessImageData(data []byte) ([]byte, error) {
	return p.ProcessImage(bytes.NewReader(data))
}

// calculateDimensions fits width x height inside the display, keeping the
// aspect ratio. Unbounded axes are ignored.
func (p *ImageProcessor) calculateDimensions(width, height int) (int, int) {
	maxW, maxH := p.settings.MaxWidth, p.settings.MaxHeight
	if maxW <= 0 {
		maxW = width
	}
	if maxH <= 0 {
		maxH = height
	}
	if width <= maxW && height <= maxH {
		return width, height
	}

	scale := math.Min(float64(maxW)/float64(width), float64(maxH)/float64(height))
	return max(int(float64(width)*scale), 1), max(int(float64(height)*scale), 1)
}

func (p *ImageProcessor) resize(img image.Image, width, height int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}

func (p *ImageProcessor) toGrayscale(img image.Image) image.Image {
	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	draw.Draw(gray, bounds, img, bounds.Min, draw.Src)
	return gray
}

func (p *ImageProcessor) adjustContrast(img image.Image, factor float64) image.Image {
	var table [256]uint8
	for i := range table {
		table[i] = clamp((float64(i)-128)*factor + 128)
	}
	return mapChannels(img, &table)
}

func (p *ImageProcessor) adjustGamma(img image.Image, gamma float64) image.Image {
	var table [256]uint8
	for i := range table {
		table[i] = clamp(255 * math.Pow(float64(i)/255, 1/gamma))
	}
	return mapChannels(img, &table)
}

// mapChannels runs every color channel through a lookup table. Grayscale
// images stay grayscale.
func mapChannels(img image.Image, table *[256]uint8) image.Image {
	bounds := img.Bounds()
	if gray, ok := img.(*image.Gray); ok {
		out := image.NewGray(bounds)
		for i, v := range gray.Pix {
			out.Pix[i] = table[v]
		}
		return out
	}

	out := image.NewRGBA(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := img.At(x, y).RGBA()
			out.SetRGBA(x, y, color.RGBA{table[r>>8], table[g>>8], table[b>>8], uint8(a >> 8)})
		}
	}
	return out
}

// sharpen applies a 3x3 sharpening kernel for e-ink displays
//
//	[ -1 -1 -1 ]
//	[ -1  9 -1 ]
//	[ -1 -1 -1 ]
func (p *ImageProcessor) sharpen(img image.Image) image.Image {
	bounds := img.Bounds()
	var sharpened draw.Image = image.NewRGBA(bounds)
	if _, ok := img.(*image.Gray); ok {
		sharpened = image.NewGray(bounds)
	}
	draw.Draw(sharpened, bounds, img, bounds.Min, draw.Src)

	for y := bounds.Min.Y + 1; y < bounds.Max.Y-1; y++ {
		for x := bounds.Min.X + 1; x < bounds.Max.X-1; x++ {
			var rSum, gSum, bSum float64
			r, g, b, a := img.At(x, y).RGBA()
			rSum += float64(r>>8) * 9
			gSum += float64(g>>8) * 9
			bSum += float64(b>>8) * 9

			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					if dx == 0 && dy == 0 {
						continue
					}
					r, g, b, _ := img.At(x+dx, y+dy).RGBA()
					rSum -= float64(r >> 8)
					gSum -= float64(g >> 8)
					bSum -= float64(b >> 8)
				}
			}

			sharpened.Set(x, y, color.RGBA{clamp(rSum), clamp(gSum), clamp(bSum), uint8(a >> 8)})
		}
	}
	return sharpened
}

func clamp(v float64) uint8 {
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	}
	return uint8(v)
}

func (p *ImageProcessor) encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer

	switch p.settings.Format {
	case "jpeg", "jpg":
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: p.settings.Quality}); err != nil {
			return nil, fmt.Errorf("failed to encode JPEG: %w", err)
		}
	case "png":
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("failed to encode PNG: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported format: %s", p.settings.Format)
	}

	return buf.Bytes(), nil
}
