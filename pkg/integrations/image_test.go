package integrations

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 128, 255})
		}
	}
	return img
}

func TestGetDisplayProfile(t *testing.T) {
	tests := []struct {
		name   string
		id     string
		wantOK bool
	}{
		{"tablet", "tablet", true},
		{"e-reader", "kindle-paperwhite", true},
		{"unknown", "crt", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile, ok := GetDisplayProfile(tt.id)
			if ok != tt.wantOK {
				t.Errorf("GetDisplayProfile() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && profile.Name == "" {
				t.Error("Profile name should not be empty")
			}
		})
	}

	ids := ListDisplayProfiles()
	assert.Len(t, ids, len(DisplayProfiles))
	assert.IsIncreasing(t, ids)
}

func TestDisplayProfile_Settings(t *testing.T) {
	eink := DisplayProfile{Width: 1072, Height: 1448, DPI: 300, Grayscale: true}
	settings := eink.Settings()
	assert.Equal(t, 1072, settings.MaxWidth)
	assert.Equal(t, 1448, settings.MaxHeight)
	assert.Equal(t, 90, settings.Quality)
	assert.True(t, settings.Grayscale)
	assert.True(t, settings.Sharpen)
	assert.Equal(t, 0.9, settings.Gamma)

	lcd := DisplayProfiles["tablet"].Settings()
	assert.False(t, lcd.Grayscale)
	assert.False(t, lcd.Sharpen)
	assert.Equal(t, 1.0, lcd.Contrast)
}

func TestImageProcessor_CalculateDimensions(t *testing.T) {
	processor := NewImageProcessor(ImageSettings{MaxWidth: 800, MaxHeight: 1200})

	tests := []struct {
		name       string
		width      int
		height     int
		wantWidth  int
		wantHeight int
	}{
		{"no resize needed", 600, 800, 600, 800},
		{"resize width", 1000, 800, 800, 640},
		{"resize height", 800, 1500, 640, 1200},
		{"resize both", 1600, 2400, 800, 1200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotWidth, gotHeight := processor.calculateDimensions(tt.width, tt.height)
			if gotWidth != tt.wantWidth || gotHeight != tt.wantHeight {
				t.Errorf("calculateDimensions() = (%d, %d), want (%d, %d)",
					gotWidth, gotHeight, tt.wantWidth, tt.wantHeight)
			}
		})
	}

	unbounded := NewImageProcessor(ImageSettings{})
	w, h := unbounded.calculateDimensions(3000, 4000)
	assert.Equal(t, 3000, w)
	assert.Equal(t, 4000, h)
}

func TestImageProcessor_ProcessImage(t *testing.T) {
	t.Run("resize to jpeg", func(t *testing.T) {
		processor := NewImageProcessor(ImageSettings{MaxWidth: 50, MaxHeight: 50, Format: "jpeg"})

		result, err := processor.ProcessImageData(encodePNG(t, gradient(100, 80)))
		require.NoError(t, err)

		img, format, err := image.Decode(bytes.NewReader(result))
		require.NoError(t, err)
		assert.Equal(t, "jpeg", format)
		assert.Equal(t, 50, img.Bounds().Dx())
		assert.Equal(t, 40, img.Bounds().Dy())
		assert.Equal(t, "image/jpeg", processor.ContentType())
	})

	t.Run("e-ink pipeline", func(t *testing.T) {
		settings := DisplayProfiles["kindle-basic"].Settings()
		settings.Format = "png"
		processor := NewImageProcessor(settings)

		result, err := processor.ProcessImageData(encodePNG(t, gradient(40, 40)))
		require.NoError(t, err)

		img, _, err := image.Decode(bytes.NewReader(result))
		require.NoError(t, err)
		_, isGray := img.(*image.Gray)
		assert.True(t, isGray, "expected grayscale output, got %T", img)
		assert.Equal(t, "image/png", processor.ContentType())
	})

	t.Run("contrast keeps dark pixels dark", func(t *testing.T) {
		processor := NewImageProcessor(ImageSettings{Contrast: 1.5, Format: "png"})

		src := image.NewRGBA(image.Rect(0, 0, 2, 1))
		src.Set(0, 0, color.RGBA{20, 20, 20, 255})
		src.Set(1, 0, color.RGBA{230, 230, 230, 255})

		result, err := processor.ProcessImageData(encodePNG(t, src))
		require.NoError(t, err)
		img, _, err := image.Decode(bytes.NewReader(result))
		require.NoError(t, err)

		dark, _, _, _ := img.At(0, 0).RGBA()
		light, _, _, _ := img.At(1, 0).RGBA()
		assert.Less(t, dark>>8, uint32(20))
		assert.Greater(t, light>>8, uint32(230))
	})

	t.Run("invalid input", func(t *testing.T) {
		processor := NewImageProcessor(ImageSettings{})
		_, err := processor.ProcessImageData([]byte("not an image"))
		assert.Error(t, err)
	})

	t.Run("unsupported format", func(t *testing.T) {
		processor := NewImageProcessor(ImageSettings{Format: "bmp"})
		_, err := processor.ProcessImageData(encodePNG(t, gradient(4, 4)))
		assert.Error(t, err)
	})
}

func TestClamp(t *testing.T) {
	assert.Equal(t, uint8(0), clamp(-12))
	assert.Equal(t, uint8(255), clamp(300))
	assert.Equal(t, uint8(42), clamp(42.7))
}
