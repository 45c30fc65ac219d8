package integrations

import "slices"

// DisplayProfile describes the screen pages are prepared for
type DisplayProfile struct {
	Name      string
	Width     int  // Screen width in pixels
	Height    int  // Screen height in pixels
	DPI       int  // Dots per inch
	Grayscale bool // E-ink panel
}

// DisplayProfiles are the built-in profiles, keyed by id
var DisplayProfiles = map[string]DisplayProfile{
	"phone": {
		Name:   "Phone",
		Width:  1080,
		Height: 2340,
		DPI:    400,
	},
	"tablet": {
		Name:   "Tablet",
		Width:  1640,
		Height: 2360,
		DPI:    264,
	},
	"desktop": {
		Name:   "Desktop",
		Width:  1920,
		Height: 2560,
		DPI:    110,
	},
	"kindle-basic": {
		Name:      "Kindle Basic (10th gen)",
		Width:     758,
		Height:    1024,
		DPI:       167,
		Grayscale: true,
	},
	"kindle-paperwhite": {
		Name:      "Kindle Paperwhite 3/4",
		Width:     1072,
		Height:    1448,
		DPI:       300,
		Grayscale: true,
	},
	"kindle-oasis": {
		Name:      "Kindle Oasis 3",
		Width:     1264,
		Height:    1680,
		DPI:       300,
		Grayscale: true,
	},
	"kindle-scribe": {
		Name:      "Kindle Scribe",
		Width:     1860,
		Height:    2480,
		DPI:       300,
		Grayscale: true,
	},
}

// GetDisplayProfile returns the profile for a given id
func GetDisplayProfile(id string) (DisplayProfile, bool) {
	p, ok := DisplayProfiles[id]
	return p, ok
}

// ListDisplayProfiles returns all profile ids, sorted
func ListDisplayProfiles() []string {
	ids := make([]string, 0, len(DisplayProfiles))
	for id := range DisplayProfiles {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// ImageSettings defines how page images are prepared for a display
type ImageSettings struct {
	MaxWidth  int     // Maximum image width
	MaxHeight int     // Maximum image height
	Quality   int     // JPEG quality (1-100)
	Grayscale bool    // Convert to grayscale
	Sharpen   bool    // Apply sharpening for e-ink
	Contrast  float64 // Contrast adjustment (1.0 = no change)
	Gamma     float64 // Gamma correction
	Format    string  // Output format: "jpeg" or "png"
}

// Settings returns recommended image settings for the profile
func (d DisplayProfile) Settings() ImageSettings {
	settings := ImageSettings{
		MaxWidth:  d.Width,
		MaxHeight: d.Height,
		Quality:   85,
		Grayscale: d.Grayscale,
		Sharpen:   d.Grayscale,
		Contrast:  1.0,
		Gamma:     1.0,
		Format:    "jpeg",
	}

	if d.DPI >= 300 {
		settings.Quality = 90
	}

	// E-ink renders mid-tones washed out
	if d.Grayscale {
		settings.Contrast = 1.1
		settings.Gamma = 0.9
	}

	return settings
}
