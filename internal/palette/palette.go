// Package palette extracts a small set of named dominant colors from an image.
package palette

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"sort"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// ErrUnsupportedImage is returned when the bytes cannot be decoded as an image.
var ErrUnsupportedImage = errors.New("unsupported image")

const (
	sampleSize = 64
	// DefaultMaxColors caps how many names Extract returns.
	DefaultMaxColors = 4
	// minShare is the fraction of sampled pixels a color needs to be reported.
	minShare = 0.05
)

type namedColor struct {
	name    string
	r, g, b int
}

// reference colors tuned for beauty media: skin tones and nude shades get
// their own names instead of collapsing into brown or pink.
var reference = []namedColor{
	{"black", 20, 20, 20},
	{"white", 245, 245, 245},
	{"gray", 128, 128, 128},
	{"silver", 192, 192, 200},
	{"red", 200, 30, 40},
	{"burgundy", 110, 20, 40},
	{"pink", 240, 150, 180},
	{"nude", 225, 190, 165},
	{"peach", 250, 200, 160},
	{"brown", 120, 75, 45},
	{"blonde", 220, 190, 120},
	{"gold", 212, 175, 55},
	{"orange", 240, 130, 40},
	{"yellow", 245, 225, 60},
	{"green", 60, 150, 70},
	{"teal", 30, 130, 130},
	{"blue", 40, 80, 200},
	{"navy", 25, 35, 90},
	{"purple", 120, 60, 160},
	{"lavender", 190, 170, 220},
}

// Info describes an image without decoding its pixels.
type Info struct {
	Format string
	Width  int
	Height int
}

// Inspect reads the image header.
func Inspect(data []byte) (*Info, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	return &Info{Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}

// Extract returns up to maxColors color names ordered by pixel share.
// maxColors <= 0 uses DefaultMaxColors.
func Extract(data []byte, maxColors int) ([]string, error) {
	if maxColors <= 0 {
		maxColors = DefaultMaxColors
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	return fromImage(img, maxColors), nil
}

func fromImage(img image.Image, maxColors int) []string {
	thumb := imaging.Resize(img, sampleSize, sampleSize, imaging.Box)

	counts := make(map[string]int, len(reference))
	total := 0
	bounds := thumb.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := thumb.NRGBAAt(x, y)
			if c.A < 128 {
				continue
			}
			counts[nearest(int(c.R), int(c.G), int(c.B))]++
			total++
		}
	}
	if total == 0 {
		return []string{}
	}

	names := make([]string, 0, len(counts))
	for name, n := range counts {
		if float64(n)/float64(total) >= minShare {
			names = append(names, name)
		}
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})
	if len(names) > maxColors {
		names = names[:maxColors]
	}
	return names
}

func nearest(r, g, b int) string {
	best := reference[0].name
	bestDist := -1
	for _, ref := range reference {
		dr, dg, db := r-ref.r, g-ref.g, b-ref.b
		// weighted RGB distance, green dominates perceived brightness
		d := 2*dr*dr + 4*dg*dg + 3*db*db
		if bestDist < 0 || d < bestDist {
			best, bestDist = ref.name, d
		}
	}
	return best
}
