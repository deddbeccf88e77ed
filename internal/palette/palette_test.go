package palette

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

func splitImage(w, h int, left, right color.NRGBA, split int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x < split {
				img.SetNRGBA(x, y, left)
			} else {
				img.SetNRGBA(x, y, right)
			}
		}
	}
	return img
}

func TestExtractOrdersByShare(t *testing.T) {
	red := color.NRGBA{R: 200, G: 30, B: 40, A: 255}
	white := color.NRGBA{R: 250, G: 250, B: 250, A: 255}
	data := encodePNG(t, splitImage(128, 128, red, white, 96))

	colors, err := Extract(data, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"red", "white"}, colors)
}

func TestExtractRespectsMaxColors(t *testing.T) {
	navy := color.NRGBA{R: 25, G: 35, B: 90, A: 255}
	gold := color.NRGBA{R: 212, G: 175, B: 55, A: 255}
	data := encodePNG(t, splitImage(64, 64, navy, gold, 40))

	colors, err := Extract(data, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"navy"}, colors)
}

func TestExtractIgnoresTransparentPixels(t *testing.T) {
	transparent := color.NRGBA{}
	pink := color.NRGBA{R: 240, G: 150, B: 180, A: 255}
	data := encodePNG(t, splitImage(64, 64, transparent, pink, 32))

	colors, err := Extract(data, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"pink"}, colors)
}

func TestExtractRejectsGarbage(t *testing.T) {
	_, err := Extract([]byte("not an image"), 0)
	assert.ErrorIs(t, err, ErrUnsupportedImage)
}

func TestInspect(t *testing.T) {
	data := encodePNG(t, image.NewNRGBA(image.Rect(0, 0, 30, 20)))
	info, err := Inspect(data)
	require.NoError(t, err)
	assert.Equal(t, &Info{Format: "png", Width: 30, Height: 20}, info)

	_, err = Inspect(nil)
	assert.ErrorIs(t, err, ErrUnsupportedImage)
}
