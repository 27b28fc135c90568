package tray

import (
	"bytes"
	"image"
	"image/color"
	"sync"

	ico "github.com/sergeymakinen/go-ico"
)

const iconSize = 16

var iconOnce = sync.OnceValue(buildIcon)

// getIcon returns a 16x16 ICO with a play triangle.
func getIcon() []byte {
	return iconOnce()
}

func buildIcon() []byte {
	img := image.NewNRGBA(image.Rect(0, 0, iconSize, iconSize))
	green := color.NRGBA{R: 0x50, G: 0xaf, B: 0x4c, A: 0xff}
	for y := range iconSize {
		for x := range iconSize {
			if inTriangle(x, y) {
				img.SetNRGBA(x, y, green)
			}
		}
	}

	var buf bytes.Buffer
	if err := ico.Encode(&buf, img); err != nil {
		return nil
	}
	return buf.Bytes()
}

// inTriangle reports whether the pixel lies in a right-pointing triangle
// spanning columns 4..12 and rows 2..13.
func inTriangle(x, y int) bool {
	if x < 4 || y < 2 || y > 13 {
		return false
	}
	// half-height of the triangle shrinks as x moves right
	half := float64(13-x) * 6 / 9
	return float64(y) >= 7.5-half && float64(y) <= 7.5+half
}
