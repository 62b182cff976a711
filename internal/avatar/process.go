package avatar

import (
	"image"
	"image/color"
	"image/draw"

	// Registered decoders for profile pictures.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	xdraw "golang.org/x/image/draw"
)

// Process center-crops src to a square, scales it to size x size and clears
// every pixel outside the inscribed circle.
func Process(src image.Image, size int) *image.NRGBA {
	b := src.Bounds()
	side := b.Dx()
	if b.Dy() < side {
		side = b.Dy()
	}
	crop := image.Rect(0, 0, side, side).Add(image.Pt(
		b.Min.X+(b.Dx()-side)/2,
		b.Min.Y+(b.Dy()-side)/2,
	))

	scaled := image.NewNRGBA(image.Rect(0, 0, size, size))
	xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), src, crop, xdraw.Src, nil)

	out := image.NewNRGBA(scaled.Bounds())
	draw.DrawMask(out, out.Bounds(), scaled, image.Point{}, circle{size: size}, image.Point{}, draw.Src)
	return out
}

// circle is an alpha mask that is opaque inside the circle inscribed in a
// size x size square.
type circle struct {
	size int
}

func (c circle) ColorModel() color.Model { return color.AlphaModel }

func (c circle) Bounds() image.Rectangle { return image.Rect(0, 0, c.size, c.size) }

func (c circle) At(x, y int) color.Color {
	r := float64(c.size) / 2
	dx := float64(x) + 0.5 - r
	dy := float64(y) + 0.5 - r
	if dx*dx+dy*dy <= r*r {
		return color.Alpha{A: 0xff}
	}
	return color.Alpha{}
}
