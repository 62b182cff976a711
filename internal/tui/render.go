package tui

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/autorecord/autorecord/internal/avatar"
)

// avatarCells is the rendered avatar width in terminal columns. Each cell
// shows two vertically stacked pixels, so the block is avatarCells/2 lines.
const avatarCells = 8

// alphaCutoff treats pixels below this alpha as transparent.
const alphaCutoff = 0x80

// placeholder is shown until a user's picture has loaded.
var placeholder = func() *image.NRGBA {
	src := image.NewNRGBA(image.Rect(0, 0, avatarCells, avatarCells))
	for i := 0; i < len(src.Pix); i += 4 {
		src.Pix[i], src.Pix[i+1], src.Pix[i+2], src.Pix[i+3] = 0x55, 0x55, 0x55, 0xff
	}
	return avatar.Process(src, avatarCells)
}()

// renderAvatar draws img as avatarCells x avatarCells/2 half-block cells,
// sampling the nearest source pixel.
func renderAvatar(img *image.NRGBA) string {
	if img == nil {
		img = placeholder
	}
	b := img.Bounds()
	at := func(x, y int) color.NRGBA {
		sx := b.Min.X + x*b.Dx()/avatarCells
		sy := b.Min.Y + y*b.Dy()/avatarCells
		return img.NRGBAAt(sx, sy)
	}

	var sb strings.Builder
	for y := 0; y < avatarCells; y += 2 {
		if y > 0 {
			sb.WriteByte('\n')
		}
		for x := 0; x < avatarCells; x++ {
			sb.WriteString(halfBlock(at(x, y), at(x, y+1)))
		}
	}
	return sb.String()
}

// halfBlock renders an upper and a lower pixel as one cell.
func halfBlock(top, bottom color.NRGBA) string {
	topOn, bottomOn := top.A >= alphaCutoff, bottom.A >= alphaCutoff
	switch {
	case topOn && bottomOn:
		return lipgloss.NewStyle().Foreground(hex(top)).Background(hex(bottom)).Render("▀")
	case topOn:
		return lipgloss.NewStyle().Foreground(hex(top)).Render("▀")
	case bottomOn:
		return lipgloss.NewStyle().Foreground(hex(bottom)).Render("▄")
	default:
		return " "
	}
}

func hex(c color.NRGBA) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B))
}
