package watch

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/png"
	"math"
	"strings"

	"github.com/pkg/errors"
)

const dataURLPrefix = "data:image/png;base64,"

// quietZone is the light border, in modules, around every rendered symbol.
const quietZone = 4

// RenderDataURL turns the PNG QR code of a data URL back into half-block
// text so it can be scanned straight from the terminal.
func RenderDataURL(dataURL string) (string, error) {
	if !strings.HasPrefix(dataURL, dataURLPrefix) {
		return "", errors.New("not a png data url")
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(dataURL, dataURLPrefix))
	if err != nil {
		return "", errors.Wrap(err, "decode base64")
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", errors.Wrap(err, "decode png")
	}
	modules, err := sampleModules(img)
	if err != nil {
		return "", err
	}
	return halfBlocks(modules), nil
}

// sampleModules recovers the module grid, quiet zone included, from a
// rendered QR image. The top-left finder pattern gives the module pitch.
func sampleModules(img image.Image) ([][]bool, error) {
	b := img.Bounds()
	size := min(b.Dx(), b.Dy())
	dark := func(x, y int) bool {
		r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
		return r+g+bl < 3*0x8000
	}

	start := -1
	for i := 0; i < size; i++ {
		if dark(i, i) {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, errors.New("no qr code found in image")
	}
	end := start
	for end < size && dark(end, start) {
		end++
	}

	// The finder's top edge ends quietZone+7 modules from the image edge.
	estimate := float64(quietZone+7) * float64(size) / float64(end)
	version := math.Round((estimate - 2*quietZone - 17) / 4)
	if version < 1 || version > 40 {
		return nil, errors.Errorf("implausible qr size %.1f modules", estimate)
	}
	n := int(version)*4 + 17 + 2*quietZone

	pitch := float64(size) / float64(n)
	grid := make([][]bool, n)
	for r := range grid {
		grid[r] = make([]bool, n)
		y := int((float64(r) + 0.5) * pitch)
		for c := range grid[r] {
			grid[r][c] = dark(int((float64(c)+0.5)*pitch), y)
		}
	}
	return grid, nil
}

// halfBlocks packs two module rows per text line. Light modules are drawn so
// the code reads correctly on a dark terminal.
func halfBlocks(modules [][]bool) string {
	var sb strings.Builder
	for y := 0; y < len(modules); y += 2 {
		for x := range modules[y] {
			top := !modules[y][x]
			bottom := false
			if y+1 < len(modules) {
				bottom = !modules[y+1][x]
			}
			switch {
			case top && bottom:
				sb.WriteString("█")
			case top:
				sb.WriteString("▀")
			case bottom:
				sb.WriteString("▄")
			default:
				sb.WriteString(" ")
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
