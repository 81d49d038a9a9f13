package glrender

import (
	"image"
	"image/color"
	"image/draw"
	"strings"
	"sync"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"
)

const diagnosticFontSize = 13

var (
	diagFontOnce sync.Once
	diagFont     *truetype.Font
	diagFontErr  error
)

func diagnosticFace() (font.Face, error) {
	diagFontOnce.Do(func() {
		diagFont, diagFontErr = truetype.Parse(goregular.TTF)
	})
	if diagFontErr != nil {
		return nil, diagFontErr
	}
	return truetype.NewFace(diagFont, &truetype.Options{
		Size:    diagnosticFontSize,
		Hinting: font.HintingFull,
	}), nil
}

// DrawDiagnostic stamps text over the top of img on a dark translucent band.
// Each line of text is drawn on its own row. It is used to show shader build
// errors over the last good frame.
func DrawDiagnostic(img draw.Image, text string) error {
	face, err := diagnosticFace()
	if err != nil {
		return err
	}
	defer face.Close()
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	m := face.Metrics()
	lineHeight := m.Height.Ceil()
	if lineHeight <= 0 {
		lineHeight = diagnosticFontSize + 3
	}
	bb := img.Bounds()
	const pad = 4
	band := image.Rect(bb.Min.X, bb.Min.Y, bb.Max.X, bb.Min.Y+2*pad+lineHeight*len(lines)).Intersect(bb)
	draw.Draw(img, band, image.NewUniform(color.NRGBA{A: 180}), image.Point{}, draw.Over)
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.NRGBA{R: 255, G: 90, B: 90, A: 255}),
		Face: face,
	}
	for i, line := range lines {
		y := bb.Min.Y + pad + i*lineHeight + m.Ascent.Ceil()
		if y > bb.Max.Y {
			break
		}
		d.Dot = fixed.P(bb.Min.X+pad, y)
		d.DrawString(strings.ReplaceAll(line, "\t", "    "))
	}
	return nil
}
