package sdfaux

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"time"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/sdfgraph"
	"github.com/soypat/sdfgraph/glrender"
)

// RenderPreview renders root at time t on the CPU with the settings' camera and size.
func RenderPreview(root sdfgraph.Node, s Settings, t float32) (*image.NRGBA, error) {
	e, err := sdfgraph.NewEvaluator(root)
	if err != nil {
		return nil, err
	}
	pr, err := glrender.NewPreviewRenderer(s.Width, s.RenderCamera())
	if err != nil {
		return nil, err
	}
	pr.SetMaxSteps(s.StepsPerRay)
	img := image.NewNRGBA(image.Rect(0, 0, s.Width, s.Height))
	err = pr.Render(e, img, t*s.TimeScale)
	if err != nil {
		return nil, err
	}
	return img, nil
}

// RenderPNGFile renders a CPU preview of root and saves it to filename. A
// non-empty diagnostic is stamped over the image.
func RenderPNGFile(filename string, root sdfgraph.Node, s Settings, t float32, diagnostic string) error {
	img, err := RenderPreview(root, s, t)
	if err != nil {
		return err
	}
	if diagnostic != "" {
		err = glrender.DrawDiagnostic(img, diagnostic)
		if err != nil {
			return err
		}
	}
	return writePNGFile(filename, img)
}

// RenderSlice colors img by the distance field on the plane z at time t.
// The plane spans [-extent, extent] along the shorter image side. A nil conv
// uses [ColorConversionInigoQuilez].
func RenderSlice(img *image.NRGBA, root sdfgraph.Node, z, extent, t float32, conv func(float32) color.Color) error {
	if extent <= 0 {
		return errors.New("non-positive slice extent")
	}
	e, err := sdfgraph.NewEvaluator(root)
	if err != nil {
		return err
	}
	if conv == nil {
		conv = ColorConversionInigoQuilez(extent / 3)
	}
	sr, err := glrender.NewSliceRenderer(max(img.Bounds().Dx(), 65), conv)
	if err != nil {
		return err
	}
	return sr.Render(e, img, z, extent, t)
}

func writePNGFile(filename string, img image.Image) error {
	fp, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer fp.Close()
	err = glrender.WritePNG(fp, img)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filename, err)
	}
	return fp.Sync()
}

func stopwatch() func() time.Duration {
	start := time.Now()
	return func() time.Duration {
		return time.Since(start)
	}
}

var red = color.RGBA{R: 255, A: 255}

// ColorConversionInigoQuilez returns the distance to color mapping popularized
// by Inigo Quilez: orange outside, blue inside, with contour bands and a white
// surface line. NaN distances are red.
func ColorConversionInigoQuilez(characteristicDistance float32) func(float32) color.Color {
	inv := 1 / characteristicDistance
	one := ms3.Vec{X: 1, Y: 1, Z: 1}
	return func(d float32) color.Color {
		if math32.IsNaN(d) {
			return red
		}
		d *= inv
		c := ms3.Vec{X: 0.65, Y: 0.85, Z: 1.0}
		if d > 0 {
			c = ms3.Vec{X: 0.9, Y: 0.6, Z: 0.3}
		}
		c = ms3.Scale(1-math32.Exp(-6*math32.Abs(d)), c)
		c = ms3.Scale(0.8+0.2*math32.Cos(150*d), c)
		edge := 1 - smoothstep(0, 0.01, math32.Abs(d))
		c = ms3.InterpElem(c, one, ms3.Vec{X: edge, Y: edge, Z: edge})
		return color.RGBA{
			R: uint8(c.X * 255),
			G: uint8(c.Y * 255),
			B: uint8(c.Z * 255),
			A: 255,
		}
	}
}

func smoothstep(e0, e1, x float32) float32 {
	t := math32.Max(0, math32.Min(1, (x-e0)/(e1-e0)))
	return t * t * (3 - 2*t)
}
