// Package glrender renders scene trees to images on the CPU and encodes
// GPU readbacks for inspection.
package glrender

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
)

type setImage = interface {
	image.Image
	Set(x, y int, c color.Color)
}

// Camera is a pinhole camera looking at Target.
type Camera struct {
	Pos    ms3.Vec
	Target ms3.Vec
	// FOV is the vertical field of view in radians.
	FOV float32
}

// DefaultCamera looks at the origin from 5 units along -Z.
func DefaultCamera() Camera {
	return Camera{Pos: ms3.Vec{Z: -5}, Target: ms3.Vec{}, FOV: math32.Pi / 3}
}

// basis returns the camera's forward, right and up unit vectors.
func (c Camera) basis() (fwd, right, up ms3.Vec) {
	fwd = ms3.Unit(ms3.Sub(c.Target, c.Pos))
	right = ms3.Unit(cross(fwd, ms3.Vec{Y: 1}))
	up = cross(right, fwd)
	return fwd, right, up
}

// rayDir returns the direction through pixel (px, py) of a width x height
// image with y growing downwards. It matches the compute shader's camera.
func (c Camera) rayDir(px, py, width, height int, fwd, right, up ms3.Vec) ms3.Vec {
	h := math32.Tan(0.5 * c.FOV)
	u := (2*(float32(px)+0.5) - float32(width)) / float32(height)
	v := (float32(height) - 2*(float32(py)+0.5)) / float32(height)
	d := ms3.Add(fwd, ms3.Scale(h, ms3.Add(ms3.Scale(u, right), ms3.Scale(v, up))))
	return ms3.Unit(d)
}

func cross(a, b ms3.Vec) ms3.Vec {
	return ms3.Vec{
		X: a.Y*b.Z - a.Z*b.Y,
		Y: a.Z*b.X - a.X*b.Z,
		Z: a.X*b.Y - a.Y*b.X,
	}
}

// WritePNG encodes img as PNG.
func WritePNG(w io.Writer, img image.Image) error {
	return png.Encode(w, img)
}

// FloatRGBAToImage converts a GPU readback of linear RGBA floats stored
// bottom row first into dst, applying gamma correction.
func FloatRGBAToImage(dst *image.NRGBA, src []float32) error {
	b := dst.Bounds()
	w, h := b.Dx(), b.Dy()
	if len(src) != 4*w*h {
		return errors.New("float buffer length does not match image size")
	}
	for y := 0; y < h; y++ {
		row := src[4*w*(h-1-y):]
		for x := 0; x < w; x++ {
			px := row[4*x : 4*x+4]
			dst.SetNRGBA(b.Min.X+x, b.Min.Y+y, color.NRGBA{
				R: tone(px[0]),
				G: tone(px[1]),
				B: tone(px[2]),
				A: 255,
			})
		}
	}
	return nil
}

// tone maps a linear channel value to 8 bit sRGB-ish gamma.
func tone(v float32) uint8 {
	if !(v > 0) {
		return 0
	}
	v = math32.Pow(v, 1/2.2)
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}
