package glrender

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/sdfgraph"
)

// SliceRenderer colors images by the distance field on a plane of constant Z.
type SliceRenderer struct {
	conv func(f float32) color.Color
	pos  []ms3.Vec
	dist []float32
}

// NewSliceRenderer returns a [SliceRenderer] evaluating up to evalBufferSize
// points at a time. A nil conversion paints the interior black and the exterior white.
func NewSliceRenderer(evalBufferSize int, conversion func(float32) color.Color) (*SliceRenderer, error) {
	if evalBufferSize <= 64 {
		return nil, errors.New("too small evaluation buffer size")
	}
	if conversion == nil {
		conversion = func(f float32) color.Color {
			switch {
			case math32.IsNaN(f) || math32.IsInf(f, 0):
				return color.RGBA{R: 255, A: 255}
			case f > 0:
				return color.White
			default:
				return color.Black
			}
		}
	}
	return &SliceRenderer{
		conv: conversion,
		pos:  make([]ms3.Vec, evalBufferSize),
		dist: make([]float32, evalBufferSize),
	}, nil
}

// Render draws the plane Z=z at time t. The plane is centered on the origin
// and spans [-extent, extent] along the shorter image side, Y pointing up.
func (sr *SliceRenderer) Render(e *sdfgraph.Evaluator, img setImage, z, extent, t float32) error {
	if extent <= 0 {
		return errors.New("non-positive slice extent")
	}
	bb := img.Bounds()
	w, h := bb.Dx(), bb.Dy()
	if len(sr.dist) < w {
		return fmt.Errorf("require evaluation buffer (%d) to be at least of length of image rows (%d)", len(sr.dist), w)
	}
	unit := 2 * extent / float32(min(w, h))
	for y := 0; y < h; y++ {
		py := (float32(h)/2 - float32(y) - 0.5) * unit
		err := sr.renderRow(e, y, py, z, unit, bb, img, t)
		if err != nil {
			return err
		}
	}
	return nil
}

func (sr *SliceRenderer) renderRow(e *sdfgraph.Evaluator, row int, y, z, unit float32, bb image.Rectangle, img setImage, t float32) error {
	w := bb.Dx()
	for i := 0; i < w; i++ {
		sr.pos[i] = ms3.Vec{X: (float32(i) + 0.5 - float32(w)/2) * unit, Y: y, Z: z}
	}
	err := e.Evaluate(sr.pos[:w], sr.dist[:w], t)
	if err != nil {
		return err
	}
	for i, d := range sr.dist[:w] {
		img.Set(bb.Min.X+i, bb.Min.Y+row, sr.conv(d))
	}
	return nil
}
