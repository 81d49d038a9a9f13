package glrender

import (
	"errors"
	"fmt"
	"image/color"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/sdfgraph"
)

const (
	hitDist    = 0.0005
	farPlane   = 200.0
	normalStep = 0.0005
)

// PreviewRenderer sphere traces a scene tree on the CPU one image row at a
// time. Pixels are colored by the albedo of the hit material shaded by the
// surface normal.
type PreviewRenderer struct {
	cam      Camera
	maxSteps int
	light    ms3.Vec
	dir      []ms3.Vec
	pos      []ms3.Vec
	aux      []ms3.Vec
	probe    []ms3.Vec
	t        []float32
	d1, d2   []float32
	hits     []sdfgraph.Hit
	step     []sdfgraph.Hit
	done     []bool
}

// NewPreviewRenderer returns a renderer for images up to evalBufferSize pixels wide.
func NewPreviewRenderer(evalBufferSize int, cam Camera) (*PreviewRenderer, error) {
	if evalBufferSize < 1 {
		return nil, errors.New("too small evaluation buffer size")
	} else if cam.FOV <= 0 || cam.FOV >= math32.Pi {
		return nil, errors.New("camera field of view out of range")
	}
	return &PreviewRenderer{
		cam:      cam,
		maxSteps: 128,
		light:    ms3.Unit(ms3.Vec{X: -0.5, Y: 1, Z: -0.7}),
		dir:      make([]ms3.Vec, evalBufferSize),
		pos:      make([]ms3.Vec, evalBufferSize),
		aux:      make([]ms3.Vec, evalBufferSize),
		probe:    make([]ms3.Vec, evalBufferSize),
		t:        make([]float32, evalBufferSize),
		d1:       make([]float32, evalBufferSize),
		d2:       make([]float32, evalBufferSize),
		hits:     make([]sdfgraph.Hit, evalBufferSize),
		step:     make([]sdfgraph.Hit, evalBufferSize),
		done:     make([]bool, evalBufferSize),
	}, nil
}

// SetMaxSteps sets the number of sphere tracing steps per ray.
func (pr *PreviewRenderer) SetMaxSteps(n int) {
	if n > 0 {
		pr.maxSteps = n
	}
}

// Render draws the scene evaluated at time t into img.
func (pr *PreviewRenderer) Render(e *sdfgraph.Evaluator, img setImage, t float32) error {
	bb := img.Bounds()
	w, h := bb.Dx(), bb.Dy()
	if len(pr.dir) < w {
		return fmt.Errorf("require evaluation buffer (%d) to be at least of length of image rows (%d)", len(pr.dir), w)
	}
	fwd, right, up := pr.cam.basis()
	mats := e.Materials()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			pr.dir[x] = pr.cam.rayDir(x, y, w, h, fwd, right, up)
		}
		err := pr.march(e, w, t)
		if err != nil {
			return err
		}
		err = pr.normals(e, w, t)
		if err != nil {
			return err
		}
		for x := 0; x < w; x++ {
			img.Set(bb.Min.X+x, bb.Min.Y+y, pr.shade(x, mats))
		}
	}
	return nil
}

// march advances all rays of the row together, evaluating the field once per step.
func (pr *PreviewRenderer) march(e *sdfgraph.Evaluator, n int, t float32) error {
	ts, done, hits := pr.t[:n], pr.done[:n], pr.hits[:n]
	for i := range ts {
		ts[i] = 0
		done[i] = false
		hits[i] = sdfgraph.Hit{D: farPlane, Mat: -1}
	}
	step := pr.step[:n]
	for s := 0; s < pr.maxSteps; s++ {
		active := false
		for i := range ts {
			pr.pos[i] = ms3.Add(pr.cam.Pos, ms3.Scale(ts[i], pr.dir[i]))
			active = active || !done[i]
		}
		if !active {
			break
		}
		if err := e.EvaluateHits(pr.pos[:n], step, t); err != nil {
			return err
		}
		for i, hit := range step {
			if done[i] {
				continue
			}
			if hit.D < hitDist {
				done[i] = true
				hits[i] = sdfgraph.Hit{D: ts[i], Mat: hit.Mat}
				continue
			}
			ts[i] += hit.D
			if ts[i] > farPlane {
				done[i] = true
			}
		}
	}
	return nil
}

// normals stores unnormalized central difference normals of hit pixels in pr.aux.
func (pr *PreviewRenderer) normals(e *sdfgraph.Evaluator, n int, t float32) error {
	for i := 0; i < n; i++ {
		pr.pos[i] = ms3.Add(pr.cam.Pos, ms3.Scale(pr.hits[i].D, pr.dir[i]))
		pr.aux[i] = ms3.Vec{}
	}
	offsets := [3]ms3.Vec{{X: normalStep}, {Y: normalStep}, {Z: normalStep}}
	probe := pr.probe[:n]
	for dim, off := range offsets {
		for i := 0; i < n; i++ {
			probe[i] = ms3.Add(pr.pos[i], off)
		}
		if err := e.Evaluate(probe, pr.d1[:n], t); err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			probe[i] = ms3.Sub(pr.pos[i], off)
		}
		if err := e.Evaluate(probe, pr.d2[:n], t); err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			d := pr.d1[i] - pr.d2[i]
			switch dim {
			case 0:
				pr.aux[i].X = d
			case 1:
				pr.aux[i].Y = d
			case 2:
				pr.aux[i].Z = d
			}
		}
	}
	return nil
}

func (pr *PreviewRenderer) shade(i int, mats []sdfgraph.Material) color.Color {
	hit := pr.hits[i]
	if hit.Mat < 0 || hit.Mat >= len(mats) {
		// Sky gradient matching the path tracer.
		k := 0.5 * (pr.dir[i].Y + 1)
		return color.NRGBA{
			R: tone(0.6 * (1 - 0.5*k)),
			G: tone(0.6 * (1 - 0.3*k)),
			B: tone(0.6),
			A: 255,
		}
	}
	m := mats[hit.Mat]
	nrm := pr.aux[i]
	if l := ms3.Norm(nrm); l > 0 {
		nrm = ms3.Scale(1/l, nrm)
	}
	dif := math32.Max(ms3.Dot(nrm, pr.light), 0)
	amb := 0.5 + 0.5*nrm.Y
	k := 0.2*amb + 0.8*dif
	return color.NRGBA{
		R: tone(m.Albedo.X*k + m.Emissive.X),
		G: tone(m.Albedo.Y*k + m.Emissive.Y),
		B: tone(m.Albedo.Z*k + m.Emissive.Z),
		A: 255,
	}
}
