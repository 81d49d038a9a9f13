package sdfgraph

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
)

// SeedDistance is the distance accumulators start at before any shape is folded in.
const SeedDistance = 100000.0

// minSmoothStrength keeps smooth union blending away from a division by zero.
const minSmoothStrength = 1e-6

// ErrCustomSDF is returned by CPU evaluation of a tree containing custom SDF
// source, which only exists as shader text.
var ErrCustomSDF = errors.New("custom SDF cannot be evaluated on CPU")

// Hit is a distance sample and the material index of the closest shape.
// Material index 0 is the default material, shapes are numbered from 1 in
// pre-order, matching the generated material table.
type Hit struct {
	D   float32
	Mat int
}

// Evaluator evaluates a scene tree on the CPU with the same arithmetic as the
// generated shader. It is used for previews and for checking generated code.
type Evaluator struct {
	root      Node
	materials []Material
}

// NewEvaluator validates the tree and prepares it for evaluation.
func NewEvaluator(root Node) (*Evaluator, error) {
	err := Validate(root)
	if err != nil {
		return nil, err
	}
	materials := []Material{DefaultMaterial()}
	err = Walk(root, func(n Node, depth int) error {
		s, ok := n.(*Shape)
		if !ok {
			return nil
		}
		if s.SDF.Kind == SDFCustom {
			return fmt.Errorf("%w (depth %d)", ErrCustomSDF, depth)
		}
		materials = append(materials, s.Material)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Evaluator{root: root, materials: materials}, nil
}

// Materials returns the material table. Index 0 is the default material.
func (e *Evaluator) Materials() []Material { return e.materials }

// Evaluate stores the distance to the scene at each position in dist.
func (e *Evaluator) Evaluate(pos []ms3.Vec, dist []float32, t float32) error {
	if len(pos) != len(dist) {
		return errors.New("position and distance buffer length mismatch")
	}
	for i, p := range pos {
		dist[i] = e.HitAt(p, t).D
	}
	return nil
}

// EvaluateHits is like Evaluate but also returns the material index of each sample.
func (e *Evaluator) EvaluateHits(pos []ms3.Vec, hits []Hit, t float32) error {
	if len(pos) != len(hits) {
		return errors.New("position and hit buffer length mismatch")
	}
	for i, p := range pos {
		hits[i] = e.HitAt(p, t)
	}
	return nil
}

// HitAt evaluates the scene at a single point p at time t.
func (e *Evaluator) HitAt(p ms3.Vec, t float32) Hit {
	mat := 0
	return evalNode(e.root, p, Hit{D: SeedDistance}, UnionCombination(), &mat, t)
}

// Evaluate is a convenience wrapper around [NewEvaluator].
func Evaluate(root Node, pos []ms3.Vec, dist []float32, t float32) error {
	e, err := NewEvaluator(root)
	if err != nil {
		return err
	}
	return e.Evaluate(pos, dist, t)
}

func evalNode(n Node, p ms3.Vec, acc Hit, parent Combination, mat *int, t float32) Hit {
	tr := n.LocalTransform()
	scale := tr.Scale.Eval(t)
	p = ms3.Scale(1/scale, p)
	if tr.Position.IsNonzero() {
		p = ms3.Sub(p, tr.Position.Eval(t))
	}
	if tr.Rotation.IsNonzero() {
		p = rot3D(p, tr.Rotation.Eval(t))
	}
	var local Hit
	switch n := n.(type) {
	case *Shape:
		*mat++
		local = Hit{D: evalSDF(n.SDF, p, t), Mat: *mat}
	case *Union:
		local = Hit{D: SeedDistance}
		for _, child := range n.Children {
			local = evalNode(child, p, local, n.Combination, mat, t)
		}
	}
	local.D *= scale
	return combine(parent, local, acc, t)
}

func evalSDF(s SDF, p ms3.Vec, t float32) float32 {
	params := s.Params.Eval(t)
	switch s.Kind {
	case SDFSphere:
		return ms3.Norm(p) - params.X
	case SDFCube:
		q := ms3.Sub(ms3.AbsElem(p), params)
		return ms3.Norm(ms3.MaxElem(q, ms3.Vec{})) + math32.Min(math32.Max(q.X, math32.Max(q.Y, q.Z)), 0)
	}
	return math32.Inf(1) // Custom SDFs are rejected by NewEvaluator.
}

// combine folds local into acc: opUnion and opSmoothUnion of the scene library.
func combine(c Combination, local, acc Hit, t float32) Hit {
	switch c.Op {
	case OpSmoothUnion:
		k := math32.Max(c.Strength.Eval(t), minSmoothStrength)
		h := clampf(0.5+0.5*(acc.D-local.D)/k, 0, 1)
		res := acc
		if h > 0.5 {
			res.Mat = local.Mat
		}
		res.D = acc.D*(1-h) + local.D*h - k*h*(1-h)
		return res
	default:
		if local.D < acc.D {
			return local
		}
		return acc
	}
}

// rot3D rotates p by the euler angles r, X first then Y then Z.
func rot3D(p, r ms3.Vec) ms3.Vec {
	c, s := math32.Cos(r.X), math32.Sin(r.X)
	p.Y, p.Z = c*p.Y-s*p.Z, s*p.Y+c*p.Z
	c, s = math32.Cos(r.Y), math32.Sin(r.Y)
	p.X, p.Z = c*p.X+s*p.Z, -s*p.X+c*p.Z
	c, s = math32.Cos(r.Z), math32.Sin(r.Z)
	p.X, p.Y = c*p.X-s*p.Y, s*p.X+c*p.Y
	return p
}

func clampf(v, lo, hi float32) float32 {
	return math32.Min(hi, math32.Max(lo, v))
}
