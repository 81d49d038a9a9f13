package sdfgraph

import (
	"errors"
	"fmt"

	"github.com/soypat/geometry/ms3"
)

// ErrUnsupportedCombinator is returned when a combination operator that has
// no lowering is used to fold a child into its parent.
var ErrUnsupportedCombinator = errors.New("unsupported combinator")

// Transform is the local spatial transform of a scene node. Positions are
// divided by Scale, then moved by Position and finally rotated by the
// Rotation euler angles (radians, applied X then Y then Z).
type Transform struct {
	Position Vec3
	Rotation Vec3
	Scale    Scalar
}

// IdentityTransform has no translation or rotation and unit scale.
func IdentityTransform() Transform {
	return Transform{Scale: Const(1)}
}

// CombinationOp is the operator that joins a node into its parent accumulator.
type CombinationOp uint8

const (
	OpUnion CombinationOp = iota
	OpSmoothUnion
	OpSubtraction
	OpSmoothSubtraction
)

var combinationNames = [...]string{
	OpUnion:             "union",
	OpSmoothUnion:       "smooth_union",
	OpSubtraction:       "subtraction",
	OpSmoothSubtraction: "smooth_subtraction",
}

func (op CombinationOp) String() string {
	if int(op) < len(combinationNames) {
		return combinationNames[op]
	}
	return fmt.Sprintf("CombinationOp(%d)", op)
}

// ParseCombinationOp is the inverse of [CombinationOp.String].
func ParseCombinationOp(s string) (CombinationOp, error) {
	for i, name := range combinationNames {
		if name == s {
			return CombinationOp(i), nil
		}
	}
	return 0, fmt.Errorf("unknown combination operator %q", s)
}

// Supported reports whether the operator can be lowered to shader code.
func (op CombinationOp) Supported() bool {
	return op == OpUnion || op == OpSmoothUnion
}

// Combination is a combination operator and its blend strength. Strength is
// only used by the smooth variants.
type Combination struct {
	Op       CombinationOp
	Strength Scalar
}

// UnionCombination is a plain minimum union.
func UnionCombination() Combination {
	return Combination{Op: OpUnion}
}

// SDFKind selects the distance function of a shape.
type SDFKind uint8

const (
	SDFSphere SDFKind = iota
	SDFCube
	SDFCustom
)

var sdfNames = [...]string{
	SDFSphere: "sphere",
	SDFCube:   "cube",
	SDFCustom: "custom",
}

func (k SDFKind) String() string {
	if int(k) < len(sdfNames) {
		return sdfNames[k]
	}
	return fmt.Sprintf("SDFKind(%d)", k)
}

// ParseSDFKind is the inverse of [SDFKind.String].
func ParseSDFKind(s string) (SDFKind, error) {
	for i, name := range sdfNames {
		if name == s {
			return SDFKind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown sdf kind %q", s)
}

// SDF describes the distance function of a shape.
//   - Sphere: Params.X is the radius.
//   - Cube: Params are the half extents.
//   - Custom: Source is the body of a GLSL function
//     float f(vec3 p, vec3 params) which must return the distance.
type SDF struct {
	Kind   SDFKind
	Params Vec3
	Source string
}

// Sphere returns a sphere SDF of radius r.
func Sphere(r float32) SDF {
	return SDF{Kind: SDFSphere, Params: ConstVec3(r, r, r)}
}

// Cube returns a box SDF with the given half extents.
func Cube(x, y, z float32) SDF {
	return SDF{Kind: SDFCube, Params: ConstVec3(x, y, z)}
}

// Custom returns an SDF defined by a GLSL function body.
func Custom(body string, params Vec3) SDF {
	return SDF{Kind: SDFCustom, Params: params, Source: body}
}

// Material is the surface description used by the path tracer.
type Material struct {
	Albedo              ms3.Vec
	Emissive            ms3.Vec
	SpecularChance      float32
	SpecularRoughness   float32
	IOR                 float32
	RefractionChance    float32
	RefractionRoughness float32
	RefractionColor     ms3.Vec
}

// DefaultMaterial is a white diffuse surface.
func DefaultMaterial() Material {
	return Material{
		Albedo: ms3.Vec{X: 1, Y: 1, Z: 1},
		IOR:    1,
	}
}
