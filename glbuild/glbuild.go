// Package glbuild lowers scene trees to GLSL. Generated code is built with
// append-style helpers to keep allocations low on every graph edit.
package glbuild

import (
	"strconv"

	"github.com/soypat/geometry/ms3"
	"github.com/soypat/sdfgraph"
)

// Role is the kind of value an [Ident] names in generated code.
type Role uint8

const (
	// RoleUnion names a union's running accumulator: d{depth}u{index}.
	RoleUnion Role = iota
	// RoleShape names a shape's distance result: d{depth}s{index}.
	RoleShape
	// RoleTransform names a node's transformed sampling position: d{depth}u{index}t.
	RoleTransform
	// RoleCustom names the function generated for a custom SDF: sdCustom_d{depth}s{index}.
	RoleCustom
)

func (r Role) String() string {
	switch r {
	case RoleUnion:
		return "union"
	case RoleShape:
		return "shape"
	case RoleTransform:
		return "transform"
	case RoleCustom:
		return "custom"
	}
	return "Role(" + strconv.Itoa(int(r)) + ")"
}

// Ident is a structured identifier of generated code. It is rendered to text
// only when emitted so naming can be tested on values instead of strings.
// Depth 0 is reserved for the scene function's seed accumulator and input position.
type Ident struct {
	Depth int
	Index int
	Role  Role
}

// AppendTo appends the GLSL name of the identifier to b.
func (id Ident) AppendTo(b []byte) []byte {
	if id.Role == RoleCustom {
		b = append(b, "sdCustom_"...)
	}
	b = append(b, 'd')
	b = strconv.AppendInt(b, int64(id.Depth), 10)
	if id.Role == RoleShape || id.Role == RoleCustom {
		b = append(b, 's')
	} else {
		b = append(b, 'u')
	}
	b = strconv.AppendInt(b, int64(id.Index), 10)
	if id.Role == RoleTransform {
		b = append(b, 't')
	}
	return b
}

func (id Ident) String() string {
	return string(id.AppendTo(nil))
}

// AppendVec3 appends a constant vec3 constructor to b.
func AppendVec3(b []byte, v ms3.Vec) []byte {
	b = append(b, "vec3("...)
	b = sdfgraph.AppendFloat(b, v.X)
	b = append(b, ", "...)
	b = sdfgraph.AppendFloat(b, v.Y)
	b = append(b, ", "...)
	b = sdfgraph.AppendFloat(b, v.Z)
	return append(b, ')')
}

// AppendMaterial appends a Material struct constructor as declared by the
// scene library to b.
func AppendMaterial(b []byte, m sdfgraph.Material) []byte {
	b = append(b, "Material("...)
	b = AppendVec3(b, m.Albedo)
	b = append(b, ", "...)
	b = AppendVec3(b, m.Emissive)
	for _, f := range [...]float32{m.SpecularChance, m.SpecularRoughness, m.IOR, m.RefractionChance, m.RefractionRoughness} {
		b = append(b, ", "...)
		b = sdfgraph.AppendFloat(b, f)
	}
	b = append(b, ", "...)
	b = AppendVec3(b, m.RefractionColor)
	return append(b, ')')
}

func appendIndent(b []byte, n int) []byte {
	for i := 0; i < n; i++ {
		b = append(b, '\t')
	}
	return b
}
