package sdfgraph

import (
	"strconv"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
)

// ScalarKind distinguishes constant scalars from time driven ones.
type ScalarKind uint8

const (
	ScalarConstant ScalarKind = iota
	ScalarOscillator
)

// Scalar is a numeric value in the scene. It is either a constant or
// an oscillator of the form amp*sin(freq*time+phase) where time is supplied
// by the renderer each frame.
//
// ID identifies the UI widget that edits the scalar. It never affects the
// generated shader text.
type Scalar struct {
	Kind  ScalarKind
	Value float32 // Used by constants.
	Freq  float32
	Amp   float32
	Phase float32
	ID    uint64
}

// Const returns a constant scalar.
func Const(v float32) Scalar {
	return Scalar{Kind: ScalarConstant, Value: v}
}

// Osc returns an oscillating scalar amp*sin(freq*t+phase).
func Osc(freq, amp, phase float32) Scalar {
	return Scalar{Kind: ScalarOscillator, Freq: freq, Amp: amp, Phase: phase}
}

// WithID returns a copy of s bound to the widget id.
func (s Scalar) WithID(id uint64) Scalar {
	s.ID = id
	return s
}

// IsNonzero reports whether s may evaluate to a nonzero value. Statements
// whose operand is a zero scalar are elided by the code generator.
func (s Scalar) IsNonzero() bool {
	switch s.Kind {
	case ScalarOscillator:
		return s.Amp != 0
	default:
		return s.Value != 0
	}
}

// Eval evaluates the scalar at time t.
func (s Scalar) Eval(t float32) float32 {
	if s.Kind == ScalarOscillator {
		return s.Amp * math32.Sin(s.Freq*t+s.Phase)
	}
	return s.Value
}

// AppendGLSL appends the shader expression of s to b. The expression is always
// parenthesized so it can be used as an operand without further care.
func (s Scalar) AppendGLSL(b []byte) []byte {
	b = append(b, '(')
	if s.Kind == ScalarOscillator {
		b = AppendFloat(b, s.Amp)
		b = append(b, "*sin("...)
		b = AppendFloat(b, s.Freq)
		b = append(b, "*u_time+"...)
		b = AppendFloat(b, s.Phase)
		b = append(b, ')')
	} else {
		b = AppendFloat(b, s.Value)
	}
	return append(b, ')')
}

func (s Scalar) String() string {
	if s.Kind == ScalarOscillator {
		return "osc(" + ftoa(s.Freq) + "," + ftoa(s.Amp) + "," + ftoa(s.Phase) + ")"
	}
	return ftoa(s.Value)
}

// Vec3 is a 3-vector of scalars.
type Vec3 struct {
	X, Y, Z Scalar
}

// ConstVec3 returns a vector of constant scalars.
func ConstVec3(x, y, z float32) Vec3 {
	return Vec3{X: Const(x), Y: Const(y), Z: Const(z)}
}

// IsNonzero is true when any of the components is nonzero.
func (v Vec3) IsNonzero() bool {
	return v.X.IsNonzero() || v.Y.IsNonzero() || v.Z.IsNonzero()
}

// Eval evaluates all components at time t.
func (v Vec3) Eval(t float32) ms3.Vec {
	return ms3.Vec{X: v.X.Eval(t), Y: v.Y.Eval(t), Z: v.Z.Eval(t)}
}

// AppendGLSL appends a vec3 constructor expression to b.
func (v Vec3) AppendGLSL(b []byte) []byte {
	b = append(b, "vec3("...)
	b = v.X.AppendGLSL(b)
	b = append(b, ", "...)
	b = v.Y.AppendGLSL(b)
	b = append(b, ", "...)
	b = v.Z.AppendGLSL(b)
	return append(b, ')')
}

const decimalDigits = 9

// AppendFloat appends v formatted as a GLSL float literal. Trailing zeros
// are trimmed but the decimal point is kept so the literal is never an int.
func AppendFloat(b []byte, v float32) []byte {
	start := len(b)
	b = strconv.AppendFloat(b, float64(v), 'f', decimalDigits, 32)
	idx := -1
	for i := start; i < len(b); i++ {
		if b[i] == '.' {
			idx = i
			break
		}
	}
	end := len(b)
	for i := len(b) - 1; idx >= 0 && i > idx && b[i] == '0'; i-- {
		end--
	}
	return b[:end]
}

func ftoa(v float32) string {
	return strconv.FormatFloat(float64(v), 'g', -1, 32)
}
