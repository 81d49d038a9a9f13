//go:build tinygo || !cgo

package gleval

import (
	"github.com/soypat/sdfgraph/glreload"
)

// Init1x1GLFW is not supported without CGo.
func Init1x1GLFW() (terminate func(), err error) {
	return nil, errNoCGO
}

// GLCompiler always fails without CGo.
type GLCompiler struct{}

func (GLCompiler) Compile(source string) (glreload.Program, error) {
	return nil, errNoCGO
}

type ComputeProgram struct{}

func (p *ComputeProgram) Release() {}

type ComputeRenderer struct{}

func NewComputeRenderer(width, height int) (*ComputeRenderer, error) {
	return nil, errNoCGO
}

func (r *ComputeRenderer) Size() (width, height int) { return 0, 0 }

func (r *ComputeRenderer) Frame() int { return 0 }

func (r *ComputeRenderer) Texture() uint32 { return 0 }

func (r *ComputeRenderer) Reset() {}

func (r *ComputeRenderer) Render(prog glreload.Program, u Uniforms) error { return errNoCGO }

func (r *ComputeRenderer) ReadRGBA(dst []float32) error { return errNoCGO }

func (r *ComputeRenderer) Delete() {}
