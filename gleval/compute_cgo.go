//go:build !tinygo && cgo

package gleval

import (
	"errors"
	"fmt"

	"github.com/go-gl/gl/v4.6-core/gl"
	"github.com/soypat/glgl/v4.6-core/glgl"
	"github.com/soypat/sdfgraph/glreload"
)

// Init1x1GLFW starts a 1x1 sized GLFW so that user can start working with GPU.
// It returns a termination function that should be called when user is done running loads on GPU.
func Init1x1GLFW() (terminate func(), err error) {
	_, terminate, err = glgl.InitWithCurrentWindow33(glgl.WindowConfig{
		Title:   "compute",
		Version: [2]int{4, 6},
		Width:   1,
		Height:  1,
	})
	return terminate, err
}

// GLCompiler compiles compute shaders on the current OpenGL context.
// It implements [glreload.Compiler].
type GLCompiler struct{}

// Compile compiles and links a compute program from source.
func (GLCompiler) Compile(source string) (glreload.Program, error) {
	prog, err := glgl.CompileProgram(glgl.ShaderSource{Compute: source + "\x00"})
	if err != nil {
		return nil, err
	}
	return &ComputeProgram{prog: prog}, nil
}

// ComputeProgram is a linked compute shader.
type ComputeProgram struct {
	prog glgl.Program
}

// Release deletes the program from the GPU.
func (p *ComputeProgram) Release() {
	if p.prog.ID() != 0 {
		p.prog.Delete()
	}
}

// ComputeRenderer dispatches the path tracer into a pair of RGBA32F
// textures, accumulating samples across frames.
type ComputeRenderer struct {
	width, height int
	local         int
	frame         int
	tex           *glreload.Flipper[uint32]
}

// NewComputeRenderer allocates the accumulation textures.
func NewComputeRenderer(width, height int) (*ComputeRenderer, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.New("non-positive render size")
	}
	var ids [2]uint32
	gl.GenTextures(2, &ids[0])
	for _, id := range ids {
		if id == 0 {
			return nil, glErrOrMessage("zero texture id set by GL")
		}
		gl.BindTexture(gl.TEXTURE_2D, id)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.NEAREST)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
		gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA32F, int32(width), int32(height), 0, gl.RGBA, gl.FLOAT, nil)
	}
	gl.BindTexture(gl.TEXTURE_2D, 0)
	if err := glgl.Err(); err != nil {
		gl.DeleteTextures(2, &ids[0])
		return nil, fmt.Errorf("allocating accumulation textures: %w", err)
	}
	r := &ComputeRenderer{
		width:  width,
		height: height,
		local:  glreload.LocalSize,
		tex:    glreload.NewFlipper(ids[0], ids[1]),
	}
	r.clear()
	return r, nil
}

// Size returns the render target dimensions.
func (r *ComputeRenderer) Size() (width, height int) { return r.width, r.height }

// Frame returns the number of frames accumulated since the last Reset.
func (r *ComputeRenderer) Frame() int { return r.frame }

// Texture returns the texture holding the latest accumulated frame.
func (r *ComputeRenderer) Texture() uint32 { return r.tex.Read() }

// Reset restarts accumulation. Call it after the pipeline or camera changes.
func (r *ComputeRenderer) Reset() {
	r.frame = 0
	r.clear()
}

func (r *ComputeRenderer) clear() {
	zero := [4]float32{}
	a, b := r.tex.Both()
	gl.ClearTexImage(a, 0, gl.RGBA, gl.FLOAT, gl.Ptr(&zero[0]))
	gl.ClearTexImage(b, 0, gl.RGBA, gl.FLOAT, gl.Ptr(&zero[0]))
}

// Render runs one accumulation frame with prog, which must be a program
// returned by [GLCompiler].
func (r *ComputeRenderer) Render(prog glreload.Program, u Uniforms) error {
	cp, ok := prog.(*ComputeProgram)
	if !ok || cp == nil {
		return fmt.Errorf("unsupported program type %T", prog)
	} else if cp.prog.ID() == 0 {
		return errors.New("program id is 0")
	}
	cp.prog.Bind()
	defer cp.prog.Unbind()
	err := setUniforms(cp.prog, r.frame, u)
	if err != nil {
		return err
	}
	gl.BindImageTexture(0, r.tex.Read(), 0, false, 0, gl.READ_ONLY, gl.RGBA32F)
	gl.BindImageTexture(1, r.tex.Write(), 0, false, 0, gl.WRITE_ONLY, gl.RGBA32F)
	nx, ny := WorkGroups(r.width, r.height, r.local)
	err = cp.prog.RunCompute(nx, ny, 1)
	if err != nil {
		return err
	}
	gl.MemoryBarrier(gl.SHADER_IMAGE_ACCESS_BARRIER_BIT | gl.TEXTURE_FETCH_BARRIER_BIT)
	if err = glgl.Err(); err != nil {
		return err
	}
	r.tex.Flip()
	r.frame++
	return nil
}

// ReadRGBA copies the latest accumulated frame into dst as RGBA floats,
// bottom row first. dst must hold 4*width*height values.
func (r *ComputeRenderer) ReadRGBA(dst []float32) error {
	if len(dst) != 4*r.width*r.height {
		return fmt.Errorf("want buffer of length %d, got %d", 4*r.width*r.height, len(dst))
	}
	gl.BindTexture(gl.TEXTURE_2D, r.tex.Read())
	gl.GetTexImage(gl.TEXTURE_2D, 0, gl.RGBA, gl.FLOAT, gl.Ptr(dst))
	gl.BindTexture(gl.TEXTURE_2D, 0)
	return glgl.Err()
}

// Delete frees the accumulation textures.
func (r *ComputeRenderer) Delete() {
	a, b := r.tex.Both()
	ids := [2]uint32{a, b}
	gl.DeleteTextures(2, &ids[0])
}

// setUniforms sets the path tracer uniforms. Uniforms the driver optimized
// out, such as u_time in scenes without oscillators, are skipped.
func setUniforms(prog glgl.Program, frame int, u Uniforms) error {
	id := prog.ID()
	ints := [...]struct {
		name string
		v    int
	}{
		{"u_frame\x00", frame},
		{"u_steps_per_ray\x00", u.StepsPerRay},
		{"u_samples\x00", u.Samples},
		{"u_bounces\x00", u.Bounces},
	}
	for _, iu := range ints {
		if loc := gl.GetUniformLocation(id, gl.Str(iu.name)); loc >= 0 {
			gl.Uniform1i(loc, int32(iu.v))
		}
	}
	if loc := gl.GetUniformLocation(id, gl.Str("u_time\x00")); loc >= 0 {
		gl.Uniform1f(loc, u.Time)
	}
	if loc := gl.GetUniformLocation(id, gl.Str("u_fov\x00")); loc >= 0 {
		gl.Uniform1f(loc, u.FOV)
	}
	if loc := gl.GetUniformLocation(id, gl.Str("u_cam_pos\x00")); loc >= 0 {
		gl.Uniform3f(loc, u.CamPos.X, u.CamPos.Y, u.CamPos.Z)
	}
	if loc := gl.GetUniformLocation(id, gl.Str("u_cam_target\x00")); loc >= 0 {
		gl.Uniform3f(loc, u.CamTarget.X, u.CamTarget.Y, u.CamTarget.Z)
	}
	return glgl.Err()
}

func glErrOrMessage(defaultMsg string) (err error) {
	err = glgl.Err()
	if err == nil {
		err = errors.New(defaultMsg)
	} else {
		err = fmt.Errorf("%s: %w", defaultMsg, err)
	}
	return err
}
