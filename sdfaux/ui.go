//go:build !tinygo && cgo

package sdfaux

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/go-gl/gl/v4.6-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/glgl/v4.6-core/glgl"
	"github.com/soypat/sdfgraph/gleval"
	"github.com/soypat/sdfgraph/glreload"
	"github.com/soypat/sdfgraph/glrender"
	"github.com/soypat/sdfgraph/nodegraph"
)

const (
	windowTitle = "sdfgraph"
	// maxAccumFrames stops accumulating a static scene once converged.
	maxAccumFrames = 1 << 12
)

// UIConfig configures [UI].
type UIConfig struct {
	Context  context.Context
	Settings Settings
	// Load returns the graph to display. It is called at startup and after every signal on Reload.
	Load func() (nodegraph.Graph, nodegraph.NodeID, error)
	// Reload, if not nil, signals that the graph changed.
	Reload    <-chan struct{}
	Validator glreload.Validator
	Logger    *slog.Logger
}

// UI opens a window showing the path traced graph and hot reloads the
// pipeline when the graph changes. Failed builds keep the last good
// pipeline on screen. Drag to orbit, scroll to zoom.
func UI(cfg UIConfig) error {
	if cfg.Load == nil {
		return errors.New("nil Load")
	}
	s := cfg.Settings
	if err := s.Validate(); err != nil {
		return err
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	window, term, err := startGLFW(s.Width, s.Height)
	if err != nil {
		return err
	}
	defer term()

	watch := stopwatch()
	mgr, err := glreload.NewManager(glreload.Config{
		Compiler:  gleval.GLCompiler{},
		Validator: cfg.Validator,
		Logger:    log,
	})
	if err != nil {
		return err
	}
	defer mgr.Close()
	log.Info("initial pipeline built", slog.Duration("took", watch()))
	g, root, err := cfg.Load()
	if err != nil {
		return err
	}
	sess, err := NewSession(SessionConfig{Graph: g, Root: root, Manager: mgr, Logger: log})
	if err != nil {
		return err
	}
	renderer, err := gleval.NewComputeRenderer(s.Width, s.Height)
	if err != nil {
		return err
	}
	defer renderer.Delete()
	blit, err := newBlitter()
	if err != nil {
		return err
	}
	defer blit.delete()

	animated := false
	apply := func(r Report) {
		log.Info("graph update", slog.Any("report", r))
		if r.Err != nil {
			window.SetTitle(windowTitle + " [" + firstLine(r.Err.Error()) + "]")
			return
		}
		window.SetTitle(windowTitle)
		if r.Outcome == glreload.Swapped {
			renderer.Reset()
		}
		if tree := sess.Tree(); tree != nil {
			animated = IsAnimated(tree)
		}
	}
	watch = stopwatch()
	apply(sess.OnGraphChanged())
	log.Info("first scene ready", slog.Duration("took", watch()))

	cam := newOrbit(s.RenderCamera())
	cam.install(window)

	ctx := cfg.Context
	if ctx == nil {
		ctx = context.Background()
	}
	clock := NewClock()
	for !window.ShouldClose() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-cfg.Reload:
			g, root, err := cfg.Load()
			if err != nil {
				log.Warn("reload graph", slog.String("err", err.Error()))
				window.SetTitle(windowTitle + " [" + firstLine(err.Error()) + "]")
			} else {
				watch = stopwatch()
				apply(sess.SetGraph(g, root))
				log.Debug("reload handled", slog.Duration("took", watch()))
			}
		default:
		}
		if cam.dirty || animated {
			renderer.Reset()
			cam.dirty = false
		}
		if renderer.Frame() < maxAccumFrames {
			u := s.Uniforms(clock.Time())
			c := cam.camera()
			u.CamPos, u.CamTarget = c.Pos, c.Target
			err = renderer.Render(mgr.Active(), u)
			if err != nil {
				return err
			}
		}
		width, height := window.GetFramebufferSize()
		err = blit.draw(renderer.Texture(), width, height)
		if err != nil {
			return err
		}
		window.SwapBuffers()
		mgr.Collect()
		glfw.PollEvents()
		clock.Tick()
		if clock.Frame()%120 == 0 {
			log.Debug("frame stats", slog.Float64("fps", clock.FPS()), slog.Int("accumulated", renderer.Frame()))
		}
	}
	return nil
}

func firstLine(s string) string {
	for i, c := range s {
		if c == '\n' {
			return s[:i]
		}
	}
	return s
}

// orbit is a camera orbiting its target, driven by mouse drag and scroll.
type orbit struct {
	target     ms3.Vec
	fov        float32
	yaw, pitch float64
	dist       float64
	minDist    float64
	maxDist    float64
	dirty      bool

	pressed   bool
	firstMove bool
	lastX     float64
	lastY     float64
}

func newOrbit(c glrender.Camera) *orbit {
	d := ms3.Sub(c.Pos, c.Target)
	dist := float64(ms3.Norm(d))
	return &orbit{
		target:  c.Target,
		fov:     c.FOV,
		dist:    dist,
		yaw:     math.Atan2(float64(-d.X), float64(-d.Z)),
		pitch:   math.Asin(float64(-d.Y) / dist),
		minDist: dist * 1e-3,
		maxDist: dist * 20,
	}
}

func (o *orbit) camera() glrender.Camera {
	dir := ms3.Vec{
		X: float32(math.Cos(o.pitch) * math.Sin(o.yaw)),
		Y: float32(math.Sin(o.pitch)),
		Z: float32(math.Cos(o.pitch) * math.Cos(o.yaw)),
	}
	return glrender.Camera{
		Pos:    ms3.Sub(o.target, ms3.Scale(float32(o.dist), dir)),
		Target: o.target,
		FOV:    o.fov,
	}
}

func (o *orbit) install(window *glfw.Window) {
	const sensitivity = 0.005
	window.SetCursorPosCallback(func(w *glfw.Window, xpos, ypos float64) {
		if !o.pressed {
			return
		}
		if o.firstMove {
			o.lastX, o.lastY = xpos, ypos
			o.firstMove = false
		}
		o.yaw += (xpos - o.lastX) * sensitivity
		o.pitch -= (ypos - o.lastY) * sensitivity
		maxPitch := math.Pi/2 - 0.01
		o.pitch = math.Max(-maxPitch, math.Min(maxPitch, o.pitch))
		o.lastX, o.lastY = xpos, ypos
		o.dirty = true
	})
	window.SetScrollCallback(func(w *glfw.Window, xoff, yoff float64) {
		o.dist -= yoff * (o.dist*.1 + .01)
		o.dist = math.Max(o.minDist, math.Min(o.maxDist, o.dist))
		o.dirty = true
	})
	window.SetMouseButtonCallback(func(w *glfw.Window, button glfw.MouseButton, action glfw.Action, mods glfw.ModifierKey) {
		if button != glfw.MouseButtonLeft {
			return
		}
		switch action {
		case glfw.Press:
			o.pressed = true
			o.firstMove = true
			w.SetInputMode(glfw.CursorMode, glfw.CursorDisabled)
		case glfw.Release:
			o.pressed = false
			w.SetInputMode(glfw.CursorMode, glfw.CursorNormal)
		}
	})
}

// blitter draws a texture over the whole framebuffer with gamma correction.
type blitter struct {
	prog   glgl.Program
	vao    uint32
	vbo    uint32
	texLoc int32
}

const blitVertex = `#version 460
in vec2 aPos;
out vec2 vTexCoord;
void main() {
	vTexCoord = aPos * 0.5 + 0.5;
	gl_Position = vec4(aPos, 0.0, 1.0);
}
`

const blitFragment = `#version 460
in vec2 vTexCoord;
out vec4 fragColor;
uniform sampler2D uTex;
void main() {
	vec3 c = texture(uTex, vTexCoord).rgb;
	fragColor = vec4(pow(clamp(c, 0.0, 1.0), vec3(1.0/2.2)), 1.0);
}
`

func newBlitter() (*blitter, error) {
	prog, err := glgl.CompileProgram(glgl.ShaderSource{
		Vertex:   blitVertex + "\x00",
		Fragment: blitFragment + "\x00",
	})
	if err != nil {
		return nil, fmt.Errorf("blit program: %w", err)
	}
	b := &blitter{prog: prog}
	prog.Bind()
	defer prog.Unbind()
	gl.GenVertexArrays(1, &b.vao)
	gl.BindVertexArray(b.vao)
	gl.GenBuffers(1, &b.vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, b.vbo)
	vertices := []float32{
		-1.0, -1.0,
		1.0, -1.0,
		-1.0, 1.0,
		-1.0, 1.0,
		1.0, -1.0,
		1.0, 1.0,
	}
	gl.BufferData(gl.ARRAY_BUFFER, 4*len(vertices), gl.Ptr(vertices), gl.STATIC_DRAW)
	posAttrib, err := prog.AttribLocation("aPos\x00")
	if err != nil {
		b.delete()
		return nil, err
	}
	gl.EnableVertexAttribArray(posAttrib)
	gl.VertexAttribPointer(posAttrib, 2, gl.FLOAT, false, 0, gl.PtrOffset(0))
	b.texLoc, err = prog.UniformLocation("uTex\x00")
	if err != nil {
		b.delete()
		return nil, err
	}
	gl.BindVertexArray(0)
	return b, glgl.Err()
}

func (b *blitter) draw(tex uint32, width, height int) error {
	gl.Viewport(0, 0, int32(width), int32(height))
	gl.ClearColor(0, 0, 0, 1)
	gl.Clear(gl.COLOR_BUFFER_BIT)
	b.prog.Bind()
	defer b.prog.Unbind()
	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindTexture(gl.TEXTURE_2D, tex)
	gl.Uniform1i(b.texLoc, 0)
	gl.BindVertexArray(b.vao)
	gl.DrawArrays(gl.TRIANGLES, 0, 6)
	gl.BindVertexArray(0)
	return glgl.Err()
}

func (b *blitter) delete() {
	gl.DeleteBuffers(1, &b.vbo)
	gl.DeleteVertexArrays(1, &b.vao)
	b.prog.Delete()
}

func startGLFW(width, height int) (window *glfw.Window, term func(), err error) {
	if err := glfw.Init(); err != nil {
		return nil, nil, fmt.Errorf("initializing GLFW: %w", err)
	}
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 6)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.Resizable, glfw.False)
	window, err = glfw.CreateWindow(width, height, windowTitle, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, nil, fmt.Errorf("creating GLFW window: %w", err)
	}
	window.MakeContextCurrent()
	if err := gl.Init(); err != nil {
		glfw.Terminate()
		return nil, nil, fmt.Errorf("initializing OpenGL: %w", err)
	}
	return window, glfw.Terminate, nil
}
