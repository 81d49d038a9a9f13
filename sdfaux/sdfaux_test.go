package sdfaux

import (
	"errors"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/soypat/sdfgraph"
	"github.com/soypat/sdfgraph/glreload"
	"github.com/soypat/sdfgraph/nodegraph"
)

type countingProgram struct{}

func (countingProgram) Release() {}

// countingCompiler fails any source containing failOn when it is set.
type countingCompiler struct {
	compiles int
	failOn   string
}

func (c *countingCompiler) Compile(src string) (glreload.Program, error) {
	c.compiles++
	if c.failOn != "" && strings.Contains(src, c.failOn) {
		return nil, errors.New("0:1: error")
	}
	return countingProgram{}, nil
}

func newTestSession(t *testing.T, g nodegraph.Graph, root nodegraph.NodeID) (*Session, *countingCompiler) {
	t.Helper()
	c := &countingCompiler{}
	mgr, err := glreload.NewManager(glreload.Config{Compiler: c})
	if err != nil {
		t.Fatal(err)
	}
	s, err := NewSession(SessionConfig{Graph: g, Root: root, Manager: mgr})
	if err != nil {
		t.Fatal(err)
	}
	return s, c
}

func addShape(t *testing.T, ed *nodegraph.Editor, parent nodegraph.NodeID, sdf sdfgraph.SDF) nodegraph.NodeID {
	t.Helper()
	id := ed.AddNode(nodegraph.KindShape, sdf.Kind.String())
	err := ed.SetValue(id, nodegraph.SocketSDF, nodegraph.SDFValue{SDF: sdf})
	if err != nil {
		t.Fatal(err)
	}
	err = ed.AddChild(parent, id)
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func TestSessionChangeDetection(t *testing.T) {
	ed := nodegraph.NewEditor()
	main := ed.AddNode(nodegraph.KindMain, "main")
	s, c := newTestSession(t, ed, main)
	if c.compiles != 1 {
		t.Fatalf("want only initial compile, got %d", c.compiles)
	}

	// An empty main node generates the same source as the initial pipeline.
	r := s.OnGraphChanged()
	if r.Err != nil || r.Changed || r.Outcome != glreload.Unchanged {
		t.Fatalf("empty graph: %+v", r)
	}

	addShape(t, ed, main, sdfgraph.Sphere(1))
	r = s.OnGraphChanged()
	if r.Err != nil || !r.Changed || r.Outcome != glreload.Swapped {
		t.Fatalf("added sphere: %+v", r)
	}
	if c.compiles != 2 {
		t.Fatalf("want exactly one compile after change, got %d total", c.compiles)
	}
	for i := 0; i < 3; i++ {
		r = s.OnGraphChanged()
		if r.Changed || r.Outcome != glreload.Unchanged {
			t.Fatalf("unchanged graph rebuilt: %+v", r)
		}
	}
	if c.compiles != 2 {
		t.Errorf("unchanged graph compiled, %d total", c.compiles)
	}
	if sdfgraph.CountNodes(s.Tree()) != 2 || len(s.Materials()) != 2 {
		t.Errorf("unexpected tree: %d nodes %d materials", sdfgraph.CountNodes(s.Tree()), len(s.Materials()))
	}
}

func TestSessionKeepsPreviousOnError(t *testing.T) {
	ed := nodegraph.NewEditor()
	main := ed.AddNode(nodegraph.KindMain, "main")
	addShape(t, ed, main, sdfgraph.Sphere(1))
	s, c := newTestSession(t, ed, main)
	r := s.OnGraphChanged()
	if r.Err != nil {
		t.Fatal(r.Err)
	}
	goodTree, goodSrc := s.Tree(), s.Source()

	// Resolve error: root is not a scene node.
	tr := ed.AddNode(nodegraph.KindTransform, "mover")
	r = s.SetRoot(tr)
	if !errors.Is(r.Err, nodegraph.ErrUnresolvedGraph) {
		t.Fatalf("want resolve error, got %v", r.Err)
	}
	if s.Tree() != goodTree || s.Source() != goodSrc {
		t.Error("previous tree replaced after resolve error")
	}
	if s.Root() != main {
		t.Errorf("unresolvable root %d kept, want %d", s.Root(), main)
	}
	r = s.OnGraphChanged()
	if r.Err != nil || r.Outcome != glreload.Unchanged {
		t.Fatalf("rebuild after rejected root: %+v", r)
	}
	// A reloaded graph that does not resolve leaves the current one active.
	bad := nodegraph.NewEditor()
	badRoot := bad.AddNode(nodegraph.KindTransform, "mover")
	r = s.SetGraph(bad, badRoot)
	if !errors.Is(r.Err, nodegraph.ErrUnresolvedGraph) {
		t.Fatalf("want resolve error, got %v", r.Err)
	}
	if r := s.OnGraphChanged(); r.Err != nil {
		t.Fatalf("rejected graph kept: %v", r.Err)
	}
	r = s.SetRoot(main)
	if r.Err != nil || r.Outcome != glreload.Unchanged {
		t.Fatalf("back to main: %+v", r)
	}

	// Build error: the compiler rejects the box's size.
	c.failOn = "7.375"
	box := addShape(t, ed, main, sdfgraph.Cube(7.375, 1, 1))
	r = s.OnGraphChanged()
	if !errors.Is(r.Err, glreload.ErrShaderBuild) || r.Outcome != glreload.Failed || !r.Changed {
		t.Fatalf("want build failure, got %+v", r)
	}
	if s.Manager().LastGood() != goodSrc {
		t.Error("failed build replaced last good pipeline")
	}
	compiles := c.compiles
	s.OnGraphChanged()
	if c.compiles != compiles {
		t.Error("same failing source compiled twice")
	}
	// Fixing the graph recovers.
	if err := ed.RemoveNode(box); err != nil {
		t.Fatal(err)
	}
	r = s.OnGraphChanged()
	if r.Err != nil || r.Outcome != glreload.Swapped {
		t.Fatalf("recovery: %+v", r)
	}
}

func TestSessionSetGraph(t *testing.T) {
	ed := nodegraph.NewEditor()
	main := ed.AddNode(nodegraph.KindMain, "main")
	s, _ := newTestSession(t, ed, main)
	doc := `
root: main
nodes:
  - {label: main, kind: main}
  - {label: ball, kind: shape, sdf: {kind: sphere, params: [2, 2, 2]}}
links:
  - {from: main, to: ball}
`
	ed2, root2, err := nodegraph.DecodeDocument(strings.NewReader(doc))
	if err != nil {
		t.Fatal(err)
	}
	r := s.SetGraph(ed2, root2)
	if r.Err != nil || r.Outcome != glreload.Swapped {
		t.Fatalf("%+v", r)
	}
	if !strings.Contains(s.Source(), "sdSphere(") {
		t.Error("new graph not generated")
	}
	if r := s.SetGraph(nil, 0); r.Err == nil {
		t.Error("nil graph accepted")
	}
}

func TestIsAnimated(t *testing.T) {
	static := &sdfgraph.Shape{Transform: sdfgraph.IdentityTransform(), SDF: sdfgraph.Sphere(1)}
	if IsAnimated(static) {
		t.Error("static shape reported animated")
	}
	moving := &sdfgraph.Shape{Transform: sdfgraph.IdentityTransform(), SDF: sdfgraph.Sphere(1)}
	moving.Transform.Position.Y = sdfgraph.Osc(1, 1, 0)
	root := &sdfgraph.Union{
		Transform:   sdfgraph.IdentityTransform(),
		Combination: sdfgraph.UnionCombination(),
		Children:    []sdfgraph.Node{static, moving},
	}
	if !IsAnimated(root) {
		t.Error("oscillating child not detected")
	}
}

func TestSettings(t *testing.T) {
	const cfg = `
width = 320
samples = 4
fov = 45.0
log_level = "debug"

[camera]
position = [0.0, 0.0, -3.0]
`
	s, err := LoadSettings(strings.NewReader(cfg))
	if err != nil {
		t.Fatal(err)
	}
	def := DefaultSettings()
	if s.Width != 320 || s.Samples != 4 || s.FOV != 45 {
		t.Errorf("values not decoded: %+v", s)
	}
	if s.Height != def.Height || s.Bounces != def.Bounces {
		t.Error("defaults not kept for missing keys")
	}
	if s.Level().String() != "DEBUG" {
		t.Errorf("level %v", s.Level())
	}
	u := s.Uniforms(2)
	if u.CamPos.Z != -3 || u.Samples != 4 || u.Time != 2 {
		t.Errorf("bad uniforms %+v", u)
	}

	_, err = LoadSettings(strings.NewReader("widht = 3\n"))
	if err == nil {
		t.Error("unknown key accepted")
	}
	_, err = LoadSettings(strings.NewReader("width = -1\nsamples = 0\n"))
	if err == nil || !strings.Contains(err.Error(), "samples") || !strings.Contains(err.Error(), "size") {
		t.Errorf("want joined validation errors, got %v", err)
	}

	var sb strings.Builder
	if err := s.Encode(&sb); err != nil {
		t.Fatal(err)
	}
	got, err := LoadSettings(strings.NewReader(sb.String()))
	if err != nil {
		t.Fatal(err)
	}
	if got != s {
		t.Errorf("encode/decode mismatch:\n%+v\n%+v", got, s)
	}
}

func TestClock(t *testing.T) {
	now := time.Unix(100, 0)
	c := newClock(func() time.Time { return now })
	for i := 0; i < 50; i++ {
		now = now.Add(time.Second / 50)
		c.Tick()
	}
	if c.Frame() != 50 {
		t.Errorf("frame %d", c.Frame())
	}
	if fps := c.FPS(); fps < 49.9 || fps > 50.1 {
		t.Errorf("fps %f, want 50", fps)
	}
	if tm := c.Time(); tm < 0.999 || tm > 1.001 {
		t.Errorf("time %f, want 1", tm)
	}
	if c.Delta() != time.Second/50 {
		t.Errorf("delta %v", c.Delta())
	}
}

func TestWatcher(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "graph.yaml")
	other := filepath.Join(dir, "other.yaml")
	if err := os.WriteFile(name, []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}
	w, err := NewWatcher(name, 100*time.Millisecond, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	os.WriteFile(other, []byte("x"), 0o644)
	select {
	case <-w.Changes():
		t.Fatal("change reported for unrelated file")
	case <-time.After(400 * time.Millisecond):
	}

	// Bursts of writes coalesce.
	for i := 0; i < 5; i++ {
		os.WriteFile(name, []byte(strings.Repeat("b", i+1)), 0o644)
	}
	select {
	case <-w.Changes():
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}
	select {
	case <-w.Changes():
		t.Error("burst reported more than once")
	case <-time.After(400 * time.Millisecond):
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err == nil {
		t.Error("double close not reported")
	}
}

func TestRenderSlice(t *testing.T) {
	root := &sdfgraph.Shape{Transform: sdfgraph.IdentityTransform(), SDF: sdfgraph.Sphere(1)}
	img := image.NewNRGBA(image.Rect(0, 0, 41, 41))
	err := RenderSlice(img, root, 0, 2, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	inside := img.NRGBAAt(20, 20)
	outside := img.NRGBAAt(0, 0)
	// Interior is blue tinted, exterior orange tinted.
	if inside.B <= inside.R {
		t.Errorf("inside color %v", inside)
	}
	if outside.R <= outside.B {
		t.Errorf("outside color %v", outside)
	}
	if err := RenderSlice(img, root, 0, 0, 0, nil); err == nil {
		t.Error("zero extent accepted")
	}
}

func TestRenderPNGFile(t *testing.T) {
	root := &sdfgraph.Shape{Transform: sdfgraph.IdentityTransform(), SDF: sdfgraph.Sphere(1)}
	s := DefaultSettings()
	s.Width, s.Height = 24, 16
	name := filepath.Join(t.TempDir(), "preview.png")
	err := RenderPNGFile(name, root, s, 0, "build failed")
	if err != nil {
		t.Fatal(err)
	}
	fi, err := os.Stat(name)
	if err != nil {
		t.Fatal(err)
	}
	if fi.Size() == 0 {
		t.Error("empty PNG")
	}
	custom := &sdfgraph.Shape{Transform: sdfgraph.IdentityTransform(), SDF: sdfgraph.Custom("return length(p) - 1.0;", sdfgraph.ConstVec3(0, 0, 0))}
	err = RenderPNGFile(name, custom, s, 0, "")
	if !errors.Is(err, sdfgraph.ErrCustomSDF) {
		t.Errorf("want ErrCustomSDF, got %v", err)
	}
}
