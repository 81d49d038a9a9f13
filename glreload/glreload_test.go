package glreload

import (
	"errors"
	"strings"
	"testing"

	"github.com/soypat/sdfgraph"
	"github.com/soypat/sdfgraph/glbuild"
)

type fakeProgram struct {
	source   string
	released int
}

func (p *fakeProgram) Release() { p.released++ }

// fakeCompiler fails on sources containing "syntax error" and panics on "boom".
type fakeCompiler struct {
	compiled []*fakeProgram
}

func (c *fakeCompiler) Compile(source string) (Program, error) {
	if strings.Contains(source, "boom") {
		panic("driver crashed")
	}
	if strings.Contains(source, "syntax error") {
		return nil, errors.New("0:1: syntax error")
	}
	p := &fakeProgram{source: source}
	c.compiled = append(c.compiled, p)
	return p, nil
}

type rejectValidator struct{ calls int }

func (v *rejectValidator) Validate(src string) error {
	v.calls++
	if strings.Contains(src, "reject") {
		return errors.New("rejected")
	}
	return nil
}

func sceneSource(t *testing.T, root sdfgraph.Node) string {
	t.Helper()
	res, err := glbuild.NewPasser().Pass(root)
	if err != nil {
		t.Fatal(err)
	}
	return res.Source
}

func newTestManager(t *testing.T) (*Manager, *fakeCompiler) {
	t.Helper()
	c := &fakeCompiler{}
	m, err := NewManager(Config{Compiler: c})
	if err != nil {
		t.Fatal(err)
	}
	if len(c.compiled) != 1 {
		t.Fatalf("want initial build, got %d compiles", len(c.compiled))
	}
	return m, c
}

func TestParseTemplate(t *testing.T) {
	tmpl, err := ParseTemplate("head\n//#SCENE\ntail", SceneMarker)
	if err != nil {
		t.Fatal(err)
	}
	got := tmpl.Substitute("float x;")
	if got != "head\nfloat x;\ntail" {
		t.Errorf("got %q", got)
	}
	for _, bad := range []string{"no marker", "//#SCENE //#SCENE"} {
		_, err := ParseTemplate(bad, SceneMarker)
		if err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
	_, err = ParseTemplate("x", "")
	if err == nil {
		t.Error("expected error for empty marker")
	}
}

func TestDefaultTemplate(t *testing.T) {
	full := DefaultTemplate().Substitute("SCENE_HERE")
	if !strings.HasPrefix(full, "#version 430\n") {
		t.Errorf("bad template start: %q", full[:20])
	}
	iLib := strings.Index(full, "Hit opSmoothUnion")
	iScene := strings.Index(full, "SCENE_HERE")
	iMain := strings.Index(full, "void main()")
	if iLib < 0 || iScene < 0 || iMain < 0 || !(iLib < iScene && iScene < iMain) {
		t.Errorf("library, scene and main out of order: %d %d %d", iLib, iScene, iMain)
	}
	if strings.Contains(full, SceneMarker) {
		t.Error("marker not substituted")
	}
}

func TestManagerMarkerOnlyTemplate(t *testing.T) {
	tmpl, err := ParseTemplate(SceneMarker, SceneMarker)
	if err != nil {
		t.Fatal(err)
	}
	if tmpl.IsZero() {
		t.Fatal("parsed template reported zero")
	}
	if !(Template{}).IsZero() {
		t.Error("zero template not reported zero")
	}
	c := &fakeCompiler{}
	m, err := NewManager(Config{Compiler: c, Template: tmpl, InitialScene: "scene A"})
	if err != nil {
		t.Fatal(err)
	}
	if got := c.compiled[0].source; got != "scene A" {
		t.Errorf("marker only template replaced, compiled %q", got)
	}
	if got := m.Source("scene B"); got != "scene B" {
		t.Errorf("Source=%q", got)
	}
}

func TestManagerSwap(t *testing.T) {
	m, c := newTestManager(t)
	first := m.Active()
	src := sceneSource(t, &sdfgraph.Shape{Transform: sdfgraph.IdentityTransform(), SDF: sdfgraph.Sphere(1)})
	out, err := m.Update(src)
	if err != nil || out != Swapped {
		t.Fatalf("got %v, %v", out, err)
	}
	if m.Active() == first {
		t.Fatal("pipeline not swapped")
	}
	if m.LastGood() != src || m.LastGenerated() != src {
		t.Error("sources not recorded")
	}
	if !strings.Contains(c.compiled[1].source, src) {
		t.Error("compiled source missing scene")
	}
	if first.(*fakeProgram).released != 0 {
		t.Error("retired program released before Collect")
	}
	if n := m.Collect(); n != 1 {
		t.Errorf("collected %d, want 1", n)
	}
	if first.(*fakeProgram).released != 1 {
		t.Error("retired program not released")
	}
	if m.State() != StateIdle {
		t.Errorf("state %v", m.State())
	}
}

func TestManagerUnchanged(t *testing.T) {
	m, c := newTestManager(t)
	src := sceneSource(t, &sdfgraph.Shape{Transform: sdfgraph.IdentityTransform(), SDF: sdfgraph.Sphere(1)})
	m.Update(src)
	for i := 0; i < 3; i++ {
		out, err := m.Update(src)
		if err != nil || out != Unchanged {
			t.Fatalf("got %v, %v", out, err)
		}
	}
	if len(c.compiled) != 2 {
		t.Errorf("compiled %d times, want 2", len(c.compiled))
	}
	out, err := m.Rebuild()
	if err != nil || out != Swapped {
		t.Fatalf("rebuild got %v, %v", out, err)
	}
	if len(c.compiled) != 3 {
		t.Errorf("rebuild did not compile")
	}
}

func TestManagerFailedBuildKeepsPrevious(t *testing.T) {
	m, _ := newTestManager(t)
	good := m.Active()
	goodSrc := m.LastGood()
	for _, bad := range []string{"syntax error", "boom"} {
		out, err := m.Update(bad)
		if out != Failed {
			t.Fatalf("%s: outcome %v", bad, out)
		}
		if !errors.Is(err, ErrShaderBuild) {
			t.Fatalf("%s: error %v does not match ErrShaderBuild", bad, err)
		}
		var berr *BuildError
		if !errors.As(err, &berr) || berr.Stage != StageCompile {
			t.Fatalf("%s: want compile stage BuildError, got %v", bad, err)
		}
		if berr.Panicked != (bad == "boom") {
			t.Errorf("%s: panicked=%v", bad, berr.Panicked)
		}
		if m.Active() != good || m.LastGood() != goodSrc {
			t.Fatalf("%s: active pipeline replaced after failure", bad)
		}
		if m.LastGenerated() != bad || m.LastError() == nil {
			t.Errorf("%s: failure not recorded", bad)
		}
	}
	// Same bad source is not retried.
	out, err := m.Update("boom")
	if out != Unchanged || err != nil {
		t.Errorf("got %v, %v", out, err)
	}
}

func TestManagerValidator(t *testing.T) {
	v := &rejectValidator{}
	c := &fakeCompiler{}
	m, err := NewManager(Config{Compiler: c, Validator: v})
	if err != nil {
		t.Fatal(err)
	}
	out, err := m.Update("reject me")
	if out != Failed || !errors.Is(err, ErrShaderBuild) {
		t.Fatalf("got %v, %v", out, err)
	}
	var berr *BuildError
	if !errors.As(err, &berr) || berr.Stage != StageValidate {
		t.Errorf("want validate stage, got %v", err)
	}
	if len(c.compiled) != 1 {
		t.Error("compiler called after validation failure")
	}
	if v.calls != 2 {
		t.Errorf("validator calls %d, want 2", v.calls)
	}
}

func TestManagerInitialFailure(t *testing.T) {
	_, err := NewManager(Config{Compiler: &fakeCompiler{}, InitialScene: "syntax error"})
	if !errors.Is(err, ErrShaderBuild) {
		t.Errorf("want ErrShaderBuild, got %v", err)
	}
	_, err = NewManager(Config{})
	if err == nil {
		t.Error("want error for nil compiler")
	}
}

func TestManagerClose(t *testing.T) {
	m, c := newTestManager(t)
	m.Update("float a;")
	m.Close()
	for i, p := range c.compiled {
		if p.released != 1 {
			t.Errorf("program %d released %d times", i, p.released)
		}
	}
	if m.Active() != nil {
		t.Error("active program after Close")
	}
}

func TestFlipper(t *testing.T) {
	f := NewFlipper(1, 2)
	if f.Read() != 1 || f.Write() != 2 {
		t.Fatalf("got read=%d write=%d", f.Read(), f.Write())
	}
	f.Flip()
	if f.Read() != 2 || f.Write() != 1 {
		t.Fatalf("after flip got read=%d write=%d", f.Read(), f.Write())
	}
	f.Flip()
	if f.Read() != 1 {
		t.Error("double flip not identity")
	}
	a, b := f.Both()
	if a != 1 || b != 2 {
		t.Error("Both order changed")
	}
}
