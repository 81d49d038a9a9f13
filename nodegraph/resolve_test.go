package nodegraph

import (
	"errors"
	"testing"

	"github.com/soypat/sdfgraph"
)

func TestResolveSphereScene(t *testing.T) {
	ed := NewEditor()
	root := ed.AddNode(KindUnion, "root")
	ball := ed.AddNode(KindShape, "ball")
	mustOK(t, ed.AddChild(root, ball))

	tree, err := Resolve(ed, root)
	if err != nil {
		t.Fatal(err)
	}
	if n := sdfgraph.CountNodes(tree); n != 2 {
		t.Fatalf("want 2 node tree, got %d nodes", n)
	}
	u, ok := tree.(*sdfgraph.Union)
	if !ok {
		t.Fatalf("want union root, got %T", tree)
	}
	if u.Combination.Op != sdfgraph.OpUnion {
		t.Errorf("want union combinator, got %s", u.Combination.Op)
	}
	shape, ok := u.Children[0].(*sdfgraph.Shape)
	if !ok {
		t.Fatalf("want shape child, got %T", u.Children[0])
	}
	if shape.SDF.Kind != sdfgraph.SDFSphere || shape.SDF.Params.X.Eval(0) != 1 {
		t.Errorf("want unit sphere, got %+v", shape.SDF)
	}
	if shape.Transform != sdfgraph.IdentityTransform() {
		t.Errorf("want identity transform, got %+v", shape.Transform)
	}
}

func TestResolveMainNode(t *testing.T) {
	ed := NewEditor()
	main := ed.AddNode(KindMain, "main")
	a := ed.AddNode(KindShape, "a")
	b := ed.AddNode(KindShape, "b")
	mustOK(t, ed.AddChild(main, a))
	mustOK(t, ed.AddChild(main, b))
	mustOK(t, ed.SetValue(b, SocketSDF, SDFValue{sdfgraph.Cube(1, 2, 3)}))

	tree, err := Resolve(ed, main)
	if err != nil {
		t.Fatal(err)
	}
	u := tree.(*sdfgraph.Union)
	if u.Transform != sdfgraph.IdentityTransform() || u.Combination.Op != sdfgraph.OpUnion {
		t.Errorf("main node should resolve to identity union, got %+v", u)
	}
	if len(u.Children) != 2 {
		t.Fatalf("want 2 children, got %d", len(u.Children))
	}
	// Children are kept in connection order.
	if u.Children[1].(*sdfgraph.Shape).SDF.Kind != sdfgraph.SDFCube {
		t.Error("children out of connection order")
	}
}

func TestResolveTransformForwarding(t *testing.T) {
	ed := NewEditor()
	root := ed.AddNode(KindUnion, "root")
	ball := ed.AddNode(KindShape, "ball")
	xform := ed.AddNode(KindTransform, "xform")
	mustOK(t, ed.AddChild(root, ball))
	want := sdfgraph.Transform{Position: sdfgraph.ConstVec3(1, 2, 3), Scale: sdfgraph.Const(2)}
	mustOK(t, ed.SetValue(xform, SocketTransform, TransformValue{want}))
	mustOK(t, ed.ConnectNodes(xform, SocketOut, ball, SocketTransform))

	tree, err := Resolve(ed, root)
	if err != nil {
		t.Fatal(err)
	}
	got := tree.(*sdfgraph.Union).Children[0].LocalTransform()
	if got != want {
		t.Errorf("transform not forwarded: want %+v, got %+v", want, got)
	}

	// Chains of transform nodes forward too.
	xform2 := ed.AddNode(KindTransform, "xform2")
	want.Scale = sdfgraph.Const(5)
	mustOK(t, ed.SetValue(xform2, SocketTransform, TransformValue{want}))
	mustOK(t, ed.ConnectNodes(xform2, SocketOut, xform, SocketTransform))
	tree, err = Resolve(ed, root)
	if err != nil {
		t.Fatal(err)
	}
	got = tree.(*sdfgraph.Union).Children[0].LocalTransform()
	if got != want {
		t.Errorf("chained transform not forwarded: want %+v, got %+v", want, got)
	}
}

func TestResolveErrors(t *testing.T) {
	t.Run("missing root", func(t *testing.T) {
		ed := NewEditor()
		ed.AddNode(KindShape, "a")
		_, err := Resolve(ed, 9999)
		if !errors.Is(err, ErrUnresolvedGraph) {
			t.Fatalf("want unresolved graph, got %v", err)
		}
	})
	t.Run("root is transform", func(t *testing.T) {
		ed := NewEditor()
		x := ed.AddNode(KindTransform, "x")
		_, err := Resolve(ed, x)
		if !errors.Is(err, ErrUnresolvedGraph) {
			t.Fatalf("want unresolved graph, got %v", err)
		}
	})
	t.Run("tree cycle", func(t *testing.T) {
		ed := NewEditor()
		a := ed.AddNode(KindUnion, "a")
		b := ed.AddNode(KindUnion, "b")
		mustOK(t, ed.AddChild(a, b))
		mustOK(t, ed.AddChild(b, a))
		_, err := Resolve(ed, a)
		if !errors.Is(err, ErrUnresolvedGraph) {
			t.Fatalf("want unresolved graph, got %v", err)
		}
	})
	t.Run("forwarding cycle", func(t *testing.T) {
		ed := NewEditor()
		s := ed.AddNode(KindShape, "s")
		x1 := ed.AddNode(KindTransform, "x1")
		x2 := ed.AddNode(KindTransform, "x2")
		mustOK(t, ed.ConnectNodes(x1, SocketOut, s, SocketTransform))
		mustOK(t, ed.ConnectNodes(x2, SocketOut, x1, SocketTransform))
		mustOK(t, ed.ConnectNodes(x1, SocketOut, x2, SocketTransform))
		_, err := Resolve(ed, s)
		if !errors.Is(err, ErrUnresolvedGraph) {
			t.Fatalf("want unresolved graph, got %v", err)
		}
	})
	t.Run("depth bound", func(t *testing.T) {
		ed := NewEditor()
		root := ed.AddNode(KindUnion, "root")
		parent := root
		for i := 0; i < 10; i++ {
			child := ed.AddNode(KindUnion, "")
			mustOK(t, ed.AddChild(parent, child))
			parent = child
		}
		_, err := Resolver{MaxDepth: 5}.Resolve(ed, root)
		if !errors.Is(err, ErrUnresolvedGraph) {
			t.Fatalf("want unresolved graph, got %v", err)
		}
		_, err = Resolver{MaxDepth: 10}.Resolve(ed, root)
		if err != nil {
			t.Fatalf("tree within bound failed: %v", err)
		}
	})
	t.Run("missing parameter", func(t *testing.T) {
		g := &stubGraph{
			nodes: []Node{{ID: 1, Kind: KindShape, Inputs: []NamedInput{{Name: SocketTransform, ID: 1}}}},
			inputs: map[InputID]Input{
				1: {ID: 1, Node: 1, Type: TypeTransform, Value: TransformValue{sdfgraph.IdentityTransform()}},
			},
		}
		_, err := Resolve(g, 1)
		if !errors.Is(err, ErrUnresolvedGraph) {
			t.Fatalf("want unresolved graph for shape without sdf, got %v", err)
		}
	})
	t.Run("wrong value type", func(t *testing.T) {
		g := &stubGraph{
			nodes: []Node{{ID: 1, Kind: KindShape, Inputs: []NamedInput{{Name: SocketTransform, ID: 1}, {Name: SocketSDF, ID: 2}}}},
			inputs: map[InputID]Input{
				1: {ID: 1, Node: 1, Type: TypeTransform, Value: TransformValue{sdfgraph.IdentityTransform()}},
				2: {ID: 2, Node: 1, Type: TypeSDF, Value: TreeValue{}},
			},
		}
		_, err := Resolve(g, 1)
		if !errors.Is(err, ErrUnresolvedGraph) {
			t.Fatalf("want unresolved graph, got %v", err)
		}
	})
}

func TestEditorConnect(t *testing.T) {
	ed := NewEditor()
	u := ed.AddNode(KindUnion, "u")
	s := ed.AddNode(KindShape, "s")
	x := ed.AddNode(KindTransform, "x")
	if err := ed.ConnectNodes(x, SocketOut, s, SocketTree); err == nil {
		t.Error("expected type mismatch error")
	}
	if err := ed.ConnectNodes(u, SocketChildren, u, SocketTree); err == nil {
		t.Error("expected self connection error")
	}
	mustOK(t, ed.AddChild(u, s))
	u2 := ed.AddNode(KindUnion, "u2")
	mustOK(t, ed.AddChild(u2, s)) // Replaces previous parent.
	if n := len(ed.Connections()); n != 1 {
		t.Fatalf("input should hold a single connection, got %d", n)
	}
	mustOK(t, ed.RemoveNode(u2))
	if n := len(ed.Connections()); n != 0 {
		t.Fatalf("connections of removed node kept: %d", n)
	}
	if err := ed.SetValue(s, SocketSDF, TransformValue{}); err == nil {
		t.Error("expected value type error")
	}
}

type stubGraph struct {
	nodes   []Node
	inputs  map[InputID]Input
	outputs map[OutputID]Output
	conns   []Connection
}

func (g *stubGraph) Nodes() []Node { return g.nodes }
func (g *stubGraph) Input(id InputID) (Input, bool) {
	in, ok := g.inputs[id]
	return in, ok
}
func (g *stubGraph) Output(id OutputID) (Output, bool) {
	out, ok := g.outputs[id]
	return out, ok
}
func (g *stubGraph) Connections() []Connection { return g.conns }

func mustOK(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}
