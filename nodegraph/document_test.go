package nodegraph

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/soypat/sdfgraph"
)

const testDocument = `
root: main
nodes:
  - {label: main, kind: main}
  - label: blob
    kind: union
    combination: {op: smooth_union, strength: 0.25}
  - label: ball
    kind: shape
    sdf: {kind: sphere, params: [1.5, 1.5, 1.5]}
    material: {albedo: [1, 0, 0]}
  - label: box
    kind: shape
    sdf: {kind: cube, params: [1, 1, 1]}
  - label: mover
    kind: transform
    transform:
      position: [2, {freq: 1, amp: 0.5}, 0]
      rotation: [0, 0, 0.5]
      scale: 2
links:
  - {from: main, to: blob}
  - {from: blob, to: ball}
  - {from: blob, to: box}
  - {from: mover, output: Out, to: box, input: transform}
`

func TestDecodeDocument(t *testing.T) {
	ed, root, err := DecodeDocument(strings.NewReader(testDocument))
	if err != nil {
		t.Fatal(err)
	}
	tree, err := Resolve(ed, root)
	if err != nil {
		t.Fatal(err)
	}
	if n := sdfgraph.CountNodes(tree); n != 4 {
		t.Fatalf("want 4 nodes, got %d", n)
	}
	blob := tree.(*sdfgraph.Union).Children[0].(*sdfgraph.Union)
	if blob.Combination.Op != sdfgraph.OpSmoothUnion || blob.Combination.Strength.Eval(0) != 0.25 {
		t.Errorf("bad combination %+v", blob.Combination)
	}
	ball := blob.Children[0].(*sdfgraph.Shape)
	if ball.Material.Albedo.X != 1 || ball.Material.Albedo.Y != 0 {
		t.Errorf("bad albedo %+v", ball.Material.Albedo)
	}
	if ball.Material.IOR != 1 {
		t.Errorf("unset IOR should keep default, got %f", ball.Material.IOR)
	}
	box := blob.Children[1].(*sdfgraph.Shape)
	tr := box.Transform
	if tr.Scale.Eval(0) != 2 || tr.Position.X.Eval(0) != 2 {
		t.Errorf("transform not forwarded from mover: %+v", tr)
	}
	if tr.Position.Y.Kind != sdfgraph.ScalarOscillator || tr.Position.Y.Amp != 0.5 {
		t.Errorf("want oscillator y position, got %+v", tr.Position.Y)
	}
}

func TestDocumentRoundTrip(t *testing.T) {
	ed, root, err := DecodeDocument(strings.NewReader(testDocument))
	if err != nil {
		t.Fatal(err)
	}
	want, err := Resolve(ed, root)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	err = ed.Document(root).Encode(&buf)
	if err != nil {
		t.Fatal(err)
	}
	ed2, root2, err := DecodeDocument(&buf)
	if err != nil {
		t.Fatalf("%v\n%s", err, buf.String())
	}
	got, err := Resolve(ed2, root2)
	if err != nil {
		t.Fatal(err)
	}
	var wantShapes, gotShapes []sdfgraph.Shape
	collect := func(dst *[]sdfgraph.Shape) func(sdfgraph.Node, int) error {
		return func(n sdfgraph.Node, _ int) error {
			if s, ok := n.(*sdfgraph.Shape); ok {
				*dst = append(*dst, *s)
			}
			return nil
		}
	}
	sdfgraph.Walk(want, collect(&wantShapes))
	sdfgraph.Walk(got, collect(&gotShapes))
	if len(wantShapes) != len(gotShapes) {
		t.Fatalf("shape count mismatch %d != %d", len(wantShapes), len(gotShapes))
	}
	for i := range wantShapes {
		if wantShapes[i] != gotShapes[i] {
			t.Errorf("shape %d mismatch:\nwant %+v\ngot  %+v", i, wantShapes[i], gotShapes[i])
		}
	}
}

func TestDecodeDocumentErrors(t *testing.T) {
	for _, test := range []struct {
		name string
		doc  string
	}{
		{name: "unknown kind", doc: "root: a\nnodes:\n  - {label: a, kind: blob}\n"},
		{name: "duplicate label", doc: "root: a\nnodes:\n  - {label: a, kind: main}\n  - {label: a, kind: shape}\n"},
		{name: "unknown link", doc: "root: a\nnodes:\n  - {label: a, kind: main}\nlinks:\n  - {from: a, to: b}\n"},
		{name: "unknown field", doc: "root: a\nnodes:\n  - {label: a, kind: main, color: red}\n"},
		{name: "bad op", doc: "root: a\nnodes:\n  - label: a\n    kind: union\n    combination: {op: xor}\n"},
	} {
		_, _, err := DecodeDocument(strings.NewReader(test.doc))
		if err == nil {
			t.Errorf("%s: expected error", test.name)
		}
	}
	_, _, err := DecodeDocument(strings.NewReader("root: nope\nnodes:\n  - {label: a, kind: main}\n"))
	if !errors.Is(err, ErrUnresolvedGraph) {
		t.Errorf("missing root: want unresolved graph error, got %v", err)
	}
}

func shapesOf(root sdfgraph.Node) (shapes []sdfgraph.Shape) {
	sdfgraph.Walk(root, func(n sdfgraph.Node, _ int) error {
		if s, ok := n.(*sdfgraph.Shape); ok {
			shapes = append(shapes, *s)
		}
		return nil
	})
	return shapes
}

func TestDocumentRepeatedLabels(t *testing.T) {
	ed := NewEditor()
	main := ed.AddNode(KindMain, "main")
	add := func(label string, sdf sdfgraph.SDF) NodeID {
		id := ed.AddNode(KindShape, label)
		if err := ed.SetValue(id, SocketSDF, SDFValue{sdf}); err != nil {
			t.Fatal(err)
		}
		if err := ed.AddChild(main, id); err != nil {
			t.Fatal(err)
		}
		return id
	}
	add("sphere", sdfgraph.Sphere(1))
	add("sphere", sdfgraph.Sphere(2))
	unlabeled := add("", sdfgraph.Cube(1, 2, 3))
	// Collides with the label generated for the unlabeled node.
	add("n"+strconv.FormatUint(uint64(unlabeled), 10), sdfgraph.Cube(3, 2, 1))

	want, err := Resolve(ed, main)
	if err != nil {
		t.Fatal(err)
	}
	doc := ed.Document(main)
	seen := make(map[string]bool)
	for _, dn := range doc.Nodes {
		if seen[dn.Label] {
			t.Errorf("label %q exported twice", dn.Label)
		}
		seen[dn.Label] = true
	}
	if doc.Root != "main" {
		t.Errorf("unique label changed to %q", doc.Root)
	}
	var buf bytes.Buffer
	if err := doc.Encode(&buf); err != nil {
		t.Fatal(err)
	}
	ed2, root2, err := DecodeDocument(&buf)
	if err != nil {
		t.Fatalf("%v\n%s", err, buf.String())
	}
	got, err := Resolve(ed2, root2)
	if err != nil {
		t.Fatal(err)
	}
	wantShapes, gotShapes := shapesOf(want), shapesOf(got)
	if len(wantShapes) != 4 || len(gotShapes) != len(wantShapes) {
		t.Fatalf("shape count mismatch %d != %d", len(wantShapes), len(gotShapes))
	}
	for i := range wantShapes {
		if wantShapes[i] != gotShapes[i] {
			t.Errorf("shape %d mismatch:\nwant %+v\ngot  %+v", i, wantShapes[i], gotShapes[i])
		}
	}
}
