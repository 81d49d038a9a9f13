package nodegraph

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/soypat/geometry/ms3"
	"github.com/soypat/sdfgraph"
	"gopkg.in/yaml.v3"
)

// Document is the YAML representation of a node graph. Nodes are referenced
// by their label, which must be unique within a document.
//
//	root: main
//	nodes:
//	  - {label: main, kind: main}
//	  - label: ball
//	    kind: shape
//	    sdf: {kind: sphere, params: [1, 1, 1]}
//	links:
//	  - {from: main, to: ball}
type Document struct {
	Root  string    `yaml:"root"`
	Nodes []DocNode `yaml:"nodes"`
	Links []DocLink `yaml:"links,omitempty"`
}

// DocNode is a node and the constant values of its inputs. Absent values
// keep the template defaults.
type DocNode struct {
	Label       string          `yaml:"label"`
	Kind        string          `yaml:"kind"`
	Transform   *DocTransform   `yaml:"transform,omitempty"`
	Combination *DocCombination `yaml:"combination,omitempty"`
	SDF         *DocSDF         `yaml:"sdf,omitempty"`
	Material    *DocMaterial    `yaml:"material,omitempty"`
}

// DocLink connects an output of From to an input of To. Output and Input
// default to the tree sockets so parent/child links only need From and To.
type DocLink struct {
	From   string `yaml:"from"`
	Output string `yaml:"output,omitempty"`
	To     string `yaml:"to"`
	Input  string `yaml:"input,omitempty"`
}

type DocTransform struct {
	Position DocVec3    `yaml:"position,omitempty,flow"`
	Rotation DocVec3    `yaml:"rotation,omitempty,flow"`
	Scale    *DocScalar `yaml:"scale,omitempty"`
}

type DocCombination struct {
	Op       string    `yaml:"op"`
	Strength DocScalar `yaml:"strength,omitempty"`
}

type DocSDF struct {
	Kind   string  `yaml:"kind"`
	Params DocVec3 `yaml:"params,omitempty,flow"`
	Source string  `yaml:"source,omitempty"`
}

type DocMaterial struct {
	Albedo              []float32 `yaml:"albedo,flow"`
	Emissive            []float32 `yaml:"emissive,omitempty,flow"`
	SpecularChance      float32   `yaml:"specular_chance,omitempty"`
	SpecularRoughness   float32   `yaml:"specular_roughness,omitempty"`
	IOR                 float32   `yaml:"ior,omitempty"`
	RefractionChance    float32   `yaml:"refraction_chance,omitempty"`
	RefractionRoughness float32   `yaml:"refraction_roughness,omitempty"`
	RefractionColor     []float32 `yaml:"refraction_color,omitempty,flow"`
}

// DocVec3 is a list of up to three scalars. Missing components are zero.
type DocVec3 []DocScalar

// DocScalar is written as a plain number for constants or as a mapping
// {freq, amp, phase} for oscillators. An id may be given in both forms
// using the mapping form with a value key.
type DocScalar struct{ sdfgraph.Scalar }

type docOsc struct {
	Value *float32 `yaml:"value,omitempty"`
	Freq  float32  `yaml:"freq,omitempty"`
	Amp   float32  `yaml:"amp,omitempty"`
	Phase float32  `yaml:"phase,omitempty"`
	ID    uint64   `yaml:"id,omitempty"`
}

func (ds *DocScalar) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		v, err := strconv.ParseFloat(node.Value, 32)
		if err != nil {
			return fmt.Errorf("line %d: scalar: %w", node.Line, err)
		}
		ds.Scalar = sdfgraph.Const(float32(v))
		return nil
	}
	var osc docOsc
	err := node.Decode(&osc)
	if err != nil {
		return err
	}
	if osc.Value != nil {
		ds.Scalar = sdfgraph.Const(*osc.Value)
	} else {
		ds.Scalar = sdfgraph.Osc(osc.Freq, osc.Amp, osc.Phase)
	}
	ds.Scalar.ID = osc.ID
	return nil
}

func (ds DocScalar) MarshalYAML() (any, error) {
	s := ds.Scalar
	switch {
	case s.Kind == sdfgraph.ScalarOscillator:
		return docOsc{Freq: s.Freq, Amp: s.Amp, Phase: s.Phase, ID: s.ID}, nil
	case s.ID != 0:
		v := s.Value
		return docOsc{Value: &v, ID: s.ID}, nil
	}
	return s.Value, nil
}

// IsZero lets omitempty drop zero constants.
func (ds DocScalar) IsZero() bool {
	return ds.Scalar == sdfgraph.Scalar{}
}

func (v DocVec3) vec3() (sdfgraph.Vec3, error) {
	if len(v) > 3 {
		return sdfgraph.Vec3{}, fmt.Errorf("vector has %d components, want at most 3", len(v))
	}
	var arr [3]sdfgraph.Scalar
	for i := range v {
		arr[i] = v[i].Scalar
	}
	return sdfgraph.Vec3{X: arr[0], Y: arr[1], Z: arr[2]}, nil
}

func docVec3(v sdfgraph.Vec3) DocVec3 {
	if !v.IsNonzero() && v.X.ID == 0 && v.Y.ID == 0 && v.Z.ID == 0 {
		return nil
	}
	return DocVec3{{v.X}, {v.Y}, {v.Z}}
}

func msVec(f []float32) (ms3.Vec, error) {
	if len(f) > 3 {
		return ms3.Vec{}, fmt.Errorf("color has %d components, want at most 3", len(f))
	}
	var arr [3]float32
	copy(arr[:], f)
	return ms3.Vec{X: arr[0], Y: arr[1], Z: arr[2]}, nil
}

func vecSlice(v ms3.Vec) []float32 {
	arr := v.Array()
	return arr[:]
}

// DecodeDocument reads a YAML graph document and builds an editable graph.
// It returns the id of the document's root node.
func DecodeDocument(r io.Reader) (*Editor, NodeID, error) {
	var doc Document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	err := dec.Decode(&doc)
	if err != nil {
		return nil, 0, fmt.Errorf("decoding graph document: %w", err)
	}
	return doc.Build()
}

// Build creates the graph described by the document.
func (doc *Document) Build() (*Editor, NodeID, error) {
	ed := NewEditor()
	ids := make(map[string]NodeID, len(doc.Nodes))
	var errs []error
	for i, dn := range doc.Nodes {
		if dn.Label == "" {
			return nil, 0, fmt.Errorf("node %d: missing label", i)
		} else if _, dup := ids[dn.Label]; dup {
			return nil, 0, fmt.Errorf("duplicate node label %q", dn.Label)
		}
		kind, err := ParseKind(dn.Kind)
		if err != nil {
			return nil, 0, fmt.Errorf("node %q: %w", dn.Label, err)
		}
		id := ed.AddNode(kind, dn.Label)
		ids[dn.Label] = id
		err = dn.apply(ed, id)
		if err != nil {
			errs = append(errs, fmt.Errorf("node %q: %w", dn.Label, err))
		}
	}
	if len(errs) > 0 {
		return nil, 0, errors.Join(errs...)
	}
	for _, link := range doc.Links {
		from, ok := ids[link.From]
		if !ok {
			return nil, 0, fmt.Errorf("link references unknown node %q", link.From)
		}
		to, ok := ids[link.To]
		if !ok {
			return nil, 0, fmt.Errorf("link references unknown node %q", link.To)
		}
		output, input := link.Output, link.Input
		if output == "" {
			output = SocketChildren
		}
		if input == "" {
			input = SocketTree
		}
		err := ed.ConnectNodes(from, output, to, input)
		if err != nil {
			return nil, 0, fmt.Errorf("link %s->%s: %w", link.From, link.To, err)
		}
	}
	root, ok := ids[doc.Root]
	if !ok {
		return nil, 0, fmt.Errorf("%w: document root %q not found", ErrUnresolvedGraph, doc.Root)
	}
	return ed, root, nil
}

func (dn *DocNode) apply(ed *Editor, id NodeID) error {
	if dn.Transform != nil {
		pos, err := dn.Transform.Position.vec3()
		if err != nil {
			return err
		}
		rot, err := dn.Transform.Rotation.vec3()
		if err != nil {
			return err
		}
		tr := sdfgraph.Transform{Position: pos, Rotation: rot, Scale: sdfgraph.Const(1)}
		if dn.Transform.Scale != nil {
			tr.Scale = dn.Transform.Scale.Scalar
		}
		err = ed.SetValue(id, SocketTransform, TransformValue{tr})
		if err != nil {
			return err
		}
	}
	if dn.Combination != nil {
		op, err := sdfgraph.ParseCombinationOp(dn.Combination.Op)
		if err != nil {
			return err
		}
		comb := sdfgraph.Combination{Op: op, Strength: dn.Combination.Strength.Scalar}
		err = ed.SetValue(id, SocketCombination, CombinationValue{comb})
		if err != nil {
			return err
		}
	}
	if dn.SDF != nil {
		kind, err := sdfgraph.ParseSDFKind(dn.SDF.Kind)
		if err != nil {
			return err
		}
		params, err := dn.SDF.Params.vec3()
		if err != nil {
			return err
		}
		sdf := sdfgraph.SDF{Kind: kind, Params: params, Source: dn.SDF.Source}
		err = ed.SetValue(id, SocketSDF, SDFValue{sdf})
		if err != nil {
			return err
		}
	}
	if dn.Material != nil {
		m, err := dn.Material.material()
		if err != nil {
			return err
		}
		err = ed.SetValue(id, SocketMaterial, MaterialValue{m})
		if err != nil {
			return err
		}
	}
	return nil
}

func (dm *DocMaterial) material() (m sdfgraph.Material, err error) {
	m = sdfgraph.DefaultMaterial()
	if dm.Albedo != nil {
		m.Albedo, err = msVec(dm.Albedo)
		if err != nil {
			return m, err
		}
	}
	m.Emissive, err = msVec(dm.Emissive)
	if err != nil {
		return m, err
	}
	m.RefractionColor, err = msVec(dm.RefractionColor)
	if err != nil {
		return m, err
	}
	m.SpecularChance = dm.SpecularChance
	m.SpecularRoughness = dm.SpecularRoughness
	if dm.IOR != 0 {
		m.IOR = dm.IOR
	}
	m.RefractionChance = dm.RefractionChance
	m.RefractionRoughness = dm.RefractionRoughness
	return m, nil
}

// Document returns the document describing the graph. Nodes without a label
// are given one derived from their id and repeated labels get a "#<id>"
// suffix so the document builds back into the same graph. Dangling
// connections are omitted.
func (e *Editor) Document(root NodeID) *Document {
	doc := &Document{}
	labels := e.uniqueLabels()
	for _, n := range e.nodes {
		dn := DocNode{Label: labels[n.ID], Kind: n.Kind.String()}
		for _, in := range n.Inputs {
			switch v := e.inputs[in.ID].Value.(type) {
			case TransformValue:
				dn.Transform = &DocTransform{
					Position: docVec3(v.Position),
					Rotation: docVec3(v.Rotation),
					Scale:    &DocScalar{v.Scale},
				}
			case CombinationValue:
				dn.Combination = &DocCombination{Op: v.Op.String(), Strength: DocScalar{v.Strength}}
			case SDFValue:
				dn.SDF = &DocSDF{Kind: v.Kind.String(), Params: docVec3(v.Params), Source: v.Source}
			case MaterialValue:
				dn.Material = &DocMaterial{
					Albedo:              vecSlice(v.Albedo),
					Emissive:            vecSlice(v.Emissive),
					SpecularChance:      v.SpecularChance,
					SpecularRoughness:   v.SpecularRoughness,
					IOR:                 v.IOR,
					RefractionChance:    v.RefractionChance,
					RefractionRoughness: v.RefractionRoughness,
					RefractionColor:     vecSlice(v.RefractionColor),
				}
			}
		}
		doc.Nodes = append(doc.Nodes, dn)
	}
	doc.Root = labels[root]
	for _, c := range e.conns {
		in, okIn := e.inputs[c.In]
		out, okOut := e.outputs[c.Out]
		if !okIn || !okOut {
			continue
		}
		link := DocLink{From: labels[out.Node], To: labels[in.Node]}
		if name := e.outputName(out); name != SocketChildren {
			link.Output = name
		}
		if name := e.inputName(in); name != SocketTree {
			link.Input = name
		}
		doc.Links = append(doc.Links, link)
	}
	return doc
}

// uniqueLabels returns a distinct document label for every node.
func (e *Editor) uniqueLabels() map[NodeID]string {
	base := func(n Node) string {
		if n.Label == "" {
			return "n" + strconv.FormatUint(uint64(n.ID), 10)
		}
		return n.Label
	}
	count := make(map[string]int, len(e.nodes))
	for _, n := range e.nodes {
		count[base(n)]++
	}
	labels := make(map[NodeID]string, len(e.nodes))
	taken := make(map[string]bool, len(e.nodes))
	// Labels used once are claimed first so suffixed labels never displace them.
	for _, n := range e.nodes {
		if l := base(n); count[l] == 1 {
			labels[n.ID] = l
			taken[l] = true
		}
	}
	suffix := func(n Node) string { return "#" + strconv.FormatUint(uint64(n.ID), 10) }
	for _, n := range e.nodes {
		if _, ok := labels[n.ID]; ok {
			continue
		}
		l := base(n) + suffix(n)
		for taken[l] {
			l += suffix(n)
		}
		labels[n.ID] = l
		taken[l] = true
	}
	return labels
}

func (e *Editor) inputName(in Input) string {
	n, _ := e.Node(in.Node)
	for _, ni := range n.Inputs {
		if ni.ID == in.ID {
			return ni.Name
		}
	}
	return ""
}

func (e *Editor) outputName(out Output) string {
	n, _ := e.Node(out.Node)
	for _, no := range n.Outputs {
		if no.ID == out.ID {
			return no.Name
		}
	}
	return ""
}

// Encode writes the document as YAML.
func (doc *Document) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	err := enc.Encode(doc)
	if err != nil {
		return err
	}
	return enc.Close()
}
