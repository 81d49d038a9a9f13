// Package nodegraph contains the node graph model edited by the UI and the
// resolver that turns a graph into an [sdfgraph.Node] scene tree.
package nodegraph

import (
	"fmt"

	"github.com/soypat/sdfgraph"
)

type (
	NodeID   uint32
	InputID  uint32
	OutputID uint32
)

// Kind is the node template a node was built from.
type Kind uint8

const (
	KindMain Kind = iota
	KindUnion
	KindShape
	KindTransform
)

var kindNames = [...]string{
	KindMain:      "main",
	KindUnion:     "union",
	KindShape:     "shape",
	KindTransform: "transform",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// ParseKind is the inverse of [Kind.String].
func ParseKind(s string) (Kind, error) {
	for i, name := range kindNames {
		if name == s {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown node kind %q", s)
}

// DataType is the type of a socket. Only sockets of equal type may be connected.
type DataType uint8

const (
	TypeTree DataType = iota
	TypeTransform
	TypeCombination
	TypeSDF
	TypeMaterial
)

var typeNames = [...]string{
	TypeTree:        "tree",
	TypeTransform:   "transform",
	TypeCombination: "combination",
	TypeSDF:         "sdf",
	TypeMaterial:    "material",
}

func (t DataType) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("DataType(%d)", t)
}

// Value is a constant stored on an input socket. It is one of
// [TreeValue], [TransformValue], [CombinationValue], [SDFValue]
// or [MaterialValue].
type Value interface {
	Type() DataType
	isValue()
}

type (
	// TreeValue is carried by tree sockets. It holds no data, tree sockets
	// only express parent/child relations through connections.
	TreeValue        struct{}
	TransformValue   struct{ sdfgraph.Transform }
	CombinationValue struct{ sdfgraph.Combination }
	SDFValue         struct{ sdfgraph.SDF }
	MaterialValue    struct{ sdfgraph.Material }
)

func (TreeValue) Type() DataType        { return TypeTree }
func (TransformValue) Type() DataType   { return TypeTransform }
func (CombinationValue) Type() DataType { return TypeCombination }
func (SDFValue) Type() DataType         { return TypeSDF }
func (MaterialValue) Type() DataType    { return TypeMaterial }

func (TreeValue) isValue()        {}
func (TransformValue) isValue()   {}
func (CombinationValue) isValue() {}
func (SDFValue) isValue()         {}
func (MaterialValue) isValue()    {}

// NamedInput is an input socket as listed on its node.
type NamedInput struct {
	Name string
	ID   InputID
}

// NamedOutput is an output socket as listed on its node.
type NamedOutput struct {
	Name string
	ID   OutputID
}

// Node is a graph node. Sockets are listed in template order.
type Node struct {
	ID      NodeID
	Kind    Kind
	Label   string
	Inputs  []NamedInput
	Outputs []NamedOutput
}

// Input is an input socket. Value is used when the socket is not connected.
type Input struct {
	ID    InputID
	Node  NodeID
	Type  DataType
	Value Value
}

// Output is an output socket.
type Output struct {
	ID   OutputID
	Node NodeID
	Type DataType
}

// Connection links an output to the input that consumes it.
type Connection struct {
	In  InputID
	Out OutputID
}

// Graph is the read-only view of the node graph store the resolver works on.
// An input has at most one connection. Connections must be returned in a
// stable order so resolution is deterministic.
type Graph interface {
	Nodes() []Node
	Input(InputID) (Input, bool)
	Output(OutputID) (Output, bool)
	Connections() []Connection
}

// Socket names used by the node templates.
const (
	SocketTree        = "tree_connection"
	SocketTransform   = "transform"
	SocketCombination = "union_type"
	SocketSDF         = "sdf"
	SocketMaterial    = "material"
	SocketChildren    = "Children"
	SocketOut         = "Out"
)

type socketTemplate struct {
	name  string
	tp    DataType
	value func() Value
}

// templates lists the sockets every node kind is created with.
var templates = [...]struct {
	inputs  []socketTemplate
	outputs []socketTemplate
}{
	KindMain: {
		outputs: []socketTemplate{{name: SocketChildren, tp: TypeTree}},
	},
	KindUnion: {
		inputs: []socketTemplate{
			{SocketTree, TypeTree, func() Value { return TreeValue{} }},
			{SocketCombination, TypeCombination, func() Value { return CombinationValue{sdfgraph.UnionCombination()} }},
			{SocketTransform, TypeTransform, defaultTransform},
		},
		outputs: []socketTemplate{{name: SocketChildren, tp: TypeTree}},
	},
	KindShape: {
		inputs: []socketTemplate{
			{SocketTree, TypeTree, func() Value { return TreeValue{} }},
			{SocketSDF, TypeSDF, func() Value { return SDFValue{sdfgraph.Sphere(1)} }},
			{SocketTransform, TypeTransform, defaultTransform},
			{SocketMaterial, TypeMaterial, func() Value { return MaterialValue{sdfgraph.DefaultMaterial()} }},
		},
	},
	KindTransform: {
		inputs: []socketTemplate{
			{SocketTransform, TypeTransform, defaultTransform},
		},
		outputs: []socketTemplate{{name: SocketOut, tp: TypeTransform}},
	},
}

func defaultTransform() Value { return TransformValue{sdfgraph.IdentityTransform()} }
