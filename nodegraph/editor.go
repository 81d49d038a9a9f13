package nodegraph

import (
	"errors"
	"fmt"
	"slices"
)

var (
	errNoNode   = errors.New("node not found")
	errNoSocket = errors.New("socket not found")
)

// Editor is an in-memory, editable node graph. It implements [Graph].
// Nodes and connections keep insertion order.
type Editor struct {
	nodes   []Node
	inputs  map[InputID]Input
	outputs map[OutputID]Output
	conns   []Connection
	nextID  uint32
}

var _ Graph = (*Editor)(nil) // Interface implementation compile-time check.

// NewEditor returns an empty graph.
func NewEditor() *Editor {
	return &Editor{
		inputs:  make(map[InputID]Input),
		outputs: make(map[OutputID]Output),
	}
}

func (e *Editor) id() uint32 {
	e.nextID++
	return e.nextID
}

// AddNode creates a node of the given kind with the kind's default sockets
// and constant values and returns its id.
func (e *Editor) AddNode(kind Kind, label string) NodeID {
	if int(kind) >= len(templates) {
		panic("invalid node kind " + kind.String())
	}
	node := Node{ID: NodeID(e.id()), Kind: kind, Label: label}
	tmpl := templates[kind]
	for _, st := range tmpl.inputs {
		id := InputID(e.id())
		node.Inputs = append(node.Inputs, NamedInput{Name: st.name, ID: id})
		e.inputs[id] = Input{ID: id, Node: node.ID, Type: st.tp, Value: st.value()}
	}
	for _, st := range tmpl.outputs {
		id := OutputID(e.id())
		node.Outputs = append(node.Outputs, NamedOutput{Name: st.name, ID: id})
		e.outputs[id] = Output{ID: id, Node: node.ID, Type: st.tp}
	}
	e.nodes = append(e.nodes, node)
	return node.ID
}

// RemoveNode deletes the node, its sockets and every connection touching it.
func (e *Editor) RemoveNode(id NodeID) error {
	idx := e.nodeIndex(id)
	if idx < 0 {
		return fmt.Errorf("%w: %d", errNoNode, id)
	}
	node := e.nodes[idx]
	e.conns = slices.DeleteFunc(e.conns, func(c Connection) bool {
		return e.inputs[c.In].Node == id || e.outputs[c.Out].Node == id
	})
	for _, in := range node.Inputs {
		delete(e.inputs, in.ID)
	}
	for _, out := range node.Outputs {
		delete(e.outputs, out.ID)
	}
	e.nodes = slices.Delete(e.nodes, idx, idx+1)
	return nil
}

// SetValue sets the constant value of a node's named input. The value type
// must match the socket type.
func (e *Editor) SetValue(node NodeID, name string, v Value) error {
	id, ok := e.InputByName(node, name)
	if !ok {
		return fmt.Errorf("%w: node %d has no input %q", errNoSocket, node, name)
	}
	in := e.inputs[id]
	if v == nil || v.Type() != in.Type {
		return fmt.Errorf("input %q of node %d is %s, got value %T", name, node, in.Type, v)
	}
	in.Value = v
	e.inputs[id] = in
	return nil
}

// Connect links out to in. Sockets must be of the same type and belong to
// different nodes. A previous connection to in is replaced.
func (e *Editor) Connect(out OutputID, in InputID) error {
	o, ok := e.outputs[out]
	if !ok {
		return fmt.Errorf("%w: output %d", errNoSocket, out)
	}
	i, ok := e.inputs[in]
	if !ok {
		return fmt.Errorf("%w: input %d", errNoSocket, in)
	}
	if o.Type != i.Type {
		return fmt.Errorf("cannot connect %s output to %s input", o.Type, i.Type)
	} else if o.Node == i.Node {
		return errors.New("cannot connect node to itself")
	}
	e.Disconnect(in)
	e.conns = append(e.conns, Connection{In: in, Out: out})
	return nil
}

// ConnectNodes connects the named output of one node to the named input of another.
func (e *Editor) ConnectNodes(from NodeID, output string, to NodeID, input string) error {
	out, ok := e.OutputByName(from, output)
	if !ok {
		return fmt.Errorf("%w: node %d has no output %q", errNoSocket, from, output)
	}
	in, ok := e.InputByName(to, input)
	if !ok {
		return fmt.Errorf("%w: node %d has no input %q", errNoSocket, to, input)
	}
	return e.Connect(out, in)
}

// AddChild connects child's tree input to the parent's children output.
func (e *Editor) AddChild(parent, child NodeID) error {
	return e.ConnectNodes(parent, SocketChildren, child, SocketTree)
}

// Disconnect removes the connection to in, if any.
func (e *Editor) Disconnect(in InputID) {
	e.conns = slices.DeleteFunc(e.conns, func(c Connection) bool { return c.In == in })
}

// InputByName looks up a node's input socket by name.
func (e *Editor) InputByName(node NodeID, name string) (InputID, bool) {
	idx := e.nodeIndex(node)
	if idx < 0 {
		return 0, false
	}
	for _, in := range e.nodes[idx].Inputs {
		if in.Name == name {
			return in.ID, true
		}
	}
	return 0, false
}

// OutputByName looks up a node's output socket by name.
func (e *Editor) OutputByName(node NodeID, name string) (OutputID, bool) {
	idx := e.nodeIndex(node)
	if idx < 0 {
		return 0, false
	}
	for _, out := range e.nodes[idx].Outputs {
		if out.Name == name {
			return out.ID, true
		}
	}
	return 0, false
}

// Node returns the node with the given id.
func (e *Editor) Node(id NodeID) (Node, bool) {
	idx := e.nodeIndex(id)
	if idx < 0 {
		return Node{}, false
	}
	return e.nodes[idx], true
}

func (e *Editor) nodeIndex(id NodeID) int {
	return slices.IndexFunc(e.nodes, func(n Node) bool { return n.ID == id })
}

func (e *Editor) Nodes() []Node { return slices.Clone(e.nodes) }

func (e *Editor) Input(id InputID) (Input, bool) {
	in, ok := e.inputs[id]
	return in, ok
}

func (e *Editor) Output(id OutputID) (Output, bool) {
	out, ok := e.outputs[id]
	return out, ok
}

func (e *Editor) Connections() []Connection { return slices.Clone(e.conns) }
