package nodegraph

import (
	"errors"
	"fmt"

	"github.com/soypat/sdfgraph"
)

// ErrUnresolvedGraph is returned when a graph cannot be turned into a scene
// tree: the root is missing, a required parameter cannot be found, a
// parameter has the wrong type or the graph contains a cycle.
var ErrUnresolvedGraph = errors.New("unresolved graph")

// DefaultMaxDepth bounds tree depth and parameter forwarding chains.
const DefaultMaxDepth = 64

// Resolve resolves the scene tree rooted at root with the default depth bound.
func Resolve(g Graph, root NodeID) (sdfgraph.Node, error) {
	return Resolver{}.Resolve(g, root)
}

// Resolver turns a [Graph] into a scene tree. The zero value is ready to use.
type Resolver struct {
	// MaxDepth is the maximum depth of the tree and the maximum length of a
	// parameter forwarding chain. If zero DefaultMaxDepth is used.
	MaxDepth int
}

// Resolve walks the graph starting at root and returns the resolved scene
// tree. The graph is only read. Main nodes resolve to a union with identity
// transform, Union and Shape nodes resolve to their scene tree counterparts.
func (r Resolver) Resolve(g Graph, root NodeID) (sdfgraph.Node, error) {
	maxDepth := r.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	ix := newIndex(g, maxDepth)
	if _, ok := ix.nodes[root]; !ok {
		return nil, fmt.Errorf("%w: root node %d not in graph", ErrUnresolvedGraph, root)
	}
	return ix.resolveNode(root, 0, make(map[NodeID]bool))
}

// index holds the lookup tables built once per resolution.
type index struct {
	g         Graph
	maxDepth  int
	nodes     map[NodeID]Node
	outToNode map[OutputID]NodeID
	inToNode  map[InputID]NodeID
	outToIns  map[OutputID][]InputID // Consumers of an output in connection order.
	inToOut   map[InputID]OutputID
}

func newIndex(g Graph, maxDepth int) *index {
	nodes := g.Nodes()
	conns := g.Connections()
	ix := &index{
		g:         g,
		maxDepth:  maxDepth,
		nodes:     make(map[NodeID]Node, len(nodes)),
		outToNode: make(map[OutputID]NodeID),
		inToNode:  make(map[InputID]NodeID),
		outToIns:  make(map[OutputID][]InputID),
		inToOut:   make(map[InputID]OutputID, len(conns)),
	}
	for _, n := range nodes {
		ix.nodes[n.ID] = n
		for _, in := range n.Inputs {
			ix.inToNode[in.ID] = n.ID
		}
		for _, out := range n.Outputs {
			ix.outToNode[out.ID] = n.ID
		}
	}
	for _, c := range conns {
		ix.outToIns[c.Out] = append(ix.outToIns[c.Out], c.In)
		ix.inToOut[c.In] = c.Out
	}
	return ix
}

func (ix *index) resolveNode(id NodeID, depth int, onPath map[NodeID]bool) (sdfgraph.Node, error) {
	node := ix.nodes[id]
	if depth > ix.maxDepth {
		return nil, fmt.Errorf("%w: tree deeper than %d at node %d", ErrUnresolvedGraph, ix.maxDepth, id)
	} else if onPath[id] {
		return nil, fmt.Errorf("%w: cycle through node %d (%s)", ErrUnresolvedGraph, id, node.Label)
	}
	onPath[id] = true
	defer delete(onPath, id)

	switch node.Kind {
	case KindMain:
		children, err := ix.children(node, depth, onPath)
		if err != nil {
			return nil, err
		}
		return &sdfgraph.Union{
			Transform:   sdfgraph.IdentityTransform(),
			Combination: sdfgraph.UnionCombination(),
			Children:    children,
		}, nil

	case KindUnion:
		tr, err := paramAs[TransformValue](ix, id, SocketTransform)
		if err != nil {
			return nil, err
		}
		comb, err := paramAs[CombinationValue](ix, id, SocketCombination)
		if err != nil {
			return nil, err
		}
		children, err := ix.children(node, depth, onPath)
		if err != nil {
			return nil, err
		}
		return &sdfgraph.Union{
			Transform:   tr.Transform,
			Combination: comb.Combination,
			Children:    children,
		}, nil

	case KindShape:
		tr, err := paramAs[TransformValue](ix, id, SocketTransform)
		if err != nil {
			return nil, err
		}
		sdf, err := paramAs[SDFValue](ix, id, SocketSDF)
		if err != nil {
			return nil, err
		}
		mat := MaterialValue{sdfgraph.DefaultMaterial()}
		if hasInput(node, SocketMaterial) {
			mat, err = paramAs[MaterialValue](ix, id, SocketMaterial)
			if err != nil {
				return nil, err
			}
		}
		return &sdfgraph.Shape{
			Transform: tr.Transform,
			Material:  mat.Material,
			SDF:       sdf.SDF,
		}, nil
	}
	return nil, fmt.Errorf("%w: node %d of kind %s is not a scene node", ErrUnresolvedGraph, id, node.Kind)
}

// children resolves the nodes consuming the node's tree outputs, in discovery order.
// Consumers that are not scene nodes are skipped.
func (ix *index) children(node Node, depth int, onPath map[NodeID]bool) ([]sdfgraph.Node, error) {
	var children []sdfgraph.Node
	for _, out := range node.Outputs {
		o, ok := ix.g.Output(out.ID)
		if !ok || o.Type != TypeTree {
			continue
		}
		for _, in := range ix.outToIns[out.ID] {
			childID, ok := ix.inToNode[in]
			if !ok {
				return nil, fmt.Errorf("%w: dangling connection to input %d", ErrUnresolvedGraph, in)
			}
			if !isSceneKind(ix.nodes[childID].Kind) {
				continue
			}
			child, err := ix.resolveNode(childID, depth+1, onPath)
			if err != nil {
				return nil, err
			}
			children = append(children, child)
		}
	}
	return children, nil
}

// param looks up the named parameter of a node. Unconnected sockets yield
// their constant value. Connected sockets forward the lookup of the same
// name to the upstream node.
func (ix *index) param(id NodeID, name string) (Value, error) {
	visited := make(map[NodeID]bool)
	for hops := 0; ; hops++ {
		if visited[id] {
			return nil, fmt.Errorf("%w: cycle forwarding parameter %q through node %d", ErrUnresolvedGraph, name, id)
		} else if hops > ix.maxDepth {
			return nil, fmt.Errorf("%w: parameter %q forwarded more than %d times", ErrUnresolvedGraph, name, ix.maxDepth)
		}
		visited[id] = true
		node := ix.nodes[id]
		inID, ok := inputByName(node, name)
		if !ok {
			return nil, fmt.Errorf("%w: node %d (%s) has no parameter %q", ErrUnresolvedGraph, id, node.Kind, name)
		}
		out, connected := ix.inToOut[inID]
		if !connected {
			in, ok := ix.g.Input(inID)
			if !ok || in.Value == nil {
				return nil, fmt.Errorf("%w: node %d (%s) parameter %q has no value", ErrUnresolvedGraph, id, node.Kind, name)
			}
			return in.Value, nil
		}
		upstream, ok := ix.outToNode[out]
		if !ok {
			return nil, fmt.Errorf("%w: parameter %q of node %d connected to unknown output %d", ErrUnresolvedGraph, name, id, out)
		}
		id = upstream
	}
}

func paramAs[T Value](ix *index, id NodeID, name string) (T, error) {
	var zero T
	v, err := ix.param(id, name)
	if err != nil {
		return zero, err
	}
	got, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: node %d parameter %q is %s, want %s", ErrUnresolvedGraph, id, name, v.Type(), zero.Type())
	}
	return got, nil
}

func inputByName(n Node, name string) (InputID, bool) {
	for _, in := range n.Inputs {
		if in.Name == name {
			return in.ID, true
		}
	}
	return 0, false
}

func hasInput(n Node, name string) bool {
	_, ok := inputByName(n, name)
	return ok
}

func isSceneKind(k Kind) bool {
	return k == KindMain || k == KindUnion || k == KindShape
}
