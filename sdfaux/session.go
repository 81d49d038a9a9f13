// Package sdfaux ties graph resolution, code generation and pipeline
// reloading together for applications.
package sdfaux

import (
	"errors"
	"log/slog"

	"github.com/soypat/sdfgraph"
	"github.com/soypat/sdfgraph/glbuild"
	"github.com/soypat/sdfgraph/glreload"
	"github.com/soypat/sdfgraph/nodegraph"
)

// Report describes the result of reacting to a graph change.
type Report struct {
	// Changed is set when the generated scene source differs from the previous one.
	Changed bool
	Outcome glreload.Outcome
	// Err is a resolve, generation or build error. On error the previous
	// tree and pipeline stay in use.
	Err error
}

// SessionConfig configures a [Session]. Graph and Manager are required.
type SessionConfig struct {
	Graph   nodegraph.Graph
	Root    nodegraph.NodeID
	Manager *glreload.Manager
	// MaxDepth bounds tree depth and parameter forwarding. Zero uses [nodegraph.DefaultMaxDepth].
	MaxDepth int
	Logger   *slog.Logger
}

// Session keeps a pipeline in sync with a node graph. Its methods must be
// called from the goroutine owning the GPU context.
type Session struct {
	graph    nodegraph.Graph
	root     nodegraph.NodeID
	resolver nodegraph.Resolver
	passer   *glbuild.Passer
	mgr      *glreload.Manager
	log      *slog.Logger

	tree      sdfgraph.Node
	source    string
	materials []sdfgraph.Material
}

// NewSession returns a session with no scene built. Call OnGraphChanged to build the first one.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.Graph == nil {
		return nil, errors.New("nil Graph")
	} else if cfg.Manager == nil {
		return nil, errors.New("nil Manager")
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Session{
		graph:    cfg.Graph,
		root:     cfg.Root,
		resolver: nodegraph.Resolver{MaxDepth: cfg.MaxDepth},
		passer:   glbuild.NewPasser(),
		mgr:      cfg.Manager,
		log:      log,
		source:   cfg.Manager.LastGenerated(),
	}, nil
}

// OnGraphChanged resolves the graph, generates the scene source and hands
// it to the pipeline manager, which only rebuilds when the source changed.
func (s *Session) OnGraphChanged() Report {
	r, _ := s.update()
	return r
}

// update reports whether the graph resolved and generated. When it did not,
// the previous tree and source are kept.
func (s *Session) update() (Report, bool) {
	tree, err := s.resolver.Resolve(s.graph, s.root)
	if err != nil {
		s.log.Warn("graph resolve failed", slog.Uint64("root", uint64(s.root)), slog.String("err", err.Error()))
		return Report{Outcome: glreload.Unchanged, Err: err}, false
	}
	res, err := s.passer.Pass(tree)
	if err != nil {
		s.log.Warn("scene generation failed", slog.String("err", err.Error()))
		return Report{Outcome: glreload.Unchanged, Err: err}, false
	}
	changed := res.Source != s.source
	s.tree = tree
	s.source = res.Source
	s.materials = res.Materials
	if changed {
		s.log.Debug("scene changed", slog.Int("nodes", sdfgraph.CountNodes(tree)), slog.Int("decls", len(res.Decls)))
	}
	outcome, err := s.mgr.Update(res.Source)
	return Report{Changed: changed, Outcome: outcome, Err: err}, true
}

// SetRoot makes id the active root and rebuilds. If id does not resolve the
// previous root stays active.
func (s *Session) SetRoot(id nodegraph.NodeID) Report {
	prev := s.root
	s.root = id
	r, ok := s.update()
	if !ok {
		s.root = prev
	}
	return r
}

// SetGraph replaces the graph, as when a graph document is reloaded from
// disk, and rebuilds. If the new graph does not resolve the previous graph
// and root stay active.
func (s *Session) SetGraph(g nodegraph.Graph, root nodegraph.NodeID) Report {
	if g == nil {
		return Report{Outcome: glreload.Unchanged, Err: errors.New("nil Graph")}
	}
	prevGraph, prevRoot := s.graph, s.root
	s.graph, s.root = g, root
	r, ok := s.update()
	if !ok {
		s.graph, s.root = prevGraph, prevRoot
	}
	return r
}

// Root returns the active root node.
func (s *Session) Root() nodegraph.NodeID { return s.root }

// Tree returns the last successfully resolved scene tree, or nil.
func (s *Session) Tree() sdfgraph.Node { return s.tree }

// Source returns the last generated scene source.
func (s *Session) Source() string { return s.source }

// Materials returns the material table of the last generated scene.
func (s *Session) Materials() []sdfgraph.Material { return s.materials }

// Manager returns the pipeline manager.
func (s *Session) Manager() *glreload.Manager { return s.mgr }

// LogValue implements [slog.LogValuer].
func (r Report) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Bool("changed", r.Changed),
		slog.String("outcome", r.Outcome.String()),
	}
	if r.Err != nil {
		attrs = append(attrs, slog.String("err", r.Err.Error()))
	}
	return slog.GroupValue(attrs...)
}

// IsAnimated reports whether any value in the tree depends on time.
// Accumulated renders of animated scenes must restart every frame.
func IsAnimated(root sdfgraph.Node) bool {
	animated := false
	osc := func(s sdfgraph.Scalar) bool { return s.Kind == sdfgraph.ScalarOscillator }
	vec := func(v sdfgraph.Vec3) bool { return osc(v.X) || osc(v.Y) || osc(v.Z) }
	sdfgraph.Walk(root, func(n sdfgraph.Node, _ int) error {
		tr := n.LocalTransform()
		animated = animated || vec(tr.Position) || vec(tr.Rotation) || osc(tr.Scale)
		switch n := n.(type) {
		case *sdfgraph.Shape:
			animated = animated || vec(n.SDF.Params)
		case *sdfgraph.Union:
			animated = animated || osc(n.Combination.Strength)
		}
		return nil
	})
	return animated
}
