package sdfgraph

import (
	"errors"
	"fmt"
)

// Node is a node of a resolved scene tree: either a [*Shape] leaf or a
// [*Union] interior node. Scene trees are never mutated once built; a graph
// edit produces a brand new tree.
type Node interface {
	// LocalTransform returns the transform applied to the node's sampling position.
	LocalTransform() Transform
	isNode()
}

var (
	_ Node = (*Shape)(nil) // Interface implementation compile-time check.
	_ Node = (*Union)(nil)
)

// Shape is a scene tree leaf.
type Shape struct {
	Transform Transform
	Material  Material
	SDF       SDF
}

func (s *Shape) LocalTransform() Transform { return s.Transform }
func (s *Shape) isNode()                   {}

// Union is an interior scene tree node. Children are joined together with
// Combination before the union's own scale correction is applied.
type Union struct {
	Transform   Transform
	Combination Combination
	Children    []Node
}

func (u *Union) LocalTransform() Transform { return u.Transform }
func (u *Union) isNode()                   {}

// Walk visits every node of the tree in pre-order. The root has depth zero.
// Returning an error from fn stops the walk.
func Walk(root Node, fn func(n Node, depth int) error) error {
	return walk(root, 0, fn)
}

func walk(n Node, depth int, fn func(Node, int) error) error {
	if n == nil {
		return errors.New("nil node in scene tree")
	}
	err := fn(n, depth)
	if err != nil {
		return err
	}
	if u, ok := n.(*Union); ok {
		for _, child := range u.Children {
			err = walk(child, depth+1, fn)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// CountNodes returns the amount of nodes in the tree including the root.
func CountNodes(root Node) (n int) {
	Walk(root, func(Node, int) error {
		n++
		return nil
	})
	return n
}

// Validate checks the tree can be lowered: no nil nodes and only supported
// combination operators on unions that have children.
func Validate(root Node) error {
	var errs []error
	err := Walk(root, func(n Node, depth int) error {
		u, ok := n.(*Union)
		if ok && len(u.Children) > 0 && !u.Combination.Op.Supported() {
			errs = append(errs, fmt.Errorf("%w %s at depth %d", ErrUnsupportedCombinator, u.Combination.Op, depth))
		}
		return nil
	})
	if err != nil {
		return err
	}
	return errors.Join(errs...)
}
