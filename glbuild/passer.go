package glbuild

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/soypat/sdfgraph"
)

// castRay is the fixed marching loop appended after the scene function.
// MHD (minimum hit distance), FP (far plane) and u_steps_per_ray are
// declared by the scene library.
const castRay = `Hit cast_ray(vec3 ro, vec3 rd) {
	float t = 0.0;
	int mat = -1;
	for (int i = 0; i < u_steps_per_ray; i++) {
		Hit hit = map(ro + rd * t);
		t += hit.d;
		if (hit.d < MHD) {
			mat = hit.mat;
			break;
		}
		if (t > FP) break;
	}
	return Hit(t, mat);
}
`

// Result is the output of a code generation pass.
type Result struct {
	// Source contains the material table, custom SDF functions, the scene
	// function map and the ray caster cast_ray.
	Source string
	// Decls lists every identifier declared by the scene function in emission order.
	Decls []Ident
	// Materials is the material table. Index 0 is the default material used by misses.
	Materials []sdfgraph.Material
}

// parcel is the context handed from a node to its children during a pass.
type parcel struct {
	acc   Ident                // Accumulator the node folds into.
	comb  sdfgraph.Combination // Combination used to fold into acc.
	pos   Ident                // Transformed position of the parent.
	depth int
}

// Passer lowers scene trees to GLSL. Buffers are reused between passes so a
// Passer should not be used concurrently. Output depends only on the tree.
type Passer struct {
	body      []byte
	funcs     []byte
	out       []byte
	levels    []int // Next free index per depth.
	decls     []Ident
	materials []sdfgraph.Material
}

// NewPasser returns a Passer ready to use.
func NewPasser() *Passer {
	return &Passer{
		body:  make([]byte, 0, 4096),
		funcs: make([]byte, 0, 512),
		out:   make([]byte, 0, 4096),
	}
}

// Pass generates the scene source for root.
func (p *Passer) Pass(root sdfgraph.Node) (Result, error) {
	if root == nil {
		return Result{}, errors.New("nil scene root")
	}
	p.body = p.body[:0]
	p.funcs = p.funcs[:0]
	p.levels = p.levels[:0]
	p.decls = p.decls[:0]
	p.materials = append(p.materials[:0], sdfgraph.DefaultMaterial())

	seedAcc := Ident{Depth: 0, Index: 0, Role: RoleUnion}
	seedPos := Ident{Depth: 0, Index: 0, Role: RoleTransform}
	p.decls = append(p.decls, seedAcc, seedPos)
	p.body = append(p.body, "Hit map(vec3 p_in) {\n\t// init\n\tHit "...)
	p.body = seedAcc.AppendTo(p.body)
	p.body = append(p.body, " = "...)
	p.body = appendSeedHit(p.body)
	p.body = append(p.body, ";\n\tvec3 "...)
	p.body = seedPos.AppendTo(p.body)
	p.body = append(p.body, " = p_in;\n\n"...)
	err := p.pass(root, parcel{
		acc:   seedAcc,
		comb:  sdfgraph.UnionCombination(),
		pos:   seedPos,
		depth: 1,
	})
	if err != nil {
		return Result{}, err
	}
	p.body = append(p.body, "\n\treturn "...)
	p.body = seedAcc.AppendTo(p.body)
	p.body = append(p.body, ";\n}\n"...)

	p.out = p.appendMaterials(p.out[:0])
	p.out = append(p.out, p.funcs...)
	p.out = append(p.out, p.body...)
	p.out = append(p.out, '\n')
	p.out = append(p.out, castRay...)
	return Result{
		Source:    string(p.out),
		Decls:     append([]Ident(nil), p.decls...),
		Materials: append([]sdfgraph.Material(nil), p.materials...),
	}, nil
}

// WriteScene generates the scene source for root and writes it to w.
func (p *Passer) WriteScene(w io.Writer, root sdfgraph.Node) (int, error) {
	res, err := p.Pass(root)
	if err != nil {
		return 0, err
	}
	return io.WriteString(w, res.Source)
}

func (p *Passer) nextIndex(depth int) int {
	for len(p.levels) <= depth {
		p.levels = append(p.levels, 0)
	}
	idx := p.levels[depth]
	p.levels[depth]++
	return idx
}

func (p *Passer) pass(n sdfgraph.Node, parent parcel) error {
	depth := parent.depth
	index := p.nextIndex(depth)
	pos := Ident{Depth: depth, Index: index, Role: RoleTransform}
	var local Ident
	switch n.(type) {
	case *sdfgraph.Shape:
		local = Ident{Depth: depth, Index: index, Role: RoleShape}
		p.line(depth, "// shape")
	case *sdfgraph.Union:
		local = Ident{Depth: depth, Index: index, Role: RoleUnion}
		p.line(depth, "// union")
	default:
		return fmt.Errorf("unknown scene node %T at depth %d", n, depth)
	}
	p.line(depth, "{")
	ind := depth + 1
	p.decls = append(p.decls, pos, local)
	p.appendTransform(ind, pos, parent.pos, n.LocalTransform())

	switch n := n.(type) {
	case *sdfgraph.Shape:
		err := p.appendShape(ind, local, pos, n)
		if err != nil {
			return err
		}

	case *sdfgraph.Union:
		p.body = appendIndent(p.body, ind)
		p.body = append(p.body, "Hit "...)
		p.body = local.AppendTo(p.body)
		p.body = append(p.body, " = "...)
		p.body = appendSeedHit(p.body)
		p.body = append(p.body, ";\n"...)
		if len(n.Children) > 0 && !n.Combination.Op.Supported() {
			return fmt.Errorf("%w: %s on union %s", sdfgraph.ErrUnsupportedCombinator, n.Combination.Op, local)
		}
		p.line(ind, "// children")
		child := parcel{acc: local, comb: n.Combination, pos: pos, depth: depth + 1}
		for _, c := range n.Children {
			if c == nil {
				return fmt.Errorf("nil child of union %s", local)
			}
			err := p.pass(c, child)
			if err != nil {
				return err
			}
		}
	}

	p.body = append(p.body, '\n')
	p.line(ind, "// cleanup")
	p.body = appendIndent(p.body, ind)
	p.body = local.AppendTo(p.body)
	p.body = append(p.body, ".d = scale_correction("...)
	p.body = local.AppendTo(p.body)
	p.body = append(p.body, ".d, "...)
	p.body = n.LocalTransform().Scale.AppendGLSL(p.body)
	p.body = append(p.body, ");\n"...)

	err := p.appendClose(ind, local, parent)
	if err != nil {
		return err
	}
	p.line(depth, "}")
	return nil
}

// appendTransform declares pos as a copy of parentPos and applies scale,
// translation and rotation in that order. Zero translations and rotations
// leave a comment in place of the statement.
func (p *Passer) appendTransform(ind int, pos, parentPos Ident, tr sdfgraph.Transform) {
	b := appendIndent(p.body, ind)
	b = append(b, "vec3 "...)
	b = pos.AppendTo(b)
	b = append(b, " = "...)
	b = parentPos.AppendTo(b)
	b = append(b, ";\n"...)

	b = appendIndent(b, ind)
	b = pos.AppendTo(b)
	b = append(b, " /= "...)
	b = tr.Scale.AppendGLSL(b)
	b = append(b, ";\n"...)

	b = appendIndent(b, ind)
	if tr.Position.IsNonzero() {
		b = pos.AppendTo(b)
		b = append(b, " = move("...)
		b = pos.AppendTo(b)
		b = append(b, ", "...)
		b = tr.Position.AppendGLSL(b)
		b = append(b, ");\n"...)
	} else {
		b = append(b, "// position zero\n"...)
	}

	b = appendIndent(b, ind)
	if tr.Rotation.IsNonzero() {
		b = pos.AppendTo(b)
		b = append(b, " = rot3D("...)
		b = pos.AppendTo(b)
		b = append(b, ", "...)
		b = tr.Rotation.AppendGLSL(b)
		b = append(b, ");\n"...)
	} else {
		b = append(b, "// rotation zero\n"...)
	}
	p.body = append(b, '\n')
}

func (p *Passer) appendShape(ind int, local, pos Ident, s *sdfgraph.Shape) error {
	mat := len(p.materials)
	p.materials = append(p.materials, s.Material)
	b := appendIndent(p.body, ind)
	b = append(b, "Hit "...)
	b = local.AppendTo(b)
	b = append(b, " = Hit("...)
	switch s.SDF.Kind {
	case sdfgraph.SDFSphere:
		b = append(b, "sdSphere("...)
		b = pos.AppendTo(b)
		b = append(b, ", "...)
		b = s.SDF.Params.X.AppendGLSL(b)
		b = append(b, ')')
	case sdfgraph.SDFCube:
		b = append(b, "sdCube("...)
		b = pos.AppendTo(b)
		b = append(b, ", "...)
		b = s.SDF.Params.AppendGLSL(b)
		b = append(b, ')')
	case sdfgraph.SDFCustom:
		fn := Ident{Depth: local.Depth, Index: local.Index, Role: RoleCustom}
		p.appendCustomFunc(fn, s.SDF.Source)
		b = fn.AppendTo(b)
		b = append(b, '(')
		b = pos.AppendTo(b)
		b = append(b, ", "...)
		b = s.SDF.Params.AppendGLSL(b)
		b = append(b, ')')
	default:
		return fmt.Errorf("unknown SDF kind %s on shape %s", s.SDF.Kind, local)
	}
	b = append(b, ", "...)
	b = strconv.AppendInt(b, int64(mat), 10)
	p.body = append(b, ");\n"...)
	return nil
}

func (p *Passer) appendCustomFunc(fn Ident, src string) {
	b := append(p.funcs, "float "...)
	b = fn.AppendTo(b)
	b = append(b, "(vec3 p, vec3 params) {\n"...)
	b = append(b, src...)
	if len(src) > 0 && src[len(src)-1] != '\n' {
		b = append(b, '\n')
	}
	p.funcs = append(b, "}\n\n"...)
}

// appendClose folds local into the parent's accumulator with the parent's combination.
func (p *Passer) appendClose(ind int, local Ident, parent parcel) error {
	b := appendIndent(p.body, ind)
	b = parent.acc.AppendTo(b)
	switch parent.comb.Op {
	case sdfgraph.OpUnion:
		b = append(b, " = opUnion("...)
		b = local.AppendTo(b)
		b = append(b, ", "...)
		b = parent.acc.AppendTo(b)
	case sdfgraph.OpSmoothUnion:
		b = append(b, " = opSmoothUnion("...)
		b = local.AppendTo(b)
		b = append(b, ", "...)
		b = parent.acc.AppendTo(b)
		b = append(b, ", "...)
		b = parent.comb.Strength.AppendGLSL(b)
	default:
		return fmt.Errorf("%w: %s folding %s into %s", sdfgraph.ErrUnsupportedCombinator, parent.comb.Op, local, parent.acc)
	}
	p.body = append(b, ");\n"...)
	return nil
}

func (p *Passer) appendMaterials(b []byte) []byte {
	n := strconv.Itoa(len(p.materials))
	b = append(b, "const Material MATERIALS["...)
	b = append(b, n...)
	b = append(b, "] = Material["...)
	b = append(b, n...)
	b = append(b, "](\n"...)
	for i, m := range p.materials {
		b = append(b, '\t')
		b = AppendMaterial(b, m)
		if i != len(p.materials)-1 {
			b = append(b, ',')
		}
		b = append(b, '\n')
	}
	return append(b, ");\n\n"...)
}

func (p *Passer) line(ind int, s string) {
	p.body = appendIndent(p.body, ind)
	p.body = append(p.body, s...)
	p.body = append(p.body, '\n')
}

func appendSeedHit(b []byte) []byte {
	b = append(b, "Hit("...)
	b = sdfgraph.AppendFloat(b, sdfgraph.SeedDistance)
	return append(b, ", 0)"...)
}
