package rules

import (
	"errors"
	"math"

	"github.com/gregoiredehame/checker/internal/ir"
	"github.com/gregoiredehame/checker/internal/scene"
)

var (
	translateAttrs = []string{"translateX", "translateY", "translateZ"}
	rotateAttrs    = []string{"rotateX", "rotateY", "rotateZ"}
	scaleAttrs     = []string{"scaleX", "scaleY", "scaleZ"}
	pivotAttrs     = []string{"rotatePivotX", "rotatePivotY", "rotatePivotZ", "scalePivotX", "scalePivotY", "scalePivotZ"}
)

// mat4 is row-major and applied to column vectors.
type mat4 [4][4]float64

func identity() mat4 {
	return mat4{{1, 0, 0, 0}, {0, 1, 0, 0}, {0, 0, 1, 0}, {0, 0, 0, 1}}
}

func (a mat4) mul(b mat4) mat4 {
	var out mat4
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			for k := 0; k < 4; k++ {
				out[i][j] += a[i][k] * b[k][j]
			}
		}
	}
	return out
}

func (a mat4) point(p scene.Vec3) scene.Vec3 {
	return scene.Vec3{
		a[0][0]*p[0] + a[0][1]*p[1] + a[0][2]*p[2] + a[0][3],
		a[1][0]*p[0] + a[1][1]*p[1] + a[1][2]*p[2] + a[1][3],
		a[2][0]*p[0] + a[2][1]*p[1] + a[2][2]*p[2] + a[2][3],
	}
}

func (a mat4) vector(v scene.Vec3) scene.Vec3 {
	return scene.Vec3{
		a[0][0]*v[0] + a[0][1]*v[1] + a[0][2]*v[2],
		a[1][0]*v[0] + a[1][1]*v[1] + a[1][2]*v[2],
		a[2][0]*v[0] + a[2][1]*v[1] + a[2][2]*v[2],
	}
}

// trs composes T * Rz * Ry * Rx * S, rotation in degrees (XYZ order).
func trs(t, r, s scene.Vec3) mat4 {
	rad := func(d float64) float64 { return d * math.Pi / 180 }
	cx, sx := math.Cos(rad(r[0])), math.Sin(rad(r[0]))
	cy, sy := math.Cos(rad(r[1])), math.Sin(rad(r[1]))
	cz, sz := math.Cos(rad(r[2])), math.Sin(rad(r[2]))
	rx := mat4{{1, 0, 0, 0}, {0, cx, -sx, 0}, {0, sx, cx, 0}, {0, 0, 0, 1}}
	ry := mat4{{cy, 0, sy, 0}, {0, 1, 0, 0}, {-sy, 0, cy, 0}, {0, 0, 0, 1}}
	rz := mat4{{cz, -sz, 0, 0}, {sz, cz, 0, 0}, {0, 0, 1, 0}, {0, 0, 0, 1}}
	sc := mat4{{s[0], 0, 0, 0}, {0, s[1], 0, 0}, {0, 0, s[2], 0}, {0, 0, 0, 1}}
	tr := identity()
	tr[0][3], tr[1][3], tr[2][3] = t[0], t[1], t[2]
	return tr.mul(rz).mul(ry).mul(rx).mul(sc)
}

func readVec(s scene.Scene, e ir.Entity, names []string, def float64) (scene.Vec3, error) {
	v := scene.Vec3{def, def, def}
	for i, n := range names {
		raw, err := s.GetAttribute(e, n)
		if errors.Is(err, scene.ErrNoAttribute) {
			continue
		}
		if err != nil {
			return v, err
		}
		if f, ok := asFloat(raw); ok {
			v[i] = f
		}
	}
	return v, nil
}

type xform struct{ t, r, s scene.Vec3 }

func readXform(s scene.Scene, e ir.Entity) (xform, error) {
	var x xform
	var err error
	if x.t, err = readVec(s, e, translateAttrs, 0); err != nil {
		return x, err
	}
	if x.r, err = readVec(s, e, rotateAttrs, 0); err != nil {
		return x, err
	}
	x.s, err = readVec(s, e, scaleAttrs, 1)
	return x, err
}

func (x xform) identity(eps float64) bool {
	for i := 0; i < 3; i++ {
		if !nearly(x.t[i], 0, eps) || !nearly(x.r[i], 0, eps) || !nearly(x.s[i], 1, eps) {
			return false
		}
	}
	return true
}

func (x xform) matrix() mat4 { return trs(x.t, x.r, x.s) }

// setChannel writes an attribute, unlocking it first. Missing attributes are skipped.
func setChannel(s scene.Scene, e ir.Entity, name string, v any) error {
	info, err := s.AttributeInfo(e, name)
	if errors.Is(err, scene.ErrNoAttribute) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.Locked {
		info.Locked = false
		if err := s.SetAttributeInfo(e, name, info); err != nil {
			return err
		}
	}
	return s.SetAttribute(e, name, v)
}

// freeze bakes the transform of e, and of every transform below it, into the
// points of the mesh shapes underneath, then resets those transforms.
func freeze(s scene.Scene, e ir.Entity, acc mat4) error {
	x, err := readXform(s, e)
	if err != nil {
		return err
	}
	m := acc.mul(x.matrix())
	children, err := s.Children(e)
	if err != nil {
		return err
	}
	for _, c := range children {
		typ, err := s.TypeOf(c)
		if err != nil {
			return err
		}
		switch typ {
		case "mesh":
			if err := bakeMesh(s, c, m); err != nil {
				return err
			}
		case "transform", "joint":
			if err := freeze(s, c, m); err != nil {
				return err
			}
		}
	}
	for i := 0; i < 3; i++ {
		if err := setChannel(s, e, translateAttrs[i], 0.0); err != nil {
			return err
		}
		if err := setChannel(s, e, rotateAttrs[i], 0.0); err != nil {
			return err
		}
		if err := setChannel(s, e, scaleAttrs[i], 1.0); err != nil {
			return err
		}
	}
	return nil
}

func bakeMesh(s scene.Scene, shape ir.Entity, m mat4) error {
	mesh, err := s.Mesh(shape)
	if err != nil {
		return err
	}
	for i, p := range mesh.Points {
		mesh.Points[i] = m.point(p)
	}
	for i, t := range mesh.Tweaks {
		mesh.Tweaks[i] = m.vector(t)
	}
	return s.SetMesh(shape, mesh)
}
