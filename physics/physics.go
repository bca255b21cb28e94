// Package physics composes constitutive laws over the reference
// geometry kernels: each variant turns element field views into mass,
// stiffness and source contributions for the time integrator.
package physics

import (
	"fmt"

	"github.com/notargets/gosem/basis"
	"github.com/notargets/gosem/element"
)

// Physics is the kernel interface the integrator drives once per
// element per step. AttachMaterial must precede mass or stiffness
// evaluation.
type Physics interface {
	Shape() element.Shape

	// AttachMaterial samples the model at the element vertices and
	// interpolates each required parameter to the quadrature points.
	AttachMaterial(m Model) error

	// PrepareStiffness caches the constitutive coefficients per
	// quadrature point. Prepared and direct stiffness paths produce
	// identical bits.
	PrepareStiffness() error

	// MassContribution writes the diagonal mass entries in canonical
	// ordering.
	MassContribution(out []float64) error

	// StiffnessAction applies the weak form stiffness operator to the
	// pulled fields, one output slice per push field.
	StiffnessAction(fields, out [][]float64) error

	// SourceTerm adds the attached excitations at the given time into
	// the push component slices.
	SourceTerm(time float64, out [][]float64)

	// SurfaceIntegral adds coupling layer terms. No coupling layers
	// ship, the contribution is zero.
	SurfaceIntegral(fields, out [][]float64)

	// PullFieldNames and PushFieldNames declare the named global fields
	// this variant reads and writes, in slice order matching the
	// fields/out arguments above.
	PullFieldNames() []string
	PushFieldNames() []string

	// AttachSource registers an excitation resolved to this element.
	AttachSource(s PointSource)

	// MaxWavespeed is the fastest signal speed over the quadrature
	// points, the element CFL bound. Valid after AttachMaterial.
	MaxWavespeed() float64
}

// PointSource is an excitation resolved onto one element: delta
// coefficients cached at attachment, a time function, and a per push
// component scaling (direction cosines for vector physics).
type PointSource struct {
	Coeffs []float64
	Scale  []float64
	Fire   func(time float64) float64
}

var variants = map[string]func(sh element.Shape) (Physics, error){
	"acoustic2d": NewAcoustic2D,
	"acoustic3d": NewAcoustic3D,
	"elastic3d":  NewElastic3D,
}

// New builds the physics kernel named in configuration over the given
// geometry kernel.
func New(name string, sh element.Shape) (Physics, error) {
	ctor, ok := variants[name]
	if !ok {
		return nil, basis.NewConfigurationError("unknown physics variant %q", name)
	}
	return ctor(sh)
}

// base carries what every kernel shares: the geometry kernel, the
// material parameters at quadrature points, attached sources.
type base struct {
	sh       element.Shape
	params   map[string][]float64
	sources  []PointSource
	attached bool
}

func (b *base) Shape() element.Shape { return b.sh }

func (b *base) AttachSource(s PointSource) { b.sources = append(b.sources, s) }

// attach samples the model at the element vertices and lifts each
// parameter to the quadrature points through the vertex shape
// functions. A lookup miss is fatal, never defaulted.
func (b *base) attach(m Model, names ...string) error {
	var (
		verts   = b.sh.VertexCoordinates()
		nv, dim = verts.Dims()
		vv      = make([]float64, nv)
		pt      = make([]float64, dim)
	)
	b.params = make(map[string][]float64, len(names))
	for _, name := range names {
		for v := 0; v < nv; v++ {
			for c := 0; c < dim; c++ {
				pt[c] = verts.At(v, c)
			}
			val, err := m.ValueAt(pt, name)
			if err != nil {
				return fmt.Errorf("element %d: material parameter %s: %w",
					b.sh.GlobalID(), name, err)
			}
			vv[v] = val
		}
		b.params[name] = b.sh.InterpolateVertexValues(vv)
	}
	b.attached = true
	return nil
}

func (b *base) checkAttached() error {
	if !b.attached {
		return basis.NewConfigurationError(
			"element %d: operator requested before AttachMaterial", b.sh.GlobalID())
	}
	return nil
}

func (b *base) paramMax(name string) (max float64) {
	for _, v := range b.params[name] {
		if v > max {
			max = v
		}
	}
	return
}

// SourceTerm adds f(t) scaled delta coefficients into the push
// components, one outer product per attached source.
func (b *base) SourceTerm(time float64, out [][]float64) {
	for _, s := range b.sources {
		f := s.Fire(time)
		for c, sc := range s.Scale {
			if sc == 0 {
				continue
			}
			for i, cf := range s.Coeffs {
				out[c][i] += sc * f * cf
			}
		}
	}
}

// SurfaceIntegral is the physics coupling hook. Zero contribution.
func (b *base) SurfaceIntegral(fields, out [][]float64) {}
