// Package element implements the reference geometry kernels: the per
// element operators that turn basis derivatives into physical space
// gradients, weak form integrals and point localization through the
// cached element Jacobian.
package element

import (
	"fmt"

	"github.com/notargets/gosem/utils"
)

// Shape is the narrow geometry kernel interface every physics kernel
// composes over. Implementations cache Jacobian data in Precompute and
// are safe for use by a single goroutine thereafter.
type Shape interface {
	Dim() int
	Order() int
	GlobalID() int
	NumQuadPoints() int

	// Precompute builds the per quadrature point Jacobian, inverse and
	// determinant from the vertex coordinates. Must be called once
	// before any operator. A non positive determinant fails.
	Precompute() error

	// Gradient computes the physical space gradient of a field given in
	// canonical ordering. grad is axis major with length Dim()*Nq:
	// component a of point q lands in grad[a*Nq+q].
	Gradient(field, grad []float64)

	// ApplyTestAndIntegrate returns field*det*weight per point, the
	// weak form mass and source contribution.
	ApplyTestAndIntegrate(field, out []float64)

	// ApplyGradTestAndIntegrate applies the exact adjoint of Gradient
	// combined with integration to an axis major vector field.
	ApplyGradTestAndIntegrate(vec, out []float64)

	// Localize runs the convex hull test and, when the point lies
	// inside, inverts the coordinate map. ok is false outside.
	Localize(p []float64) (ref []float64, ok bool)

	// DeltaCoefficients returns per node coefficients reproducing a
	// Dirac delta at the reference point under ApplyTestAndIntegrate.
	DeltaCoefficients(ref []float64) []float64

	// InterpolateAtPoint evaluates a canonical-ordered field at an
	// arbitrary reference point.
	InterpolateAtPoint(field []float64, ref []float64) float64

	// InterpolateVertexValues lifts per vertex samples to all nodes
	// through the geometric shape functions.
	InterpolateVertexValues(vertVals []float64) []float64

	// NodeCoordinates returns the Nq x Dim physical coordinates of the
	// quadrature nodes.
	NodeCoordinates() utils.Matrix

	// VertexCoordinates returns the NumVerts x Dim vertex coordinates
	// in reference order, used by material sampling.
	VertexCoordinates() utils.Matrix

	// Determinants exposes the cached per point Jacobian determinants.
	Determinants() []float64

	// MinNodeSpacing is the smallest physical distance between
	// neighboring nodes, the element's CFL radius estimate.
	MinNodeSpacing() float64
}

// GeometryError is fatal: a degenerate or inverted element, reported
// before any stepping happens.
type GeometryError struct {
	Elem  int
	Point int
	What  string
}

func (e *GeometryError) Error() string {
	return fmt.Sprintf("geometry error in element %d (point %d): %s", e.Elem, e.Point, e.What)
}
