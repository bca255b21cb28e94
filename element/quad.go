package element

import (
	"fmt"
	"math"

	"github.com/notargets/gosem/basis"
	"github.com/notargets/gosem/utils"
)

// Quad is the 2-D tensor product geometry kernel with a bilinear
// vertex map. Vertices follow the counter clockwise reference order.
type Quad struct {
	tb  *basis.Table
	gid int
	vx  [4][2]float64

	n, nq int

	det   []float64 // determinant per point
	invJ  []float64 // 4 per point, rows are reference axes
	wdet  []float64 // det * tensor weight per point
	x     utils.Matrix
	vmat  utils.Matrix
	vertN []float64 // geometric shape values per point
	minDx float64
	diam  float64

	gref, tmp []float64

	precomputed bool
}

func NewQuad(gid int, tb *basis.Table, verts utils.Matrix) (q *Quad) {
	q = &Quad{tb: tb, gid: gid, n: tb.Np1D, nq: tb.Np}
	q.vmat = utils.NewMatrix(4, 2)
	for v := 0; v < 4; v++ {
		q.vx[v][0] = verts.At(v, 0)
		q.vx[v][1] = verts.At(v, 1)
		q.vmat.Set(v, 0, q.vx[v][0])
		q.vmat.Set(v, 1, q.vx[v][1])
	}
	for a := 0; a < 4; a++ {
		for b := a + 1; b < 4; b++ {
			d := math.Hypot(q.vx[a][0]-q.vx[b][0], q.vx[a][1]-q.vx[b][1])
			if d > q.diam {
				q.diam = d
			}
		}
	}
	return
}

func (q *Quad) Dim() int           { return 2 }
func (q *Quad) Order() int         { return q.tb.P }
func (q *Quad) GlobalID() int      { return q.gid }
func (q *Quad) NumQuadPoints() int { return q.nq }

// quadShape evaluates the bilinear vertex functions.
func quadShape(r, s float64) (N [4]float64) {
	N[0] = (1 - r) * (1 - s) / 4
	N[1] = (1 + r) * (1 - s) / 4
	N[2] = (1 + r) * (1 + s) / 4
	N[3] = (1 - r) * (1 + s) / 4
	return
}

func quadShapeDeriv(r, s float64) (dNdr, dNds [4]float64) {
	dNdr[0], dNdr[1] = -(1-s)/4, (1-s)/4
	dNdr[2], dNdr[3] = (1+s)/4, -(1+s)/4
	dNds[0], dNds[1] = -(1-r)/4, -(1+r)/4
	dNds[2], dNds[3] = (1+r)/4, (1-r)/4
	return
}

func (q *Quad) Precompute() (err error) {
	var (
		n = q.n
		R = q.tb.R.DataP
	)
	q.det = make([]float64, q.nq)
	q.invJ = make([]float64, 4*q.nq)
	q.wdet = make([]float64, q.nq)
	q.x = utils.NewMatrix(q.nq, 2)
	q.vertN = make([]float64, 4*q.nq)
	q.gref = make([]float64, 2*q.nq)
	q.tmp = make([]float64, 2*q.nq)
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			var (
				id         = i + n*j
				r, s       = R[i], R[j]
				N          = quadShape(r, s)
				dNdr, dNds = quadShapeDeriv(r, s)
				J          [2][2]float64
			)
			for v := 0; v < 4; v++ {
				q.vertN[4*id+v] = N[v]
				q.x.DataP[2*id] += N[v] * q.vx[v][0]
				q.x.DataP[2*id+1] += N[v] * q.vx[v][1]
				J[0][0] += dNdr[v] * q.vx[v][0]
				J[0][1] += dNds[v] * q.vx[v][0]
				J[1][0] += dNdr[v] * q.vx[v][1]
				J[1][1] += dNds[v] * q.vx[v][1]
			}
			det := J[0][0]*J[1][1] - J[0][1]*J[1][0]
			if det <= 0 {
				return &GeometryError{Elem: q.gid, Point: id,
					What: fmt.Sprintf("non positive Jacobian determinant %v", det)}
			}
			q.det[id] = det
			q.wdet[id] = det * q.tb.WTensor[id]
			q.invJ[4*id+0] = J[1][1] / det
			q.invJ[4*id+1] = -J[0][1] / det
			q.invJ[4*id+2] = -J[1][0] / det
			q.invJ[4*id+3] = J[0][0] / det
		}
	}
	q.minDx = q.computeMinSpacing()
	q.precomputed = true
	return
}

func (q *Quad) checkReady() {
	if !q.precomputed {
		panic(fmt.Errorf("element %d: operator use before Precompute", q.gid))
	}
}

func (q *Quad) Gradient(field, grad []float64) {
	q.checkReady()
	var (
		n  = q.n
		nq = q.nq
		Dr = q.tb.Dr.DataP
		gr = q.gref[:nq]
		gs = q.gref[nq : 2*nq]
	)
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			var dr, ds float64
			for m := 0; m < n; m++ {
				dr += Dr[i*n+m] * field[m+n*j]
				ds += Dr[j*n+m] * field[i+n*m]
			}
			gr[i+n*j] = dr
			gs[i+n*j] = ds
		}
	}
	for id := 0; id < nq; id++ {
		iv := q.invJ[4*id:]
		grad[id] = iv[0]*gr[id] + iv[2]*gs[id]
		grad[nq+id] = iv[1]*gr[id] + iv[3]*gs[id]
	}
}

func (q *Quad) ApplyTestAndIntegrate(field, out []float64) {
	q.checkReady()
	for id := 0; id < q.nq; id++ {
		out[id] = field[id] * q.wdet[id]
	}
}

func (q *Quad) ApplyGradTestAndIntegrate(vec, out []float64) {
	q.checkReady()
	var (
		n  = q.n
		nq = q.nq
		Dr = q.tb.Dr.DataP
		tr = q.tmp[:nq]
		ts = q.tmp[nq : 2*nq]
	)
	// rotate into reference axes and weight, then contract against the
	// transposed differentiation operator along each axis
	for id := 0; id < nq; id++ {
		var (
			iv     = q.invJ[4*id:]
			m      = q.wdet[id]
			vx, vy = vec[id], vec[nq+id]
		)
		tr[id] = m * (iv[0]*vx + iv[1]*vy)
		ts[id] = m * (iv[2]*vx + iv[3]*vy)
	}
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			var sum float64
			for m := 0; m < n; m++ {
				sum += Dr[m*n+i] * tr[m+n*j]
				sum += Dr[m*n+j] * ts[i+n*m]
			}
			out[i+n*j] = sum
		}
	}
}

// insideHull is the counter clockwise cross product containment test,
// tolerant at the boundary so shared vertices and edges test inside
// from every adjacent element.
func (q *Quad) insideHull(px, py float64) bool {
	var (
		tol = 1.e-10 * q.diam * q.diam
	)
	for e := 0; e < 4; e++ {
		var (
			a     = q.vx[e]
			b     = q.vx[(e+1)%4]
			cross = (b[0]-a[0])*(py-a[1]) - (b[1]-a[1])*(px-a[0])
		)
		if cross < -tol {
			return false
		}
	}
	return true
}

func (q *Quad) Localize(p []float64) (ref []float64, ok bool) {
	q.checkReady()
	if !q.insideHull(p[0], p[1]) {
		return nil, false
	}
	var (
		r, s float64
		tol  = 1.e-13 * q.diam
	)
	for iter := 0; iter < 25; iter++ {
		var (
			N      = quadShape(r, s)
			fx, fy float64
		)
		for v := 0; v < 4; v++ {
			fx += N[v] * q.vx[v][0]
			fy += N[v] * q.vx[v][1]
		}
		fx -= p[0]
		fy -= p[1]
		if math.Abs(fx)+math.Abs(fy) < tol {
			break
		}
		var (
			dNdr, dNds = quadShapeDeriv(r, s)
			J          [2][2]float64
		)
		for v := 0; v < 4; v++ {
			J[0][0] += dNdr[v] * q.vx[v][0]
			J[0][1] += dNds[v] * q.vx[v][0]
			J[1][0] += dNdr[v] * q.vx[v][1]
			J[1][1] += dNds[v] * q.vx[v][1]
		}
		det := J[0][0]*J[1][1] - J[0][1]*J[1][0]
		r -= (J[1][1]*fx - J[0][1]*fy) / det
		s -= (-J[1][0]*fx + J[0][0]*fy) / det
	}
	r = clampRef(r)
	s = clampRef(s)
	if math.Abs(r) > 1 || math.Abs(s) > 1 {
		return nil, false
	}
	return []float64{r, s}, true
}

// clampRef snaps values a hair outside [-1,1] back onto the boundary.
func clampRef(v float64) float64 {
	const slack = 1.e-9
	switch {
	case v > 1 && v < 1+slack:
		return 1
	case v < -1 && v > -1-slack:
		return -1
	}
	return v
}

func (q *Quad) DeltaCoefficients(ref []float64) (c []float64) {
	q.checkReady()
	c = q.tb.Interpolate(ref[0], ref[1])
	for id := range c {
		c[id] /= q.wdet[id]
	}
	return
}

func (q *Quad) InterpolateAtPoint(field []float64, ref []float64) (val float64) {
	q.checkReady()
	l := q.tb.Interpolate(ref[0], ref[1])
	for id, lv := range l {
		val += lv * field[id]
	}
	return
}

func (q *Quad) InterpolateVertexValues(vertVals []float64) (out []float64) {
	q.checkReady()
	out = make([]float64, q.nq)
	for id := 0; id < q.nq; id++ {
		for v := 0; v < 4; v++ {
			out[id] += q.vertN[4*id+v] * vertVals[v]
		}
	}
	return
}

func (q *Quad) NodeCoordinates() utils.Matrix   { q.checkReady(); return q.x }
func (q *Quad) VertexCoordinates() utils.Matrix { return q.vmat }
func (q *Quad) Determinants() []float64         { q.checkReady(); return q.det }
func (q *Quad) MinNodeSpacing() float64         { q.checkReady(); return q.minDx }

func (q *Quad) computeMinSpacing() (min float64) {
	var (
		n = q.n
		x = q.x.DataP
	)
	min = math.MaxFloat64
	dist := func(a, b int) float64 {
		return math.Hypot(x[2*a]-x[2*b], x[2*a+1]-x[2*b+1])
	}
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			id := i + n*j
			if i < n-1 {
				if d := dist(id, id+1); d < min {
					min = d
				}
			}
			if j < n-1 {
				if d := dist(id, id+n); d < min {
					min = d
				}
			}
		}
	}
	return
}
