package element

import (
	"fmt"
	"math"

	"github.com/notargets/gosem/basis"
	"github.com/notargets/gosem/utils"
)

// Hex is the 3-D tensor product geometry kernel with a trilinear
// vertex map. Vertices follow the reference order: bottom face counter
// clockwise from (-1,-1,-1), then the top face repeating the cycle.
type Hex struct {
	tb  *basis.Table
	gid int
	vx  [8][3]float64

	n, nq int

	det   []float64 // determinant per point
	invJ  []float64 // 9 per point, rows are reference axes
	wdet  []float64 // det * tensor weight per point
	x     utils.Matrix
	vmat  utils.Matrix
	vertN []float64 // geometric shape values per point
	minDx float64
	diam  float64

	faceN [6][3]float64 // unit outward face normals
	faceC [6][3]float64 // face centroids

	gref, tmp []float64

	precomputed bool
}

func NewHex(gid int, tb *basis.Table, verts utils.Matrix) (h *Hex) {
	h = &Hex{tb: tb, gid: gid, n: tb.Np1D, nq: tb.Np}
	h.vmat = utils.NewMatrix(8, 3)
	for v := 0; v < 8; v++ {
		h.vx[v][0] = verts.At(v, 0)
		h.vx[v][1] = verts.At(v, 1)
		h.vx[v][2] = verts.At(v, 2)
		for c := 0; c < 3; c++ {
			h.vmat.Set(v, c, h.vx[v][c])
		}
	}
	for a := 0; a < 8; a++ {
		for b := a + 1; b < 8; b++ {
			var d float64
			for c := 0; c < 3; c++ {
				d += (h.vx[a][c] - h.vx[b][c]) * (h.vx[a][c] - h.vx[b][c])
			}
			if d = math.Sqrt(d); d > h.diam {
				h.diam = d
			}
		}
	}
	return
}

func (h *Hex) Dim() int           { return 3 }
func (h *Hex) Order() int         { return h.tb.P }
func (h *Hex) GlobalID() int      { return h.gid }
func (h *Hex) NumQuadPoints() int { return h.nq }

// hexShape evaluates the trilinear vertex functions, signs taken from
// the reference vertex coordinates.
func hexShape(r, s, t float64) (N [8]float64) {
	for v := 0; v < 8; v++ {
		sg := basis.HexVertices[v]
		N[v] = (1 + sg[0]*r) * (1 + sg[1]*s) * (1 + sg[2]*t) / 8
	}
	return
}

func hexShapeDeriv(r, s, t float64) (dNdr, dNds, dNdt [8]float64) {
	for v := 0; v < 8; v++ {
		sg := basis.HexVertices[v]
		dNdr[v] = sg[0] * (1 + sg[1]*s) * (1 + sg[2]*t) / 8
		dNds[v] = sg[1] * (1 + sg[0]*r) * (1 + sg[2]*t) / 8
		dNdt[v] = sg[2] * (1 + sg[0]*r) * (1 + sg[1]*s) / 8
	}
	return
}

func (h *Hex) Precompute() (err error) {
	var (
		n = h.n
		R = h.tb.R.DataP
	)
	h.det = make([]float64, h.nq)
	h.invJ = make([]float64, 9*h.nq)
	h.wdet = make([]float64, h.nq)
	h.x = utils.NewMatrix(h.nq, 3)
	h.vertN = make([]float64, 8*h.nq)
	h.gref = make([]float64, 3*h.nq)
	h.tmp = make([]float64, 3*h.nq)
	for k := 0; k < n; k++ {
		for j := 0; j < n; j++ {
			for i := 0; i < n; i++ {
				var (
					id               = i + n*(j+n*k)
					r, s, t          = R[i], R[j], R[k]
					N                = hexShape(r, s, t)
					dNdr, dNds, dNdt = hexShapeDeriv(r, s, t)
					J                [3][3]float64
				)
				for v := 0; v < 8; v++ {
					h.vertN[8*id+v] = N[v]
					for a := 0; a < 3; a++ {
						h.x.DataP[3*id+a] += N[v] * h.vx[v][a]
						J[a][0] += dNdr[v] * h.vx[v][a]
						J[a][1] += dNds[v] * h.vx[v][a]
						J[a][2] += dNdt[v] * h.vx[v][a]
					}
				}
				det := det3(J)
				if det <= 0 {
					return &GeometryError{Elem: h.gid, Point: id,
						What: fmt.Sprintf("non positive Jacobian determinant %v", det)}
				}
				h.det[id] = det
				h.wdet[id] = det * h.tb.WTensor[id]
				inv3(J, det, h.invJ[9*id:9*id+9])
			}
		}
	}
	h.buildHull()
	h.minDx = h.computeMinSpacing()
	h.precomputed = true
	return
}

func det3(J [3][3]float64) float64 {
	return J[0][0]*(J[1][1]*J[2][2]-J[1][2]*J[2][1]) -
		J[0][1]*(J[1][0]*J[2][2]-J[1][2]*J[2][0]) +
		J[0][2]*(J[1][0]*J[2][1]-J[1][1]*J[2][0])
}

// inv3 writes the inverse of J into out, rows of out are the
// reference axis derivatives d(r,s,t)/d(x,y,z).
func inv3(J [3][3]float64, det float64, out []float64) {
	out[0] = (J[1][1]*J[2][2] - J[1][2]*J[2][1]) / det
	out[1] = (J[0][2]*J[2][1] - J[0][1]*J[2][2]) / det
	out[2] = (J[0][1]*J[1][2] - J[0][2]*J[1][1]) / det
	out[3] = (J[1][2]*J[2][0] - J[1][0]*J[2][2]) / det
	out[4] = (J[0][0]*J[2][2] - J[0][2]*J[2][0]) / det
	out[5] = (J[0][2]*J[1][0] - J[0][0]*J[1][2]) / det
	out[6] = (J[1][0]*J[2][1] - J[1][1]*J[2][0]) / det
	out[7] = (J[0][1]*J[2][0] - J[0][0]*J[2][1]) / det
	out[8] = (J[0][0]*J[1][1] - J[0][1]*J[1][0]) / det
}

// buildHull caches a unit outward normal and centroid per face, the
// normal taken as the cross product of the face diagonals so mildly
// warped faces get their average plane.
func (h *Hex) buildHull() {
	var cen [3]float64
	for v := 0; v < 8; v++ {
		for c := 0; c < 3; c++ {
			cen[c] += h.vx[v][c] / 8
		}
	}
	for f, fc := range basis.HexFaces {
		var fcen, d1, d2, nrm [3]float64
		for c := 0; c < 3; c++ {
			fcen[c] = (h.vx[fc[0]][c] + h.vx[fc[1]][c] + h.vx[fc[2]][c] + h.vx[fc[3]][c]) / 4
			d1[c] = h.vx[fc[2]][c] - h.vx[fc[0]][c]
			d2[c] = h.vx[fc[3]][c] - h.vx[fc[1]][c]
		}
		nrm[0] = d1[1]*d2[2] - d1[2]*d2[1]
		nrm[1] = d1[2]*d2[0] - d1[0]*d2[2]
		nrm[2] = d1[0]*d2[1] - d1[1]*d2[0]
		var mag, outward float64
		for c := 0; c < 3; c++ {
			mag += nrm[c] * nrm[c]
			outward += nrm[c] * (fcen[c] - cen[c])
		}
		mag = math.Sqrt(mag)
		if outward < 0 {
			mag = -mag
		}
		for c := 0; c < 3; c++ {
			h.faceN[f][c] = nrm[c] / mag
			h.faceC[f][c] = fcen[c]
		}
	}
}

func (h *Hex) checkReady() {
	if !h.precomputed {
		panic(fmt.Errorf("element %d: operator use before Precompute", h.gid))
	}
}

func (h *Hex) Gradient(field, grad []float64) {
	h.checkReady()
	var (
		n  = h.n
		nq = h.nq
		Dr = h.tb.Dr.DataP
		gr = h.gref[:nq]
		gs = h.gref[nq : 2*nq]
		gt = h.gref[2*nq : 3*nq]
	)
	for k := 0; k < n; k++ {
		for j := 0; j < n; j++ {
			for i := 0; i < n; i++ {
				var dr, ds, dt float64
				for m := 0; m < n; m++ {
					dr += Dr[i*n+m] * field[m+n*(j+n*k)]
					ds += Dr[j*n+m] * field[i+n*(m+n*k)]
					dt += Dr[k*n+m] * field[i+n*(j+n*m)]
				}
				id := i + n*(j+n*k)
				gr[id], gs[id], gt[id] = dr, ds, dt
			}
		}
	}
	for id := 0; id < nq; id++ {
		iv := h.invJ[9*id:]
		grad[id] = iv[0]*gr[id] + iv[3]*gs[id] + iv[6]*gt[id]
		grad[nq+id] = iv[1]*gr[id] + iv[4]*gs[id] + iv[7]*gt[id]
		grad[2*nq+id] = iv[2]*gr[id] + iv[5]*gs[id] + iv[8]*gt[id]
	}
}

func (h *Hex) ApplyTestAndIntegrate(field, out []float64) {
	h.checkReady()
	for id := 0; id < h.nq; id++ {
		out[id] = field[id] * h.wdet[id]
	}
}

func (h *Hex) ApplyGradTestAndIntegrate(vec, out []float64) {
	h.checkReady()
	var (
		n  = h.n
		nq = h.nq
		Dr = h.tb.Dr.DataP
		tr = h.tmp[:nq]
		ts = h.tmp[nq : 2*nq]
		tt = h.tmp[2*nq : 3*nq]
	)
	// rotate into reference axes and weight, then contract against the
	// transposed differentiation operator along each axis
	for id := 0; id < nq; id++ {
		var (
			iv         = h.invJ[9*id:]
			m          = h.wdet[id]
			vx, vy, vz = vec[id], vec[nq+id], vec[2*nq+id]
		)
		tr[id] = m * (iv[0]*vx + iv[1]*vy + iv[2]*vz)
		ts[id] = m * (iv[3]*vx + iv[4]*vy + iv[5]*vz)
		tt[id] = m * (iv[6]*vx + iv[7]*vy + iv[8]*vz)
	}
	for k := 0; k < n; k++ {
		for j := 0; j < n; j++ {
			for i := 0; i < n; i++ {
				var sum float64
				for m := 0; m < n; m++ {
					sum += Dr[m*n+i] * tr[m+n*(j+n*k)]
					sum += Dr[m*n+j] * ts[i+n*(m+n*k)]
					sum += Dr[m*n+k] * tt[i+n*(j+n*m)]
				}
				out[i+n*(j+n*k)] = sum
			}
		}
	}
}

// insideHull tests the point against each face plane, tolerant at the
// boundary so shared vertices, edges and faces test inside from every
// adjacent element.
func (h *Hex) insideHull(p []float64) bool {
	var (
		tol = 1.e-10 * h.diam
	)
	for f := 0; f < 6; f++ {
		var d float64
		for c := 0; c < 3; c++ {
			d += h.faceN[f][c] * (p[c] - h.faceC[f][c])
		}
		if d > tol {
			return false
		}
	}
	return true
}

func (h *Hex) Localize(p []float64) (ref []float64, ok bool) {
	h.checkReady()
	if !h.insideHull(p) {
		return nil, false
	}
	var (
		r, s, t float64
		tol     = 1.e-13 * h.diam
	)
	for iter := 0; iter < 25; iter++ {
		var (
			N = hexShape(r, s, t)
			f [3]float64
		)
		for v := 0; v < 8; v++ {
			for c := 0; c < 3; c++ {
				f[c] += N[v] * h.vx[v][c]
			}
		}
		for c := 0; c < 3; c++ {
			f[c] -= p[c]
		}
		if math.Abs(f[0])+math.Abs(f[1])+math.Abs(f[2]) < tol {
			break
		}
		var (
			dNdr, dNds, dNdt = hexShapeDeriv(r, s, t)
			J                [3][3]float64
			inv              [9]float64
		)
		for v := 0; v < 8; v++ {
			for c := 0; c < 3; c++ {
				J[c][0] += dNdr[v] * h.vx[v][c]
				J[c][1] += dNds[v] * h.vx[v][c]
				J[c][2] += dNdt[v] * h.vx[v][c]
			}
		}
		inv3(J, det3(J), inv[:])
		r -= inv[0]*f[0] + inv[1]*f[1] + inv[2]*f[2]
		s -= inv[3]*f[0] + inv[4]*f[1] + inv[5]*f[2]
		t -= inv[6]*f[0] + inv[7]*f[1] + inv[8]*f[2]
	}
	r = clampRef(r)
	s = clampRef(s)
	t = clampRef(t)
	if math.Abs(r) > 1 || math.Abs(s) > 1 || math.Abs(t) > 1 {
		return nil, false
	}
	return []float64{r, s, t}, true
}

func (h *Hex) DeltaCoefficients(ref []float64) (c []float64) {
	h.checkReady()
	c = h.tb.Interpolate(ref[0], ref[1], ref[2])
	for id := range c {
		c[id] /= h.wdet[id]
	}
	return
}

func (h *Hex) InterpolateAtPoint(field []float64, ref []float64) (val float64) {
	h.checkReady()
	l := h.tb.Interpolate(ref[0], ref[1], ref[2])
	for id, lv := range l {
		val += lv * field[id]
	}
	return
}

func (h *Hex) InterpolateVertexValues(vertVals []float64) (out []float64) {
	h.checkReady()
	out = make([]float64, h.nq)
	for id := 0; id < h.nq; id++ {
		for v := 0; v < 8; v++ {
			out[id] += h.vertN[8*id+v] * vertVals[v]
		}
	}
	return
}

func (h *Hex) NodeCoordinates() utils.Matrix   { h.checkReady(); return h.x }
func (h *Hex) VertexCoordinates() utils.Matrix { return h.vmat }
func (h *Hex) Determinants() []float64         { h.checkReady(); return h.det }
func (h *Hex) MinNodeSpacing() float64         { h.checkReady(); return h.minDx }

func (h *Hex) computeMinSpacing() (min float64) {
	var (
		n = h.n
		x = h.x.DataP
	)
	min = math.MaxFloat64
	dist := func(a, b int) float64 {
		var d float64
		for c := 0; c < 3; c++ {
			d += (x[3*a+c] - x[3*b+c]) * (x[3*a+c] - x[3*b+c])
		}
		return math.Sqrt(d)
	}
	for k := 0; k < n; k++ {
		for j := 0; j < n; j++ {
			for i := 0; i < n; i++ {
				id := i + n*(j+n*k)
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
				if k < n-1 {
					if d := dist(id, id+n*n); d < min {
						min = d
					}
				}
			}
		}
	}
	return
}
