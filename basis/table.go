package basis

import (
	"math"
	"sync"

	"github.com/notargets/gosem/utils"
)

type Shape uint8

const (
	Quad Shape = iota
	Hex
	Tri
	Tet
)

func (s Shape) String() string {
	switch s {
	case Quad:
		return "quad"
	case Hex:
		return "hex"
	case Tri:
		return "tri"
	case Tet:
		return "tet"
	}
	return "unknown"
}

func (s Shape) Dim() int {
	switch s {
	case Quad, Tri:
		return 2
	default:
		return 3
	}
}

func (s Shape) NumVerts() int {
	switch s {
	case Quad, Tet:
		return 4
	case Hex:
		return 8
	default:
		return 3
	}
}

const (
	MinOrder = 1
	MaxOrder = 10
)

/*
Reference conventions for the tensor product shapes.

Canonical node id = i + n*j (+ n*n*k) with n = P+1, r running fastest.
Vertices are corner nodes ordered counter clockwise from (-1,-1) on the
bottom, the hex repeats the cycle on the top layer. Edges connect
vertex pairs, interior nodes listed from the first vertex toward the
second. Faces are corner cycles (c0,c1,c2,c3) with c1 adjacent to c0
along the face u axis and c3 along the face v axis; face interior
nodes run row major in (u,v).
*/
var (
	QuadVertices = [4][2]float64{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}
	HexVertices  = [8][3]float64{
		{-1, -1, -1}, {1, -1, -1}, {1, 1, -1}, {-1, 1, -1},
		{-1, -1, 1}, {1, -1, 1}, {1, 1, 1}, {-1, 1, 1},
	}

	quadVertGrid = [4][3]int{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}}
	hexVertGrid  = [8][3]int{
		{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0},
		{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1},
	}

	QuadEdges = [4][2]int{{0, 1}, {1, 2}, {2, 3}, {3, 0}}
	HexEdges  = [12][2]int{
		{0, 1}, {1, 2}, {2, 3}, {3, 0},
		{4, 5}, {5, 6}, {6, 7}, {7, 4},
		{0, 4}, {1, 5}, {2, 6}, {3, 7},
	}
	HexFaces = [6][4]int{
		{0, 1, 2, 3}, // t = -1
		{4, 5, 6, 7}, // t = +1
		{0, 1, 5, 4}, // s = -1
		{1, 2, 6, 5}, // r = +1
		{3, 2, 6, 7}, // s = +1
		{0, 3, 7, 4}, // r = -1
	}
)

// Table holds the per (shape, order) basis data every element kernel
// consumes: 1-D GLL nodes and weights, the 1-D differentiation matrix,
// tensor quadrature weights, and the canonical-to-entity-grouped
// closure segments. Immutable once built.
type Table struct {
	Shape Shape
	P     int // polynomial order
	Np1D  int // nodes per axis, P+1
	Np    int // total nodes, (P+1)^d

	R  utils.Vector // 1-D GLL nodes
	W  utils.Vector // 1-D GLL weights
	Dr utils.Matrix // 1-D differentiation matrix, read only
	V  utils.Matrix // 1-D Vandermonde, read only

	WTensor []float64 // tensor weight per canonical node

	corners  []int
	edgeSegs [][]int
	faceSegs [][]int
	volSeg   []int
	bndClos  [][]int // all nodes on a local boundary entity

	bary []float64 // barycentric weights of the 1-D nodes
}

// New builds the basis table for a tensor product shape at order P.
// Unsupported shapes and out-of-range orders fail fast.
func New(shape Shape, P int) (tb *Table, err error) {
	switch shape {
	case Quad, Hex:
	default:
		return nil, NewConfigurationError("unsupported element shape %v: "+
			"tensor product kernels require quad or hex", shape)
	}
	if P < MinOrder || P > MaxOrder {
		return nil, NewConfigurationError("polynomial order %d out of supported range [%d,%d]",
			P, MinOrder, MaxOrder)
	}
	var (
		n   = P + 1
		dim = shape.Dim()
	)
	tb = &Table{
		Shape: shape,
		P:     P,
		Np1D:  n,
		Np:    intPow(n, dim),
	}
	tb.R = JacobiGL(0, 0, P)
	tb.W = gllWeights(tb.R, P)
	tb.V = Vandermonde1D(P, tb.R)
	Vinv, err := tb.V.Inverse()
	if err != nil {
		return nil, NewConfigurationError("basis Vandermonde is singular at order %d: %v", P, err)
	}
	tb.Dr = GradVandermonde1D(tb.R, P).Mul(Vinv)
	tb.V.SetReadOnly("V")
	tb.Dr.SetReadOnly("Dr")

	tb.WTensor = make([]float64, tb.Np)
	switch dim {
	case 2:
		for j := 0; j < n; j++ {
			for i := 0; i < n; i++ {
				tb.WTensor[i+n*j] = tb.W.DataP[i] * tb.W.DataP[j]
			}
		}
	case 3:
		for k := 0; k < n; k++ {
			for j := 0; j < n; j++ {
				for i := 0; i < n; i++ {
					tb.WTensor[i+n*(j+n*k)] = tb.W.DataP[i] * tb.W.DataP[j] * tb.W.DataP[k]
				}
			}
		}
	}

	tb.bary = baryWeights(tb.R.DataP)
	tb.buildClosure()
	return
}

type tableKey struct {
	shape Shape
	p     int
}

var (
	regMtx   sync.Mutex
	registry = make(map[tableKey]*Table)
)

// Get returns the memoized table for (shape, P), building it on first
// use. Tables are immutable, so sharing one instance across elements
// and goroutines is safe.
func Get(shape Shape, P int) (tb *Table, err error) {
	key := tableKey{shape, P}
	regMtx.Lock()
	defer regMtx.Unlock()
	if tb = registry[key]; tb != nil {
		return
	}
	if tb, err = New(shape, P); err != nil {
		return
	}
	registry[key] = tb
	return
}

func intPow(n, p int) (r int) {
	r = 1
	for i := 0; i < p; i++ {
		r *= n
	}
	return
}

// gllWeights evaluates w_i = 2/(P(P+1) L_P(x_i)^2) using the
// orthonormal Legendre values from JacobiP.
func gllWeights(R utils.Vector, P int) (W utils.Vector) {
	var (
		pn = JacobiP(R, 0, 0, P)
		fP = float64(P)
	)
	W = utils.NewVector(R.Len())
	for i, v := range pn {
		// orthonormal scaling folds (2P+1)/2 into v*v
		W.DataP[i] = (2*fP + 1) / (fP * (fP + 1) * v * v)
	}
	return
}

func baryWeights(x []float64) (w []float64) {
	var (
		n = len(x)
	)
	w = make([]float64, n)
	for j := 0; j < n; j++ {
		w[j] = 1
		for k := 0; k < n; k++ {
			if k != j {
				w[j] /= x[j] - x[k]
			}
		}
	}
	return
}

// NodeID maps tensor indices to the canonical node id.
func (tb *Table) NodeID(i, j, k int) int {
	var (
		n = tb.Np1D
	)
	if tb.Shape.Dim() == 2 {
		return i + n*j
	}
	return i + n*(j+n*k)
}

func (tb *Table) buildClosure() {
	var (
		n    = tb.Np1D
		last = n - 1
	)
	gridToID := func(g [3]int) int {
		pt := func(c int) int {
			if c == 0 {
				return 0
			}
			return last
		}
		return tb.NodeID(pt(g[0]), pt(g[1]), pt(g[2]))
	}
	// Walk from vertex a toward vertex b in tensor index space.
	edgeSeg := func(va, vb [3]int) (seg []int) {
		var (
			step [3]int
			pos  [3]int
		)
		for d := 0; d < 3; d++ {
			pos[d] = va[d] * last
			step[d] = (vb[d] - va[d])
		}
		seg = make([]int, 0, n-2)
		for m := 1; m < last; m++ {
			seg = append(seg, tb.NodeID(pos[0]+m*step[0], pos[1]+m*step[1], pos[2]+m*step[2]))
		}
		return
	}

	switch tb.Shape {
	case Quad:
		tb.corners = make([]int, 4)
		for v, g := range quadVertGrid {
			tb.corners[v] = gridToID(g)
		}
		tb.edgeSegs = make([][]int, 4)
		for e, ev := range QuadEdges {
			tb.edgeSegs[e] = edgeSeg(quadVertGrid[ev[0]], quadVertGrid[ev[1]])
		}
		// The 2-D interior is the face entity, row major in (r,s).
		face := make([]int, 0, (n-2)*(n-2))
		for j := 1; j < last; j++ {
			for i := 1; i < last; i++ {
				face = append(face, tb.NodeID(i, j, 0))
			}
		}
		tb.faceSegs = [][]int{face}
		tb.volSeg = nil
	case Hex:
		tb.corners = make([]int, 8)
		for v, g := range hexVertGrid {
			tb.corners[v] = gridToID(g)
		}
		tb.edgeSegs = make([][]int, 12)
		for e, ev := range HexEdges {
			tb.edgeSegs[e] = edgeSeg(hexVertGrid[ev[0]], hexVertGrid[ev[1]])
		}
		tb.faceSegs = make([][]int, 6)
		for f, fc := range HexFaces {
			var (
				c0  = hexVertGrid[fc[0]]
				c1  = hexVertGrid[fc[1]]
				c3  = hexVertGrid[fc[3]]
				seg = make([]int, 0, (n-2)*(n-2))
			)
			var orig, du, dv [3]int
			for d := 0; d < 3; d++ {
				orig[d] = c0[d] * last
				du[d] = c1[d] - c0[d]
				dv[d] = c3[d] - c0[d]
			}
			for b := 1; b < last; b++ {
				for a := 1; a < last; a++ {
					seg = append(seg, tb.NodeID(
						orig[0]+a*du[0]+b*dv[0],
						orig[1]+a*du[1]+b*dv[1],
						orig[2]+a*du[2]+b*dv[2]))
				}
			}
			tb.faceSegs[f] = seg
		}
		vol := make([]int, 0, (n-2)*(n-2)*(n-2))
		for k := 1; k < last; k++ {
			for j := 1; j < last; j++ {
				for i := 1; i < last; i++ {
					vol = append(vol, tb.NodeID(i, j, k))
				}
			}
		}
		tb.volSeg = vol
	}
	tb.buildBoundaryClosure()
}

// buildBoundaryClosure collects every node lying on each local
// boundary entity: quad edges carry their two corners plus interior,
// hex faces their four corners, four edge interiors and face interior.
func (tb *Table) buildBoundaryClosure() {
	switch tb.Shape {
	case Quad:
		tb.bndClos = make([][]int, 4)
		for e, ev := range QuadEdges {
			nodes := []int{tb.corners[ev[0]], tb.corners[ev[1]]}
			nodes = append(nodes, tb.edgeSegs[e]...)
			tb.bndClos[e] = nodes
		}
	case Hex:
		tb.bndClos = make([][]int, 6)
		for f, fc := range HexFaces {
			onFace := make(map[int]bool, 4)
			for _, v := range fc {
				onFace[v] = true
			}
			var nodes []int
			for _, v := range fc {
				nodes = append(nodes, tb.corners[v])
			}
			for e, ev := range HexEdges {
				if onFace[ev[0]] && onFace[ev[1]] {
					nodes = append(nodes, tb.edgeSegs[e]...)
				}
			}
			nodes = append(nodes, tb.faceSegs[f]...)
			tb.bndClos[f] = nodes
		}
	}
}

// Corners returns the canonical node ids of the element vertices.
func (tb *Table) Corners() []int { return tb.corners }

// EdgeSegments returns, per local edge, the canonical ids of its
// interior nodes ordered from the edge's first vertex to its second.
func (tb *Table) EdgeSegments() [][]int { return tb.edgeSegs }

// FaceSegments returns, per local face, the canonical ids of its
// interior nodes row major in the face (u,v) frame. For quads the
// single "face" is the element interior.
func (tb *Table) FaceSegments() [][]int { return tb.faceSegs }

// VolumeSegment returns the canonical ids interior to a hex.
func (tb *Table) VolumeSegment() []int { return tb.volSeg }

// BoundaryClosure returns every canonical node on the local boundary
// entity: an edge for quads, a face for hexes.
func (tb *Table) BoundaryClosure(face int) []int { return tb.bndClos[face] }

// Closure returns the full canonical-to-entity-grouped permutation:
// corners, then edge interiors, then face interiors, then volume.
func (tb *Table) Closure() (perm utils.Index) {
	perm = make(utils.Index, 0, tb.Np)
	perm = append(perm, tb.corners...)
	for _, s := range tb.edgeSegs {
		perm = append(perm, s...)
	}
	for _, s := range tb.faceSegs {
		perm = append(perm, s...)
	}
	perm = append(perm, tb.volSeg...)
	return
}

// Interpolate1D evaluates all 1-D Lagrange cardinal functions at x
// using the barycentric form, exact 0/1 at the nodes themselves.
func (tb *Table) Interpolate1D(x float64) (l []float64) {
	var (
		nodes = tb.R.DataP
		n     = len(nodes)
	)
	l = make([]float64, n)
	for j := 0; j < n; j++ {
		if math.Abs(x-nodes[j]) < 1.e-14 {
			l[j] = 1
			return
		}
	}
	var denom float64
	for j := 0; j < n; j++ {
		l[j] = tb.bary[j] / (x - nodes[j])
		denom += l[j]
	}
	for j := 0; j < n; j++ {
		l[j] /= denom
	}
	return
}

// Interpolate evaluates the tensor Lagrange basis at a reference point,
// returning one value per canonical node.
func (tb *Table) Interpolate(point ...float64) (l []float64) {
	var (
		n  = tb.Np1D
		lr = tb.Interpolate1D(point[0])
		ls = tb.Interpolate1D(point[1])
	)
	l = make([]float64, tb.Np)
	if tb.Shape.Dim() == 2 {
		for j := 0; j < n; j++ {
			for i := 0; i < n; i++ {
				l[i+n*j] = lr[i] * ls[j]
			}
		}
		return
	}
	lt := tb.Interpolate1D(point[2])
	for k := 0; k < n; k++ {
		for j := 0; j < n; j++ {
			for i := 0; i < n; i++ {
				l[i+n*(j+n*k)] = lr[i] * ls[j] * lt[k]
			}
		}
	}
	return
}
