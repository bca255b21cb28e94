package assembly

import (
	"github.com/notargets/gosem/basis"
	"github.com/notargets/gosem/mesh"
)

// GlobalDof is the immutable global numbering of every degree of
// freedom in the mesh, laid out entity block by entity block: all
// vertex DOFs first, then edge interiors, face interiors and element
// interiors. Shared entities resolve to the same global index from
// every element touching them, with edge and face interiors stored in
// a canonical orientation fixed by global vertex ids.
type GlobalDof struct {
	NumDof int

	dofsPerVtx, dofsPerEdge, dofsPerFace, dofsPerVol int
	edgeBase, faceBase, volBase                      int

	closures  [][]int // per element: canonical node -> global dof
	ownerElem []int   // per dof: lowest element id touching it
}

// DofCounts returns the per-entity DOF counts a tensor GLL basis of
// the table's order places on the mesh entities.
func DofCounts(tb *basis.Table) (vtx, edge, face, vol int) {
	var (
		in = tb.P - 1
	)
	vtx, edge, face = 1, in, in*in
	if tb.Shape == basis.Hex {
		vol = in * in * in
	}
	return
}

// NewGlobalDof numbers the mesh with the canonical counts for the
// basis table order.
func NewGlobalDof(m *mesh.Mesh, tb *basis.Table) (*GlobalDof, error) {
	vtx, edge, face, vol := DofCounts(tb)
	return SetupGlobalDof(m, tb, vtx, edge, face, vol)
}

// SetupGlobalDof walks the mesh topology once and assigns contiguous
// global index ranges per entity, then builds every element's closure
// map through the basis table segments. All elements share one
// representative order; counts inconsistent with the table are a
// configuration error.
func SetupGlobalDof(m *mesh.Mesh, tb *basis.Table,
	dofsPerVtx, dofsPerEdge, dofsPerFace, dofsPerVol int) (gd *GlobalDof, err error) {
	if m.Shape != tb.Shape {
		return nil, basis.NewConfigurationError("mesh shape %v does not match basis table shape %v",
			m.Shape, tb.Shape)
	}
	wantVtx, wantEdge, wantFace, wantVol := DofCounts(tb)
	if dofsPerVtx != wantVtx || dofsPerEdge != wantEdge ||
		dofsPerFace != wantFace || dofsPerVol != wantVol {
		return nil, basis.NewConfigurationError(
			"entity DOF counts (%d,%d,%d,%d) do not match a GLL tensor basis at order %d, want (%d,%d,%d,%d)",
			dofsPerVtx, dofsPerEdge, dofsPerFace, dofsPerVol, tb.P,
			wantVtx, wantEdge, wantFace, wantVol)
	}
	gd = &GlobalDof{
		dofsPerVtx:  dofsPerVtx,
		dofsPerEdge: dofsPerEdge,
		dofsPerFace: dofsPerFace,
		dofsPerVol:  dofsPerVol,
	}
	gd.edgeBase = m.NV * dofsPerVtx
	gd.faceBase = gd.edgeBase + m.NumEdges*dofsPerEdge
	gd.volBase = gd.faceBase + m.NumFaces*dofsPerFace
	gd.NumDof = gd.volBase + m.K*dofsPerVol

	gd.closures = make([][]int, m.K)
	for k := 0; k < m.K; k++ {
		gd.closures[k] = gd.elementClosure(m, tb, k)
	}

	gd.ownerElem = make([]int, gd.NumDof)
	for i := range gd.ownerElem {
		gd.ownerElem[i] = -1
	}
	for k := 0; k < m.K; k++ {
		for _, g := range gd.closures[k] {
			if gd.ownerElem[g] < 0 {
				gd.ownerElem[g] = k
			}
		}
	}
	return
}

// Closure returns element k's canonical-node to global-dof map. Read
// only.
func (gd *GlobalDof) Closure(k int) []int { return gd.closures[k] }

// OwnerElem returns the lowest element id touching global dof g, the
// deterministic owner for partition assignment.
func (gd *GlobalDof) OwnerElem(g int) int { return gd.ownerElem[g] }

func (gd *GlobalDof) elementClosure(m *mesh.Mesh, tb *basis.Table, k int) (gids []int) {
	gids = make([]int, tb.Np)

	for v, node := range tb.Corners() {
		gids[node] = gd.dofsPerVtx * int(m.EToV.At(k, v))
	}

	edges := basis.QuadEdges[:]
	if tb.Shape == basis.Hex {
		edges = basis.HexEdges[:]
	}
	for e, seg := range tb.EdgeSegments() {
		var (
			a    = int(m.EToV.At(k, edges[e][0]))
			b    = int(m.EToV.At(k, edges[e][1]))
			base = gd.edgeBase + m.Edge(a, b)*gd.dofsPerEdge
		)
		// interior dofs run from the lower global vertex id
		if a < b {
			for i, node := range seg {
				gids[node] = base + i
			}
		} else {
			for i, node := range seg {
				gids[node] = base + len(seg) - 1 - i
			}
		}
	}

	if tb.Shape == basis.Quad {
		// the quad interior is its own face entity
		base := gd.faceBase + k*gd.dofsPerFace
		for i, node := range tb.FaceSegments()[0] {
			gids[node] = base + i
		}
		return
	}

	for f, seg := range tb.FaceSegments() {
		var g4 [4]int
		for i, lv := range basis.HexFaces[f] {
			g4[i] = int(m.EToV.At(k, lv))
		}
		base := gd.faceBase + m.Face(g4)*gd.dofsPerFace
		gd.orientFace(tb, g4, seg, base, gids)
	}

	base := gd.volBase + k*gd.dofsPerVol
	for i, node := range tb.VolumeSegment() {
		gids[node] = base + i
	}
	return
}

// faceLat places the face cycle corners on the unit lattice of the
// face's own (u,v) frame: u runs corner 0 to 1, v corner 0 to 3.
var faceLat = [4][2]int{{0, 0}, {1, 0}, {1, 1}, {0, 1}}

// orientFace writes the global ids of one hex face's interior nodes.
// The canonical frame is anchored at the smallest global corner id
// with its first axis toward the smaller-id cycle neighbor, so both
// elements sharing the face agree on the interior ordering no matter
// how their local cycles wind.
func (gd *GlobalDof) orientFace(tb *basis.Table, g4 [4]int, seg []int, base int, gids []int) {
	var (
		last  = tb.Np1D - 1
		inner = last - 1
		kmin  = 0
	)
	for i := 1; i < 4; i++ {
		if g4[i] < g4[kmin] {
			kmin = i
		}
	}
	var (
		prev = (kmin + 3) % 4
		next = (kmin + 1) % 4
		uPos = next
	)
	if g4[prev] < g4[next] {
		uPos = prev
	}
	var (
		ax      = faceLat[kmin][0] * last
		ay      = faceLat[kmin][1] * last
		uAlongX = faceLat[uPos][0] != faceLat[kmin][0]
		s       int
	)
	for b := 1; b < last; b++ {
		for a := 1; a < last; a++ {
			dx, dy := a, b
			if ax != 0 {
				dx = last - a
			}
			if ay != 0 {
				dy = last - b
			}
			ca, cb := dx, dy
			if !uAlongX {
				ca, cb = dy, dx
			}
			gids[seg[s]] = base + (ca - 1) + inner*(cb-1)
			s++
		}
	}
}
