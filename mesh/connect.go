package mesh

import (
	"github.com/james-bowman/sparse"
	"github.com/notargets/gosem/basis"
	"github.com/notargets/gosem/types"
	"github.com/notargets/gosem/utils"
)

// localFaceVerts returns, per local face, the element-local vertex
// indices bounding it.
func (m *Mesh) localFaceVerts() (fv [][]int) {
	if m.Shape == basis.Quad {
		fv = make([][]int, 4)
		for e, ev := range basis.QuadEdges {
			fv[e] = []int{ev[0], ev[1]}
		}
		return
	}
	fv = make([][]int, 6)
	for f, fc := range basis.HexFaces {
		fv[f] = []int{fc[0], fc[1], fc[2], fc[3]}
	}
	return
}

// Connect builds face adjacency and the unique edge/face entity tables
// from element-vertex incidence. Two local faces are conforming
// neighbors exactly when the face-to-face incidence product counts
// every bounding vertex shared.
func (m *Mesh) Connect() {
	var (
		fv         = m.localFaceVerts()
		nf         = len(fv)
		nfv        = len(fv[0])
		totalFaces = m.K * nf
	)
	FToV := sparse.NewDOK(totalFaces, m.NV)
	for k := 0; k < m.K; k++ {
		for f := 0; f < nf; f++ {
			for _, lv := range fv[f] {
				FToV.Set(k*nf+f, int(m.EToV.At(k, lv)), 1)
			}
		}
	}
	var (
		csr  = FToV.ToCSR()
		FToF = sparse.NewCSR(totalFaces, totalFaces, nil, nil, nil)
	)
	FToF.Mul(csr, csr.T())

	m.EToE = utils.NewMatrix(m.K, nf)
	m.EToF = utils.NewMatrix(m.K, nf)
	for k := 0; k < m.K; k++ {
		for f := 0; f < nf; f++ {
			m.EToE.Set(k, f, float64(k))
			m.EToF.Set(k, f, float64(f))
		}
	}
	FToF.DoNonZero(func(i, j int, v float64) {
		if i != j && int(v) == nfv {
			m.EToE.Set(i/nf, i%nf, float64(j/nf))
			m.EToF.Set(i/nf, i%nf, float64(j%nf))
		}
	})

	m.buildEntityTables()
}

// buildEntityTables numbers the unique mesh edges (and faces for
// hexes) in first-touch order, element then local entity ascending, so
// the numbering is deterministic for a given mesh.
func (m *Mesh) buildEntityTables() {
	m.EdgeID = make(map[types.EdgeKey]int)
	edges := basis.QuadEdges[:]
	if m.Shape == basis.Hex {
		edges = basis.HexEdges[:]
	}
	for k := 0; k < m.K; k++ {
		for _, ev := range edges {
			key := types.NewEdgeKey([2]int{
				int(m.EToV.At(k, ev[0])),
				int(m.EToV.At(k, ev[1])),
			})
			if _, ok := m.EdgeID[key]; !ok {
				m.EdgeID[key] = len(m.EdgeID)
			}
		}
	}
	m.NumEdges = len(m.EdgeID)

	if m.Shape != basis.Hex {
		m.NumFaces = m.K // the quad interior is its own face entity
		return
	}
	m.FaceID = make(map[types.FaceKey]int)
	for k := 0; k < m.K; k++ {
		for _, fc := range basis.HexFaces {
			var verts [4]int
			for i, lv := range fc {
				verts[i] = int(m.EToV.At(k, lv))
			}
			key := types.NewFaceKey(verts)
			if _, ok := m.FaceID[key]; !ok {
				m.FaceID[key] = len(m.FaceID)
			}
		}
	}
	m.NumFaces = len(m.FaceID)
}

// Edge resolves the unique edge id of a global vertex pair, either
// order.
func (m *Mesh) Edge(a, b int) int {
	return m.EdgeID[types.NewEdgeKey([2]int{a, b})]
}

// Face resolves the unique face id of four global vertices, any order.
func (m *Mesh) Face(vs [4]int) int {
	return m.FaceID[types.NewFaceKey(vs)]
}
