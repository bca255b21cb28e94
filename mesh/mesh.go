// Package mesh holds the topology side of a simulation: element to
// vertex incidence, named physical boundaries, unique edge and face
// tables for DOF numbering, and element partitioning.
package mesh

import (
	"github.com/notargets/gosem/basis"
	"github.com/notargets/gosem/types"
	"github.com/notargets/gosem/utils"
)

// ElemFace names one local face of one element. For quads the "face"
// is a local edge.
type ElemFace struct {
	Elem, Face int
}

// Mesh is a conforming single-shape mesh. Connectivity tables beyond
// EToV are filled by Connect.
type Mesh struct {
	Dim   int
	Shape basis.Shape
	NV, K int

	VX, VY, VZ utils.Vector
	EToV       utils.Matrix // K x NumVerts, reference vertex order

	Boundaries map[string][]ElemFace

	// Built by Connect.
	EToE     utils.Matrix // K x NFaces neighbor element, self when boundary
	EToF     utils.Matrix // K x NFaces neighbor local face
	EdgeID   map[types.EdgeKey]int
	FaceID   map[types.FaceKey]int // hex only
	NumEdges int
	NumFaces int

	// Built by PartitionMesh.
	EToP []int
}

// NumVerts returns vertices per element for the mesh shape.
func (m *Mesh) NumVerts() int { return m.Shape.NumVerts() }

// NumElemFaces returns the local boundary entity count per element:
// 4 edges for quads, 6 faces for hexes.
func (m *Mesh) NumElemFaces() int {
	if m.Shape == basis.Quad {
		return 4
	}
	return 6
}

// Vertex returns the coordinates of global vertex v.
func (m *Mesh) Vertex(v int) (pt []float64) {
	pt = make([]float64, m.Dim)
	pt[0] = m.VX.DataP[v]
	pt[1] = m.VY.DataP[v]
	if m.Dim == 3 {
		pt[2] = m.VZ.DataP[v]
	}
	return
}

// ElementVerts gathers the vertex coordinate block of element k in
// reference order, the shape kernels consume it directly.
func (m *Mesh) ElementVerts(k int) (verts utils.Matrix) {
	var (
		nv = m.NumVerts()
	)
	verts = utils.NewMatrix(nv, m.Dim)
	for v := 0; v < nv; v++ {
		gv := int(m.EToV.At(k, v))
		verts.Set(v, 0, m.VX.DataP[gv])
		verts.Set(v, 1, m.VY.DataP[gv])
		if m.Dim == 3 {
			verts.Set(v, 2, m.VZ.DataP[gv])
		}
	}
	return
}

// BoundaryFaces returns the local faces of element k lying on any
// named boundary.
func (m *Mesh) BoundaryFaces(k int) (faces []int) {
	seen := make(map[int]bool)
	for _, efs := range m.Boundaries {
		for _, ef := range efs {
			if ef.Elem == k && !seen[ef.Face] {
				seen[ef.Face] = true
				faces = append(faces, ef.Face)
			}
		}
	}
	return
}

// OnBoundary reports whether element k touches a named boundary.
func (m *Mesh) OnBoundary(k int) bool {
	for _, efs := range m.Boundaries {
		for _, ef := range efs {
			if ef.Elem == k {
				return true
			}
		}
	}
	return false
}

// NewQuadRect builds a structured nx by ny quadrilateral mesh on the
// rectangle [x0,x1] x [y0,y1] with counter clockwise vertex order and
// the outer boundaries named x0, x1, y0, y1 plus their union "all".
func NewQuadRect(nx, ny int, x0, x1, y0, y1 float64) (m *Mesh) {
	var (
		nvx = nx + 1
		nvy = ny + 1
	)
	m = &Mesh{
		Dim:   2,
		Shape: basis.Quad,
		NV:    nvx * nvy,
		K:     nx * ny,
	}
	m.VX, m.VY = utils.NewVector(m.NV), utils.NewVector(m.NV)
	for j := 0; j < nvy; j++ {
		for i := 0; i < nvx; i++ {
			vid := i + nvx*j
			m.VX.DataP[vid] = x0 + (x1-x0)*float64(i)/float64(nx)
			m.VY.DataP[vid] = y0 + (y1-y0)*float64(j)/float64(ny)
		}
	}
	m.EToV = utils.NewMatrix(m.K, 4)
	m.Boundaries = make(map[string][]ElemFace)
	addBnd := func(name string, ef ElemFace) {
		m.Boundaries[name] = append(m.Boundaries[name], ef)
		m.Boundaries["all"] = append(m.Boundaries["all"], ef)
	}
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			var (
				k   = i + nx*j
				vid = i + nvx*j
			)
			m.EToV.Set(k, 0, float64(vid))
			m.EToV.Set(k, 1, float64(vid+1))
			m.EToV.Set(k, 2, float64(vid+1+nvx))
			m.EToV.Set(k, 3, float64(vid+nvx))
			if j == 0 {
				addBnd("y0", ElemFace{k, 0})
			}
			if i == nx-1 {
				addBnd("x1", ElemFace{k, 1})
			}
			if j == ny-1 {
				addBnd("y1", ElemFace{k, 2})
			}
			if i == 0 {
				addBnd("x0", ElemFace{k, 3})
			}
		}
	}
	m.Connect()
	return
}

// NewHexBox builds a structured nx by ny by nz hexahedral mesh on the
// box [x0,x1] x [y0,y1] x [z0,z1], outer boundaries named per axis
// plus "all".
func NewHexBox(nx, ny, nz int, x0, x1, y0, y1, z0, z1 float64) (m *Mesh) {
	var (
		nvx = nx + 1
		nvy = ny + 1
		nvz = nz + 1
	)
	m = &Mesh{
		Dim:   3,
		Shape: basis.Hex,
		NV:    nvx * nvy * nvz,
		K:     nx * ny * nz,
	}
	m.VX = utils.NewVector(m.NV)
	m.VY = utils.NewVector(m.NV)
	m.VZ = utils.NewVector(m.NV)
	for k := 0; k < nvz; k++ {
		for j := 0; j < nvy; j++ {
			for i := 0; i < nvx; i++ {
				vid := i + nvx*(j+nvy*k)
				m.VX.DataP[vid] = x0 + (x1-x0)*float64(i)/float64(nx)
				m.VY.DataP[vid] = y0 + (y1-y0)*float64(j)/float64(ny)
				m.VZ.DataP[vid] = z0 + (z1-z0)*float64(k)/float64(nz)
			}
		}
	}
	m.EToV = utils.NewMatrix(m.K, 8)
	m.Boundaries = make(map[string][]ElemFace)
	addBnd := func(name string, ef ElemFace) {
		m.Boundaries[name] = append(m.Boundaries[name], ef)
		m.Boundaries["all"] = append(m.Boundaries["all"], ef)
	}
	vid := func(i, j, k int) float64 { return float64(i + nvx*(j+nvy*k)) }
	for kz := 0; kz < nz; kz++ {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				k := i + nx*(j+ny*kz)
				m.EToV.Set(k, 0, vid(i, j, kz))
				m.EToV.Set(k, 1, vid(i+1, j, kz))
				m.EToV.Set(k, 2, vid(i+1, j+1, kz))
				m.EToV.Set(k, 3, vid(i, j+1, kz))
				m.EToV.Set(k, 4, vid(i, j, kz+1))
				m.EToV.Set(k, 5, vid(i+1, j, kz+1))
				m.EToV.Set(k, 6, vid(i+1, j+1, kz+1))
				m.EToV.Set(k, 7, vid(i, j+1, kz+1))
				// local faces follow the reference face cycle order
				if kz == 0 {
					addBnd("z0", ElemFace{k, 0})
				}
				if kz == nz-1 {
					addBnd("z1", ElemFace{k, 1})
				}
				if j == 0 {
					addBnd("y0", ElemFace{k, 2})
				}
				if i == nx-1 {
					addBnd("x1", ElemFace{k, 3})
				}
				if j == ny-1 {
					addBnd("y1", ElemFace{k, 4})
				}
				if i == 0 {
					addBnd("x0", ElemFace{k, 5})
				}
			}
		}
	}
	m.Connect()
	return
}
