package physics

import (
	"sort"

	"github.com/notargets/gosem/basis"
)

// HomogeneousDirichlet wraps a kernel on a boundary element and lists
// the canonical nodes its constrained faces cover, so the integrator
// can zero the acceleration there after accumulation.
type HomogeneousDirichlet struct {
	Physics
	nodes []int
}

// BoundaryConstrained is what the integrator looks for on boundary
// elements.
type BoundaryConstrained interface {
	BoundaryNodes() []int
}

// NewHomogeneousDirichlet collects the boundary closure of every
// constrained local face. Faces share corners and edges, the node list
// is deduplicated.
func NewHomogeneousDirichlet(p Physics, tb *basis.Table, faces []int) *HomogeneousDirichlet {
	var (
		hd   = &HomogeneousDirichlet{Physics: p}
		seen = make(map[int]bool)
	)
	for _, f := range faces {
		for _, nid := range tb.BoundaryClosure(f) {
			if !seen[nid] {
				seen[nid] = true
				hd.nodes = append(hd.nodes, nid)
			}
		}
	}
	sort.Ints(hd.nodes)
	return hd
}

func (hd *HomogeneousDirichlet) BoundaryNodes() []int { return hd.nodes }
