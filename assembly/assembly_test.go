package assembly

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/gosem/basis"
	"github.com/notargets/gosem/element"
	"github.com/notargets/gosem/mesh"
)

func quadTable(t *testing.T, P int) *basis.Table {
	t.Helper()
	tb, err := basis.New(basis.Quad, P)
	require.NoError(t, err)
	return tb
}

func hexTable(t *testing.T, P int) *basis.Table {
	t.Helper()
	tb, err := basis.New(basis.Hex, P)
	require.NoError(t, err)
	return tb
}

func newShape(t *testing.T, m *mesh.Mesh, tb *basis.Table, k int) element.Shape {
	t.Helper()
	var sh element.Shape
	if m.Shape == basis.Quad {
		sh = element.NewQuad(k, tb, m.ElementVerts(k))
	} else {
		sh = element.NewHex(k, tb, m.ElementVerts(k))
	}
	require.NoError(t, sh.Precompute())
	return sh
}

func TestGlobalDofCounts(t *testing.T) {
	// a structured grid at order P carries (n*P+1)^d tensor nodes
	var (
		m2  = mesh.NewQuadRect(2, 2, 0, 1, 0, 1)
		tb2 = quadTable(t, 3)
	)
	gd, err := NewGlobalDof(m2, tb2)
	require.NoError(t, err)
	assert.Equal(t, 49, gd.NumDof)

	var (
		m3  = mesh.NewHexBox(2, 2, 2, 0, 1, 0, 1, 0, 1)
		tb3 = hexTable(t, 2)
	)
	gd3, err := NewGlobalDof(m3, tb3)
	require.NoError(t, err)
	assert.Equal(t, 125, gd3.NumDof)

	// every dof is touched by some element and owned by the lowest
	seen := make([]bool, gd3.NumDof)
	for k := 0; k < m3.K; k++ {
		for _, g := range gd3.Closure(k) {
			seen[g] = true
			assert.LessOrEqual(t, gd3.OwnerElem(g), k)
		}
	}
	for g, ok := range seen {
		require.True(t, ok, "dof %d unassigned", g)
	}
}

func TestSetupGlobalDofValidation(t *testing.T) {
	var (
		m  = mesh.NewQuadRect(2, 2, 0, 1, 0, 1)
		tb = quadTable(t, 3)
	)
	_, err := SetupGlobalDof(m, tb, 1, 1, 4, 0)
	var cfg *basis.ConfigurationError
	require.ErrorAs(t, err, &cfg)

	m3 := mesh.NewHexBox(1, 1, 1, 0, 1, 0, 1, 0, 1)
	_, err = NewGlobalDof(m3, tb)
	require.ErrorAs(t, err, &cfg)
}

// Shared entities must resolve to the same global dof at the same
// physical point from every element touching them, whatever the local
// edge direction or face winding.
func checkClosureConformity(t *testing.T, m *mesh.Mesh, tb *basis.Table) {
	t.Helper()
	gd, err := NewGlobalDof(m, tb)
	require.NoError(t, err)

	coord := make(map[int][]float64, gd.NumDof)
	for k := 0; k < m.K; k++ {
		var (
			sh   = newShape(t, m, tb, k)
			xyz  = sh.NodeCoordinates()
			gids = gd.Closure(k)
		)
		for node, g := range gids {
			pt := make([]float64, m.Dim)
			for d := 0; d < m.Dim; d++ {
				pt[d] = xyz.At(node, d)
			}
			if prev, ok := coord[g]; ok {
				for d := 0; d < m.Dim; d++ {
					assert.InDelta(t, prev[d], pt[d], 1e-12,
						"dof %d coordinate %d disagrees between elements", g, d)
				}
				continue
			}
			coord[g] = pt
		}
	}
	require.Len(t, coord, gd.NumDof)
}

func TestClosureConformityQuad(t *testing.T) {
	checkClosureConformity(t, mesh.NewQuadRect(3, 2, 0, 3, 0, 2), quadTable(t, 5))
}

func TestClosureConformityHex(t *testing.T) {
	// order 4 gives a 3x3 interior per face, so a misoriented face
	// winding cannot cancel out
	checkClosureConformity(t, mesh.NewHexBox(2, 2, 2, 0, 2, 0, 2, 0, 2), hexTable(t, 4))
}

// accumulateOnes adds one from every canonical node of every element,
// then synchronizes, so the global vector holds each dof's element
// multiplicity.
func accumulateOnes(t *testing.T, a *Assembly, tb *basis.Table) {
	t.Helper()
	ones := make([]float64, tb.Np)
	for i := range ones {
		ones[i] = 1
	}
	for _, p := range a.Part {
		p.ZeroField("f")
		for _, k := range p.Elems {
			p.AccumulateFromElement("f", k, ones)
		}
	}
	for _, p := range a.Part {
		p.SynchronizeBegin("f")
	}
	for _, p := range a.Part {
		require.NoError(t, p.SynchronizeEnd("f"))
	}
}

func TestAccumulateMultiplicity(t *testing.T) {
	var (
		m  = mesh.NewQuadRect(2, 2, 0, 1, 0, 1)
		tb = quadTable(t, 3)
	)
	gd, err := NewGlobalDof(m, tb)
	require.NoError(t, err)
	a, err := NewAssembly(m, gd)
	require.NoError(t, err)
	require.NoError(t, a.AddField("f"))
	accumulateOnes(t, a, tb)

	gl := a.Field("f")
	assert.Equal(t, 4.0, gl[4], "center vertex belongs to all four elements")
	assert.Equal(t, 1.0, gl[0], "corner vertex belongs to one element")
	sum := 0.0
	for _, v := range gl {
		sum += v
	}
	assert.Equal(t, float64(m.K*tb.Np), sum)
}

// The assembled sums cannot depend on how elements are split across
// partitions.
func TestPartitionedSumsMatchSinglePartition(t *testing.T) {
	var (
		m  = mesh.NewQuadRect(2, 2, 0, 1, 0, 1)
		tb = quadTable(t, 4)
	)
	gd, err := NewGlobalDof(m, tb)
	require.NoError(t, err)

	single, err := NewAssembly(m, gd)
	require.NoError(t, err)
	require.NoError(t, single.AddField("f"))
	accumulateOnes(t, single, tb)
	want := single.Field("f")

	for _, etop := range [][]int{
		{0, 1, 1, 0},
		{0, 0, 1, 1},
		{0, 1, 2, 3},
	} {
		m.EToP = etop
		a, err := NewAssembly(m, gd)
		require.NoError(t, err)
		require.NoError(t, a.AddField("f"))
		accumulateOnes(t, a, tb)
		assert.Equal(t, want, a.Field("f"), "EToP %v", etop)
	}
	m.EToP = nil
}

func TestPullAndElementView(t *testing.T) {
	var (
		m  = mesh.NewQuadRect(2, 1, 0, 2, 0, 1)
		tb = quadTable(t, 2)
	)
	gd, err := NewGlobalDof(m, tb)
	require.NoError(t, err)
	a, err := NewAssembly(m, gd)
	require.NoError(t, err)
	require.NoError(t, a.AddField("u"))

	gl := a.Field("u")
	for g := range gl {
		gl[g] = float64(g)
	}
	p := a.Part[0]
	p.PullField("u")
	for _, k := range p.Elems {
		view := p.ElementView("u", k, nil)
		for node, g := range gd.Closure(k) {
			assert.Equal(t, float64(g), view[node])
		}
	}

	// accumulation stays local until the next synchronize
	vals := make([]float64, tb.Np)
	vals[0] = 3
	p.AccumulateFromElement("u", 0, vals)
	assert.Equal(t, float64(gd.Closure(0)[0]), gl[gd.Closure(0)[0]])
}

func TestBoundaryOverwriteWinsAcrossPartitions(t *testing.T) {
	var (
		m  = mesh.NewQuadRect(2, 2, 0, 1, 0, 1)
		tb = quadTable(t, 3)
	)
	m.EToP = []int{0, 1, 1, 0}
	defer func() { m.EToP = nil }()
	gd, err := NewGlobalDof(m, tb)
	require.NoError(t, err)
	a, err := NewAssembly(m, gd)
	require.NoError(t, err)
	require.NoError(t, a.AddField("a"))

	// element 1 lives on partition 1 but the center vertex dof is
	// owned by partition 0 through element 0
	var (
		corner = tb.Corners()[3] // local vertex 3 of element 1 is mesh vertex 4
		gdof   = gd.Closure(1)[corner]
	)
	require.Equal(t, 4, gdof)
	require.Equal(t, 0, a.Owner(gdof))
	a.Part[1].Constrain(1, []int{corner})

	ones := make([]float64, tb.Np)
	for i := range ones {
		ones[i] = 1
	}
	for _, p := range a.Part {
		p.ZeroField("a")
		for _, k := range p.Elems {
			p.AccumulateFromElement("a", k, ones)
		}
		for _, k := range p.Elems {
			p.SetBoundaryCondition(k, "a", 0)
		}
	}
	// the local view is overwritten immediately
	assert.Equal(t, 0.0, a.Part[1].ElementView("a", 1, nil)[corner])

	for _, p := range a.Part {
		p.SynchronizeBegin("a")
	}
	for _, p := range a.Part {
		require.NoError(t, p.SynchronizeEnd("a"))
	}
	gl := a.Field("a")
	assert.Equal(t, 0.0, gl[gdof], "constrained dof keeps its overwrite")
	assert.Equal(t, 1.0, gl[0], "unconstrained corner keeps its sum")
}

func TestSynchronizeTimeout(t *testing.T) {
	var (
		m  = mesh.NewQuadRect(2, 2, 0, 1, 0, 1)
		tb = quadTable(t, 2)
	)
	m.EToP = []int{0, 1, 1, 0}
	defer func() { m.EToP = nil }()
	gd, err := NewGlobalDof(m, tb)
	require.NoError(t, err)
	a, err := NewAssembly(m, gd)
	require.NoError(t, err)
	a.SyncTimeout = 10 * time.Millisecond
	require.NoError(t, a.AddField("a"))

	err = a.Part[0].SynchronizeEnd("a")
	var sync SynchronizationError
	require.ErrorAs(t, err, &sync)
	assert.Equal(t, "a", sync.Field)
}

func TestSynchronizeFieldMismatch(t *testing.T) {
	var (
		m  = mesh.NewQuadRect(2, 2, 0, 1, 0, 1)
		tb = quadTable(t, 2)
	)
	m.EToP = []int{0, 1, 1, 0}
	defer func() { m.EToP = nil }()
	gd, err := NewGlobalDof(m, tb)
	require.NoError(t, err)
	a, err := NewAssembly(m, gd)
	require.NoError(t, err)
	require.NoError(t, a.AddField("a"))
	require.NoError(t, a.AddField("b"))

	a.Part[1].SynchronizeBegin("a")
	err = a.Part[0].SynchronizeEnd("b")
	var sync SynchronizationError
	require.ErrorAs(t, err, &sync)
}

func TestInvertField(t *testing.T) {
	var (
		m  = mesh.NewQuadRect(1, 1, 0, 1, 0, 1)
		tb = quadTable(t, 1)
	)
	gd, err := NewGlobalDof(m, tb)
	require.NoError(t, err)
	a, err := NewAssembly(m, gd)
	require.NoError(t, err)
	require.NoError(t, a.AddField("mi"))
	gl := a.Field("mi")
	for i := range gl {
		gl[i] = 4
	}
	a.InvertField("mi")
	for _, v := range gl {
		assert.Equal(t, 0.25, v)
	}
}

func TestAddFieldTwice(t *testing.T) {
	var (
		m  = mesh.NewQuadRect(1, 1, 0, 1, 0, 1)
		tb = quadTable(t, 1)
	)
	gd, err := NewGlobalDof(m, tb)
	require.NoError(t, err)
	a, err := NewAssembly(m, gd)
	require.NoError(t, err)
	require.NoError(t, a.AddField("u"))
	var cfg *basis.ConfigurationError
	require.True(t, errors.As(a.AddField("u"), &cfg))
	assert.True(t, a.HasField("u"))
	assert.False(t, a.HasField("v"))
}
