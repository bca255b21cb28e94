package physics

import (
	"math"
	"testing"

	"github.com/notargets/gosem/basis"
	"github.com/notargets/gosem/element"
	"github.com/notargets/gosem/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildQuad(t *testing.T, P int) element.Shape {
	tb, err := basis.Get(basis.Quad, P)
	require.NoError(t, err)
	vm := utils.NewMatrix(4, 2)
	verts := [][]float64{{0, 0}, {2, 0.2}, {2.3, 1.8}, {-0.1, 1.5}}
	for v := 0; v < 4; v++ {
		vm.Set(v, 0, verts[v][0])
		vm.Set(v, 1, verts[v][1])
	}
	q := element.NewQuad(0, tb, vm)
	require.NoError(t, q.Precompute())
	return q
}

func buildHex(t *testing.T, P int) element.Shape {
	tb, err := basis.Get(basis.Hex, P)
	require.NoError(t, err)
	vm := utils.NewMatrix(8, 3)
	for v, g := range basis.HexVertices {
		vm.Set(v, 0, g[0]+0.1*g[1]*g[2])
		vm.Set(v, 1, g[1]+0.05*g[0])
		vm.Set(v, 2, g[2]-0.08*g[0]*g[1])
	}
	h := element.NewHex(0, tb, vm)
	require.NoError(t, h.Precompute())
	return h
}

func fill(seed int, out []float64) {
	for i := range out {
		out[i] = math.Sin(float64(seed) + 1.7*float64(i))
	}
}

func TestPhysicsRegistry(t *testing.T) {
	q := buildQuad(t, 3)
	h := buildHex(t, 2)
	{ // names resolve to kernels with the right field sets
		p, err := New("acoustic2d", q)
		require.NoError(t, err)
		assert.Equal(t, []string{"u"}, p.PullFieldNames())
		assert.Equal(t, []string{"a"}, p.PushFieldNames())

		p, err = New("elastic3d", h)
		require.NoError(t, err)
		assert.Equal(t, []string{"ux", "uy", "uz"}, p.PullFieldNames())
		assert.Equal(t, []string{"ax", "ay", "az"}, p.PushFieldNames())
	}
	{ // unknown variant and dimension mismatches fail fast
		var ce *basis.ConfigurationError
		_, err := New("viscoelastic9d", q)
		require.ErrorAs(t, err, &ce)
		_, err = New("acoustic3d", q)
		require.ErrorAs(t, err, &ce)
		_, err = New("acoustic2d", h)
		require.ErrorAs(t, err, &ce)
		_, err = New("elastic3d", q)
		require.ErrorAs(t, err, &ce)
	}
}

func TestOperatorsBeforeAttachMaterial(t *testing.T) {
	p, err := New("acoustic2d", buildQuad(t, 3))
	require.NoError(t, err)
	var (
		nq  = p.Shape().NumQuadPoints()
		u   = [][]float64{make([]float64, nq)}
		out = [][]float64{make([]float64, nq)}
		ce  *basis.ConfigurationError
	)
	require.ErrorAs(t, p.StiffnessAction(u, out), &ce)
	require.ErrorAs(t, p.MassContribution(out[0]), &ce)
	require.ErrorAs(t, p.PrepareStiffness(), &ce)
}

func TestMaterialLookupMiss(t *testing.T) {
	p, err := New("acoustic2d", buildQuad(t, 3))
	require.NoError(t, err)
	err = p.AttachMaterial(HomogeneousModel{Params: map[string]float64{"RHO": 1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "VP")
}

func TestLayeredModel(t *testing.T) {
	m := LayeredModel{
		Axis:   1,
		Breaks: []float64{1},
		Layers: []map[string]float64{{"VP": 1}, {"VP": 3}},
	}
	{ // layer i applies up to and including its break
		v, err := m.ValueAt([]float64{0, 0.5}, "VP")
		require.NoError(t, err)
		assert.Equal(t, 1.0, v)
		v, err = m.ValueAt([]float64{0, 1}, "VP")
		require.NoError(t, err)
		assert.Equal(t, 1.0, v)
		v, err = m.ValueAt([]float64{0, 1.2}, "VP")
		require.NoError(t, err)
		assert.Equal(t, 3.0, v)
		_, err = m.ValueAt([]float64{0, 2}, "VS")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "layer 1")
	}
	{ // vertex sampling straddles the break: the bottom vertices sit in
		// the slow layer, the top in the fast one
		p, err := New("acoustic2d", buildQuad(t, 3))
		require.NoError(t, err)
		require.NoError(t, p.AttachMaterial(m))
		assert.InDelta(t, 3.0, p.MaxWavespeed(), 1.e-14)
	}
}

func TestAcousticKernel(t *testing.T) {
	var (
		sh = buildQuad(t, 4)
		nq = sh.NumQuadPoints()
	)
	p, err := New("acoustic2d", sh)
	require.NoError(t, err)
	require.NoError(t, p.AttachMaterial(HomogeneousModel{Params: map[string]float64{"VP": 2.5}}))
	{ // mass is the integrated unit field
		var (
			mass = make([]float64, nq)
			ones = make([]float64, nq)
			want = make([]float64, nq)
		)
		require.NoError(t, p.MassContribution(mass))
		for i := range ones {
			ones[i] = 1
		}
		sh.ApplyTestAndIntegrate(ones, want)
		assert.InDeltaSlice(t, want, mass, 1.e-14)
	}
	{ // constant field has zero stiffness, any field integrates to zero
		var (
			u   = [][]float64{make([]float64, nq)}
			out = [][]float64{make([]float64, nq)}
		)
		for i := range u[0] {
			u[0][i] = 3.7
		}
		require.NoError(t, p.StiffnessAction(u, out))
		for i := range out[0] {
			assert.InDelta(t, 0, out[0][i], 1.e-12)
		}
		// partition of unity: column sums of K vanish
		fill(3, u[0])
		require.NoError(t, p.StiffnessAction(u, out))
		var sum float64
		for _, v := range out[0] {
			sum += v
		}
		assert.InDelta(t, 0, sum, 1.e-11)
	}
	assert.InDelta(t, 2.5, p.MaxWavespeed(), 1.e-14)
}

func TestFusedMatchesUnfused(t *testing.T) {
	{ // acoustic on quad
		var (
			sh    = buildQuad(t, 5)
			nq    = sh.NumQuadPoints()
			model = HomogeneousModel{Params: map[string]float64{"VP": 3.1}}
		)
		direct, err := New("acoustic2d", sh)
		require.NoError(t, err)
		fused, err := New("acoustic2d", sh)
		require.NoError(t, err)
		require.NoError(t, direct.AttachMaterial(model))
		require.NoError(t, fused.AttachMaterial(model))
		require.NoError(t, fused.PrepareStiffness())
		var (
			u  = [][]float64{make([]float64, nq)}
			o1 = [][]float64{make([]float64, nq)}
			o2 = [][]float64{make([]float64, nq)}
		)
		fill(9, u[0])
		require.NoError(t, direct.StiffnessAction(u, o1))
		require.NoError(t, fused.StiffnessAction(u, o2))
		// bit for bit, not approximately
		assert.Equal(t, o1[0], o2[0])
	}
	{ // elastic on hex, anisotropic
		var (
			sh    = buildHex(t, 2)
			nq    = sh.NumQuadPoints()
			model = HomogeneousModel{Params: map[string]float64{
				"RHO": 2.6, "VPV": 5, "VPH": 5.4, "VSV": 3, "VSH": 3.2, "ETA": 0.9,
			}}
		)
		direct, err := New("elastic3d", sh)
		require.NoError(t, err)
		fused, err := New("elastic3d", sh)
		require.NoError(t, err)
		require.NoError(t, direct.AttachMaterial(model))
		require.NoError(t, fused.AttachMaterial(model))
		require.NoError(t, fused.PrepareStiffness())
		var (
			u  = make([][]float64, 3)
			o1 = make([][]float64, 3)
			o2 = make([][]float64, 3)
		)
		for c := 0; c < 3; c++ {
			u[c] = make([]float64, nq)
			o1[c] = make([]float64, nq)
			o2[c] = make([]float64, nq)
			fill(20+c, u[c])
		}
		require.NoError(t, direct.StiffnessAction(u, o1))
		require.NoError(t, fused.StiffnessAction(u, o2))
		for c := 0; c < 3; c++ {
			assert.Equal(t, o1[c], o2[c], "component %d", c)
		}
	}
}

func TestElasticKernel(t *testing.T) {
	var (
		sh    = buildHex(t, 2)
		nq    = sh.NumQuadPoints()
		model = IsotropicElastic(2.0, 4.0, 2.5)
	)
	p, err := New("elastic3d", sh)
	require.NoError(t, err)
	require.NoError(t, p.AttachMaterial(model))
	{ // mass carries the density
		var (
			mass = make([]float64, nq)
			rho  = make([]float64, nq)
			want = make([]float64, nq)
		)
		require.NoError(t, p.MassContribution(mass))
		for i := range rho {
			rho[i] = 2.0
		}
		sh.ApplyTestAndIntegrate(rho, want)
		assert.InDeltaSlice(t, want, mass, 1.e-12)
	}
	{ // rigid translation produces zero stiffness in every component
		var (
			u   = make([][]float64, 3)
			out = make([][]float64, 3)
		)
		for c := 0; c < 3; c++ {
			u[c] = make([]float64, nq)
			out[c] = make([]float64, nq)
			for i := range u[c] {
				u[c][i] = float64(c + 1)
			}
		}
		require.NoError(t, p.StiffnessAction(u, out))
		for c := 0; c < 3; c++ {
			for i := range out[c] {
				assert.InDelta(t, 0, out[c][i], 1.e-11, "component %d node %d", c, i)
			}
		}
	}
	assert.InDelta(t, 4.0, p.MaxWavespeed(), 1.e-14)
}

func TestVTICoefficients(t *testing.T) {
	// isotropic reduction: c12 = c13 = lambda, c44 = mu
	var (
		rho, vp, vs = 2.0, 4.0, 2.5
		mu          = rho * vs * vs
		lambda      = rho*vp*vp - 2*mu
		c           = vtiAt(rho, vp, vp, vs, vs, 1)
	)
	assert.InDelta(t, rho*vp*vp, c.c11, 1.e-14)
	assert.InDelta(t, c.c11, c.c22, 1.e-14)
	assert.InDelta(t, c.c11, c.c33, 1.e-14)
	assert.InDelta(t, mu, c.c44, 1.e-14)
	assert.InDelta(t, mu, c.c55, 1.e-14)
	assert.InDelta(t, mu, c.c66, 1.e-14)
	assert.InDelta(t, lambda, c.c12, 1.e-14)
	assert.InDelta(t, lambda, c.c13, 1.e-14)
	assert.InDelta(t, lambda, c.c23, 1.e-14)
}

func TestSourceTerm(t *testing.T) {
	p, err := New("acoustic2d", buildQuad(t, 3))
	require.NoError(t, err)
	var (
		nq     = p.Shape().NumQuadPoints()
		coeffs = make([]float64, nq)
		out    = [][]float64{make([]float64, nq)}
	)
	fill(31, coeffs)
	p.AttachSource(PointSource{
		Coeffs: coeffs,
		Scale:  []float64{2},
		Fire:   func(time float64) float64 { return 10 * time },
	})
	p.SourceTerm(0.5, out)
	for i := range coeffs {
		assert.InDelta(t, 2*5*coeffs[i], out[0][i], 1.e-13)
	}
	// additive across calls and sources
	p.SourceTerm(0.5, out)
	for i := range coeffs {
		assert.InDelta(t, 2*2*5*coeffs[i], out[0][i], 1.e-13)
	}
}

func TestHomogeneousDirichletNodes(t *testing.T) {
	{ // quad order 3: one edge, then two edges sharing a corner
		tb, err := basis.Get(basis.Quad, 3)
		require.NoError(t, err)
		p, err := New("acoustic2d", buildQuad(t, 3))
		require.NoError(t, err)
		hd := NewHomogeneousDirichlet(p, tb, []int{0})
		assert.Equal(t, []int{0, 1, 2, 3}, hd.BoundaryNodes())
		hd = NewHomogeneousDirichlet(p, tb, []int{0, 1})
		assert.Equal(t, []int{0, 1, 2, 3, 7, 11, 15}, hd.BoundaryNodes())
		// decorator still exposes the wrapped kernel
		assert.Equal(t, []string{"u"}, hd.PullFieldNames())
	}
	{ // hex order 2: bottom face covers the full k=0 layer
		tb, err := basis.Get(basis.Hex, 2)
		require.NoError(t, err)
		p, err := New("acoustic3d", buildHex(t, 2))
		require.NoError(t, err)
		hd := NewHomogeneousDirichlet(p, tb, []int{0})
		assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8}, hd.BoundaryNodes())
	}
}
