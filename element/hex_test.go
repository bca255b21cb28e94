package element

import (
	"math"
	"testing"

	"github.com/notargets/gosem/basis"
	"github.com/notargets/gosem/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// a parallelepiped, affine so the determinant is constant and volume
// integration is exact at every order
var hexVertsAffine = func() [][]float64 {
	var (
		o  = []float64{0.5, -0.2, 0.1}
		e1 = []float64{1.5, 0.2, 0.1}
		e2 = []float64{-0.1, 1.2, 0.2}
		e3 = []float64{0.2, 0.1, 1.4}
	)
	verts := make([][]float64, 8)
	for v, g := range basis.HexVertices {
		p := make([]float64, 3)
		for c := 0; c < 3; c++ {
			p[c] = o[c] + (g[0]+1)/2*e1[c] + (g[1]+1)/2*e2[c] + (g[2]+1)/2*e3[c]
		}
		verts[v] = p
	}
	return verts
}()

// mildly warped, still convex
var hexVertsWarped = func() [][]float64 {
	verts := make([][]float64, 8)
	for v, g := range basis.HexVertices {
		verts[v] = []float64{
			g[0] + 0.1*g[1]*g[2],
			g[1] + 0.05*g[0],
			g[2] - 0.08*g[0]*g[1],
		}
	}
	return verts
}()

func buildHex(t *testing.T, P int, verts [][]float64) *Hex {
	tb, err := basis.Get(basis.Hex, P)
	require.NoError(t, err)
	vm := utils.NewMatrix(8, 3)
	for v := 0; v < 8; v++ {
		for c := 0; c < 3; c++ {
			vm.Set(v, c, verts[v][c])
		}
	}
	h := NewHex(0, tb, vm)
	require.NoError(t, h.Precompute())
	return h
}

func TestHexGradient(t *testing.T) {
	{ // Linear fields differentiate exactly on warped geometry
		for P := 1; P <= 4; P++ {
			var (
				h    = buildHex(t, P, hexVertsWarped)
				nq   = h.NumQuadPoints()
				x    = h.NodeCoordinates()
				f    = make([]float64, nq)
				grad = make([]float64, 3*nq)
			)
			for id := 0; id < nq; id++ {
				f[id] = 1 + 2*x.At(id, 0) - 3*x.At(id, 1) + 4*x.At(id, 2)
			}
			h.Gradient(f, grad)
			for id := 0; id < nq; id++ {
				assert.True(t, near(grad[id], 2), "order %d dfdx %v", P, grad[id])
				assert.True(t, near(grad[nq+id], -3), "order %d dfdy %v", P, grad[nq+id])
				assert.True(t, near(grad[2*nq+id], 4), "order %d dfdz %v", P, grad[2*nq+id])
			}
		}
	}
	{ // On the reference cube the gradient reduces to Dr contractions
		var (
			h  = buildHex(t, 3, func() [][]float64 {
				verts := make([][]float64, 8)
				for v, g := range basis.HexVertices {
					verts[v] = []float64{g[0], g[1], g[2]}
				}
				return verts
			}())
			tb = h.tb
			n  = tb.Np1D
			nq = h.NumQuadPoints()
			f  = make([]float64, nq)
		)
		fill(5, f)
		grad := make([]float64, 3*nq)
		h.Gradient(f, grad)
		for k := 0; k < n; k++ {
			for j := 0; j < n; j++ {
				for i := 0; i < n; i++ {
					var dr, ds, dt float64
					for m := 0; m < n; m++ {
						dr += tb.Dr.At(i, m) * f[m+n*(j+n*k)]
						ds += tb.Dr.At(j, m) * f[i+n*(m+n*k)]
						dt += tb.Dr.At(k, m) * f[i+n*(j+n*m)]
					}
					id := i + n*(j+n*k)
					assert.True(t, near(grad[id], dr))
					assert.True(t, near(grad[nq+id], ds))
					assert.True(t, near(grad[2*nq+id], dt))
				}
			}
		}
	}
}

func TestHexAdjointness(t *testing.T) {
	for P := 1; P <= 5; P++ {
		var (
			h    = buildHex(t, P, hexVertsWarped)
			nq   = h.NumQuadPoints()
			u    = make([]float64, nq)
			v    = make([]float64, 3*nq)
			grad = make([]float64, 3*nq)
			wg   = make([]float64, nq)
			out  = make([]float64, nq)
		)
		fill(13, u)
		fill(17, v)
		h.Gradient(u, grad)
		var lhs float64
		for a := 0; a < 3; a++ {
			h.ApplyTestAndIntegrate(grad[a*nq:(a+1)*nq], wg)
			for id := 0; id < nq; id++ {
				lhs += wg[id] * v[a*nq+id]
			}
		}
		h.ApplyGradTestAndIntegrate(v, out)
		var rhs float64
		for id := 0; id < nq; id++ {
			rhs += u[id] * out[id]
		}
		assert.InDelta(t, lhs, rhs, 1.e-11*math.Max(1, math.Abs(lhs)),
			"order %d adjoint mismatch %v vs %v", P, lhs, rhs)
	}
}

func TestHexMeasure(t *testing.T) {
	{ // Reference cube volume is 8 at every order
		refVerts := make([][]float64, 8)
		for v, g := range basis.HexVertices {
			refVerts[v] = []float64{g[0], g[1], g[2]}
		}
		for P := 1; P <= 4; P++ {
			var (
				h   = buildHex(t, P, refVerts)
				one = make([]float64, h.NumQuadPoints())
				out = make([]float64, h.NumQuadPoints())
			)
			for id := range one {
				one[id] = 1
			}
			h.ApplyTestAndIntegrate(one, out)
			var vol float64
			for _, v := range out {
				vol += v
			}
			assert.True(t, near(vol, 8), "order %d volume %v", P, vol)
		}
	}
	{ // Parallelepiped volume equals the edge triple product
		var (
			h   = buildHex(t, 3, hexVertsAffine)
			one = make([]float64, h.NumQuadPoints())
			out = make([]float64, h.NumQuadPoints())
		)
		e := func(a, b int) [3]float64 {
			var d [3]float64
			for c := 0; c < 3; c++ {
				d[c] = hexVertsAffine[a][c] - hexVertsAffine[b][c]
			}
			return d
		}
		var (
			e1    = e(1, 0)
			e2    = e(3, 0)
			e3    = e(4, 0)
			exact = e1[0]*(e2[1]*e3[2]-e2[2]*e3[1]) -
				e1[1]*(e2[0]*e3[2]-e2[2]*e3[0]) +
				e1[2]*(e2[0]*e3[1]-e2[1]*e3[0])
		)
		for id := range one {
			one[id] = 1
		}
		h.ApplyTestAndIntegrate(one, out)
		var vol float64
		for _, v := range out {
			vol += v
		}
		assert.True(t, near(vol, exact), "volume %v expected %v", vol, exact)
	}
}

func TestHexDeltaRoundTrip(t *testing.T) {
	var (
		h  = buildHex(t, 3, hexVertsWarped)
		nq = h.NumQuadPoints()
		x  = h.NodeCoordinates()
		f  = make([]float64, nq)
	)
	for id := 0; id < nq; id++ {
		f[id] = 1 + x.At(id, 0) + 0.5*x.At(id, 1) - 0.3*x.At(id, 2)
	}
	for _, ref := range [][]float64{
		{0.2, -0.4, 0.6}, // interior
		{1, 0.3, -0.2},   // face
		{-1, -1, 1},      // vertex
	} {
		var (
			c   = h.DeltaCoefficients(ref)
			out = make([]float64, nq)
		)
		h.ApplyTestAndIntegrate(c, out)
		var got, unit float64
		for id := 0; id < nq; id++ {
			got += out[id] * f[id]
			unit += out[id]
		}
		assert.True(t, near(unit, 1), "ref %v: delta mass %v", ref, unit)
		want := h.InterpolateAtPoint(f, ref)
		assert.True(t, near(got, want), "ref %v: delta sampled %v want %v", ref, got, want)
	}
}

func TestHexLocalize(t *testing.T) {
	h := buildHex(t, 2, hexVertsWarped)
	{ // Round trip through the trilinear map
		for _, ref := range [][]float64{{0, 0, 0}, {0.5, -0.3, 0.8}, {1, 1, 1}} {
			var (
				N = hexShape(ref[0], ref[1], ref[2])
				p = make([]float64, 3)
			)
			for v := 0; v < 8; v++ {
				for c := 0; c < 3; c++ {
					p[c] += N[v] * hexVertsWarped[v][c]
				}
			}
			got, ok := h.Localize(p)
			require.True(t, ok, "point %v should localize", p)
			for c := 0; c < 3; c++ {
				assert.True(t, near(got[c], ref[c]), "axis %d: %v vs %v", c, got[c], ref[c])
			}
		}
	}
	{ // Outside points rejected
		for _, p := range [][]float64{{5, 0, 0}, {0, 0, -3}, {2, 2, 2}} {
			_, ok := h.Localize(p)
			assert.False(t, ok, "point %v should be outside", p)
		}
	}
}

func TestHexDegenerateGeometry(t *testing.T) {
	tb, err := basis.Get(basis.Hex, 1)
	require.NoError(t, err)
	// swap the top and bottom faces to invert the element
	vm := utils.NewMatrix(8, 3)
	for v, g := range basis.HexVertices {
		vm.Set(v, 0, g[0])
		vm.Set(v, 1, g[1])
		vm.Set(v, 2, -g[2])
	}
	h := NewHex(7, tb, vm)
	err = h.Precompute()
	require.Error(t, err)
	var ge *GeometryError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, 7, ge.Elem)
}
