package basis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGLLNodesAndWeights(t *testing.T) {
	{ // Weights integrate constants exactly for every supported order
		for P := MinOrder; P <= MaxOrder; P++ {
			tb, err := New(Quad, P)
			require.NoError(t, err)
			var sum float64
			for _, w := range tb.W.DataP {
				sum += w
			}
			assert.True(t, near(sum, 2), "order %d: weight sum %v", P, sum)
			// endpoints are always nodes
			assert.True(t, near(tb.R.DataP[0], -1))
			assert.True(t, near(tb.R.DataP[P], 1))
			// node symmetry
			for i := 0; i <= P; i++ {
				assert.True(t, near(tb.R.DataP[i], -tb.R.DataP[P-i]))
				assert.True(t, near(tb.W.DataP[i], tb.W.DataP[P-i]))
			}
		}
	}
	{ // Known order 2 values: nodes -1,0,1 with weights 1/3, 4/3, 1/3
		tb, err := New(Quad, 2)
		require.NoError(t, err)
		assert.InDeltaSlice(t, []float64{-1, 0, 1}, tb.R.DataP, 1.e-12)
		assert.InDeltaSlice(t, []float64{1. / 3., 4. / 3., 1. / 3.}, tb.W.DataP, 1.e-12)
	}
}

func TestDifferentiationMatrix(t *testing.T) {
	{ // Dr annihilates constants and differentiates x exactly
		for P := MinOrder; P <= 7; P++ {
			tb, err := New(Quad, P)
			require.NoError(t, err)
			n := tb.Np1D
			for i := 0; i < n; i++ {
				var rowSum, dx float64
				for j := 0; j < n; j++ {
					rowSum += tb.Dr.At(i, j)
					dx += tb.Dr.At(i, j) * tb.R.DataP[j]
				}
				assert.True(t, near(rowSum, 0), "order %d row %d sum %v", P, i, rowSum)
				assert.True(t, near(dx, 1), "order %d row %d d(x)/dx %v", P, i, dx)
			}
		}
	}
	{ // Known order 2 matrix on nodes -1,0,1
		tb, _ := New(Quad, 2)
		expected := []float64{
			-1.5, 2, -0.5,
			-0.5, 0, 0.5,
			0.5, -2, 1.5,
		}
		assert.InDeltaSlice(t, expected, tb.Dr.DataP, 1.e-12)
	}
}

func TestLagrangeInterpolation(t *testing.T) {
	tb, err := New(Quad, 4)
	require.NoError(t, err)
	{ // Cardinal property at the nodes
		for i, x := range tb.R.DataP {
			l := tb.Interpolate1D(x)
			for j := range l {
				if j == i {
					assert.True(t, near(l[j], 1))
				} else {
					assert.True(t, near(l[j], 0))
				}
			}
		}
	}
	{ // Partition of unity off the nodes
		for _, x := range []float64{-0.9371, -0.311, 0.0521, 0.477, 0.9999} {
			l := tb.Interpolate1D(x)
			var sum float64
			for _, v := range l {
				sum += v
			}
			assert.True(t, near(sum, 1), "x = %v, sum = %v", x, sum)
		}
	}
	{ // Tensor interpolation reproduces a bilinear function on a quad
		f := func(r, s float64) float64 { return 1.5 + 2*r - 3*s + 0.5*r*s }
		vals := make([]float64, tb.Np)
		n := tb.Np1D
		for j := 0; j < n; j++ {
			for i := 0; i < n; i++ {
				vals[i+n*j] = f(tb.R.DataP[i], tb.R.DataP[j])
			}
		}
		r, s := 0.3721, -0.647
		l := tb.Interpolate(r, s)
		var got float64
		for id, lv := range l {
			got += lv * vals[id]
		}
		assert.True(t, near(got, f(r, s)))
	}
}

func TestClosurePermutation(t *testing.T) {
	for _, shape := range []Shape{Quad, Hex} {
		for P := MinOrder; P <= 5; P++ {
			tb, err := New(shape, P)
			require.NoError(t, err)
			perm := tb.Closure()
			require.Equal(t, tb.Np, len(perm), "%v order %d", shape, P)
			seen := make([]bool, tb.Np)
			for _, id := range perm {
				require.False(t, seen[id], "%v order %d: node %d repeated", shape, P, id)
				seen[id] = true
			}
		}
	}
	{ // Quad order 3 corner and edge layout
		tb, _ := New(Quad, 3)
		assert.Equal(t, []int{0, 3, 15, 12}, tb.Corners())
		segs := tb.EdgeSegments()
		assert.Equal(t, []int{1, 2}, segs[0])    // bottom, left to right
		assert.Equal(t, []int{7, 11}, segs[1])   // right, bottom to top
		assert.Equal(t, []int{14, 13}, segs[2])  // top, right to left
		assert.Equal(t, []int{8, 4}, segs[3])    // left, top to bottom
		assert.Equal(t, []int{5, 6, 9, 10}, tb.FaceSegments()[0])
	}
	{ // Hex corners at order 1 are the vertices themselves
		tb, _ := New(Hex, 1)
		assert.Equal(t, []int{0, 1, 3, 2, 4, 5, 7, 6}, tb.Corners())
		assert.Empty(t, tb.VolumeSegment())
	}
}

func TestTableRegistry(t *testing.T) {
	{ // Unsupported shapes and orders fail fast with a configuration error
		_, err := Get(Tri, 3)
		require.Error(t, err)
		var ce *ConfigurationError
		assert.ErrorAs(t, err, &ce)
		_, err = Get(Quad, 0)
		require.Error(t, err)
		_, err = Get(Quad, MaxOrder+1)
		require.Error(t, err)
	}
	{ // Memoized: repeated lookups share one instance
		a, err := Get(Hex, 4)
		require.NoError(t, err)
		b, err := Get(Hex, 4)
		require.NoError(t, err)
		assert.Same(t, a, b)
	}
}

func near(a, b float64) (l bool) {
	bound := 1.e-08 * math.Abs(a)
	if bound < 1.e-10 {
		bound = 1.e-10
	}
	if math.Abs(a-b) < bound {
		l = true
	}
	return
}
