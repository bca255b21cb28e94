package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypes(t *testing.T) {
	{ // Test packed int for edge labeling
		en := NewEdgeKey([2]int{1, 0})
		assert.Equal(t, EdgeKey(1<<32), en)
		assert.Equal(t, [2]int{0, 1}, en.GetVertices())

		en = NewEdgeKey([2]int{0, 1})
		assert.Equal(t, EdgeKey(1<<32), en)
		assert.Equal(t, [2]int{0, 1}, en.GetVertices())

		en = NewEdgeKey([2]int{0, 10})
		assert.Equal(t, EdgeKey(10*(1<<32)), en)
		assert.Equal(t, [2]int{0, 10}, en.GetVertices())

		en = NewEdgeKey([2]int{100, 0})
		assert.Equal(t, EdgeKey(100*(1<<32)), en)
		assert.Equal(t, [2]int{0, 100}, en.GetVertices())

		en = NewEdgeKey([2]int{100, 1})
		assert.Equal(t, EdgeKey(100*(1<<32)+1), en)
		assert.Equal(t, [2]int{1, 100}, en.GetVertices())

		en = NewEdgeKey([2]int{100, 100001})
		assert.Equal(t, EdgeKey(100001*(1<<32)+100), en)
		assert.Equal(t, [2]int{100, 100001}, en.GetVertices())

		// Test maximum/minimum indices
		en = NewEdgeKey([2]int{1, 1<<32 - 1})
		assert.Equal(t, EdgeKey((1<<32-1)<<32+1), en)
		assert.Equal(t, [2]int{1, 1<<32 - 1}, en.GetVertices())

		en = NewEdgeKey([2]int{1<<32 - 1, 1<<32 - 1})
		assert.Equal(t, EdgeKey(1<<64-1), en)
		assert.Equal(t, [2]int{1<<32 - 1, 1<<32 - 1}, en.GetVertices())

		en = NewEdgeKey([2]int{1<<32 - 1, 1})
		assert.Equal(t, EdgeKey((1<<32-1)<<32+1), en)
		assert.Equal(t, [2]int{1, 1<<32 - 1}, en.GetVertices())
	}
	{ // Face keys compare equal regardless of traversal order
		fk := NewFaceKey([4]int{12, 3, 7, 5})
		assert.Equal(t, FaceKey{3, 5, 7, 12}, fk)
		assert.Equal(t, fk, NewFaceKey([4]int{7, 12, 5, 3}))
		assert.Equal(t, [4]int{3, 5, 7, 12}, fk.GetVertices())
	}
	{ // BC kinds resolve case insensitively, unknown kinds are BC_None
		tokens := []string{"Dirichlet", "fixed", "NEUMANN", "absorbing", " free ", "periodic"}
		flags := []BCFLAG{BC_Dirichlet, BC_Dirichlet, BC_Neumann, BC_Absorbing, BC_FreeSurface, BC_None}
		for i, token := range tokens {
			assert.Equal(t, flags[i], NewBCFlag(token))
		}
	}
}
