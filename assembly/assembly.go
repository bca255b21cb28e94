// Package assembly owns the named global field vectors and the
// canonical-to-global index translation between element kernels and
// the distributed state. Each mesh partition works on a local view
// (owned plus ghost entries); a two-phase channel exchange reduces
// ghost contributions into the owned/global vector, which is the
// single source of truth between steps.
package assembly

import (
	"fmt"
	"sort"
	"time"

	"github.com/notargets/gosem/basis"
	"github.com/notargets/gosem/mesh"
)

// DefaultSyncTimeout bounds how long SynchronizeEnd waits on a
// neighbor before declaring the exchange dead.
const DefaultSyncTimeout = 30 * time.Second

// Field is one named global vector. Global is indexed by global dof;
// between synchronization points every entry is written by exactly
// one partition, its owner.
type Field struct {
	Name   string
	Global []float64
}

// Assembly couples a partitioned mesh with its global DOF numbering
// and the field registry. Partitions run as one goroutine each, the
// channel matrix carries their boundary exchanges.
type Assembly struct {
	Mesh *mesh.Mesh
	Dof  *GlobalDof
	NP   int
	Part []*Partition

	SyncTimeout time.Duration

	fields    map[string]*Field
	ownerPart []int // per global dof
	chans     [][]chan haloMsg
}

// Partition is the working context of one mesh partition: its
// elements, the local slot numbering over every dof those elements
// touch, per-element closures into local slots, and the precomputed
// ghost exchange index maps.
type Partition struct {
	ID    int
	Elems []int // global element ids, ascending

	a        *Assembly
	l2g      []int
	g2l      map[int]int
	closures map[int][]int // element -> canonical node -> local slot
	owned    []int         // local slots owned here

	sendTo   []int         // neighbor partitions owning our ghosts
	recvFrom []int         // partitions ghosting dofs we own
	sendIdx  map[int][]int // neighbor -> local slots, global-dof order
	recvGdof map[int][]int // neighbor -> global dofs, same order

	local       map[string][]float64
	constrained map[int][]int              // element -> canonical nodes
	pending     map[string]map[int]float64 // field -> global dof -> value
}

// NewAssembly builds partition views and exchange maps from the mesh
// partition assignment (PartitionMesh must have run; a nil EToP means
// one partition).
func NewAssembly(m *mesh.Mesh, gd *GlobalDof) (a *Assembly, err error) {
	etop := m.EToP
	if etop == nil {
		etop = make([]int, m.K)
	}
	np := 1
	for _, p := range etop {
		if p+1 > np {
			np = p + 1
		}
	}
	a = &Assembly{
		Mesh:        m,
		Dof:         gd,
		NP:          np,
		SyncTimeout: DefaultSyncTimeout,
		fields:      make(map[string]*Field),
	}
	a.ownerPart = make([]int, gd.NumDof)
	for g := 0; g < gd.NumDof; g++ {
		a.ownerPart[g] = etop[gd.ownerElem[g]]
	}

	a.Part = make([]*Partition, np)
	for p := 0; p < np; p++ {
		a.Part[p] = &Partition{
			ID:          p,
			a:           a,
			g2l:         make(map[int]int),
			closures:    make(map[int][]int),
			sendIdx:     make(map[int][]int),
			recvGdof:    make(map[int][]int),
			local:       make(map[string][]float64),
			constrained: make(map[int][]int),
			pending:     make(map[string]map[int]float64),
		}
	}
	for k := 0; k < m.K; k++ {
		pt := a.Part[etop[k]]
		pt.Elems = append(pt.Elems, k)
	}

	for _, pt := range a.Part {
		if len(pt.Elems) == 0 {
			return nil, basis.NewConfigurationError("partition %d has no elements", pt.ID)
		}
		pt.buildLocalNumbering(gd)
	}
	a.buildExchange()
	return
}

// buildLocalNumbering assigns local slots in first-touch order over
// ascending elements, so the numbering is deterministic for a given
// partition layout.
func (p *Partition) buildLocalNumbering(gd *GlobalDof) {
	for _, k := range p.Elems {
		var (
			gids = gd.Closure(k)
			cl   = make([]int, len(gids))
		)
		for node, g := range gids {
			slot, ok := p.g2l[g]
			if !ok {
				slot = len(p.l2g)
				p.l2g = append(p.l2g, g)
				p.g2l[g] = slot
			}
			cl[node] = slot
		}
		p.closures[k] = cl
	}
	for slot, g := range p.l2g {
		if p.a.ownerPart[g] == p.ID {
			p.owned = append(p.owned, slot)
		}
	}
}

func (a *Assembly) buildExchange() {
	for _, p := range a.Part {
		ghosts := make(map[int][]int) // owner partition -> global dofs
		for _, g := range p.l2g {
			if q := a.ownerPart[g]; q != p.ID {
				ghosts[q] = append(ghosts[q], g)
			}
		}
		for q, gl := range ghosts {
			sort.Ints(gl)
			idx := make([]int, len(gl))
			for i, g := range gl {
				idx[i] = p.g2l[g]
			}
			p.sendTo = append(p.sendTo, q)
			p.sendIdx[q] = idx
			a.Part[q].recvFrom = append(a.Part[q].recvFrom, p.ID)
			a.Part[q].recvGdof[p.ID] = gl
		}
	}
	for _, p := range a.Part {
		sort.Ints(p.sendTo)
		sort.Ints(p.recvFrom)
	}
	a.chans = make([][]chan haloMsg, a.NP)
	for i := range a.chans {
		a.chans[i] = make([]chan haloMsg, a.NP)
	}
	for _, p := range a.Part {
		for _, q := range p.sendTo {
			// capacity bounds the push fields in flight per step
			a.chans[p.ID][q] = make(chan haloMsg, 8)
		}
	}
}

// AddField registers a named global field, zero initialized, with a
// local view on every partition. Adding a field twice is a
// configuration error.
func (a *Assembly) AddField(name string) error {
	if _, ok := a.fields[name]; ok {
		return basis.NewConfigurationError("field %s already registered", name)
	}
	a.fields[name] = &Field{Name: name, Global: make([]float64, a.Dof.NumDof)}
	for _, p := range a.Part {
		p.local[name] = make([]float64, len(p.l2g))
		p.pending[name] = make(map[int]float64)
	}
	return nil
}

// HasField reports whether a field is registered.
func (a *Assembly) HasField(name string) bool {
	_, ok := a.fields[name]
	return ok
}

// Field returns the owned/global vector of a registered field. An
// unknown name is a programming error and panics.
func (a *Assembly) Field(name string) []float64 {
	return a.field(name).Global
}

func (a *Assembly) field(name string) *Field {
	f, ok := a.fields[name]
	if !ok {
		panic(fmt.Errorf("unknown field %s", name))
	}
	return f
}

// Owner returns the partition owning global dof g.
func (a *Assembly) Owner(g int) int { return a.ownerPart[g] }

// InvertField replaces every global entry by its reciprocal, used once
// at setup to turn the assembled diagonal mass into the inverse mass.
func (a *Assembly) InvertField(name string) {
	gl := a.Field(name)
	for i, v := range gl {
		gl[i] = 1 / v
	}
}

// NumLocal returns the local view length, owned plus ghost dofs.
func (p *Partition) NumLocal() int { return len(p.l2g) }

// LocalToGlobal returns the global dof of a local slot.
func (p *Partition) LocalToGlobal(slot int) int { return p.l2g[slot] }

// PullField copies the owned/global vector into the local view,
// ghosts included. The local view is scratch, valid only until the
// next pull.
func (p *Partition) PullField(name string) {
	var (
		gl  = p.a.Field(name)
		loc = p.local[name]
	)
	for i, g := range p.l2g {
		loc[i] = gl[g]
	}
}

// ElementView gathers element k's canonical values from the local
// view into out, allocating when out is nil.
func (p *Partition) ElementView(name string, k int, out []float64) []float64 {
	var (
		loc = p.local[name]
		cl  = p.closures[k]
	)
	if out == nil {
		out = make([]float64, len(cl))
	}
	for node, slot := range cl {
		out[node] = loc[slot]
	}
	return out
}

// AccumulateFromElement scatter-adds element k's canonical values
// into the local view. Shared entries add, so the final sums depend
// on element order only up to floating point associativity; exact
// bit reproducibility across partition counts is not guaranteed.
func (p *Partition) AccumulateFromElement(name string, k int, vals []float64) {
	var (
		loc = p.local[name]
		cl  = p.closures[k]
	)
	for node, slot := range cl {
		loc[slot] += vals[node]
	}
}

// ZeroField clears the local view before an accumulation pass.
func (p *Partition) ZeroField(name string) {
	loc := p.local[name]
	for i := range loc {
		loc[i] = 0
	}
}

// Constrain flags element k's canonical nodes for boundary overwrite.
// Registered once at setup by whoever wires the physics.
func (p *Partition) Constrain(k int, nodes []int) {
	p.constrained[k] = nodes
}

// SetBoundaryCondition overwrites the constrained entries of element
// k in the local view and records them for re-application on the
// owned vector at SynchronizeEnd, so no accumulated contribution
// survives on a constrained dof. Must run after the element
// accumulation pass. Elements without constraints are a no-op.
func (p *Partition) SetBoundaryCondition(k int, name string, value float64) {
	nodes := p.constrained[k]
	if len(nodes) == 0 {
		return
	}
	var (
		loc  = p.local[name]
		cl   = p.closures[k]
		pend = p.pending[name]
	)
	for _, node := range nodes {
		slot := cl[node]
		loc[slot] = value
		pend[p.l2g[slot]] = value
	}
}
