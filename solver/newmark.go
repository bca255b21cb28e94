package solver

import (
	"github.com/notargets/gosem/assembly"
	"github.com/notargets/gosem/utils"
)

// quadruple names the four state vectors of one solved component. The
// velocity mirrors the displacement name and the acceleration history
// carries a trailing underscore, so acoustic tracks (u, v, a, a_) and
// elastic tracks one quadruple per axis.
type quadruple struct {
	U, V, A, Aprev string
}

type quadVecs struct {
	u, v, acc, accPrev []float64
}

// Newmark is the order-2 explicit integrator. It owns the step size
// and clock and advances every tracked quadruple in place over the
// global vectors; the per-DOF loops shard across the partition
// goroutines by PartitionMap bucket.
type Newmark struct {
	Dt   float64
	Time float64
	Step int

	quads []quadruple
	vecs  []quadVecs
	mi    []float64
	pm    *utils.PartitionMap
}

// NewNewmark registers the state vectors for the given solved
// components plus the inverse mass field, all zero. Components pair
// the displacement-like pulled names with the acceleration-like pushed
// names in slice order.
func NewNewmark(a *assembly.Assembly, pulls, pushes []string, dt float64) (nm *Newmark, err error) {
	nm = &Newmark{
		Dt: dt,
		pm: utils.NewPartitionMap(a.NP, a.Dof.NumDof),
	}
	for c, u := range pulls {
		q := quadruple{U: u, V: "v" + u[1:], A: pushes[c], Aprev: pushes[c] + "_"}
		for _, name := range []string{q.U, q.V, q.A, q.Aprev} {
			if err = a.AddField(name); err != nil {
				return nil, err
			}
		}
		nm.quads = append(nm.quads, q)
	}
	if err = a.AddField("mi"); err != nil {
		return nil, err
	}
	nm.bind(a)
	return
}

// bind caches the global vectors behind each tracked quadruple. A
// quadruple with any vector missing from the registry is dropped.
func (nm *Newmark) bind(a *assembly.Assembly) {
	nm.vecs = nm.vecs[:0]
	for _, q := range nm.quads {
		if !a.HasField(q.U) || !a.HasField(q.V) || !a.HasField(q.A) || !a.HasField(q.Aprev) {
			continue
		}
		nm.vecs = append(nm.vecs, quadVecs{
			u:       a.Field(q.U),
			v:       a.Field(q.V),
			acc:     a.Field(q.A),
			accPrev: a.Field(q.Aprev),
		})
	}
	nm.mi = a.Field("mi")
}

// ApplyInverseMass turns the assembled force into acceleration on
// bucket myThread of the global vectors. The mass matrix is diagonal,
// so this pointwise product is the whole solve.
func (nm *Newmark) ApplyInverseMass(myThread int) {
	var (
		iMin, iMax = nm.pm.GetBucketRange(myThread)
	)
	for _, qv := range nm.vecs {
		for i := iMin; i < iMax; i++ {
			qv.acc[i] *= nm.mi[i]
		}
	}
}

// Advance moves bucket myThread one step: velocity first from the
// trapezoid of old and new acceleration, then displacement from the
// updated velocity, then the acceleration history.
func (nm *Newmark) Advance(myThread int) {
	var (
		iMin, iMax = nm.pm.GetBucketRange(myThread)
		half       = 0.5 * nm.Dt
		halfSq     = 0.5 * nm.Dt * nm.Dt
	)
	for _, qv := range nm.vecs {
		for i := iMin; i < iMax; i++ {
			qv.v[i] += half * (qv.acc[i] + qv.accPrev[i])
			qv.u[i] += nm.Dt*qv.v[i] + halfSq*qv.acc[i]
			qv.accPrev[i] = qv.acc[i]
		}
	}
}

// Tick advances the clock once all buckets have run Advance.
func (nm *Newmark) Tick() {
	nm.Time += nm.Dt
	nm.Step++
}
