// Package solver drives the explicit Newmark time loop over a
// partitioned spectral element mesh: one goroutine per partition,
// phases separated by WaitGroup barriers, ghost exchange between
// element assembly and the pointwise solve.
package solver

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/notargets/gosem/InputParameters"
	"github.com/notargets/gosem/assembly"
	"github.com/notargets/gosem/basis"
	"github.com/notargets/gosem/element"
	"github.com/notargets/gosem/mesh"
	"github.com/notargets/gosem/physics"
	"github.com/notargets/gosem/types"
)

const (
	defaultDivergenceThreshold = 1.e10
	// The eigenfunction solution lives in [-1,1], anything past this is
	// blowing up.
	eigenDivergenceThreshold = 5.0
	divergenceCheckEvery     = 10
)

// DivergenceError aborts a run whose tracked field or error magnitude
// left the sane range.
type DivergenceError struct {
	Step      int
	Field     string
	Max       float64
	Threshold float64
}

func (e *DivergenceError) Error() string {
	return fmt.Sprintf("step %d: field %s reached %g, past the divergence threshold %g",
		e.Step, e.Field, e.Max, e.Threshold)
}

// EstimateDt returns the explicit step bound scaled by cfl: the
// smallest physical node spacing over wavespeed ratio across all
// elements. Used for the timestep when the input gives CFL, not Dt.
func EstimateDt(phys []physics.Physics, cfl float64) (dt float64) {
	dt = math.MaxFloat64
	for _, p := range phys {
		if d := p.Shape().MinNodeSpacing() / p.MaxWavespeed(); d < dt {
			dt = d
		}
	}
	return cfl * dt
}

// scratchSpace holds one partition's element work buffers so the hot
// loop never allocates.
type scratchSpace struct {
	fields [][]float64
	rhs    [][]float64
}

func newScratchSpace(npull, npush, nq int) *scratchSpace {
	s := &scratchSpace{
		fields: make([][]float64, npull),
		rhs:    make([][]float64, npush),
	}
	for c := range s.fields {
		s.fields[c] = make([]float64, nq)
	}
	for c := range s.rhs {
		s.rhs[c] = make([]float64, nq)
	}
	return s
}

type eigenTrack struct {
	un      []float64 // eigenfunction sampled at every global dof
	omega   float64
	LastErr float64
	MaxErr  float64
}

// Simulation wires mesh, basis table, per-element geometry and physics
// kernels, the distributed assembly and the integrator into a runnable
// problem.
type Simulation struct {
	SP     *InputParameters.SimulationParameters
	Mesh   *mesh.Mesh
	Table  *basis.Table
	Shapes []element.Shape
	Phys   []physics.Physics
	A      *assembly.Assembly
	NM     *Newmark
	Arena  *Arena

	pulls, pushes []string
	constrained   []bool // per element, true when Dirichlet wrapped
	scratch       []*scratchSpace
	errs          []error
	eigen         *eigenTrack
	threshold     float64
}

func buildMesh(sp *InputParameters.SimulationParameters) (*mesh.Mesh, error) {
	switch {
	case sp.MeshFile != "":
		return mesh.ReadGambit2D(sp.MeshFile, sp.Verbose), nil
	case sp.Structured != nil:
		s := sp.Structured
		if s.Nz == 0 {
			return mesh.NewQuadRect(s.Nx, s.Ny, s.X0, s.X1, s.Y0, s.Y1), nil
		}
		return mesh.NewHexBox(s.Nx, s.Ny, s.Nz, s.X0, s.X1, s.Y0, s.Y1, s.Z0, s.Z1), nil
	}
	return nil, basis.NewConfigurationError("no mesh configured: set MeshFile or Structured")
}

// dirichletFaces gathers the constrained local faces per element from
// the named boundary groups. Only homogeneous Dirichlet ships.
func dirichletFaces(m *mesh.Mesh, bcs map[string]string) (map[int][]int, error) {
	faces := make(map[int][]int)
	for name, kind := range bcs {
		if types.NewBCFlag(kind) != types.BC_Dirichlet {
			return nil, basis.NewConfigurationError(
				"boundary %s: unsupported condition %q", name, kind)
		}
		efs, ok := m.Boundaries[name]
		if !ok {
			return nil, basis.NewConfigurationError("boundary %s is not in the mesh", name)
		}
		for _, ef := range efs {
			faces[ef.Elem] = append(faces[ef.Elem], ef.Face)
		}
	}
	return faces, nil
}

// NewSimulation builds the full pipeline: mesh, partitioning, basis
// table, geometry kernels, physics kernels with material and boundary
// wrapping, DOF assembly, mass inversion, source and receiver
// attachment, initial state. Everything that can fail does so here,
// before any stepping.
func NewSimulation(sp *InputParameters.SimulationParameters) (sim *Simulation, err error) {
	sim = &Simulation{SP: sp}
	if sim.Mesh, err = buildMesh(sp); err != nil {
		return nil, err
	}
	m := sim.Mesh
	if m.K < 1 {
		return nil, basis.NewConfigurationError("mesh has no elements")
	}
	if sp.NumPartitions > 1 {
		if err = m.PartitionMesh(sp.NumPartitions, sp.PolynomialOrder, sp.Verbose); err != nil {
			return nil, err
		}
	}
	if sim.Table, err = basis.Get(m.Shape, sp.PolynomialOrder); err != nil {
		return nil, err
	}

	sim.Shapes = make([]element.Shape, m.K)
	for k := 0; k < m.K; k++ {
		var sh element.Shape
		if m.Shape == basis.Quad {
			sh = element.NewQuad(k, sim.Table, m.ElementVerts(k))
		} else {
			sh = element.NewHex(k, sim.Table, m.ElementVerts(k))
		}
		if err = sh.Precompute(); err != nil {
			return nil, err
		}
		sim.Shapes[k] = sh
	}

	var (
		model    = physics.HomogeneousModel{Params: sp.Material}
		dirFaces map[int][]int
	)
	if dirFaces, err = dirichletFaces(m, sp.BCs); err != nil {
		return nil, err
	}
	sim.Phys = make([]physics.Physics, m.K)
	sim.constrained = make([]bool, m.K)
	for k := range sim.Phys {
		var p physics.Physics
		if p, err = physics.New(sp.Physics, sim.Shapes[k]); err != nil {
			return nil, err
		}
		if err = p.AttachMaterial(model); err != nil {
			return nil, err
		}
		if err = p.PrepareStiffness(); err != nil {
			return nil, err
		}
		if faces := dirFaces[k]; len(faces) > 0 {
			p = physics.NewHomogeneousDirichlet(p, sim.Table, faces)
			sim.constrained[k] = true
		}
		sim.Phys[k] = p
	}
	sim.pulls = sim.Phys[0].PullFieldNames()
	sim.pushes = sim.Phys[0].PushFieldNames()

	var gd *assembly.GlobalDof
	if gd, err = assembly.NewGlobalDof(m, sim.Table); err != nil {
		return nil, err
	}
	if sim.A, err = assembly.NewAssembly(m, gd); err != nil {
		return nil, err
	}
	for _, pt := range sim.A.Part {
		for _, k := range pt.Elems {
			if hd, ok := sim.Phys[k].(physics.BoundaryConstrained); ok {
				pt.Constrain(k, hd.BoundaryNodes())
			}
		}
	}

	dt := sp.Dt
	if dt == 0 {
		if sp.CFL == 0 {
			return nil, basis.NewConfigurationError("either Dt or CFL must be positive")
		}
		dt = EstimateDt(sim.Phys, sp.CFL)
	}
	if sim.NM, err = NewNewmark(sim.A, sim.pulls, sim.pushes, dt); err != nil {
		return nil, err
	}
	if err = sim.assembleMass(); err != nil {
		return nil, err
	}

	sim.Arena = NewArena()
	if err = sim.Arena.AttachSources(sim.Shapes, sp.Sources, len(sim.pushes)); err != nil {
		return nil, err
	}
	for i := range sim.Arena.Sources {
		src := &sim.Arena.Sources[i]
		sim.Phys[src.Elem].AttachSource(physics.PointSource{
			Coeffs: sim.Shapes[src.Elem].DeltaCoefficients(src.Ref),
			Scale:  src.Scale,
			Fire:   src.Fire,
		})
	}
	if err = sim.Arena.AttachReceivers(sim.Shapes, sp.Receivers, sim.pulls[0]); err != nil {
		return nil, err
	}

	switch sp.InitType {
	case "", "zero":
	case "eigenfunction":
		if err = sim.setupEigenfunction(); err != nil {
			return nil, err
		}
	default:
		return nil, basis.NewConfigurationError("unknown InitType %q", sp.InitType)
	}

	sim.threshold = sp.DivergenceThreshold
	if sim.threshold == 0 {
		sim.threshold = defaultDivergenceThreshold
		if sim.eigen != nil {
			sim.threshold = eigenDivergenceThreshold
		}
	}

	sim.scratch = make([]*scratchSpace, sim.A.NP)
	for p := range sim.scratch {
		sim.scratch[p] = newScratchSpace(len(sim.pulls), len(sim.pushes), sim.Shapes[0].NumQuadPoints())
	}
	sim.errs = make([]error, sim.A.NP)
	return sim, nil
}

// assembleMass accumulates the lumped diagonal mass once and inverts
// it in place, so every step reduces to a pointwise product. Setup
// runs before the partition goroutines exist, the sequential
// begin/end sweep cannot deadlock on the buffered channels.
func (sim *Simulation) assembleMass() error {
	buf := make([]float64, sim.Shapes[0].NumQuadPoints())
	for _, pt := range sim.A.Part {
		for _, k := range pt.Elems {
			if err := sim.Phys[k].MassContribution(buf); err != nil {
				return err
			}
			pt.AccumulateFromElement("mi", k, buf)
		}
	}
	for _, pt := range sim.A.Part {
		pt.SynchronizeBegin("mi")
	}
	for _, pt := range sim.A.Part {
		if err := pt.SynchronizeEnd("mi"); err != nil {
			return err
		}
	}
	sim.A.InvertField("mi")
	return nil
}

// setupEigenfunction seeds the standing acoustic mode that vanishes on
// the domain walls, with its exact decay factor tracked during the
// run. The displacement starts on the mode, velocity and acceleration
// history at zero.
func (sim *Simulation) setupEigenfunction() error {
	if sim.Mesh.Dim != 2 || !sim.A.HasField("u") {
		return basis.NewConfigurationError(
			"eigenfunction initial condition needs 2-D acoustic physics")
	}
	var (
		x0, x1 = bounds(sim.Mesh.VX.DataP)
		y0, y1 = bounds(sim.Mesh.VY.DataP)
		lx, ly = x1 - x0, y1 - y0
		vp     = sim.SP.Material["VP"]
		u      = sim.A.Field("u")
		un     = make([]float64, sim.A.Dof.NumDof)
	)
	for k, sh := range sim.Shapes {
		var (
			x    = sh.NodeCoordinates()
			clos = sim.A.Dof.Closure(k)
		)
		for n, g := range clos {
			un[g] = math.Sin(math.Pi*(x.At(n, 0)-x0)/lx) *
				math.Sin(math.Pi*(x.At(n, 1)-y0)/ly)
			u[g] = un[g]
		}
	}
	sim.eigen = &eigenTrack{
		un:    un,
		omega: math.Pi * vp * math.Sqrt(1/(lx*lx)+1/(ly*ly)),
	}
	return nil
}

func bounds(vals []float64) (min, max float64) {
	min, max = vals[0], vals[0]
	for _, v := range vals {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return
}

// Solve runs the time loop to FinalTime. Any partition error, exchange
// timeout or divergence aborts the run with the underlying error.
func (sim *Simulation) Solve() (err error) {
	var (
		nm         = sim.NM
		ft         = sim.SP.FinalTime
		start      = time.Now()
		nSteps     = int(math.Ceil(ft / nm.Dt))
		printEvery = nSteps / 20
	)
	if printEvery < 1 {
		printEvery = 1
	}
	for nm.Time < ft {
		if err = sim.step(); err != nil {
			return err
		}
		sim.Arena.Record(nm.Time, sim.A, sim.Shapes)
		if sim.eigen != nil {
			sim.trackEigenError()
			if e := sim.eigen.LastErr; e > sim.threshold || math.IsNaN(e) {
				return &DivergenceError{Step: nm.Step, Field: "u",
					Max: e, Threshold: sim.threshold}
			}
		} else if nm.Step%divergenceCheckEvery == 0 {
			if err = sim.checkDivergence(); err != nil {
				return err
			}
		}
		if sim.SP.Verbose || nm.Step%printEvery == 0 {
			sim.printProgress(start)
		}
	}
	elapsed := time.Since(start)
	perStep := elapsed.Seconds()
	if nm.Step > 0 {
		perStep /= float64(nm.Step)
	}
	fmt.Printf("run complete: %d steps to time %8.5f in %v (%.3g s/step)\n",
		nm.Step, nm.Time, elapsed.Round(time.Millisecond), perStep)
	if sim.eigen != nil {
		fmt.Printf("max pointwise eigenfunction error %10.4g\n", sim.eigen.MaxErr)
	}
	for i := range sim.Arena.Receivers {
		rcv := &sim.Arena.Receivers[i]
		peak := 0.
		for _, v := range rcv.Values {
			if a := math.Abs(v); a > peak {
				peak = a
			}
		}
		fmt.Printf("receiver %s: %s on element %d, %d samples, peak %10.4g\n",
			rcv.Name, rcv.Field, rcv.Elem, len(rcv.Values), peak)
	}
	return nil
}

// step runs one explicit step: local assembly on every partition, the
// ghost exchange, then the sharded pointwise solve and state advance.
// Barriers separate the phases, so all accumulation and boundary
// recording land before any SynchronizeEnd, and all owned vectors are
// final before any bucket advances.
func (sim *Simulation) step() error {
	var (
		np = sim.A.NP
		wg sync.WaitGroup
	)
	wg.Add(np)
	for p := 0; p < np; p++ {
		go func(p int) {
			defer wg.Done()
			sim.errs[p] = sim.assembleLocal(sim.A.Part[p])
		}(p)
	}
	wg.Wait()
	if err := sim.firstErr(); err != nil {
		return err
	}

	wg.Add(np)
	for p := 0; p < np; p++ {
		go func(p int) {
			defer wg.Done()
			sim.errs[p] = sim.exchange(sim.A.Part[p])
		}(p)
	}
	wg.Wait()
	if err := sim.firstErr(); err != nil {
		return err
	}

	wg.Add(np)
	for p := 0; p < np; p++ {
		go func(p int) {
			defer wg.Done()
			sim.NM.ApplyInverseMass(p)
			sim.NM.Advance(p)
		}(p)
	}
	wg.Wait()

	sim.NM.Tick()
	return nil
}

// assembleLocal is phase one on one partition: refresh the pulled
// local views, zero the push accumulators, add every element's
// source minus stiffness contribution, then overwrite the constrained
// boundary values.
func (sim *Simulation) assembleLocal(pt *assembly.Partition) error {
	var (
		scr = sim.scratch[pt.ID]
	)
	for _, name := range sim.pulls {
		pt.PullField(name)
	}
	for _, name := range sim.pushes {
		pt.ZeroField(name)
	}
	for _, k := range pt.Elems {
		var (
			phys = sim.Phys[k]
		)
		for c, name := range sim.pulls {
			scr.fields[c] = pt.ElementView(name, k, scr.fields[c])
		}
		if err := phys.StiffnessAction(scr.fields, scr.rhs); err != nil {
			return err
		}
		for c := range scr.rhs {
			out := scr.rhs[c]
			for i := range out {
				out[i] = -out[i]
			}
		}
		phys.SourceTerm(sim.NM.Time, scr.rhs)
		phys.SurfaceIntegral(scr.fields, scr.rhs)
		for c, name := range sim.pushes {
			pt.AccumulateFromElement(name, k, scr.rhs[c])
		}
	}
	for _, k := range pt.Elems {
		if !sim.constrained[k] {
			continue
		}
		for _, name := range sim.pushes {
			pt.SetBoundaryCondition(k, name, 0)
		}
	}
	return nil
}

func (sim *Simulation) exchange(pt *assembly.Partition) error {
	for _, name := range sim.pushes {
		pt.SynchronizeBegin(name)
	}
	for _, name := range sim.pushes {
		if err := pt.SynchronizeEnd(name); err != nil {
			return err
		}
	}
	return nil
}

func (sim *Simulation) firstErr() error {
	for _, e := range sim.errs {
		if e != nil {
			return e
		}
	}
	return nil
}

// trackEigenError compares the displacement with the exact standing
// mode. The advanced field sits half a step behind the clock.
func (sim *Simulation) trackEigenError() {
	var (
		eg     = sim.eigen
		u      = sim.A.Field("u")
		t      = sim.NM.Time - 0.5*sim.NM.Dt
		factor = math.Cos(eg.omega * t)
		errMax float64
	)
	for g, un := range eg.un {
		if e := math.Abs(factor*un - u[g]); e > errMax {
			errMax = e
		}
	}
	eg.LastErr = errMax
	if errMax > eg.MaxErr {
		eg.MaxErr = errMax
	}
}

func (sim *Simulation) checkDivergence() error {
	for _, name := range sim.pushes {
		max := maxAbs(sim.A.Field(name))
		if max > sim.threshold || math.IsNaN(max) {
			return &DivergenceError{Step: sim.NM.Step, Field: name,
				Max: max, Threshold: sim.threshold}
		}
	}
	return nil
}

func maxAbs(vals []float64) (max float64) {
	for _, v := range vals {
		if a := math.Abs(v); a > max || math.IsNaN(a) {
			max = a
		}
	}
	return
}

func (sim *Simulation) printProgress(start time.Time) {
	var (
		nm = sim.NM
	)
	fmt.Printf("step %6d  time %9.5f  max|%s| %10.4g",
		nm.Step, nm.Time, sim.pulls[0], maxAbs(sim.A.Field(sim.pulls[0])))
	if sim.eigen != nil {
		fmt.Printf("  err %10.4g", sim.eigen.LastErr)
	}
	fmt.Printf("  elapsed %8.3fs\n", time.Since(start).Seconds())
}
