package physics

import (
	"github.com/notargets/gosem/basis"
	"github.com/notargets/gosem/element"
)

// Acoustic is the scalar wave kernel: the pressure like field "u"
// drives the acceleration "a" through the wavespeed squared flux
// sigma = vp^2 grad(u). Unit mass density formulation.
type Acoustic struct {
	base
	vp2        []float64 // prepared squared wavespeed
	ones       []float64
	grad, flux []float64
}

func NewAcoustic2D(sh element.Shape) (Physics, error) {
	if sh.Dim() != 2 {
		return nil, basis.NewConfigurationError(
			"acoustic2d requires a 2-D element, element %d is %d-D", sh.GlobalID(), sh.Dim())
	}
	return newAcoustic(sh), nil
}

func NewAcoustic3D(sh element.Shape) (Physics, error) {
	if sh.Dim() != 3 {
		return nil, basis.NewConfigurationError(
			"acoustic3d requires a 3-D element, element %d is %d-D", sh.GlobalID(), sh.Dim())
	}
	return newAcoustic(sh), nil
}

func newAcoustic(sh element.Shape) *Acoustic {
	var (
		nq = sh.NumQuadPoints()
		ac = &Acoustic{
			base: base{sh: sh},
			ones: make([]float64, nq),
			grad: make([]float64, sh.Dim()*nq),
			flux: make([]float64, sh.Dim()*nq),
		}
	)
	for i := range ac.ones {
		ac.ones[i] = 1
	}
	return ac
}

func (ac *Acoustic) PullFieldNames() []string { return []string{"u"} }
func (ac *Acoustic) PushFieldNames() []string { return []string{"a"} }

func (ac *Acoustic) AttachMaterial(m Model) error { return ac.attach(m, "VP") }

func (ac *Acoustic) PrepareStiffness() error {
	if err := ac.checkAttached(); err != nil {
		return err
	}
	vp := ac.params["VP"]
	ac.vp2 = make([]float64, len(vp))
	for q, v := range vp {
		ac.vp2[q] = v * v
	}
	return nil
}

// MassContribution: shape functions against themselves, unit density.
func (ac *Acoustic) MassContribution(out []float64) error {
	if err := ac.checkAttached(); err != nil {
		return err
	}
	ac.sh.ApplyTestAndIntegrate(ac.ones, out)
	return nil
}

func (ac *Acoustic) StiffnessAction(fields, out [][]float64) error {
	if err := ac.checkAttached(); err != nil {
		return err
	}
	var (
		sh = ac.sh
		nq = sh.NumQuadPoints()
		d  = sh.Dim()
		vp = ac.params["VP"]
	)
	sh.Gradient(fields[0], ac.grad)
	for q := 0; q < nq; q++ {
		v2 := 0.
		if ac.vp2 != nil {
			v2 = ac.vp2[q]
		} else {
			v2 = vp[q] * vp[q]
		}
		for a := 0; a < d; a++ {
			ac.flux[a*nq+q] = v2 * ac.grad[a*nq+q]
		}
	}
	sh.ApplyGradTestAndIntegrate(ac.flux, out[0])
	return nil
}

func (ac *Acoustic) MaxWavespeed() float64 { return ac.paramMax("VP") }
