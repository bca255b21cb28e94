package physics

import (
	"github.com/notargets/gosem/basis"
	"github.com/notargets/gosem/element"
)

// Elastic3D is the vector wave kernel on hexahedra, transversely
// isotropic with a vertical symmetry axis. Isotropic media are the
// special case vph=vpv, vsh=vsv, eta=1.
type Elastic3D struct {
	base
	cij        []vti // prepared stiffness entries per point
	gx, gy, gz []float64
	stress     [6][]float64
	flux       []float64
}

// vti holds the five independent stiffness entries plus the dependent
// ones in the order the stress loop consumes them.
type vti struct {
	c11, c12, c13, c22, c23, c33, c44, c55, c66 float64
}

// vtiAt evaluates the stiffness entries at one point.
func vtiAt(rho, vpv, vph, vsv, vsh, eta float64) (c vti) {
	c.c11 = rho * vph * vph
	c.c22 = rho * vph * vph
	c.c33 = rho * vpv * vpv
	c.c44 = rho * vsv * vsv
	c.c55 = rho * vsv * vsv
	c.c66 = rho * vsh * vsh
	c.c12 = c.c11 - 2*c.c66
	c.c13 = eta * (c.c11 - 2*c.c44)
	c.c23 = eta * (c.c11 - 2*c.c44)
	return
}

func NewElastic3D(sh element.Shape) (Physics, error) {
	if sh.Dim() != 3 {
		return nil, basis.NewConfigurationError(
			"elastic3d requires a 3-D element, element %d is %d-D", sh.GlobalID(), sh.Dim())
	}
	var (
		nq = sh.NumQuadPoints()
		el = &Elastic3D{
			base: base{sh: sh},
			gx:   make([]float64, 3*nq),
			gy:   make([]float64, 3*nq),
			gz:   make([]float64, 3*nq),
			flux: make([]float64, 3*nq),
		}
	)
	for c := range el.stress {
		el.stress[c] = make([]float64, nq)
	}
	return el, nil
}

func (el *Elastic3D) PullFieldNames() []string { return []string{"ux", "uy", "uz"} }
func (el *Elastic3D) PushFieldNames() []string { return []string{"ax", "ay", "az"} }

func (el *Elastic3D) AttachMaterial(m Model) error {
	return el.attach(m, "RHO", "VPV", "VPH", "VSV", "VSH", "ETA")
}

func (el *Elastic3D) PrepareStiffness() error {
	if err := el.checkAttached(); err != nil {
		return err
	}
	var (
		rho = el.params["RHO"]
		vpv = el.params["VPV"]
		vph = el.params["VPH"]
		vsv = el.params["VSV"]
		vsh = el.params["VSH"]
		eta = el.params["ETA"]
	)
	el.cij = make([]vti, len(rho))
	for q := range rho {
		el.cij[q] = vtiAt(rho[q], vpv[q], vph[q], vsv[q], vsh[q], eta[q])
	}
	return nil
}

func (el *Elastic3D) MassContribution(out []float64) error {
	if err := el.checkAttached(); err != nil {
		return err
	}
	el.sh.ApplyTestAndIntegrate(el.params["RHO"], out)
	return nil
}

func (el *Elastic3D) StiffnessAction(fields, out [][]float64) error {
	if err := el.checkAttached(); err != nil {
		return err
	}
	var (
		sh = el.sh
		nq = sh.NumQuadPoints()
	)
	sh.Gradient(fields[0], el.gx)
	sh.Gradient(fields[1], el.gy)
	sh.Gradient(fields[2], el.gz)
	var (
		rho = el.params["RHO"]
		vpv = el.params["VPV"]
		vph = el.params["VPH"]
		vsv = el.params["VSV"]
		vsh = el.params["VSH"]
		eta = el.params["ETA"]
	)
	for q := 0; q < nq; q++ {
		var c vti
		if el.cij != nil {
			c = el.cij[q]
		} else {
			c = vtiAt(rho[q], vpv[q], vph[q], vsv[q], vsh[q], eta[q])
		}
		// Voigt strain with engineering shear:
		// [dx ux, dy uy, dz uz, dz uy + dy uz, dz ux + dx uz, dy ux + dx uy]
		var (
			e0 = el.gx[q]
			e1 = el.gy[nq+q]
			e2 = el.gz[2*nq+q]
			e3 = el.gy[2*nq+q] + el.gz[nq+q]
			e4 = el.gx[2*nq+q] + el.gz[q]
			e5 = el.gx[nq+q] + el.gy[q]
		)
		el.stress[0][q] = c.c11*e0 + c.c12*e1 + c.c13*e2
		el.stress[1][q] = c.c12*e0 + c.c22*e1 + c.c23*e2
		el.stress[2][q] = c.c13*e0 + c.c23*e1 + c.c33*e2
		el.stress[3][q] = c.c44 * e3
		el.stress[4][q] = c.c55 * e4
		el.stress[5][q] = c.c66 * e5
	}
	// stress rows feeding each displacement component:
	// sxx,sxy,sxz -> ux; sxy,syy,syz -> uy; sxz,syz,szz -> uz
	for cmp, sel := range [3][3]int{{0, 5, 4}, {5, 1, 3}, {4, 3, 2}} {
		for a := 0; a < 3; a++ {
			copy(el.flux[a*nq:(a+1)*nq], el.stress[sel[a]])
		}
		sh.ApplyGradTestAndIntegrate(el.flux, out[cmp])
	}
	return nil
}

func (el *Elastic3D) MaxWavespeed() (vmax float64) {
	vmax = el.paramMax("VPV")
	if h := el.paramMax("VPH"); h > vmax {
		vmax = h
	}
	return
}
