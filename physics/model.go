package physics

import "fmt"

// Model supplies pointwise material parameters. A missing parameter is
// an error for the caller, never a silent default.
type Model interface {
	ValueAt(point []float64, param string) (float64, error)
}

// HomogeneousModel returns the same parameter values everywhere.
type HomogeneousModel struct {
	Params map[string]float64
}

func (m HomogeneousModel) ValueAt(point []float64, param string) (float64, error) {
	v, ok := m.Params[param]
	if !ok {
		return 0, fmt.Errorf("parameter %s not present in model", param)
	}
	return v, nil
}

// IsotropicElastic builds the transversely isotropic parameter set
// from the common vp/vs/rho shorthand: vertical and horizontal speeds
// coincide and eta is one.
func IsotropicElastic(rho, vp, vs float64) HomogeneousModel {
	return HomogeneousModel{Params: map[string]float64{
		"RHO": rho,
		"VPV": vp, "VPH": vp,
		"VSV": vs, "VSH": vs,
		"ETA": 1,
	}}
}

// LayeredModel stacks homogeneous layers along one axis. Layer i
// applies up to Breaks[i]; the last layer extends past the final
// break.
type LayeredModel struct {
	Axis   int
	Breaks []float64
	Layers []map[string]float64
}

func (m LayeredModel) ValueAt(point []float64, param string) (float64, error) {
	i := 0
	for i < len(m.Breaks) && point[m.Axis] > m.Breaks[i] {
		i++
	}
	v, ok := m.Layers[i][param]
	if !ok {
		return 0, fmt.Errorf("parameter %s not present in layer %d", param, i)
	}
	return v, nil
}
