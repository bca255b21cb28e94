package solver

import (
	"math"

	"github.com/notargets/gosem/InputParameters"
	"github.com/notargets/gosem/assembly"
	"github.com/notargets/gosem/basis"
	"github.com/notargets/gosem/element"
)

// Ricker builds the classic second derivative of a Gaussian pulse with
// amplitude amp, center frequency f0 and time delay t0.
func Ricker(amp, f0, t0 float64) func(t float64) float64 {
	return func(t float64) float64 {
		var (
			arg = math.Pi * f0 * (t - t0)
			a2  = arg * arg
		)
		return amp * (1 - 2*a2) * math.Exp(-a2)
	}
}

// Gaussian builds a Gaussian pulse whose width follows the center
// frequency, sigma = 1/(2 pi f0).
func Gaussian(amp, f0, t0 float64) func(t float64) float64 {
	sigma := 1 / (2 * math.Pi * f0)
	return func(t float64) float64 {
		dt := t - t0
		return amp * math.Exp(-dt*dt/(2*sigma*sigma))
	}
}

var wavelets = map[string]func(amp, f0, t0 float64) func(t float64) float64{
	"ricker":   Ricker,
	"gaussian": Gaussian,
}

// Wavelet resolves a named time function from configuration.
func Wavelet(name string, amp, f0, t0 float64) (func(t float64) float64, error) {
	ctor, ok := wavelets[name]
	if !ok {
		return nil, basis.NewConfigurationError("unknown wavelet %q", name)
	}
	return ctor(amp, f0, t0), nil
}

// Source is one arena-owned excitation resolved onto the element that
// claimed it.
type Source struct {
	InputParameters.SourceSpec
	Elem  int
	Ref   []float64
	Fire  func(t float64) float64
	Scale []float64 // weight per push component
}

// Receiver is one arena-owned recording point. Values gets one sample
// per step, gathered from the global field vector.
type Receiver struct {
	InputParameters.ReceiverSpec
	Elem    int
	Ref     []float64
	Times   []float64
	Values  []float64
	scratch []float64
}

// Arena owns every source and receiver for a run and the element
// relations in both directions: each entry records its claiming
// element, and per-element index lists answer the reverse lookup.
type Arena struct {
	Sources   []Source
	Receivers []Receiver

	srcByElem map[int][]int
	rcvByElem map[int][]int
}

func NewArena() *Arena {
	return &Arena{
		srcByElem: make(map[int][]int),
		rcvByElem: make(map[int][]int),
	}
}

// locate scans elements in ascending global id and claims the point
// for the first that contains it, so a point on a shared face or
// vertex always lands on the lowest element id regardless of the
// partition layout.
func locate(shapes []element.Shape, p []float64) (elem int, ref []float64, ok bool) {
	for k, sh := range shapes {
		if ref, ok = sh.Localize(p); ok {
			return k, ref, true
		}
	}
	return -1, nil, false
}

// AttachSources resolves each configured source onto its element. A
// source no element contains is a configuration error, as is a
// direction whose length disagrees with the physics push components.
func (ar *Arena) AttachSources(shapes []element.Shape, specs []InputParameters.SourceSpec, npush int) error {
	for _, spec := range specs {
		elem, ref, ok := locate(shapes, spec.Location)
		if !ok {
			return basis.NewConfigurationError(
				"source %q at %v is outside the mesh", spec.Name, spec.Location)
		}
		fire, err := Wavelet(spec.Wavelet, spec.Amplitude, spec.CenterFreq, spec.TimeDelay)
		if err != nil {
			return err
		}
		scale := spec.Direction
		switch {
		case len(scale) == 0 && npush == 1:
			scale = []float64{1}
		case len(scale) != npush:
			return basis.NewConfigurationError(
				"source %q: direction has %d components, physics solves %d",
				spec.Name, len(scale), npush)
		}
		ar.srcByElem[elem] = append(ar.srcByElem[elem], len(ar.Sources))
		ar.Sources = append(ar.Sources, Source{
			SourceSpec: spec,
			Elem:       elem,
			Ref:        ref,
			Fire:       fire,
			Scale:      scale,
		})
	}
	return nil
}

// AttachReceivers resolves each configured receiver onto its element,
// with the same lowest-id claim rule as sources. An empty Field
// records defaultField.
func (ar *Arena) AttachReceivers(shapes []element.Shape, specs []InputParameters.ReceiverSpec, defaultField string) error {
	for _, spec := range specs {
		elem, ref, ok := locate(shapes, spec.Location)
		if !ok {
			return basis.NewConfigurationError(
				"receiver %q at %v is outside the mesh", spec.Name, spec.Location)
		}
		if spec.Field == "" {
			spec.Field = defaultField
		}
		ar.rcvByElem[elem] = append(ar.rcvByElem[elem], len(ar.Receivers))
		ar.Receivers = append(ar.Receivers, Receiver{
			ReceiverSpec: spec,
			Elem:         elem,
			Ref:          ref,
			scratch:      make([]float64, shapes[elem].NumQuadPoints()),
		})
	}
	return nil
}

// SourcesOn returns the arena indices of the sources element k claimed.
func (ar *Arena) SourcesOn(k int) []int { return ar.srcByElem[k] }

// ReceiversOn returns the arena indices of the receivers element k
// claimed.
func (ar *Arena) ReceiversOn(k int) []int { return ar.rcvByElem[k] }

// Record samples every receiver at the given time. It gathers from the
// synchronized global vectors, so it runs in the serial part of the
// step, after Advance.
func (ar *Arena) Record(time float64, a *assembly.Assembly, shapes []element.Shape) {
	for i := range ar.Receivers {
		var (
			rcv  = &ar.Receivers[i]
			gl   = a.Field(rcv.Field)
			clos = a.Dof.Closure(rcv.Elem)
		)
		for n, g := range clos {
			rcv.scratch[n] = gl[g]
		}
		rcv.Times = append(rcv.Times, time)
		rcv.Values = append(rcv.Values, shapes[rcv.Elem].InterpolateAtPoint(rcv.scratch, rcv.Ref))
	}
}
