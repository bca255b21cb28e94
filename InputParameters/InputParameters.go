package InputParameters

import (
	"fmt"
	"sort"

	"github.com/ghodss/yaml"
)

// Parameters obtained from the YAML input file
type SimulationParameters struct {
	Title               string             `yaml:"Title"`
	Physics             string             `yaml:"Physics"` // acoustic2d, acoustic3d, elastic3d
	PolynomialOrder     int                `yaml:"PolynomialOrder"`
	CFL                 float64            `yaml:"CFL"`
	Dt                  float64            `yaml:"Dt"` // 0 picks the CFL estimate
	FinalTime           float64            `yaml:"FinalTime"`
	MeshFile            string             `yaml:"MeshFile"`
	Structured          *StructuredMesh    `yaml:"Structured"`
	NumPartitions       int                `yaml:"NumPartitions"`
	Material            map[string]float64 `yaml:"Material"`
	BCs                 map[string]string  `yaml:"BCs"` // First key is the boundary name, value is the condition type
	Sources             []SourceSpec       `yaml:"Sources"`
	Receivers           []ReceiverSpec     `yaml:"Receivers"`
	InitType            string             `yaml:"InitType"` // zero (default), eigenfunction
	DivergenceThreshold float64            `yaml:"DivergenceThreshold"`
	Verbose             bool               `yaml:"Verbose"`
}

// StructuredMesh generates a rectangle or box grid in place of a mesh
// file. Nz == 0 selects a 2D quad grid.
type StructuredMesh struct {
	Nx int     `yaml:"Nx"`
	Ny int     `yaml:"Ny"`
	Nz int     `yaml:"Nz"`
	X0 float64 `yaml:"X0"`
	X1 float64 `yaml:"X1"`
	Y0 float64 `yaml:"Y0"`
	Y1 float64 `yaml:"Y1"`
	Z0 float64 `yaml:"Z0"`
	Z1 float64 `yaml:"Z1"`
}

type SourceSpec struct {
	Name       string    `yaml:"Name"`
	Location   []float64 `yaml:"Location"`
	Wavelet    string    `yaml:"Wavelet"` // ricker, gaussian
	Amplitude  float64   `yaml:"Amplitude"`
	CenterFreq float64   `yaml:"CenterFreq"`
	TimeDelay  float64   `yaml:"TimeDelay"`
	Direction  []float64 `yaml:"Direction"` // weight per solved field, optional for scalar physics
}

type ReceiverSpec struct {
	Name     string    `yaml:"Name"`
	Location []float64 `yaml:"Location"`
	Field    string    `yaml:"Field"` // defaults to the first solved field
}

func (sp *SimulationParameters) Parse(data []byte) error {
	return yaml.Unmarshal(data, sp)
}

func (sp *SimulationParameters) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", sp.Title)
	fmt.Printf("[%s]\t\t= Physics\n", sp.Physics)
	fmt.Printf("[%d]\t\t\t\t= Polynomial Order\n", sp.PolynomialOrder)
	fmt.Printf("%8.5f\t\t= CFL\n", sp.CFL)
	fmt.Printf("%8.5g\t\t= Dt\n", sp.Dt)
	fmt.Printf("%8.5f\t\t= FinalTime\n", sp.FinalTime)
	fmt.Printf("[%d]\t\t\t\t= NumPartitions\n", sp.NumPartitions)
	fmt.Printf("[%s]\t\t= InitType\n", sp.InitType)
	if sp.MeshFile != "" {
		fmt.Printf("[%s]\t\t= MeshFile\n", sp.MeshFile)
	}
	if sp.Structured != nil {
		s := sp.Structured
		fmt.Printf("[%dx%dx%d]\t\t= Structured Grid\n", s.Nx, s.Ny, s.Nz)
	}
	keys := make([]string, 0, len(sp.Material))
	for k := range sp.Material {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Printf("Material[%s] = %v\n", key, sp.Material[key])
	}
	keys = keys[:0]
	for k := range sp.BCs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Printf("BCs[%s] = %v\n", key, sp.BCs[key])
	}
	for _, src := range sp.Sources {
		fmt.Printf("Source[%s] = %s at %v, A=%g f0=%g t0=%g\n",
			src.Name, src.Wavelet, src.Location, src.Amplitude, src.CenterFreq, src.TimeDelay)
	}
	for _, rcv := range sp.Receivers {
		fmt.Printf("Receiver[%s] = %s at %v\n", rcv.Name, rcv.Field, rcv.Location)
	}
}
