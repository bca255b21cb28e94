/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"io/ioutil"
	"os"

	"github.com/pkg/profile"

	"github.com/notargets/gosem/InputParameters"
	"github.com/notargets/gosem/solver"

	"github.com/spf13/cobra"
)

type RunModel struct {
	InputFile string
	MeshFile  string
	NParts    int
	Verbose   bool
	Profile   bool
	Perf      bool
}

// RunCmd represents the run command
var RunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a wave propagation simulation from a YAML input file",
	Long: `
Builds the mesh, spectral element kernels and partitioned assembly
described by the input parameters, then steps the explicit Newmark
integrator to the final time.`,
	Run: func(cmd *cobra.Command, args []string) {
		var (
			err error
		)
		fmt.Println("run called")
		rm := &RunModel{}
		if rm.InputFile, err = cmd.Flags().GetString("inputFile"); err != nil {
			panic(err)
		}
		if rm.MeshFile, err = cmd.Flags().GetString("meshFile"); err != nil {
			panic(err)
		}
		rm.NParts, _ = cmd.Flags().GetInt("nparts")
		rm.Verbose, _ = cmd.Flags().GetBool("verbose")
		rm.Profile, _ = cmd.Flags().GetBool("profile")
		rm.Perf, _ = cmd.Flags().GetBool("perf")
		sp := processSimInput(rm)
		RunSim(rm, sp)
	},
}

func processSimInput(rm *RunModel) (sp *InputParameters.SimulationParameters) {
	var (
		err error
	)
	if len(rm.InputFile) == 0 {
		err := fmt.Errorf("must supply an input parameters file (-I, --inputFile) in YAML format")
		fmt.Printf("error: %s\n", err.Error())
		exampleFile := `
########################################
Title: "Standing Mode"
Physics: acoustic2d
PolynomialOrder: 4
CFL: 0.3
FinalTime: 1.
Structured:
  Nx: 4
  Ny: 4
  X1: 1.
  Y1: 1.
Material:
  VP: 1.
BCs:
  all: dirichlet
InitType: eigenfunction
########################################
`
		fmt.Printf("Example File:%s\n", exampleFile)
		os.Exit(1)
	}
	var data []byte
	if data, err = ioutil.ReadFile(rm.InputFile); err != nil {
		panic(err)
	}
	sp = &InputParameters.SimulationParameters{}
	if err = sp.Parse(data); err != nil {
		panic(err)
	}
	if len(rm.MeshFile) != 0 {
		sp.MeshFile = rm.MeshFile
	}
	if rm.NParts != 0 {
		sp.NumPartitions = rm.NParts
	}
	if rm.Verbose {
		sp.Verbose = true
	}
	return
}

func init() {
	rootCmd.AddCommand(RunCmd)
	RunCmd.Flags().StringP("inputFile", "I", "", "YAML file of simulation parameters")
	RunCmd.Flags().StringP("meshFile", "F", "", "grid file in Gambit (.neu) format, overrides MeshFile")
	RunCmd.Flags().IntP("nparts", "p", 0, "number of mesh partitions, overrides NumPartitions")
	RunCmd.Flags().BoolP("verbose", "v", false, "progress output every step")
	RunCmd.Flags().Bool("profile", false, "write a CPU profile for the run")
	RunCmd.Flags().Bool("perf", false, "report retired instruction counts (Linux perf)")
}

func RunSim(rm *RunModel, sp *InputParameters.SimulationParameters) {
	sp.Print()
	sim, err := solver.NewSimulation(sp)
	if err != nil {
		panic(err)
	}
	fmt.Printf("mesh: %d elements over %d partitions, %d global DOFs, dt = %g\n",
		sim.Mesh.K, sim.A.NP, sim.A.Dof.NumDof, sim.NM.Dt)
	if rm.Profile {
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
	}
	if rm.Perf {
		err = instrumentPerf(sim.Solve)
	} else {
		err = sim.Solve()
	}
	if err != nil {
		panic(err)
	}
}
