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
	"math"

	"github.com/notargets/gosem/InputParameters"
	"github.com/notargets/gosem/solver"

	"github.com/spf13/cobra"
)

// ValidateCmd represents the validate command
var ValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check an input file and report mesh, DOF and time step statistics without running",
	Long: `
Parses the input parameters and builds the full simulation pipeline,
reporting element, DOF, partition and stability statistics. No time
stepping happens.`,
	Run: func(cmd *cobra.Command, args []string) {
		var (
			err error
		)
		fmt.Println("validate called")
		rm := &RunModel{}
		if rm.InputFile, err = cmd.Flags().GetString("inputFile"); err != nil {
			panic(err)
		}
		if rm.MeshFile, err = cmd.Flags().GetString("meshFile"); err != nil {
			panic(err)
		}
		rm.NParts, _ = cmd.Flags().GetInt("nparts")
		sp := processSimInput(rm)
		Validate(sp)
	},
}

func init() {
	rootCmd.AddCommand(ValidateCmd)
	ValidateCmd.Flags().StringP("inputFile", "I", "", "YAML file of simulation parameters")
	ValidateCmd.Flags().StringP("meshFile", "F", "", "grid file in Gambit (.neu) format, overrides MeshFile")
	ValidateCmd.Flags().IntP("nparts", "p", 0, "number of mesh partitions, overrides NumPartitions")
}

func Validate(sp *InputParameters.SimulationParameters) {
	sp.Print()
	sim, err := solver.NewSimulation(sp)
	if err != nil {
		panic(err)
	}
	var (
		m      = sim.Mesh
		bound  = solver.EstimateDt(sim.Phys, 1.0)
		nSteps = int(math.Ceil(sp.FinalTime / sim.NM.Dt))
	)
	fmt.Printf("%s mesh: %d elements, %d vertices, %d edges\n",
		m.Shape, m.K, m.NV, m.NumEdges)
	fmt.Printf("order %d: %d nodes per element, %d global DOFs over %d partitions\n",
		sp.PolynomialOrder, sim.Shapes[0].NumQuadPoints(), sim.A.Dof.NumDof, sim.A.NP)
	fmt.Printf("dt = %g, element CFL bound %g (ratio %5.3f)\n",
		sim.NM.Dt, bound, sim.NM.Dt/bound)
	fmt.Printf("%d steps to final time %g\n", nSteps, sp.FinalTime)
	for _, src := range sim.Arena.Sources {
		fmt.Printf("source %s: %s claimed by element %d at reference %v\n",
			src.Name, src.Wavelet, src.Elem, src.Ref)
	}
	for _, rcv := range sim.Arena.Receivers {
		fmt.Printf("receiver %s: %s claimed by element %d at reference %v\n",
			rcv.Name, rcv.Field, rcv.Elem, rcv.Ref)
	}
}
