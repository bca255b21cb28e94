package main

import (
	"bufio"
	"encoding/csv"
	"flag"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
)

var (
	csvFile string
)

func main() {
	csvFilePtr := flag.String("csvFile", csvFile, "file containing entries of a convergence study")
	flag.Parse()
	csvFile = *csvFilePtr
	if len(csvFile) == 0 {
		flag.Usage()
		os.Exit(1)
	}
	fmt.Printf("Input file: %v\n", csvFile)
	studies := readCSV(csvFile)
	for _, cs := range studies {
		sort.Sort(cs)
		fmt.Printf("Title = %s, Order = %d, CFL = %5.2f\n", cs.title, cs.order, cs.CFL)
		fmt.Printf("numElems, uRMS, uMAX, rateRMS, rateMAX\n")
		for i := range cs.numElems {
			if i == 0 {
				fmt.Printf("%d, %v, %v\n", cs.numElems[i], cs.uRMS[i], cs.uMAX[i])
				continue
			}
			rRMS := ObservedOrder(cs.numElems[i-1], cs.numElems[i], cs.uRMS[i-1], cs.uRMS[i])
			rMAX := ObservedOrder(cs.numElems[i-1], cs.numElems[i], cs.uMAX[i-1], cs.uMAX[i])
			fmt.Printf("%d, %v, %v, %5.2f, %5.2f\n",
				cs.numElems[i], cs.uRMS[i], cs.uMAX[i], rRMS, rMAX)
		}
	}
}

// ObservedOrder recovers the convergence rate between two refinements
// from the error ratio, with the mesh spacing h ~ 1/numElems.
func ObservedOrder(nCoarse, nFine int, eCoarse, eFine float64) (rate float64) {
	rate = math.Log(eCoarse/eFine) / math.Log(float64(nFine)/float64(nCoarse))
	return
}

type ConvergenceStudy struct {
	title      string
	order      int
	CFL        float64
	numElems   []int
	uRMS, uMAX []float64
}

func NewConvergenceStudy(title string, order int, CFL float64) *ConvergenceStudy {
	return &ConvergenceStudy{
		title: title,
		order: order,
		CFL:   CFL,
	}
}

func (cs *ConvergenceStudy) Add(numElems int, uRMS, uMAX float64) {
	cs.numElems = append(cs.numElems, numElems)
	cs.uRMS = append(cs.uRMS, uRMS)
	cs.uMAX = append(cs.uMAX, uMAX)
}

// sort.Interface over the parallel refinement slices, coarse to fine.
func (cs *ConvergenceStudy) Len() int           { return len(cs.numElems) }
func (cs *ConvergenceStudy) Less(i, j int) bool { return cs.numElems[i] < cs.numElems[j] }
func (cs *ConvergenceStudy) Swap(i, j int) {
	cs.numElems[i], cs.numElems[j] = cs.numElems[j], cs.numElems[i]
	cs.uRMS[i], cs.uRMS[j] = cs.uRMS[j], cs.uRMS[i]
	cs.uMAX[i], cs.uMAX[j] = cs.uMAX[j], cs.uMAX[i]
}

func readCSV(csvFile string) (studies map[string]*ConvergenceStudy) {
	var (
		records    [][]string
		err        error
		f          *os.File
		ok         bool
		cs         *ConvergenceStudy
		cfl        float64
		uRMS, uMAX float64
	)
	studies = make(map[string]*ConvergenceStudy)
	if f, err = os.Open(csvFile); err != nil {
		panic(err)
	}
	r := csv.NewReader(bufio.NewReader(f))
	if records, err = r.ReadAll(); err != nil {
		panic(err)
	}
	for i, rec := range records {
		if i == 0 {
			continue
		}
		title, netxt, ntxt, cfltxt := rec[0], rec[1], rec[2], rec[3]
		n, _ := strconv.Atoi(ntxt)
		numElems, _ := strconv.Atoi(netxt)
		_, _ = fmt.Sscanf(cfltxt, "%f", &cfl)
		combTitle := title + ntxt
		if cs, ok = studies[combTitle]; !ok {
			cs = NewConvergenceStudy(title, n, cfl)
			studies[combTitle] = cs
		}
		_, _ = fmt.Sscanf(rec[4], "%f", &uRMS)
		_, _ = fmt.Sscanf(rec[5], "%f", &uMAX)
		cs.Add(numElems, uRMS, uMAX)
	}
	return
}
