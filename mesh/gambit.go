package mesh

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/notargets/gosem/basis"
	"github.com/notargets/gosem/utils"
)

// ReadGambit2D reads a Gambit neutral file of 4-node quadrilaterals.
// Boundary condition groups become named boundaries, lowercased.
func ReadGambit2D(filename string, verbose bool) (m *Mesh) {
	var (
		file   *os.File
		err    error
		reader *bufio.Reader
	)
	if verbose {
		fmt.Printf("Reading Gambit Neutral file named: %s\n", filename)
	}
	if file, err = os.Open(filename); err != nil {
		panic(fmt.Errorf("unable to open file %s\n %s", filename, err))
	}
	defer file.Close()
	reader = bufio.NewReader(file)

	// Skip first six lines
	skipLines(6, reader)

	// Get dimensions
	Nv, K, Nmats, Nbcs, Nsd := readHeader(reader)
	skipLines(2, reader)

	if verbose {
		fmt.Printf("Nv = %d, K = %d\n", Nv, K)
		fmt.Printf("Nmats = %d, Nbcs = %d\n%d space dimensions\n", Nmats, Nbcs, Nsd)
	}
	if Nsd != 2 {
		panic("quadrilateral reader requires 2 space dimensions")
	}

	m = &Mesh{
		Dim:   2,
		Shape: basis.Quad,
		NV:    Nv,
		K:     K,
	}
	m.VX, m.VY = read2DVertices(Nv, reader)
	skipLines(2, reader)

	m.EToV = readQuads(K, reader)
	skipLines(2, reader)

	if verbose {
		fmt.Printf("Bounding Box:\nXMin/XMax = %5.3f, %5.3f\nYMin/YMax = %5.3f, %5.3f\n",
			m.VX.Min(), m.VX.Max(), m.VY.Min(), m.VY.Max())
	}

	// Material groups carry no engine data, consume them to reach BCs
	for i := 0; i < Nmats; i++ {
		elnum := readMaterialHeader(reader)
		readMaterialGroup(reader, elnum)
		skipLines(2, reader)
	}

	m.Boundaries = readBCs(Nbcs, reader)
	m.Connect()
	return
}

func readHeader(reader *bufio.Reader) (Nv, K, Nmats, Nbcs, Nsd int) {
	/*
		Nv      // num nodes in mesh
		K       // num elements
		Nmats   // num material groups
		Nbcs    // num boundary groups
		Nsd     // num space dimensions
	*/
	var (
		line   = getLine(reader)
		n, dum int
		err    error
	)
	nargs := 6
	if n, err = fmt.Sscanf(line, "%d %d %d %d %d %d", &Nv, &K, &Nmats, &Nbcs, &Nsd, &dum); err != nil || n < nargs {
		if err == nil && n < nargs {
			err = fmt.Errorf("read fewer than %d dimensions, read %d, line: %s", nargs, n, line)
		}
		panic(err)
	}
	return
}

func read2DVertices(Nv int, reader *bufio.Reader) (VX, VY utils.Vector) {
	var (
		line   string
		err    error
		n, ind int
	)
	nargs := 3
	VX, VY = utils.NewVector(Nv), utils.NewVector(Nv)
	vx, vy := VX.DataP, VY.DataP
	for i := 0; i < Nv; i++ {
		line = getLine(reader)
		if n, err = fmt.Sscanf(line, "%d", &ind); err != nil || n < 1 {
			panic(fmt.Errorf("error reading vertex index, line: %s", line))
		}
		if n, err = fmt.Sscanf(line, "%d %f %f", &ind, &vx[ind-1], &vy[ind-1]); err != nil || n < nargs {
			if err == nil && n < nargs {
				err = fmt.Errorf("read fewer than required dimensions, read %d, need %d, line: %s", n, nargs, line)
			}
			panic(err)
		}
	}
	return
}

func readQuads(K int, reader *bufio.Reader) (EToV utils.Matrix) {
	/*
		ELEMENTS/CELLS 2.4.6
		  1  2  4        1       2       8       7
	*/
	var (
		line string
		err  error
		n    int
	)
	EToV = utils.NewMatrix(K, 4)
	for i := 0; i < K; i++ {
		line = getLine(reader)
		nargs := 7
		var ind, typ, nv, n1, n2, n3, n4 int
		if n, err = fmt.Sscanf(line, "%d %d %d %d %d %d %d",
			&ind, &typ, &nv, &n1, &n2, &n3, &n4); err != nil || n < nargs {
			if err == nil && n < nargs {
				err = fmt.Errorf("read fewer than required dimensions, read %d, need %d, line: %s", n, nargs, line)
			}
			panic(err)
		}
		if typ != 2 || nv != 4 {
			panic(fmt.Errorf("element %d is not a 4-node quadrilateral, type %d with %d nodes", ind, typ, nv))
		}
		EToV.Set(ind-1, 0, float64(n1-1))
		EToV.Set(ind-1, 1, float64(n2-1))
		EToV.Set(ind-1, 2, float64(n3-1))
		EToV.Set(ind-1, 3, float64(n4-1))
	}
	return
}

func readMaterialHeader(reader *bufio.Reader) (elnum int) {
	/*
		GROUP:           1 ELEMENTS:        977 MATERIAL:      1.000 NFLAGS:          0
	*/
	var (
		line   = getLine(reader)
		gn, n  int
		matval float64
		err    error
	)
	nargs := 3
	if n, err = fmt.Sscanf(line, "GROUP: %11d ELEMENTS:%11d MATERIAL:%11f", &gn, &elnum, &matval); err != nil || n < nargs {
		if err == nil && n < nargs {
			err = fmt.Errorf("read fewer than %d dimensions, read %d, line: %s", nargs, n, line)
		}
		panic(err)
	}
	getLine(reader) // group title
	skipLines(1, reader)
	return
}

func readMaterialGroup(reader *bufio.Reader, elementCount int) {
	var (
		added int
		nn    = make([]int, 10)
	)
	if elementCount%10 != 0 {
		added = 1
	}
	numLines := elementCount/10 + added
	for i := 0; i < numLines; i++ {
		line := getLine(reader)
		n, err := fmt.Sscanf(line, "%d %d %d %d %d %d %d %d %d %d",
			&nn[0], &nn[1], &nn[2], &nn[3], &nn[4], &nn[5], &nn[6], &nn[7], &nn[8], &nn[9])
		if err != nil && !(n < 10 && i == numLines-1) {
			panic(err)
		}
	}
}

func readBCs(Nbcs int, reader *bufio.Reader) (bcs map[string][]ElemFace) {
	/*
		BOUNDARY CONDITIONS 2.4.6
		          wall       1         4       0       6
		      1      2      1
	*/
	var (
		line, name string
		err        error
		n          int
	)
	bcs = make(map[string][]ElemFace, Nbcs)
	for i := 0; i < Nbcs; i++ {
		if i != 0 {
			skipLines(1, reader)
		}
		line = getLine(reader)
		var itype, numfaces int
		if n, err = fmt.Sscanf(line, "%32s%8d%8d", &name, &itype, &numfaces); err != nil || n < 3 {
			panic(fmt.Errorf("malformed boundary group header, line: %s", line))
		}
		name = strings.ToLower(strings.Trim(name, " "))
		faces := make([]ElemFace, numfaces)
		for j := 0; j < numfaces; j++ {
			line = getLine(reader)
			var kp1, etyp, facep1 int
			if n, err = fmt.Sscanf(line, "%d %d %d", &kp1, &etyp, &facep1); err != nil || n < 3 {
				if err == nil && n < 3 {
					err = fmt.Errorf("read fewer than required dimensions, read %d, need 3, line: %s", n, line)
				}
				panic(err)
			}
			// Gambit face f connects local vertices f-1 and f mod 4,
			// matching the reference edge cycle directly
			faces[j] = ElemFace{Elem: kp1 - 1, Face: facep1 - 1}
		}
		bcs[name] = faces
		skipLines(1, reader)
	}
	return
}

func getLine(reader *bufio.Reader) (line string) {
	var (
		err error
	)
	line, err = reader.ReadString('\n')
	if err != nil {
		if err == io.EOF {
			err = fmt.Errorf("early end of file")
		}
		panic(err)
	}
	line = line[:len(line)-1] // Strip away the newline
	return
}

func skipLines(n int, reader *bufio.Reader) {
	for i := 0; i < n; i++ {
		getLine(reader)
	}
}
