package types

import "strings"

//go:generate stringer -type=BCFLAG

// BCFLAG names the kind of boundary condition applied to a named mesh
// boundary.
type BCFLAG uint8

const (
	BC_None BCFLAG = iota
	BC_Dirichlet
	BC_Neumann
	BC_Absorbing
	BC_FreeSurface
)

var BCNameMap = map[string]BCFLAG{
	"dirichlet": BC_Dirichlet,
	"fixed":     BC_Dirichlet,
	"neumann":   BC_Neumann,
	"absorbing": BC_Absorbing,
	"free":      BC_FreeSurface,
}

// NewBCFlag resolves a configuration kind string case insensitively.
// Unknown kinds resolve to BC_None.
func NewBCFlag(name string) (bf BCFLAG) {
	var (
		ok bool
	)
	if bf, ok = BCNameMap[strings.ToLower(strings.TrimSpace(name))]; !ok {
		bf = BC_None
	}
	return
}
