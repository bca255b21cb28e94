package utils

// Index is an integer index permutation or selection over a canonical
// node set.
type Index []int
