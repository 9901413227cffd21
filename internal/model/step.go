package model

import "github.com/holiman/uint256"

// Step is a single struct-log frame of an execution trace.
type Step struct {
	PC     uint64
	Op     string
	Depth  int
	Stack  []uint256.Int
	Memory []uint256.Int
}

// Trace is the ordered step sequence of one transaction.
type Trace []Step
