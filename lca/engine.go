// Copyright (c) 2022, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package lca infers sparse codes for a batch of stimuli over a fixed
dictionary with the Locally Competitive Algorithm: leaky integration of
each unit's overlap with the stimulus, lateral inhibition through the
overlaps of dictionary elements with each other, and an adaptive
threshold that anneals toward MinThresh.

Dictionaries are N x D (one unit vector per row), stimulus batches are
D x B (one stimulus per column) and coefficients come back N x B.
*/
package lca

import (
	"fmt"

	"github.com/goki/ki/kit"
	"gonum.org/v1/gonum/mat"
)

// Engine computes sparse coefficients for a stimulus batch
type Engine interface {
	// Infer returns the N x B coefficients of stimuli x (D x B) over dictionary q (N x D).
	// Diagnostics are captured when diag is true and the engine supports them.
	Infer(q, x mat.Matrix, pars *Params, diag bool) (*Result, error)

	// Caps reports which parts of the inference contract the engine honors
	Caps() Caps
}

// Caps lists the optional capabilities of an Engine
type Caps struct {
	Retries     bool `desc:"repeats blocks of NIter steps until Tolerance or MaxIter is reached"`
	Diagnostics bool `desc:"records per-iteration energy, state and threshold traces"`
}

// Result is the output of one inference call
type Result struct {
	S      *mat.Dense `desc:"N x B sparse coefficients"`
	U      *mat.Dense `desc:"N x B membrane potentials at the end of inference"`
	Thresh []float64  `desc:"final threshold for each stimulus"`
	Error  float64    `desc:"mean-squared reconstruction error at the end of inference"`
	Passes int        `desc:"number of blocks of NIter steps that ran"`
	Diag   *Diag      `desc:"per-iteration traces, nil unless requested and supported"`
}

// Backend selects an Engine implementation
type Backend int32

//go:generate stringer -type=Backend

var KiT_Backend = kit.Enums.AddEnum(BackendN, kit.NotBitFlag, nil)

func (ev Backend) MarshalJSON() ([]byte, error)  { return kit.EnumMarshalJSON(ev) }
func (ev *Backend) UnmarshalJSON(b []byte) error { return kit.EnumUnmarshalJSON(ev, b) }

const (
	// CPU runs the full contract on a single goroutine
	CPU Backend = iota

	// Batched splits the batch across goroutines and runs a single block of
	// NIter steps, without convergence retries or diagnostics
	Batched

	BackendN
)

// NewEngine returns the engine for the given backend -- workers is only
// used by Batched, where <= 0 means one per CPU
func NewEngine(be Backend, workers int) (Engine, error) {
	switch be {
	case CPU:
		return &CPUEngine{}, nil
	case Batched:
		return &BatchedEngine{Workers: workers}, nil
	}
	return nil, fmt.Errorf("lca: unknown backend %v", be)
}

// ShapeError reports dictionary and stimulus dimensions that do not agree
type ShapeError struct {
	Dict  [2]int
	Stims [2]int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("lca: dictionary is %dx%d but stimuli are %dx%d", e.Dict[0], e.Dict[1], e.Stims[0], e.Stims[1])
}

// DivergedError is returned when the membrane potentials stop being finite,
// typically because InfRate is too large for the dictionary overlaps
type DivergedError struct {
	Pass int
	Iter int
}

func (e *DivergedError) Error() string {
	return fmt.Sprintf("lca: internal variable blew up at iteration %d (block %d)", e.Iter, e.Pass)
}

func checkShapes(q, x mat.Matrix) (nd, dim, ns int, err error) {
	nd, dim = q.Dims()
	dx, ns := x.Dims()
	if dx != dim || nd == 0 || ns == 0 {
		return 0, 0, 0, &ShapeError{Dict: [2]int{nd, dim}, Stims: [2]int{dx, ns}}
	}
	return nd, dim, ns, nil
}
