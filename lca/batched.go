// Copyright (c) 2022, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lca

import (
	"runtime"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// BatchedEngine splits the stimuli of a batch across goroutines. There is no
// dependency between stimuli within an iteration, so each worker advances
// its own rows with the same update equations as CPUEngine.
// It runs exactly one block of NIter steps and never records diagnostics,
// as reported by Caps.
type BatchedEngine struct {
	Workers int `desc:"number of goroutines -- <= 0 uses GOMAXPROCS"`
}

func (en *BatchedEngine) Caps() Caps {
	return Caps{}
}

// Infer returns the sparse coefficients of x over q after NIter steps
func (en *BatchedEngine) Infer(q, x mat.Matrix, pars *Params, diag bool) (*Result, error) {
	nd, _, ns, err := checkShapes(q, x)
	if err != nil {
		return nil, err
	}
	c := Overlaps(q)
	b := drive(q, x)
	thresh := InitThresh(b, pars.MinThresh)
	u := mat.NewDense(ns, nd, nil)
	s := mat.NewDense(ns, nd, nil)
	ci := mat.NewDense(ns, nd, nil)

	nw := en.Workers
	if nw <= 0 {
		nw = runtime.GOMAXPROCS(0)
	}
	if nw > ns {
		nw = ns
	}
	chunk := (ns + nw - 1) / nw
	errs := make([]*DivergedError, nw)

	var wg sync.WaitGroup
	for w := 0; w < nw; w++ {
		r0 := w * chunk
		r1 := r0 + chunk
		if r1 > ns {
			r1 = ns
		}
		if r0 >= r1 {
			continue
		}
		wg.Add(1)
		go func(w, r0, r1 int) {
			defer wg.Done()
			bw := b.Slice(r0, r1, 0, nd).(*mat.Dense)
			uw := u.Slice(r0, r1, 0, nd).(*mat.Dense)
			sw := s.Slice(r0, r1, 0, nd).(*mat.Dense)
			cw := ci.Slice(r0, r1, 0, nd).(*mat.Dense)
			tw := thresh[r0:r1]
			for kk := 0; kk < pars.NIter; kk++ {
				if !Step(c, bw, uw, sw, cw, tw, pars) {
					errs[w] = &DivergedError{Iter: kk}
					return
				}
				DecayThresh(tw, pars)
			}
		}(w, r0, r1)
	}
	wg.Wait()

	var first *DivergedError
	for _, e := range errs {
		if e != nil && (first == nil || e.Iter < first.Iter) {
			first = e
		}
	}
	if first != nil {
		return nil, first
	}
	return &Result{
		S:      mat.DenseCopyOf(s.T()),
		U:      mat.DenseCopyOf(u.T()),
		Thresh: thresh,
		Error:  ReconError(q, x, s),
		Passes: 1,
	}, nil
}
