// Copyright (c) 2022, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lca

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// CPUEngine runs the full inference contract on the calling goroutine:
// blocks of NIter steps repeat, warm-started from the previous block,
// until the reconstruction error is within Tolerance or MaxIter blocks have run
type CPUEngine struct {
}

func (en *CPUEngine) Caps() Caps {
	return Caps{Retries: true, Diagnostics: true}
}

// Infer returns the sparse coefficients of x over q
func (en *CPUEngine) Infer(q, x mat.Matrix, pars *Params, diag bool) (*Result, error) {
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

	var dg *Diag
	if diag {
		dg = &Diag{}
	}

	errv := 0.0
	passes := 0
	for passes == 0 || (errv > pars.Tolerance && pars.MorePasses(passes)) {
		for kk := 0; kk < pars.NIter; kk++ {
			if !Step(c, b, u, s, ci, thresh, pars) {
				return nil, &DivergedError{Pass: passes, Iter: kk}
			}
			if dg != nil {
				dg.capture(q, x, u, s, thresh)
			}
			DecayThresh(thresh, pars)
		}
		errv = ReconError(q, x, s)
		passes++
	}
	return &Result{
		S:      mat.DenseCopyOf(s.T()),
		U:      mat.DenseCopyOf(u.T()),
		Thresh: thresh,
		Error:  errv,
		Passes: passes,
		Diag:   dg,
	}, nil
}

// Overlaps returns the N x N overlaps of the dictionary elements with each
// other, with the diagonal zeroed so that a unit does not inhibit itself
func Overlaps(q mat.Matrix) *mat.Dense {
	nd, _ := q.Dims()
	c := mat.NewDense(nd, nd, nil)
	c.Mul(q, q.T())
	for i := 0; i < nd; i++ {
		c.Set(i, i, 0)
	}
	return c
}

// drive returns the B x N overlaps of each stimulus with each unit
func drive(q, x mat.Matrix) *mat.Dense {
	nd, _ := q.Dims()
	_, ns := x.Dims()
	b := mat.NewDense(ns, nd, nil)
	b.Mul(x.T(), q.T())
	return b
}

// InitThresh returns one threshold per row of the drive b: the mean
// absolute overlap of that stimulus with the dictionary, floored at min
func InitThresh(b *mat.Dense, min float64) []float64 {
	ns, nd := b.Dims()
	thresh := make([]float64, ns)
	for r := 0; r < ns; r++ {
		sum := 0.0
		for _, v := range b.RawRowView(r) {
			sum += math.Abs(v)
		}
		thresh[r] = math.Max(sum/float64(nd), min)
	}
	return thresh
}

// Step advances the B x N potentials u and outputs s by one iteration,
// with ci as scratch. The competition term for every unit is computed from
// the complete previous outputs before any potential is written.
// Returns false if any potential is no longer finite.
func Step(c, b, u, s, ci *mat.Dense, thresh []float64, pars *Params) bool {
	ci.Mul(s, c)
	eta := pars.InfRate
	ns, _ := u.Dims()
	for r := 0; r < ns; r++ {
		ur := u.RawRowView(r)
		br := b.RawRowView(r)
		cr := ci.RawRowView(r)
		for j := range ur {
			v := eta*(br[j]-cr[j]) + (1-eta)*ur[j]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
			ur[j] = v
		}
	}
	for r := 0; r < ns; r++ {
		ur := u.RawRowView(r)
		sr := s.RawRowView(r)
		th := thresh[r]
		for j, v := range ur {
			sr[j] = Threshold(v, th, pars.SoftThresh)
		}
	}
	return true
}

// Threshold returns the output of a unit with potential u for threshold th.
// Hard thresholding passes u through when |u| > th, soft thresholding
// shrinks it toward zero by th. Both give zero when |u| <= th.
func Threshold(u, th float64, soft bool) float64 {
	au := math.Abs(u)
	if au <= th {
		return 0
	}
	if !soft {
		return u
	}
	if u > 0 {
		return u - th
	}
	return u + th
}

// DecayThresh multiplies each threshold by Adapt, never going below MinThresh
func DecayThresh(thresh []float64, pars *Params) {
	for i, th := range thresh {
		thresh[i] = math.Max(pars.MinThresh, pars.Adapt*th)
	}
}

// ReconError returns the mean-squared error of reconstructing stimuli x
// (D x B) from B x N outputs s over dictionary q
func ReconError(q, x mat.Matrix, s *mat.Dense) float64 {
	ns, _ := s.Dims()
	_, dim := q.Dims()
	r := mat.NewDense(ns, dim, nil)
	r.Mul(s, q)
	r.Sub(x.T(), r)
	sum := 0.0
	for i := 0; i < ns; i++ {
		for _, v := range r.RawRowView(i) {
			sum += v * v
		}
	}
	return sum / float64(ns*dim)
}
