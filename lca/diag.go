// Copyright (c) 2022, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lca

import (
	"github.com/emer/etable/etable"
	"github.com/emer/etable/etensor"
	"gonum.org/v1/gonum/mat"
)

// Diag holds per-iteration traces of one inference call, appended across
// all blocks of NIter steps
type Diag struct {
	Errors [][]float64 `desc:"[iter][stim] mean-squared reconstruction error of each stimulus"`
	U      [][]float64 `desc:"[iter][unit] potentials of the first stimulus"`
	S      [][]float64 `desc:"[iter][unit] outputs of the first stimulus"`
	Thresh [][]float64 `desc:"[iter][stim] threshold of each stimulus, before decay"`
}

func (dg *Diag) capture(q, x mat.Matrix, u, s *mat.Dense, thresh []float64) {
	ns, _ := s.Dims()
	_, dim := q.Dims()
	r := mat.NewDense(ns, dim, nil)
	r.Mul(s, q)
	r.Sub(x.T(), r)
	errs := make([]float64, ns)
	for i := range errs {
		sum := 0.0
		for _, v := range r.RawRowView(i) {
			sum += v * v
		}
		errs[i] = sum / float64(dim)
	}
	dg.Errors = append(dg.Errors, errs)
	dg.U = append(dg.U, append([]float64(nil), u.RawRowView(0)...))
	dg.S = append(dg.S, append([]float64(nil), s.RawRowView(0)...))
	dg.Thresh = append(dg.Thresh, append([]float64(nil), thresh...))
}

// NIters returns the number of recorded iterations
func (dg *Diag) NIters() int {
	return len(dg.Errors)
}

// Energy returns the batch-mean reconstruction error at each iteration
func (dg *Diag) Energy() []float64 {
	en := make([]float64, len(dg.Errors))
	for i, errs := range dg.Errors {
		sum := 0.0
		for _, e := range errs {
			sum += e
		}
		en[i] = sum / float64(len(errs))
	}
	return en
}

// ToTable fills dt with one row per iteration: the energy, the mean threshold,
// the number of active units for the first stimulus and its potentials and outputs
func (dg *Diag) ToTable(dt *etable.Table) {
	nu := 0
	if len(dg.U) > 0 {
		nu = len(dg.U[0])
	}
	dt.SetMetaData("name", "LCADiag")
	dt.SetMetaData("desc", "per-iteration inference traces")
	dt.SetFromSchema(etable.Schema{
		{"Iter", etensor.INT64, nil, nil},
		{"Energy", etensor.FLOAT64, nil, nil},
		{"Thresh", etensor.FLOAT64, nil, nil},
		{"NActive", etensor.INT64, nil, nil},
		{"U", etensor.FLOAT64, []int{nu}, nil},
		{"S", etensor.FLOAT64, []int{nu}, nil},
	}, dg.NIters())

	ucol := dt.ColByName("U")
	scol := dt.ColByName("S")
	en := dg.Energy()
	for i := range en {
		dt.SetCellFloat("Iter", i, float64(i))
		dt.SetCellFloat("Energy", i, en[i])
		tsum := 0.0
		for _, th := range dg.Thresh[i] {
			tsum += th
		}
		dt.SetCellFloat("Thresh", i, tsum/float64(len(dg.Thresh[i])))
		nact := 0
		for _, v := range dg.S[i] {
			if v != 0 {
				nact++
			}
		}
		dt.SetCellFloat("NActive", i, float64(nact))
		for j := 0; j < nu; j++ {
			ucol.SetFloat([]int{i, j}, dg.U[i][j])
			scol.SetFloat([]int{i, j}, dg.S[i][j])
		}
	}
}
