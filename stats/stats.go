// Copyright (c) 2022, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package stats keeps the running statistics of a sparse coding model:
exponential moving averages of per-unit activity, a moving average of the
unit correlation matrix, and one history entry per trial of the
reconstruction error and aggregate activity.
*/
package stats

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Running is the statistics bundle owned by a learner. Histories only grow;
// windowed views are computed on read by Smoothed and Progress.
type Running struct {
	Rate      float64    `def:"0.001" desc:"rate of the exponential moving averages -- avg = (1-Rate) avg + Rate new"`
	L0        []float64  `desc:"moving average of the fraction of stimuli each unit is active for"`
	L1        []float64  `desc:"moving average of the absolute activation of each unit"`
	L2        []float64  `desc:"moving average of the squared activation of each unit"`
	MeanActs  []float64  `desc:"moving average of the signed activation of each unit"`
	Corr      *mat.Dense `desc:"moving average of the N x N unit correlation matrix"`
	ErrorHist []float64  `desc:"mean-squared reconstruction error of every trial"`
	L0Hist    []float64  `desc:"fraction of nonzero coefficients in every trial"`
	L1Hist    []float64  `desc:"mean absolute coefficient in every trial"`
	L2Hist    []float64  `desc:"mean squared coefficient in every trial"`
}

// New returns empty statistics for nunits units
func New(nunits int, rate float64) *Running {
	return &Running{
		Rate:     rate,
		L0:       make([]float64, nunits),
		L1:       make([]float64, nunits),
		L2:       make([]float64, nunits),
		MeanActs: make([]float64, nunits),
		Corr:     mat.NewDense(nunits, nunits, nil),
	}
}

// NUnits returns the number of units tracked
func (rs *Running) NUnits() int {
	return len(rs.L0)
}

// NTrials returns the number of trials recorded
func (rs *Running) NTrials() int {
	return len(rs.ErrorHist)
}

func (rs *Running) avg(avg []float64, nw []float64) {
	floats.Scale(1-rs.Rate, avg)
	floats.AddScaled(avg, rs.Rate, nw)
}

// Record adds one trial: acts are the N x B coefficients of the batch and
// errv its reconstruction error. The correlation matrix is the centred
// (or raw) outer product of the activations divided by batch, and is
// skipped entirely when fast is set. A batch <= 0 uses the number of columns
// of acts. Record panics if acts does not have NUnits rows.
func (rs *Running) Record(acts mat.Matrix, errv float64, batch int, fast, center bool) {
	nu, ns := acts.Dims()
	if nu != rs.NUnits() {
		panic(fmt.Sprintf("stats: Record: coefficients have %d rows, tracking %d units", nu, rs.NUnits()))
	}
	if batch <= 0 {
		batch = ns
	}
	l0 := make([]float64, nu)
	l1 := make([]float64, nu)
	l2 := make([]float64, nu)
	means := make([]float64, nu)
	var t0, t1, t2 float64
	for i := 0; i < nu; i++ {
		for j := 0; j < ns; j++ {
			v := acts.At(i, j)
			if v != 0 {
				l0[i]++
			}
			l1[i] += math.Abs(v)
			l2[i] += v * v
			means[i] += v
		}
		t0 += l0[i]
		t1 += l1[i]
		t2 += l2[i]
	}
	fn := float64(ns)
	floats.Scale(1/fn, l0)
	floats.Scale(1/fn, l1)
	floats.Scale(1/fn, l2)
	floats.Scale(1/fn, means)

	rs.avg(rs.L2, l2)
	rs.avg(rs.L1, l1)
	rs.avg(rs.L0, l0)
	rs.avg(rs.MeanActs, means)

	tot := float64(nu * ns)
	rs.ErrorHist = append(rs.ErrorHist, errv)
	rs.L0Hist = append(rs.L0Hist, t0/tot)
	rs.L1Hist = append(rs.L1Hist, t1/tot)
	rs.L2Hist = append(rs.L2Hist, t2/tot)

	if fast {
		return
	}
	devs := mat.DenseCopyOf(acts)
	if center {
		for i := 0; i < nu; i++ {
			row := devs.RawRowView(i)
			floats.AddConst(-means[i], row)
		}
	}
	corr := mat.NewDense(nu, nu, nil)
	corr.Mul(devs, devs.T())
	corr.Scale(rs.Rate/float64(batch), corr)
	rs.Corr.Scale(1-rs.Rate, rs.Corr)
	rs.Corr.Add(rs.Corr, corr)
}

// Sort reorders every per-unit statistic so that new unit i is old unit
// perm[i]. Both axes of the correlation matrix are permuted.
func (rs *Running) Sort(perm []int) {
	rs.L0 = permute(rs.L0, perm)
	rs.L1 = permute(rs.L1, perm)
	rs.L2 = permute(rs.L2, perm)
	rs.MeanActs = permute(rs.MeanActs, perm)
	n := len(perm)
	pc := mat.NewDense(n, n, nil)
	for i, pi := range perm {
		for j, pj := range perm {
			pc.Set(i, j, rs.Corr.At(pi, pj))
		}
	}
	rs.Corr = pc
}

func permute(v []float64, perm []int) []float64 {
	pv := make([]float64, len(perm))
	for i, p := range perm {
		pv[i] = v[p]
	}
	return pv
}

// Clone returns a deep copy, safe to read while the original keeps changing
func (rs *Running) Clone() *Running {
	cp := func(v []float64) []float64 {
		return append([]float64(nil), v...)
	}
	return &Running{
		Rate:      rs.Rate,
		L0:        cp(rs.L0),
		L1:        cp(rs.L1),
		L2:        cp(rs.L2),
		MeanActs:  cp(rs.MeanActs),
		Corr:      mat.DenseCopyOf(rs.Corr),
		ErrorHist: cp(rs.ErrorHist),
		L0Hist:    cp(rs.L0Hist),
		L1Hist:    cp(rs.L1Hist),
		L2Hist:    cp(rs.L2Hist),
	}
}
