// Copyright (c) 2022, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lca

import (
	"errors"
	"math"
	"testing"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

const difTol = 1.0e-9

// randOrtho returns a random n x n matrix with orthonormal rows
func randOrtho(n int, seed uint64) *mat.Dense {
	rnd := rand.New(rand.NewSource(seed))
	a := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			a.Set(i, j, rnd.NormFloat64())
		}
	}
	var qr mat.QR
	qr.Factorize(a)
	var q mat.Dense
	qr.QTo(&q)
	return &q
}

// oneUnitStims returns a D x B batch where stimulus j is amp times row j % N of q
func oneUnitStims(q *mat.Dense, nstim int, amp float64) *mat.Dense {
	nd, dim := q.Dims()
	x := mat.NewDense(dim, nstim, nil)
	for j := 0; j < nstim; j++ {
		row := q.RawRowView(j % nd)
		for i := 0; i < dim; i++ {
			x.Set(i, j, amp*row[i])
		}
	}
	return x
}

func randStims(dim, nstim int, seed uint64) *mat.Dense {
	rnd := rand.New(rand.NewSource(seed))
	x := mat.NewDense(dim, nstim, nil)
	for i := 0; i < dim; i++ {
		for j := 0; j < nstim; j++ {
			x.Set(i, j, rnd.NormFloat64())
		}
	}
	return x
}

func testParams() *Params {
	pars := &Params{}
	pars.Defaults()
	pars.InfRate = 0.1
	pars.NIter = 50
	pars.MinThresh = 0.1
	pars.Adapt = 0.9
	return pars
}

func TestThresholdExact(t *testing.T) {
	th := 0.5
	if v := Threshold(0.5, th, false); v != 0 {
		t.Errorf("hard threshold at |u| == th: got %v, want 0", v)
	}
	if v := Threshold(-0.5, th, false); v != 0 {
		t.Errorf("hard threshold at |u| == th: got %v, want 0", v)
	}
	if v := Threshold(0.5, th, true); v != 0 {
		t.Errorf("soft threshold at |u| == th: got %v, want 0", v)
	}
	if v := Threshold(0.8, th, false); v != 0.8 {
		t.Errorf("hard threshold above th: got %v, want 0.8", v)
	}
	if v := Threshold(-0.8, th, true); math.Abs(v+0.3) > difTol {
		t.Errorf("soft threshold keeps sign: got %v, want -0.3", v)
	}
	if v := Threshold(0.8, th, true); math.Abs(v-0.3) > difTol {
		t.Errorf("soft threshold shrinks by th: got %v, want 0.3", v)
	}
}

func TestThreshFloor(t *testing.T) {
	q := randOrtho(8, 1)
	x := randStims(8, 5, 2)
	for _, adapt := range []float64{0, 0.5, 0.95, 1, 1.5} {
		pars := testParams()
		pars.Adapt = adapt
		pars.MinThresh = 0.3
		pars.NIter = 20
		pars.MaxIter = 2
		pars.Tolerance = 0
		en := &CPUEngine{}
		res, err := en.Infer(q, x, pars, true)
		if err != nil {
			t.Fatal(err)
		}
		for it, ths := range res.Diag.Thresh {
			for si, th := range ths {
				if th < pars.MinThresh {
					t.Errorf("adapt %v iter %d stim %d: threshold %v below floor", adapt, it, si, th)
				}
			}
		}
		for si, th := range res.Thresh {
			if th < pars.MinThresh {
				t.Errorf("adapt %v stim %d: final threshold %v below floor", adapt, si, th)
			}
		}
	}
}

func TestInitThresh(t *testing.T) {
	b := mat.NewDense(2, 4, []float64{
		1, -1, 1, -1,
		0.1, 0, -0.1, 0,
	})
	th := InitThresh(b, 0.2)
	if th[0] != 1 {
		t.Errorf("threshold from mean |b|: got %v, want 1", th[0])
	}
	if th[1] != 0.2 {
		t.Errorf("threshold floored at min: got %v, want 0.2", th[1])
	}
}

func TestIdempotent(t *testing.T) {
	q := randOrtho(10, 3)
	x := randStims(10, 7, 4)
	pars := testParams()
	en := &CPUEngine{}
	r1, err := en.Infer(q, x, pars, false)
	if err != nil {
		t.Fatal(err)
	}
	r2, err := en.Infer(q, x, pars, false)
	if err != nil {
		t.Fatal(err)
	}
	if !mat.Equal(r1.S, r2.S) {
		t.Errorf("repeated inference gave different coefficients")
	}
	if r1.Passes != r2.Passes || r1.Error != r2.Error {
		t.Errorf("repeated inference: passes %d/%d error %v/%v", r1.Passes, r2.Passes, r1.Error, r2.Error)
	}
}

func TestOrthonormalRecon(t *testing.T) {
	q := randOrtho(8, 5)
	x := oneUnitStims(q, 12, 1.0)
	pars := testParams()
	pars.MinThresh = 0
	pars.NIter = 300
	pars.Tolerance = 1e-8
	pars.MaxIter = 4
	en := &CPUEngine{}
	res, err := en.Infer(q, x, pars, false)
	if err != nil {
		t.Fatal(err)
	}
	if res.Error > 1e-6 {
		t.Errorf("reconstruction error %v not below 1e-6 after %d blocks", res.Error, res.Passes)
	}
	nd, ns := res.S.Dims()
	if nd != 8 || ns != 12 {
		t.Fatalf("coefficients are %dx%d, want 8x12", nd, ns)
	}
	for j := 0; j < ns; j++ {
		for i := 0; i < nd; i++ {
			v := res.S.At(i, j)
			if i == j%nd {
				if math.Abs(v-1) > 1e-3 {
					t.Errorf("stim %d unit %d: got %v, want 1", j, i, v)
				}
			} else if math.Abs(v) > 1e-6 {
				t.Errorf("stim %d unit %d: got %v, want 0", j, i, v)
			}
		}
	}
}

func TestUnboundedRetries(t *testing.T) {
	q := randOrtho(8, 6)
	x := oneUnitStims(q, 8, 1.0)
	pars := testParams()
	pars.MinThresh = 0
	pars.NIter = 10
	pars.Tolerance = 1e-6
	pars.MaxIter = Unbounded
	en := &CPUEngine{}
	res, err := en.Infer(q, x, pars, true)
	if err != nil {
		t.Fatal(err)
	}
	if res.Error > pars.Tolerance {
		t.Errorf("unbounded inference stopped at error %v above tolerance", res.Error)
	}
	if res.Passes < 2 {
		t.Errorf("expected warm-started retries, got %d blocks", res.Passes)
	}
	if res.Diag.NIters() != res.Passes*pars.NIter {
		t.Errorf("diagnostics recorded %d iterations, want %d", res.Diag.NIters(), res.Passes*pars.NIter)
	}
	en0 := res.Diag.Energy()
	if en0[len(en0)-1] >= en0[0] {
		t.Errorf("energy did not decrease: first %v last %v", en0[0], en0[len(en0)-1])
	}
}

func TestMaxIterCap(t *testing.T) {
	q := randOrtho(8, 7)
	x := randStims(8, 4, 8)
	pars := testParams()
	pars.Tolerance = -1 // never met
	pars.MaxIter = 3
	pars.NIter = 5
	res, err := (&CPUEngine{}).Infer(q, x, pars, false)
	if err != nil {
		t.Fatal(err)
	}
	if res.Passes != 3 {
		t.Errorf("got %d blocks, want MaxIter = 3", res.Passes)
	}
}

func TestDiverged(t *testing.T) {
	// identical elements: every unit inhibits every other with overlap 1
	nd, dim := 6, 4
	q := mat.NewDense(nd, dim, nil)
	for i := 0; i < nd; i++ {
		q.Set(i, 0, 1)
	}
	x := randStims(dim, 3, 9)
	pars := testParams()
	pars.InfRate = 50
	pars.NIter = 1000
	pars.MinThresh = 0
	for _, en := range []Engine{&CPUEngine{}, &BatchedEngine{Workers: 2}} {
		res, err := en.Infer(q, x, pars, false)
		if res != nil {
			t.Errorf("%T: diverged inference returned coefficients", en)
		}
		var de *DivergedError
		if !errors.As(err, &de) {
			t.Fatalf("%T: got error %v, want DivergedError", en, err)
		}
		if de.Iter < 0 || de.Iter >= pars.NIter {
			t.Errorf("%T: iteration index %d out of range", en, de.Iter)
		}
	}
}

func TestBatchedMatchesCPU(t *testing.T) {
	q := randOrtho(12, 10)
	q = mat.DenseCopyOf(q.Slice(0, 9, 0, 12))
	x := randStims(12, 11, 11)
	pars := testParams()
	pars.MaxIter = 1
	pars.SoftThresh = true
	cpu, err := (&CPUEngine{}).Infer(q, x, pars, false)
	if err != nil {
		t.Fatal(err)
	}
	for _, nw := range []int{1, 3, 4, 0} {
		be := &BatchedEngine{Workers: nw}
		res, err := be.Infer(q, x, pars, true)
		if err != nil {
			t.Fatal(err)
		}
		if res.Diag != nil {
			t.Errorf("batched engine recorded diagnostics it does not support")
		}
		if !mat.EqualApprox(cpu.S, res.S, difTol) {
			t.Errorf("workers %d: batched coefficients differ from cpu", nw)
		}
		if math.Abs(cpu.Error-res.Error) > difTol {
			t.Errorf("workers %d: error %v vs cpu %v", nw, res.Error, cpu.Error)
		}
	}
	if (&BatchedEngine{}).Caps().Retries {
		t.Errorf("batched engine must not report convergence retries")
	}
}

func TestShapeMismatch(t *testing.T) {
	q := randOrtho(4, 12)
	x := randStims(5, 2, 13)
	_, err := (&CPUEngine{}).Infer(q, x, testParams(), false)
	var se *ShapeError
	if !errors.As(err, &se) {
		t.Errorf("got %v, want ShapeError", err)
	}
}

func TestValidate(t *testing.T) {
	pars := &Params{}
	pars.Defaults()
	if err := pars.Validate(); err != nil {
		t.Errorf("defaults invalid: %v", err)
	}
	pars.MaxIter = Unbounded
	if err := pars.Validate(); err != nil {
		t.Errorf("Unbounded rejected: %v", err)
	}
	pars.MaxIter = 0
	if err := pars.Validate(); err == nil {
		t.Errorf("MaxIter 0 accepted")
	}
	pars.Defaults()
	pars.InfRate = 0
	if err := pars.Validate(); err == nil {
		t.Errorf("InfRate 0 accepted")
	}
}

func TestNewEngine(t *testing.T) {
	en, err := NewEngine(Batched, 2)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := en.(*BatchedEngine); !ok {
		t.Errorf("got %T for Batched", en)
	}
	if _, err := NewEngine(BackendN, 0); err == nil {
		t.Errorf("BackendN accepted")
	}
	var be Backend
	if err := be.FromString("Batched"); err != nil || be != Batched {
		t.Errorf("FromString: %v %v", be, err)
	}
}
