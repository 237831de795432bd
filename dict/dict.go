// Copyright (c) 2022, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package dict holds the dictionary of a sparse coding model: N unit-norm
elements of dimension D stored as the rows of an N x D matrix, together
with the gradient learning rule that adapts it to the stimuli and a few
measures of how well it reconstructs them.
*/
package dict

import (
	"fmt"
	"math"

	"github.com/emer/etable/etensor"
	"github.com/goki/gi/gi"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// DegenerateError is returned when a dictionary element has zero norm
// and cannot be normalized
type DegenerateError struct {
	Row int
}

func (e *DegenerateError) Error() string {
	return fmt.Sprintf("dict: element %d has zero norm", e.Row)
}

// ShapeError reports a dictionary, stimulus batch and coefficients that do not agree
type ShapeError struct {
	Op     string
	Dict   [2]int
	Stims  [2]int
	Coeffs [2]int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("dict: %s: dictionary %dx%d, stimuli %dx%d, coefficients %dx%d", e.Op,
		e.Dict[0], e.Dict[1], e.Stims[0], e.Stims[1], e.Coeffs[0], e.Coeffs[1])
}

func checkShapes(op string, q, x, s mat.Matrix) error {
	nd, dim := q.Dims()
	dx, ns := x.Dims()
	sn, sb := s.Dims()
	if dx != dim || sn != nd || sb != ns {
		return &ShapeError{Op: op, Dict: [2]int{nd, dim}, Stims: [2]int{dx, ns}, Coeffs: [2]int{sn, sb}}
	}
	return nil
}

// Rand returns nunits random elements of dimension dim, drawn from an
// isotropic Gaussian and normalized to unit length
func Rand(nunits, dim int, src rand.Source) *mat.Dense {
	nrm := distuv.Normal{Mu: 0, Sigma: 1, Src: src}
	q := mat.NewDense(nunits, dim, nil)
	for i := 0; i < nunits; i++ {
		row := q.RawRowView(i)
		for {
			for j := range row {
				row[j] = nrm.Rand()
			}
			if n := floats.Norm(row, 2); n > 0 {
				floats.Scale(1/n, row)
				break
			}
		}
	}
	return q
}

// Normalize scales every row of q to unit Euclidean length, in place
func Normalize(q *mat.Dense) error {
	nd, _ := q.Dims()
	for i := 0; i < nd; i++ {
		row := q.RawRowView(i)
		n := floats.Norm(row, 2)
		if n == 0 || math.IsNaN(n) {
			return &DegenerateError{Row: i}
		}
		floats.Scale(1/n, row)
	}
	return nil
}

// Update returns the dictionary after one gradient step on the mean-squared
// reconstruction error of stimuli x (D x B) from coefficients s (N x B),
// along with that error. A nonzero theta adds a term pushing the elements
// toward mutual orthogonality, computed from the already updated dictionary.
// q itself is not modified.
func Update(q *mat.Dense, x, s mat.Matrix, lr, theta float64, normalize bool) (*mat.Dense, float64, error) {
	if err := checkShapes("update", q, x, s); err != nil {
		return nil, 0, err
	}
	nd, dim := q.Dims()
	_, ns := x.Dims()

	r := mat.NewDense(ns, dim, nil)
	r.Mul(s.T(), q)
	r.Sub(x.T(), r)

	dq := mat.NewDense(nd, dim, nil)
	dq.Mul(s, r)
	nq := mat.NewDense(nd, dim, nil)
	nq.Scale(lr, dq)
	nq.Add(q, nq)

	if theta != 0 {
		qtq := mat.NewDense(dim, dim, nil)
		qtq.Mul(nq.T(), nq)
		qqq := mat.NewDense(nd, dim, nil)
		qqq.Mul(nq, qtq)
		qqq.Sub(nq, qqq)
		nq.Apply(func(i, j int, v float64) float64 {
			return v + theta*qqq.At(i, j)
		}, nq)
	}
	if normalize {
		if err := Normalize(nq); err != nil {
			return nil, 0, err
		}
	}
	return nq, meanSq(r), nil
}

func meanSq(m *mat.Dense) float64 {
	nr, nc := m.Dims()
	sum := 0.0
	for i := 0; i < nr; i++ {
		for _, v := range m.RawRowView(i) {
			sum += v * v
		}
	}
	return sum / float64(nr*nc)
}

// Generate returns the D x B reconstruction of coefficients s from q
func Generate(q, s mat.Matrix) *mat.Dense {
	_, dim := q.Dims()
	_, ns := s.Dims()
	gen := mat.NewDense(dim, ns, nil)
	gen.Mul(q.T(), s)
	return gen
}

// Errors returns, for each stimulus, the mean-squared reconstruction error
// divided by the mean-squared value of the stimulus. An all-zero stimulus
// gives NaN if it is reconstructed exactly and +Inf otherwise.
func Errors(q, x, s mat.Matrix) ([]float64, error) {
	if err := checkShapes("errors", q, x, s); err != nil {
		return nil, err
	}
	gen := Generate(q, s)
	dim, ns := gen.Dims()
	errs := make([]float64, ns)
	for j := 0; j < ns; j++ {
		dsum, xsum := 0.0, 0.0
		for i := 0; i < dim; i++ {
			xv := x.At(i, j)
			d := xv - gen.At(i, j)
			dsum += d * d
			xsum += xv * xv
		}
		errs[j] = dsum / xsum
	}
	return errs, nil
}

// SNR returns the signal to noise ratio of the reconstruction: the variance
// of each stimulus over the variance of its residual, averaged over stimuli.
// A stimulus whose residual is constant makes the result +Inf, or NaN if
// the stimulus is constant too.
func SNR(q, x, s mat.Matrix) (float64, error) {
	if err := checkShapes("snr", q, x, s); err != nil {
		return 0, err
	}
	gen := Generate(q, s)
	dim, ns := gen.Dims()
	sig := make([]float64, dim)
	noise := make([]float64, dim)
	sum := 0.0
	for j := 0; j < ns; j++ {
		mat.Col(sig, j, x)
		mat.Col(noise, j, gen)
		floats.SubTo(noise, sig, noise)
		sum += stat.Variance(sig, nil) / stat.Variance(noise, nil)
	}
	return sum / float64(ns), nil
}

// Permute returns a copy of q with row i taken from row perm[i]
func Permute(q mat.Matrix, perm []int) *mat.Dense {
	_, dim := q.Dims()
	pq := mat.NewDense(len(perm), dim, nil)
	for i, p := range perm {
		for j := 0; j < dim; j++ {
			pq.Set(i, j, q.At(p, j))
		}
	}
	return pq
}

// Oriented returns a copy of q with the sign of each element flipped
// where the mean activity of its unit is negative, so that every element
// is shown the way it typically appears in the stimuli
func Oriented(q mat.Matrix, means []float64) *mat.Dense {
	oq := mat.DenseCopyOf(q)
	for i, m := range means {
		if m < 0 {
			floats.Scale(-1, oq.RawRowView(i))
		}
	}
	return oq
}

// ToTensor copies q into an etensor with dims Unit, Dim
func ToTensor(q mat.Matrix) *etensor.Float64 {
	nd, dim := q.Dims()
	tsr := &etensor.Float64{}
	tsr.SetShape([]int{nd, dim}, nil, []string{"Unit", "Dim"})
	for i := 0; i < nd; i++ {
		for j := 0; j < dim; j++ {
			tsr.Values[i*dim+j] = q.At(i, j)
		}
	}
	return tsr
}

// ExportTSV writes q to a tab-separated file, one element per line
func ExportTSV(q mat.Matrix, fname string) error {
	return etensor.SaveCSV(ToTensor(q), gi.FileName(fname), '\t')
}
