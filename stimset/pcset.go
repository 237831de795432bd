// Copyright (c) 2022, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stimset

import (
	"fmt"

	"github.com/emer/etable/etable"
	"github.com/emer/etable/etensor"
	"github.com/emer/etable/metric"
	"github.com/emer/etable/norm"
	"github.com/emer/etable/pca"
	"gonum.org/v1/gonum/mat"
)

// PCSet serves stimuli encoded by their leading principal components.
// The PCA is computed once from the full data set, and ToStim maps a
// vector of components back to the original stimulus space.
type PCSet struct {
	MatSet
	Shape     []int      `desc:"shape of one original stimulus"`
	Mean      []float64  `desc:"mean of the original stimuli"`
	Comps     *mat.Dense `desc:"NPCs x D principal directions, strongest first"`
	Explained float64    `desc:"fraction of the total variance captured by the kept components"`
}

// NewPCSet returns a PCSet keeping npcs components of the rows of data,
// each of which has the given original shape. seed fixes the order of batches.
func NewPCSet(data *etensor.Float64, shape []int, npcs int, seed uint64) (*PCSet, error) {
	nr, dim, err := rowsOf(data)
	if err != nil {
		return nil, err
	}
	sz := 1
	for _, d := range shape {
		sz *= d
	}
	if sz != dim {
		return nil, fmt.Errorf("%w: stimulus shape %v does not match rows of %d values", ErrUnsupportedFormat, shape, dim)
	}
	if npcs < 1 || npcs > dim {
		return nil, fmt.Errorf("stimset: cannot keep %d components of %d dim stimuli", npcs, dim)
	}

	dt := &etable.Table{}
	dt.SetFromSchema(etable.Schema{
		{"Stim", etensor.FLOAT64, []int{dim}, nil},
	}, nr)
	col := dt.ColByName("Stim").(*etensor.Float64)
	copy(col.Values, data.Values[:nr*dim])

	var pc pca.PCA
	pc.Init()
	if err := pc.TableCol(etable.NewIdxView(dt), "Stim", metric.Covariance64); err != nil {
		return nil, fmt.Errorf("stimset: pca: %w", err)
	}

	ps := &PCSet{Shape: append([]int(nil), shape...), Mean: make([]float64, dim)}
	for r := 0; r < nr; r++ {
		for i := 0; i < dim; i++ {
			ps.Mean[i] += data.Values[r*dim+i]
		}
	}
	for i := range ps.Mean {
		ps.Mean[i] /= float64(nr)
	}

	// eigenvalues come back in ascending order, vectors in columns
	ps.Comps = mat.NewDense(npcs, dim, nil)
	top := 0.0
	for k := 0; k < npcs; k++ {
		vi := dim - 1 - k
		for i := 0; i < dim; i++ {
			ps.Comps.Set(k, i, pc.Vectors.Value([]int{i, vi}))
		}
		top += pc.Values[vi]
	}
	if tot := norm.Sum64(pc.Values); tot > 0 {
		ps.Explained = top / tot
	}

	proj := mat.NewDense(npcs, nr, nil)
	cent := mat.NewDense(dim, nr, nil)
	for r := 0; r < nr; r++ {
		for i := 0; i < dim; i++ {
			cent.Set(i, r, data.Values[r*dim+i]-ps.Mean[i])
		}
	}
	proj.Mul(ps.Comps, cent)
	ps.MatSet = *NewMatSetDense(proj, seed)
	return ps, nil
}

// Encode returns the components of an original-space stimulus
func (ps *PCSet) Encode(stim []float64) []float64 {
	npcs, dim := ps.Comps.Dims()
	vec := make([]float64, npcs)
	for k := 0; k < npcs; k++ {
		row := ps.Comps.RawRowView(k)
		for i := 0; i < dim; i++ {
			vec[k] += row[i] * (stim[i] - ps.Mean[i])
		}
	}
	return vec
}

func (ps *PCSet) ToStim(vec []float64) []float64 {
	npcs, dim := ps.Comps.Dims()
	stim := append([]float64(nil), ps.Mean...)
	for k := 0; k < npcs && k < len(vec); k++ {
		row := ps.Comps.RawRowView(k)
		for i := 0; i < dim; i++ {
			stim[i] += vec[k] * row[i]
		}
	}
	return stim
}

func (ps *PCSet) StimShape() []int {
	return ps.Shape
}

// WaveformSet is a PCSet over raw waveform segments, whose shape
// defaults to the length of the segments
type WaveformSet struct {
	PCSet
}

// NewWaveformSet returns a WaveformSet keeping npcs components of the
// segments in the rows of data
func NewWaveformSet(data *etensor.Float64, shape []int, npcs int, seed uint64) (*WaveformSet, error) {
	_, dim, err := rowsOf(data)
	if err != nil {
		return nil, err
	}
	if len(shape) == 0 {
		shape = []int{dim}
	}
	ps, err := NewPCSet(data, shape, npcs, seed)
	if err != nil {
		return nil, err
	}
	return &WaveformSet{PCSet: *ps}, nil
}
