// Copyright (c) 2022, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stimset

import (
	"github.com/emer/etable/etensor"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// MatSet serves the rows of a data tensor as stimuli. Batches are taken
// in a permuted order that is reshuffled each time every row has been used,
// as in a permuted fixed-table environment.
type MatSet struct {
	Data  *mat.Dense `desc:"D x M stimuli, one per column"`
	Order []int      `desc:"permuted order of the stimuli"`
	Pos   int        `desc:"next position in Order"`
	Rand  *rand.Rand `view:"-" desc:"source of the permutations"`
}

// NewMatSet returns a MatSet over the rows of data, flattening the
// remaining dims of each row into one vector. The order of batches is
// fixed by seed.
func NewMatSet(data *etensor.Float64, seed uint64) (*MatSet, error) {
	nr, dim, err := rowsOf(data)
	if err != nil {
		return nil, err
	}
	ms := &MatSet{Data: mat.NewDense(dim, nr, nil), Rand: rand.New(rand.NewSource(seed))}
	for r := 0; r < nr; r++ {
		for i := 0; i < dim; i++ {
			ms.Data.Set(i, r, data.Values[r*dim+i])
		}
	}
	ms.initOrder(nr)
	return ms, nil
}

// NewMatSetDense returns a MatSet over the columns of x, which is not copied
func NewMatSetDense(x *mat.Dense, seed uint64) *MatSet {
	_, nc := x.Dims()
	ms := &MatSet{Data: x, Rand: rand.New(rand.NewSource(seed))}
	ms.initOrder(nc)
	return ms
}

func (ms *MatSet) initOrder(n int) {
	ms.Order = make([]int, n)
	for i := range ms.Order {
		ms.Order[i] = i
	}
	ms.permute()
}

func (ms *MatSet) permute() {
	ms.Rand.Shuffle(len(ms.Order), func(i, j int) {
		ms.Order[i], ms.Order[j] = ms.Order[j], ms.Order[i]
	})
}

func (ms *MatSet) DataSize() int {
	dim, _ := ms.Data.Dims()
	return dim
}

func (ms *MatSet) AllData() *mat.Dense {
	return mat.DenseCopyOf(ms.Data)
}

func (ms *MatSet) RandBatch(n int) *mat.Dense {
	dim := ms.DataSize()
	x := mat.NewDense(dim, n, nil)
	col := make([]float64, dim)
	for j := 0; j < n; j++ {
		if ms.Pos >= len(ms.Order) {
			ms.permute()
			ms.Pos = 0
		}
		mat.Col(col, ms.Order[ms.Pos], ms.Data)
		x.SetCol(j, col)
		ms.Pos++
	}
	return x
}
