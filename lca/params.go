// Copyright (c) 2022, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lca

import (
	"fmt"
	"math"
)

// Unbounded is the MaxIter value meaning the outer loop repeats until
// the tolerance is met, however long that takes
const Unbounded = -1

// Params are the parameters of the locally competitive algorithm
type Params struct {
	InfRate    float64 `def:"0.003" min:"0" desc:"rate for evolving the dynamical equation in inference (size of each step)"`
	NIter      int     `def:"300" min:"1" desc:"number of steps in one block of inference -- blocks are repeated until Tolerance is met or MaxIter blocks have run"`
	MinThresh  float64 `def:"0.4" min:"0" desc:"thresholds are reduced during inference no lower than this value -- multiplies the sparsity constraint in the objective function (lambda)"`
	Adapt      float64 `def:"0.95" min:"0" desc:"factor by which thresholds are multiplied after each inference step"`
	Tolerance  float64 `def:"0.01" desc:"inference stops once the mean-squared reconstruction error falls below this"`
	MaxIter    int     `def:"4" desc:"maximum number of blocks of NIter steps -- Unbounded (-1) for no cap"`
	SoftThresh bool    `def:"false" desc:"soft thresholding (L1 sparsity) instead of hard thresholding (L0 sparsity)"`
}

func (lp *Params) Defaults() {
	lp.InfRate = 0.003
	lp.NIter = 300
	lp.MinThresh = 0.4
	lp.Adapt = 0.95
	lp.Tolerance = 0.01
	lp.MaxIter = 4
	lp.SoftThresh = false
}

// Validate returns an error describing the first invalid parameter
func (lp *Params) Validate() error {
	switch {
	case !(lp.InfRate > 0) || math.IsInf(lp.InfRate, 0):
		return fmt.Errorf("lca: InfRate must be positive and finite, got %v", lp.InfRate)
	case lp.NIter < 1:
		return fmt.Errorf("lca: NIter must be >= 1, got %d", lp.NIter)
	case lp.MinThresh < 0 || math.IsNaN(lp.MinThresh):
		return fmt.Errorf("lca: MinThresh must be >= 0, got %v", lp.MinThresh)
	case lp.Adapt < 0 || math.IsNaN(lp.Adapt):
		return fmt.Errorf("lca: Adapt must be >= 0, got %v", lp.Adapt)
	case math.IsNaN(lp.Tolerance):
		return fmt.Errorf("lca: Tolerance is NaN")
	case lp.MaxIter == 0 || lp.MaxIter < Unbounded:
		return fmt.Errorf("lca: MaxIter must be >= 1 or Unbounded, got %d", lp.MaxIter)
	}
	return nil
}

// MorePasses reports whether another block of NIter steps is allowed
// after the given number of completed blocks
func (lp *Params) MorePasses(done int) bool {
	return lp.MaxIter == Unbounded || done < lp.MaxIter
}
