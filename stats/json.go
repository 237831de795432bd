// Copyright (c) 2022, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stats

import (
	"encoding/json"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// runningJSON is the saved form of Running, with the correlation matrix
// flattened in row-major order
type runningJSON struct {
	Rate      float64
	L0        []float64
	L1        []float64
	L2        []float64
	MeanActs  []float64
	Corr      []float64
	ErrorHist []float64
	L0Hist    []float64
	L1Hist    []float64
	L2Hist    []float64
}

func (rs *Running) MarshalJSON() ([]byte, error) {
	n := rs.NUnits()
	corr := make([]float64, 0, n*n)
	for i := 0; i < n; i++ {
		corr = append(corr, rs.Corr.RawRowView(i)...)
	}
	return json.Marshal(&runningJSON{
		Rate:      rs.Rate,
		L0:        rs.L0,
		L1:        rs.L1,
		L2:        rs.L2,
		MeanActs:  rs.MeanActs,
		Corr:      corr,
		ErrorHist: rs.ErrorHist,
		L0Hist:    rs.L0Hist,
		L1Hist:    rs.L1Hist,
		L2Hist:    rs.L2Hist,
	})
}

func (rs *Running) UnmarshalJSON(b []byte) error {
	var rj runningJSON
	if err := json.Unmarshal(b, &rj); err != nil {
		return err
	}
	n := len(rj.L0)
	if len(rj.L1) != n || len(rj.L2) != n || len(rj.MeanActs) != n || len(rj.Corr) != n*n {
		return fmt.Errorf("stats: inconsistent unit counts in saved statistics")
	}
	*rs = Running{
		Rate:      rj.Rate,
		L0:        rj.L0,
		L1:        rj.L1,
		L2:        rj.L2,
		MeanActs:  rj.MeanActs,
		ErrorHist: rj.ErrorHist,
		L0Hist:    rj.L0Hist,
		L1Hist:    rj.L1Hist,
		L2Hist:    rj.L2Hist,
	}
	if n > 0 {
		rs.Corr = mat.NewDense(n, n, rj.Corr)
	}
	return nil
}
