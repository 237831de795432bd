// Copyright (c) 2022, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stats

import (
	"math"

	"github.com/emer/etable/etable"
	"github.com/emer/etable/etensor"
	"github.com/emer/etable/minmax"
)

// Smoothed returns the moving average over window trials of hist[start:end],
// keeping only positions where the window fits entirely ('valid' mode).
// end <= 0 means through the end of hist. Returns nil if fewer than window
// entries are in range.
func Smoothed(hist []float64, window, start, end int) []float64 {
	if end <= 0 || end > len(hist) {
		end = len(hist)
	}
	if start < 0 {
		start = 0
	}
	if window < 1 {
		window = 1
	}
	if start >= end || end-start < window {
		return nil
	}
	h := hist[start:end]
	sm := make([]float64, len(h)-window+1)
	sum := 0.0
	for i := 0; i < window; i++ {
		sum += h[i]
	}
	fw := float64(window)
	sm[0] = sum / fw
	for i := 1; i < len(sm); i++ {
		sum += h[i+window-1] - h[i-1]
		sm[i] = sum / fw
	}
	return sm
}

// ActHist returns the activity history for the given norm: 0, 1 or 2.
// Anything else returns the L1 history.
func (rs *Running) ActHist(norm int) []float64 {
	switch norm {
	case 0:
		return rs.L0Hist
	case 2:
		return rs.L2Hist
	}
	return rs.L1Hist
}

// Progress returns the smoothed error history and the smoothed activity
// history for the given norm, over the whole run
func (rs *Running) Progress(norm, window int) (errs, acts []float64) {
	return Smoothed(rs.ErrorHist, window, 0, 0), Smoothed(rs.ActHist(norm), window, 0, 0)
}

const (
	// HogUsage is the L0 usage above which a unit is counted as hogging stimuli
	HogUsage = 0.3

	// DeadUsage is the L0 usage below which a unit is counted as dead
	DeadUsage = 0.001
)

// Usage summarizes the moving-average L0 usage of the units
type Usage struct {
	Avg     float64 `desc:"average usage over units"`
	Max     float64 `desc:"maximum usage"`
	MaxUnit int     `desc:"unit with maximum usage"`
	NHog    int     `desc:"number of units with usage above HogUsage"`
	NDead   int     `desc:"number of units with usage below DeadUsage"`
}

// Usage returns the summary of moving-average L0 usage
func (rs *Running) Usage() Usage {
	am := minmax.AvgMax64{}
	am.Init()
	us := Usage{}
	for i, v := range rs.L0 {
		am.UpdateVal(v, i)
		switch {
		case v > HogUsage:
			us.NHog++
		case v < DeadUsage:
			us.NDead++
		}
	}
	am.CalcAvg()
	us.Avg = am.Avg
	us.Max = am.Max
	us.MaxUnit = int(am.MaxIdx)
	return us
}

// histAt returns the entry of hist for trial i, with hist aligned to the
// end of the error history. Statistics restored from checkpoints that only
// kept the error history have shorter activity histories. Missing entries are NaN.
func (rs *Running) histAt(hist []float64, i int) float64 {
	j := i - (len(rs.ErrorHist) - len(hist))
	if j < 0 || j >= len(hist) {
		return math.NaN()
	}
	return hist[j]
}

// HistTable fills dt with one row per recorded trial
func (rs *Running) HistTable(dt *etable.Table) {
	dt.SetMetaData("name", "TrialHist")
	dt.SetMetaData("desc", "error and activity of every trial")
	dt.SetMetaData("precision", "6")
	dt.SetFromSchema(etable.Schema{
		{"Trial", etensor.INT64, nil, nil},
		{"Error", etensor.FLOAT64, nil, nil},
		{"L0", etensor.FLOAT64, nil, nil},
		{"L1", etensor.FLOAT64, nil, nil},
		{"L2", etensor.FLOAT64, nil, nil},
	}, rs.NTrials())
	for i := range rs.ErrorHist {
		dt.SetCellFloat("Trial", i, float64(i))
		dt.SetCellFloat("Error", i, rs.ErrorHist[i])
		dt.SetCellFloat("L0", i, rs.histAt(rs.L0Hist, i))
		dt.SetCellFloat("L1", i, rs.histAt(rs.L1Hist, i))
		dt.SetCellFloat("L2", i, rs.histAt(rs.L2Hist, i))
	}
}

// UnitTable fills dt with one row per unit of moving-average statistics
func (rs *Running) UnitTable(dt *etable.Table) {
	dt.SetMetaData("name", "UnitStats")
	dt.SetMetaData("desc", "moving-average usage of every unit")
	dt.SetFromSchema(etable.Schema{
		{"Unit", etensor.INT64, nil, nil},
		{"L0", etensor.FLOAT64, nil, nil},
		{"L1", etensor.FLOAT64, nil, nil},
		{"L2", etensor.FLOAT64, nil, nil},
		{"Mean", etensor.FLOAT64, nil, nil},
	}, rs.NUnits())
	for i := range rs.L0 {
		dt.SetCellFloat("Unit", i, float64(i))
		dt.SetCellFloat("L0", i, rs.L0[i])
		dt.SetCellFloat("L1", i, rs.L1[i])
		dt.SetCellFloat("L2", i, rs.L2[i])
		dt.SetCellFloat("Mean", i, rs.MeanActs[i])
	}
}
