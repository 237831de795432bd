// Copyright (c) 2022, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package learner

import (
	"fmt"
	"log"
	"os"

	"github.com/emer/emergent/env"
	"github.com/emer/etable/etable"
	"github.com/emer/etable/etensor"
)

// Run runs ntrials trials of inference and learning. It stops at the first
// inference or learning error, returning it with the trial number.
// Checkpoints are written every SaveEvery trials and on the last trial
// when ParamFile is set; failures to write them are logged and learning
// continues. Run returns once any asynchronous checkpoint has finished.
func (l *Learner) Run(ntrials int) error {
	defer l.saves.Wait()
	if ntrials <= 0 {
		return nil
	}
	l.Trial = env.Ctr{Max: ntrials, Scale: env.Trial}
	l.Trial.Init()
	l.TrialLog.SetNumRows(0)
	for {
		trial := l.Trial.Cur
		if trial%50 == 0 {
			log.Printf("trial %d\n", trial)
		}
		if err := l.RunTrial(); err != nil {
			return fmt.Errorf("learner: trial %d: %w", trial, err)
		}
		l.LogTrial(&l.TrialLog, trial)

		last := trial+1 == ntrials
		if l.ParamFile != "" && (last || (l.SaveEvery > 0 && trial%l.SaveEvery == 0 && trial != 0)) {
			l.checkpoint()
		}
		if l.RateDecay != 0 {
			l.AdjustRates(l.RateDecay)
		}
		if l.Trial.Incr() {
			break
		}
	}
	return nil
}

// RunTrial infers coefficients for a fresh batch, learns from them and
// records the statistics of the trial
func (l *Learner) RunTrial() error {
	x := l.Src.RandBatch(l.BatchSize)
	res, err := l.Infer(x, false)
	if err != nil {
		return err
	}
	errv, err := l.Learn(x, res.S)
	if err != nil {
		return err
	}
	l.Stats.Record(res.S, errv, l.BatchSize, l.FastMode, l.CenterCorr)
	return nil
}

// checkpoint saves the learner, logging rather than returning failures
func (l *Learner) checkpoint() {
	log.Printf("Saving progress to %s\n", l.ParamFile)
	if !l.AsyncSave {
		if err := l.Save(l.ParamFile); err != nil {
			log.Printf("Failed to save parameters: %v\n", err)
		}
		return
	}
	ck := l.snapshot()
	fname := l.ParamFile
	l.saves.Add(1)
	go func() {
		defer l.saves.Done()
		if err := l.writeCheckpoint(ck, fname); err != nil {
			log.Printf("Failed to save parameters: %v\n", err)
		}
	}()
}

// WaitSaves blocks until every asynchronous checkpoint has been written
func (l *Learner) WaitSaves() {
	l.saves.Wait()
}

// ConfigTrialLog configures the table logging one row per trial
func (l *Learner) ConfigTrialLog(dt *etable.Table) {
	dt.SetMetaData("name", "TrialLog")
	dt.SetMetaData("desc", "Record of learning, per trial")
	dt.SetMetaData("read-only", "true")
	dt.SetMetaData("precision", "6")

	sch := etable.Schema{
		{"Trial", etensor.INT64, nil, nil},
		{"Error", etensor.FLOAT64, nil, nil},
		{"L0", etensor.FLOAT64, nil, nil},
		{"L1", etensor.FLOAT64, nil, nil},
		{"L2", etensor.FLOAT64, nil, nil},
		{"LearnRate", etensor.FLOAT64, nil, nil},
		{"Theta", etensor.FLOAT64, nil, nil},
	}
	dt.SetFromSchema(sch, 0)
}

// LogTrial adds a row for the most recently recorded trial, and writes it
// to the log file if one is open
func (l *Learner) LogTrial(dt *etable.Table, trial int) {
	if l.Stats.NTrials() == 0 {
		return
	}
	row := dt.Rows
	dt.SetNumRows(row + 1)

	dt.SetCellFloat("Trial", row, float64(trial))
	dt.SetCellFloat("Error", row, last(l.Stats.ErrorHist))
	dt.SetCellFloat("L0", row, last(l.Stats.L0Hist))
	dt.SetCellFloat("L1", row, last(l.Stats.L1Hist))
	dt.SetCellFloat("L2", row, last(l.Stats.L2Hist))
	dt.SetCellFloat("LearnRate", row, l.LearnRate)
	dt.SetCellFloat("Theta", row, l.Theta)

	if l.logFile != nil {
		if !l.logHdrs {
			dt.WriteCSVHeaders(l.logFile, etable.Tab)
			l.logHdrs = true
		}
		dt.WriteCSVRow(l.logFile, row, etable.Tab)
	}
}

// OpenLog streams the trial log to a tab-separated file
func (l *Learner) OpenLog(fname string) error {
	f, err := os.Create(fname)
	if err != nil {
		return err
	}
	l.logFile = f
	l.logHdrs = false
	return nil
}

// CloseLog closes the trial log file, if open
func (l *Learner) CloseLog() error {
	if l.logFile == nil {
		return nil
	}
	err := l.logFile.Close()
	l.logFile = nil
	return err
}

// last returns the most recent entry of a history, 0 if empty.
// Histories restored from old checkpoints can have different lengths.
func last(hist []float64) float64 {
	if len(hist) == 0 {
		return 0
	}
	return hist[len(hist)-1]
}
