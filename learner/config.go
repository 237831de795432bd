// Copyright (c) 2022, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package learner

import (
	"encoding/json"
	"math"
	"os"

	"github.com/emer/dictlearn/lca"
)

// Config has the parameters of a dictionary learner. Only AdjustRates
// changes them during a run.
type Config struct {
	NUnits        int         `desc:"number of dictionary elements"`
	LearnRate     float64     `desc:"rate for the mean-squared error part of the learning rule -- 0 means 1 / BatchSize"`
	Theta         float64     `def:"0.022" desc:"rate for the orthogonality part of the learning rule"`
	BatchSize     int         `def:"100" desc:"number of stimuli presented for inference per learning step"`
	MovingAvgRate float64     `def:"0.001" desc:"rate of the moving averages of unit statistics"`
	Normalize     bool        `def:"true" desc:"renormalize dictionary elements to unit length after each learning step"`
	FastMode      bool        `def:"false" desc:"skip the correlation matrix statistics, which are relatively expensive"`
	CenterCorr    bool        `def:"true" desc:"subtract the mean activity of each unit before computing correlations"`
	LCA           lca.Params  `view:"inline" desc:"sparse inference parameters"`
	Backend       lca.Backend `desc:"inference engine -- Batched runs a single block of NIter steps without diagnostics"`
	Workers       int         `desc:"number of goroutines for the Batched backend -- <= 0 for one per cpu"`
	ParamFile     string      `desc:"checkpoint file -- ends in .gz for compression -- no periodic checkpoints if empty"`
	SaveEvery     int         `def:"1000" desc:"checkpoint every this many trials, and on the last trial of a run"`
	RateDecay     float64     `desc:"if nonzero, LearnRate and Theta are multiplied by this after every trial"`
	AsyncSave     bool        `desc:"write checkpoints from a snapshot in a separate goroutine"`
	Seed          uint64      `desc:"seed for the random initial dictionary"`
}

func (cf *Config) Defaults() {
	cf.LearnRate = 0
	cf.Theta = 0.022
	cf.BatchSize = 100
	cf.MovingAvgRate = 0.001
	cf.Normalize = true
	cf.FastMode = false
	cf.CenterCorr = true
	cf.LCA.Defaults()
	cf.Backend = lca.CPU
	cf.SaveEvery = 1000
	cf.RateDecay = 0
}

// Update sets derived values
func (cf *Config) Update() {
	if cf.LearnRate == 0 && cf.BatchSize > 0 {
		cf.LearnRate = 1 / float64(cf.BatchSize)
	}
}

// Validate returns a *ConfigError for the first invalid option
func (cf *Config) Validate() error {
	switch {
	case cf.NUnits < 1:
		return &ConfigError{"NUnits", "must be >= 1"}
	case cf.BatchSize < 1:
		return &ConfigError{"BatchSize", "must be >= 1"}
	case cf.LearnRate < 0 || math.IsNaN(cf.LearnRate):
		return &ConfigError{"LearnRate", "must be >= 0"}
	case math.IsNaN(cf.Theta) || math.IsInf(cf.Theta, 0):
		return &ConfigError{"Theta", "must be finite"}
	case cf.MovingAvgRate < 0 || cf.MovingAvgRate > 1 || math.IsNaN(cf.MovingAvgRate):
		return &ConfigError{"MovingAvgRate", "must be within 0..1"}
	case cf.Backend < 0 || cf.Backend >= lca.BackendN:
		return &ConfigError{"Backend", "unknown backend " + cf.Backend.String()}
	case cf.RateDecay < 0 || math.IsNaN(cf.RateDecay):
		return &ConfigError{"RateDecay", "must be >= 0"}
	}
	if err := cf.LCA.Validate(); err != nil {
		return &ConfigError{"LCA", err.Error()}
	}
	return nil
}

// OpenJSON loads config values from a JSON file, leaving options the
// file does not mention unchanged
func (cf *Config) OpenJSON(fname string) error {
	b, err := os.ReadFile(fname)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, cf)
}

// SaveJSON writes the config to a JSON file
func (cf *Config) SaveJSON(fname string) error {
	b, err := json.MarshalIndent(cf, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(fname, b, 0644)
}
