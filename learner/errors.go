// Copyright (c) 2022, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package learner

import "fmt"

// ConfigError reports a missing or invalid configuration option
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("learner: config %s: %s", e.Field, e.Msg)
}

// PersistenceError reports a failure to save or load a checkpoint
type PersistenceError struct {
	Op   string
	File string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("learner: %s %s: %v", e.Op, e.File, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
