// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build race

package fmq

// RaceEnabled is true when the race detector is active.
// Used by tests to skip concurrent tests over shared memory, where the
// detector cannot see the ordering established through the counters.
const RaceEnabled = true
