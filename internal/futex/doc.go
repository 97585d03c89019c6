// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package futex provides wait/wake on a 32-bit word that may live in
// memory shared between processes.
//
// On Linux the words are waited on with the shared (non-private) futex
// operations so that waiters in different processes mapping the same
// region see each other's wakes. Other platforms poll the word with
// [code.hybscloud.com/iox.Backoff]; Wake is a no-op there.
package futex

import "errors"

// ErrTimedOut is returned by Wait when the timeout elapses before a wake.
var ErrTimedOut = errors.New("futex: wait timed out")
