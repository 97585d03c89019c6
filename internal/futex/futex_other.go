// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !linux

package futex

import (
	"sync/atomic"
	"time"

	"code.hybscloud.com/iox"
)

// Wait polls *addr until it differs from val or timeout elapses.
// A zero timeout waits forever.
func Wait(addr *uint32, val uint32, timeout time.Duration) error {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	backoff := iox.Backoff{}
	for atomic.LoadUint32(addr) == val {
		if timeout > 0 && !time.Now().Before(deadline) {
			return ErrTimedOut
		}
		backoff.Wait()
	}
	return nil
}

// Wake is a no-op: pollers observe the changed word on their own.
func Wake(addr *uint32, n int) (int, error) {
	return 0, nil
}
