// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fmq

import (
	"errors"
	"sync/atomic"
	"time"
	"unsafe"

	"code.hybscloud.com/spin"

	"code.hybscloud.com/fmq/internal/futex"
)

// waitSpins bounds the spin phase of EventFlag.Wait before it sleeps.
const waitSpins = 64

// Notifier is the wait/wake primitive used by blocking reads and writes.
type Notifier interface {
	// Wait blocks until at least one bit of mask is set, clears the set
	// bits of mask and returns them. A zero timeout waits forever and a
	// negative one checks once without blocking; on expiry Wait returns
	// ErrTimedOut. With retry, spurious wakes are absorbed until the
	// timeout.
	Wait(mask uint32, timeout time.Duration, retry bool) (uint32, error)

	// Wake sets the bits of mask and wakes waiters.
	Wake(mask uint32) error
}

// EventFlag is a Notifier over a 32-bit bitmask word, usually the event
// flag word of a queue in shared memory. Waiters sleep on a futex, so
// handles in different processes can wait for each other.
type EventFlag struct {
	word *atomic.Uint32
}

var _ Notifier = (*EventFlag)(nil)

// NewEventFlag returns an EventFlag over word.
func NewEventFlag(word *atomic.Uint32) *EventFlag {
	return &EventFlag{word: word}
}

// Word returns the underlying bitmask word.
func (ef *EventFlag) Word() *atomic.Uint32 { return ef.word }

func (ef *EventFlag) addr() *uint32 {
	return (*uint32)(unsafe.Pointer(ef.word))
}

// Wake sets the bits of mask. Sleepers are only woken when at least one
// bit was not already set; a set bit cannot have a sleeper waiting on it.
func (ef *EventFlag) Wake(mask uint32) error {
	if mask == 0 {
		return ErrInvalidMask
	}
	old := ef.word.Or(mask)
	if old&mask == mask {
		return nil
	}
	_, err := futex.Wake(ef.addr(), 0)
	return err
}

// Wait clears and returns the bits of mask that are set, blocking until
// at least one of them is. See Notifier.Wait.
func (ef *EventFlag) Wait(mask uint32, timeout time.Duration, retry bool) (uint32, error) {
	if mask == 0 {
		return 0, ErrInvalidMask
	}
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	sw := spin.Wait{}
	for spins := 0; ; spins++ {
		old := ef.word.And(^mask)
		if set := old & mask; set != 0 {
			return set, nil
		}
		if timeout < 0 {
			return 0, ErrTimedOut
		}
		if spins < waitSpins {
			sw.Once()
			continue
		}

		var remaining time.Duration
		if timeout > 0 {
			remaining = time.Until(deadline)
			if remaining <= 0 {
				return 0, ErrTimedOut
			}
		}

		err := futex.Wait(ef.addr(), old&^mask, remaining)
		switch {
		case errors.Is(err, futex.ErrTimedOut):
			if set := ef.word.And(^mask) & mask; set != 0 {
				return set, nil
			}
			return 0, ErrTimedOut
		case err != nil:
			return 0, err
		case !retry:
			if set := ef.word.And(^mask) & mask; set != 0 {
				return set, nil
			}
			return 0, ErrInterrupted
		}
	}
}
