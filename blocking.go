// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fmq

import (
	"errors"
	"time"
)

// Event flag bits used by WriteBlocking and ReadBlocking.
const (
	FlagNotEmpty uint32 = 1 << 0 // set by writers after a commit
	FlagNotFull  uint32 = 1 << 1 // set by readers after a commit
)

// WriteBlocking writes data, waiting up to timeout for space. A zero
// timeout waits forever. A negative timeout tries once and returns
// ErrTimedOut without waiting.
//
// Readers are woken through FlagNotEmpty of the queue's event flag, and
// the writer waits on FlagNotFull. The queue must have been created with
// an event flag. Peers must use the same bits; use WriteBlockingWith for
// custom bits or a custom Notifier.
func (q *Synchronized[T]) WriteBlocking(data []T, timeout time.Duration) error {
	return q.WriteBlockingWith(data, FlagNotFull, FlagNotEmpty, timeout, nil)
}

// ReadBlocking fills dst, waiting up to timeout for data. Timeouts are
// as for WriteBlocking, as are the bits used.
func (q *Synchronized[T]) ReadBlocking(dst []T, timeout time.Duration) error {
	return q.ReadBlockingWith(dst, FlagNotEmpty, FlagNotFull, timeout, nil)
}

// WriteBlockingWith writes data, waiting on readyMask of n up to timeout
// for space. After a successful write it wakes wakeMask.
//
// If n is nil the queue's own event flag is used; ErrNoEventFlag is
// returned when there is none. Writing zero elements succeeds without
// touching the notifier. Returns ErrExceedsCapacity immediately if data
// can never fit, and ErrTimedOut if space did not become available in
// time. A negative timeout tries once and never calls n.Wait.
func (q *Synchronized[T]) WriteBlockingWith(data []T, readyMask, wakeMask uint32, timeout time.Duration, n Notifier) error {
	return q.blocking("write_blocking", len(data), readyMask, wakeMask, timeout, n, func() error {
		return q.Write(data)
	})
}

// ReadBlockingWith fills dst, waiting on readyMask of n up to timeout for
// data. After a successful read it wakes wakeMask. See WriteBlockingWith.
func (q *Synchronized[T]) ReadBlockingWith(dst []T, readyMask, wakeMask uint32, timeout time.Duration, n Notifier) error {
	return q.blocking("read_blocking", len(dst), readyMask, wakeMask, timeout, n, func() error {
		return q.Read(dst)
	})
}

// blocking retries try until it stops reporting ErrWouldBlock, sleeping
// on readyMask in between. The queue state is rechecked after every wake.
func (q *Synchronized[T]) blocking(op string, count int, readyMask, wakeMask uint32, timeout time.Duration, n Notifier, try func() error) error {
	if count == 0 {
		return nil
	}
	if err := q.check(); err != nil {
		return err
	}
	if err := q.checkCount(count); err != nil {
		return err
	}
	if readyMask == 0 {
		return ErrInvalidMask
	}
	if n == nil {
		if q.evFlag == nil {
			return ErrNoEventFlag
		}
		n = q.evFlag
	}

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	for {
		err := q.attempt(op, wakeMask, n, try)
		if !errors.Is(err, ErrWouldBlock) {
			return err
		}

		var remaining time.Duration
		switch {
		case timeout < 0:
			q.tel.blockingTimeout(op)
			return ErrTimedOut
		case timeout > 0:
			remaining = time.Until(deadline)
			if remaining <= 0 {
				q.tel.blockingTimeout(op)
				return ErrTimedOut
			}
		}
		q.tel.blockingWait()
		if _, err := n.Wait(readyMask, remaining, true); err != nil {
			if !errors.Is(err, ErrTimedOut) {
				q.tel.notifierFailed(op, err)
				return err
			}
			// The peer may have committed without reaching our bits.
			if err := q.attempt(op, wakeMask, n, try); !errors.Is(err, ErrWouldBlock) {
				return err
			}
			q.tel.blockingTimeout(op)
			return ErrTimedOut
		}
	}
}

// attempt runs one non-blocking try and wakes wakeMask on success.
func (q *Synchronized[T]) attempt(op string, wakeMask uint32, n Notifier, try func() error) error {
	if err := try(); err != nil {
		return err
	}
	if wakeMask != 0 {
		if err := n.Wake(wakeMask); err != nil {
			q.tel.notifierFailed(op, err)
		}
	}
	return nil
}
