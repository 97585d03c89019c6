// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fmq

import (
	"errors"

	"code.hybscloud.com/iox"
)

// ErrWouldBlock indicates the operation cannot proceed immediately.
//
// For writes on a Synchronized queue: not enough free space.
// For reads: not enough data has been published yet.
//
// ErrWouldBlock is a control flow signal, not a failure. Nothing was
// consumed or published; the caller may retry later, or use the blocking
// variants of a Synchronized queue.
//
// This is an alias for [iox.ErrWouldBlock] for ecosystem consistency.
var ErrWouldBlock = iox.ErrWouldBlock

// Construction errors.
var (
	// ErrInvalidCapacity is returned for element counts below 1.
	ErrInvalidCapacity = errors.New("fmq: element count must be >= 1")

	// ErrCapacityOverflow is returned when count*quantum does not fit the
	// grantor extent.
	ErrCapacityOverflow = errors.New("fmq: queue size overflows")

	// ErrExternalTooSmall is returned when a borrowed data region is
	// smaller than the ring.
	ErrExternalTooSmall = errors.New("fmq: external data region too small")

	// ErrInvalidDescriptor is returned for a malformed grantor table.
	ErrInvalidDescriptor = errors.New("fmq: invalid descriptor")

	// ErrPayloadSizeMismatch is returned when attaching with an element
	// type whose size differs from the descriptor quantum.
	ErrPayloadSizeMismatch = errors.New("fmq: payload size mismatch")

	// ErrFlavorMismatch is returned when attaching with the wrong flavor.
	ErrFlavorMismatch = errors.New("fmq: flavor mismatch")

	// ErrNotPlainData is returned for element types holding Go pointers.
	ErrNotPlainData = errors.New("fmq: element type is not plain data")
)

// Operation errors.
var (
	// ErrExceedsCapacity is returned for requests larger than the queue.
	ErrExceedsCapacity = errors.New("fmq: request exceeds queue capacity")

	// ErrOverflow reports that the writer lapped this reader. The read
	// pointer has been resynchronized to the write pointer and the
	// current read is void; the next read proceeds normally.
	ErrOverflow = errors.New("fmq: reader overrun by writer")

	// ErrCorrupted reports a read or write pointer that is not a multiple
	// of the quantum. The handle is invalid afterwards.
	ErrCorrupted = errors.New("fmq: queue pointer misaligned")

	// ErrInvalidQueue is returned by every operation on a closed or
	// corrupted handle.
	ErrInvalidQueue = errors.New("fmq: invalid queue")
)

// Blocking and event flag errors.
var (
	// ErrTimedOut is returned when a blocking call or wait times out.
	ErrTimedOut = errors.New("fmq: timed out")

	// ErrNoEventFlag is returned by blocking calls without a notifier on
	// a queue created without an event flag word.
	ErrNoEventFlag = errors.New("fmq: queue has no event flag")

	// ErrInvalidMask is returned for a zero wait or wake mask.
	ErrInvalidMask = errors.New("fmq: invalid event mask")

	// ErrInterrupted is returned by a non-retrying wait that woke without
	// any of the requested bits set.
	ErrInterrupted = errors.New("fmq: spurious wake")
)

// IsWouldBlock reports whether err indicates the operation would block.
// Delegates to [iox.IsWouldBlock] for wrapped error support.
func IsWouldBlock(err error) bool {
	return iox.IsWouldBlock(err)
}

// IsSemantic reports whether err is a control flow signal (not a failure).
// Delegates to [iox.IsSemantic].
func IsSemantic(err error) bool {
	return iox.IsSemantic(err)
}

// IsNonFailure reports whether err represents a non-failure condition.
// Delegates to [iox.IsNonFailure].
func IsNonFailure(err error) bool {
	return iox.IsNonFailure(err)
}
