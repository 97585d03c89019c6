// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package fmq provides fast message queues over shared memory.
//
// A queue is a ring of fixed-size elements with one writer, shared
// between goroutines or processes through a [Descriptor]. Reads and
// writes are lock-free: each side owns one monotonically growing
// counter and publishes it with a release store.
//
// Two flavors exist:
//
//   - [Synchronized]: one writer, one reader sharing the read pointer.
//     The writer never overwrites unread data. Supports blocking.
//   - [Unsynchronized]: one writer, any number of readers, each with a
//     private read pointer. The writer never waits; lapped readers get
//     [ErrOverflow] and resume from the newest data.
//
// # Quick Start
//
//	q, err := fmq.NewSynchronized[uint64](1024, true)
//	if err != nil {
//	    return err
//	}
//	defer q.Close()
//
//	// Hand the descriptor to the peer, which attaches its own handle
//	peer, err := fmq.BuildSynchronized[uint64](fmq.Attach(q.Descriptor()))
//
// Builder API for everything else:
//
//	q, err := fmq.BuildUnsynchronized[Sample](fmq.New(4096).Name("samples").Logger(log))
//	q, err := fmq.BuildSynchronized[Frame](fmq.New(64).ExternalData(fd, size))
//
// Element types must be plain data: booleans, numbers and arrays or
// structs of them. Pointers, slices, strings, maps, channels, functions
// and interfaces are rejected with [ErrNotPlainData].
//
// # Zero-Copy Access
//
// BeginWrite and BeginRead return a [MemTransaction] aliasing the ring.
// A transaction wraps at the end of the ring into a second region:
//
//	tx, err := q.BeginWrite(n)
//	if err != nil {
//	    return err
//	}
//	for i := range n {
//	    p, _ := tx.Slot(i)
//	    *p = produce(i)
//	}
//	q.CommitWrite(n)
//
// Write and Read copy through the same path and are atomic: either all
// elements move or none do.
//
// # Blocking
//
// Only [Synchronized] queues block. WriteBlocking and ReadBlocking wait
// on the queue's event flag word (allocated with Builder.EventFlag) using
// [FlagNotFull] and [FlagNotEmpty]. WriteBlockingWith and
// ReadBlockingWith accept any [Notifier] and bit masks:
//
//	err := q.WriteBlocking(batch, 100*time.Millisecond)
//	if errors.Is(err, fmq.ErrTimedOut) {
//	    // Reader is not keeping up
//	}
//
// Waiters sleep on a futex in the shared word, so handles in different
// processes wake each other.
//
// # Error Handling
//
// Non-blocking calls return [ErrWouldBlock] when they cannot proceed. This
// error is sourced from [code.hybscloud.com/iox] for ecosystem consistency.
//
//	backoff := iox.Backoff{}
//	for {
//	    err := q.Read(buf)
//	    if err == nil {
//	        backoff.Reset()
//	        break
//	    }
//	    if errors.Is(err, fmq.ErrOverflow) {
//	        continue // Lapped: resynchronized, data was lost
//	    }
//	    if !fmq.IsWouldBlock(err) {
//	        return err
//	    }
//	    backoff.Wait()
//	}
//
// Misaligned counters are reported as [ErrCorrupted] and invalidate the
// handle; subsequent calls return [ErrInvalidQueue].
//
// # Observability
//
// Handles log through [log/slog] (Builder.Logger) and count overflows,
// corruptions and blocking waits with OpenTelemetry instruments
// (Builder.MeterProvider). The hot path emits neither.
//
// # Race Detection
//
// The race detector cannot observe the happens-before edges established
// through the shared counters, in particular across mappings of the same
// memory. Tests that move data between handles concurrently are skipped
// when [RaceEnabled] is set.
//
// # Dependencies
//
// This package uses [code.hybscloud.com/iox] for semantic errors,
// [code.hybscloud.com/atomix] for atomic primitives with explicit
// memory ordering, [code.hybscloud.com/spin] for CPU pause instructions,
// [golang.org/x/sys/unix] for shared memory and futexes, and
// [go.opentelemetry.io/otel] for metrics.
package fmq
