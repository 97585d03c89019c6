// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fmq_test

import (
	"fmt"
	"testing"
	"time"

	"code.hybscloud.com/spin"

	"code.hybscloud.com/fmq"
)

// =============================================================================
// Single-Goroutine Baselines
// =============================================================================

func BenchmarkSynchronized_SingleOp(b *testing.B) {
	q, _ := fmq.NewSynchronized[uint64](1024, false)
	defer q.Close()
	in := []uint64{1}
	out := make([]uint64, 1)

	b.ResetTimer()
	for range b.N {
		q.Write(in)
		q.Read(out)
	}
}

func BenchmarkUnsynchronized_SingleOp(b *testing.B) {
	q, _ := fmq.NewUnsynchronized[uint64](1024)
	defer q.Close()
	in := []uint64{1}
	out := make([]uint64, 1)

	b.ResetTimer()
	for range b.N {
		q.Write(in)
		q.Read(out)
	}
}

func BenchmarkSynchronized_Batch(b *testing.B) {
	for _, n := range []int{8, 64, 512} {
		b.Run(fmt.Sprintf("n=%d", n), func(b *testing.B) {
			q, _ := fmq.NewSynchronized[uint64](1024, false)
			defer q.Close()
			in := make([]uint64, n)
			out := make([]uint64, n)

			b.SetBytes(int64(n * 8))
			b.ResetTimer()
			for range b.N {
				q.Write(in)
				q.Read(out)
			}
		})
	}
}

func BenchmarkSynchronized_ZeroCopy(b *testing.B) {
	q, _ := fmq.NewSynchronized[uint64](1024, false)
	defer q.Close()

	b.ResetTimer()
	for i := range b.N {
		tx, _ := q.BeginWrite(1)
		p, _ := tx.Slot(0)
		*p = uint64(i)
		q.CommitWrite(1)

		rx, _ := q.BeginRead(1)
		p, _ = rx.Slot(0)
		_ = *p
		q.CommitRead(1)
	}
}

// =============================================================================
// Writer/Reader Pairs
// =============================================================================

func BenchmarkSynchronized_Pair(b *testing.B) {
	if fmq.RaceEnabled {
		b.Skip("skip: concurrent access through shared memory")
	}
	w, _ := fmq.NewSynchronized[uint64](1024, false)
	defer w.Close()
	r, _ := fmq.BuildSynchronized[uint64](fmq.Attach(w.Descriptor()))
	defer r.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		out := make([]uint64, 1)
		sw := spin.Wait{}
		for range b.N {
			for r.Read(out) != nil {
				sw.Once()
			}
		}
	}()

	in := []uint64{1}
	sw := spin.Wait{}
	b.ResetTimer()
	for range b.N {
		for w.Write(in) != nil {
			sw.Once()
		}
	}
	<-done
}

func BenchmarkSynchronized_Blocking(b *testing.B) {
	if fmq.RaceEnabled {
		b.Skip("skip: concurrent access through shared memory")
	}
	w, _ := fmq.NewSynchronized[uint64](1024, true)
	defer w.Close()
	r, _ := fmq.BuildSynchronized[uint64](fmq.Attach(w.Descriptor()))
	defer r.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		out := make([]uint64, 1)
		for range b.N {
			if err := r.ReadBlocking(out, 10*time.Second); err != nil {
				b.Error(err)
				return
			}
		}
	}()

	in := []uint64{1}
	b.ResetTimer()
	for range b.N {
		if err := w.WriteBlocking(in, 10*time.Second); err != nil {
			b.Fatal(err)
		}
	}
	<-done
}
