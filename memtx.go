// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fmq

// MemRegion is a contiguous window of elements in the ring.
type MemRegion[T any] struct {
	offset int // element index of elems[0] in the ring
	elems  []T
}

// Offset returns the element index in the ring where the region starts.
func (r MemRegion[T]) Offset() int { return r.offset }

// Len returns the number of elements in the region.
func (r MemRegion[T]) Len() int { return len(r.elems) }

// Elems returns the region as a slice aliasing the ring.
func (r MemRegion[T]) Elems() []T { return r.elems }

// MemTransaction describes the ring elements of one read or write.
//
// A transaction spans one region, or two when it wraps past the end of the
// ring: Second then starts at element 0. The zero value is the null
// transaction returned by failed BeginRead and BeginWrite calls.
//
// A transaction aliases shared memory and is only meaningful between the
// Begin call that produced it and the matching Commit.
type MemTransaction[T any] struct {
	first  MemRegion[T]
	second MemRegion[T]
}

// First returns the region starting at the current pointer.
func (tx MemTransaction[T]) First() MemRegion[T] { return tx.first }

// Second returns the wrapped region, empty if the transaction does not wrap.
func (tx MemTransaction[T]) Second() MemRegion[T] { return tx.second }

// Len returns the total number of elements in the transaction.
func (tx MemTransaction[T]) Len() int { return tx.first.Len() + tx.second.Len() }

// IsNull reports whether tx is the null transaction.
func (tx MemTransaction[T]) IsNull() bool {
	return tx.first.elems == nil && tx.second.elems == nil
}

// Slot returns the address of logical element idx of the transaction.
func (tx MemTransaction[T]) Slot(idx int) (*T, bool) {
	if idx < 0 || idx >= tx.Len() {
		return nil, false
	}
	if idx < tx.first.Len() {
		return &tx.first.elems[idx], true
	}
	return &tx.second.elems[idx-tx.first.Len()], true
}

// CopyTo copies len(dst) elements starting at logical index start into dst.
// Returns false, copying nothing, if the range exceeds the transaction.
func (tx MemTransaction[T]) CopyTo(dst []T, start int) bool {
	first, second, ok := tx.split(start, len(dst))
	if !ok {
		return false
	}
	n := copy(dst, first)
	copy(dst[n:], second)
	return true
}

// CopyFrom copies src into the transaction starting at logical index start.
// Returns false, copying nothing, if the range exceeds the transaction.
func (tx MemTransaction[T]) CopyFrom(src []T, start int) bool {
	first, second, ok := tx.split(start, len(src))
	if !ok {
		return false
	}
	n := copy(first, src)
	copy(second, src[n:])
	return true
}

// split maps the logical range [start, start+n) onto at most one window of
// each region.
func (tx MemTransaction[T]) split(start, n int) (first, second []T, ok bool) {
	if start < 0 || n < 0 || start > tx.Len() || n > tx.Len()-start {
		return nil, nil, false
	}
	firstLen := tx.first.Len()
	if start >= firstLen {
		start -= firstLen
		return nil, tx.second.elems[start : start+n], true
	}
	inFirst := min(firstLen-start, n)
	return tx.first.elems[start : start+inFirst], tx.second.elems[:n-inFirst], true
}
