// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fmq_test

import (
	"errors"
	"slices"
	"testing"
	"unsafe"

	"code.hybscloud.com/fmq"
	"code.hybscloud.com/fmq/internal/shmem"
)

// =============================================================================
// Layout
// =============================================================================

func TestGrantorSize(t *testing.T) {
	if got := unsafe.Sizeof(fmq.Grantor{}); got != 16 {
		t.Fatalf("Sizeof(Grantor): got %d, want 16", got)
	}
}

func TestDescriptorLayout(t *testing.T) {
	tests := []struct {
		name      string
		count     int
		eventFlag bool
		grantors  int
	}{
		{"no event flag", 10, false, 3},
		{"event flag", 10, true, 4},
		{"odd ring size", 3, true, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := newSync[[3]byte](t, tt.count, tt.eventFlag)
			d := q.Descriptor()

			if d.Quantum() != 3 {
				t.Fatalf("Quantum: got %d, want 3", d.Quantum())
			}
			if d.Size() != uint64(tt.count*3) {
				t.Fatalf("Size: got %d, want %d", d.Size(), tt.count*3)
			}
			if d.Flavor() != fmq.FlavorSynchronized {
				t.Fatalf("Flavor: got %v", d.Flavor())
			}
			if d.HasEventFlag() != tt.eventFlag {
				t.Fatalf("HasEventFlag: got %v, want %v", d.HasEventFlag(), tt.eventFlag)
			}
			if (q.EventFlagWord() != nil) != tt.eventFlag {
				t.Fatalf("EventFlagWord: got %v, want present=%v", q.EventFlagWord(), tt.eventFlag)
			}

			gs := d.Grantors()
			if len(gs) != tt.grantors {
				t.Fatalf("Grantors: got %d, want %d", len(gs), tt.grantors)
			}
			end := uint32(0)
			for i, g := range gs {
				if g.Offset%8 != 0 {
					t.Fatalf("grantor %d: offset %d not word aligned", i, g.Offset)
				}
				if g.Offset < end {
					t.Fatalf("grantor %d: offset %d overlaps previous end %d", i, g.Offset, end)
				}
				end = g.Offset + g.Extent
			}
			if gs[fmq.GrantorData].Extent != uint32(d.Size()) {
				t.Fatalf("data extent: got %d, want %d", gs[fmq.GrantorData].Extent, d.Size())
			}
		})
	}
}

func TestDescriptorCopies(t *testing.T) {
	q := newSync[uint32](t, 4, false)
	d := q.Descriptor()

	gs := d.Grantors()
	gs[0].Offset = 3
	if d.Grantors()[0].Offset == 3 {
		t.Fatalf("Grantors: mutation leaked into descriptor")
	}
	h := d.Handle()
	h[0] = -1
	if d.Handle()[0] == -1 {
		t.Fatalf("Handle: mutation leaked into descriptor")
	}
}

// =============================================================================
// Attach
// =============================================================================

func TestAttachSharesCounters(t *testing.T) {
	w := newSync[uint32](t, 8, false)
	r, err := fmq.BuildSynchronized[uint32](fmq.Attach(w.Descriptor()))
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	defer r.Close()

	if err := w.Write([]uint32{10, 20, 30}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if r.AvailableToRead() != 3 {
		t.Fatalf("peer AvailableToRead: got %d, want 3", r.AvailableToRead())
	}
	buf := make([]uint32, 3)
	if err := r.Read(buf); err != nil {
		t.Fatalf("peer Read: %v", err)
	}
	if !slices.Equal(buf, []uint32{10, 20, 30}) {
		t.Fatalf("peer Read: got %v", buf)
	}
	if w.AvailableToWrite() != 8 {
		t.Fatalf("writer AvailableToWrite after peer read: got %d, want 8", w.AvailableToWrite())
	}
}

func TestAttachKeepsPointers(t *testing.T) {
	w := newSync[uint32](t, 8, false)
	if err := w.Write([]uint32{1, 2}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	r, err := fmq.BuildSynchronized[uint32](fmq.Attach(w.Descriptor()))
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	defer r.Close()
	if r.AvailableToRead() != 2 {
		t.Fatalf("Attach: AvailableToRead got %d, want 2", r.AvailableToRead())
	}

	reset, err := fmq.BuildSynchronized[uint32](fmq.Attach(w.Descriptor()).ResetPointers())
	if err != nil {
		t.Fatalf("Attach with ResetPointers: %v", err)
	}
	defer reset.Close()
	if w.AvailableToRead() != 0 {
		t.Fatalf("ResetPointers: AvailableToRead got %d, want 0", w.AvailableToRead())
	}
}

func TestAttachRebuiltDescriptor(t *testing.T) {
	w := newSync[uint64](t, 4, true)
	d := w.Descriptor()
	rebuilt := fmq.NewDescriptor(d.Grantors(), d.Handle(), d.Quantum(), d.Size(), d.Flavor())

	r, err := fmq.BuildSynchronized[uint64](fmq.Attach(rebuilt))
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	defer r.Close()
	if r.EventFlagWord() == nil {
		t.Fatalf("EventFlagWord: got nil on attached queue with event flag")
	}

	if err := w.Write([]uint64{42}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	buf := []uint64{0}
	if err := r.Read(buf); err != nil || buf[0] != 42 {
		t.Fatalf("Read: got %v %v, want 42 nil", buf[0], err)
	}
}

func TestAttachedDescriptorOutlivesCreator(t *testing.T) {
	a, err := fmq.NewSynchronized[uint32](4, false)
	if err != nil {
		t.Fatalf("NewSynchronized: %v", err)
	}
	peer, err := fmq.BuildSynchronized[uint32](fmq.Attach(a.Descriptor()))
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	defer peer.Close()
	if err := peer.Write([]uint32{42}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close creator: %v", err)
	}

	// An unrelated queue may now get the handle numbers the creator freed
	other := newSync[uint32](t, 4, false)
	if err := other.Write([]uint32{7, 7, 7}); err != nil {
		t.Fatalf("Write other: %v", err)
	}
	for _, ph := range peer.Descriptor().Handle() {
		for _, oh := range other.Descriptor().Handle() {
			if ph == oh {
				t.Fatalf("peer and unrelated queue share handle %d", ph)
			}
		}
	}

	third, err := fmq.BuildSynchronized[uint32](fmq.Attach(peer.Descriptor()))
	if err != nil {
		t.Fatalf("Attach through peer: %v", err)
	}
	defer third.Close()
	if peer.AvailableToRead() != 1 || third.AvailableToRead() != 1 {
		t.Fatalf("AvailableToRead: peer %d third %d, want 1 1", peer.AvailableToRead(), third.AvailableToRead())
	}
	buf := []uint32{0}
	if err := third.Read(buf); err != nil || buf[0] != 42 {
		t.Fatalf("Read through peer descriptor: got %d %v, want 42 nil", buf[0], err)
	}
}

func TestAttachDuplicatesHandles(t *testing.T) {
	w := newSync[uint32](t, 4, false)
	r, err := fmq.BuildSynchronized[uint32](fmq.Attach(w.Descriptor()))
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	wh, rh := w.Descriptor().Handle(), r.Descriptor().Handle()
	if len(wh) != len(rh) {
		t.Fatalf("Handle: got %d handles, want %d", len(rh), len(wh))
	}
	for i := range wh {
		if wh[i] == rh[i] {
			t.Fatalf("handle %d: attached handle reuses %d", i, wh[i])
		}
	}

	// Closing the attached handle leaves the creator's handles open
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	for _, fd := range wh {
		if _, err := shmem.SizeOf(fd); err != nil {
			t.Fatalf("creator handle %d closed by peer: %v", fd, err)
		}
	}
}

func TestAttachPayloadSizeMismatch(t *testing.T) {
	w := newSync[uint32](t, 4, false)
	if _, err := fmq.BuildSynchronized[uint64](fmq.Attach(w.Descriptor())); !errors.Is(err, fmq.ErrPayloadSizeMismatch) {
		t.Fatalf("Attach uint64 to uint32 queue: got %v, want ErrPayloadSizeMismatch", err)
	}
}

func TestAttachFlavorMismatch(t *testing.T) {
	w := newSync[uint32](t, 4, false)
	if _, err := fmq.BuildUnsynchronized[uint32](fmq.Attach(w.Descriptor())); !errors.Is(err, fmq.ErrFlavorMismatch) {
		t.Fatalf("Attach Unsynchronized to Synchronized: got %v, want ErrFlavorMismatch", err)
	}
}

func TestAttachInvalidDescriptor(t *testing.T) {
	w := newSync[uint32](t, 4, false)
	d := w.Descriptor()

	tests := []struct {
		name   string
		mutate func(gs []fmq.Grantor, handle []int) ([]fmq.Grantor, []int, uint64)
	}{
		{"too few grantors", func(gs []fmq.Grantor, h []int) ([]fmq.Grantor, []int, uint64) {
			return gs[:2], h, d.Size()
		}},
		{"misaligned offset", func(gs []fmq.Grantor, h []int) ([]fmq.Grantor, []int, uint64) {
			gs[fmq.GrantorWrite].Offset += 4
			return gs, h, d.Size()
		}},
		{"region out of range", func(gs []fmq.Grantor, h []int) ([]fmq.Grantor, []int, uint64) {
			gs[fmq.GrantorData].RegionIndex = 5
			return gs, h, d.Size()
		}},
		{"size not multiple of quantum", func(gs []fmq.Grantor, h []int) ([]fmq.Grantor, []int, uint64) {
			return gs, h, d.Size() - 1
		}},
		{"data extent too small", func(gs []fmq.Grantor, h []int) ([]fmq.Grantor, []int, uint64) {
			gs[fmq.GrantorData].Extent = 4
			return gs, h, d.Size()
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gs, h, size := tt.mutate(d.Grantors(), d.Handle())
			bad := fmq.NewDescriptor(gs, h, d.Quantum(), size, d.Flavor())
			if _, err := fmq.BuildSynchronized[uint32](fmq.Attach(bad)); !errors.Is(err, fmq.ErrInvalidDescriptor) {
				t.Fatalf("got %v, want ErrInvalidDescriptor", err)
			}
		})
	}
}

// =============================================================================
// External Data
// =============================================================================

func TestExternalData(t *testing.T) {
	ext, err := shmem.Create("ext", 4096)
	if err != nil {
		t.Fatalf("shmem.Create: %v", err)
	}
	defer ext.Close()

	q, err := fmq.BuildSynchronized[uint32](fmq.New(16).ExternalData(ext.FD(), ext.Size()))
	if err != nil {
		t.Fatalf("Build with ExternalData: %v", err)
	}

	g := q.Descriptor().Grantors()[fmq.GrantorData]
	if g.RegionIndex != 1 || g.Offset != 0 {
		t.Fatalf("data grantor: got region %d offset %d, want 1 0", g.RegionIndex, g.Offset)
	}
	if h := q.Descriptor().Handle()[1]; h == ext.FD() {
		t.Fatalf("external handle %d stored without duplication", h)
	}
	if err := q.Write([]uint32{7, 8, 9}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	// The ring is visible through the external handle
	m, err := shmem.Map(ext.FD(), 0, 12)
	if err != nil {
		t.Fatalf("shmem.Map: %v", err)
	}
	defer m.Unmap()
	words := unsafe.Slice((*uint32)(unsafe.Pointer(&m.Bytes()[0])), 3)
	if !slices.Equal(words, []uint32{7, 8, 9}) {
		t.Fatalf("external bytes: got %v, want [7 8 9]", words)
	}

	// Closing the queue leaves the borrowed handle open
	if err := q.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := shmem.SizeOf(ext.FD()); err != nil {
		t.Fatalf("external handle closed by queue: %v", err)
	}
}

func TestExternalDataTooSmall(t *testing.T) {
	ext, err := shmem.Create("ext", 4096)
	if err != nil {
		t.Fatalf("shmem.Create: %v", err)
	}
	defer ext.Close()

	if _, err := fmq.BuildSynchronized[uint32](fmq.New(16).ExternalData(ext.FD(), 32)); !errors.Is(err, fmq.ErrExternalTooSmall) {
		t.Fatalf("declared size 32: got %v, want ErrExternalTooSmall", err)
	}
	big := ext.Size()/4 + 1
	if _, err := fmq.BuildSynchronized[uint32](fmq.New(int(big)).ExternalData(ext.FD(), 1<<30)); !errors.Is(err, fmq.ErrExternalTooSmall) {
		t.Fatalf("overstated size: got %v, want ErrExternalTooSmall", err)
	}
}

// =============================================================================
// Corruption
// =============================================================================

func TestCorruptedWritePointer(t *testing.T) {
	q := newSync[uint32](t, 4, false)
	d := q.Descriptor()
	g := d.Grantors()[fmq.GrantorWrite]

	m, err := shmem.Map(d.Handle()[g.RegionIndex], uint64(g.Offset), uint64(g.Extent))
	if err != nil {
		t.Fatalf("shmem.Map: %v", err)
	}
	defer m.Unmap()
	*(*uint64)(unsafe.Pointer(&m.Bytes()[0])) = 3

	if _, err := q.BeginWrite(1); !errors.Is(err, fmq.ErrCorrupted) {
		t.Fatalf("BeginWrite: got %v, want ErrCorrupted", err)
	}
	if q.IsValid() {
		t.Fatalf("IsValid: got true after corruption")
	}
	if err := q.Write([]uint32{1}); !errors.Is(err, fmq.ErrInvalidQueue) {
		t.Fatalf("Write after corruption: got %v, want ErrInvalidQueue", err)
	}
}
