package rolling

import "github.com/downfa11-org/rollstore/pkg/substrate"

// RollingHandle is the in-memory view of one open logical segment.
// Two handles opened against the same logical name are independent:
// they own no shared mutable state, and a read-only handle's view of
// the sub-segment table can go stale relative to writes made through
// another handle (see refresh below).
type RollingHandle struct {
	segmentName string
	policy      RollingPolicy

	// headerHandle is nil for a legacy (header-less) segment.
	headerHandle substrate.Handle
	headerLength int64

	subSegments []SubSegment

	// activeWriter is the substrate write handle to the tail
	// sub-segment, present only on a writable, non-sealed handle whose
	// tail hasn't been sealed yet.
	activeWriter substrate.Handle

	readOnly bool
	sealed   bool
	deleted  bool
}

// Name returns the logical segment name.
func (h *RollingHandle) Name() string { return h.segmentName }

// IsReadOnly reports whether this handle was opened via OpenRead.
func (h *RollingHandle) IsReadOnly() bool { return h.readOnly }

// IsSealed reports whether the segment has been sealed (through this
// handle or observed via a refresh).
func (h *RollingHandle) IsSealed() bool { return h.sealed }

// IsDeleted reports whether the segment has been deleted through this
// handle. Once true, every operation on the handle must fail.
func (h *RollingHandle) IsDeleted() bool { return h.deleted }

// HasHeader reports whether this is a header-backed (non-legacy)
// segment.
func (h *RollingHandle) HasHeader() bool { return h.headerHandle != nil }

// Policy returns the segment's rolling policy.
func (h *RollingHandle) Policy() RollingPolicy { return h.policy }

// SubSegments returns the ordered, read-only view of the sub-segment
// table. Callers must not mutate the returned slice.
func (h *RollingHandle) SubSegments() []SubSegment { return h.subSegments }

// Length is the logical length of the segment: the last sub-segment's
// LastOffset, or 0 if the segment has no sub-segments yet.
func (h *RollingHandle) Length() int64 {
	if len(h.subSegments) == 0 {
		return 0
	}
	last := h.subSegments[len(h.subSegments)-1]
	return last.LastOffset()
}

// lastSubSegment returns a pointer to the tail entry, or nil if empty.
func (h *RollingHandle) lastSubSegment() *SubSegment {
	if len(h.subSegments) == 0 {
		return nil
	}
	return &h.subSegments[len(h.subSegments)-1]
}

// refresh replaces this handle's observable state with a freshly
// opened view of the same segment, in place, so existing callers
// holding a pointer to this handle see the update. Used by the read
// path (§4.4) when a read-only handle observes writes made through
// another handle.
func (h *RollingHandle) refresh(fresh *RollingHandle) {
	h.headerHandle = fresh.headerHandle
	h.headerLength = fresh.headerLength
	h.subSegments = fresh.subSegments
	h.sealed = fresh.sealed
	h.deleted = fresh.deleted
	// activeWriter and readOnly are intrinsic to this handle's own
	// open mode and are never overwritten by a refresh.
}
