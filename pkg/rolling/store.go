// Package rolling implements Rolling Storage: a logical, append-only
// segment backed by an ordered chain of fixed-size sub-segments and a
// durable header, built atop a substrate.Substrate. Segment rotation,
// offset bookkeeping and retention follow the same shape as a
// segment-per-offset-range log store, generalized from "one file per
// partition with a companion index file" to "a header-described chain
// of sub-segments with native and header-merge concatenation."
package rolling

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/downfa11-org/rollstore/pkg/metrics"
	"github.com/downfa11-org/rollstore/pkg/rolling/codec"
	"github.com/downfa11-org/rollstore/pkg/substrate"
	"github.com/downfa11-org/rollstore/util"
)

// SegmentInfo is the result of Info/Create: a logical segment's name,
// sealed state and current length.
type SegmentInfo struct {
	Name   string
	Sealed bool
	Length int64
}

// RollingStore implements create/open/read/write/seal/concat/delete/
// truncate over a Substrate. All operations are synchronous; callers
// must serialize writes against any one writable handle themselves
// (see the design's concurrency notes).
type RollingStore struct {
	sub           substrate.Substrate
	defaultPolicy RollingPolicy
}

// NewStore creates a RollingStore over sub, applying defaultPolicy to
// segments created via CreateDefault.
func NewStore(sub substrate.Substrate, defaultPolicy RollingPolicy) *RollingStore {
	return &RollingStore{sub: sub, defaultPolicy: defaultPolicy}
}

// SupportsTruncation always returns true for this core.
func (s *RollingStore) SupportsTruncation() bool { return true }

// Create creates a fresh logical segment with the given rolling policy.
func (s *RollingStore) Create(name string, policy RollingPolicy) (SegmentInfo, error) {
	if exists, err := s.sub.Exists(name); err != nil {
		return SegmentInfo{}, wrapIO("create", name, err)
	} else if exists {
		if err := s.ensureEmptyUnsealed(name); err != nil {
			return SegmentInfo{}, err
		}
	}

	hName := headerName(name)
	if err := s.sub.Create(hName); err != nil {
		if !errors.Is(err, substrate.ErrAlreadyExists) {
			return SegmentInfo{}, err
		}
		if err := s.ensureEmptyUnsealed(hName); err != nil {
			return SegmentInfo{}, err
		}
		util.Debug("rolling: empty header remnant for %q reused on create", name)
	}

	headerHandle, err := s.sub.OpenWrite(hName)
	if err != nil {
		return SegmentInfo{}, err
	}

	data := codec.EncodeHeader(policy.MaxSubSegmentLength)
	if err := s.sub.Write(headerHandle, 0, data); err != nil {
		if delErr := s.sub.Delete(headerHandle); delErr != nil {
			util.Warn("rolling: rollback delete of header %q failed: %v", hName, delErr)
		}
		return SegmentInfo{}, err
	}

	return SegmentInfo{Name: name}, nil
}

// CreateDefault creates name with the store's default rolling policy.
func (s *RollingStore) CreateDefault(name string) (SegmentInfo, error) {
	return s.Create(name, s.defaultPolicy)
}

func (s *RollingStore) ensureEmptyUnsealed(name string) error {
	info, err := s.sub.Stat(name)
	if err != nil {
		if errors.Is(err, substrate.ErrNotExists) {
			return nil
		}
		return wrapIO("stat", name, err)
	}
	if info.Length > 0 || info.Sealed {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, name)
	}
	return nil
}

// OpenRead opens name for reading.
func (s *RollingStore) OpenRead(name string) (*RollingHandle, error) {
	return s.openHandle(name, true)
}

// OpenWrite opens name for writing, additionally opening the tail
// sub-segment for writing unless it is sealed.
func (s *RollingStore) OpenWrite(name string) (*RollingHandle, error) {
	return s.openHandle(name, false)
}

func (s *RollingStore) openHandle(name string, readOnly bool) (*RollingHandle, error) {
	hName := headerName(name)
	headerInfo, statErr := s.sub.Stat(hName)

	var handle *RollingHandle
	switch {
	case statErr == nil && headerInfo.Length > 0:
		var hh substrate.Handle
		var err error
		if readOnly {
			hh, err = s.sub.OpenRead(hName)
		} else {
			hh, err = s.sub.OpenWrite(hName)
		}
		if err != nil {
			return nil, err
		}
		handle, err = s.parseHeader(name, hh, headerInfo, readOnly)
		if err != nil {
			return nil, err
		}

	case statErr == nil || errors.Is(statErr, substrate.ErrNotExists):
		// Either the header exists but is empty (a crash remnant,
		// treated as nonexistent) or there is no header at all: try
		// the legacy path.
		var sh substrate.Handle
		var err error
		if readOnly {
			sh, err = s.sub.OpenRead(name)
		} else {
			sh, err = s.sub.OpenWrite(name)
		}
		if err != nil {
			return nil, err
		}
		_ = sh
		handle = &RollingHandle{
			segmentName: name,
			policy:      NoRolling(),
			subSegments: []SubSegment{{Name: name, StartOffset: 0, Exists: true}},
			readOnly:    readOnly,
		}

	default:
		return nil, wrapIO("stat", hName, statErr)
	}

	if err := s.fixupTail(handle); err != nil {
		return nil, err
	}
	if !readOnly {
		if err := s.openActiveWriter(handle); err != nil {
			return nil, err
		}
	}
	return handle, nil
}

func (s *RollingStore) parseHeader(name string, headerHandle substrate.Handle, info substrate.BlobInfo, readOnly bool) (*RollingHandle, error) {
	start := time.Now()
	defer func() { metrics.HeaderParseLatency.Observe(time.Since(start).Seconds()) }()

	buf := make([]byte, info.Length)
	read := 0
	for read < len(buf) {
		n, err := s.sub.Read(headerHandle, int64(read), buf[read:])
		if err != nil {
			return nil, wrapIO("read header", name, err)
		}
		if n == 0 {
			return nil, fmt.Errorf("%w: header for %s truncated at %d/%d bytes", ErrIOError, name, read, len(buf))
		}
		read += n
	}

	decoded, err := codec.Decode(buf)
	if err != nil {
		return nil, fmt.Errorf("%w: header for %s: %v", ErrIOError, name, err)
	}

	subs := make([]SubSegment, len(decoded.Entries))
	for i, e := range decoded.Entries {
		subs[i] = SubSegment{Name: e.Name, StartOffset: e.StartOffset, Exists: true}
	}

	handle := &RollingHandle{
		segmentName:  name,
		policy:       RollingPolicy{MaxSubSegmentLength: decoded.MaxSubSegmentLength},
		headerHandle: headerHandle,
		headerLength: info.Length,
		subSegments:  subs,
		readOnly:     readOnly,
		sealed:       info.Sealed,
	}
	return handle, nil
}

// fixupTail derives non-tail lengths from consecutive start offsets and
// seals them, then stats the tail to learn its actual length and
// sealed state.
func (s *RollingStore) fixupTail(h *RollingHandle) error {
	for i := 0; i < len(h.subSegments)-1; i++ {
		cur := &h.subSegments[i]
		next := h.subSegments[i+1]
		cur.Length = next.StartOffset - cur.StartOffset
		cur.Sealed = true
	}
	if len(h.subSegments) == 0 {
		return nil
	}

	tail := &h.subSegments[len(h.subSegments)-1]
	info, err := s.sub.Stat(tail.Name)
	if err != nil {
		if errors.Is(err, substrate.ErrNotExists) {
			tail.Exists = false
			return nil
		}
		return wrapIO("stat", tail.Name, err)
	}
	tail.Length = info.Length
	if info.Sealed {
		tail.Sealed = true
		if !h.HasHeader() {
			h.sealed = true
		}
	}
	return nil
}

func (s *RollingStore) openActiveWriter(h *RollingHandle) error {
	tail := h.lastSubSegment()
	if tail == nil || tail.Sealed {
		return nil
	}
	wh, err := s.sub.OpenWrite(tail.Name)
	if err != nil {
		return err
	}
	h.activeWriter = wh
	return nil
}

// Read reads len(buf) bytes starting at offset into buf, returning the
// number of bytes actually copied.
func (s *RollingStore) Read(h *RollingHandle, offset int64, buf []byte) (int, error) {
	if h.IsDeleted() {
		return 0, fmt.Errorf("%w: %s", ErrNotExists, h.Name())
	}
	if offset < 0 {
		return 0, fmt.Errorf("%w: negative offset %d", ErrBadOffset, offset)
	}

	if h.IsReadOnly() && !h.IsSealed() && offset+int64(len(buf)) > h.Length() {
		if err := s.refreshHandle(h); err != nil {
			return 0, err
		}
	}

	length := h.Length()
	if len(buf) == 0 {
		if offset > length {
			return 0, fmt.Errorf("%w: offset %d beyond length %d", ErrBadOffset, offset, length)
		}
		return 0, nil
	}
	if offset >= length {
		return 0, fmt.Errorf("%w: offset %d beyond length %d", ErrBadOffset, offset, length)
	}
	if offset+int64(len(buf)) > length {
		return 0, fmt.Errorf("%w: offset %d + %d beyond length %d", ErrBadOffset, offset, len(buf), length)
	}

	idx := bisect(h.subSegments, offset)
	if idx < 0 {
		return 0, fmt.Errorf("%w: cannot locate sub-segment for offset %d in %s", ErrIOError, offset, h.Name())
	}

	bytesRead := 0
	for bytesRead < len(buf) && idx < len(h.subSegments) {
		cur := &h.subSegments[idx]
		if !cur.Exists {
			return bytesRead, s.truncatedOrRefresh(h)
		}
		if cur.Length == 0 {
			// An empty non-tail sub-segment should have been deleted
			// by truncation already; skip it rather than spin on it.
			idx++
			continue
		}

		readOffset := offset + int64(bytesRead) - cur.StartOffset
		readLen := int(minInt64(int64(len(buf)-bytesRead), cur.Length-readOffset))

		rh, err := s.sub.OpenRead(cur.Name)
		if err != nil {
			if errors.Is(err, substrate.ErrNotExists) {
				cur.Exists = false
				return bytesRead, s.truncatedOrRefresh(h)
			}
			return bytesRead, err
		}
		n, err := s.sub.Read(rh, readOffset, buf[bytesRead:bytesRead+readLen])
		if err != nil {
			if errors.Is(err, substrate.ErrNotExists) {
				cur.Exists = false
				return bytesRead, s.truncatedOrRefresh(h)
			}
			return bytesRead, err
		}
		bytesRead += n
		if readOffset+int64(n) >= cur.Length {
			idx++
		}
		if n == 0 {
			break
		}
	}
	return bytesRead, nil
}

func bisect(subs []SubSegment, offset int64) int {
	idx := sort.Search(len(subs), func(i int) bool { return subs[i].StartOffset > offset })
	idx--
	if idx < 0 || idx >= len(subs) {
		return -1
	}
	return idx
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func (s *RollingStore) refreshHandle(h *RollingHandle) error {
	fresh, err := s.openHandle(h.Name(), true)
	if err != nil {
		return err
	}
	h.refresh(fresh)
	metrics.RecordHandleRefresh()
	util.Debug("rolling: refreshed handle for %q", h.Name())
	return nil
}

func (s *RollingStore) truncatedOrRefresh(h *RollingHandle) error {
	fresh, err := s.openHandle(h.Name(), true)
	if err != nil {
		if errors.Is(err, substrate.ErrNotExists) {
			h.deleted = true
			return fmt.Errorf("%w: %s", ErrNotExists, h.Name())
		}
		return err
	}
	h.refresh(fresh)
	metrics.RecordHandleRefresh()
	if h.IsDeleted() {
		return fmt.Errorf("%w: %s", ErrNotExists, h.Name())
	}
	return fmt.Errorf("%w: %s", ErrTruncated, h.Name())
}

// Write appends data at offset, which must equal the handle's current
// length (strict append only).
func (s *RollingStore) Write(h *RollingHandle, offset int64, data []byte) error {
	if h.IsDeleted() {
		return fmt.Errorf("%w: %s", ErrNotExists, h.Name())
	}
	if h.IsReadOnly() {
		return fmt.Errorf("%w: %s: handle is read-only", ErrIllegalState, h.Name())
	}
	if h.IsSealed() {
		return fmt.Errorf("%w: %s", ErrSealed, h.Name())
	}
	if offset != h.Length() {
		return fmt.Errorf("%w: %s expected %d got %d", ErrBadOffset, h.Name(), h.Length(), offset)
	}
	if len(data) == 0 {
		return nil
	}

	written := 0
	for written < len(data) {
		tail := h.lastSubSegment()
		if tail == nil || tail.Length >= h.policy.MaxSubSegmentLength {
			if err := s.rollover(h); err != nil {
				return err
			}
			tail = h.lastSubSegment()
		}

		writeLen := int(minInt64(int64(len(data)-written), h.policy.MaxSubSegmentLength-tail.Length))
		subOffset := offset + int64(written) - tail.StartOffset

		if err := s.sub.Write(h.activeWriter, subOffset, data[written:written+writeLen]); err != nil {
			return err
		}
		tail.Length += int64(writeLen)
		written += writeLen
	}
	return nil
}

func (s *RollingStore) rollover(h *RollingHandle) error {
	if !h.HasHeader() {
		return fmt.Errorf("%w: cannot roll over %s: no header", ErrIllegalState, h.Name())
	}
	if h.IsReadOnly() {
		return fmt.Errorf("%w: cannot roll over %s using a read-only handle", ErrIllegalState, h.Name())
	}
	if h.IsSealed() {
		return fmt.Errorf("%w: %s", ErrSealed, h.Name())
	}
	if err := s.sealActiveSubSegment(h); err != nil {
		return err
	}
	if err := s.createSubSegment(h); err != nil {
		return err
	}
	metrics.RecordRollover()
	util.Debug("rolling: rolled over %q at offset %d", h.Name(), h.Length())
	return nil
}

func (s *RollingStore) sealActiveSubSegment(h *RollingHandle) error {
	tail := h.lastSubSegment()
	if h.activeWriter == nil || tail == nil || tail.Sealed {
		return nil
	}
	if err := s.sub.Seal(h.activeWriter); err != nil {
		return err
	}
	h.activeWriter = nil
	tail.Sealed = true
	return nil
}

func (s *RollingStore) createSubSegment(h *RollingHandle) error {
	startOffset := h.Length()
	newSub := newSubSegment(h.segmentName, startOffset)

	if err := s.sub.Create(newSub.Name); err != nil {
		if !errors.Is(err, substrate.ErrAlreadyExists) {
			return err
		}
		if err := s.ensureEmptyUnsealed(newSub.Name); err != nil {
			return err
		}
	}

	if err := s.appendHeaderEntry(h, codec.EncodeNewSubSegment(newSub.StartOffset, newSub.Name)); err != nil {
		return err
	}

	wh, err := s.sub.OpenWrite(newSub.Name)
	if err != nil {
		return err
	}
	h.subSegments = append(h.subSegments, newSub)
	h.activeWriter = wh
	return nil
}

func (s *RollingStore) appendHeaderEntry(h *RollingHandle, data []byte) error {
	if err := s.sub.Write(h.headerHandle, h.headerLength, data); err != nil {
		if errors.Is(err, substrate.ErrBadOffset) {
			return fmt.Errorf("%w: %s", ErrNotPrimary, h.Name())
		}
		return err
	}
	h.headerLength += int64(len(data))
	return nil
}

// Seal seals the active tail (if any) and the header (if any), marking
// the handle sealed. Subsequent writes fail; reads still succeed.
func (s *RollingStore) Seal(h *RollingHandle) error {
	if h.IsDeleted() {
		return fmt.Errorf("%w: %s", ErrNotExists, h.Name())
	}
	if h.IsReadOnly() {
		return fmt.Errorf("%w: %s: handle is read-only", ErrIllegalState, h.Name())
	}
	if err := s.sealActiveSubSegment(h); err != nil {
		return err
	}
	if h.headerHandle != nil {
		if err := s.sub.Seal(h.headerHandle); err != nil {
			return err
		}
	}
	h.sealed = true
	util.Debug("rolling: sealed %q", h.Name())
	return nil
}

// Concat appends the sealed segment sourceName onto target at
// targetOffset, which must equal target's current length.
func (s *RollingStore) Concat(target *RollingHandle, targetOffset int64, sourceName string) error {
	if target.IsDeleted() {
		return fmt.Errorf("%w: %s", ErrNotExists, target.Name())
	}
	if target.IsReadOnly() {
		return fmt.Errorf("%w: %s: handle is read-only", ErrIllegalState, target.Name())
	}
	if target.IsSealed() {
		return fmt.Errorf("%w: %s", ErrSealed, target.Name())
	}
	if targetOffset != target.Length() {
		return fmt.Errorf("%w: %s expected %d got %d", ErrBadOffset, target.Name(), target.Length(), targetOffset)
	}

	source, err := s.OpenWrite(sourceName)
	if err != nil {
		return err
	}
	if !source.IsSealed() {
		return fmt.Errorf("%w: cannot concat %q into %q: source is not sealed", ErrIllegalState, sourceName, target.Name())
	}
	if source.Length() == 0 {
		util.Debug("rolling: concat source %q is empty, deleting instead", sourceName)
		return s.Delete(source)
	}

	if err := s.refreshSubSegmentExistence(source); err != nil {
		return err
	}
	for _, sub := range source.subSegments {
		if !sub.Exists {
			return fmt.Errorf("%w: cannot use %q as concat source: truncated", ErrIllegalState, sourceName)
		}
	}

	if s.shouldConcatNatively(source, target) {
		util.Debug("rolling: concat %q into %q via native path", sourceName, target.Name())
		metrics.RecordConcat("native")
		return s.concatNative(target, source)
	}
	util.Debug("rolling: concat %q into %q via header-merge path", sourceName, target.Name())
	metrics.RecordConcat("header_merge")
	return s.concatHeaderMerge(target, source)
}

func (s *RollingStore) refreshSubSegmentExistence(h *RollingHandle) error {
	for i := range h.subSegments {
		sub := &h.subSegments[i]
		if !sub.Exists {
			continue
		}
		exists, err := s.sub.Exists(sub.Name)
		if err != nil {
			return fmt.Errorf("%w: checking existence of %s: %v", ErrIOError, sub.Name, err)
		}
		if !exists {
			sub.Exists = false
		}
	}
	return nil
}

func (s *RollingStore) shouldConcatNatively(source, target *RollingHandle) bool {
	lastSource := source.lastSubSegment()
	if lastSource == nil || len(source.subSegments) != 1 || lastSource.StartOffset != 0 {
		return false
	}
	// A header-less source has no header blob to merge into the
	// target's header, so header-merge is not an option regardless of
	// size or seal state: native is the only path.
	if !source.HasHeader() {
		return true
	}
	lastTarget := target.lastSubSegment()
	if lastTarget == nil || lastTarget.Sealed {
		return lastSource.Length <= target.policy.MaxSubSegmentLength
	}
	return lastTarget.Length+lastSource.Length <= target.policy.MaxSubSegmentLength
}

func (s *RollingStore) concatNative(target, source *RollingHandle) error {
	tail := target.lastSubSegment()
	if tail == nil || tail.Sealed {
		if err := s.rollover(target); err != nil {
			return err
		}
		tail = target.lastSubSegment()
	}

	lastSource := source.lastSubSegment()
	if err := s.sub.Concat(target.activeWriter, tail.Length, lastSource.Name); err != nil {
		return err
	}
	tail.Length += lastSource.Length

	if source.headerHandle != nil {
		if err := s.sub.Delete(source.headerHandle); err != nil && !errors.Is(err, substrate.ErrNotExists) {
			util.Warn("rolling: best-effort delete of concat source header %q failed: %v", source.Name(), err)
		}
	}
	return nil
}

func (s *RollingStore) concatHeaderMerge(target, source *RollingHandle) error {
	if !target.HasHeader() {
		if err := s.createHeaderFor(target); err != nil {
			return err
		}
	}

	base := target.Length()
	rebased := rebaseChain(source.subSegments, base)

	if err := s.sealActiveSubSegment(target); err != nil {
		return err
	}

	if err := s.appendHeaderEntry(target, codec.EncodeConcatBegin(len(source.subSegments), base)); err != nil {
		return err
	}

	sourceHeaderLen := source.headerLength
	if err := s.sub.Concat(target.headerHandle, target.headerLength, source.headerHandle.Name()); err != nil {
		return err
	}
	target.headerLength += sourceHeaderLen
	target.subSegments = append(target.subSegments, rebased...)
	return nil
}

func rebaseChain(subs []SubSegment, newStart int64) []SubSegment {
	out := make([]SubSegment, len(subs))
	offset := newStart
	for i, sub := range subs {
		out[i] = sub.Rebase(offset)
		offset += sub.Length
	}
	return out
}

func (s *RollingStore) createHeaderFor(h *RollingHandle) error {
	hName := headerName(h.segmentName)
	if err := s.sub.Create(hName); err != nil {
		return err
	}
	hh, err := s.sub.OpenWrite(hName)
	if err != nil {
		return err
	}

	buf := codec.EncodeHeader(h.policy.MaxSubSegmentLength)
	for _, sub := range h.subSegments {
		buf = append(buf, codec.EncodeNewSubSegment(sub.StartOffset, sub.Name)...)
	}
	if err := s.sub.Write(hh, 0, buf); err != nil {
		return err
	}

	h.headerHandle = hh
	h.headerLength = int64(len(buf))
	return nil
}

// Delete deletes a segment. For header-less (legacy) segments this
// deletes the single blob, idempotently on NotExists. For header-backed
// segments it seals the segment first (escalating to a writable handle
// if necessary), deletes every sub-segment that still exists, and
// finally deletes the header. The handle is marked deleted even on
// partial failure.
func (s *RollingStore) Delete(h *RollingHandle) error {
	if !h.HasHeader() {
		return s.deleteLegacy(h)
	}

	if !h.IsSealed() {
		if h.IsReadOnly() {
			writable, err := s.OpenWrite(h.Name())
			if err != nil {
				return err
			}
			if err := s.Seal(writable); err != nil {
				return err
			}
			h.refresh(writable)
		} else if err := s.Seal(h); err != nil {
			return err
		}
	}

	if err := s.deleteSubSegments(h, func(SubSegment) bool { return true }); err != nil {
		h.deleted = true
		return err
	}

	err := s.sub.Delete(h.headerHandle)
	h.deleted = true
	if err != nil {
		if errors.Is(err, substrate.ErrNotExists) {
			return fmt.Errorf("%w: %s", ErrNotExists, h.Name())
		}
		return err
	}
	return nil
}

func (s *RollingStore) deleteLegacy(h *RollingHandle) error {
	tail := h.lastSubSegment()
	wh, err := s.sub.OpenWrite(tail.Name)
	if err != nil {
		h.deleted = true
		if errors.Is(err, substrate.ErrNotExists) {
			tail.Exists = false
			return fmt.Errorf("%w: %s", ErrNotExists, h.Name())
		}
		return err
	}
	err = s.sub.Delete(wh)
	tail.Exists = false
	h.deleted = true
	if err != nil {
		if errors.Is(err, substrate.ErrNotExists) {
			return fmt.Errorf("%w: %s", ErrNotExists, h.Name())
		}
		return err
	}
	return nil
}

func (s *RollingStore) deleteSubSegments(h *RollingHandle, pred func(SubSegment) bool) error {
	for i := range h.subSegments {
		sub := &h.subSegments[i]
		if !sub.Exists || !pred(*sub) {
			continue
		}
		wh, err := s.sub.OpenWrite(sub.Name)
		if err != nil {
			if errors.Is(err, substrate.ErrNotExists) {
				sub.Exists = false
				continue
			}
			return err
		}
		if err := s.sub.Delete(wh); err != nil {
			sub.Exists = false
			if !errors.Is(err, substrate.ErrNotExists) {
				return err
			}
			continue
		}
		sub.Exists = false
	}
	return nil
}

// Truncate deletes every sub-segment lying entirely below
// truncationOffset. A full truncation (truncationOffset at or past the
// current tail) rolls over first so a fresh empty tail pins the
// segment's length. A no-op for legacy (header-less) segments.
func (s *RollingStore) Truncate(h *RollingHandle, truncationOffset int64) error {
	if h.IsDeleted() {
		return fmt.Errorf("%w: %s", ErrNotExists, h.Name())
	}
	if h.IsReadOnly() {
		return fmt.Errorf("%w: %s: handle is read-only", ErrIllegalState, h.Name())
	}
	if !h.HasHeader() {
		return nil
	}
	if truncationOffset < 0 || truncationOffset > h.Length() {
		return fmt.Errorf("%w: truncation offset %d out of range [0,%d]", ErrBadOffset, truncationOffset, h.Length())
	}

	last := h.lastSubSegment()
	if last != nil && canTruncate(*last, truncationOffset) {
		if err := s.rollover(h); err != nil {
			return err
		}
	}

	var reclaimed int64
	err := s.deleteSubSegments(h, func(sub SubSegment) bool {
		if canTruncate(sub, truncationOffset) {
			reclaimed += sub.Length
			return true
		}
		return false
	})
	metrics.RecordTruncate(reclaimed)
	return err
}

func canTruncate(sub SubSegment, truncationOffset int64) bool {
	return sub.StartOffset < truncationOffset && sub.LastOffset() <= truncationOffset
}

// Exists reports whether a logical segment exists.
func (s *RollingStore) Exists(name string) (bool, error) {
	_, err := s.OpenRead(name)
	if err != nil {
		if errors.Is(err, substrate.ErrNotExists) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Info returns a segment's name, sealed state and length.
func (s *RollingStore) Info(name string) (SegmentInfo, error) {
	h, err := s.OpenRead(name)
	if err != nil {
		return SegmentInfo{}, err
	}
	return SegmentInfo{Name: h.Name(), Sealed: h.IsSealed(), Length: h.Length()}, nil
}

func wrapIO(op, name string, err error) error {
	if errors.Is(err, substrate.ErrNotExists) || errors.Is(err, substrate.ErrAlreadyExists) {
		return err
	}
	return fmt.Errorf("%w: %s %s: %v", ErrIOError, op, name, err)
}
