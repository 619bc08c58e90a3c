package rolling_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/downfa11-org/rollstore/pkg/rolling"
	"github.com/downfa11-org/rollstore/pkg/substrate/memsubstrate"
)

func newStore() *rolling.RollingStore {
	return rolling.NewStore(memsubstrate.New(), rolling.NoRolling())
}

func repeat(b byte, n int) []byte {
	return bytes.Repeat([]byte{b}, n)
}

// Scenario 1: policy max=100, write "A"x150 in three 50-byte writes.
func TestRolloverAtMaxLength(t *testing.T) {
	store := newStore()
	if _, err := store.Create("seg", rolling.NewRollingPolicy(100)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	h, err := store.OpenWrite("seg")
	if err != nil {
		t.Fatalf("OpenWrite: %v", err)
	}

	data := repeat('A', 150)
	var off int64
	for i := 0; i < 3; i++ {
		chunk := data[i*50 : i*50+50]
		if err := store.Write(h, off, chunk); err != nil {
			t.Fatalf("Write #%d: %v", i, err)
		}
		off += 50
	}

	if h.Length() != 150 {
		t.Fatalf("Length = %d, want 150", h.Length())
	}
	subs := h.SubSegments()
	if len(subs) != 2 {
		t.Fatalf("expected 2 sub-segments, got %d", len(subs))
	}
	if subs[0].StartOffset != 0 || subs[0].Length != 100 {
		t.Errorf("subs[0] = %+v, want start=0 len=100", subs[0])
	}
	if subs[1].StartOffset != 100 || subs[1].Length != 50 {
		t.Errorf("subs[1] = %+v, want start=100 len=50", subs[1])
	}

	buf := make([]byte, 95)
	n, err := store.Read(h, 25, buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n != 95 || !bytes.Equal(buf, repeat('A', 95)) {
		t.Errorf("Read[25,120) = %d bytes %q, want 95 A's", n, buf)
	}
}

// Scenario 2: create, write 10 bytes, seal, read back, write after seal fails.
func TestWriteThenSealThenReadAndRejectWrite(t *testing.T) {
	store := newStore()
	if _, err := store.CreateDefault("seg"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	h, err := store.OpenWrite("seg")
	if err != nil {
		t.Fatalf("OpenWrite: %v", err)
	}
	payload := []byte("0123456789")
	if err := store.Write(h, 0, payload); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := store.Seal(h); err != nil {
		t.Fatalf("Seal: %v", err)
	}

	buf := make([]byte, 10)
	n, err := store.Read(h, 0, buf)
	if err != nil || n != 10 || !bytes.Equal(buf, payload) {
		t.Fatalf("Read after seal = %d %q err=%v, want 10 %q nil", n, buf, err, payload)
	}

	err = store.Write(h, 10, []byte("X"))
	if !errors.Is(err, rolling.ErrSealed) {
		t.Errorf("Write after seal: got %v, want ErrSealed", err)
	}
}

// Scenario 3: native concat path.
func TestConcatNative(t *testing.T) {
	store := newStore()
	policy := rolling.NewRollingPolicy(100)

	if _, err := store.Create("a", policy); err != nil {
		t.Fatalf("create a: %v", err)
	}
	a, err := store.OpenWrite("a")
	if err != nil {
		t.Fatalf("open a: %v", err)
	}
	if err := store.Write(a, 0, repeat('x', 30)); err != nil {
		t.Fatalf("write a: %v", err)
	}

	if _, err := store.Create("b", policy); err != nil {
		t.Fatalf("create b: %v", err)
	}
	b, err := store.OpenWrite("b")
	if err != nil {
		t.Fatalf("open b: %v", err)
	}
	if err := store.Write(b, 0, repeat('y', 40)); err != nil {
		t.Fatalf("write b: %v", err)
	}
	if err := store.Seal(b); err != nil {
		t.Fatalf("seal b: %v", err)
	}

	if err := store.Concat(a, 30, "b"); err != nil {
		t.Fatalf("Concat: %v", err)
	}

	if a.Length() != 70 {
		t.Fatalf("a.Length() = %d, want 70", a.Length())
	}
	subs := a.SubSegments()
	if len(subs) != 1 {
		t.Fatalf("native concat should keep a single sub-segment, got %d", len(subs))
	}

	buf := make([]byte, 70)
	n, err := store.Read(a, 0, buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	want := append(repeat('x', 30), repeat('y', 40)...)
	if n != 70 || !bytes.Equal(buf, want) {
		t.Errorf("Read after native concat = %d %q, want %q", n, buf, want)
	}

	if exists, _ := store.Exists("b"); exists {
		t.Error("source segment b should be gone after native concat")
	}
}

// Scenario 4: header-merge concat path.
func TestConcatHeaderMerge(t *testing.T) {
	store := newStore()
	policy := rolling.NewRollingPolicy(100)

	if _, err := store.Create("a", policy); err != nil {
		t.Fatalf("create a: %v", err)
	}
	a, err := store.OpenWrite("a")
	if err != nil {
		t.Fatalf("open a: %v", err)
	}
	if err := store.Write(a, 0, repeat('x', 80)); err != nil {
		t.Fatalf("write a: %v", err)
	}

	// b rolls over at 60 bytes, so it gets two sub-segments: [0,60) and
	// [60,100).
	if _, err := store.Create("b", rolling.NewRollingPolicy(60)); err != nil {
		t.Fatalf("create b: %v", err)
	}
	b, err := store.OpenWrite("b")
	if err != nil {
		t.Fatalf("open b: %v", err)
	}
	if err := store.Write(b, 0, repeat('y', 60)); err != nil {
		t.Fatalf("write b part1: %v", err)
	}
	if err := store.Write(b, 60, repeat('z', 40)); err != nil {
		t.Fatalf("write b part2: %v", err)
	}
	if err := store.Seal(b); err != nil {
		t.Fatalf("seal b: %v", err)
	}

	if err := store.Concat(a, 80, "b"); err != nil {
		t.Fatalf("Concat: %v", err)
	}

	if a.Length() != 180 {
		t.Fatalf("a.Length() = %d, want 180", a.Length())
	}
	subs := a.SubSegments()
	last2 := subs[len(subs)-2:]
	if last2[0].StartOffset != 80 {
		t.Errorf("second-to-last sub-segment start = %d, want 80", last2[0].StartOffset)
	}
	if last2[1].StartOffset != 140 {
		t.Errorf("last sub-segment start = %d, want 140", last2[1].StartOffset)
	}
}

// Scenario 5: truncate drops fully-below sub-segments, keeps the straddler.
func TestTruncateKeepsStraddlingSubSegment(t *testing.T) {
	store := newStore()
	policy := rolling.NewRollingPolicy(50)

	if _, err := store.Create("seg", policy); err != nil {
		t.Fatalf("Create: %v", err)
	}
	h, err := store.OpenWrite("seg")
	if err != nil {
		t.Fatalf("OpenWrite: %v", err)
	}
	if err := store.Write(h, 0, repeat('a', 150)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(h.SubSegments()) != 3 {
		t.Fatalf("expected 3 sub-segments before truncate, got %d", len(h.SubSegments()))
	}

	if err := store.Truncate(h, 75); err != nil {
		t.Fatalf("Truncate: %v", err)
	}

	if h.Length() != 150 {
		t.Errorf("Length should be unchanged by truncate, got %d", h.Length())
	}
	subs := h.SubSegments()
	if subs[0].Exists {
		t.Errorf("first sub-segment [0,50) should be deleted: %+v", subs[0])
	}
	if !subs[1].Exists {
		t.Errorf("straddling sub-segment [50,100) must survive truncation at 75: %+v", subs[1])
	}
	if !subs[2].Exists {
		t.Errorf("tail sub-segment [100,150) must survive: %+v", subs[2])
	}
}

// Scenario 6: crash after header create but before first write is a
// reusable remnant on the next Create.
func TestCreateReusesEmptyUnsealedHeaderRemnant(t *testing.T) {
	sub := memsubstrate.New()
	store := rolling.NewStore(sub, rolling.NoRolling())

	if err := sub.Create("seg#header"); err != nil {
		t.Fatalf("simulate crash remnant: %v", err)
	}

	if _, err := store.Create("seg", rolling.NoRolling()); err != nil {
		t.Fatalf("Create should reuse empty unsealed header remnant: %v", err)
	}
}

func TestWriteZeroBytesIsNoopAndDoesNotRollover(t *testing.T) {
	store := newStore()
	if _, err := store.Create("seg", rolling.NewRollingPolicy(10)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	h, err := store.OpenWrite("seg")
	if err != nil {
		t.Fatalf("OpenWrite: %v", err)
	}
	if err := store.Write(h, 0, nil); err != nil {
		t.Fatalf("Write(nil): %v", err)
	}
	if h.Length() != 0 {
		t.Errorf("Length after zero-byte write = %d, want 0", h.Length())
	}
	if len(h.SubSegments()) != 0 {
		t.Errorf("zero-byte write must not create a sub-segment, got %d", len(h.SubSegments()))
	}
}

func TestReadZeroBytesAtLengthSucceeds(t *testing.T) {
	store := newStore()
	if _, err := store.CreateDefault("seg"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	h, err := store.OpenWrite("seg")
	if err != nil {
		t.Fatalf("OpenWrite: %v", err)
	}
	if err := store.Write(h, 0, []byte("hi")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	n, err := store.Read(h, 2, nil)
	if err != nil || n != 0 {
		t.Fatalf("Read(offset=length, 0 bytes) = %d, %v, want 0, nil", n, err)
	}
}

func TestTruncateAtZeroDeletesNothing(t *testing.T) {
	store := newStore()
	if _, err := store.Create("seg", rolling.NewRollingPolicy(50)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	h, err := store.OpenWrite("seg")
	if err != nil {
		t.Fatalf("OpenWrite: %v", err)
	}
	if err := store.Write(h, 0, repeat('a', 100)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := store.Truncate(h, 0); err != nil {
		t.Fatalf("Truncate(0): %v", err)
	}
	for _, s := range h.SubSegments() {
		if !s.Exists {
			t.Errorf("Truncate(0) must delete nothing, found deleted sub-segment %+v", s)
		}
	}
}

func TestTruncateAtLengthRollsOverToFreshEmptyTail(t *testing.T) {
	store := newStore()
	if _, err := store.Create("seg", rolling.NewRollingPolicy(50)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	h, err := store.OpenWrite("seg")
	if err != nil {
		t.Fatalf("OpenWrite: %v", err)
	}
	if err := store.Write(h, 0, repeat('a', 100)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := store.Truncate(h, 100); err != nil {
		t.Fatalf("Truncate(length): %v", err)
	}
	if h.Length() != 100 {
		t.Errorf("Length after full truncate = %d, want 100 (fresh empty tail pins length)", h.Length())
	}
	tail := h.SubSegments()[len(h.SubSegments())-1]
	if tail.Length != 0 || !tail.Exists {
		t.Errorf("fresh tail after full truncate = %+v, want empty and existing", tail)
	}
	for _, s := range h.SubSegments()[:len(h.SubSegments())-1] {
		if s.Exists {
			t.Errorf("prior sub-segment should be deleted after full truncate: %+v", s)
		}
	}
}

func TestWriteAtWrongOffsetFailsBadOffset(t *testing.T) {
	store := newStore()
	if _, err := store.CreateDefault("seg"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	h, err := store.OpenWrite("seg")
	if err != nil {
		t.Fatalf("OpenWrite: %v", err)
	}
	if err := store.Write(h, 5, []byte("x")); !errors.Is(err, rolling.ErrBadOffset) {
		t.Errorf("Write at non-append offset: got %v, want ErrBadOffset", err)
	}
}

func TestLegacySegmentReadWrite(t *testing.T) {
	sub := memsubstrate.New()
	store := rolling.NewStore(sub, rolling.NoRolling())

	// Simulate a pre-existing header-less blob created directly on the
	// substrate, as a segment from before the rolling layer existed.
	if err := sub.Create("legacy"); err != nil {
		t.Fatalf("simulate legacy blob: %v", err)
	}

	h, err := store.OpenWrite("legacy")
	if err != nil {
		t.Fatalf("OpenWrite legacy: %v", err)
	}
	if h.HasHeader() {
		t.Fatal("legacy segment must report HasHeader() == false")
	}
	if err := store.Write(h, 0, []byte("legacy-data")); err != nil {
		t.Fatalf("Write legacy: %v", err)
	}

	buf := make([]byte, len("legacy-data"))
	n, err := store.Read(h, 0, buf)
	if err != nil || n != len(buf) || string(buf) != "legacy-data" {
		t.Fatalf("Read legacy = %d %q err=%v", n, buf, err)
	}

	if err := store.Truncate(h, 0); err != nil {
		t.Errorf("Truncate on legacy segment should be a no-op, got error: %v", err)
	}
}

func TestDeleteMarksHandleUnusable(t *testing.T) {
	store := newStore()
	if _, err := store.CreateDefault("seg"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	h, err := store.OpenWrite("seg")
	if err != nil {
		t.Fatalf("OpenWrite: %v", err)
	}
	if err := store.Write(h, 0, []byte("data")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := store.Delete(h); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !h.IsDeleted() {
		t.Fatal("handle must be marked deleted")
	}
	if err := store.Write(h, 4, []byte("more")); !errors.Is(err, rolling.ErrNotExists) {
		t.Errorf("Write on deleted handle: got %v, want ErrNotExists", err)
	}
	if _, err := store.Read(h, 0, make([]byte, 1)); !errors.Is(err, rolling.ErrNotExists) {
		t.Errorf("Read on deleted handle: got %v, want ErrNotExists", err)
	}
}

func TestExistsAndInfo(t *testing.T) {
	store := newStore()
	exists, err := store.Exists("missing")
	if err != nil || exists {
		t.Fatalf("Exists(missing) = %v, %v, want false, nil", exists, err)
	}

	if _, err := store.CreateDefault("seg"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	h, err := store.OpenWrite("seg")
	if err != nil {
		t.Fatalf("OpenWrite: %v", err)
	}
	if err := store.Write(h, 0, []byte("abcde")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	exists, err = store.Exists("seg")
	if err != nil || !exists {
		t.Fatalf("Exists(seg) = %v, %v, want true, nil", exists, err)
	}

	info, err := store.Info("seg")
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if info.Length != 5 || info.Sealed {
		t.Errorf("Info = %+v, want length=5 sealed=false", info)
	}
}

// A read-only handle that observes a concurrent write via another
// handle must refresh and succeed rather than fail BadOffset.
func TestReadOnlyHandleRefreshesOnStaleRead(t *testing.T) {
	store := newStore()
	if _, err := store.CreateDefault("seg"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	writer, err := store.OpenWrite("seg")
	if err != nil {
		t.Fatalf("OpenWrite: %v", err)
	}
	if err := store.Write(writer, 0, []byte("hello")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	reader, err := store.OpenRead("seg")
	if err != nil {
		t.Fatalf("OpenRead: %v", err)
	}

	if err := store.Write(writer, 5, []byte(" world")); err != nil {
		t.Fatalf("second Write: %v", err)
	}

	buf := make([]byte, 11)
	n, err := store.Read(reader, 0, buf)
	if err != nil {
		t.Fatalf("Read after concurrent write should refresh and succeed: %v", err)
	}
	if n != 11 || string(buf) != "hello world" {
		t.Errorf("Read = %d %q, want 11 \"hello world\"", n, buf)
	}
}

func TestConcatEmptySourceDeletesSource(t *testing.T) {
	store := newStore()
	if _, err := store.CreateDefault("a"); err != nil {
		t.Fatalf("create a: %v", err)
	}
	a, err := store.OpenWrite("a")
	if err != nil {
		t.Fatalf("open a: %v", err)
	}

	if _, err := store.CreateDefault("b"); err != nil {
		t.Fatalf("create b: %v", err)
	}
	b, err := store.OpenWrite("b")
	if err != nil {
		t.Fatalf("open b: %v", err)
	}
	if err := store.Seal(b); err != nil {
		t.Fatalf("seal b: %v", err)
	}

	if err := store.Concat(a, 0, "b"); err != nil {
		t.Fatalf("Concat empty source: %v", err)
	}
	if exists, _ := store.Exists("b"); exists {
		t.Error("empty concat source should be deleted")
	}
}

func TestConcatRejectsUnsealedSource(t *testing.T) {
	store := newStore()
	if _, err := store.CreateDefault("a"); err != nil {
		t.Fatalf("create a: %v", err)
	}
	a, err := store.OpenWrite("a")
	if err != nil {
		t.Fatalf("open a: %v", err)
	}
	if _, err := store.CreateDefault("b"); err != nil {
		t.Fatalf("create b: %v", err)
	}
	bWriter, err := store.OpenWrite("b")
	if err != nil {
		t.Fatalf("open b: %v", err)
	}
	if err := store.Write(bWriter, 0, []byte("x")); err != nil {
		t.Fatalf("write b: %v", err)
	}

	err = store.Concat(a, 0, "b")
	if !errors.Is(err, rolling.ErrIllegalState) {
		t.Errorf("Concat with unsealed source: got %v, want ErrIllegalState", err)
	}
}

// sealedMultiSubSegment creates and seals a segment with two
// sub-segments, forcing any concat that uses it as a source onto the
// header-merge path (native concat requires exactly one sub-segment).
func sealedMultiSubSegment(t *testing.T, store *rolling.RollingStore, name string) {
	t.Helper()
	if _, err := store.Create(name, rolling.NewRollingPolicy(1)); err != nil {
		t.Fatalf("create %s: %v", name, err)
	}
	h, err := store.OpenWrite(name)
	if err != nil {
		t.Fatalf("open %s: %v", name, err)
	}
	if err := store.Write(h, 0, repeat('x', 2)); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	if err := store.Seal(h); err != nil {
		t.Fatalf("seal %s: %v", name, err)
	}
}

// Two writable handles opened against the same fresh segment both
// observe the same initial header length. Appending a header entry
// through one (here, via a header-merge concat) advances the header's
// durable length; the other handle's in-memory header length is now
// stale. Its own attempt to append a header entry must be rejected as
// ErrNotPrimary rather than silently overwriting the first append.
func TestConcatFencesStaleWriterWithNotPrimary(t *testing.T) {
	store := newStore()
	sealedMultiSubSegment(t, store, "b")
	sealedMultiSubSegment(t, store, "c")

	if _, err := store.CreateDefault("a"); err != nil {
		t.Fatalf("create a: %v", err)
	}
	primary, err := store.OpenWrite("a")
	if err != nil {
		t.Fatalf("OpenWrite primary: %v", err)
	}
	stale, err := store.OpenWrite("a")
	if err != nil {
		t.Fatalf("OpenWrite stale: %v", err)
	}

	if err := store.Concat(primary, 0, "b"); err != nil {
		t.Fatalf("primary concat: %v", err)
	}

	err = store.Concat(stale, 0, "c")
	if !errors.Is(err, rolling.ErrNotPrimary) {
		t.Errorf("stale handle concat: got %v, want ErrNotPrimary", err)
	}
}
