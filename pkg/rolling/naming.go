package rolling

import "fmt"

// headerSuffix and subSegmentInfix must not appear in logical
// segment names; callers are responsible for that, the same way a
// "<base>_segment_<offset>.log" naming scheme assumes the base name
// never collides with the suffix it appends.
const (
	headerSuffix    = "#header"
	subSegmentInfix = "#sub."
)

// headerName derives the name of the durable header blob for a logical
// segment. Deterministic and, so long as logical names never contain
// "#header" as a literal suffix themselves, collision-free.
func headerName(logicalName string) string {
	return logicalName + headerSuffix
}

// subSegmentName derives the name of the sub-segment blob starting at
// startOffset within logicalName. The offset is zero-padded so that
// names sort the same lexicographically as numerically, following the
// usual "_segment_%020d.log" convention.
func subSegmentName(logicalName string, startOffset int64) string {
	return fmt.Sprintf("%s%s%020d", logicalName, subSegmentInfix, startOffset)
}
