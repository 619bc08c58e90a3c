package rolling

// SubSegment is a value type describing one physical blob backing a
// contiguous offset range of a logical segment. Within a handle,
// SubSegments are kept in strictly increasing StartOffset order; every
// non-tail entry is Sealed and abuts the next entry exactly
// (StartOffset[i]+Length[i] == StartOffset[i+1]).
type SubSegment struct {
	Name        string
	StartOffset int64
	Length      int64
	Sealed      bool
	// Exists is false once the backing blob has been deleted (e.g. by
	// truncation). It never reverts to true.
	Exists bool
}

func newSubSegment(logicalName string, startOffset int64) SubSegment {
	return SubSegment{
		Name:        subSegmentName(logicalName, startOffset),
		StartOffset: startOffset,
		Length:      0,
		Sealed:      false,
		Exists:      true,
	}
}

// LastOffset is the first logical offset past this sub-segment.
func (s SubSegment) LastOffset() int64 {
	return s.StartOffset + s.Length
}

// Contains reports whether offset falls within [StartOffset, LastOffset).
func (s SubSegment) Contains(offset int64) bool {
	return offset >= s.StartOffset && offset < s.LastOffset()
}

// Rebase returns a copy of s with a new start offset, keeping its name,
// length, sealed and existence state. Used when splicing a source
// segment's sub-segment table into a target during header-merge concat.
func (s SubSegment) Rebase(newStart int64) SubSegment {
	r := s
	r.StartOffset = newStart
	return r
}
