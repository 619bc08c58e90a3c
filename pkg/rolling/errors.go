package rolling

import (
	"errors"

	"github.com/downfa11-org/rollstore/pkg/substrate"
)

// Error kinds surfaced by RollingStore operations. Most are the same
// sentinel values the Substrate contract defines (re-exported here so
// callers only need to import this package); NotPrimary and
// IllegalState are specific to the rolling layer itself.
var (
	ErrNotExists     = substrate.ErrNotExists
	ErrAlreadyExists = substrate.ErrAlreadyExists
	ErrSealed        = substrate.ErrSealed
	ErrBadOffset     = substrate.ErrBadOffset
	ErrIOError       = substrate.ErrIOError
	ErrTruncated     = substrate.ErrTruncated

	// ErrNotPrimary is the rolling-layer remapping of a substrate
	// ErrBadOffset observed while appending to the header blob: it
	// means another writer's header append landed first, i.e. this
	// handle is no longer the fenced-in primary writer.
	ErrNotPrimary = errors.New("rolling: handle is not the primary writer")

	// ErrIllegalState signals a precondition failure on a composite
	// operation, such as concatenating from a source that is not
	// sealed or that has been truncated.
	ErrIllegalState = errors.New("rolling: illegal state")
)
