package substrate

import "errors"

// Sentinel error kinds a Substrate implementation must be able to
// signal. Callers should use errors.Is against these, since concrete
// implementations may wrap them with additional context.
var (
	ErrNotExists     = errors.New("substrate: blob does not exist")
	ErrAlreadyExists = errors.New("substrate: blob already exists")
	ErrSealed        = errors.New("substrate: blob is sealed")
	ErrBadOffset     = errors.New("substrate: bad offset")
	ErrIOError       = errors.New("substrate: io error")
	ErrTruncated     = errors.New("substrate: blob truncated")
)
