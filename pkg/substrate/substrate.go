// Package substrate defines the synchronous blob-storage contract that
// the rolling storage core consumes. It is the boundary described in
// the design as the "external collaborator": the rolling layer depends
// only on this interface, never on a concrete implementation.
package substrate

// BlobInfo is the result of a Stat call: a blob's name, current length
// and sealed state.
type BlobInfo struct {
	Name   string
	Length int64
	Sealed bool
}

// Handle identifies an open blob. Implementations attach whatever state
// they need (an *os.File, a map key, ...) behind this interface; the
// rolling layer only ever calls Name() on it.
type Handle interface {
	Name() string
}

// Substrate is the synchronous blob-storage primitive the rolling core
// is built on. Every method blocks on the underlying store and returns
// one of the sentinel errors in errors.go on failure.
//
// All operations are safe to call concurrently from multiple handles;
// ordering guarantees for operations against the same handle are the
// caller's responsibility (see the rolling package's concurrency
// notes).
type Substrate interface {
	// Create creates a new, empty, unsealed blob. Returns
	// ErrAlreadyExists if a blob with this name is already present,
	// regardless of its contents.
	Create(name string) error

	// OpenRead opens an existing blob for reading. Returns
	// ErrNotExists if the blob is not present.
	OpenRead(name string) (Handle, error)

	// OpenWrite opens an existing blob for writing. Returns
	// ErrNotExists if the blob is not present. A sealed blob may still
	// be opened for writing (e.g. to delete it); Write itself rejects
	// sealed blobs.
	OpenWrite(name string) (Handle, error)

	// Read reads into buf starting at offset, returning the number of
	// bytes actually read (which may be less than len(buf) if the blob
	// is shorter). Returns ErrNotExists if the blob has been deleted.
	Read(h Handle, offset int64, buf []byte) (int, error)

	// Write appends data at offset, which must equal the blob's
	// current length (ErrBadOffset otherwise). Returns ErrSealed if
	// the blob has been sealed.
	Write(h Handle, offset int64, data []byte) error

	// Seal marks a blob as sealed. Idempotent.
	Seal(h Handle) error

	// Concat atomically appends the blob named sourceName to target at
	// offset (which must equal target's current length) and deletes
	// the source. Implementations that cannot do this atomically must
	// still guarantee that on success the source is gone and the
	// target holds the concatenation.
	Concat(target Handle, offset int64, sourceName string) error

	// Delete removes a blob. Returns ErrNotExists if already absent.
	Delete(h Handle) error

	// Exists reports whether a blob is present. Unlike OpenRead it
	// never itself returns ErrNotExists; a missing blob is (false, nil).
	Exists(name string) (bool, error)

	// Stat returns a blob's current metadata. Returns ErrNotExists if
	// the blob is not present.
	Stat(name string) (BlobInfo, error)
}
