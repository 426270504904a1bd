package object

import "errors"

var (
	// ErrNotFound reports a read of an object the store does not have.
	ErrNotFound = errors.New("object not found")

	// ErrCorrupt reports a malformed object: bad envelope, bad varint,
	// or a checksum that does not match the content.
	ErrCorrupt = errors.New("corrupt object")

	// ErrInvalidHash reports a malformed object hash.
	ErrInvalidHash = errors.New("invalid hash")

	// ErrUnresolvedDelta reports a pack whose delta chain could not be
	// resolved within the iteration bound.
	ErrUnresolvedDelta = errors.New("unresolved delta")
)
