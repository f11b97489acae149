// Package gserr defines the error kinds surfaced by the global state core.
//
// Errors are sharable sentinel values, the same shape as Carmen's
// common.ConstError, so callers can compare with errors.Is regardless of
// the wrapping context added along the way.
package gserr

// ConstError is an immutable error constant, safe to compare with errors.Is
// across package boundaries.
type ConstError string

func (e ConstError) Error() string {
	return string(e)
}

const (
	// RootNotFound is returned when a requested pre-state digest is absent
	// from the object store.
	RootNotFound = ConstError("root_not_found")

	// Formatting is returned when a stored or input byte buffer cannot be
	// decoded into the shape the caller expected.
	Formatting = ConstError("formatting")

	// LeftoverBytes is returned when a top-level decode leaves trailing
	// bytes unconsumed.
	LeftoverBytes = ConstError("leftover_bytes")

	// TypeMismatch is returned when a transform is incompatible with the
	// type tag of the value it would apply to.
	TypeMismatch = ConstError("type_mismatch")

	// Overflow is returned when a numeric add transform would overflow the
	// target width.
	Overflow = ConstError("overflow")

	// KeyTooLong is returned when a key exceeds the configured maximum.
	KeyTooLong = ConstError("key_too_long")

	// ValueTooLarge is returned when a value exceeds the configured
	// maximum.
	ValueTooLarge = ConstError("value_too_large")

	// StorageIO is returned when the underlying object store fails.
	StorageIO = ConstError("storage_io")

	// PruneUnreachable is returned when a prune is requested against a
	// root that cannot be found.
	PruneUnreachable = ConstError("prune_unreachable")
)
