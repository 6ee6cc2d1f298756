// Package rcuerr defines the error kinds surfaced by the hard core, per
// spec.md §7. Sentinels are compared with errors.Is; call sites wrap
// them with github.com/pkg/errors to attach operation context without
// losing that comparability.
package rcuerr

import "github.com/pkg/errors"

var (
	// OutOfMemory is returned when an allocator-backed insert or a
	// trie recompaction cannot obtain storage for a new node. The
	// structure is left unchanged.
	OutOfMemory = errors.New("rcuindex: out of memory")

	// AlreadyExists is returned by unique-insert operations (trie
	// add_unique, range_add) that collide with an existing entry or
	// an already-allocated span. The structure is left unchanged.
	AlreadyExists = errors.New("rcuindex: already exists")

	// NotFound is returned when a remove/delete target was concurrently
	// removed or was never present.
	NotFound = errors.New("rcuindex: not found")

	// Invalid is returned for precondition violations such as a
	// range_add whose start is not below its end, or whose span reaches
	// outside the map's universe.
	Invalid = errors.New("rcuindex: invalid argument")
)

// Wrap attaches op as context to a sentinel without losing errors.Is.
func Wrap(sentinel error, op string) error {
	return errors.Wrapf(sentinel, "rcuindex: %s", op)
}
