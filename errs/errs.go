// Package errs declares the closed set of error kinds spec.md §7
// surfaces to callers, plus the wrapping helpers used to attach
// context without losing errors.Is/As compatibility.
//
// The sentinel-variable style mirrors encoding/fastq's ErrShort /
// ErrInvalid / ErrDiscordant and encoding/bam's errCorruptAuxField;
// IOError instead wraps github.com/grailbio/base/errors, the one
// failure mode (disk I/O, kind errors.IO) the teacher's own error-kind
// enum already covers.
package errs

import (
	"errors"
	"fmt"

	baseerrors "github.com/grailbio/base/errors"
)

var (
	// ErrIndexOutOfRange is returned when an integer region key is
	// beyond the region count.
	ErrIndexOutOfRange = errors.New("hic: index out of range")
	// ErrUnknownChromosome is returned when a string/region key names a
	// chromosome not present in the region table.
	ErrUnknownChromosome = errors.New("hic: unknown chromosome")
	// ErrEmptyRange is returned when a key resolves to zero regions.
	ErrEmptyRange = errors.New("hic: key resolves to an empty range")
	// ErrNodeIndexOutOfRange is returned when an edge references a
	// region index that does not exist, under check_nodes.
	ErrNodeIndexOutOfRange = errors.New("hic: edge references an out-of-range region index")
	// ErrSchemaMismatch is returned when an edge carries a field not
	// declared in the sub-table schema, or of the wrong type.
	ErrSchemaMismatch = errors.New("hic: edge field does not match sub-table schema")
	// ErrRegionsFrozen is returned when a region append is attempted
	// after the region table has been frozen (hic.Store freezes it at
	// the first edge operation).
	ErrRegionsFrozen = errors.New("hic: region table is frozen")
	// ErrCorruptStore is returned when an on-disk invariant violation
	// is detected (e.g. a checksum mismatch, or source > sink in a
	// sub-table).
	ErrCorruptStore = errors.New("hic: corrupt store")
	// ErrEdgeNotFound is returned by mask-style invalidation when no
	// row exists at the given (source, sink).
	ErrEdgeNotFound = errors.New("hic: no edge at (source, sink)")
	// ErrMaskUnsupported is returned by mask-style invalidation when the
	// backing SubTable does not implement tablestore.Masker.
	ErrMaskUnsupported = errors.New("hic: backing table does not support masking")
)

// Wrap attaches op/ctx context to a sentinel error kind while
// preserving errors.Is(result, kind).
func Wrap(kind error, op string, args ...interface{}) error {
	msg := op
	if len(args) > 0 {
		msg = fmt.Sprintf("%s: %s", op, fmt.Sprint(args...))
	}
	return fmt.Errorf("%s: %w", msg, kind)
}

// IOError wraps an I/O failure propagated from a tablestore
// implementation. It is the one error kind spec.md §7 documents as
// user-retryable, and is built on github.com/grailbio/base/errors so
// that callers who already branch on baseerrors.Kind (e.g. on
// baseerrors.NotExist) continue to work against the wrapped cause.
func IOError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return baseerrors.E(baseerrors.IO, err, op, path)
}

// Is is a thin re-export of errors.Is, so callers of this package
// don't need a second import for the common case.
func Is(err, target error) bool { return errors.Is(err, target) }
