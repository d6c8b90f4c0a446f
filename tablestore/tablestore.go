// Package tablestore defines the "table store" dependency spec.md §6
// assumes external to the core: a hierarchical file container
// providing named tables with typed columns, predicate scans, and
// column indexes. edge.Store is written against this interface only;
// tablestore/filestore provides the reference, file-backed
// implementation used by tests and by hic.Create/hic.Open, which
// always open a filestore.
package tablestore

import (
	"github.com/grailbio/hic/ixrange"
	"github.com/grailbio/hic/schema"
)

// Predicate selects rows by canonical (source, sink) range, per
// query.Planner's P1/P2 generation (spec.md §4.4). Both ranges are
// half-open; the planner is responsible for converting the spec's
// inclusive endpoints via ixrange.FromInclusive.
type Predicate struct {
	Source ixrange.Range
	Sink   ixrange.Range
}

// Match reports whether row (s,t) satisfies p.
func (p Predicate) Match(s, t uint32) bool {
	return p.Source.Contains(s) && p.Sink.Contains(t)
}

// RowIter is a single-pass, single-owner iterator over Row results.
// Iterators hold a read reference to the underlying SubTable; per
// spec.md §5, mutating the table while an iterator is live is
// undefined.
type RowIter interface {
	// Next advances to the next row. It returns false at end of
	// stream or on error; call Err to distinguish the two.
	Next() bool
	// Row returns the row last advanced to by Next.
	Row() schema.Row
	// Err returns the first error encountered, if any.
	Err() error
	// Close releases resources held by the iterator. It is safe to
	// call Close before exhausting the iterator (spec.md §5: "an
	// iterator may be dropped at any time without corrupting state").
	Close() error
}

// Node is any addressable location in the store that carries
// metadata attributes (spec.md §6: "Named attributes on any node for
// metadata").
type Node interface {
	// Attrs returns the node's attributes. The returned map must not
	// be mutated by the caller; use SetAttr.
	Attrs() map[string]interface{}
	// SetAttr sets (or overwrites) a single attribute.
	SetAttr(key string, value interface{}) error
}

// Table is one named, typed, append-only row store: a SubTable
// (spec.md §3) when created under /edges, or the /regions table.
type Table interface {
	Node
	// Append adds rows to the table, in order, without requiring an
	// explicit flush. Implementations may buffer internally.
	Append(rows []schema.Row) error
	// Where executes a predicate scan. Rows within a single Table are
	// yielded in ascending Source order (the underlying index scan
	// order); order across Tables is unspecified (spec.md §4.4).
	Where(p Predicate) (RowIter, error)
	// Scan returns every row in the table, unordered relative to
	// concurrent Appends but stable for a single snapshot — used by
	// query.Planner's full-partition fast path, which bypasses
	// indexes entirely.
	Scan() (RowIter, error)
	// Flush forces any buffered rows to be durably written. If
	// rebuildIndex is true, the table's column indexes are rebuilt
	// even if not currently dirty.
	Flush(rebuildIndex bool) error
	// Len returns the number of (unmasked or masked) rows currently
	// stored.
	Len() (int, error)
}

// Masker is an optional capability a Table may implement to support
// the mask-style invalidation of spec.md §3 ("no in-place deletion of
// individual edges, only mask-style invalidation"). Implementations
// that cannot support it (e.g. an append-only remote log) may simply
// not implement this interface; callers type-assert for it.
type Masker interface {
	// SetMasked sets or clears the mask bit of the row at (source,
	// sink), if present.
	SetMasked(source, sink uint32, masked bool) error
}

// Store is the top-level handle on the hierarchical file container.
type Store interface {
	// CreateGroup creates an intermediate node (e.g. "/edges") if it
	// does not already exist.
	CreateGroup(name string) error
	// GetNode looks up any node (group or table) by path.
	GetNode(path string) (Node, error)
	// CreateTable creates a new table of the given schema under
	// parent, or returns the existing one if already present (in
	// which case sch is not validated against it — callers are
	// expected to pass the canonical (0,0) template schema
	// consistently, per I5).
	CreateTable(parent, name string, sch schema.Schema) (Table, error)
	// Root returns the store's root node, carrying the
	// /meta_information-equivalent attributes.
	Root() Node
	// Close releases the store's file handle.
	Close() error
}
