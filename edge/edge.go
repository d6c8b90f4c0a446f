// Package edge implements the Edge Store of spec.md §4.3: canonical
// insertion, per-(i,j) ingestion buffering, periodic flush to
// SubTables, and the additive update-merge path, grounded on
// pamwriter.go's buffered, periodically-flushed write path.
package edge

import (
	"fmt"
	"sort"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/hic/errs"
	"github.com/grailbio/hic/ixrange"
	"github.com/grailbio/hic/partition"
	"github.com/grailbio/hic/schema"
	"github.com/grailbio/hic/tablestore"
)

// Edge is a caller-supplied weighted pair of region indices, in
// arbitrary (not-yet-canonicalized) order, with optional extension
// fields.
type Edge struct {
	Source uint32
	Sink   uint32
	Weight float64
	Fields map[string]interface{}
}

func (e Edge) canonical() (uint32, uint32) {
	if e.Source <= e.Sink {
		return e.Source, e.Sink
	}
	return e.Sink, e.Source
}

// pairKey identifies one (i,j) SubTable / buffer slot, with i<=j.
type pairKey struct{ i, j int }

func (k pairKey) name() string { return fmt.Sprintf("part_%d_%d", k.i, k.j) }

// less gives the "key order" spec.md §4.3's bulk path flushes in.
func (k pairKey) less(o pairKey) bool {
	if k.i != o.i {
		return k.i < o.i
	}
	return k.j < o.j
}

// bufferedRow is one staged insertion, prior to becoming a
// schema.Row: it additionally carries the AddEdge options that govern
// how it merges with an existing row at flush time.
type bufferedRow struct {
	source, sink uint32
	weight       float64
	fields       map[string]interface{}
	replace      bool
}

// AddOpts controls AddEdge/AddEdges behavior.
type AddOpts struct {
	// CheckNodes, when true (the default via DefaultAddOpts), rejects
	// edges referencing an out-of-range region index with
	// errs.ErrNodeIndexOutOfRange.
	CheckNodes bool
	// Replace, when true, overwrites an existing row's weight and
	// fields instead of additively combining them (spec.md §4.3 "Edge
	// merge").
	Replace bool
}

// DefaultAddOpts is check_nodes=true, replace=false, matching spec.md
// §6's add_edge(e, check_nodes=true) default.
func DefaultAddOpts() AddOpts { return AddOpts{CheckNodes: true} }

// subtableState tracks the Clean/Dirty and IndexClean/IndexDirty
// state machines of spec.md §4.7 for one SubTable.
type subtableState struct {
	tbl         tablestore.Table
	dirty       bool // Dirty: rows appended since last Flush.
	indexDirty  bool // IndexDirty: column indexes need rebuild.
}

// Store is the Edge Store of spec.md §4.3: a mapping (i,j) -> SubTable
// with i<=j, an ingestion buffer, and the flush/merge machinery.
type Store struct {
	pmap      *partition.Map
	nRegions  uint32
	sch       schema.Schema
	tblStore  tablestore.Store
	groupPath string // e.g. "/edges"

	tables map[pairKey]*subtableState
	buffer map[pairKey][]bufferedRow
	nBuffered int
	bBuf      int // flush threshold: sum(|buffer[*]|) > bBuf triggers a bulk flush.
}

// New constructs an empty Edge Store over the given partition map and
// canonical (0,0) schema, backed by tblStore under groupPath (e.g.
// "/edges"). bBuf is the bulk-flush threshold B_buf; bBuf<=0 disables
// automatic flushing (callers must call Flush explicitly).
func New(pmap *partition.Map, nRegions uint32, sch schema.Schema, tblStore tablestore.Store, groupPath string, bBuf int) (*Store, error) {
	if err := tblStore.CreateGroup(groupPath); err != nil {
		return nil, errs.Wrap(errs.ErrCorruptStore, "edge.New", err)
	}
	s := &Store{
		pmap:      pmap,
		nRegions:  nRegions,
		sch:       sch,
		tblStore:  tblStore,
		groupPath: groupPath,
		tables:    map[pairKey]*subtableState{},
		buffer:    map[pairKey][]bufferedRow{},
		bBuf:      bBuf,
	}
	if err := s.discoverExisting(pmap); err != nil {
		return nil, err
	}
	return s, nil
}

// discoverExisting probes every (i,j), i<=j SubTable the partition map
// admits and registers the ones that already hold rows on disk, so
// Len/Scan/Mappable/MaskEdge see SubTables flushed in a prior session
// rather than only ones this particular Store has buffered into.
// tablestore.Table handles are lazy (no disk I/O until Len/Scan/Flush
// touches one), so probing a pair that turns out never to have
// existed costs one missing-file check, not a real read; pairs with
// zero rows are left unregistered, preserving "part_i_j empty or
// absent" (spec.md §8 scenario 1) for a fresh store.
func (s *Store) discoverExisting(pmap *partition.Map) error {
	for i := 0; i < pmap.NumPartitions(); i++ {
		for j := i; j < pmap.NumPartitions(); j++ {
			key := pairKey{i, j}
			tbl, err := s.tblStore.CreateTable(s.groupPath, key.name(), s.sch)
			if err != nil {
				return errs.IOError("edge.discoverExisting.CreateTable", key.name(), err)
			}
			n, err := tbl.Len()
			if err != nil {
				return errs.IOError("edge.discoverExisting.Len", key.name(), err)
			}
			if n == 0 {
				continue
			}
			if err := tbl.SetAttr("source_partition", key.i); err != nil {
				return err
			}
			if err := tbl.SetAttr("sink_partition", key.j); err != nil {
				return err
			}
			s.tables[key] = &subtableState{tbl: tbl}
		}
	}
	return nil
}

// AddEdge stages a single edge for insertion, canonicalizing
// (source,sink) to (min,max) before buffering (resolving the
// "inserted as both (a,b) and (b,a)" case per spec.md §9).
func (s *Store) AddEdge(e Edge, opts AddOpts) error {
	src, snk := e.canonical()
	if opts.CheckNodes {
		if err := checkNodes(src, snk, s.nRegions); err != nil {
			return err
		}
	}
	if err := s.sch.Validate(e.Fields); err != nil {
		return errs.Wrap(errs.ErrSchemaMismatch, "AddEdge", err)
	}
	key := pairKey{s.pmap.Part(src), s.pmap.Part(snk)}
	s.buffer[key] = append(s.buffer[key], bufferedRow{
		source:  src,
		sink:    snk,
		weight:  e.Weight,
		fields:  s.sch.Fill(e.Fields),
		replace: opts.Replace,
	})
	s.nBuffered++
	if st, ok := s.tables[key]; ok {
		st.dirty = true
	}
	if s.bBuf > 0 && s.nBuffered > s.bBuf {
		return s.flushBuffer(false)
	}
	return nil
}

// AddEdges stages each edge from it via AddEdge, stopping at the
// first error.
func (s *Store) AddEdges(it func() (Edge, bool, error), opts AddOpts) error {
	for {
		e, ok, err := it()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := s.AddEdge(e, opts); err != nil {
			return err
		}
	}
}

func checkNodes(s, t uint32, nRegions uint32) error {
	if s >= nRegions || t >= nRegions {
		return errs.Wrap(errs.ErrNodeIndexOutOfRange, "AddEdge", fmt.Sprintf("(%d,%d) >= %d regions", s, t, nRegions))
	}
	return nil
}

// subtable returns the SubTable for key, lazily creating it (schema
// copied from the store's canonical template, per I5) if absent.
func (s *Store) subtable(key pairKey) (*subtableState, error) {
	if st, ok := s.tables[key]; ok {
		return st, nil
	}
	tbl, err := s.tblStore.CreateTable(s.groupPath, key.name(), s.sch)
	if err != nil {
		return nil, errs.IOError("edge.subtable.CreateTable", key.name(), err)
	}
	if err := tbl.SetAttr("source_partition", key.i); err != nil {
		return nil, err
	}
	if err := tbl.SetAttr("sink_partition", key.j); err != nil {
		return nil, err
	}
	st := &subtableState{tbl: tbl}
	s.tables[key] = st
	return st, nil
}

// flushBuffer drains s.buffer into SubTables, in key order, merging
// against existing rows unless replace was requested. On an I/O
// error the buffer is left intact (spec.md §4.8: "the buffer is NOT
// cleared").
func (s *Store) flushBuffer(rebuildIndex bool) error {
	keys := make([]pairKey, 0, len(s.buffer))
	for k := range s.buffer {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(a, b int) bool { return keys[a].less(keys[b]) })

	for _, key := range keys {
		rows := s.buffer[key]
		if len(rows) == 0 {
			continue
		}
		st, err := s.subtable(key)
		if err != nil {
			return err
		}
		merged, err := mergeRows(st.tbl, rows)
		if err != nil {
			return err
		}
		if err := st.tbl.Append(merged); err != nil {
			return errs.IOError("edge.flushBuffer.Append", key.name(), err)
		}
		if err := st.tbl.Flush(rebuildIndex); err != nil {
			// Per spec.md §4.8, leave buffer[key] untouched so the caller
			// can retry.
			return errs.IOError("edge.flushBuffer.Flush", key.name(), err)
		}
		delete(s.buffer, key)
		s.nBuffered -= len(rows)
		st.dirty = false
		st.indexDirty = !rebuildIndex
		log.Debug.Printf("edge: flushed %d rows to %s", len(rows), key.name())
	}
	return nil
}

// mergeRows resolves the additive/replace update semantics of
// spec.md §4.3 against rows already on disk in tbl, returning the
// final set of schema.Row values to append. Rows with no existing
// counterpart on disk pass through combined only against each other
// (multiple identical (s,t) pairs within the same buffer combine
// additively unless replace=true on the later one).
func mergeRows(tbl tablestore.Table, rows []bufferedRow) ([]schema.Row, error) {
	byPair := map[[2]uint32]*schema.Row{}
	order := make([][2]uint32, 0, len(rows))

	for _, br := range rows {
		k := [2]uint32{br.source, br.sink}
		existing, ok := byPair[k]
		if !ok {
			existingOnDisk, err := lookupExisting(tbl, br.source, br.sink)
			if err != nil {
				return nil, err
			}
			if existingOnDisk != nil {
				byPair[k] = existingOnDisk
				order = append(order, k)
				existing = existingOnDisk
				ok = true
			}
		}
		if !ok {
			r := &schema.Row{Source: br.source, Sink: br.sink, Weight: br.weight, Fields: br.fields}
			byPair[k] = r
			order = append(order, k)
			continue
		}
		if br.replace {
			existing.Weight = br.weight
			existing.Fields = br.fields
		} else {
			existing.Weight += br.weight
			existing.Fields = addFields(existing.Fields, br.fields)
		}
	}

	out := make([]schema.Row, 0, len(order))
	for _, k := range order {
		out = append(out, *byPair[k])
	}
	return out, nil
}

// lookupExisting scans tbl for a prior row at (s,t). The reference
// filestore backend keeps rows in memory and re-flushes the whole
// file, so on-disk merge is implemented by reading the row back
// before re-appending; a streaming tablestore.Table could instead
// expose a point lookup.
func lookupExisting(tbl tablestore.Table, s, t uint32) (*schema.Row, error) {
	it, err := tbl.Where(tablestore.Predicate{Source: ixrange.Single(s), Sink: ixrange.Single(t)})
	if err != nil {
		return nil, errs.IOError("edge.lookupExisting.Where", "", err)
	}
	defer it.Close()
	for it.Next() {
		r := it.Row()
		if r.Source == s && r.Sink == t {
			clone := r.Clone()
			return &clone, nil
		}
	}
	return nil, it.Err()
}

func addFields(a, b map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(a))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		if av, ok := out[k]; ok {
			if sum, ok := addNumeric(av, v); ok {
				out[k] = sum
				continue
			}
		}
		out[k] = v
	}
	return out
}

func addNumeric(a, b interface{}) (interface{}, bool) {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af + bf, true
	}
	return nil, false
}

func toFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	}
	return 0, false
}

// Flush forces the ingestion buffer to drain (spec.md §6's
// flush(silent)), and rebuilds column indexes on any SubTable marked
// IndexDirty, in parallel across SubTables via traverse.Each (the
// same fan-out idiom pamwriter.go uses for its own parallel block
// flush).
func (s *Store) Flush() error {
	if err := s.flushBuffer(true); err != nil {
		return err
	}
	var dirty []*subtableState
	for _, st := range s.tables {
		if st.indexDirty {
			dirty = append(dirty, st)
		}
	}
	if len(dirty) == 0 {
		return nil
	}
	return traverse.Each(len(dirty), func(i int) error {
		st := dirty[i]
		if err := st.tbl.Flush(true); err != nil {
			return err
		}
		st.indexDirty = false
		return nil
	})
}

// ensureFlushed asserts "Buffer empty" before any read, per spec.md
// §4.7.
func (s *Store) ensureFlushed() error {
	if s.nBuffered == 0 {
		return nil
	}
	return s.flushBuffer(false)
}

// Scan returns every stored (non-buffered, post-flush) SubTable key
// currently known to the store, in key order — used by query.Planner
// to enumerate candidates.
func (s *Store) Scan() ([]Partition, error) {
	if err := s.ensureFlushed(); err != nil {
		return nil, err
	}
	out := make([]Partition, 0, len(s.tables))
	for k, st := range s.tables {
		out = append(out, Partition{I: k.i, J: k.j, Table: st.tbl})
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].I != out[b].I {
			return out[a].I < out[b].I
		}
		return out[a].J < out[b].J
	})
	return out, nil
}

// Partition is one (i,j) SubTable exposed to query.Planner.
type Partition struct {
	I, J  int
	Table tablestore.Table
}

// Len returns the total number of stored (flushed) edges across all
// SubTables, plus any still-buffered rows.
func (s *Store) Len() (int, error) {
	total := s.nBuffered
	for _, st := range s.tables {
		n, err := st.tbl.Len()
		if err != nil {
			return 0, errs.IOError("edge.Len", "", err)
		}
		total += n
	}
	return total, nil
}

// MaskEdge sets or clears the mask bit of the stored edge at
// (source, sink), canonicalizing the pair first. Masking is spec.md
// §3's only supported form of edge removal ("no in-place deletion of
// individual edges, only mask-style invalidation"); it requires the
// backing SubTable to implement tablestore.Masker, which the reference
// filestore backend does.
func (s *Store) MaskEdge(source, sink uint32, masked bool) error {
	src, snk := Edge{Source: source, Sink: sink}.canonical()
	if err := s.ensureFlushed(); err != nil {
		return err
	}
	key := pairKey{s.pmap.Part(src), s.pmap.Part(snk)}
	st, ok := s.tables[key]
	if !ok {
		return errs.Wrap(errs.ErrEdgeNotFound, "edge.MaskEdge", fmt.Sprintf("(%d,%d)", src, snk))
	}
	masker, ok := st.tbl.(tablestore.Masker)
	if !ok {
		return errs.Wrap(errs.ErrMaskUnsupported, "edge.MaskEdge")
	}
	if err := masker.SetMasked(src, snk, masked); err != nil {
		return err
	}
	st.dirty = true
	return nil
}

// Mappable returns a bool vector of length nRegions: true at any
// index that appears as source or sink of at least one unmasked stored
// or buffered edge (spec.md §6/§GLOSSARY); masked rows are skipped.
func (s *Store) Mappable(nRegions uint32) ([]bool, error) {
	if err := s.ensureFlushed(); err != nil {
		return nil, err
	}
	mask := make([]bool, nRegions)
	for _, st := range s.tables {
		it, err := st.tbl.Scan()
		if err != nil {
			return nil, errs.IOError("edge.Mappable.Scan", "", err)
		}
		for it.Next() {
			r := it.Row()
			if r.Masked {
				continue
			}
			if r.Source < nRegions {
				mask[r.Source] = true
			}
			if r.Sink < nRegions {
				mask[r.Sink] = true
			}
		}
		err = it.Err()
		it.Close()
		if err != nil {
			return nil, errs.IOError("edge.Mappable.Scan", "", err)
		}
	}
	return mask, nil
}
