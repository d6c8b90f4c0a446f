// Package hic implements the persistent, partitioned storage engine
// for sparse symmetric matrices indexed by genomic regions described
// by spec.md: a Region Table, a Partition Map, an Edge Store atop a
// pluggable table-store dependency, a Query Planner, a Matrix
// Assembler, and a Buffered Matrix Overlay. Store is the composition
// root wiring these together, in the same role
// encoding/bamprovider.BAMProvider plays for BAM/PAM readers: a single
// façade over several otherwise-independent components, favoring
// composition over the source implementation's mixed-inheritance
// design (spec.md §9).
package hic

import (
	"sort"

	"github.com/grailbio/base/log"
	"github.com/grailbio/hic/bufmatrix"
	"github.com/grailbio/hic/edge"
	"github.com/grailbio/hic/errs"
	"github.com/grailbio/hic/matrix"
	"github.com/grailbio/hic/partition"
	"github.com/grailbio/hic/query"
	"github.com/grailbio/hic/region"
	"github.com/grailbio/hic/schema"
	"github.com/grailbio/hic/tablestore"
	"github.com/grailbio/hic/tablestore/filestore"
)

// Store is a single hic file: a Region Table plus an Edge Store, with
// the Query Planner and Matrix Assembler built lazily once edge
// ingestion begins.
//
// Region.Table.Freeze (spec.md §4.7's Growing -> Frozen transition) is
// triggered not by the literal first Flush call but by the first edge
// operation (AddEdge/AddEdges, or any read that needs the partition
// map) — edge.Store.AddEdge must bin a buffered row into a (i,j)
// SubTable immediately via partition.Map.Part, so the partition map
// (and therefore the frozen region set it is built from) must already
// exist before the first edge is staged, not merely before the first
// flush reaches disk. See DESIGN.md's Open Question resolutions.
type Store struct {
	tblStore tablestore.Store
	regions  *region.Table
	opts     Options

	regionsTbl tablestore.Table

	pmap        *partition.Map
	es          *edge.Store
	planner     *query.Planner
	asm         *matrix.Assembler
	edgeStarted bool
}

// Create initializes a new, empty Store at dir, backed by the
// reference tablestore/filestore implementation.
func Create(dir string, opts Options) (*Store, error) {
	st, err := filestore.Create(dir)
	if err != nil {
		return nil, err
	}
	return &Store{tblStore: st, regions: region.New(), opts: opts}, nil
}

// Open reopens a Store previously written with Create (and Closed),
// reloading its region set and partition breaks from disk.
func Open(dir string, opts Options) (*Store, error) {
	st, err := filestore.Open(dir)
	if err != nil {
		return nil, err
	}
	sch := regionSchema(opts.RegionFields)
	tbl, err := st.CreateTable("", "regions", sch)
	if err != nil {
		return nil, errs.IOError("hic.Open.CreateTable", "regions", err)
	}
	it, err := tbl.Scan()
	if err != nil {
		return nil, errs.IOError("hic.Open.Scan", "regions", err)
	}
	var rows []schema.Row
	for it.Next() {
		rows = append(rows, it.Row())
	}
	scanErr := it.Err()
	it.Close()
	if scanErr != nil {
		return nil, errs.IOError("hic.Open.Scan", "regions", scanErr)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Source < rows[j].Source })

	regions := region.New()
	for _, row := range rows {
		if _, err := regions.AppendRegion(decodeRegionRow(row)); err != nil {
			return nil, err
		}
	}
	regions.Freeze()

	breaks := decodeBreaks(st.Root().Attrs()["partition_breaks"])
	pmap := partition.FromBreaks(breaks, uint32(regions.Len()))

	es, err := edge.New(pmap, uint32(regions.Len()), opts.EdgeSchema, st, "/edges", opts.BufThreshold)
	if err != nil {
		return nil, err
	}
	planner := query.New(pmap, es)
	return &Store{
		tblStore:    st,
		regions:     regions,
		opts:        opts,
		regionsTbl:  tbl,
		pmap:        pmap,
		es:          es,
		planner:     planner,
		asm:         matrix.New(planner),
		edgeStarted: true,
	}, nil
}

// Close persists /meta_information one final time and releases the
// underlying table store's file handle. Callers must Close a Store to
// guarantee partition_breaks and region mutations are durable; Flush
// alone only guarantees SubTable and region-row durability.
func (s *Store) Close() error { return s.tblStore.Close() }

// AddRegion appends a region with default valid=true, bias=1.0, per
// spec.md §6's add_region(r). It returns errs.ErrRegionsFrozen once
// edge ingestion has begun.
func (s *Store) AddRegion(chrom string, start, end uint32) (uint32, error) {
	return s.regions.Append(chrom, start, end)
}

// AddRegionExt is AddRegion plus caller-declared extension fields
// (region.Region.Ext), which must be declared in Options.RegionFields.
func (s *Store) AddRegionExt(chrom string, start, end uint32, ext map[string]interface{}) (uint32, error) {
	r := region.Region{Chromosome: chrom, Start: start, End: end, Valid: true, Bias: 1.0, Ext: ext}
	return s.regions.AppendRegion(r)
}

// Regions resolves key against the region table (spec.md §6's
// regions(key)).
func (s *Store) Regions(key region.Key) ([]region.Region, error) {
	return s.regions.ResolveRegions(key)
}

// LenRegions returns the number of regions (spec.md §6's len_regions()).
func (s *Store) LenRegions() int { return s.regions.Len() }

// ApplyBias sets region ix's normalization bias in place (SPEC_FULL.md
// §9, modeled on kaic/tools/matrix.py's in-place regions[i].bias
// assignment).
func (s *Store) ApplyBias(ix uint32, bias float64) error { return s.regions.SetBias(ix, bias) }

// SetValid sets region ix's validity in place, and keeps the on-disk
// /regions row's mask bit in sync if it has already been persisted.
func (s *Store) SetValid(ix uint32, valid bool) error {
	if err := s.regions.SetValid(ix, valid); err != nil {
		return err
	}
	if s.regionsTbl == nil {
		return nil
	}
	masker, ok := s.regionsTbl.(tablestore.Masker)
	if !ok {
		return nil
	}
	return masker.SetMasked(ix, 0, !valid)
}

// DefaultAddOpts returns AddOpts with CheckNodes set from
// Options.CheckNodes.
func (s *Store) DefaultAddOpts() edge.AddOpts { return edge.AddOpts{CheckNodes: s.opts.CheckNodes} }

// AddEdge stages a single edge (spec.md §6's add_edge(e,
// check_nodes=true)), freezing the region table and constructing the
// Edge Store on the very first call.
func (s *Store) AddEdge(e edge.Edge, opts edge.AddOpts) error {
	if err := s.ensureEdgesStarted(); err != nil {
		return err
	}
	return s.es.AddEdge(e, opts)
}

// AddEdges stages every edge produced by it (spec.md §6's add_edges(iter)).
func (s *Store) AddEdges(it func() (edge.Edge, bool, error), opts edge.AddOpts) error {
	if err := s.ensureEdgesStarted(); err != nil {
		return err
	}
	return s.es.AddEdges(it, opts)
}

// MaskEdge applies spec.md §3's mask-style invalidation to the stored
// edge at (source, sink).
func (s *Store) MaskEdge(source, sink uint32, masked bool) error {
	if err := s.ensureEdgesStarted(); err != nil {
		return err
	}
	return s.es.MaskEdge(source, sink, masked)
}

// LenEdges returns the total stored-plus-buffered edge count (spec.md
// §6's len_edges()).
func (s *Store) LenEdges() (int, error) {
	if err := s.ensureEdgesStarted(); err != nil {
		return 0, err
	}
	return s.es.Len()
}

// Edges returns every unmasked stored edge within key, treating key as
// both the row and column axis (spec.md §6's edges(key): for a single
// range R, the yielded rows are every stored edge with both endpoints
// in R). For a list key the window is the envelope from its lowest to
// its highest resolved index; edges in gaps of the list are not
// excluded.
func (s *Store) Edges(key region.Key) ([]query.Row, error) {
	if err := s.ensureEdgesStarted(); err != nil {
		return nil, err
	}
	ixs, err := s.regions.Resolve(key)
	if err != nil {
		return nil, err
	}
	rows, err := s.planner.Query(ixs, ixs)
	if err != nil {
		return nil, err
	}
	out := make([]query.Row, len(rows))
	for i, r := range rows {
		out[i] = query.Row(r)
	}
	return out, nil
}

// EdgeSubset is an alias for Edges, matching spec.md §6's dual naming
// ("edges(key) / edge_subset(key)" for the same operation).
func (s *Store) EdgeSubset(key region.Key) ([]query.Row, error) { return s.Edges(key) }

// Matrix assembles the dense window for (rowKey, colKey) (spec.md §6's
// matrix(key, score_field, default, mask_invalid)); pass the same key
// for both arguments for the single-key "square window" form.
func (s *Store) Matrix(rowKey, colKey region.Key, opts matrix.Options) (*matrix.RegionMatrix, error) {
	if err := s.ensureEdgesStarted(); err != nil {
		return nil, err
	}
	rowRegions, err := s.regions.ResolveRegions(rowKey)
	if err != nil {
		return nil, err
	}
	colRegions, err := s.regions.ResolveRegions(colKey)
	if err != nil {
		return nil, err
	}
	return s.asm.Assemble(rowRegions, colRegions, opts)
}

// MatrixEntries returns an iterator over (source, sink, score) triples
// for (rowKey, colKey) without materializing a dense array (spec.md
// §6's matrix_entries(key, score_field) -> iter((s,t,w))).
func (s *Store) MatrixEntries(rowKey, colKey region.Key, scoreField string) (*edge.Iter, error) {
	if err := s.ensureEdgesStarted(); err != nil {
		return nil, err
	}
	rowIxs, err := s.regions.Resolve(rowKey)
	if err != nil {
		return nil, err
	}
	colIxs, err := s.regions.Resolve(colKey)
	if err != nil {
		return nil, err
	}
	rows, err := s.planner.Query(rowIxs, colIxs)
	if err != nil {
		return nil, err
	}
	inRow := make(map[uint32]bool, len(rowIxs))
	for _, ix := range rowIxs {
		inRow[ix] = true
	}
	inCol := make(map[uint32]bool, len(colIxs))
	for _, ix := range colIxs {
		inCol[ix] = true
	}
	triples := make([]edge.Triple, 0, len(rows))
	for _, r := range rows {
		if !(inRow[r.Source] && inCol[r.Sink]) && !(inRow[r.Sink] && inCol[r.Source]) {
			continue
		}
		triples = append(triples, edge.Triple{Source: r.Source, Sink: r.Sink, Score: matrix.ScoreOf(r, scoreField)})
	}
	return edge.NewIter(triples), nil
}

// Mappable returns the bool-vector of spec.md §6: true at any index
// appearing as source or sink of at least one unmasked stored or
// buffered edge.
func (s *Store) Mappable() ([]bool, error) {
	if err := s.ensureEdgesStarted(); err != nil {
		return nil, err
	}
	return s.es.Mappable(uint32(s.regions.Len()))
}

// NewOverlay returns a Buffered Matrix Overlay (spec.md §4.6) over
// this store's regions and matrix assembler.
func (s *Store) NewOverlay(strategy bufmatrix.Strategy) (*bufmatrix.Overlay, error) {
	if err := s.ensureEdgesStarted(); err != nil {
		return nil, err
	}
	return bufmatrix.New(s.regions, s.asm, strategy), nil
}

// Flush drains the ingestion buffer to SubTables, rebuilds dirty
// indexes, and writes out the /regions table (spec.md §6's
// flush(silent)); silent only suppresses the progress log line,
// mirroring the original's silent=hide_progressbars parameter — it
// does not change error-handling behavior.
func (s *Store) Flush(silent bool) error {
	if !silent {
		log.Debug.Printf("hic: flush starting (%d regions)", s.regions.Len())
	}
	if err := s.ensureEdgesStarted(); err != nil {
		return err
	}
	if err := s.regionsTbl.Flush(false); err != nil {
		return errs.IOError("hic.Flush.regions", "regions", err)
	}
	if err := s.es.Flush(); err != nil {
		return err
	}
	if err := s.tblStore.Root().SetAttr("partition_breaks", s.pmap.Breaks()); err != nil {
		return err
	}
	if !silent {
		log.Debug.Printf("hic: flush complete (%d edges)", s.mustLen())
	}
	return nil
}

func (s *Store) mustLen() int {
	n, err := s.es.Len()
	if err != nil {
		return -1
	}
	return n
}

// ensureEdgesStarted performs the Growing->Frozen transition (spec.md
// §4.7) on first use and constructs the edge/query/matrix components,
// which all depend on the now-final partition map.
func (s *Store) ensureEdgesStarted() error {
	if s.edgeStarted {
		return nil
	}
	s.regions.Freeze()
	s.pmap = partition.Build(s.regions.Iter(false), s.opts.strategy())

	sch := regionSchema(s.opts.RegionFields)
	tbl, err := s.tblStore.CreateTable("", "regions", sch)
	if err != nil {
		return errs.IOError("hic.ensureEdgesStarted.CreateTable", "regions", err)
	}
	s.regionsTbl = tbl
	if rows := regionRows(s.regions); len(rows) > 0 {
		if err := tbl.Append(rows); err != nil {
			return errs.IOError("hic.ensureEdgesStarted.Append", "regions", err)
		}
	}

	es, err := edge.New(s.pmap, uint32(s.regions.Len()), s.opts.EdgeSchema, s.tblStore, "/edges", s.opts.BufThreshold)
	if err != nil {
		return err
	}
	s.es = es
	s.planner = query.New(s.pmap, es)
	s.asm = matrix.New(s.planner)
	s.edgeStarted = true
	return nil
}

func regionRows(t *region.Table) []schema.Row {
	regions := t.Iter(false)
	rows := make([]schema.Row, len(regions))
	for i, r := range regions {
		rows[i] = encodeRegionRow(r)
	}
	return rows
}

func decodeBreaks(v interface{}) []uint32 {
	switch x := v.(type) {
	case []uint32:
		return x
	case []interface{}:
		out := make([]uint32, len(x))
		for i, e := range x {
			if f, ok := e.(float64); ok {
				out[i] = uint32(f)
			}
		}
		return out
	default:
		return nil
	}
}
