package edge

// Triple is one scored (source, sink) pair, as yielded by
// hic.Store.MatrixEntries (spec.md §6's matrix_entries(key,
// score_field) -> iter((s,t,w))).
type Triple struct {
	Source, Sink uint32
	Score        float64
}

// Iter is a single-pass iterator over Triples, mirroring
// tablestore.RowIter's Next/Close shape for the score-triple case.
type Iter struct {
	triples []Triple
	pos     int
}

// NewIter wraps triples as an Iter.
func NewIter(triples []Triple) *Iter { return &Iter{triples: triples, pos: -1} }

func (it *Iter) Next() bool {
	it.pos++
	return it.pos < len(it.triples)
}

// Triple returns the triple last advanced to by Next.
func (it *Iter) Triple() Triple { return it.triples[it.pos] }
func (it *Iter) Err() error     { return nil }
func (it *Iter) Close() error   { return nil }
