package hic

import (
	"github.com/grailbio/hic/partition"
	"github.com/grailbio/hic/schema"
)

// Options configures a Store at Create time, mirroring
// encoding/pam/pamwriter.go's WriteOpts flat-struct-with-defaults
// style (validated and defaulted by DefaultOptions rather than a
// separate validate function, since every field here already has an
// unambiguous zero-safe default).
type Options struct {
	// BufThreshold is B_buf, the ingestion-buffer bulk-flush threshold
	// (spec.md §4.3). A value <=0 disables automatic flushing.
	BufThreshold int
	// PartitionStrategy decides partition breaks over the final region
	// set, applied once at region-freeze time. Defaults to
	// partition.ByChromosome() when nil.
	PartitionStrategy partition.Strategy
	// CheckNodes is the default passed to AddOpts.CheckNodes by AddEdge
	// (spec.md §6's add_edge(e, check_nodes=true)).
	CheckNodes bool
	// RegionFields declares extension columns carried in
	// region.Region.Ext, persisted alongside the built-in
	// chromosome/start/end/bias/valid columns.
	RegionFields []schema.Field
	// EdgeSchema declares the extension columns available on stored
	// edges (spec.md §4.3's per-edge schema, fixed at store-creation
	// time and shared by every SubTable per I5).
	EdgeSchema schema.Schema
}

// DefaultOptions returns check_nodes=true, ByChromosome partitioning,
// and a 4096-row bulk-flush threshold (matching blockRows in
// tablestore/filestore, so a bulk flush roughly lines up with one
// recordio block per dirty SubTable).
func DefaultOptions() Options {
	return Options{
		BufThreshold:      4096,
		PartitionStrategy: partition.ByChromosome(),
		CheckNodes:        true,
	}
}

func (o Options) strategy() partition.Strategy {
	if o.PartitionStrategy == nil {
		return partition.ByChromosome()
	}
	return o.PartitionStrategy
}
