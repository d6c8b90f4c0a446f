package hic

import (
	"github.com/grailbio/hic/region"
	"github.com/grailbio/hic/schema"
)

// regionSchema builds the canonical schema for the /regions table: the
// fixed chromosome/start/end columns spec.md §3 requires on every
// region, plus any caller-declared extension fields (region.Region.Ext).
func regionSchema(extra []schema.Field) schema.Schema {
	fields := make([]schema.Field, 0, len(extra)+3)
	fields = append(fields,
		schema.Field{Name: "chromosome", Type: schema.String},
		schema.Field{Name: "start", Type: schema.Int64},
		schema.Field{Name: "end", Type: schema.Int64},
	)
	fields = append(fields, extra...)
	return schema.Schema{Fields: fields}
}

// encodeRegionRow maps a region.Region onto a schema.Row so it can be
// persisted through the same tablestore.Table primitives edges use:
// Ix becomes Source (Sink unused), Bias reuses Weight, and !Valid
// reuses Masked — region validity is exactly the same "mask bit, not
// deleted" semantics spec.md §3 already gives edges.
func encodeRegionRow(r region.Region) schema.Row {
	fields := map[string]interface{}{
		"chromosome": r.Chromosome,
		"start":      int64(r.Start),
		"end":        int64(r.End),
	}
	for k, v := range r.Ext {
		fields[k] = v
	}
	return schema.Row{Source: r.Ix, Weight: r.Bias, Masked: !r.Valid, Fields: fields}
}

// decodeRegionRow is encodeRegionRow's inverse.
func decodeRegionRow(row schema.Row) region.Region {
	chrom, _ := row.Fields["chromosome"].(string)
	start := uint32(asInt64(row.Fields["start"]))
	end := uint32(asInt64(row.Fields["end"]))

	ext := make(map[string]interface{}, len(row.Fields))
	for k, v := range row.Fields {
		if k == "chromosome" || k == "start" || k == "end" {
			continue
		}
		ext[k] = v
	}
	if len(ext) == 0 {
		ext = nil
	}
	return region.Region{
		Ix:         row.Source,
		Chromosome: chrom,
		Start:      start,
		End:        end,
		Valid:      !row.Masked,
		Bias:       row.Weight,
		Ext:        ext,
	}
}

func asInt64(v interface{}) int64 {
	switch x := v.(type) {
	case int64:
		return x
	case int:
		return int64(x)
	case int32:
		return int64(x)
	}
	return 0
}
