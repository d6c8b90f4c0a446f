package filestore

import (
	"fmt"

	"github.com/grailbio/hic/rowmask"
	"github.com/grailbio/hic/schema"
)

// encodeMask writes m's backing words as a length-prefixed uint64
// sequence, so a block's mask bits cost one bit per row rather than
// one byte per row.
func encodeMask(b *byteBuffer, m *rowmask.Mask) {
	words, n := m.Words()
	b.PutUvarint64(uint64(n))
	b.PutUvarint64(uint64(len(words)))
	for _, w := range words {
		b.PutUvarint64(uint64(w))
	}
}

func decodeMask(b *byteBuffer) rowmask.Mask {
	n := int(b.Uvarint64())
	numWords := int(b.Uvarint64())
	words := make([]uintptr, numWords)
	for i := range words {
		words[i] = uintptr(b.Uvarint64())
	}
	return rowmask.FromWords(words, n)
}

// Row tag bytes, one per schema.FieldType, mirroring fieldio's
// per-field typed encoding.
const (
	tagInt64 byte = iota
	tagFloat64
	tagString
	tagBytes
)

// encodeRow does not carry the row's mask bit: a block's rows share a
// single rowmask.Mask bitmap written once by encodeBlock, rather than
// repeating one byte per row.
func encodeRow(sch schema.Schema, r schema.Row) []byte {
	var b byteBuffer
	b.PutUvarint64(uint64(r.Source))
	b.PutUvarint64(uint64(r.Sink))
	b.PutFloat64(r.Weight)
	for _, f := range sch.Fields {
		v, ok := r.Fields[f.Name]
		if !ok {
			v = f.Default
		}
		putTaggedValue(&b, f.Type, v)
	}
	return b.Bytes()
}

func putTaggedValue(b *byteBuffer, t schema.FieldType, v interface{}) {
	switch t {
	case schema.Int64:
		b.PutUint8(tagInt64)
		b.PutVarint64(toInt64(v))
	case schema.Float64:
		b.PutUint8(tagFloat64)
		b.PutFloat64(toFloat64(v))
	case schema.String:
		b.PutUint8(tagString)
		s, _ := v.(string)
		b.PutUvarint64(uint64(len(s)))
		b.PutRawBytes([]byte(s))
	case schema.Bytes:
		b.PutUint8(tagBytes)
		bs, _ := v.([]byte)
		b.PutUvarint64(uint64(len(bs)))
		b.PutRawBytes(bs)
	}
}

func decodeRow(sch schema.Schema, data []byte) (schema.Row, error) {
	b := newReadBuffer(data)
	r := schema.Row{
		Source: uint32(b.Uvarint64()),
		Sink:   uint32(b.Uvarint64()),
		Weight: b.Float64(),
		Fields: make(map[string]interface{}, len(sch.Fields)),
	}
	for _, f := range sch.Fields {
		tag := b.Uint8()
		switch tag {
		case tagInt64:
			r.Fields[f.Name] = b.Varint64()
		case tagFloat64:
			r.Fields[f.Name] = b.Float64()
		case tagString:
			n := int(b.Uvarint64())
			r.Fields[f.Name] = string(b.RawBytes(n))
		case tagBytes:
			n := int(b.Uvarint64())
			raw := b.RawBytes(n)
			cp := make([]byte, n)
			copy(cp, raw)
			r.Fields[f.Name] = cp
		default:
			return schema.Row{}, fmt.Errorf("filestore: corrupt row, unknown field tag %d", tag)
		}
	}
	return r, nil
}

func toInt64(v interface{}) int64 {
	switch x := v.(type) {
	case int64:
		return x
	case int:
		return int64(x)
	case int32:
		return int64(x)
	default:
		return 0
	}
}

func toFloat64(v interface{}) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	default:
		return 0
	}
}
