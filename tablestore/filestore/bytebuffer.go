package filestore

// byteBuffer is a varint-oriented row encoder/decoder used by
// encode.go and table.go's block (de)serialization. Writing goes
// through bytes.Buffer, the same append-based growth the rest of this
// package already relies on for recordio block assembly, rather than
// a hand-rolled capacity formula. Reading walks a fixed byte slice
// with a cursor, since a decoded block is already fully materialized
// in memory before any field is pulled out of it.
import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/grailbio/base/log"
)

type byteBuffer struct {
	w   bytes.Buffer
	buf []byte
	pos int
}

func newReadBuffer(data []byte) *byteBuffer { return &byteBuffer{buf: data} }

func (b *byteBuffer) Uint8() uint8 {
	v := b.buf[b.pos]
	b.pos++
	return v
}

func (b *byteBuffer) Float64() float64 {
	v := binary.LittleEndian.Uint64(b.buf[b.pos:])
	b.pos += 8
	return math.Float64frombits(v)
}

func (b *byteBuffer) Uvarint64() uint64 {
	v, n := binary.Uvarint(b.buf[b.pos:])
	if n <= 0 {
		log.Panic("filestore.byteBuffer.Uvarint64: underflow")
	}
	b.pos += n
	return v
}

func (b *byteBuffer) Varint64() int64 {
	v, n := binary.Varint(b.buf[b.pos:])
	if n <= 0 {
		log.Panic("filestore.byteBuffer.Varint64: underflow")
	}
	b.pos += n
	return v
}

func (b *byteBuffer) RawBytes(n int) []byte {
	v := b.buf[b.pos : b.pos+n]
	b.pos += n
	return v
}

func (b *byteBuffer) PutUint8(v uint8) {
	b.w.WriteByte(v)
}

func (b *byteBuffer) PutFloat64(v float64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], math.Float64bits(v))
	b.w.Write(tmp[:])
}

func (b *byteBuffer) PutUvarint64(v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	b.w.Write(tmp[:n])
}

func (b *byteBuffer) PutVarint64(v int64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutVarint(tmp[:], v)
	b.w.Write(tmp[:n])
}

func (b *byteBuffer) PutRawBytes(v []byte) {
	b.w.Write(v)
}

func (b *byteBuffer) Bytes() []byte { return b.w.Bytes() }
func (b *byteBuffer) Len() int      { return b.w.Len() }
