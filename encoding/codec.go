// Package encoding implements the deterministic, length-prefixed binary
// codec described in spec.md section 4.1: fixed-width little-endian
// integers, 32-byte digests, 32-bit length-prefixed byte strings, and
// 1-byte tags for variant discrimination. Two equal logical values always
// produce identical bytes, since trie node digests are taken over this
// encoding and consensus depends on it.
//
// The shape follows Carmen's common/serializers.go: one small serializer
// per concrete type, composed by hand rather than through reflection.
package encoding

import (
	"encoding/binary"
	"fmt"

	"github.com/casper-network/casper-global-state/digest"
	"github.com/casper-network/casper-global-state/gserr"
)

// Writer accumulates a canonical byte encoding.
type Writer struct {
	buf []byte
}

func NewWriter() *Writer {
	return &Writer{}
}

func (w *Writer) Bytes() []byte {
	return w.buf
}

func (w *Writer) WriteTag(tag byte) {
	w.buf = append(w.buf, tag)
}

func (w *Writer) WriteUint32(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

func (w *Writer) WriteUint64(v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

// WriteBytes appends a 32-bit length prefix followed by the raw bytes.
func (w *Writer) WriteBytes(b []byte) {
	w.WriteUint32(uint32(len(b)))
	w.buf = append(w.buf, b...)
}

// WriteFixed appends raw bytes with no length prefix, for fields whose
// length is implied by the shape (digests, fixed-width numeric deltas).
func (w *Writer) WriteFixed(b []byte) {
	w.buf = append(w.buf, b...)
}

func (w *Writer) WriteHash(h digest.Hash) {
	w.WriteFixed(h[:])
}

// Reader consumes a canonical byte encoding produced by Writer, returning
// gserr.Formatting on truncation and gserr.LeftoverBytes if bytes remain
// after the top-level decode finishes.
type Reader struct {
	buf []byte
	pos int
}

func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

func (r *Reader) remaining() int {
	return len(r.buf) - r.pos
}

func (r *Reader) ReadTag() (byte, error) {
	if r.remaining() < 1 {
		return 0, fmt.Errorf("reading tag at offset %d: %w", r.pos, gserr.Formatting)
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *Reader) ReadUint32() (uint32, error) {
	if r.remaining() < 4 {
		return 0, fmt.Errorf("reading uint32 at offset %d: %w", r.pos, gserr.Formatting)
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos : r.pos+4])
	r.pos += 4
	return v, nil
}

func (r *Reader) ReadUint64() (uint64, error) {
	if r.remaining() < 8 {
		return 0, fmt.Errorf("reading uint64 at offset %d: %w", r.pos, gserr.Formatting)
	}
	v := binary.LittleEndian.Uint64(r.buf[r.pos : r.pos+8])
	r.pos += 8
	return v, nil
}

func (r *Reader) ReadBytes() ([]byte, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	return r.ReadFixed(int(n))
}

func (r *Reader) ReadFixed(n int) ([]byte, error) {
	if n < 0 || r.remaining() < n {
		return nil, fmt.Errorf("reading %d bytes at offset %d: %w", n, r.pos, gserr.Formatting)
	}
	out := make([]byte, n)
	copy(out, r.buf[r.pos:r.pos+n])
	r.pos += n
	return out, nil
}

func (r *Reader) ReadHash() (digest.Hash, error) {
	b, err := r.ReadFixed(digest.Size)
	if err != nil {
		return digest.Hash{}, err
	}
	return digest.FromBytes(b), nil
}

// Finish must be called once the caller believes it has consumed the
// entire buffer; it fails with gserr.LeftoverBytes if that isn't true.
func (r *Reader) Finish() error {
	if r.remaining() != 0 {
		return fmt.Errorf("%d trailing bytes after decode: %w", r.remaining(), gserr.LeftoverBytes)
	}
	return nil
}
