package pdx

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// Reader is a little-endian token reader over an in-memory buffer. Every
// read is bounds checked and fails with ErrTruncatedData carrying the
// absolute offset, so chunk errors can name the exact position.
type Reader struct {
	data []byte
	pos  int
	base int
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Pos reports the absolute offset in the original buffer, including the
// offset of any enclosing sub-reader.
func (r *Reader) Pos() int {
	return r.base + r.pos
}

func (r *Reader) Remaining() int {
	return len(r.data) - r.pos
}

func (r *Reader) take(n int) ([]byte, error) {
	if n < 0 || r.Remaining() < n {
		return nil, fmt.Errorf("need %d bytes at offset %d, have %d: %w", n, r.Pos(), r.Remaining(), ErrTruncatedData)
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// Sub carves out the next n bytes as an independent reader and advances past
// them. The sub-reader keeps reporting absolute offsets.
func (r *Reader) Sub(n int) (*Reader, error) {
	base := r.Pos()
	b, err := r.take(n)
	if err != nil {
		return nil, err
	}
	return &Reader{data: b, base: base}, nil
}

func (r *Reader) Skip(n int) error {
	_, err := r.take(n)
	return err
}

func (r *Reader) ReadBytes(n int) ([]byte, error) {
	b, err := r.take(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

func (r *Reader) ReadUint8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) ReadUint32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *Reader) ReadInt32() (int32, error) {
	v, err := r.ReadUint32()
	return int32(v), err
}

func (r *Reader) ReadFloat32() (float32, error) {
	v, err := r.ReadUint32()
	return math.Float32frombits(v), err
}

func (r *Reader) ReadInt32s(n int) ([]int32, error) {
	b, err := r.take(4 * n)
	if err != nil {
		return nil, err
	}
	out := make([]int32, n)
	for i := range out {
		out[i] = int32(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return out, nil
}

func (r *Reader) ReadUint32s(n int) ([]uint32, error) {
	b, err := r.take(4 * n)
	if err != nil {
		return nil, err
	}
	out := make([]uint32, n)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(b[4*i:])
	}
	return out, nil
}

func (r *Reader) ReadFloat32s(n int) ([]float32, error) {
	b, err := r.take(4 * n)
	if err != nil {
		return nil, err
	}
	out := make([]float32, n)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return out, nil
}

// ReadTag reads a fixed-width tag and strips the NUL padding.
func (r *Reader) ReadTag() (string, error) {
	b, err := r.take(TagWidth)
	if err != nil {
		return "", err
	}
	return string(bytes.TrimRight(b, "\x00")), nil
}

// ReadString reads a uint32 byte-count prefixed string. Strings are not NUL
// terminated.
func (r *Reader) ReadString() (string, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return "", err
	}
	b, err := r.take(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Writer is the little-endian counterpart of Reader. Writes cannot fail
// short of allocation exhaustion.
type Writer struct {
	buf bytes.Buffer
}

func NewWriter() *Writer {
	return &Writer{}
}

func (w *Writer) Len() int {
	return w.buf.Len()
}

func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}

func (w *Writer) WriteBytes(b []byte) {
	w.buf.Write(b)
}

func (w *Writer) WriteUint8(v uint8) {
	w.buf.WriteByte(v)
}

func (w *Writer) WriteUint32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

func (w *Writer) WriteInt32(v int32) {
	w.WriteUint32(uint32(v))
}

func (w *Writer) WriteFloat32(v float32) {
	w.WriteUint32(math.Float32bits(v))
}

func (w *Writer) WriteInt32s(vs []int32) {
	for _, v := range vs {
		w.WriteInt32(v)
	}
}

func (w *Writer) WriteUint32s(vs []uint32) {
	for _, v := range vs {
		w.WriteUint32(v)
	}
}

func (w *Writer) WriteFloat32s(vs []float32) {
	for _, v := range vs {
		w.WriteFloat32(v)
	}
}

// WriteTag writes s at the fixed tag width, NUL padded or truncated.
func (w *Writer) WriteTag(s string) {
	var b [TagWidth]byte
	copy(b[:], s)
	w.buf.Write(b[:])
}

// WriteString writes a uint32 byte-count prefixed string.
func (w *Writer) WriteString(s string) {
	w.WriteUint32(uint32(len(s)))
	w.buf.WriteString(s)
}
