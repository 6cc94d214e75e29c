package pdx

import "fmt"

// Chunk is one node of the binary format: a short tag, a payload kind, and
// either a typed payload (leaf) or ordered children (container), never both.
// The tree codec here knows nothing about mesh or animation semantics.
type Chunk struct {
	Tag  string
	Kind ChunkKind

	Ints   []int32
	Uints  []uint32
	Floats []float32
	Str    string

	Children []*Chunk
}

func NewContainer(tag string) *Chunk {
	return &Chunk{Tag: tag, Kind: KindNone}
}

func NewInt32Chunk(tag string, vals ...int32) *Chunk {
	return &Chunk{Tag: tag, Kind: KindInt32, Ints: vals}
}

func NewUint32Chunk(tag string, vals ...uint32) *Chunk {
	return &Chunk{Tag: tag, Kind: KindUint32, Uints: vals}
}

// NewFloatChunk builds a float leaf. kind selects the element arity
// (KindFloat32..KindFloat4); vals is the flattened component stream and must
// be a multiple of the arity.
func NewFloatChunk(tag string, kind ChunkKind, vals []float32) *Chunk {
	if kind.Arity() == 0 {
		panic("pdx: NewFloatChunk with non-float kind " + kind.String())
	}
	if len(vals)%kind.Arity() != 0 {
		panic(fmt.Sprintf("pdx: float chunk %q: %d components is not a multiple of arity %d", tag, len(vals), kind.Arity()))
	}
	return &Chunk{Tag: tag, Kind: kind, Floats: vals}
}

func NewStringChunk(tag, val string) *Chunk {
	return &Chunk{Tag: tag, Kind: KindString, Str: val}
}

func (c *Chunk) IsContainer() bool {
	return c.Kind == KindNone
}

// ElementCount is the number of typed elements in a leaf payload, or the
// child count of a container.
func (c *Chunk) ElementCount() int {
	switch c.Kind {
	case KindNone:
		return len(c.Children)
	case KindInt32:
		return len(c.Ints)
	case KindUint32:
		return len(c.Uints)
	case KindString:
		return 1
	default:
		return len(c.Floats) / c.Kind.Arity()
	}
}

// AppendChild attaches child to a container, preserving insertion order.
// Leaves cannot take children.
func (c *Chunk) AppendChild(child *Chunk) error {
	if !c.IsContainer() {
		return fmt.Errorf("chunk %q is a %s leaf, cannot hold children: %w", c.Tag, c.Kind, ErrSchemaViolation)
	}
	c.Children = append(c.Children, child)
	return nil
}

// Child returns the first child with the given tag, or nil.
func (c *Chunk) Child(tag string) *Chunk {
	for _, ch := range c.Children {
		if ch.Tag == tag {
			return ch
		}
	}
	return nil
}

// ChildrenTagged returns all children with the given tag, in order.
func (c *Chunk) ChildrenTagged(tag string) []*Chunk {
	var out []*Chunk
	for _, ch := range c.Children {
		if ch.Tag == tag {
			out = append(out, ch)
		}
	}
	return out
}

// payloadBytes is the encoded payload size of a leaf.
func (c *Chunk) payloadBytes() int {
	switch c.Kind {
	case KindInt32:
		return 4 * len(c.Ints)
	case KindUint32:
		return 4 * len(c.Uints)
	case KindString:
		return 4 + len(c.Str)
	default:
		return 4 * len(c.Floats)
	}
}

// EncodeChunk emits the chunk depth-first pre-order: tag, kind byte, payload
// byte length, then payload or children. Containers carry the encoded size
// of all their children so a reader can seek past chunks it does not know.
func EncodeChunk(w *Writer, c *Chunk) {
	w.WriteTag(c.Tag)
	w.WriteUint8(uint8(c.Kind))
	if c.IsContainer() {
		inner := NewWriter()
		for _, ch := range c.Children {
			EncodeChunk(inner, ch)
		}
		w.WriteUint32(uint32(inner.Len()))
		w.WriteBytes(inner.Bytes())
		return
	}
	w.WriteUint32(uint32(c.payloadBytes()))
	switch c.Kind {
	case KindInt32:
		w.WriteInt32s(c.Ints)
	case KindUint32:
		w.WriteUint32s(c.Uints)
	case KindString:
		w.WriteString(c.Str)
	default:
		w.WriteFloat32s(c.Floats)
	}
}

// DecodeChunk mirrors EncodeChunk. A declared length past the buffer end or
// an unrecognized kind byte fails with ErrMalformedChunk; a buffer that ends
// mid-header fails with ErrTruncatedData.
func DecodeChunk(r *Reader) (*Chunk, error) {
	start := r.Pos()
	tag, err := r.ReadTag()
	if err != nil {
		return nil, err
	}
	kb, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	size, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	kind := ChunkKind(kb)
	if kind >= kindCount {
		return nil, fmt.Errorf("chunk %q at offset %d: unknown payload kind 0x%02x: %w", tag, start, kb, ErrMalformedChunk)
	}
	if int(size) > r.Remaining() {
		return nil, fmt.Errorf("chunk %q at offset %d: declared length %d exceeds remaining %d bytes: %w", tag, start, size, r.Remaining(), ErrMalformedChunk)
	}
	body, err := r.Sub(int(size))
	if err != nil {
		return nil, err
	}

	c := &Chunk{Tag: tag, Kind: kind}
	if kind == KindNone {
		for body.Remaining() > 0 {
			child, err := DecodeChunk(body)
			if err != nil {
				return nil, err
			}
			c.Children = append(c.Children, child)
		}
		return c, nil
	}

	switch kind {
	case KindInt32:
		if size%4 != 0 {
			return nil, malformedPayload(tag, start, size)
		}
		c.Ints, err = body.ReadInt32s(int(size) / 4)
	case KindUint32:
		if size%4 != 0 {
			return nil, malformedPayload(tag, start, size)
		}
		c.Uints, err = body.ReadUint32s(int(size) / 4)
	case KindString:
		c.Str, err = body.ReadString()
		if err == nil && body.Remaining() != 0 {
			return nil, malformedPayload(tag, start, size)
		}
	default:
		stride := 4 * kind.Arity()
		if int(size)%stride != 0 {
			return nil, malformedPayload(tag, start, size)
		}
		c.Floats, err = body.ReadFloat32s(int(size) / 4)
	}
	if err != nil {
		// Length declared by the chunk disagrees with its own payload.
		return nil, fmt.Errorf("chunk %q at offset %d: %w: %w", tag, start, err, ErrMalformedChunk)
	}
	return c, nil
}

func malformedPayload(tag string, offset int, size uint32) error {
	return fmt.Errorf("chunk %q at offset %d: payload length %d inconsistent with kind: %w", tag, offset, size, ErrMalformedChunk)
}
