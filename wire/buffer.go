package wire

import "github.com/weftnet/weft/types"

// Buffer is a bounded append-only byte buffer. Appends past the limit set a
// sticky overflow error and are otherwise ignored, so a serializer can run a
// whole pass and check Err once at the end.
type Buffer struct {
	b     []byte
	limit int
	err   error
}

// NewBuffer returns a Buffer that holds at most limit bytes.
func NewBuffer(limit int) *Buffer {
	return &Buffer{limit: limit}
}

func (b *Buffer) checked(out []byte) {
	if len(out) > b.limit {
		b.err = types.ErrOverflow
		return
	}
	b.b = out
}

func (b *Buffer) AppendUint8(v uint8) {
	if b.err == nil {
		b.checked(AppendUint8(b.b, v))
	}
}

func (b *Buffer) AppendUint16(v uint16) {
	if b.err == nil {
		b.checked(AppendUint16(b.b, v))
	}
}

func (b *Buffer) AppendUint32(v uint32) {
	if b.err == nil {
		b.checked(AppendUint32(b.b, v))
	}
}

func (b *Buffer) AppendUint64(v uint64) {
	if b.err == nil {
		b.checked(AppendUint64(b.b, v))
	}
}

func (b *Buffer) AppendAddress(a types.Address) {
	if b.err == nil {
		b.checked(AppendAddress(b.b, a))
	}
}

func (b *Buffer) AppendInet(a types.InetAddress) {
	if b.err == nil {
		b.checked(AppendInet(b.b, a))
	}
}

func (b *Buffer) AppendBytes(p []byte) {
	if b.err == nil {
		b.checked(append(b.b, p...))
	}
}

// Clear empties the buffer and clears any overflow error.
func (b *Buffer) Clear() {
	b.b = b.b[:0]
	b.err = nil
}

// Size returns the number of bytes appended so far.
func (b *Buffer) Size() int {
	return len(b.b)
}

// Data returns the underlying bytes. The slice is invalidated by the next
// append or Clear.
func (b *Buffer) Data() []byte {
	return b.b
}

// Err returns the sticky overflow error, if any append exceeded the limit.
func (b *Buffer) Err() error {
	return b.err
}
