package bitmap

import (
	"math/rand"
	"strings"
)

// A Dense is a bitmap where every bit is explicitly represented. Bits past
// Size() are always zero.
//
// Dense values share their backing storage when copied; Clone before mutating
// a value that is also held elsewhere.
type Dense struct {
	bits []byte
	len  int
}

// NewDense returns a new dense bitmap whose contents are a copy of data, and
// whose length is bitLen. If bitLen is longer than data, then trailing zeros
// are added. If bitLen is negative, then it is inferred from data.
func NewDense(data []byte, bitLen int) Dense {
	if bitLen < 0 {
		bitLen = len(data) * byteSize
	}
	r := Dense{
		bits: make([]byte, BytesFor(bitLen)),
		len:  bitLen,
	}
	copy(r.bits, data)
	r.clearPadding()
	return r
}

// Get returns the i-th bit in this bitmap. Out of range bits read as zero.
func (d Dense) Get(i int) bool {
	if i < 0 || i >= d.len {
		return false
	}
	return 0 < d.bits[i/byteSize]&(1<<(i%byteSize))
}

// Size returns the number of bits in this bitmap.
func (d Dense) Size() int {
	return d.len
}

// SizeBytes returns the number of bytes in this bitmap.
func (d Dense) SizeBytes() int {
	return BytesFor(d.len)
}

// Data returns a view of the bytes underlying this bitmap. Modifying the
// returned slice modifies this bitmap.
func (d Dense) Data() []byte {
	return d.bits
}

// Clone returns a copy of d which shares no storage with it.
func (d Dense) Clone() Dense {
	return NewDense(d.bits, d.len)
}

// String renders d as a string of '0's and '1's, lowest index first.
func (d Dense) String() string {
	var sb strings.Builder
	sb.Grow(d.len)
	for i := 0; i < d.len; i++ {
		if d.Get(i) {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

// Shuffle randomly permutes the contents of d, using r as a source of
// randomness.
func (d *Dense) Shuffle(r *rand.Rand) {
	r.Shuffle(d.len, d.swap)
}

func (d *Dense) swap(i, j int) {
	a, b := d.Get(i), d.Get(j)
	if a == b {
		return
	}
	d.Flip(i)
	d.Flip(j)
}

// Flip inverts the i-th bit. i must be in [0, Size()).
func (d *Dense) Flip(i int) {
	j, pos := i/byteSize, i%byteSize
	d.bits[j] ^= 1 << pos
}

// Set assigns the i-th bit. i must be in [0, Size()).
func (d *Dense) Set(i int, bit bool) {
	if d.Get(i) != bit {
		d.Flip(i)
	}
}

// AppendBit adds a single bit to the end of d.
func (d *Dense) AppendBit(bit bool) {
	i, pos := d.len/byteSize, d.len%byteSize
	d.len += 1
	if pos == 0 {
		d.bits = append(d.bits, 0)
	}
	if bit {
		d.bits[i] |= 1 << pos
	} else {
		d.bits[i] &= ^(1 << pos)
	}
}

// Append adds the contents of d2 to the end of d.
func (d *Dense) Append(d2 Dense) {
	src := d2.bits[:d2.SizeBytes()]
	off := d.len % byteSize
	if off == 0 {
		d.bits = append(d.bits[:d.SizeBytes()], src...)
		d.len += d2.len
		return
	}
	d.bits = d.bits[:d.SizeBytes()]
	for _, b := range src {
		d.bits[len(d.bits)-1] |= b << off
		d.bits = append(d.bits, b>>(byteSize-off))
	}
	d.len += d2.len
	d.bits = d.bits[:d.SizeBytes()]
}

func (d *Dense) clearPadding() {
	if off := d.len % byteSize; off != 0 {
		d.bits[len(d.bits)-1] &= byte(1)<<off - 1
	}
}
