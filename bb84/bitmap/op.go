package bitmap

import "fmt"

// And returns the bitwise AND of two bitmaps. The shorter operand is treated
// as if padded with trailing zeros, so the result has the longer size.
func And(a, b Dense) Dense {
	return combine(a, b, func(x, y byte) byte { return x & y })
}

// Or returns the bitwise OR of two bitmaps, padding as And does.
func Or(a, b Dense) Dense {
	return combine(a, b, func(x, y byte) byte { return x | y })
}

// XOr returns the bitwise XOR of two bitmaps, padding as And does.
func XOr(a, b Dense) Dense {
	return combine(a, b, func(x, y byte) byte { return x ^ y })
}

// XNor returns the bitwise XNOR (equality) of two bitmaps, padding as And
// does.
func XNor(a, b Dense) Dense {
	return combine(a, b, func(x, y byte) byte { return ^(x ^ y) })
}

// Choose returns a bitmap which takes its i-th bit from b where mask is set
// and from a elsewhere.
func Choose(a, b, mask Dense) Dense {
	return XOr(a, And(XOr(a, b), mask))
}

// Slice copies bits [start, end) of d into a new bitmap.
func Slice(d Dense, start, end int) (Dense, error) {
	if end > d.len {
		return Dense{}, fmt.Errorf("slicing bitmap of len %d up to %d", d.len, end)
	}
	if start < 0 {
		return Dense{}, fmt.Errorf("slicing bitmap with negative start: %d", start)
	}
	if end < start {
		return Dense{}, fmt.Errorf("slicing bitmap to negative length: %d", end-start)
	}

	r := Dense{}
	for ; start < end && start%byteSize != 0; start++ {
		r.AppendBit(d.Get(start))
	}
	if start < end {
		j := start / byteSize
		r.Append(NewDense(d.bits[j:BytesFor(end)], end-start))
	}
	return r, nil
}

func combine(a, b Dense, op func(x, y byte) byte) Dense {
	n := a.len
	if b.len > n {
		n = b.len
	}
	r := Dense{
		bits: make([]byte, BytesFor(n)),
		len:  n,
	}
	for i := range r.bits {
		r.bits[i] = op(a.byteAt(i), b.byteAt(i))
	}
	r.clearPadding()
	return r
}

func (d Dense) byteAt(i int) byte {
	if i < len(d.bits) {
		return d.bits[i]
	}
	return 0
}
