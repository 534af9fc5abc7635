package bitmap

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the packed bitmap message:
//
//	message DenseBitArray {
//	  bytes bits = 1;
//	  int32 len = 2;
//	}
const (
	wireBits protowire.Number = 1
	wireLen  protowire.Number = 2
)

// Marshal encodes d as a DenseBitArray message in protobuf wire format.
func Marshal(d Dense) []byte {
	var b []byte
	if d.len > 0 {
		b = protowire.AppendTag(b, wireBits, protowire.BytesType)
		b = protowire.AppendBytes(b, d.bits[:d.SizeBytes()])
		b = protowire.AppendTag(b, wireLen, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(d.len))
	}
	return b
}

// Unmarshal decodes a DenseBitArray message produced by Marshal. Unknown
// fields are skipped.
func Unmarshal(b []byte) (Dense, error) {
	var (
		data   []byte
		bitLen uint64
	)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Dense{}, fmt.Errorf("decoding bitmap tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch {
		case num == wireBits && typ == protowire.BytesType:
			data, n = protowire.ConsumeBytes(b)
		case num == wireLen && typ == protowire.VarintType:
			bitLen, n = protowire.ConsumeVarint(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return Dense{}, fmt.Errorf("decoding bitmap field %d: %w", num, protowire.ParseError(n))
		}
		b = b[n:]
	}
	if bitLen > uint64(len(data))*byteSize {
		return Dense{}, fmt.Errorf("bitmap claims %d bits but carries %d bytes", bitLen, len(data))
	}
	return NewDense(data, int(bitLen)), nil
}
