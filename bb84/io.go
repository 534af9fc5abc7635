package bb84

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/alan-christopher/bb84sim/bb84/bitmap"
	"github.com/alan-christopher/bb84sim/bb84/photon"
)

// maxRecordBytes bounds the size of a single transcript record, so that a
// corrupt length prefix cannot trigger an enormous allocation.
const maxRecordBytes = 1 << 28

// Wire schema of a Result:
//
//	message Result {
//	  int64 symbols = 1;
//	  bool eavesdropped = 2;
//	  DenseBitArray alice_bits = 3;
//	  DenseBitArray alice_bases = 4;
//	  DenseBitArray eve_bits = 5;
//	  DenseBitArray eve_bases = 6;
//	  DenseBitArray bob_bases = 7;
//	  DenseBitArray bob_bits = 8;
//	  DenseBitArray alice_key = 9;
//	  DenseBitArray bob_key = 10;
//	  double qber = 11;
//	  Estimate estimate = 12;
//	}
//
//	message Estimate {
//	  double qber = 1;
//	  int64 disclosed = 2;
//	  DenseBitArray kept_a = 3;
//	  DenseBitArray kept_b = 4;
//	}
//
// Bases are stored with set bits denoting the diagonal basis. The sifting
// mask is not stored; it is recomputed from the bases.
const (
	fieldSymbols      protowire.Number = 1
	fieldEavesdropped protowire.Number = 2
	fieldAliceBits    protowire.Number = 3
	fieldAliceBases   protowire.Number = 4
	fieldEveBits      protowire.Number = 5
	fieldEveBases     protowire.Number = 6
	fieldBobBases     protowire.Number = 7
	fieldBobBits      protowire.Number = 8
	fieldAliceKey     protowire.Number = 9
	fieldBobKey       protowire.Number = 10
	fieldQBER         protowire.Number = 11
	fieldEstimate     protowire.Number = 12

	fieldEstQBER      protowire.Number = 1
	fieldEstDisclosed protowire.Number = 2
	fieldEstKeptA     protowire.Number = 3
	fieldEstKeptB     protowire.Number = 4
)

// MarshalResult encodes r in protobuf wire format.
func MarshalResult(r Result) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldSymbols, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.Symbols))
	b = protowire.AppendTag(b, fieldEavesdropped, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeBool(r.Eavesdropped))
	b = appendBitmap(b, fieldAliceBits, r.AliceBits)
	b = appendBitmap(b, fieldAliceBases, r.AliceBases.Bitmap())
	if r.Eavesdropped {
		b = appendBitmap(b, fieldEveBits, r.EveBits)
		b = appendBitmap(b, fieldEveBases, r.EveBases.Bitmap())
	}
	b = appendBitmap(b, fieldBobBases, r.BobBases.Bitmap())
	b = appendBitmap(b, fieldBobBits, r.BobBits)
	b = appendBitmap(b, fieldAliceKey, r.AliceKey)
	b = appendBitmap(b, fieldBobKey, r.BobKey)
	b = protowire.AppendTag(b, fieldQBER, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, math.Float64bits(r.QBER))
	if r.Estimate != nil {
		var e []byte
		e = protowire.AppendTag(e, fieldEstQBER, protowire.Fixed64Type)
		e = protowire.AppendFixed64(e, math.Float64bits(r.Estimate.QBER))
		e = protowire.AppendTag(e, fieldEstDisclosed, protowire.VarintType)
		e = protowire.AppendVarint(e, uint64(r.Estimate.Disclosed))
		e = appendBitmap(e, fieldEstKeptA, r.Estimate.KeptA)
		e = appendBitmap(e, fieldEstKeptB, r.Estimate.KeptB)
		b = protowire.AppendTag(b, fieldEstimate, protowire.BytesType)
		b = protowire.AppendBytes(b, e)
	}
	return b
}

// UnmarshalResult decodes a Result produced by MarshalResult and checks that
// its sequences are consistently sized.
func UnmarshalResult(b []byte) (Result, error) {
	var r Result
	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case fieldSymbols:
			v, n, err := consumeVarint(typ, b)
			r.Symbols = int(v)
			return n, err
		case fieldEavesdropped:
			v, n, err := consumeVarint(typ, b)
			r.Eavesdropped = protowire.DecodeBool(v)
			return n, err
		case fieldAliceBits:
			return consumeBitmap(typ, b, &r.AliceBits)
		case fieldAliceBases:
			return consumeBases(typ, b, &r.AliceBases)
		case fieldEveBits:
			return consumeBitmap(typ, b, &r.EveBits)
		case fieldEveBases:
			return consumeBases(typ, b, &r.EveBases)
		case fieldBobBases:
			return consumeBases(typ, b, &r.BobBases)
		case fieldBobBits:
			return consumeBitmap(typ, b, &r.BobBits)
		case fieldAliceKey:
			return consumeBitmap(typ, b, &r.AliceKey)
		case fieldBobKey:
			return consumeBitmap(typ, b, &r.BobKey)
		case fieldQBER:
			return consumeDouble(typ, b, &r.QBER)
		case fieldEstimate:
			if typ != protowire.BytesType {
				return 0, fmt.Errorf("estimate has wire type %d", typ)
			}
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, protowire.ParseError(n)
			}
			est, err := unmarshalEstimate(v)
			r.Estimate = &est
			return n, err
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("decoding result: %w", err)
	}
	mask, err := checkResult(r)
	if err != nil {
		return Result{}, err
	}
	r.Mask = mask
	return r, nil
}

func unmarshalEstimate(b []byte) (Estimate, error) {
	var e Estimate
	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case fieldEstQBER:
			return consumeDouble(typ, b, &e.QBER)
		case fieldEstDisclosed:
			v, n, err := consumeVarint(typ, b)
			e.Disclosed = int(v)
			return n, err
		case fieldEstKeptA:
			return consumeBitmap(typ, b, &e.KeptA)
		case fieldEstKeptB:
			return consumeBitmap(typ, b, &e.KeptB)
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
	if err != nil {
		return Estimate{}, fmt.Errorf("decoding estimate: %w", err)
	}
	return e, nil
}

// checkResult verifies that r could have been produced by a Simulator and
// returns its recomputed sifting mask.
func checkResult(r Result) (bitmap.Dense, error) {
	type sized struct {
		name string
		size int
	}
	sizes := []sized{
		{"alice bits", r.AliceBits.Size()},
		{"alice bases", r.AliceBases.Len()},
		{"bob bases", r.BobBases.Len()},
		{"bob bits", r.BobBits.Size()},
	}
	if r.Eavesdropped {
		sizes = append(sizes, sized{"eve bits", r.EveBits.Size()}, sized{"eve bases", r.EveBases.Len()})
	}
	for _, s := range sizes {
		if s.size != r.Symbols {
			return bitmap.Dense{}, fmt.Errorf("result has %d %s for %d symbols: %w", s.size, s.name, r.Symbols, ErrLengthMismatch)
		}
	}
	mask, err := AgreementMask(r.AliceBases, r.BobBases)
	if err != nil {
		return bitmap.Dense{}, fmt.Errorf("recomputing mask: %w", err)
	}
	sifted := bitmap.CountOnes(mask)
	if r.AliceKey.Size() != sifted || r.BobKey.Size() != sifted {
		return bitmap.Dense{}, fmt.Errorf("result keys have %d and %d bits for %d agreeing bases: %w",
			r.AliceKey.Size(), r.BobKey.Size(), sifted, ErrLengthMismatch)
	}
	if !validQBER(r.QBER) {
		return bitmap.Dense{}, fmt.Errorf("result QBER %v out of range", r.QBER)
	}
	if e := r.Estimate; e != nil {
		if e.Disclosed < 0 || e.KeptA.Size() != e.KeptB.Size() || e.Disclosed+e.KeptA.Size() != sifted {
			return bitmap.Dense{}, fmt.Errorf("estimate discloses %d and keeps %d and %d of %d bits: %w",
				e.Disclosed, e.KeptA.Size(), e.KeptB.Size(), sifted, ErrLengthMismatch)
		}
		if !validQBER(e.QBER) {
			return bitmap.Dense{}, fmt.Errorf("estimated QBER %v out of range", e.QBER)
		}
	}
	return mask, nil
}

func validQBER(q float64) bool {
	return q >= 0 && q <= 100
}

func consumeFields(b []byte, field func(protowire.Number, protowire.Type, []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		n, err := field(num, typ, b)
		if err != nil {
			return fmt.Errorf("field %d: %w", num, err)
		}
		if n < 0 {
			return fmt.Errorf("field %d: %w", num, protowire.ParseError(n))
		}
		b = b[n:]
	}
	return nil
}

func consumeVarint(typ protowire.Type, b []byte) (uint64, int, error) {
	if typ != protowire.VarintType {
		return 0, 0, fmt.Errorf("expected varint, got wire type %d", typ)
	}
	v, n := protowire.ConsumeVarint(b)
	return v, n, nil
}

func consumeDouble(typ protowire.Type, b []byte, dst *float64) (int, error) {
	if typ != protowire.Fixed64Type {
		return 0, fmt.Errorf("expected fixed64, got wire type %d", typ)
	}
	v, n := protowire.ConsumeFixed64(b)
	*dst = math.Float64frombits(v)
	return n, nil
}

func consumeBitmap(typ protowire.Type, b []byte, dst *bitmap.Dense) (int, error) {
	if typ != protowire.BytesType {
		return 0, fmt.Errorf("expected bytes, got wire type %d", typ)
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return n, nil
	}
	d, err := bitmap.Unmarshal(v)
	if err != nil {
		return 0, err
	}
	*dst = d
	return n, nil
}

func consumeBases(typ protowire.Type, b []byte, dst *photon.Bases) (int, error) {
	var d bitmap.Dense
	n, err := consumeBitmap(typ, b, &d)
	if err != nil || n < 0 {
		return n, err
	}
	*dst = photon.BasesFromBitmap(d)
	return n, nil
}

func appendBitmap(b []byte, num protowire.Number, d bitmap.Dense) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, bitmap.Marshal(d))
}

// A TranscriptWriter writes framed Results to the wire. The structure of the
// frame is trivial: record-length | record, with the length a little-endian
// int32.
type TranscriptWriter struct {
	w io.Writer
}

// NewTranscriptWriter returns a TranscriptWriter appending to w.
func NewTranscriptWriter(w io.Writer) *TranscriptWriter {
	return &TranscriptWriter{w: w}
}

// Write appends one framed Result.
func (t *TranscriptWriter) Write(r Result) error {
	rec := MarshalResult(r)
	if len(rec) > maxRecordBytes {
		return fmt.Errorf("result record of %d bytes exceeds %d", len(rec), maxRecordBytes)
	}
	if err := binary.Write(t.w, binary.LittleEndian, int32(len(rec))); err != nil {
		return err
	}
	if _, err := t.w.Write(rec); err != nil {
		return err
	}
	return nil
}

// A TranscriptReader reads Results framed by a TranscriptWriter.
type TranscriptReader struct {
	r io.Reader
}

// NewTranscriptReader returns a TranscriptReader consuming r.
func NewTranscriptReader(r io.Reader) *TranscriptReader {
	return &TranscriptReader{r: r}
}

// Read returns the next Result, or io.EOF once the transcript is exhausted at
// a frame boundary.
func (t *TranscriptReader) Read() (Result, error) {
	var rLen int32
	if err := binary.Read(t.r, binary.LittleEndian, &rLen); err != nil {
		if errors.Is(err, io.EOF) {
			return Result{}, io.EOF
		}
		return Result{}, fmt.Errorf("reading record length: %w", err)
	}
	if rLen < 0 || rLen > maxRecordBytes {
		return Result{}, fmt.Errorf("invalid record length %d", rLen)
	}
	rec := make([]byte, rLen)
	if _, err := io.ReadFull(t.r, rec); err != nil {
		return Result{}, fmt.Errorf("reading record: %w", err)
	}
	return UnmarshalResult(rec)
}
