package bb84

import (
	"context"
	"encoding/binary"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/alan-christopher/bb84sim/bb84/photon"
)

// Run performs one exchange: Alice prepares and sends her symbols, the
// eavesdropper (if any) intercepts them, Bob measures, and both keys are
// sifted and compared. Any failure aborts the whole run and yields a zero
// Result.
func (s *Simulator) Run(ctx context.Context) (res Result, err error) {
	ctx, span := s.tracer.Start(ctx, "bb84.Run", trace.WithAttributes(
		attribute.Int("bb84.symbols", s.symbols),
		attribute.Bool("bb84.eavesdrop", s.eavesdrop),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(
				attribute.Float64("bb84.qber", res.QBER),
				attribute.Int("bb84.sifted", res.Sifted()),
			)
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}()
	s.logger.DebugContext(ctx, "bb84.run.start", "symbols", s.symbols, "eavesdrop", s.eavesdrop)

	res, err = s.exchange()
	if err != nil {
		s.logger.DebugContext(ctx, "bb84.run.failed", "error", err)
		return Result{}, err
	}
	s.logger.DebugContext(ctx, "bb84.run.done", "sifted", res.Sifted(), "qber", res.QBER)
	return res, nil
}

func (s *Simulator) exchange() (Result, error) {
	res := Result{Symbols: s.symbols, Eavesdropped: s.eavesdrop}
	stream, err := s.prepare(&res)
	if err != nil {
		return Result{}, err
	}
	if s.eavesdrop {
		stream = s.intercept(stream, &res)
	}
	if err := s.measure(stream, &res); err != nil {
		return Result{}, err
	}
	if err := s.sift(&res); err != nil {
		return Result{}, err
	}
	if s.sampleProp > 0 {
		if err := s.estimate(&res); err != nil {
			return Result{}, err
		}
	}
	return res, nil
}

func (s *Simulator) prepare(res *Result) (photon.Stream, error) {
	res.AliceBits = s.src.Bits(s.symbols)
	res.AliceBases = s.src.Bases(s.symbols)
	stream, err := photon.Encode(res.AliceBits, res.AliceBases)
	if err != nil {
		return photon.Stream{}, fmt.Errorf("preparing symbols: %w", err)
	}
	return stream, nil
}

func (s *Simulator) intercept(stream photon.Stream, res *Result) photon.Stream {
	icp := photon.Intercept(stream, s.src)
	res.EveBases = icp.Bases
	res.EveBits = icp.Bits
	return icp.Stream
}

func (s *Simulator) measure(stream photon.Stream, res *Result) error {
	res.BobBases = s.src.Bases(s.symbols)
	bits, err := photon.Measure(stream, res.BobBases, s.src)
	if err != nil {
		return fmt.Errorf("measuring symbols: %w", err)
	}
	res.BobBits = bits
	return nil
}

func (s *Simulator) sift(res *Result) error {
	mask, err := AgreementMask(res.AliceBases, res.BobBases)
	if err != nil {
		return fmt.Errorf("comparing bases: %w", err)
	}
	aKey, bKey, err := Sift(res.AliceBits, res.BobBits, res.AliceBases, res.BobBases)
	if err != nil {
		return fmt.Errorf("sifting: %w", err)
	}
	qber, err := QBER(aKey, bKey)
	if err != nil {
		return fmt.Errorf("computing QBER: %w", err)
	}
	res.Mask, res.AliceKey, res.BobKey, res.QBER = mask, aKey, bKey, qber
	return nil
}

func (s *Simulator) estimate(res *Result) error {
	seed := int64(binary.LittleEndian.Uint64(s.src.Bits(64).Data()))
	est, err := EstimateQBER(res.AliceKey, res.BobKey, s.sampleProp, seed)
	if err != nil {
		return fmt.Errorf("estimating QBER: %w", err)
	}
	res.Estimate = &est
	return nil
}
