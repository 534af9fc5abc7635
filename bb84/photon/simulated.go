package photon

import (
	"fmt"

	"github.com/alan-christopher/bb84sim/bb84/bitmap"
)

// An Interception records what a measure-and-resend eavesdropper did to a
// Stream.
type Interception struct {
	// Stream is what the eavesdropper sends on to the receiver.
	Stream Stream
	// Bases are the bases the eavesdropper measured in.
	Bases Bases
	// Bits are the eavesdropper's measurement outcomes.
	Bits bitmap.Dense
}

// Intercept measures every symbol of s in a basis drawn from src and re-sends
// the outcome in that same basis. Where the guessed basis matches the
// symbol's, the symbol passes through untouched. Elsewhere the outcome is a
// fresh random bit and the re-sent symbol carries the eavesdropper's basis,
// which is what later surfaces as errors in the sifted key.
//
// All of the eavesdropper's bases are drawn first, followed by one fresh bit
// per symbol.
func Intercept(s Stream, src Source) Interception {
	n := s.Len()
	eveBases := src.Bases(n)
	fresh := src.Bits(n)
	mismatch := bitmap.XOr(s.bases.d, eveBases.d)
	bits := bitmap.Choose(s.bits, fresh, mismatch)
	return Interception{
		Stream: Stream{bits: bits, bases: eveBases},
		Bases:  Bases{d: eveBases.d.Clone()},
		Bits:   bits.Clone(),
	}
}

// Measure measures every symbol of s in the corresponding receiver basis.
// Matching bases reproduce the symbol's bit exactly; mismatched bases yield a
// fresh random bit drawn from src, one per symbol.
func Measure(s Stream, bases Bases, src Source) (bitmap.Dense, error) {
	if s.Len() != bases.Len() {
		return bitmap.Empty(), fmt.Errorf("measuring %d symbols in %d bases: %w", s.Len(), bases.Len(), ErrLengthMismatch)
	}
	fresh := src.Bits(s.Len())
	mismatch := bitmap.XOr(s.bases.d, bases.d)
	return bitmap.Choose(s.bits, fresh, mismatch), nil
}
