// Package photon models the quantum half of a BB84 exchange: polarization
// bases, the (bit, basis) symbols which stand in for single photons, and the
// randomness used to prepare, intercept and measure them.
//
// No quantum state is simulated. A symbol records the bit that a receiver
// would observe if it happened to measure in exactly the symbol's basis;
// measuring in the other basis yields a coin flip.
package photon

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alan-christopher/bb84sim/bb84/bitmap"
)

// ErrLengthMismatch is returned when sequences which must be index-aligned
// have different lengths.
var ErrLengthMismatch = errors.New("sequence length mismatch")

// A Basis is one of the two mutually incompatible measurement bases.
type Basis uint8

const (
	// Rectilinear is the '+' basis.
	Rectilinear Basis = iota
	// Diagonal is the 'x' basis.
	Diagonal
)

// Valid reports whether b is one of the two defined bases.
func (b Basis) Valid() bool {
	return b == Rectilinear || b == Diagonal
}

func (b Basis) String() string {
	switch b {
	case Rectilinear:
		return "+"
	case Diagonal:
		return "x"
	}
	return fmt.Sprintf("Basis(%d)", uint8(b))
}

// ParseBasis converts '+' or 'x' into a Basis.
func ParseBasis(r rune) (Basis, error) {
	switch r {
	case '+':
		return Rectilinear, nil
	case 'x', 'X', '×':
		return Diagonal, nil
	}
	return 0, fmt.Errorf("invalid basis %q", r)
}

// Bases is an ordered, densely packed sequence of Basis values. A set bit in
// the underlying bitmap denotes Diagonal.
type Bases struct {
	d bitmap.Dense
}

// NewBases builds a sequence from explicit values. It panics if any value is
// not a valid Basis.
func NewBases(bs ...Basis) Bases {
	var r Bases
	for _, b := range bs {
		r.Append(b)
	}
	return r
}

// BasesFromBitmap interprets set bits in d as Diagonal and clear bits as
// Rectilinear.
func BasesFromBitmap(d bitmap.Dense) Bases {
	return Bases{d: d.Clone()}
}

// ParseBases parses a string such as "+x+x". Spaces are ignored.
func ParseBases(s string) (Bases, error) {
	var r Bases
	for _, c := range s {
		if c == ' ' {
			continue
		}
		b, err := ParseBasis(c)
		if err != nil {
			return Bases{}, fmt.Errorf("parsing bases %q: %w", s, err)
		}
		r.Append(b)
	}
	return r, nil
}

// Len returns the number of bases in b.
func (b Bases) Len() int {
	return b.d.Size()
}

// At returns the i-th basis.
func (b Bases) At(i int) Basis {
	if b.d.Get(i) {
		return Diagonal
	}
	return Rectilinear
}

// Append adds x to the end of b.
func (b *Bases) Append(x Basis) {
	if !x.Valid() {
		panic(fmt.Sprintf("photon: appending invalid basis %d", uint8(x)))
	}
	b.d.AppendBit(x == Diagonal)
}

// Bitmap returns a copy of the packed representation of b.
func (b Bases) Bitmap() bitmap.Dense {
	return b.d.Clone()
}

// Equal reports whether a and b hold the same bases in the same order.
func (b Bases) Equal(o Bases) bool {
	return bitmap.Equal(b.d, o.d)
}

func (b Bases) String() string {
	var sb strings.Builder
	sb.Grow(b.Len())
	for i := 0; i < b.Len(); i++ {
		sb.WriteString(b.At(i).String())
	}
	return sb.String()
}

// A Symbol is the classical stand-in for one transmitted photon.
type Symbol struct {
	Bit   bool
	Basis Basis
}

func (s Symbol) String() string {
	if s.Bit {
		return "1" + s.Basis.String()
	}
	return "0" + s.Basis.String()
}

// A Stream is an immutable sequence of Symbols, stored as parallel bit and
// basis sequences.
type Stream struct {
	bits  bitmap.Dense
	bases Bases
}

// Encode pairs Alice's bits with the bases she prepares them in.
func Encode(bits bitmap.Dense, bases Bases) (Stream, error) {
	if bits.Size() != bases.Len() {
		return Stream{}, fmt.Errorf("encoding %d bits in %d bases: %w", bits.Size(), bases.Len(), ErrLengthMismatch)
	}
	return Stream{bits: bits.Clone(), bases: Bases{d: bases.d.Clone()}}, nil
}

// Len returns the number of symbols in s.
func (s Stream) Len() int {
	return s.bits.Size()
}

// At returns the i-th symbol of s.
func (s Stream) At(i int) Symbol {
	return Symbol{Bit: s.bits.Get(i), Basis: s.bases.At(i)}
}

// Bits returns a copy of the bit of every symbol in s.
func (s Stream) Bits() bitmap.Dense {
	return s.bits.Clone()
}

// Bases returns a copy of the basis of every symbol in s.
func (s Stream) Bases() Bases {
	return Bases{d: s.bases.d.Clone()}
}
