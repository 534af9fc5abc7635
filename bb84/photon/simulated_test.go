package photon

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/alan-christopher/bb84sim/bb84/bitmap"
)

// A scriptedSource replays predetermined draws, in order.
type scriptedSource struct {
	t     *testing.T
	bits  []bitmap.Dense
	bases []Bases
}

func (s *scriptedSource) Bits(n int) bitmap.Dense {
	if len(s.bits) == 0 {
		s.t.Fatalf("unexpected draw of %d bits", n)
	}
	d := s.bits[0]
	s.bits = s.bits[1:]
	if d.Size() != n {
		s.t.Fatalf("drew %d bits, script has %d", n, d.Size())
	}
	return d
}

func (s *scriptedSource) Bases(n int) Bases {
	if len(s.bases) == 0 {
		s.t.Fatalf("unexpected draw of %d bases", n)
	}
	b := s.bases[0]
	s.bases = s.bases[1:]
	if b.Len() != n {
		s.t.Fatalf("drew %d bases, script has %d", n, b.Len())
	}
	return b
}

func TestIntercept(t *testing.T) {
	s, err := Encode(mustBits(t, "1010"), mustBases(t, "++xx"))
	if err != nil {
		t.Fatalf("bugged test setup: %v", err)
	}
	src := &scriptedSource{
		t:     t,
		bases: []Bases{mustBases(t, "+x+x")},
		bits:  []bitmap.Dense{mustBits(t, "0101")},
	}
	got := Intercept(s, src)

	// Positions 0 and 3 match and pass through; 1 and 2 take the fresh bit
	// and Eve's basis.
	want := []Symbol{{true, Rectilinear}, {true, Diagonal}, {false, Rectilinear}, {false, Diagonal}}
	if got.Stream.Len() != len(want) {
		t.Fatalf("got %d symbols, want %d", got.Stream.Len(), len(want))
	}
	for i, w := range want {
		if sym := got.Stream.At(i); sym != w {
			t.Errorf("At(%d) == %v, want %v", i, sym, w)
		}
	}
	if got.Bases.String() != "+x+x" {
		t.Errorf("Eve bases == %v, want +x+x", got.Bases)
	}
	if got.Bits.String() != "1100" {
		t.Errorf("Eve bits == %v, want 1100", got.Bits)
	}
}

func TestInterceptMatchingBasesIsInvisible(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	src := NewRandSource(r)
	const n = 2000
	bases := src.Bases(n)
	s, _ := Encode(src.Bits(n), bases)
	// Eve guesses every basis correctly; whatever fresh bits she draws must
	// be discarded.
	script := &scriptedSource{
		t:     t,
		bases: []Bases{bases},
		bits:  []bitmap.Dense{src.Bits(n)},
	}
	got := Intercept(s, script)
	for i := 0; i < n; i++ {
		if got.Stream.At(i) != s.At(i) {
			t.Fatalf("symbol %d changed from %v to %v despite matching basis", i, s.At(i), got.Stream.At(i))
		}
	}
}

func TestInterceptMismatchDecorrelates(t *testing.T) {
	src := NewRandSource(rand.New(rand.NewSource(11)))
	const n = 20000
	alice := src.Bits(n)
	aBases := src.Bases(n)
	s, _ := Encode(alice, aBases)
	got := Intercept(s, src)

	var mismatched, agree int
	for i := 0; i < n; i++ {
		if got.Bases.At(i) == aBases.At(i) {
			continue
		}
		mismatched++
		if got.Stream.At(i).Basis != got.Bases.At(i) {
			t.Fatalf("symbol %d re-sent in %v, want Eve's basis %v", i, got.Stream.At(i).Basis, got.Bases.At(i))
		}
		if got.Stream.At(i).Bit == alice.Get(i) {
			agree++
		}
	}
	p := float64(agree) / float64(mismatched)
	if p < 0.47 || p > 0.53 {
		t.Errorf("P(re-sent bit == Alice's | Eve basis wrong) == %.3f, want about 0.5", p)
	}
}

func TestMeasure(t *testing.T) {
	s, _ := Encode(mustBits(t, "1011"), mustBases(t, "+x+x"))
	src := &scriptedSource{t: t, bits: []bitmap.Dense{mustBits(t, "0100")}}
	got, err := Measure(s, mustBases(t, "++xx"), src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 0 and 3 match; 1 and 2 read the fresh bits.
	if got.String() != "1101" {
		t.Errorf("Measure == %v, want 1101", got)
	}
}

func TestMeasureLengthMismatch(t *testing.T) {
	s, _ := Encode(mustBits(t, "10"), mustBases(t, "+x"))
	src := &scriptedSource{t: t}
	_, err := Measure(s, mustBases(t, "+"), src)
	if !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("Measure error == %v, want ErrLengthMismatch", err)
	}
}
