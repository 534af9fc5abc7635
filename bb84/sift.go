package bb84

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/alan-christopher/bb84sim/bb84/bitmap"
	"github.com/alan-christopher/bb84sim/bb84/photon"
)

// AgreementMask returns a bitmap with bit i set iff a and b agree on the i-th
// basis.
func AgreementMask(a, b photon.Bases) (bitmap.Dense, error) {
	if a.Len() != b.Len() {
		return bitmap.Empty(), fmt.Errorf("comparing %d bases against %d: %w", a.Len(), b.Len(), ErrLengthMismatch)
	}
	return bitmap.XNor(a.Bitmap(), b.Bitmap()), nil
}

// Sift keeps only the positions where basesA and basesB agree, projecting
// both a and b onto them. The two keys always have equal length, which is
// zero when no bases agree.
func Sift(a, b bitmap.Dense, basesA, basesB photon.Bases) (keyA, keyB bitmap.Dense, err error) {
	if a.Size() != b.Size() {
		return bitmap.Empty(), bitmap.Empty(), fmt.Errorf("sifting %d bits against %d: %w", a.Size(), b.Size(), ErrLengthMismatch)
	}
	if a.Size() != basesA.Len() {
		return bitmap.Empty(), bitmap.Empty(), fmt.Errorf("sifting %d bits with %d bases: %w", a.Size(), basesA.Len(), ErrLengthMismatch)
	}
	mask, err := AgreementMask(basesA, basesB)
	if err != nil {
		return bitmap.Empty(), bitmap.Empty(), err
	}
	return bitmap.Select(a, mask), bitmap.Select(b, mask), nil
}

// QBER returns the percentage of positions at which a and b disagree. Two
// empty keys have a QBER of 0.
func QBER(a, b bitmap.Dense) (float64, error) {
	if a.Size() != b.Size() {
		return 0, fmt.Errorf("comparing %d-bit key against %d-bit key: %w", a.Size(), b.Size(), ErrLengthMismatch)
	}
	if a.Size() == 0 {
		return 0, nil
	}
	errs := bitmap.CountOnes(bitmap.XOr(a, b))
	return 100 * float64(errs) / float64(a.Size()), nil
}

// An Estimate is the QBER as the two parties would measure it in practice:
// by publicly comparing a random sample of their sifted keys and discarding
// it afterwards.
type Estimate struct {
	// QBER over the disclosed sample, as a percentage.
	QBER float64
	// Disclosed is the number of bits each party revealed.
	Disclosed int
	// KeptA and KeptB are what remains of the keys once the disclosed bits
	// are discarded. Both are in the same shuffled order.
	KeptA, KeptB bitmap.Dense
}

// EstimateQBER shuffles both keys with the same seeded permutation, discloses
// the last floor(proportion*n) bits of each and compares them. Neither input
// is modified.
func EstimateQBER(a, b bitmap.Dense, proportion float64, seed int64) (Estimate, error) {
	if a.Size() != b.Size() {
		return Estimate{}, fmt.Errorf("sampling %d-bit key against %d-bit key: %w", a.Size(), b.Size(), ErrLengthMismatch)
	}
	if math.IsNaN(proportion) || proportion < 0 || proportion > 1 {
		return Estimate{}, fmt.Errorf("sample proportion %v outside [0, 1]", proportion)
	}
	keptA, sampledA, err := sample(a, proportion, seed)
	if err != nil {
		return Estimate{}, fmt.Errorf("sampling Alice's key: %w", err)
	}
	keptB, sampledB, err := sample(b, proportion, seed)
	if err != nil {
		return Estimate{}, fmt.Errorf("sampling Bob's key: %w", err)
	}
	qber, err := QBER(sampledA, sampledB)
	if err != nil {
		return Estimate{}, err
	}
	return Estimate{
		QBER:      qber,
		Disclosed: sampledA.Size(),
		KeptA:     keptA,
		KeptB:     keptB,
	}, nil
}

func sample(bits bitmap.Dense, proportion float64, seed int64) (unsampled, sampled bitmap.Dense, err error) {
	r := rand.New(rand.NewSource(seed))
	bits = bits.Clone()
	bits.Shuffle(r)
	n := bits.Size()
	k := int(proportion * float64(n))
	unsampled, err = bitmap.Slice(bits, 0, n-k)
	if err != nil {
		return bitmap.Empty(), bitmap.Empty(), err
	}
	sampled, err = bitmap.Slice(bits, n-k, n)
	if err != nil {
		return bitmap.Empty(), bitmap.Empty(), err
	}
	return unsampled, sampled, nil
}
