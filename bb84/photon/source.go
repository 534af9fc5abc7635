package photon

import (
	"crypto/cipher"
	crand "crypto/rand"
	"fmt"
	"io"
	"math/rand"

	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/sha3"

	"github.com/alan-christopher/bb84sim/bb84/bitmap"
)

// A Source supplies the randomness consumed by a BB84 exchange. Sources are
// not safe for concurrent use.
type Source interface {
	// Bits returns n independent, uniformly random bits.
	Bits(n int) bitmap.Dense
	// Bases returns n independent, uniformly random bases.
	Bases(n int) Bases
}

// NewRandSource returns a Source drawing from r. Seeded sources make runs
// reproducible, but offer no security whatsoever.
func NewRandSource(r *rand.Rand) Source {
	return randSource{r: r}
}

type randSource struct {
	r *rand.Rand
}

func (s randSource) Bits(n int) bitmap.Dense {
	buf := make([]byte, bitmap.BytesFor(checkCount(n)))
	s.r.Read(buf)
	return bitmap.NewDense(buf, n)
}

func (s randSource) Bases(n int) Bases {
	return Bases{d: s.Bits(n)}
}

// NewReaderSource returns a Source which takes its bits from r. Every byte
// read from r must be uniformly distributed. A failed read panics, since no
// exchange can meaningfully continue without entropy.
func NewReaderSource(r io.Reader) Source {
	return readerSource{r: r}
}

// SystemSource returns a Source backed by the operating system's CSPRNG.
func SystemSource() Source {
	return readerSource{r: crand.Reader}
}

// NewChaChaSource returns a deterministic Source whose output is the ChaCha20
// keystream keyed by the SHA3-256 digest of seed. Unlike NewRandSource, the
// stream for a given seed does not depend on the Go release.
func NewChaChaSource(seed []byte) (Source, error) {
	key := sha3.Sum256(seed)
	nonce := make([]byte, chacha20.NonceSize)
	c, err := chacha20.NewUnauthenticatedCipher(key[:], nonce)
	if err != nil {
		return nil, fmt.Errorf("building chacha20 keystream: %w", err)
	}
	return readerSource{r: cipher.StreamReader{S: c, R: zeros{}}}, nil
}

type readerSource struct {
	r io.Reader
}

func (s readerSource) Bits(n int) bitmap.Dense {
	buf := make([]byte, bitmap.BytesFor(checkCount(n)))
	if _, err := io.ReadFull(s.r, buf); err != nil {
		panic("photon: failed to read entropy: " + err.Error())
	}
	return bitmap.NewDense(buf, n)
}

func (s readerSource) Bases(n int) Bases {
	return Bases{d: s.Bits(n)}
}

// zeros is an endless stream of zero bytes; XORed with a keystream it yields
// the keystream itself.
type zeros struct{}

func (zeros) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

func checkCount(n int) int {
	if n < 0 {
		panic(fmt.Sprintf("photon: negative draw count %d", n))
	}
	return n
}
