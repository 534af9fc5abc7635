// Package bb84 simulates a single BB84 key exchange between two legitimate
// parties, optionally with a measure-and-resend eavesdropper, and reports the
// sifted keys and the quantum bit error rate (QBER) they exhibit.
package bb84

import (
	"errors"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/alan-christopher/bb84sim/bb84/bitmap"
	"github.com/alan-christopher/bb84sim/bb84/photon"
)

// DefaultSymbols is the number of symbols exchanged when a caller has no
// better idea.
const DefaultSymbols = 100

// ErrLengthMismatch is returned when sequences which must be index-aligned
// have different lengths.
var ErrLengthMismatch = photon.ErrLengthMismatch

const tracerName = "github.com/alan-christopher/bb84sim/bb84"

// A SimulatorOpts packages together the arguments necessary to construct a
// new Simulator. Source has no reasonable default; leaving it nil results in
// NewSimulator returning an error.
type SimulatorOpts struct {
	// Source provides all randomness consumed by the exchange: Alice's bits
	// and bases, Eve's bases and guesses, Bob's bases and wrong-basis
	// outcomes. Must be non-nil.
	Source photon.Source

	// Symbols is the number of symbols Alice sends. Zero is a legal, if
	// dull, exchange. Must not be negative.
	Symbols int

	// Eavesdrop places a measure-and-resend eavesdropper on the channel.
	Eavesdrop bool

	// SampleProportion, when positive, additionally estimates the QBER the
	// way the parties themselves would, by disclosing that proportion of the
	// sifted key. Must be in [0, 1].
	SampleProportion float64

	// Logger receives debug-level progress records. Defaults to discarding
	// everything.
	Logger *slog.Logger

	// Tracer opens one span per run. Defaults to the global OpenTelemetry
	// tracer provider.
	Tracer trace.Tracer
}

// A Simulator runs BB84 exchanges with a fixed configuration. Simulators
// are not safe for concurrent use, since they share a Source between runs.
type Simulator struct {
	src        photon.Source
	symbols    int
	eavesdrop  bool
	sampleProp float64
	logger     *slog.Logger
	tracer     trace.Tracer
}

// NewSimulator returns a new Simulator, configured in accordance with opts,
// or an error if the options are nonsensical.
func NewSimulator(opts SimulatorOpts) (*Simulator, error) {
	if opts.Source == nil {
		return nil, errors.New("must provide Source")
	}
	if opts.Symbols < 0 {
		return nil, errors.New("symbol count must not be negative")
	}
	if !(opts.SampleProportion >= 0 && opts.SampleProportion <= 1) {
		return nil, errors.New("sample proportion must be in [0, 1]")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	return &Simulator{
		src:        opts.Source,
		symbols:    opts.Symbols,
		eavesdrop:  opts.Eavesdrop,
		sampleProp: opts.SampleProportion,
		logger:     logger,
		tracer:     tracer,
	}, nil
}

// A Result holds every value a single exchange produced. Sequences are
// index-aligned and Symbols long, except for the sifted keys, which are
// Sifted() long.
type Result struct {
	Symbols      int
	Eavesdropped bool

	AliceBits  bitmap.Dense
	AliceBases photon.Bases

	// Empty unless Eavesdropped.
	EveBases photon.Bases
	EveBits  bitmap.Dense

	BobBases photon.Bases
	BobBits  bitmap.Dense

	// Mask has a bit set wherever Alice's and Bob's bases agree.
	Mask     bitmap.Dense
	AliceKey bitmap.Dense
	BobKey   bitmap.Dense

	// QBER is the percentage of sifted positions where the keys disagree.
	QBER float64

	// Estimate is only populated when SampleProportion was positive.
	Estimate *Estimate
}

// Sifted returns the length of the sifted keys.
func (r Result) Sifted() int {
	return r.AliceKey.Size()
}
