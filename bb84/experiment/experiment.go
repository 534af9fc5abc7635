// Package experiment repeats BB84 exchanges over a grid of configurations and
// summarizes the QBER each configuration exhibits.
package experiment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"

	"go.opentelemetry.io/otel/trace"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/alan-christopher/bb84sim/bb84"
	"github.com/alan-christopher/bb84sim/bb84/photon"
)

// Params describes one configuration to be repeated.
type Params struct {
	Symbols   int
	Eavesdrop bool
	// Trials is the number of independent exchanges to run. Trial i draws
	// from a math/rand source seeded with Seed+i.
	Trials int
	Seed   int64
}

// A Summary packages together the parameters of an experiment and the
// statistics of its outcome, for easy formatting.
type Summary struct {
	Params

	MeanQBER   float64
	StdDevQBER float64
	MinQBER    float64
	MaxQBER    float64
	MeanSifted float64

	// QBERs holds the QBER of every trial, in trial order.
	QBERs []float64
}

// A Grid is the cartesian product of symbol counts and eavesdropper
// settings, each repeated Trials times.
type Grid struct {
	Symbols   []int
	Eavesdrop []bool
	Trials    int
	Seed      int64
}

// A Runner runs experiments. The zero Runner is ready to use.
type Runner struct {
	// Logger and Tracer are handed to every Simulator.
	Logger *slog.Logger
	Tracer trace.Tracer
}

// Run performs p.Trials exchanges with the configuration p and summarizes
// them.
func (r Runner) Run(ctx context.Context, p Params) (Summary, error) {
	if p.Trials < 1 {
		return Summary{}, errors.New("an experiment needs at least one trial")
	}
	qbers := make([]float64, 0, p.Trials)
	sifted := make([]float64, 0, p.Trials)
	for i := 0; i < p.Trials; i++ {
		if err := ctx.Err(); err != nil {
			return Summary{}, err
		}
		sim, err := bb84.NewSimulator(bb84.SimulatorOpts{
			Source:    photon.NewRandSource(rand.New(rand.NewSource(p.Seed + int64(i)))),
			Symbols:   p.Symbols,
			Eavesdrop: p.Eavesdrop,
			Logger:    r.Logger,
			Tracer:    r.Tracer,
		})
		if err != nil {
			return Summary{}, err
		}
		res, err := sim.Run(ctx)
		if err != nil {
			return Summary{}, fmt.Errorf("trial %d: %w", i, err)
		}
		qbers = append(qbers, res.QBER)
		sifted = append(sifted, float64(res.Sifted()))
	}
	return summarize(p, qbers, sifted), nil
}

// Sweep runs one experiment per point of g, in order, handing each Summary
// to fn. It stops at the first error from either.
func (r Runner) Sweep(ctx context.Context, g Grid, fn func(Summary) error) error {
	if len(g.Symbols) == 0 || len(g.Eavesdrop) == 0 {
		return errors.New("sweep grid has an empty dimension")
	}
	var args [][]interface{}
	args = append(args, toArgs(g.Symbols), toArgs(g.Eavesdrop))
	var err error
	applyCartesian(func(args []interface{}) {
		if err != nil {
			return
		}
		p := Params{
			Symbols:   args[0].(int),
			Eavesdrop: args[1].(bool),
			Trials:    g.Trials,
			Seed:      g.Seed,
		}
		var s Summary
		if s, err = r.Run(ctx, p); err != nil {
			err = fmt.Errorf("experiment %+v: %w", p, err)
			return
		}
		err = fn(s)
	}, args)
	return err
}

func summarize(p Params, qbers, sifted []float64) Summary {
	mean, std := stat.MeanStdDev(qbers, nil)
	if len(qbers) < 2 {
		std = 0
	}
	return Summary{
		Params:     p,
		MeanQBER:   mean,
		StdDevQBER: std,
		MinQBER:    floats.Min(qbers),
		MaxQBER:    floats.Max(qbers),
		MeanSifted: stat.Mean(sifted, nil),
		QBERs:      qbers,
	}
}

func toArgs[T any](vs []T) []interface{} {
	r := make([]interface{}, 0, len(vs))
	for _, v := range vs {
		r = append(r, v)
	}
	return r
}

// applyCartesian calls f once for every combination of one value from each
// of args, varying the earliest dimension slowest.
func applyCartesian(f func([]interface{}), args [][]interface{}) {
	for i := range args {
		if len(args[i]) == 1 {
			continue
		}
		l := make([][]interface{}, len(args))
		r := make([][]interface{}, len(args))
		copy(l, args)
		copy(r, args)
		l[i] = args[i][:1]
		r[i] = args[i][1:]
		applyCartesian(f, l)
		applyCartesian(f, r)
		return
	}
	x := make([]interface{}, 0, len(args))
	for _, a := range args {
		x = append(x, a[0])
	}
	f(x)
}
