// bb84sim runs simulated BB84 exchanges, with or without an eavesdropper on
// the channel. A single exchange is reported in full: both parties' bits and
// bases, the sifted keys and the resulting QBER. Several configurations, or
// several trials of one, instead produce a CSV of summary statistics per
// configuration.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"text/template"
	"time"

	"github.com/charmbracelet/log"
	"github.com/davecgh/go-spew/spew"

	"github.com/alan-christopher/bb84sim/bb84"
	"github.com/alan-christopher/bb84sim/bb84/experiment"
	"github.com/alan-christopher/bb84sim/bb84/photon"
)

var columns = []string{"Symbols", "Eavesdrop", "Trials", "Seed",
	"MeanQBER", "StdDevQBER", "MinQBER", "MaxQBER", "MeanSifted"}

func main() {
	fs := newFlagSet()
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}
	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "bb84sim"})
	opts, err := resolveOptions(fs)
	if err != nil {
		logger.Fatal("loading configuration", "err", err)
	}
	if opts.Debug {
		logger.SetLevel(log.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err = run(ctx, os.Stdout, opts, slog.New(logger))
	stop()
	if err != nil {
		logger.Error("simulation failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, w io.Writer, opts options, logger *slog.Logger) error {
	if opts.ClockSeed {
		opts.Seed = time.Now().UnixNano()
	}
	logger.Info("starting", "seed", opts.Seed, "symbols", opts.Symbols, "eve", opts.Eavesdrop, "trials", opts.Trials)
	if opts.single() {
		return runOnce(ctx, w, opts, logger)
	}
	return runSweep(ctx, w, opts, logger)
}

func runOnce(ctx context.Context, w io.Writer, opts options, logger *slog.Logger) error {
	sim, err := bb84.NewSimulator(bb84.SimulatorOpts{
		Source:           photon.NewRandSource(rand.New(rand.NewSource(opts.Seed))),
		Symbols:          opts.Symbols[0],
		Eavesdrop:        opts.Eavesdrop[0],
		SampleProportion: opts.Sample,
		Logger:           logger,
	})
	if err != nil {
		return err
	}
	res, err := sim.Run(ctx)
	if err != nil {
		return err
	}
	if logger.Enabled(ctx, slog.LevelDebug) {
		logger.Debug("exchange complete", "result", spew.Sdump(res))
	}
	if err := writeReport(w, res); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	if opts.Transcript != "" {
		if err := appendTranscript(opts.Transcript, res); err != nil {
			return fmt.Errorf("writing transcript: %w", err)
		}
		logger.Debug("transcript appended", "path", opts.Transcript)
	}
	return nil
}

func runSweep(ctx context.Context, w io.Writer, opts options, logger *slog.Logger) error {
	tmpl := template.Must(template.New("line").Parse(lineTmpl()))
	if _, err := fmt.Fprintln(w, header()); err != nil {
		return err
	}
	g := experiment.Grid{
		Symbols:   opts.Symbols,
		Eavesdrop: opts.Eavesdrop,
		Trials:    opts.Trials,
		Seed:      opts.Seed,
	}
	return experiment.Runner{Logger: logger}.Sweep(ctx, g, func(s experiment.Summary) error {
		return tmpl.Execute(w, s)
	})
}

func appendTranscript(path string, res bb84.Result) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if err := bb84.NewTranscriptWriter(f).Write(res); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func header() string {
	return strings.Join(columns, ", ")
}

func lineTmpl() string {
	var els []string
	for _, c := range columns {
		els = append(els, "{{."+c+"}}")
	}
	return strings.Join(els, ", ") + "\n"
}
