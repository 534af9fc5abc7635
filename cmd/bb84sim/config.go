package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	flag "github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/alan-christopher/bb84sim/bb84"
)

// options is the fully resolved configuration of one invocation.
type options struct {
	Symbols    []int
	Eavesdrop  []bool
	Trials     int
	Seed       int64
	Sample     float64
	Transcript string
	CSV        bool
	Debug      bool

	// ClockSeed is set when neither a flag nor the config file chose a
	// seed, so one is taken from the clock.
	ClockSeed bool
}

// single reports whether the invocation describes exactly one exchange,
// which is reported in full rather than summarized.
func (o options) single() bool {
	return !o.CSV && o.Trials == 1 && len(o.Symbols) == 1 && len(o.Eavesdrop) == 1
}

// fileConfig mirrors the YAML configuration file. Absent keys leave the flag
// defaults alone.
type fileConfig struct {
	Symbols    []int    `yaml:"symbols"`
	Eavesdrop  []bool   `yaml:"eavesdrop"`
	Trials     *int     `yaml:"trials"`
	Seed       *int64   `yaml:"seed"`
	Sample     *float64 `yaml:"sample"`
	Transcript *string  `yaml:"transcript"`
}

func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("bb84sim", flag.ContinueOnError)
	fs.IntSlice("symbols", []int{bb84.DefaultSymbols}, "The number of symbols Alice sends per exchange.")
	fs.BoolSlice("eve", []bool{true}, "Whether an eavesdropper intercepts every symbol.")
	fs.Int("trials", 1, "The number of exchanges to run per configuration.")
	fs.Int64("seed", 0, "Seed for the random source. Seeds from the clock if unset.")
	fs.Float64("sample", 0, "Proportion of the sifted key to disclose for a sampled QBER estimate.")
	fs.String("config", "", "A YAML file providing defaults for the other flags.")
	fs.String("transcript", "", "A file to append the result of a single exchange to.")
	fs.Bool("csv", false, "Print CSV summaries even for a single exchange.")
	fs.Bool("debug", false, "Enable debug logging.")
	return fs
}

// resolveOptions merges the config file named by --config, if any, under the
// explicitly set flags.
func resolveOptions(fs *flag.FlagSet) (options, error) {
	var (
		o   options
		err error
	)
	if o.Symbols, err = fs.GetIntSlice("symbols"); err != nil {
		return options{}, err
	}
	if o.Eavesdrop, err = fs.GetBoolSlice("eve"); err != nil {
		return options{}, err
	}
	if o.Trials, err = fs.GetInt("trials"); err != nil {
		return options{}, err
	}
	if o.Seed, err = fs.GetInt64("seed"); err != nil {
		return options{}, err
	}
	o.ClockSeed = !fs.Changed("seed")
	if o.Sample, err = fs.GetFloat64("sample"); err != nil {
		return options{}, err
	}
	if o.Transcript, err = fs.GetString("transcript"); err != nil {
		return options{}, err
	}
	if o.CSV, err = fs.GetBool("csv"); err != nil {
		return options{}, err
	}
	if o.Debug, err = fs.GetBool("debug"); err != nil {
		return options{}, err
	}

	path, err := fs.GetString("config")
	if err != nil {
		return options{}, err
	}
	if path != "" {
		fc, err := loadConfig(path)
		if err != nil {
			return options{}, err
		}
		fc.apply(&o, fs.Changed)
	}
	if err := o.validate(); err != nil {
		return options{}, err
	}
	return o, nil
}

func loadConfig(path string) (fileConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return fileConfig{}, err
	}
	defer f.Close()

	var fc fileConfig
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return fileConfig{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	return fc, nil
}

// apply copies every value present in fc into o, unless the corresponding
// flag was set explicitly.
func (fc fileConfig) apply(o *options, changed func(string) bool) {
	if fc.Symbols != nil && !changed("symbols") {
		o.Symbols = fc.Symbols
	}
	if fc.Eavesdrop != nil && !changed("eve") {
		o.Eavesdrop = fc.Eavesdrop
	}
	if fc.Trials != nil && !changed("trials") {
		o.Trials = *fc.Trials
	}
	if fc.Seed != nil && !changed("seed") {
		o.Seed = *fc.Seed
		o.ClockSeed = false
	}
	if fc.Sample != nil && !changed("sample") {
		o.Sample = *fc.Sample
	}
	if fc.Transcript != nil && !changed("transcript") {
		o.Transcript = *fc.Transcript
	}
}

func (o options) validate() error {
	if len(o.Symbols) == 0 {
		return errors.New("need at least one symbol count")
	}
	for _, n := range o.Symbols {
		if n < 0 {
			return fmt.Errorf("symbol count must not be negative: %d", n)
		}
	}
	if len(o.Eavesdrop) == 0 {
		return errors.New("need at least one eavesdropper setting")
	}
	if o.Trials < 1 {
		return fmt.Errorf("trials must be positive: %d", o.Trials)
	}
	if o.Sample < 0 || o.Sample > 1 {
		return fmt.Errorf("sample proportion must be in [0, 1]: %v", o.Sample)
	}
	return nil
}
