package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"groupcoh/adapters/api"
	"groupcoh/adapters/excel"
	"groupcoh/adapters/preprocess"
	"groupcoh/adapters/wavelet"
	sig "groupcoh/domain/signal"
	"groupcoh/internal"
	"groupcoh/internal/coherence"
	"groupcoh/internal/config"
	"groupcoh/internal/testkit"
)

// runFlags are shared by the group and dual commands
type runFlags struct {
	fs         float64
	percentile float64
	workers    int
	cacheDir   string
	output     string

	// loading
	sheet      string
	noHeader   bool
	maxSamples int
	duration   time.Duration

	// wavelet
	f0      float64
	voices  int
	fmin    float64
	fmax    float64
	cycles  float64
	padding string

	// preprocessing
	preprocess bool
	preFmin    float64
	preFmax    float64
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := internal.NewLogger(internal.ParseLogLevel(cfg.Log.Level))

	rootCmd := &cobra.Command{
		Use:   "groupcoh",
		Short: "Surrogate-corrected wavelet phase coherence for groups of subjects",
	}

	rootCmd.AddCommand(
		newGroupCmd(cfg, logger),
		newDualCmd(cfg, logger),
		newSynthCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (f *runFlags) register(cmd *cobra.Command, defaults config.EngineConfig) {
	cmd.Flags().Float64Var(&f.fs, "fs", 0, "Sampling frequency in Hz (required)")
	cmd.Flags().Float64Var(&f.percentile, "percentile", defaults.Percentile, "Surrogate percentile subtracted from the real coherence")
	cmd.Flags().IntVar(&f.workers, "workers", defaults.Workers, "Parallel workers")
	cmd.Flags().StringVar(&f.cacheDir, "cache-dir", defaults.CacheDir, "Directory for out-of-core transform caches")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Write JSON here instead of stdout")

	cmd.Flags().StringVar(&f.sheet, "sheet", "", "xlsx sheet to read (default: first sheet)")
	cmd.Flags().BoolVar(&f.noHeader, "no-header", false, "Input files have no header row")
	cmd.Flags().IntVar(&f.maxSamples, "max-samples", 0, "Truncate every subject to this many samples")
	cmd.Flags().DurationVar(&f.duration, "duration", 0, "Truncate every subject to this duration, e.g. 15m")

	cmd.Flags().Float64Var(&f.f0, "f0", 0, "Morlet resolution parameter (default 1)")
	cmd.Flags().IntVar(&f.voices, "nv", 0, "Voices per octave (default 16)")
	cmd.Flags().Float64Var(&f.fmin, "fmin", 0, "Lowest analysed frequency")
	cmd.Flags().Float64Var(&f.fmax, "fmax", 0, "Highest analysed frequency (default fs/2)")
	cmd.Flags().Float64Var(&f.cycles, "cycles", wavelet.DefaultCoherenceCycles, "Coherence window in periods; 0 averages the whole record")
	cmd.Flags().StringVar(&f.padding, "padding", "", "Transform padding: zero or none")

	cmd.Flags().BoolVar(&f.preprocess, "preprocess", false, "Detrend and band-pass every signal first")
	cmd.Flags().Float64Var(&f.preFmin, "pre-fmin", 0, "Band-pass lower edge")
	cmd.Flags().Float64Var(&f.preFmax, "pre-fmax", 0, "Band-pass upper edge (default fs/2)")

	_ = cmd.MarkFlagRequired("fs")
}

// waveletOptions forwards only the flags that were set.
func (f *runFlags) waveletOptions(cmd *cobra.Command) wavelet.Options {
	opts := wavelet.Options{wavelet.OptDisplay: "off"}
	if cmd.Flags().Changed("f0") {
		opts[wavelet.OptF0] = f.f0
	}
	if cmd.Flags().Changed("nv") {
		opts[wavelet.OptVoices] = f.voices
	}
	if cmd.Flags().Changed("fmin") {
		opts[wavelet.OptFmin] = f.fmin
	}
	if cmd.Flags().Changed("fmax") {
		opts[wavelet.OptFmax] = f.fmax
	}
	if cmd.Flags().Changed("padding") {
		opts[wavelet.OptPadding] = f.padding
	}
	return opts
}

func (f *runFlags) engine(logger *internal.Logger, base config.EngineConfig) (*coherence.Engine, error) {
	cfg := base
	cfg.Workers = f.workers
	cfg.CacheDir = f.cacheDir
	cfg.Percentile = f.percentile
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	adapter := wavelet.NewAdapter(wavelet.WithCoherenceCycles(f.cycles))
	return coherence.NewEngine(adapter, adapter, cfg, logger), nil
}

// load reads one channel group and preprocesses it when asked.
func (f *runFlags) load(path string) (sig.Group, error) {
	rc := excel.ReaderConfig{Sheet: f.sheet, Header: !f.noHeader, MaxSamples: f.maxSamples}
	if f.duration > 0 {
		n := excel.SamplesFor(f.duration, f.fs)
		if rc.MaxSamples == 0 || n < rc.MaxSamples {
			rc.MaxSamples = n
		}
	}
	data, err := excel.NewGroupReader(path, rc).ReadGroup()
	if err != nil {
		return sig.Group{}, err
	}
	if !f.preprocess {
		return data.Group, nil
	}
	g, err := preprocess.Group(data.Group, f.fs, f.preFmin, f.preFmax)
	if err != nil {
		return sig.Group{}, fmt.Errorf("preprocessing %s: %w", path, err)
	}
	return g, nil
}

func (f *runFlags) loadPair(pathA, pathB string) (coherence.ChannelPair, error) {
	a, err := f.load(pathA)
	if err != nil {
		return coherence.ChannelPair{}, err
	}
	b, err := f.load(pathB)
	if err != nil {
		return coherence.ChannelPair{}, err
	}
	return coherence.ChannelPair{A: a, B: b}, nil
}

func (f *runFlags) write(value interface{}) error {
	var w io.Writer = os.Stdout
	if f.output != "" {
		file, err := os.Create(f.output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer file.Close()
		w = file
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

func newGroupCmd(cfg *config.Config, logger *internal.Logger) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "group [signals-a] [signals-b]",
		Short: "Residual coherence of one group",
		Long: `Compute each subject's surrogate-corrected phase coherence between two channels.

Each file (xlsx or csv) holds one channel: one column per subject, one row per sample.

Example: groupcoh group nirs.csv resp.csv --fs 31.25 --duration 15m --preprocess --pre-fmax 2`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := flags.engine(logger, cfg.Engine)
			if err != nil {
				return err
			}
			pair, err := flags.loadPair(args[0], args[1])
			if err != nil {
				return err
			}

			req := coherence.NewGroupRequest(pair.A, pair.B, flags.fs)
			req.Percentile = flags.percentile
			req.Wavelet = flags.waveletOptions(cmd)

			res, err := engine.GroupCoherence(cmd.Context(), req)
			if err != nil {
				return err
			}
			out, err := api.NewGroupResponse(res)
			if err != nil {
				return err
			}
			return flags.write(out)
		},
	}
	flags.register(cmd, cfg.Engine)
	return cmd
}

func newDualCmd(cfg *config.Config, logger *internal.Logger) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "dual [group1-a] [group1-b] [group2-a] [group2-b]",
		Short: "Residual coherence of two independent groups",
		Long: `Run the group computation for two groups that share a frequency axis.

Groups with different recording lengths share the axis of the shorter one unless --fmin is given.

Example: groupcoh dual g1_nirs.csv g1_resp.csv g2_nirs.csv g2_resp.csv --fs 31.25 --fmax 2`,
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := flags.engine(logger, cfg.Engine)
			if err != nil {
				return err
			}
			first, err := flags.loadPair(args[0], args[1])
			if err != nil {
				return err
			}
			second, err := flags.loadPair(args[2], args[3])
			if err != nil {
				return err
			}

			req := coherence.NewDualRequest(first, second, flags.fs)
			req.Percentile = flags.percentile
			req.Wavelet = flags.waveletOptions(cmd)

			res, err := engine.DualGroupCoherence(cmd.Context(), req)
			if err != nil {
				return err
			}
			out, err := api.NewDualResponse(res)
			if err != nil {
				return err
			}
			return flags.write(out)
		},
	}
	flags.register(cmd, cfg.Engine)
	return cmd
}

func newSynthCmd() *cobra.Command {
	gen := testkit.DefaultSignalConfig()
	var uncoupled int
	var dir string

	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Write a synthetic two-channel group as CSV files",
		Long: `Generate a group whose subjects share an oscillation with wandering phase.
The last --uncoupled subjects get an independent phase in channel B.

Example: groupcoh synth --subjects 8 --uncoupled 2 --dir ./data`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if uncoupled < 0 || uncoupled > gen.Subjects {
				return fmt.Errorf("--uncoupled must lie in [0, %d]", gen.Subjects)
			}
			gen.Coupled = make([]bool, gen.Subjects)
			for k := range gen.Coupled {
				gen.Coupled[k] = k < gen.Subjects-uncoupled
			}

			a, b, err := testkit.NewSignalGenerator(gen).Generate()
			if err != nil {
				return err
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
			if err := writeCSV(filepath.Join(dir, "signals_a.csv"), a); err != nil {
				return err
			}
			if err := writeCSV(filepath.Join(dir, "signals_b.csv"), b); err != nil {
				return err
			}
			fmt.Printf("wrote %d subjects x %d samples at %g Hz to %s\n", gen.Subjects, gen.Samples, gen.Fs, dir)
			return nil
		},
	}

	cmd.Flags().IntVar(&gen.Subjects, "subjects", gen.Subjects, "Number of subjects")
	cmd.Flags().IntVar(&gen.Samples, "samples", gen.Samples, "Samples per subject")
	cmd.Flags().Float64Var(&gen.Fs, "fs", gen.Fs, "Sampling frequency in Hz")
	cmd.Flags().Float64Var(&gen.Frequency, "freq", gen.Frequency, "Shared oscillation frequency in Hz")
	cmd.Flags().Float64Var(&gen.PhaseDrift, "drift", gen.PhaseDrift, "Phase random-walk step in radians per sample")
	cmd.Flags().Float64Var(&gen.Noise, "noise", gen.Noise, "Additive noise standard deviation")
	cmd.Flags().Int64Var(&gen.Seed, "seed", gen.Seed, "Random seed")
	cmd.Flags().IntVar(&uncoupled, "uncoupled", 1, "Subjects without coupling")
	cmd.Flags().StringVar(&dir, "dir", ".", "Output directory")
	return cmd
}

// writeCSV stores g with one column per subject.
func writeCSV(path string, g sig.Group) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	header := make([]string, g.Subjects())
	for k := range header {
		header[k] = fmt.Sprintf("subject_%d", k+1)
	}
	if err := w.Write(header); err != nil {
		return err
	}
	record := make([]string, g.Subjects())
	for i := 0; i < g.Samples(); i++ {
		for k := range record {
			record[k] = strconv.FormatFloat(g.Row(k)[i], 'g', -1, 64)
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
