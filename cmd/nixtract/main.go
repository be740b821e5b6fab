package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"nixtract/internal/config"
	"nixtract/internal/extract"
	"nixtract/internal/schema"
)

var (
	configFile    string
	flakeRef      string
	attributePath string
	system        string
	runtimeOnly   bool
	offline       bool
	workers       int
	pretty        bool
	narInfo       bool
	binaryCaches  []string
	skipPrefixes  []string
	outputSchema  bool
	verbose       bool
)

var rootCmd = &cobra.Command{
	Use:   "nixtract [flags] [OUTFILE]",
	Short: "Extract the graph of derivations from a Nix flake as JSONL",
	Long: `nixtract evaluates a flake and emits one JSON object per derivation
reachable from its packages, including dependency edges, so the full build
graph can be reconstructed downstream.

OUTFILE is the file to write to; omit it or pass "-" for stdout.`,
	Args:          cobra.MaximumNArgs(1),
	RunE:          run,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&configFile, "config", "nixtract.yaml", "Path to the optional YAML config file")
	flags.StringVar(&flakeRef, "target-flake-ref", "nixpkgs", "Flake reference to extract, e.g. \"github:tweag/nixtract\"")
	flags.StringVar(&attributePath, "target-attribute-path", "", "Extract a single attribute path instead of the whole flake, e.g. \"haskellPackages.hello\"")
	flags.StringVar(&system, "target-system", "", "System to extract for, e.g. \"x86_64-linux\" (default: host system)")
	flags.BoolVar(&runtimeOnly, "runtime-only", false, "Follow only runtime dependencies, omitting native build inputs")
	flags.BoolVar(&offline, "offline", false, "Pass --offline to nix commands")
	flags.IntVar(&workers, "n-workers", 0, "Count of workers describing derivations (default: number of CPUs)")
	flags.BoolVar(&pretty, "pretty", false, "Pretty print each record")
	flags.BoolVar(&narInfo, "narinfo", false, "Probe binary caches for narinfo of described output paths")
	flags.StringSliceVar(&binaryCaches, "binary-caches", nil, "Binary caches to probe for narinfo (default: the configured substituters)")
	flags.StringSliceVar(&skipPrefixes, "skip", nil, "Attribute path prefixes to skip, e.g. bootstrap packages")
	flags.BoolVar(&outputSchema, "output-schema", false, "Print the JSON schema of the emitted records and exit")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Increase log verbosity")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "nixtract:", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if outputSchema {
		data, err := schema.Record()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	applyFlags(cmd, cfg)

	out := os.Stdout
	if len(args) == 1 && args[0] != "-" {
		file, err := os.Create(args[0])
		if err != nil {
			return fmt.Errorf("failed to open output file: %w", err)
		}
		defer file.Close()
		out = file
	}

	stats, err := extract.Run(cmd.Context(), extract.Options{Config: cfg, Out: out})
	if err != nil {
		return err
	}

	// Per-node failures do not fail the run; partial results are valuable.
	slog.Info("extraction finished",
		"queued", stats.Queued,
		"described", stats.Described,
		"failed", stats.Failed,
		"skipped", stats.Skipped,
	)
	return nil
}

// applyFlags overlays explicitly set flags onto the resolved configuration.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("target-flake-ref") {
		cfg.FlakeRef = flakeRef
	}
	if flags.Changed("target-attribute-path") {
		cfg.AttributePath = attributePath
	}
	if flags.Changed("target-system") {
		cfg.System = system
	}
	if flags.Changed("runtime-only") {
		cfg.RuntimeOnly = runtimeOnly
	}
	if flags.Changed("offline") {
		cfg.Offline = offline
	}
	if flags.Changed("n-workers") {
		cfg.Workers = workers
	}
	if flags.Changed("pretty") {
		cfg.Pretty = pretty
	}
	if flags.Changed("narinfo") {
		cfg.NarInfo = narInfo
	}
	if flags.Changed("binary-caches") {
		cfg.BinaryCaches = binaryCaches
	}
	if flags.Changed("skip") {
		cfg.SkipPrefixes = skipPrefixes
	}
}
