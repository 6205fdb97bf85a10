// Command astcore is a thin CLI over the parsing core: single-file parse,
// batch/directory processing, and grammar cache management.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentic-research/astcore"
	"github.com/agentic-research/astcore/api"
)

var (
	Version = "dev"
	Commit  = "none"
)

var (
	grammarDir  string
	concurrency int
	profile     string
	outputDir   string
	storePath   string
	maxFiles    int
	noRecurse   bool
	verbose     bool
)

func newCore() *astcore.Core {
	opts := astcore.Options{GrammarDir: grammarDir}
	if verbose {
		opts.Logger = log.New(os.Stderr, "astcore: ", log.LstdFlags)
	}
	return astcore.New(opts)
}

func pipelineConfig() api.PipelineConfig {
	var cfg api.PipelineConfig
	switch profile {
	case "minimal":
		cfg = api.MinimalConfig()
	case "performance":
		cfg = api.PerformanceConfig()
	default:
		cfg = api.FullConfig()
	}
	if outputDir != "" {
		cfg.EnableSerialization = true
		cfg.OutputDir = outputDir
	}
	return cfg
}

var rootCmd = &cobra.Command{
	Use:     "astcore",
	Short:   "Parse source trees into annotated, persistable AST bundles",
	Version: fmt.Sprintf("%s (%s)", Version, Commit),
}

var parseCmd = &cobra.Command{
	Use:   "parse [file]",
	Short: "Parse a single file and print its bundle as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		core := newCore()
		defer core.Close()

		res := core.ProcessFile(cmd.Context(), astcore.FileRequest{
			FilePath: args[0],
			Config:   pipelineConfig(),
		})
		if !res.Success {
			for _, e := range res.Errors {
				fmt.Fprintln(os.Stderr, e.Error())
			}
			return fmt.Errorf("processing %s failed", args[0])
		}

		out, err := json.MarshalIndent(res.Nodes, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		fmt.Fprintf(os.Stderr, "%d nodes, %d errors, %d ms\n",
			res.Stats.TotalNodes, len(res.Errors), res.Stats.ElapsedMs)
		return nil
	},
}

var batchCmd = &cobra.Command{
	Use:   "batch [dir]",
	Short: "Process a directory tree with bounded concurrency",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		core := newCore()
		defer core.Close()

		opts := api.DirectoryOptions{
			BatchOptions: api.BatchOptions{
				Concurrency:     concurrency,
				ContinueOnError: true,
				CollectMetrics:  true,
				StorePath:       storePath,
				Pipeline:        pipelineConfig(),
			},
			Recursive: !noRecurse,
			MaxFiles:  maxFiles,
		}
		if verbose {
			opts.Progress = func(e api.ProgressEvent) {
				fmt.Fprintf(os.Stderr, "\r%d/%d %s (%.0f files/s)", e.Completed, e.Total, e.CurrentFile, e.RatePerSecond)
			}
		}

		res, err := core.ProcessDirectory(cmd.Context(), args[0], opts)
		if err != nil {
			return err
		}
		if verbose {
			fmt.Fprintln(os.Stderr)
		}

		fmt.Printf("total=%d successful=%d failed=%d skipped=%d\n",
			res.Summary.TotalFiles, res.Summary.Successful, res.Summary.Failed, res.Summary.Skipped)
		for kind, groups := range res.ErrorSummary {
			for _, g := range groups {
				fmt.Printf("  %s x%d: %s\n", kind, g.Count, g.MessageTemplate)
			}
		}
		if res.Metrics != nil {
			fmt.Printf("parse ms p50=%.1f p95=%.1f p99=%.1f\n",
				res.Metrics.ParseP50Ms, res.Metrics.ParseP95Ms, res.Metrics.ParseP99Ms)
		}
		return nil
	},
}

var grammarCmd = &cobra.Command{
	Use:   "grammar",
	Short: "Manage the grammar artifact cache",
}

var grammarInstallCmd = &cobra.Command{
	Use:   "install [language]",
	Short: "Download and verify a grammar artifact",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		core := newCore()
		defer core.Close()
		path, err := core.AcquireGrammar(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	},
}

var grammarVerifyCmd = &cobra.Command{
	Use:   "verify [language]",
	Short: "Recheck a cached grammar's integrity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		core := newCore()
		defer core.Close()
		if !core.VerifyGrammar(args[0]) {
			return fmt.Errorf("grammar %q failed verification", args[0])
		}
		fmt.Println("ok")
		return nil
	},
}

var grammarCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete the grammar cache tree",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		core := newCore()
		defer core.Close()
		return core.CleanGrammars()
	},
}

var grammarListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered languages",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		core := newCore()
		defer core.Close()
		for _, name := range core.Languages() {
			desc, _ := core.DescribeLanguage(name)
			mode := "portable"
			if desc.NativeModule != "" {
				mode = "native"
			}
			fmt.Printf("%-12s %-8s %v\n", name, mode, desc.Extensions)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&grammarDir, "grammar-dir", "", "Grammar cache directory (default .astdb/grammars)")
	rootCmd.PersistentFlags().StringVar(&profile, "profile", "full", "Pipeline profile: minimal, full, performance")
	rootCmd.PersistentFlags().StringVarP(&outputDir, "out", "o", "", "Serialize bundles into this directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log progress and grammar activity")

	batchCmd.Flags().IntVarP(&concurrency, "concurrency", "c", 0, "Parallel file limit (default min(8, cores))")
	batchCmd.Flags().StringVar(&storePath, "store", "", "Persist bundles into a SQLite store at this path")
	batchCmd.Flags().IntVar(&maxFiles, "max-files", 0, "Stop scanning after this many files")
	batchCmd.Flags().BoolVar(&noRecurse, "no-recurse", false, "Do not descend into subdirectories")

	grammarCmd.AddCommand(grammarInstallCmd, grammarVerifyCmd, grammarCleanCmd, grammarListCmd)
	rootCmd.AddCommand(parseCmd, batchCmd, grammarCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
