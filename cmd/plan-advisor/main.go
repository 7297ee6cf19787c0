package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gyeh/plan-advisor/internal/analysis"
	"github.com/gyeh/plan-advisor/internal/catalog"
	"github.com/gyeh/plan-advisor/internal/config"
	"github.com/gyeh/plan-advisor/internal/features"
	"github.com/gyeh/plan-advisor/internal/logging"
	"github.com/gyeh/plan-advisor/internal/output"
	"github.com/gyeh/plan-advisor/internal/plan"
	"github.com/gyeh/plan-advisor/internal/progress"
	"github.com/gyeh/plan-advisor/internal/store"
)

// app carries the state every subcommand shares once the root has loaded
// the configuration.
type app struct {
	configPath string
	verbose    bool

	cfg *config.Config
	log *zap.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:               "plan-advisor",
		Short:             "Recommend insurance plans and plan bundles for a household",
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}
	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "plan-advisor.yaml", "Config file (missing file uses defaults)")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Debug logging")

	rootCmd.AddCommand(newAnalyzeCmd(a))
	rootCmd.AddCommand(newBatchCmd(a))
	rootCmd.AddCommand(newCatalogCmd(a))
	rootCmd.AddCommand(newStatusCmd(a))
	rootCmd.AddCommand(newConfigCmd(a))
	return rootCmd
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	log, err := logging.New(cfg.Logging.Level, cfg.Logging.Format, a.verbose)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = log
	return nil
}

// catalogFlags are the catalog source flags shared by analyze, batch and
// catalog.
type catalogFlags struct {
	uris       []string
	activeOnly bool
	stdGzip    bool
	table      string
	region     string
	tmpDir     string
}

func (f *catalogFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVar(&f.uris, "catalog", nil, "Plan catalog: file, sqlite://, postgres://, http(s):// or s3:// (repeatable)")
	cmd.Flags().BoolVar(&f.activeOnly, "active-only", false, "Drop plans that are not in the required status while loading")
	cmd.Flags().BoolVar(&f.stdGzip, "std-gzip", false, "Use compress/gzip instead of pgzip")
	cmd.Flags().StringVar(&f.table, "table", catalog.DefaultTable, "Table name for SQL catalogs")
	cmd.Flags().StringVar(&f.region, "region", "", "AWS region for s3:// catalogs (default: AWS config)")
	cmd.Flags().StringVar(&f.tmpDir, "tmp-dir", "", "Temp directory for downloaded catalogs (default: system temp)")
	cmd.MarkFlagRequired("catalog")
}

func (a *app) loadCatalog(ctx context.Context, f *catalogFlags) ([]plan.Plan, error) {
	opts := catalog.Options{
		ActiveOnly:     f.activeOnly,
		RequiredStatus: a.cfg.Eligibility.RequiredStatus,
		UseStdGzip:     f.stdGzip,
		Table:          f.table,
		Region:         f.region,
		TempDir:        f.tmpDir,
		Logger:         a.log,
	}
	if a.verbose {
		tracker := progress.NewLogManager().NewTracker(0, 1, "catalog")
		tracker.SetStage("downloading")
		defer tracker.Done()
		opts.OnProgress = tracker.SetProgress
	}

	sources := make([]catalog.Source, 0, len(f.uris))
	for _, uri := range f.uris {
		src, err := catalog.Open(uri, opts)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}

	start := time.Now()
	plans, err := catalog.Multi{Sources: sources, Logger: a.log}.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}
	a.log.Info("catalog loaded",
		zap.Int("plans", len(plans)),
		zap.Int("sources", len(sources)),
		zap.String("ndjson_parser", catalog.ParserName()),
		zap.Duration("elapsed", time.Since(start)))
	return plans, nil
}

// deriver returns the Gemini deriver, or a StaticDeriver when the input is
// already a feature object.
func (a *app) deriver(ctx context.Context, useLLM bool) (features.Deriver, error) {
	if !useLLM {
		return features.StaticDeriver{Keywords: a.cfg.AilmentKeywords}, nil
	}
	d, err := features.NewGenAIDeriver(ctx, features.GenAIOptions{
		APIKey:         a.cfg.LLM.APIKey,
		Model:          a.cfg.LLM.Model,
		Temperature:    a.cfg.LLM.Temperature,
		ThinkingBudget: a.cfg.LLM.ThinkingBudget,
		Timeout:        a.cfg.GetLLMTimeout(),
		PromptPath:     a.cfg.LLM.PromptPath,
		Keywords:       a.cfg.AilmentKeywords,
		Logger:         a.log,
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (a *app) analyzer(d features.Deriver) *analysis.Analyzer {
	return analysis.New(d, analysis.OptionsFromConfig(a.cfg, a.log), a.log)
}

func newAnalyzeCmd(a *app) *cobra.Command {
	var (
		cat          catalogFlags
		clientPath   string
		featuresPath string
		submissionID string
		dbPath       string
		outputFile   string
		noLLM        bool
		saveProposal bool
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Recommend plans for one household",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			useLLM := !noLLM
			var (
				payload []byte
				err     error
				st      *store.Store
			)
			switch {
			case featuresPath != "":
				payload, err = readInput(featuresPath)
				useLLM = false
			case clientPath != "":
				payload, err = readInput(clientPath)
			default:
				st, err = store.Open(dbPath)
				if err != nil {
					return err
				}
				defer st.Close()
				var sub *store.Submission
				sub, err = st.ReadClientRecord(ctx, submissionID)
				if err == nil {
					payload = sub.FormSummary
				}
			}
			if err != nil {
				return fmt.Errorf("reading household: %w", err)
			}

			plans, err := a.loadCatalog(ctx, &cat)
			if err != nil {
				return err
			}
			d, err := a.deriver(ctx, useLLM)
			if err != nil {
				return err
			}

			startTime := time.Now()
			res, err := a.analyzer(d).Analyze(ctx, payload, plans, nil)
			if err != nil {
				return err
			}

			if st != nil && saveProposal {
				if err := st.SaveProposal(ctx, submissionID, res.RunID, res); err != nil {
					return fmt.Errorf("saving proposal: %w", err)
				}
			}
			if err := output.WriteResult(ctx, outputFile, res); err != nil {
				return fmt.Errorf("writing output: %w", err)
			}

			fmt.Fprintf(os.Stderr, "Analysis %s complete: %d ranked plans, %d full-family plans, %d packages in %.1fs\n",
				res.RunID, len(res.AllRankedPlans), len(res.FullFamily.Plans), res.PackageCount(),
				time.Since(startTime).Seconds())
			return nil
		},
	}

	cat.register(cmd)
	cmd.Flags().StringVar(&clientPath, "client", "", "Client record JSON for feature derivation ('-' for stdin)")
	cmd.Flags().StringVar(&featuresPath, "features", "", "Already-derived feature JSON ('-' for stdin)")
	cmd.Flags().StringVar(&submissionID, "submission", "", "Submission ID to read from the workflow store")
	cmd.Flags().StringVar(&dbPath, "db", "plan-advisor.db", "Workflow store database")
	cmd.Flags().StringVarP(&outputFile, "output", "o", output.Stdout, "Output file, '-' for stdout, or s3://bucket/key")
	cmd.Flags().BoolVar(&noLLM, "no-llm", false, "Treat the client record as already-derived features")
	cmd.Flags().BoolVar(&saveProposal, "save", true, "Save the result as a proposal when analyzing a submission")
	cmd.MarkFlagsOneRequired("client", "features", "submission")
	cmd.MarkFlagsMutuallyExclusive("client", "features", "submission")

	return cmd
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "\nInterrupted, cleaning up...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

// isTerminal returns true if stderr is connected to a terminal.
func isTerminal() bool {
	fi, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
