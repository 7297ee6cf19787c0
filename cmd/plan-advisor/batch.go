package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gyeh/plan-advisor/internal/cloud"
	"github.com/gyeh/plan-advisor/internal/output"
	"github.com/gyeh/plan-advisor/internal/progress"
	"github.com/gyeh/plan-advisor/internal/store"
	"github.com/gyeh/plan-advisor/internal/worker"
)

func newBatchCmd(a *app) *cobra.Command {
	var (
		cat        catalogFlags
		inputFile  string
		outputFile string
		outputDir  string
		dbPath     string
		workers    int
		noLLM      bool
		noProgress bool
	)

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Recommend plans for every household in a batch file",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			tmpDir := cat.tmpDir
			if tmpDir == "" {
				tmpDir = os.TempDir()
			}
			if err := os.MkdirAll(tmpDir, 0o755); err != nil {
				return fmt.Errorf("creating temp dir: %w", err)
			}

			records, err := worker.ReadFile(inputFile, tmpDir, cat.stdGzip)
			if err != nil {
				return fmt.Errorf("reading batch: %w", err)
			}

			plans, err := a.loadCatalog(ctx, &cat)
			if err != nil {
				return err
			}
			d, err := a.deriver(ctx, !noLLM)
			if err != nil {
				return err
			}

			var mgr progress.Manager
			switch {
			case noProgress:
				mgr = &progress.NoopManager{}
			case isTerminal():
				mgr = progress.NewMPBManager(len(records))
			default:
				mgr = progress.NewLogManager()
			}

			startTime := time.Now()
			pool := &worker.Pool{
				Workers:  workers,
				Analyzer: a.analyzer(d),
				Catalog:  plans,
				Progress: mgr,
				Logger:   a.log,
			}
			outcomes := pool.Run(ctx, records)
			mgr.Wait()

			for _, o := range outcomes {
				if o.Err != nil {
					fmt.Fprintf(os.Stderr, "Error processing %s: %v\n", o.ID, o.Err)
				}
			}

			if dbPath != "" {
				if err := saveProposals(ctx, dbPath, outcomes, a.log); err != nil {
					return err
				}
			}
			if outputDir != "" {
				for _, o := range outcomes {
					if o.Result == nil {
						continue
					}
					if err := output.WriteResult(ctx, recordPath(outputDir, o.ID), o.Result); err != nil {
						return fmt.Errorf("writing %s: %w", o.ID, err)
					}
				}
			}
			if err := writeOutcomes(outputFile, outcomes); err != nil {
				return fmt.Errorf("writing output: %w", err)
			}

			complete, failed, packages := worker.Summarize(outcomes)
			fmt.Fprintf(os.Stderr, "\nBatch complete: %d households, %d analyzed, %d failed, %d packages in %.1fs\n",
				len(records), complete, failed, packages, time.Since(startTime).Seconds())
			if complete == 0 && failed > 0 {
				return errors.New("every record failed")
			}
			return nil
		},
	}

	cat.register(cmd)
	cmd.Flags().StringVarP(&inputFile, "input", "i", "", "Batch file: NDJSON records (optionally .gz) or a JSON document with a records array")
	cmd.Flags().StringVarP(&outputFile, "output", "o", output.Stdout, "NDJSON outcomes file ('-' for stdout)")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "Also write one <unique_id>.json per household to this directory or s3:// prefix")
	cmd.Flags().StringVar(&dbPath, "db", "", "Save results as proposals for matching submissions in this workflow store")
	cmd.Flags().IntVar(&workers, "workers", 3, "Number of concurrent households")
	cmd.Flags().BoolVar(&noLLM, "no-llm", false, "Treat client records as already-derived features")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable progress output")
	cmd.MarkFlagRequired("input")

	return cmd
}

func writeOutcomes(dest string, outcomes []worker.Outcome) error {
	if dest == output.Stdout || dest == "" {
		return output.WriteLines(os.Stdout, outcomes)
	}
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	if err := output.WriteLines(f, outcomes); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// recordPath joins dir and the record file name for both local and s3
// destinations.
func recordPath(dir, id string) string {
	name := strings.NewReplacer("/", "_", "\\", "_").Replace(id) + ".json"
	if cloud.IsS3URI(dir) {
		return strings.TrimSuffix(dir, "/") + "/" + name
	}
	return filepath.Join(dir, name)
}

func saveProposals(ctx context.Context, dbPath string, outcomes []worker.Outcome, log *zap.Logger) error {
	st, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	saved := 0
	for _, o := range outcomes {
		if o.Result == nil {
			continue
		}
		err := st.SaveProposal(ctx, o.ID, o.Result.RunID, o.Result)
		switch {
		case errors.Is(err, store.ErrNotFound):
			log.Warn("no submission for record, proposal not saved", zap.String("unique_id", o.ID))
		case err != nil:
			return fmt.Errorf("saving proposal for %s: %w", o.ID, err)
		default:
			saved++
		}
	}
	log.Info("proposals saved", zap.Int("count", saved))
	return nil
}
