package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/gyeh/plan-advisor/internal/catalog"
	"github.com/gyeh/plan-advisor/internal/config"
	"github.com/gyeh/plan-advisor/internal/output"
	"github.com/gyeh/plan-advisor/internal/store"
)

func newCatalogCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect and convert plan catalogs",
	}
	cmd.AddCommand(newCatalogCheckCmd(a))
	cmd.AddCommand(newCatalogConvertCmd(a))
	return cmd
}

func newCatalogCheckCmd(a *app) *cobra.Command {
	var (
		cat        catalogFlags
		outputFile string
	)
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Load a catalog and report plan counts and unreadable policy codes",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			plans, err := a.loadCatalog(ctx, &cat)
			if err != nil {
				return err
			}
			report := catalog.Inspect(plans)
			if err := output.WriteResult(ctx, outputFile, report); err != nil {
				return fmt.Errorf("writing report: %w", err)
			}
			if n := len(report.PolicyWarnings); n > 0 {
				fmt.Fprintf(os.Stderr, "%d plans have policy codes that will be accepted without validation\n", n)
			}
			return nil
		},
	}
	cat.register(cmd)
	cmd.Flags().StringVarP(&outputFile, "output", "o", output.Stdout, "Report file, '-' for stdout, or s3://bucket/key")
	return cmd
}

func newCatalogConvertCmd(a *app) *cobra.Command {
	var (
		cat        catalogFlags
		outputFile string
	)
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Merge catalogs into one Parquet file",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			plans, err := a.loadCatalog(ctx, &cat)
			if err != nil {
				return err
			}
			if err := catalog.WriteParquet(outputFile, plans); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Wrote %d plans to %s\n", len(plans), outputFile)
			return nil
		},
	}
	cat.register(cmd)
	cmd.Flags().StringVarP(&outputFile, "output", "o", "plans.parquet", "Parquet output file")
	return cmd
}

func newStatusCmd(a *app) *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Manage client submissions and their application status",
	}
	cmd.PersistentFlags().StringVar(&dbPath, "db", "plan-advisor.db", "Workflow store database")

	withStore := func(fn func(cmd *cobra.Command, st *store.Store, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			st, err := store.Open(dbPath)
			if err != nil {
				return err
			}
			defer st.Close()
			return fn(cmd, st, args)
		}
	}

	var fullName, agent string
	submit := &cobra.Command{
		Use:   "submit <form.json>",
		Short: "Store a client record in SUBMITTED state",
		Args:  cobra.ExactArgs(1),
		RunE: withStore(func(cmd *cobra.Command, st *store.Store, args []string) error {
			form, err := readInput(args[0])
			if err != nil {
				return err
			}
			sub, err := st.CreateSubmission(cmd.Context(), fullName, agent, form)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sub.UniqueID)
			return nil
		}),
	}
	submit.Flags().StringVar(&fullName, "name", "", "Client full name")
	submit.Flags().StringVar(&agent, "agent", "", "Submitting agent")

	var by, comments string
	set := &cobra.Command{
		Use:   "set <unique_id> <status>",
		Short: "Move a submission to a new status",
		Long:  "Move a submission to a new status. Statuses: " + strings.Join(statusNames(), ", "),
		Args:  cobra.ExactArgs(2),
		RunE: withStore(func(cmd *cobra.Command, st *store.Store, args []string) error {
			return st.WriteStatus(cmd.Context(), args[0], store.Status(args[1]), by, comments)
		}),
	}
	set.Flags().StringVar(&by, "by", "", "Who made the change")
	set.Flags().StringVar(&comments, "comments", "", "Comments recorded with the change")

	history := &cobra.Command{
		Use:   "history <unique_id>",
		Short: "Print the status log of a submission",
		Args:  cobra.ExactArgs(1),
		RunE: withStore(func(cmd *cobra.Command, st *store.Store, args []string) error {
			entries, err := st.History(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-18s %-12s %s\n",
					e.ModifiedAt.Format("2006-01-02 15:04:05"), e.Status, e.ModifiedBy, e.Comments)
			}
			sub, err := st.ReadClientRecord(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if next := store.Next(sub.Status); len(next) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "next: %v\n", next)
			}
			return nil
		}),
	}

	var proposalOut string
	proposal := &cobra.Command{
		Use:   "proposal <unique_id>",
		Short: "Print the latest saved proposal of a submission",
		Args:  cobra.ExactArgs(1),
		RunE: withStore(func(cmd *cobra.Command, st *store.Store, args []string) error {
			p, err := st.LatestProposal(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if proposalOut == output.Stdout {
				return output.WriteJSON(cmd.OutOrStdout(), p)
			}
			return output.WriteResult(cmd.Context(), proposalOut, p)
		}),
	}
	proposal.Flags().StringVarP(&proposalOut, "output", "o", output.Stdout, "Output file, '-' for stdout, or s3://bucket/key")

	cmd.AddCommand(submit, set, history, proposal)
	return cmd
}

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
		// Skip the root's load so a broken file can be replaced.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(a.configPath); err == nil && !force {
				return fmt.Errorf("%s exists (use --force to overwrite)", a.configPath)
			}
			if err := config.DefaultConfig().Save(a.configPath); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Wrote %s\n", a.configPath)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			cfg.LLM.APIKey = redact(cfg.LLM.APIKey)
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			if err != nil {
				return err
			}
			return cfg.Validate()
		},
	}

	cmd.AddCommand(initCmd, show)
	return cmd
}

func redact(key string) string {
	if key == "" {
		return ""
	}
	return "***"
}

func statusNames() []string {
	all := store.AllStatuses()
	out := make([]string, len(all))
	for i, s := range all {
		out[i] = string(s)
	}
	return out
}
