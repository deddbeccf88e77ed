package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/timmy/stylematch/internal/app"
	"github.com/timmy/stylematch/internal/config"
	"github.com/timmy/stylematch/internal/domain"
	"github.com/timmy/stylematch/internal/logger"
	"github.com/timmy/stylematch/internal/service"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "indexer",
		Short:         "Index media images into the stylematch record store",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", os.Getenv("CONFIG_PATH"), "path to config file")

	cmd.AddCommand(
		newIndexCmd(opts),
		newRetryCmd(opts),
		newDeleteCmd(opts),
		newSourcesCmd(opts),
		newStatsCmd(opts),
	)
	return cmd
}

// withApp loads configuration, builds the application and runs fn under a
// context cancelled on SIGINT or SIGTERM.
func withApp(opts *rootOptions, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}

	envCfg := logger.LoadFromEnv()
	envCfg.Level = cfg.Log.Level
	envCfg.Format = cfg.Log.Format
	envCfg.ServiceName = "stylematch-indexer"
	logger.SetDefaultLogger(logger.NewFromEnv(envCfg))
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func newIndexCmd(opts *rootOptions) *cobra.Command {
	var (
		sourceName string
		limit      int
		force      bool
	)
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index every item of a staging source",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(opts, func(ctx context.Context, a *app.App) error {
				sources, err := a.Sources()
				if err != nil {
					return err
				}
				src, ok := sources[sourceName]
				if !ok {
					return fmt.Errorf("unknown source %q under %s", sourceName, a.Config.Index.StagingPath)
				}

				job, err := a.Index.IndexFromSource(ctx, src, service.IndexOptions{Limit: limit, Force: force})
				if job != nil {
					printJob(cmd.OutOrStdout(), job)
				}
				return err
			})
		},
	}
	cmd.Flags().StringVar(&sourceName, "source", "", "staging source name (subdirectory of index.staging_path)")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of items, 0 for all")
	cmd.Flags().BoolVar(&force, "force", false, "re-index items that are already active")
	_ = cmd.MarkFlagRequired("source")
	return cmd
}

func printJob(w io.Writer, job *domain.IndexJob) {
	fmt.Fprintf(w, "job %s %s: total=%d indexed=%d partial=%d unusable=%d skipped=%d failed=%d\n",
		job.ID, job.Status, job.TotalItems, job.IndexedItems, job.PartialItems,
		job.UnusableItems, job.SkippedItems, job.FailedItems)
}

func newRetryCmd(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "retry",
		Short: "Re-process items without usable vectors",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(opts, func(ctx context.Context, a *app.App) error {
				outcomes, err := a.Index.RetryUnusable(ctx, limit)
				if err != nil {
					return err
				}
				counts := map[service.IndexStatus]int{}
				for _, o := range outcomes {
					counts[o.Status]++
				}
				fmt.Fprintf(cmd.OutOrStdout(), "retried %d: indexed=%d partial=%d unusable=%d failed=%d\n",
					len(outcomes), counts[service.IndexStatusIndexed], counts[service.IndexStatusPartial],
					counts[service.IndexStatusUnusable], counts[service.IndexStatusFailed])
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum number of items to retry")
	return cmd
}

func newDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete MEDIA_ID...",
		Short: "Remove media items and their embedding records",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(ctx context.Context, a *app.App) error {
				for _, id := range args {
					if err := a.Index.DeleteMedia(ctx, id); err != nil {
						return fmt.Errorf("delete %s: %w", id, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
				}
				return nil
			})
		},
	}
}

func newSourcesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List staging sources",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(opts, func(_ context.Context, a *app.App) error {
				sources, err := a.Sources()
				if err != nil {
					return err
				}
				names := make([]string, 0, len(sources))
				for name := range sources {
					names = append(names, name)
				}
				sort.Strings(names)
				for _, name := range names {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", name, sources[name].GetDisplayName())
				}
				return nil
			})
		},
	}
}

func newStatsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count media items per status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(opts, func(ctx context.Context, a *app.App) error {
				stats, err := a.Index.Stats(ctx)
				if err != nil {
					return err
				}
				statuses := make([]domain.MediaStatus, 0, len(stats))
				for s := range stats {
					statuses = append(statuses, s)
				}
				sort.Slice(statuses, func(i, j int) bool { return statuses[i] < statuses[j] })
				for _, s := range statuses {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", s, stats[s])
				}
				return nil
			})
		},
	}
}
