package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ArticleRelay/internal/infrastructure/scheduler"
	"ArticleRelay/internal/usecase"
)

func newRunCmd() *cobra.Command {
	var (
		limit       int
		skipRewrite bool
		skipPublish bool
		watch       bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute one pipeline run, or keep running with --watch",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			pipeline, err := a.Pipeline(usecase.PipelineOptions{
				Limit:       limit,
				SkipRewrite: skipRewrite,
				SkipPublish: skipPublish,
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if watch {
				watcher := usecase.NewWatcher(pipeline,
					scheduler.New(a.Config.Monitor.WatchInterval()), a.Logger)
				return watcher.Run(ctx)
			}

			summary, err := pipeline.Run(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("Run %s: discovered %d, published %d, failed %d, skipped %d, paywalled %d, resumed %d\n",
				summary.RunID, summary.Discovered, summary.Published, summary.Failed,
				summary.Skipped, summary.Paywalled, summary.Resumed)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "max new entries to process this run (0 = unlimited)")
	cmd.Flags().BoolVar(&skipRewrite, "skip-rewrite", false, "publish original text instead of AI rewrite")
	cmd.Flags().BoolVar(&skipPublish, "skip-publish", false, "stop after rewriting, do not publish")
	cmd.Flags().BoolVar(&watch, "watch", false, "keep running on the configured interval")
	return cmd
}
