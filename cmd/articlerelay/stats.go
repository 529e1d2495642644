package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ArticleRelay/internal/domain"
)

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show feed and pipeline statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := a.Store.Stats(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Printf("Feeds: %d total, %d active, %d paywalled\n",
				stats.TotalFeeds, stats.ActiveFeeds, stats.PaywalledFeeds)
			fmt.Printf("Paywall hits: %d\n", stats.TotalPaywallHits)

			fmt.Println("Entries by stage:")
			for _, stage := range []domain.Stage{
				domain.StageDiscovered, domain.StageScraped,
				domain.StageRewritten, domain.StagePublished, domain.StageFailed,
			} {
				fmt.Printf("  %-11s %d\n", string(stage), stats.EntriesByStage[stage])
			}
			return nil
		},
	}
}
