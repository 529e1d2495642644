package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"ArticleRelay/internal/domain"
)

func newFeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Manage monitored feeds",
	}
	cmd.AddCommand(
		newFeedAddCmd(),
		newFeedRemoveCmd(),
		newFeedToggleCmd(),
		newFeedListCmd(),
		newFeedImportCmd(),
		newFeedExportCmd(),
	)
	return cmd
}

func newFeedAddCmd() *cobra.Command {
	var (
		name string
		kind string
	)

	cmd := &cobra.Command{
		Use:   "add <url>",
		Short: "Add a feed to monitor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			id, err := a.Store.AddFeed(cmd.Context(), args[0], name, domain.FeedKind(kind))
			if err != nil {
				return err
			}
			fmt.Printf("Added feed %d: %s\n", id, args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "display name (defaults to the url)")
	cmd.Flags().StringVar(&kind, "kind", "rss", "feed kind: rss or site")
	return cmd
}

func newFeedRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a feed and its paywall history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseFeedID(args[0])
			if err != nil {
				return err
			}

			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Store.RemoveFeed(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Printf("Removed feed %d\n", id)
			return nil
		},
	}
}

func newFeedToggleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <id>",
		Short: "Enable or disable a feed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseFeedID(args[0])
			if err != nil {
				return err
			}

			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			active, err := a.Store.ToggleFeed(cmd.Context(), id)
			if err != nil {
				return err
			}
			state := "disabled"
			if active {
				state = "enabled"
			}
			fmt.Printf("Feed %d is now %s\n", id, state)
			return nil
		},
	}
}

func newFeedListCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List monitored feeds",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			feeds, err := a.Store.ListFeeds(cmd.Context(), all)
			if err != nil {
				return err
			}
			if len(feeds) == 0 {
				fmt.Println("No feeds configured.")
				return nil
			}

			for _, f := range feeds {
				fmt.Printf("%4d  %-8s %-8s %-8s %s\n",
					f.ID, string(f.Kind), feedState(f), feedHealth(f), f.URL)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "include disabled feeds")
	return cmd
}

func newFeedImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import feeds from a CSV (columns: url,name)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := a.Store.ImportFeedsCSV(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Imported %d of %d feeds (%d failed)\n",
				stats.Successful, stats.Total, stats.Failed)
			return nil
		},
	}
}

func newFeedExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <file.csv>",
		Short: "Export feeds to a CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Store.ExportFeedsCSV(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("Exported feeds to %s\n", args[0])
			return nil
		},
	}
}

func parseFeedID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid feed id %q", raw)
	}
	return id, nil
}

func feedState(f domain.Feed) string {
	if f.IsActive {
		return "active"
	}
	return "disabled"
}

func feedHealth(f domain.Feed) string {
	if f.IsPaywalled {
		return "paywall"
	}
	return "ok"
}
