package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"ArticleRelay/internal/app"
	"ArticleRelay/internal/config"
	"ArticleRelay/internal/domain"
	"ArticleRelay/internal/health"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "articlerelay",
		Short: "Monitor feeds, rewrite articles, publish them",
		Long: "ArticleRelay polls RSS feeds and site pages for new articles,\n" +
			"scrapes and optionally rewrites them through an AI backend, and\n" +
			"publishes the result to WordPress. Configuration comes from the\n" +
			"YAML file named by ARTICLE_RELAY_CONFIG plus environment overrides.",
		SilenceUsage: true,
	}

	root.AddCommand(
		newRunCmd(),
		newFeedCmd(),
		newPromptCmd(),
		newStatsCmd(),
	)
	return root
}

// openApp loads configuration and wires the application for a command.
func openApp() (*app.App, error) {
	cfg := config.Load()
	return app.New(cfg, decisionFromPolicy(cfg.Paywall.Policy))
}

// decisionFromPolicy maps the configured paywall policy to a decision
// function. The ask policy prompts on a terminal and keeps the feed
// when there is no operator to answer.
func decisionFromPolicy(policy string) health.DecisionFunc {
	switch policy {
	case "paywall":
		return func(domain.Feed, int) domain.PaywallDecision { return domain.DecisionMarkPaywalled }
	case "remove":
		return func(domain.Feed, int) domain.PaywallDecision { return domain.DecisionRemove }
	case "keep":
		return func(domain.Feed, int) domain.PaywallDecision { return domain.DecisionKeep }
	default:
		return askDecision
	}
}

func askDecision(feed domain.Feed, recentHits int) domain.PaywallDecision {
	if !stdinIsTerminal() {
		return domain.DecisionKeep
	}

	fmt.Printf("\nFeed %q hit a paywall %d times recently.\n", feed.Name, recentHits)
	fmt.Print("Action? [k]eep / [p]aywall / [r]emove: ")

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return domain.DecisionKeep
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "p", "paywall":
		return domain.DecisionMarkPaywalled
	case "r", "remove":
		return domain.DecisionRemove
	default:
		return domain.DecisionKeep
	}
}

func stdinIsTerminal() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
