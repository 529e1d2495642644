package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ArticleRelay/internal/tags"
)

func newPromptCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prompt",
		Short: "Manage thematic rewrite prompts",
	}
	cmd.AddCommand(newPromptAddCmd(), newPromptListCmd())
	return cmd
}

func newPromptAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <tag> <prompt...>",
		Short: "Set the thematic prompt for a tag",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			tag := tags.Normalize(args[0])
			prompt := strings.Join(args[1:], " ")
			if err := a.Store.UpsertThematicPrompt(cmd.Context(), tag, prompt); err != nil {
				return err
			}
			fmt.Printf("Prompt set for tag %q\n", tag)
			return nil
		},
	}
}

func newPromptListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List thematic prompts",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			prompts, err := a.Store.ThematicPrompts(cmd.Context())
			if err != nil {
				return err
			}
			if len(prompts) == 0 {
				fmt.Println("No thematic prompts configured.")
				return nil
			}

			for _, p := range prompts {
				fmt.Printf("%-24s %s\n", p.TagName, p.Prompt)
			}
			return nil
		},
	}
}
