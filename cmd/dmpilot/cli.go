package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func executeCLI() error {
	return buildRootCommand(true).Execute()
}

func buildRootCommand(includeDocsCommand bool) *cobra.Command {
	var showVersion bool

	root := &cobra.Command{
		Use:   "dmpilot",
		Short: "Automated direct-message responder with adaptive replies",
		Long: strings.TrimSpace(`dmpilot answers direct messages for you: it classifies inbound
messages, replies from a learned response catalog with human-like pacing,
and grows the catalog from conversations it could not answer.`),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				printVersion()
				return nil
			}
			_ = cmd.Help()
			return fmt.Errorf("a subcommand is required")
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.Flags().BoolVarP(&showVersion, "version", "v", false, "Show build/version metadata")

	root.AddCommand(newOnboardCommand())
	root.AddCommand(newRunCommand())
	root.AddCommand(newChatCommand())
	root.AddCommand(newLearnCommand())
	root.AddCommand(newStatusCommand())
	root.AddCommand(newVersionCommand())

	if includeDocsCommand {
		root.AddCommand(newDocsCommand(func() *cobra.Command { return buildRootCommand(false) }))
	}

	return root
}

func newOnboardCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "onboard",
		Short:   "Initialize ~/.dmpilot config and workspace",
		Long:    "Create the default configuration and workspace directories for a new dmpilot installation.",
		Example: "  dmpilot onboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			return onboard()
		},
	}
}

func newRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "run",
		Short:   "Run the responder bot (Discord gateway + learning schedule)",
		Long:    "Start the Discord channel, the message responder loop, and the scheduled catalog learning pass.",
		Example: "  dmpilot run",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot()
		},
	}
}

func newChatCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "chat",
		Short:   "Chat with the responder locally in the terminal",
		Long:    "Run an interactive console session against the same engine and response catalog the bot uses.",
		Example: "  dmpilot chat",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat()
		},
	}
}

func newLearnCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "learn",
		Short:   "Run one catalog learning pass now",
		Long:    "Scan conversation history for repeatedly unanswered messages and add new response patterns for them.",
		Example: "  dmpilot learn",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLearn()
		},
	}
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		Short:   "Show configuration and runtime readiness",
		Example: "  dmpilot status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return statusCmd()
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Short:   "Show build/version metadata",
		Example: "  dmpilot version",
		RunE: func(cmd *cobra.Command, args []string) error {
			printVersion()
			return nil
		},
	}
}
