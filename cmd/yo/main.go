// Package main provides the CLI entry point for yo, a local terminal
// coding assistant: one session wires a permission-gated tool loop to an
// LLM backend, with optional MCP tool servers, lifecycle hooks, and skill
// packs loaded from YAML configuration.
//
// # Basic usage
//
// Run one prompt against the default config:
//
//	yo run "add error handling to internal/server"
//
// Inspect a configured MCP server without starting a session:
//
//	yo mcp connect search
//	yo mcp list
//
// Report accumulated cost/tokens for a past session:
//
//	yo status <session-id>
//
// # Environment variables
//
//   - YO_CONFIG: path to the YAML configuration file (default: yo.yaml)
//   - ANTHROPIC_API_KEY: Anthropic API key for Claude models
//   - OPENAI_API_KEY: OpenAI API key for GPT models
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jgarzik/yo/internal/config"
	"github.com/jgarzik/yo/internal/cost"
	"github.com/jgarzik/yo/internal/policy"
	"github.com/jgarzik/yo/internal/session"
)

// Build information, populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "yo",
		Short:        "yo - a local terminal coding assistant",
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "yo.yaml", "path to YAML configuration file")

	root.AddCommand(
		buildRunCmd(&configPath),
		buildMCPCmd(&configPath),
		buildStatusCmd(&configPath),
	)
	return root
}

func resolveConfigPath(path string) string {
	if env := os.Getenv("YO_CONFIG"); env != "" && path == "yo.yaml" {
		return env
	}
	return path
}

func loadResolved(path string) (*config.Resolved, error) {
	cfg, err := config.Load(resolveConfigPath(path))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	resolved, err := config.Resolve(*cfg)
	if err != nil {
		return nil, fmt.Errorf("resolve config: %w", err)
	}
	return resolved, nil
}

// buildRunCmd runs one prompt through a freshly wired session and prints
// the assistant's final text plus the turn's accumulated cost.
func buildRunCmd(configPath *string) *cobra.Command {
	var root string
	var mode string

	cmd := &cobra.Command{
		Use:   "run [prompt]",
		Short: "Run one prompt through the agent loop",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolved, err := loadResolved(*configPath)
			if err != nil {
				return err
			}
			if mode != "" {
				resolved.Policy.SetMode(policy.ParseMode(mode))
			}

			sess, err := session.New(resolved, session.Options{
				Root:     root,
				Prompter: policy.NewAutoPrompter(os.Stdin, os.Stderr),
			})
			if err != nil {
				return fmt.Errorf("start session: %w", err)
			}
			defer sess.Close()

			for _, connErr := range sess.ConnectAutoStart(cmd.Context()) {
				slog.Warn("mcp auto_start failed", "error", connErr)
			}

			text, err := sess.RunTurn(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("run turn: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, text)
			fmt.Fprintf(out, "\n[%s tokens, %s, %d tool calls]\n",
				cost.FormatTokens(sess.Loop.Stats.TotalTokens()),
				cost.FormatUSD(sess.Loop.Stats.CostUSD),
				sess.Loop.Stats.ToolUses,
			)
			return nil
		},
	}
	cmd.Flags().StringVar(&root, "root", ".", "workspace root tool calls are confined to")
	cmd.Flags().StringVar(&mode, "mode", "", "override the configured permission mode (default|acceptEdits|bypassPermissions)")
	return cmd
}

// buildMCPCmd groups operator-facing MCP server inspection commands: a
// user diagnosing a broken server descriptor should not need to run a
// whole session just to test connect/list/health.
func buildMCPCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Inspect and manage external (MCP) tool servers",
	}
	cmd.AddCommand(buildMCPConnectCmd(configPath), buildMCPListCmd(configPath), buildMCPHealthCmd(configPath))
	return cmd
}

func buildMCPConnectCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "connect <server>",
		Short: "Connect to a configured MCP server and list its tools",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolved, err := loadResolved(*configPath)
			if err != nil {
				return err
			}
			sess, err := session.New(resolved, session.Options{Prompter: policy.AutoDeny{}})
			if err != nil {
				return err
			}
			defer sess.Close()

			pid, toolCount, err := sess.MCP.Connect(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("connect %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "connected %s (pid=%d, %d tools)\n", args[0], pid, toolCount)
			return nil
		},
	}
}

func buildMCPListCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every tool advertised by currently connected servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			resolved, err := loadResolved(*configPath)
			if err != nil {
				return err
			}
			sess, err := session.New(resolved, session.Options{Prompter: policy.AutoDeny{}})
			if err != nil {
				return err
			}
			defer sess.Close()

			for _, connErr := range sess.ConnectAutoStart(cmd.Context()) {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", connErr)
			}
			for _, t := range sess.MCP.AggregateTools() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", t.FullName, t.Description)
			}
			return nil
		},
	}
}

func buildMCPHealthCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "health <server>",
		Short: "Check whether a connected server's process has exited",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolved, err := loadResolved(*configPath)
			if err != nil {
				return err
			}
			sess, err := session.New(resolved, session.Options{Prompter: policy.AutoDeny{}})
			if err != nil {
				return err
			}
			defer sess.Close()

			if _, _, err := sess.MCP.Connect(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("connect %s: %w", args[0], err)
			}
			status, err := sess.MCP.CheckHealth(args[0])
			if err != nil {
				return err
			}
			if status == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: running\n", args[0])
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: exited (code %d)\n", args[0], status.ExitCode)
			return nil
		},
	}
}

// buildStatusCmd reads a past session's accumulated stats back out of the
// sqlite store, so cost/token totals survive the process that ran them.
func buildStatusCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status <session-id>",
		Short: "Report accumulated cost and token usage for a past session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolved, err := loadResolved(*configPath)
			if err != nil {
				return err
			}
			if resolved.SessionDBPath == "" {
				return fmt.Errorf("session_db_path is not configured")
			}
			store, err := session.OpenStore(resolved.SessionDBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := store.LoadStats(context.Background(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "session:       %s\n", args[0])
			fmt.Fprintf(out, "input tokens:  %s\n", cost.FormatTokens(stats.InputTokens))
			fmt.Fprintf(out, "output tokens: %s\n", cost.FormatTokens(stats.OutputTokens))
			fmt.Fprintf(out, "cost:          %s\n", cost.FormatUSD(stats.CostUSD))
			fmt.Fprintf(out, "tool calls:    %d\n", stats.ToolUses)
			return nil
		},
	}
}
