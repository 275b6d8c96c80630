package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"stillframe/internal/config"
	"stillframe/internal/daemon"
	"stillframe/internal/preflight"
	"stillframe/internal/session"
	"stillframe/internal/store"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, filesystem, dependency, and Bot API health",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			var lines []string
			lines = append(lines, renderSectionHeader("Daemon", colorize)...)
			lines = append(lines, daemonLines(cfg, ctx, colorize)...)

			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Filesystem", colorize)...)
			results := preflight.RunAll(cmd.Context(), cfg)
			lines = append(lines, preflightLines(results, colorize)...)

			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Dependencies", colorize)...)
			statuses := preflight.CheckSystemDeps(cmd.Context(), cfg)
			lines = append(lines, dependencyLines(statuses, colorize)...)

			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Telegram", colorize)...)
			lines = append(lines, telegramLine(cmd, cfg, offline, colorize))

			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Sessions", colorize)...)
			lines = append(lines, sessionLines(cmd, ctx, colorize)...)

			fmt.Fprintln(out, strings.Join(lines, "\n"))
			return nil
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "Skip the Bot API connectivity check")
	return cmd
}

func daemonLines(cfg *config.Config, ctx *commandContext, colorize bool) []string {
	var lines []string
	held, err := daemon.LockHeld(cfg.LockPath())
	switch {
	case err != nil:
		lines = append(lines, renderStatusLine("stillframe", statusWarn, err.Error(), colorize))
	case held:
		lines = append(lines, renderStatusLine("stillframe", statusOK, "Running", colorize))
	default:
		lines = append(lines, renderStatusLine("stillframe", statusWarn, "Not running", colorize))
	}
	configDetail := ctx.configPath
	if !ctx.configSeen {
		configDetail += " (not found; defaults in use)"
	}
	lines = append(lines,
		renderStatusLine("Config", statusInfo, configDetail, colorize),
		renderStatusLine("Database", statusInfo, cfg.DatabasePath(), colorize),
	)
	return lines
}

func telegramLine(cmd *cobra.Command, cfg *config.Config, offline bool, colorize bool) string {
	if offline {
		return renderStatusLine("Telegram", statusInfo, "Check skipped (--offline)", colorize)
	}
	result := preflight.CheckTelegramFromConfig(cmd.Context(), cfg)
	if result.Passed {
		return renderStatusLine(result.Name, statusOK, result.Detail, colorize)
	}
	return renderStatusLine(result.Name, statusError, result.Detail, colorize)
}

func sessionLines(cmd *cobra.Command, ctx *commandContext, colorize bool) []string {
	var lines []string
	err := ctx.withStore(func(_ *config.Config, st *store.Store) error {
		sessions, err := st.Sessions().List(cmd.Context())
		if err != nil {
			return err
		}
		counts := make(map[session.State]int)
		for _, sess := range sessions {
			counts[session.StateOf(sess)]++
		}
		lines = append(lines,
			renderStatusLine("Pending", statusInfo, fmt.Sprintf("%d", len(sessions)), colorize),
			renderStatusLine("Waiting for image", statusInfo, fmt.Sprintf("%d", counts[session.StateHasAudioOnly]), colorize),
			renderStatusLine("Waiting for audio", statusInfo, fmt.Sprintf("%d", counts[session.StateHasImageOnly]), colorize),
		)
		if ready := counts[session.StateReady]; ready > 0 {
			lines = append(lines, renderStatusLine("Rendering", statusInfo, fmt.Sprintf("%d", ready), colorize))
		}
		return nil
	})
	if err != nil {
		return []string{renderStatusLine("Pending", statusError, err.Error(), colorize)}
	}
	return lines
}
