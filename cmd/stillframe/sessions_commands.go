package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"stillframe/internal/config"
	"stillframe/internal/session"
	"stillframe/internal/store"
	"stillframe/internal/workdir"
)

func newSessionsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect or reset pending upload sessions",
	}
	cmd.AddCommand(newSessionsListCommand(ctx))
	cmd.AddCommand(newSessionsClearCommand(ctx))
	return cmd
}

func newSessionsListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users with a pending audio or image",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				sessions, err := st.Sessions().List(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(sessions) == 0 {
					fmt.Fprintln(out, "No pending sessions")
					return nil
				}
				rows := make([][]string, 0, len(sessions))
				for _, sess := range sessions {
					rows = append(rows, []string{
						strconv.FormatInt(sess.UserID, 10),
						session.StateOf(sess).String(),
						fileCell(sess.AudioPath),
						fileCell(sess.ImagePath),
						sess.UpdatedAt.Local().Format(time.DateTime),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"User", "State", "Audio", "Image", "Updated"},
					rows,
					[]columnAlignment{alignRight},
				))
				return nil
			})
		},
	}
}

func newSessionsClearCommand(ctx *commandContext) *cobra.Command {
	var keepFiles bool

	cmd := &cobra.Command{
		Use:   "clear USER_ID",
		Short: "Drop a user's pending session and its uploaded files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				sessions := st.Sessions()
				sess, err := sessions.Get(cmd.Context(), userID)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if sess.Empty() {
					fmt.Fprintf(out, "User %d has no pending session\n", userID)
					return nil
				}
				if err := sessions.Clear(cmd.Context(), userID); err != nil {
					return err
				}
				if !keepFiles {
					if err := workdir.Remove(sess.Paths()...); err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "warn: %v\n", err)
					}
				}
				fmt.Fprintf(out, "Cleared session for user %d (files removed: %s)\n", userID, yesNo(!keepFiles))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&keepFiles, "keep-files", false, "Leave the uploaded files in the work directory")
	return cmd
}

func fileCell(path string) string {
	if path == "" {
		return "-"
	}
	if !workdir.Exists(path) {
		return path + " (missing)"
	}
	return path
}
