package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"stillframe/internal/config"
	"stillframe/internal/locale"
	"stillframe/internal/store"
)

func newLangCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lang",
		Short: "Inspect or override user interface languages",
	}
	cmd.AddCommand(newLangGetCommand(ctx))
	cmd.AddCommand(newLangSetCommand(ctx))
	cmd.AddCommand(newLangListCommand(ctx))
	return cmd
}

func newLangGetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "get USER_ID",
		Short: "Show the language stored for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				lang, ok, err := st.Settings().Get(cmd.Context(), userID)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if !ok {
					fmt.Fprintf(out, "User %d: not set (default %s)\n", userID, cfg.DefaultLanguage())
					return nil
				}
				fmt.Fprintf(out, "User %d: %s\n", userID, lang)
				return nil
			})
		},
	}
}

func newLangSetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set USER_ID LANG",
		Short: "Store a language (RU or EN) for a user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			lang, ok := locale.Parse(args[1])
			if !ok {
				return fmt.Errorf("unsupported language %q (use RU or EN)", args[1])
			}
			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				if err := st.Settings().Set(cmd.Context(), userID, lang); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "User %d: %s\n", userID, lang)
				return nil
			})
		},
	}
}

func newLangListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every stored language preference",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				settings, err := st.Settings().List(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(settings) == 0 {
					fmt.Fprintln(out, "No stored languages")
					return nil
				}
				rows := make([][]string, 0, len(settings))
				for _, setting := range settings {
					rows = append(rows, []string{
						strconv.FormatInt(setting.UserID, 10),
						setting.Language.String(),
						setting.UpdatedAt.Local().Format(time.DateTime),
					})
				}
				fmt.Fprintln(out, renderTable([]string{"User", "Language", "Updated"}, rows, []columnAlignment{alignRight}))
				return nil
			})
		},
	}
}
