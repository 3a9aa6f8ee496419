package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"clarvis-be/pkg/client"
	"clarvis-be/pkg/client/store"

	"github.com/spf13/cobra"
)

func newChatCommand(a *app) *cobra.Command {
	var page pageFlags
	cmd := &cobra.Command{
		Use:   "chat <message>",
		Short: "Send a message in the current conversation",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			pc, err := page.load(ctx, out)
			if err != nil {
				return err
			}
			conv, err := a.store.EnsureCurrent(ctx, pc)
			if err != nil {
				return err
			}
			if pc == nil {
				pc = conv.PageContext
			} else if conv.PageContext == nil || conv.PageContext.URL != pc.URL {
				if conv, err = a.store.UpdateConversation(ctx, conv.Id, func(c *store.Conversation) { c.PageContext = pc }); err != nil {
					return err
				}
			}

			userMsg := store.TextMessage("user", strings.Join(args, " "), time.Now().UTC())
			conv, err = a.store.AppendMessages(ctx, conv.Id, userMsg)
			if err != nil {
				return err
			}

			printed := 0
			text, err := a.api.Chat(ctx, a.flags.agentId, conv.Messages, pc, func(full string) {
				fmt.Fprint(out, full[printed:])
				printed = len(full)
			})
			fmt.Fprintln(out)
			if errors.Is(err, client.ErrStreamInterrupted) {
				a.logger.Debug("CLI", "Chat stream interrupted", nil)
				return nil
			}
			if err != nil {
				return err
			}
			if printed == 0 {
				fmt.Fprintln(out, text)
			}

			_, err = a.store.AppendMessages(ctx, conv.Id, store.TextMessage("assistant", text, time.Now().UTC()))
			return err
		},
	}
	page.register(cmd)
	return cmd
}

func newHistoryCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the agent transcript kept by the backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := a.api.History(cmd.Context(), a.flags.agentId)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintln(out, gray("No messages."))
				return nil
			}
			for i := len(rows) - 1; i >= 0; i-- {
				row := rows[i]
				fmt.Fprintf(out, "%s %s %s\n", gray(row.Timestamp.Local().Format(time.Kitchen)), roleLabel(row.Role), row.Content)
			}
			return nil
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Clear the agent transcript kept by the backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.api.ClearHistory(cmd.Context(), a.flags.agentId); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), green("✓ History cleared"))
			return nil
		},
	})
	return cmd
}

func roleLabel(role string) string {
	if role == "user" {
		return bold(cyan("you:"))
	}
	return bold(green(role + ":"))
}
