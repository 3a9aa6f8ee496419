package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newConversationsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"conv"},
		Short:   "List local conversations, most recent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			list, err := a.store.Conversations(ctx)
			if err != nil {
				return err
			}
			current, err := a.store.CurrentID(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, gray("No conversations."))
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			for _, c := range list {
				marker := " "
				if c.Id == current {
					marker = green("*")
				}
				study := ""
				if c.StudyMaterial != nil {
					study = cyan("[study]")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d msgs\t%s\t%s\n",
					marker, gray(c.Id), c.Title, len(c.Messages), c.LastMessageTime.Local().Format(time.DateTime), study)
			}
			return w.Flush()
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "new [title]",
			Short: "Start a new conversation and make it current",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				title := ""
				if len(args) == 1 {
					title = args[0]
				}
				c, err := a.store.CreateConversation(cmd.Context(), title, nil)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", green("✓ Created"), c.Id)
				return nil
			},
		},
		&cobra.Command{
			Use:   "use <id>",
			Short: "Make a conversation current",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if _, err := a.store.Conversation(cmd.Context(), args[0]); err != nil {
					return err
				}
				return a.store.SetCurrent(cmd.Context(), args[0])
			},
		},
		&cobra.Command{
			Use:   "show [id]",
			Short: "Print a conversation (the current one by default)",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx := cmd.Context()
				id, err := a.store.CurrentID(ctx)
				if err != nil {
					return err
				}
				if len(args) == 1 {
					id = args[0]
				}
				if id == "" {
					fmt.Fprintln(cmd.OutOrStdout(), gray("No current conversation."))
					return nil
				}
				c, err := a.store.Conversation(ctx, id)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, bold(c.Title))
				if c.PageContext != nil {
					fmt.Fprintln(out, gray(c.PageContext.Title+" ("+c.PageContext.URL+")"))
				}
				for _, m := range c.Messages {
					for _, p := range m.Parts {
						fmt.Fprintf(out, "%s %s\n", roleLabel(m.Role), p.Text)
					}
				}
				if c.StudyMaterial != nil {
					printMaterial(out, c.StudyMaterial)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "delete <id>",
			Short: "Delete a conversation",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := a.store.DeleteConversation(cmd.Context(), args[0]); err != nil {
					return err
				}
				// a generation for it has nowhere to land any more
				return a.store.ClearPollState(cmd.Context(), args[0])
			},
		},
	)
	return cmd
}
