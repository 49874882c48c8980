package main

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/docshelf/docshelf/pkg/view"
)

func newChatCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Ask questions about a document",
	}
	cmd.AddCommand(newChatSendCmd(c), newChatHistoryCmd(c))
	return cmd
}

func newChatSendCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "send <document-id> <message...>",
		Short: "Send a question about a document",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.signalContext(cmd)
			defer cancel()

			reply, err := c.app.Store.SendChatMessage(ctx, args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			if c.format == "json" {
				return outputJSON(cmd.OutOrStdout(), reply)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, reply.Response)
			for _, s := range reply.Sources {
				if s.Page > 0 {
					fmt.Fprintf(out, "  [p.%d] %s\n", s.Page, truncate(s.Excerpt, 100))
				} else if s.Excerpt != "" {
					fmt.Fprintf(out, "  %s\n", truncate(s.Excerpt, 100))
				}
			}
			return nil
		},
	}
}

func newChatHistoryCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "history <document-id>",
		Short: "Show the conversation about a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.signalContext(cmd)
			defer cancel()

			snap := c.app.Store.ChatHistory(ctx, args[0])
			if snap.Err != nil {
				return snap.Err
			}
			h := snap.Data
			return c.render(cmd, h, func(t table.Writer) {
				width := getTerminalWidth() - 40
				if width < 30 {
					width = 30
				}
				t.AppendHeader(table.Row{"When", "From", "Message"})
				for _, m := range h.Messages {
					t.AppendRow(table.Row{view.FormatDateTime(m.Timestamp), m.Type, truncate(m.Content, width)})
				}
			})
		},
	}
}
