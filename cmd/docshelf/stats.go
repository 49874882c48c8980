package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/docshelf/docshelf/pkg/protocol"
)

func newStatsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show account statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := c.signalContext(cmd)
			defer cancel()

			snap := c.app.Store.Stats(ctx)
			if snap.Err != nil {
				return snap.Err
			}
			s := snap.Data
			return c.render(cmd, s, func(t table.Writer) { statsRows(t, s) })
		},
	}
}

func statsRows(t table.Writer, s protocol.DashboardStats) {
	t.AppendHeader(table.Row{"", "Total", "This month"})
	t.AppendRows([]table.Row{
		{"Documents", s.TotalDocuments, s.DocumentsThisMonth},
		{"Collections", s.TotalCollections, s.CollectionsThisMonth},
		{"Conversations", s.TotalConversations, s.ConversationsThisMonth},
		{"Processing", s.ProcessingDocuments, ""},
		{"Storage", orDash(s.StorageUsed) + " / " + orDash(s.StorageLimit), ""},
	})
}
