package main

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/docshelf/docshelf/pkg/protocol"
	"github.com/docshelf/docshelf/pkg/view"
)

func newCollectionsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "collections",
		Aliases: []string{"col"},
		Short:   "Manage collections",
	}
	cmd.AddCommand(
		newCollectionsListCmd(c),
		newCollectionsGetCmd(c),
		newCollectionsCreateCmd(c),
		newCollectionsUpdateCmd(c),
		newCollectionsDeleteCmd(c),
		newCollectionsStatsCmd(c),
	)
	return cmd
}

func newCollectionsListCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List collections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := c.signalContext(cmd)
			defer cancel()

			v := c.app.CollectionsPage().Load(ctx)
			if v.Err != nil {
				return v.Err
			}
			return c.render(cmd, v.Formatted, func(t table.Writer) {
				t.AppendHeader(table.Row{"ID", "Name", "Documents", "Size", "Members", "Owner", "Public", "Last activity"})
				for _, col := range v.Formatted {
					t.AppendRow(table.Row{col.ID, col.Name, col.Count, col.TotalSize, col.Members, orDash(col.Owner), yesNo(col.IsPublic), col.LastActivity})
				}
			})
		},
	}
}

func newCollectionsGetCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "get <collection-id>",
		Short: "Show one collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.signalContext(cmd)
			defer cancel()

			snap := c.app.Store.Collection(ctx, args[0])
			if snap.Err != nil {
				return snap.Err
			}
			col := snap.Data
			d := c.app.Format.CollectionDetail(col)
			return c.render(cmd, col, func(t table.Writer) {
				t.AppendRows([]table.Row{
					{"ID", d.ID},
					{"Name", d.Name},
					{"Description", orDash(d.Description)},
					{"Documents", d.Count},
					{"Size", d.TotalSize},
					{"Owner", orDash(d.Owner)},
					{"Members", d.Members},
					{"Public", yesNo(d.IsPublic)},
					{"Created", d.CreatedAt},
					{"Last activity", d.LastActivity},
				})
				for _, doc := range col.RecentDocuments {
					f := c.app.Format.Document(doc)
					t.AppendRow(table.Row{"Recent", fmt.Sprintf("%s (%s)", f.Title, f.Status.Text)})
				}
			})
		},
	}
}

// collectionFlags binds the create/update flags; only flags the user set are
// sent on update.
type collectionFlags struct {
	name, description, color, icon string
	public                         bool
}

func (f *collectionFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "Collection name")
	cmd.Flags().StringVar(&f.description, "description", "", "Description")
	cmd.Flags().StringVar(&f.color, "color", "", "Color name, e.g. blue")
	cmd.Flags().StringVar(&f.icon, "icon", "", "Icon name")
	cmd.Flags().BoolVar(&f.public, "public", false, "Make the collection public")
}

func (f *collectionFlags) input(cmd *cobra.Command) protocol.CollectionInput {
	in := protocol.CollectionInput{Name: f.name, Color: f.color, Icon: f.icon}
	if cmd.Flags().Changed("description") {
		in.Description = &f.description
	}
	if cmd.Flags().Changed("public") {
		in.IsPublic = &f.public
	}
	return in
}

func newCollectionsCreateCmd(c *cli) *cobra.Command {
	var f collectionFlags

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := c.signalContext(cmd)
			defer cancel()

			col, err := c.app.CollectionsPage().Create(ctx, f.input(cmd))
			if err != nil {
				return err
			}
			return c.render(cmd, col, func(t table.Writer) {
				t.AppendRows([]table.Row{{"ID", col.ID}, {"Name", col.Name}})
			})
		},
	}
	f.bind(cmd)
	return cmd
}

func newCollectionsUpdateCmd(c *cli) *cobra.Command {
	var f collectionFlags

	cmd := &cobra.Command{
		Use:   "update <collection-id>",
		Short: "Update a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.signalContext(cmd)
			defer cancel()

			col, err := c.app.CollectionsPage().Update(ctx, args[0], f.input(cmd))
			if err != nil {
				return err
			}
			return c.render(cmd, col, func(t table.Writer) {
				t.AppendRows([]table.Row{{"ID", col.ID}, {"Name", col.Name}, {"Public", yesNo(col.IsPublic)}})
			})
		},
	}
	f.bind(cmd)
	return cmd
}

func newCollectionsDeleteCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <collection-id>",
		Short: "Delete a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.signalContext(cmd)
			defer cancel()

			if err := c.app.CollectionsPage().Delete(ctx, args[0]); err != nil {
				return err
			}
			return c.done(cmd, "Collection deleted")
		},
	}
}

func newCollectionsStatsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <collection-id>",
		Short: "Show collection statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.signalContext(cmd)
			defer cancel()

			snap := c.app.Store.CollectionStats(ctx, args[0])
			if snap.Err != nil {
				return snap.Err
			}
			s := snap.Data
			return c.render(cmd, s, func(t table.Writer) {
				o := s.Overview
				d := s.StatusDistribution
				t.AppendRows([]table.Row{
					{"Documents", o.TotalDocuments},
					{"Total size", view.FormatSize(o.TotalSize)},
					{"Average size", view.FormatSize(o.AvgSize)},
					{"Members", o.TotalMembers},
					{"Chat sessions", o.ChatSessions},
					{"Storage used", strconv.Itoa(o.StorageUsagePercent) + "%"},
					{"Pending / processing", fmt.Sprintf("%d / %d", d.Pending, d.Processing)},
					{"Completed / failed", fmt.Sprintf("%d / %d", d.Completed, d.Error)},
				})
				for _, tc := range s.TopContributors {
					t.AppendRow(table.Row{"Contributor", fmt.Sprintf("%s: %d (%s)", tc.User.FullName(), tc.DocumentCount, view.FormatSize(tc.TotalSize))})
				}
				for _, a := range s.RecentActivity {
					t.AppendRow(table.Row{"Recent", fmt.Sprintf("%s, %s", a.Title, view.FormatDateTime(a.CreatedAt))})
				}
			})
		},
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
