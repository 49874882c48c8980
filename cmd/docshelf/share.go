package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/docshelf/docshelf/pkg/protocol"
)

func newShareCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "share",
		Short: "Manage collection share links",
	}
	cmd.AddCommand(
		newShareShowCmd(c),
		newShareActionCmd(c, protocol.ShareGenerate, "Create a share link"),
		newShareActionCmd(c, protocol.ShareRegenerate, "Replace the share link"),
		newShareActionCmd(c, protocol.ShareRevoke, "Disable the share link"),
		newShareSettingsCmd(c),
	)
	return cmd
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func newShareShowCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "show <collection-id>",
		Short: "Show sharing state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.signalContext(cmd)
			defer cancel()

			snap := c.app.Store.Sharing(ctx, args[0])
			if snap.Err != nil {
				return snap.Err
			}
			info := snap.Data
			return c.render(cmd, info, func(t table.Writer) {
				t.AppendRows([]table.Row{
					{"Public", yesNo(info.IsPublic)},
					{"Share URL", deref(info.ShareURL)},
					{"Members", info.TotalMembers},
					{"Public documents", yesNo(info.Settings.AllowPublicDocuments)},
					{"Require approval", yesNo(info.Settings.RequireApproval)},
					{"Auto tagging", yesNo(info.Settings.AutoTagging)},
				})
			})
		},
	}
}

func newShareActionCmd(c *cli, action protocol.ShareAction, short string) *cobra.Command {
	var expires string

	cmd := &cobra.Command{
		Use:   string(action) + " <collection-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.signalContext(cmd)
			defer cancel()

			exp := protocol.ShareExpiry(expires)
			switch exp {
			case protocol.ExpiresNever, protocol.Expires1h, protocol.Expires24h, protocol.Expires7d, protocol.Expires30d:
			default:
				return fmt.Errorf("invalid --expires %q (valid values: 1h, 24h, 7d, 30d)", expires)
			}

			resp, err := c.app.Store.Share(ctx, args[0], protocol.ShareRequest{Action: action, ExpiresIn: exp})
			if err != nil {
				return err
			}
			if action == protocol.ShareRevoke {
				return c.done(cmd, orDefault(resp.Message, "Share link revoked"))
			}
			return c.render(cmd, resp, func(t table.Writer) {
				t.AppendRow(table.Row{"Share URL", resp.ShareURL})
				if resp.ExpiresAt != nil {
					t.AppendRow(table.Row{"Expires", resp.ExpiresAt.Local().Format("2006-01-02 15:04")})
				}
			})
		},
	}

	if action != protocol.ShareRevoke {
		cmd.Flags().StringVar(&expires, "expires", "", "Link lifetime: 1h, 24h, 7d or 30d (default: never)")
	}
	return cmd
}

func newShareSettingsCmd(c *cli) *cobra.Command {
	var public, publicDocs, approval, tagging bool

	cmd := &cobra.Command{
		Use:   "settings <collection-id>",
		Short: "Update visibility and sharing settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.signalContext(cmd)
			defer cancel()

			var upd protocol.SharingUpdate
			var patch protocol.CollectionSettingsPatch
			changed := false
			if cmd.Flags().Changed("public") {
				upd.IsPublic = &public
			}
			if cmd.Flags().Changed("public-documents") {
				patch.AllowPublicDocuments = &publicDocs
				changed = true
			}
			if cmd.Flags().Changed("require-approval") {
				patch.RequireApproval = &approval
				changed = true
			}
			if cmd.Flags().Changed("auto-tagging") {
				patch.AutoTagging = &tagging
				changed = true
			}
			if changed {
				upd.Settings = &patch
			}
			if upd.IsPublic == nil && upd.Settings == nil {
				return fmt.Errorf("nothing to update")
			}

			info, err := c.app.Store.UpdateSharing(ctx, args[0], upd)
			if err != nil {
				return err
			}
			return c.render(cmd, info, func(t table.Writer) {
				t.AppendRows([]table.Row{
					{"Public", yesNo(info.IsPublic)},
					{"Public documents", yesNo(info.Settings.AllowPublicDocuments)},
					{"Require approval", yesNo(info.Settings.RequireApproval)},
					{"Auto tagging", yesNo(info.Settings.AutoTagging)},
				})
			})
		},
	}

	cmd.Flags().BoolVar(&public, "public", false, "Collection visible to everyone")
	cmd.Flags().BoolVar(&publicDocs, "public-documents", false, "Allow public documents")
	cmd.Flags().BoolVar(&approval, "require-approval", false, "Require approval for new documents")
	cmd.Flags().BoolVar(&tagging, "auto-tagging", false, "Tag documents automatically")
	return cmd
}
