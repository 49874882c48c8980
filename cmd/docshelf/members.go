package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/docshelf/docshelf/pkg/protocol"
	"github.com/docshelf/docshelf/pkg/view"
)

func newMembersCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "members",
		Short: "Manage collection members",
	}
	cmd.AddCommand(
		newMembersListCmd(c),
		newMembersAddCmd(c),
		newMembersUpdateCmd(c),
		newMembersRemoveCmd(c),
	)
	return cmd
}

func newMembersListCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "list <collection-id>",
		Short: "List members of a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.signalContext(cmd)
			defer cancel()

			snap := c.app.Store.Members(ctx, args[0])
			if snap.Err != nil {
				return snap.Err
			}
			list := snap.Data
			return c.render(cmd, list, func(t table.Writer) {
				t.AppendHeader(table.Row{"User", "Name", "Email", "Role", "Added"})
				for _, m := range list.Members {
					id, name, email := m.User.ID, "", ""
					if m.User.Kind == protocol.RefExpanded {
						id, name, email = m.User.Value.ID, m.User.Value.FullName(), m.User.Value.Email
					}
					role := string(m.Role)
					if m.IsOwner {
						role = string(protocol.RoleOwner)
					}
					added := "-"
					if m.AddedAt != "" {
						added = view.FormatDate(m.AddedAt)
					}
					t.AppendRow(table.Row{id, orDash(name), orDash(email), role, added})
				}
				t.AppendFooter(table.Row{"", "", "", "", fmt.Sprintf("%d total", list.TotalMembers)})
			})
		},
	}
}

func newMembersAddCmd(c *cli) *cobra.Command {
	var email, role string

	cmd := &cobra.Command{
		Use:   "add <collection-id>",
		Short: "Invite a user to a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.signalContext(cmd)
			defer cancel()

			m, err := c.app.Store.AddMember(ctx, args[0], protocol.MemberInput{Email: email, Role: protocol.MemberRole(role)})
			if err != nil {
				return err
			}
			return c.render(cmd, m, func(t table.Writer) {
				t.AppendRows([]table.Row{{"User", m.User.ID}, {"Role", m.Role}})
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email of the user to add")
	cmd.Flags().StringVar(&role, "role", string(protocol.RoleViewer), "Role: viewer or editor")
	return cmd
}

func newMembersUpdateCmd(c *cli) *cobra.Command {
	var role string

	cmd := &cobra.Command{
		Use:   "update <collection-id> <user-id>",
		Short: "Change a member's role",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.signalContext(cmd)
			defer cancel()

			m, err := c.app.Store.UpdateMember(ctx, args[0], args[1], protocol.MemberRole(role))
			if err != nil {
				return err
			}
			return c.render(cmd, m, func(t table.Writer) {
				t.AppendRows([]table.Row{{"User", args[1]}, {"Role", m.Role}})
			})
		},
	}

	cmd.Flags().StringVar(&role, "role", "", "Role: viewer or editor")
	return cmd
}

func newMembersRemoveCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <collection-id> <user-id>",
		Short: "Remove a member from a collection",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.signalContext(cmd)
			defer cancel()

			resp, err := c.app.Store.RemoveMember(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			return c.done(cmd, orDefault(resp.Message, "Member removed"))
		},
	}
}
