package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/docshelf/docshelf/pkg/client"
	"github.com/docshelf/docshelf/pkg/protocol"
	"github.com/docshelf/docshelf/pkg/view"
)

func newDocsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "docs",
		Aliases: []string{"documents"},
		Short:   "List, upload and manage documents",
	}
	cmd.AddCommand(
		newDocsListCmd(c),
		newDocsGetCmd(c),
		newDocsUploadCmd(c),
		newDocsDeleteCmd(c),
		newDocsDownloadCmd(c),
	)
	return cmd
}

func newDocsListCmd(c *cli) *cobra.Command {
	var q protocol.DocumentQuery

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := c.signalContext(cmd)
			defer cancel()

			snap := c.app.Store.Documents(ctx, q)
			if snap.Err != nil {
				return snap.Err
			}
			page := snap.Data

			rows := make([]view.FormattedDocument, 0, len(page.Documents))
			for _, d := range page.Documents {
				rows = append(rows, c.app.Format.Document(d))
			}
			return c.render(cmd, page, func(t table.Writer) {
				width := titleWidth()
				t.AppendHeader(table.Row{"ID", "Title", "Size", "Status", "Collection", "Modified"})
				for _, d := range rows {
					t.AppendRow(table.Row{d.ID, truncate(d.Title, width), d.Size, d.Status.Text, d.Collection, d.LastModified})
				}
				t.AppendFooter(table.Row{"", fmt.Sprintf("page %d/%d", page.Page, page.TotalPages), "", "", "", fmt.Sprintf("%d total", page.Total)})
			})
		},
	}

	cmd.Flags().StringVar(&q.Search, "search", "", "Search text")
	cmd.Flags().StringVar(&q.Collection, "collection", "", "Collection ID")
	cmd.Flags().StringVar(&q.Status, "status", "", "Processing status")
	cmd.Flags().IntVar(&q.Page, "page", 1, "Page number")
	cmd.Flags().IntVar(&q.Limit, "limit", 10, "Documents per page")
	return cmd
}

func newDocsGetCmd(c *cli) *cobra.Command {
	var showContent bool

	cmd := &cobra.Command{
		Use:   "get <document-id>",
		Short: "Show one document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.signalContext(cmd)
			defer cancel()

			snap := c.app.Store.Document(ctx, args[0])
			if snap.Err != nil {
				return snap.Err
			}
			detail := snap.Data
			d := c.app.Format.Document(detail.Document)

			err := c.render(cmd, detail, func(t table.Writer) {
				t.AppendRows([]table.Row{
					{"ID", d.ID},
					{"Title", d.Title},
					{"Type", d.Type},
					{"Size", d.Size},
					{"Status", d.Status.Text},
					{"Collection", d.Collection},
					{"Modified", d.LastModified},
					{"Description", d.Preview},
				})
				if detail.Document.ProcessingError != "" {
					t.AppendRow(table.Row{"Error", detail.Document.ProcessingError})
				}
			})
			if err == nil && showContent && c.format != "json" && detail.MarkdownContent != "" {
				fmt.Fprintln(cmd.OutOrStdout())
				fmt.Fprintln(cmd.OutOrStdout(), detail.MarkdownContent)
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&showContent, "content", false, "Print the extracted markdown content")
	return cmd
}

func newDocsUploadCmd(c *cli) *cobra.Command {
	var collectionID string

	cmd := &cobra.Command{
		Use:   "upload <file.pdf>",
		Short: "Upload a PDF document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.signalContext(cmd)
			defer cancel()

			up, closer, err := client.OpenUpload(args[0])
			if err != nil {
				return err
			}
			defer closer.Close()

			resp, err := c.app.Store.UploadDocument(ctx, up, collectionID)
			if err != nil {
				return err
			}
			return c.render(cmd, resp, func(t table.Writer) {
				t.AppendRows([]table.Row{
					{"ID", resp.Document.ID},
					{"Title", resp.Document.Title},
					{"Status", view.StatusInfo(string(resp.Document.Status)).Text},
					{"Uploaded", view.FormatDateTime(resp.Document.UploadedAt)},
				})
			})
		},
	}

	cmd.Flags().StringVar(&collectionID, "collection", "", "Collection to upload into")
	return cmd
}

func newDocsDeleteCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <document-id>",
		Short: "Delete a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.signalContext(cmd)
			defer cancel()

			resp, err := c.app.Store.DeleteDocument(ctx, args[0])
			if err != nil {
				return err
			}
			return c.done(cmd, orDefault(resp.Message, "Document deleted"))
		},
	}
}

func newDocsDownloadCmd(c *cli) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "download <document-id>",
		Short: "Download the original PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.signalContext(cmd)
			defer cancel()

			dl, err := c.app.Client.DownloadDocument(ctx, args[0]).Unwrap()
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			path := output
			if path == "" && isTerminal(os.Stdout) {
				path = filepath.Base(dl.FileName)
			}
			if path != "" && path != "-" {
				f, err := os.Create(path)
				if err != nil {
					dl.Body.Close()
					return err
				}
				defer f.Close()
				w = f
			}

			n, err := dl.WriteTo(w)
			if err != nil {
				return fmt.Errorf("download %s: %w", args[0], err)
			}
			if w != cmd.OutOrStdout() {
				fmt.Fprintf(cmd.ErrOrStderr(), "Saved %s (%s)\n", path, view.FormatSize(n))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: server file name, '-' for stdout)")
	return cmd
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
